package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAPIKeyHashesSecret(t *testing.T) {
	key, err := NewAPIKey("key_abc", 1, "default", "oc_secret123")
	require.NoError(t, err)

	assert.Equal(t, HashAPIKey("oc_secret123"), key.KeyHash())
	assert.NotContains(t, key.KeyHash(), "secret123", "plaintext must not survive in the record")
}

func TestNewAPIKeyRejectsBadInput(t *testing.T) {
	_, err := NewAPIKey("key_abc", 1, "", "oc_secret")
	assert.ErrorIs(t, err, ErrAPIKeyNameRequired)

	_, err = NewAPIKey("key_abc", 1, "default", "secret-without-prefix")
	assert.Error(t, err)

	_, err = NewAPIKey("key_abc", 0, "default", "oc_secret")
	assert.Error(t, err)
}

func TestAPIKeyMatches(t *testing.T) {
	key, err := NewAPIKey("key_abc", 1, "default", "oc_secret123")
	require.NoError(t, err)

	assert.True(t, key.Matches("oc_secret123"))
	assert.False(t, key.Matches("oc_secret124"))
	assert.False(t, key.Matches(""))
}

func TestHashAPIKeyIsDeterministic(t *testing.T) {
	assert.Equal(t, HashAPIKey("oc_x"), HashAPIKey("oc_x"))
	assert.NotEqual(t, HashAPIKey("oc_x"), HashAPIKey("oc_y"))
	assert.Len(t, HashAPIKey("oc_x"), 64)
}
