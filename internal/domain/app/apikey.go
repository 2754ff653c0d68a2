package app

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// APIKeyPrefix is prepended to every generated API key secret so keys are
// recognizable in logs and configuration.
const APIKeyPrefix = "oc_"

// APIKey represents an API credential for an app. Only the SHA-256 hash of
// the secret is persisted; the plaintext is returned once at creation time.
type APIKey struct {
	id         uint
	sid        string // key_xxx
	appID      uint
	name       string
	keyHash    string // hex-encoded SHA-256 of the full key
	lastUsedAt *time.Time
	createdAt  time.Time
}

// NewAPIKey creates a new API key record from a plaintext key.
func NewAPIKey(sid string, appID uint, name, plaintext string) (*APIKey, error) {
	if sid == "" {
		return nil, fmt.Errorf("API key SID is required")
	}
	if appID == 0 {
		return nil, fmt.Errorf("app ID is required")
	}
	if name == "" {
		return nil, ErrAPIKeyNameRequired
	}
	if !strings.HasPrefix(plaintext, APIKeyPrefix) {
		return nil, fmt.Errorf("API key must start with %q", APIKeyPrefix)
	}

	return &APIKey{
		sid:       sid,
		appID:     appID,
		name:      name,
		keyHash:   HashAPIKey(plaintext),
		createdAt: time.Now().UTC(),
	}, nil
}

// ReconstructAPIKey reconstructs an API key from persistence.
func ReconstructAPIKey(
	id uint,
	sid string,
	appID uint,
	name, keyHash string,
	lastUsedAt *time.Time,
	createdAt time.Time,
) (*APIKey, error) {
	if id == 0 {
		return nil, fmt.Errorf("API key ID cannot be zero")
	}
	if appID == 0 {
		return nil, fmt.Errorf("app ID is required")
	}
	if keyHash == "" {
		return nil, fmt.Errorf("key hash is required")
	}

	return &APIKey{
		id:         id,
		sid:        sid,
		appID:      appID,
		name:       name,
		keyHash:    keyHash,
		lastUsedAt: lastUsedAt,
		createdAt:  createdAt,
	}, nil
}

// ID returns the API key ID
func (k *APIKey) ID() uint { return k.id }

// SID returns the public identifier
func (k *APIKey) SID() string { return k.sid }

// AppID returns the owning app ID
func (k *APIKey) AppID() uint { return k.appID }

// Name returns the key name
func (k *APIKey) Name() string { return k.name }

// KeyHash returns the hex-encoded SHA-256 hash of the key
func (k *APIKey) KeyHash() string { return k.keyHash }

// LastUsedAt returns when the key was last used for authentication
func (k *APIKey) LastUsedAt() *time.Time { return k.lastUsedAt }

// CreatedAt returns when the key was created
func (k *APIKey) CreatedAt() time.Time { return k.createdAt }

// SetID sets the API key ID (only for persistence layer use)
func (k *APIKey) SetID(id uint) error {
	if k.id != 0 {
		return fmt.Errorf("API key ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("API key ID cannot be zero")
	}
	k.id = id
	return nil
}

// Touch records a successful authentication with this key.
func (k *APIKey) Touch() {
	now := time.Now().UTC()
	k.lastUsedAt = &now
}

// Matches reports whether the plaintext key corresponds to this record.
// Comparison is constant-time over the hashes.
func (k *APIKey) Matches(plaintext string) bool {
	candidate := HashAPIKey(plaintext)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(k.keyHash)) == 1
}

// HashAPIKey returns the hex-encoded SHA-256 hash of a plaintext API key.
func HashAPIKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
