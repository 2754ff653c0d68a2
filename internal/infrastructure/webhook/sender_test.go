package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencat-io/opencat/internal/shared/constants"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

func TestHTTPSender_Send(t *testing.T) {
	body := []byte(`{"id":"evt_abc","type":"entitlement.changed"}`)
	secret := "whsec_test_secret"

	var received struct {
		body      []byte
		signature string
		eventID   string
		delivery  string
		contentTy string
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.body, _ = io.ReadAll(r.Body)
		received.signature = r.Header.Get(constants.WebhookSignatureHeader)
		received.eventID = r.Header.Get(constants.WebhookEventIDHeader)
		received.delivery = r.Header.Get(constants.WebhookDeliveryHeader)
		received.contentTy = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewHTTPSender(5*time.Second, logger.NewLogger())
	result, err := sender.Send(context.Background(), Request{
		URL:         server.URL,
		Secret:      secret,
		EventSID:    "evt_abc",
		DeliverySID: "whd_xyz",
		Body:        body,
	})
	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Equal(t, http.StatusOK, result.StatusCode)

	assert.Equal(t, body, received.body)
	assert.Equal(t, "evt_abc", received.eventID)
	assert.Equal(t, "whd_xyz", received.delivery)
	assert.Equal(t, "application/json", received.contentTy)

	// The receiver recomputes the HMAC over the exact bytes it received.
	assert.True(t, VerifySignature(secret, received.body, received.signature))
	assert.False(t, VerifySignature("wrong_secret", received.body, received.signature))
}

func TestHTTPSender_SendNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sender := NewHTTPSender(5*time.Second, logger.NewLogger())
	result, err := sender.Send(context.Background(), Request{
		URL:         server.URL,
		Secret:      "s",
		EventSID:    "evt_1",
		DeliverySID: "whd_1",
		Body:        []byte(`{}`),
	})
	require.NoError(t, err)
	assert.False(t, result.Success())
	assert.Equal(t, http.StatusBadGateway, result.StatusCode)
}

func TestHTTPSender_SendConnectError(t *testing.T) {
	sender := NewHTTPSender(time.Second, logger.NewLogger())
	result, err := sender.Send(context.Background(), Request{
		URL:         "http://127.0.0.1:1/unreachable",
		Secret:      "s",
		EventSID:    "evt_1",
		DeliverySID: "whd_1",
		Body:        []byte(`{}`),
	})
	assert.Error(t, err)
	assert.Equal(t, 0, result.StatusCode)
	assert.False(t, result.Success())
}

func TestSignatureDeterminism(t *testing.T) {
	body := []byte(`{"a":1}`)
	assert.Equal(t, Signature("k", body), Signature("k", body))
	assert.NotEqual(t, Signature("k", body), Signature("k2", body))
	assert.Len(t, Signature("k", body), 64)
}
