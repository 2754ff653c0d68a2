package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opencat-io/opencat/internal/shared/constants"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

const (
	defaultRequestTimeout = 10 * time.Second
	// Response bodies are drained for connection reuse but never inspected
	// beyond this cap.
	maxResponseDrainSize = 64 << 10
)

// Request describes one delivery attempt against an endpoint.
type Request struct {
	URL         string
	Secret      string
	EventSID    string
	DeliverySID string
	Body        []byte
}

// Result is the outcome of a single attempt. StatusCode is 0 when the
// request never produced an HTTP response (connect error, timeout).
type Result struct {
	StatusCode int
	Duration   time.Duration
}

// Success reports whether the endpoint acknowledged the delivery.
func (r Result) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Sender delivers signed webhook payloads to endpoints.
type Sender interface {
	Send(ctx context.Context, req Request) (Result, error)
}

// HTTPSender implements Sender over net/http.
type HTTPSender struct {
	httpClient *http.Client
	logger     logger.Interface
}

// NewHTTPSender creates a webhook sender with the given per-request timeout.
// A non-positive timeout falls back to the default.
func NewHTTPSender(timeout time.Duration, logger logger.Interface) *HTTPSender {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &HTTPSender{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

var _ Sender = (*HTTPSender)(nil)

// Send posts the raw JSON body to the endpoint, signed with the endpoint
// secret. Any response outside 2xx is reported as a failed Result with a nil
// error; the error return is reserved for attempts that produced no response.
func (s *HTTPSender) Send(ctx context.Context, req Request) (Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create webhook request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(constants.WebhookEventIDHeader, req.EventSID)
	httpReq.Header.Set(constants.WebhookDeliveryHeader, req.DeliverySID)
	httpReq.Header.Set(constants.WebhookSignatureHeader, Signature(req.Secret, req.Body))

	start := time.Now()
	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return Result{Duration: time.Since(start)}, fmt.Errorf("failed to deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseDrainSize))

	result := Result{
		StatusCode: resp.StatusCode,
		Duration:   time.Since(start),
	}

	s.logger.Debugw("webhook attempt finished",
		"delivery_sid", req.DeliverySID,
		"status_code", result.StatusCode,
		"duration", result.Duration,
	)

	return result, nil
}

// Signature computes the hex HMAC-SHA256 of the raw body under the endpoint
// secret. Receivers recompute this over the exact bytes they received.
func Signature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether the given signature matches the body in
// constant time.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected, err := hex.DecodeString(Signature(secret, body))
	if err != nil {
		return false
	}
	actual, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, actual)
}
