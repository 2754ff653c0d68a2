package opencat

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
)

// Webhook delivery headers.
const (
	SignatureHeader = "X-Opencat-Signature"
	EventIDHeader   = "X-Opencat-Event"
	DeliveryHeader  = "X-Opencat-Delivery"
)

// Signature computes the hex HMAC-SHA256 signature of body under secret.
func Signature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook signature in constant time.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected := Signature(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyRequest verifies the signature header of an incoming webhook request
// against the raw body, which the caller must have already read.
func VerifyRequest(header http.Header, body []byte, secret string) error {
	signature := header.Get(SignatureHeader)
	if signature == "" {
		return fmt.Errorf("missing %s header", SignatureHeader)
	}
	if !VerifySignature(secret, body, signature) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
