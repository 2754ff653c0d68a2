package opencat

import (
	"encoding/json"
	"fmt"
	"time"
)

// apiResponse is the server's response envelope.
type apiResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
	Message string    `json:"message,omitempty"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// APIError is a non-2xx API response.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("api error: status=%d type=%s message=%s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("api error: status=%d message=%s", e.StatusCode, e.Message)
}

// IngestTransactionRequest is the transaction ingest payload.
type IngestTransactionRequest struct {
	AppUserID          string          `json:"app_user_id"`
	ProductID          string          `json:"product_id"`
	Store              string          `json:"store"`
	StoreTransactionID string          `json:"store_transaction_id"`
	Status             string          `json:"status"`
	Environment        string          `json:"environment,omitempty"`
	PurchasedAt        time.Time       `json:"purchased_at"`
	ExpiresAt          *time.Time      `json:"expires_at,omitempty"`
	RawReceipt         json.RawMessage `json:"raw_receipt,omitempty"`
}

// IngestTransactionResult reports what the ingest write changed.
type IngestTransactionResult struct {
	TransactionID       string `json:"transaction_id"`
	SubscriberID        string `json:"subscriber_id"`
	Created             bool   `json:"created"`
	EntitlementsChanged bool   `json:"entitlements_changed"`
	EventID             string `json:"event_id,omitempty"`
}

// EntitlementInfo is one currently granted entitlement.
type EntitlementInfo struct {
	Identifier string     `json:"identifier"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// TransactionInfo is one ledger entry in a subscriber's history.
type TransactionInfo struct {
	ID                 string     `json:"id"`
	Store              string     `json:"store"`
	StoreTransactionID string     `json:"store_transaction_id"`
	Status             string     `json:"status"`
	Environment        string     `json:"environment"`
	PurchasedAt        time.Time  `json:"purchased_at"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	RefundedAt         *time.Time `json:"refunded_at,omitempty"`
}

// SubscriberInfo is the resolved view of a subscriber.
type SubscriberInfo struct {
	ID           string            `json:"id"`
	AppUserID    string            `json:"app_user_id"`
	Entitlements []EntitlementInfo `json:"entitlements"`
	Transactions []TransactionInfo `json:"transactions"`
	FirstSeenAt  time.Time         `json:"first_seen_at"`
	LastSeenAt   time.Time         `json:"last_seen_at"`
}

// Event is one entry in the app's event log.
type Event struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Payload     map[string]any `json:"payload"`
	FannedOutAt *time.Time     `json:"fanned_out_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// EventPage is one page of the event log.
type EventPage struct {
	Events     []Event `json:"events"`
	NextCursor string  `json:"next_cursor,omitempty"`
}

// ReplayResult reports a delivery replay.
type ReplayResult struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Attempts int    `json:"attempts"`
}
