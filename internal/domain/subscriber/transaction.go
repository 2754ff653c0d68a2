package subscriber

import (
	"encoding/json"
	"fmt"
	"time"
)

// Transaction represents a purchase transaction aggregate root. The pair
// (store, storeTransactionID) is unique within an app and is the idempotency
// key for ingestion: replaying the same store transaction updates the
// existing row instead of inserting a new one.
type Transaction struct {
	id                 uint
	sid                string // txn_xxx
	appID              uint
	subscriberID       uint
	productID          uint
	store              Store
	storeTransactionID string
	status             TransactionStatus
	environment        Environment
	purchasedAt        time.Time
	expiresAt          *time.Time // nil for non-expiring purchases
	refundedAt         *time.Time
	rawReceipt         json.RawMessage // opaque store receipt, captured at first ingest
	createdAt          time.Time
	updatedAt          time.Time
	version            int
}

// NewTransaction creates a new transaction.
func NewTransaction(
	sid string,
	appID, subscriberID, productID uint,
	store Store,
	storeTransactionID string,
	status TransactionStatus,
	environment Environment,
	purchasedAt time.Time,
	expiresAt *time.Time,
	rawReceipt json.RawMessage,
) (*Transaction, error) {
	if sid == "" {
		return nil, fmt.Errorf("transaction SID is required")
	}
	if appID == 0 {
		return nil, fmt.Errorf("app ID is required")
	}
	if subscriberID == 0 {
		return nil, fmt.Errorf("subscriber ID is required")
	}
	if productID == 0 {
		return nil, fmt.Errorf("product ID is required")
	}
	if !store.IsValid() {
		return nil, fmt.Errorf("invalid store: %s", store)
	}
	if storeTransactionID == "" {
		return nil, ErrStoreTransactionIDRequired
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid transaction status: %s", status)
	}
	if !environment.IsValid() {
		return nil, fmt.Errorf("invalid environment: %s", environment)
	}
	if purchasedAt.IsZero() {
		return nil, fmt.Errorf("purchase time is required")
	}
	if expiresAt != nil && !expiresAt.After(purchasedAt) {
		return nil, fmt.Errorf("expiry must be after purchase time")
	}

	now := time.Now().UTC()
	return &Transaction{
		sid:                sid,
		appID:              appID,
		subscriberID:       subscriberID,
		productID:          productID,
		store:              store,
		storeTransactionID: storeTransactionID,
		status:             status,
		environment:        environment,
		purchasedAt:        purchasedAt.UTC(),
		expiresAt:          expiresAt,
		rawReceipt:         rawReceipt,
		createdAt:          now,
		updatedAt:          now,
		version:            1,
	}, nil
}

// ReconstructTransaction reconstructs a transaction from persistence.
func ReconstructTransaction(
	id uint,
	sid string,
	appID, subscriberID, productID uint,
	store Store,
	storeTransactionID string,
	status TransactionStatus,
	environment Environment,
	purchasedAt time.Time,
	expiresAt, refundedAt *time.Time,
	rawReceipt json.RawMessage,
	createdAt, updatedAt time.Time,
	version int,
) (*Transaction, error) {
	if id == 0 {
		return nil, fmt.Errorf("transaction ID cannot be zero")
	}
	if appID == 0 {
		return nil, fmt.Errorf("app ID is required")
	}
	if subscriberID == 0 {
		return nil, fmt.Errorf("subscriber ID is required")
	}
	if productID == 0 {
		return nil, fmt.Errorf("product ID is required")
	}
	if !store.IsValid() {
		return nil, fmt.Errorf("invalid store: %s", store)
	}
	if storeTransactionID == "" {
		return nil, ErrStoreTransactionIDRequired
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid transaction status: %s", status)
	}
	if !environment.IsValid() {
		return nil, fmt.Errorf("invalid environment: %s", environment)
	}

	return &Transaction{
		id:                 id,
		sid:                sid,
		appID:              appID,
		subscriberID:       subscriberID,
		productID:          productID,
		store:              store,
		storeTransactionID: storeTransactionID,
		status:             status,
		environment:        environment,
		purchasedAt:        purchasedAt,
		expiresAt:          expiresAt,
		refundedAt:         refundedAt,
		rawReceipt:         rawReceipt,
		createdAt:          createdAt,
		updatedAt:          updatedAt,
		version:            version,
	}, nil
}

// ID returns the transaction ID
func (t *Transaction) ID() uint { return t.id }

// SID returns the public identifier
func (t *Transaction) SID() string { return t.sid }

// AppID returns the owning app ID
func (t *Transaction) AppID() uint { return t.appID }

// SubscriberID returns the subscriber ID
func (t *Transaction) SubscriberID() uint { return t.subscriberID }

// ProductID returns the purchased product ID
func (t *Transaction) ProductID() uint { return t.productID }

// Store returns the originating store
func (t *Transaction) Store() Store { return t.store }

// StoreTransactionID returns the store-assigned transaction identifier
func (t *Transaction) StoreTransactionID() string { return t.storeTransactionID }

// Status returns the transaction status
func (t *Transaction) Status() TransactionStatus { return t.status }

// Environment returns the store environment
func (t *Transaction) Environment() Environment { return t.environment }

// PurchasedAt returns the purchase time
func (t *Transaction) PurchasedAt() time.Time { return t.purchasedAt }

// ExpiresAt returns the expiry time (nil means no expiry)
func (t *Transaction) ExpiresAt() *time.Time { return t.expiresAt }

// RefundedAt returns when the transaction was refunded, if ever
func (t *Transaction) RefundedAt() *time.Time { return t.refundedAt }

// RawReceipt returns the opaque store receipt captured at first ingest
func (t *Transaction) RawReceipt() json.RawMessage { return t.rawReceipt }

// CreatedAt returns when the transaction was first recorded
func (t *Transaction) CreatedAt() time.Time { return t.createdAt }

// UpdatedAt returns when the transaction was last updated
func (t *Transaction) UpdatedAt() time.Time { return t.updatedAt }

// Version returns the aggregate version for optimistic locking
func (t *Transaction) Version() int { return t.version }

// SetID sets the transaction ID (only for persistence layer use)
func (t *Transaction) SetID(id uint) error {
	if t.id != 0 {
		return fmt.Errorf("transaction ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("transaction ID cannot be zero")
	}
	t.id = id
	return nil
}

// ApplyUpdate applies a store-reported update to the transaction: a new
// status and possibly an extended expiry (renewal). Returns
// ErrTerminalTransaction if the transaction is refunded.
func (t *Transaction) ApplyUpdate(status TransactionStatus, expiresAt *time.Time) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid transaction status: %s", status)
	}
	if !t.status.CanTransitionTo(status) {
		return fmt.Errorf("%w: %s -> %s", ErrTerminalTransaction, t.status, status)
	}

	changed := false
	if t.status != status {
		t.status = status
		changed = true
	}
	if expiresAt != nil {
		if t.expiresAt == nil || !t.expiresAt.Equal(*expiresAt) {
			utc := expiresAt.UTC()
			t.expiresAt = &utc
			changed = true
		}
	}
	if status == TransactionStatusRefunded && t.refundedAt == nil {
		now := time.Now().UTC()
		t.refundedAt = &now
		changed = true
	}

	if changed {
		t.updatedAt = time.Now().UTC()
		t.version++
	}
	return nil
}

// Expire marks the transaction as expired. No-op if already expired,
// error if refunded.
func (t *Transaction) Expire() error {
	if t.status == TransactionStatusExpired {
		return nil
	}
	return t.ApplyUpdate(TransactionStatusExpired, nil)
}

// GrantsAccessAt reports whether this transaction contributes entitlement
// access at the given instant. Access requires a granting status and, when
// an expiry is set, asOf strictly before the expiry.
func (t *Transaction) GrantsAccessAt(asOf time.Time) bool {
	if !t.status.GrantsAccess() {
		return false
	}
	if t.expiresAt != nil && !asOf.Before(*t.expiresAt) {
		return false
	}
	return true
}
