package delivery

import (
	"fmt"
	"time"
)

// DefaultMaxAttempts is the attempt budget before a delivery is dead-lettered.
const DefaultMaxAttempts = 10

// WebhookDelivery represents one delivery of one event to one endpoint.
// Attempts counts every attempt made, including the successful one.
// NextRetryAt schedules the next attempt; LockedUntil is the dispatcher
// claim lease preventing double dispatch across workers.
type WebhookDelivery struct {
	id             uint
	sid            string // whd_xxx
	endpointID     uint
	eventID        uint
	status         Status
	attempts       int
	nextRetryAt    *time.Time
	lockedUntil    *time.Time
	lastError      string
	lastStatusCode int
	deliveredAt    *time.Time
	createdAt      time.Time
	updatedAt      time.Time
	version        int
}

// NewWebhookDelivery creates a pending delivery due immediately.
func NewWebhookDelivery(sid string, endpointID, eventID uint) (*WebhookDelivery, error) {
	if sid == "" {
		return nil, fmt.Errorf("delivery SID is required")
	}
	if endpointID == 0 {
		return nil, fmt.Errorf("endpoint ID is required")
	}
	if eventID == 0 {
		return nil, fmt.Errorf("event ID is required")
	}

	now := time.Now().UTC()
	return &WebhookDelivery{
		sid:         sid,
		endpointID:  endpointID,
		eventID:     eventID,
		status:      StatusPending,
		nextRetryAt: &now,
		createdAt:   now,
		updatedAt:   now,
		version:     1,
	}, nil
}

// ReconstructWebhookDelivery reconstructs a delivery from persistence.
func ReconstructWebhookDelivery(
	id uint,
	sid string,
	endpointID, eventID uint,
	status Status,
	attempts int,
	nextRetryAt, lockedUntil *time.Time,
	lastError string,
	lastStatusCode int,
	deliveredAt *time.Time,
	createdAt, updatedAt time.Time,
	version int,
) (*WebhookDelivery, error) {
	if id == 0 {
		return nil, fmt.Errorf("delivery ID cannot be zero")
	}
	if endpointID == 0 {
		return nil, fmt.Errorf("endpoint ID is required")
	}
	if eventID == 0 {
		return nil, fmt.Errorf("event ID is required")
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid delivery status: %s", status)
	}
	if attempts < 0 {
		return nil, fmt.Errorf("attempts cannot be negative")
	}

	return &WebhookDelivery{
		id:             id,
		sid:            sid,
		endpointID:     endpointID,
		eventID:        eventID,
		status:         status,
		attempts:       attempts,
		nextRetryAt:    nextRetryAt,
		lockedUntil:    lockedUntil,
		lastError:      lastError,
		lastStatusCode: lastStatusCode,
		deliveredAt:    deliveredAt,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
		version:        version,
	}, nil
}

// ID returns the delivery ID
func (d *WebhookDelivery) ID() uint { return d.id }

// SID returns the public identifier
func (d *WebhookDelivery) SID() string { return d.sid }

// EndpointID returns the destination endpoint ID
func (d *WebhookDelivery) EndpointID() uint { return d.endpointID }

// EventID returns the event being delivered
func (d *WebhookDelivery) EventID() uint { return d.eventID }

// Status returns the delivery status
func (d *WebhookDelivery) Status() Status { return d.status }

// Attempts returns the number of attempts made so far
func (d *WebhookDelivery) Attempts() int { return d.attempts }

// NextRetryAt returns when the next attempt is due
func (d *WebhookDelivery) NextRetryAt() *time.Time { return d.nextRetryAt }

// LockedUntil returns the dispatcher claim lease expiry
func (d *WebhookDelivery) LockedUntil() *time.Time { return d.lockedUntil }

// LastError returns the failure reason of the most recent attempt
func (d *WebhookDelivery) LastError() string { return d.lastError }

// LastStatusCode returns the HTTP status of the most recent attempt (0 if none)
func (d *WebhookDelivery) LastStatusCode() int { return d.lastStatusCode }

// DeliveredAt returns when the delivery succeeded
func (d *WebhookDelivery) DeliveredAt() *time.Time { return d.deliveredAt }

// CreatedAt returns when the delivery was created
func (d *WebhookDelivery) CreatedAt() time.Time { return d.createdAt }

// UpdatedAt returns when the delivery was last updated
func (d *WebhookDelivery) UpdatedAt() time.Time { return d.updatedAt }

// Version returns the aggregate version for optimistic locking
func (d *WebhookDelivery) Version() int { return d.version }

// SetID sets the delivery ID (only for persistence layer use)
func (d *WebhookDelivery) SetID(id uint) error {
	if d.id != 0 {
		return fmt.Errorf("delivery ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("delivery ID cannot be zero")
	}
	d.id = id
	return nil
}

// MarkDelivered records a successful attempt. The success counts toward
// attempts.
func (d *WebhookDelivery) MarkDelivered(statusCode int) error {
	if d.status == StatusDelivered {
		return nil
	}
	if d.status == StatusDeadLetter {
		return fmt.Errorf("%w: cannot deliver dead-lettered delivery", ErrTerminalDelivery)
	}

	now := time.Now().UTC()
	d.status = StatusDelivered
	d.attempts++
	d.lastStatusCode = statusCode
	d.lastError = ""
	d.nextRetryAt = nil
	d.lockedUntil = nil
	d.deliveredAt = &now
	d.updatedAt = now
	d.version++
	return nil
}

// RecordFailure records a failed attempt. The delivery is rescheduled with
// exponential backoff, or dead-lettered once the attempt budget is spent.
// Returns true if the delivery was dead-lettered by this failure.
func (d *WebhookDelivery) RecordFailure(statusCode int, errMsg string, policy BackoffPolicy, maxAttempts int) (bool, error) {
	if d.status.IsTerminal() {
		return false, fmt.Errorf("%w: cannot fail %s delivery", ErrTerminalDelivery, d.status)
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	now := time.Now().UTC()
	d.attempts++
	d.lastStatusCode = statusCode
	d.lastError = errMsg
	d.lockedUntil = nil
	d.updatedAt = now
	d.version++

	if d.attempts >= maxAttempts {
		d.status = StatusDeadLetter
		d.nextRetryAt = nil
		return true, nil
	}

	next := now.Add(policy.Delay(d.attempts))
	d.nextRetryAt = &next
	return false, nil
}

// Replay resets a dead-lettered delivery back to pending with a fresh
// attempt budget, due immediately.
func (d *WebhookDelivery) Replay() error {
	if d.status != StatusDeadLetter {
		return ErrNotDeadLettered
	}

	now := time.Now().UTC()
	d.status = StatusPending
	d.attempts = 0
	d.lastError = ""
	d.lastStatusCode = 0
	d.nextRetryAt = &now
	d.lockedUntil = nil
	d.updatedAt = now
	d.version++
	return nil
}

// IsDue reports whether the delivery is due for dispatch at the given
// instant: pending, retry time reached, and not claimed by a live lease.
func (d *WebhookDelivery) IsDue(asOf time.Time) bool {
	if d.status != StatusPending {
		return false
	}
	if d.nextRetryAt == nil || d.nextRetryAt.After(asOf) {
		return false
	}
	if d.lockedUntil != nil && d.lockedUntil.After(asOf) {
		return false
	}
	return true
}
