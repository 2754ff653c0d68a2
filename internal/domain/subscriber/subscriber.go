// Package subscriber provides domain models for subscribers and their
// purchase transaction ledger. The ledger is append-mostly: a transaction row
// is created when a purchase is first seen and updated in place when the
// store reports a renewal, expiry, or refund for the same store transaction.
package subscriber

import (
	"fmt"
	"time"
)

// Subscriber represents a subscriber aggregate root. AppUserID is the
// app-provided identifier; a subscriber row is created lazily the first time
// an app user ID is seen.
type Subscriber struct {
	id         uint
	sid        string // sub_xxx
	appID      uint
	appUserID  string
	lastSeenAt time.Time
	createdAt  time.Time
	updatedAt  time.Time
	version    int
}

// NewSubscriber creates a new subscriber.
func NewSubscriber(sid string, appID uint, appUserID string) (*Subscriber, error) {
	if sid == "" {
		return nil, fmt.Errorf("subscriber SID is required")
	}
	if appID == 0 {
		return nil, fmt.Errorf("app ID is required")
	}
	if appUserID == "" {
		return nil, ErrAppUserIDRequired
	}

	now := time.Now().UTC()
	return &Subscriber{
		sid:        sid,
		appID:      appID,
		appUserID:  appUserID,
		lastSeenAt: now,
		createdAt:  now,
		updatedAt:  now,
		version:    1,
	}, nil
}

// ReconstructSubscriber reconstructs a subscriber from persistence.
func ReconstructSubscriber(
	id uint,
	sid string,
	appID uint,
	appUserID string,
	lastSeenAt, createdAt, updatedAt time.Time,
	version int,
) (*Subscriber, error) {
	if id == 0 {
		return nil, fmt.Errorf("subscriber ID cannot be zero")
	}
	if appID == 0 {
		return nil, fmt.Errorf("app ID is required")
	}
	if appUserID == "" {
		return nil, ErrAppUserIDRequired
	}

	return &Subscriber{
		id:         id,
		sid:        sid,
		appID:      appID,
		appUserID:  appUserID,
		lastSeenAt: lastSeenAt,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
		version:    version,
	}, nil
}

// ID returns the subscriber ID
func (s *Subscriber) ID() uint { return s.id }

// SID returns the public identifier
func (s *Subscriber) SID() string { return s.sid }

// AppID returns the owning app ID
func (s *Subscriber) AppID() uint { return s.appID }

// AppUserID returns the app-provided user identifier
func (s *Subscriber) AppUserID() string { return s.appUserID }

// LastSeenAt returns when the subscriber was last seen
func (s *Subscriber) LastSeenAt() time.Time { return s.lastSeenAt }

// CreatedAt returns when the subscriber was created
func (s *Subscriber) CreatedAt() time.Time { return s.createdAt }

// UpdatedAt returns when the subscriber was last updated
func (s *Subscriber) UpdatedAt() time.Time { return s.updatedAt }

// Version returns the aggregate version for optimistic locking
func (s *Subscriber) Version() int { return s.version }

// SetID sets the subscriber ID (only for persistence layer use)
func (s *Subscriber) SetID(id uint) error {
	if s.id != 0 {
		return fmt.Errorf("subscriber ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("subscriber ID cannot be zero")
	}
	s.id = id
	return nil
}

// Touch records activity for the subscriber.
func (s *Subscriber) Touch() {
	now := time.Now().UTC()
	s.lastSeenAt = now
	s.updatedAt = now
	s.version++
}
