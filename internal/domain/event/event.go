// Package event provides the domain model for the append-only event log.
// Events are recorded in the same database transaction as the state change
// they describe, then fanned out to webhook endpoints by a background sweep.
package event

import (
	"fmt"
	"time"
)

// Event represents a recorded domain event. Events are immutable once
// written; FannedOutAt is the only field that changes, marking that delivery
// rows have been created for all matching endpoints.
type Event struct {
	id           uint
	sid          string // evt_xxx
	appID        uint
	subscriberID uint
	eventType    Type
	payload      map[string]any
	fannedOutAt  *time.Time
	createdAt    time.Time
}

// NewEvent creates a new event.
func NewEvent(sid string, appID, subscriberID uint, eventType Type, payload map[string]any) (*Event, error) {
	if sid == "" {
		return nil, fmt.Errorf("event SID is required")
	}
	if appID == 0 {
		return nil, fmt.Errorf("app ID is required")
	}
	if subscriberID == 0 {
		return nil, fmt.Errorf("subscriber ID is required")
	}
	if !eventType.IsValid() {
		return nil, fmt.Errorf("invalid event type: %s", eventType)
	}
	if payload == nil {
		payload = make(map[string]any)
	}

	return &Event{
		sid:          sid,
		appID:        appID,
		subscriberID: subscriberID,
		eventType:    eventType,
		payload:      payload,
		createdAt:    time.Now().UTC(),
	}, nil
}

// ReconstructEvent reconstructs an event from persistence.
func ReconstructEvent(
	id uint,
	sid string,
	appID, subscriberID uint,
	eventType Type,
	payload map[string]any,
	fannedOutAt *time.Time,
	createdAt time.Time,
) (*Event, error) {
	if id == 0 {
		return nil, fmt.Errorf("event ID cannot be zero")
	}
	if appID == 0 {
		return nil, fmt.Errorf("app ID is required")
	}
	if !eventType.IsValid() {
		return nil, fmt.Errorf("invalid event type: %s", eventType)
	}
	if payload == nil {
		payload = make(map[string]any)
	}

	return &Event{
		id:           id,
		sid:          sid,
		appID:        appID,
		subscriberID: subscriberID,
		eventType:    eventType,
		payload:      payload,
		fannedOutAt:  fannedOutAt,
		createdAt:    createdAt,
	}, nil
}

// ID returns the event ID
func (e *Event) ID() uint { return e.id }

// SID returns the public identifier
func (e *Event) SID() string { return e.sid }

// AppID returns the owning app ID
func (e *Event) AppID() uint { return e.appID }

// SubscriberID returns the subscriber the event concerns
func (e *Event) SubscriberID() uint { return e.subscriberID }

// Type returns the event type
func (e *Event) Type() Type { return e.eventType }

// Payload returns the event payload
func (e *Event) Payload() map[string]any { return e.payload }

// FannedOutAt returns when delivery rows were created for this event
func (e *Event) FannedOutAt() *time.Time { return e.fannedOutAt }

// CreatedAt returns when the event was recorded
func (e *Event) CreatedAt() time.Time { return e.createdAt }

// SetID sets the event ID (only for persistence layer use)
func (e *Event) SetID(id uint) error {
	if e.id != 0 {
		return fmt.Errorf("event ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("event ID cannot be zero")
	}
	e.id = id
	return nil
}

// MarkFannedOut records that delivery rows exist for every matching endpoint.
func (e *Event) MarkFannedOut() {
	if e.fannedOutAt != nil {
		return
	}
	now := time.Now().UTC()
	e.fannedOutAt = &now
}
