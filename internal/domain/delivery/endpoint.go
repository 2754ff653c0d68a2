// Package delivery provides domain models for webhook endpoints and the
// delivery queue. A delivery row is one (event, endpoint) pair and carries
// its own retry state; endpoints fail independently of each other.
package delivery

import (
	"fmt"
	"time"
)

// WebhookEndpoint represents a registered webhook destination aggregate root.
// Secret is used to compute the HMAC-SHA256 signature sent with every
// delivery attempt.
type WebhookEndpoint struct {
	id          uint
	sid         string // whep_xxx
	appID       uint
	url         string
	secret      string
	description string
	active      bool
	createdAt   time.Time
	updatedAt   time.Time
	version     int
}

// NewWebhookEndpoint creates a new webhook endpoint.
func NewWebhookEndpoint(sid string, appID uint, url, secret, description string) (*WebhookEndpoint, error) {
	if sid == "" {
		return nil, fmt.Errorf("endpoint SID is required")
	}
	if appID == 0 {
		return nil, fmt.Errorf("app ID is required")
	}
	if url == "" {
		return nil, ErrEndpointURLRequired
	}
	if secret == "" {
		return nil, ErrEndpointSecretRequired
	}

	now := time.Now().UTC()
	return &WebhookEndpoint{
		sid:         sid,
		appID:       appID,
		url:         url,
		secret:      secret,
		description: description,
		active:      true,
		createdAt:   now,
		updatedAt:   now,
		version:     1,
	}, nil
}

// ReconstructWebhookEndpoint reconstructs a webhook endpoint from persistence.
func ReconstructWebhookEndpoint(
	id uint,
	sid string,
	appID uint,
	url, secret, description string,
	active bool,
	createdAt, updatedAt time.Time,
	version int,
) (*WebhookEndpoint, error) {
	if id == 0 {
		return nil, fmt.Errorf("endpoint ID cannot be zero")
	}
	if appID == 0 {
		return nil, fmt.Errorf("app ID is required")
	}
	if url == "" {
		return nil, ErrEndpointURLRequired
	}
	if secret == "" {
		return nil, ErrEndpointSecretRequired
	}

	return &WebhookEndpoint{
		id:          id,
		sid:         sid,
		appID:       appID,
		url:         url,
		secret:      secret,
		description: description,
		active:      active,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
		version:     version,
	}, nil
}

// ID returns the endpoint ID
func (e *WebhookEndpoint) ID() uint { return e.id }

// SID returns the public identifier
func (e *WebhookEndpoint) SID() string { return e.sid }

// AppID returns the owning app ID
func (e *WebhookEndpoint) AppID() uint { return e.appID }

// URL returns the destination URL
func (e *WebhookEndpoint) URL() string { return e.url }

// Secret returns the signing secret
func (e *WebhookEndpoint) Secret() string { return e.secret }

// Description returns the endpoint description
func (e *WebhookEndpoint) Description() string { return e.description }

// IsActive reports whether the endpoint receives new deliveries
func (e *WebhookEndpoint) IsActive() bool { return e.active }

// CreatedAt returns when the endpoint was created
func (e *WebhookEndpoint) CreatedAt() time.Time { return e.createdAt }

// UpdatedAt returns when the endpoint was last updated
func (e *WebhookEndpoint) UpdatedAt() time.Time { return e.updatedAt }

// Version returns the aggregate version for optimistic locking
func (e *WebhookEndpoint) Version() int { return e.version }

// SetID sets the endpoint ID (only for persistence layer use)
func (e *WebhookEndpoint) SetID(id uint) error {
	if e.id != 0 {
		return fmt.Errorf("endpoint ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("endpoint ID cannot be zero")
	}
	e.id = id
	return nil
}

// Disable stops the endpoint from receiving new deliveries. In-flight
// deliveries are unaffected.
func (e *WebhookEndpoint) Disable() {
	if !e.active {
		return
	}
	e.active = false
	e.updatedAt = time.Now().UTC()
	e.version++
}

// Enable resumes delivery fan-out to the endpoint.
func (e *WebhookEndpoint) Enable() {
	if e.active {
		return
	}
	e.active = true
	e.updatedAt = time.Now().UTC()
	e.version++
}

// UpdateURL changes the destination URL.
func (e *WebhookEndpoint) UpdateURL(url string) error {
	if url == "" {
		return ErrEndpointURLRequired
	}
	if url == e.url {
		return nil
	}
	e.url = url
	e.updatedAt = time.Now().UTC()
	e.version++
	return nil
}

// RotateSecret replaces the signing secret.
func (e *WebhookEndpoint) RotateSecret(secret string) error {
	if secret == "" {
		return ErrEndpointSecretRequired
	}
	e.secret = secret
	e.updatedAt = time.Now().UTC()
	e.version++
	return nil
}
