// Package catalog provides domain models for the product catalog: entitlement
// definitions, store products, the product-to-entitlement mapping, and
// offerings. An entitlement here is a definition ("premium"), not a grant;
// grants are computed from transactions by the resolver.
package catalog

import (
	"fmt"
	"time"
)

// Entitlement represents an entitlement definition aggregate root.
type Entitlement struct {
	id          uint
	sid         string // ent_xxx
	appID       uint
	identifier  string // stable key used by clients, e.g. "premium"
	displayName string
	createdAt   time.Time
	updatedAt   time.Time
	version     int
}

// NewEntitlement creates a new entitlement definition.
func NewEntitlement(sid string, appID uint, identifier, displayName string) (*Entitlement, error) {
	if sid == "" {
		return nil, fmt.Errorf("entitlement SID is required")
	}
	if appID == 0 {
		return nil, fmt.Errorf("app ID is required")
	}
	if identifier == "" {
		return nil, ErrIdentifierRequired
	}

	now := time.Now().UTC()
	return &Entitlement{
		sid:         sid,
		appID:       appID,
		identifier:  identifier,
		displayName: displayName,
		createdAt:   now,
		updatedAt:   now,
		version:     1,
	}, nil
}

// ReconstructEntitlement reconstructs an entitlement definition from persistence.
func ReconstructEntitlement(
	id uint,
	sid string,
	appID uint,
	identifier, displayName string,
	createdAt, updatedAt time.Time,
	version int,
) (*Entitlement, error) {
	if id == 0 {
		return nil, fmt.Errorf("entitlement ID cannot be zero")
	}
	if appID == 0 {
		return nil, fmt.Errorf("app ID is required")
	}
	if identifier == "" {
		return nil, ErrIdentifierRequired
	}

	return &Entitlement{
		id:          id,
		sid:         sid,
		appID:       appID,
		identifier:  identifier,
		displayName: displayName,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
		version:     version,
	}, nil
}

// ID returns the entitlement ID
func (e *Entitlement) ID() uint { return e.id }

// SID returns the public identifier
func (e *Entitlement) SID() string { return e.sid }

// AppID returns the owning app ID
func (e *Entitlement) AppID() uint { return e.appID }

// Identifier returns the stable entitlement key
func (e *Entitlement) Identifier() string { return e.identifier }

// DisplayName returns the human-readable name
func (e *Entitlement) DisplayName() string { return e.displayName }

// CreatedAt returns when the entitlement was created
func (e *Entitlement) CreatedAt() time.Time { return e.createdAt }

// UpdatedAt returns when the entitlement was last updated
func (e *Entitlement) UpdatedAt() time.Time { return e.updatedAt }

// Version returns the aggregate version for optimistic locking
func (e *Entitlement) Version() int { return e.version }

// SetID sets the entitlement ID (only for persistence layer use)
func (e *Entitlement) SetID(id uint) error {
	if e.id != 0 {
		return fmt.Errorf("entitlement ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("entitlement ID cannot be zero")
	}
	e.id = id
	return nil
}

// UpdateDisplayName changes the display name.
func (e *Entitlement) UpdateDisplayName(displayName string) {
	if displayName == e.displayName {
		return
	}
	e.displayName = displayName
	e.updatedAt = time.Now().UTC()
	e.version++
}
