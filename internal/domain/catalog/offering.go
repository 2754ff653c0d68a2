package catalog

import (
	"fmt"
	"time"
)

// Offering represents a named group of products presented to clients
// together, e.g. a paywall configuration.
type Offering struct {
	id          uint
	appID       uint
	identifier  string
	displayName string
	isCurrent   bool
	productIDs  []uint
	createdAt   time.Time
	updatedAt   time.Time
	version     int
}

// NewOffering creates a new offering.
func NewOffering(appID uint, identifier, displayName string, productIDs []uint) (*Offering, error) {
	if appID == 0 {
		return nil, fmt.Errorf("app ID is required")
	}
	if identifier == "" {
		return nil, ErrIdentifierRequired
	}

	now := time.Now().UTC()
	return &Offering{
		appID:       appID,
		identifier:  identifier,
		displayName: displayName,
		productIDs:  productIDs,
		createdAt:   now,
		updatedAt:   now,
		version:     1,
	}, nil
}

// ReconstructOffering reconstructs an offering from persistence.
func ReconstructOffering(
	id uint,
	appID uint,
	identifier, displayName string,
	isCurrent bool,
	productIDs []uint,
	createdAt, updatedAt time.Time,
	version int,
) (*Offering, error) {
	if id == 0 {
		return nil, fmt.Errorf("offering ID cannot be zero")
	}
	if appID == 0 {
		return nil, fmt.Errorf("app ID is required")
	}
	if identifier == "" {
		return nil, ErrIdentifierRequired
	}

	return &Offering{
		id:          id,
		appID:       appID,
		identifier:  identifier,
		displayName: displayName,
		isCurrent:   isCurrent,
		productIDs:  productIDs,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
		version:     version,
	}, nil
}

// ID returns the offering ID
func (o *Offering) ID() uint { return o.id }

// AppID returns the owning app ID
func (o *Offering) AppID() uint { return o.appID }

// Identifier returns the stable offering key
func (o *Offering) Identifier() string { return o.identifier }

// DisplayName returns the human-readable name
func (o *Offering) DisplayName() string { return o.displayName }

// IsCurrent reports whether this is the app's current offering
func (o *Offering) IsCurrent() bool { return o.isCurrent }

// ProductIDs returns the IDs of products in this offering
func (o *Offering) ProductIDs() []uint { return o.productIDs }

// CreatedAt returns when the offering was created
func (o *Offering) CreatedAt() time.Time { return o.createdAt }

// UpdatedAt returns when the offering was last updated
func (o *Offering) UpdatedAt() time.Time { return o.updatedAt }

// Version returns the aggregate version for optimistic locking
func (o *Offering) Version() int { return o.version }

// SetID sets the offering ID (only for persistence layer use)
func (o *Offering) SetID(id uint) error {
	if o.id != 0 {
		return fmt.Errorf("offering ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("offering ID cannot be zero")
	}
	o.id = id
	return nil
}

// Rename changes the display name.
func (o *Offering) Rename(displayName string) {
	if displayName == o.displayName {
		return
	}
	o.displayName = displayName
	o.updatedAt = time.Now().UTC()
	o.version++
}

// ReplaceProducts swaps the offering's product list wholesale.
func (o *Offering) ReplaceProducts(productIDs []uint) {
	o.productIDs = productIDs
	o.updatedAt = time.Now().UTC()
	o.version++
}

// MarkCurrent flags this offering as the app's current offering.
func (o *Offering) MarkCurrent() {
	if o.isCurrent {
		return
	}
	o.isCurrent = true
	o.updatedAt = time.Now().UTC()
	o.version++
}

// UnmarkCurrent clears the current flag.
func (o *Offering) UnmarkCurrent() {
	if !o.isCurrent {
		return
	}
	o.isCurrent = false
	o.updatedAt = time.Now().UTC()
	o.version++
}
