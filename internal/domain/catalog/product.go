package catalog

import (
	"fmt"
	"time"
)

// Product represents a purchasable store product aggregate root.
// StoreIdentifier is the identifier used by the platform store
// (App Store product ID or Play Store SKU).
type Product struct {
	id              uint
	sid             string // prod_xxx
	appID           uint
	storeIdentifier string
	displayName     string
	productType     ProductType
	durationDays    int // 0 for non-subscription products
	createdAt       time.Time
	updatedAt       time.Time
	version         int
}

// NewProduct creates a new product.
func NewProduct(
	sid string,
	appID uint,
	storeIdentifier, displayName string,
	productType ProductType,
	durationDays int,
) (*Product, error) {
	if sid == "" {
		return nil, fmt.Errorf("product SID is required")
	}
	if appID == 0 {
		return nil, fmt.Errorf("app ID is required")
	}
	if storeIdentifier == "" {
		return nil, ErrStoreIdentifierRequired
	}
	if !productType.IsValid() {
		return nil, fmt.Errorf("invalid product type: %s", productType)
	}
	if durationDays < 0 {
		return nil, fmt.Errorf("duration days cannot be negative")
	}

	now := time.Now().UTC()
	return &Product{
		sid:             sid,
		appID:           appID,
		storeIdentifier: storeIdentifier,
		displayName:     displayName,
		productType:     productType,
		durationDays:    durationDays,
		createdAt:       now,
		updatedAt:       now,
		version:         1,
	}, nil
}

// ReconstructProduct reconstructs a product from persistence.
func ReconstructProduct(
	id uint,
	sid string,
	appID uint,
	storeIdentifier, displayName string,
	productType ProductType,
	durationDays int,
	createdAt, updatedAt time.Time,
	version int,
) (*Product, error) {
	if id == 0 {
		return nil, fmt.Errorf("product ID cannot be zero")
	}
	if appID == 0 {
		return nil, fmt.Errorf("app ID is required")
	}
	if storeIdentifier == "" {
		return nil, ErrStoreIdentifierRequired
	}
	if !productType.IsValid() {
		return nil, fmt.Errorf("invalid product type: %s", productType)
	}

	return &Product{
		id:              id,
		sid:             sid,
		appID:           appID,
		storeIdentifier: storeIdentifier,
		displayName:     displayName,
		productType:     productType,
		durationDays:    durationDays,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
		version:         version,
	}, nil
}

// ID returns the product ID
func (p *Product) ID() uint { return p.id }

// SID returns the public identifier
func (p *Product) SID() string { return p.sid }

// AppID returns the owning app ID
func (p *Product) AppID() uint { return p.appID }

// StoreIdentifier returns the platform store identifier
func (p *Product) StoreIdentifier() string { return p.storeIdentifier }

// DisplayName returns the human-readable name
func (p *Product) DisplayName() string { return p.displayName }

// ProductType returns the product type
func (p *Product) ProductType() ProductType { return p.productType }

// DurationDays returns the subscription period length in days (0 if not applicable)
func (p *Product) DurationDays() int { return p.durationDays }

// CreatedAt returns when the product was created
func (p *Product) CreatedAt() time.Time { return p.createdAt }

// UpdatedAt returns when the product was last updated
func (p *Product) UpdatedAt() time.Time { return p.updatedAt }

// Version returns the aggregate version for optimistic locking
func (p *Product) Version() int { return p.version }

// SetID sets the product ID (only for persistence layer use)
func (p *Product) SetID(id uint) error {
	if p.id != 0 {
		return fmt.Errorf("product ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("product ID cannot be zero")
	}
	p.id = id
	return nil
}

// UpdateDisplayName changes the display name.
func (p *Product) UpdateDisplayName(displayName string) {
	if displayName == p.displayName {
		return
	}
	p.displayName = displayName
	p.updatedAt = time.Now().UTC()
	p.version++
}
