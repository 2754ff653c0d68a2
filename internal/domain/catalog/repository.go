package catalog

import "context"

// EntitlementRepository defines persistence operations for entitlement definitions
type EntitlementRepository interface {
	// Create creates a new entitlement definition
	Create(ctx context.Context, e *Entitlement) error

	// Update updates an existing entitlement definition
	Update(ctx context.Context, e *Entitlement) error

	// Delete deletes an entitlement definition by ID
	Delete(ctx context.Context, id uint) error

	// GetByID retrieves an entitlement definition by ID
	GetByID(ctx context.Context, id uint) (*Entitlement, error)

	// GetBySID retrieves an entitlement definition by public identifier
	GetBySID(ctx context.Context, sid string) (*Entitlement, error)

	// GetByIdentifier retrieves an entitlement definition by its stable key within an app
	GetByIdentifier(ctx context.Context, appID uint, identifier string) (*Entitlement, error)

	// ListByApp retrieves all entitlement definitions for an app
	ListByApp(ctx context.Context, appID uint) ([]*Entitlement, error)
}

// ProductRepository defines persistence operations for products
type ProductRepository interface {
	// Create creates a new product
	Create(ctx context.Context, p *Product) error

	// Update updates an existing product
	Update(ctx context.Context, p *Product) error

	// Delete deletes a product by ID
	Delete(ctx context.Context, id uint) error

	// GetByID retrieves a product by ID
	GetByID(ctx context.Context, id uint) (*Product, error)

	// GetBySID retrieves a product by public identifier
	GetBySID(ctx context.Context, sid string) (*Product, error)

	// GetByStoreIdentifier retrieves a product by its store identifier within an app
	GetByStoreIdentifier(ctx context.Context, appID uint, storeIdentifier string) (*Product, error)

	// ListByApp retrieves all products for an app
	ListByApp(ctx context.Context, appID uint) ([]*Product, error)

	// AttachEntitlement links a product to an entitlement definition.
	// Purchasing the product grants the entitlement.
	AttachEntitlement(ctx context.Context, productID, entitlementID uint) error

	// DetachEntitlement removes a product-entitlement link
	DetachEntitlement(ctx context.Context, productID, entitlementID uint) error

	// GetEntitlementIDs retrieves the entitlement definition IDs granted by a product
	GetEntitlementIDs(ctx context.Context, productID uint) ([]uint, error)

	// GetEntitlementsForProducts retrieves entitlement definitions granted by
	// any of the given products, keyed by product ID. Used by the resolver to
	// map a subscriber's transactions to entitlement identifiers in one query.
	GetEntitlementsForProducts(ctx context.Context, productIDs []uint) (map[uint][]*Entitlement, error)
}

// OfferingRepository defines persistence operations for offerings
type OfferingRepository interface {
	// Create creates a new offering
	Create(ctx context.Context, o *Offering) error

	// Update updates an existing offering
	Update(ctx context.Context, o *Offering) error

	// Delete deletes an offering by ID
	Delete(ctx context.Context, id uint) error

	// GetByIdentifier retrieves an offering by its stable key within an app
	GetByIdentifier(ctx context.Context, appID uint, identifier string) (*Offering, error)

	// GetCurrent retrieves the app's current offering
	GetCurrent(ctx context.Context, appID uint) (*Offering, error)

	// ListByApp retrieves all offerings for an app
	ListByApp(ctx context.Context, appID uint) ([]*Offering, error)

	// SetCurrent marks the given offering as current and clears the flag on others
	SetCurrent(ctx context.Context, appID, offeringID uint) error
}
