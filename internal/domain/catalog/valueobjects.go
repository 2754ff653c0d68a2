package catalog

// ProductType represents the purchase model of a product
type ProductType string

const (
	// ProductTypeSubscription represents an auto-renewing subscription
	ProductTypeSubscription ProductType = "subscription"
	// ProductTypeNonConsumable represents a one-time permanent purchase
	ProductTypeNonConsumable ProductType = "non_consumable"
	// ProductTypeConsumable represents a consumable purchase
	ProductTypeConsumable ProductType = "consumable"
)

// IsValid checks if the product type is valid
func (pt ProductType) IsValid() bool {
	switch pt {
	case ProductTypeSubscription, ProductTypeNonConsumable, ProductTypeConsumable:
		return true
	default:
		return false
	}
}

// String returns the string representation of the product type
func (pt ProductType) String() string {
	return string(pt)
}

// GrantsTimeUnlimited reports whether a purchase of this product type grants
// entitlements without an expiry.
func (pt ProductType) GrantsTimeUnlimited() bool {
	return pt == ProductTypeNonConsumable
}
