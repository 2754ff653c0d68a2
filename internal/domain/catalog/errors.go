package catalog

import "errors"

var (
	// ErrEntitlementNotFound is returned when an entitlement definition is not found
	ErrEntitlementNotFound = errors.New("entitlement not found")

	// ErrProductNotFound is returned when a product is not found
	ErrProductNotFound = errors.New("product not found")

	// ErrOfferingNotFound is returned when an offering is not found
	ErrOfferingNotFound = errors.New("offering not found")

	// ErrIdentifierRequired is returned when an identifier is missing
	ErrIdentifierRequired = errors.New("identifier is required")

	// ErrStoreIdentifierRequired is returned when a store identifier is missing
	ErrStoreIdentifierRequired = errors.New("store identifier is required")

	// ErrDuplicateIdentifier is returned when an identifier already exists within the app
	ErrDuplicateIdentifier = errors.New("identifier already exists")

	// ErrMappingExists is returned when a product-entitlement mapping already exists
	ErrMappingExists = errors.New("product entitlement mapping already exists")
)
