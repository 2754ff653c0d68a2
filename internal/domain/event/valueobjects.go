package event

// Type represents the kind of domain event
type Type string

const (
	// TypeTransactionIngested is emitted for every accepted transaction write
	TypeTransactionIngested Type = "transaction.ingested"
	// TypeEntitlementChanged is emitted when a subscriber's resolved
	// entitlement set changed as a result of a write or an expiry
	TypeEntitlementChanged Type = "entitlement.changed"
)

// IsValid checks if the event type is valid
func (t Type) IsValid() bool {
	switch t {
	case TypeTransactionIngested, TypeEntitlementChanged:
		return true
	default:
		return false
	}
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}
