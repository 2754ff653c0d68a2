package subscriber

// Store represents the platform store a transaction originated from
type Store string

const (
	// StoreApple represents the Apple App Store
	StoreApple Store = "apple"
	// StoreGoogle represents the Google Play Store
	StoreGoogle Store = "google"
	// StoreStripe represents Stripe web purchases
	StoreStripe Store = "stripe"
	// StorePromotional represents promotional grants issued by the operator
	StorePromotional Store = "promotional"
)

// IsValid checks if the store is valid
func (s Store) IsValid() bool {
	switch s {
	case StoreApple, StoreGoogle, StoreStripe, StorePromotional:
		return true
	default:
		return false
	}
}

// String returns the string representation of the store
func (s Store) String() string {
	return string(s)
}

// Environment represents the store environment a transaction was made in
type Environment string

const (
	// EnvironmentProduction represents production purchases
	EnvironmentProduction Environment = "production"
	// EnvironmentSandbox represents sandbox/test purchases
	EnvironmentSandbox Environment = "sandbox"
)

// IsValid checks if the environment is valid
func (e Environment) IsValid() bool {
	switch e {
	case EnvironmentProduction, EnvironmentSandbox:
		return true
	default:
		return false
	}
}

// String returns the string representation of the environment
func (e Environment) String() string {
	return string(e)
}

// TransactionStatus represents the lifecycle state of a transaction
type TransactionStatus string

const (
	// TransactionStatusActive represents a paid, currently valid transaction
	TransactionStatusActive TransactionStatus = "active"
	// TransactionStatusExpired represents a transaction past its expiry
	TransactionStatusExpired TransactionStatus = "expired"
	// TransactionStatusRefunded represents a refunded transaction. Terminal.
	TransactionStatusRefunded TransactionStatus = "refunded"
	// TransactionStatusGracePeriod represents a billing issue within the store grace period.
	// The subscriber keeps access while the store retries payment.
	TransactionStatusGracePeriod TransactionStatus = "grace_period"
	// TransactionStatusBillingRetry represents a billing issue the store is
	// still retrying. Access provisionally continues, like grace_period.
	TransactionStatusBillingRetry TransactionStatus = "billing_retry"
)

// IsValid checks if the transaction status is valid
func (ts TransactionStatus) IsValid() bool {
	switch ts {
	case TransactionStatusActive, TransactionStatusExpired, TransactionStatusRefunded,
		TransactionStatusGracePeriod, TransactionStatusBillingRetry:
		return true
	default:
		return false
	}
}

// String returns the string representation of the transaction status
func (ts TransactionStatus) String() string {
	return string(ts)
}

// IsTerminal reports whether no further transitions are allowed from this status.
func (ts TransactionStatus) IsTerminal() bool {
	return ts == TransactionStatusRefunded || ts == TransactionStatusExpired
}

// GrantsAccess reports whether a transaction in this status contributes to
// the subscriber's entitlements (subject to expiry checks).
func (ts TransactionStatus) GrantsAccess() bool {
	switch ts {
	case TransactionStatusActive, TransactionStatusGracePeriod, TransactionStatusBillingRetry:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks whether a transition to the target status is allowed.
func (ts TransactionStatus) CanTransitionTo(target TransactionStatus) bool {
	if !target.IsValid() {
		return false
	}
	if ts == target {
		return true
	}
	if ts.IsTerminal() {
		return false
	}
	// Any move between non-terminal states is a normal lifecycle change
	// reported by the store; refund and expiry are reachable from all of them.
	return true
}
