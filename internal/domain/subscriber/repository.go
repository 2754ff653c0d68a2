package subscriber

import (
	"context"
	"time"
)

// Repository defines persistence operations for subscribers
type Repository interface {
	// Create creates a new subscriber
	Create(ctx context.Context, s *Subscriber) error

	// Update updates an existing subscriber
	Update(ctx context.Context, s *Subscriber) error

	// GetByID retrieves a subscriber by ID
	GetByID(ctx context.Context, id uint) (*Subscriber, error)

	// GetBySID retrieves a subscriber by public identifier
	GetBySID(ctx context.Context, sid string) (*Subscriber, error)

	// GetByAppUserID retrieves a subscriber by app user ID within an app
	GetByAppUserID(ctx context.Context, appID uint, appUserID string) (*Subscriber, error)

	// ListByApp retrieves subscribers for an app with pagination
	ListByApp(ctx context.Context, appID uint, offset, limit int) ([]*Subscriber, int64, error)
}

// TransactionRepository defines persistence operations for the transaction ledger
type TransactionRepository interface {
	// Create creates a new transaction
	Create(ctx context.Context, t *Transaction) error

	// Update updates an existing transaction
	Update(ctx context.Context, t *Transaction) error

	// GetByID retrieves a transaction by ID
	GetByID(ctx context.Context, id uint) (*Transaction, error)

	// GetBySID retrieves a transaction by public identifier
	GetBySID(ctx context.Context, sid string) (*Transaction, error)

	// GetByStoreTransactionID retrieves a transaction by its idempotency key
	GetByStoreTransactionID(ctx context.Context, appID uint, store Store, storeTransactionID string) (*Transaction, error)

	// ListBySubscriber retrieves all transactions for a subscriber
	ListBySubscriber(ctx context.Context, subscriberID uint) ([]*Transaction, error)

	// ListExpiredGranting retrieves transactions whose status still grants
	// access but whose expiry has passed. Used by the expiry sweep.
	ListExpiredGranting(ctx context.Context, asOf time.Time, limit int) ([]*Transaction, error)
}
