package event

import "context"

// Repository defines persistence operations for the event log
type Repository interface {
	// Create appends a new event. Called inside the ingestion transaction so
	// the event commits atomically with the ledger write.
	Create(ctx context.Context, e *Event) error

	// GetByID retrieves an event by ID
	GetByID(ctx context.Context, id uint) (*Event, error)

	// GetBySID retrieves an event by public identifier
	GetBySID(ctx context.Context, sid string) (*Event, error)

	// ListByApp retrieves events for an app created after the given event ID,
	// oldest first, up to limit. sinceID of 0 starts from the beginning.
	ListByApp(ctx context.Context, appID uint, sinceID uint, limit int) ([]*Event, error)

	// ListPendingFanOut retrieves events that have no delivery rows yet,
	// oldest first, up to limit.
	ListPendingFanOut(ctx context.Context, limit int) ([]*Event, error)

	// MarkFannedOut stamps the fan-out time on the given events
	MarkFannedOut(ctx context.Context, ids []uint) error
}
