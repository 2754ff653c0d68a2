package delivery

import (
	"context"
	"time"
)

// EndpointRepository defines persistence operations for webhook endpoints
type EndpointRepository interface {
	// Create creates a new webhook endpoint
	Create(ctx context.Context, e *WebhookEndpoint) error

	// Update updates an existing webhook endpoint
	Update(ctx context.Context, e *WebhookEndpoint) error

	// Delete deletes a webhook endpoint by ID
	Delete(ctx context.Context, id uint) error

	// GetByID retrieves a webhook endpoint by ID
	GetByID(ctx context.Context, id uint) (*WebhookEndpoint, error)

	// GetBySID retrieves a webhook endpoint by public identifier
	GetBySID(ctx context.Context, sid string) (*WebhookEndpoint, error)

	// ListByApp retrieves all webhook endpoints for an app
	ListByApp(ctx context.Context, appID uint) ([]*WebhookEndpoint, error)

	// ListActiveByApp retrieves active webhook endpoints for an app.
	// Used by fan-out.
	ListActiveByApp(ctx context.Context, appID uint) ([]*WebhookEndpoint, error)
}

// Repository defines persistence operations for webhook deliveries
type Repository interface {
	// Create creates a new delivery
	Create(ctx context.Context, d *WebhookDelivery) error

	// BatchCreate creates multiple deliveries. Used by fan-out so one event's
	// delivery rows commit together.
	BatchCreate(ctx context.Context, ds []*WebhookDelivery) error

	// Update updates an existing delivery
	Update(ctx context.Context, d *WebhookDelivery) error

	// GetByID retrieves a delivery by ID
	GetByID(ctx context.Context, id uint) (*WebhookDelivery, error)

	// GetBySID retrieves a delivery by public identifier
	GetBySID(ctx context.Context, sid string) (*WebhookDelivery, error)

	// ListByEndpoint retrieves deliveries for an endpoint with pagination,
	// optionally filtered by status (empty status means all)
	ListByEndpoint(ctx context.Context, endpointID uint, status Status, offset, limit int) ([]*WebhookDelivery, int64, error)

	// ListByEvent retrieves all deliveries for an event
	ListByEvent(ctx context.Context, eventID uint) ([]*WebhookDelivery, error)

	// ClaimDue atomically claims up to limit due deliveries for dispatch,
	// setting their lease to now+lease. A delivery is due when it is pending,
	// its next retry time has passed, and any previous lease has expired.
	// Claimed deliveries are invisible to other workers until the lease runs
	// out, so a crashed worker's claims return to the pool by themselves.
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*WebhookDelivery, error)

	// ExtendLease extends the lease on a claimed delivery. Used by dispatch
	// attempts that outlive the original lease.
	ExtendLease(ctx context.Context, id uint, until time.Time) error

	// CountByStatus returns delivery counts grouped by status for an app.
	// Used for operator digests.
	CountByStatus(ctx context.Context, appID uint) (map[Status]int64, error)
}
