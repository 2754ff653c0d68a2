package app

import "context"

// Repository defines the interface for app persistence operations
type Repository interface {
	// Create creates a new app
	Create(ctx context.Context, a *App) error

	// Update updates an existing app
	Update(ctx context.Context, a *App) error

	// Delete deletes an app by ID
	Delete(ctx context.Context, id uint) error

	// GetByID retrieves an app by ID
	GetByID(ctx context.Context, id uint) (*App, error)

	// GetBySID retrieves an app by public identifier
	GetBySID(ctx context.Context, sid string) (*App, error)

	// GetByAppleBundleID retrieves an app by its Apple bundle ID.
	// Used by the unauthenticated notification intake.
	GetByAppleBundleID(ctx context.Context, bundleID string) (*App, error)

	// GetByGooglePackageName retrieves an app by its Google package name.
	// Used by the unauthenticated notification intake.
	GetByGooglePackageName(ctx context.Context, packageName string) (*App, error)

	// List retrieves apps with pagination
	List(ctx context.Context, offset, limit int) ([]*App, int64, error)
}

// APIKeyRepository defines the interface for API key persistence operations
type APIKeyRepository interface {
	// Create creates a new API key
	Create(ctx context.Context, k *APIKey) error

	// Delete deletes an API key by ID
	Delete(ctx context.Context, id uint) error

	// GetBySID retrieves an API key by public identifier
	GetBySID(ctx context.Context, sid string) (*APIKey, error)

	// GetByHash retrieves an API key by its key hash.
	// Used on the authentication path.
	GetByHash(ctx context.Context, keyHash string) (*APIKey, error)

	// ListByApp retrieves all API keys for an app
	ListByApp(ctx context.Context, appID uint) ([]*APIKey, error)

	// UpdateLastUsed records the last authentication time for a key
	UpdateLastUsed(ctx context.Context, id uint) error
}
