package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/opencat-io/opencat/internal/domain/app"
	"github.com/opencat-io/opencat/internal/infrastructure/persistence/models"
	"github.com/opencat-io/opencat/internal/shared/db"
	"github.com/opencat-io/opencat/internal/shared/errors"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

// APIKeyRepositoryImpl implements the app.APIKeyRepository interface
type APIKeyRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewAPIKeyRepository creates a new API key repository instance
func NewAPIKeyRepository(database *gorm.DB, logger logger.Interface) app.APIKeyRepository {
	return &APIKeyRepositoryImpl{
		db:     database,
		logger: logger,
	}
}

func (r *APIKeyRepositoryImpl) tx(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

func (r *APIKeyRepositoryImpl) toDomain(model *models.APIKeyModel) (*app.APIKey, error) {
	return app.ReconstructAPIKey(
		model.ID,
		model.SID,
		model.AppID,
		model.Name,
		model.KeyHash,
		model.LastUsedAt,
		model.CreatedAt,
	)
}

// Create creates a new API key
func (r *APIKeyRepositoryImpl) Create(ctx context.Context, k *app.APIKey) error {
	model := &models.APIKeyModel{
		SID:       k.SID(),
		AppID:     k.AppID(),
		Name:      k.Name(),
		KeyHash:   k.KeyHash(),
		CreatedAt: k.CreatedAt(),
	}

	if err := r.tx(ctx).Create(model).Error; err != nil {
		if errors.IsDuplicateError(err) {
			return errors.NewConflictError("API key already exists")
		}
		r.logger.Errorw("failed to create API key", "app_id", k.AppID(), "error", err)
		return fmt.Errorf("failed to create API key: %w", err)
	}

	if err := k.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set API key ID: %w", err)
	}

	r.logger.Infow("API key created", "id", model.ID, "sid", model.SID, "app_id", model.AppID)
	return nil
}

// Delete deletes an API key by ID
func (r *APIKeyRepositoryImpl) Delete(ctx context.Context, id uint) error {
	result := r.tx(ctx).Delete(&models.APIKeyModel{}, id)
	if result.Error != nil {
		r.logger.Errorw("failed to delete API key", "id", id, "error", result.Error)
		return fmt.Errorf("failed to delete API key: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("API key not found")
	}

	r.logger.Infow("API key deleted", "id", id)
	return nil
}

// GetBySID retrieves an API key by public identifier
func (r *APIKeyRepositoryImpl) GetBySID(ctx context.Context, sid string) (*app.APIKey, error) {
	var model models.APIKeyModel
	if err := r.tx(ctx).Where("sid = ?", sid).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("API key not found")
		}
		return nil, fmt.Errorf("failed to get API key: %w", err)
	}

	return r.toDomain(&model)
}

// GetByHash retrieves an API key by its key hash
func (r *APIKeyRepositoryImpl) GetByHash(ctx context.Context, keyHash string) (*app.APIKey, error) {
	var model models.APIKeyModel
	if err := r.tx(ctx).Where("key_hash = ?", keyHash).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewUnauthorizedError("invalid API key")
		}
		r.logger.Errorw("failed to get API key by hash", "error", err)
		return nil, fmt.Errorf("failed to get API key: %w", err)
	}

	return r.toDomain(&model)
}

// ListByApp retrieves all API keys for an app
func (r *APIKeyRepositoryImpl) ListByApp(ctx context.Context, appID uint) ([]*app.APIKey, error) {
	var keyModels []models.APIKeyModel
	if err := r.tx(ctx).Where("app_id = ?", appID).Order("id").Find(&keyModels).Error; err != nil {
		r.logger.Errorw("failed to list API keys", "app_id", appID, "error", err)
		return nil, fmt.Errorf("failed to list API keys: %w", err)
	}

	keys := make([]*app.APIKey, len(keyModels))
	for i := range keyModels {
		k, err := r.toDomain(&keyModels[i])
		if err != nil {
			return nil, fmt.Errorf("failed to reconstruct API key: %w", err)
		}
		keys[i] = k
	}

	return keys, nil
}

// UpdateLastUsed records the last authentication time for a key.
// Best-effort on the hot path, so no optimistic locking here.
func (r *APIKeyRepositoryImpl) UpdateLastUsed(ctx context.Context, id uint) error {
	if err := r.tx(ctx).Model(&models.APIKeyModel{}).
		Where("id = ?", id).
		Update("last_used_at", time.Now().UTC()).Error; err != nil {
		return fmt.Errorf("failed to update API key last used: %w", err)
	}
	return nil
}
