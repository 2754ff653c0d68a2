package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/opencat-io/opencat/internal/domain/delivery"
	"github.com/opencat-io/opencat/internal/infrastructure/persistence/models"
	"github.com/opencat-io/opencat/internal/shared/db"
	"github.com/opencat-io/opencat/internal/shared/errors"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

// WebhookEndpointRepositoryImpl implements the delivery.EndpointRepository interface
type WebhookEndpointRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewWebhookEndpointRepository creates a new webhook endpoint repository instance
func NewWebhookEndpointRepository(database *gorm.DB, logger logger.Interface) delivery.EndpointRepository {
	return &WebhookEndpointRepositoryImpl{
		db:     database,
		logger: logger,
	}
}

func (r *WebhookEndpointRepositoryImpl) tx(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

func (r *WebhookEndpointRepositoryImpl) toDomain(model *models.WebhookEndpointModel) (*delivery.WebhookEndpoint, error) {
	return delivery.ReconstructWebhookEndpoint(
		model.ID,
		model.SID,
		model.AppID,
		model.URL,
		model.Secret,
		model.Description,
		model.Active,
		model.CreatedAt,
		model.UpdatedAt,
		model.Version,
	)
}

// Create creates a new webhook endpoint
func (r *WebhookEndpointRepositoryImpl) Create(ctx context.Context, e *delivery.WebhookEndpoint) error {
	model := &models.WebhookEndpointModel{
		SID:         e.SID(),
		AppID:       e.AppID(),
		URL:         e.URL(),
		Secret:      e.Secret(),
		Description: e.Description(),
		Active:      e.IsActive(),
		CreatedAt:   e.CreatedAt(),
		UpdatedAt:   e.UpdatedAt(),
		Version:     e.Version(),
	}

	if err := r.tx(ctx).Create(model).Error; err != nil {
		if errors.IsDuplicateError(err) {
			return errors.NewConflictError("webhook endpoint already exists")
		}
		r.logger.Errorw("failed to create webhook endpoint",
			"app_id", e.AppID(),
			"url", e.URL(),
			"error", err)
		return fmt.Errorf("failed to create webhook endpoint: %w", err)
	}

	if err := e.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set webhook endpoint ID: %w", err)
	}

	r.logger.Infow("webhook endpoint created",
		"id", model.ID,
		"sid", model.SID,
		"url", model.URL)
	return nil
}

// Update updates an existing webhook endpoint with optimistic locking
func (r *WebhookEndpointRepositoryImpl) Update(ctx context.Context, e *delivery.WebhookEndpoint) error {
	result := r.tx(ctx).Model(&models.WebhookEndpointModel{}).
		Where("id = ? AND version = ?", e.ID(), e.Version()-1).
		Updates(map[string]interface{}{
			"url":         e.URL(),
			"secret":      e.Secret(),
			"description": e.Description(),
			"active":      e.IsActive(),
			"updated_at":  e.UpdatedAt(),
			"version":     e.Version(),
		})

	if result.Error != nil {
		r.logger.Errorw("failed to update webhook endpoint", "id", e.ID(), "error", result.Error)
		return fmt.Errorf("failed to update webhook endpoint: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewConflictError("webhook endpoint was modified by another process")
	}

	return nil
}

// Delete deletes a webhook endpoint by ID
func (r *WebhookEndpointRepositoryImpl) Delete(ctx context.Context, id uint) error {
	result := r.tx(ctx).Delete(&models.WebhookEndpointModel{}, id)
	if result.Error != nil {
		r.logger.Errorw("failed to delete webhook endpoint", "id", id, "error", result.Error)
		return fmt.Errorf("failed to delete webhook endpoint: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("webhook endpoint not found")
	}

	r.logger.Infow("webhook endpoint deleted", "id", id)
	return nil
}

// GetByID retrieves a webhook endpoint by ID
func (r *WebhookEndpointRepositoryImpl) GetByID(ctx context.Context, id uint) (*delivery.WebhookEndpoint, error) {
	var model models.WebhookEndpointModel
	if err := r.tx(ctx).First(&model, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("webhook endpoint not found")
		}
		return nil, fmt.Errorf("failed to get webhook endpoint: %w", err)
	}

	return r.toDomain(&model)
}

// GetBySID retrieves a webhook endpoint by public identifier
func (r *WebhookEndpointRepositoryImpl) GetBySID(ctx context.Context, sid string) (*delivery.WebhookEndpoint, error) {
	var model models.WebhookEndpointModel
	if err := r.tx(ctx).Where("sid = ?", sid).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("webhook endpoint not found")
		}
		return nil, fmt.Errorf("failed to get webhook endpoint: %w", err)
	}

	return r.toDomain(&model)
}

// ListByApp retrieves all webhook endpoints for an app
func (r *WebhookEndpointRepositoryImpl) ListByApp(ctx context.Context, appID uint) ([]*delivery.WebhookEndpoint, error) {
	return r.list(ctx, r.tx(ctx).Where("app_id = ?", appID))
}

// ListActiveByApp retrieves active webhook endpoints for an app
func (r *WebhookEndpointRepositoryImpl) ListActiveByApp(ctx context.Context, appID uint) ([]*delivery.WebhookEndpoint, error) {
	return r.list(ctx, r.tx(ctx).Where("app_id = ? AND active = ?", appID, true))
}

func (r *WebhookEndpointRepositoryImpl) list(ctx context.Context, query *gorm.DB) ([]*delivery.WebhookEndpoint, error) {
	var endpointModels []models.WebhookEndpointModel
	if err := query.Order("id").Find(&endpointModels).Error; err != nil {
		r.logger.Errorw("failed to list webhook endpoints", "error", err)
		return nil, fmt.Errorf("failed to list webhook endpoints: %w", err)
	}

	endpoints := make([]*delivery.WebhookEndpoint, len(endpointModels))
	for i := range endpointModels {
		e, err := r.toDomain(&endpointModels[i])
		if err != nil {
			return nil, fmt.Errorf("failed to reconstruct webhook endpoint: %w", err)
		}
		endpoints[i] = e
	}

	return endpoints, nil
}
