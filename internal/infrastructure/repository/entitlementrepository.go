package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/opencat-io/opencat/internal/domain/catalog"
	"github.com/opencat-io/opencat/internal/infrastructure/persistence/models"
	"github.com/opencat-io/opencat/internal/shared/db"
	"github.com/opencat-io/opencat/internal/shared/errors"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

// EntitlementRepositoryImpl implements the catalog.EntitlementRepository interface
type EntitlementRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewEntitlementRepository creates a new entitlement repository instance
func NewEntitlementRepository(database *gorm.DB, logger logger.Interface) catalog.EntitlementRepository {
	return &EntitlementRepositoryImpl{
		db:     database,
		logger: logger,
	}
}

func (r *EntitlementRepositoryImpl) tx(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

func (r *EntitlementRepositoryImpl) toDomain(model *models.EntitlementModel) (*catalog.Entitlement, error) {
	return catalog.ReconstructEntitlement(
		model.ID,
		model.SID,
		model.AppID,
		model.Identifier,
		model.DisplayName,
		model.CreatedAt,
		model.UpdatedAt,
		model.Version,
	)
}

// Create creates a new entitlement definition
func (r *EntitlementRepositoryImpl) Create(ctx context.Context, e *catalog.Entitlement) error {
	model := &models.EntitlementModel{
		SID:         e.SID(),
		AppID:       e.AppID(),
		Identifier:  e.Identifier(),
		DisplayName: e.DisplayName(),
		CreatedAt:   e.CreatedAt(),
		UpdatedAt:   e.UpdatedAt(),
		Version:     e.Version(),
	}

	if err := r.tx(ctx).Create(model).Error; err != nil {
		if errors.IsDuplicateError(err) {
			return errors.NewConflictError("entitlement identifier already exists")
		}
		r.logger.Errorw("failed to create entitlement",
			"app_id", e.AppID(),
			"identifier", e.Identifier(),
			"error", err)
		return fmt.Errorf("failed to create entitlement: %w", err)
	}

	if err := e.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set entitlement ID: %w", err)
	}

	r.logger.Infow("entitlement created",
		"id", model.ID,
		"sid", model.SID,
		"identifier", model.Identifier)
	return nil
}

// Update updates an existing entitlement definition with optimistic locking
func (r *EntitlementRepositoryImpl) Update(ctx context.Context, e *catalog.Entitlement) error {
	result := r.tx(ctx).Model(&models.EntitlementModel{}).
		Where("id = ? AND version = ?", e.ID(), e.Version()-1).
		Updates(map[string]interface{}{
			"display_name": e.DisplayName(),
			"updated_at":   e.UpdatedAt(),
			"version":      e.Version(),
		})

	if result.Error != nil {
		r.logger.Errorw("failed to update entitlement", "id", e.ID(), "error", result.Error)
		return fmt.Errorf("failed to update entitlement: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewConflictError("entitlement was modified by another process")
	}

	return nil
}

// Delete deletes an entitlement definition by ID
func (r *EntitlementRepositoryImpl) Delete(ctx context.Context, id uint) error {
	return r.tx(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("entitlement_id = ?", id).
			Delete(&models.ProductEntitlementModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete entitlement mappings: %w", err)
		}

		result := tx.Delete(&models.EntitlementModel{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete entitlement: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return errors.NewNotFoundError("entitlement not found")
		}

		r.logger.Infow("entitlement deleted", "id", id)
		return nil
	})
}

// GetByID retrieves an entitlement definition by ID
func (r *EntitlementRepositoryImpl) GetByID(ctx context.Context, id uint) (*catalog.Entitlement, error) {
	var model models.EntitlementModel
	if err := r.tx(ctx).First(&model, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("entitlement not found")
		}
		return nil, fmt.Errorf("failed to get entitlement: %w", err)
	}

	return r.toDomain(&model)
}

// GetBySID retrieves an entitlement definition by public identifier
func (r *EntitlementRepositoryImpl) GetBySID(ctx context.Context, sid string) (*catalog.Entitlement, error) {
	var model models.EntitlementModel
	if err := r.tx(ctx).Where("sid = ?", sid).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("entitlement not found")
		}
		return nil, fmt.Errorf("failed to get entitlement: %w", err)
	}

	return r.toDomain(&model)
}

// GetByIdentifier retrieves an entitlement definition by its stable key within an app
func (r *EntitlementRepositoryImpl) GetByIdentifier(ctx context.Context, appID uint, identifier string) (*catalog.Entitlement, error) {
	var model models.EntitlementModel
	if err := r.tx(ctx).
		Where("app_id = ? AND identifier = ?", appID, identifier).
		First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("entitlement not found")
		}
		return nil, fmt.Errorf("failed to get entitlement: %w", err)
	}

	return r.toDomain(&model)
}

// ListByApp retrieves all entitlement definitions for an app
func (r *EntitlementRepositoryImpl) ListByApp(ctx context.Context, appID uint) ([]*catalog.Entitlement, error) {
	var entModels []models.EntitlementModel
	if err := r.tx(ctx).Where("app_id = ?", appID).Order("id").Find(&entModels).Error; err != nil {
		r.logger.Errorw("failed to list entitlements", "app_id", appID, "error", err)
		return nil, fmt.Errorf("failed to list entitlements: %w", err)
	}

	ents := make([]*catalog.Entitlement, len(entModels))
	for i := range entModels {
		e, err := r.toDomain(&entModels[i])
		if err != nil {
			return nil, fmt.Errorf("failed to reconstruct entitlement: %w", err)
		}
		ents[i] = e
	}

	return ents, nil
}
