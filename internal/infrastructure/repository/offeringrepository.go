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

// OfferingRepositoryImpl implements the catalog.OfferingRepository interface
type OfferingRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewOfferingRepository creates a new offering repository instance
func NewOfferingRepository(database *gorm.DB, logger logger.Interface) catalog.OfferingRepository {
	return &OfferingRepositoryImpl{
		db:     database,
		logger: logger,
	}
}

func (r *OfferingRepositoryImpl) tx(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

func (r *OfferingRepositoryImpl) toDomain(ctx context.Context, model *models.OfferingModel) (*catalog.Offering, error) {
	var productIDs []uint
	if err := r.tx(ctx).
		Model(&models.OfferingProductModel{}).
		Where("offering_id = ?", model.ID).
		Order("position").
		Pluck("product_id", &productIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to get offering products: %w", err)
	}

	return catalog.ReconstructOffering(
		model.ID,
		model.AppID,
		model.Identifier,
		model.DisplayName,
		model.IsCurrent,
		productIDs,
		model.CreatedAt,
		model.UpdatedAt,
		model.Version,
	)
}

func (r *OfferingRepositoryImpl) replaceProducts(tx *gorm.DB, offeringID uint, productIDs []uint) error {
	if err := tx.Where("offering_id = ?", offeringID).
		Delete(&models.OfferingProductModel{}).Error; err != nil {
		return fmt.Errorf("failed to clear offering products: %w", err)
	}

	if len(productIDs) == 0 {
		return nil
	}

	links := make([]models.OfferingProductModel, len(productIDs))
	for i, pid := range productIDs {
		links[i] = models.OfferingProductModel{
			OfferingID: offeringID,
			ProductID:  pid,
			Position:   i,
		}
	}
	if err := tx.Create(&links).Error; err != nil {
		return fmt.Errorf("failed to create offering products: %w", err)
	}
	return nil
}

// Create creates a new offering
func (r *OfferingRepositoryImpl) Create(ctx context.Context, o *catalog.Offering) error {
	return r.tx(ctx).Transaction(func(tx *gorm.DB) error {
		model := &models.OfferingModel{
			AppID:       o.AppID(),
			Identifier:  o.Identifier(),
			DisplayName: o.DisplayName(),
			IsCurrent:   o.IsCurrent(),
			CreatedAt:   o.CreatedAt(),
			UpdatedAt:   o.UpdatedAt(),
			Version:     o.Version(),
		}

		if err := tx.Create(model).Error; err != nil {
			if errors.IsDuplicateError(err) {
				return errors.NewConflictError("offering identifier already exists")
			}
			r.logger.Errorw("failed to create offering",
				"app_id", o.AppID(),
				"identifier", o.Identifier(),
				"error", err)
			return fmt.Errorf("failed to create offering: %w", err)
		}

		if err := o.SetID(model.ID); err != nil {
			return fmt.Errorf("failed to set offering ID: %w", err)
		}

		if err := r.replaceProducts(tx, model.ID, o.ProductIDs()); err != nil {
			return err
		}

		r.logger.Infow("offering created",
			"id", model.ID,
			"identifier", model.Identifier,
			"products", len(o.ProductIDs()))
		return nil
	})
}

// Update updates an existing offering with optimistic locking
func (r *OfferingRepositoryImpl) Update(ctx context.Context, o *catalog.Offering) error {
	return r.tx(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.OfferingModel{}).
			Where("id = ? AND version = ?", o.ID(), o.Version()-1).
			Updates(map[string]interface{}{
				"display_name": o.DisplayName(),
				"is_current":   o.IsCurrent(),
				"updated_at":   o.UpdatedAt(),
				"version":      o.Version(),
			})

		if result.Error != nil {
			return fmt.Errorf("failed to update offering: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return errors.NewConflictError("offering was modified by another process")
		}

		return r.replaceProducts(tx, o.ID(), o.ProductIDs())
	})
}

// Delete deletes an offering by ID
func (r *OfferingRepositoryImpl) Delete(ctx context.Context, id uint) error {
	return r.tx(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("offering_id = ?", id).
			Delete(&models.OfferingProductModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete offering products: %w", err)
		}

		result := tx.Delete(&models.OfferingModel{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete offering: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return errors.NewNotFoundError("offering not found")
		}

		r.logger.Infow("offering deleted", "id", id)
		return nil
	})
}

// GetByIdentifier retrieves an offering by its stable key within an app
func (r *OfferingRepositoryImpl) GetByIdentifier(ctx context.Context, appID uint, identifier string) (*catalog.Offering, error) {
	var model models.OfferingModel
	if err := r.tx(ctx).
		Where("app_id = ? AND identifier = ?", appID, identifier).
		First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("offering not found")
		}
		return nil, fmt.Errorf("failed to get offering: %w", err)
	}

	return r.toDomain(ctx, &model)
}

// GetCurrent retrieves the app's current offering
func (r *OfferingRepositoryImpl) GetCurrent(ctx context.Context, appID uint) (*catalog.Offering, error) {
	var model models.OfferingModel
	if err := r.tx(ctx).
		Where("app_id = ? AND is_current = ?", appID, true).
		First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("no current offering")
		}
		return nil, fmt.Errorf("failed to get current offering: %w", err)
	}

	return r.toDomain(ctx, &model)
}

// ListByApp retrieves all offerings for an app
func (r *OfferingRepositoryImpl) ListByApp(ctx context.Context, appID uint) ([]*catalog.Offering, error) {
	var offeringModels []models.OfferingModel
	if err := r.tx(ctx).Where("app_id = ?", appID).Order("id").Find(&offeringModels).Error; err != nil {
		r.logger.Errorw("failed to list offerings", "app_id", appID, "error", err)
		return nil, fmt.Errorf("failed to list offerings: %w", err)
	}

	offerings := make([]*catalog.Offering, len(offeringModels))
	for i := range offeringModels {
		o, err := r.toDomain(ctx, &offeringModels[i])
		if err != nil {
			return nil, fmt.Errorf("failed to reconstruct offering: %w", err)
		}
		offerings[i] = o
	}

	return offerings, nil
}

// SetCurrent marks the given offering as current and clears the flag on others
func (r *OfferingRepositoryImpl) SetCurrent(ctx context.Context, appID, offeringID uint) error {
	return r.tx(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.OfferingModel{}).
			Where("app_id = ? AND is_current = ?", appID, true).
			Update("is_current", false).Error; err != nil {
			return fmt.Errorf("failed to clear current offering: %w", err)
		}

		result := tx.Model(&models.OfferingModel{}).
			Where("id = ? AND app_id = ?", offeringID, appID).
			Update("is_current", true)
		if result.Error != nil {
			return fmt.Errorf("failed to set current offering: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return errors.NewNotFoundError("offering not found")
		}

		r.logger.Infow("current offering set", "app_id", appID, "offering_id", offeringID)
		return nil
	})
}
