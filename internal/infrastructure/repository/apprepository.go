package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/opencat-io/opencat/internal/domain/app"
	"github.com/opencat-io/opencat/internal/infrastructure/persistence/models"
	"github.com/opencat-io/opencat/internal/shared/db"
	"github.com/opencat-io/opencat/internal/shared/errors"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

// AppRepositoryImpl implements the app.Repository interface
type AppRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewAppRepository creates a new app repository instance
func NewAppRepository(database *gorm.DB, logger logger.Interface) app.Repository {
	return &AppRepositoryImpl{
		db:     database,
		logger: logger,
	}
}

func (r *AppRepositoryImpl) tx(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

func (r *AppRepositoryImpl) toDomain(model *models.AppModel) (*app.App, error) {
	return app.ReconstructApp(
		model.ID,
		model.SID,
		model.Name,
		model.AppleBundleID,
		model.GooglePackageName,
		model.CreatedAt,
		model.UpdatedAt,
		model.Version,
	)
}

// Create creates a new app
func (r *AppRepositoryImpl) Create(ctx context.Context, a *app.App) error {
	model := &models.AppModel{
		SID:               a.SID(),
		Name:              a.Name(),
		AppleBundleID:     a.AppleBundleID(),
		GooglePackageName: a.GooglePackageName(),
		CreatedAt:         a.CreatedAt(),
		UpdatedAt:         a.UpdatedAt(),
		Version:           a.Version(),
	}

	if err := r.tx(ctx).Create(model).Error; err != nil {
		if errors.IsDuplicateError(err) {
			return errors.NewConflictError("app already exists")
		}
		r.logger.Errorw("failed to create app", "name", a.Name(), "error", err)
		return fmt.Errorf("failed to create app: %w", err)
	}

	if err := a.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set app ID: %w", err)
	}

	r.logger.Infow("app created", "id", model.ID, "sid", model.SID, "name", model.Name)
	return nil
}

// Update updates an existing app with optimistic locking
func (r *AppRepositoryImpl) Update(ctx context.Context, a *app.App) error {
	result := r.tx(ctx).Model(&models.AppModel{}).
		Where("id = ? AND version = ?", a.ID(), a.Version()-1).
		Updates(map[string]interface{}{
			"name":                a.Name(),
			"apple_bundle_id":     a.AppleBundleID(),
			"google_package_name": a.GooglePackageName(),
			"updated_at":          a.UpdatedAt(),
			"version":             a.Version(),
		})

	if result.Error != nil {
		if errors.IsDuplicateError(result.Error) {
			return errors.NewConflictError("app name already exists")
		}
		r.logger.Errorw("failed to update app", "id", a.ID(), "error", result.Error)
		return fmt.Errorf("failed to update app: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewConflictError("app was modified by another process")
	}

	return nil
}

// Delete deletes an app by ID
func (r *AppRepositoryImpl) Delete(ctx context.Context, id uint) error {
	result := r.tx(ctx).Delete(&models.AppModel{}, id)
	if result.Error != nil {
		r.logger.Errorw("failed to delete app", "id", id, "error", result.Error)
		return fmt.Errorf("failed to delete app: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("app not found")
	}

	r.logger.Infow("app deleted", "id", id)
	return nil
}

// GetByID retrieves an app by ID
func (r *AppRepositoryImpl) GetByID(ctx context.Context, id uint) (*app.App, error) {
	var model models.AppModel
	if err := r.tx(ctx).First(&model, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("app not found")
		}
		r.logger.Errorw("failed to get app", "id", id, "error", err)
		return nil, fmt.Errorf("failed to get app: %w", err)
	}

	return r.toDomain(&model)
}

// GetBySID retrieves an app by public identifier
func (r *AppRepositoryImpl) GetBySID(ctx context.Context, sid string) (*app.App, error) {
	var model models.AppModel
	if err := r.tx(ctx).Where("sid = ?", sid).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("app not found")
		}
		r.logger.Errorw("failed to get app by sid", "sid", sid, "error", err)
		return nil, fmt.Errorf("failed to get app: %w", err)
	}

	return r.toDomain(&model)
}

// GetByAppleBundleID retrieves an app by its Apple bundle ID
func (r *AppRepositoryImpl) GetByAppleBundleID(ctx context.Context, bundleID string) (*app.App, error) {
	if bundleID == "" {
		return nil, errors.NewNotFoundError("app not found")
	}

	var model models.AppModel
	if err := r.tx(ctx).Where("apple_bundle_id = ?", bundleID).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("app not found")
		}
		r.logger.Errorw("failed to get app by apple bundle id", "bundle_id", bundleID, "error", err)
		return nil, fmt.Errorf("failed to get app: %w", err)
	}

	return r.toDomain(&model)
}

// GetByGooglePackageName retrieves an app by its Google package name
func (r *AppRepositoryImpl) GetByGooglePackageName(ctx context.Context, packageName string) (*app.App, error) {
	if packageName == "" {
		return nil, errors.NewNotFoundError("app not found")
	}

	var model models.AppModel
	if err := r.tx(ctx).Where("google_package_name = ?", packageName).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("app not found")
		}
		r.logger.Errorw("failed to get app by google package name", "package_name", packageName, "error", err)
		return nil, fmt.Errorf("failed to get app: %w", err)
	}

	return r.toDomain(&model)
}

// List retrieves apps with pagination
func (r *AppRepositoryImpl) List(ctx context.Context, offset, limit int) ([]*app.App, int64, error) {
	var total int64
	if err := r.tx(ctx).Model(&models.AppModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count apps: %w", err)
	}

	var appModels []models.AppModel
	if err := r.tx(ctx).Order("id").Offset(offset).Limit(limit).Find(&appModels).Error; err != nil {
		r.logger.Errorw("failed to list apps", "error", err)
		return nil, 0, fmt.Errorf("failed to list apps: %w", err)
	}

	apps := make([]*app.App, len(appModels))
	for i := range appModels {
		a, err := r.toDomain(&appModels[i])
		if err != nil {
			return nil, 0, fmt.Errorf("failed to reconstruct app: %w", err)
		}
		apps[i] = a
	}

	return apps, total, nil
}
