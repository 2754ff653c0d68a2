package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/opencat-io/opencat/internal/domain/subscriber"
	"github.com/opencat-io/opencat/internal/infrastructure/persistence/models"
	"github.com/opencat-io/opencat/internal/shared/db"
	"github.com/opencat-io/opencat/internal/shared/errors"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

// SubscriberRepositoryImpl implements the subscriber.Repository interface
type SubscriberRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewSubscriberRepository creates a new subscriber repository instance
func NewSubscriberRepository(database *gorm.DB, logger logger.Interface) subscriber.Repository {
	return &SubscriberRepositoryImpl{
		db:     database,
		logger: logger,
	}
}

func (r *SubscriberRepositoryImpl) tx(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

func (r *SubscriberRepositoryImpl) toDomain(model *models.SubscriberModel) (*subscriber.Subscriber, error) {
	return subscriber.ReconstructSubscriber(
		model.ID,
		model.SID,
		model.AppID,
		model.AppUserID,
		model.LastSeenAt,
		model.CreatedAt,
		model.UpdatedAt,
		model.Version,
	)
}

// Create creates a new subscriber
func (r *SubscriberRepositoryImpl) Create(ctx context.Context, s *subscriber.Subscriber) error {
	model := &models.SubscriberModel{
		SID:        s.SID(),
		AppID:      s.AppID(),
		AppUserID:  s.AppUserID(),
		LastSeenAt: s.LastSeenAt(),
		CreatedAt:  s.CreatedAt(),
		UpdatedAt:  s.UpdatedAt(),
		Version:    s.Version(),
	}

	if err := r.tx(ctx).Create(model).Error; err != nil {
		if errors.IsDuplicateError(err) {
			return errors.NewConflictError("subscriber already exists")
		}
		r.logger.Errorw("failed to create subscriber",
			"app_id", s.AppID(),
			"app_user_id", s.AppUserID(),
			"error", err)
		return fmt.Errorf("failed to create subscriber: %w", err)
	}

	if err := s.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set subscriber ID: %w", err)
	}

	r.logger.Infow("subscriber created",
		"id", model.ID,
		"sid", model.SID,
		"app_user_id", model.AppUserID)
	return nil
}

// Update updates an existing subscriber with optimistic locking
func (r *SubscriberRepositoryImpl) Update(ctx context.Context, s *subscriber.Subscriber) error {
	result := r.tx(ctx).Model(&models.SubscriberModel{}).
		Where("id = ? AND version = ?", s.ID(), s.Version()-1).
		Updates(map[string]interface{}{
			"last_seen_at": s.LastSeenAt(),
			"updated_at":   s.UpdatedAt(),
			"version":      s.Version(),
		})

	if result.Error != nil {
		r.logger.Errorw("failed to update subscriber", "id", s.ID(), "error", result.Error)
		return fmt.Errorf("failed to update subscriber: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewConflictError("subscriber was modified by another process")
	}

	return nil
}

// GetByID retrieves a subscriber by ID
func (r *SubscriberRepositoryImpl) GetByID(ctx context.Context, id uint) (*subscriber.Subscriber, error) {
	var model models.SubscriberModel
	if err := r.tx(ctx).First(&model, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("subscriber not found")
		}
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}

	return r.toDomain(&model)
}

// GetBySID retrieves a subscriber by public identifier
func (r *SubscriberRepositoryImpl) GetBySID(ctx context.Context, sid string) (*subscriber.Subscriber, error) {
	var model models.SubscriberModel
	if err := r.tx(ctx).Where("sid = ?", sid).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("subscriber not found")
		}
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}

	return r.toDomain(&model)
}

// GetByAppUserID retrieves a subscriber by app user ID within an app
func (r *SubscriberRepositoryImpl) GetByAppUserID(ctx context.Context, appID uint, appUserID string) (*subscriber.Subscriber, error) {
	var model models.SubscriberModel
	if err := r.tx(ctx).
		Where("app_id = ? AND app_user_id = ?", appID, appUserID).
		First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("subscriber not found")
		}
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}

	return r.toDomain(&model)
}

// ListByApp retrieves subscribers for an app with pagination
func (r *SubscriberRepositoryImpl) ListByApp(ctx context.Context, appID uint, offset, limit int) ([]*subscriber.Subscriber, int64, error) {
	var total int64
	if err := r.tx(ctx).Model(&models.SubscriberModel{}).
		Where("app_id = ?", appID).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count subscribers: %w", err)
	}

	var subModels []models.SubscriberModel
	if err := r.tx(ctx).
		Where("app_id = ?", appID).
		Order("id").Offset(offset).Limit(limit).
		Find(&subModels).Error; err != nil {
		r.logger.Errorw("failed to list subscribers", "app_id", appID, "error", err)
		return nil, 0, fmt.Errorf("failed to list subscribers: %w", err)
	}

	subs := make([]*subscriber.Subscriber, len(subModels))
	for i := range subModels {
		s, err := r.toDomain(&subModels[i])
		if err != nil {
			return nil, 0, fmt.Errorf("failed to reconstruct subscriber: %w", err)
		}
		subs[i] = s
	}

	return subs, total, nil
}
