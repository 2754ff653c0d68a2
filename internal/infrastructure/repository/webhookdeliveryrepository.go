package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/opencat-io/opencat/internal/domain/delivery"
	"github.com/opencat-io/opencat/internal/infrastructure/persistence/models"
	"github.com/opencat-io/opencat/internal/shared/db"
	"github.com/opencat-io/opencat/internal/shared/errors"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

// WebhookDeliveryRepositoryImpl implements the delivery.Repository interface
type WebhookDeliveryRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewWebhookDeliveryRepository creates a new webhook delivery repository instance
func NewWebhookDeliveryRepository(database *gorm.DB, logger logger.Interface) delivery.Repository {
	return &WebhookDeliveryRepositoryImpl{
		db:     database,
		logger: logger,
	}
}

func (r *WebhookDeliveryRepositoryImpl) tx(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

func (r *WebhookDeliveryRepositoryImpl) toDomain(model *models.WebhookDeliveryModel) (*delivery.WebhookDelivery, error) {
	return delivery.ReconstructWebhookDelivery(
		model.ID,
		model.SID,
		model.EndpointID,
		model.EventID,
		delivery.Status(model.Status),
		model.Attempts,
		model.NextRetryAt,
		model.LockedUntil,
		model.LastError,
		model.LastStatusCode,
		model.DeliveredAt,
		model.CreatedAt,
		model.UpdatedAt,
		model.Version,
	)
}

func (r *WebhookDeliveryRepositoryImpl) toModel(d *delivery.WebhookDelivery) *models.WebhookDeliveryModel {
	return &models.WebhookDeliveryModel{
		SID:            d.SID(),
		EndpointID:     d.EndpointID(),
		EventID:        d.EventID(),
		Status:         string(d.Status()),
		Attempts:       d.Attempts(),
		NextRetryAt:    d.NextRetryAt(),
		LockedUntil:    d.LockedUntil(),
		LastError:      d.LastError(),
		LastStatusCode: d.LastStatusCode(),
		DeliveredAt:    d.DeliveredAt(),
		CreatedAt:      d.CreatedAt(),
		UpdatedAt:      d.UpdatedAt(),
		Version:        d.Version(),
	}
}

// Create creates a new delivery
func (r *WebhookDeliveryRepositoryImpl) Create(ctx context.Context, d *delivery.WebhookDelivery) error {
	model := r.toModel(d)

	if err := r.tx(ctx).Create(model).Error; err != nil {
		if errors.IsDuplicateError(err) {
			return errors.NewConflictError("delivery already exists for this endpoint and event")
		}
		r.logger.Errorw("failed to create delivery",
			"endpoint_id", d.EndpointID(),
			"event_id", d.EventID(),
			"error", err)
		return fmt.Errorf("failed to create delivery: %w", err)
	}

	if err := d.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set delivery ID: %w", err)
	}

	return nil
}

// BatchCreate creates multiple deliveries
func (r *WebhookDeliveryRepositoryImpl) BatchCreate(ctx context.Context, ds []*delivery.WebhookDelivery) error {
	if len(ds) == 0 {
		return nil
	}

	deliveryModels := make([]models.WebhookDeliveryModel, len(ds))
	for i, d := range ds {
		deliveryModels[i] = *r.toModel(d)
	}

	if err := r.tx(ctx).Create(&deliveryModels).Error; err != nil {
		if errors.IsDuplicateError(err) {
			return errors.NewConflictError("one or more deliveries already exist")
		}
		r.logger.Errorw("failed to batch create deliveries", "count", len(ds), "error", err)
		return fmt.Errorf("failed to batch create deliveries: %w", err)
	}

	for i := range ds {
		if err := ds[i].SetID(deliveryModels[i].ID); err != nil {
			r.logger.Warnw("failed to set delivery ID after batch create", "index", i, "error", err)
		}
	}

	r.logger.Infow("deliveries batch created", "count", len(ds))
	return nil
}

// Update updates an existing delivery with optimistic locking
func (r *WebhookDeliveryRepositoryImpl) Update(ctx context.Context, d *delivery.WebhookDelivery) error {
	result := r.tx(ctx).Model(&models.WebhookDeliveryModel{}).
		Where("id = ? AND version = ?", d.ID(), d.Version()-1).
		Updates(map[string]interface{}{
			"status":           string(d.Status()),
			"attempts":         d.Attempts(),
			"next_retry_at":    d.NextRetryAt(),
			"locked_until":     d.LockedUntil(),
			"last_error":       d.LastError(),
			"last_status_code": d.LastStatusCode(),
			"delivered_at":     d.DeliveredAt(),
			"updated_at":       d.UpdatedAt(),
			"version":          d.Version(),
		})

	if result.Error != nil {
		r.logger.Errorw("failed to update delivery", "id", d.ID(), "error", result.Error)
		return fmt.Errorf("failed to update delivery: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewConflictError("delivery was modified by another process")
	}

	return nil
}

// GetByID retrieves a delivery by ID
func (r *WebhookDeliveryRepositoryImpl) GetByID(ctx context.Context, id uint) (*delivery.WebhookDelivery, error) {
	var model models.WebhookDeliveryModel
	if err := r.tx(ctx).First(&model, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("delivery not found")
		}
		return nil, fmt.Errorf("failed to get delivery: %w", err)
	}

	return r.toDomain(&model)
}

// GetBySID retrieves a delivery by public identifier
func (r *WebhookDeliveryRepositoryImpl) GetBySID(ctx context.Context, sid string) (*delivery.WebhookDelivery, error) {
	var model models.WebhookDeliveryModel
	if err := r.tx(ctx).Where("sid = ?", sid).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("delivery not found")
		}
		return nil, fmt.Errorf("failed to get delivery: %w", err)
	}

	return r.toDomain(&model)
}

// ListByEndpoint retrieves deliveries for an endpoint with pagination
func (r *WebhookDeliveryRepositoryImpl) ListByEndpoint(ctx context.Context, endpointID uint, status delivery.Status, offset, limit int) ([]*delivery.WebhookDelivery, int64, error) {
	query := r.tx(ctx).Model(&models.WebhookDeliveryModel{}).Where("endpoint_id = ?", endpointID)
	if status != "" {
		query = query.Where("status = ?", string(status))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count deliveries: %w", err)
	}

	var deliveryModels []models.WebhookDeliveryModel
	if err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&deliveryModels).Error; err != nil {
		r.logger.Errorw("failed to list deliveries", "endpoint_id", endpointID, "error", err)
		return nil, 0, fmt.Errorf("failed to list deliveries: %w", err)
	}

	deliveries := make([]*delivery.WebhookDelivery, len(deliveryModels))
	for i := range deliveryModels {
		d, err := r.toDomain(&deliveryModels[i])
		if err != nil {
			return nil, 0, fmt.Errorf("failed to reconstruct delivery: %w", err)
		}
		deliveries[i] = d
	}

	return deliveries, total, nil
}

// ListByEvent retrieves all deliveries for an event
func (r *WebhookDeliveryRepositoryImpl) ListByEvent(ctx context.Context, eventID uint) ([]*delivery.WebhookDelivery, error) {
	var deliveryModels []models.WebhookDeliveryModel
	if err := r.tx(ctx).Where("event_id = ?", eventID).Order("id").Find(&deliveryModels).Error; err != nil {
		r.logger.Errorw("failed to list deliveries by event", "event_id", eventID, "error", err)
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}

	deliveries := make([]*delivery.WebhookDelivery, len(deliveryModels))
	for i := range deliveryModels {
		d, err := r.toDomain(&deliveryModels[i])
		if err != nil {
			return nil, fmt.Errorf("failed to reconstruct delivery: %w", err)
		}
		deliveries[i] = d
	}

	return deliveries, nil
}

// ClaimDue atomically claims up to limit due deliveries for dispatch.
//
// Candidates are selected first, then each is claimed with a conditional
// UPDATE re-checking the due predicate. A row another worker claimed in
// between loses the RowsAffected race and is skipped, so a delivery can
// only ever be held by one worker per lease window.
func (r *WebhookDeliveryRepositoryImpl) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*delivery.WebhookDelivery, error) {
	var candidates []models.WebhookDeliveryModel
	if err := r.tx(ctx).
		Where("status = ? AND next_retry_at <= ? AND (locked_until IS NULL OR locked_until <= ?)",
			string(delivery.StatusPending), now, now).
		Order("next_retry_at").
		Limit(limit).
		Find(&candidates).Error; err != nil {
		r.logger.Errorw("failed to select due deliveries", "error", err)
		return nil, fmt.Errorf("failed to select due deliveries: %w", err)
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	lockedUntil := now.Add(lease)
	claimed := make([]*delivery.WebhookDelivery, 0, len(candidates))
	for i := range candidates {
		result := r.tx(ctx).Model(&models.WebhookDeliveryModel{}).
			Where("id = ? AND status = ? AND next_retry_at <= ? AND (locked_until IS NULL OR locked_until <= ?)",
				candidates[i].ID, string(delivery.StatusPending), now, now).
			Update("locked_until", lockedUntil)
		if result.Error != nil {
			r.logger.Errorw("failed to claim delivery", "id", candidates[i].ID, "error", result.Error)
			return nil, fmt.Errorf("failed to claim delivery: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			// Lost the race to another worker.
			continue
		}

		candidates[i].LockedUntil = &lockedUntil
		d, err := r.toDomain(&candidates[i])
		if err != nil {
			return nil, fmt.Errorf("failed to reconstruct delivery: %w", err)
		}
		claimed = append(claimed, d)
	}

	if len(claimed) > 0 {
		r.logger.Debugw("deliveries claimed", "count", len(claimed), "lease", lease)
	}
	return claimed, nil
}

// ExtendLease extends the lease on a claimed delivery
func (r *WebhookDeliveryRepositoryImpl) ExtendLease(ctx context.Context, id uint, until time.Time) error {
	result := r.tx(ctx).Model(&models.WebhookDeliveryModel{}).
		Where("id = ? AND status = ?", id, string(delivery.StatusPending)).
		Update("locked_until", until)
	if result.Error != nil {
		return fmt.Errorf("failed to extend lease: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("delivery not found or not pending")
	}
	return nil
}

// CountByStatus returns delivery counts grouped by status for an app
func (r *WebhookDeliveryRepositoryImpl) CountByStatus(ctx context.Context, appID uint) (map[delivery.Status]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}

	var rows []statusCount
	if err := r.tx(ctx).Model(&models.WebhookDeliveryModel{}).
		Select("webhook_deliveries.status AS status, COUNT(*) AS count").
		Joins("JOIN webhook_endpoints ON webhook_endpoints.id = webhook_deliveries.endpoint_id").
		Where("webhook_endpoints.app_id = ?", appID).
		Group("webhook_deliveries.status").
		Scan(&rows).Error; err != nil {
		r.logger.Errorw("failed to count deliveries by status", "app_id", appID, "error", err)
		return nil, fmt.Errorf("failed to count deliveries: %w", err)
	}

	counts := make(map[delivery.Status]int64, len(rows))
	for _, row := range rows {
		counts[delivery.Status(row.Status)] = row.Count
	}
	return counts, nil
}
