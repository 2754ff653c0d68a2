package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/opencat-io/opencat/internal/domain/event"
	"github.com/opencat-io/opencat/internal/infrastructure/persistence/models"
	"github.com/opencat-io/opencat/internal/shared/db"
	"github.com/opencat-io/opencat/internal/shared/errors"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

// EventRepositoryImpl implements the event.Repository interface
type EventRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewEventRepository creates a new event repository instance
func NewEventRepository(database *gorm.DB, logger logger.Interface) event.Repository {
	return &EventRepositoryImpl{
		db:     database,
		logger: logger,
	}
}

func (r *EventRepositoryImpl) tx(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

func (r *EventRepositoryImpl) toDomain(model *models.EventModel) (*event.Event, error) {
	var payload map[string]any
	if len(model.Payload) > 0 {
		if err := json.Unmarshal(model.Payload, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event payload: %w", err)
		}
	}

	return event.ReconstructEvent(
		model.ID,
		model.SID,
		model.AppID,
		model.SubscriberID,
		event.Type(model.EventType),
		payload,
		model.FannedOutAt,
		model.CreatedAt,
	)
}

// Create appends a new event
func (r *EventRepositoryImpl) Create(ctx context.Context, e *event.Event) error {
	payload, err := json.Marshal(e.Payload())
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	model := &models.EventModel{
		SID:          e.SID(),
		AppID:        e.AppID(),
		SubscriberID: e.SubscriberID(),
		EventType:    string(e.Type()),
		Payload:      datatypes.JSON(payload),
		FannedOutAt:  e.FannedOutAt(),
		CreatedAt:    e.CreatedAt(),
	}

	if err := r.tx(ctx).Create(model).Error; err != nil {
		r.logger.Errorw("failed to create event",
			"type", e.Type(),
			"subscriber_id", e.SubscriberID(),
			"error", err)
		return fmt.Errorf("failed to create event: %w", err)
	}

	if err := e.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set event ID: %w", err)
	}

	r.logger.Infow("event recorded",
		"id", model.ID,
		"sid", model.SID,
		"type", model.EventType,
		"subscriber_id", model.SubscriberID)
	return nil
}

// GetByID retrieves an event by ID
func (r *EventRepositoryImpl) GetByID(ctx context.Context, id uint) (*event.Event, error) {
	var model models.EventModel
	if err := r.tx(ctx).First(&model, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("event not found")
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return r.toDomain(&model)
}

// GetBySID retrieves an event by public identifier
func (r *EventRepositoryImpl) GetBySID(ctx context.Context, sid string) (*event.Event, error) {
	var model models.EventModel
	if err := r.tx(ctx).Where("sid = ?", sid).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("event not found")
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return r.toDomain(&model)
}

// ListByApp retrieves events for an app created after the given event ID
func (r *EventRepositoryImpl) ListByApp(ctx context.Context, appID uint, sinceID uint, limit int) ([]*event.Event, error) {
	var eventModels []models.EventModel
	if err := r.tx(ctx).
		Where("app_id = ? AND id > ?", appID, sinceID).
		Order("id").
		Limit(limit).
		Find(&eventModels).Error; err != nil {
		r.logger.Errorw("failed to list events", "app_id", appID, "error", err)
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]*event.Event, len(eventModels))
	for i := range eventModels {
		e, err := r.toDomain(&eventModels[i])
		if err != nil {
			return nil, fmt.Errorf("failed to reconstruct event: %w", err)
		}
		events[i] = e
	}

	return events, nil
}

// ListPendingFanOut retrieves events that have no delivery rows yet
func (r *EventRepositoryImpl) ListPendingFanOut(ctx context.Context, limit int) ([]*event.Event, error) {
	var eventModels []models.EventModel
	if err := r.tx(ctx).
		Where("fanned_out_at IS NULL").
		Order("id").
		Limit(limit).
		Find(&eventModels).Error; err != nil {
		r.logger.Errorw("failed to list pending fan-out events", "error", err)
		return nil, fmt.Errorf("failed to list pending fan-out events: %w", err)
	}

	events := make([]*event.Event, len(eventModels))
	for i := range eventModels {
		e, err := r.toDomain(&eventModels[i])
		if err != nil {
			return nil, fmt.Errorf("failed to reconstruct event: %w", err)
		}
		events[i] = e
	}

	return events, nil
}

// MarkFannedOut stamps the fan-out time on the given events
func (r *EventRepositoryImpl) MarkFannedOut(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}

	if err := r.tx(ctx).Model(&models.EventModel{}).
		Where("id IN ?", ids).
		Update("fanned_out_at", time.Now().UTC()).Error; err != nil {
		r.logger.Errorw("failed to mark events fanned out", "count", len(ids), "error", err)
		return fmt.Errorf("failed to mark events fanned out: %w", err)
	}

	return nil
}
