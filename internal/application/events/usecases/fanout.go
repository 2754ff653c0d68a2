package usecases

import (
	"context"

	"github.com/opencat-io/opencat/internal/domain/delivery"
	"github.com/opencat-io/opencat/internal/domain/event"
	"github.com/opencat-io/opencat/internal/shared/errors"
	"github.com/opencat-io/opencat/internal/shared/id"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

// DefaultFanOutBatchSize bounds the events handled per sweep run.
const DefaultFanOutBatchSize = 100

// FanOutEventsUseCase creates delivery rows for recorded events. One pending
// delivery per endpoint active at fan-out time; endpoints registered later
// never receive past events. Ingestion calls FanOutEvent synchronously after
// commit; Execute is the background sweep that picks up anything that attempt
// missed, so fan-out is guaranteed to eventually run.
type FanOutEventsUseCase struct {
	eventRepo    event.Repository
	endpointRepo delivery.EndpointRepository
	deliveryRepo delivery.Repository
	logger       logger.Interface
}

func NewFanOutEventsUseCase(
	eventRepo event.Repository,
	endpointRepo delivery.EndpointRepository,
	deliveryRepo delivery.Repository,
	logger logger.Interface,
) *FanOutEventsUseCase {
	return &FanOutEventsUseCase{
		eventRepo:    eventRepo,
		endpointRepo: endpointRepo,
		deliveryRepo: deliveryRepo,
		logger:       logger,
	}
}

// Execute fans out all events that have no delivery rows yet. Returns the
// number of events fanned out.
func (uc *FanOutEventsUseCase) Execute(ctx context.Context) (int, error) {
	events, err := uc.eventRepo.ListPendingFanOut(ctx, DefaultFanOutBatchSize)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, e := range events {
		if err := uc.FanOutEvent(ctx, e); err != nil {
			uc.logger.Errorw("failed to fan out event",
				"event_sid", e.SID(),
				"error", err)
			continue
		}
		processed++
	}

	return processed, nil
}

// FanOutEvent creates delivery rows for one event and marks it fanned out.
// Safe to call more than once for the same event: the (endpoint, event)
// unique index turns repeated creation into a no-op.
func (uc *FanOutEventsUseCase) FanOutEvent(ctx context.Context, e *event.Event) error {
	endpoints, err := uc.endpointRepo.ListActiveByApp(ctx, e.AppID())
	if err != nil {
		return err
	}

	created := 0
	for _, ep := range endpoints {
		sid, err := id.NewDeliveryID()
		if err != nil {
			return err
		}
		d, err := delivery.NewWebhookDelivery(sid, ep.ID(), e.ID())
		if err != nil {
			return err
		}
		if err := uc.deliveryRepo.Create(ctx, d); err != nil {
			// A previous partial fan-out already created this row.
			if errors.IsConflictError(err) {
				continue
			}
			return err
		}
		created++
	}

	if err := uc.eventRepo.MarkFannedOut(ctx, []uint{e.ID()}); err != nil {
		return err
	}

	uc.logger.Infow("event fanned out",
		"event_sid", e.SID(),
		"type", e.Type(),
		"endpoints", len(endpoints),
		"deliveries_created", created)
	return nil
}
