package usecases

import (
	"context"
	stderrors "errors"

	"github.com/opencat-io/opencat/internal/domain/delivery"
	"github.com/opencat-io/opencat/internal/shared/errors"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

type ReplayDeliveryCommand struct {
	DeliverySID string
}

type ReplayDeliveryResult struct {
	DeliverySID string `json:"id"`
	Status      string `json:"status"`
	Attempts    int    `json:"attempts"`
}

// ReplayDeliveryUseCase puts a dead-lettered delivery back in the queue with
// a fresh attempt budget, due immediately. Only dead-lettered deliveries can
// be replayed; delivered and still-pending ones are rejected.
type ReplayDeliveryUseCase struct {
	deliveryRepo delivery.Repository
	logger       logger.Interface
}

func NewReplayDeliveryUseCase(deliveryRepo delivery.Repository, logger logger.Interface) *ReplayDeliveryUseCase {
	return &ReplayDeliveryUseCase{
		deliveryRepo: deliveryRepo,
		logger:       logger,
	}
}

func (uc *ReplayDeliveryUseCase) Execute(ctx context.Context, cmd ReplayDeliveryCommand) (*ReplayDeliveryResult, error) {
	if cmd.DeliverySID == "" {
		return nil, errors.NewValidationError("delivery ID is required")
	}

	d, err := uc.deliveryRepo.GetBySID(ctx, cmd.DeliverySID)
	if err != nil {
		return nil, err
	}

	if err := d.Replay(); err != nil {
		if stderrors.Is(err, delivery.ErrNotDeadLettered) {
			return nil, errors.NewValidationError("only dead-lettered deliveries can be replayed")
		}
		return nil, err
	}

	if err := uc.deliveryRepo.Update(ctx, d); err != nil {
		return nil, err
	}

	uc.logger.Infow("delivery replayed",
		"delivery_sid", d.SID(),
		"endpoint_id", d.EndpointID(),
		"event_id", d.EventID())

	return &ReplayDeliveryResult{
		DeliverySID: d.SID(),
		Status:      d.Status().String(),
		Attempts:    d.Attempts(),
	}, nil
}
