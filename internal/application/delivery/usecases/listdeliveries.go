package usecases

import (
	"context"
	"time"

	"github.com/opencat-io/opencat/internal/domain/delivery"
	"github.com/opencat-io/opencat/internal/shared/constants"
	"github.com/opencat-io/opencat/internal/shared/errors"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

type ListDeliveriesQuery struct {
	EndpointSID string
	Status      string // empty means all statuses
	Page        int
	PageSize    int
}

type DeliveryDTO struct {
	SID            string     `json:"id"`
	Status         string     `json:"status"`
	Attempts       int        `json:"attempts"`
	NextRetryAt    *time.Time `json:"next_retry_at,omitempty"`
	LastStatusCode int        `json:"last_status_code,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type ListDeliveriesResult struct {
	Deliveries []DeliveryDTO `json:"deliveries"`
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
}

// ListDeliveriesUseCase pages through an endpoint's delivery history,
// optionally filtered by status. This is the operator's view into retry
// state and the dead-letter queue.
type ListDeliveriesUseCase struct {
	deliveryRepo delivery.Repository
	endpointRepo delivery.EndpointRepository
	logger       logger.Interface
}

func NewListDeliveriesUseCase(
	deliveryRepo delivery.Repository,
	endpointRepo delivery.EndpointRepository,
	logger logger.Interface,
) *ListDeliveriesUseCase {
	return &ListDeliveriesUseCase{
		deliveryRepo: deliveryRepo,
		endpointRepo: endpointRepo,
		logger:       logger,
	}
}

func (uc *ListDeliveriesUseCase) Execute(ctx context.Context, query ListDeliveriesQuery) (*ListDeliveriesResult, error) {
	if query.EndpointSID == "" {
		return nil, errors.NewValidationError("endpoint ID is required")
	}

	status := delivery.Status(query.Status)
	if query.Status != "" && !status.IsValid() {
		return nil, errors.NewValidationError("invalid delivery status")
	}

	page := query.Page
	if page < 1 {
		page = constants.DefaultPage
	}
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = constants.DefaultPageSize
	}
	if pageSize > constants.MaxPageSize {
		pageSize = constants.MaxPageSize
	}

	ep, err := uc.endpointRepo.GetBySID(ctx, query.EndpointSID)
	if err != nil {
		return nil, err
	}

	deliveries, total, err := uc.deliveryRepo.ListByEndpoint(ctx, ep.ID(), status, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}

	result := &ListDeliveriesResult{
		Deliveries: make([]DeliveryDTO, len(deliveries)),
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
	}
	for i, d := range deliveries {
		result.Deliveries[i] = DeliveryDTO{
			SID:            d.SID(),
			Status:         d.Status().String(),
			Attempts:       d.Attempts(),
			NextRetryAt:    d.NextRetryAt(),
			LastStatusCode: d.LastStatusCode(),
			LastError:      d.LastError(),
			DeliveredAt:    d.DeliveredAt(),
			CreatedAt:      d.CreatedAt(),
		}
	}
	return result, nil
}
