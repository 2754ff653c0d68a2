package usecases

import (
	"context"
	"time"

	"github.com/opencat-io/opencat/internal/domain/delivery"
	"github.com/opencat-io/opencat/internal/shared/errors"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

type EndpointDTO struct {
	SID         string    `json:"id"`
	URL         string    `json:"url"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type UpdateEndpointCommand struct {
	EndpointSID string
	// URL replaces the destination when non-empty.
	URL string
	// Active enables or disables fan-out to the endpoint when set.
	// Disabling does not touch in-flight deliveries.
	Active *bool
}

// ManageEndpointsUseCase covers the endpoint lifecycle after registration:
// listing, URL changes, and enabling or disabling fan-out.
type ManageEndpointsUseCase struct {
	endpointRepo delivery.EndpointRepository
	logger       logger.Interface
}

func NewManageEndpointsUseCase(endpointRepo delivery.EndpointRepository, logger logger.Interface) *ManageEndpointsUseCase {
	return &ManageEndpointsUseCase{
		endpointRepo: endpointRepo,
		logger:       logger,
	}
}

func (uc *ManageEndpointsUseCase) List(ctx context.Context, appID uint) ([]EndpointDTO, error) {
	if appID == 0 {
		return nil, errors.NewValidationError("app ID is required")
	}

	endpoints, err := uc.endpointRepo.ListByApp(ctx, appID)
	if err != nil {
		return nil, err
	}

	dtos := make([]EndpointDTO, len(endpoints))
	for i, ep := range endpoints {
		dtos[i] = toEndpointDTO(ep)
	}
	return dtos, nil
}

func (uc *ManageEndpointsUseCase) Update(ctx context.Context, cmd UpdateEndpointCommand) (*EndpointDTO, error) {
	if cmd.EndpointSID == "" {
		return nil, errors.NewValidationError("endpoint ID is required")
	}

	ep, err := uc.endpointRepo.GetBySID(ctx, cmd.EndpointSID)
	if err != nil {
		return nil, err
	}

	if cmd.URL != "" {
		if err := ep.UpdateURL(cmd.URL); err != nil {
			return nil, errors.NewValidationError(err.Error())
		}
	}
	if cmd.Active != nil {
		if *cmd.Active {
			ep.Enable()
		} else {
			ep.Disable()
		}
	}

	if err := uc.endpointRepo.Update(ctx, ep); err != nil {
		return nil, err
	}

	uc.logger.Infow("webhook endpoint updated",
		"endpoint_sid", ep.SID(),
		"url", ep.URL(),
		"active", ep.IsActive())

	dto := toEndpointDTO(ep)
	return &dto, nil
}

func toEndpointDTO(ep *delivery.WebhookEndpoint) EndpointDTO {
	return EndpointDTO{
		SID:         ep.SID(),
		URL:         ep.URL(),
		Description: ep.Description(),
		Active:      ep.IsActive(),
		CreatedAt:   ep.CreatedAt(),
	}
}
