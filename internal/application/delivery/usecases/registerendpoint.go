package usecases

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opencat-io/opencat/internal/domain/delivery"
	"github.com/opencat-io/opencat/internal/shared/errors"
	"github.com/opencat-io/opencat/internal/shared/id"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

type RegisterEndpointCommand struct {
	AppID       uint
	URL         string
	Description string
}

type RegisterEndpointResult struct {
	SID string `json:"id"`
	URL string `json:"url"`
	// Secret signs every delivery to this endpoint. It is shown once at
	// registration; receivers need it to verify signatures.
	Secret      string    `json:"secret"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// RegisterEndpointUseCase registers a webhook destination and generates its
// signing secret. The endpoint starts receiving deliveries for events
// recorded from this point on; past events are never fanned out to it.
type RegisterEndpointUseCase struct {
	endpointRepo delivery.EndpointRepository
	logger       logger.Interface
}

func NewRegisterEndpointUseCase(endpointRepo delivery.EndpointRepository, logger logger.Interface) *RegisterEndpointUseCase {
	return &RegisterEndpointUseCase{
		endpointRepo: endpointRepo,
		logger:       logger,
	}
}

func (uc *RegisterEndpointUseCase) Execute(ctx context.Context, cmd RegisterEndpointCommand) (*RegisterEndpointResult, error) {
	if cmd.AppID == 0 {
		return nil, errors.NewValidationError("app ID is required")
	}
	parsed, err := url.Parse(cmd.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, errors.NewValidationError("endpoint URL must be a valid http(s) URL")
	}

	sid, err := id.NewWebhookEndpointID()
	if err != nil {
		return nil, err
	}
	secret := "whsec_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	ep, err := delivery.NewWebhookEndpoint(sid, cmd.AppID, cmd.URL, secret, cmd.Description)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	if err := uc.endpointRepo.Create(ctx, ep); err != nil {
		return nil, err
	}

	uc.logger.Infow("webhook endpoint registered",
		"endpoint_sid", ep.SID(),
		"app_id", cmd.AppID,
		"url", ep.URL())

	return &RegisterEndpointResult{
		SID:         ep.SID(),
		URL:         ep.URL(),
		Secret:      secret,
		Description: ep.Description(),
		Active:      ep.IsActive(),
		CreatedAt:   ep.CreatedAt(),
	}, nil
}
