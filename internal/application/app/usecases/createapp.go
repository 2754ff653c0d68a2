package usecases

import (
	"context"
	"time"

	"github.com/opencat-io/opencat/internal/domain/app"
	"github.com/opencat-io/opencat/internal/shared/errors"
	"github.com/opencat-io/opencat/internal/shared/id"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

type CreateAppCommand struct {
	Name              string
	AppleBundleID     string
	GooglePackageName string
}

type AppDTO struct {
	SID               string    `json:"id"`
	Name              string    `json:"name"`
	AppleBundleID     string    `json:"apple_bundle_id,omitempty"`
	GooglePackageName string    `json:"google_package_name,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// CreateAppUseCase registers a new app. An app is the tenant boundary for
// everything else: products, subscribers, events, and webhook endpoints.
type CreateAppUseCase struct {
	appRepo app.Repository
	logger  logger.Interface
}

func NewCreateAppUseCase(appRepo app.Repository, logger logger.Interface) *CreateAppUseCase {
	return &CreateAppUseCase{
		appRepo: appRepo,
		logger:  logger,
	}
}

func (uc *CreateAppUseCase) Execute(ctx context.Context, cmd CreateAppCommand) (*AppDTO, error) {
	if cmd.Name == "" {
		return nil, errors.NewValidationError("app name is required")
	}

	sid, err := id.NewAppID()
	if err != nil {
		return nil, err
	}
	a, err := app.NewApp(sid, cmd.Name, cmd.AppleBundleID, cmd.GooglePackageName)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	if err := uc.appRepo.Create(ctx, a); err != nil {
		return nil, err
	}

	uc.logger.Infow("app created", "app_sid", a.SID(), "name", a.Name())
	return toAppDTO(a), nil
}

func toAppDTO(a *app.App) *AppDTO {
	return &AppDTO{
		SID:               a.SID(),
		Name:              a.Name(),
		AppleBundleID:     a.AppleBundleID(),
		GooglePackageName: a.GooglePackageName(),
		CreatedAt:         a.CreatedAt(),
	}
}
