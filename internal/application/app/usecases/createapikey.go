package usecases

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opencat-io/opencat/internal/domain/app"
	"github.com/opencat-io/opencat/internal/shared/errors"
	"github.com/opencat-io/opencat/internal/shared/id"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

type CreateAPIKeyCommand struct {
	AppSID string
	Name   string
}

type CreateAPIKeyResult struct {
	SID string `json:"id"`
	// Key is the plaintext API key, shown exactly once. Only its hash is
	// persisted.
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateAPIKeyUseCase issues a new API credential for an app.
type CreateAPIKeyUseCase struct {
	appRepo    app.Repository
	apiKeyRepo app.APIKeyRepository
	logger     logger.Interface
}

func NewCreateAPIKeyUseCase(
	appRepo app.Repository,
	apiKeyRepo app.APIKeyRepository,
	logger logger.Interface,
) *CreateAPIKeyUseCase {
	return &CreateAPIKeyUseCase{
		appRepo:    appRepo,
		apiKeyRepo: apiKeyRepo,
		logger:     logger,
	}
}

func (uc *CreateAPIKeyUseCase) Execute(ctx context.Context, cmd CreateAPIKeyCommand) (*CreateAPIKeyResult, error) {
	if cmd.AppSID == "" {
		return nil, errors.NewValidationError("app ID is required")
	}
	if cmd.Name == "" {
		return nil, errors.NewValidationError("API key name is required")
	}

	a, err := uc.appRepo.GetBySID(ctx, cmd.AppSID)
	if err != nil {
		return nil, err
	}

	sid, err := id.NewAPIKeyID()
	if err != nil {
		return nil, err
	}
	plaintext := app.APIKeyPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")

	key, err := app.NewAPIKey(sid, a.ID(), cmd.Name, plaintext)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	if err := uc.apiKeyRepo.Create(ctx, key); err != nil {
		return nil, err
	}

	uc.logger.Infow("API key created",
		"key_sid", key.SID(),
		"app_sid", a.SID(),
		"name", key.Name())

	return &CreateAPIKeyResult{
		SID:       key.SID(),
		Key:       plaintext,
		Name:      key.Name(),
		CreatedAt: key.CreatedAt(),
	}, nil
}
