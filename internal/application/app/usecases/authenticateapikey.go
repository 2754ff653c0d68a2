package usecases

import (
	"context"

	"github.com/opencat-io/opencat/internal/domain/app"
	"github.com/opencat-io/opencat/internal/shared/errors"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

// AuthenticateAPIKeyUseCase resolves a plaintext API key to its app. Lookup
// goes through the SHA-256 hash so plaintext keys are never stored or
// queried; the last-used timestamp is updated best-effort.
type AuthenticateAPIKeyUseCase struct {
	appRepo    app.Repository
	apiKeyRepo app.APIKeyRepository
	logger     logger.Interface
}

func NewAuthenticateAPIKeyUseCase(
	appRepo app.Repository,
	apiKeyRepo app.APIKeyRepository,
	logger logger.Interface,
) *AuthenticateAPIKeyUseCase {
	return &AuthenticateAPIKeyUseCase{
		appRepo:    appRepo,
		apiKeyRepo: apiKeyRepo,
		logger:     logger,
	}
}

// Execute returns the app the key belongs to, or an unauthorized error.
func (uc *AuthenticateAPIKeyUseCase) Execute(ctx context.Context, plaintext string) (*app.App, error) {
	if plaintext == "" {
		return nil, errors.NewUnauthorizedError("API key is required")
	}

	key, err := uc.apiKeyRepo.GetByHash(ctx, app.HashAPIKey(plaintext))
	if err != nil {
		if errors.IsNotFoundError(err) {
			return nil, errors.NewUnauthorizedError("invalid API key")
		}
		return nil, err
	}
	if !key.Matches(plaintext) {
		return nil, errors.NewUnauthorizedError("invalid API key")
	}

	a, err := uc.appRepo.GetByID(ctx, key.AppID())
	if err != nil {
		return nil, err
	}

	if err := uc.apiKeyRepo.UpdateLastUsed(ctx, key.ID()); err != nil {
		uc.logger.Warnw("failed to update API key last-used time",
			"key_sid", key.SID(),
			"error", err)
	}

	return a, nil
}
