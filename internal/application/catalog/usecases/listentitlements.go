package usecases

import (
	"context"

	"github.com/opencat-io/opencat/internal/domain/catalog"
	"github.com/opencat-io/opencat/internal/shared/errors"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

type ListEntitlementsUseCase struct {
	entitlementRepo catalog.EntitlementRepository
	logger          logger.Interface
}

func NewListEntitlementsUseCase(entitlementRepo catalog.EntitlementRepository, logger logger.Interface) *ListEntitlementsUseCase {
	return &ListEntitlementsUseCase{
		entitlementRepo: entitlementRepo,
		logger:          logger,
	}
}

func (uc *ListEntitlementsUseCase) Execute(ctx context.Context, appID uint) ([]EntitlementDTO, error) {
	if appID == 0 {
		return nil, errors.NewValidationError("app ID is required")
	}

	ents, err := uc.entitlementRepo.ListByApp(ctx, appID)
	if err != nil {
		return nil, err
	}

	dtos := make([]EntitlementDTO, len(ents))
	for i, e := range ents {
		dtos[i] = *toEntitlementDTO(e)
	}
	return dtos, nil
}
