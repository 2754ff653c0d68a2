package usecases

import (
	"context"
	"time"

	"github.com/opencat-io/opencat/internal/domain/catalog"
	"github.com/opencat-io/opencat/internal/shared/errors"
	"github.com/opencat-io/opencat/internal/shared/id"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

type CreateEntitlementCommand struct {
	AppID       uint
	Identifier  string
	DisplayName string
}

type EntitlementDTO struct {
	SID         string    `json:"id"`
	Identifier  string    `json:"identifier"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateEntitlementUseCase defines a new entitlement: a named capability
// (e.g. "premium") that products grant and the resolver reports.
type CreateEntitlementUseCase struct {
	entitlementRepo catalog.EntitlementRepository
	logger          logger.Interface
}

func NewCreateEntitlementUseCase(entitlementRepo catalog.EntitlementRepository, logger logger.Interface) *CreateEntitlementUseCase {
	return &CreateEntitlementUseCase{
		entitlementRepo: entitlementRepo,
		logger:          logger,
	}
}

func (uc *CreateEntitlementUseCase) Execute(ctx context.Context, cmd CreateEntitlementCommand) (*EntitlementDTO, error) {
	if cmd.AppID == 0 {
		return nil, errors.NewValidationError("app ID is required")
	}
	if cmd.Identifier == "" {
		return nil, errors.NewValidationError("entitlement identifier is required")
	}
	if cmd.DisplayName == "" {
		cmd.DisplayName = cmd.Identifier
	}

	sid, err := id.NewEntitlementID()
	if err != nil {
		return nil, err
	}
	ent, err := catalog.NewEntitlement(sid, cmd.AppID, cmd.Identifier, cmd.DisplayName)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	if err := uc.entitlementRepo.Create(ctx, ent); err != nil {
		return nil, err
	}

	uc.logger.Infow("entitlement created",
		"entitlement_sid", ent.SID(),
		"app_id", cmd.AppID,
		"identifier", ent.Identifier())
	return toEntitlementDTO(ent), nil
}

func toEntitlementDTO(e *catalog.Entitlement) *EntitlementDTO {
	return &EntitlementDTO{
		SID:         e.SID(),
		Identifier:  e.Identifier(),
		DisplayName: e.DisplayName(),
		CreatedAt:   e.CreatedAt(),
	}
}
