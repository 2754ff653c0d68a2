package usecases

import (
	"context"

	"github.com/opencat-io/opencat/internal/domain/catalog"
	"github.com/opencat-io/opencat/internal/shared/errors"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

type UpsertOfferingCommand struct {
	AppID       uint
	Identifier  string
	DisplayName string
	// ProductSIDs are the products presented by this offering, in display
	// order.
	ProductSIDs []string
	// MakeCurrent flags this offering as the one clients should present.
	MakeCurrent bool
}

type OfferingDTO struct {
	Identifier  string       `json:"identifier"`
	DisplayName string       `json:"display_name"`
	IsCurrent   bool         `json:"is_current"`
	Products    []ProductDTO `json:"products"`
}

// UpsertOfferingUseCase creates an offering or replaces an existing one with
// the same identifier. Offerings are paywall configurations, so replacing
// wholesale is the natural write model.
type UpsertOfferingUseCase struct {
	offeringRepo catalog.OfferingRepository
	productRepo  catalog.ProductRepository
	logger       logger.Interface
}

func NewUpsertOfferingUseCase(
	offeringRepo catalog.OfferingRepository,
	productRepo catalog.ProductRepository,
	logger logger.Interface,
) *UpsertOfferingUseCase {
	return &UpsertOfferingUseCase{
		offeringRepo: offeringRepo,
		productRepo:  productRepo,
		logger:       logger,
	}
}

func (uc *UpsertOfferingUseCase) Execute(ctx context.Context, cmd UpsertOfferingCommand) (*OfferingDTO, error) {
	if cmd.AppID == 0 {
		return nil, errors.NewValidationError("app ID is required")
	}
	if cmd.Identifier == "" {
		return nil, errors.NewValidationError("offering identifier is required")
	}
	if cmd.DisplayName == "" {
		cmd.DisplayName = cmd.Identifier
	}

	products := make([]*catalog.Product, 0, len(cmd.ProductSIDs))
	productIDs := make([]uint, 0, len(cmd.ProductSIDs))
	for _, sid := range cmd.ProductSIDs {
		p, err := uc.productRepo.GetBySID(ctx, sid)
		if err != nil {
			return nil, err
		}
		if p.AppID() != cmd.AppID {
			return nil, errors.NewNotFoundError("product not found")
		}
		products = append(products, p)
		productIDs = append(productIDs, p.ID())
	}

	offering, err := uc.offeringRepo.GetByIdentifier(ctx, cmd.AppID, cmd.Identifier)
	switch {
	case err == nil:
		offering.Rename(cmd.DisplayName)
		offering.ReplaceProducts(productIDs)
		if err := uc.offeringRepo.Update(ctx, offering); err != nil {
			return nil, err
		}
	case errors.IsNotFoundError(err):
		offering, err = catalog.NewOffering(cmd.AppID, cmd.Identifier, cmd.DisplayName, productIDs)
		if err != nil {
			return nil, errors.NewValidationError(err.Error())
		}
		if err := uc.offeringRepo.Create(ctx, offering); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if cmd.MakeCurrent {
		if err := uc.offeringRepo.SetCurrent(ctx, cmd.AppID, offering.ID()); err != nil {
			return nil, err
		}
		offering.MarkCurrent()
	}

	uc.logger.Infow("offering upserted",
		"app_id", cmd.AppID,
		"identifier", offering.Identifier(),
		"products", len(productIDs),
		"current", offering.IsCurrent())

	dto := &OfferingDTO{
		Identifier:  offering.Identifier(),
		DisplayName: offering.DisplayName(),
		IsCurrent:   offering.IsCurrent(),
		Products:    make([]ProductDTO, len(products)),
	}
	for i, p := range products {
		dto.Products[i] = *toProductDTO(p)
	}
	return dto, nil
}
