package usecases

import (
	"context"

	"github.com/opencat-io/opencat/internal/domain/catalog"
	"github.com/opencat-io/opencat/internal/shared/errors"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

type GetOfferingsResult struct {
	CurrentOffering string        `json:"current_offering,omitempty"`
	Offerings       []OfferingDTO `json:"offerings"`
}

// GetOfferingsUseCase is the client-facing read model: every offering for
// the app with its products expanded, plus which one is current.
type GetOfferingsUseCase struct {
	offeringRepo catalog.OfferingRepository
	productRepo  catalog.ProductRepository
	logger       logger.Interface
}

func NewGetOfferingsUseCase(
	offeringRepo catalog.OfferingRepository,
	productRepo catalog.ProductRepository,
	logger logger.Interface,
) *GetOfferingsUseCase {
	return &GetOfferingsUseCase{
		offeringRepo: offeringRepo,
		productRepo:  productRepo,
		logger:       logger,
	}
}

func (uc *GetOfferingsUseCase) Execute(ctx context.Context, appID uint) (*GetOfferingsResult, error) {
	if appID == 0 {
		return nil, errors.NewValidationError("app ID is required")
	}

	offerings, err := uc.offeringRepo.ListByApp(ctx, appID)
	if err != nil {
		return nil, err
	}

	result := &GetOfferingsResult{
		Offerings: make([]OfferingDTO, len(offerings)),
	}
	for i, o := range offerings {
		dto := OfferingDTO{
			Identifier:  o.Identifier(),
			DisplayName: o.DisplayName(),
			IsCurrent:   o.IsCurrent(),
			Products:    make([]ProductDTO, 0, len(o.ProductIDs())),
		}
		for _, productID := range o.ProductIDs() {
			p, err := uc.productRepo.GetByID(ctx, productID)
			if err != nil {
				// Product deleted after the offering referenced it; skip
				// rather than break the whole paywall read.
				if errors.IsNotFoundError(err) {
					uc.logger.Warnw("offering references missing product",
						"app_id", appID,
						"offering", o.Identifier(),
						"product_id", productID)
					continue
				}
				return nil, err
			}
			dto.Products = append(dto.Products, *toProductDTO(p))
		}
		result.Offerings[i] = dto
		if o.IsCurrent() {
			result.CurrentOffering = o.Identifier()
		}
	}
	return result, nil
}
