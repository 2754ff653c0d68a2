package usecases

import (
	"context"

	"github.com/opencat-io/opencat/internal/domain/catalog"
	"github.com/opencat-io/opencat/internal/shared/errors"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

type ListProductsUseCase struct {
	productRepo catalog.ProductRepository
	logger      logger.Interface
}

func NewListProductsUseCase(productRepo catalog.ProductRepository, logger logger.Interface) *ListProductsUseCase {
	return &ListProductsUseCase{
		productRepo: productRepo,
		logger:      logger,
	}
}

func (uc *ListProductsUseCase) Execute(ctx context.Context, appID uint) ([]ProductDTO, error) {
	if appID == 0 {
		return nil, errors.NewValidationError("app ID is required")
	}

	products, err := uc.productRepo.ListByApp(ctx, appID)
	if err != nil {
		return nil, err
	}

	productIDs := make([]uint, len(products))
	for i, p := range products {
		productIDs[i] = p.ID()
	}
	grants, err := uc.productRepo.GetEntitlementsForProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dto := toProductDTO(p)
		for _, ent := range grants[p.ID()] {
			dto.Entitlements = append(dto.Entitlements, ent.Identifier())
		}
		dtos[i] = *dto
	}
	return dtos, nil
}
