package usecases

import (
	"context"
	"time"

	"github.com/opencat-io/opencat/internal/domain/catalog"
	"github.com/opencat-io/opencat/internal/shared/errors"
	"github.com/opencat-io/opencat/internal/shared/id"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

type CreateProductCommand struct {
	AppID           uint
	StoreIdentifier string
	DisplayName     string
	ProductType     string
	DurationDays    int
	// EntitlementIdentifiers are the entitlements purchasing this product
	// grants, referenced by their stable keys.
	EntitlementIdentifiers []string
}

type ProductDTO struct {
	SID             string    `json:"id"`
	StoreIdentifier string    `json:"store_identifier"`
	DisplayName     string    `json:"display_name"`
	ProductType     string    `json:"product_type"`
	DurationDays    int       `json:"duration_days,omitempty"`
	Entitlements    []string  `json:"entitlements,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// CreateProductUseCase registers a store product and links it to the
// entitlements it grants.
type CreateProductUseCase struct {
	productRepo     catalog.ProductRepository
	entitlementRepo catalog.EntitlementRepository
	logger          logger.Interface
}

func NewCreateProductUseCase(
	productRepo catalog.ProductRepository,
	entitlementRepo catalog.EntitlementRepository,
	logger logger.Interface,
) *CreateProductUseCase {
	return &CreateProductUseCase{
		productRepo:     productRepo,
		entitlementRepo: entitlementRepo,
		logger:          logger,
	}
}

func (uc *CreateProductUseCase) Execute(ctx context.Context, cmd CreateProductCommand) (*ProductDTO, error) {
	if cmd.AppID == 0 {
		return nil, errors.NewValidationError("app ID is required")
	}
	if cmd.StoreIdentifier == "" {
		return nil, errors.NewValidationError("store identifier is required")
	}
	productType := catalog.ProductType(cmd.ProductType)
	if !productType.IsValid() {
		return nil, errors.NewValidationError("invalid product type")
	}
	if cmd.DisplayName == "" {
		cmd.DisplayName = cmd.StoreIdentifier
	}

	// Resolve entitlement identifiers before creating anything so a typo
	// fails the whole command.
	ents := make([]*catalog.Entitlement, 0, len(cmd.EntitlementIdentifiers))
	for _, identifier := range cmd.EntitlementIdentifiers {
		ent, err := uc.entitlementRepo.GetByIdentifier(ctx, cmd.AppID, identifier)
		if err != nil {
			return nil, err
		}
		ents = append(ents, ent)
	}

	sid, err := id.NewProductID()
	if err != nil {
		return nil, err
	}
	p, err := catalog.NewProduct(sid, cmd.AppID, cmd.StoreIdentifier, cmd.DisplayName, productType, cmd.DurationDays)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	if err := uc.productRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	identifiers := make([]string, len(ents))
	for i, ent := range ents {
		if err := uc.productRepo.AttachEntitlement(ctx, p.ID(), ent.ID()); err != nil {
			return nil, err
		}
		identifiers[i] = ent.Identifier()
	}

	uc.logger.Infow("product created",
		"product_sid", p.SID(),
		"app_id", cmd.AppID,
		"store_identifier", p.StoreIdentifier(),
		"entitlements", identifiers)

	dto := toProductDTO(p)
	dto.Entitlements = identifiers
	return dto, nil
}

func toProductDTO(p *catalog.Product) *ProductDTO {
	return &ProductDTO{
		SID:             p.SID(),
		StoreIdentifier: p.StoreIdentifier(),
		DisplayName:     p.DisplayName(),
		ProductType:     p.ProductType().String(),
		DurationDays:    p.DurationDays(),
		CreatedAt:       p.CreatedAt(),
	}
}
