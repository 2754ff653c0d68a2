package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/opencat-io/opencat/internal/domain/catalog"
	"github.com/opencat-io/opencat/internal/infrastructure/persistence/models"
	"github.com/opencat-io/opencat/internal/shared/db"
	"github.com/opencat-io/opencat/internal/shared/errors"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

// ProductRepositoryImpl implements the catalog.ProductRepository interface
type ProductRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewProductRepository creates a new product repository instance
func NewProductRepository(database *gorm.DB, logger logger.Interface) catalog.ProductRepository {
	return &ProductRepositoryImpl{
		db:     database,
		logger: logger,
	}
}

func (r *ProductRepositoryImpl) tx(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

func (r *ProductRepositoryImpl) toDomain(model *models.ProductModel) (*catalog.Product, error) {
	return catalog.ReconstructProduct(
		model.ID,
		model.SID,
		model.AppID,
		model.StoreIdentifier,
		model.DisplayName,
		catalog.ProductType(model.ProductType),
		model.DurationDays,
		model.CreatedAt,
		model.UpdatedAt,
		model.Version,
	)
}

// Create creates a new product
func (r *ProductRepositoryImpl) Create(ctx context.Context, p *catalog.Product) error {
	model := &models.ProductModel{
		SID:             p.SID(),
		AppID:           p.AppID(),
		StoreIdentifier: p.StoreIdentifier(),
		DisplayName:     p.DisplayName(),
		ProductType:     string(p.ProductType()),
		DurationDays:    p.DurationDays(),
		CreatedAt:       p.CreatedAt(),
		UpdatedAt:       p.UpdatedAt(),
		Version:         p.Version(),
	}

	if err := r.tx(ctx).Create(model).Error; err != nil {
		if errors.IsDuplicateError(err) {
			return errors.NewConflictError("product store identifier already exists")
		}
		r.logger.Errorw("failed to create product",
			"app_id", p.AppID(),
			"store_identifier", p.StoreIdentifier(),
			"error", err)
		return fmt.Errorf("failed to create product: %w", err)
	}

	if err := p.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set product ID: %w", err)
	}

	r.logger.Infow("product created",
		"id", model.ID,
		"sid", model.SID,
		"store_identifier", model.StoreIdentifier)
	return nil
}

// Update updates an existing product with optimistic locking
func (r *ProductRepositoryImpl) Update(ctx context.Context, p *catalog.Product) error {
	result := r.tx(ctx).Model(&models.ProductModel{}).
		Where("id = ? AND version = ?", p.ID(), p.Version()-1).
		Updates(map[string]interface{}{
			"display_name": p.DisplayName(),
			"updated_at":   p.UpdatedAt(),
			"version":      p.Version(),
		})

	if result.Error != nil {
		r.logger.Errorw("failed to update product", "id", p.ID(), "error", result.Error)
		return fmt.Errorf("failed to update product: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewConflictError("product was modified by another process")
	}

	return nil
}

// Delete deletes a product by ID
func (r *ProductRepositoryImpl) Delete(ctx context.Context, id uint) error {
	return r.tx(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).
			Delete(&models.ProductEntitlementModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete product mappings: %w", err)
		}

		result := tx.Delete(&models.ProductModel{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete product: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return errors.NewNotFoundError("product not found")
		}

		r.logger.Infow("product deleted", "id", id)
		return nil
	})
}

// GetByID retrieves a product by ID
func (r *ProductRepositoryImpl) GetByID(ctx context.Context, id uint) (*catalog.Product, error) {
	var model models.ProductModel
	if err := r.tx(ctx).First(&model, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("product not found")
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return r.toDomain(&model)
}

// GetBySID retrieves a product by public identifier
func (r *ProductRepositoryImpl) GetBySID(ctx context.Context, sid string) (*catalog.Product, error) {
	var model models.ProductModel
	if err := r.tx(ctx).Where("sid = ?", sid).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("product not found")
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return r.toDomain(&model)
}

// GetByStoreIdentifier retrieves a product by its store identifier within an app
func (r *ProductRepositoryImpl) GetByStoreIdentifier(ctx context.Context, appID uint, storeIdentifier string) (*catalog.Product, error) {
	var model models.ProductModel
	if err := r.tx(ctx).
		Where("app_id = ? AND store_identifier = ?", appID, storeIdentifier).
		First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("product not found")
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return r.toDomain(&model)
}

// ListByApp retrieves all products for an app
func (r *ProductRepositoryImpl) ListByApp(ctx context.Context, appID uint) ([]*catalog.Product, error) {
	var productModels []models.ProductModel
	if err := r.tx(ctx).Where("app_id = ?", appID).Order("id").Find(&productModels).Error; err != nil {
		r.logger.Errorw("failed to list products", "app_id", appID, "error", err)
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	products := make([]*catalog.Product, len(productModels))
	for i := range productModels {
		p, err := r.toDomain(&productModels[i])
		if err != nil {
			return nil, fmt.Errorf("failed to reconstruct product: %w", err)
		}
		products[i] = p
	}

	return products, nil
}

// AttachEntitlement links a product to an entitlement definition
func (r *ProductRepositoryImpl) AttachEntitlement(ctx context.Context, productID, entitlementID uint) error {
	model := &models.ProductEntitlementModel{
		ProductID:     productID,
		EntitlementID: entitlementID,
	}

	if err := r.tx(ctx).Create(model).Error; err != nil {
		if errors.IsDuplicateError(err) {
			return errors.NewConflictError("product entitlement mapping already exists")
		}
		r.logger.Errorw("failed to attach entitlement",
			"product_id", productID,
			"entitlement_id", entitlementID,
			"error", err)
		return fmt.Errorf("failed to attach entitlement: %w", err)
	}

	r.logger.Infow("entitlement attached",
		"product_id", productID,
		"entitlement_id", entitlementID)
	return nil
}

// DetachEntitlement removes a product-entitlement link
func (r *ProductRepositoryImpl) DetachEntitlement(ctx context.Context, productID, entitlementID uint) error {
	result := r.tx(ctx).
		Where("product_id = ? AND entitlement_id = ?", productID, entitlementID).
		Delete(&models.ProductEntitlementModel{})

	if result.Error != nil {
		return fmt.Errorf("failed to detach entitlement: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("product entitlement mapping not found")
	}

	r.logger.Infow("entitlement detached",
		"product_id", productID,
		"entitlement_id", entitlementID)
	return nil
}

// GetEntitlementIDs retrieves the entitlement definition IDs granted by a product
func (r *ProductRepositoryImpl) GetEntitlementIDs(ctx context.Context, productID uint) ([]uint, error) {
	var entitlementIDs []uint
	if err := r.tx(ctx).
		Model(&models.ProductEntitlementModel{}).
		Where("product_id = ?", productID).
		Pluck("entitlement_id", &entitlementIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to get entitlement IDs: %w", err)
	}

	return entitlementIDs, nil
}

// GetEntitlementsForProducts retrieves entitlement definitions granted by any
// of the given products, keyed by product ID
func (r *ProductRepositoryImpl) GetEntitlementsForProducts(ctx context.Context, productIDs []uint) (map[uint][]*catalog.Entitlement, error) {
	result := make(map[uint][]*catalog.Entitlement)
	if len(productIDs) == 0 {
		return result, nil
	}

	var links []models.ProductEntitlementModel
	if err := r.tx(ctx).
		Where("product_id IN ?", productIDs).
		Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to get product entitlement mappings: %w", err)
	}
	if len(links) == 0 {
		return result, nil
	}

	entitlementIDs := make([]uint, 0, len(links))
	seen := make(map[uint]bool, len(links))
	for _, link := range links {
		if !seen[link.EntitlementID] {
			seen[link.EntitlementID] = true
			entitlementIDs = append(entitlementIDs, link.EntitlementID)
		}
	}

	var entModels []models.EntitlementModel
	if err := r.tx(ctx).
		Where("id IN ?", entitlementIDs).
		Find(&entModels).Error; err != nil {
		return nil, fmt.Errorf("failed to get entitlements: %w", err)
	}

	entByID := make(map[uint]*catalog.Entitlement, len(entModels))
	for i := range entModels {
		e, err := catalog.ReconstructEntitlement(
			entModels[i].ID,
			entModels[i].SID,
			entModels[i].AppID,
			entModels[i].Identifier,
			entModels[i].DisplayName,
			entModels[i].CreatedAt,
			entModels[i].UpdatedAt,
			entModels[i].Version,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to reconstruct entitlement: %w", err)
		}
		entByID[e.ID()] = e
	}

	for _, link := range links {
		if e, ok := entByID[link.EntitlementID]; ok {
			result[link.ProductID] = append(result[link.ProductID], e)
		}
	}

	return result, nil
}
