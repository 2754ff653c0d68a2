package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opencat-io/opencat/internal/application/catalog/usecases"
	"github.com/opencat-io/opencat/internal/interfaces/http/middleware"
	"github.com/opencat-io/opencat/internal/shared/logger"
	"github.com/opencat-io/opencat/internal/shared/utils"
)

// CatalogHandler serves entitlement, product, and offering routes for the
// authenticated app.
type CatalogHandler struct {
	createEntitlementUC *usecases.CreateEntitlementUseCase
	listEntitlementsUC  *usecases.ListEntitlementsUseCase
	createProductUC     *usecases.CreateProductUseCase
	listProductsUC      *usecases.ListProductsUseCase
	upsertOfferingUC    *usecases.UpsertOfferingUseCase
	getOfferingsUC      *usecases.GetOfferingsUseCase
	logger              logger.Interface
}

func NewCatalogHandler(
	createEntitlementUC *usecases.CreateEntitlementUseCase,
	listEntitlementsUC *usecases.ListEntitlementsUseCase,
	createProductUC *usecases.CreateProductUseCase,
	listProductsUC *usecases.ListProductsUseCase,
	upsertOfferingUC *usecases.UpsertOfferingUseCase,
	getOfferingsUC *usecases.GetOfferingsUseCase,
	logger logger.Interface,
) *CatalogHandler {
	return &CatalogHandler{
		createEntitlementUC: createEntitlementUC,
		listEntitlementsUC:  listEntitlementsUC,
		createProductUC:     createProductUC,
		listProductsUC:      listProductsUC,
		upsertOfferingUC:    upsertOfferingUC,
		getOfferingsUC:      getOfferingsUC,
		logger:              logger,
	}
}

type CreateEntitlementRequest struct {
	Identifier  string `json:"identifier" binding:"required"`
	DisplayName string `json:"display_name"`
}

func (h *CatalogHandler) CreateEntitlement(c *gin.Context) {
	a, ok := middleware.AppFromContext(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req CreateEntitlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.createEntitlementUC.Execute(c.Request.Context(), usecases.CreateEntitlementCommand{
		AppID:       a.ID(),
		Identifier:  req.Identifier,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.CreatedResponse(c, result)
}

func (h *CatalogHandler) ListEntitlements(c *gin.Context) {
	a, ok := middleware.AppFromContext(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	result, err := h.listEntitlementsUC.Execute(c.Request.Context(), a.ID())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}

type CreateProductRequest struct {
	StoreIdentifier string   `json:"store_identifier" binding:"required"`
	DisplayName     string   `json:"display_name"`
	ProductType     string   `json:"product_type" binding:"required,oneof=subscription non_consumable consumable"`
	DurationDays    int      `json:"duration_days"`
	Entitlements    []string `json:"entitlements"`
}

func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	a, ok := middleware.AppFromContext(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.createProductUC.Execute(c.Request.Context(), usecases.CreateProductCommand{
		AppID:                  a.ID(),
		StoreIdentifier:        req.StoreIdentifier,
		DisplayName:            req.DisplayName,
		ProductType:            req.ProductType,
		DurationDays:           req.DurationDays,
		EntitlementIdentifiers: req.Entitlements,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.CreatedResponse(c, result)
}

func (h *CatalogHandler) ListProducts(c *gin.Context) {
	a, ok := middleware.AppFromContext(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	result, err := h.listProductsUC.Execute(c.Request.Context(), a.ID())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}

type UpsertOfferingRequest struct {
	Identifier  string   `json:"identifier" binding:"required"`
	DisplayName string   `json:"display_name"`
	Products    []string `json:"products"`
	MakeCurrent bool     `json:"make_current"`
}

func (h *CatalogHandler) UpsertOffering(c *gin.Context) {
	a, ok := middleware.AppFromContext(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req UpsertOfferingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.upsertOfferingUC.Execute(c.Request.Context(), usecases.UpsertOfferingCommand{
		AppID:       a.ID(),
		Identifier:  req.Identifier,
		DisplayName: req.DisplayName,
		ProductSIDs: req.Products,
		MakeCurrent: req.MakeCurrent,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}

func (h *CatalogHandler) GetOfferings(c *gin.Context) {
	a, ok := middleware.AppFromContext(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	result, err := h.getOfferingsUC.Execute(c.Request.Context(), a.ID())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}
