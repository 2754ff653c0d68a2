package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opencat-io/opencat/internal/application/delivery/usecases"
	"github.com/opencat-io/opencat/internal/interfaces/http/middleware"
	"github.com/opencat-io/opencat/internal/shared/logger"
	"github.com/opencat-io/opencat/internal/shared/utils"
)

// WebhookHandler serves endpoint management, delivery history, and replay.
type WebhookHandler struct {
	registerEndpointUC *usecases.RegisterEndpointUseCase
	manageEndpointsUC  *usecases.ManageEndpointsUseCase
	listDeliveriesUC   *usecases.ListDeliveriesUseCase
	replayDeliveryUC   *usecases.ReplayDeliveryUseCase
	logger             logger.Interface
}

func NewWebhookHandler(
	registerEndpointUC *usecases.RegisterEndpointUseCase,
	manageEndpointsUC *usecases.ManageEndpointsUseCase,
	listDeliveriesUC *usecases.ListDeliveriesUseCase,
	replayDeliveryUC *usecases.ReplayDeliveryUseCase,
	logger logger.Interface,
) *WebhookHandler {
	return &WebhookHandler{
		registerEndpointUC: registerEndpointUC,
		manageEndpointsUC:  manageEndpointsUC,
		listDeliveriesUC:   listDeliveriesUC,
		replayDeliveryUC:   replayDeliveryUC,
		logger:             logger,
	}
}

type RegisterEndpointRequest struct {
	URL         string `json:"url" binding:"required"`
	Description string `json:"description"`
}

func (h *WebhookHandler) RegisterEndpoint(c *gin.Context) {
	a, ok := middleware.AppFromContext(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req RegisterEndpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.registerEndpointUC.Execute(c.Request.Context(), usecases.RegisterEndpointCommand{
		AppID:       a.ID(),
		URL:         req.URL,
		Description: req.Description,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.CreatedResponse(c, result)
}

func (h *WebhookHandler) ListEndpoints(c *gin.Context) {
	a, ok := middleware.AppFromContext(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	result, err := h.manageEndpointsUC.List(c.Request.Context(), a.ID())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}

type UpdateEndpointRequest struct {
	URL    string `json:"url"`
	Active *bool  `json:"active"`
}

func (h *WebhookHandler) UpdateEndpoint(c *gin.Context) {
	if _, ok := middleware.AppFromContext(c); !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req UpdateEndpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.manageEndpointsUC.Update(c.Request.Context(), usecases.UpdateEndpointCommand{
		EndpointSID: c.Param("endpoint_sid"),
		URL:         req.URL,
		Active:      req.Active,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}

func (h *WebhookHandler) ListDeliveries(c *gin.Context) {
	if _, ok := middleware.AppFromContext(c); !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	pagination := utils.ParsePagination(c)

	result, err := h.listDeliveriesUC.Execute(c.Request.Context(), usecases.ListDeliveriesQuery{
		EndpointSID: c.Param("endpoint_sid"),
		Status:      c.Query("status"),
		Page:        pagination.Page,
		PageSize:    pagination.PageSize,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}

func (h *WebhookHandler) ReplayDelivery(c *gin.Context) {
	if _, ok := middleware.AppFromContext(c); !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	result, err := h.replayDeliveryUC.Execute(c.Request.Context(), usecases.ReplayDeliveryCommand{
		DeliverySID: c.Param("delivery_sid"),
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "delivery queued for replay", result)
}
