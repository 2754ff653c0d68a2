package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/opencat-io/opencat/internal/application/app/usecases"
	"github.com/opencat-io/opencat/internal/shared/logger"
	"github.com/opencat-io/opencat/internal/shared/utils"
)

// AppHandler serves the admin app-management routes.
type AppHandler struct {
	createAppUC    *usecases.CreateAppUseCase
	listAppsUC     *usecases.ListAppsUseCase
	createAPIKeyUC *usecases.CreateAPIKeyUseCase
	logger         logger.Interface
}

func NewAppHandler(
	createAppUC *usecases.CreateAppUseCase,
	listAppsUC *usecases.ListAppsUseCase,
	createAPIKeyUC *usecases.CreateAPIKeyUseCase,
	logger logger.Interface,
) *AppHandler {
	return &AppHandler{
		createAppUC:    createAppUC,
		listAppsUC:     listAppsUC,
		createAPIKeyUC: createAPIKeyUC,
		logger:         logger,
	}
}

type CreateAppRequest struct {
	Name              string `json:"name" binding:"required"`
	AppleBundleID     string `json:"apple_bundle_id"`
	GooglePackageName string `json:"google_package_name"`
}

func (h *AppHandler) CreateApp(c *gin.Context) {
	var req CreateAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.createAppUC.Execute(c.Request.Context(), usecases.CreateAppCommand{
		Name:              req.Name,
		AppleBundleID:     req.AppleBundleID,
		GooglePackageName: req.GooglePackageName,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.CreatedResponse(c, result)
}

func (h *AppHandler) ListApps(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	result, err := h.listAppsUC.Execute(c.Request.Context(), usecases.ListAppsQuery{
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.ListSuccessResponse(c, result.Apps, result.Total, result.Page, result.PageSize)
}

type CreateAPIKeyRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *AppHandler) CreateAPIKey(c *gin.Context) {
	var req CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.createAPIKeyUC.Execute(c.Request.Context(), usecases.CreateAPIKeyCommand{
		AppSID: c.Param("app_sid"),
		Name:   req.Name,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.CreatedResponse(c, result)
}
