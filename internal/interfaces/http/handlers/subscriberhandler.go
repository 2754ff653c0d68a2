package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opencat-io/opencat/internal/application/subscriber/usecases"
	"github.com/opencat-io/opencat/internal/interfaces/http/middleware"
	"github.com/opencat-io/opencat/internal/shared/logger"
	"github.com/opencat-io/opencat/internal/shared/utils"
)

// SubscriberHandler serves the subscriber info read model.
type SubscriberHandler struct {
	getSubscriberInfoUC *usecases.GetSubscriberInfoUseCase
	logger              logger.Interface
}

func NewSubscriberHandler(getSubscriberInfoUC *usecases.GetSubscriberInfoUseCase, logger logger.Interface) *SubscriberHandler {
	return &SubscriberHandler{
		getSubscriberInfoUC: getSubscriberInfoUC,
		logger:              logger,
	}
}

func (h *SubscriberHandler) GetSubscriberInfo(c *gin.Context) {
	a, ok := middleware.AppFromContext(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	result, err := h.getSubscriberInfoUC.Execute(c.Request.Context(), usecases.GetSubscriberInfoQuery{
		AppID:     a.ID(),
		AppUserID: c.Param("app_user_id"),
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}
