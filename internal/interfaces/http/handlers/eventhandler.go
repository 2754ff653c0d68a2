package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/opencat-io/opencat/internal/application/events/usecases"
	"github.com/opencat-io/opencat/internal/interfaces/http/middleware"
	"github.com/opencat-io/opencat/internal/shared/logger"
	"github.com/opencat-io/opencat/internal/shared/utils"
)

// EventHandler serves the event log read routes.
type EventHandler struct {
	listEventsUC *usecases.ListEventsUseCase
	logger       logger.Interface
}

func NewEventHandler(listEventsUC *usecases.ListEventsUseCase, logger logger.Interface) *EventHandler {
	return &EventHandler{
		listEventsUC: listEventsUC,
		logger:       logger,
	}
}

func (h *EventHandler) ListEvents(c *gin.Context) {
	a, ok := middleware.AppFromContext(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	result, err := h.listEventsUC.Execute(c.Request.Context(), usecases.ListEventsQuery{
		AppID:    a.ID(),
		SinceSID: c.Query("since"),
		Limit:    limit,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}
