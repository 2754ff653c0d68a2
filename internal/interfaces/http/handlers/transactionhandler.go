package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/opencat-io/opencat/internal/application/ingestion/usecases"
	"github.com/opencat-io/opencat/internal/interfaces/http/middleware"
	"github.com/opencat-io/opencat/internal/shared/logger"
	"github.com/opencat-io/opencat/internal/shared/utils"
)

// TransactionHandler serves the ingestion route. This is the write path of
// the whole system: every purchase, renewal, refund, or status change enters
// through here.
type TransactionHandler struct {
	ingestUC *usecases.IngestTransactionUseCase
	logger   logger.Interface
}

func NewTransactionHandler(ingestUC *usecases.IngestTransactionUseCase, logger logger.Interface) *TransactionHandler {
	return &TransactionHandler{
		ingestUC: ingestUC,
		logger:   logger,
	}
}

type IngestTransactionRequest struct {
	AppUserID          string          `json:"app_user_id" binding:"required"`
	ProductID          string          `json:"product_id" binding:"required"`
	Store              string          `json:"store" binding:"required,oneof=apple google"`
	StoreTransactionID string          `json:"store_transaction_id" binding:"required"`
	Status             string          `json:"status" binding:"required"`
	Environment        string          `json:"environment" binding:"omitempty,oneof=production sandbox"`
	PurchasedAt        time.Time       `json:"purchased_at" binding:"required"`
	ExpiresAt          *time.Time      `json:"expires_at"`
	RawReceipt         json.RawMessage `json:"raw_receipt"`
}

func (h *TransactionHandler) Ingest(c *gin.Context) {
	a, ok := middleware.AppFromContext(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req IngestTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.ingestUC.Execute(c.Request.Context(), usecases.IngestTransactionCommand{
		AppID:                  a.ID(),
		AppUserID:              req.AppUserID,
		ProductStoreIdentifier: req.ProductID,
		Store:                  req.Store,
		StoreTransactionID:     req.StoreTransactionID,
		Status:                 req.Status,
		Environment:            req.Environment,
		PurchasedAt:            req.PurchasedAt,
		ExpiresAt:              req.ExpiresAt,
		RawReceipt:             req.RawReceipt,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	utils.SuccessResponse(c, status, "", result)
}
