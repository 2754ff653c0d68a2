package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	appDomain "github.com/opencat-io/opencat/internal/domain/app"

	"github.com/opencat-io/opencat/internal/application/ingestion/usecases"
	"github.com/opencat-io/opencat/internal/domain/subscriber"
	"github.com/opencat-io/opencat/internal/shared/errors"
	"github.com/opencat-io/opencat/internal/shared/logger"
	"github.com/opencat-io/opencat/internal/shared/utils"
)

// NotificationHandler is the unauthenticated store notification intake. It
// decodes the minimal notification shape each store sends, resolves the app
// by its store identity, and feeds the embedded transaction into ingestion.
// Notifications that cannot be resolved are acknowledged with 200 anyway:
// returning an error would only make the store retry a notification we will
// never be able to process.
//
// Cryptographic receipt verification (JWS, Play Developer API calls) is
// deliberately not done here; the payload is trusted as-is.
type NotificationHandler struct {
	appRepo  appDomain.Repository
	ingestUC *usecases.IngestTransactionUseCase
	logger   logger.Interface
}

func NewNotificationHandler(
	appRepo appDomain.Repository,
	ingestUC *usecases.IngestTransactionUseCase,
	logger logger.Interface,
) *NotificationHandler {
	return &NotificationHandler{
		appRepo:  appRepo,
		ingestUC: ingestUC,
		logger:   logger,
	}
}

// NotificationTransaction is the transaction detail embedded in a store
// notification.
type NotificationTransaction struct {
	AppUserID          string          `json:"app_user_id" binding:"required"`
	ProductID          string          `json:"product_id" binding:"required"`
	TransactionID      string          `json:"transaction_id" binding:"required"`
	PurchasedAt        time.Time       `json:"purchased_at" binding:"required"`
	ExpiresAt          *time.Time      `json:"expires_at"`
	RawReceipt         json.RawMessage `json:"raw_receipt"`
}

type AppleNotificationRequest struct {
	BundleID         string                  `json:"bundle_id" binding:"required"`
	NotificationType string                  `json:"notification_type" binding:"required"`
	Subtype          string                  `json:"subtype"`
	Environment      string                  `json:"environment"`
	Transaction      NotificationTransaction `json:"transaction" binding:"required"`
}

func (h *NotificationHandler) Apple(c *gin.Context) {
	var req AppleNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	status, ok := appleStatus(req.NotificationType, req.Subtype)
	if !ok {
		h.acknowledgeIgnored(c, "apple", "unhandled notification type",
			"notification_type", req.NotificationType, "subtype", req.Subtype)
		return
	}

	a, err := h.appRepo.GetByAppleBundleID(c.Request.Context(), req.BundleID)
	if err != nil {
		if errors.IsNotFoundError(err) {
			h.acknowledgeIgnored(c, "apple", "no app for bundle id", "bundle_id", req.BundleID)
			return
		}
		utils.ErrorResponseWithError(c, err)
		return
	}

	h.ingest(c, "apple", a.ID(), subscriber.StoreApple, status, req.Environment, req.Transaction)
}

// appleStatus maps App Store server notification types to ledger statuses.
func appleStatus(notificationType, subtype string) (subscriber.TransactionStatus, bool) {
	switch notificationType {
	case "SUBSCRIBED", "DID_RENEW", "DID_CHANGE_RENEWAL_STATUS", "ONE_TIME_CHARGE":
		return subscriber.TransactionStatusActive, true
	case "DID_FAIL_TO_RENEW":
		if subtype == "GRACE_PERIOD" {
			return subscriber.TransactionStatusGracePeriod, true
		}
		return subscriber.TransactionStatusBillingRetry, true
	case "GRACE_PERIOD_EXPIRED":
		return subscriber.TransactionStatusBillingRetry, true
	case "EXPIRED":
		return subscriber.TransactionStatusExpired, true
	case "REFUND", "REVOKE":
		return subscriber.TransactionStatusRefunded, true
	default:
		return "", false
	}
}

type GoogleNotificationRequest struct {
	PackageName string                  `json:"package_name" binding:"required"`
	// NotificationType follows the Play real-time developer notification
	// subscription notification type codes.
	NotificationType int                     `json:"notification_type" binding:"required"`
	Environment      string                  `json:"environment"`
	Transaction      NotificationTransaction `json:"transaction" binding:"required"`
}

func (h *NotificationHandler) Google(c *gin.Context) {
	var req GoogleNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	status, ok := googleStatus(req.NotificationType)
	if !ok {
		h.acknowledgeIgnored(c, "google", "unhandled notification type",
			"notification_type", req.NotificationType)
		return
	}

	a, err := h.appRepo.GetByGooglePackageName(c.Request.Context(), req.PackageName)
	if err != nil {
		if errors.IsNotFoundError(err) {
			h.acknowledgeIgnored(c, "google", "no app for package name", "package_name", req.PackageName)
			return
		}
		utils.ErrorResponseWithError(c, err)
		return
	}

	h.ingest(c, "google", a.ID(), subscriber.StoreGoogle, status, req.Environment, req.Transaction)
}

// googleStatus maps Play RTDN subscription notification type codes to ledger
// statuses. Cancellation (3) keeps the subscription active until its expiry;
// the expiry sweep handles the lapse.
func googleStatus(notificationType int) (subscriber.TransactionStatus, bool) {
	switch notificationType {
	case 1, 2, 3, 4, 7: // recovered, renewed, canceled, purchased, restarted
		return subscriber.TransactionStatusActive, true
	case 5: // on hold
		return subscriber.TransactionStatusBillingRetry, true
	case 6: // in grace period
		return subscriber.TransactionStatusGracePeriod, true
	case 12: // revoked
		return subscriber.TransactionStatusRefunded, true
	case 13: // expired
		return subscriber.TransactionStatusExpired, true
	default:
		return "", false
	}
}

func (h *NotificationHandler) ingest(
	c *gin.Context,
	store string,
	appID uint,
	storeVO subscriber.Store,
	status subscriber.TransactionStatus,
	environment string,
	txn NotificationTransaction,
) {
	result, err := h.ingestUC.Execute(c.Request.Context(), usecases.IngestTransactionCommand{
		AppID:                  appID,
		AppUserID:              txn.AppUserID,
		ProductStoreIdentifier: txn.ProductID,
		Store:                  storeVO.String(),
		StoreTransactionID:     txn.TransactionID,
		Status:                 status.String(),
		Environment:            environment,
		PurchasedAt:            txn.PurchasedAt,
		ExpiresAt:              txn.ExpiresAt,
		RawReceipt:             txn.RawReceipt,
	})
	if err != nil {
		if errors.IsNotFoundError(err) || errors.IsValidationError(err) {
			h.acknowledgeIgnored(c, store, "notification not resolvable", "error", err.Error())
			return
		}
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}

func (h *NotificationHandler) acknowledgeIgnored(c *gin.Context, store, reason string, args ...any) {
	h.logger.Warnw("store notification ignored",
		append([]any{"store", store, "reason", reason}, args...)...)
	utils.SuccessResponse(c, http.StatusOK, "notification ignored", gin.H{"ignored": true})
}
