package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/opencat-io/opencat/internal/domain/subscriber"
	"github.com/opencat-io/opencat/internal/infrastructure/persistence/models"
	"github.com/opencat-io/opencat/internal/shared/db"
	"github.com/opencat-io/opencat/internal/shared/errors"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

// TransactionRepositoryImpl implements the subscriber.TransactionRepository interface
type TransactionRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewTransactionRepository creates a new transaction repository instance
func NewTransactionRepository(database *gorm.DB, logger logger.Interface) subscriber.TransactionRepository {
	return &TransactionRepositoryImpl{
		db:     database,
		logger: logger,
	}
}

func (r *TransactionRepositoryImpl) tx(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

func (r *TransactionRepositoryImpl) toDomain(model *models.TransactionModel) (*subscriber.Transaction, error) {
	return subscriber.ReconstructTransaction(
		model.ID,
		model.SID,
		model.AppID,
		model.SubscriberID,
		model.ProductID,
		subscriber.Store(model.Store),
		model.StoreTransactionID,
		subscriber.TransactionStatus(model.Status),
		subscriber.Environment(model.Environment),
		model.PurchasedAt,
		model.ExpiresAt,
		model.RefundedAt,
		json.RawMessage(model.RawReceipt),
		model.CreatedAt,
		model.UpdatedAt,
		model.Version,
	)
}

// Create creates a new transaction
func (r *TransactionRepositoryImpl) Create(ctx context.Context, t *subscriber.Transaction) error {
	model := &models.TransactionModel{
		SID:                t.SID(),
		AppID:              t.AppID(),
		SubscriberID:       t.SubscriberID(),
		ProductID:          t.ProductID(),
		Store:              string(t.Store()),
		StoreTransactionID: t.StoreTransactionID(),
		Status:             string(t.Status()),
		Environment:        string(t.Environment()),
		PurchasedAt:        t.PurchasedAt(),
		ExpiresAt:          t.ExpiresAt(),
		RefundedAt:         t.RefundedAt(),
		RawReceipt:         datatypes.JSON(t.RawReceipt()),
		CreatedAt:          t.CreatedAt(),
		UpdatedAt:          t.UpdatedAt(),
		Version:            t.Version(),
	}

	if err := r.tx(ctx).Create(model).Error; err != nil {
		if errors.IsDuplicateError(err) {
			return errors.NewConflictError("transaction already exists")
		}
		r.logger.Errorw("failed to create transaction",
			"store", t.Store(),
			"store_transaction_id", t.StoreTransactionID(),
			"error", err)
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	if err := t.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set transaction ID: %w", err)
	}

	r.logger.Infow("transaction created",
		"id", model.ID,
		"sid", model.SID,
		"subscriber_id", model.SubscriberID,
		"status", model.Status)
	return nil
}

// Update updates an existing transaction with optimistic locking
func (r *TransactionRepositoryImpl) Update(ctx context.Context, t *subscriber.Transaction) error {
	result := r.tx(ctx).Model(&models.TransactionModel{}).
		Where("id = ? AND version = ?", t.ID(), t.Version()-1).
		Updates(map[string]interface{}{
			"status":      string(t.Status()),
			"expires_at":  t.ExpiresAt(),
			"refunded_at": t.RefundedAt(),
			"updated_at":  t.UpdatedAt(),
			"version":     t.Version(),
		})

	if result.Error != nil {
		r.logger.Errorw("failed to update transaction", "id", t.ID(), "error", result.Error)
		return fmt.Errorf("failed to update transaction: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewConflictError("transaction was modified by another process")
	}

	return nil
}

// GetByID retrieves a transaction by ID
func (r *TransactionRepositoryImpl) GetByID(ctx context.Context, id uint) (*subscriber.Transaction, error) {
	var model models.TransactionModel
	if err := r.tx(ctx).First(&model, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("transaction not found")
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return r.toDomain(&model)
}

// GetBySID retrieves a transaction by public identifier
func (r *TransactionRepositoryImpl) GetBySID(ctx context.Context, sid string) (*subscriber.Transaction, error) {
	var model models.TransactionModel
	if err := r.tx(ctx).Where("sid = ?", sid).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("transaction not found")
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return r.toDomain(&model)
}

// GetByStoreTransactionID retrieves a transaction by its idempotency key
func (r *TransactionRepositoryImpl) GetByStoreTransactionID(ctx context.Context, appID uint, store subscriber.Store, storeTransactionID string) (*subscriber.Transaction, error) {
	var model models.TransactionModel
	if err := r.tx(ctx).
		Where("app_id = ? AND store = ? AND store_transaction_id = ?",
			appID, string(store), storeTransactionID).
		First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("transaction not found")
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return r.toDomain(&model)
}

// ListBySubscriber retrieves all transactions for a subscriber
func (r *TransactionRepositoryImpl) ListBySubscriber(ctx context.Context, subscriberID uint) ([]*subscriber.Transaction, error) {
	var txnModels []models.TransactionModel
	if err := r.tx(ctx).
		Where("subscriber_id = ?", subscriberID).
		Order("purchased_at").
		Find(&txnModels).Error; err != nil {
		r.logger.Errorw("failed to list transactions", "subscriber_id", subscriberID, "error", err)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	txns := make([]*subscriber.Transaction, len(txnModels))
	for i := range txnModels {
		t, err := r.toDomain(&txnModels[i])
		if err != nil {
			return nil, fmt.Errorf("failed to reconstruct transaction: %w", err)
		}
		txns[i] = t
	}

	return txns, nil
}

// ListExpiredGranting retrieves transactions whose status still grants access
// but whose expiry has passed
func (r *TransactionRepositoryImpl) ListExpiredGranting(ctx context.Context, asOf time.Time, limit int) ([]*subscriber.Transaction, error) {
	var txnModels []models.TransactionModel
	if err := r.tx(ctx).
		Where("status IN ? AND expires_at IS NOT NULL AND expires_at <= ?",
			[]string{
				string(subscriber.TransactionStatusActive),
				string(subscriber.TransactionStatusGracePeriod),
				string(subscriber.TransactionStatusBillingRetry),
			}, asOf).
		Order("expires_at").
		Limit(limit).
		Find(&txnModels).Error; err != nil {
		r.logger.Errorw("failed to list expired transactions", "error", err)
		return nil, fmt.Errorf("failed to list expired transactions: %w", err)
	}

	txns := make([]*subscriber.Transaction, len(txnModels))
	for i := range txnModels {
		t, err := r.toDomain(&txnModels[i])
		if err != nil {
			return nil, fmt.Errorf("failed to reconstruct transaction: %w", err)
		}
		txns[i] = t
	}

	return txns, nil
}
