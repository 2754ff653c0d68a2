package usecases

import (
	"context"
	"time"

	"github.com/opencat-io/opencat/internal/application/resolver"
	"github.com/opencat-io/opencat/internal/domain/subscriber"
	"github.com/opencat-io/opencat/internal/shared/errors"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

type GetSubscriberInfoQuery struct {
	AppID     uint
	AppUserID string
}

type EntitlementInfoDTO struct {
	Identifier string     `json:"identifier"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type TransactionInfoDTO struct {
	SID                string     `json:"id"`
	Store              string     `json:"store"`
	StoreTransactionID string     `json:"store_transaction_id"`
	Status             string     `json:"status"`
	Environment        string     `json:"environment"`
	PurchasedAt        time.Time  `json:"purchased_at"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	RefundedAt         *time.Time `json:"refunded_at,omitempty"`
}

type SubscriberInfoDTO struct {
	SID          string               `json:"id"`
	AppUserID    string               `json:"app_user_id"`
	Entitlements []EntitlementInfoDTO `json:"entitlements"`
	Transactions []TransactionInfoDTO `json:"transactions"`
	FirstSeenAt  time.Time            `json:"first_seen_at"`
	LastSeenAt   time.Time            `json:"last_seen_at"`
}

// GetSubscriberInfoUseCase is the client-facing subscriber read model: the
// currently resolved entitlement set plus the transaction history behind it.
type GetSubscriberInfoUseCase struct {
	subscriberRepo  subscriber.Repository
	transactionRepo subscriber.TransactionRepository
	resolver        *resolver.Service
	logger          logger.Interface
}

func NewGetSubscriberInfoUseCase(
	subscriberRepo subscriber.Repository,
	transactionRepo subscriber.TransactionRepository,
	resolverSvc *resolver.Service,
	logger logger.Interface,
) *GetSubscriberInfoUseCase {
	return &GetSubscriberInfoUseCase{
		subscriberRepo:  subscriberRepo,
		transactionRepo: transactionRepo,
		resolver:        resolverSvc,
		logger:          logger,
	}
}

func (uc *GetSubscriberInfoUseCase) Execute(ctx context.Context, query GetSubscriberInfoQuery) (*SubscriberInfoDTO, error) {
	if query.AppID == 0 {
		return nil, errors.NewValidationError("app ID is required")
	}
	if query.AppUserID == "" {
		return nil, errors.NewValidationError("app user ID is required")
	}

	sub, err := uc.subscriberRepo.GetByAppUserID(ctx, query.AppID, query.AppUserID)
	if err != nil {
		return nil, err
	}

	res, err := uc.resolver.ResolveCurrent(ctx, sub.ID())
	if err != nil {
		return nil, err
	}

	txns, err := uc.transactionRepo.ListBySubscriber(ctx, sub.ID())
	if err != nil {
		return nil, err
	}

	dto := &SubscriberInfoDTO{
		SID:          sub.SID(),
		AppUserID:    sub.AppUserID(),
		Entitlements: make([]EntitlementInfoDTO, len(res.Entitlements)),
		Transactions: make([]TransactionInfoDTO, len(txns)),
		FirstSeenAt:  sub.CreatedAt(),
		LastSeenAt:   sub.LastSeenAt(),
	}
	for i, e := range res.Entitlements {
		dto.Entitlements[i] = EntitlementInfoDTO{
			Identifier: e.Identifier,
			ExpiresAt:  e.ExpiresAt,
		}
	}
	for i, txn := range txns {
		dto.Transactions[i] = TransactionInfoDTO{
			SID:                txn.SID(),
			Store:              txn.Store().String(),
			StoreTransactionID: txn.StoreTransactionID(),
			Status:             txn.Status().String(),
			Environment:        txn.Environment().String(),
			PurchasedAt:        txn.PurchasedAt(),
			ExpiresAt:          txn.ExpiresAt(),
			RefundedAt:         txn.RefundedAt(),
		}
	}
	return dto, nil
}
