package usecases

import (
	"context"
	"time"

	eventUsecases "github.com/opencat-io/opencat/internal/application/events/usecases"
	"github.com/opencat-io/opencat/internal/application/resolver"
	"github.com/opencat-io/opencat/internal/domain/event"
	"github.com/opencat-io/opencat/internal/domain/subscriber"
	"github.com/opencat-io/opencat/internal/shared/db"
	"github.com/opencat-io/opencat/internal/shared/id"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

// DefaultExpireBatchSize bounds the transactions handled per sweep run.
const DefaultExpireBatchSize = 200

// ExpireTransactionsUseCase is the background sweep that turns lapsed grants
// into explicit ledger state. A transaction whose status still grants access
// but whose expiry has passed is moved to expired, and when that removes
// entitlements from the subscriber's resolved set an entitlement.changed
// event is recorded. This is what makes pure time passage observable through
// webhooks.
type ExpireTransactionsUseCase struct {
	subscriberRepo  subscriber.Repository
	transactionRepo subscriber.TransactionRepository
	eventRepo       event.Repository
	resolver        *resolver.Service
	txManager       *db.TransactionManager
	fanOut          *eventUsecases.FanOutEventsUseCase
	logger          logger.Interface
}

func NewExpireTransactionsUseCase(
	subscriberRepo subscriber.Repository,
	transactionRepo subscriber.TransactionRepository,
	eventRepo event.Repository,
	resolverSvc *resolver.Service,
	txManager *db.TransactionManager,
	fanOut *eventUsecases.FanOutEventsUseCase,
	logger logger.Interface,
) *ExpireTransactionsUseCase {
	return &ExpireTransactionsUseCase{
		subscriberRepo:  subscriberRepo,
		transactionRepo: transactionRepo,
		eventRepo:       eventRepo,
		resolver:        resolverSvc,
		txManager:       txManager,
		fanOut:          fanOut,
		logger:          logger,
	}
}

// Execute runs one sweep pass. Returns the number of transactions expired.
func (uc *ExpireTransactionsUseCase) Execute(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	lapsed, err := uc.lapsedTransactions(ctx, now)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, txn := range lapsed {
		if err := uc.expireOne(ctx, txn, now); err != nil {
			uc.logger.Errorw("failed to expire transaction",
				"transaction_sid", txn.SID(),
				"error", err)
			continue
		}
		expired++
	}

	if expired > 0 {
		uc.logger.Infow("expiry sweep completed", "expired", expired)
	}
	return expired, nil
}

// lapsedTransactions collects transactions whose grant has lapsed. Subscribers
// with a due entry in the next-change index are handled first, then the ledger
// scan picks up whatever the index missed (cache disabled, process restart,
// index loss).
func (uc *ExpireTransactionsUseCase) lapsedTransactions(ctx context.Context, now time.Time) ([]*subscriber.Transaction, error) {
	lapsed := make([]*subscriber.Transaction, 0, DefaultExpireBatchSize)
	seen := make(map[uint]bool)

	for _, subscriberID := range uc.resolver.PopDueSubscribers(ctx, now, DefaultExpireBatchSize) {
		txns, err := uc.transactionRepo.ListBySubscriber(ctx, subscriberID)
		if err != nil {
			return nil, err
		}
		for _, txn := range txns {
			if txn.Status().GrantsAccess() && txn.ExpiresAt() != nil && !txn.ExpiresAt().After(now) {
				lapsed = append(lapsed, txn)
				seen[txn.ID()] = true
			}
		}
	}
	if len(lapsed) >= DefaultExpireBatchSize {
		return lapsed[:DefaultExpireBatchSize], nil
	}

	scanned, err := uc.transactionRepo.ListExpiredGranting(ctx, now, DefaultExpireBatchSize-len(lapsed))
	if err != nil {
		return nil, err
	}
	for _, txn := range scanned {
		if !seen[txn.ID()] {
			lapsed = append(lapsed, txn)
		}
	}
	return lapsed, nil
}

func (uc *ExpireTransactionsUseCase) expireOne(ctx context.Context, txn *subscriber.Transaction, now time.Time) error {
	var (
		recorded *event.Event
		after    *resolver.Resolution
	)

	err := uc.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		// Resolve just before the grant lapsed so the before set still
		// contains whatever this transaction contributed.
		justBefore := txn.ExpiresAt().Add(-time.Nanosecond)
		before, txErr := uc.resolver.Resolve(txCtx, txn.SubscriberID(), justBefore)
		if txErr != nil {
			return txErr
		}

		if txErr := txn.Expire(); txErr != nil {
			return txErr
		}
		if txErr := uc.transactionRepo.Update(txCtx, txn); txErr != nil {
			return txErr
		}

		after, txErr = uc.resolver.Resolve(txCtx, txn.SubscriberID(), now)
		if txErr != nil {
			return txErr
		}
		if before.SameSet(after) {
			// Another grant still covers every entitlement; the set did
			// not change, so there is nothing to announce.
			return nil
		}

		sub, txErr := uc.subscriberRepo.GetByID(txCtx, txn.SubscriberID())
		if txErr != nil {
			return txErr
		}

		sid, txErr := id.NewEventID()
		if txErr != nil {
			return txErr
		}
		recorded, txErr = event.NewEvent(sid, txn.AppID(), txn.SubscriberID(), event.TypeEntitlementChanged, map[string]any{
			"subscriber_id":        sub.SID(),
			"app_user_id":          sub.AppUserID(),
			"transaction_id":       txn.SID(),
			"store":                txn.Store().String(),
			"store_transaction_id": txn.StoreTransactionID(),
			"status":               txn.Status().String(),
			"entitlements_before":  before.Identifiers(),
			"entitlements_after":   after.Identifiers(),
		})
		if txErr != nil {
			return txErr
		}
		return uc.eventRepo.Create(txCtx, recorded)
	})
	if err != nil {
		return err
	}

	if after != nil {
		uc.resolver.Invalidate(ctx, txn.SubscriberID(), after.NextChangeAt)
	}
	if recorded != nil {
		if err := uc.fanOut.FanOutEvent(ctx, recorded); err != nil {
			uc.logger.Warnw("synchronous fan-out failed, deferring to sweep",
				"event_sid", recorded.SID(),
				"error", err)
		}
	}
	return nil
}
