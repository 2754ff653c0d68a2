package usecases

import (
	"context"
	"encoding/json"
	"time"

	eventUsecases "github.com/opencat-io/opencat/internal/application/events/usecases"
	"github.com/opencat-io/opencat/internal/application/resolver"
	"github.com/opencat-io/opencat/internal/domain/catalog"
	"github.com/opencat-io/opencat/internal/domain/event"
	"github.com/opencat-io/opencat/internal/domain/subscriber"
	"github.com/opencat-io/opencat/internal/shared/db"
	"github.com/opencat-io/opencat/internal/shared/errors"
	"github.com/opencat-io/opencat/internal/shared/id"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

type IngestTransactionCommand struct {
	AppID                  uint
	AppUserID              string
	ProductStoreIdentifier string
	Store                  string
	StoreTransactionID     string
	Status                 string
	Environment            string // defaults to production
	PurchasedAt            time.Time
	ExpiresAt              *time.Time
	RawReceipt             json.RawMessage
}

type IngestTransactionResult struct {
	TransactionSID      string `json:"transaction_id"`
	SubscriberSID       string `json:"subscriber_id"`
	Created             bool   `json:"created"`
	EntitlementsChanged bool   `json:"entitlements_changed"`
	// EventSID is empty when the write was a no-op.
	EventSID string `json:"event_id,omitempty"`
}

// IngestTransactionUseCase records a store transaction in the ledger and
// emits the corresponding event, all inside one database transaction.
// Ingestion is idempotent on (app, store, store transaction id): replaying
// identical data changes nothing and emits nothing. When the write changes
// the resolved entitlement set, the event is entitlement.changed carrying the
// before/after sets; otherwise it is transaction.ingested.
type IngestTransactionUseCase struct {
	subscriberRepo  subscriber.Repository
	transactionRepo subscriber.TransactionRepository
	productRepo     catalog.ProductRepository
	eventRepo       event.Repository
	resolver        *resolver.Service
	txManager       *db.TransactionManager
	fanOut          *eventUsecases.FanOutEventsUseCase
	logger          logger.Interface
}

func NewIngestTransactionUseCase(
	subscriberRepo subscriber.Repository,
	transactionRepo subscriber.TransactionRepository,
	productRepo catalog.ProductRepository,
	eventRepo event.Repository,
	resolverSvc *resolver.Service,
	txManager *db.TransactionManager,
	fanOut *eventUsecases.FanOutEventsUseCase,
	logger logger.Interface,
) *IngestTransactionUseCase {
	return &IngestTransactionUseCase{
		subscriberRepo:  subscriberRepo,
		transactionRepo: transactionRepo,
		productRepo:     productRepo,
		eventRepo:       eventRepo,
		resolver:        resolverSvc,
		txManager:       txManager,
		fanOut:          fanOut,
		logger:          logger,
	}
}

func (uc *IngestTransactionUseCase) Execute(ctx context.Context, cmd IngestTransactionCommand) (*IngestTransactionResult, error) {
	if err := uc.validateCommand(&cmd); err != nil {
		return nil, err
	}

	product, err := uc.productRepo.GetByStoreIdentifier(ctx, cmd.AppID, cmd.ProductStoreIdentifier)
	if err != nil {
		return nil, err
	}

	var (
		result   IngestTransactionResult
		recorded *event.Event
		after    *resolver.Resolution
		sub      *subscriber.Subscriber
	)

	err = uc.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		var txErr error
		sub, txErr = uc.getOrCreateSubscriber(txCtx, cmd.AppID, cmd.AppUserID)
		if txErr != nil {
			return txErr
		}
		result.SubscriberSID = sub.SID()

		now := time.Now().UTC()
		before, txErr := uc.resolver.Resolve(txCtx, sub.ID(), now)
		if txErr != nil {
			return txErr
		}

		txn, changed, created, txErr := uc.upsertTransaction(txCtx, &cmd, sub.ID(), product.ID())
		if txErr != nil {
			return txErr
		}
		result.TransactionSID = txn.SID()
		result.Created = created

		if !changed {
			// Idempotent replay: no state change, no event.
			return nil
		}

		after, txErr = uc.resolver.Resolve(txCtx, sub.ID(), now)
		if txErr != nil {
			return txErr
		}
		result.EntitlementsChanged = !before.SameSet(after)

		recorded, txErr = uc.recordEvent(txCtx, sub, txn, before, after, result.EntitlementsChanged)
		if txErr != nil {
			return txErr
		}
		result.EventSID = recorded.SID()
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Post-commit side effects. Both are tolerant of failure: the cache is
	// only a cache, and the fan-out sweep picks up any event left unmarked.
	if after != nil {
		uc.resolver.Invalidate(ctx, sub.ID(), after.NextChangeAt)
	}
	if recorded != nil {
		if err := uc.fanOut.FanOutEvent(ctx, recorded); err != nil {
			uc.logger.Warnw("synchronous fan-out failed, deferring to sweep",
				"event_sid", recorded.SID(),
				"error", err)
		}
	}

	uc.logger.Infow("transaction ingested",
		"transaction_sid", result.TransactionSID,
		"subscriber_sid", result.SubscriberSID,
		"created", result.Created,
		"entitlements_changed", result.EntitlementsChanged)
	return &result, nil
}

func (uc *IngestTransactionUseCase) validateCommand(cmd *IngestTransactionCommand) error {
	if cmd.AppID == 0 {
		return errors.NewValidationError("app ID is required")
	}
	if cmd.AppUserID == "" {
		return errors.NewValidationError("app user ID is required")
	}
	if cmd.ProductStoreIdentifier == "" {
		return errors.NewValidationError("product store identifier is required")
	}
	if cmd.StoreTransactionID == "" {
		return errors.NewValidationError("store transaction ID is required")
	}
	if !subscriber.Store(cmd.Store).IsValid() {
		return errors.NewValidationError("invalid store")
	}
	if !subscriber.TransactionStatus(cmd.Status).IsValid() {
		return errors.NewValidationError("invalid transaction status")
	}
	if cmd.Environment == "" {
		cmd.Environment = subscriber.EnvironmentProduction.String()
	}
	if !subscriber.Environment(cmd.Environment).IsValid() {
		return errors.NewValidationError("invalid environment")
	}
	if cmd.PurchasedAt.IsZero() {
		return errors.NewValidationError("purchase time is required")
	}
	return nil
}

func (uc *IngestTransactionUseCase) getOrCreateSubscriber(ctx context.Context, appID uint, appUserID string) (*subscriber.Subscriber, error) {
	sub, err := uc.subscriberRepo.GetByAppUserID(ctx, appID, appUserID)
	if err == nil {
		return sub, nil
	}
	if !errors.IsNotFoundError(err) {
		return nil, err
	}

	sid, err := id.NewSubscriberID()
	if err != nil {
		return nil, err
	}
	sub, err = subscriber.NewSubscriber(sid, appID, appUserID)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	if err := uc.subscriberRepo.Create(ctx, sub); err != nil {
		// Lost a create race with a concurrent ingest for the same user.
		if errors.IsConflictError(err) {
			return uc.subscriberRepo.GetByAppUserID(ctx, appID, appUserID)
		}
		return nil, err
	}
	return sub, nil
}

// upsertTransaction writes the store-reported state into the ledger. Returns
// the transaction, whether anything actually changed, and whether the row is
// new.
func (uc *IngestTransactionUseCase) upsertTransaction(
	ctx context.Context,
	cmd *IngestTransactionCommand,
	subscriberID, productID uint,
) (*subscriber.Transaction, bool, bool, error) {
	store := subscriber.Store(cmd.Store)
	status := subscriber.TransactionStatus(cmd.Status)

	existing, err := uc.transactionRepo.GetByStoreTransactionID(ctx, cmd.AppID, store, cmd.StoreTransactionID)
	if err != nil {
		if !errors.IsNotFoundError(err) {
			return nil, false, false, err
		}

		sid, err := id.NewTransactionID()
		if err != nil {
			return nil, false, false, err
		}
		txn, err := subscriber.NewTransaction(
			sid, cmd.AppID, subscriberID, productID,
			store, cmd.StoreTransactionID,
			status, subscriber.Environment(cmd.Environment),
			cmd.PurchasedAt, cmd.ExpiresAt, cmd.RawReceipt,
		)
		if err != nil {
			return nil, false, false, errors.NewValidationError(err.Error())
		}
		if err := uc.transactionRepo.Create(ctx, txn); err != nil {
			return nil, false, false, err
		}
		return txn, true, true, nil
	}

	// Duplicate store transaction id. Divergent immutable fields mean the
	// stores sent conflicting data; the later write wins for lifecycle
	// fields, and the discrepancy is logged, never silently dropped.
	if existing.ProductID() != productID || existing.SubscriberID() != subscriberID ||
		!existing.PurchasedAt().Equal(cmd.PurchasedAt.UTC()) {
		uc.logger.Warnw("divergent duplicate ingest for store transaction",
			"transaction_sid", existing.SID(),
			"store", cmd.Store,
			"store_transaction_id", cmd.StoreTransactionID,
			"existing_product_id", existing.ProductID(),
			"incoming_product_id", productID)
	}

	versionBefore := existing.Version()
	if applyErr := existing.ApplyUpdate(status, cmd.ExpiresAt); applyErr != nil {
		// Terminal transactions never transition; the replay is dropped
		// after logging.
		uc.logger.Warnw("ignoring update for terminal transaction",
			"transaction_sid", existing.SID(),
			"status", existing.Status(),
			"incoming_status", status,
			"error", applyErr)
		return existing, false, false, nil
	}
	if existing.Version() == versionBefore {
		return existing, false, false, nil
	}

	if err := uc.transactionRepo.Update(ctx, existing); err != nil {
		return nil, false, false, err
	}
	return existing, true, false, nil
}

func (uc *IngestTransactionUseCase) recordEvent(
	ctx context.Context,
	sub *subscriber.Subscriber,
	txn *subscriber.Transaction,
	before, after *resolver.Resolution,
	entitlementsChanged bool,
) (*event.Event, error) {
	sid, err := id.NewEventID()
	if err != nil {
		return nil, err
	}

	eventType := event.TypeTransactionIngested
	payload := map[string]any{
		"subscriber_id":        sub.SID(),
		"app_user_id":          sub.AppUserID(),
		"transaction_id":       txn.SID(),
		"store":                txn.Store().String(),
		"store_transaction_id": txn.StoreTransactionID(),
		"status":               txn.Status().String(),
	}
	if exp := txn.ExpiresAt(); exp != nil {
		payload["expires_at"] = exp.UTC().Format(time.RFC3339)
	}
	if entitlementsChanged {
		eventType = event.TypeEntitlementChanged
		payload["entitlements_before"] = before.Identifiers()
		payload["entitlements_after"] = after.Identifiers()
	}

	e, err := event.NewEvent(sid, sub.AppID(), sub.ID(), eventType, payload)
	if err != nil {
		return nil, err
	}
	if err := uc.eventRepo.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}
