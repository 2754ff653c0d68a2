package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	eventUsecases "github.com/opencat-io/opencat/internal/application/events/usecases"
	"github.com/opencat-io/opencat/internal/application/resolver"
	"github.com/opencat-io/opencat/internal/domain/catalog"
	"github.com/opencat-io/opencat/internal/domain/delivery"
	"github.com/opencat-io/opencat/internal/domain/event"
	"github.com/opencat-io/opencat/internal/domain/subscriber"
	"github.com/opencat-io/opencat/internal/infrastructure/persistence/models"
	"github.com/opencat-io/opencat/internal/infrastructure/repository"
	"github.com/opencat-io/opencat/internal/shared/db"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

type ingestFixture struct {
	uc           *IngestTransactionUseCase
	eventRepo    event.Repository
	deliveryRepo delivery.Repository
	endpointRepo delivery.EndpointRepository
	txnRepo      subscriber.TransactionRepository
	productSID   string
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(
		&models.SubscriberModel{},
		&models.TransactionModel{},
		&models.EntitlementModel{},
		&models.ProductModel{},
		&models.ProductEntitlementModel{},
		&models.EventModel{},
		&models.WebhookEndpointModel{},
		&models.WebhookDeliveryModel{},
	))

	log := logger.NewLogger()
	subscriberRepo := repository.NewSubscriberRepository(database, log)
	txnRepo := repository.NewTransactionRepository(database, log)
	productRepo := repository.NewProductRepository(database, log)
	entitlementRepo := repository.NewEntitlementRepository(database, log)
	eventRepo := repository.NewEventRepository(database, log)
	endpointRepo := repository.NewWebhookEndpointRepository(database, log)
	deliveryRepo := repository.NewWebhookDeliveryRepository(database, log)

	ent, err := catalog.NewEntitlement("ent_ingest", 1, "premium", "Premium")
	require.NoError(t, err)
	require.NoError(t, entitlementRepo.Create(context.Background(), ent))

	product, err := catalog.NewProduct("prod_ingest", 1, "com.example.monthly", "Monthly",
		catalog.ProductTypeSubscription, 30)
	require.NoError(t, err)
	require.NoError(t, productRepo.Create(context.Background(), product))
	require.NoError(t, productRepo.AttachEntitlement(context.Background(), product.ID(), ent.ID()))

	resolverSvc := resolver.NewService(txnRepo, productRepo, nil, log)
	fanOut := eventUsecases.NewFanOutEventsUseCase(eventRepo, endpointRepo, deliveryRepo, log)

	return &ingestFixture{
		uc: NewIngestTransactionUseCase(
			subscriberRepo, txnRepo, productRepo, eventRepo,
			resolverSvc, db.NewTransactionManager(database), fanOut, log,
		),
		eventRepo:    eventRepo,
		deliveryRepo: deliveryRepo,
		endpointRepo: endpointRepo,
		txnRepo:      txnRepo,
		productSID:   product.SID(),
	}
}

func (f *ingestFixture) command() IngestTransactionCommand {
	expiry := time.Now().UTC().Add(30 * 24 * time.Hour)
	return IngestTransactionCommand{
		AppID:                  1,
		AppUserID:              "user-1",
		ProductStoreIdentifier: "com.example.monthly",
		Store:                  "apple",
		StoreTransactionID:     "1000000123",
		Status:                 "active",
		PurchasedAt:            time.Now().UTC().Add(-time.Minute),
		ExpiresAt:              &expiry,
	}
}

func (f *ingestFixture) listEvents(t *testing.T) []*event.Event {
	t.Helper()
	events, err := f.eventRepo.ListByApp(context.Background(), 1, 0, 100)
	require.NoError(t, err)
	return events
}

func TestIngestNewPurchase(t *testing.T) {
	f := newIngestFixture(t)

	result, err := f.uc.Execute(context.Background(), f.command())
	require.NoError(t, err)

	assert.True(t, result.Created)
	assert.True(t, result.EntitlementsChanged)
	assert.NotEmpty(t, result.TransactionSID)
	assert.NotEmpty(t, result.SubscriberSID)
	require.NotEmpty(t, result.EventSID)

	events := f.listEvents(t)
	require.Len(t, events, 1)
	assert.Equal(t, event.TypeEntitlementChanged, events[0].Type())
	assert.Equal(t, []any{}, events[0].Payload()["entitlements_before"])
	assert.Equal(t, []any{"premium"}, events[0].Payload()["entitlements_after"])
}

func TestIngestIdempotentReplay(t *testing.T) {
	f := newIngestFixture(t)
	cmd := f.command()

	first, err := f.uc.Execute(context.Background(), cmd)
	require.NoError(t, err)

	second, err := f.uc.Execute(context.Background(), cmd)
	require.NoError(t, err)

	assert.Equal(t, first.TransactionSID, second.TransactionSID)
	assert.False(t, second.Created)
	assert.False(t, second.EntitlementsChanged)
	assert.Empty(t, second.EventSID)

	// The replay produced no second event.
	assert.Len(t, f.listEvents(t), 1)
}

func TestIngestStatusUpdateEmitsOneEvent(t *testing.T) {
	f := newIngestFixture(t)
	cmd := f.command()

	_, err := f.uc.Execute(context.Background(), cmd)
	require.NoError(t, err)

	// Renewal: same status, later expiry. The set does not change, so the
	// event is transaction.ingested rather than entitlement.changed.
	newExpiry := cmd.ExpiresAt.Add(30 * 24 * time.Hour)
	cmd.ExpiresAt = &newExpiry
	result, err := f.uc.Execute(context.Background(), cmd)
	require.NoError(t, err)

	assert.False(t, result.Created)
	assert.False(t, result.EntitlementsChanged)
	require.NotEmpty(t, result.EventSID)

	events := f.listEvents(t)
	require.Len(t, events, 2)
	assert.Equal(t, event.TypeEntitlementChanged, events[0].Type())
	assert.Equal(t, event.TypeTransactionIngested, events[1].Type())
}

func TestIngestRefundRemovesEntitlement(t *testing.T) {
	f := newIngestFixture(t)
	cmd := f.command()

	_, err := f.uc.Execute(context.Background(), cmd)
	require.NoError(t, err)

	cmd.Status = "refunded"
	result, err := f.uc.Execute(context.Background(), cmd)
	require.NoError(t, err)

	assert.True(t, result.EntitlementsChanged)

	events := f.listEvents(t)
	require.Len(t, events, 2)
	assert.Equal(t, event.TypeEntitlementChanged, events[1].Type())
	assert.Equal(t, []any{"premium"}, events[1].Payload()["entitlements_before"])
	assert.Equal(t, []any{}, events[1].Payload()["entitlements_after"])
}

func TestIngestTerminalReplayIsNoOp(t *testing.T) {
	f := newIngestFixture(t)
	cmd := f.command()

	_, err := f.uc.Execute(context.Background(), cmd)
	require.NoError(t, err)

	cmd.Status = "refunded"
	_, err = f.uc.Execute(context.Background(), cmd)
	require.NoError(t, err)

	// A late "active" update for a refunded transaction is dropped.
	cmd.Status = "active"
	result, err := f.uc.Execute(context.Background(), cmd)
	require.NoError(t, err)
	assert.Empty(t, result.EventSID)

	txn, err := f.txnRepo.GetBySID(context.Background(), result.TransactionSID)
	require.NoError(t, err)
	assert.Equal(t, subscriber.TransactionStatusRefunded, txn.Status())
	assert.Len(t, f.listEvents(t), 2)
}

func TestIngestFansOutToActiveEndpoints(t *testing.T) {
	f := newIngestFixture(t)

	ep, err := delivery.NewWebhookEndpoint("whep_ingest", 1, "https://example.com/hooks", "secret", "")
	require.NoError(t, err)
	require.NoError(t, f.endpointRepo.Create(context.Background(), ep))

	result, err := f.uc.Execute(context.Background(), f.command())
	require.NoError(t, err)

	e, err := f.eventRepo.GetBySID(context.Background(), result.EventSID)
	require.NoError(t, err)
	assert.NotNil(t, e.FannedOutAt())

	deliveries, err := f.deliveryRepo.ListByEvent(context.Background(), e.ID())
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, delivery.StatusPending, deliveries[0].Status())
	assert.Equal(t, ep.ID(), deliveries[0].EndpointID())
}

func TestIngestValidation(t *testing.T) {
	f := newIngestFixture(t)

	tests := []struct {
		name   string
		mutate func(*IngestTransactionCommand)
	}{
		{"missing app user", func(c *IngestTransactionCommand) { c.AppUserID = "" }},
		{"missing store transaction id", func(c *IngestTransactionCommand) { c.StoreTransactionID = "" }},
		{"unknown store", func(c *IngestTransactionCommand) { c.Store = "steam" }},
		{"unknown status", func(c *IngestTransactionCommand) { c.Status = "paused" }},
		{"zero purchase time", func(c *IngestTransactionCommand) { c.PurchasedAt = time.Time{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := f.command()
			tt.mutate(&cmd)
			_, err := f.uc.Execute(context.Background(), cmd)
			assert.Error(t, err)
		})
	}
}
