package usecases

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	eventUsecases "github.com/opencat-io/opencat/internal/application/events/usecases"
	"github.com/opencat-io/opencat/internal/application/resolver"
	"github.com/opencat-io/opencat/internal/domain/catalog"
	"github.com/opencat-io/opencat/internal/domain/event"
	"github.com/opencat-io/opencat/internal/domain/subscriber"
	"github.com/opencat-io/opencat/internal/infrastructure/cache"
	"github.com/opencat-io/opencat/internal/infrastructure/persistence/models"
	"github.com/opencat-io/opencat/internal/infrastructure/repository"
	"github.com/opencat-io/opencat/internal/shared/db"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

type expireFixture struct {
	uc        *ExpireTransactionsUseCase
	subRepo   subscriber.Repository
	txnRepo   subscriber.TransactionRepository
	eventRepo event.Repository
	product   *catalog.Product
	lifetime  *catalog.Product
	txnSeq    int
}

func newExpireFixture(t *testing.T) *expireFixture {
	t.Helper()
	return newExpireFixtureWithCache(t, nil)
}

func newExpireFixtureWithCache(t *testing.T, entitlementCache cache.EntitlementCache) *expireFixture {
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
	subRepo := repository.NewSubscriberRepository(database, log)
	txnRepo := repository.NewTransactionRepository(database, log)
	productRepo := repository.NewProductRepository(database, log)
	entitlementRepo := repository.NewEntitlementRepository(database, log)
	eventRepo := repository.NewEventRepository(database, log)
	endpointRepo := repository.NewWebhookEndpointRepository(database, log)
	deliveryRepo := repository.NewWebhookDeliveryRepository(database, log)

	ent, err := catalog.NewEntitlement("ent_expire", 1, "premium", "Premium")
	require.NoError(t, err)
	require.NoError(t, entitlementRepo.Create(context.Background(), ent))

	product, err := catalog.NewProduct("prod_expire", 1, "com.example.monthly", "Monthly",
		catalog.ProductTypeSubscription, 30)
	require.NoError(t, err)
	require.NoError(t, productRepo.Create(context.Background(), product))
	require.NoError(t, productRepo.AttachEntitlement(context.Background(), product.ID(), ent.ID()))

	lifetime, err := catalog.NewProduct("prod_expirelt", 1, "com.example.lifetime", "Lifetime",
		catalog.ProductTypeNonConsumable, 0)
	require.NoError(t, err)
	require.NoError(t, productRepo.Create(context.Background(), lifetime))
	require.NoError(t, productRepo.AttachEntitlement(context.Background(), lifetime.ID(), ent.ID()))

	resolverSvc := resolver.NewService(txnRepo, productRepo, entitlementCache, log)
	fanOut := eventUsecases.NewFanOutEventsUseCase(eventRepo, endpointRepo, deliveryRepo, log)

	return &expireFixture{
		uc: NewExpireTransactionsUseCase(
			subRepo, txnRepo, eventRepo, resolverSvc,
			db.NewTransactionManager(database), fanOut, log,
		),
		subRepo:   subRepo,
		txnRepo:   txnRepo,
		eventRepo: eventRepo,
		product:   product,
		lifetime:  lifetime,
	}
}

func (f *expireFixture) addSubscriber(t *testing.T, appUserID string) *subscriber.Subscriber {
	t.Helper()
	sub, err := subscriber.NewSubscriber("sub_"+appUserID, 1, appUserID)
	require.NoError(t, err)
	require.NoError(t, f.subRepo.Create(context.Background(), sub))
	return sub
}

func (f *expireFixture) addTransaction(t *testing.T, subscriberID, productID uint, expiresAt *time.Time) *subscriber.Transaction {
	t.Helper()
	f.txnSeq++
	txn, err := subscriber.NewTransaction(
		fmt.Sprintf("txn_exp%d", f.txnSeq),
		1, subscriberID, productID,
		subscriber.StoreApple,
		fmt.Sprintf("store-exp-%d", f.txnSeq),
		subscriber.TransactionStatusActive,
		subscriber.EnvironmentProduction,
		time.Now().UTC().Add(-40*24*time.Hour),
		expiresAt,
		nil,
	)
	require.NoError(t, err)
	require.NoError(t, f.txnRepo.Create(context.Background(), txn))
	return txn
}

func TestExpireSweepMarksLapsedTransactions(t *testing.T) {
	f := newExpireFixture(t)
	sub := f.addSubscriber(t, "lapsed-user")

	past := time.Now().UTC().Add(-time.Hour)
	txn := f.addTransaction(t, sub.ID(), f.product.ID(), &past)

	expired, err := f.uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	got, err := f.txnRepo.GetBySID(context.Background(), txn.SID())
	require.NoError(t, err)
	assert.Equal(t, subscriber.TransactionStatusExpired, got.Status())

	events, err := f.eventRepo.ListByApp(context.Background(), 1, 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.TypeEntitlementChanged, events[0].Type())
	assert.Equal(t, []any{"premium"}, events[0].Payload()["entitlements_before"])
	assert.Equal(t, []any{}, events[0].Payload()["entitlements_after"])
}

func TestExpireSweepNoEventWhenSetUnchanged(t *testing.T) {
	f := newExpireFixture(t)
	sub := f.addSubscriber(t, "covered-user")

	// A lifetime purchase keeps the entitlement after the subscription lapses.
	f.addTransaction(t, sub.ID(), f.lifetime.ID(), nil)
	past := time.Now().UTC().Add(-time.Hour)
	f.addTransaction(t, sub.ID(), f.product.ID(), &past)

	expired, err := f.uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	events, err := f.eventRepo.ListByApp(context.Background(), 1, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

// memoryEntitlementCache is an in-memory EntitlementCache standing in for
// redis, recording index traffic.
type memoryEntitlementCache struct {
	index       map[uint]time.Time
	popCalls    int
	invalidated []uint
}

func newMemoryEntitlementCache() *memoryEntitlementCache {
	return &memoryEntitlementCache{index: make(map[uint]time.Time)}
}

func (c *memoryEntitlementCache) GetResolution(ctx context.Context, subscriberID uint) (*cache.CachedResolution, error) {
	return nil, nil
}

func (c *memoryEntitlementCache) SetResolution(ctx context.Context, subscriberID uint, res *cache.CachedResolution) error {
	return nil
}

func (c *memoryEntitlementCache) InvalidateResolution(ctx context.Context, subscriberID uint) error {
	c.invalidated = append(c.invalidated, subscriberID)
	return nil
}

func (c *memoryEntitlementCache) IndexNextChange(ctx context.Context, subscriberID uint, at time.Time) error {
	c.index[subscriberID] = at
	return nil
}

func (c *memoryEntitlementCache) PopDueSubscribers(ctx context.Context, asOf time.Time, limit int) ([]uint, error) {
	c.popCalls++
	var due []uint
	for id, at := range c.index {
		if !at.After(asOf) {
			due = append(due, id)
			delete(c.index, id)
		}
	}
	return due, nil
}

func TestExpireSweepConsumesNextChangeIndex(t *testing.T) {
	entCache := newMemoryEntitlementCache()
	f := newExpireFixtureWithCache(t, entCache)
	sub := f.addSubscriber(t, "indexed-user")

	past := time.Now().UTC().Add(-time.Hour)
	txn := f.addTransaction(t, sub.ID(), f.product.ID(), &past)
	require.NoError(t, entCache.IndexNextChange(context.Background(), sub.ID(), past))

	expired, err := f.uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	// The sweep drained the index entry and handled the subscriber through it;
	// the ledger scan found nothing left to add.
	assert.Equal(t, 1, entCache.popCalls)
	assert.Empty(t, entCache.index)
	assert.Contains(t, entCache.invalidated, sub.ID())

	got, err := f.txnRepo.GetBySID(context.Background(), txn.SID())
	require.NoError(t, err)
	assert.Equal(t, subscriber.TransactionStatusExpired, got.Status())
}

func TestExpireSweepIdempotent(t *testing.T) {
	f := newExpireFixture(t)
	sub := f.addSubscriber(t, "repeat-user")

	past := time.Now().UTC().Add(-time.Hour)
	f.addTransaction(t, sub.ID(), f.product.ID(), &past)

	_, err := f.uc.Execute(context.Background())
	require.NoError(t, err)

	// Second pass finds nothing to do.
	expired, err := f.uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Zero(t, expired)

	events, err := f.eventRepo.ListByApp(context.Background(), 1, 0, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
