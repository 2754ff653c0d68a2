package resolver

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/opencat-io/opencat/internal/domain/catalog"
	"github.com/opencat-io/opencat/internal/domain/subscriber"
	"github.com/opencat-io/opencat/internal/infrastructure/persistence/models"
	"github.com/opencat-io/opencat/internal/infrastructure/repository"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

type resolverFixture struct {
	svc             *Service
	transactionRepo subscriber.TransactionRepository
	productRepo     catalog.ProductRepository
	entitlementRepo catalog.EntitlementRepository
	txnSeq          int
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.EntitlementModel{},
		&models.ProductModel{},
		&models.ProductEntitlementModel{},
		&models.TransactionModel{},
	))

	log := logger.NewLogger()
	f := &resolverFixture{
		transactionRepo: repository.NewTransactionRepository(db, log),
		productRepo:     repository.NewProductRepository(db, log),
		entitlementRepo: repository.NewEntitlementRepository(db, log),
	}
	f.svc = NewService(f.transactionRepo, f.productRepo, nil, log)
	return f
}

func (f *resolverFixture) addEntitlement(t *testing.T, identifier string) *catalog.Entitlement {
	t.Helper()
	ent, err := catalog.NewEntitlement("ent_"+identifier, 1, identifier, identifier)
	require.NoError(t, err)
	require.NoError(t, f.entitlementRepo.Create(context.Background(), ent))
	return ent
}

func (f *resolverFixture) addProduct(t *testing.T, storeIdentifier string, grants ...*catalog.Entitlement) *catalog.Product {
	t.Helper()
	p, err := catalog.NewProduct("prod_"+storeIdentifier, 1, storeIdentifier, storeIdentifier,
		catalog.ProductTypeSubscription, 30)
	require.NoError(t, err)
	require.NoError(t, f.productRepo.Create(context.Background(), p))
	for _, ent := range grants {
		require.NoError(t, f.productRepo.AttachEntitlement(context.Background(), p.ID(), ent.ID()))
	}
	return p
}

func (f *resolverFixture) addTransaction(t *testing.T, subscriberID, productID uint, status subscriber.TransactionStatus, expiresAt *time.Time) *subscriber.Transaction {
	t.Helper()
	f.txnSeq++
	txn, err := subscriber.NewTransaction(
		fmt.Sprintf("txn_resolver%d", f.txnSeq),
		1, subscriberID, productID,
		subscriber.StoreApple,
		fmt.Sprintf("store-txn-%d", f.txnSeq),
		status,
		subscriber.EnvironmentProduction,
		time.Now().UTC().Add(-48*time.Hour),
		expiresAt,
		nil,
	)
	require.NoError(t, err)
	require.NoError(t, f.transactionRepo.Create(context.Background(), txn))
	return txn
}

func TestResolveEmptyLedger(t *testing.T) {
	f := newResolverFixture(t)

	res, err := f.svc.Resolve(context.Background(), 42, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, res.Entitlements)
	assert.Nil(t, res.NextChangeAt)
}

func TestResolveActiveSubscription(t *testing.T) {
	f := newResolverFixture(t)
	now := time.Now().UTC()

	premium := f.addEntitlement(t, "premium")
	pro := f.addEntitlement(t, "pro_tools")
	product := f.addProduct(t, "com.example.monthly", premium, pro)

	expiry := now.Add(20 * 24 * time.Hour)
	f.addTransaction(t, 7, product.ID(), subscriber.TransactionStatusActive, &expiry)

	res, err := f.svc.Resolve(context.Background(), 7, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"premium", "pro_tools"}, res.Identifiers())
	require.NotNil(t, res.NextChangeAt)
	assert.True(t, res.NextChangeAt.Equal(expiry))
	for _, e := range res.Entitlements {
		require.NotNil(t, e.ExpiresAt)
		assert.True(t, e.ExpiresAt.Equal(expiry))
	}
}

func TestResolveStatusFiltering(t *testing.T) {
	f := newResolverFixture(t)
	now := time.Now().UTC()
	future := now.Add(10 * 24 * time.Hour)

	premium := f.addEntitlement(t, "premium")
	product := f.addProduct(t, "com.example.monthly", premium)

	tests := []struct {
		name    string
		status  subscriber.TransactionStatus
		expires *time.Time
		granted bool
	}{
		{"active grants", subscriber.TransactionStatusActive, &future, true},
		{"grace period grants", subscriber.TransactionStatusGracePeriod, &future, true},
		{"billing retry grants", subscriber.TransactionStatusBillingRetry, &future, true},
		{"expired never grants", subscriber.TransactionStatusExpired, &future, false},
		{"refunded never grants even with future expiry", subscriber.TransactionStatusRefunded, &future, false},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subID := uint(100 + i)
			f.addTransaction(t, subID, product.ID(), tt.status, tt.expires)

			res, err := f.svc.Resolve(context.Background(), subID, now)
			require.NoError(t, err)
			assert.Equal(t, tt.granted, res.HasEntitlement("premium"))
		})
	}
}

func TestResolveExpiryBoundary(t *testing.T) {
	f := newResolverFixture(t)
	now := time.Now().UTC()

	premium := f.addEntitlement(t, "premium")
	product := f.addProduct(t, "com.example.monthly", premium)

	expiry := now.Add(time.Hour)
	f.addTransaction(t, 9, product.ID(), subscriber.TransactionStatusActive, &expiry)

	before, err := f.svc.Resolve(context.Background(), 9, expiry.Add(-time.Second))
	require.NoError(t, err)
	assert.True(t, before.HasEntitlement("premium"))

	// Access ends exactly at the expiration instant.
	at, err := f.svc.Resolve(context.Background(), 9, expiry)
	require.NoError(t, err)
	assert.False(t, at.HasEntitlement("premium"))
	assert.Nil(t, at.NextChangeAt)
}

func TestResolveOverlappingGrantsUnion(t *testing.T) {
	f := newResolverFixture(t)
	now := time.Now().UTC()

	premium := f.addEntitlement(t, "premium")
	monthly := f.addProduct(t, "com.example.monthly", premium)
	yearly := f.addProduct(t, "com.example.yearly", premium)

	soon := now.Add(24 * time.Hour)
	later := now.Add(300 * 24 * time.Hour)
	f.addTransaction(t, 11, monthly.ID(), subscriber.TransactionStatusActive, &soon)
	f.addTransaction(t, 11, yearly.ID(), subscriber.TransactionStatusActive, &later)

	res, err := f.svc.Resolve(context.Background(), 11, now)
	require.NoError(t, err)
	require.Len(t, res.Entitlements, 1)
	assert.Equal(t, "premium", res.Entitlements[0].Identifier)
	// The entitlement survives until the later grant ends.
	require.NotNil(t, res.Entitlements[0].ExpiresAt)
	assert.True(t, res.Entitlements[0].ExpiresAt.Equal(later))
	// But the next set change candidate is still the earlier expiry.
	require.NotNil(t, res.NextChangeAt)
	assert.True(t, res.NextChangeAt.Equal(soon))

	// After the earlier grant lapses the set is unchanged.
	after, err := f.svc.Resolve(context.Background(), 11, soon.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, res.SameSet(after))
}

func TestResolveNonExpiringGrant(t *testing.T) {
	f := newResolverFixture(t)
	now := time.Now().UTC()

	premium := f.addEntitlement(t, "premium")
	lifetime := f.addProduct(t, "com.example.lifetime", premium)
	monthly := f.addProduct(t, "com.example.monthly", premium)

	expiry := now.Add(24 * time.Hour)
	f.addTransaction(t, 13, lifetime.ID(), subscriber.TransactionStatusActive, nil)
	f.addTransaction(t, 13, monthly.ID(), subscriber.TransactionStatusActive, &expiry)

	res, err := f.svc.Resolve(context.Background(), 13, now)
	require.NoError(t, err)
	require.Len(t, res.Entitlements, 1)
	// A non-expiring contributor removes the scheduled end for the entitlement.
	assert.Nil(t, res.Entitlements[0].ExpiresAt)
	// The expiring contributor still drives the next recomputation point.
	require.NotNil(t, res.NextChangeAt)
	assert.True(t, res.NextChangeAt.Equal(expiry))
}

func TestResolutionSameSet(t *testing.T) {
	a := &Resolution{Entitlements: []ResolvedEntitlement{{Identifier: "a"}, {Identifier: "b"}}}
	b := &Resolution{Entitlements: []ResolvedEntitlement{{Identifier: "b"}, {Identifier: "a"}}}
	c := &Resolution{Entitlements: []ResolvedEntitlement{{Identifier: "a"}}}

	assert.True(t, a.SameSet(b))
	assert.False(t, a.SameSet(c))
	assert.True(t, (&Resolution{}).SameSet(&Resolution{}))
}
