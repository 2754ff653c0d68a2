package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/opencat-io/opencat/internal/domain/delivery"
	"github.com/opencat-io/opencat/internal/infrastructure/persistence/models"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.WebhookEndpointModel{},
		&models.WebhookDeliveryModel{},
		&models.EventModel{},
	)
	require.NoError(t, err)

	return db
}

func createTestDelivery(t *testing.T, repo delivery.Repository, sid string, endpointID, eventID uint) *delivery.WebhookDelivery {
	t.Helper()
	d, err := delivery.NewWebhookDelivery(sid, endpointID, eventID)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), d))
	return d
}

func TestWebhookDeliveryRepository_ClaimDue(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWebhookDeliveryRepository(db, logger.NewLogger())
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("claims due pending deliveries", func(t *testing.T) {
		d1 := createTestDelivery(t, repo, "whd_claim1", 1, 1)
		d2 := createTestDelivery(t, repo, "whd_claim2", 1, 2)

		claimed, err := repo.ClaimDue(ctx, now.Add(time.Second), time.Minute, 10)
		require.NoError(t, err)
		require.Len(t, claimed, 2)

		ids := []uint{claimed[0].ID(), claimed[1].ID()}
		assert.Contains(t, ids, d1.ID())
		assert.Contains(t, ids, d2.ID())
		for _, c := range claimed {
			require.NotNil(t, c.LockedUntil())
		}
	})

	t.Run("claimed deliveries are not claimed again within lease", func(t *testing.T) {
		claimed, err := repo.ClaimDue(ctx, now.Add(2*time.Second), time.Minute, 10)
		require.NoError(t, err)
		assert.Empty(t, claimed)
	})

	t.Run("expired lease returns delivery to the pool", func(t *testing.T) {
		claimed, err := repo.ClaimDue(ctx, now.Add(2*time.Minute), time.Minute, 10)
		require.NoError(t, err)
		assert.Len(t, claimed, 2)
	})

	t.Run("future retry time is not claimed", func(t *testing.T) {
		d, err := delivery.NewWebhookDelivery("whd_future", 2, 3)
		require.NoError(t, err)
		_, err = d.RecordFailure(500, "boom", delivery.DefaultBackoffPolicy(), delivery.DefaultMaxAttempts)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, d))

		claimed, err := repo.ClaimDue(ctx, time.Now().UTC(), time.Minute, 10)
		require.NoError(t, err)
		for _, c := range claimed {
			assert.NotEqual(t, d.ID(), c.ID())
		}
	})

	t.Run("respects batch limit", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewWebhookDeliveryRepository(db, logger.NewLogger())

		for i := 0; i < 5; i++ {
			createTestDelivery(t, repo, "whd_batch"+string(rune('a'+i)), 1, uint(i+1))
		}

		claimed, err := repo.ClaimDue(ctx, time.Now().UTC().Add(time.Second), time.Minute, 3)
		require.NoError(t, err)
		assert.Len(t, claimed, 3)
	})
}

func TestWebhookDeliveryRepository_UpdateLifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWebhookDeliveryRepository(db, logger.NewLogger())
	ctx := context.Background()

	d := createTestDelivery(t, repo, "whd_lifecycle", 1, 1)

	// Fail once and persist.
	deadLettered, err := d.RecordFailure(502, "bad gateway", delivery.DefaultBackoffPolicy(), delivery.DefaultMaxAttempts)
	require.NoError(t, err)
	assert.False(t, deadLettered)
	require.NoError(t, repo.Update(ctx, d))

	reloaded, err := repo.GetByID(ctx, d.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Attempts())
	assert.Equal(t, delivery.StatusPending, reloaded.Status())
	assert.Equal(t, 502, reloaded.LastStatusCode())

	// Deliver and persist.
	require.NoError(t, reloaded.MarkDelivered(200))
	require.NoError(t, repo.Update(ctx, reloaded))

	final, err := repo.GetByID(ctx, d.ID())
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusDelivered, final.Status())
	assert.Equal(t, 2, final.Attempts())
	assert.Nil(t, final.NextRetryAt())

	// Stale aggregate loses the optimistic lock.
	err = repo.Update(ctx, d)
	assert.Error(t, err)
}

func TestWebhookDeliveryRepository_BatchCreateUnique(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWebhookDeliveryRepository(db, logger.NewLogger())
	ctx := context.Background()

	d1, err := delivery.NewWebhookDelivery("whd_uniq1", 1, 1)
	require.NoError(t, err)
	d2, err := delivery.NewWebhookDelivery("whd_uniq2", 2, 1)
	require.NoError(t, err)
	require.NoError(t, repo.BatchCreate(ctx, []*delivery.WebhookDelivery{d1, d2}))

	// Same (endpoint, event) pair is rejected.
	dup, err := delivery.NewWebhookDelivery("whd_uniq3", 1, 1)
	require.NoError(t, err)
	err = repo.Create(ctx, dup)
	assert.Error(t, err)
}
