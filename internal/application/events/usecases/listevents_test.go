package usecases

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/opencat-io/opencat/internal/domain/event"
	"github.com/opencat-io/opencat/internal/infrastructure/persistence/models"
	"github.com/opencat-io/opencat/internal/infrastructure/repository"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

func newListEventsFixture(t *testing.T) (*ListEventsUseCase, event.Repository) {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(&models.EventModel{}))

	log := logger.NewLogger()
	eventRepo := repository.NewEventRepository(database, log)
	return NewListEventsUseCase(eventRepo, log), eventRepo
}

func seedEvents(t *testing.T, eventRepo event.Repository, appID uint, n int) []string {
	t.Helper()

	sids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		sid := fmt.Sprintf("evt_list%03d", i)
		e, err := event.NewEvent(sid, appID, 1, event.TypeTransactionIngested, map[string]any{
			"transaction_id": fmt.Sprintf("txn_%03d", i),
		})
		require.NoError(t, err)
		require.NoError(t, eventRepo.Create(context.Background(), e))
		sids = append(sids, sid)
	}
	return sids
}

func TestListEventsAscendingOrder(t *testing.T) {
	uc, eventRepo := newListEventsFixture(t)
	sids := seedEvents(t, eventRepo, 1, 5)

	result, err := uc.Execute(context.Background(), ListEventsQuery{AppID: 1, Limit: 10})
	require.NoError(t, err)

	require.Len(t, result.Events, 5)
	for i, e := range result.Events {
		assert.Equal(t, sids[i], e.SID)
	}
	assert.Empty(t, result.NextCursor, "a short page is the end of the log")
}

func TestListEventsCursorIsExclusive(t *testing.T) {
	uc, eventRepo := newListEventsFixture(t)
	sids := seedEvents(t, eventRepo, 1, 5)

	result, err := uc.Execute(context.Background(), ListEventsQuery{
		AppID:    1,
		SinceSID: sids[1],
		Limit:    10,
	})
	require.NoError(t, err)

	require.Len(t, result.Events, 3)
	assert.Equal(t, sids[2], result.Events[0].SID)
}

func TestListEventsPagination(t *testing.T) {
	uc, eventRepo := newListEventsFixture(t)
	sids := seedEvents(t, eventRepo, 1, 5)

	first, err := uc.Execute(context.Background(), ListEventsQuery{AppID: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Events, 2)
	require.Equal(t, sids[1], first.NextCursor)

	second, err := uc.Execute(context.Background(), ListEventsQuery{
		AppID:    1,
		SinceSID: first.NextCursor,
		Limit:    2,
	})
	require.NoError(t, err)
	require.Len(t, second.Events, 2)
	assert.Equal(t, sids[2], second.Events[0].SID)
	assert.Equal(t, sids[3], second.Events[1].SID)
}

func TestListEventsScopedToApp(t *testing.T) {
	uc, eventRepo := newListEventsFixture(t)
	seedEvents(t, eventRepo, 1, 3)

	other, err := event.NewEvent("evt_other", 2, 1, event.TypeTransactionIngested, map[string]any{})
	require.NoError(t, err)
	require.NoError(t, eventRepo.Create(context.Background(), other))

	result, err := uc.Execute(context.Background(), ListEventsQuery{AppID: 2, Limit: 10})
	require.NoError(t, err)

	require.Len(t, result.Events, 1)
	assert.Equal(t, "evt_other", result.Events[0].SID)
}

func TestListEventsUnknownCursor(t *testing.T) {
	uc, eventRepo := newListEventsFixture(t)
	seedEvents(t, eventRepo, 1, 2)

	_, err := uc.Execute(context.Background(), ListEventsQuery{
		AppID:    1,
		SinceSID: "evt_doesnotexist",
	})
	assert.Error(t, err)
}
