package usecases

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	eventUsecases "github.com/opencat-io/opencat/internal/application/events/usecases"
	"github.com/opencat-io/opencat/internal/domain/delivery"
	"github.com/opencat-io/opencat/internal/domain/event"
	"github.com/opencat-io/opencat/internal/infrastructure/persistence/models"
	"github.com/opencat-io/opencat/internal/infrastructure/repository"
	"github.com/opencat-io/opencat/internal/infrastructure/webhook"
	"github.com/opencat-io/opencat/internal/shared/config"
	"github.com/opencat-io/opencat/internal/shared/constants"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

type dispatchFixture struct {
	deliveryRepo delivery.Repository
	endpointRepo delivery.EndpointRepository
	eventRepo    event.Repository
	cfg          config.WebhookConfig
	log          logger.Interface
}

func newDispatchFixture(t *testing.T) *dispatchFixture {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(
		&models.EventModel{},
		&models.WebhookEndpointModel{},
		&models.WebhookDeliveryModel{},
	))

	log := logger.NewLogger()
	return &dispatchFixture{
		deliveryRepo: repository.NewWebhookDeliveryRepository(database, log),
		endpointRepo: repository.NewWebhookEndpointRepository(database, log),
		eventRepo:    repository.NewEventRepository(database, log),
		cfg: config.WebhookConfig{
			RequestTimeoutSeconds: 5,
			MaxAttempts:           3,
			BackoffBaseSeconds:    5,
			BackoffMaxSeconds:     3600,
			ClaimLeaseSeconds:     60,
			BatchSize:             10,
		},
		log: log,
	}
}

func (f *dispatchFixture) newUseCase() *DispatchDueUseCase {
	sender := webhook.NewHTTPSender(f.cfg.RequestTimeout(), f.log)
	return NewDispatchDueUseCase(f.deliveryRepo, f.endpointRepo, f.eventRepo, sender, nil, f.cfg, f.log)
}

func (f *dispatchFixture) seedDelivery(t *testing.T, url, secret string) (*delivery.WebhookDelivery, *event.Event) {
	t.Helper()
	ctx := context.Background()

	ep, err := delivery.NewWebhookEndpoint("whep_dispatch", 1, url, secret, "")
	require.NoError(t, err)
	require.NoError(t, f.endpointRepo.Create(ctx, ep))

	e, err := event.NewEvent("evt_dispatch", 1, 5, event.TypeEntitlementChanged, map[string]any{
		"subscriber_id":       "sub_x",
		"entitlements_before": []string{},
		"entitlements_after":  []string{"premium"},
	})
	require.NoError(t, err)
	require.NoError(t, f.eventRepo.Create(ctx, e))

	d, err := delivery.NewWebhookDelivery("whd_dispatch", ep.ID(), e.ID())
	require.NoError(t, err)
	require.NoError(t, f.deliveryRepo.Create(ctx, d))
	return d, e
}

func TestDispatchDeliversSignedPayload(t *testing.T) {
	f := newDispatchFixture(t)

	var gotBody []byte
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	const secret = "whsec_dispatchtest"
	seeded, e := f.seedDelivery(t, server.URL, secret)

	attempted, err := f.newUseCase().Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, attempted)

	// The receiver can verify the signature over the exact received bytes.
	sig := gotHeaders.Get(constants.WebhookSignatureHeader)
	assert.True(t, webhook.VerifySignature(secret, gotBody, sig))
	assert.Equal(t, e.SID(), gotHeaders.Get(constants.WebhookEventIDHeader))
	assert.Equal(t, seeded.SID(), gotHeaders.Get(constants.WebhookDeliveryHeader))
	assert.Contains(t, string(gotBody), `"type":"entitlement.changed"`)

	got, err := f.deliveryRepo.GetBySID(context.Background(), seeded.SID())
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusDelivered, got.Status())
	assert.Equal(t, 1, got.Attempts())
	assert.NotNil(t, got.DeliveredAt())
}

func TestDispatchReschedulesOnFailure(t *testing.T) {
	f := newDispatchFixture(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	seeded, _ := f.seedDelivery(t, server.URL, "whsec_failing")

	attempted, err := f.newUseCase().Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, attempted)

	got, err := f.deliveryRepo.GetBySID(context.Background(), seeded.SID())
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusPending, got.Status())
	assert.Equal(t, 1, got.Attempts())
	assert.Equal(t, http.StatusBadGateway, got.LastStatusCode())
	require.NotNil(t, got.NextRetryAt())
	assert.True(t, got.NextRetryAt().After(time.Now().UTC()))
}

func TestDispatchDeadLettersAfterBudget(t *testing.T) {
	f := newDispatchFixture(t)
	f.cfg.MaxAttempts = 1

	// Unroutable address: every attempt is a transport error.
	seeded, _ := f.seedDelivery(t, "http://127.0.0.1:1/hooks", "whsec_dead")

	attempted, err := f.newUseCase().Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, attempted)

	got, err := f.deliveryRepo.GetBySID(context.Background(), seeded.SID())
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusDeadLetter, got.Status())
	assert.Equal(t, 1, got.Attempts())
	assert.Zero(t, got.LastStatusCode())
	assert.NotEmpty(t, got.LastError())
	assert.Nil(t, got.NextRetryAt())
}

func TestDispatchEndpointsRetryIndependently(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()

	okServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer okServer.Close()
	failServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failServer.Close()

	healthy, err := delivery.NewWebhookEndpoint("whep_healthy", 1, okServer.URL, "whsec_a", "")
	require.NoError(t, err)
	require.NoError(t, f.endpointRepo.Create(ctx, healthy))
	flaky, err := delivery.NewWebhookEndpoint("whep_flaky", 1, failServer.URL, "whsec_b", "")
	require.NoError(t, err)
	require.NoError(t, f.endpointRepo.Create(ctx, flaky))

	e, err := event.NewEvent("evt_twoendpoints", 1, 5, event.TypeEntitlementChanged, map[string]any{
		"entitlements_before": []string{"premium"},
		"entitlements_after":  []string{},
	})
	require.NoError(t, err)
	require.NoError(t, f.eventRepo.Create(ctx, e))

	fanOut := eventUsecases.NewFanOutEventsUseCase(f.eventRepo, f.endpointRepo, f.deliveryRepo, f.log)
	require.NoError(t, fanOut.FanOutEvent(ctx, e))

	rows, err := f.deliveryRepo.ListByEvent(ctx, e.ID())
	require.NoError(t, err)
	require.Len(t, rows, 2, "one delivery row per active endpoint")

	attempted, err := f.newUseCase().Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, attempted)

	reloaded, err := f.deliveryRepo.ListByEvent(ctx, e.ID())
	require.NoError(t, err)
	require.Len(t, reloaded, 2)
	for _, d := range reloaded {
		switch d.EndpointID() {
		case healthy.ID():
			assert.Equal(t, delivery.StatusDelivered, d.Status())
			assert.Equal(t, 1, d.Attempts())
		case flaky.ID():
			assert.Equal(t, delivery.StatusPending, d.Status())
			assert.Equal(t, 1, d.Attempts())
			assert.Equal(t, http.StatusBadGateway, d.LastStatusCode())
			require.NotNil(t, d.NextRetryAt())
			assert.True(t, d.NextRetryAt().After(time.Now().UTC()),
				"the failing endpoint keeps its own backoff schedule")
		default:
			t.Fatalf("delivery for unexpected endpoint %d", d.EndpointID())
		}
	}

	// The healthy endpoint's success changes nothing for the other row:
	// it stays out of the due set until its backoff elapses.
	attempted, err = f.newUseCase().Execute(ctx)
	require.NoError(t, err)
	assert.Zero(t, attempted)
}

func TestDispatchClaimPreventsDoubleSend(t *testing.T) {
	f := newDispatchFixture(t)

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f.seedDelivery(t, server.URL, "whsec_claim")
	uc := f.newUseCase()

	_, err := uc.Execute(context.Background())
	require.NoError(t, err)

	// Nothing left due: the only delivery succeeded.
	attempted, err := uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Zero(t, attempted)
	assert.Equal(t, 1, calls)
}

func TestReplayDeadLetteredDelivery(t *testing.T) {
	f := newDispatchFixture(t)
	f.cfg.MaxAttempts = 1

	seeded, _ := f.seedDelivery(t, "http://127.0.0.1:1/hooks", "whsec_replay")

	_, err := f.newUseCase().Execute(context.Background())
	require.NoError(t, err)

	replayUC := NewReplayDeliveryUseCase(f.deliveryRepo, f.log)
	result, err := replayUC.Execute(context.Background(), ReplayDeliveryCommand{DeliverySID: seeded.SID()})
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusPending.String(), result.Status)
	assert.Zero(t, result.Attempts)

	// Replaying a pending delivery is rejected.
	_, err = replayUC.Execute(context.Background(), ReplayDeliveryCommand{DeliverySID: seeded.SID()})
	assert.Error(t, err)
}
