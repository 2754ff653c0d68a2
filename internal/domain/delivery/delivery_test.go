package delivery

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDelivery(t *testing.T) *WebhookDelivery {
	t.Helper()
	d, err := NewWebhookDelivery("whd_test123", 1, 2)
	require.NoError(t, err)
	return d
}

func TestNewWebhookDelivery(t *testing.T) {
	d := newTestDelivery(t)

	assert.Equal(t, StatusPending, d.Status())
	assert.Equal(t, 0, d.Attempts())
	require.NotNil(t, d.NextRetryAt())
	assert.False(t, d.NextRetryAt().After(time.Now().UTC()))
	assert.Nil(t, d.LockedUntil())
}

func TestDeliveryFailThenSucceed(t *testing.T) {
	d := newTestDelivery(t)
	policy := DefaultBackoffPolicy()

	for i := 1; i <= 3; i++ {
		deadLettered, err := d.RecordFailure(500, "upstream error", policy, DefaultMaxAttempts)
		require.NoError(t, err)
		assert.False(t, deadLettered)
		assert.Equal(t, i, d.Attempts())
		assert.Equal(t, StatusPending, d.Status())
		require.NotNil(t, d.NextRetryAt())
	}

	require.NoError(t, d.MarkDelivered(200))

	// Success counts as an attempt: 3 failures + 1 success.
	assert.Equal(t, 4, d.Attempts())
	assert.Equal(t, StatusDelivered, d.Status())
	assert.Equal(t, 200, d.LastStatusCode())
	assert.Empty(t, d.LastError())
	assert.Nil(t, d.NextRetryAt())
	require.NotNil(t, d.DeliveredAt())
}

func TestDeliveryDeadLetterAfterMaxAttempts(t *testing.T) {
	d := newTestDelivery(t)
	policy := DefaultBackoffPolicy()

	var deadLettered bool
	var err error
	for i := 1; i <= DefaultMaxAttempts; i++ {
		deadLettered, err = d.RecordFailure(503, "service unavailable", policy, DefaultMaxAttempts)
		require.NoError(t, err)
		if i < DefaultMaxAttempts {
			assert.False(t, deadLettered, "attempt %d should not dead-letter", i)
		}
	}

	assert.True(t, deadLettered)
	assert.Equal(t, StatusDeadLetter, d.Status())
	assert.Equal(t, DefaultMaxAttempts, d.Attempts())
	assert.Nil(t, d.NextRetryAt())

	// Dead-lettered deliveries reject further attempts.
	_, err = d.RecordFailure(500, "again", policy, DefaultMaxAttempts)
	assert.ErrorIs(t, err, ErrTerminalDelivery)
	assert.ErrorIs(t, d.MarkDelivered(200), ErrTerminalDelivery)

	// And are never due for dispatch.
	assert.False(t, d.IsDue(time.Now().UTC().Add(24*time.Hour)))
}

func TestDeliveryReplay(t *testing.T) {
	d := newTestDelivery(t)
	policy := DefaultBackoffPolicy()

	t.Run("replay requires dead letter", func(t *testing.T) {
		assert.ErrorIs(t, d.Replay(), ErrNotDeadLettered)
	})

	for i := 0; i < DefaultMaxAttempts; i++ {
		_, err := d.RecordFailure(500, "boom", policy, DefaultMaxAttempts)
		require.NoError(t, err)
	}
	require.Equal(t, StatusDeadLetter, d.Status())

	t.Run("replay resets attempt budget", func(t *testing.T) {
		require.NoError(t, d.Replay())

		assert.Equal(t, StatusPending, d.Status())
		assert.Equal(t, 0, d.Attempts())
		assert.Empty(t, d.LastError())
		assert.Zero(t, d.LastStatusCode())
		require.NotNil(t, d.NextRetryAt())
		assert.True(t, d.IsDue(time.Now().UTC()))
	})

	t.Run("delivered delivery cannot be replayed", func(t *testing.T) {
		require.NoError(t, d.MarkDelivered(204))
		assert.ErrorIs(t, d.Replay(), ErrNotDeadLettered)
	})
}

func TestDeliveryMarkDeliveredIdempotent(t *testing.T) {
	d := newTestDelivery(t)

	require.NoError(t, d.MarkDelivered(200))
	attempts := d.Attempts()
	version := d.Version()

	require.NoError(t, d.MarkDelivered(200))
	assert.Equal(t, attempts, d.Attempts())
	assert.Equal(t, version, d.Version())
}

func TestDeliveryIsDue(t *testing.T) {
	now := time.Now().UTC()

	t.Run("fresh delivery is due", func(t *testing.T) {
		d := newTestDelivery(t)
		assert.True(t, d.IsDue(now.Add(time.Second)))
	})

	t.Run("future retry time is not due", func(t *testing.T) {
		d := newTestDelivery(t)
		_, err := d.RecordFailure(500, "boom", DefaultBackoffPolicy(), DefaultMaxAttempts)
		require.NoError(t, err)
		assert.False(t, d.IsDue(now))
		assert.True(t, d.IsDue(now.Add(2*time.Hour)))
	})

	t.Run("live lease blocks dispatch", func(t *testing.T) {
		lease := now.Add(time.Minute)
		d, err := ReconstructWebhookDelivery(
			1, "whd_x", 1, 1, StatusPending, 2, &now, &lease, "", 500, nil, now, now, 3,
		)
		require.NoError(t, err)
		assert.False(t, d.IsDue(now))
		assert.True(t, d.IsDue(lease.Add(time.Second)))
	})
}

func TestBackoffPolicyDelay(t *testing.T) {
	policy := DefaultBackoffPolicy()

	// Expected pre-jitter schedule: 5s, 10s, 20s, 40s, ... capped at 1h.
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{4, 40 * time.Second},
		{10, 2560 * time.Second},
		{11, time.Hour},
		{50, time.Hour},
	}

	for _, tt := range tests {
		delay := policy.Delay(tt.attempts)
		lo := time.Duration(float64(tt.want) * 0.9)
		hi := time.Duration(float64(tt.want) * 1.1)
		assert.GreaterOrEqual(t, delay, lo, "attempts=%d", tt.attempts)
		assert.LessOrEqual(t, delay, hi, "attempts=%d", tt.attempts)
	}
}

func TestBackoffPolicyMonotonicUntilCap(t *testing.T) {
	// Without jitter the schedule must be non-decreasing.
	policy := BackoffPolicy{Base: DefaultBackoffBase, Max: DefaultBackoffMax}

	prev := time.Duration(0)
	for attempts := 1; attempts <= 20; attempts++ {
		delay := policy.Delay(attempts)
		// Allow jitter slack: compare midpoints by stripping 10% both ways.
		assert.GreaterOrEqual(t, float64(delay)*1.1, float64(prev)*0.9,
			"delay should not shrink at attempt %d", attempts)
		prev = delay
	}
}

func TestBackoffPolicySeededJitter(t *testing.T) {
	// The same seeded source yields the same jittered schedule.
	a := DefaultBackoffPolicy().WithRand(rand.New(rand.NewPCG(7, 11)))
	b := DefaultBackoffPolicy().WithRand(rand.New(rand.NewPCG(7, 11)))

	for attempts := 1; attempts <= 12; attempts++ {
		assert.Equal(t, a.Delay(attempts), b.Delay(attempts), "attempts=%d", attempts)
	}
}

func TestBackoffPolicyCustomBounds(t *testing.T) {
	policy := NewBackoffPolicy(time.Second, 8*time.Second)

	// Attempt 5 pre-jitter would be 16s, capped at 8s.
	delay := policy.Delay(5)
	assert.LessOrEqual(t, delay, time.Duration(float64(8*time.Second)*1.1))
	assert.GreaterOrEqual(t, delay, time.Duration(float64(8*time.Second)*0.9))
}
