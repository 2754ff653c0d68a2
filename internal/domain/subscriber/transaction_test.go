package subscriber

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransaction(t *testing.T, status TransactionStatus, expiresAt *time.Time) *Transaction {
	t.Helper()
	txn, err := NewTransaction(
		"txn_test123",
		1, 2, 3,
		StoreApple,
		"1000000123456789",
		status,
		EnvironmentProduction,
		time.Now().UTC().Add(-time.Hour),
		expiresAt,
		nil,
	)
	require.NoError(t, err)
	return txn
}

func TestNewTransactionValidation(t *testing.T) {
	purchasedAt := time.Now().UTC()
	expiresAt := purchasedAt.Add(30 * 24 * time.Hour)

	tests := []struct {
		name    string
		build   func() (*Transaction, error)
		wantErr bool
	}{
		{
			name: "valid subscription transaction",
			build: func() (*Transaction, error) {
				return NewTransaction("txn_a", 1, 1, 1, StoreApple, "st1",
					TransactionStatusActive, EnvironmentProduction, purchasedAt, &expiresAt, nil)
			},
		},
		{
			name: "valid non-expiring transaction",
			build: func() (*Transaction, error) {
				return NewTransaction("txn_b", 1, 1, 1, StoreGoogle, "st2",
					TransactionStatusActive, EnvironmentProduction, purchasedAt, nil, nil)
			},
		},
		{
			name: "missing store transaction ID",
			build: func() (*Transaction, error) {
				return NewTransaction("txn_c", 1, 1, 1, StoreApple, "",
					TransactionStatusActive, EnvironmentProduction, purchasedAt, &expiresAt, nil)
			},
			wantErr: true,
		},
		{
			name: "invalid store",
			build: func() (*Transaction, error) {
				return NewTransaction("txn_d", 1, 1, 1, Store("steam"), "st3",
					TransactionStatusActive, EnvironmentProduction, purchasedAt, &expiresAt, nil)
			},
			wantErr: true,
		},
		{
			name: "expiry before purchase",
			build: func() (*Transaction, error) {
				before := purchasedAt.Add(-time.Minute)
				return NewTransaction("txn_e", 1, 1, 1, StoreApple, "st4",
					TransactionStatusActive, EnvironmentProduction, purchasedAt, &before, nil)
			},
			wantErr: true,
		},
		{
			name: "missing subscriber",
			build: func() (*Transaction, error) {
				return NewTransaction("txn_f", 1, 0, 1, StoreApple, "st5",
					TransactionStatusActive, EnvironmentProduction, purchasedAt, &expiresAt, nil)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn, err := tt.build()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, txn)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, txn)
			}
		})
	}
}

func TestTransactionApplyUpdate(t *testing.T) {
	t.Run("renewal extends expiry", func(t *testing.T) {
		oldExpiry := time.Now().UTC().Add(time.Hour)
		txn := newTestTransaction(t, TransactionStatusActive, &oldExpiry)
		initialVersion := txn.Version()

		newExpiry := oldExpiry.Add(30 * 24 * time.Hour)
		err := txn.ApplyUpdate(TransactionStatusActive, &newExpiry)
		require.NoError(t, err)

		require.NotNil(t, txn.ExpiresAt())
		assert.True(t, txn.ExpiresAt().Equal(newExpiry))
		assert.Equal(t, initialVersion+1, txn.Version())
	})

	t.Run("refund is terminal", func(t *testing.T) {
		txn := newTestTransaction(t, TransactionStatusActive, nil)

		err := txn.ApplyUpdate(TransactionStatusRefunded, nil)
		require.NoError(t, err)
		assert.Equal(t, TransactionStatusRefunded, txn.Status())
		assert.NotNil(t, txn.RefundedAt())

		err = txn.ApplyUpdate(TransactionStatusActive, nil)
		assert.ErrorIs(t, err, ErrTerminalTransaction)
		assert.Equal(t, TransactionStatusRefunded, txn.Status())
	})

	t.Run("same status same expiry does not bump version", func(t *testing.T) {
		expiry := time.Now().UTC().Add(time.Hour)
		txn := newTestTransaction(t, TransactionStatusActive, &expiry)
		initialVersion := txn.Version()

		err := txn.ApplyUpdate(TransactionStatusActive, &expiry)
		require.NoError(t, err)
		assert.Equal(t, initialVersion, txn.Version())
	})

	t.Run("expired is terminal", func(t *testing.T) {
		expiry := time.Now().UTC().Add(-time.Minute)
		txn := newTestTransaction(t, TransactionStatusActive, &expiry)
		require.NoError(t, txn.Expire())

		err := txn.ApplyUpdate(TransactionStatusActive, nil)
		assert.ErrorIs(t, err, ErrTerminalTransaction)
		assert.Equal(t, TransactionStatusExpired, txn.Status())
	})

	t.Run("grace period keeps access", func(t *testing.T) {
		expiry := time.Now().UTC().Add(time.Hour)
		txn := newTestTransaction(t, TransactionStatusActive, &expiry)

		err := txn.ApplyUpdate(TransactionStatusGracePeriod, nil)
		require.NoError(t, err)
		assert.True(t, txn.GrantsAccessAt(time.Now().UTC()))
	})

	t.Run("billing retry provisionally keeps access", func(t *testing.T) {
		expiry := time.Now().UTC().Add(time.Hour)
		txn := newTestTransaction(t, TransactionStatusActive, &expiry)

		err := txn.ApplyUpdate(TransactionStatusBillingRetry, nil)
		require.NoError(t, err)
		assert.True(t, txn.GrantsAccessAt(time.Now().UTC()))
	})
}

func TestTransactionGrantsAccessAt(t *testing.T) {
	now := time.Now().UTC()

	t.Run("active with future expiry grants access", func(t *testing.T) {
		expiry := now.Add(time.Hour)
		txn := newTestTransaction(t, TransactionStatusActive, &expiry)
		assert.True(t, txn.GrantsAccessAt(now))
	})

	t.Run("access ends exactly at expiry", func(t *testing.T) {
		expiry := now.Add(time.Hour)
		txn := newTestTransaction(t, TransactionStatusActive, &expiry)
		assert.True(t, txn.GrantsAccessAt(expiry.Add(-time.Nanosecond)))
		assert.False(t, txn.GrantsAccessAt(expiry))
		assert.False(t, txn.GrantsAccessAt(expiry.Add(time.Nanosecond)))
	})

	t.Run("non-expiring active grants access forever", func(t *testing.T) {
		txn := newTestTransaction(t, TransactionStatusActive, nil)
		assert.True(t, txn.GrantsAccessAt(now.Add(100*365*24*time.Hour)))
	})

	t.Run("expired status never grants access", func(t *testing.T) {
		expiry := now.Add(time.Hour)
		txn := newTestTransaction(t, TransactionStatusExpired, &expiry)
		assert.False(t, txn.GrantsAccessAt(now))
	})
}

func TestTransactionExpire(t *testing.T) {
	expiry := time.Now().UTC().Add(-time.Minute)
	txn := newTestTransaction(t, TransactionStatusActive, &expiry)

	require.NoError(t, txn.Expire())
	assert.Equal(t, TransactionStatusExpired, txn.Status())

	// Idempotent
	version := txn.Version()
	require.NoError(t, txn.Expire())
	assert.Equal(t, version, txn.Version())
}
