package store

import (
	"errors"
	"testing"
	"time"

	"github.com/BatmanBruc/bat-bot-leecher/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runStateStoreContract(t *testing.T, s types.StateStore) {
	t.Helper()

	t.Run("user created lazily with zeroed counters", func(t *testing.T) {
		u, err := s.GetOrCreateUser(42)
		require.NoError(t, err)
		assert.Equal(t, int64(42), u.UserID)
		assert.Zero(t, u.DownloadsUsed)
		assert.Zero(t, u.TotalSpent)
		assert.Empty(t, u.Subscriptions)
		assert.False(t, u.JoinedAt.IsZero())

		again, err := s.GetOrCreateUser(42)
		require.NoError(t, err)
		assert.True(t, u.JoinedAt.Equal(again.JoinedAt))
	})

	t.Run("put user round trip", func(t *testing.T) {
		u, err := s.GetOrCreateUser(7)
		require.NoError(t, err)
		u.DownloadsUsed = 3
		u.Tokens = append(u.Tokens, types.IssuedToken{Value: "abc", CreatedAt: time.Now().UTC(), ValidityHours: 24})
		require.NoError(t, s.PutUser(u))

		got, err := s.GetOrCreateUser(7)
		require.NoError(t, err)
		assert.Equal(t, 3, got.DownloadsUsed)
		require.Len(t, got.Tokens, 1)
		assert.Equal(t, "abc", got.Tokens[0].Value)
	})

	t.Run("payment lifecycle", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Second)
		p := &types.PaymentRecord{
			ID:        "AB12CD34",
			UserID:    9,
			PlanKey:   "6h",
			Amount:    10,
			Hours:     6,
			Status:    types.PaymentPending,
			CreatedAt: now,
			ExpiresAt: now.Add(30 * time.Minute),
		}
		require.NoError(t, s.PutPayment(p))

		got, err := s.GetPayment("AB12CD34")
		require.NoError(t, err)
		assert.Equal(t, types.PaymentPending, got.Status)
		assert.Nil(t, got.VerifiedAt)

		ok, err := s.SetPaymentStatus("AB12CD34", types.PaymentCompleted)
		require.NoError(t, err)
		assert.True(t, ok)

		got, err = s.GetPayment("AB12CD34")
		require.NoError(t, err)
		assert.Equal(t, types.PaymentCompleted, got.Status)
		assert.NotNil(t, got.VerifiedAt)

		byUser, err := s.PaymentsByUser(9)
		require.NoError(t, err)
		require.Len(t, byUser, 1)
		assert.Equal(t, "AB12CD34", byUser[0].ID)
	})

	t.Run("unknown payment", func(t *testing.T) {
		_, err := s.GetPayment("NOPE0000")
		assert.True(t, errors.Is(err, types.ErrPaymentNotFound))

		ok, err := s.SetPaymentStatus("NOPE0000", types.PaymentCompleted)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
