package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/go-order-fulfillment/internal/domains/inventory/domain"
)

func TestNewHold(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("valid hold", func(t *testing.T) {
		r, err := domain.NewHold("order-1", "SKU-A", 3, 15*time.Minute, now)
		require.NoError(t, err)
		assert.Equal(t, domain.StateHeld, r.State)
		assert.Equal(t, now.Add(15*time.Minute), r.ExpiresAt)
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		_, err := domain.NewHold("order-1", "SKU-A", 0, time.Minute, now)
		assert.ErrorIs(t, err, domain.ErrInvalidHold)
	})

	t.Run("rejects missing identifiers", func(t *testing.T) {
		_, err := domain.NewHold("", "SKU-A", 1, time.Minute, now)
		assert.ErrorIs(t, err, domain.ErrInvalidHold)
	})
}

func TestReservationCommit(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("held commits", func(t *testing.T) {
		r, _ := domain.NewHold("order-1", "SKU-A", 3, 15*time.Minute, now)
		require.NoError(t, r.Commit(now.Add(time.Minute)))
		assert.Equal(t, domain.StateCommitted, r.State)
	})

	t.Run("lapsed hold refuses to commit", func(t *testing.T) {
		r, _ := domain.NewHold("order-1", "SKU-A", 3, 15*time.Minute, now)
		err := r.Commit(now.Add(15 * time.Minute))
		assert.ErrorIs(t, err, domain.ErrReservationExpired)
	})

	t.Run("released hold refuses to commit", func(t *testing.T) {
		r, _ := domain.NewHold("order-1", "SKU-A", 3, 15*time.Minute, now)
		r.Release()
		err := r.Commit(now.Add(time.Minute))
		assert.ErrorIs(t, err, domain.ErrReservationNotFound)
	})
}

func TestReservationRelease(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("held releases", func(t *testing.T) {
		r, _ := domain.NewHold("order-1", "SKU-A", 3, 15*time.Minute, now)
		assert.True(t, r.Release())
		assert.Equal(t, domain.StateReleased, r.State)
	})

	t.Run("committed releases", func(t *testing.T) {
		r, _ := domain.NewHold("order-1", "SKU-A", 3, 15*time.Minute, now)
		require.NoError(t, r.Commit(now))
		assert.True(t, r.Release())
	})

	t.Run("release is idempotent", func(t *testing.T) {
		r, _ := domain.NewHold("order-1", "SKU-A", 3, 15*time.Minute, now)
		require.True(t, r.Release())
		assert.False(t, r.Release())
		assert.Equal(t, domain.StateReleased, r.State)
	})
}

func TestReservationExpire(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r, _ := domain.NewHold("order-1", "SKU-A", 3, 15*time.Minute, now)

	assert.False(t, r.Expire(now.Add(14*time.Minute)), "not yet lapsed")
	assert.True(t, r.Expire(now.Add(15*time.Minute)))
	assert.Equal(t, domain.StateExpired, r.State)
	assert.False(t, r.Expire(now.Add(16*time.Minute)), "already expired")
}

func TestCountsAgainstStock(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r, _ := domain.NewHold("order-1", "SKU-A", 3, 15*time.Minute, now)

	assert.True(t, r.CountsAgainstStock(now))
	assert.False(t, r.CountsAgainstStock(now.Add(15*time.Minute)), "lapsed hold frees capacity before the sweep runs")

	require.NoError(t, r.Commit(now))
	assert.True(t, r.CountsAgainstStock(now.Add(time.Hour)), "committed stock never lapses")

	r.Release()
	assert.False(t, r.CountsAgainstStock(now))
}
