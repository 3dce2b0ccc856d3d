package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/go-order-fulfillment/internal/domains/payments/domain"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestNewAuthorization(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		auth, err := domain.NewAuthorization("order-1", 2500, now)
		require.NoError(t, err)
		assert.Equal(t, domain.StateAuthorized, auth.State)
		assert.Equal(t, int64(2500), auth.AmountCents)
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		_, err := domain.NewAuthorization("order-1", 0, now)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	})
}

func TestCapture(t *testing.T) {
	t.Run("captures up to the hold", func(t *testing.T) {
		auth, _ := domain.NewAuthorization("order-1", 2500, now)
		require.NoError(t, auth.Capture(2500))
		assert.Equal(t, domain.StateCaptured, auth.State)
		assert.Equal(t, int64(2500), auth.CapturedCents)
	})

	t.Run("never exceeds the hold", func(t *testing.T) {
		auth, _ := domain.NewAuthorization("order-1", 2500, now)
		err := auth.Capture(2600)
		assert.ErrorIs(t, err, domain.ErrCaptureExceedsAuthorization)
		assert.Equal(t, domain.StateAuthorized, auth.State)
	})

	t.Run("voided hold cannot capture", func(t *testing.T) {
		auth, _ := domain.NewAuthorization("order-1", 2500, now)
		_, err := auth.Void()
		require.NoError(t, err)
		assert.ErrorIs(t, auth.Capture(2500), domain.ErrInvalidPaymentState)
	})

	t.Run("denial cannot capture", func(t *testing.T) {
		auth := domain.NewDenial("order-1", 2500, "InsufficientFunds", now)
		assert.ErrorIs(t, auth.Capture(2500), domain.ErrInvalidPaymentState)
	})
}

func TestVoid(t *testing.T) {
	t.Run("releases the hold", func(t *testing.T) {
		auth, _ := domain.NewAuthorization("order-1", 2500, now)
		changed, err := auth.Void()
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, domain.StateVoided, auth.State)
	})

	t.Run("void is idempotent", func(t *testing.T) {
		auth, _ := domain.NewAuthorization("order-1", 2500, now)
		_, err := auth.Void()
		require.NoError(t, err)
		changed, err := auth.Void()
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("voiding a denial is a no-op", func(t *testing.T) {
		auth := domain.NewDenial("order-1", 2500, "InsufficientFunds", now)
		changed, err := auth.Void()
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("captured funds must be refunded", func(t *testing.T) {
		auth, _ := domain.NewAuthorization("order-1", 2500, now)
		require.NoError(t, auth.Capture(2500))
		_, err := auth.Void()
		assert.ErrorIs(t, err, domain.ErrInvalidPaymentState)
	})
}

func TestRefund(t *testing.T) {
	t.Run("returns captured funds", func(t *testing.T) {
		auth, _ := domain.NewAuthorization("order-1", 2500, now)
		require.NoError(t, auth.Capture(2500))
		changed, err := auth.Refund(2500)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, domain.StateRefunded, auth.State)
	})

	t.Run("refund is idempotent", func(t *testing.T) {
		auth, _ := domain.NewAuthorization("order-1", 2500, now)
		require.NoError(t, auth.Capture(2500))
		_, err := auth.Refund(2500)
		require.NoError(t, err)
		changed, err := auth.Refund(2500)
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("refund never exceeds the capture", func(t *testing.T) {
		auth, _ := domain.NewAuthorization("order-1", 2500, now)
		require.NoError(t, auth.Capture(2000))
		_, err := auth.Refund(2500)
		assert.ErrorIs(t, err, domain.ErrRefundExceedsCapture)
	})

	t.Run("uncaptured hold cannot refund", func(t *testing.T) {
		auth, _ := domain.NewAuthorization("order-1", 2500, now)
		_, err := auth.Refund(2500)
		assert.ErrorIs(t, err, domain.ErrInvalidPaymentState)
	})
}
