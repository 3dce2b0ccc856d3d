package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/go-order-fulfillment/internal/domains/payments/adapters/gateway"
	"github.com/Apurer/go-order-fulfillment/internal/domains/payments/adapters/memory"
	"github.com/Apurer/go-order-fulfillment/internal/domains/payments/application"
	"github.com/Apurer/go-order-fulfillment/internal/domains/payments/domain"
	"github.com/Apurer/go-order-fulfillment/internal/domains/payments/ports"
)

// countingGateway wraps the static gateway and counts processor calls, to
// prove idempotent replays never hit the processor twice.
type countingGateway struct {
	inner      ports.Gateway
	authorizes int
	captures   int
	voids      int
	refunds    int
}

func (g *countingGateway) Authorize(ctx context.Context, orderID string, amountCents int64) (ports.Decision, error) {
	g.authorizes++
	return g.inner.Authorize(ctx, orderID, amountCents)
}

func (g *countingGateway) Capture(ctx context.Context, orderID string, amountCents int64) error {
	g.captures++
	return g.inner.Capture(ctx, orderID, amountCents)
}

func (g *countingGateway) Void(ctx context.Context, orderID string) error {
	g.voids++
	return g.inner.Void(ctx, orderID)
}

func (g *countingGateway) Refund(ctx context.Context, orderID string, amountCents int64) error {
	g.refunds++
	return g.inner.Refund(ctx, orderID, amountCents)
}

func setup(t *testing.T) (*application.Service, *countingGateway) {
	t.Helper()
	counting := &countingGateway{inner: gateway.NewStatic(gateway.WithDeclineOver(100_000))}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := application.NewService(memory.NewRepository(), counting,
		application.WithClock(func() time.Time { return now }))
	return svc, counting
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()

	t.Run("approves within the limit", func(t *testing.T) {
		svc, _ := setup(t)
		auth, err := svc.Authorize(ctx, "order-1", 2500)
		require.NoError(t, err)
		assert.Equal(t, domain.StateAuthorized, auth.State)
	})

	t.Run("records the denial", func(t *testing.T) {
		svc, _ := setup(t)
		auth, err := svc.Authorize(ctx, "order-1", 200_000)
		require.NoError(t, err)
		assert.Equal(t, domain.StateDenied, auth.State)
		assert.Equal(t, "InsufficientFunds", auth.Reason)
	})

	t.Run("redelivery returns the recorded outcome", func(t *testing.T) {
		svc, counting := setup(t)
		first, err := svc.Authorize(ctx, "order-1", 2500)
		require.NoError(t, err)
		second, err := svc.Authorize(ctx, "order-1", 2500)
		require.NoError(t, err)
		assert.Equal(t, first.State, second.State)
		assert.Equal(t, 1, counting.authorizes, "processor asked exactly once")
	})

	t.Run("denial is sticky across redelivery", func(t *testing.T) {
		svc, counting := setup(t)
		_, err := svc.Authorize(ctx, "order-1", 200_000)
		require.NoError(t, err)
		auth, err := svc.Authorize(ctx, "order-1", 200_000)
		require.NoError(t, err)
		assert.Equal(t, domain.StateDenied, auth.State)
		assert.Equal(t, 1, counting.authorizes)
	})

	t.Run("rejects a second attempt with a different amount", func(t *testing.T) {
		svc, _ := setup(t)
		_, err := svc.Authorize(ctx, "order-1", 2500)
		require.NoError(t, err)
		_, err = svc.Authorize(ctx, "order-1", 9900)
		assert.ErrorIs(t, err, domain.ErrInvalidPaymentState)
	})

	t.Run("re-authorizes after a void", func(t *testing.T) {
		svc, counting := setup(t)
		_, err := svc.Authorize(ctx, "order-1", 2500)
		require.NoError(t, err)
		_, _, err = svc.Void(ctx, "order-1")
		require.NoError(t, err)

		auth, err := svc.Authorize(ctx, "order-1", 3000)
		require.NoError(t, err)
		assert.Equal(t, domain.StateAuthorized, auth.State)
		assert.Equal(t, int64(3000), auth.AmountCents)
		assert.Equal(t, 2, counting.authorizes)
	})
}

func TestCapture(t *testing.T) {
	ctx := context.Background()

	t.Run("captures the authorized amount", func(t *testing.T) {
		svc, _ := setup(t)
		_, err := svc.Authorize(ctx, "order-1", 2500)
		require.NoError(t, err)

		auth, err := svc.Capture(ctx, "order-1", 2500)
		require.NoError(t, err)
		assert.Equal(t, domain.StateCaptured, auth.State)
		assert.Equal(t, int64(2500), auth.CapturedCents)
	})

	t.Run("capture is idempotent", func(t *testing.T) {
		svc, counting := setup(t)
		_, err := svc.Authorize(ctx, "order-1", 2500)
		require.NoError(t, err)
		_, err = svc.Capture(ctx, "order-1", 2500)
		require.NoError(t, err)
		_, err = svc.Capture(ctx, "order-1", 2500)
		require.NoError(t, err)
		assert.Equal(t, 1, counting.captures)
	})

	t.Run("never exceeds the hold", func(t *testing.T) {
		svc, _ := setup(t)
		_, err := svc.Authorize(ctx, "order-1", 2500)
		require.NoError(t, err)
		_, err = svc.Capture(ctx, "order-1", 2600)
		assert.ErrorIs(t, err, domain.ErrCaptureExceedsAuthorization)
	})

	t.Run("unknown order", func(t *testing.T) {
		svc, _ := setup(t)
		_, err := svc.Capture(ctx, "order-x", 2500)
		assert.ErrorIs(t, err, domain.ErrAuthorizationNotFound)
	})
}

func TestVoid(t *testing.T) {
	ctx := context.Background()

	t.Run("releases the hold", func(t *testing.T) {
		svc, _ := setup(t)
		_, err := svc.Authorize(ctx, "order-1", 2500)
		require.NoError(t, err)

		auth, changed, err := svc.Void(ctx, "order-1")
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, domain.StateVoided, auth.State)
	})

	t.Run("void converges on replay", func(t *testing.T) {
		svc, counting := setup(t)
		_, err := svc.Authorize(ctx, "order-1", 2500)
		require.NoError(t, err)
		_, _, err = svc.Void(ctx, "order-1")
		require.NoError(t, err)
		_, changed, err := svc.Void(ctx, "order-1")
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, 1, counting.voids)
	})

	t.Run("voiding an unknown order is a no-op", func(t *testing.T) {
		svc, _ := setup(t)
		_, changed, err := svc.Void(ctx, "order-x")
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("captured funds cannot be voided", func(t *testing.T) {
		svc, _ := setup(t)
		_, err := svc.Authorize(ctx, "order-1", 2500)
		require.NoError(t, err)
		_, err = svc.Capture(ctx, "order-1", 2500)
		require.NoError(t, err)
		_, _, err = svc.Void(ctx, "order-1")
		assert.ErrorIs(t, err, domain.ErrInvalidPaymentState)
	})
}

func TestRefund(t *testing.T) {
	ctx := context.Background()
	svc, counting := setup(t)

	_, err := svc.Authorize(ctx, "order-1", 2500)
	require.NoError(t, err)
	_, err = svc.Capture(ctx, "order-1", 2500)
	require.NoError(t, err)

	auth, changed, err := svc.Refund(ctx, "order-1", 0)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.StateRefunded, auth.State)

	_, changed, err = svc.Refund(ctx, "order-1", 0)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, counting.refunds)

	_, _, err = svc.Refund(ctx, "order-x", 0)
	assert.ErrorIs(t, err, domain.ErrAuthorizationNotFound)
}
