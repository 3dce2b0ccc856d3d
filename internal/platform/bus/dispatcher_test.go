package bus_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Apurer/go-order-fulfillment/internal/platform/bus"
	busmemory "github.com/Apurer/go-order-fulfillment/internal/platform/bus/memory"
)

func TestDispatcher_DeliversToSubscribedHandler(t *testing.T) {
	dispatcher := bus.NewDispatcher(busmemory.NewInbox())
	var seen []string
	dispatcher.Subscribe("recorder", func(_ context.Context, msg bus.Message) ([]bus.Message, error) {
		seen = append(seen, msg.Name)
		return nil, nil
	}, "orders.placed")

	msg, err := bus.New("orders.placed", "order-1", map[string]string{"hello": "world"})
	require.NoError(t, err)
	require.NoError(t, dispatcher.Publish(context.Background(), msg))
	require.Equal(t, []string{"orders.placed"}, seen)
}

func TestDispatcher_RedeliveryIsNoOp(t *testing.T) {
	dispatcher := bus.NewDispatcher(busmemory.NewInbox())
	invocations := 0
	var produced []bus.Message
	dispatcher.Subscribe("saga", func(_ context.Context, _ bus.Message) ([]bus.Message, error) {
		invocations++
		out, err := bus.New("inventory.reserve_stock", "order-1", nil)
		require.NoError(t, err)
		return []bus.Message{out}, nil
	}, "orders.placed")
	dispatcher.Subscribe("recorder", func(_ context.Context, msg bus.Message) ([]bus.Message, error) {
		produced = append(produced, msg)
		return nil, nil
	}, "inventory.reserve_stock")

	msg, err := bus.New("orders.placed", "order-1", nil)
	require.NoError(t, err)
	require.NoError(t, dispatcher.Publish(context.Background(), msg))
	// Same message identity delivered again.
	require.NoError(t, dispatcher.Publish(context.Background(), msg))

	require.Equal(t, 1, invocations)
	require.Len(t, produced, 1, "duplicate delivery must not produce duplicate outbound messages")
}

func TestDispatcher_FanOutDrainsProducedMessages(t *testing.T) {
	dispatcher := bus.NewDispatcher(busmemory.NewInbox())
	var order []string
	dispatcher.Subscribe("first", func(_ context.Context, _ bus.Message) ([]bus.Message, error) {
		order = append(order, "first")
		next, err := bus.New("step.two", "order-1", nil)
		require.NoError(t, err)
		return []bus.Message{next}, nil
	}, "step.one")
	dispatcher.Subscribe("second", func(_ context.Context, _ bus.Message) ([]bus.Message, error) {
		order = append(order, "second")
		return nil, nil
	}, "step.two")

	msg, err := bus.New("step.one", "order-1", nil)
	require.NoError(t, err)
	require.NoError(t, dispatcher.Publish(context.Background(), msg))
	require.Equal(t, []string{"first", "second"}, order)
}

func TestDispatcher_TransientFailureIsRetried(t *testing.T) {
	dispatcher := bus.NewDispatcher(busmemory.NewInbox(), bus.WithRetryPolicy(3, time.Millisecond))
	attempts := 0
	dispatcher.Subscribe("flaky", func(_ context.Context, _ bus.Message) ([]bus.Message, error) {
		attempts++
		if attempts < 3 {
			return nil, bus.Transient(errors.New("connection reset"))
		}
		return nil, nil
	}, "orders.placed")

	msg, err := bus.New("orders.placed", "order-1", nil)
	require.NoError(t, err)
	require.NoError(t, dispatcher.Publish(context.Background(), msg))
	require.Equal(t, 3, attempts)
}

func TestDispatcher_PermanentFailureIsDeadLettered(t *testing.T) {
	var dead []string
	dispatcher := bus.NewDispatcher(busmemory.NewInbox(),
		bus.WithRetryPolicy(3, time.Millisecond),
		bus.WithDeadLetter(func(msg bus.Message, handler string, _ error) {
			dead = append(dead, handler+":"+msg.Name)
		}))
	attempts := 0
	dispatcher.Subscribe("strict", func(_ context.Context, _ bus.Message) ([]bus.Message, error) {
		attempts++
		return nil, errors.New("invalid state transition")
	}, "orders.placed")

	msg, err := bus.New("orders.placed", "order-1", nil)
	require.NoError(t, err)
	require.NoError(t, dispatcher.Publish(context.Background(), msg))
	require.Equal(t, 1, attempts, "invariant violations are not retried")
	require.Equal(t, []string{"strict:orders.placed"}, dead)

	// Dead-lettered messages are consumed: redelivery does not re-run the
	// handler.
	require.NoError(t, dispatcher.Publish(context.Background(), msg))
	require.Equal(t, 1, attempts)
}

// flakyInbox fails the first mark attempts, as a crashed or unreachable inbox
// store would.
type flakyInbox struct {
	bus.Inbox
	markFailures int
}

func (f *flakyInbox) MarkProcessed(ctx context.Context, handler, messageID string) (bool, error) {
	if f.markFailures > 0 {
		f.markFailures--
		return false, bus.Transient(errors.New("inbox unavailable"))
	}
	return f.Inbox.MarkProcessed(ctx, handler, messageID)
}

func TestDispatcher_UnmarkedMessageIsRedelivered(t *testing.T) {
	inbox := &flakyInbox{Inbox: busmemory.NewInbox(), markFailures: 1}
	dispatcher := bus.NewDispatcher(inbox)
	invocations := 0
	dispatcher.Subscribe("saga", func(_ context.Context, _ bus.Message) ([]bus.Message, error) {
		invocations++
		return nil, nil
	}, "orders.placed")

	msg, err := bus.New("orders.placed", "order-1", nil)
	require.NoError(t, err)

	// The handler ran but the processed marker never landed: the publish
	// fails so the transport redelivers instead of swallowing the message.
	require.Error(t, dispatcher.Publish(context.Background(), msg))
	require.Equal(t, 1, invocations)

	require.NoError(t, dispatcher.Publish(context.Background(), msg))
	require.Equal(t, 2, invocations, "redelivery re-runs the handler until the marker lands")

	require.NoError(t, dispatcher.Publish(context.Background(), msg))
	require.Equal(t, 2, invocations, "marked messages deduplicate again")
}
