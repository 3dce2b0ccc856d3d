package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Apurer/go-order-fulfillment/internal/platform/eventstore"
)

type stubEvent struct {
	Value string `json:"value"`
}

func (e stubEvent) EventName() string { return "test.stub" }

func TestStore_AppendAssignsContiguousVersions(t *testing.T) {
	store := NewStore()

	first, err := store.Append(context.Background(), "order-1", eventstore.ExpectedNew, []eventstore.Event{stubEvent{Value: "a"}, stubEvent{Value: "b"}})
	require.NoError(t, err)
	require.Equal(t, int64(1), first[0].Version)
	require.Equal(t, int64(2), first[1].Version)

	second, err := store.Append(context.Background(), "order-1", 2, []eventstore.Event{stubEvent{Value: "c"}})
	require.NoError(t, err)
	require.Equal(t, int64(3), second[0].Version)
}

func TestStore_AppendVersionConflict(t *testing.T) {
	store := NewStore()

	_, err := store.Append(context.Background(), "order-1", eventstore.ExpectedNew, []eventstore.Event{stubEvent{Value: "a"}})
	require.NoError(t, err)

	_, err = store.Append(context.Background(), "order-1", eventstore.ExpectedNew, []eventstore.Event{stubEvent{Value: "b"}})
	require.ErrorIs(t, err, eventstore.ErrConcurrencyConflict)

	stream, err := store.Load(context.Background(), "order-1")
	require.NoError(t, err)
	require.Len(t, stream, 1, "conflicting append must write nothing")
}

func TestStore_LoadUnknownStream(t *testing.T) {
	store := NewStore()

	_, err := store.Load(context.Background(), "missing")
	require.ErrorIs(t, err, eventstore.ErrStreamNotFound)
}

func TestStore_StreamsAreIndependent(t *testing.T) {
	store := NewStore()

	_, err := store.Append(context.Background(), "order-1", eventstore.ExpectedNew, []eventstore.Event{stubEvent{Value: "a"}})
	require.NoError(t, err)
	_, err = store.Append(context.Background(), "order-2", eventstore.ExpectedNew, []eventstore.Event{stubEvent{Value: "b"}})
	require.NoError(t, err)

	stream, err := store.Load(context.Background(), "order-2")
	require.NoError(t, err)
	require.Len(t, stream, 1)
	require.Equal(t, "order-2", stream[0].StreamID)
}
