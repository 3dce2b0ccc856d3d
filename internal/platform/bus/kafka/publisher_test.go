package kafka

import (
	"testing"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/go-order-fulfillment/internal/platform/bus"
)

func TestEncodeCloudEvent(t *testing.T) {
	msg := bus.Message{
		ID:         "msg-1",
		Name:       "inventory.reservation_held",
		OrderID:    "order-42",
		Payload:    []byte(`{"sku":"DOG-FOOD-5LB","qty":2}`),
		OccurredAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	body, err := encodeCloudEvent(msg)
	require.NoError(t, err)

	var decoded cloudevents.Event
	require.NoError(t, decoded.UnmarshalJSON(body))
	require.Equal(t, "msg-1", decoded.ID())
	require.Equal(t, "inventory.reservation_held", decoded.Type())
	require.Equal(t, EventSource, decoded.Source())
	require.Equal(t, "order-42", decoded.Subject())
	require.JSONEq(t, `{"sku":"DOG-FOOD-5LB","qty":2}`, string(decoded.Data()))
}
