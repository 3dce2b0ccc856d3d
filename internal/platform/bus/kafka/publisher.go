// Package kafka publishes integration events to a Kafka topic so other
// deployments of the platform can consume the fulfillment stream. Messages go
// out as CloudEvents in structured JSON mode.
package kafka

import (
	"context"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/segmentio/kafka-go"

	"github.com/Apurer/go-order-fulfillment/internal/platform/bus"
)

var _ bus.Publisher = (*Publisher)(nil)

// EventSource identifies this service in outbound CloudEvents.
const EventSource = "/order-fulfillment"

// Publisher writes bus messages to Kafka keyed by order identity, so all
// messages of one order land on the same partition in order.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher builds a writer for the given brokers and topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireAll,
		},
	}
}

// Publish encodes and writes the messages. Failures are transient from the
// dispatcher's point of view.
func (p *Publisher) Publish(ctx context.Context, msgs ...bus.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	records := make([]kafka.Message, 0, len(msgs))
	for _, msg := range msgs {
		body, err := encodeCloudEvent(msg)
		if err != nil {
			return err
		}
		records = append(records, kafka.Message{
			Key:   []byte(msg.OrderID),
			Value: body,
			Headers: []kafka.Header{
				{Key: "content-type", Value: []byte(cloudevents.ApplicationCloudEventsJSON)},
			},
		})
	}
	if err := p.writer.WriteMessages(ctx, records...); err != nil {
		return bus.Transient(fmt.Errorf("kafka write: %w", err))
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func encodeCloudEvent(msg bus.Message) ([]byte, error) {
	ce := cloudevents.NewEvent()
	ce.SetID(msg.ID)
	ce.SetType(msg.Name)
	ce.SetSource(EventSource)
	ce.SetSubject(msg.OrderID)
	ce.SetTime(msg.OccurredAt)
	if err := ce.SetData(cloudevents.ApplicationJSON, msg.Payload); err != nil {
		return nil, fmt.Errorf("cloudevent data: %w", err)
	}
	body, err := ce.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("cloudevent marshal: %w", err)
	}
	return body, nil
}
