// Package bus carries commands and integration events between bounded
// contexts. Delivery is at-least-once: every message has a unique identity
// and handlers are deduplicated through an Inbox, so redelivery has no
// additional effect.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message is the transport envelope shared by commands and events.
type Message struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	OrderID    string          `json:"orderId"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// New builds a message with a fresh identity and the payload marshaled as JSON.
func New(name, orderID string, payload any) (Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", name, err)
	}
	return Message{
		ID:         uuid.NewString(),
		Name:       name,
		OrderID:    orderID,
		Payload:    body,
		OccurredAt: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the message payload into the given contract type.
func Decode[T any](msg Message) (T, error) {
	var out T
	if err := json.Unmarshal(msg.Payload, &out); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", msg.Name, err)
	}
	return out, nil
}

// Handler consumes a message and returns the messages it produces in turn.
// Returning nil, nil is valid for terminal messages.
type Handler func(ctx context.Context, msg Message) ([]Message, error)

// Publisher delivers messages to their subscribers.
type Publisher interface {
	Publish(ctx context.Context, msgs ...Message) error
}

// Inbox records processed message identities per handler so redelivered
// messages become no-ops. Processed reports whether the (handler, message)
// pair was already recorded; MarkProcessed records it once the handler's own
// state change landed. A crash between the two re-runs the handler on
// redelivery, which the handlers' replay-safety absorbs, instead of losing
// the message.
type Inbox interface {
	Processed(ctx context.Context, handler, messageID string) (bool, error)
	MarkProcessed(ctx context.Context, handler, messageID string) (bool, error)
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks an error as retryable infrastructure failure. The
// dispatcher retries transient failures with bounded backoff before giving up.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether the error chain carries a transient marker.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}
