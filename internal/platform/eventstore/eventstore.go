// Package eventstore defines the append-only event stream abstraction used by
// event-sourced aggregates. Streams are keyed by aggregate identity and
// versioned; appends carry the expected version so concurrent writers against
// the same identity are linearized optimistically.
package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrConcurrencyConflict is returned when the expected stream version does not
// match the stored one. The caller reloads and retries the command.
var ErrConcurrencyConflict = errors.New("event stream version conflict")

// ErrStreamNotFound is returned by Load for unknown streams.
var ErrStreamNotFound = errors.New("event stream not found")

// ExpectedNew asserts the stream must not exist yet.
const ExpectedNew int64 = 0

// Envelope is a stored event with its stream position.
type Envelope struct {
	StreamID   string
	Version    int64
	Name       string
	Payload    json.RawMessage
	RecordedAt time.Time
}

// Event is the minimal contract stored events satisfy.
type Event interface {
	EventName() string
}

// Store appends and reads ordered event streams.
type Store interface {
	// Append writes the events after the given expected version. Versions are
	// assigned contiguously starting at expectedVersion+1. A mismatch fails
	// with ErrConcurrencyConflict and writes nothing.
	Append(ctx context.Context, streamID string, expectedVersion int64, events []Event) ([]Envelope, error)
	// Load returns the full ordered stream, or ErrStreamNotFound.
	Load(ctx context.Context, streamID string) ([]Envelope, error)
}

// Seal converts a domain event into an envelope payload.
func Seal(streamID string, version int64, event Event, now time.Time) (Envelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		StreamID:   streamID,
		Version:    version,
		Name:       event.EventName(),
		Payload:    payload,
		RecordedAt: now,
	}, nil
}
