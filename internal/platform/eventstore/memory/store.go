package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Apurer/go-order-fulfillment/internal/platform/eventstore"
)

var _ eventstore.Store = (*Store)(nil)

// Store keeps event streams in memory, linearizing appends per stream under a
// single mutex. Suitable for tests and the no-Postgres fallback.
type Store struct {
	mu      sync.RWMutex
	streams map[string][]eventstore.Envelope
	clock   func() time.Time
}

func NewStore() *Store {
	return &Store{streams: map[string][]eventstore.Envelope{}, clock: time.Now}
}

// WithClock overrides the timestamp source, for deterministic tests.
func (s *Store) WithClock(clock func() time.Time) *Store {
	if clock != nil {
		s.clock = clock
	}
	return s
}

func (s *Store) Append(_ context.Context, streamID string, expectedVersion int64, events []eventstore.Event) ([]eventstore.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stream := s.streams[streamID]
	if int64(len(stream)) != expectedVersion {
		return nil, eventstore.ErrConcurrencyConflict
	}
	now := s.clock().UTC()
	appended := make([]eventstore.Envelope, 0, len(events))
	for i, event := range events {
		envelope, err := eventstore.Seal(streamID, expectedVersion+int64(i)+1, event, now)
		if err != nil {
			return nil, err
		}
		appended = append(appended, envelope)
	}
	s.streams[streamID] = append(stream, appended...)
	return appended, nil
}

func (s *Store) Load(_ context.Context, streamID string) ([]eventstore.Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stream, ok := s.streams[streamID]
	if !ok {
		return nil, eventstore.ErrStreamNotFound
	}
	out := make([]eventstore.Envelope, len(stream))
	copy(out, stream)
	return out, nil
}
