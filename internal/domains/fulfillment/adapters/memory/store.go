// Package memory provides an in-memory saga instance store for tests and
// dependency-free local runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Apurer/go-order-fulfillment/internal/domains/fulfillment/domain"
	"github.com/Apurer/go-order-fulfillment/internal/domains/fulfillment/ports"
)

var _ ports.InstanceStore = (*Store)(nil)

// Store keeps saga instances in a map behind a mutex.
type Store struct {
	mu        sync.RWMutex
	instances map[string]*domain.Instance
}

// NewStore creates an empty in-memory instance store.
func NewStore() *Store {
	return &Store{instances: map[string]*domain.Instance{}}
}

func (s *Store) Get(_ context.Context, orderID string) (*domain.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	instance, ok := s.instances[orderID]
	if !ok {
		return nil, domain.ErrInstanceNotFound
	}
	return clone(instance), nil
}

func (s *Store) Save(_ context.Context, instance *domain.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances[instance.OrderID] = clone(instance)
	return nil
}

func (s *Store) ListActive(_ context.Context) ([]*domain.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Instance
	for _, instance := range s.instances {
		if instance.Terminal() {
			continue
		}
		out = append(out, clone(instance))
	}
	return out, nil
}

func (s *Store) ListOverdue(_ context.Context, at time.Time) ([]*domain.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Instance
	for _, instance := range s.instances {
		if !instance.Overdue(at) {
			continue
		}
		out = append(out, clone(instance))
	}
	return out, nil
}

func clone(instance *domain.Instance) *domain.Instance {
	copied := *instance
	copied.Items = append([]domain.Item(nil), instance.Items...)
	copied.HeldSKUs = make(map[string]bool, len(instance.HeldSKUs))
	for sku, held := range instance.HeldSKUs {
		copied.HeldSKUs[sku] = held
	}
	return &copied
}
