// Package memory provides an in-memory authorization repository for tests
// and dependency-free local runs.
package memory

import (
	"context"
	"sync"

	"github.com/Apurer/go-order-fulfillment/internal/domains/payments/domain"
	"github.com/Apurer/go-order-fulfillment/internal/domains/payments/ports"
)

var _ ports.Repository = (*Repository)(nil)

// Repository keeps authorizations in a map behind a mutex.
type Repository struct {
	mu             sync.RWMutex
	authorizations map[string]*domain.Authorization
}

// NewRepository creates an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{authorizations: map[string]*domain.Authorization{}}
}

func (r *Repository) Get(_ context.Context, orderID string) (*domain.Authorization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	authorization, ok := r.authorizations[orderID]
	if !ok {
		return nil, domain.ErrAuthorizationNotFound
	}
	clone := *authorization
	return &clone, nil
}

func (r *Repository) Save(_ context.Context, authorization *domain.Authorization) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *authorization
	r.authorizations[authorization.OrderID] = &clone
	return nil
}
