// Package memory provides an in-memory inventory repository for tests and
// dependency-free local runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Apurer/go-order-fulfillment/internal/domains/inventory/domain"
	"github.com/Apurer/go-order-fulfillment/internal/domains/inventory/ports"
)

var _ ports.Repository = (*Repository)(nil)

type key struct {
	orderID string
	sku     string
}

// Repository keeps stock levels and reservations in maps behind a mutex.
type Repository struct {
	mu           sync.RWMutex
	stock        map[string]int32
	reservations map[key]*domain.Reservation
}

// NewRepository creates an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{
		stock:        map[string]int32{},
		reservations: map[key]*domain.Reservation{},
	}
}

func (r *Repository) StockLevel(_ context.Context, sku string) (int32, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stock[sku], nil
}

func (r *Repository) SetStockLevel(_ context.Context, sku string, qty int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stock[sku] = qty
	return nil
}

func (r *Repository) Get(_ context.Context, orderID, sku string) (*domain.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reservation, ok := r.reservations[key{orderID, sku}]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	clone := *reservation
	return &clone, nil
}

func (r *Repository) Save(_ context.Context, reservation *domain.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *reservation
	r.reservations[key{reservation.OrderID, reservation.SKU}] = &clone
	return nil
}

func (r *Repository) ListByOrder(_ context.Context, orderID string) ([]*domain.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Reservation
	for k, reservation := range r.reservations {
		if k.orderID != orderID {
			continue
		}
		clone := *reservation
		out = append(out, &clone)
	}
	return out, nil
}

func (r *Repository) ReservedQty(_ context.Context, sku string, at time.Time) (int32, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total int32
	for k, reservation := range r.reservations {
		if k.sku != sku || !reservation.CountsAgainstStock(at) {
			continue
		}
		total += reservation.Qty
	}
	return total, nil
}

func (r *Repository) ListLapsed(_ context.Context, at time.Time) ([]*domain.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Reservation
	for _, reservation := range r.reservations {
		if !reservation.Lapsed(at) {
			continue
		}
		clone := *reservation
		out = append(out, &clone)
	}
	return out, nil
}
