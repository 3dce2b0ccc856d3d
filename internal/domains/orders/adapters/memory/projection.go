package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Apurer/go-order-fulfillment/internal/domains/orders/domain"
	"github.com/Apurer/go-order-fulfillment/internal/domains/orders/ports"
	sharedprojection "github.com/Apurer/go-order-fulfillment/internal/shared/projection"
)

var _ ports.Projection = (*Projection)(nil)

// Projection is the in-memory order read model.
type Projection struct {
	mu     sync.RWMutex
	orders map[string]sharedprojection.Projection[*domain.Order]
}

func NewProjection() *Projection {
	return &Projection{orders: map[string]sharedprojection.Projection[*domain.Order]{}}
}

func (p *Projection) Upsert(_ context.Context, order *domain.Order) error {
	if order == nil || order.ID == "" {
		return errors.New("order is nil or missing identity")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	clone := *order
	clone.Items = append([]domain.LineItem(nil), order.Items...)
	now := time.Now()
	entry, ok := p.orders[order.ID]
	if !ok {
		entry.Metadata.CreatedAt = now
	}
	entry.Entity = &clone
	entry.Metadata.UpdatedAt = now
	p.orders[order.ID] = entry
	return nil
}

func (p *Projection) List(_ context.Context) ([]*domain.Order, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	list := make([]*domain.Order, 0, len(p.orders))
	for _, entry := range p.orders {
		clone := *entry.Entity
		list = append(list, &clone)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].PlacedAt.Before(list[j].PlacedAt) })
	return list, nil
}
