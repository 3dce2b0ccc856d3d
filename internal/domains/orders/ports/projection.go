package ports

import (
	"context"

	"github.com/Apurer/go-order-fulfillment/internal/domains/orders/domain"
)

// Projection is the order read model kept alongside the event stream for
// listing and lookups that must not replay streams.
type Projection interface {
	Upsert(ctx context.Context, order *domain.Order) error
	List(ctx context.Context) ([]*domain.Order, error)
}
