package ports

import (
	"context"
	"time"

	"github.com/Apurer/go-order-fulfillment/internal/domains/inventory/domain"
)

// Repository persists stock levels and reservations. Reservations are keyed
// by (orderID, SKU); Get returns domain.ErrReservationNotFound when absent.
type Repository interface {
	StockLevel(ctx context.Context, sku string) (int32, error)
	SetStockLevel(ctx context.Context, sku string, qty int32) error

	Get(ctx context.Context, orderID, sku string) (*domain.Reservation, error)
	Save(ctx context.Context, reservation *domain.Reservation) error
	ListByOrder(ctx context.Context, orderID string) ([]*domain.Reservation, error)

	// ReservedQty sums quantities that still consume capacity for the SKU
	// at the given instant: committed reservations plus unlapsed holds.
	ReservedQty(ctx context.Context, sku string, at time.Time) (int32, error)

	// ListLapsed returns holds whose expiry has passed as of the instant.
	ListLapsed(ctx context.Context, at time.Time) ([]*domain.Reservation, error)
}
