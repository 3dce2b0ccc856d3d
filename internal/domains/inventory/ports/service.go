package ports

import (
	"context"
	"time"

	"github.com/Apurer/go-order-fulfillment/internal/domains/inventory/domain"
)

// Service is the reservation ledger. Hold enforces the capacity invariant;
// Commit, Release and SweepExpired move holds through their lifecycle.
type Service interface {
	Hold(ctx context.Context, orderID, sku string, qty int32, ttl time.Duration) (*domain.Reservation, error)
	Commit(ctx context.Context, orderID, sku string) (*domain.Reservation, error)
	CommitOrder(ctx context.Context, orderID string) ([]*domain.Reservation, error)
	Release(ctx context.Context, orderID, sku string) (*domain.Reservation, bool, error)
	ReleaseOrder(ctx context.Context, orderID string) ([]*domain.Reservation, error)
	SweepExpired(ctx context.Context) ([]*domain.Reservation, error)

	Available(ctx context.Context, sku string) (int32, error)
	SetStockLevel(ctx context.Context, sku string, qty int32) error
}
