package ports

import (
	"context"
	"time"

	"github.com/Apurer/go-order-fulfillment/internal/domains/fulfillment/domain"
)

// InstanceStore persists saga state between messages. Get returns
// domain.ErrInstanceNotFound when no saga exists for the order.
type InstanceStore interface {
	Get(ctx context.Context, orderID string) (*domain.Instance, error)
	Save(ctx context.Context, instance *domain.Instance) error

	// ListActive returns every non-terminal instance, for crash recovery.
	ListActive(ctx context.Context) ([]*domain.Instance, error)

	// ListOverdue returns running instances whose join deadline passed.
	ListOverdue(ctx context.Context, at time.Time) ([]*domain.Instance, error)
}
