package ports

import (
	"context"

	"github.com/Apurer/go-order-fulfillment/internal/domains/payments/domain"
)

// Decision is the processor's answer to an authorization request.
type Decision struct {
	Approved bool
	Reason   string
}

// Gateway talks to the payment processor. Errors are infrastructure
// failures; a business decline is an Approved=false decision, not an error.
type Gateway interface {
	Authorize(ctx context.Context, orderID string, amountCents int64) (Decision, error)
	Capture(ctx context.Context, orderID string, amountCents int64) error
	Void(ctx context.Context, orderID string) error
	Refund(ctx context.Context, orderID string, amountCents int64) error
}

// Repository persists authorizations keyed by order identity. Get returns
// domain.ErrAuthorizationNotFound when absent.
type Repository interface {
	Get(ctx context.Context, orderID string) (*domain.Authorization, error)
	Save(ctx context.Context, authorization *domain.Authorization) error
}

// Service is the payment use-case surface. Authorize is idempotent per
// order; Void and Refund are replay-safe compensations.
type Service interface {
	Authorize(ctx context.Context, orderID string, amountCents int64) (*domain.Authorization, error)
	Capture(ctx context.Context, orderID string, amountCents int64) (*domain.Authorization, error)
	Void(ctx context.Context, orderID string) (*domain.Authorization, bool, error)
	Refund(ctx context.Context, orderID string, amountCents int64) (*domain.Authorization, bool, error)
	GetByOrder(ctx context.Context, orderID string) (*domain.Authorization, error)
}
