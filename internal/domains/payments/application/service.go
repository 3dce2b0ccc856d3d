package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Apurer/go-order-fulfillment/internal/domains/payments/domain"
	"github.com/Apurer/go-order-fulfillment/internal/domains/payments/ports"
)

var _ ports.Service = (*Service)(nil)

// Service coordinates the processor gateway with the local authorization
// record. The local record is the source of truth for state transitions; the
// gateway call happens first so a crash between the two is recovered by the
// idempotent redelivery of the command.
type Service struct {
	repo    ports.Repository
	gateway ports.Gateway
	logger  *slog.Logger
	clock   func() time.Time
}

// Option configures the service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the timestamp source, for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService wires the payment service with its repository and gateway.
func NewService(repo ports.Repository, gateway ports.Gateway, opts ...Option) *Service {
	s := &Service{repo: repo, gateway: gateway, logger: slog.Default(), clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Authorize requests a hold for the order total. The order identity is the
// idempotency key: redelivering the command returns the recorded outcome,
// approved or denied, without asking the processor again. A genuinely new
// attempt (different amount) against a live authorization is rejected; only
// a voided one can be re-authorized.
func (s *Service) Authorize(ctx context.Context, orderID string, amountCents int64) (*domain.Authorization, error) {
	existing, err := s.repo.Get(ctx, orderID)
	if err != nil && !errors.Is(err, domain.ErrAuthorizationNotFound) {
		return nil, err
	}
	if existing != nil && existing.State != domain.StateVoided {
		if existing.AmountCents == amountCents {
			return existing, nil
		}
		return nil, fmt.Errorf("%w: order %s already has a %s authorization", domain.ErrInvalidPaymentState, orderID, existing.State)
	}

	decision, err := s.gateway.Authorize(ctx, orderID, amountCents)
	if err != nil {
		return nil, fmt.Errorf("gateway authorize: %w", err)
	}
	var authorization *domain.Authorization
	if decision.Approved {
		authorization, err = domain.NewAuthorization(orderID, amountCents, s.clock())
		if err != nil {
			return nil, err
		}
	} else {
		authorization = domain.NewDenial(orderID, amountCents, decision.Reason, s.clock())
		s.logger.Info("authorization denied",
			slog.String("orderId", orderID),
			slog.String("reason", decision.Reason))
	}
	if err := s.repo.Save(ctx, authorization); err != nil {
		return nil, err
	}
	return authorization, nil
}

// Capture transfers the authorized amount. Capturing an already captured
// authorization for the same amount is an idempotent no-op.
func (s *Service) Capture(ctx context.Context, orderID string, amountCents int64) (*domain.Authorization, error) {
	authorization, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if authorization.State == domain.StateCaptured && authorization.CapturedCents == amountCents {
		return authorization, nil
	}
	if err := authorization.Capture(amountCents); err != nil {
		return nil, err
	}
	if err := s.gateway.Capture(ctx, orderID, amountCents); err != nil {
		return nil, fmt.Errorf("gateway capture: %w", err)
	}
	if err := s.repo.Save(ctx, authorization); err != nil {
		return nil, err
	}
	return authorization, nil
}

// Void releases the hold. Unknown orders and already voided or denied
// authorizations report changed=false with no error, so compensation can be
// replayed from any point.
func (s *Service) Void(ctx context.Context, orderID string) (*domain.Authorization, bool, error) {
	authorization, err := s.repo.Get(ctx, orderID)
	if errors.Is(err, domain.ErrAuthorizationNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	changed, err := authorization.Void()
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return authorization, false, nil
	}
	if err := s.gateway.Void(ctx, orderID); err != nil {
		return nil, false, fmt.Errorf("gateway void: %w", err)
	}
	if err := s.repo.Save(ctx, authorization); err != nil {
		return nil, false, err
	}
	return authorization, true, nil
}

// Refund returns captured funds. Replay-safe in the same way as Void; an
// amount of zero refunds the full capture.
func (s *Service) Refund(ctx context.Context, orderID string, amountCents int64) (*domain.Authorization, bool, error) {
	authorization, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	if amountCents <= 0 {
		amountCents = authorization.CapturedCents
	}
	changed, err := authorization.Refund(amountCents)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return authorization, false, nil
	}
	if err := s.gateway.Refund(ctx, orderID, amountCents); err != nil {
		return nil, false, fmt.Errorf("gateway refund: %w", err)
	}
	if err := s.repo.Save(ctx, authorization); err != nil {
		return nil, false, err
	}
	return authorization, true, nil
}

// GetByOrder returns the authorization recorded for the order.
func (s *Service) GetByOrder(ctx context.Context, orderID string) (*domain.Authorization, error) {
	return s.repo.Get(ctx, orderID)
}
