package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Apurer/go-order-fulfillment/internal/domains/orders/domain"
	"github.com/Apurer/go-order-fulfillment/internal/domains/orders/ports"
	"github.com/Apurer/go-order-fulfillment/internal/platform/eventstore"
)

var _ ports.Service = (*Service)(nil)

// Service drives the order aggregate: load stream, fold, decide, append with
// the expected version. A version conflict is retried once after a reload;
// commands against the same order are otherwise linearized by the store.
type Service struct {
	store      eventstore.Store
	projection ports.Projection
	logger     *slog.Logger
	clock      func() time.Time
}

// Option configures the service.
type Option func(*Service)

// WithProjection keeps an order read model updated after each append.
func WithProjection(p ports.Projection) Option {
	return func(s *Service) { s.projection = p }
}

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

// NewService wires the order service with its event store.
func NewService(store eventstore.Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default(), clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// PlaceOrder opens a new order stream. The order identity is the idempotency
// key: replaying the command for an existing order returns the current state
// without appending anything.
func (s *Service) PlaceOrder(ctx context.Context, orderID string, items []domain.LineItem) (*ports.Result, error) {
	events, err := domain.PlaceOrder(orderID, items, s.clock())
	if err != nil {
		return nil, mapError(err)
	}
	_, err = s.store.Append(ctx, orderID, eventstore.ExpectedNew, toStoreEvents(events))
	if errors.Is(err, eventstore.ErrConcurrencyConflict) {
		existing, loadErr := s.GetByID(ctx, orderID)
		if loadErr != nil {
			return nil, loadErr
		}
		return &ports.Result{Order: existing}, nil
	}
	if err != nil {
		return nil, err
	}
	order := domain.Replay(events)
	s.project(ctx, order)
	return &ports.Result{Order: order, Events: events}, nil
}

func (s *Service) MarkPaymentRequested(ctx context.Context, orderID string) (*ports.Result, error) {
	return s.execute(ctx, orderID, func(o *domain.Order) ([]domain.Event, error) {
		return o.MarkPaymentRequested()
	})
}

func (s *Service) MarkPaymentAuthorized(ctx context.Context, orderID string) (*ports.Result, error) {
	return s.execute(ctx, orderID, func(o *domain.Order) ([]domain.Event, error) {
		return o.MarkPaymentAuthorized()
	})
}

func (s *Service) MarkPaymentFailed(ctx context.Context, orderID, reason string) (*ports.Result, error) {
	return s.execute(ctx, orderID, func(o *domain.Order) ([]domain.Event, error) {
		return o.MarkPaymentFailed(reason)
	})
}

func (s *Service) MarkReserved(ctx context.Context, orderID string) (*ports.Result, error) {
	return s.execute(ctx, orderID, func(o *domain.Order) ([]domain.Event, error) {
		return o.MarkReserved()
	})
}

func (s *Service) MarkReservationFailed(ctx context.Context, orderID, reason string) (*ports.Result, error) {
	return s.execute(ctx, orderID, func(o *domain.Order) ([]domain.Event, error) {
		return o.MarkReservationFailed(reason)
	})
}

func (s *Service) ConfirmFulfillment(ctx context.Context, orderID string) (*ports.Result, error) {
	return s.execute(ctx, orderID, func(o *domain.Order) ([]domain.Event, error) {
		return o.MarkFulfilled()
	})
}

// Cancel terminates the order. Cancelling an already cancelled order is an
// idempotent no-op so compensation can be retried after a crash.
func (s *Service) Cancel(ctx context.Context, orderID, reason string) (*ports.Result, error) {
	return s.execute(ctx, orderID, func(o *domain.Order) ([]domain.Event, error) {
		if o.Status == domain.StatusCancelled {
			return nil, nil
		}
		return o.Cancel(reason)
	})
}

// GetByID folds the full stream into the current order state.
func (s *Service) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	stream, err := s.store.Load(ctx, orderID)
	if errors.Is(err, eventstore.ErrStreamNotFound) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.fold(stream)
}

// execute runs one decide-append cycle with a single conflict retry.
func (s *Service) execute(ctx context.Context, orderID string, decide func(*domain.Order) ([]domain.Event, error)) (*ports.Result, error) {
	for attempt := 0; ; attempt++ {
		order, err := s.GetByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		events, err := decide(order)
		if err != nil {
			return nil, mapError(err)
		}
		if len(events) == 0 {
			return &ports.Result{Order: order}, nil
		}
		if _, err := s.store.Append(ctx, orderID, order.Version, toStoreEvents(events)); err != nil {
			if errors.Is(err, eventstore.ErrConcurrencyConflict) && attempt == 0 {
				continue
			}
			return nil, err
		}
		updated, err := s.GetByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		s.project(ctx, updated)
		return &ports.Result{Order: updated, Events: events}, nil
	}
}

func (s *Service) fold(stream []eventstore.Envelope) (*domain.Order, error) {
	events := make([]domain.Event, 0, len(stream))
	for _, envelope := range stream {
		event, err := domain.UnmarshalEvent(envelope.Name, envelope.Payload)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return domain.Replay(events), nil
}

func (s *Service) project(ctx context.Context, order *domain.Order) {
	if s.projection == nil {
		return
	}
	if err := s.projection.Upsert(ctx, order); err != nil {
		s.logger.Warn("order projection update failed",
			slog.String("orderId", order.ID),
			slog.String("error", err.Error()))
	}
}

func toStoreEvents(events []domain.Event) []eventstore.Event {
	out := make([]eventstore.Event, 0, len(events))
	for _, event := range events {
		out = append(out, event)
	}
	return out
}
