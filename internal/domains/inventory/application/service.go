package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Apurer/go-order-fulfillment/internal/domains/inventory/domain"
	"github.com/Apurer/go-order-fulfillment/internal/domains/inventory/ports"
)

var _ ports.Service = (*Service)(nil)

// Service is the reservation ledger. Holds are serialized per SKU so the
// capacity check (committed + live holds + requested ≤ stock) cannot race
// with a concurrent hold on the same SKU.
type Service struct {
	repo   ports.Repository
	logger *slog.Logger
	clock  func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
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

// NewService wires the ledger with its repository.
func NewService(repo ports.Repository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		logger: slog.Default(),
		clock:  time.Now,
		locks:  map[string]*sync.Mutex{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Hold reserves qty units of the SKU for the order. The (order, SKU) pair is
// the idempotency key: redelivering the command returns the live hold without
// consuming more stock. Expired capacity counts as free even before the sweep
// records the transition.
func (s *Service) Hold(ctx context.Context, orderID, sku string, qty int32, ttl time.Duration) (*domain.Reservation, error) {
	lock := s.skuLock(sku)
	lock.Lock()
	defer lock.Unlock()

	now := s.clock()
	existing, err := s.repo.Get(ctx, orderID, sku)
	if err != nil && !errors.Is(err, domain.ErrReservationNotFound) {
		return nil, err
	}
	if existing != nil && existing.CountsAgainstStock(now) {
		return existing, nil
	}

	reservation, err := domain.NewHold(orderID, sku, qty, ttl, now)
	if err != nil {
		return nil, err
	}
	stock, err := s.repo.StockLevel(ctx, sku)
	if err != nil {
		return nil, err
	}
	reserved, err := s.repo.ReservedQty(ctx, sku, now)
	if err != nil {
		return nil, err
	}
	if reserved+qty > stock {
		return nil, domain.ErrInsufficientStock
	}
	if err := s.repo.Save(ctx, reservation); err != nil {
		return nil, err
	}
	s.logger.Debug("stock held",
		slog.String("orderId", orderID),
		slog.String("sku", sku),
		slog.Int("qty", int(qty)))
	return reservation, nil
}

// Commit firms up the hold for one SKU of the order.
func (s *Service) Commit(ctx context.Context, orderID, sku string) (*domain.Reservation, error) {
	reservation, err := s.repo.Get(ctx, orderID, sku)
	if err != nil {
		return nil, err
	}
	if reservation.State == domain.StateCommitted {
		return reservation, nil
	}
	if err := reservation.Commit(s.clock()); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, reservation); err != nil {
		return nil, err
	}
	return reservation, nil
}

// CommitOrder commits every hold the order placed. Any lapsed hold fails the
// whole commit with domain.ErrReservationExpired; an order with no
// reservations at all reports domain.ErrReservationNotFound.
func (s *Service) CommitOrder(ctx context.Context, orderID string) ([]*domain.Reservation, error) {
	reservations, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(reservations) == 0 {
		return nil, domain.ErrReservationNotFound
	}
	now := s.clock()
	for _, reservation := range reservations {
		if reservation.State == domain.StateCommitted {
			continue
		}
		if err := reservation.Commit(now); err != nil {
			return nil, err
		}
	}
	for _, reservation := range reservations {
		if err := s.repo.Save(ctx, reservation); err != nil {
			return nil, err
		}
	}
	return reservations, nil
}

// Release frees the hold for one SKU. Releasing a reservation that is already
// released or expired reports changed=false and no error, so compensation can
// be replayed safely.
func (s *Service) Release(ctx context.Context, orderID, sku string) (*domain.Reservation, bool, error) {
	reservation, err := s.repo.Get(ctx, orderID, sku)
	if err != nil {
		return nil, false, err
	}
	if !reservation.Release() {
		return reservation, false, nil
	}
	if err := s.repo.Save(ctx, reservation); err != nil {
		return nil, false, err
	}
	return reservation, true, nil
}

// ReleaseOrder frees every reservation the order placed and returns the ones
// whose state actually changed. An order with no reservations releases
// nothing and is not an error.
func (s *Service) ReleaseOrder(ctx context.Context, orderID string) ([]*domain.Reservation, error) {
	reservations, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	released := make([]*domain.Reservation, 0, len(reservations))
	for _, reservation := range reservations {
		if !reservation.Release() {
			continue
		}
		if err := s.repo.Save(ctx, reservation); err != nil {
			return nil, err
		}
		released = append(released, reservation)
	}
	return released, nil
}

// SweepExpired records the Expired transition for every lapsed hold and
// returns them so the caller can announce the expiries.
func (s *Service) SweepExpired(ctx context.Context) ([]*domain.Reservation, error) {
	now := s.clock()
	lapsed, err := s.repo.ListLapsed(ctx, now)
	if err != nil {
		return nil, err
	}
	expired := make([]*domain.Reservation, 0, len(lapsed))
	for _, reservation := range lapsed {
		if !reservation.Expire(now) {
			continue
		}
		if err := s.repo.Save(ctx, reservation); err != nil {
			return nil, err
		}
		s.logger.Info("reservation expired",
			slog.String("orderId", reservation.OrderID),
			slog.String("sku", reservation.SKU))
		expired = append(expired, reservation)
	}
	return expired, nil
}

// Available reports the uncommitted, unheld capacity for the SKU.
func (s *Service) Available(ctx context.Context, sku string) (int32, error) {
	stock, err := s.repo.StockLevel(ctx, sku)
	if err != nil {
		return 0, err
	}
	reserved, err := s.repo.ReservedQty(ctx, sku, s.clock())
	if err != nil {
		return 0, err
	}
	return stock - reserved, nil
}

// SetStockLevel sets the total stock for a SKU.
func (s *Service) SetStockLevel(ctx context.Context, sku string, qty int32) error {
	return s.repo.SetStockLevel(ctx, sku, qty)
}

func (s *Service) skuLock(sku string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[sku]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sku] = lock
	}
	return lock
}
