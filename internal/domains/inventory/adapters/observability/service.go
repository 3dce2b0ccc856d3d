package observability

import (
	"context"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	invdomain "github.com/Apurer/go-order-fulfillment/internal/domains/inventory/domain"
	invports "github.com/Apurer/go-order-fulfillment/internal/domains/inventory/ports"
)

const tracerName = "github.com/Apurer/go-order-fulfillment/internal/domains/inventory/adapters/observability/service"

// Service decorates the reservation ledger with tracing, logging, and metrics.
type Service struct {
	inner   invports.Service
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics serviceMetrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithTracer(tr trace.Tracer) Option {
	return func(s *Service) { s.tracer = tr }
}

func WithMeter(m metric.Meter) Option {
	return func(s *Service) { s.metrics = newServiceMetrics(m) }
}

// New wraps the core ledger service.
func New(inner invports.Service, opts ...Option) invports.Service {
	s := &Service{
		inner:   inner,
		tracer:  nooptrace.NewTracerProvider().Tracer(tracerName),
		logger:  defaultLogger(),
		metrics: newServiceMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.tracer == nil {
		s.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	if s.logger == nil {
		s.logger = defaultLogger()
	}
	return s
}

func (s *Service) Hold(ctx context.Context, orderID, sku string, qty int32, ttl time.Duration) (*invdomain.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "InventoryService.Hold", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("inventory.sku", sku),
		attribute.Int("inventory.qty", int(qty))))
	defer span.End()
	reservation, err := s.inner.Hold(ctx, orderID, sku, qty, ttl)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "hold failed",
			slog.String("orderId", orderID), slog.String("sku", sku))
	}
	s.metrics.recordHeld(ctx)
	return reservation, nil
}

func (s *Service) Commit(ctx context.Context, orderID, sku string) (*invdomain.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "InventoryService.Commit", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("inventory.sku", sku)))
	defer span.End()
	reservation, err := s.inner.Commit(ctx, orderID, sku)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "commit failed",
			slog.String("orderId", orderID), slog.String("sku", sku))
	}
	s.metrics.recordCommitted(ctx)
	return reservation, nil
}

func (s *Service) CommitOrder(ctx context.Context, orderID string) ([]*invdomain.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "InventoryService.CommitOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()
	reservations, err := s.inner.CommitOrder(ctx, orderID)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "order commit failed", slog.String("orderId", orderID))
	}
	s.metrics.recordCommitted(ctx)
	return reservations, nil
}

func (s *Service) Release(ctx context.Context, orderID, sku string) (*invdomain.Reservation, bool, error) {
	ctx, span := s.tracer.Start(ctx, "InventoryService.Release", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("inventory.sku", sku)))
	defer span.End()
	reservation, changed, err := s.inner.Release(ctx, orderID, sku)
	if err != nil {
		return nil, false, s.handleError(ctx, span, err, "release failed",
			slog.String("orderId", orderID), slog.String("sku", sku))
	}
	if changed {
		s.metrics.recordReleased(ctx)
	}
	return reservation, changed, nil
}

func (s *Service) ReleaseOrder(ctx context.Context, orderID string) ([]*invdomain.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "InventoryService.ReleaseOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()
	released, err := s.inner.ReleaseOrder(ctx, orderID)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "order release failed", slog.String("orderId", orderID))
	}
	if len(released) > 0 {
		s.metrics.recordReleased(ctx)
	}
	return released, nil
}

func (s *Service) SweepExpired(ctx context.Context) ([]*invdomain.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "InventoryService.SweepExpired")
	defer span.End()
	expired, err := s.inner.SweepExpired(ctx)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "sweep failed")
	}
	if len(expired) > 0 {
		s.metrics.recordExpired(ctx, len(expired))
		s.logInfo(ctx, "reservations expired", slog.Int("count", len(expired)))
	}
	return expired, nil
}

func (s *Service) Available(ctx context.Context, sku string) (int32, error) {
	ctx, span := s.tracer.Start(ctx, "InventoryService.Available", trace.WithAttributes(attribute.String("inventory.sku", sku)))
	defer span.End()
	return s.inner.Available(ctx, sku)
}

func (s *Service) SetStockLevel(ctx context.Context, sku string, qty int32) error {
	ctx, span := s.tracer.Start(ctx, "InventoryService.SetStockLevel", trace.WithAttributes(
		attribute.String("inventory.sku", sku),
		attribute.Int("inventory.qty", int(qty))))
	defer span.End()
	if err := s.inner.SetStockLevel(ctx, sku, qty); err != nil {
		return s.handleError(ctx, span, err, "set stock failed", slog.String("sku", sku))
	}
	return nil
}

func (s *Service) handleError(ctx context.Context, span trace.Span, err error, msg string, attrs ...slog.Attr) error {
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.logError(ctx, msg, err, attrs...)
	return err
}

func (s *Service) logInfo(ctx context.Context, msg string, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

func (s *Service) logError(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	s.logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

type serviceMetrics struct {
	held      metric.Int64Counter
	committed metric.Int64Counter
	released  metric.Int64Counter
	expired   metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	held, _ := m.Int64Counter("inventory.service.held", metric.WithDescription("Number of stock holds placed"))
	committed, _ := m.Int64Counter("inventory.service.committed", metric.WithDescription("Number of reservation commits"))
	released, _ := m.Int64Counter("inventory.service.released", metric.WithDescription("Number of reservation releases"))
	expired, _ := m.Int64Counter("inventory.service.expired", metric.WithDescription("Number of holds expired by the sweep"))
	return serviceMetrics{held: held, committed: committed, released: released, expired: expired}
}

func (m serviceMetrics) recordHeld(ctx context.Context) {
	if m.held != nil {
		m.held.Add(ctx, 1)
	}
}

func (m serviceMetrics) recordCommitted(ctx context.Context) {
	if m.committed != nil {
		m.committed.Add(ctx, 1)
	}
}

func (m serviceMetrics) recordReleased(ctx context.Context) {
	if m.released != nil {
		m.released.Add(ctx, 1)
	}
}

func (m serviceMetrics) recordExpired(ctx context.Context, n int) {
	if m.expired != nil {
		m.expired.Add(ctx, int64(n))
	}
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var _ invports.Service = (*Service)(nil)
