package observability

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	orderdomain "github.com/Apurer/go-order-fulfillment/internal/domains/orders/domain"
	orderports "github.com/Apurer/go-order-fulfillment/internal/domains/orders/ports"
)

const tracerName = "github.com/Apurer/go-order-fulfillment/internal/domains/orders/adapters/observability/service"

// Service decorates the order service with tracing, logging, and metrics.
type Service struct {
	inner   orderports.Service
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

// New wraps the core order service.
func New(inner orderports.Service, opts ...Option) orderports.Service {
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

func (s *Service) PlaceOrder(ctx context.Context, orderID string, items []orderdomain.LineItem) (*orderports.Result, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.PlaceOrder", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.Int("order.items", len(items))))
	defer span.End()
	s.logInfo(ctx, "placing order", slog.String("orderId", orderID))
	result, err := s.inner.PlaceOrder(ctx, orderID, items)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to place order", slog.String("orderId", orderID))
	}
	s.metrics.recordPlaced(ctx)
	return result, nil
}

func (s *Service) MarkPaymentRequested(ctx context.Context, orderID string) (*orderports.Result, error) {
	return s.mark(ctx, "OrderService.MarkPaymentRequested", orderID, func(ctx context.Context) (*orderports.Result, error) {
		return s.inner.MarkPaymentRequested(ctx, orderID)
	})
}

func (s *Service) MarkPaymentAuthorized(ctx context.Context, orderID string) (*orderports.Result, error) {
	return s.mark(ctx, "OrderService.MarkPaymentAuthorized", orderID, func(ctx context.Context) (*orderports.Result, error) {
		return s.inner.MarkPaymentAuthorized(ctx, orderID)
	})
}

func (s *Service) MarkPaymentFailed(ctx context.Context, orderID, reason string) (*orderports.Result, error) {
	return s.mark(ctx, "OrderService.MarkPaymentFailed", orderID, func(ctx context.Context) (*orderports.Result, error) {
		return s.inner.MarkPaymentFailed(ctx, orderID, reason)
	})
}

func (s *Service) MarkReserved(ctx context.Context, orderID string) (*orderports.Result, error) {
	return s.mark(ctx, "OrderService.MarkReserved", orderID, func(ctx context.Context) (*orderports.Result, error) {
		return s.inner.MarkReserved(ctx, orderID)
	})
}

func (s *Service) MarkReservationFailed(ctx context.Context, orderID, reason string) (*orderports.Result, error) {
	return s.mark(ctx, "OrderService.MarkReservationFailed", orderID, func(ctx context.Context) (*orderports.Result, error) {
		return s.inner.MarkReservationFailed(ctx, orderID, reason)
	})
}

func (s *Service) ConfirmFulfillment(ctx context.Context, orderID string) (*orderports.Result, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ConfirmFulfillment", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()
	result, err := s.inner.ConfirmFulfillment(ctx, orderID)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to confirm fulfillment", slog.String("orderId", orderID))
	}
	s.metrics.recordFulfilled(ctx)
	s.logInfo(ctx, "order fulfilled", slog.String("orderId", orderID))
	return result, nil
}

func (s *Service) Cancel(ctx context.Context, orderID, reason string) (*orderports.Result, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.Cancel", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.cancel_reason", reason)))
	defer span.End()
	result, err := s.inner.Cancel(ctx, orderID, reason)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to cancel order", slog.String("orderId", orderID))
	}
	s.metrics.recordCancelled(ctx)
	s.logInfo(ctx, "order cancelled", slog.String("orderId", orderID), slog.String("reason", reason))
	return result, nil
}

func (s *Service) GetByID(ctx context.Context, orderID string) (*orderdomain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetByID", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()
	return s.inner.GetByID(ctx, orderID)
}

func (s *Service) mark(ctx context.Context, spanName, orderID string, call func(context.Context) (*orderports.Result, error)) (*orderports.Result, error) {
	ctx, span := s.tracer.Start(ctx, spanName, trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()
	result, err := call(ctx)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "order transition failed", slog.String("orderId", orderID))
	}
	return result, nil
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
	placed    metric.Int64Counter
	fulfilled metric.Int64Counter
	cancelled metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	placed, _ := m.Int64Counter("orders.service.placed", metric.WithDescription("Number of orders placed"))
	fulfilled, _ := m.Int64Counter("orders.service.fulfilled", metric.WithDescription("Number of orders fulfilled"))
	cancelled, _ := m.Int64Counter("orders.service.cancelled", metric.WithDescription("Number of orders cancelled"))
	return serviceMetrics{placed: placed, fulfilled: fulfilled, cancelled: cancelled}
}

func (m serviceMetrics) recordPlaced(ctx context.Context) {
	if m.placed != nil {
		m.placed.Add(ctx, 1)
	}
}

func (m serviceMetrics) recordFulfilled(ctx context.Context) {
	if m.fulfilled != nil {
		m.fulfilled.Add(ctx, 1)
	}
}

func (m serviceMetrics) recordCancelled(ctx context.Context) {
	if m.cancelled != nil {
		m.cancelled.Add(ctx, 1)
	}
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var _ orderports.Service = (*Service)(nil)
