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

	paydomain "github.com/Apurer/go-order-fulfillment/internal/domains/payments/domain"
	payports "github.com/Apurer/go-order-fulfillment/internal/domains/payments/ports"
)

const tracerName = "github.com/Apurer/go-order-fulfillment/internal/domains/payments/adapters/observability/service"

// Service decorates the payment service with tracing, logging, and metrics.
type Service struct {
	inner   payports.Service
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

// New wraps the core payment service.
func New(inner payports.Service, opts ...Option) payports.Service {
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

func (s *Service) Authorize(ctx context.Context, orderID string, amountCents int64) (*paydomain.Authorization, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentService.Authorize", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.Int64("payment.amount_cents", amountCents)))
	defer span.End()
	authorization, err := s.inner.Authorize(ctx, orderID, amountCents)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "authorization failed", slog.String("orderId", orderID))
	}
	if authorization.State == paydomain.StateDenied {
		s.metrics.recordDenied(ctx)
	} else {
		s.metrics.recordAuthorized(ctx)
	}
	return authorization, nil
}

func (s *Service) Capture(ctx context.Context, orderID string, amountCents int64) (*paydomain.Authorization, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentService.Capture", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.Int64("payment.amount_cents", amountCents)))
	defer span.End()
	authorization, err := s.inner.Capture(ctx, orderID, amountCents)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "capture failed", slog.String("orderId", orderID))
	}
	s.metrics.recordCaptured(ctx)
	return authorization, nil
}

func (s *Service) Void(ctx context.Context, orderID string) (*paydomain.Authorization, bool, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentService.Void", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()
	authorization, changed, err := s.inner.Void(ctx, orderID)
	if err != nil {
		return nil, false, s.handleError(ctx, span, err, "void failed", slog.String("orderId", orderID))
	}
	if changed {
		s.metrics.recordVoided(ctx)
	}
	return authorization, changed, nil
}

func (s *Service) Refund(ctx context.Context, orderID string, amountCents int64) (*paydomain.Authorization, bool, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentService.Refund", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()
	authorization, changed, err := s.inner.Refund(ctx, orderID, amountCents)
	if err != nil {
		return nil, false, s.handleError(ctx, span, err, "refund failed", slog.String("orderId", orderID))
	}
	if changed {
		s.metrics.recordRefunded(ctx)
	}
	return authorization, changed, nil
}

func (s *Service) GetByOrder(ctx context.Context, orderID string) (*paydomain.Authorization, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentService.GetByOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()
	return s.inner.GetByOrder(ctx, orderID)
}

func (s *Service) handleError(ctx context.Context, span trace.Span, err error, msg string, attrs ...slog.Attr) error {
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.logError(ctx, msg, err, attrs...)
	return err
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
	authorized metric.Int64Counter
	denied     metric.Int64Counter
	captured   metric.Int64Counter
	voided     metric.Int64Counter
	refunded   metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	authorized, _ := m.Int64Counter("payments.service.authorized", metric.WithDescription("Number of approved authorizations"))
	denied, _ := m.Int64Counter("payments.service.denied", metric.WithDescription("Number of declined authorizations"))
	captured, _ := m.Int64Counter("payments.service.captured", metric.WithDescription("Number of captures"))
	voided, _ := m.Int64Counter("payments.service.voided", metric.WithDescription("Number of voided authorizations"))
	refunded, _ := m.Int64Counter("payments.service.refunded", metric.WithDescription("Number of refunds"))
	return serviceMetrics{authorized: authorized, denied: denied, captured: captured, voided: voided, refunded: refunded}
}

func (m serviceMetrics) recordAuthorized(ctx context.Context) {
	if m.authorized != nil {
		m.authorized.Add(ctx, 1)
	}
}

func (m serviceMetrics) recordDenied(ctx context.Context) {
	if m.denied != nil {
		m.denied.Add(ctx, 1)
	}
}

func (m serviceMetrics) recordCaptured(ctx context.Context) {
	if m.captured != nil {
		m.captured.Add(ctx, 1)
	}
}

func (m serviceMetrics) recordVoided(ctx context.Context) {
	if m.voided != nil {
		m.voided.Add(ctx, 1)
	}
}

func (m serviceMetrics) recordRefunded(ctx context.Context) {
	if m.refunded != nil {
		m.refunded.Add(ctx, 1)
	}
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var _ payports.Service = (*Service)(nil)
