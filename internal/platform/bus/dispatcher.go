package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DeadLetterFunc receives messages whose handler failed permanently. The
// message is dropped afterwards; state mutated before the failure stays as-is.
type DeadLetterFunc func(msg Message, handler string, err error)

type subscription struct {
	name    string
	handler Handler
}

// Dispatcher is the in-process message router. Handlers subscribe by message
// name; dispatching a message fans it out to every subscriber, deduplicated
// through the Inbox, and recursively dispatches whatever the handlers return.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[string][]subscription

	inbox       Inbox
	logger      *slog.Logger
	deadLetter  DeadLetterFunc
	mirror      Publisher
	maxRetries  uint64
	retryBase   time.Duration
}

// DispatcherOption configures the dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithDeadLetter installs a hook for permanently failed messages.
func WithDeadLetter(fn DeadLetterFunc) DispatcherOption {
	return func(d *Dispatcher) {
		d.deadLetter = fn
	}
}

// WithMirror forwards every successfully dispatched message to an external
// publisher, e.g. the Kafka adapter.
func WithMirror(p Publisher) DispatcherOption {
	return func(d *Dispatcher) {
		d.mirror = p
	}
}

// WithRetryPolicy bounds the transient-failure retry loop.
func WithRetryPolicy(maxRetries uint64, base time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.maxRetries = maxRetries
		if base > 0 {
			d.retryBase = base
		}
	}
}

// NewDispatcher builds a dispatcher around the given inbox.
func NewDispatcher(inbox Inbox, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		subscribers: map[string][]subscription{},
		inbox:       inbox,
		logger:      slog.Default(),
		maxRetries:  4,
		retryBase:   100 * time.Millisecond,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Subscribe registers a named handler for one or more message names. The
// handler name keys inbox deduplication and must stay stable across restarts.
func (d *Dispatcher) Subscribe(handlerName string, handler Handler, names ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, name := range names {
		d.subscribers[name] = append(d.subscribers[name], subscription{name: handlerName, handler: handler})
	}
}

// Publish dispatches the messages and drains everything the handlers produce.
func (d *Dispatcher) Publish(ctx context.Context, msgs ...Message) error {
	queue := append([]Message(nil), msgs...)
	for len(queue) > 0 {
		msg := queue[0]
		queue = queue[1:]
		produced, err := d.dispatch(ctx, msg)
		if err != nil {
			return err
		}
		queue = append(queue, produced...)
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, msg Message) ([]Message, error) {
	d.mu.RLock()
	subs := append([]subscription(nil), d.subscribers[msg.Name]...)
	d.mu.RUnlock()

	var produced []Message
	for _, sub := range subs {
		seen, err := d.inbox.Processed(ctx, sub.name, msg.ID)
		if err != nil {
			return nil, fmt.Errorf("inbox check %s/%s: %w", sub.name, msg.ID, err)
		}
		if seen {
			d.logger.Debug("duplicate message skipped",
				slog.String("handler", sub.name),
				slog.String("message", msg.Name),
				slog.String("messageId", msg.ID))
			continue
		}
		out, invokeErr := d.invoke(ctx, sub, msg)
		if invokeErr != nil {
			d.logger.Error("message dead-lettered",
				slog.String("handler", sub.name),
				slog.String("message", msg.Name),
				slog.String("orderId", msg.OrderID),
				slog.String("error", invokeErr.Error()))
			if d.deadLetter != nil {
				d.deadLetter(msg, sub.name, invokeErr)
			}
		}
		// The mark lands only after the handler finished (or the message was
		// dead-lettered). If the mark itself fails, the error aborts the
		// publish and redelivery re-runs the handler rather than losing the
		// message.
		if _, err := d.inbox.MarkProcessed(ctx, sub.name, msg.ID); err != nil {
			return nil, fmt.Errorf("inbox mark %s/%s: %w", sub.name, msg.ID, err)
		}
		if invokeErr != nil {
			continue
		}
		produced = append(produced, out...)
	}
	if d.mirror != nil {
		if err := d.mirror.Publish(ctx, msg); err != nil {
			d.logger.Warn("mirror publish failed",
				slog.String("message", msg.Name),
				slog.String("error", err.Error()))
		}
	}
	return produced, nil
}

// invoke runs one handler, retrying transient failures with exponential
// backoff. Permanent failures surface immediately.
func (d *Dispatcher) invoke(ctx context.Context, sub subscription, msg Message) ([]Message, error) {
	var out []Message
	operation := func() error {
		produced, err := sub.handler(ctx, msg)
		if err != nil {
			if IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		out = produced
		return nil
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.retryBase
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, d.maxRetries), ctx))
	if err != nil {
		return nil, err
	}
	return out, nil
}
