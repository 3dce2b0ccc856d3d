// Package redis provides a Redis-backed inbox so multiple replicas share one
// deduplication record set.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Apurer/go-order-fulfillment/internal/platform/bus"
)

var _ bus.Inbox = (*Inbox)(nil)

// DefaultRetention bounds how long processed identities are kept. Redeliveries
// arriving later than this are treated as new messages, which matches the
// transport's redelivery window in practice.
const DefaultRetention = 24 * time.Hour

// Inbox deduplicates messages via SETNX with expiry.
type Inbox struct {
	client    redis.UniversalClient
	retention time.Duration
	keyPrefix string
}

// InboxOption configures the inbox.
type InboxOption func(*Inbox)

// WithRetention overrides how long processed markers live.
func WithRetention(d time.Duration) InboxOption {
	return func(i *Inbox) {
		if d > 0 {
			i.retention = d
		}
	}
}

// WithKeyPrefix namespaces the inbox keys.
func WithKeyPrefix(prefix string) InboxOption {
	return func(i *Inbox) {
		if prefix != "" {
			i.keyPrefix = prefix
		}
	}
}

// NewInbox wires the Redis client. Caller manages client lifecycle.
func NewInbox(client redis.UniversalClient, opts ...InboxOption) *Inbox {
	inbox := &Inbox{
		client:    client,
		retention: DefaultRetention,
		keyPrefix: "inbox",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(inbox)
		}
	}
	return inbox
}

func (i *Inbox) Processed(ctx context.Context, handler, messageID string) (bool, error) {
	seen, err := i.client.Exists(ctx, i.key(handler, messageID)).Result()
	if err != nil {
		return false, bus.Transient(fmt.Errorf("redis inbox exists: %w", err))
	}
	return seen > 0, nil
}

func (i *Inbox) MarkProcessed(ctx context.Context, handler, messageID string) (bool, error) {
	first, err := i.client.SetNX(ctx, i.key(handler, messageID), 1, i.retention).Result()
	if err != nil {
		return false, bus.Transient(fmt.Errorf("redis inbox setnx: %w", err))
	}
	return first, nil
}

func (i *Inbox) key(handler, messageID string) string {
	return fmt.Sprintf("%s:%s:%s", i.keyPrefix, handler, messageID)
}
