// Package gateway provides processor adapters: a deterministic in-process
// gateway for local runs and tests, and a remote adapter over the processor
// HTTP client.
package gateway

import (
	"context"

	"github.com/Apurer/go-order-fulfillment/internal/domains/payments/ports"
)

var _ ports.Gateway = (*Static)(nil)

// DefaultDeclineOverCents is the decline threshold for the static gateway.
const DefaultDeclineOverCents int64 = 100_000

// Static approves every authorization up to a fixed limit and declines the
// rest with InsufficientFunds. Deterministic, so tests can pick the outcome
// by choosing the order total.
type Static struct {
	declineOver int64
}

// StaticOption configures the static gateway.
type StaticOption func(*Static)

// WithDeclineOver sets the amount above which authorizations decline.
func WithDeclineOver(cents int64) StaticOption {
	return func(g *Static) {
		if cents > 0 {
			g.declineOver = cents
		}
	}
}

// NewStatic creates the deterministic gateway.
func NewStatic(opts ...StaticOption) *Static {
	g := &Static{declineOver: DefaultDeclineOverCents}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

func (g *Static) Authorize(_ context.Context, _ string, amountCents int64) (ports.Decision, error) {
	if amountCents > g.declineOver {
		return ports.Decision{Approved: false, Reason: "InsufficientFunds"}, nil
	}
	return ports.Decision{Approved: true}, nil
}

func (g *Static) Capture(context.Context, string, int64) error { return nil }

func (g *Static) Void(context.Context, string) error { return nil }

func (g *Static) Refund(context.Context, string, int64) error { return nil }
