package gateway

import (
	"context"

	"github.com/Apurer/go-order-fulfillment/internal/clients/http/processor"
	"github.com/Apurer/go-order-fulfillment/internal/domains/payments/ports"
)

var _ ports.Gateway = (*Remote)(nil)

// Remote adapts the processor HTTP client to the gateway port.
type Remote struct {
	client *processor.Client
}

// NewRemote wraps the processor client.
func NewRemote(client *processor.Client) *Remote {
	return &Remote{client: client}
}

func (g *Remote) Authorize(ctx context.Context, orderID string, amountCents int64) (ports.Decision, error) {
	approved, reason, err := g.client.Authorize(ctx, orderID, amountCents)
	if err != nil {
		return ports.Decision{}, err
	}
	return ports.Decision{Approved: approved, Reason: reason}, nil
}

func (g *Remote) Capture(ctx context.Context, orderID string, amountCents int64) error {
	return g.client.Capture(ctx, orderID, amountCents)
}

func (g *Remote) Void(ctx context.Context, orderID string) error {
	return g.client.Void(ctx, orderID)
}

func (g *Remote) Refund(ctx context.Context, orderID string, amountCents int64) error {
	return g.client.Refund(ctx, orderID, amountCents)
}
