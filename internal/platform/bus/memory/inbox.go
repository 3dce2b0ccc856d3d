package memory

import (
	"context"
	"sync"

	"github.com/Apurer/go-order-fulfillment/internal/platform/bus"
)

var _ bus.Inbox = (*Inbox)(nil)

// Inbox keeps processed message identities in memory. Suitable for tests and
// single-process deployments without durable infrastructure.
type Inbox struct {
	mu        sync.Mutex
	processed map[string]struct{}
}

func NewInbox() *Inbox {
	return &Inbox{processed: map[string]struct{}{}}
}

func (i *Inbox) Processed(_ context.Context, handler, messageID string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.processed[handler+"/"+messageID]
	return ok, nil
}

func (i *Inbox) MarkProcessed(_ context.Context, handler, messageID string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	key := handler + "/" + messageID
	if _, ok := i.processed[key]; ok {
		return false, nil
	}
	i.processed[key] = struct{}{}
	return true, nil
}
