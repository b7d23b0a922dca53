package payment

import (
	"context"
	"sync"

	"ai-course-studio/internal/domain"
	"ai-course-studio/internal/domain/ports/adapter"
)

var _ adapter.BillingGateway = (*NoopBillingGateway)(nil)

// NoopBillingGateway is an in-memory gateway for tests and local runs.
type NoopBillingGateway struct {
	mu   sync.Mutex
	subs map[string]adapter.BillingSubscription
}

func NewNoopBillingGateway() *NoopBillingGateway {
	return &NoopBillingGateway{subs: make(map[string]adapter.BillingSubscription)}
}

func (g *NoopBillingGateway) Name() string { return "noop" }

// Put registers or replaces a subscription.
func (g *NoopBillingGateway) Put(sub adapter.BillingSubscription) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subs[sub.ID] = sub
}

func (g *NoopBillingGateway) GetSubscription(ctx context.Context, subscriptionID string) (*adapter.BillingSubscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sub, ok := g.subs[subscriptionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &sub, nil
}

func (g *NoopBillingGateway) CancelSubscription(ctx context.Context, subscriptionID, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	sub, ok := g.subs[subscriptionID]
	if !ok {
		return domain.ErrNotFound
	}
	sub.Status = "CANCELLED"
	g.subs[subscriptionID] = sub
	return nil
}
