package adapter

import (
	"context"
	"time"
)

// BillingSubscription is the provider-side view of a recurring subscription.
type BillingSubscription struct {
	ID         string
	PlanID     string
	Status     string // provider status, e.g. ACTIVE / CANCELLED / SUSPENDED
	Subscriber string // payer email when the provider returns one
	StartTime  time.Time
}

// BillingGateway is the port for the payment provider. The service never
// initiates charges; it only verifies and cancels subscriptions the user
// created in the provider's checkout.
type BillingGateway interface {
	Name() string
	GetSubscription(ctx context.Context, subscriptionID string) (*BillingSubscription, error)
	CancelSubscription(ctx context.Context, subscriptionID, reason string) error
}
