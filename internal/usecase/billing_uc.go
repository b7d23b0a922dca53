package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"ai-course-studio/internal/domain"
	"ai-course-studio/internal/domain/model"
	"ai-course-studio/internal/domain/ports/adapter"
	"ai-course-studio/internal/domain/ports/repository"
	"ai-course-studio/internal/infra/logging"
	"ai-course-studio/internal/infra/metrics"
)

// Compile-time check
var _ BillingUseCase = (*billingUC)(nil)

const (
	statusActive = "ACTIVE"
	cancelReason = "Customer requested cancellation"
)

// BillingUseCase turns provider-side subscription state into tier changes.
type BillingUseCase interface {
	// Confirm verifies a subscription the user approved at the provider and
	// moves the user to the tier its plan maps to.
	Confirm(ctx context.Context, userID, subscriptionID string) (*model.SubscriptionRecord, error)
	// Cancel cancels the user's provider subscription and drops them to the
	// free tier. Counters of the current period are kept.
	Cancel(ctx context.Context, userID string) (*model.SubscriptionRecord, error)
}

type billingUC struct {
	ent       EntitlementUseCase
	subs      repository.SubscriptionRepository
	gateway   adapter.BillingGateway
	planTiers map[string]model.Tier
	log       *zerolog.Logger
}

// NewBillingUseCase takes the plan id to tier table of the provider.
func NewBillingUseCase(ent EntitlementUseCase, subs repository.SubscriptionRepository, gw adapter.BillingGateway, planTiers map[string]model.Tier, logger *zerolog.Logger) *billingUC {
	l := logger.With().Str("component", "BillingUC").Logger()
	return &billingUC{ent: ent, subs: subs, gateway: gw, planTiers: planTiers, log: &l}
}

func (b *billingUC) Confirm(ctx context.Context, userID, subscriptionID string) (*model.SubscriptionRecord, error) {
	defer logging.TraceDuration(b.log, "BillingUC.Confirm")()

	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrNotAuthenticated
	}
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return nil, domain.ErrInvalidArgument
	}
	log := logging.With(ctx, b.log).With().Str("subscription_id", subscriptionID).Logger()

	sub, err := b.gateway.GetSubscription(ctx, subscriptionID)
	if err != nil {
		metrics.IncBillingEvent(b.gateway.Name(), "confirm", "error")
		log.Warn().Err(err).Msg("billing subscription lookup failed")
		return nil, err
	}
	if !strings.EqualFold(sub.Status, statusActive) {
		metrics.IncBillingEvent(b.gateway.Name(), "confirm", "inactive")
		log.Info().Str("status", sub.Status).Msg("billing subscription not active")
		return nil, domain.ErrSubscriptionNotActive
	}
	tier, ok := b.planTiers[sub.PlanID]
	if !ok {
		metrics.IncBillingEvent(b.gateway.Name(), "confirm", "unknown_plan")
		log.Error().Str("plan_id", sub.PlanID).Msg("billing plan has no tier mapping")
		return nil, domain.ErrUnknownPlan
	}

	rec, err := b.ent.ApplyTierChange(ctx, userID, tier, sub.ID)
	if errors.Is(err, domain.ErrAlreadyExists) {
		metrics.IncBillingEvent(b.gateway.Name(), "confirm", "in_use")
		log.Warn().Msg("billing subscription already bound to another account")
		return nil, domain.ErrSubscriptionInUse
	}
	if err != nil {
		metrics.IncBillingEvent(b.gateway.Name(), "confirm", "error")
		return nil, err
	}
	metrics.IncBillingEvent(b.gateway.Name(), "confirm", "ok")
	log.Info().Str("tier", string(tier)).Msg("billing subscription confirmed")
	return rec, nil
}

func (b *billingUC) Cancel(ctx context.Context, userID string) (*model.SubscriptionRecord, error) {
	defer logging.TraceDuration(b.log, "BillingUC.Cancel")()

	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrNotAuthenticated
	}
	rec, err := b.subs.FindActiveByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	log := logging.With(ctx, b.log)

	if rec.ProviderSubscriptionID != "" {
		err := b.gateway.CancelSubscription(ctx, rec.ProviderSubscriptionID, cancelReason)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrNotFound):
			// Already gone at the provider; finish the downgrade locally.
			log.Warn().Str("subscription_id", rec.ProviderSubscriptionID).Msg("billing subscription not found at provider")
		default:
			metrics.IncBillingEvent(b.gateway.Name(), "cancel", "error")
			return nil, err
		}
	} else if rec.Tier == model.TierFree {
		return rec, nil
	}

	out, err := b.ent.ApplyTierChange(ctx, userID, model.TierFree, "")
	if err != nil {
		metrics.IncBillingEvent(b.gateway.Name(), "cancel", "error")
		return nil, err
	}
	metrics.IncBillingEvent(b.gateway.Name(), "cancel", "ok")
	log.Info().Str("previous_tier", string(rec.Tier)).Msg("billing subscription cancelled")
	return out, nil
}
