package repository

import (
	"context"
	"time"

	"ai-course-studio/internal/domain/model"
)

// SubscriptionRepository is the port for per-user subscription records.
type SubscriptionRepository interface {
	// FindActiveByUser returns the user's active record or domain.ErrNotFound.
	FindActiveByUser(ctx context.Context, tx Tx, userID string) (*model.SubscriptionRecord, error)

	// CreateIfAbsent inserts rec unless the user already has an active record.
	// It reports whether rec was inserted; concurrent callers for one user
	// see exactly one insert win.
	CreateIfAbsent(ctx context.Context, tx Tx, rec *model.SubscriptionRecord) (bool, error)

	// IncrementUsage adds usage to the user's active record in a single
	// conditional statement. The update applies only if the record still has
	// the given tier and every touched counter stays within limits. It
	// returns the updated record, domain.ErrQuotaExceeded when the condition
	// fails, or domain.ErrNotFound when the user has no active record.
	IncrementUsage(ctx context.Context, tx Tx, userID string, tier model.Tier, usage model.Usage, limits model.TierLimits) (*model.SubscriptionRecord, error)

	// ResetPeriod zeroes the counters and sets period_start=now, only if the
	// stored period_start still equals from. It reports whether this call
	// performed the reset.
	ResetPeriod(ctx context.Context, tx Tx, userID string, from, now time.Time) (*model.SubscriptionRecord, bool, error)

	// UpdateTier moves the user's active record to tier and records the
	// billing provider's subscription id. Counters are untouched.
	UpdateTier(ctx context.Context, tx Tx, userID string, tier model.Tier, providerSubscriptionID string) (*model.SubscriptionRecord, error)

	// ListDueForReset returns up to limit user ids whose period started at or
	// before the given cutoff.
	ListDueForReset(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]string, error)

	// CountByTier returns active record counts keyed by tier.
	CountByTier(ctx context.Context, tx Tx) (map[model.Tier]int, error)
}
