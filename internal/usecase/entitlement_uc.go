package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ai-course-studio/internal/domain"
	"ai-course-studio/internal/domain/model"
	"ai-course-studio/internal/domain/ports/repository"
	"ai-course-studio/internal/infra/logging"
	"ai-course-studio/internal/infra/metrics"
)

// Compile-time check
var _ EntitlementUseCase = (*entitlementUC)(nil)

// maxConsumeAttempts bounds retries after a conditional write loses to a
// concurrent tier change or reset.
const maxConsumeAttempts = 3

// sweepLookback is the shortest calendar month. Records started later than
// now-sweepLookback cannot be due yet.
const sweepLookback = 28 * 24 * time.Hour

// EntitlementUseCase decides whether a user may consume a rationed resource
// and records consumption against the per-user subscription record.
type EntitlementUseCase interface {
	// CanConsume is an advisory check. It fails closed: a missing user,
	// missing record, or store error yields false.
	CanConsume(ctx context.Context, userID string, resource model.Resource, amount int64) bool
	// Check is CanConsume with the reason: nil, a *domain.QuotaError, or
	// the error that made the check fail closed.
	Check(ctx context.Context, userID string, resource model.Resource, amount int64) error

	// RecordConsumption atomically charges amount of one resource.
	RecordConsumption(ctx context.Context, userID string, resource model.Resource, amount int64) (*model.SubscriptionRecord, error)
	// Consume charges several resources at once, all or nothing, inside tx.
	Consume(ctx context.Context, tx repository.Tx, userID string, usage model.Usage) (*model.SubscriptionRecord, error)

	EnsureRecord(ctx context.Context, userID string) (*model.SubscriptionRecord, error)
	MaybeResetPeriod(ctx context.Context, rec *model.SubscriptionRecord) (*model.SubscriptionRecord, error)

	Usage(ctx context.Context, userID string) (*UsageReport, error)
	ApplyTierChange(ctx context.Context, userID string, tier model.Tier, providerSubscriptionID string) (*model.SubscriptionRecord, error)

	// DueForReset and ResetIfDue back the background sweep. ResetIfDue
	// reports whether the record was due and whether this call reset it; a
	// due record another writer reset first comes back as due but not applied.
	DueForReset(ctx context.Context, limit int) ([]string, error)
	ResetIfDue(ctx context.Context, userID string) (due, applied bool, err error)
	ReportTierCounts(ctx context.Context) error
}

// ResourceUsage is one row of the usage dashboard.
type ResourceUsage struct {
	Resource  model.Resource `json:"resource"`
	Used      int64          `json:"used"`
	Limit     int64          `json:"limit"`
	Remaining int64          `json:"remaining"`
	Unlimited bool           `json:"unlimited"`
}

type UsageReport struct {
	UserID      string           `json:"user_id"`
	Tier        model.Tier       `json:"tier"`
	PeriodStart time.Time        `json:"period_start"`
	NextReset   time.Time        `json:"next_reset"`
	Resources   []ResourceUsage  `json:"resources"`
	Features    model.TierLimits `json:"features"`
}

type EntitlementOption func(*entitlementUC)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) EntitlementOption {
	return func(e *entitlementUC) { e.now = now }
}

type entitlementUC struct {
	subs repository.SubscriptionRepository
	log  *zerolog.Logger
	now  func() time.Time
}

func NewEntitlementUseCase(subs repository.SubscriptionRepository, logger *zerolog.Logger, opts ...EntitlementOption) *entitlementUC {
	l := logger.With().Str("component", "EntitlementUC").Logger()
	e := &entitlementUC{subs: subs, log: &l, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *entitlementUC) CanConsume(ctx context.Context, userID string, resource model.Resource, amount int64) bool {
	return e.Check(ctx, userID, resource, amount) == nil
}

func (e *entitlementUC) Check(ctx context.Context, userID string, resource model.Resource, amount int64) error {
	defer logging.TraceDuration(e.log, "EntitlementUC.Check")()

	if strings.TrimSpace(userID) == "" {
		metrics.IncQuotaCheck(string(resource), "denied")
		return domain.ErrNotAuthenticated
	}
	if amount <= 0 {
		metrics.IncQuotaCheck(string(resource), "denied")
		return domain.ErrInvalidArgument
	}
	rec, err := e.current(ctx, repository.NoTX, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logging.With(ctx, e.log).Warn().Err(err).Str("resource", string(resource)).Msg("quota check failed closed")
		}
		metrics.IncQuotaCheck(string(resource), "error")
		return err
	}
	if qe := rec.Exceeded(model.UsageOf(resource, amount)); qe != nil {
		metrics.IncQuotaCheck(string(resource), "denied")
		return qe
	}
	metrics.IncQuotaCheck(string(resource), "allowed")
	return nil
}

func (e *entitlementUC) RecordConsumption(ctx context.Context, userID string, resource model.Resource, amount int64) (*model.SubscriptionRecord, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return e.Consume(ctx, repository.NoTX, userID, model.UsageOf(resource, amount))
}

func (e *entitlementUC) Consume(ctx context.Context, tx repository.Tx, userID string, usage model.Usage) (*model.SubscriptionRecord, error) {
	defer logging.TraceDuration(e.log, "EntitlementUC.Consume")()

	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrNotAuthenticated
	}
	if err := usage.Validate(); err != nil {
		return nil, err
	}

	ensured := false
	for attempt := 0; attempt < maxConsumeAttempts; attempt++ {
		rec, err := e.current(ctx, tx, userID)
		if errors.Is(err, domain.ErrNotFound) && !ensured {
			ensured = true
			if _, err := e.ensure(ctx, tx, userID); err != nil {
				return nil, err
			}
			attempt--
			continue
		}
		if err != nil {
			return nil, err
		}

		updated, err := e.subs.IncrementUsage(ctx, tx, userID, rec.Tier, usage, rec.Limits())
		switch {
		case err == nil:
			for _, r := range model.Resources {
				metrics.AddQuotaConsumed(string(updated.Tier), string(r), usage.Of(r))
			}
			return updated, nil
		case errors.Is(err, domain.ErrQuotaExceeded):
			var qe *domain.QuotaError
			resource := "unknown"
			if errors.As(err, &qe) {
				resource = qe.Resource
			}
			metrics.IncQuotaRejection(string(rec.Tier), resource)
			logging.With(ctx, e.log).Info().Err(err).Msg("consumption rejected")
			return nil, err
		case errors.Is(err, domain.ErrStaleRecord):
			logging.With(ctx, e.log).Debug().Int("attempt", attempt+1).Msg("record changed during consume; retrying")
			continue
		default:
			return nil, err
		}
	}
	return nil, domain.StorageError("consume", domain.ErrStaleRecord)
}

func (e *entitlementUC) EnsureRecord(ctx context.Context, userID string) (*model.SubscriptionRecord, error) {
	defer logging.TraceDuration(e.log, "EntitlementUC.EnsureRecord")()

	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrNotAuthenticated
	}
	if _, err := e.ensure(ctx, repository.NoTX, userID); err != nil {
		return nil, err
	}
	return e.current(ctx, repository.NoTX, userID)
}

func (e *entitlementUC) MaybeResetPeriod(ctx context.Context, rec *model.SubscriptionRecord) (*model.SubscriptionRecord, error) {
	return e.maybeReset(ctx, repository.NoTX, rec, "read")
}

func (e *entitlementUC) Usage(ctx context.Context, userID string) (*UsageReport, error) {
	defer logging.TraceDuration(e.log, "EntitlementUC.Usage")()

	rec, err := e.EnsureRecord(ctx, userID)
	if err != nil {
		return nil, err
	}
	l := rec.Limits()
	rep := &UsageReport{
		UserID:      rec.UserID,
		Tier:        rec.Tier,
		PeriodStart: rec.PeriodStart,
		NextReset:   model.NextReset(rec.PeriodStart),
		Features:    l,
	}
	for _, r := range model.Resources {
		ru := ResourceUsage{Resource: r, Used: rec.Used(r), Limit: l.Limit(r)}
		if ru.Limit == model.Unlimited {
			ru.Unlimited = true
			ru.Remaining = -1
		} else if ru.Remaining = ru.Limit - ru.Used; ru.Remaining < 0 {
			ru.Remaining = 0
		}
		rep.Resources = append(rep.Resources, ru)
	}
	return rep, nil
}

func (e *entitlementUC) ApplyTierChange(ctx context.Context, userID string, tier model.Tier, providerSubscriptionID string) (*model.SubscriptionRecord, error) {
	defer logging.TraceDuration(e.log, "EntitlementUC.ApplyTierChange")()

	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrNotAuthenticated
	}
	tier, err := model.ParseTier(string(tier))
	if err != nil {
		return nil, err
	}
	if _, err := e.ensure(ctx, repository.NoTX, userID); err != nil {
		return nil, err
	}
	rec, err := e.subs.UpdateTier(ctx, repository.NoTX, userID, tier, providerSubscriptionID)
	if err != nil {
		return nil, err
	}
	logging.With(ctx, e.log).Info().Str("tier", string(tier)).Msg("tier changed")
	return rec, nil
}

func (e *entitlementUC) DueForReset(ctx context.Context, limit int) ([]string, error) {
	return e.subs.ListDueForReset(ctx, repository.NoTX, e.now().Add(-sweepLookback), limit)
}

func (e *entitlementUC) ResetIfDue(ctx context.Context, userID string) (bool, bool, error) {
	rec, err := e.subs.FindActiveByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return false, false, err
	}
	if !model.ResetDue(rec.PeriodStart, e.now()) {
		return false, false, nil
	}
	_, applied, err := e.subs.ResetPeriod(ctx, repository.NoTX, userID, rec.PeriodStart, e.now())
	if err != nil {
		return true, false, err
	}
	if applied {
		metrics.IncPeriodReset("sweep")
	}
	return true, applied, nil
}

func (e *entitlementUC) ReportTierCounts(ctx context.Context) error {
	counts, err := e.subs.CountByTier(ctx, repository.NoTX)
	if err != nil {
		return err
	}
	out := make(map[string]int, len(counts))
	for _, t := range []model.Tier{model.TierFree, model.TierBasic, model.TierPro} {
		out[string(t)] = counts[t]
	}
	metrics.SetRecordsByTier(out)
	return nil
}

// --- internal ---

// current loads the active record and applies a due reset.
func (e *entitlementUC) current(ctx context.Context, tx repository.Tx, userID string) (*model.SubscriptionRecord, error) {
	rec, err := e.subs.FindActiveByUser(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	return e.maybeReset(ctx, tx, rec, "read")
}

func (e *entitlementUC) maybeReset(ctx context.Context, tx repository.Tx, rec *model.SubscriptionRecord, trigger string) (*model.SubscriptionRecord, error) {
	if rec == nil {
		return nil, domain.ErrInvalidArgument
	}
	now := e.now()
	if !model.ResetDue(rec.PeriodStart, now) {
		return rec, nil
	}
	out, applied, err := e.subs.ResetPeriod(ctx, tx, rec.UserID, rec.PeriodStart, now)
	if err != nil {
		return nil, err
	}
	if applied {
		metrics.IncPeriodReset(trigger)
		logging.With(ctx, e.log).Info().
			Time("previous_period_start", rec.PeriodStart).
			Time("period_start", out.PeriodStart).
			Msg("usage period reset")
	}
	return out, nil
}

func (e *entitlementUC) ensure(ctx context.Context, tx repository.Tx, userID string) (bool, error) {
	rec, err := model.NewSubscriptionRecord(userID, e.now())
	if err != nil {
		return false, err
	}
	created, err := e.subs.CreateIfAbsent(ctx, tx, rec)
	if err != nil {
		return false, err
	}
	if created {
		logging.With(ctx, e.log).Info().Str("tier", string(rec.Tier)).Msg("subscription record created")
	}
	return created, nil
}
