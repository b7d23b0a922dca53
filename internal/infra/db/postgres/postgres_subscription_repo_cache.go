package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-course-studio/internal/domain/model"
	"ai-course-studio/internal/domain/ports/repository"
	"ai-course-studio/internal/infra/metrics"
	red "ai-course-studio/internal/infra/redis"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

var _ repository.SubscriptionRepository = (*subscriptionRepoCacheDecorator)(nil)

// subscriptionRepoCacheDecorator serves non-transactional FindActiveByUser from
// redis and drops the cached record after every write. A write inside a
// transaction drops it again after commit, since a read between the write and
// the commit can re-cache the old row. Conditional writes
// always go to Postgres, so a stale cached read can only make an advisory
// check wrong, never a counter.
type subscriptionRepoCacheDecorator struct {
	inner repository.SubscriptionRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewSubscriptionRepoCacheDecorator(inner repository.SubscriptionRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.SubscriptionRepository {
	if ttl <= 0 {
		ttl = time.Minute
	}
	l := logger.With().Str("component", "SubscriptionCache").Logger()
	return &subscriptionRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: &l}
}

func subscriptionKey(userID string) string { return fmt.Sprintf("subscription:%s", userID) }

func (d *subscriptionRepoCacheDecorator) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.SubscriptionRecord, error) {
	if tx != nil {
		return d.inner.FindActiveByUser(ctx, tx, userID)
	}
	key := subscriptionKey(userID)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var rec model.SubscriptionRecord
		if json.Unmarshal([]byte(val), &rec) == nil {
			metrics.IncCacheRequest("subscription", "hit")
			return &rec, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		d.log.Warn().Err(err).Msg("cache read failed")
	}

	metrics.IncCacheRequest("subscription", "miss")
	rec, err := d.inner.FindActiveByUser(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	d.store(ctx, rec)
	return rec, nil
}

func (d *subscriptionRepoCacheDecorator) CreateIfAbsent(ctx context.Context, tx repository.Tx, rec *model.SubscriptionRecord) (bool, error) {
	created, err := d.inner.CreateIfAbsent(ctx, tx, rec)
	d.invalidate(ctx, tx, rec.UserID)
	return created, err
}

func (d *subscriptionRepoCacheDecorator) IncrementUsage(ctx context.Context, tx repository.Tx, userID string, tier model.Tier, usage model.Usage, limits model.TierLimits) (*model.SubscriptionRecord, error) {
	rec, err := d.inner.IncrementUsage(ctx, tx, userID, tier, usage, limits)
	d.invalidate(ctx, tx, userID)
	return rec, err
}

func (d *subscriptionRepoCacheDecorator) ResetPeriod(ctx context.Context, tx repository.Tx, userID string, from, now time.Time) (*model.SubscriptionRecord, bool, error) {
	rec, ok, err := d.inner.ResetPeriod(ctx, tx, userID, from, now)
	d.invalidate(ctx, tx, userID)
	return rec, ok, err
}

func (d *subscriptionRepoCacheDecorator) UpdateTier(ctx context.Context, tx repository.Tx, userID string, tier model.Tier, providerSubscriptionID string) (*model.SubscriptionRecord, error) {
	rec, err := d.inner.UpdateTier(ctx, tx, userID, tier, providerSubscriptionID)
	d.invalidate(ctx, tx, userID)
	return rec, err
}

func (d *subscriptionRepoCacheDecorator) ListDueForReset(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]string, error) {
	return d.inner.ListDueForReset(ctx, tx, cutoff, limit)
}

func (d *subscriptionRepoCacheDecorator) CountByTier(ctx context.Context, tx repository.Tx) (map[model.Tier]int, error) {
	return d.inner.CountByTier(ctx, tx)
}

func (d *subscriptionRepoCacheDecorator) store(ctx context.Context, rec *model.SubscriptionRecord) {
	b, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, subscriptionKey(rec.UserID), b, d.ttl); err != nil {
		d.log.Warn().Err(err).Msg("cache write failed")
	}
}

func (d *subscriptionRepoCacheDecorator) invalidate(ctx context.Context, tx repository.Tx, userID string) {
	d.del(ctx, userID)
	if tx != nil {
		repository.AfterCommit(ctx, func(ctx context.Context) { d.del(ctx, userID) })
	}
}

func (d *subscriptionRepoCacheDecorator) del(ctx context.Context, userID string) {
	if err := d.cache.Del(ctx, subscriptionKey(userID)); err != nil {
		d.log.Warn().Err(err).Str("user_id", userID).Msg("cache invalidation failed")
	}
}
