//go:build !integration

package postgres

import (
	"context"
	"time"

	"ai-course-studio/internal/domain/model"
	"ai-course-studio/internal/domain/ports/repository"
	red "ai-course-studio/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerSubscriptionRepo mocks the database repository that the decorator wraps.
type mockInnerSubscriptionRepo struct {
	FindActiveByUserFunc func(ctx context.Context, tx repository.Tx, userID string) (*model.SubscriptionRecord, error)
	CreateIfAbsentFunc   func(ctx context.Context, tx repository.Tx, rec *model.SubscriptionRecord) (bool, error)
	IncrementUsageFunc   func(ctx context.Context, tx repository.Tx, userID string, tier model.Tier, usage model.Usage, limits model.TierLimits) (*model.SubscriptionRecord, error)
	ResetPeriodFunc      func(ctx context.Context, tx repository.Tx, userID string, from, now time.Time) (*model.SubscriptionRecord, bool, error)
	UpdateTierFunc       func(ctx context.Context, tx repository.Tx, userID string, tier model.Tier, providerSubscriptionID string) (*model.SubscriptionRecord, error)
	ListDueForResetFunc  func(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]string, error)
	CountByTierFunc      func(ctx context.Context, tx repository.Tx) (map[model.Tier]int, error)
}

var _ repository.SubscriptionRepository = (*mockInnerSubscriptionRepo)(nil)

func (m *mockInnerSubscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.SubscriptionRecord, error) {
	return m.FindActiveByUserFunc(ctx, tx, userID)
}
func (m *mockInnerSubscriptionRepo) CreateIfAbsent(ctx context.Context, tx repository.Tx, rec *model.SubscriptionRecord) (bool, error) {
	return m.CreateIfAbsentFunc(ctx, tx, rec)
}
func (m *mockInnerSubscriptionRepo) IncrementUsage(ctx context.Context, tx repository.Tx, userID string, tier model.Tier, usage model.Usage, limits model.TierLimits) (*model.SubscriptionRecord, error) {
	return m.IncrementUsageFunc(ctx, tx, userID, tier, usage, limits)
}
func (m *mockInnerSubscriptionRepo) ResetPeriod(ctx context.Context, tx repository.Tx, userID string, from, now time.Time) (*model.SubscriptionRecord, bool, error) {
	return m.ResetPeriodFunc(ctx, tx, userID, from, now)
}
func (m *mockInnerSubscriptionRepo) UpdateTier(ctx context.Context, tx repository.Tx, userID string, tier model.Tier, providerSubscriptionID string) (*model.SubscriptionRecord, error) {
	return m.UpdateTierFunc(ctx, tx, userID, tier, providerSubscriptionID)
}
func (m *mockInnerSubscriptionRepo) ListDueForReset(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]string, error) {
	return m.ListDueForResetFunc(ctx, tx, cutoff, limit)
}
func (m *mockInnerSubscriptionRepo) CountByTier(ctx context.Context, tx repository.Tx) (map[model.Tier]int, error) {
	return m.CountByTierFunc(ctx, tx)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	CloseFunc  func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }
