//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ai-course-studio/internal/domain"
	"ai-course-studio/internal/domain/model"
	"ai-course-studio/internal/domain/ports/adapter"
	"ai-course-studio/internal/domain/ports/repository"
)

// -----------------------------
// Utilities
// -----------------------------

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// fixedClock is a settable clock for the use cases.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *fixedClock { return &fixedClock{t: t} }

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// =============================
// Repositories
// =============================

// memSubRepo keeps subscription records in memory and evaluates
// IncrementUsage and ResetPeriod conditionally under one lock, the way the
// SQL statements do. The Func fields override single methods.
type memSubRepo struct {
	mu   sync.Mutex
	recs map[string]*model.SubscriptionRecord

	FindActiveByUserFunc func(ctx context.Context, tx repository.Tx, userID string) (*model.SubscriptionRecord, error)
	IncrementUsageFunc   func(ctx context.Context, tx repository.Tx, userID string, tier model.Tier, usage model.Usage, limits model.TierLimits) (*model.SubscriptionRecord, error)
	CreateIfAbsentFunc   func(ctx context.Context, tx repository.Tx, rec *model.SubscriptionRecord) (bool, error)

	increments int
	resets     int
}

var _ repository.SubscriptionRepository = (*memSubRepo)(nil)

func newMemSubRepo() *memSubRepo {
	return &memSubRepo{recs: make(map[string]*model.SubscriptionRecord)}
}

// put stores a copy of rec.
func (m *memSubRepo) put(rec *model.SubscriptionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.recs[rec.UserID] = &cp
}

// get returns a copy of the stored record, or nil.
func (m *memSubRepo) get(userID string) *model.SubscriptionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[userID]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

func (m *memSubRepo) snapshot() map[string]model.SubscriptionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]model.SubscriptionRecord, len(m.recs))
	for k, v := range m.recs {
		out[k] = *v
	}
	return out
}

func (m *memSubRepo) restore(s map[string]model.SubscriptionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = make(map[string]*model.SubscriptionRecord, len(s))
	for k, v := range s {
		cp := v
		m.recs[k] = &cp
	}
}

func (m *memSubRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.SubscriptionRecord, error) {
	if m.FindActiveByUserFunc != nil {
		return m.FindActiveByUserFunc(ctx, tx, userID)
	}
	if r := m.get(userID); r != nil && r.Active {
		return r, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memSubRepo) CreateIfAbsent(ctx context.Context, tx repository.Tx, rec *model.SubscriptionRecord) (bool, error) {
	if m.CreateIfAbsentFunc != nil {
		return m.CreateIfAbsentFunc(ctx, tx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[rec.UserID]; ok {
		return false, nil
	}
	cp := *rec
	m.recs[rec.UserID] = &cp
	return true, nil
}

func (m *memSubRepo) IncrementUsage(ctx context.Context, tx repository.Tx, userID string, tier model.Tier, usage model.Usage, limits model.TierLimits) (*model.SubscriptionRecord, error) {
	if m.IncrementUsageFunc != nil {
		return m.IncrementUsageFunc(ctx, tx, userID, tier, usage, limits)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[userID]
	if !ok || !r.Active {
		return nil, domain.ErrNotFound
	}
	if r.Tier != tier {
		return nil, domain.ErrStaleRecord
	}
	if qe := r.Exceeded(usage); qe != nil {
		return nil, qe
	}
	r.Apply(usage, time.Now())
	m.increments++
	cp := *r
	return &cp, nil
}

func (m *memSubRepo) ResetPeriod(ctx context.Context, tx repository.Tx, userID string, from, now time.Time) (*model.SubscriptionRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[userID]
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	applied := false
	if r.PeriodStart.Equal(from) {
		r.Reset(now)
		m.resets++
		applied = true
	}
	cp := *r
	return &cp, applied, nil
}

func (m *memSubRepo) UpdateTier(ctx context.Context, tx repository.Tx, userID string, tier model.Tier, providerSubscriptionID string) (*model.SubscriptionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if providerSubscriptionID != "" {
		for uid, other := range m.recs {
			if uid != userID && other.Active && other.ProviderSubscriptionID == providerSubscriptionID {
				return nil, domain.ErrAlreadyExists
			}
		}
	}
	r.Tier = tier
	r.ProviderSubscriptionID = providerSubscriptionID
	cp := *r
	return &cp, nil
}

func (m *memSubRepo) ListDueForReset(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var recs []*model.SubscriptionRecord
	for _, r := range m.recs {
		if r.Active && !r.PeriodStart.After(cutoff) {
			recs = append(recs, r)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].PeriodStart.Before(recs[j].PeriodStart) })
	var out []string
	for _, r := range recs {
		if len(out) == limit {
			break
		}
		out = append(out, r.UserID)
	}
	return out, nil
}

func (m *memSubRepo) CountByTier(ctx context.Context, tx repository.Tx) (map[model.Tier]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[model.Tier]int)
	for _, r := range m.recs {
		if r.Active {
			out[r.Tier]++
		}
	}
	return out, nil
}

// memArtifacts stores any artifact kind keyed by id, scoped by owner.
type memArtifacts[T any] struct {
	mu      sync.Mutex
	items   map[string]T
	owner   func(T) string
	id      func(T) string
	shared  map[string]bool
	SaveErr error
	saved   int
}

func newMemArtifacts[T any](id, owner func(T) string) *memArtifacts[T] {
	return &memArtifacts[T]{items: make(map[string]T), shared: make(map[string]bool), id: id, owner: owner}
}

func (m *memArtifacts[T]) Save(ctx context.Context, tx repository.Tx, v T) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[m.id(v)] = v
	m.saved++
	return nil
}

func (m *memArtifacts[T]) FindByID(ctx context.Context, tx repository.Tx, userID, id string) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[id]
	if !ok || m.owner(v) != userID {
		var zero T
		return zero, domain.ErrNotFound
	}
	return v, nil
}

func (m *memArtifacts[T]) ListByUser(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, v := range m.items {
		if m.owner(v) == userID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	var out []T
	for i := offset; i < len(ids) && len(out) < limit; i++ {
		out = append(out, m.items[ids[i]])
	}
	return out, nil
}

func (m *memArtifacts[T]) SetShared(ctx context.Context, tx repository.Tx, userID, id string, shared bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[id]
	if !ok || m.owner(v) != userID {
		return domain.ErrNotFound
	}
	m.shared[id] = shared
	return nil
}

func (m *memArtifacts[T]) Delete(ctx context.Context, tx repository.Tx, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[id]
	if !ok || m.owner(v) != userID {
		return domain.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memArtifacts[T]) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func newMemCourses() *memArtifacts[*model.Course] {
	return newMemArtifacts(func(c *model.Course) string { return c.ID }, func(c *model.Course) string { return c.UserID })
}

func newMemLessons() *memArtifacts[*model.Lesson] {
	return newMemArtifacts(func(l *model.Lesson) string { return l.ID }, func(l *model.Lesson) string { return l.UserID })
}

func newMemQuizzes() *memArtifacts[*model.Quiz] {
	return newMemArtifacts(func(q *model.Quiz) string { return q.ID }, func(q *model.Quiz) string { return q.UserID })
}

// ---- MockTxManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// newRollbackTxManager restores subs to its state at begin when fn fails.
func newRollbackTxManager(subs *memSubRepo) *MockTxManager {
	var mu sync.Mutex
	return &MockTxManager{
		WithTxFunc: func(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
			mu.Lock()
			defer mu.Unlock()
			snap := subs.snapshot()
			if err := fn(ctx, repository.NoTX); err != nil {
				subs.restore(snap)
				return err
			}
			return nil
		},
	}
}

// =============================
// Adapters
// =============================

// MockAI answers with Reply and Usage unless ChatFunc is set.
type MockAI struct {
	mu       sync.Mutex
	Reply    string
	Usage    adapter.Usage
	Err      error
	ChatFunc func(ctx context.Context, req adapter.ChatRequest) (string, adapter.Usage, error)
	Counted  int
	calls    []adapter.ChatRequest
}

var _ adapter.AIServiceAdapter = (*MockAI)(nil)

func (m *MockAI) Provider() string { return "mock" }

func (m *MockAI) ListModels(ctx context.Context) ([]string, error) { return []string{"mock-model"}, nil }

func (m *MockAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	if m.Counted > 0 {
		return m.Counted, nil
	}
	return 0, errors.New("no counter")
}

func (m *MockAI) ChatWithUsage(ctx context.Context, req adapter.ChatRequest) (string, adapter.Usage, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	if m.Err != nil {
		return "", adapter.Usage{}, m.Err
	}
	return m.Reply, m.Usage, nil
}

func (m *MockAI) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *MockAI) lastCall() adapter.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[len(m.calls)-1]
}

// MockGateway is an in-memory billing provider.
type MockGateway struct {
	mu        sync.Mutex
	subs      map[string]*adapter.BillingSubscription
	Cancelled []string
	CancelErr error
}

var _ adapter.BillingGateway = (*MockGateway)(nil)

func NewMockGateway() *MockGateway {
	return &MockGateway{subs: make(map[string]*adapter.BillingSubscription)}
}

func (g *MockGateway) Put(s *adapter.BillingSubscription) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := *s
	g.subs[s.ID] = &cp
}

func (g *MockGateway) Name() string { return "mock" }

func (g *MockGateway) GetSubscription(ctx context.Context, id string) (*adapter.BillingSubscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.subs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (g *MockGateway) CancelSubscription(ctx context.Context, id, reason string) error {
	if g.CancelErr != nil {
		return g.CancelErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.subs[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Status = "CANCELLED"
	g.Cancelled = append(g.Cancelled, id)
	return nil
}

// MockLimiter allows the first N calls per key.
type MockLimiter struct {
	mu   sync.Mutex
	seen map[string]int
	Err  error
}

func (l *MockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if l.Err != nil {
		return false, l.Err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seen == nil {
		l.seen = make(map[string]int)
	}
	l.seen[key]++
	return l.seen[key] <= limit, nil
}
