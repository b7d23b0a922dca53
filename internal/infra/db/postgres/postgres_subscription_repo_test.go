//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"

	"ai-course-studio/internal/domain"
	"ai-course-studio/internal/domain/model"
	"ai-course-studio/internal/domain/ports/repository"
)

func TestSubscriptionRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewPostgresSubscriptionRepo(testPool)
	now := time.Date(2025, 1, 15, 9, 30, 0, 123456789, time.UTC)

	seed := func(t *testing.T, userID string) *model.SubscriptionRecord {
		t.Helper()
		rec, err := model.NewSubscriptionRecord(userID, now)
		if err != nil {
			t.Fatalf("new record: %v", err)
		}
		created, err := repo.CreateIfAbsent(ctx, nil, rec)
		if err != nil || !created {
			t.Fatalf("seed record: created=%v err=%v", created, err)
		}
		return rec
	}

	t.Run("CreateIfAbsent keeps one active record under concurrent callers", func(t *testing.T) {
		cleanup(t)
		var wg sync.WaitGroup
		var created int32
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				rec, _ := model.NewSubscriptionRecord("user-ensure", now)
				ok, err := repo.CreateIfAbsent(ctx, nil, rec)
				if err != nil {
					t.Errorf("CreateIfAbsent: %v", err)
					return
				}
				if ok {
					atomic.AddInt32(&created, 1)
				}
			}()
		}
		wg.Wait()

		if created != 1 {
			t.Errorf("expected exactly one insert, got %d", created)
		}
		var n int
		if err := testPool.QueryRow(ctx, `SELECT COUNT(*) FROM subscriptions WHERE user_id='user-ensure' AND active`).Scan(&n); err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("expected one active row, got %d", n)
		}
	})

	t.Run("FindActiveByUser round-trips timestamps exactly", func(t *testing.T) {
		cleanup(t)
		rec := seed(t, "user-find")

		got, err := repo.FindActiveByUser(ctx, nil, "user-find")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if !got.PeriodStart.Equal(rec.PeriodStart) {
			t.Errorf("period_start drifted: want %v, got %v", rec.PeriodStart, got.PeriodStart)
		}
		if got.Tier != model.TierFree || !got.Active {
			t.Errorf("unexpected record %+v", got)
		}

		if _, err := repo.FindActiveByUser(ctx, nil, "nobody"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("IncrementUsage stops exactly at the limit under concurrency", func(t *testing.T) {
		cleanup(t)
		seed(t, "user-race")
		limits := model.LimitsFor(model.TierFree)

		var wg sync.WaitGroup
		var ok, rejected int32
		for i := 0; i < 12; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.IncrementUsage(ctx, nil, "user-race", model.TierFree, model.UsageOf(model.ResourceCourses, 1), limits)
				switch {
				case err == nil:
					atomic.AddInt32(&ok, 1)
				case errors.Is(err, domain.ErrQuotaExceeded):
					atomic.AddInt32(&rejected, 1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		if ok != 5 || rejected != 7 {
			t.Errorf("expected 5 accepted and 7 rejected, got %d and %d", ok, rejected)
		}
		got, _ := repo.FindActiveByUser(ctx, nil, "user-race")
		if got.CoursesUsed != 5 {
			t.Errorf("expected courses_used 5, got %d", got.CoursesUsed)
		}
	})

	t.Run("IncrementUsage moves no counter when one resource is over", func(t *testing.T) {
		cleanup(t)
		seed(t, "user-partial")
		limits := model.LimitsFor(model.TierFree)

		usage := model.Usage{Courses: 1, Tokens: limits.Tokens + 1}
		_, err := repo.IncrementUsage(ctx, nil, "user-partial", model.TierFree, usage, limits)
		var qe *domain.QuotaError
		if !errors.As(err, &qe) || qe.Resource != string(model.ResourceTokens) {
			t.Fatalf("expected token QuotaError, got %v", err)
		}
		got, _ := repo.FindActiveByUser(ctx, nil, "user-partial")
		if got.CoursesUsed != 0 || got.TokensUsed != 0 {
			t.Errorf("expected untouched counters, got %+v", got)
		}
	})

	t.Run("IncrementUsage with a stale tier reports ErrStaleRecord", func(t *testing.T) {
		cleanup(t)
		seed(t, "user-stale")
		if _, err := repo.UpdateTier(ctx, nil, "user-stale", model.TierPro, "I-PRO"); err != nil {
			t.Fatalf("update tier: %v", err)
		}
		_, err := repo.IncrementUsage(ctx, nil, "user-stale", model.TierFree, model.UsageOf(model.ResourceQuizzes, 1), model.LimitsFor(model.TierFree))
		if !errors.Is(err, domain.ErrStaleRecord) {
			t.Errorf("expected ErrStaleRecord, got %v", err)
		}
	})

	t.Run("IncrementUsage on a missing record reports ErrNotFound", func(t *testing.T) {
		cleanup(t)
		_, err := repo.IncrementUsage(ctx, nil, "ghost", model.TierFree, model.UsageOf(model.ResourceLessons, 1), model.LimitsFor(model.TierFree))
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ResetPeriod applies once per period", func(t *testing.T) {
		cleanup(t)
		rec := seed(t, "user-reset")
		if _, err := repo.IncrementUsage(ctx, nil, "user-reset", model.TierFree, model.Usage{Quizzes: 4, Tokens: 900}, model.LimitsFor(model.TierFree)); err != nil {
			t.Fatalf("increment: %v", err)
		}

		later := now.AddDate(0, 1, 1)
		var wg sync.WaitGroup
		var applied int32
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, ok, err := repo.ResetPeriod(ctx, nil, "user-reset", rec.PeriodStart, later)
				if err != nil {
					t.Errorf("reset: %v", err)
				}
				if ok {
					atomic.AddInt32(&applied, 1)
				}
			}()
		}
		wg.Wait()

		if applied != 1 {
			t.Errorf("expected one applied reset, got %d", applied)
		}
		got, _ := repo.FindActiveByUser(ctx, nil, "user-reset")
		if got.QuizzesUsed != 0 || got.TokensUsed != 0 {
			t.Errorf("expected zeroed counters, got %+v", got)
		}
		if !got.PeriodStart.Equal(model.StorageTime(later)) {
			t.Errorf("expected period_start %v, got %v", later, got.PeriodStart)
		}
	})

	t.Run("ListDueForReset and CountByTier", func(t *testing.T) {
		cleanup(t)
		seed(t, "user-a")
		seed(t, "user-b")
		if _, err := repo.UpdateTier(ctx, nil, "user-b", model.TierBasic, "I-B"); err != nil {
			t.Fatal(err)
		}

		due, err := repo.ListDueForReset(ctx, nil, now.Add(time.Hour), 10)
		if err != nil {
			t.Fatalf("list due: %v", err)
		}
		if len(due) != 2 {
			t.Errorf("expected 2 due users, got %v", due)
		}
		none, _ := repo.ListDueForReset(ctx, nil, now.Add(-time.Hour), 10)
		if len(none) != 0 {
			t.Errorf("expected no due users, got %v", none)
		}

		counts, err := repo.CountByTier(ctx, nil)
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if counts[model.TierFree] != 1 || counts[model.TierBasic] != 1 {
			t.Errorf("unexpected counts %v", counts)
		}
	})

	t.Run("a rolled back transaction leaves counters untouched", func(t *testing.T) {
		cleanup(t)
		seed(t, "user-tx")
		tm := NewTxManager(testPool)
		boom := errors.New("artifact insert failed")

		err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			if _, err := repo.IncrementUsage(ctx, tx, "user-tx", model.TierFree, model.UsageOf(model.ResourceCourses, 1), model.LimitsFor(model.TierFree)); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected rollback error, got %v", err)
		}
		got, _ := repo.FindActiveByUser(ctx, nil, "user-tx")
		if got.CoursesUsed != 0 {
			t.Errorf("expected courses_used 0 after rollback, got %d", got.CoursesUsed)
		}
	})
}
