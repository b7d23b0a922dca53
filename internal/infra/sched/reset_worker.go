package sched

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ai-course-studio/internal/infra/redis"
	"ai-course-studio/internal/infra/worker"
)

const resetLockKey = "lock:quota_reset_sweep"

// Resetter is the slice of the entitlement use case the sweep drives.
type Resetter interface {
	DueForReset(ctx context.Context, limit int) ([]string, error)
	// ResetIfDue reports whether the record was due and whether this call
	// applied the reset.
	ResetIfDue(ctx context.Context, userID string) (due, applied bool, err error)
	ReportTierCounts(ctx context.Context) error
}

// ResetWorker applies due period resets in the background so idle users'
// records roll over without waiting for their next request. It runs on one
// instance at a time when a locker is configured.
type ResetWorker struct {
	interval time.Duration
	batch    int
	ent      Resetter
	locker   redis.Locker
	pool     *worker.Pool
	log      *zerolog.Logger
}

// NewResetWorker takes a started pool. locker may be nil for single-instance
// deployments.
func NewResetWorker(interval time.Duration, batch int, ent Resetter, locker redis.Locker, pool *worker.Pool, logger *zerolog.Logger) *ResetWorker {
	if batch <= 0 {
		batch = 200
	}
	l := logger.With().Str("component", "ResetWorker").Logger()
	return &ResetWorker{interval: interval, batch: batch, ent: ent, locker: locker, pool: pool, log: &l}
}

func (w *ResetWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting reset worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping reset worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.RunOnce(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				w.log.Error().Err(err).Msg("reset sweep error")
			}
			if n > 0 {
				w.log.Info().Int("count", n).Msg("usage periods reset")
			}
		}
	}
}

// RunOnce sweeps until a batch contains a record that is not due or makes no
// progress, and returns the number of resets this instance applied.
func (w *ResetWorker) RunOnce(ctx context.Context) (int, error) {
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, resetLockKey, w.interval)
		if errors.Is(err, redis.ErrLockHeld) {
			w.log.Debug().Msg("reset sweep running elsewhere")
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		defer func() {
			if err := w.locker.Unlock(context.WithoutCancel(ctx), resetLockKey, token); err != nil {
				w.log.Warn().Err(err).Msg("failed to release reset lock")
			}
		}()
	}

	total := 0
	for {
		ids, err := w.ent.DueForReset(ctx, w.batch)
		if err != nil {
			return total, err
		}
		res, err := w.resetBatch(ctx, ids)
		total += res.applied
		if err != nil {
			return total, err
		}
		// Candidates come oldest first, so a record that is not due means the
		// rest of the list is not due either. Records reset elsewhere leave the
		// candidate list; failed ones stay, so a batch that moved nothing
		// would come back unchanged.
		if len(ids) < w.batch || res.notDue > 0 || res.applied+res.raced == 0 {
			break
		}
	}

	if err := w.ent.ReportTierCounts(ctx); err != nil {
		w.log.Warn().Err(err).Msg("failed to report tier counts")
	}
	return total, nil
}

type batchResult struct {
	applied int
	raced   int
	notDue  int
}

func (w *ResetWorker) resetBatch(ctx context.Context, ids []string) (batchResult, error) {
	var (
		wg                     sync.WaitGroup
		applied, raced, notDue atomic.Int64
	)
	result := func() batchResult {
		return batchResult{applied: int(applied.Load()), raced: int(raced.Load()), notDue: int(notDue.Load())}
	}
	for _, id := range ids {
		id := id
		wg.Add(1)
		err := w.pool.SubmitWait(ctx, func(ctx context.Context) error {
			defer wg.Done()
			due, ok, err := w.ent.ResetIfDue(ctx, id)
			switch {
			case err != nil:
				return err
			case !due:
				notDue.Add(1)
			case ok:
				applied.Add(1)
			default:
				raced.Add(1)
			}
			return nil
		})
		if err != nil {
			wg.Done()
			return result(), err
		}
	}

	// Queued tasks are dropped when the pool stops, so never wait past ctx.
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return result(), nil
	case <-ctx.Done():
		return result(), ctx.Err()
	}
}
