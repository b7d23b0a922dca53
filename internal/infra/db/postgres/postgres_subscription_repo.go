package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-course-studio/internal/domain"
	"ai-course-studio/internal/domain/model"
	"ai-course-studio/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

const subColumns = `id, user_id, COALESCE(provider_subscription_id, ''), tier,
  courses_used, quizzes_used, lessons_used, tokens_used,
  active, period_start, created_at, updated_at`

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

func (r *subscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.SubscriptionRecord, error) {
	const q = `SELECT ` + subColumns + ` FROM subscriptions WHERE user_id=$1 AND active;`
	return r.queryOne(ctx, tx, "find subscription", q, userID)
}

func (r *subscriptionRepo) CreateIfAbsent(ctx context.Context, tx repository.Tx, rec *model.SubscriptionRecord) (bool, error) {
	const q = `
INSERT INTO subscriptions (
  id, user_id, provider_subscription_id, tier,
  courses_used, quizzes_used, lessons_used, tokens_used,
  active, period_start, created_at, updated_at
) VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, TRUE, $9, $10, $11)
ON CONFLICT (user_id) WHERE active DO NOTHING;`

	tag, err := execSQL(ctx, r.pool, tx, q,
		rec.ID, rec.UserID, rec.ProviderSubscriptionID, string(rec.Tier),
		rec.CoursesUsed, rec.QuizzesUsed, rec.LessonsUsed, rec.TokensUsed,
		rec.PeriodStart, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return false, mapError("create subscription", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *subscriptionRepo) IncrementUsage(ctx context.Context, tx repository.Tx, userID string, tier model.Tier, usage model.Usage, limits model.TierLimits) (*model.SubscriptionRecord, error) {
	// A negative limit means no ceiling. All four counters move together or
	// not at all.
	const q = `
UPDATE subscriptions SET
  courses_used = courses_used + $3,
  quizzes_used = quizzes_used + $4,
  lessons_used = lessons_used + $5,
  tokens_used  = tokens_used + $6,
  updated_at   = NOW()
WHERE user_id=$1 AND active AND tier=$2
  AND ($7::bigint  < 0 OR courses_used + $3 <= $7)
  AND ($8::bigint  < 0 OR quizzes_used + $4 <= $8)
  AND ($9::bigint  < 0 OR lessons_used + $5 <= $9)
  AND ($10::bigint < 0 OR tokens_used  + $6 <= $10)
RETURNING ` + subColumns + `;`

	rec, err := r.queryOne(ctx, tx, "increment usage", q, userID, string(tier),
		usage.Courses, usage.Quizzes, usage.Lessons, usage.Tokens,
		limits.Courses, limits.Quizzes, limits.Lessons, limits.Tokens)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	// No row updated: find out whether the record is missing, over quota, or
	// was changed underneath us.
	cur, err := r.FindActiveByUser(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if cur.Tier != tier {
		return nil, domain.ErrStaleRecord
	}
	if qe := cur.Exceeded(usage); qe != nil {
		return nil, qe
	}
	return nil, domain.ErrStaleRecord
}

func (r *subscriptionRepo) ResetPeriod(ctx context.Context, tx repository.Tx, userID string, from, now time.Time) (*model.SubscriptionRecord, bool, error) {
	const q = `
UPDATE subscriptions SET
  courses_used = 0, quizzes_used = 0, lessons_used = 0, tokens_used = 0,
  period_start = $3, updated_at = $3
WHERE user_id=$1 AND active AND period_start=$2
RETURNING ` + subColumns + `;`

	rec, err := r.queryOne(ctx, tx, "reset period", q, userID, model.StorageTime(from), model.StorageTime(now))
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}
	// Someone else already moved period_start; return their result.
	cur, err := r.FindActiveByUser(ctx, tx, userID)
	if err != nil {
		return nil, false, err
	}
	return cur, false, nil
}

func (r *subscriptionRepo) UpdateTier(ctx context.Context, tx repository.Tx, userID string, tier model.Tier, providerSubscriptionID string) (*model.SubscriptionRecord, error) {
	const q = `
UPDATE subscriptions SET
  tier = $2, provider_subscription_id = NULLIF($3, ''), updated_at = NOW()
WHERE user_id=$1 AND active
RETURNING ` + subColumns + `;`
	return r.queryOne(ctx, tx, "update tier", q, userID, string(tier), providerSubscriptionID)
}

func (r *subscriptionRepo) ListDueForReset(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]string, error) {
	const q = `
SELECT user_id FROM subscriptions
 WHERE active AND period_start <= $1
 ORDER BY period_start ASC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, cutoff, limit)
	if err != nil {
		return nil, mapError("list due", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list due", err)
	}
	return out, nil
}

func (r *subscriptionRepo) CountByTier(ctx context.Context, tx repository.Tx) (map[model.Tier]int, error) {
	const q = `SELECT tier, COUNT(*) FROM subscriptions WHERE active GROUP BY tier;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapError("count by tier", err)
	}
	defer rows.Close()

	counts := make(map[model.Tier]int)
	for rows.Next() {
		var tier string
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		counts[model.Tier(tier)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("count by tier", err)
	}
	return counts, nil
}

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, op, sql string, args ...interface{}) (*model.SubscriptionRecord, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	s, err := scanSubscription(row)
	if err != nil {
		return nil, mapError(op, err)
	}
	return s, nil
}

func scanSubscription(row pgx.Row) (*model.SubscriptionRecord, error) {
	s := &model.SubscriptionRecord{}
	var tier string
	if err := row.Scan(
		&s.ID, &s.UserID, &s.ProviderSubscriptionID, &tier,
		&s.CoursesUsed, &s.QuizzesUsed, &s.LessonsUsed, &s.TokensUsed,
		&s.Active, &s.PeriodStart, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Tier = model.Tier(tier)
	s.PeriodStart = s.PeriodStart.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}
