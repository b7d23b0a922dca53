package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-course-studio/internal/domain"
	"ai-course-studio/internal/domain/model"
	"ai-course-studio/internal/domain/ports/repository"
)

var _ repository.CourseRepository = (*courseRepo)(nil)

const courseColumns = `id, user_id, title, topic, audience, duration, outline, shared, created_at, updated_at`

type courseRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresCourseRepo(pool *pgxpool.Pool) *courseRepo {
	return &courseRepo{pool: pool}
}

func (r *courseRepo) Save(ctx context.Context, tx repository.Tx, c *model.Course) error {
	const q = `
INSERT INTO courses (` + courseColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);`

	outline, err := json.Marshal(c.Outline)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	_, err = execSQL(ctx, r.pool, tx, q, c.ID, c.UserID, c.Title, c.Topic, c.Audience, c.Duration, outline, c.Shared, c.CreatedAt, c.UpdatedAt)
	return mapError("save course", err)
}

func (r *courseRepo) FindByID(ctx context.Context, tx repository.Tx, userID, id string) (*model.Course, error) {
	const q = `SELECT ` + courseColumns + ` FROM courses WHERE id=$1 AND user_id=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, id, userID)
	if err != nil {
		return nil, err
	}
	c, err := scanCourse(row)
	if err != nil {
		return nil, mapError("find course", err)
	}
	return c, nil
}

func (r *courseRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.Course, error) {
	const q = `
SELECT ` + courseColumns + ` FROM courses
 WHERE user_id=$1
 ORDER BY created_at DESC
 OFFSET $2 LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, offset, limit)
	if err != nil {
		return nil, mapError("list courses", err)
	}
	defer rows.Close()
	out := make([]*model.Course, 0, limit)
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list courses", err)
	}
	return out, nil
}

func (r *courseRepo) SetShared(ctx context.Context, tx repository.Tx, userID, id string, shared bool) error {
	const q = `UPDATE courses SET shared=$3, updated_at=NOW() WHERE id=$1 AND user_id=$2;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, userID, shared)
	if err != nil {
		return mapError("share course", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *courseRepo) Delete(ctx context.Context, tx repository.Tx, userID, id string) error {
	const q = `DELETE FROM courses WHERE id=$1 AND user_id=$2;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, userID)
	if err != nil {
		return mapError("delete course", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanCourse(row pgx.Row) (*model.Course, error) {
	c := &model.Course{}
	var outline []byte
	if err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.Topic, &c.Audience, &c.Duration, &outline, &c.Shared, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(outline, &c.Outline); err != nil {
		return nil, err
	}
	return c, nil
}
