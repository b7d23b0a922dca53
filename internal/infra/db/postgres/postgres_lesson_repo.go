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

var _ repository.LessonRepository = (*lessonRepo)(nil)

const lessonColumns = `id, user_id, COALESCE(course_id, ''), module_title, lesson_title, plan, created_at`

type lessonRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresLessonRepo(pool *pgxpool.Pool) *lessonRepo {
	return &lessonRepo{pool: pool}
}

func (r *lessonRepo) Save(ctx context.Context, tx repository.Tx, l *model.Lesson) error {
	const q = `
INSERT INTO lessons (id, user_id, course_id, module_title, lesson_title, plan, created_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7);`

	plan, err := json.Marshal(l.Plan)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	_, err = execSQL(ctx, r.pool, tx, q, l.ID, l.UserID, l.CourseID, l.ModuleTitle, l.LessonTitle, plan, l.CreatedAt)
	return mapError("save lesson", err)
}

func (r *lessonRepo) FindByID(ctx context.Context, tx repository.Tx, userID, id string) (*model.Lesson, error) {
	const q = `SELECT ` + lessonColumns + ` FROM lessons WHERE id=$1 AND user_id=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, id, userID)
	if err != nil {
		return nil, err
	}
	l, err := scanLesson(row)
	if err != nil {
		return nil, mapError("find lesson", err)
	}
	return l, nil
}

func (r *lessonRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.Lesson, error) {
	const q = `
SELECT ` + lessonColumns + ` FROM lessons
 WHERE user_id=$1
 ORDER BY created_at DESC
 OFFSET $2 LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, offset, limit)
	if err != nil {
		return nil, mapError("list lessons", err)
	}
	defer rows.Close()
	out := make([]*model.Lesson, 0, limit)
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list lessons", err)
	}
	return out, nil
}

func (r *lessonRepo) Delete(ctx context.Context, tx repository.Tx, userID, id string) error {
	const q = `DELETE FROM lessons WHERE id=$1 AND user_id=$2;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, userID)
	if err != nil {
		return mapError("delete lesson", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanLesson(row pgx.Row) (*model.Lesson, error) {
	l := &model.Lesson{}
	var plan []byte
	if err := row.Scan(&l.ID, &l.UserID, &l.CourseID, &l.ModuleTitle, &l.LessonTitle, &plan, &l.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(plan, &l.Plan); err != nil {
		return nil, err
	}
	return l, nil
}
