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

var _ repository.QuizRepository = (*quizRepo)(nil)

const quizColumns = `id, user_id, topic, difficulty, sheet, created_at`

type quizRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresQuizRepo(pool *pgxpool.Pool) *quizRepo {
	return &quizRepo{pool: pool}
}

func (r *quizRepo) Save(ctx context.Context, tx repository.Tx, qz *model.Quiz) error {
	const q = `INSERT INTO quizzes (` + quizColumns + `) VALUES ($1,$2,$3,$4,$5,$6);`
	sheet, err := json.Marshal(qz.Sheet)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	_, err = execSQL(ctx, r.pool, tx, q, qz.ID, qz.UserID, qz.Topic, string(qz.Difficulty), sheet, qz.CreatedAt)
	return mapError("save quiz", err)
}

func (r *quizRepo) FindByID(ctx context.Context, tx repository.Tx, userID, id string) (*model.Quiz, error) {
	const q = `SELECT ` + quizColumns + ` FROM quizzes WHERE id=$1 AND user_id=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, id, userID)
	if err != nil {
		return nil, err
	}
	qz, err := scanQuiz(row)
	if err != nil {
		return nil, mapError("find quiz", err)
	}
	return qz, nil
}

func (r *quizRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.Quiz, error) {
	const q = `
SELECT ` + quizColumns + ` FROM quizzes
 WHERE user_id=$1
 ORDER BY created_at DESC
 OFFSET $2 LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, offset, limit)
	if err != nil {
		return nil, mapError("list quizzes", err)
	}
	defer rows.Close()
	out := make([]*model.Quiz, 0, limit)
	for rows.Next() {
		qz, err := scanQuiz(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, qz)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list quizzes", err)
	}
	return out, nil
}

func (r *quizRepo) Delete(ctx context.Context, tx repository.Tx, userID, id string) error {
	const q = `DELETE FROM quizzes WHERE id=$1 AND user_id=$2;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, userID)
	if err != nil {
		return mapError("delete quiz", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanQuiz(row pgx.Row) (*model.Quiz, error) {
	qz := &model.Quiz{}
	var difficulty string
	var sheet []byte
	if err := row.Scan(&qz.ID, &qz.UserID, &qz.Topic, &difficulty, &sheet, &qz.CreatedAt); err != nil {
		return nil, err
	}
	qz.Difficulty = model.Difficulty(difficulty)
	if err := json.Unmarshal(sheet, &qz.Sheet); err != nil {
		return nil, err
	}
	return qz, nil
}
