package repository

import (
	"context"

	"ai-course-studio/internal/domain/model"
)

// CourseRepository stores generated courses. All reads and deletes are
// scoped to the owning user.
type CourseRepository interface {
	Save(ctx context.Context, tx Tx, c *model.Course) error
	FindByID(ctx context.Context, tx Tx, userID, id string) (*model.Course, error)
	ListByUser(ctx context.Context, tx Tx, userID string, offset, limit int) ([]*model.Course, error)
	SetShared(ctx context.Context, tx Tx, userID, id string, shared bool) error
	Delete(ctx context.Context, tx Tx, userID, id string) error
}

type LessonRepository interface {
	Save(ctx context.Context, tx Tx, l *model.Lesson) error
	FindByID(ctx context.Context, tx Tx, userID, id string) (*model.Lesson, error)
	ListByUser(ctx context.Context, tx Tx, userID string, offset, limit int) ([]*model.Lesson, error)
	Delete(ctx context.Context, tx Tx, userID, id string) error
}

type QuizRepository interface {
	Save(ctx context.Context, tx Tx, q *model.Quiz) error
	FindByID(ctx context.Context, tx Tx, userID, id string) (*model.Quiz, error)
	ListByUser(ctx context.Context, tx Tx, userID string, offset, limit int) ([]*model.Quiz, error)
	Delete(ctx context.Context, tx Tx, userID, id string) error
}
