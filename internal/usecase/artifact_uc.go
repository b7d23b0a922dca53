package usecase

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"ai-course-studio/internal/domain"
	"ai-course-studio/internal/domain/model"
	"ai-course-studio/internal/domain/ports/repository"
	"ai-course-studio/internal/infra/logging"
)

// Compile-time check
var _ ArtifactUseCase = (*artifactUC)(nil)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ArtifactUseCase reads and manages the artifacts a user generated. Nothing
// here touches quotas: reading, sharing and deleting are free.
type ArtifactUseCase interface {
	ListCourses(ctx context.Context, userID string, offset, limit int) ([]*model.Course, error)
	GetCourse(ctx context.Context, userID, id string) (*model.Course, error)
	ShareCourse(ctx context.Context, userID, id string, shared bool) error
	DeleteCourse(ctx context.Context, userID, id string) error

	ListLessons(ctx context.Context, userID string, offset, limit int) ([]*model.Lesson, error)
	GetLesson(ctx context.Context, userID, id string) (*model.Lesson, error)
	DeleteLesson(ctx context.Context, userID, id string) error

	ListQuizzes(ctx context.Context, userID string, offset, limit int) ([]*model.Quiz, error)
	GetQuiz(ctx context.Context, userID, id string) (*model.Quiz, error)
	DeleteQuiz(ctx context.Context, userID, id string) error
}

type artifactUC struct {
	courses repository.CourseRepository
	lessons repository.LessonRepository
	quizzes repository.QuizRepository
	log     *zerolog.Logger
}

func NewArtifactUseCase(courses repository.CourseRepository, lessons repository.LessonRepository, quizzes repository.QuizRepository, logger *zerolog.Logger) *artifactUC {
	l := logger.With().Str("component", "ArtifactUC").Logger()
	return &artifactUC{courses: courses, lessons: lessons, quizzes: quizzes, log: &l}
}

func (a *artifactUC) ListCourses(ctx context.Context, userID string, offset, limit int) ([]*model.Course, error) {
	defer logging.TraceDuration(a.log, "ArtifactUC.ListCourses")()
	if err := owner(userID); err != nil {
		return nil, err
	}
	offset, limit = page(offset, limit)
	return a.courses.ListByUser(ctx, repository.NoTX, userID, offset, limit)
}

func (a *artifactUC) GetCourse(ctx context.Context, userID, id string) (*model.Course, error) {
	if err := ownerAndID(userID, id); err != nil {
		return nil, err
	}
	return a.courses.FindByID(ctx, repository.NoTX, userID, id)
}

func (a *artifactUC) ShareCourse(ctx context.Context, userID, id string, shared bool) error {
	if err := ownerAndID(userID, id); err != nil {
		return err
	}
	if err := a.courses.SetShared(ctx, repository.NoTX, userID, id, shared); err != nil {
		return err
	}
	logging.With(ctx, a.log).Info().Str("course_id", id).Bool("shared", shared).Msg("course sharing changed")
	return nil
}

func (a *artifactUC) DeleteCourse(ctx context.Context, userID, id string) error {
	if err := ownerAndID(userID, id); err != nil {
		return err
	}
	return a.courses.Delete(ctx, repository.NoTX, userID, id)
}

func (a *artifactUC) ListLessons(ctx context.Context, userID string, offset, limit int) ([]*model.Lesson, error) {
	defer logging.TraceDuration(a.log, "ArtifactUC.ListLessons")()
	if err := owner(userID); err != nil {
		return nil, err
	}
	offset, limit = page(offset, limit)
	return a.lessons.ListByUser(ctx, repository.NoTX, userID, offset, limit)
}

func (a *artifactUC) GetLesson(ctx context.Context, userID, id string) (*model.Lesson, error) {
	if err := ownerAndID(userID, id); err != nil {
		return nil, err
	}
	return a.lessons.FindByID(ctx, repository.NoTX, userID, id)
}

func (a *artifactUC) DeleteLesson(ctx context.Context, userID, id string) error {
	if err := ownerAndID(userID, id); err != nil {
		return err
	}
	return a.lessons.Delete(ctx, repository.NoTX, userID, id)
}

func (a *artifactUC) ListQuizzes(ctx context.Context, userID string, offset, limit int) ([]*model.Quiz, error) {
	defer logging.TraceDuration(a.log, "ArtifactUC.ListQuizzes")()
	if err := owner(userID); err != nil {
		return nil, err
	}
	offset, limit = page(offset, limit)
	return a.quizzes.ListByUser(ctx, repository.NoTX, userID, offset, limit)
}

func (a *artifactUC) GetQuiz(ctx context.Context, userID, id string) (*model.Quiz, error) {
	if err := ownerAndID(userID, id); err != nil {
		return nil, err
	}
	return a.quizzes.FindByID(ctx, repository.NoTX, userID, id)
}

func (a *artifactUC) DeleteQuiz(ctx context.Context, userID, id string) error {
	if err := ownerAndID(userID, id); err != nil {
		return err
	}
	return a.quizzes.Delete(ctx, repository.NoTX, userID, id)
}

func owner(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return domain.ErrNotAuthenticated
	}
	return nil
}

func ownerAndID(userID, id string) error {
	if err := owner(userID); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return domain.ErrInvalidArgument
	}
	return nil
}

func page(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return offset, limit
}
