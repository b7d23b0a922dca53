//go:build !integration

package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-course-studio/internal/domain"
	"ai-course-studio/internal/domain/model"
	"ai-course-studio/internal/usecase"
)

func TestArtifactUseCase(t *testing.T) {
	ctx := context.Background()
	outline := model.CourseOutline{Title: "Go", Modules: []model.CourseModule{{Title: "Basics"}}}

	arrange := func(t *testing.T) (usecase.ArtifactUseCase, *memArtifacts[*model.Course], *memArtifacts[*model.Lesson], *memArtifacts[*model.Quiz]) {
		t.Helper()
		courses, lessons, quizzes := newMemCourses(), newMemLessons(), newMemQuizzes()
		return usecase.NewArtifactUseCase(courses, lessons, quizzes, newTestLogger()), courses, lessons, quizzes
	}

	t.Run("lists only the caller's courses", func(t *testing.T) {
		uc, courses, _, _ := arrange(t)
		for i := 0; i < 3; i++ {
			require.NoError(t, courses.Save(ctx, nil, model.NewCourse("u1", courseParams, outline, jan10)))
		}
		require.NoError(t, courses.Save(ctx, nil, model.NewCourse("u2", courseParams, outline, jan10)))

		got, err := uc.ListCourses(ctx, "u1", 0, 0)
		require.NoError(t, err)
		assert.Len(t, got, 3)

		got, err = uc.ListCourses(ctx, "u1", 1, 1)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("other users' artifacts are not found", func(t *testing.T) {
		uc, courses, lessons, quizzes := arrange(t)
		c := model.NewCourse("u2", courseParams, outline, jan10)
		l := model.NewLesson("u2", lessonParams, model.LessonPlan{Title: "T", Explanation: "E"}, jan10)
		q := model.NewQuiz("u2", quizParams, model.QuizSheet{TrueFalse: []model.TrueFalseItem{{Statement: "s"}}}, jan10)
		require.NoError(t, courses.Save(ctx, nil, c))
		require.NoError(t, lessons.Save(ctx, nil, l))
		require.NoError(t, quizzes.Save(ctx, nil, q))

		_, err := uc.GetCourse(ctx, "u1", c.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = uc.GetLesson(ctx, "u1", l.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = uc.GetQuiz(ctx, "u1", q.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, uc.DeleteCourse(ctx, "u1", c.ID), domain.ErrNotFound)
		assert.ErrorIs(t, uc.ShareCourse(ctx, "u1", c.ID, true), domain.ErrNotFound)
		assert.Equal(t, 1, courses.count())
	})

	t.Run("owner can share and delete", func(t *testing.T) {
		uc, courses, _, quizzes := arrange(t)
		c := model.NewCourse("u1", courseParams, outline, jan10)
		q := model.NewQuiz("u1", quizParams, model.QuizSheet{TrueFalse: []model.TrueFalseItem{{Statement: "s"}}}, jan10)
		require.NoError(t, courses.Save(ctx, nil, c))
		require.NoError(t, quizzes.Save(ctx, nil, q))

		require.NoError(t, uc.ShareCourse(ctx, "u1", c.ID, true))
		assert.True(t, courses.shared[c.ID])
		require.NoError(t, uc.DeleteCourse(ctx, "u1", c.ID))
		require.NoError(t, uc.DeleteQuiz(ctx, "u1", q.ID))
		assert.Zero(t, courses.count())
		assert.Zero(t, quizzes.count())
	})

	t.Run("validates caller and id", func(t *testing.T) {
		uc, _, _, _ := arrange(t)

		_, err := uc.ListLessons(ctx, "", 0, 10)
		assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
		_, err = uc.GetQuiz(ctx, "u1", "")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		assert.ErrorIs(t, uc.DeleteLesson(ctx, "u1", " "), domain.ErrInvalidArgument)
	})
}
