package model

import (
	"strings"
	"time"

	"ai-course-studio/internal/domain"

	"github.com/oklog/ulid/v2"
)

// LessonPlan is the structured lesson the generator returns.
type LessonPlan struct {
	Title       string     `json:"title"`
	ModuleTitle string     `json:"moduleTitle"`
	Objectives  []string   `json:"objectives"`
	KeyConcepts []string   `json:"keyConcepts"`
	Explanation string     `json:"explanation"`
	Examples    []string   `json:"examples"`
	Exercises   []Exercise `json:"exercises"`
	Summary     string     `json:"summary"`
}

type Exercise struct {
	Description string `json:"description"`
	Solution    string `json:"solution,omitempty"`
}

func (p *LessonPlan) Validate() error {
	if strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.Explanation) == "" {
		return domain.ErrInvalidArgument
	}
	return nil
}

// LessonParams are the user inputs of a lesson generation.
type LessonParams struct {
	CourseID    string `json:"course_id,omitempty"`
	ModuleTitle string `json:"module_title"`
	LessonTitle string `json:"lesson_title"`
}

func (p LessonParams) Validate() error {
	if strings.TrimSpace(p.ModuleTitle) == "" || strings.TrimSpace(p.LessonTitle) == "" {
		return domain.ErrInvalidArgument
	}
	return nil
}

// Lesson is a generated lesson owned by one user, optionally attached to a course.
type Lesson struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	CourseID    string     `json:"course_id,omitempty"`
	ModuleTitle string     `json:"module_title"`
	LessonTitle string     `json:"lesson_title"`
	Plan        LessonPlan `json:"plan"`
	CreatedAt   time.Time  `json:"created_at"`
}

func NewLesson(userID string, p LessonParams, plan LessonPlan, now time.Time) *Lesson {
	return &Lesson{
		ID:          ulid.Make().String(),
		UserID:      userID,
		CourseID:    p.CourseID,
		ModuleTitle: p.ModuleTitle,
		LessonTitle: p.LessonTitle,
		Plan:        plan,
		CreatedAt:   now.UTC(),
	}
}
