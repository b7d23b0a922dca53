package model

import (
	"strings"
	"time"

	"ai-course-studio/internal/domain"

	"github.com/oklog/ulid/v2"
)

// CourseOutline is the structured course the generator returns.
type CourseOutline struct {
	Title      string         `json:"title"`
	Overview   string         `json:"overview"`
	Objectives []string       `json:"objectives"`
	Modules    []CourseModule `json:"modules"`
}

type CourseModule struct {
	Title   string          `json:"title"`
	Lessons []LessonSummary `json:"lessons"`
}

type LessonSummary struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Validate checks the outline has the fields the course views rely on.
func (o *CourseOutline) Validate() error {
	if strings.TrimSpace(o.Title) == "" || len(o.Modules) == 0 {
		return domain.ErrInvalidArgument
	}
	for _, m := range o.Modules {
		if strings.TrimSpace(m.Title) == "" {
			return domain.ErrInvalidArgument
		}
	}
	return nil
}

// CourseParams are the user inputs of a course generation.
type CourseParams struct {
	Topic    string `json:"topic"`
	Audience string `json:"audience"`
	Duration string `json:"duration"`
}

func (p CourseParams) Validate() error {
	if strings.TrimSpace(p.Topic) == "" || strings.TrimSpace(p.Audience) == "" || strings.TrimSpace(p.Duration) == "" {
		return domain.ErrInvalidArgument
	}
	return nil
}

// Course is a generated course owned by one user.
type Course struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	Title     string        `json:"title"`
	Topic     string        `json:"topic"`
	Audience  string        `json:"audience"`
	Duration  string        `json:"duration"`
	Outline   CourseOutline `json:"outline"`
	Shared    bool          `json:"shared"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func NewCourse(userID string, p CourseParams, outline CourseOutline, now time.Time) *Course {
	now = now.UTC()
	return &Course{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Title:     outline.Title,
		Topic:     p.Topic,
		Audience:  p.Audience,
		Duration:  p.Duration,
		Outline:   outline,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
