package ai

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ai-course-studio/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAIAdapter)(nil)

// NoopAIAdapter answers every chat with a fixed JSON document for local runs
// without provider keys. The reply shape is picked from the system prompt.
type NoopAIAdapter struct {
	log    *zerolog.Logger
	delay  time.Duration
	tokens *TokenEstimator
}

func NewNoopAIAdapter(logger *zerolog.Logger) *NoopAIAdapter {
	l := logger.With().Str("component", "NoopAI").Logger()
	return &NoopAIAdapter{log: &l, delay: 100 * time.Millisecond, tokens: NewTokenEstimator()}
}

func (a *NoopAIAdapter) Provider() string { return "noop" }

func (a *NoopAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	return []string{"noop-model"}, nil
}

func (a *NoopAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return a.tokens.Messages(model, messages), nil
}

func (a *NoopAIAdapter) ChatWithUsage(ctx context.Context, req adapter.ChatRequest) (string, adapter.Usage, error) {
	select {
	case <-time.After(a.delay):
	case <-ctx.Done():
		return "", adapter.Usage{}, ctx.Err()
	}

	reply := noopCourse
	for _, m := range req.Messages {
		if m.Role != "system" {
			continue
		}
		s := strings.ToLower(m.Content)
		switch {
		case strings.Contains(s, "course designer"):
			reply = noopCourse
		case strings.Contains(s, "quiz"):
			reply = noopQuiz
		case strings.Contains(s, "lesson"):
			reply = noopLesson
		}
	}
	u := adapter.Usage{
		PromptTokens:     roughTokens(joinContent(req.Messages)),
		CompletionTokens: roughTokens(reply),
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
	a.log.Debug().Str("model", req.Model).Int("tokens", u.TotalTokens).Msg("noop chat")
	return reply, u, nil
}

func joinContent(msgs []adapter.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	return b.String()
}

const noopCourse = `{
  "title": "Sample Course",
  "overview": "A placeholder course produced without a model provider.",
  "objectives": ["Understand the basics", "Practice with examples"],
  "modules": [
    {"title": "Getting Started", "lessons": [
      {"title": "Introduction", "description": "What the course covers."},
      {"title": "Setup", "description": "Preparing your environment."}
    ]},
    {"title": "Core Ideas", "lessons": [
      {"title": "Fundamentals", "description": "The main concepts."}
    ]}
  ]
}`

const noopLesson = `{
  "title": "Introduction",
  "moduleTitle": "Getting Started",
  "objectives": ["Know what the course covers"],
  "keyConcepts": ["scope", "outcomes"],
  "explanation": "This placeholder lesson stands in for generated content.",
  "examples": ["A short worked example."],
  "exercises": [{"description": "Summarize the course goals.", "solution": "Any faithful summary."}],
  "summary": "You now know what comes next."
}`

const noopQuiz = `{
  "title": "Sample Quiz",
  "difficulty": "beginner",
  "multipleChoice": [
    {"question": "Which option is correct?", "options": ["A", "B", "C", "D"], "correctAnswer": "A"}
  ],
  "trueFalse": [
    {"statement": "This quiz is a placeholder.", "answer": true}
  ]
}`
