package usecase

import (
	"fmt"
	"strings"

	"ai-course-studio/internal/domain/model"
	"ai-course-studio/internal/domain/ports/adapter"
)

const (
	courseSystemPrompt = "You are an expert course designer who creates well-structured, practical course outlines. Reply with a single JSON object and nothing else."
	lessonSystemPrompt = "You are an expert instructor who creates clear, comprehensive lesson plans. Reply with a single JSON object and nothing else."
	quizSystemPrompt   = "You are an expert quiz creator who generates clear, well-structured educational quizzes. Reply with a single JSON object and nothing else."
)

func coursePrompt(p model.CourseParams) []adapter.Message {
	user := fmt.Sprintf(`Create a detailed course outline for:
Topic: %s
Target Audience: %s
Duration: %s

Keep it practical and focused. Use exactly this JSON shape:
{
  "title": "course title",
  "overview": "two or three sentences",
  "objectives": ["learning objective"],
  "modules": [
    {"title": "module title", "lessons": [{"title": "lesson title", "description": "one sentence"}]}
  ]
}`, p.Topic, p.Audience, p.Duration)
	return []adapter.Message{
		{Role: "system", Content: courseSystemPrompt},
		{Role: "user", Content: user},
	}
}

func lessonPrompt(p model.LessonParams) []adapter.Message {
	user := fmt.Sprintf(`Create a detailed lesson plan for:
Module: %s
Lesson: %s

Cover learning objectives, key concepts, a detailed explanation, examples and
practice exercises, then close with a summary. Make it comprehensive but easy to
understand. Use exactly this JSON shape:
{
  "title": "lesson title",
  "moduleTitle": "module title",
  "objectives": ["objective"],
  "keyConcepts": ["concept"],
  "explanation": "markdown text",
  "examples": ["example, code allowed"],
  "exercises": [{"description": "task", "solution": "answer"}],
  "summary": "short recap"
}`, p.ModuleTitle, p.LessonTitle)
	return []adapter.Message{
		{Role: "system", Content: lessonSystemPrompt},
		{Role: "user", Content: user},
	}
}

var questionTypeHints = map[model.QuestionType]string{
	model.QuestionMultipleChoice: `"multipleChoice": [{"question": "...", "options": ["A", "B", "C", "D"], "correctAnswer": "A"}]`,
	model.QuestionFillInBlanks:   `"fillInBlanks": [{"question": "sentence with _____ for the blank", "answer": "..."}]`,
	model.QuestionTrueFalse:      `"trueFalse": [{"statement": "...", "answer": true}]`,
	model.QuestionShortAnswer:    `"shortAnswer": [{"question": "...", "answer": "brief answer"}]`,
}

func quizPrompt(p model.QuizParams) []adapter.Message {
	var counts, shape []string
	for _, t := range p.QuestionTypes {
		counts = append(counts, fmt.Sprintf("- %d %s questions", p.Count(), t))
		shape = append(shape, "  "+questionTypeHints[t])
	}
	user := fmt.Sprintf(`Generate a quiz on %s for a %s level student.
The quiz should include:
%s

Multiple-choice questions have exactly 4 options. Use exactly this JSON shape,
with only the sections requested above:
{
  "title": "quiz title",
  "difficulty": "%s",
%s
}`, p.Topic, p.Difficulty, strings.Join(counts, "\n"), p.Difficulty, strings.Join(shape, ",\n"))
	return []adapter.Message{
		{Role: "system", Content: quizSystemPrompt},
		{Role: "user", Content: user},
	}
}

// extractJSON trims code fences and any prose around the outermost object.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return strings.TrimSpace(s)
	}
	return s[start : end+1]
}
