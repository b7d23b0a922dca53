package model

import (
	"strings"
	"time"

	"ai-course-studio/internal/domain"

	"github.com/oklog/ulid/v2"
)

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multipleChoice"
	QuestionFillInBlanks   QuestionType = "fillInBlanks"
	QuestionTrueFalse      QuestionType = "trueFalse"
	QuestionShortAnswer    QuestionType = "shortAnswer"
)

// QuizSheet is the structured quiz the generator returns.
type QuizSheet struct {
	Title          string               `json:"title"`
	Difficulty     Difficulty           `json:"difficulty"`
	MultipleChoice []MultipleChoiceItem `json:"multipleChoice,omitempty"`
	FillInBlanks   []AnswerItem         `json:"fillInBlanks,omitempty"`
	TrueFalse      []TrueFalseItem      `json:"trueFalse,omitempty"`
	ShortAnswer    []AnswerItem         `json:"shortAnswer,omitempty"`
}

type MultipleChoiceItem struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

type AnswerItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type TrueFalseItem struct {
	Statement string `json:"statement"`
	Answer    bool   `json:"answer"`
}

func (q *QuizSheet) Questions() int {
	return len(q.MultipleChoice) + len(q.FillInBlanks) + len(q.TrueFalse) + len(q.ShortAnswer)
}

func (q *QuizSheet) Validate() error {
	if q.Questions() == 0 {
		return domain.ErrInvalidArgument
	}
	return nil
}

// QuizParams are the user inputs of a quiz generation.
type QuizParams struct {
	Topic         string         `json:"topic"`
	Difficulty    Difficulty     `json:"difficulty"`
	QuestionTypes []QuestionType `json:"question_types"`
	// PerType is the number of questions of each type; 0 means DefaultQuestionsPerType.
	PerType int `json:"per_type,omitempty"`
}

const (
	DefaultQuestionsPerType = 3
	MaxQuestionsPerType     = 10
)

// Count returns the effective number of questions per type.
func (p QuizParams) Count() int {
	if p.PerType <= 0 {
		return DefaultQuestionsPerType
	}
	return p.PerType
}

func (p QuizParams) Validate() error {
	if strings.TrimSpace(p.Topic) == "" {
		return domain.ErrInvalidArgument
	}
	switch p.Difficulty {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
	default:
		return domain.ErrInvalidArgument
	}
	if len(p.QuestionTypes) == 0 || p.PerType < 0 || p.PerType > MaxQuestionsPerType {
		return domain.ErrInvalidArgument
	}
	for _, t := range p.QuestionTypes {
		switch t {
		case QuestionMultipleChoice, QuestionFillInBlanks, QuestionTrueFalse, QuestionShortAnswer:
		default:
			return domain.ErrInvalidArgument
		}
	}
	return nil
}

// Quiz is a generated quiz owned by one user.
type Quiz struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Topic      string     `json:"topic"`
	Difficulty Difficulty `json:"difficulty"`
	Sheet      QuizSheet  `json:"sheet"`
	CreatedAt  time.Time  `json:"created_at"`
}

func NewQuiz(userID string, p QuizParams, sheet QuizSheet, now time.Time) *Quiz {
	if sheet.Difficulty == "" {
		sheet.Difficulty = p.Difficulty
	}
	return &Quiz{
		ID:         ulid.Make().String(),
		UserID:     userID,
		Topic:      p.Topic,
		Difficulty: p.Difficulty,
		Sheet:      sheet,
		CreatedAt:  now.UTC(),
	}
}
