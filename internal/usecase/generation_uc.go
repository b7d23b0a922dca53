package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ai-course-studio/internal/domain"
	"ai-course-studio/internal/domain/model"
	"ai-course-studio/internal/domain/ports/adapter"
	"ai-course-studio/internal/domain/ports/repository"
	"ai-course-studio/internal/infra/logging"
	"ai-course-studio/internal/infra/metrics"
)

// Compile-time check
var _ GenerationUseCase = (*generationUC)(nil)

// GenerationUseCase produces courses, lessons and quizzes on behalf of a user
// and charges them against the user's quota.
type GenerationUseCase interface {
	GenerateCourse(ctx context.Context, userID string, p model.CourseParams) (*model.Course, error)
	GenerateLesson(ctx context.Context, userID string, p model.LessonParams) (*model.Lesson, error)
	GenerateQuiz(ctx context.Context, userID string, p model.QuizParams) (*model.Quiz, error)
}

// RateLimiter is a fixed-window limiter keyed by string.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type GenerationSettings struct {
	CourseModel     string
	LessonModel     string
	QuizModel       string
	Temperature     float64
	MaxOutputTokens int
	Timeout         time.Duration

	// RatePerWindow <= 0 disables per-user rate limiting.
	RatePerWindow int
	RateWindow    time.Duration
}

type GenerationDeps struct {
	Entitlements EntitlementUseCase
	AI           adapter.AIServiceAdapter
	TxManager    repository.TransactionManager
	Courses      repository.CourseRepository
	Lessons      repository.LessonRepository
	Quizzes      repository.QuizRepository
	// Limiter is optional.
	Limiter RateLimiter
}

type generationUC struct {
	ent      EntitlementUseCase
	ai       adapter.AIServiceAdapter
	tm       repository.TransactionManager
	courses  repository.CourseRepository
	lessons  repository.LessonRepository
	quizzes  repository.QuizRepository
	limiter  RateLimiter
	settings GenerationSettings
	now      func() time.Time
	log      *zerolog.Logger
}

func NewGenerationUseCase(deps GenerationDeps, settings GenerationSettings, logger *zerolog.Logger) *generationUC {
	if settings.Timeout <= 0 {
		settings.Timeout = 90 * time.Second
	}
	l := logger.With().Str("component", "GenerationUC").Logger()
	return &generationUC{
		ent:      deps.Entitlements,
		ai:       deps.AI,
		tm:       deps.TxManager,
		courses:  deps.Courses,
		lessons:  deps.Lessons,
		quizzes:  deps.Quizzes,
		limiter:  deps.Limiter,
		settings: settings,
		now:      time.Now,
		log:      &l,
	}
}

func (g *generationUC) GenerateCourse(ctx context.Context, userID string, p model.CourseParams) (*model.Course, error) {
	defer logging.TraceDuration(g.log, "GenerationUC.GenerateCourse")()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return generate(ctx, g, userID, generationJob[*model.Course]{
		resource: model.ResourceCourses,
		model:    g.settings.CourseModel,
		messages: coursePrompt(p),
		build: func(raw []byte) (*model.Course, error) {
			var outline model.CourseOutline
			if err := json.Unmarshal(raw, &outline); err != nil {
				return nil, err
			}
			if err := outline.Validate(); err != nil {
				return nil, err
			}
			return model.NewCourse(userID, p, outline, g.now()), nil
		},
		save: func(ctx context.Context, tx repository.Tx, c *model.Course) error {
			return g.courses.Save(ctx, tx, c)
		},
	})
}

func (g *generationUC) GenerateLesson(ctx context.Context, userID string, p model.LessonParams) (*model.Lesson, error) {
	defer logging.TraceDuration(g.log, "GenerationUC.GenerateLesson")()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.CourseID != "" && strings.TrimSpace(userID) != "" {
		// The lesson may only hang off a course the user owns.
		if _, err := g.courses.FindByID(ctx, repository.NoTX, userID, p.CourseID); err != nil {
			return nil, err
		}
	}
	return generate(ctx, g, userID, generationJob[*model.Lesson]{
		resource: model.ResourceLessons,
		model:    g.settings.LessonModel,
		messages: lessonPrompt(p),
		build: func(raw []byte) (*model.Lesson, error) {
			var plan model.LessonPlan
			if err := json.Unmarshal(raw, &plan); err != nil {
				return nil, err
			}
			if err := plan.Validate(); err != nil {
				return nil, err
			}
			return model.NewLesson(userID, p, plan, g.now()), nil
		},
		save: func(ctx context.Context, tx repository.Tx, l *model.Lesson) error {
			return g.lessons.Save(ctx, tx, l)
		},
	})
}

func (g *generationUC) GenerateQuiz(ctx context.Context, userID string, p model.QuizParams) (*model.Quiz, error) {
	defer logging.TraceDuration(g.log, "GenerationUC.GenerateQuiz")()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return generate(ctx, g, userID, generationJob[*model.Quiz]{
		resource: model.ResourceQuizzes,
		model:    g.settings.QuizModel,
		messages: quizPrompt(p),
		build: func(raw []byte) (*model.Quiz, error) {
			var sheet model.QuizSheet
			if err := json.Unmarshal(raw, &sheet); err != nil {
				return nil, err
			}
			if err := sheet.Validate(); err != nil {
				return nil, err
			}
			return model.NewQuiz(userID, p, sheet, g.now()), nil
		},
		save: func(ctx context.Context, tx repository.Tx, q *model.Quiz) error {
			return g.quizzes.Save(ctx, tx, q)
		},
	})
}

// generationJob describes one artifact kind for generate.
type generationJob[T any] struct {
	resource model.Resource
	model    string
	messages []adapter.Message
	// build decodes the provider reply into the artifact.
	build func(raw []byte) (T, error)
	save  func(ctx context.Context, tx repository.Tx, v T) error
}

// generate runs check, generate, charge and persist in that order. Nothing is
// charged unless the provider returned a usable artifact, and the artifact is
// only stored in the same transaction that charged for it.
func generate[T any](ctx context.Context, g *generationUC, userID string, job generationJob[T]) (T, error) {
	var zero T
	log := logging.With(ctx, g.log).With().Str("resource", string(job.resource)).Logger()

	if strings.TrimSpace(userID) == "" {
		return zero, domain.ErrNotAuthenticated
	}
	if err := g.allow(ctx, userID); err != nil {
		return zero, err
	}

	if err := g.ent.Check(ctx, userID, job.resource, 1); err != nil {
		if errors.Is(err, domain.ErrQuotaExceeded) {
			metrics.IncGeneration(string(job.resource), "quota")
			return zero, err
		}
		if errors.Is(err, domain.ErrNotFound) {
			// First use: create the free record and check again.
			if _, err := g.ent.EnsureRecord(ctx, userID); err != nil {
				return zero, err
			}
			if err := g.ent.Check(ctx, userID, job.resource, 1); err != nil {
				return zero, err
			}
		} else {
			return zero, err
		}
	}

	req := adapter.ChatRequest{
		Model:       job.model,
		Messages:    job.messages,
		Temperature: g.settings.Temperature,
		MaxTokens:   g.settings.MaxOutputTokens,
		JSON:        true,
	}
	genCtx, cancel := context.WithTimeout(ctx, g.settings.Timeout)
	text, usage, err := g.ai.ChatWithUsage(genCtx, req)
	cancel()
	if err != nil {
		metrics.IncGeneration(string(job.resource), "failed")
		log.Warn().Err(err).Str("model", job.model).Msg("generation failed")
		return zero, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}

	artifact, err := job.build([]byte(extractJSON(text)))
	if err != nil {
		metrics.IncGeneration(string(job.resource), "failed")
		log.Warn().Err(err).Int("reply_len", len(text)).Msg("generation returned an unusable document")
		return zero, fmt.Errorf("%w: unusable reply: %v", domain.ErrGenerationFailed, err)
	}

	cost := g.tokenCost(ctx, job.model, job.messages, text, usage)
	charge := model.UsageOf(job.resource, 1)
	charge.Tokens = cost

	err = g.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := g.ent.Consume(ctx, tx, userID, charge); err != nil {
			return err
		}
		return job.save(ctx, tx, artifact)
	})
	if err != nil {
		if errors.Is(err, domain.ErrQuotaExceeded) {
			metrics.IncGeneration(string(job.resource), "discarded")
			log.Info().Err(err).Int64("tokens", cost).Msg("generated artifact discarded: quota exceeded at charge time")
		} else {
			log.Error().Err(err).Msg("failed to record generation")
		}
		return zero, err
	}

	metrics.IncGeneration(string(job.resource), "ok")
	log.Info().Int64("tokens", cost).Str("model", job.model).Msg("artifact generated")
	return artifact, nil
}

func (g *generationUC) allow(ctx context.Context, userID string) error {
	if g.limiter == nil || g.settings.RatePerWindow <= 0 {
		return nil
	}
	ok, err := g.limiter.Allow(ctx, fmt.Sprintf("rate_limit:%s:generate", userID), g.settings.RatePerWindow, g.settings.RateWindow)
	if err != nil {
		// The quota gate still applies; a limiter outage only loses throttling.
		logging.With(ctx, g.log).Warn().Err(err).Msg("rate limiter unavailable")
		return nil
	}
	if !ok {
		return domain.ErrRateLimited
	}
	return nil
}

// tokenCost is the provider-reported total, or an estimate of prompt plus
// reply when the provider reported none.
func (g *generationUC) tokenCost(ctx context.Context, modelName string, messages []adapter.Message, reply string, u adapter.Usage) int64 {
	if u.TotalTokens > 0 {
		return int64(u.TotalTokens)
	}
	if n := u.PromptTokens + u.CompletionTokens; n > 0 {
		return int64(n)
	}
	all := append(append([]adapter.Message(nil), messages...), adapter.Message{Role: "assistant", Content: reply})
	if n, err := g.ai.CountTokens(ctx, modelName, all); err == nil && n > 0 {
		return int64(n)
	}
	var size int
	for _, m := range all {
		size += len(m.Content)
	}
	return int64(size+3) / 4
}
