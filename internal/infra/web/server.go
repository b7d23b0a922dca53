package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"ai-course-studio/internal/infra/i18n"
	"ai-course-studio/internal/infra/metrics"
	"ai-course-studio/internal/usecase"
)

// Pinger is a dependency the health check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Entitlements usecase.EntitlementUseCase
	Generation   usecase.GenerationUseCase
	Artifacts    usecase.ArtifactUseCase
	Billing      usecase.BillingUseCase
	Auth         *AuthManager
	Translator   *i18n.Translator
	// Checks are pinged by /health, keyed by name.
	Checks map[string]Pinger
}

// Server is the JSON API consumed by the web client.
type Server struct {
	ent       usecase.EntitlementUseCase
	gen       usecase.GenerationUseCase
	artifacts usecase.ArtifactUseCase
	billing   usecase.BillingUseCase
	auth      *AuthManager
	tr        *i18n.Translator
	checks    map[string]Pinger
	log       *zerolog.Logger
}

func NewServer(deps Deps, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "web").Logger()
	return &Server{
		ent:       deps.Entitlements,
		gen:       deps.Generation,
		artifacts: deps.Artifacts,
		billing:   deps.Billing,
		auth:      deps.Auth,
		tr:        deps.Translator,
		checks:    deps.Checks,
		log:       &l,
	}
}

type RouterOptions struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// Routes builds the full router: middleware chain, public health routes and the
// authenticated /api/v1 surface.
func (s *Server) Routes(opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log), CORS(opts.AllowedOrigins))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Timeout(opts.RequestTimeout), s.Authenticate)

		r.Get("/subscription", s.handleUsage)

		r.Post("/courses", s.handleGenerateCourse)
		r.Get("/courses", s.handleListCourses)
		r.Get("/courses/{id}", s.handleGetCourse)
		r.Put("/courses/{id}/share", s.handleShareCourse)
		r.Delete("/courses/{id}", s.handleDeleteCourse)

		r.Post("/lessons", s.handleGenerateLesson)
		r.Get("/lessons", s.handleListLessons)
		r.Get("/lessons/{id}", s.handleGetLesson)
		r.Delete("/lessons/{id}", s.handleDeleteLesson)

		r.Post("/quizzes", s.handleGenerateQuiz)
		r.Get("/quizzes", s.handleListQuizzes)
		r.Get("/quizzes/{id}", s.handleGetQuiz)
		r.Delete("/quizzes/{id}", s.handleDeleteQuiz)

		r.Post("/billing/paypal/confirm", s.handleConfirmBilling)
		r.Post("/billing/cancel", s.handleCancelBilling)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	out := map[string]string{}
	for name, p := range s.checks {
		if err := p.Ping(ctx); err != nil {
			s.log.Warn().Err(err).Str("check", name).Msg("health check failed")
			out[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		out[name] = "ok"
	}
	writeJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": out})
}
