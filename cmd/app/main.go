package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ai-course-studio/internal/config"
	"ai-course-studio/internal/domain/model"
	"ai-course-studio/internal/domain/ports/adapter"
	aiAdapters "ai-course-studio/internal/infra/adapters/ai"
	payAdapters "ai-course-studio/internal/infra/adapters/payment"
	pg "ai-course-studio/internal/infra/db/postgres"
	"ai-course-studio/internal/infra/i18n"
	"ai-course-studio/internal/infra/logging"
	"ai-course-studio/internal/infra/metrics"
	red "ai-course-studio/internal/infra/redis"
	"ai-course-studio/internal/infra/sched"
	"ai-course-studio/internal/infra/web"
	"ai-course-studio/internal/infra/worker"
	"ai-course-studio/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode: console logs, noop AI and billing when keys are missing")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("exited with error")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	if cfg.Database.AutoMigrate {
		if err := pg.Migrate(ctx, pool, "up"); err != nil {
			return err
		}
	}

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// ---- Repositories ----
	subRepo := pg.NewSubscriptionRepoCacheDecorator(pg.NewPostgresSubscriptionRepo(pool), redisClient, cfg.Redis.TTL, logger)
	courseRepo := pg.NewPostgresCourseRepo(pool)
	lessonRepo := pg.NewPostgresLessonRepo(pool)
	quizRepo := pg.NewPostgresQuizRepo(pool)
	txm := pg.NewTxManager(pool)

	// ---- AI ----
	ai, err := buildAI(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// ---- Billing ----
	var gw adapter.BillingGateway
	if cfg.PayPal.ClientID != "" && cfg.PayPal.ClientSecret != "" {
		gw, err = payAdapters.NewPayPalGateway(cfg.PayPal.ClientID, cfg.PayPal.ClientSecret, cfg.PayPal.BaseURL)
		if err != nil {
			return err
		}
	} else {
		logger.Warn().Msg("paypal credentials missing; billing confirm will not find any subscription")
		gw = payAdapters.NewNoopBillingGateway()
	}
	planTiers := make(map[string]model.Tier, len(cfg.PayPal.PlanTiers))
	for plan, t := range cfg.PayPal.PlanTiers {
		tier, err := model.ParseTier(t)
		if err != nil {
			return err
		}
		planTiers[plan] = tier
	}

	// ---- Use cases ----
	entUC := usecase.NewEntitlementUseCase(subRepo, logger)
	genUC := usecase.NewGenerationUseCase(usecase.GenerationDeps{
		Entitlements: entUC,
		AI:           ai,
		TxManager:    txm,
		Courses:      courseRepo,
		Lessons:      lessonRepo,
		Quizzes:      quizRepo,
		Limiter:      red.NewRateLimiter(redisClient),
	}, usecase.GenerationSettings{
		CourseModel:     cfg.AI.CourseModel,
		LessonModel:     cfg.AI.LessonModel,
		QuizModel:       cfg.AI.QuizModel,
		Temperature:     cfg.AI.Temperature,
		MaxOutputTokens: cfg.AI.MaxOutputTokens,
		Timeout:         cfg.AI.Timeout,
		RatePerWindow:   cfg.RateLimit.GenerationsPerWindow,
		RateWindow:      cfg.RateLimit.Window,
	}, logger)
	artUC := usecase.NewArtifactUseCase(courseRepo, lessonRepo, quizRepo, logger)
	billUC := usecase.NewBillingUseCase(entUC, subRepo, gw, planTiers, logger)

	// ---- HTTP ----
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		return err
	}
	srv := web.NewServer(web.Deps{
		Entitlements: entUC,
		Generation:   genUC,
		Artifacts:    artUC,
		Billing:      billUC,
		Auth:         web.NewAuthManager(cfg.Auth),
		Translator:   tr,
		Checks: map[string]web.Pinger{
			"postgres": pool,
			"redis":    redisClient,
		},
	}, logger)
	httpServer := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: srv.Routes(web.RouterOptions{
			RequestTimeout: cfg.HTTP.RequestTimeout,
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", httpServer.Addr).Msg("http listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		logger.Info().Msg("shutting down http server")
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		pg.ReportPoolStats(gctx, pool, 15*time.Second)
		return nil
	})

	// ---- Period reset sweep ----
	if cfg.Quota.SweepInterval > 0 {
		workers := worker.NewPool(cfg.Quota.SweepWorkers, logger)
		workers.Start(gctx)
		defer workers.Stop()
		rw := sched.NewResetWorker(cfg.Quota.SweepInterval, cfg.Quota.SweepBatchSize, entUC, red.NewLocker(redisClient), workers, logger)
		g.Go(func() error {
			if err := rw.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	err = g.Wait()
	logger.Info().Msg("stopped")
	return err
}

// buildAI wires the configured providers behind one routing adapter with a
// concurrency cap and metrics.
func buildAI(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (adapter.AIServiceAdapter, error) {
	providers := map[string]adapter.AIServiceAdapter{}
	if cfg.AI.OpenAIKey != "" {
		var opts []aiAdapters.OpenAIOption
		if cfg.AI.OpenAIBaseURL != "" {
			opts = append(opts, aiAdapters.WithOpenAIBaseURL(cfg.AI.OpenAIBaseURL))
		}
		opts = append(opts, aiAdapters.WithOpenAITimeout(cfg.AI.Timeout))
		oa, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.CourseModel, opts...)
		if err != nil {
			return nil, err
		}
		providers["openai"] = oa
	}
	if cfg.AI.GeminiKey != "" {
		gm, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.CourseModel, cfg.AI.MaxOutputTokens)
		if err != nil {
			return nil, err
		}
		providers["gemini"] = gm
	}
	if len(providers) == 0 {
		// Config validation only lets this happen in dev mode.
		logger.Warn().Msg("no AI provider key configured; using noop generator")
		providers[cfg.AI.DefaultProvider] = aiAdapters.NewNoopAIAdapter(logger)
	}

	multi := aiAdapters.NewMultiAIAdapter(cfg.AI.DefaultProvider, providers, nil)
	return aiAdapters.NewInstrumentedAI(aiAdapters.NewLimitedAI(multi, cfg.AI.ConcurrentLimit)), nil
}
