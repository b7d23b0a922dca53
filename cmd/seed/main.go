package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ai-course-studio/internal/config"
	"ai-course-studio/internal/domain/model"
	pg "ai-course-studio/internal/infra/db/postgres"
	"ai-course-studio/internal/infra/logging"
	"ai-course-studio/internal/infra/web"
	"ai-course-studio/internal/usecase"
)

// seed prepares a user for manual end-to-end testing: it ensures the
// subscription record, applies the requested tier and prints a bearer token
// the API accepts.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	userID := flag.String("user", "", "user id (random uuid when empty)")
	email := flag.String("email", "dev@example.com", "email claim for the token")
	tierFlag := flag.String("tier", "free", "tier to apply: free|basic|pro")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, true)

	tier, err := model.ParseTier(*tierFlag)
	if err != nil {
		logger.Fatal().Str("tier", *tierFlag).Msg("unknown tier")
	}
	if *userID == "" {
		*userID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	ent := usecase.NewEntitlementUseCase(pg.NewPostgresSubscriptionRepo(pool), logger)
	if _, err := ent.EnsureRecord(ctx, *userID); err != nil {
		logger.Fatal().Err(err).Msg("ensure record")
	}
	rec, err := ent.ApplyTierChange(ctx, *userID, tier, "")
	if err != nil {
		logger.Fatal().Err(err).Msg("apply tier")
	}

	token, err := web.NewAuthManager(cfg.Auth).Mint(*userID, *email, *ttl)
	if err != nil {
		logger.Fatal().Err(err).Msg("mint token")
	}
	fmt.Printf("user:   %s\ntier:   %s\nperiod: %s\ntoken:  %s\n", rec.UserID, rec.Tier, rec.PeriodStart.Format(time.RFC3339), token)
}
