package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"

	"ai-course-studio/internal/config"
	pg "ai-course-studio/internal/infra/db/postgres"
	"ai-course-studio/internal/infra/logging"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Usage = func() {
		_, _ = os.Stderr.WriteString("usage: migrate [-config path] up|down|status|reset\n")
	}
	flag.Parse()
	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	// Migrations need only the database; dev mode skips the AI key check.
	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, command); err != nil {
		logger.Fatal().Err(err).Str("command", command).Msg("migrate failed")
	}
	logger.Info().Str("command", command).Msg("migrate done")
}
