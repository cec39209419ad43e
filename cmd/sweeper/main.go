package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"productshot/internal/bootstrap"
	"productshot/internal/infra"
)

func main() {
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "sweeper").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := bootstrap.Build(ctx, ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build services")
	}
	defer svc.Close()

	if *once {
		res, err := svc.SweepOnce(ctx, cfg.JobStaleAfter, logger)
		if err != nil {
			logger.Error().Err(err).Msg("sweep failed")
			svc.Close()
			os.Exit(1)
		}
		logger.Info().Int("failed", res.Failed).Int("succeeded", res.Succeeded).Int("skipped", res.Skipped).Msg("sweep complete")
		return
	}

	logger.Info().Dur("interval", cfg.SweepInterval).Dur("stale_after", cfg.JobStaleAfter).Msg("sweeper started")
	svc.RunSweeper(ctx, cfg.SweepInterval, cfg.JobStaleAfter, logger)
	logger.Info().Msg("sweeper stopped")
}
