package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"productshot/internal/bootstrap"
	"productshot/internal/http/handlers"
	httpapi "productshot/internal/http/httpapi"
	"productshot/internal/infra"
	"productshot/internal/infra/geoip"
	"productshot/internal/middleware"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Pipelines outlive requests and are drained on shutdown, so they hang
	// off their own context rather than the signal context.
	pipelineCtx, cancelPipelines := context.WithCancel(context.Background())
	defer cancelPipelines()

	svc, err := bootstrap.Build(ctx, pipelineCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build services")
	}
	defer svc.Close()

	var lookup middleware.CountryLookup
	geo, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if geo != nil {
		defer geo.Close()
		lookup = geo.CountryCode
	}

	app := &handlers.App{
		Config:       cfg,
		Logger:       logger,
		Orchestrator: svc.Orchestrator,
		Assets:       svc.Assets,
		Ledger:       svc.Ledger,
		Limiter:      svc.Limiter,
		Store:        svc.Store,
		Files:        svc.Files,
		DB:           svc.Pool,
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:     cfg.JWTSecret,
		CORSOrigins:   cfg.CORSOrigins,
		CountryLookup: lookup,
	})
	server := infra.NewHTTPServer(cfg, router, nil)

	go svc.RunSweeper(ctx, cfg.SweepInterval, cfg.JobStaleAfter, logger)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.JobTimeout+5*time.Second)
	defer cancelDrain()
	if !svc.Orchestrator.WaitContext(drainCtx) {
		logger.Warn().Msg("in-flight jobs still running at exit; the sweeper will reconcile them")
		cancelPipelines()
	}
	logger.Info().Msg("server stopped")
}
