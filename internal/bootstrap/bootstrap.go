// Package bootstrap builds the service graph shared by the api and sweeper
// binaries from a loaded Config.
package bootstrap

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"

	"productshot/internal/adapter/memstore"
	"productshot/internal/adapter/redisstore"
	"productshot/internal/adapter/repo"
	"productshot/internal/compliance"
	"productshot/internal/domain"
	"productshot/internal/infra"
	"productshot/internal/infra/credentials"
	"productshot/internal/ledger"
	"productshot/internal/orchestrator"
	"productshot/internal/providers/gemini"
	"productshot/internal/providers/image"
	"productshot/internal/ratelimit"
	"productshot/internal/storage"
)

const redisUsagePrefix = "productshot:usage"

// Services is the wired service graph. Close releases every connection it
// opened.
type Services struct {
	Pool         *pgxpool.Pool
	Runner       *infra.SQLRunner
	Jobs         domain.JobRepository
	Assets       domain.AssetRepository
	Ledger       *ledger.Ledger
	Limiter      *ratelimit.Limiter
	Store        storage.ObjectStore
	Files        *storage.FileStore
	Generator    image.Generator
	Orchestrator *orchestrator.Orchestrator

	closers []func() error
}

// Build connects to the database and the configured backends. base is the
// parent context of every generation pipeline.
func Build(ctx context.Context, base context.Context, cfg *infra.Config, logger infra.Logger) (*Services, error) {
	s := &Services{}
	ok := false
	defer func() {
		if !ok {
			_ = s.Close()
		}
	}()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.Pool = pool
	s.closers = append(s.closers, func() error { pool.Close(); return nil })
	s.Runner = infra.NewSQLRunner(pool, logger)
	s.Jobs = repo.NewJobRepository(s.Runner)
	s.Assets = repo.NewAssetRepository(s.Runner)
	s.Ledger = ledger.New(repo.NewLedgerRepository(s.Runner), logger)

	usage, err := s.usageStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	s.Limiter, err = ratelimit.New(usage, ratelimit.Limits{PerMinute: cfg.RateLimitPerMinute, PerDay: cfg.RateLimitPerDay}, logger)
	if err != nil {
		return nil, err
	}

	if err := s.objectStore(cfg); err != nil {
		return nil, err
	}
	if err := s.generator(ctx, cfg, logger); err != nil {
		return nil, err
	}

	engine, err := compliance.NewEngine(logger)
	if err != nil {
		return nil, err
	}
	s.Orchestrator, err = orchestrator.New(orchestrator.Deps{
		Jobs:      s.Jobs,
		Assets:    s.Assets,
		Limiter:   s.Limiter,
		Ledger:    s.Ledger,
		Engine:    engine,
		Store:     s.Store,
		Fetcher:   orchestrator.NewHTTPFetcher(nil, cfg.MaxUploadBytes),
		Generator: s.Generator,
		Base:      base,
	}, orchestrator.Config{
		InputBucket:       cfg.InputBucket,
		OutputBucket:      cfg.OutputBucket,
		SignedURLTTL:      cfg.SignedURLTTL,
		FetchTimeout:      cfg.FetchTimeout,
		JobTimeout:        cfg.JobTimeout,
		CostPerGeneration: cfg.CostPerGeneration,
	}, logger)
	if err != nil {
		return nil, err
	}

	ok = true
	return s, nil
}

func (s *Services) usageStore(ctx context.Context, cfg *infra.Config, logger infra.Logger) (domain.UsageRepository, error) {
	switch cfg.RateLimitBackend {
	case infra.RateLimitBackendRedis:
		rdb, err := infra.NewRedisClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, rdb.Close)
		logger.Info().Str("addr", cfg.RedisAddr).Msg("rate limiter: redis backend")
		return redisstore.NewUsageStore(rdb, redisUsagePrefix), nil
	case infra.RateLimitBackendMemory:
		logger.Warn().Msg("rate limiter: in-memory backend, limits are per process")
		return memstore.NewUsageStore(), nil
	default:
		return repo.NewUsageRepository(s.Runner), nil
	}
}

func (s *Services) objectStore(cfg *infra.Config) error {
	switch cfg.StorageDriver {
	case infra.StorageDriverSupabase:
		store, err := storage.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceKey)
		if err != nil {
			return err
		}
		s.Store = store
	default:
		path := cfg.StoragePath
		if !filepath.IsAbs(path) {
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
		}
		files, err := storage.NewFileStore(path, cfg.StorageBaseURL, cfg.StorageSigningSecret)
		if err != nil {
			return fmt.Errorf("configure storage: %w", err)
		}
		s.Store, s.Files = files, files
	}
	return nil
}

func (s *Services) generator(ctx context.Context, cfg *infra.Config, logger infra.Logger) error {
	key := credentials.ResolveGeminiAPIKey(ctx, cfg.GeminiAPIKey, credentials.NewStore(s.Runner), logger)
	if key == "" {
		logger.Warn().Msg("gemini api key missing, using synthetic image generation")
		s.Generator = image.NewSynthetic(logger)
		return nil
	}
	client, err := gemini.NewClient(ctx, gemini.Options{APIKey: key, Model: cfg.GeminiModel, Logger: logger})
	if err != nil {
		return err
	}
	s.closers = append(s.closers, client.Close)
	s.Generator = client
	return nil
}

// Close releases resources in reverse order of acquisition.
func (s *Services) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}
