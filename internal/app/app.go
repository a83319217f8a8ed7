// Package app wires the image pipeline from configuration. Every binary in
// cmd/ builds its dependencies through Build so the API, the cron worker and
// the operator CLI share one object graph.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/siva27neelam/story-telling/internal/compression"
	"github.com/siva27neelam/story-telling/internal/migration"
	"github.com/siva27neelam/story-telling/internal/optimizer"
	"github.com/siva27neelam/story-telling/internal/pipeline"
	"github.com/siva27neelam/story-telling/internal/records"
	"github.com/siva27neelam/story-telling/pkg/config"
	"github.com/siva27neelam/story-telling/pkg/db"
	"github.com/siva27neelam/story-telling/pkg/logger"
	"github.com/siva27neelam/story-telling/pkg/metrics"
	"github.com/siva27neelam/story-telling/pkg/migrate"
	"github.com/siva27neelam/story-telling/pkg/redis"
	"github.com/siva27neelam/story-telling/pkg/storage"
	"github.com/siva27neelam/story-telling/pkg/storage/gcs"
	"github.com/siva27neelam/story-telling/pkg/storage/memstore"
	"github.com/siva27neelam/story-telling/pkg/tinify"
)

// LoadConfig reads .env, parses the environment and returns a logger
// configured for service.
func LoadConfig(service string) (*config.Config, *logger.Logger, error) {
	logg := logger.New(logger.Options{ServiceName: service})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, logg, err
	}
	cfg.Service.Kind = service

	logg = logger.New(logger.Options{
		ServiceName: service,
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})
	return cfg, logg, nil
}

// App is the wired pipeline plus the clients it owns.
type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Redis    *redis.Client
	GCS      *gcs.Client
	Store    storage.ObjectStore
	Buckets  storage.Buckets
	Sources  []records.Source
	Registry *prometheus.Registry
	Metrics  *metrics.PipelineMetrics
	Pipeline *pipeline.Pipeline

	closers []func() error
}

// Build connects to every configured dependency and assembles the pipeline.
// Redis and the remote optimizer are optional: without redis, run status is
// kept in memory; without a TinyPNG key, remote optimization is unavailable.
func Build(ctx context.Context, cfg *config.Config, logg *logger.Logger) (_ *App, err error) {
	a := &App{Config: cfg, Logger: logg, Registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.NewPipelineMetrics(a.Registry)

	a.DB, err = db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	a.closers = append(a.closers, a.DB.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, a.DB); err != nil {
		return nil, fmt.Errorf("dev migrations: %w", err)
	}

	if cfg.Redis.Enabled() {
		a.Redis, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		a.closers = append(a.closers, a.Redis.Close)
	} else {
		logg.Warn(ctx, "redis not configured; run status and locks are process-local")
	}

	if err := a.buildStore(ctx); err != nil {
		return nil, err
	}

	a.Sources = []records.Source{
		records.NewCoverRepository(a.DB.DB(), a.Buckets.Covers),
		records.NewPageRepository(a.DB.DB(), a.Buckets.Pages),
	}

	if err := a.buildPipeline(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) buildStore(ctx context.Context) error {
	cfg := a.Config
	a.Buckets = storage.BucketsFromConfig(cfg.Storage)

	switch strings.ToLower(strings.TrimSpace(cfg.FeatureFlags.ObjectStore)) {
	case "", config.ObjectStoreGCS:
		client, err := gcs.NewClient(ctx, cfg.Storage, cfg.GCP, a.Logger)
		if err != nil {
			return fmt.Errorf("bootstrap gcs: %w", err)
		}
		a.GCS = client
		a.Store = client
		a.closers = append(a.closers, client.Close)
	case config.ObjectStoreMemory:
		if a.Config.App.IsProd() {
			return errors.New("memory object store is not allowed in prod")
		}
		a.Logger.Warn(ctx, "using in-memory object store; migrated images are lost on exit")
		a.Store = memstore.New()
	default:
		return fmt.Errorf("unknown object store %q", cfg.FeatureFlags.ObjectStore)
	}

	if err := storage.EnsureBuckets(ctx, a.Store, a.Buckets); err != nil {
		return fmt.Errorf("ensure buckets: %w", err)
	}
	return nil
}

func (a *App) buildPipeline(ctx context.Context) error {
	cfg := a.Config

	urls := storage.NewURLResolver(cfg.Storage)
	migrator, err := migration.NewService(a.Store, a.Buckets, a.Sources, migration.Limits{
		DefaultBatchSize: cfg.Migration.BatchSize,
		MaxBatchSize:     cfg.Migration.MaxBatchSize,
	}, a.Metrics, a.Logger, migration.WithURLResolver(urls))
	if err != nil {
		return fmt.Errorf("migration service: %w", err)
	}

	sweeper, err := compression.NewSweeper(a.Sources, compression.OptionsFromConfig(cfg.LocalCompression), a.Metrics, a.Logger)
	if err != nil {
		return fmt.Errorf("local compression: %w", err)
	}

	params := pipeline.Params{
		Migrator: migrator,
		Sweeper:  sweeper,
		Sources:  a.Sources,
		URLs:     urls,
		Logger:   a.Logger,
	}
	if a.Redis != nil {
		params.Status = pipeline.NewRedisStatusStore(a.Redis)
	}

	shrinker, err := tinify.New(cfg.Optimizer, a.Logger)
	switch {
	case errors.Is(err, tinify.ErrMissingAPIKey):
		a.Logger.Warn(ctx, "tinypng api key not set; remote optimization disabled")
	case err != nil:
		return fmt.Errorf("tinypng client: %w", err)
	default:
		opt, err := optimizer.New(a.Store, a.Buckets, shrinker, optimizer.PolicyFromConfig(cfg.Optimizer), a.Metrics, a.Logger)
		if err != nil {
			return fmt.Errorf("remote optimizer: %w", err)
		}
		params.Optimizer = opt
	}

	a.Pipeline, err = pipeline.New(params)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	return nil
}

// Close releases every client in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Error(context.Background(), "error closing dependency", err)
		}
	}
	a.closers = nil
}
