package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/siva27neelam/story-telling/internal/app"
	"github.com/siva27neelam/story-telling/internal/cron"
	"github.com/siva27neelam/story-telling/internal/pipeline"
	"github.com/siva27neelam/story-telling/pkg/config"
	"github.com/siva27neelam/story-telling/pkg/instance"
	"github.com/siva27neelam/story-telling/pkg/logger"
	"github.com/siva27neelam/story-telling/pkg/metrics"
)

const lockName = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run one cycle and exit")
	jobName := flag.String("job", "", "run a single named job and exit")
	flag.Parse()

	cfg, logg, err := app.LoadConfig("cron-worker")
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID(),
	})

	a, err := app.Build(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap cron worker", err)
		os.Exit(1)
	}
	defer a.Close()

	var lock cron.Lock = &cron.LocalLock{}
	if a.Redis != nil {
		lock, err = cron.NewRedisLock(a.Redis, a.Redis.LockKey(lockName), cfg.Cron.LockTTL)
		if err != nil {
			logg.Error(ctx, "failed to create cron lock", err)
			os.Exit(1)
		}
	}

	registry, err := buildRegistry(cfg, logg, a.Pipeline)
	if err != nil {
		logg.Error(ctx, "failed to register cron jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(a.Registry),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	switch {
	case *jobName != "":
		err = service.RunJob(ctx, *jobName)
	case *once:
		err = service.RunOnce(ctx)
	default:
		logg.Info(ctx, "starting cron worker")
		err = service.Run(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

type jobFactory func(cron.PipelineJobParams) (cron.Job, error)

var jobFactories = map[string]jobFactory{
	metrics.JobLocalCompression:   cron.NewLocalCompressionJob,
	metrics.JobMigration:          cron.NewMigrationJob,
	metrics.JobRemoteOptimization: cron.NewRemoteOptimizationJob,
}

// buildRegistry registers the jobs named in STORYTELLING_CRON_JOBS, in order.
func buildRegistry(cfg *config.Config, logg *logger.Logger, p *pipeline.Pipeline) (*cron.Registry, error) {
	params := cron.PipelineJobParams{Logger: logg, Pipeline: p, BatchSize: cfg.Migration.BatchSize}
	registry := cron.NewRegistry()
	for _, name := range cfg.Cron.Jobs {
		factory, ok := jobFactories[name]
		if !ok {
			return nil, fmt.Errorf("unknown cron job %q", name)
		}
		job, err := factory(params)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		registry.Register(job)
	}
	return registry, nil
}
