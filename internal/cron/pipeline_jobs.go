package cron

import (
	"context"
	"fmt"

	"github.com/siva27neelam/story-telling/internal/pipeline"
	"github.com/siva27neelam/story-telling/internal/stats"
	"github.com/siva27neelam/story-telling/pkg/logger"
	"github.com/siva27neelam/story-telling/pkg/metrics"
)

type imagePipeline interface {
	StartMigration(ctx context.Context, batchSize int) (stats.MigrationStats, error)
	StartLocalCompressionSweep(ctx context.Context) (stats.CompressionStats, error)
	StartRemoteOptimization(ctx context.Context) (stats.CompressionStats, error)
}

type PipelineJobParams struct {
	Logger    *logger.Logger
	Pipeline  imagePipeline
	BatchSize int
}

func (p PipelineJobParams) validate() error {
	if p.Logger == nil {
		return fmt.Errorf("logger required")
	}
	if p.Pipeline == nil {
		return fmt.Errorf("pipeline required")
	}
	return nil
}

// NewLocalCompressionJob compresses legacy blobs once per cycle.
func NewLocalCompressionJob(params PipelineJobParams) (Job, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &localCompressionJob{logg: params.Logger, pipeline: params.Pipeline}, nil
}

type localCompressionJob struct {
	logg     *logger.Logger
	pipeline imagePipeline
}

func (j *localCompressionJob) Name() string { return metrics.JobLocalCompression }

func (j *localCompressionJob) Run(ctx context.Context) error {
	result, err := j.pipeline.StartLocalCompressionSweep(pipeline.WithTrigger(ctx, pipeline.TriggerCron))
	if err != nil {
		return fmt.Errorf("local compression: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"covers": result.Covers.String(),
		"pages":  result.Pages.String(),
	}), "local compression sweep complete")
	return nil
}

// NewMigrationJob sweeps unmigrated records once per cycle.
func NewMigrationJob(params PipelineJobParams) (Job, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &migrationJob{logg: params.Logger, pipeline: params.Pipeline, batchSize: params.BatchSize}, nil
}

type migrationJob struct {
	logg      *logger.Logger
	pipeline  imagePipeline
	batchSize int
}

func (j *migrationJob) Name() string { return metrics.JobMigration }

func (j *migrationJob) Run(ctx context.Context) error {
	result, err := j.pipeline.StartMigration(pipeline.WithTrigger(ctx, pipeline.TriggerCron), j.batchSize)
	if err != nil {
		return fmt.Errorf("image migration: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "summary", result.Total().String()), "image migration sweep complete")
	return nil
}

// NewRemoteOptimizationJob runs the store optimizer once per cycle.
func NewRemoteOptimizationJob(params PipelineJobParams) (Job, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &remoteOptimizationJob{logg: params.Logger, pipeline: params.Pipeline}, nil
}

type remoteOptimizationJob struct {
	logg     *logger.Logger
	pipeline imagePipeline
}

func (j *remoteOptimizationJob) Name() string { return metrics.JobRemoteOptimization }

func (j *remoteOptimizationJob) Run(ctx context.Context) error {
	result, err := j.pipeline.StartRemoteOptimization(pipeline.WithTrigger(ctx, pipeline.TriggerCron))
	if err != nil {
		return fmt.Errorf("remote optimization: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "summary", result.Total().String()), "remote optimization complete")
	return nil
}
