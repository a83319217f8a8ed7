package main

import (
	"context"
	"sync"

	"github.com/siva27neelam/story-telling/internal/app"
	"github.com/siva27neelam/story-telling/internal/pipeline"
	"github.com/siva27neelam/story-telling/internal/stats"
	"github.com/siva27neelam/story-telling/pkg/config"
	"github.com/siva27neelam/story-telling/pkg/enums"
)

type imagePipeline interface {
	StartMigration(ctx context.Context, batchSize int) (stats.MigrationStats, error)
	MigrateRecord(ctx context.Context, collection enums.ImageCollection, id int64) (stats.Outcome, error)
	StartLocalCompressionSweep(ctx context.Context) (stats.CompressionStats, error)
	StartRemoteOptimization(ctx context.Context) (stats.CompressionStats, error)
	Status(ctx context.Context) (*pipeline.Status, error)
	MigratedImages(ctx context.Context, collection enums.ImageCollection, afterID int64, limit int) ([]pipeline.MigratedImage, error)
}

// pipelineBuilder loads configuration and wires the pipeline. The returned
// func releases every client.
type pipelineBuilder func(ctx context.Context) (*config.Config, imagePipeline, func(), error)

func buildPipeline(ctx context.Context) (*config.Config, imagePipeline, func(), error) {
	cfg, logg, err := app.LoadConfig("imagectl")
	if err != nil {
		return nil, nil, nil, err
	}
	a, err := app.Build(ctx, cfg, logg)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, a.Pipeline, a.Close, nil
}

type commandContext struct {
	build pipelineBuilder

	once     sync.Once
	cfg      *config.Config
	pipeline imagePipeline
	closer   func()
	err      error
}

func newCommandContext(build pipelineBuilder) *commandContext {
	return &commandContext{build: build}
}

func (c *commandContext) ensurePipeline(ctx context.Context) (imagePipeline, error) {
	c.once.Do(func() {
		c.cfg, c.pipeline, c.closer, c.err = c.build(ctx)
	})
	return c.pipeline, c.err
}

func (c *commandContext) close() {
	if c.closer != nil {
		c.closer()
	}
}
