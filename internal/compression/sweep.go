package compression

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/siva27neelam/story-telling/internal/records"
	"github.com/siva27neelam/story-telling/internal/stats"
	"github.com/siva27neelam/story-telling/pkg/config"
	"github.com/siva27neelam/story-telling/pkg/enums"
	"github.com/siva27neelam/story-telling/pkg/logger"
	"github.com/siva27neelam/story-telling/pkg/metrics"
)

type recorder interface {
	ObserveRecord(job, collection, outcome string, bytes int64)
}

// Bounds is the largest width and height an image may keep.
type Bounds struct {
	Width  int
	Height int
}

// SweepOptions configures a local compression sweep.
type SweepOptions struct {
	BatchSize int
	Quality   int
	Bounds    map[enums.ImageCollection]Bounds
}

// OptionsFromConfig maps the env-driven config onto sweep options.
func OptionsFromConfig(cfg config.LocalCompressionConfig) SweepOptions {
	return SweepOptions{
		BatchSize: cfg.BatchSize,
		Quality:   cfg.Quality,
		Bounds: map[enums.ImageCollection]Bounds{
			enums.ImageCollectionCovers: {Width: cfg.CoverMaxWidth, Height: cfg.CoverMaxHeight},
			enums.ImageCollectionPages:  {Width: cfg.PageMaxWidth, Height: cfg.PageMaxHeight},
		},
	}
}

// Sweeper compresses every record not yet locally compressed.
type Sweeper struct {
	sources    []records.Source
	compressor Compressor
	opts       SweepOptions
	metrics    recorder
	logg       *logger.Logger
}

func NewSweeper(sources []records.Source, opts SweepOptions, metrics recorder, logg *logger.Logger) (*Sweeper, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("at least one record source required")
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Sweeper{
		sources:    sources,
		compressor: NewCompressor(opts.Quality),
		opts:       opts,
		metrics:    metrics,
		logg:       logg,
	}, nil
}

// Sweep walks each collection in batches. Every visited record is marked
// locally compressed, whether or not its payload shrank. TotalBytes in the
// result counts bytes saved.
func (s *Sweeper) Sweep(ctx context.Context) (stats.CompressionStats, error) {
	var result stats.CompressionStats
	var errs error
	for _, src := range s.sources {
		run, err := s.sweepSource(ctx, src)
		*result.For(src.Collection()) = run
		errs = multierr.Append(errs, err)
	}
	s.logg.Info(s.logg.WithField(ctx, "summary", result.Total().String()), "local compression finished")
	return result, errs
}

func (s *Sweeper) sweepSource(ctx context.Context, src records.Source) (stats.RunStats, error) {
	var run stats.RunStats
	collection := src.Collection()
	ctx = s.logg.WithCollection(ctx, collection.String())
	bounds := s.opts.Bounds[collection]

	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		batch, err := src.ListNotLocallyCompressed(ctx, afterID, s.opts.BatchSize)
		if err != nil {
			s.logg.Error(ctx, "failed to enumerate uncompressed records", err)
			return run, err
		}
		if len(batch) == 0 {
			break
		}
		outcomes := make([]stats.Outcome, 0, len(batch))
		for i := range batch {
			rec := &batch[i]
			outcome := s.compressOne(ctx, src, rec, bounds)
			if s.metrics != nil {
				s.metrics.ObserveRecord(metrics.JobLocalCompression, collection.String(), string(outcome.Kind), outcome.Bytes)
			}
			outcomes = append(outcomes, outcome)
			afterID = rec.ID
		}
		run.Merge(stats.Fold(outcomes))
	}

	s.logg.Info(s.logg.WithField(ctx, "summary", run.String()), "local compression completed")
	return run, nil
}

func (s *Sweeper) compressOne(ctx context.Context, src records.Source, rec *records.Record, bounds Bounds) stats.Outcome {
	ctx = s.logg.WithRecord(ctx, rec.ID)
	before := len(rec.Legacy.Data)

	out, contentType := s.compressor.Compress(rec.Legacy.Data, rec.Legacy.ContentType, bounds.Width, bounds.Height)
	saved := int64(before - len(out))
	if saved > 0 {
		rec.Legacy = records.Inline{Data: out, ContentType: contentType}
	}
	rec.LocallyCompressed = true

	if err := src.SaveCompression(ctx, rec); err != nil {
		s.logg.Error(ctx, "failed to persist compressed record", err)
		return stats.Failed(err)
	}
	if saved <= 0 {
		return stats.Skipped()
	}
	s.logg.Debug(s.logg.WithField(ctx, "bytes_saved", saved), "record compressed")
	return stats.Succeeded(saved)
}
