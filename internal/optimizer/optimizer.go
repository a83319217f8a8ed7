// Package optimizer recompresses objects already in the store through the
// TinyPNG API and replaces them in place when the saving is worth it.
package optimizer

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/siva27neelam/story-telling/internal/stats"
	"github.com/siva27neelam/story-telling/pkg/config"
	"github.com/siva27neelam/story-telling/pkg/enums"
	pkgerrors "github.com/siva27neelam/story-telling/pkg/errors"
	"github.com/siva27neelam/story-telling/pkg/logger"
	"github.com/siva27neelam/story-telling/pkg/metrics"
	"github.com/siva27neelam/story-telling/pkg/storage"
)

// ErrAlreadyRunning is returned when a run is requested while another one is
// still in flight in this process.
var ErrAlreadyRunning = pkgerrors.New(pkgerrors.CodeJobRunning, "remote optimization already running")

type shrinker interface {
	Shrink(ctx context.Context, data []byte) ([]byte, error)
}

type recorder interface {
	ObserveRecord(job, collection, outcome string, bytes int64)
	SetRunning(job string, running bool)
}

// Policy decides which objects are worth sending and which results are kept.
type Policy struct {
	// MinBytes skips objects smaller than this.
	MinBytes int64
	// MinGainPercent is the reduction an optimized result must exceed.
	MinGainPercent float64
}

func PolicyFromConfig(cfg config.OptimizerConfig) Policy {
	return Policy{MinBytes: cfg.MinBytes, MinGainPercent: cfg.MinGainPerc}
}

type Optimizer struct {
	store    storage.ObjectStore
	buckets  storage.Buckets
	shrinker shrinker
	policy   Policy
	minGain  decimal.Decimal
	running  atomic.Bool
	metrics  recorder
	logg     *logger.Logger
}

func New(store storage.ObjectStore, buckets storage.Buckets, shrinker shrinker, policy Policy, metrics recorder, logg *logger.Logger) (*Optimizer, error) {
	if store == nil {
		return nil, fmt.Errorf("object store required")
	}
	if shrinker == nil {
		return nil, fmt.Errorf("shrinker required")
	}
	if buckets.Covers == "" || buckets.Pages == "" {
		return nil, fmt.Errorf("covers and pages buckets required")
	}
	if policy.MinGainPercent < 0 {
		return nil, fmt.Errorf("min gain percent must not be negative")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Optimizer{
		store:    store,
		buckets:  buckets,
		shrinker: shrinker,
		policy:   policy,
		minGain:  decimal.NewFromFloat(policy.MinGainPercent),
		metrics:  metrics,
		logg:     logg,
	}, nil
}

// Running reports whether a run is in flight.
func (o *Optimizer) Running() bool {
	return o.running.Load()
}

// OptimizeStore processes every object in the covers bucket, then the pages
// bucket. A concurrent call fails immediately with ErrAlreadyRunning. Errors on
// individual objects are counted and never stop the run; listing failures are
// returned after both buckets were attempted.
func (o *Optimizer) OptimizeStore(ctx context.Context) (stats.CompressionStats, error) {
	var result stats.CompressionStats
	if !o.running.CompareAndSwap(false, true) {
		return result, ErrAlreadyRunning
	}
	defer o.running.Store(false)
	o.setRunning(true)
	defer o.setRunning(false)

	o.logg.Info(ctx, "remote optimization started")
	var errs error
	for _, collection := range enums.ImageCollections() {
		run, err := o.optimizeBucket(ctx, collection)
		*result.For(collection) = run
		errs = multierr.Append(errs, err)
	}
	o.logg.Info(o.logg.WithField(ctx, "summary", result.Total().String()), "remote optimization finished")
	return result, errs
}

func (o *Optimizer) optimizeBucket(ctx context.Context, collection enums.ImageCollection) (stats.RunStats, error) {
	var run stats.RunStats
	bucket := o.buckets.For(collection)
	ctx = o.logg.WithFields(ctx, map[string]any{"collection": collection.String(), "bucket": bucket})

	keys, err := o.store.List(ctx, bucket)
	if err != nil {
		o.logg.Error(ctx, "failed to list bucket", err)
		return run, fmt.Errorf("list %s: %w", bucket, err)
	}

	outcomes := make([]stats.Outcome, 0, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			run.Merge(stats.Fold(outcomes))
			return run, err
		}
		result := o.OptimizeObject(ctx, bucket, key)
		outcome := result.Outcome()
		if o.metrics != nil {
			o.metrics.ObserveRecord(metrics.JobRemoteOptimization, collection.String(), string(outcome.Kind), outcome.Bytes)
		}
		outcomes = append(outcomes, outcome)
	}
	run.Merge(stats.Fold(outcomes))
	o.logg.Info(o.logg.WithField(ctx, "summary", run.String()), "bucket optimization completed")
	return run, nil
}

// OptimizeObject runs the decision policy for a single stored object.
func (o *Optimizer) OptimizeObject(ctx context.Context, bucket, key string) stats.CompressionOutcome {
	ctx = o.logg.WithField(ctx, "key", key)
	outcome := stats.CompressionOutcome{Key: key}

	data, err := o.store.Get(ctx, bucket, key)
	if err != nil {
		o.logg.Error(ctx, "failed to fetch object", err)
		return failed(outcome, err)
	}
	outcome.OriginalSize = int64(len(data))

	if outcome.OriginalSize < o.policy.MinBytes {
		o.logg.Debug(ctx, "object below size threshold; skipping")
		outcome.Decision = enums.CompressionSkippedSmall
		return outcome
	}

	optimized, err := o.shrinker.Shrink(ctx, data)
	if err != nil {
		o.logg.Error(ctx, "optimization service failed", err)
		return failed(outcome, err)
	}
	size := int64(len(optimized))
	outcome.CompressedSize = &size

	if size >= outcome.OriginalSize || outcome.Reduction().LessThanOrEqual(o.minGain) {
		o.logg.Debug(o.logg.WithField(ctx, "reduction_percent", outcome.Reduction().StringFixed(2)), "reduction below threshold; leaving object untouched")
		outcome.Decision = enums.CompressionSkippedInsufficientGain
		return outcome
	}

	if err := storage.Overwrite(ctx, o.store, bucket, key, optimized); err != nil {
		o.logg.Error(ctx, "failed to overwrite object", err)
		return failed(outcome, err)
	}
	outcome.Decision = enums.CompressionApplied
	o.logg.Info(o.logg.WithFields(ctx, map[string]any{
		"bytes_saved":       outcome.Saved(),
		"reduction_percent": outcome.Reduction().Round(0).IntPart(),
	}), "object optimized")
	return outcome
}

func (o *Optimizer) setRunning(running bool) {
	if o.metrics != nil {
		o.metrics.SetRunning(metrics.JobRemoteOptimization, running)
	}
}

func failed(outcome stats.CompressionOutcome, err error) stats.CompressionOutcome {
	outcome.Decision = enums.CompressionError
	outcome.Err = err
	return outcome
}
