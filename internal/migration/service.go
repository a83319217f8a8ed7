// Package migration moves legacy image blobs out of the database and into the
// object store, one collection at a time.
package migration

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/siva27neelam/story-telling/internal/records"
	"github.com/siva27neelam/story-telling/internal/stats"
	"github.com/siva27neelam/story-telling/pkg/enums"
	pkgerrors "github.com/siva27neelam/story-telling/pkg/errors"
	"github.com/siva27neelam/story-telling/pkg/logger"
	"github.com/siva27neelam/story-telling/pkg/metrics"
	"github.com/siva27neelam/story-telling/pkg/storage"
)

const defaultContentType = "image/jpeg"

type recorder interface {
	ObserveRecord(job, collection, outcome string, bytes int64)
}

// Service migrates legacy blobs. Calls are not safe to run concurrently with
// each other for the same collection; callers serialize them.
type Service interface {
	MigrateCollection(ctx context.Context, collection enums.ImageCollection, batchSize int) (stats.RunStats, error)
	MigrateAll(ctx context.Context, batchSize int) (stats.MigrationStats, error)
	MigrateRecord(ctx context.Context, collection enums.ImageCollection, id int64) (stats.Outcome, error)
}

type Limits struct {
	DefaultBatchSize int
	MaxBatchSize     int
}

// Option customizes a Service.
type Option func(*service)

// WithURLResolver logs the public URL of every migrated object.
func WithURLResolver(urls storage.URLResolver) Option {
	return func(s *service) {
		s.urls = &urls
	}
}

type service struct {
	urls    *storage.URLResolver
	store   storage.ObjectStore
	buckets storage.Buckets
	sources map[enums.ImageCollection]records.Source
	limits  Limits
	metrics recorder
	logg    *logger.Logger
}

// NewService wires the migration sweep to one source per collection.
func NewService(store storage.ObjectStore, buckets storage.Buckets, sources []records.Source, limits Limits, metrics recorder, logg *logger.Logger, opts ...Option) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("object store required")
	}
	if buckets.Covers == "" || buckets.Pages == "" {
		return nil, fmt.Errorf("covers and pages buckets required")
	}
	if limits.DefaultBatchSize <= 0 {
		return nil, fmt.Errorf("default batch size must be positive")
	}
	if limits.MaxBatchSize < limits.DefaultBatchSize {
		limits.MaxBatchSize = limits.DefaultBatchSize
	}
	bySource := make(map[enums.ImageCollection]records.Source, len(sources))
	for _, src := range sources {
		if src == nil {
			return nil, fmt.Errorf("nil record source")
		}
		bySource[src.Collection()] = src
	}
	for _, collection := range enums.ImageCollections() {
		if _, ok := bySource[collection]; !ok {
			return nil, fmt.Errorf("record source for %s required", collection)
		}
	}
	if logg == nil {
		logg = logger.Nop()
	}
	svc := &service{
		store:   store,
		buckets: buckets,
		sources: bySource,
		limits:  limits,
		metrics: metrics,
		logg:    logg,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// MigrateAll runs the covers sweep, then the pages sweep. A failure in one
// collection does not stop the other.
func (s *service) MigrateAll(ctx context.Context, batchSize int) (stats.MigrationStats, error) {
	var result stats.MigrationStats
	var errs error
	for _, collection := range enums.ImageCollections() {
		run, err := s.MigrateCollection(ctx, collection, batchSize)
		*result.For(collection) = run
		errs = multierr.Append(errs, err)
	}
	s.logg.Info(s.logg.WithField(ctx, "summary", result.Total().String()), "image migration finished")
	return result, errs
}

// MigrateCollection pages through unmigrated records in ascending id order
// until a batch comes back empty. Records that fail stay unmigrated and are
// picked up again by the next run.
func (s *service) MigrateCollection(ctx context.Context, collection enums.ImageCollection, batchSize int) (stats.RunStats, error) {
	var run stats.RunStats
	src, ok := s.sources[collection]
	if !ok {
		return run, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown collection %q", collection))
	}
	size := s.batchSize(batchSize)
	ctx = s.logg.WithCollection(ctx, collection.String())
	s.logg.Info(s.logg.WithField(ctx, "batch_size", size), "image migration started")

	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		batch, err := src.ListUnmigrated(ctx, afterID, size)
		if err != nil {
			s.logg.Error(ctx, "failed to enumerate unmigrated records", err)
			return run, err
		}
		if len(batch) == 0 {
			break
		}

		outcomes := make([]stats.Outcome, 0, len(batch))
		for i := range batch {
			rec := &batch[i]
			outcome := s.migrateOne(ctx, src, rec)
			s.observe(collection, outcome)
			outcomes = append(outcomes, outcome)
			afterID = rec.ID
		}
		folded := stats.Fold(outcomes)
		run.Merge(folded)
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"batch":   run.Batches,
			"success": folded.Success,
			"errors":  folded.Error,
			"skipped": folded.Skipped,
		}), "migration batch processed")
	}

	s.logg.Info(s.logg.WithField(ctx, "summary", run.String()), "image migration completed")
	return run, nil
}

// MigrateRecord migrates a single record on operator request.
func (s *service) MigrateRecord(ctx context.Context, collection enums.ImageCollection, id int64) (stats.Outcome, error) {
	src, ok := s.sources[collection]
	if !ok {
		return stats.Outcome{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown collection %q", collection))
	}
	rec, err := src.FindByID(ctx, id)
	if err != nil {
		return stats.Outcome{}, err
	}
	if rec.Migrated {
		return stats.Skipped(), nil
	}
	ctx = s.logg.WithCollection(ctx, collection.String())
	outcome := s.migrateOne(ctx, src, rec)
	s.observe(collection, outcome)
	return outcome, nil
}

func (s *service) migrateOne(ctx context.Context, src records.Source, rec *records.Record) stats.Outcome {
	ctx = s.logg.WithRecord(ctx, rec.ID)

	if rec.Legacy.Empty() {
		rec.MarkSkipped()
		if err := src.SaveMigration(ctx, rec); err != nil {
			s.logg.Error(ctx, "failed to mark empty record migrated", err)
			return stats.Failed(err)
		}
		s.logg.Debug(ctx, "record has no image payload; marked migrated")
		return stats.Skipped()
	}

	bucket := s.buckets.For(rec.Collection)
	contentType := rec.Legacy.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}
	key, err := storage.Upload(ctx, s.store, bucket, rec.Legacy.Data, contentType)
	if err != nil {
		s.logg.Error(ctx, "failed to upload image", err)
		return stats.Failed(err)
	}

	rec.MarkMigrated(records.Remote{Bucket: bucket, Key: key})
	if err := src.SaveMigration(ctx, rec); err != nil {
		// the uploaded object is orphaned; the next run uploads a fresh copy
		s.logg.Error(s.logg.WithField(ctx, "orphan_key", key), "failed to persist migrated record", err)
		return stats.Failed(err)
	}
	if s.urls != nil {
		if url := s.urls.PublicURL(rec.Collection, key); url != "" {
			s.logg.Debug(s.logg.WithField(ctx, "url", url), "record migrated")
		}
	}
	return stats.Succeeded(int64(len(rec.Legacy.Data)))
}

func (s *service) observe(collection enums.ImageCollection, outcome stats.Outcome) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveRecord(metrics.JobMigration, collection.String(), string(outcome.Kind), outcome.Bytes)
}

func (s *service) batchSize(requested int) int {
	switch {
	case requested <= 0:
		return s.limits.DefaultBatchSize
	case requested > s.limits.MaxBatchSize:
		return s.limits.MaxBatchSize
	default:
		return requested
	}
}
