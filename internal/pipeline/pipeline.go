// Package pipeline is the operator-facing entry point to the image pipeline.
// It serializes triggers, records the last run of each job and exposes
// progress counts.
package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/siva27neelam/story-telling/internal/records"
	"github.com/siva27neelam/story-telling/internal/stats"
	"github.com/siva27neelam/story-telling/pkg/enums"
	pkgerrors "github.com/siva27neelam/story-telling/pkg/errors"
	"github.com/siva27neelam/story-telling/pkg/logger"
	"github.com/siva27neelam/story-telling/pkg/metrics"
)

const (
	TriggerOperator = "operator"
	TriggerCron     = "cron"
	TriggerCLI      = "cli"
)

type triggerKey struct{}

// WithTrigger tags ctx with who started a run.
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerKey{}, trigger)
}

// TriggerFrom reports the trigger set by WithTrigger, defaulting to operator.
func TriggerFrom(ctx context.Context) string {
	if v, ok := ctx.Value(triggerKey{}).(string); ok && v != "" {
		return v
	}
	return TriggerOperator
}

type migrator interface {
	MigrateAll(ctx context.Context, batchSize int) (stats.MigrationStats, error)
	MigrateRecord(ctx context.Context, collection enums.ImageCollection, id int64) (stats.Outcome, error)
}

type localSweeper interface {
	Sweep(ctx context.Context) (stats.CompressionStats, error)
}

type remoteOptimizer interface {
	OptimizeStore(ctx context.Context) (stats.CompressionStats, error)
	Running() bool
}

type urlResolver interface {
	PublicURL(collection enums.ImageCollection, key string) string
}

type Params struct {
	Migrator  migrator
	Sweeper   localSweeper
	Optimizer remoteOptimizer
	Status    StatusStore
	Sources   []records.Source
	URLs      urlResolver
	Logger    *logger.Logger
}

// Pipeline fronts the migration, local compression and remote optimization
// jobs. Each job rejects a trigger that overlaps its own run in this process;
// remote optimization relies on the optimizer's guard. Migration and local
// compression may overlap each other since they write disjoint columns.
type Pipeline struct {
	migrator  migrator
	sweeper   localSweeper
	optimizer remoteOptimizer
	status    StatusStore
	sources   []records.Source
	urls      urlResolver
	logg      *logger.Logger
	now       func() time.Time

	migrating atomic.Bool
	sweeping  atomic.Bool
}

func New(params Params) (*Pipeline, error) {
	if params.Migrator == nil {
		return nil, fmt.Errorf("migrator required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("local sweeper required")
	}
	status := params.Status
	if status == nil {
		status = NewMemoryStatusStore()
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Pipeline{
		migrator:  params.Migrator,
		sweeper:   params.Sweeper,
		optimizer: params.Optimizer,
		status:    status,
		sources:   params.Sources,
		urls:      params.URLs,
		logg:      logg,
		now:       time.Now,
	}, nil
}

// StartMigration moves every unmigrated record of both collections.
func (p *Pipeline) StartMigration(ctx context.Context, batchSize int) (stats.MigrationStats, error) {
	if !p.migrating.CompareAndSwap(false, true) {
		return stats.MigrationStats{}, jobRunning(metrics.JobMigration)
	}
	defer p.migrating.Store(false)

	started := p.now()
	result, err := p.migrator.MigrateAll(ctx, batchSize)
	p.record(ctx, metrics.JobMigration, started, result.Covers, result.Pages, err)
	return result, err
}

// MigrateRecord migrates one record. It shares the migration guard so it never
// runs alongside a full migration.
func (p *Pipeline) MigrateRecord(ctx context.Context, collection enums.ImageCollection, id int64) (stats.Outcome, error) {
	if !collection.IsValid() {
		return stats.Outcome{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown collection %q", collection))
	}
	if !p.migrating.CompareAndSwap(false, true) {
		return stats.Outcome{}, jobRunning(metrics.JobMigration)
	}
	defer p.migrating.Store(false)
	return p.migrator.MigrateRecord(ctx, collection, id)
}

// StartLocalCompressionSweep compresses every legacy blob not yet visited.
func (p *Pipeline) StartLocalCompressionSweep(ctx context.Context) (stats.CompressionStats, error) {
	if !p.sweeping.CompareAndSwap(false, true) {
		return stats.CompressionStats{}, jobRunning(metrics.JobLocalCompression)
	}
	defer p.sweeping.Store(false)

	started := p.now()
	result, err := p.sweeper.Sweep(ctx)
	p.record(ctx, metrics.JobLocalCompression, started, result.Covers, result.Pages, err)
	return result, err
}

// StartRemoteOptimization runs the store optimizer. A second call while one
// is in flight fails with a job-running error.
func (p *Pipeline) StartRemoteOptimization(ctx context.Context) (stats.CompressionStats, error) {
	if p.optimizer == nil {
		return stats.CompressionStats{}, pkgerrors.New(pkgerrors.CodeDependency, "remote optimization is not configured")
	}
	started := p.now()
	result, err := p.optimizer.OptimizeStore(ctx)
	if pkgerrors.IsCode(err, pkgerrors.CodeJobRunning) {
		return result, err
	}
	p.record(ctx, metrics.JobRemoteOptimization, started, result.Covers, result.Pages, err)
	return result, err
}

// JobStatus is the last run of a job plus whether it is running now.
type JobStatus struct {
	Running bool       `json:"running"`
	LastRun *RunRecord `json:"last_run,omitempty"`
}

// Status is a snapshot of pipeline progress.
type Status struct {
	Jobs        map[string]JobStatus                     `json:"jobs"`
	Collections map[enums.ImageCollection]records.Counts `json:"collections"`
}

func (p *Pipeline) Status(ctx context.Context) (*Status, error) {
	out := &Status{
		Jobs:        map[string]JobStatus{},
		Collections: map[enums.ImageCollection]records.Counts{},
	}
	running := map[string]bool{
		metrics.JobMigration:          p.migrating.Load(),
		metrics.JobLocalCompression:   p.sweeping.Load(),
		metrics.JobRemoteOptimization: p.optimizer != nil && p.optimizer.Running(),
	}
	for job, isRunning := range running {
		last, err := p.status.Last(ctx, job)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read job status")
		}
		out.Jobs[job] = JobStatus{Running: isRunning, LastRun: last}
	}
	for _, src := range p.sources {
		counts, err := src.Counts(ctx)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count records")
		}
		out.Collections[src.Collection()] = counts
	}
	return out, nil
}

// MigratedImage locates one migrated record in the object store. URL is empty
// when no CDN is configured for the collection.
type MigratedImage struct {
	ID     int64  `json:"id"`
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	URL    string `json:"url,omitempty"`
}

// MigratedImages pages through the migrated records of collection by id.
func (p *Pipeline) MigratedImages(ctx context.Context, collection enums.ImageCollection, afterID int64, limit int) ([]MigratedImage, error) {
	src := p.source(collection)
	if src == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown collection %q", collection))
	}
	recs, err := src.ListMigrated(ctx, afterID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list migrated records")
	}
	out := make([]MigratedImage, 0, len(recs))
	for _, rec := range recs {
		if rec.Ref == nil {
			continue
		}
		img := MigratedImage{ID: rec.ID, Bucket: rec.Ref.Bucket, Key: rec.Ref.Key}
		if p.urls != nil {
			img.URL = p.urls.PublicURL(collection, rec.Ref.Key)
		}
		out = append(out, img)
	}
	return out, nil
}

func (p *Pipeline) source(collection enums.ImageCollection) records.Source {
	for _, src := range p.sources {
		if src.Collection() == collection {
			return src
		}
	}
	return nil
}

func (p *Pipeline) record(ctx context.Context, job string, started time.Time, covers, pages stats.RunStats, runErr error) {
	rec := RunRecord{
		Job:        job,
		Trigger:    TriggerFrom(ctx),
		StartedAt:  started.UTC(),
		FinishedAt: p.now().UTC(),
		Covers:     covers,
		Pages:      pages,
		Total:      stats.MigrationStats{Covers: covers, Pages: pages}.Total(),
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	// a canceled request should still leave a status behind
	if err := p.status.Save(context.WithoutCancel(ctx), rec); err != nil {
		p.logg.Error(p.logg.WithField(ctx, "job", job), "failed to persist run status", err)
	}
}

func jobRunning(job string) error {
	return pkgerrors.New(pkgerrors.CodeJobRunning, fmt.Sprintf("%s already running", job)).
		WithDetails(map[string]string{"job": job})
}
