package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siva27neelam/story-telling/internal/compression"
	"github.com/siva27neelam/story-telling/internal/migration"
	"github.com/siva27neelam/story-telling/internal/optimizer"
	"github.com/siva27neelam/story-telling/internal/records"
	"github.com/siva27neelam/story-telling/internal/records/recordstest"
	"github.com/siva27neelam/story-telling/internal/stats"
	"github.com/siva27neelam/story-telling/pkg/config"
	"github.com/siva27neelam/story-telling/pkg/enums"
	pkgerrors "github.com/siva27neelam/story-telling/pkg/errors"
	"github.com/siva27neelam/story-telling/pkg/metrics"
	"github.com/siva27neelam/story-telling/pkg/storage"
	"github.com/siva27neelam/story-telling/pkg/storage/memstore"
)

var testBuckets = storage.Buckets{Covers: "covers", Pages: "pages"}

type harness struct {
	pipeline *Pipeline
	store    *memstore.Store
	covers   *records.CoverRepository
	pages    *records.PageRepository
}

func newHarness(t *testing.T, opt remoteOptimizer) harness {
	t.Helper()
	db := recordstest.OpenDB(t)
	store := memstore.New()
	covers := records.NewCoverRepository(db, testBuckets.Covers)
	pages := records.NewPageRepository(db, testBuckets.Pages)
	sources := []records.Source{covers, pages}

	mig, err := migration.NewService(store, testBuckets, sources, migration.Limits{DefaultBatchSize: 10, MaxBatchSize: 100}, nil, nil)
	require.NoError(t, err)
	sweeper, err := compression.NewSweeper(sources, compression.OptionsFromConfig(config.LocalCompressionConfig{
		BatchSize: 5, Quality: 80, CoverMaxWidth: 1200, CoverMaxHeight: 800, PageMaxWidth: 800, PageMaxHeight: 600,
	}), nil, nil)
	require.NoError(t, err)

	p, err := New(Params{Migrator: mig, Sweeper: sweeper, Optimizer: opt, Sources: sources})
	require.NoError(t, err)

	recordstest.SeedStory(t, db, []byte("cover-bytes"), "image/jpeg")
	story := recordstest.SeedStory(t, db, nil, "")
	recordstest.SeedPage(t, db, story.ID, []byte("page-bytes"), "image/png")

	return harness{pipeline: p, store: store, covers: covers, pages: pages}
}

func TestStartMigrationRecordsStatus(t *testing.T) {
	h := newHarness(t, nil)
	ctx := WithTrigger(context.Background(), TriggerCLI)

	result, err := h.pipeline.StartMigration(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Covers.Success)
	assert.Equal(t, 1, result.Covers.Skipped)
	assert.Equal(t, 1, result.Pages.Success)

	status, err := h.pipeline.Status(ctx)
	require.NoError(t, err)
	job := status.Jobs[metrics.JobMigration]
	assert.False(t, job.Running)
	require.NotNil(t, job.LastRun)
	assert.Equal(t, TriggerCLI, job.LastRun.Trigger)
	assert.Equal(t, 2, job.LastRun.Total.Success)
	assert.Empty(t, job.LastRun.Error)

	assert.Equal(t, records.Counts{Total: 2, Migrated: 2}, status.Collections[enums.ImageCollectionCovers])
	assert.Equal(t, int64(1), status.Collections[enums.ImageCollectionPages].Migrated)
	assert.Nil(t, status.Jobs[metrics.JobLocalCompression].LastRun)
}

func TestStartMigrationRejectsOverlap(t *testing.T) {
	h := newHarness(t, nil)
	h.pipeline.migrating.Store(true)
	defer h.pipeline.migrating.Store(false)

	_, err := h.pipeline.StartMigration(context.Background(), 10)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeJobRunning))

	_, err = h.pipeline.MigrateRecord(context.Background(), enums.ImageCollectionCovers, 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeJobRunning))

	status, err := h.pipeline.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Jobs[metrics.JobMigration].Running)
}

type noopMigrator struct{}

func (noopMigrator) MigrateAll(context.Context, int) (stats.MigrationStats, error) {
	return stats.MigrationStats{}, nil
}

func (noopMigrator) MigrateRecord(context.Context, enums.ImageCollection, int64) (stats.Outcome, error) {
	return stats.Skipped(), nil
}

type noopSweeper struct{}

func (noopSweeper) Sweep(context.Context) (stats.CompressionStats, error) {
	return stats.CompressionStats{}, nil
}

func TestStatusPollingNeverBlocksTriggers(t *testing.T) {
	p, err := New(Params{Migrator: noopMigrator{}, Sweeper: noopSweeper{}})
	require.NoError(t, err)
	ctx := context.Background()

	done := make(chan struct{})
	polled := make(chan error, 1)
	go func() {
		for {
			select {
			case <-done:
				polled <- nil
				return
			default:
			}
			if _, err := p.Status(ctx); err != nil {
				polled <- err
				return
			}
		}
	}()

	for range 2000 {
		_, err := p.StartMigration(ctx, 10)
		require.NoError(t, err)
		_, err = p.MigrateRecord(ctx, enums.ImageCollectionCovers, 1)
		require.NoError(t, err)
		_, err = p.StartLocalCompressionSweep(ctx)
		require.NoError(t, err)
	}
	close(done)
	require.NoError(t, <-polled)
}

func TestSweepRunsDuringMigration(t *testing.T) {
	h := newHarness(t, nil)
	h.pipeline.migrating.Store(true)
	defer h.pipeline.migrating.Store(false)

	_, err := h.pipeline.StartLocalCompressionSweep(context.Background())
	require.NoError(t, err)

	status, err := h.pipeline.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Jobs[metrics.JobMigration].Running)
	assert.False(t, status.Jobs[metrics.JobLocalCompression].Running)
}

type prefixURLs string

func (p prefixURLs) PublicURL(collection enums.ImageCollection, key string) string {
	return string(p) + "/" + collection.String() + "/" + key
}

func TestMigratedImagesResolvesURLs(t *testing.T) {
	h := newHarness(t, nil)
	h.pipeline.urls = prefixURLs("https://cdn.example.com")
	ctx := context.Background()

	_, err := h.pipeline.StartMigration(ctx, 0)
	require.NoError(t, err)

	covers, err := h.pipeline.MigratedImages(ctx, enums.ImageCollectionCovers, 0, 10)
	require.NoError(t, err)
	// the empty cover is marked migrated without a stored object
	require.Len(t, covers, 1)
	assert.Equal(t, testBuckets.Covers, covers[0].Bucket)
	assert.Equal(t, "https://cdn.example.com/covers/"+covers[0].Key, covers[0].URL)

	data, err := h.store.Get(ctx, covers[0].Bucket, covers[0].Key)
	require.NoError(t, err)
	assert.Equal(t, []byte("cover-bytes"), data)

	pages, err := h.pipeline.MigratedImages(ctx, enums.ImageCollectionPages, 0, 10)
	require.NoError(t, err)
	require.Len(t, pages, 1)

	later, err := h.pipeline.MigratedImages(ctx, enums.ImageCollectionPages, pages[0].ID, 10)
	require.NoError(t, err)
	assert.Empty(t, later)

	_, err = h.pipeline.MigratedImages(ctx, enums.ImageCollection("avatars"), 0, 10)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestMigrateRecordValidatesCollection(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.pipeline.MigrateRecord(context.Background(), enums.ImageCollection("avatars"), 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = h.pipeline.MigrateRecord(context.Background(), enums.ImageCollectionPages, 999)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestStartLocalCompressionSweep(t *testing.T) {
	h := newHarness(t, nil)
	result, err := h.pipeline.StartLocalCompressionSweep(context.Background())
	require.NoError(t, err)
	// payloads are not decodable images, so every record is visited and skipped
	assert.Equal(t, 2, result.Total().Skipped)

	status, err := h.pipeline.Status(context.Background())
	require.NoError(t, err)
	require.NotNil(t, status.Jobs[metrics.JobLocalCompression].LastRun)
	assert.Equal(t, TriggerOperator, status.Jobs[metrics.JobLocalCompression].LastRun.Trigger)
}

func TestStartRemoteOptimizationWithoutOptimizer(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.pipeline.StartRemoteOptimization(context.Background())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

type shrinkFunc func(ctx context.Context, data []byte) ([]byte, error)

func (f shrinkFunc) Shrink(ctx context.Context, data []byte) ([]byte, error) { return f(ctx, data) }

func TestStartRemoteOptimizationContention(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	store := memstore.New()
	require.NoError(t, store.Put(context.Background(), "covers", "a.jpg", make([]byte, 6000), "image/jpeg"))

	opt, err := optimizer.New(store, testBuckets, shrinkFunc(func(_ context.Context, data []byte) ([]byte, error) {
		close(entered)
		<-release
		return data[:1000], nil
	}), optimizer.Policy{MinBytes: 5000, MinGainPercent: 5}, nil, nil)
	require.NoError(t, err)

	h := newHarness(t, opt)

	done := make(chan error, 1)
	go func() {
		_, err := h.pipeline.StartRemoteOptimization(context.Background())
		done <- err
	}()
	<-entered

	_, err = h.pipeline.StartRemoteOptimization(context.Background())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeJobRunning))

	status, err := h.pipeline.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Jobs[metrics.JobRemoteOptimization].Running)

	close(release)
	require.NoError(t, <-done)

	status, err = h.pipeline.Status(context.Background())
	require.NoError(t, err)
	last := status.Jobs[metrics.JobRemoteOptimization].LastRun
	require.NotNil(t, last)
	assert.Equal(t, 1, last.Covers.Success)
	assert.Equal(t, int64(5000), last.Total.TotalBytes)
}

type fakeKV struct {
	data map[string]string
	err  error
}

func (f *fakeKV) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	v, ok := f.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal([]byte(v), dst)
}

func (f *fakeKV) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.data[key] = string(payload)
	return nil
}

func (f *fakeKV) JobStatusKey(job string) string { return "st:job_status:" + job }

func TestRedisStatusStoreRoundTrip(t *testing.T) {
	kv := &fakeKV{data: map[string]string{}}
	store := NewRedisStatusStore(kv)
	ctx := context.Background()

	missing, err := store.Last(ctx, metrics.JobMigration)
	require.NoError(t, err)
	assert.Nil(t, missing)

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := RunRecord{
		Job:        metrics.JobMigration,
		Trigger:    TriggerCron,
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
		Covers:     stats.RunStats{Success: 3, TotalBytes: 300, Batches: 1},
		Error:      "partial",
	}
	require.NoError(t, store.Save(ctx, rec))
	assert.Contains(t, kv.data, "st:job_status:image_migration")

	got, err := store.Last(ctx, metrics.JobMigration)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.Covers, got.Covers)
	assert.Equal(t, 90*time.Second, got.Duration())
	assert.Equal(t, "partial", got.Error)

	kv.err = errors.New("connection refused")
	_, err = store.Last(ctx, metrics.JobMigration)
	assert.Error(t, err)
}
