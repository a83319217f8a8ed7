package migration

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/siva27neelam/story-telling/internal/records"
	"github.com/siva27neelam/story-telling/internal/records/recordstest"
	"github.com/siva27neelam/story-telling/internal/stats"
	"github.com/siva27neelam/story-telling/pkg/config"
	"github.com/siva27neelam/story-telling/pkg/enums"
	pkgerrors "github.com/siva27neelam/story-telling/pkg/errors"
	"github.com/siva27neelam/story-telling/pkg/logger"
	"github.com/siva27neelam/story-telling/pkg/storage"
	"github.com/siva27neelam/story-telling/pkg/storage/memstore"
)

var testBuckets = storage.Buckets{Covers: "covers", Pages: "pages"}

// flakyStore fails every Put whose payload starts with failPrefix.
type flakyStore struct {
	*memstore.Store
	failPrefix []byte
}

func (f *flakyStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if len(f.failPrefix) > 0 && bytes.HasPrefix(data, f.failPrefix) {
		return errors.New("store unavailable")
	}
	return f.Store.Put(ctx, bucket, key, data, contentType)
}

type fixture struct {
	db     *gorm.DB
	store  *memstore.Store
	covers *records.CoverRepository
	pages  *records.PageRepository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := recordstest.OpenDB(t)
	return fixture{
		db:     db,
		store:  memstore.New(),
		covers: records.NewCoverRepository(db, testBuckets.Covers),
		pages:  records.NewPageRepository(db, testBuckets.Pages),
	}
}

func (f fixture) service(t *testing.T, store storage.ObjectStore) Service {
	t.Helper()
	svc, err := NewService(store, testBuckets, []records.Source{f.covers, f.pages}, Limits{DefaultBatchSize: 50, MaxBatchSize: 100}, nil, nil)
	require.NoError(t, err)
	return svc
}

func TestMigrateCollectionMovesJPEGCover(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t, f.store)
	ctx := context.Background()

	payload := bytes.Repeat([]byte{0xAB}, 50*1024)
	story := recordstest.SeedStory(t, f.db, payload, "image/jpeg")

	run, err := svc.MigrateCollection(ctx, enums.ImageCollectionCovers, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Success)
	assert.Equal(t, int64(51200), run.TotalBytes)
	assert.Zero(t, run.Error)
	assert.Zero(t, run.Skipped)
	assert.Equal(t, 1, f.store.PutCount())

	keys, err := f.store.List(ctx, testBuckets.Covers)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.True(t, strings.HasSuffix(keys[0], ".jpg"), "unexpected key %s", keys[0])
	assert.Equal(t, "image/jpeg", f.store.ContentType(testBuckets.Covers, keys[0]))

	rec, err := f.covers.FindByID(ctx, story.ID)
	require.NoError(t, err)
	assert.True(t, rec.Migrated)
	require.NotNil(t, rec.Ref)
	assert.Equal(t, keys[0], rec.Ref.Key)

	stored, err := f.store.Get(ctx, testBuckets.Covers, rec.Ref.Key)
	require.NoError(t, err)
	assert.Equal(t, payload, stored)
}

func TestMigrateCollectionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t, f.store)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		recordstest.SeedStory(t, f.db, []byte{byte(i + 1), 1, 2, 3}, "image/png")
	}

	first, err := svc.MigrateCollection(ctx, enums.ImageCollectionCovers, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, first.Success)
	assert.Equal(t, 3, first.Batches)

	second, err := svc.MigrateCollection(ctx, enums.ImageCollectionCovers, 2)
	require.NoError(t, err)
	assert.Equal(t, stats.RunStats{}, second)
	assert.Equal(t, 5, f.store.PutCount())
}

func TestMigrateCollectionSkipsEmptyPayloads(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t, f.store)
	ctx := context.Background()

	empty := recordstest.SeedStory(t, f.db, nil, "")
	zero := recordstest.SeedStory(t, f.db, []byte{}, "image/png")

	run, err := svc.MigrateCollection(ctx, enums.ImageCollectionCovers, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Skipped)
	assert.Zero(t, run.Success)
	assert.Zero(t, run.TotalBytes)
	assert.Zero(t, f.store.PutCount())

	for _, id := range []int64{empty.ID, zero.ID} {
		rec, err := f.covers.FindByID(ctx, id)
		require.NoError(t, err)
		assert.True(t, rec.Migrated)
		assert.Nil(t, rec.Ref)
	}
}

func TestMigrateCollectionIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	store := &flakyStore{Store: f.store, failPrefix: []byte("bad")}
	svc := f.service(t, store)
	ctx := context.Background()

	story := recordstest.SeedStory(t, f.db, nil, "")
	good1 := recordstest.SeedPage(t, f.db, story.ID, []byte("good-1"), "image/png")
	bad := recordstest.SeedPage(t, f.db, story.ID, []byte("bad-1"), "image/png")
	good2 := recordstest.SeedPage(t, f.db, story.ID, []byte("good-2"), "image/gif")

	run, err := svc.MigrateCollection(ctx, enums.ImageCollectionPages, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Success)
	assert.Equal(t, 1, run.Error)
	assert.Equal(t, int64(len("good-1")+len("good-2")), run.TotalBytes)

	failed, err := f.pages.FindByID(ctx, bad.ID)
	require.NoError(t, err)
	assert.False(t, failed.Migrated, "failed record stays retry-eligible")

	for _, id := range []int64{good1.ID, good2.ID} {
		rec, err := f.pages.FindByID(ctx, id)
		require.NoError(t, err)
		assert.True(t, rec.Migrated)
	}

	// the store recovers; the next run picks up only the failed record
	store.failPrefix = nil
	retry, err := svc.MigrateCollection(ctx, enums.ImageCollectionPages, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, retry.Success)
	assert.Zero(t, retry.Error)
}

func TestMigrateAllCombinesCollections(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t, f.store)
	ctx := context.Background()

	story := recordstest.SeedStory(t, f.db, []byte("cover"), "image/jpeg")
	recordstest.SeedPage(t, f.db, story.ID, []byte("page-a"), "image/png")
	recordstest.SeedPage(t, f.db, story.ID, nil, "")

	result, err := svc.MigrateAll(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Covers.Success)
	assert.Equal(t, 1, result.Pages.Success)
	assert.Equal(t, 1, result.Pages.Skipped)

	total := result.Total()
	assert.Equal(t, 2, total.Success)
	assert.Equal(t, int64(len("cover")+len("page-a")), total.TotalBytes)

	pageKeys, err := f.store.List(ctx, testBuckets.Pages)
	require.NoError(t, err)
	require.Len(t, pageKeys, 1)
	assert.True(t, strings.HasSuffix(pageKeys[0], ".png"))
}

func TestMigrateRecord(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t, f.store)
	ctx := context.Background()

	story := recordstest.SeedStory(t, f.db, []byte("cover"), "image/webp")

	outcome, err := svc.MigrateRecord(ctx, enums.ImageCollectionCovers, story.ID)
	require.NoError(t, err)
	assert.Equal(t, stats.OutcomeSuccess, outcome.Kind)

	again, err := svc.MigrateRecord(ctx, enums.ImageCollectionCovers, story.ID)
	require.NoError(t, err)
	assert.Equal(t, stats.OutcomeSkipped, again.Kind)

	_, err = svc.MigrateRecord(ctx, enums.ImageCollectionCovers, 4242)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.MigrateRecord(ctx, enums.ImageCollection("avatars"), story.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestMigrateCollectionStopsOnCancelledContext(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t, f.store)
	recordstest.SeedStory(t, f.db, []byte("cover"), "image/jpeg")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.MigrateCollection(ctx, enums.ImageCollectionCovers, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.store.PutCount())
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	f := newFixture(t)
	limits := Limits{DefaultBatchSize: 10}

	_, err := NewService(nil, testBuckets, []records.Source{f.covers, f.pages}, limits, nil, nil)
	assert.Error(t, err)

	_, err = NewService(f.store, testBuckets, []records.Source{f.covers}, limits, nil, nil)
	assert.Error(t, err)

	_, err = NewService(f.store, testBuckets, []records.Source{f.covers, f.pages}, Limits{}, nil, nil)
	assert.Error(t, err)
}

func TestBatchSizeClamping(t *testing.T) {
	s := &service{limits: Limits{DefaultBatchSize: 50, MaxBatchSize: 100}}
	assert.Equal(t, 50, s.batchSize(0))
	assert.Equal(t, 100, s.batchSize(5000))
	assert.Equal(t, 7, s.batchSize(7))
}

func TestMigrateRecordLogsPublicURL(t *testing.T) {
	f := newFixture(t)
	story := recordstest.SeedStory(t, f.db, []byte("cover"), "image/png")

	var out bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: "debug", Output: &out})
	urls := storage.NewURLResolver(config.StorageConfig{CoversURL: "https://covers.cdn"})
	svc, err := NewService(f.store, testBuckets, []records.Source{f.covers, f.pages},
		Limits{DefaultBatchSize: 10}, nil, logg, WithURLResolver(urls))
	require.NoError(t, err)

	outcome, err := svc.MigrateRecord(context.Background(), enums.ImageCollectionCovers, story.ID)
	require.NoError(t, err)
	require.Equal(t, stats.OutcomeSuccess, outcome.Kind)

	rec, err := f.covers.FindByID(context.Background(), story.ID)
	require.NoError(t, err)
	require.NotNil(t, rec.Ref)
	assert.True(t, strings.HasSuffix(rec.Ref.Key, ".png"))
	assert.Contains(t, out.String(), `"url":"https://covers.cdn/`+rec.Ref.Key+`"`)
}
