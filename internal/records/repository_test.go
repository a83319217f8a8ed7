package records_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siva27neelam/story-telling/internal/records"
	"github.com/siva27neelam/story-telling/internal/records/recordstest"
	"github.com/siva27neelam/story-telling/pkg/enums"
	pkgerrors "github.com/siva27neelam/story-telling/pkg/errors"
)

func TestCoverRepositoryKeysetPaging(t *testing.T) {
	db := recordstest.OpenDB(t)
	repo := records.NewCoverRepository(db, "covers")
	ctx := context.Background()

	a := recordstest.SeedStory(t, db, []byte("a"), "image/png")
	b := recordstest.SeedStory(t, db, []byte("b"), "image/png")
	c := recordstest.SeedStory(t, db, nil, "")

	first, err := repo.ListUnmigrated(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, a.ID, first[0].ID)
	assert.Equal(t, b.ID, first[1].ID)
	assert.Equal(t, enums.ImageCollectionCovers, first[0].Collection)

	rest, err := repo.ListUnmigrated(ctx, b.ID, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, c.ID, rest[0].ID)
	assert.True(t, rest[0].Legacy.Empty())
}

func TestCoverRepositorySaveRemovesFromUnmigrated(t *testing.T) {
	db := recordstest.OpenDB(t)
	repo := records.NewCoverRepository(db, "covers")
	ctx := context.Background()

	story := recordstest.SeedStory(t, db, []byte("payload"), "image/jpeg")

	rec, err := repo.FindByID(ctx, story.ID)
	require.NoError(t, err)
	rec.MarkMigrated(records.Remote{Bucket: "covers", Key: "abc.jpg"})
	require.NoError(t, repo.SaveMigration(ctx, rec))

	left, err := repo.ListUnmigrated(ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, left)

	reloaded, err := repo.FindByID(ctx, story.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Migrated)
	assert.Equal(t, records.Remote{Bucket: "covers", Key: "abc.jpg"}, reloaded.Source())
	assert.Equal(t, []byte("payload"), reloaded.Legacy.Data, "legacy payload is retained")
}

func TestCoverRepositoryFindByIDNotFound(t *testing.T) {
	db := recordstest.OpenDB(t)
	repo := records.NewCoverRepository(db, "covers")

	_, err := repo.FindByID(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	err = repo.SaveMigration(context.Background(), &records.Record{ID: 999})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	err = repo.SaveCompression(context.Background(), &records.Record{ID: 999})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestPageRepositoryNotLocallyCompressedSkipsNullPayload(t *testing.T) {
	db := recordstest.OpenDB(t)
	repo := records.NewPageRepository(db, "pages")
	ctx := context.Background()

	story := recordstest.SeedStory(t, db, nil, "")
	withImage := recordstest.SeedPage(t, db, story.ID, []byte("img"), "image/gif")
	recordstest.SeedPage(t, db, story.ID, nil, "")

	recs, err := repo.ListNotLocallyCompressed(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, withImage.ID, recs[0].ID)
	assert.Equal(t, "image/gif", recs[0].Legacy.ContentType)

	recs[0].LocallyCompressed = true
	require.NoError(t, repo.SaveCompression(ctx, &recs[0]))

	recs, err = repo.ListNotLocallyCompressed(ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, recs)

	counts, err := repo.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, records.Counts{Total: 2, Migrated: 0, LocallyCompressed: 1}, counts)
}

func TestCoverSavesKeepEachOthersColumns(t *testing.T) {
	db := recordstest.OpenDB(t)
	repo := records.NewCoverRepository(db, "covers")
	ctx := context.Background()

	story := recordstest.SeedStory(t, db, []byte("original-payload"), "image/png")

	// both jobs read the row before either writes
	sweepCopy, err := repo.FindByID(ctx, story.ID)
	require.NoError(t, err)
	migrationCopy, err := repo.FindByID(ctx, story.ID)
	require.NoError(t, err)

	migrationCopy.MarkMigrated(records.Remote{Bucket: "covers", Key: "k1.png"})
	require.NoError(t, repo.SaveMigration(ctx, migrationCopy))

	sweepCopy.Legacy = records.Inline{Data: []byte("small"), ContentType: "image/jpeg"}
	sweepCopy.LocallyCompressed = true
	require.NoError(t, repo.SaveCompression(ctx, sweepCopy))

	got, err := repo.FindByID(ctx, story.ID)
	require.NoError(t, err)
	assert.True(t, got.Migrated)
	assert.Equal(t, records.Remote{Bucket: "covers", Key: "k1.png"}, got.Source())
	assert.True(t, got.LocallyCompressed)
	assert.Equal(t, []byte("small"), got.Legacy.Data)
	assert.Equal(t, "image/jpeg", got.Legacy.ContentType)
}

func TestPageSavesKeepEachOthersColumns(t *testing.T) {
	db := recordstest.OpenDB(t)
	repo := records.NewPageRepository(db, "pages")
	ctx := context.Background()

	story := recordstest.SeedStory(t, db, nil, "")
	page := recordstest.SeedPage(t, db, story.ID, []byte("page-payload"), "image/png")

	migrationCopy, err := repo.FindByID(ctx, page.ID)
	require.NoError(t, err)
	sweepCopy, err := repo.FindByID(ctx, page.ID)
	require.NoError(t, err)

	// compression lands first this time
	sweepCopy.Legacy = records.Inline{Data: []byte("tiny"), ContentType: "image/png"}
	sweepCopy.LocallyCompressed = true
	require.NoError(t, repo.SaveCompression(ctx, sweepCopy))

	migrationCopy.MarkMigrated(records.Remote{Bucket: "pages", Key: "p1.png"})
	require.NoError(t, repo.SaveMigration(ctx, migrationCopy))

	got, err := repo.FindByID(ctx, page.ID)
	require.NoError(t, err)
	assert.True(t, got.LocallyCompressed)
	assert.Equal(t, []byte("tiny"), got.Legacy.Data)
	assert.True(t, got.Migrated)
	assert.Equal(t, records.Remote{Bucket: "pages", Key: "p1.png"}, got.Source())
}

func TestListMigratedOnlyReturnsStoredImages(t *testing.T) {
	db := recordstest.OpenDB(t)
	repo := records.NewCoverRepository(db, "covers")
	ctx := context.Background()

	stored := recordstest.SeedStory(t, db, []byte("a"), "image/png")
	empty := recordstest.SeedStory(t, db, nil, "")
	recordstest.SeedStory(t, db, []byte("b"), "image/png")
	second := recordstest.SeedStory(t, db, []byte("c"), "image/png")

	for id, key := range map[int64]string{stored.ID: "a.png", second.ID: "c.png"} {
		rec, err := repo.FindByID(ctx, id)
		require.NoError(t, err)
		rec.MarkMigrated(records.Remote{Bucket: "covers", Key: key})
		require.NoError(t, repo.SaveMigration(ctx, rec))
	}
	rec, err := repo.FindByID(ctx, empty.ID)
	require.NoError(t, err)
	rec.MarkSkipped()
	require.NoError(t, repo.SaveMigration(ctx, rec))

	first, err := repo.ListMigrated(ctx, 0, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, stored.ID, first[0].ID)
	assert.Equal(t, &records.Remote{Bucket: "covers", Key: "a.png"}, first[0].Ref)

	rest, err := repo.ListMigrated(ctx, first[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, second.ID, rest[0].ID)
}

func TestRecordSourceVariant(t *testing.T) {
	rec := records.Record{Legacy: records.Inline{Data: []byte("x"), ContentType: "image/png"}}
	inline, ok := rec.Source().(records.Inline)
	require.True(t, ok)
	assert.True(t, inline.IsImage())

	rec.MarkSkipped()
	assert.True(t, rec.Migrated)
	_, ok = rec.Source().(records.Inline)
	assert.True(t, ok, "skipped records have no remote reference")
}
