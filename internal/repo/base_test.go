package repo

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type blob struct {
	ID       int64
	Migrated bool
}

func newBase(t *testing.T, rows int) Base {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&blob{}))
	for i := 1; i <= rows; i++ {
		require.NoError(t, conn.Create(&blob{ID: int64(i), Migrated: i%2 == 0}).Error)
	}
	return NewBase(conn)
}

func TestDBBindsContext(t *testing.T) {
	base := newBase(t, 0)
	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	assert.Equal(t, ctx, base.DB(ctx).Statement.Context)
	assert.Same(t, base.db, base.DB(nil))
}

func TestKeysetPagesInIDOrder(t *testing.T) {
	base := newBase(t, 5)
	ctx := context.Background()

	var page []blob
	require.NoError(t, base.Keyset(ctx, 0, 2).Find(&page).Error)
	require.Len(t, page, 2)
	assert.Equal(t, []int64{1, 2}, []int64{page[0].ID, page[1].ID})

	page = nil
	require.NoError(t, base.Keyset(ctx, 2, 2).Where("migrated = ?", false).Find(&page).Error)
	require.Len(t, page, 2)
	assert.Equal(t, []int64{3, 5}, []int64{page[0].ID, page[1].ID})

	page = nil
	require.NoError(t, base.Keyset(ctx, 1, 0).Find(&page).Error)
	assert.Len(t, page, 4)
}

func TestCountWithAndWithoutFilter(t *testing.T) {
	base := newBase(t, 5)
	ctx := context.Background()

	total, err := base.Count(ctx, &blob{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)

	migrated, err := base.Count(ctx, &blob{}, "migrated = ?", true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), migrated)
}
