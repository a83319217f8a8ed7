package records

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/siva27neelam/story-telling/internal/repo"
	"github.com/siva27neelam/story-telling/pkg/db/models"
	"github.com/siva27neelam/story-telling/pkg/enums"
	pkgerrors "github.com/siva27neelam/story-telling/pkg/errors"
)

// PageRepository exposes story page illustrations as records.
type PageRepository struct {
	repo.Base
	bucket string
}

var _ Source = (*PageRepository)(nil)

func NewPageRepository(db *gorm.DB, bucket string) *PageRepository {
	return &PageRepository{Base: repo.NewBase(db), bucket: bucket}
}

func (r *PageRepository) Collection() enums.ImageCollection {
	return enums.ImageCollectionPages
}

func (r *PageRepository) ListUnmigrated(ctx context.Context, afterID int64, limit int) ([]Record, error) {
	var rows []models.StoryPage
	err := r.Keyset(ctx, afterID, limit).
		Where("image_migrated = ?", false).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list unmigrated pages: %w", err)
	}
	return r.toRecords(rows), nil
}

func (r *PageRepository) ListNotLocallyCompressed(ctx context.Context, afterID int64, limit int) ([]Record, error) {
	var rows []models.StoryPage
	err := r.Keyset(ctx, afterID, limit).
		Where("is_image_compressed = ? AND image_data IS NOT NULL", false).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list uncompressed pages: %w", err)
	}
	return r.toRecords(rows), nil
}

func (r *PageRepository) ListMigrated(ctx context.Context, afterID int64, limit int) ([]Record, error) {
	var rows []models.StoryPage
	err := r.Keyset(ctx, afterID, limit).
		Where("image_migrated = ? AND image_path IS NOT NULL AND image_path <> ''", true).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list migrated pages: %w", err)
	}
	return r.toRecords(rows), nil
}

func (r *PageRepository) FindByID(ctx context.Context, id int64) (*Record, error) {
	var row models.StoryPage
	if err := r.DB(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("page %d not found", id))
		}
		return nil, fmt.Errorf("find page %d: %w", id, err)
	}
	rec := r.toRecord(row)
	return &rec, nil
}

// SaveMigration persists the storage reference and migrated flag of rec.
func (r *PageRepository) SaveMigration(ctx context.Context, rec *Record) error {
	if rec == nil {
		return errors.New("nil record")
	}
	return r.update(ctx, rec.ID, "migration", map[string]any{
		"image_path":     refKey(rec.Ref),
		"image_migrated": rec.Migrated,
	})
}

// SaveCompression persists the legacy payload and compressed flag of rec.
func (r *PageRepository) SaveCompression(ctx context.Context, rec *Record) error {
	if rec == nil {
		return errors.New("nil record")
	}
	return r.update(ctx, rec.ID, "compression", map[string]any{
		"image_data":          rec.Legacy.Data,
		"image_type":          nullable(rec.Legacy.ContentType),
		"is_image_compressed": rec.LocallyCompressed,
	})
}

func (r *PageRepository) update(ctx context.Context, id int64, what string, columns map[string]any) error {
	res := r.DB(ctx).Model(&models.StoryPage{}).Where("id = ?", id).Updates(columns)
	if res.Error != nil {
		return fmt.Errorf("save page %d %s: %w", id, what, res.Error)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("page %d not found", id))
	}
	return nil
}

func (r *PageRepository) Counts(ctx context.Context) (Counts, error) {
	var (
		c   Counts
		err error
	)
	if c.Total, err = r.Count(ctx, &models.StoryPage{}); err != nil {
		return c, fmt.Errorf("count pages: %w", err)
	}
	if c.Migrated, err = r.Count(ctx, &models.StoryPage{}, "image_migrated = ?", true); err != nil {
		return c, fmt.Errorf("count migrated pages: %w", err)
	}
	if c.LocallyCompressed, err = r.Count(ctx, &models.StoryPage{}, "is_image_compressed = ?", true); err != nil {
		return c, fmt.Errorf("count compressed pages: %w", err)
	}
	return c, nil
}

func (r *PageRepository) toRecords(rows []models.StoryPage) []Record {
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, r.toRecord(row))
	}
	return out
}

func (r *PageRepository) toRecord(row models.StoryPage) Record {
	return Record{
		ID:                row.ID,
		Collection:        enums.ImageCollectionPages,
		Legacy:            Inline{Data: row.ImageData, ContentType: deref(row.ImageType)},
		Ref:               remoteFor(r.bucket, row.ImagePath),
		Migrated:          row.ImageMigrated,
		LocallyCompressed: row.IsImageCompressed,
	}
}
