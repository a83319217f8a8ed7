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

// CoverRepository exposes story cover images as records.
type CoverRepository struct {
	repo.Base
	bucket string
}

var _ Source = (*CoverRepository)(nil)

func NewCoverRepository(db *gorm.DB, bucket string) *CoverRepository {
	return &CoverRepository{Base: repo.NewBase(db), bucket: bucket}
}

func (r *CoverRepository) Collection() enums.ImageCollection {
	return enums.ImageCollectionCovers
}

func (r *CoverRepository) ListUnmigrated(ctx context.Context, afterID int64, limit int) ([]Record, error) {
	var rows []models.Story
	err := r.Keyset(ctx, afterID, limit).
		Where("image_migrated = ?", false).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list unmigrated covers: %w", err)
	}
	return r.toRecords(rows), nil
}

func (r *CoverRepository) ListNotLocallyCompressed(ctx context.Context, afterID int64, limit int) ([]Record, error) {
	var rows []models.Story
	err := r.Keyset(ctx, afterID, limit).
		Where("is_cover_compressed = ? AND cover_image IS NOT NULL", false).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list uncompressed covers: %w", err)
	}
	return r.toRecords(rows), nil
}

func (r *CoverRepository) ListMigrated(ctx context.Context, afterID int64, limit int) ([]Record, error) {
	var rows []models.Story
	err := r.Keyset(ctx, afterID, limit).
		Where("image_migrated = ? AND cover_image_path IS NOT NULL AND cover_image_path <> ''", true).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list migrated covers: %w", err)
	}
	return r.toRecords(rows), nil
}

func (r *CoverRepository) FindByID(ctx context.Context, id int64) (*Record, error) {
	var row models.Story
	if err := r.DB(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("story %d not found", id))
		}
		return nil, fmt.Errorf("find story %d: %w", id, err)
	}
	rec := r.toRecord(row)
	return &rec, nil
}

// SaveMigration persists the storage reference and migrated flag of rec.
func (r *CoverRepository) SaveMigration(ctx context.Context, rec *Record) error {
	if rec == nil {
		return errors.New("nil record")
	}
	return r.update(ctx, rec.ID, "migration", map[string]any{
		"cover_image_path": refKey(rec.Ref),
		"image_migrated":   rec.Migrated,
	})
}

// SaveCompression persists the legacy payload and compressed flag of rec.
func (r *CoverRepository) SaveCompression(ctx context.Context, rec *Record) error {
	if rec == nil {
		return errors.New("nil record")
	}
	return r.update(ctx, rec.ID, "compression", map[string]any{
		"cover_image":         rec.Legacy.Data,
		"cover_image_type":    nullable(rec.Legacy.ContentType),
		"is_cover_compressed": rec.LocallyCompressed,
	})
}

func (r *CoverRepository) update(ctx context.Context, id int64, what string, columns map[string]any) error {
	res := r.DB(ctx).Model(&models.Story{}).Where("id = ?", id).Updates(columns)
	if res.Error != nil {
		return fmt.Errorf("save story %d %s: %w", id, what, res.Error)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("story %d not found", id))
	}
	return nil
}

func (r *CoverRepository) Counts(ctx context.Context) (Counts, error) {
	var (
		c   Counts
		err error
	)
	if c.Total, err = r.Count(ctx, &models.Story{}); err != nil {
		return c, fmt.Errorf("count covers: %w", err)
	}
	if c.Migrated, err = r.Count(ctx, &models.Story{}, "image_migrated = ?", true); err != nil {
		return c, fmt.Errorf("count migrated covers: %w", err)
	}
	if c.LocallyCompressed, err = r.Count(ctx, &models.Story{}, "is_cover_compressed = ?", true); err != nil {
		return c, fmt.Errorf("count compressed covers: %w", err)
	}
	return c, nil
}

func (r *CoverRepository) toRecords(rows []models.Story) []Record {
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, r.toRecord(row))
	}
	return out
}

func (r *CoverRepository) toRecord(row models.Story) Record {
	return Record{
		ID:                row.ID,
		Collection:        enums.ImageCollectionCovers,
		Legacy:            Inline{Data: row.CoverImage, ContentType: deref(row.CoverImageType)},
		Ref:               remoteFor(r.bucket, row.CoverImagePath),
		Migrated:          row.ImageMigrated,
		LocallyCompressed: row.IsCoverCompressed,
	}
}
