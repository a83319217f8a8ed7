package models

import "time"

// Story is a published story. Its cover image may still live in the legacy
// cover_image blob column until the migration sweep moves it to object storage.
type Story struct {
	ID                int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Title             string    `gorm:"column:title;not null"`
	Tags              *string   `gorm:"column:tags"`
	CoverImage        []byte    `gorm:"column:cover_image"`
	CoverImageType    *string   `gorm:"column:cover_image_type"`
	CoverImagePath    *string   `gorm:"column:cover_image_path"`
	ImageMigrated     bool      `gorm:"column:image_migrated;not null;default:false"`
	IsCoverCompressed bool      `gorm:"column:is_cover_compressed;not null;default:false"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Story) TableName() string { return "stories" }
