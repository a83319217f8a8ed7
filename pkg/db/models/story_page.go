package models

// StoryPage is a single page of a story with an optional illustration.
type StoryPage struct {
	ID                int64   `gorm:"column:id;primaryKey;autoIncrement"`
	StoryID           int64   `gorm:"column:story_id;not null;index"`
	PageOrder         int     `gorm:"column:page_order;not null;default:0"`
	Text              *string `gorm:"column:text"`
	ImageData         []byte  `gorm:"column:image_data"`
	ImageType         *string `gorm:"column:image_type"`
	ImagePath         *string `gorm:"column:image_path"`
	ImageMigrated     bool    `gorm:"column:image_migrated;not null;default:false"`
	IsImageCompressed bool    `gorm:"column:is_image_compressed;not null;default:false"`
}

func (StoryPage) TableName() string { return "story_pages" }
