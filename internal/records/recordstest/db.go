// Package recordstest opens throwaway sqlite databases with the story tables
// for package tests.
package recordstest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/siva27neelam/story-telling/pkg/db/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS stories (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  title TEXT NOT NULL,
  tags TEXT,
  cover_image BLOB,
  cover_image_type TEXT,
  cover_image_path TEXT,
  image_migrated INTEGER NOT NULL DEFAULT 0,
  is_cover_compressed INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS story_pages (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  story_id INTEGER NOT NULL,
  page_order INTEGER NOT NULL DEFAULT 0,
  text TEXT,
  image_data BLOB,
  image_type TEXT,
  image_path TEXT,
  image_migrated INTEGER NOT NULL DEFAULT 0,
  is_image_compressed INTEGER NOT NULL DEFAULT 0
);`

// OpenDB returns an isolated in-memory database with the schema applied.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Exec(schema).Error; err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// SeedStory inserts a story whose cover holds payload.
func SeedStory(t testing.TB, db *gorm.DB, payload []byte, contentType string) models.Story {
	t.Helper()

	story := models.Story{Title: "story", CoverImage: payload}
	if contentType != "" {
		story.CoverImageType = &contentType
	}
	if err := db.Create(&story).Error; err != nil {
		t.Fatalf("seed story: %v", err)
	}
	return story
}

// SeedPage inserts a page of storyID holding payload.
func SeedPage(t testing.TB, db *gorm.DB, storyID int64, payload []byte, contentType string) models.StoryPage {
	t.Helper()

	page := models.StoryPage{StoryID: storyID, ImageData: payload}
	if contentType != "" {
		page.ImageType = &contentType
	}
	if err := db.Create(&page).Error; err != nil {
		t.Fatalf("seed page: %v", err)
	}
	return page
}
