// Package records adapts the story and page tables into image records the
// migration and compression sweeps can enumerate and persist.
package records

import (
	"context"
	"strings"

	"github.com/siva27neelam/story-telling/pkg/enums"
)

// Image is where the authoritative bytes of a record live: either Inline in
// the database row or Remote in the object store.
type Image interface {
	isImage()
}

type Inline struct {
	Data        []byte
	ContentType string
}

type Remote struct {
	Bucket string
	Key    string
}

func (Inline) isImage() {}
func (Remote) isImage() {}

// Empty reports whether the inline payload carries no bytes.
func (i Inline) Empty() bool { return len(i.Data) == 0 }

// IsImage reports whether the declared content type is an image/* type.
func (i Inline) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(i.ContentType)), "image/")
}

// Record is one image-bearing row: a story cover or a page illustration.
// The legacy payload is kept after migration, so Migrated implies Ref is set
// but says nothing about Legacy being cleared.
type Record struct {
	ID                int64
	Collection        enums.ImageCollection
	Legacy            Inline
	Ref               *Remote
	Migrated          bool
	LocallyCompressed bool
}

// Source returns the authoritative image for serving.
func (r Record) Source() Image {
	if r.Ref != nil && r.Ref.Key != "" {
		return *r.Ref
	}
	return r.Legacy
}

// MarkMigrated records the storage reference and flips the migrated flag.
func (r *Record) MarkMigrated(ref Remote) {
	r.Ref = &ref
	r.Migrated = true
}

// MarkSkipped flips the migrated flag without a reference. Used for rows that
// have nothing to move.
func (r *Record) MarkSkipped() {
	r.Migrated = true
}

// Counts is a progress snapshot for one collection.
type Counts struct {
	Total             int64 `json:"total"`
	Migrated          int64 `json:"migrated"`
	LocallyCompressed int64 `json:"locally_compressed"`
}

// Source enumerates and persists the records of one collection. List calls
// page by ascending id strictly after afterID and re-evaluate their filter on
// every call.
//
// Migration and local compression may run at the same time on the same row,
// so each owns a disjoint set of columns: SaveMigration writes only the
// storage reference and migrated flag, SaveCompression only the legacy
// payload and compressed flag.
type Source interface {
	Collection() enums.ImageCollection
	ListUnmigrated(ctx context.Context, afterID int64, limit int) ([]Record, error)
	ListNotLocallyCompressed(ctx context.Context, afterID int64, limit int) ([]Record, error)
	// ListMigrated returns rows whose image lives in the collection's bucket.
	ListMigrated(ctx context.Context, afterID int64, limit int) ([]Record, error)
	FindByID(ctx context.Context, id int64) (*Record, error)
	SaveMigration(ctx context.Context, rec *Record) error
	SaveCompression(ctx context.Context, rec *Record) error
	Counts(ctx context.Context) (Counts, error)
}
