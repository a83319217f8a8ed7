package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base is embedded by the record repositories.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Keyset scopes a query to rows with id above afterID in ascending id order.
// A non-positive limit returns every remaining row.
func (b Base) Keyset(ctx context.Context, afterID int64, limit int) *gorm.DB {
	q := b.DB(ctx).Where("id > ?", afterID).Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}

// Count counts rows of model, optionally filtered by a where clause and its
// arguments.
func (b Base) Count(ctx context.Context, model any, where ...any) (int64, error) {
	q := b.DB(ctx).Model(model)
	if len(where) > 0 {
		q = q.Where(where[0], where[1:]...)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}
