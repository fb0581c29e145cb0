package exportdb

import (
	"context"

	"github.com/gowvp/exporter/internal/core/export"
	"github.com/ixugo/goddd/pkg/orm"
	"gorm.io/gorm"
)

var _ export.ExportStorer = Export{}

// Export Related business namespaces
type Export DB

// NewExport instance object
func NewExport(db *gorm.DB) Export {
	return Export{db: db}
}

// Find implements export.ExportStorer.
func (d Export) Find(ctx context.Context, bs *[]*export.Export, page orm.Pager, opts ...orm.QueryOption) (int64, error) {
	query := func() *gorm.DB {
		db := d.db.WithContext(ctx).Model(new(export.Export))
		for _, fn := range opts {
			db = fn(db)
		}
		return db
	}

	var total int64
	if err := query().Count(&total).Error; err != nil || total == 0 {
		return total, err
	}
	db := query()
	if page != nil {
		db = db.Offset(page.Offset()).Limit(page.Limit())
	}
	return total, db.Find(bs).Error
}

// Get implements export.ExportStorer.
func (d Export) Get(ctx context.Context, b *export.Export, opts ...orm.QueryOption) error {
	db := d.db.WithContext(ctx)
	for _, fn := range opts {
		db = fn(db)
	}
	return db.First(b).Error
}

// Add implements export.ExportStorer.
func (d Export) Add(ctx context.Context, b *export.Export) error {
	return d.db.WithContext(ctx).Create(b).Error
}

// Del implements export.ExportStorer.
func (d Export) Del(ctx context.Context, b *export.Export, opts ...orm.QueryOption) error {
	db := d.db.WithContext(ctx)
	for _, fn := range opts {
		db = fn(db)
	}
	return db.Delete(b).Error
}

// Session implements export.ExportStorer.
func (d Export) Session(ctx context.Context, changeFns ...func(*gorm.DB) error) error {
	return session(ctx, d.db, changeFns...)
}
