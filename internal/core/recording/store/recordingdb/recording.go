package recordingdb

import (
	"context"

	"github.com/gowvp/exporter/internal/core/recording"
	"github.com/ixugo/goddd/pkg/orm"
	"gorm.io/gorm"
)

var _ recording.RecordingStorer = Recording{}

// Recording Related business namespaces
type Recording DB

// NewRecording instance object
func NewRecording(db *gorm.DB) Recording {
	return Recording{db: db}
}

// Find implements recording.RecordingStorer.
func (d Recording) Find(ctx context.Context, bs *[]*recording.Recording, page orm.Pager, opts ...orm.QueryOption) (int64, error) {
	query := func() *gorm.DB {
		db := d.db.WithContext(ctx).Model(new(recording.Recording))
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

// List implements recording.RecordingStorer.
func (d Recording) List(ctx context.Context, bs *[]*recording.Recording, limit int, opts ...orm.QueryOption) error {
	db := d.db.WithContext(ctx).Model(new(recording.Recording))
	for _, fn := range opts {
		db = fn(db)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}
	return db.Find(bs).Error
}

// Get implements recording.RecordingStorer.
func (d Recording) Get(ctx context.Context, b *recording.Recording, opts ...orm.QueryOption) error {
	db := d.db.WithContext(ctx)
	for _, fn := range opts {
		db = fn(db)
	}
	return db.First(b).Error
}

// Add implements recording.RecordingStorer.
func (d Recording) Add(ctx context.Context, b *recording.Recording) error {
	return d.db.WithContext(ctx).Create(b).Error
}

// Session implements recording.RecordingStorer.
func (d Recording) Session(ctx context.Context, changeFns ...func(*gorm.DB) error) error {
	return session(ctx, d.db, changeFns...)
}
