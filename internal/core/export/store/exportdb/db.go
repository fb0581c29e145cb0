package exportdb

import (
	"context"

	"github.com/gowvp/exporter/internal/core/export"
	"gorm.io/gorm"
)

var _ export.Storer = DB{}

// DB Related business namespaces
type DB struct {
	db *gorm.DB
}

// NewDB instance object
func NewDB(db *gorm.DB) DB {
	return DB{db: db}
}

// Export Get business instance
func (d DB) Export() export.ExportStorer {
	return Export(d)
}

// AutoMigrate sync database
func (d DB) AutoMigrate(ok bool) DB {
	if !ok {
		return d
	}
	if err := d.db.AutoMigrate(
		new(export.Export),
	); err != nil {
		panic(err)
	}
	return d
}

func session(ctx context.Context, db *gorm.DB, changeFns ...func(*gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, fn := range changeFns {
			if err := fn(tx); err != nil {
				return err
			}
		}
		return nil
	})
}
