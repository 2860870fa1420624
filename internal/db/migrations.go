package db

import (
	"errors"

	"gorm.io/gorm"
)

// SyncSchema creates/updates tables from models. There are no versioned
// migrations; new columns must carry defaults.
func SyncSchema(db *gorm.DB) error {
	if db == nil {
		return errors.New("db is required")
	}
	if err := db.AutoMigrate(&KVEntry{}); err != nil {
		return err
	}
	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_kv_entries_updated_at ON kv_entries(updated_at DESC);`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// MigrateUp is what `deskchat migrate up` and Open run.
func MigrateUp(db *gorm.DB) error {
	return SyncSchema(db)
}
