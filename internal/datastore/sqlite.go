package datastore

import (
	"fmt"

	"github.com/Deven-0012/Cloud-281/internal/conf"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLiteStore implements DataStore for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// Open sets up the SQLite database connection and runs migrations.
func (store *SQLiteStore) Open() error {
	path := store.Settings.Database.SQLite.Path
	if path == "" {
		return fmt.Errorf("sqlite database path is not configured")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         createGormLogger(),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}

	store.DB = db
	return performAutoMigration(db, store.Settings.Debug, "SQLite", path)
}

// Close is a no-op for SQLite, the file handle is managed by the driver.
func (store *SQLiteStore) Close() error {
	return nil
}
