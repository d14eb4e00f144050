package db

import (
	"path/filepath"
	"testing"

	"github.com/cutroom/floor-service/internal/config"
)

// NewTestDB creates a fresh file-backed SQLite database with migrations applied.
func NewTestDB(t *testing.T) *Database {
	t.Helper()

	cfg := config.Database{
		Driver: DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "test.sqlite3"),
	}

	database, err := New(cfg)
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	if err := database.Migrate(cfg); err != nil {
		database.Close()
		t.Fatalf("migrating test database: %v", err)
	}

	t.Cleanup(func() { database.Close() })

	return database
}
