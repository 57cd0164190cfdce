// Package storagetest opens throwaway SQLite stores for tests.
package storagetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/meltforce/gymlog/internal/storage"
)

// New returns a migrated SQLite store in the test's temp dir. It is closed
// when the test ends.
func New(t testing.TB) *storage.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "gymlog.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if err := storage.RunMigrations(storage.DriverSQLite, dsn); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	db, err := storage.NewSQLite(context.Background(), dsn)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}
