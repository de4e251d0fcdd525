package database

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nerrad567/busmap-core/internal/infrastructure/config"
)

// openTestDB opens a fresh database in a temp directory.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen(t *testing.T) {
	t.Run("creates nested directories and file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "a", "b", "test.db")
		db, err := Open(config.DatabaseConfig{Path: path, BusyTimeout: 1})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close()

		if _, err := db.ExecContext(context.Background(), "CREATE TABLE t (id INTEGER)"); err != nil {
			t.Fatalf("ExecContext() error = %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("database file not created: %v", err)
		}
		if db.Path() != path {
			t.Errorf("Path() = %q, want %q", db.Path(), path)
		}
	})

	t.Run("WAL mode", func(t *testing.T) {
		db := openTestDB(t)
		var mode string
		if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
			t.Fatalf("PRAGMA error = %v", err)
		}
		if !strings.EqualFold(mode, "wal") {
			t.Errorf("journal_mode = %q, want wal", mode)
		}
	})
}

func TestDSN(t *testing.T) {
	got := dsn(config.DatabaseConfig{Path: "/tmp/x.db", BusyTimeout: 2})
	if got != "file:/tmp/x.db?_busy_timeout=2000&_foreign_keys=on" {
		t.Errorf("dsn() = %q", got)
	}
	got = dsn(config.DatabaseConfig{Path: "/tmp/x.db", WALMode: true})
	if !strings.Contains(got, "_journal_mode=WAL") {
		t.Errorf("dsn() = %q, want WAL pragma", got)
	}
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	db.Close()
	if err := db.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() after Close() expected error")
	}
}

func TestClose_Nil(t *testing.T) {
	var db *DB
	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
