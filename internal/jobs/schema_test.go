package jobs

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"lessonmedia/internal/config"
)

func TestOpenRejectsNewerSchema(t *testing.T) {
	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.DatabasePath = filepath.Join(base, "lessonmedia.db")
	cfg := &cfgVal
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	db, err := sql.Open("sqlite", dataSourceName(cfg.Paths.DatabasePath))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(context.Background(), "PRAGMA user_version = 99"); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	if _, err := Open(cfg); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestIsSQLiteBusy(t *testing.T) {
	if isSQLiteBusy(nil) {
		t.Fatal("nil error reported busy")
	}
	if !isSQLiteBusy(errors.New("database is locked (5) (SQLITE_BUSY)")) {
		t.Fatal("locked message not reported busy")
	}
	if isSQLiteBusy(errors.New("no such table: jobs")) {
		t.Fatal("unrelated error reported busy")
	}
}
