package db

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cloudpico-positioning/internal/config"
)

func TestBuildDSN(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name       string
		path       string
		wantPrefix string
		wantErr    bool
	}{
		{name: "empty", path: "", wantErr: true},
		{name: "memory", path: ":memory:", wantPrefix: ":memory:"},
		{name: "plain path", path: filepath.Join(dir, "a", "journal.db"), wantPrefix: "file:" + filepath.Join(dir, "a", "journal.db") + "?_foreign_keys=on"},
		{name: "file uri with params", path: "file:" + filepath.Join(dir, "b", "j.db") + "?cache=shared", wantPrefix: "file:" + filepath.Join(dir, "b", "j.db") + "?cache=shared&_foreign_keys=on"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildDSN(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("buildDSN(%q) error = nil", tt.path)
				}
				return
			}
			if err != nil {
				t.Fatalf("buildDSN(%q) error = %v", tt.path, err)
			}
			if !strings.HasPrefix(got, tt.wantPrefix) {
				t.Errorf("buildDSN(%q) = %q, want prefix %q", tt.path, got, tt.wantPrefix)
			}
		})
	}

	if _, err := os.Stat(filepath.Join(dir, "a")); err != nil {
		t.Errorf("journal directory not created: %v", err)
	}
}

func TestOpen(t *testing.T) {
	for _, level := range []slog.Level{slog.LevelInfo, slog.LevelDebug} {
		t.Run(level.String(), func(t *testing.T) {
			cfg := config.Config{
				LogLevel:    level,
				JournalPath: filepath.Join(t.TempDir(), "journal.db"),
			}
			db, err := Open(cfg, slog.New(slog.DiscardHandler))
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer func() { _ = Close(db) }()

			var ok int
			if err := db.QueryRow(`SELECT 1`).Scan(&ok); err != nil || ok != 1 {
				t.Fatalf("SELECT 1 = %d, %v", ok, err)
			}
		})
	}
}

func TestClose_Nil(t *testing.T) {
	if err := Close(nil); err != nil {
		t.Errorf("Close(nil) = %v", err)
	}
}
