package migrate

import (
	"database/sql"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func countApplied(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ` + tableName).Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	return n
}

func TestRun_EmbeddedSchema(t *testing.T) {
	db := openMemory(t)

	if err := Run(db); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, err := db.Exec(`INSERT INTO flush_journal (packet, samples, bytes, success, attempted_at) VALUES (0, 1, 2, 1, 'now')`); err != nil {
		t.Fatalf("flush_journal not usable: %v", err)
	}

	// Second run is a no-op.
	before := countApplied(t, db)
	if err := Run(db); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if after := countApplied(t, db); after != before {
		t.Errorf("applied count changed %d -> %d", before, after)
	}
}

func TestRunFS_OrderAndSkip(t *testing.T) {
	db := openMemory(t)
	fsys := fstest.MapFS{
		"0002_second.sql": {Data: []byte(`INSERT INTO log (v) VALUES ('second');`)},
		"0001_first.sql":  {Data: []byte(`CREATE TABLE log (id INTEGER PRIMARY KEY AUTOINCREMENT, v TEXT);`)},
		"README.md":       {Data: []byte(`not a migration`)},
	}

	if err := RunFS(db, fsys); err != nil {
		t.Fatalf("RunFS() error = %v", err)
	}
	if n := countApplied(t, db); n != 2 {
		t.Errorf("applied = %d, want 2", n)
	}
	var v string
	if err := db.QueryRow(`SELECT v FROM log`).Scan(&v); err != nil || v != "second" {
		t.Errorf("log row = %q, %v", v, err)
	}
}

func TestRunFS_FailedMigrationRollsBack(t *testing.T) {
	db := openMemory(t)
	fsys := fstest.MapFS{
		"0001_ok.sql":  {Data: []byte(`CREATE TABLE a (id INTEGER);`)},
		"0002_bad.sql": {Data: []byte(`INSERT INTO missing_table VALUES (1);`)},
	}

	if err := RunFS(db, fsys); err == nil {
		t.Fatal("RunFS() error = nil, want failure")
	}
	if n := countApplied(t, db); n != 1 {
		t.Errorf("applied = %d, want 1", n)
	}
}

func TestRunFS_DuplicateVersion(t *testing.T) {
	db := openMemory(t)
	fsys := fstest.MapFS{
		"0001_a.sql": {Data: []byte(`SELECT 1;`)},
		"0001_b.sql": {Data: []byte(`SELECT 1;`)},
	}

	if err := RunFS(db, fsys); err == nil {
		t.Fatal("RunFS() error = nil, want duplicate version error")
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		in          string
		wantVersion string
		wantName    string
		wantOK      bool
	}{
		{in: "0001_flush_journal.sql", wantVersion: "0001", wantName: "flush_journal", wantOK: true},
		{in: "1_short.sql", wantOK: false},
		{in: "0001_x.txt", wantOK: false},
	}
	for _, tt := range tests {
		v, n, ok := parseMigrationFilename(tt.in)
		if ok != tt.wantOK || v != tt.wantVersion || n != tt.wantName {
			t.Errorf("parseMigrationFilename(%q) = %q, %q, %v", tt.in, v, n, ok)
		}
	}
}
