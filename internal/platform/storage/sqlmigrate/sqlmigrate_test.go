package sqlmigrate

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func TestApplyRecordsApplied(t *testing.T) {
	db := openMemoryDB(t)

	migrations := fstest.MapFS{
		"001_create.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE items(id TEXT PRIMARY KEY);\n-- +migrate Down\nDROP TABLE items;"),
		},
	}
	if err := Apply(context.Background(), db, migrations, ""); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if got := countRows(t, db, "schema_migrations"); got != 1 {
		t.Fatalf("expected 1 migration row, got %d", got)
	}
	if got := countRows(t, db, "items"); got != 0 {
		t.Fatalf("expected empty items table, got %d rows", got)
	}
}

func TestApplySkipsAlreadyApplied(t *testing.T) {
	db := openMemoryDB(t)
	migrations := fstest.MapFS{
		"001_create.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE items(id TEXT PRIMARY KEY);"),
		},
	}

	for i := 0; i < 2; i++ {
		if err := Apply(context.Background(), db, migrations, ""); err != nil {
			t.Fatalf("apply run %d: %v", i, err)
		}
	}
	if got := countRows(t, db, "schema_migrations"); got != 1 {
		t.Fatalf("expected single migration row after replay, got %d", got)
	}
}

func TestApplyDoesNotRecordFailedMigration(t *testing.T) {
	db := openMemoryDB(t)

	bad := fstest.MapFS{
		"001_bad.sql": &fstest.MapFile{Data: []byte("-- +migrate Up\nCREAT table things(id INT);")},
	}
	if err := Apply(context.Background(), db, bad, ""); err == nil {
		t.Fatal("expected bad migration to fail")
	}
	if got := countRows(t, db, "schema_migrations"); got != 0 {
		t.Fatalf("expected failed migration to stay unrecorded, got %d", got)
	}
}

func TestApplyUsesRootInKey(t *testing.T) {
	db := openMemoryDB(t)
	migrations := fstest.MapFS{
		"migrations/001_events.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE event_rows(id TEXT PRIMARY KEY);"),
		},
	}
	if err := Apply(context.Background(), db, migrations, "migrations"); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	var key string
	if err := db.Get(&key, "SELECT name FROM schema_migrations LIMIT 1"); err != nil {
		t.Fatalf("read key: %v", err)
	}
	if key != "migrations/001_events.sql" {
		t.Fatalf("unexpected migration key %q", key)
	}
}

func TestExtractUp(t *testing.T) {
	got := ExtractUp("-- +migrate Up\nA;\n-- +migrate Down\nB;")
	if got != "\nA;\n" {
		t.Fatalf("ExtractUp = %q", got)
	}
	if got := ExtractUp("C;"); got != "C;" {
		t.Fatalf("ExtractUp without markers = %q", got)
	}
}

func openMemoryDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func countRows(t *testing.T, db *sqlx.DB, table string) int {
	t.Helper()
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM "+table); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}
