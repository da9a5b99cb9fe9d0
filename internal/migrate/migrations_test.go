package migrate

import (
	"testing"

	"github.com/rs/zerolog"

	"careboard/internal/db"
)

func TestMigrateFreshStore(t *testing.T) {
	conn, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	if err := Migrate(conn, zerolog.Nop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	v, err := Version(conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != 2 {
		t.Fatalf("expected schema version 2, got %d", v)
	}
	for _, table := range []string{"patients", "tasks", "events"} {
		var name string
		err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	if err := Migrate(conn, zerolog.Nop()); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	if err := Migrate(conn, zerolog.Nop()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected one row per schema step, got %d", n)
	}
}
