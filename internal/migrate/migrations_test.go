package migrate_test

import (
	"testing"

	"taskdesk/internal/db"
	"taskdesk/internal/migrate"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	for i := 0; i < 2; i++ {
		if err := migrate.Migrate(conn); err != nil {
			t.Fatalf("migrate (run %d): %v", i+1, err)
		}
	}
	v, err := migrate.Version(conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != 1 {
		t.Fatalf("expected schema version 1, got %d", v)
	}

	var users int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&users); err != nil {
		t.Fatalf("users table missing after migrate: %v", err)
	}
	var ledger int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&ledger); err != nil {
		t.Fatalf("ledger missing: %v", err)
	}
	if ledger != 1 {
		t.Fatalf("expected one ledger row, got %d", ledger)
	}
}

func TestVersionOnFreshDatabase(t *testing.T) {
	conn, err := db.Open(db.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	v, err := migrate.Version(conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != 0 {
		t.Fatalf("expected version 0 on fresh database, got %d", v)
	}
}
