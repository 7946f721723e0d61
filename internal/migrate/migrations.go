// Package migrate brings the taskdesk database schema up to date from
// SQL scripts embedded at build time. Applied steps are recorded one
// row each in schema_migrations, so reruns are cheap no-ops and the
// ledger doubles as an upgrade history.
package migrate

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed sql/*.sql
var schemaFS embed.FS

// step is one embedded script. Filenames follow NNNN_label.sql; the
// numeric prefix orders them and the label lands in the ledger.
type step struct {
	version int
	label   string
	script  string
}

func parseStepName(name string) (version int, label string, err error) {
	prefix, rest, ok := strings.Cut(name, "_")
	if !ok {
		return 0, "", fmt.Errorf("migration %s: want NNNN_label.sql", name)
	}
	version, err = strconv.Atoi(prefix)
	if err != nil || version <= 0 {
		return 0, "", fmt.Errorf("migration %s: bad version prefix", name)
	}
	return version, strings.TrimSuffix(rest, ".sql"), nil
}

func loadSteps() ([]step, error) {
	entries, err := fs.ReadDir(schemaFS, "sql")
	if err != nil {
		return nil, err
	}
	steps := make([]step, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		version, label, err := parseStepName(e.Name())
		if err != nil {
			return nil, err
		}
		script, err := schemaFS.ReadFile("sql/" + e.Name())
		if err != nil {
			return nil, err
		}
		steps = append(steps, step{version: version, label: label, script: string(script)})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].version < steps[j].version })
	return steps, nil
}

// Migrate applies any pending schema steps inside a single transaction.
func Migrate(db *sql.DB) error {
	steps, err := loadSteps()
	if err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations(
  version INTEGER PRIMARY KEY,
  label TEXT NOT NULL,
  applied_at TEXT NOT NULL
)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := map[int]bool{}
	rows, err := tx.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return err
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, s := range steps {
		if applied[s.version] {
			continue
		}
		if _, err := tx.Exec(s.script); err != nil {
			return fmt.Errorf("apply %04d_%s: %w", s.version, s.label, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version,label,applied_at) VALUES (?,?,?)`,
			s.version, s.label, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("record %04d_%s: %w", s.version, s.label, err)
		}
	}
	return tx.Commit()
}

// Version reports the highest applied schema version, zero for a
// database that has never been migrated.
func Version(db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_migrations'`).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, nil
	}
	var v sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&v); err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}
