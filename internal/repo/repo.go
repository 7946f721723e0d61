package repo

import (
	"database/sql"
	"errors"
	"strings"
)

// Repo bundles the SQL-backed stores. Methods suspend only inside
// database calls; no lock is held across them, so one request's
// queries never block another's authorization decision.
type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound    = errors.New("not found")
	ErrEmailExists = errors.New("email already registered")
)

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func isUniqueViolation(err error, column string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}
