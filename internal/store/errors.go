package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write violates a unique constraint.
	ErrConflict = errors.New("conflict")

	// ErrReferenced is returned when a write violates a foreign key.
	ErrReferenced = errors.New("referenced record missing or in use")
)

// PostgreSQL SQLSTATE codes.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// mapError translates driver errors into the package sentinels, keeping the cause.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", ErrConflict, pqErr.Constraint)
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrReferenced, pqErr.Constraint)
		}
		return err
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", ErrConflict, sqliteErr)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%w: %v", ErrReferenced, sqliteErr)
		}
	}
	return err
}

// nullString converts an optional string into a driver value, nil meaning NULL.
func nullString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}
