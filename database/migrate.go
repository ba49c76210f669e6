package database

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrInvalidPrefix is returned when the table name prefix contains
	// invalid characters.
	ErrInvalidPrefix = errors.New("table prefix must contain only lowercase letters, numbers, and underscores, and start with a letter")

	// validPrefixPattern validates PostgreSQL-safe identifiers.
	validPrefixPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

var (
	createBackendsTableSQL = `
CREATE TABLE IF NOT EXISTS %s_backends (
    service_id    VARCHAR       NOT NULL,
    backend_id    VARCHAR       NOT NULL,
    weight        INTEGER       NOT NULL,
    available     BOOLEAN       NOT NULL,
    overloaded    BOOLEAN       NOT NULL,
    updated_at    TIMESTAMPTZ   NOT NULL,

    PRIMARY KEY (service_id, backend_id)
);`

	createBackendsIndexSQL = `
CREATE INDEX IF NOT EXISTS %s
ON %s_backends (service_id);`
)

// ValidatePrefix checks if the table name prefix is valid for use as a
// PostgreSQL identifier.
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return errors.New("table prefix cannot be empty")
	}

	if len(prefix) > 50 {
		return errors.New("table prefix must be 50 characters or less")
	}

	if !validPrefixPattern.MatchString(prefix) {
		return ErrInvalidPrefix
	}

	return nil
}

// Migrate creates the backends table and its service index.
func Migrate(db *sql.DB, tableName string) error {
	if err := ValidatePrefix(tableName); err != nil {
		return fmt.Errorf("invalid table prefix: %w", err)
	}

	if err := createBackendsTable(db, tableName); err != nil {
		return err
	}

	if err := createBackendsIndex(db, tableName); err != nil {
		return err
	}

	return nil
}

func createBackendsTable(db *sql.DB, tableName string) error {
	var query = fmt.Sprintf(createBackendsTableSQL, tableName)
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create backends table: %w", err)
	}
	return nil
}

func createBackendsIndex(db *sql.DB, tableName string) error {
	var (
		indexName = fmt.Sprintf("%s_backends_service_idx", tableName)
		query     = fmt.Sprintf(createBackendsIndexSQL, indexName, tableName)
	)
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create backends index: %w", err)
	}
	return nil
}
