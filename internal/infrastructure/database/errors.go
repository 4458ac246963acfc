package database

import "errors"

var (
	// ErrNoPath is returned by Open when no database file is configured.
	ErrNoPath = errors.New("database: path is required")

	// ErrClosed is returned when a closed DB is used.
	ErrClosed = errors.New("database: closed")

	// ErrMigrationNotFound means an applied version has no matching file.
	ErrMigrationNotFound = errors.New("database: migration not found")

	// ErrNoDownMigration means the latest migration cannot be rolled back.
	ErrNoDownMigration = errors.New("database: migration has no down SQL")
)
