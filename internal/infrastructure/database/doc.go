// Package database opens the service's SQLite file and applies schema
// migrations to it.
//
// The database holds the device catalogue consulted by authenticators
// (see internal/device). Connections use WAL mode and a single writer.
// Migrations are plain .sql files paired as up/down and are applied in
// version order, each in its own transaction.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.Source()); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns are nullable or defaulted, and each
// up file ships with a down file where a rollback is possible.
package database
