package migrations_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nerrad567/gray-logic-protocols/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-protocols/migrations"
)

func tableExists(t *testing.T, db *database.DB, name string) bool {
	t.Helper()
	var count int
	if err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count); err != nil {
		t.Fatalf("query error = %v", err)
	}
	return count == 1
}

func TestEmbeddedMigrationsApply(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: filepath.Join(t.TempDir(), "m.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // test cleanup

	if err := db.Migrate(ctx, migrations.Source()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	for _, table := range []string{"devices", "audit_logs"} {
		if !tableExists(t, db, table) {
			t.Fatalf("%s table not created", table)
		}
	}

	// Down migrations run newest first.
	if err := db.MigrateDown(ctx, migrations.Source()); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "audit_logs") || !tableExists(t, db, "devices") {
		t.Error("first MigrateDown should drop only audit_logs")
	}
	if err := db.MigrateDown(ctx, migrations.Source()); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "devices") {
		t.Error("devices table still present after second MigrateDown")
	}
}
