package database

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
)

// testSource holds two migrations; the second has no down file.
func testSource() Source {
	return Source{
		Dir: "sql",
		FS: fstest.MapFS{
			"sql/20260101_000000_create_widgets.up.sql": {
				Data: []byte("CREATE TABLE widgets (id TEXT PRIMARY KEY) STRICT;"),
			},
			"sql/20260101_000000_create_widgets.down.sql": {
				Data: []byte("DROP TABLE widgets;"),
			},
			"sql/20260102_000000_add_widget_index.up.sql": {
				Data: []byte("CREATE INDEX idx_widgets_id ON widgets(id);"),
			},
			"sql/README.md": {Data: []byte("ignored")},
		},
	}
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	if err != nil {
		t.Fatalf("sqlite_master query error = %v", err)
	}
	return count == 1
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	src := testSource()

	if err := db.Migrate(ctx, src); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "widgets") {
		t.Fatal("widgets table not created")
	}

	applied, pending, err := db.MigrationStatus(ctx, src)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("applied=%d pending=%d, want 2 and 0", len(applied), len(pending))
	}
	if applied[0].Version != "20260101_000000" || applied[1].Version != "20260102_000000" {
		t.Errorf("applied order = %v", applied)
	}

	if err := db.Migrate(ctx, src); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateFailureKeepsEarlierVersions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	src := testSource()
	src.FS.(fstest.MapFS)["sql/20260103_000000_broken.up.sql"] = &fstest.MapFile{Data: []byte("NOT SQL")}

	if err := db.Migrate(ctx, src); err == nil {
		t.Fatal("Migrate() should fail on broken migration")
	}

	applied, pending, err := db.MigrationStatus(ctx, src)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 {
		t.Errorf("applied = %d, want 2", len(applied))
	}
	if len(pending) != 1 || pending[0].Name != "broken" {
		t.Errorf("pending = %v, want [broken]", pending)
	}
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	src := testSource()
	delete(src.FS.(fstest.MapFS), "sql/20260102_000000_add_widget_index.up.sql")

	if err := db.Migrate(ctx, src); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx, src); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "widgets") {
		t.Error("widgets table should have been dropped")
	}

	applied, _, err := db.MigrationStatus(ctx, src)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("applied = %d after rollback, want 0", len(applied))
	}

	// Nothing left to roll back.
	if err := db.MigrateDown(ctx, src); err != nil {
		t.Errorf("MigrateDown() on empty history error = %v", err)
	}
}

func TestMigrateDownWithoutDownSQL(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	src := testSource()

	if err := db.Migrate(ctx, src); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx, src); !errors.Is(err, ErrNoDownMigration) {
		t.Errorf("MigrateDown() error = %v, want ErrNoDownMigration", err)
	}
}

func TestMigrateDownMissingFile(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx, testSource()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx, Source{FS: fstest.MapFS{}}); !errors.Is(err, ErrMigrationNotFound) {
		t.Errorf("MigrateDown() error = %v, want ErrMigrationNotFound", err)
	}
}

func TestMigrateNilSource(t *testing.T) {
	db := openTestDB(t)

	if err := db.Migrate(context.Background(), Source{}); err != nil {
		t.Fatalf("Migrate() with no source error = %v", err)
	}
}

func TestMigrationStatusBeforeMigrate(t *testing.T) {
	db := openTestDB(t)

	applied, pending, err := db.MigrationStatus(context.Background(), testSource())
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 0 || len(pending) != 2 {
		t.Errorf("applied=%d pending=%d, want 0 and 2", len(applied), len(pending))
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantIsUp    bool
		wantOk      bool
	}{
		{"20260301_120000_devices.up.sql", "20260301_120000", true, true},
		{"20260301_120000_devices.down.sql", "20260301_120000", false, true},
		{"readme.txt", "", false, false},
		{"20260301_120000_devices.sql", "", false, false},
		{"invalid.up.sql", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if ok && (version != tt.wantVersion || isUp != tt.wantIsUp) {
				t.Errorf("got (%q, %v), want (%q, %v)", version, isUp, tt.wantVersion, tt.wantIsUp)
			}
		})
	}
}

func TestExtractMigrationName(t *testing.T) {
	tests := map[string]string{
		"20260301_120000_devices.up.sql":          "devices",
		"20260301_120000_device_secrets.down.sql": "device_secrets",
		"20260301.up.sql":                         "20260301",
	}
	for filename, want := range tests {
		if got := extractMigrationName(filename); got != want {
			t.Errorf("extractMigrationName(%q) = %q, want %q", filename, got, want)
		}
	}
}
