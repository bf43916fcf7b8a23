package shared

import (
	"database/sql"
	"testing"
)

var schemaTables = []string{
	"categories", "videos", "category_videos", "playlists",
	"sync_jobs", "sync_video_operations", "backup_snapshots", "quota_usage",
}

func migratedDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func tableExists(t *testing.T, db *sql.DB, table string) bool {
	t.Helper()

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n); err != nil {
		t.Fatalf("failed to inspect sqlite_master: %v", err)
	}
	return n == 1
}

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations()
	if err != nil {
		t.Fatalf("failed to load migrations: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected library and sync migrations, got %d", len(migrations))
	}

	for i, m := range migrations {
		if m.Version != i {
			t.Errorf("expected version %d at index %d, got %d", i, i, m.Version)
		}
		if m.Up == "" || m.Down == "" {
			t.Errorf("migration %d (%s) is missing a direction", m.Version, m.Name)
		}
	}
	if migrations[0].Name != "create_library" || migrations[1].Name != "create_sync" {
		t.Errorf("unexpected names %q, %q", migrations[0].Name, migrations[1].Name)
	}
}

func TestRunMigrations(t *testing.T) {
	t.Run("creates the schema", func(t *testing.T) {
		db := migratedDB(t)
		for _, table := range schemaTables {
			if !tableExists(t, db, table) {
				t.Errorf("%s should exist after migrations", table)
			}
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		db := migratedDB(t)
		if err := RunMigrations(db); err != nil {
			t.Fatalf("second run failed: %v", err)
		}

		applied, err := AppliedVersions(db)
		if err != nil {
			t.Fatalf("AppliedVersions() error = %v", err)
		}
		if len(applied) != 2 || !applied[0] || !applied[1] {
			t.Errorf("expected versions 0 and 1, got %v", applied)
		}
	})

	t.Run("rolls back one version at a time", func(t *testing.T) {
		db := migratedDB(t)

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("first rollback failed: %v", err)
		}
		if tableExists(t, db, "sync_jobs") || !tableExists(t, db, "categories") {
			t.Error("expected only the sync tables to be dropped")
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("second rollback failed: %v", err)
		}
		for _, table := range schemaTables {
			if tableExists(t, db, table) {
				t.Errorf("%s should be gone after a full rollback", table)
			}
		}

		if err := RollbackMigration(db); err == nil {
			t.Error("expected an error with nothing left to roll back")
		}
		if err := RunMigrations(db); err != nil {
			t.Fatalf("re-applying after rollback failed: %v", err)
		}
	})
}

func TestSchemaConstraints(t *testing.T) {
	db := migratedDB(t)

	category := `INSERT INTO categories (id, sequence, name, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, ?)`
	video := `INSERT INTO videos (id, sequence, youtube_id, title, created_at, updated_at)
		VALUES (?, ?, ?, 'title', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`
	member := `INSERT INTO category_videos (id, sequence, category_id, video_id, added_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`

	mustExec := func(t *testing.T, query string, args ...any) {
		t.Helper()
		if _, err := db.Exec(query, args...); err != nil {
			t.Fatalf("exec failed: %v", err)
		}
	}

	mustExec(t, category, "c1", 1, "Music", nil)
	mustExec(t, video, "v1", 1, "yt-1")
	mustExec(t, member, "m1", 1, "c1", "v1")

	tests := []struct {
		name  string
		query string
		args  []any
	}{
		{"live category names are unique", category, []any{"c2", 2, "Music", nil}},
		{"youtube ids are unique", video, []any{"v2", 2, "yt-1"}},
		{"a video joins a category once", member, []any{"m2", 2, "c1", "v1"}},
		{"memberships need a category", member, []any{"m3", 3, "missing", "v1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := db.Exec(tt.query, tt.args...); err == nil {
				t.Error("expected a constraint violation")
			}
		})
	}

	t.Run("deleted categories free their name", func(t *testing.T) {
		mustExec(t, category, "c3", 3, "Archive", "2024-01-01 00:00:00")
		mustExec(t, category, "c4", 4, "Archive", nil)
	})

	t.Run("deleting a category cascades to its memberships", func(t *testing.T) {
		mustExec(t, "DELETE FROM categories WHERE id = ?", "c1")

		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM category_videos WHERE category_id = 'c1'").Scan(&n); err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if n != 0 {
			t.Errorf("expected memberships to cascade, %d left", n)
		}
	})
}
