package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testMigrationsDir = "../../db/migrations"

func TestEveryUpMigrationHasADown(t *testing.T) {
	entries, err := os.ReadDir(testMigrationsDir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	var ups int
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !migrationName.MatchString(name) {
			continue
		}
		ups++
		down := strings.TrimSuffix(name, ".up.sql") + ".down.sql"
		if _, err := os.Stat(filepath.Join(testMigrationsDir, down)); err != nil {
			t.Errorf("migration %s has no matching %s: %v", name, down, err)
		}
	}
	if ups == 0 {
		t.Fatal("no up migrations discovered")
	}
}

func TestInitialMigrationCreatesCoreTables(t *testing.T) {
	contents, err := os.ReadFile(filepath.Join(testMigrationsDir, "0001_init.up.sql"))
	if err != nil {
		t.Fatalf("read init migration: %v", err)
	}
	schema := string(contents)
	for _, table := range []string{"users", "workspaces", "workspace_memberships", "refresh_sessions", "revoked_access_tokens", "songs", "services", "service_songs"} {
		if !strings.Contains(schema, "CREATE TABLE "+table+" (") {
			t.Errorf("init migration does not create table %s", table)
		}
	}
}

func TestSongSearchMigrationBuildsFTSIndex(t *testing.T) {
	contents, err := os.ReadFile(filepath.Join(testMigrationsDir, "0002_song_fts.up.sql"))
	if err != nil {
		t.Fatalf("read fts migration: %v", err)
	}
	schema := string(contents)
	if !strings.Contains(schema, "tsvector") {
		t.Error("fts migration does not add a tsvector column")
	}
	if !strings.Contains(schema, "USING GIN (fts)") {
		t.Error("fts migration does not build a GIN index over fts")
	}
}
