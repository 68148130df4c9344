package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// migrationName is the naming convention for up migrations under
// db/migrations; anything else in the directory is ignored.
var migrationName = regexp.MustCompile(`^\d{4}_[a-z0-9_]+\.up\.sql$`)

// ApplyMigrations brings the schema up to date by running, in version
// order, every up migration in dir not yet recorded in schema_migrations.
// Each migration runs in its own transaction together with its bookkeeping
// row, so a failed statement leaves the ledger consistent.
func ApplyMigrations(ctx context.Context, db *sql.DB, dir string) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	pending, err := pendingMigrations(ctx, db, dir)
	if err != nil {
		return err
	}
	for _, version := range pending {
		if err := applyMigration(ctx, db, dir, version); err != nil {
			return err
		}
		log.Printf("store: applied migration %s", version)
	}
	return nil
}

// pendingMigrations returns, in order, the up migrations in dir whose
// versions are absent from schema_migrations.
func pendingMigrations(ctx context.Context, db *sql.DB, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}

	var pending []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !migrationName.MatchString(name) {
			continue
		}
		if !applied[name] {
			pending = append(pending, name)
		}
	}
	sort.Strings(pending)
	return pending, nil
}

func applyMigration(ctx context.Context, db *sql.DB, dir, version string) error {
	contents, err := os.ReadFile(filepath.Join(dir, version))
	if err != nil {
		return fmt.Errorf("read migration %s: %w", version, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx, string(contents)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("execute migration %s: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version) VALUES($1)`, version); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", version, err)
	}
	return nil
}
