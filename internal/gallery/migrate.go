package gallery

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
)

// MigrationDialect holds the backend-specific statements used by Migrate.
type MigrationDialect struct {
	// CreateTable creates schema_migrations(version, applied_at) if it does not exist.
	CreateTable string
	// RecordVersion inserts one version row; its only argument is the file name.
	RecordVersion string
}

// Migrate applies the *.sql files in dir of fsys that are not yet recorded in
// schema_migrations, in file name order. Each file runs in its own transaction
// together with its version row.
func Migrate(ctx context.Context, db *sql.DB, fsys fs.FS, dir string, dialect MigrationDialect) error {
	if _, err := db.ExecContext(ctx, dialect.CreateTable); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	done, err := AppliedMigrations(ctx, db)
	if err != nil {
		return err
	}

	pending, err := pendingMigrations(fsys, dir, done)
	if err != nil {
		return err
	}

	for _, file := range pending {
		if err := applyMigration(ctx, db, fsys, path.Join(dir, file), file, dialect); err != nil {
			return err
		}
	}
	return nil
}

func pendingMigrations(fsys fs.FS, dir string, done []string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") || slices.Contains(done, e.Name()) {
			continue
		}
		files = append(files, e.Name())
	}
	slices.Sort(files)
	return files, nil
}

func applyMigration(ctx context.Context, db *sql.DB, fsys fs.FS, name, version string, dialect MigrationDialect) error {
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", version, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for %s: %w", version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("execute migration %s: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx, dialect.RecordVersion, version); err != nil {
		return fmt.Errorf("record migration %s: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", version, err)
	}
	return nil
}

// AppliedMigrations returns the recorded migration versions in order.
func AppliedMigrations(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migration versions: %w", err)
	}
	return versions, nil
}
