package sqlite

import (
	"context"
	"database/sql"
	"embed"

	"github.com/kozaktomas/face-gallery/internal/gallery"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var sqliteDialect = gallery.MigrationDialect{
	CreateTable: `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
	)`,
	RecordVersion: "INSERT INTO schema_migrations (version) VALUES (?)",
}

func migrate(ctx context.Context, db *sql.DB) error {
	return gallery.Migrate(ctx, db, migrationsFS, "migrations", sqliteDialect)
}

// MigrationsApplied returns the applied migration versions in order
func (s *Store) MigrationsApplied(ctx context.Context) ([]string, error) {
	return gallery.AppliedMigrations(ctx, s.db)
}
