package postgres

import (
	"context"
	"embed"

	"github.com/kozaktomas/face-gallery/internal/gallery"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var postgresDialect = gallery.MigrationDialect{
	CreateTable: `CREATE TABLE IF NOT EXISTS schema_migrations (
		version VARCHAR(255) PRIMARY KEY,
		applied_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	RecordVersion: "INSERT INTO schema_migrations (version) VALUES ($1)",
}

// Migrate applies all pending migrations
func (p *Pool) Migrate(ctx context.Context) error {
	return gallery.Migrate(ctx, p.db, migrationsFS, "migrations", postgresDialect)
}

// MigrationsApplied returns the applied migration versions in order
func (p *Pool) MigrationsApplied(ctx context.Context) ([]string, error) {
	return gallery.AppliedMigrations(ctx, p.db)
}
