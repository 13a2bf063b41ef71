package database

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

type migration struct {
	version string
	name    string
	up      func(context.Context, *bun.DB) error
}

var migrations = []migration{
	{"001", "create_jobs_table", init001CreateJobsTable},
	{"002", "create_documents_table", init002CreateDocumentsTable},
	{"003", "create_images_table", init003CreateImagesTable},
}

// runMigrations runs all Bun migrations
func (b *BunDB) runMigrations(ctx context.Context) error {
	// Create a simple migrations tracking table
	_, err := b.db.NewCreateTable().
		Model((*bunSchemaMigration)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Check which migrations have been applied
	var applied []bunSchemaMigration
	err = b.db.NewSelect().
		Model(&applied).
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("failed to check applied migrations: %w", err)
	}

	appliedMap := make(map[string]bool)
	for _, m := range applied {
		appliedMap[m.Version] = true
	}

	// Run migrations in order
	for _, m := range migrations {
		if appliedMap[m.version] {
			continue
		}

		Logger.Info("Running migration", "version", m.version, "name", m.name)
		if err := m.up(ctx, b.db); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", m.version, err)
		}

		// Mark as applied
		_, err = b.db.NewInsert().
			Model(&bunSchemaMigration{Version: m.version, Name: m.name, AppliedAt: time.Now()}).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to mark migration %s as applied: %w", m.version, err)
		}
	}

	Logger.Info("All migrations completed successfully")
	return nil
}

// createIndexes creates single column indexes on model, each named idx_<table>_<column>
func createIndexes(ctx context.Context, db *bun.DB, model interface{}, table string, columns ...string) error {
	for _, column := range columns {
		_, err := db.NewCreateIndex().
			Model(model).
			Index(fmt.Sprintf("idx_%s_%s", table, column)).
			Column(column).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create index on %s.%s: %w", table, column, err)
		}
	}
	return nil
}

// Migration 001: Create jobs table
func init001CreateJobsTable(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*BunJob)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create jobs table: %w", err)
	}
	return createIndexes(ctx, db, (*BunJob)(nil), "jobs", "status", "type", "created_at", "completed_at")
}

// Migration 002: Create documents table, one uploaded source per job
func init002CreateDocumentsTable(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*BunDocument)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	return createIndexes(ctx, db, (*BunDocument)(nil), "documents", "hash")
}

// Migration 003: Create images table
func init003CreateImagesTable(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*BunImage)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create images table: %w", err)
	}

	_, err = db.NewCreateIndex().
		Model((*BunImage)(nil)).
		Index("idx_images_job_filename").
		Column("job_id", "filename").
		Unique().
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create images index: %w", err)
	}
	return nil
}
