package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log"
	"time"
)

//go:embed scripts/initdb.sql
var bootstrapFS embed.FS

// schemaVersion is the version row initdb.sql writes into docqa_schema.
const schemaVersion = 1

// bootstrapLockKey serializes schema setup across API replicas starting together.
const bootstrapLockKey int64 = 0x646f637161 // "docqa"

// EnsureBootstrapped applies initdb.sql unless docqa_schema already records
// schemaVersion. The script is idempotent, so a partially applied schema is
// simply re-run.
func EnsureBootstrapped(ctx context.Context, db *sql.DB) error {
	ctxBoot, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	current, err := appliedVersion(ctxBoot, db)
	if err != nil {
		return err
	}
	if current >= schemaVersion {
		log.Printf("database schema at version %d", current)
		return nil
	}

	log.Printf("database schema at version %d; applying version %d", current, schemaVersion)
	return runBootstrap(ctxBoot, db)
}

// appliedVersion returns 0 when the schema table does not exist yet.
func appliedVersion(ctx context.Context, db *sql.DB) (int, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS (
		  SELECT 1 FROM information_schema.tables
		  WHERE table_name = 'docqa_schema'
		)`).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("schema table check failed: %w", err)
	}
	if !exists {
		return 0, nil
	}

	var version sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT max(version) FROM docqa_schema`).Scan(&version); err != nil {
		return 0, fmt.Errorf("schema version check failed: %w", err)
	}
	return int(version.Int64), nil
}

func runBootstrap(ctx context.Context, db *sql.DB) error {
	script, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	if err != nil {
		return fmt.Errorf("read initdb.sql: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// released at commit or rollback
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, bootstrapLockKey); err != nil {
		return fmt.Errorf("bootstrap lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, string(script)); err != nil {
		return fmt.Errorf("exec bootstrap: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bootstrap: %w", err)
	}
	log.Printf("database schema bootstrapped to version %d", schemaVersion)
	return nil
}
