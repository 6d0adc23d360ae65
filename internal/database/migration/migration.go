package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

type migrationStep struct {
	Name string
	SQL  string
}

// Dialect selects the DDL flavour.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite3"
)

// sentinelTable is created by the last step; its presence means the schema is current.
const sentinelTable = "pending_deletions"

var postgresSteps = []migrationStep{
	{
		Name: "create_table_batch_groups",
		SQL: `CREATE TABLE IF NOT EXISTS batch_groups (
  batch_id   TEXT        PRIMARY KEY,
  name       TEXT        NOT NULL,
  created_by BIGINT      NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_table_files",
		SQL: `CREATE TABLE IF NOT EXISTS files (
  id                 BIGSERIAL   PRIMARY KEY,
  code               TEXT        NOT NULL UNIQUE,
  file_handle        TEXT        NOT NULL,
  display_name       TEXT        NOT NULL,
  kind               TEXT        NOT NULL,
  archive_message_id BIGINT      NOT NULL,
  uploaded_by        BIGINT      NOT NULL,
  uploaded_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
  batch_id           TEXT        NULL REFERENCES batch_groups (batch_id)
);`,
	},
	{
		Name: "create_index_files_batch_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_files_batch_id ON files (batch_id, id);`,
	},
	{
		Name: "create_table_banned_users",
		SQL: `CREATE TABLE IF NOT EXISTS banned_users (
  user_id   BIGINT      PRIMARY KEY,
  banned_by BIGINT      NOT NULL,
  banned_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_table_pending_deletions",
		SQL: `CREATE TABLE IF NOT EXISTS pending_deletions (
  id          TEXT        PRIMARY KEY,
  chat_id     BIGINT      NOT NULL,
  message_ids TEXT        NOT NULL,
  fire_at     TIMESTAMPTZ NOT NULL,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_pending_deletions_fire_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_pending_deletions_fire_at ON pending_deletions (fire_at);`,
	},
}

var sqliteSteps = []migrationStep{
	{
		Name: "create_table_batch_groups",
		SQL: `CREATE TABLE IF NOT EXISTS batch_groups (
  batch_id   TEXT      PRIMARY KEY,
  name       TEXT      NOT NULL,
  created_by INTEGER   NOT NULL,
  created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`,
	},
	{
		Name: "create_table_files",
		SQL: `CREATE TABLE IF NOT EXISTS files (
  id                 INTEGER   PRIMARY KEY AUTOINCREMENT,
  code               TEXT      NOT NULL UNIQUE,
  file_handle        TEXT      NOT NULL,
  display_name       TEXT      NOT NULL,
  kind               TEXT      NOT NULL,
  archive_message_id INTEGER   NOT NULL,
  uploaded_by        INTEGER   NOT NULL,
  uploaded_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  batch_id           TEXT      NULL REFERENCES batch_groups (batch_id)
);`,
	},
	{
		Name: "create_index_files_batch_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_files_batch_id ON files (batch_id, id);`,
	},
	{
		Name: "create_table_banned_users",
		SQL: `CREATE TABLE IF NOT EXISTS banned_users (
  user_id   INTEGER   PRIMARY KEY,
  banned_by INTEGER   NOT NULL,
  banned_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`,
	},
	{
		Name: "create_table_pending_deletions",
		SQL: `CREATE TABLE IF NOT EXISTS pending_deletions (
  id          TEXT      PRIMARY KEY,
  chat_id     INTEGER   NOT NULL,
  message_ids TEXT      NOT NULL,
  fire_at     TIMESTAMP NOT NULL,
  created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`,
	},
	{
		Name: "create_index_pending_deletions_fire_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_pending_deletions_fire_at ON pending_deletions (fire_at);`,
	},
}

func stepsFor(d Dialect) ([]migrationStep, string, error) {
	switch d {
	case Postgres:
		return postgresSteps, `SELECT to_regclass('public.` + sentinelTable + `') IS NOT NULL`, nil
	case SQLite:
		return sqliteSteps, `SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = '` + sentinelTable + `')`, nil
	default:
		return nil, "", fmt.Errorf("unsupported migration dialect %q", d)
	}
}

// EnsureMigrated creates the schema unless the sentinel table already exists.
func EnsureMigrated(ctx context.Context, db *sql.DB, d Dialect, logger *log.Logger) error {
	start := time.Now()
	logger = logger.With("component", "database", "dialect", string(d))

	steps, sentinelQuery, err := stepsFor(d)
	if err != nil {
		return err
	}

	logger.Info("db_migration_check", "status", "starting")

	var exists bool
	if err := db.QueryRowContext(ctx, sentinelQuery).Scan(&exists); err != nil {
		logger.Error("db_migration_failed", "status", "error", "error_message", err.Error(),
			"duration_ms", time.Since(start).Milliseconds())
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		logger.Info("db_migration_skip", "status", "success", "reason", "schema already exists",
			"duration_ms", time.Since(start).Milliseconds())
		return nil
	}

	logger.Info("db_migration_start", "status", "in_progress", "steps", len(steps))

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			logger.Error("db_migration_failed",
				"status", "error",
				"migration_step", step.Name,
				"error_message", err.Error(),
				"duration_ms", time.Since(start).Milliseconds(),
				"step_duration_ms", time.Since(stepStart).Milliseconds(),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		logger.Info("db_migration_step",
			"status", "success",
			"migration_step", step.Name,
			"step_duration_ms", time.Since(stepStart).Milliseconds(),
		)
	}

	logger.Info("db_migration_success", "status", "success", "duration_ms", time.Since(start).Milliseconds())
	return nil
}
