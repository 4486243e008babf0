package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	Up          func(*sql.Tx) error
	Down        func(*sql.Tx) error // Optional rollback function
}

// migrations contains all database migrations in order
var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema creation",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(createSchemaVersionTable); err != nil {
				return errors.Wrap(err, "failed to create schema_version table")
			}
			if _, err := tx.Exec(createMessagesTable); err != nil {
				return errors.Wrap(err, "failed to create messages table")
			}
			if _, err := tx.Exec(createKnowledgeTable); err != nil {
				return errors.Wrap(err, "failed to create knowledge table")
			}
			if _, err := tx.Exec(createKnowledgeFTSTable); err != nil {
				return errors.Wrap(err, "failed to create knowledge_fts table")
			}
			return nil
		},
		Down: func(tx *sql.Tx) error {
			if _, err := tx.Exec("DROP TABLE IF EXISTS knowledge_fts"); err != nil {
				return errors.Wrap(err, "failed to drop knowledge_fts table")
			}
			if _, err := tx.Exec("DROP TABLE IF EXISTS knowledge"); err != nil {
				return errors.Wrap(err, "failed to drop knowledge table")
			}
			if _, err := tx.Exec("DROP TABLE IF EXISTS messages"); err != nil {
				return errors.Wrap(err, "failed to drop messages table")
			}
			if _, err := tx.Exec("DROP TABLE IF EXISTS schema_version"); err != nil {
				return errors.Wrap(err, "failed to drop schema_version table")
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add query indexes",
		Up: func(tx *sql.Tx) error {
			indexes := []string{
				createIndexMessagesConvID,
				createIndexMessagesTS,
				createIndexKnowledgeUpdatedAt,
				createIndexKnowledgeSource,
			}
			for _, index := range indexes {
				if _, err := tx.Exec(index); err != nil {
					return errors.Wrap(err, "failed to create index")
				}
			}
			return nil
		},
		Down: func(tx *sql.Tx) error {
			dropIndexes := []string{
				dropIndexKnowledgeSource,
				dropIndexKnowledgeUpdatedAt,
				dropIndexMessagesTS,
				dropIndexMessagesConvID,
			}
			for _, drop := range dropIndexes {
				if _, err := tx.Exec(drop); err != nil {
					return errors.Wrap(err, "failed to drop index")
				}
			}
			return nil
		},
	},
}

// runMigrations executes all pending migrations
func (s *Store) runMigrations() error {
	currentVersion, err := s.getCurrentSchemaVersion()
	if err != nil {
		return errors.Wrap(err, "failed to get current schema version")
	}

	for _, migration := range migrations {
		if migration.Version > currentVersion {
			if err := s.applyMigration(migration); err != nil {
				return errors.Wrapf(err, "failed to apply migration %d", migration.Version)
			}
		}
	}

	return nil
}

// getCurrentSchemaVersion returns the current schema version
func (s *Store) getCurrentSchemaVersion() (int, error) {
	var tableExists bool
	err := s.db.QueryRow(`
		SELECT COUNT(*) > 0
		FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableExists)
	if err != nil {
		return 0, errors.Wrap(err, "failed to check if schema_version table exists")
	}

	if !tableExists {
		return 0, nil // No schema version table means version 0
	}

	var version int
	err = s.db.QueryRow(`
		SELECT COALESCE(MAX(version), 0)
		FROM schema_version
	`).Scan(&version)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get current schema version")
	}

	return version, nil
}

// applyMigration applies a single migration
func (s *Store) applyMigration(migration Migration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() // no-op once committed

	if err := migration.Up(tx.Tx); err != nil {
		return errors.Wrapf(err, "migration %d failed", migration.Version)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO schema_version (version, applied_at, description)
		VALUES (?, ?, ?)
	`, migration.Version, time.Now().Format(time.RFC3339), migration.Description)
	if err != nil {
		return errors.Wrap(err, "failed to record migration")
	}

	return tx.Commit()
}
