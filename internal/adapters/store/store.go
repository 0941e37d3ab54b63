// Package store persists message records and reputation tables over SQL.
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/core"
)

// SQLStore implements core.MessageStore on top of sqlx
type SQLStore struct {
	db      *sqlx.DB
	dialect dialect
	logger  *zap.Logger
}

// Open connects to the database behind driver/dsn and applies any pending
// schema migrations. Supported drivers are sqlite3, sqlite and mysql.
func Open(driver, dsn string, logger *zap.Logger) (*SQLStore, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", d.name, err)
	}
	if d.singleConn {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", d.name, err)
	}

	s := &SQLStore{db: db, dialect: d, logger: logger}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Opened message store",
		zap.String("driver", d.driver),
		zap.Int("schema_version", d.migrations[len(d.migrations)-1].version))
	return s, nil
}

// Close closes the underlying database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order
func (s *SQLStore) runMigrations() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	current := 0
	if err := s.db.Get(&current, `SELECT COALESCE(MAX(version), 0) FROM schema_version`); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range s.dialect.migrations {
		if m.version <= current {
			continue
		}
		for _, stmt := range m.stmts {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("failed to apply migration v%d: %w", m.version, err)
			}
		}
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, m.version); err != nil {
			return fmt.Errorf("failed to record migration v%d: %w", m.version, err)
		}
		s.logger.Debug("Applied migration", zap.Int("version", m.version))
	}
	return nil
}

// WithTx runs fn inside a single transaction. The transaction commits only
// when fn returns nil; otherwise every write fn made is rolled back.
func (s *SQLStore) WithTx(ctx context.Context, fn func(tx core.StoreTx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx, dialect: s.dialect}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
