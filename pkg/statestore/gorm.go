// Package statestore is C3: durable records of Upload and Entry, including
// process status, timestamps, ownership, and embargo (spec §4.3), backed by
// GORM against either SQLite (dev/single-node) or PostgreSQL (production),
// grounded on dittofs pkg/controlplane/store.
package statestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BlackLotus/nomad/pkg/config"
	"github.com/BlackLotus/nomad/pkg/model"
)

// Store is the GORM-backed StateStore (C3).
type Store struct {
	db *gorm.DB
}

// Open connects to the configured backend and ensures the uploads/entries
// schema exists, including the indices required by §4.3.
func Open(cfg *config.DatabaseConfig) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case config.DatabaseTypeSQLite:
		if cfg.SQLite.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		dsn := cfg.SQLite.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		dialector = sqlite.Open(dsn)
	case config.DatabaseTypePostgres:
		dialector = postgres.Open(cfg.Postgres.DSN())
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if cfg.Type == config.DatabaseTypePostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	}

	if err := db.AutoMigrate(&model.Upload{}, &model.Entry{}); err != nil {
		return nil, fmt.Errorf("running auto-migration: %w", err)
	}
	if err := ensureIndices(db, cfg.Type); err != nil {
		return nil, fmt.Errorf("ensuring indices: %w", err)
	}

	return &Store{db: db}, nil
}

// ensureIndices creates the indices named explicitly in §4.3 that are not
// already expressed through GORM struct tags (composite indices gorm can't
// derive on its own, and the upload-level single-column ones).
func ensureIndices(db *gorm.DB, dbType config.DatabaseType) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_entries_upload_status ON entries (upload_id, process_status)",
		"CREATE INDEX IF NOT EXISTS idx_uploads_publish_time ON uploads (publish_time)",
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("executing %q: %w", stmt, err)
		}
	}
	return nil
}

// DB exposes the underlying *gorm.DB for advanced queries and tests.
func (s *Store) DB() *gorm.DB { return s.db }

// isUniqueConstraintError reports whether err is a unique-constraint
// violation from either SQLite or PostgreSQL.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
