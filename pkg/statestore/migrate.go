package statestore

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/BlackLotus/nomad/pkg/config"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// RunMigrations applies the versioned schema migrations directly, bypassing
// GORM's AutoMigrate. This is the path used for production PostgreSQL
// deployments managed outside the running process (e.g. during a release
// rollout, before any replica starts serving); Open's AutoMigrate remains
// the convenience path for SQLite dev/test use.
func RunMigrations(cfg *config.DatabaseConfig) error {
	if cfg.Type != config.DatabaseTypePostgres {
		return fmt.Errorf("versioned migrations are only supported against postgres, got %s", cfg.Type)
	}

	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading embedded migrations: %w", err)
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Host, cfg.Postgres.Port,
		cfg.Postgres.Database, cfg.Postgres.SSLMode)

	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}
