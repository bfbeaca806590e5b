// Package migration applies the inventory database schema using
// golang-migrate. It is intended for application startup, init containers
// and CLI use; Up is idempotent and safe to run on every boot.
package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/ezr-ondrej/insights-host-inventory/pkg/tracing"
)

// ErrDirtyDatabase reports a previously failed migration that left the
// schema version dirty. Manual intervention is required.
var ErrDirtyDatabase = errors.New("database schema is dirty")

// Config describes where migrations come from and where they apply.
type Config struct {
	// DSN is the postgres connection URL.
	DSN string
	// Source locates the migration files, e.g. "file://migrations".
	Source string
	// Timeout bounds a single Up or Down run.
	Timeout time.Duration
}

// Validate checks required fields.
func (c Config) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("migration DSN is required")
	}
	if c.Source == "" {
		return fmt.Errorf("migration source is required")
	}
	return nil
}

// Migrator applies schema migrations to the inventory database.
type Migrator struct {
	config  Config
	migrate *migrate.Migrate
	logger  tracing.Logger
}

// New creates a Migrator for the given configuration.
func New(cfg Config, logger tracing.Logger) (*Migrator, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = tracing.NewNoOpLogger()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m, err := migrate.New(cfg.Source, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize migrator: %w", err)
	}
	return &Migrator{config: cfg, migrate: m, logger: logger}, nil
}

// Up applies all pending migrations. An up-to-date schema is not an error.
func (m *Migrator) Up(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	start := time.Now()
	errChan := make(chan error, 1)
	go func() {
		errChan <- m.migrate.Up()
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("migration timed out after %v: %w", m.config.Timeout, ctx.Err())
	case err := <-errChan:
		if err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				m.logger.Info(ctx, "database schema is up to date")
				return nil
			}
			if strings.Contains(err.Error(), "dirty") {
				return fmt.Errorf("%w: %v", ErrDirtyDatabase, err)
			}
			return fmt.Errorf("migration failed: %w", err)
		}

		version, dirty, _ := m.migrate.Version()
		m.logger.Info(ctx, "database schema migrated",
			tracing.Int64("version", int64(version)),
			tracing.Bool("dirty", dirty),
			tracing.String("duration", time.Since(start).String()),
		)
		return nil
	}
}

// Version returns the current schema version and whether it is dirty.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// Close releases the source and database connections held by the migrator.
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if sourceErr != nil {
		return sourceErr
	}
	return dbErr
}
