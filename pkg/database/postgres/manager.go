package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// DBManager owns the PostgreSQL connection pool. Create one instance at
// bootstrap and share it; all operations are safe for concurrent use.
// When Config.InstrumentQueries is set the pool is opened through otelsql,
// so every query is traced under the caller's context.
type DBManager struct {
	db     *sql.DB
	config *Config
	mu     sync.RWMutex
	closed bool
}

// NewDBManager opens and verifies the connection pool.
func NewDBManager(ctx context.Context, config *Config) (*DBManager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	driverName := "pgx"
	if config.InstrumentQueries {
		var err error
		driverName, err = otelsql.Register(
			"pgx",
			otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
			otelsql.WithSpanOptions(otelsql.SpanOptions{
				DisableErrSkip: true,
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to register otelsql driver: %w", err)
		}
	}

	db, err := sql.Open(driverName, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DBManager{db: db, config: config}, nil
}

// DB returns the shared pool, or nil after Shutdown.
func (m *DBManager) DB() *sql.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil
	}
	return m.db
}

// Ping verifies connectivity. Used by readiness probes.
func (m *DBManager) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("database manager is closed")
	}
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// Shutdown closes the pool, waiting for in-flight queries up to the context
// deadline. Idempotent.
func (m *DBManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	done := make(chan error, 1)
	go func() {
		done <- m.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout exceeded: %w", ctx.Err())
	}
}
