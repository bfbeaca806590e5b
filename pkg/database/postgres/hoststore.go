package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/ezr-ondrej/insights-host-inventory/pkg/inventory"
	"github.com/ezr-ondrej/insights-host-inventory/pkg/tracing"
)

const upsertHostSQL = `
INSERT INTO hosts (id, org_id, account, display_name, reporter, canonical_facts, system_profile, modified_on)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (id) DO UPDATE SET
    org_id = EXCLUDED.org_id,
    account = EXCLUDED.account,
    display_name = EXCLUDED.display_name,
    reporter = EXCLUDED.reporter,
    canonical_facts = EXCLUDED.canonical_facts,
    modified_on = now()
RETURNING (xmax = 0) AS inserted`

const updateSystemProfileSQL = `
UPDATE hosts SET system_profile = $2, modified_on = now() WHERE id = $1`

// HostStore stages host rows inside a single transaction per batch. The
// processor owns the batch lifecycle; a transaction is opened lazily on the
// first Stage and closed by Commit or Rollback. Not safe for concurrent use.
type HostStore struct {
	db     *sql.DB
	logger tracing.Logger
	tx     *sql.Tx
}

// NewHostStore creates a host store on the shared pool.
func NewHostStore(db *sql.DB, logger tracing.Logger) *HostStore {
	if logger == nil {
		logger = tracing.NewNoOpLogger()
	}
	return &HostStore{db: db, logger: logger}
}

// Stage upserts one host row within the current batch transaction.
func (s *HostStore) Stage(ctx context.Context, host *inventory.Host) (inventory.UpsertResult, error) {
	tx, err := s.currentTx(ctx)
	if err != nil {
		return inventory.UpsertResult{}, err
	}

	facts, err := sonic.Marshal(host.CanonicalFacts)
	if err != nil {
		return inventory.UpsertResult{}, fmt.Errorf("failed to encode canonical facts: %w", err)
	}
	profile, err := sonic.Marshal(host.SystemProfile)
	if err != nil {
		return inventory.UpsertResult{}, fmt.Errorf("failed to encode system profile: %w", err)
	}

	var inserted bool
	err = tx.QueryRowContext(ctx, upsertHostSQL,
		host.ID, host.OrgID, host.Account, host.DisplayName, host.Reporter, facts, profile,
	).Scan(&inserted)
	if err != nil {
		return inventory.UpsertResult{}, fmt.Errorf("failed to upsert host %s: %w", host.ID, err)
	}

	return inventory.UpsertResult{HostID: host.ID, Created: inserted}, nil
}

// UpdateSystemProfile replaces the system profile of a staged host.
func (s *HostStore) UpdateSystemProfile(ctx context.Context, hostID string, profile map[string]any) error {
	tx, err := s.currentTx(ctx)
	if err != nil {
		return err
	}
	encoded, err := sonic.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode system profile: %w", err)
	}
	if _, err := tx.ExecContext(ctx, updateSystemProfileSQL, hostID, encoded); err != nil {
		return fmt.Errorf("failed to update system profile for host %s: %w", hostID, err)
	}
	return nil
}

// Commit commits the current batch transaction. Committing with nothing
// staged is a no-op.
func (s *HostStore) Commit(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

// Rollback discards the current batch transaction, if any.
func (s *HostStore) Rollback(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("rollback failed: %w", err)
	}
	return nil
}

func (s *HostStore) currentTx(ctx context.Context) (*sql.Tx, error) {
	if s.tx != nil {
		return s.tx, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin batch transaction: %w", err)
	}
	s.tx = tx
	return tx, nil
}
