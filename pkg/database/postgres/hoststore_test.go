package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezr-ondrej/insights-host-inventory/pkg/inventory"
	"github.com/ezr-ondrej/insights-host-inventory/pkg/tracing"
)

// dbRecorder captures the driver-level calls a HostStore issues so tests can
// assert on the transaction lifecycle without a live database.
type dbRecorder struct {
	begins    int
	commits   int
	rollbacks int
	queries   []string
	execs     []string
	inserted  bool
	queryErr  error
	commitErr error
}

type recordingDriver struct{ rec *dbRecorder }

func (d *recordingDriver) Open(string) (driver.Conn, error) {
	return &recordingConn{rec: d.rec}, nil
}

type recordingConn struct{ rec *dbRecorder }

func (c *recordingConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepared statements not supported")
}

func (c *recordingConn) Close() error { return nil }

func (c *recordingConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *recordingConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	c.rec.begins++
	return &recordingTx{rec: c.rec}, nil
}

func (c *recordingConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.rec.queries = append(c.rec.queries, query)
	if c.rec.queryErr != nil {
		return nil, c.rec.queryErr
	}
	return &insertedRows{inserted: c.rec.inserted}, nil
}

func (c *recordingConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	c.rec.execs = append(c.rec.execs, query)
	return driver.RowsAffected(1), nil
}

type recordingTx struct{ rec *dbRecorder }

func (t *recordingTx) Commit() error {
	t.rec.commits++
	return t.rec.commitErr
}

func (t *recordingTx) Rollback() error {
	t.rec.rollbacks++
	return nil
}

// insertedRows yields the single (xmax = 0) AS inserted row of the upsert.
type insertedRows struct {
	inserted bool
	done     bool
}

func (r *insertedRows) Columns() []string { return []string{"inserted"} }
func (r *insertedRows) Close() error      { return nil }

func (r *insertedRows) Next(dest []driver.Value) error {
	if r.done {
		return io.EOF
	}
	r.done = true
	dest[0] = r.inserted
	return nil
}

var recordingDriverSeq atomic.Int64

func newRecordedStore(t *testing.T) (*HostStore, *dbRecorder) {
	t.Helper()
	rec := &dbRecorder{inserted: true}
	name := fmt.Sprintf("hoststore-recording-%d", recordingDriverSeq.Add(1))
	sql.Register(name, &recordingDriver{rec: rec})
	db, err := sql.Open(name, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewHostStore(db, tracing.NewNoOpLogger()), rec
}

func testHost(id string) *inventory.Host {
	return &inventory.Host{
		ID:       id,
		OrgID:    "org-1",
		Reporter: "puptoo",
		CanonicalFacts: map[string]string{
			"fqdn": id + ".example.com",
		},
	}
}

func TestHostStore_TransactionOpensOnFirstStage(t *testing.T) {
	store, rec := newRecordedStore(t)
	assert.Zero(t, rec.begins, "no transaction before the first stage")

	_, err := store.Stage(context.Background(), testHost("h-1"))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.begins)
	require.Len(t, rec.queries, 1)
	assert.Contains(t, rec.queries[0], "ON CONFLICT (id) DO UPDATE")

	_, err = store.Stage(context.Background(), testHost("h-2"))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.begins, "subsequent stages reuse the open transaction")
	assert.Zero(t, rec.commits)
}

func TestHostStore_StageReportsCreatedVsUpdated(t *testing.T) {
	store, rec := newRecordedStore(t)

	rec.inserted = true
	result, err := store.Stage(context.Background(), testHost("h-1"))
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, tracing.ResultCreated, result.Result())
	assert.Equal(t, "h-1", result.HostID)

	rec.inserted = false
	result, err = store.Stage(context.Background(), testHost("h-1"))
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, tracing.ResultUpdated, result.Result())
}

func TestHostStore_StageQueryError(t *testing.T) {
	store, rec := newRecordedStore(t)
	rec.queryErr = errors.New("connection reset")

	_, err := store.Stage(context.Background(), testHost("h-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, rec.queryErr)
	assert.Contains(t, err.Error(), "h-1")
}

func TestHostStore_CommitClosesBatch(t *testing.T) {
	store, rec := newRecordedStore(t)

	_, err := store.Stage(context.Background(), testHost("h-1"))
	require.NoError(t, err)

	require.NoError(t, store.Commit(context.Background()))
	assert.Equal(t, 1, rec.commits)

	require.NoError(t, store.Commit(context.Background()))
	assert.Equal(t, 1, rec.commits, "commit with nothing staged is a no-op")

	_, err = store.Stage(context.Background(), testHost("h-2"))
	require.NoError(t, err)
	assert.Equal(t, 2, rec.begins, "stage after commit opens a fresh transaction")
}

func TestHostStore_CommitWithNothingStaged(t *testing.T) {
	store, rec := newRecordedStore(t)
	require.NoError(t, store.Commit(context.Background()))
	assert.Zero(t, rec.begins)
	assert.Zero(t, rec.commits)
}

func TestHostStore_RollbackDiscardsBatch(t *testing.T) {
	store, rec := newRecordedStore(t)

	_, err := store.Stage(context.Background(), testHost("h-1"))
	require.NoError(t, err)

	require.NoError(t, store.Rollback(context.Background()))
	assert.Equal(t, 1, rec.rollbacks)
	assert.Zero(t, rec.commits)

	require.NoError(t, store.Rollback(context.Background()))
	assert.Equal(t, 1, rec.rollbacks, "rollback with nothing staged is a no-op")

	_, err = store.Stage(context.Background(), testHost("h-2"))
	require.NoError(t, err)
	assert.Equal(t, 2, rec.begins, "stage after rollback opens a fresh transaction")
}

func TestHostStore_FailedCommitLeavesNoOpenTransaction(t *testing.T) {
	store, rec := newRecordedStore(t)
	rec.commitErr = errors.New("deadlock detected")

	_, err := store.Stage(context.Background(), testHost("h-1"))
	require.NoError(t, err)

	err = store.Commit(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, rec.commitErr)

	require.NoError(t, store.Rollback(context.Background()),
		"rollback after a failed commit is tolerated")
	assert.Zero(t, rec.rollbacks, "the failed transaction is already detached")

	rec.commitErr = nil
	_, err = store.Stage(context.Background(), testHost("h-2"))
	require.NoError(t, err)
	assert.Equal(t, 2, rec.begins)
	require.NoError(t, store.Commit(context.Background()))
}

func TestHostStore_UpdateSystemProfileUsesBatchTransaction(t *testing.T) {
	store, rec := newRecordedStore(t)

	_, err := store.Stage(context.Background(), testHost("h-1"))
	require.NoError(t, err)

	err = store.UpdateSystemProfile(context.Background(), "h-1", map[string]any{"os_release": "9.4"})
	require.NoError(t, err)

	assert.Equal(t, 1, rec.begins, "profile update runs inside the open transaction")
	require.Len(t, rec.execs, 1)
	assert.Contains(t, rec.execs[0], "UPDATE hosts SET system_profile")
}
