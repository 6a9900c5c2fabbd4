package shared

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	sql  string
	args []any
}

type fakeExecer struct {
	calls []execCall
	tag   pgconn.CommandTag
	err   error
}

func (f *fakeExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return f.tag, f.err
}

func TestAuditRecord(t *testing.T) {
	db := &fakeExecer{}
	logger := NewAuditLogger(db)

	err := logger.Record(context.Background(), AuditLog{ActorID: 1, Action: "principal.provision", Entity: "users"})
	assert.ErrorIs(t, err, ErrAuditIncomplete)
	assert.Empty(t, db.calls)

	require.NoError(t, logger.Record(context.Background(), AuditLog{ActorID: 1, Action: "principal.provision", Entity: "users", EntityID: "4"}))
	require.Len(t, db.calls, 1)
	assert.Contains(t, db.calls[0].sql, "INSERT INTO audit_logs")
	assert.Equal(t, []byte(`{}`), db.calls[0].args[4])
	assert.Nil(t, db.calls[0].args[5])
}

func TestIdempotencyClaimConflict(t *testing.T) {
	db := &fakeExecer{err: &pgconn.PgError{Code: "23505"}}
	store := NewIdempotencyStore(db)
	err := store.Claim(context.Background(), "orders", 3, "abc")
	assert.ErrorIs(t, err, ErrIdempotencyConflict)

	db.err = errors.New("conn reset")
	err = store.Claim(context.Background(), "orders", 3, "abc")
	assert.NotErrorIs(t, err, ErrIdempotencyConflict)

	assert.Error(t, store.Claim(context.Background(), "", 3, "abc"))
}

func TestIdempotencyCleanupCutoff(t *testing.T) {
	db := &fakeExecer{tag: pgconn.NewCommandTag("DELETE 5")}
	store := NewIdempotencyStore(db)
	fixed := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	n, err := store.Cleanup(context.Background(), 72*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	require.Len(t, db.calls, 1)
	assert.True(t, strings.HasPrefix(db.calls[0].sql, "DELETE FROM idempotency_keys"))
	assert.Equal(t, fixed.Add(-72*time.Hour), db.calls[0].args[0])
}
