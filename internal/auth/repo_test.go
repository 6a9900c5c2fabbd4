package auth

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execRecorder struct {
	sql  []string
	args [][]any
	tag  pgconn.CommandTag
}

func (e *execRecorder) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	e.sql = append(e.sql, sql)
	e.args = append(e.args, args)
	return e.tag, nil
}

func TestRepositoryRevokesInsteadOfDeleting(t *testing.T) {
	exec := &execRecorder{}
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := &PGRepository{db: exec, now: func() time.Time { return fixed }}

	require.NoError(t, repo.DeleteSession(context.Background(), "sid"))
	require.Len(t, exec.sql, 1)
	assert.Contains(t, exec.sql[0], "revoked_at")
	assert.Equal(t, []any{"sid", fixed}, exec.args[0])
}

func TestRepositoryCleanupCutoff(t *testing.T) {
	exec := &execRecorder{tag: pgconn.NewCommandTag("DELETE 3")}
	fixed := time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC)
	repo := &PGRepository{db: exec, now: func() time.Time { return fixed }}

	removed, err := repo.Cleanup(context.Background(), 72*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 3, removed)
	assert.Equal(t, []any{time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}, exec.args[0])
}
