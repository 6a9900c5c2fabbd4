package shared

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// IdempotencyStore records client supplied request keys per module and
// principal so a retried create is recognised instead of applied twice.
type IdempotencyStore struct {
	db  Execer
	now func() time.Time
}

func NewIdempotencyStore(db Execer) *IdempotencyStore {
	return &IdempotencyStore{db: db, now: time.Now}
}

// Claim reserves key. A key already claimed returns ErrIdempotencyConflict.
func (s *IdempotencyStore) Claim(ctx context.Context, module string, principalID int64, key string) error {
	if s == nil || s.db == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" || module == "" {
		return errors.New("idempotency key and module required")
	}
	_, err := s.db.Exec(ctx, `INSERT INTO idempotency_keys (key, module, principal_id, created_at) VALUES ($1, $2, $3, $4)`,
		key, module, principalID, s.now().UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrIdempotencyConflict
	}
	return err
}

// Release drops a claim after the guarded operation failed.
func (s *IdempotencyStore) Release(ctx context.Context, module string, principalID int64, key string) error {
	if s == nil || s.db == nil || key == "" {
		return nil
	}
	_, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1 AND module = $2 AND principal_id = $3`, key, module, principalID)
	return err
}

// Cleanup removes claims older than olderThan and reports how many.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, s.now().UTC().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
