package auth

import (
	"context"
	"time"

	"github.com/plantdesk/plantdesk/internal/shared"
)

// Repository keeps an audit record of every login session.
type Repository interface {
	CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository stores session records in the sessions table.
type PGRepository struct {
	db  shared.Execer
	now func() time.Time
}

func NewRepository(db shared.Execer) *PGRepository {
	return &PGRepository{db: db, now: time.Now}
}

func (r *PGRepository) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	_, err := r.db.Exec(ctx, `INSERT INTO sessions (id, user_id, created_at, expires_at, ip, user_agent)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))`,
		id, userID, r.now().UTC(), expiresAt.UTC(), ip, ua)
	return err
}

// DeleteSession marks the record revoked. The row stays until Cleanup
// removes it so logouts remain auditable.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `UPDATE sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`,
		id, r.now().UTC())
	return err
}

// Cleanup removes records that expired or were revoked before the cutoff.
func (r *PGRepository) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := r.now().Add(-olderThan).UTC()
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1 OR revoked_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)
