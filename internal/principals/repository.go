package principals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/plantdesk/plantdesk/internal/access"
	"github.com/plantdesk/plantdesk/internal/platform/db"
	"github.com/plantdesk/plantdesk/internal/platform/httpx"
	"github.com/plantdesk/plantdesk/internal/shared"
)

// Repository defines persistence for principal records.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	List(ctx context.Context, filter ListFilter) ([]Summary, error)
	Get(ctx context.Context, id int64) (User, error)
	FindByEmail(ctx context.Context, email string) (User, string, error)
	Create(ctx context.Context, u User, passwordHash string) (int64, error)
	ReplacePermissions(ctx context.Context, id int64, set access.PermissionSet) error
	UpdateProfile(ctx context.Context, id int64, name string) error
	Each(ctx context.Context, fn func(id int64, raw []byte) error) error
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db     dbtx
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool, logger *slog.Logger) Repository {
	return &repository{db: pool, pool: pool, logger: logger}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool, logger: r.logger})
	})
}

const userColumns = `id, email, name, role, unit, permissions, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Summary, error) {
	query := `SELECT id, email, name, role, unit, is_active FROM users`
	var args []interface{}
	if !filter.AllUnits {
		query += ` WHERE unit = $1`
		args = append(args, filter.Unit)
	}
	query += ` ORDER BY id`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Summary, 0)
	for rows.Next() {
		var s Summary
		var role string
		if err := rows.Scan(&s.ID, &s.Email, &s.Name, &role, &s.Unit, &s.IsActive); err != nil {
			return nil, err
		}
		s.Role = access.Role(role)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, _, err := r.scanUser(row, false)
	return u, err
}

func (r *repository) FindByEmail(ctx context.Context, email string) (User, string, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+`, password_hash FROM users WHERE lower(email) = lower($1)`, email)
	return r.scanUser(row, true)
}

func (r *repository) scanUser(row pgx.Row, withHash bool) (User, string, error) {
	var (
		u    User
		role string
		raw  []byte
		hash string
	)
	dest := []interface{}{&u.ID, &u.Email, &u.Name, &role, &u.Unit, &raw, &u.IsActive, &u.CreatedAt, &u.UpdatedAt}
	if withHash {
		dest = append(dest, &hash)
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, "", shared.ErrNotFound
		}
		return User{}, "", err
	}
	u.Role = access.Role(role)
	set, err := access.Decode(raw)
	if err != nil && r.logger != nil {
		// The decoded set is still usable; malformed parts already deny.
		r.logger.Warn("principals malformed permissions", slog.Int64("user_id", u.ID), slog.Any("error", err))
	}
	u.Permissions = set
	return u, hash, nil
}

func (r *repository) Create(ctx context.Context, u User, passwordHash string) (int64, error) {
	doc, err := json.Marshal(u.Permissions)
	if err != nil {
		return 0, fmt.Errorf("principals: encode permissions: %w", err)
	}
	var id int64
	err = r.db.QueryRow(ctx, `INSERT INTO users (email, name, password_hash, role, unit, permissions, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, TRUE, NOW(), NOW()) RETURNING id`,
		u.Email, u.Name, passwordHash, string(u.Role), u.Unit, doc).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("principals: email %q: %w", u.Email, httpx.ErrDuplicate)
		}
		return 0, err
	}
	return id, nil
}

// ReplacePermissions swaps the whole document in one statement so readers
// never observe a partially edited set.
func (r *repository) ReplacePermissions(ctx context.Context, id int64, set access.PermissionSet) error {
	doc, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("principals: encode permissions: %w", err)
	}
	tag, err := r.db.Exec(ctx, `UPDATE users SET permissions = $2, updated_at = NOW() WHERE id = $1`, id, doc)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) UpdateProfile(ctx context.Context, id int64, name string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET name = $2, updated_at = NOW() WHERE id = $1`, id, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Each streams the raw stored documents of every principal.
func (r *repository) Each(ctx context.Context, fn func(id int64, raw []byte) error) error {
	rows, err := r.db.Query(ctx, `SELECT id, permissions FROM users ORDER BY id`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id  int64
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return err
		}
		if err := fn(id, raw); err != nil {
			return err
		}
	}
	return rows.Err()
}
