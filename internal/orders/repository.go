package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/plantdesk/plantdesk/internal/platform/db"
	"github.com/plantdesk/plantdesk/internal/platform/httpx"
)

var (
	ErrNotFound = fmt.Errorf("orders: %w", httpx.ErrNotFound)
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, int, error)
	Create(ctx context.Context, order Order) (int64, error)
	Update(ctx context.Context, order Order) error
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context, unit string, allUnits bool) (Stats, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const orderColumns = `id, order_number, customer_id, items, total_amount, status, priority, order_date,
expected_delivery_date, actual_delivery_date, unit, assigned_to, notes, created_by, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o     Order
		items []byte
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &items, &o.TotalAmount, &o.Status, &o.Priority, &o.OrderDate,
		&o.ExpectedDeliveryDate, &o.ActualDeliveryDate, &o.Unit, &o.AssignedTo, &o.Notes, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return Order{}, fmt.Errorf("orders: decode items of %d: %w", o.ID, err)
	}
	return o, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	return o, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if !filter.AllUnits {
		conditions = append(conditions, fmt.Sprintf("unit = $%d", argPos))
		args = append(args, filter.Unit)
		argPos++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, string(filter.Status))
		argPos++
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(order_number ILIKE $%d OR items::text ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+filter.Search+"%")
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM orders "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("SELECT %s FROM orders %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		orderColumns, whereClause, argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, o Order) (int64, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.db.QueryRow(ctx, `INSERT INTO orders (order_number, customer_id, items, total_amount, status, priority, order_date,
expected_delivery_date, unit, notes, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW()) RETURNING id`,
		o.OrderNumber, o.CustomerID, items, o.TotalAmount, string(o.Status), string(o.Priority), o.OrderDate,
		o.ExpectedDeliveryDate, o.Unit, o.Notes, o.CreatedBy).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("orders: number %s: %w", o.OrderNumber, httpx.ErrDuplicate)
		}
		return 0, err
	}
	return id, nil
}

// Update writes every mutable column; unit and order number never change.
func (r *repository) Update(ctx context.Context, o Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `UPDATE orders SET items = $2, total_amount = $3, status = $4, priority = $5,
expected_delivery_date = $6, actual_delivery_date = $7, assigned_to = $8, notes = $9, updated_at = NOW()
WHERE id = $1`,
		o.ID, items, o.TotalAmount, string(o.Status), string(o.Priority), o.ExpectedDeliveryDate, o.ActualDeliveryDate,
		o.AssignedTo, o.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Stats(ctx context.Context, unit string, allUnits bool) (Stats, error) {
	query := `SELECT status, COUNT(*), COALESCE(SUM(total_amount), 0) FROM orders`
	var args []interface{}
	if !allUnits {
		query += ` WHERE unit = $1`
		args = append(args, unit)
	}
	query += ` GROUP BY status`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	stats := Stats{ByStatus: make(map[Status]int)}
	for rows.Next() {
		var (
			status Status
			count  int
			amount float64
		)
		if err := rows.Scan(&status, &count, &amount); err != nil {
			return Stats{}, err
		}
		stats.ByStatus[status] = count
		stats.Total += count
		stats.TotalAmount += amount
	}
	return stats, rows.Err()
}
