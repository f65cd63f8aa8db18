package db

import (
	"context"
	"database/sql"
	"strings"
)

// OrderRow mirrors one orders table row.
type OrderRow struct {
	ID              string
	OwnerID         string
	ProviderOrderID sql.NullString
	ParamsJSON      string
	Price           sql.NullFloat64
	Currency        sql.NullString
	Status          string
	CreatedAt       string
	UpdatedAt       string
}

// CreateOrderParams carries one new order row.
type CreateOrderParams struct {
	ID         string
	OwnerID    string
	ParamsJSON string
	Price      sql.NullFloat64
	Currency   sql.NullString
	Status     string
	CreatedAt  string
	UpdatedAt  string
}

// UpdateOrderParams carries partial order field changes; nil pointers leave
// the column untouched. Updates are compare-free: concurrent writers race and
// the last one wins.
type UpdateOrderParams struct {
	ID              string
	Status          *string
	ProviderOrderID *string
	Price           *float64
	Currency        *string
	UpdatedAt       string
}

const createOrderQuery = `-- name: CreateOrder :exec
INSERT INTO orders (id, owner_id, provider_order_id, params_json, price, currency, status, created_at, updated_at)
VALUES (?, ?, NULL, ?, ?, ?, ?, ?, ?)`

// CreateOrder inserts a new order row.
func (c *Database) CreateOrder(ctx context.Context, params CreateOrderParams) error {
	_, err := c.dbtx.ExecContext(ctx, createOrderQuery,
		params.ID, params.OwnerID, params.ParamsJSON, params.Price, params.Currency,
		params.Status, params.CreatedAt, params.UpdatedAt)
	return err
}

const getOrderByIDQuery = `-- name: GetOrderByID :one
SELECT id, owner_id, provider_order_id, params_json, price, currency, status, created_at, updated_at
FROM orders WHERE id = ?`

// GetOrderByID fetches one order regardless of owner.
func (c *Database) GetOrderByID(ctx context.Context, id string) (OrderRow, error) {
	return scanOrderRow(c.dbtx.QueryRowContext(ctx, getOrderByIDQuery, id))
}

const getOrderByIDAndOwnerQuery = `-- name: GetOrderByIDAndOwner :one
SELECT id, owner_id, provider_order_id, params_json, price, currency, status, created_at, updated_at
FROM orders WHERE id = ? AND owner_id = ?`

// GetOrderByIDAndOwner fetches one order scoped to its owner.
func (c *Database) GetOrderByIDAndOwner(ctx context.Context, id, ownerID string) (OrderRow, error) {
	return scanOrderRow(c.dbtx.QueryRowContext(ctx, getOrderByIDAndOwnerQuery, id, ownerID))
}

const listOrdersByOwnerQuery = `-- name: ListOrdersByOwner :many
SELECT id, owner_id, provider_order_id, params_json, price, currency, status, created_at, updated_at
FROM orders WHERE owner_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`

// ListOrdersByOwner returns the owner's orders, newest first.
func (c *Database) ListOrdersByOwner(ctx context.Context, ownerID string, limit, offset int) ([]OrderRow, error) {
	rows, err := c.dbtx.QueryContext(ctx, listOrdersByOwnerQuery, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]OrderRow, 0)
	for rows.Next() {
		var row OrderRow
		if err := rows.Scan(&row.ID, &row.OwnerID, &row.ProviderOrderID, &row.ParamsJSON,
			&row.Price, &row.Currency, &row.Status, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// UpdateOrder applies the non-nil fields and returns the resulting row.
func (c *Database) UpdateOrder(ctx context.Context, params UpdateOrderParams) (OrderRow, error) {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	if params.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *params.Status)
	}
	if params.ProviderOrderID != nil {
		sets = append(sets, "provider_order_id = ?")
		args = append(args, *params.ProviderOrderID)
	}
	if params.Price != nil {
		sets = append(sets, "price = ?")
		args = append(args, *params.Price)
	}
	if params.Currency != nil {
		sets = append(sets, "currency = ?")
		args = append(args, *params.Currency)
	}
	if len(sets) == 0 {
		return c.GetOrderByID(ctx, params.ID)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, params.UpdatedAt, params.ID)

	query := "-- name: UpdateOrder :exec\nUPDATE orders SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	result, err := c.dbtx.ExecContext(ctx, query, args...)
	if err != nil {
		return OrderRow{}, err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return OrderRow{}, sql.ErrNoRows
	}
	return c.GetOrderByID(ctx, params.ID)
}

func scanOrderRow(row *sql.Row) (OrderRow, error) {
	var out OrderRow
	err := row.Scan(&out.ID, &out.OwnerID, &out.ProviderOrderID, &out.ParamsJSON,
		&out.Price, &out.Currency, &out.Status, &out.CreatedAt, &out.UpdatedAt)
	return out, err
}
