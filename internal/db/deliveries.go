package db

import (
	"context"
	"database/sql"
	"strings"
)

// DeliveryRow mirrors one webhook_deliveries table row.
type DeliveryRow struct {
	ID          string
	ResourceID  sql.NullString
	EventType   string
	PayloadJSON string
	Status      string
	RetryCount  int64
	DeliveredAt sql.NullString
	CreatedAt   string
}

// CreateDeliveryParams carries one new ledger row.
type CreateDeliveryParams struct {
	ID          string
	ResourceID  sql.NullString
	EventType   string
	PayloadJSON string
	Status      string
	RetryCount  int64
	CreatedAt   string
}

// UpdateDeliveryParams carries partial ledger changes; nil pointers leave the
// column untouched.
type UpdateDeliveryParams struct {
	ID          string
	Status      *string
	RetryCount  *int64
	DeliveredAt *string
}

const createDeliveryQuery = `-- name: CreateDelivery :exec
INSERT INTO webhook_deliveries (id, resource_id, event_type, payload_json, status, retry_count, delivered_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, NULL, ?)`

// CreateDelivery inserts a new ledger row.
func (c *Database) CreateDelivery(ctx context.Context, params CreateDeliveryParams) error {
	_, err := c.dbtx.ExecContext(ctx, createDeliveryQuery,
		params.ID, params.ResourceID, params.EventType, params.PayloadJSON,
		params.Status, params.RetryCount, params.CreatedAt)
	return err
}

const getDeliveryByIDQuery = `-- name: GetDeliveryByID :one
SELECT id, resource_id, event_type, payload_json, status, retry_count, delivered_at, created_at
FROM webhook_deliveries WHERE id = ?`

// GetDeliveryByID fetches one ledger row.
func (c *Database) GetDeliveryByID(ctx context.Context, id string) (DeliveryRow, error) {
	var out DeliveryRow
	err := c.dbtx.QueryRowContext(ctx, getDeliveryByIDQuery, id).Scan(
		&out.ID, &out.ResourceID, &out.EventType, &out.PayloadJSON,
		&out.Status, &out.RetryCount, &out.DeliveredAt, &out.CreatedAt)
	return out, err
}

const listDeliveriesQuery = `-- name: ListDeliveries :many
SELECT id, resource_id, event_type, payload_json, status, retry_count, delivered_at, created_at
FROM webhook_deliveries ORDER BY created_at DESC LIMIT ? OFFSET ?`

// ListDeliveries returns ledger rows, newest first.
func (c *Database) ListDeliveries(ctx context.Context, limit, offset int) ([]DeliveryRow, error) {
	rows, err := c.dbtx.QueryContext(ctx, listDeliveriesQuery, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]DeliveryRow, 0)
	for rows.Next() {
		var row DeliveryRow
		if err := rows.Scan(&row.ID, &row.ResourceID, &row.EventType, &row.PayloadJSON,
			&row.Status, &row.RetryCount, &row.DeliveredAt, &row.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// UpdateDelivery applies the non-nil fields and returns the resulting row.
func (c *Database) UpdateDelivery(ctx context.Context, params UpdateDeliveryParams) (DeliveryRow, error) {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if params.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *params.Status)
	}
	if params.RetryCount != nil {
		sets = append(sets, "retry_count = ?")
		args = append(args, *params.RetryCount)
	}
	if params.DeliveredAt != nil {
		sets = append(sets, "delivered_at = ?")
		args = append(args, *params.DeliveredAt)
	}
	if len(sets) == 0 {
		return c.GetDeliveryByID(ctx, params.ID)
	}
	args = append(args, params.ID)

	query := "-- name: UpdateDelivery :exec\nUPDATE webhook_deliveries SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	result, err := c.dbtx.ExecContext(ctx, query, args...)
	if err != nil {
		return DeliveryRow{}, err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return DeliveryRow{}, sql.ErrNoRows
	}
	return c.GetDeliveryByID(ctx, params.ID)
}
