package db

import (
	"context"
	"database/sql"
	"strings"
)

// MonitoringRow mirrors one monitorings table row.
type MonitoringRow struct {
	ID         string
	OwnerID    string
	ProviderID sql.NullString
	AoiJSON    string
	WebhookURL sql.NullString
	ConfigJSON string
	Status     string
	CreatedAt  string
	UpdatedAt  string
}

// CreateMonitoringParams carries one new monitoring row.
type CreateMonitoringParams struct {
	ID         string
	OwnerID    string
	AoiJSON    string
	WebhookURL sql.NullString
	ConfigJSON string
	Status     string
	CreatedAt  string
	UpdatedAt  string
}

// UpdateMonitoringParams carries partial monitoring field changes; nil
// pointers leave the column untouched.
type UpdateMonitoringParams struct {
	ID         string
	Status     *string
	ProviderID *string
	AoiJSON    *string
	WebhookURL *string
	ConfigJSON *string
	UpdatedAt  string
}

const createMonitoringQuery = `-- name: CreateMonitoring :exec
INSERT INTO monitorings (id, owner_id, provider_id, aoi_json, webhook_url, config_json, status, created_at, updated_at)
VALUES (?, ?, NULL, ?, ?, ?, ?, ?, ?)`

// CreateMonitoring inserts a new monitoring row.
func (c *Database) CreateMonitoring(ctx context.Context, params CreateMonitoringParams) error {
	_, err := c.dbtx.ExecContext(ctx, createMonitoringQuery,
		params.ID, params.OwnerID, params.AoiJSON, params.WebhookURL, params.ConfigJSON,
		params.Status, params.CreatedAt, params.UpdatedAt)
	return err
}

const getMonitoringByIDQuery = `-- name: GetMonitoringByID :one
SELECT id, owner_id, provider_id, aoi_json, webhook_url, config_json, status, created_at, updated_at
FROM monitorings WHERE id = ?`

// GetMonitoringByID fetches one monitoring row regardless of owner.
func (c *Database) GetMonitoringByID(ctx context.Context, id string) (MonitoringRow, error) {
	return scanMonitoringRow(c.dbtx.QueryRowContext(ctx, getMonitoringByIDQuery, id))
}

const getMonitoringByIDAndOwnerQuery = `-- name: GetMonitoringByIDAndOwner :one
SELECT id, owner_id, provider_id, aoi_json, webhook_url, config_json, status, created_at, updated_at
FROM monitorings WHERE id = ? AND owner_id = ?`

// GetMonitoringByIDAndOwner fetches one monitoring row scoped to its owner.
func (c *Database) GetMonitoringByIDAndOwner(ctx context.Context, id, ownerID string) (MonitoringRow, error) {
	return scanMonitoringRow(c.dbtx.QueryRowContext(ctx, getMonitoringByIDAndOwnerQuery, id, ownerID))
}

const listMonitoringsByOwnerQuery = `-- name: ListMonitoringsByOwner :many
SELECT id, owner_id, provider_id, aoi_json, webhook_url, config_json, status, created_at, updated_at
FROM monitorings WHERE owner_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`

// ListMonitoringsByOwner returns the owner's monitoring rows, newest first.
func (c *Database) ListMonitoringsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]MonitoringRow, error) {
	rows, err := c.dbtx.QueryContext(ctx, listMonitoringsByOwnerQuery, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]MonitoringRow, 0)
	for rows.Next() {
		var row MonitoringRow
		if err := rows.Scan(&row.ID, &row.OwnerID, &row.ProviderID, &row.AoiJSON, &row.WebhookURL,
			&row.ConfigJSON, &row.Status, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// UpdateMonitoring applies the non-nil fields and returns the resulting row.
func (c *Database) UpdateMonitoring(ctx context.Context, params UpdateMonitoringParams) (MonitoringRow, error) {
	sets := make([]string, 0, 6)
	args := make([]any, 0, 7)
	if params.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *params.Status)
	}
	if params.ProviderID != nil {
		sets = append(sets, "provider_id = ?")
		args = append(args, *params.ProviderID)
	}
	if params.AoiJSON != nil {
		sets = append(sets, "aoi_json = ?")
		args = append(args, *params.AoiJSON)
	}
	if params.WebhookURL != nil {
		sets = append(sets, "webhook_url = ?")
		args = append(args, *params.WebhookURL)
	}
	if params.ConfigJSON != nil {
		sets = append(sets, "config_json = ?")
		args = append(args, *params.ConfigJSON)
	}
	if len(sets) == 0 {
		return c.GetMonitoringByID(ctx, params.ID)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, params.UpdatedAt, params.ID)

	query := "-- name: UpdateMonitoring :exec\nUPDATE monitorings SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	result, err := c.dbtx.ExecContext(ctx, query, args...)
	if err != nil {
		return MonitoringRow{}, err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return MonitoringRow{}, sql.ErrNoRows
	}
	return c.GetMonitoringByID(ctx, params.ID)
}

const deleteMonitoringQuery = `-- name: DeleteMonitoring :exec
DELETE FROM monitorings WHERE id = ? AND owner_id = ?`

// DeleteMonitoring hard-deletes the row. Returns sql.ErrNoRows when nothing
// matched.
func (c *Database) DeleteMonitoring(ctx context.Context, id, ownerID string) error {
	result, err := c.dbtx.ExecContext(ctx, deleteMonitoringQuery, id, ownerID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func scanMonitoringRow(row *sql.Row) (MonitoringRow, error) {
	var out MonitoringRow
	err := row.Scan(&out.ID, &out.OwnerID, &out.ProviderID, &out.AoiJSON, &out.WebhookURL,
		&out.ConfigJSON, &out.Status, &out.CreatedAt, &out.UpdatedAt)
	return out, err
}
