package sqlite

import (
	"context"
	"encoding/json"
	"time"

	"github.com/orbitalhq/geosync/internal/app/ports"
	"github.com/orbitalhq/geosync/internal/db"
)

func nowString() string {
	return time.Now().UTC().Format(timeLayout)
}

// CreateDelivery appends one ledger entry.
func (s *Store) CreateDelivery(ctx context.Context, record ports.DeliveryRecord) error {
	return s.database.CreateDelivery(ctx, db.CreateDeliveryParams{
		ID:          record.ID,
		ResourceID:  nullString(record.ResourceID),
		EventType:   record.EventType,
		PayloadJSON: string(record.Payload),
		Status:      string(record.Status),
		RetryCount:  int64(record.RetryCount),
		CreatedAt:   record.CreatedAt.Format(timeLayout),
	})
}

// GetDelivery returns one ledger entry.
func (s *Store) GetDelivery(ctx context.Context, id string) (ports.DeliveryRecord, error) {
	row, err := s.database.GetDeliveryByID(ctx, id)
	if err != nil {
		return ports.DeliveryRecord{}, mapStoreErr(err)
	}
	return mapDeliveryRow(row), nil
}

// UpdateDelivery applies partial ledger changes and returns the updated entry.
func (s *Store) UpdateDelivery(ctx context.Context, id string, update ports.DeliveryUpdate) (ports.DeliveryRecord, error) {
	params := db.UpdateDeliveryParams{ID: id}
	if update.Status != nil {
		status := string(*update.Status)
		params.Status = &status
	}
	if update.RetryCount != nil {
		count := int64(*update.RetryCount)
		params.RetryCount = &count
	}
	if update.DeliveredAt != nil {
		delivered := update.DeliveredAt.Format(timeLayout)
		params.DeliveredAt = &delivered
	}
	row, err := s.database.UpdateDelivery(ctx, params)
	if err != nil {
		return ports.DeliveryRecord{}, mapStoreErr(err)
	}
	return mapDeliveryRow(row), nil
}

// ListDeliveries returns ledger entries, newest first.
func (s *Store) ListDeliveries(ctx context.Context, limit, offset int) ([]ports.DeliveryRecord, error) {
	rows, err := s.database.ListDeliveries(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]ports.DeliveryRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapDeliveryRow(row))
	}
	return out, nil
}

func mapDeliveryRow(row db.DeliveryRow) ports.DeliveryRecord {
	record := ports.DeliveryRecord{
		ID:         row.ID,
		ResourceID: row.ResourceID.String,
		EventType:  row.EventType,
		Payload:    json.RawMessage(row.PayloadJSON),
		Status:     ports.DeliveryStatus(row.Status),
		RetryCount: int(row.RetryCount),
		CreatedAt:  parseTime(row.CreatedAt),
	}
	if row.DeliveredAt.Valid {
		delivered := parseTime(row.DeliveredAt.String)
		record.DeliveredAt = &delivered
	}
	return record
}
