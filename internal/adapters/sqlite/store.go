package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/orbitalhq/geosync/internal/app/ports"
	"github.com/orbitalhq/geosync/internal/db"
)

// Store is the sqlite-backed implementation of the resource and ledger
// stores. It is the single adapter between ports-level records and rows.
type Store struct {
	database *db.Database
}

// NewStore constructs the sqlite adapter around the shared database.
func NewStore(database *db.Database) *Store {
	return &Store{database: database}
}

var (
	_ ports.OrderStore      = (*Store)(nil)
	_ ports.MonitoringStore = (*Store)(nil)
	_ ports.DeliveryStore   = (*Store)(nil)
)

const timeLayout = time.RFC3339Nano

func mapStoreErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ports.ErrNotFound
	}
	return err
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// CreateOrder persists a new order record.
func (s *Store) CreateOrder(ctx context.Context, order ports.Order) error {
	paramsJSON, err := json.Marshal(order.Params)
	if err != nil {
		return fmt.Errorf("encode order params: %w", err)
	}
	price := sql.NullFloat64{}
	if order.Price != nil {
		price = sql.NullFloat64{Float64: *order.Price, Valid: true}
	}
	return s.database.CreateOrder(ctx, db.CreateOrderParams{
		ID:         order.ID,
		OwnerID:    order.OwnerID,
		ParamsJSON: string(paramsJSON),
		Price:      price,
		Currency:   nullString(order.Currency),
		Status:     string(order.Status),
		CreatedAt:  order.CreatedAt.Format(timeLayout),
		UpdatedAt:  order.UpdatedAt.Format(timeLayout),
	})
}

// GetOrder returns one order; owner scoping applies when owner is non-empty.
func (s *Store) GetOrder(ctx context.Context, id, owner string) (ports.Order, error) {
	var row db.OrderRow
	var err error
	if owner == "" {
		row, err = s.database.GetOrderByID(ctx, id)
	} else {
		row, err = s.database.GetOrderByIDAndOwner(ctx, id, owner)
	}
	if err != nil {
		return ports.Order{}, mapStoreErr(err)
	}
	return mapOrderRow(row)
}

// UpdateOrder applies partial field changes and returns the updated record.
func (s *Store) UpdateOrder(ctx context.Context, id string, update ports.OrderUpdate) (ports.Order, error) {
	params := db.UpdateOrderParams{
		ID:              id,
		ProviderOrderID: update.ProviderOrderID,
		Price:           update.Price,
		Currency:        update.Currency,
		UpdatedAt:       time.Now().UTC().Format(timeLayout),
	}
	if update.Status != nil {
		status := string(*update.Status)
		params.Status = &status
	}
	row, err := s.database.UpdateOrder(ctx, params)
	if err != nil {
		return ports.Order{}, mapStoreErr(err)
	}
	return mapOrderRow(row)
}

// ListOrdersByOwner returns the owner's orders, newest first.
func (s *Store) ListOrdersByOwner(ctx context.Context, owner string, limit, offset int) ([]ports.Order, error) {
	rows, err := s.database.ListOrdersByOwner(ctx, owner, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]ports.Order, 0, len(rows))
	for _, row := range rows {
		order, err := mapOrderRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	return out, nil
}

func mapOrderRow(row db.OrderRow) (ports.Order, error) {
	var params ports.OrderParams
	if err := json.Unmarshal([]byte(row.ParamsJSON), &params); err != nil {
		return ports.Order{}, fmt.Errorf("decode order params: %w", err)
	}
	order := ports.Order{
		ID:              row.ID,
		OwnerID:         row.OwnerID,
		ProviderOrderID: row.ProviderOrderID.String,
		Params:          params,
		Currency:        row.Currency.String,
		Status:          ports.OrderStatus(row.Status),
		CreatedAt:       parseTime(row.CreatedAt),
		UpdatedAt:       parseTime(row.UpdatedAt),
	}
	if row.Price.Valid {
		price := row.Price.Float64
		order.Price = &price
	}
	return order, nil
}
