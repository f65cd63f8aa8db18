package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/orbitalhq/geosync/internal/app/ports"
	"github.com/orbitalhq/geosync/internal/db"
)

// CreateMonitoring persists a new monitoring configuration.
func (s *Store) CreateMonitoring(ctx context.Context, monitoring ports.Monitoring) error {
	aoiJSON, err := json.Marshal(monitoring.AreaOfInterest)
	if err != nil {
		return fmt.Errorf("encode area of interest: %w", err)
	}
	configJSON, err := json.Marshal(monitoring.Config)
	if err != nil {
		return fmt.Errorf("encode monitoring config: %w", err)
	}
	return s.database.CreateMonitoring(ctx, db.CreateMonitoringParams{
		ID:         monitoring.ID,
		OwnerID:    monitoring.OwnerID,
		AoiJSON:    string(aoiJSON),
		WebhookURL: nullString(monitoring.WebhookURL),
		ConfigJSON: string(configJSON),
		Status:     string(monitoring.Status),
		CreatedAt:  monitoring.CreatedAt.Format(timeLayout),
		UpdatedAt:  monitoring.UpdatedAt.Format(timeLayout),
	})
}

// GetMonitoring returns one monitoring configuration; owner scoping applies
// when owner is non-empty.
func (s *Store) GetMonitoring(ctx context.Context, id, owner string) (ports.Monitoring, error) {
	var row db.MonitoringRow
	var err error
	if owner == "" {
		row, err = s.database.GetMonitoringByID(ctx, id)
	} else {
		row, err = s.database.GetMonitoringByIDAndOwner(ctx, id, owner)
	}
	if err != nil {
		return ports.Monitoring{}, mapStoreErr(err)
	}
	return mapMonitoringRow(row)
}

// UpdateMonitoring applies partial field changes and returns the updated record.
func (s *Store) UpdateMonitoring(ctx context.Context, id string, update ports.MonitoringUpdate) (ports.Monitoring, error) {
	params := db.UpdateMonitoringParams{
		ID:         id,
		ProviderID: update.ProviderID,
		WebhookURL: update.WebhookURL,
		UpdatedAt:  nowString(),
	}
	if update.Status != nil {
		status := string(*update.Status)
		params.Status = &status
	}
	if update.AreaOfInterest != nil {
		aoiJSON, err := json.Marshal(update.AreaOfInterest)
		if err != nil {
			return ports.Monitoring{}, fmt.Errorf("encode area of interest: %w", err)
		}
		encoded := string(aoiJSON)
		params.AoiJSON = &encoded
	}
	if update.Config != nil {
		configJSON, err := json.Marshal(update.Config)
		if err != nil {
			return ports.Monitoring{}, fmt.Errorf("encode monitoring config: %w", err)
		}
		encoded := string(configJSON)
		params.ConfigJSON = &encoded
	}

	row, err := s.database.UpdateMonitoring(ctx, params)
	if err != nil {
		return ports.Monitoring{}, mapStoreErr(err)
	}
	return mapMonitoringRow(row)
}

// ListMonitoringByOwner returns the owner's monitoring configurations,
// newest first.
func (s *Store) ListMonitoringByOwner(ctx context.Context, owner string, limit, offset int) ([]ports.Monitoring, error) {
	rows, err := s.database.ListMonitoringsByOwner(ctx, owner, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]ports.Monitoring, 0, len(rows))
	for _, row := range rows {
		monitoring, err := mapMonitoringRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, monitoring)
	}
	return out, nil
}

// DeleteMonitoring hard-deletes the record.
func (s *Store) DeleteMonitoring(ctx context.Context, id, owner string) error {
	return mapStoreErr(s.database.DeleteMonitoring(ctx, id, owner))
}

func mapMonitoringRow(row db.MonitoringRow) (ports.Monitoring, error) {
	var aoi ports.Geometry
	if err := json.Unmarshal([]byte(row.AoiJSON), &aoi); err != nil {
		return ports.Monitoring{}, fmt.Errorf("decode area of interest: %w", err)
	}
	var config ports.MonitoringConfig
	if err := json.Unmarshal([]byte(row.ConfigJSON), &config); err != nil {
		return ports.Monitoring{}, fmt.Errorf("decode monitoring config: %w", err)
	}
	return ports.Monitoring{
		ID:             row.ID,
		OwnerID:        row.OwnerID,
		ProviderID:     row.ProviderID.String,
		AreaOfInterest: aoi,
		WebhookURL:     row.WebhookURL.String,
		Config:         config,
		Status:         ports.MonitoringStatus(row.Status),
		CreatedAt:      parseTime(row.CreatedAt),
		UpdatedAt:      parseTime(row.UpdatedAt),
	}, nil
}
