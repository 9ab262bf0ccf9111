package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fuelsign/internal/models"
)

// StationRepository manages fuel station records.
type StationRepository struct {
	db *sql.DB
}

// NewStationRepository returns repository.
func NewStationRepository(db *sql.DB) *StationRepository {
	return &StationRepository{db: db}
}

// GetStation fetches one station.
func (r *StationRepository) GetStation(ctx context.Context, stationID string) (*models.Station, error) {
	const query = `
		SELECT id, name, controller_address, status, last_seen
		FROM stations
		WHERE id = $1
	`
	var (
		station  models.Station
		lastSeen sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, stationID).Scan(
		&station.ID,
		&station.Name,
		&station.ControllerAddress,
		&station.Status,
		&lastSeen,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrStationNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		station.LastSeen = &t
	}
	return &station, nil
}

// ListStations returns every station; used to bootstrap monitoring.
func (r *StationRepository) ListStations(ctx context.Context) ([]models.Station, error) {
	const query = `
		SELECT id, name, controller_address, status, last_seen
		FROM stations
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stations []models.Station
	for rows.Next() {
		var (
			station  models.Station
			lastSeen sql.NullTime
		)
		if err := rows.Scan(
			&station.ID,
			&station.Name,
			&station.ControllerAddress,
			&station.Status,
			&lastSeen,
		); err != nil {
			return nil, err
		}
		if lastSeen.Valid {
			t := lastSeen.Time
			station.LastSeen = &t
		}
		stations = append(stations, station)
	}
	return stations, rows.Err()
}

// UpdateStatus persists the monitor's view of a station.
func (r *StationRepository) UpdateStatus(ctx context.Context, stationID string, online bool, lastSeen time.Time) error {
	const query = `
		UPDATE stations
		SET status = $2,
		    last_seen = COALESCE($3, last_seen),
		    updated_at = NOW()
		WHERE id = $1
	`
	status := "offline"
	if online {
		status = "online"
	}
	var seen sql.NullTime
	if !lastSeen.IsZero() {
		seen = sql.NullTime{Time: lastSeen, Valid: true}
	}
	result, err := r.db.ExecContext(ctx, query, stationID, status, seen)
	if err != nil {
		return err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return models.ErrStationNotFound
	}
	return nil
}
