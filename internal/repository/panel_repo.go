package repository

import (
	"context"
	"database/sql"
	"time"

	"fuelsign/internal/models"
)

// PanelRepository manages price panel records.
type PanelRepository struct {
	db *sql.DB
}

// NewPanelRepository returns repository.
func NewPanelRepository(db *sql.DB) *PanelRepository {
	return &PanelRepository{db: db}
}

// ListByStation returns every panel bound to the station.
func (r *PanelRepository) ListByStation(ctx context.Context, stationID string) ([]models.Panel, error) {
	const query = `
		SELECT id, station_id, controller_address,
		       regular_price, premium_price, diesel_price, last_price_update
		FROM panels
		WHERE station_id = $1
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var panels []models.Panel
	for rows.Next() {
		var (
			panel      models.Panel
			lastUpdate sql.NullTime
		)
		if err := rows.Scan(
			&panel.ID,
			&panel.StationID,
			&panel.ControllerAddress,
			&panel.Regular,
			&panel.Premium,
			&panel.Diesel,
			&lastUpdate,
		); err != nil {
			return nil, err
		}
		if lastUpdate.Valid {
			t := lastUpdate.Time
			panel.LastPriceUpdate = &t
		}
		panels = append(panels, panel)
	}
	return panels, rows.Err()
}

// UpdatePrices persists delivered prices and the delivery timestamp.
func (r *PanelRepository) UpdatePrices(ctx context.Context, panelID string, prices models.FuelPrices, updatedAt time.Time) error {
	const query = `
		UPDATE panels
		SET regular_price = $2,
		    premium_price = $3,
		    diesel_price = $4,
		    last_price_update = $5,
		    updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, panelID,
		prices.Regular, prices.Premium, prices.Diesel, updatedAt)
	if err != nil {
		return err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return models.ErrPanelNotFound
	}
	return nil
}
