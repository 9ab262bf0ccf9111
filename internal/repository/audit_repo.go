package repository

import (
	"context"
	"database/sql"
	"time"

	"fuelsign/internal/models"
)

// AuditRepository manages the price-change audit trail.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository returns repository.
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append inserts one audit row.
func (r *AuditRepository) Append(ctx context.Context, entry *models.PriceAudit) error {
	const query = `
		INSERT INTO price_audit (
			station_id, panel_id, actor_id,
			old_regular, old_premium, old_diesel,
			new_regular, new_premium, new_diesel,
			success, error, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return r.db.QueryRowContext(ctx, query,
		entry.StationID,
		entry.PanelID,
		entry.ActorID,
		entry.OldRegular,
		entry.OldPremium,
		entry.OldDiesel,
		entry.NewRegular,
		entry.NewPremium,
		entry.NewDiesel,
		entry.Success,
		entry.Error,
		entry.CreatedAt,
	).Scan(&entry.ID)
}

// ListByStation returns the most recent audit entries for a station.
func (r *AuditRepository) ListByStation(ctx context.Context, stationID string, limit int) ([]models.PriceAudit, error) {
	const query = `
		SELECT id, station_id, panel_id, actor_id,
		       old_regular, old_premium, old_diesel,
		       new_regular, new_premium, new_diesel,
		       success, error, created_at
		FROM price_audit
		WHERE station_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, query, stationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.PriceAudit
	for rows.Next() {
		var entry models.PriceAudit
		if err := rows.Scan(
			&entry.ID,
			&entry.StationID,
			&entry.PanelID,
			&entry.ActorID,
			&entry.OldRegular,
			&entry.OldPremium,
			&entry.OldDiesel,
			&entry.NewRegular,
			&entry.NewPremium,
			&entry.NewDiesel,
			&entry.Success,
			&entry.Error,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
