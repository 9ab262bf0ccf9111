package models

import "time"

// PriceAudit records one attempted price delivery to one panel.
type PriceAudit struct {
	ID         int64     `db:"id" json:"id"`
	StationID  string    `db:"station_id" json:"station_id"`
	PanelID    string    `db:"panel_id" json:"panel_id"`
	ActorID    string    `db:"actor_id" json:"actor_id"`
	OldRegular float64   `db:"old_regular" json:"old_regular"`
	OldPremium float64   `db:"old_premium" json:"old_premium"`
	OldDiesel  float64   `db:"old_diesel" json:"old_diesel"`
	NewRegular float64   `db:"new_regular" json:"new_regular"`
	NewPremium float64   `db:"new_premium" json:"new_premium"`
	NewDiesel  float64   `db:"new_diesel" json:"new_diesel"`
	Success    bool      `db:"success" json:"success"`
	Error      string    `db:"error" json:"error,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
