package models

import (
	"errors"
	"time"
)

// Lookup errors shared by the record layer and its consumers.
var (
	ErrStationNotFound = errors.New("station not found")
	ErrPanelNotFound   = errors.New("panel not found")
)

// Station is a fuel site with one or more price panels.
type Station struct {
	ID                string     `db:"id" json:"id"`
	Name              string     `db:"name" json:"name"`
	ControllerAddress string     `db:"controller_address" json:"controller_address"`
	Status            string     `db:"status" json:"status"`
	LastSeen          *time.Time `db:"last_seen" json:"last_seen,omitempty"`
}

// Panel is one addressable LED display unit bound to a station.
type Panel struct {
	ID                string     `db:"id" json:"id"`
	StationID         string     `db:"station_id" json:"station_id"`
	ControllerAddress string     `db:"controller_address" json:"controller_address"`
	Regular           float64    `db:"regular_price" json:"regular"`
	Premium           float64    `db:"premium_price" json:"premium"`
	Diesel            float64    `db:"diesel_price" json:"diesel"`
	LastPriceUpdate   *time.Time `db:"last_price_update" json:"last_price_update,omitempty"`
}

// Prices returns the panel's current prices.
func (p *Panel) Prices() FuelPrices {
	return FuelPrices{Regular: p.Regular, Premium: p.Premium, Diesel: p.Diesel}
}

// Address returns the panel's controller address, falling back to the
// station-level controller when the panel has no dedicated one.
func (p *Panel) Address(station *Station) string {
	if p.ControllerAddress != "" {
		return p.ControllerAddress
	}
	if station != nil {
		return station.ControllerAddress
	}
	return ""
}
