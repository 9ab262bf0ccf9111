package protocol

import (
	"encoding/json"
	"strconv"
	"time"

	"fuelsign/internal/models"
)

// PricePayload is the structured record carried by price-update frames.
// Prices travel as 2-decimal strings so field controllers and test
// harnesses can inspect the payload as plain text.
type PricePayload struct {
	Regular   string `json:"regular"`
	Premium   string `json:"premium"`
	Diesel    string `json:"diesel"`
	PanelID   string `json:"panel_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// DecodedPrices is the price content extracted from a received frame.
// Degraded is set when the payload was not the structured record and
// the documented defaults (all zero) were substituted.
type DecodedPrices struct {
	Prices   models.FuelPrices
	PanelID  string
	Degraded bool
}

// NewPriceUpdateFrame builds a price-update frame for one panel.
func NewPriceUpdateFrame(prices models.FuelPrices, panelID string, at time.Time) ([]byte, error) {
	payload := PricePayload{
		Regular: FormatPrice(prices.Regular),
		Premium: FormatPrice(prices.Premium),
		Diesel:  FormatPrice(prices.Diesel),
		PanelID: panelID,
	}
	if !at.IsZero() {
		payload.Timestamp = at.UTC().Format(time.RFC3339)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return Encode(CmdPriceUpdate, data)
}

// NewStatusQueryFrame builds the health-probe request frame.
func NewStatusQueryFrame() []byte {
	frame, _ := Encode(CmdStatusQuery, nil)
	return frame
}

// NewAckFrame builds a ping/ack frame.
func NewAckFrame() []byte {
	frame, _ := Encode(CmdAck, nil)
	return frame
}

// NewCustomFrame frames an arbitrary command/payload pair.
func NewCustomFrame(command byte, payload []byte) ([]byte, error) {
	return Encode(command, payload)
}

// ParsePricePayload extracts prices from a price-update payload. Legacy
// controllers echo payloads that are not the structured record; those
// decode to the zero defaults with Degraded set instead of failing.
func ParsePricePayload(payload []byte) DecodedPrices {
	var record PricePayload
	if err := json.Unmarshal(payload, &record); err != nil {
		return DecodedPrices{Degraded: true}
	}

	decoded := DecodedPrices{PanelID: record.PanelID}
	decoded.Prices.Regular = parsePrice(record.Regular, &decoded.Degraded)
	decoded.Prices.Premium = parsePrice(record.Premium, &decoded.Degraded)
	decoded.Prices.Diesel = parsePrice(record.Diesel, &decoded.Degraded)
	return decoded
}

// FormatPrice renders a price as the 2-decimal wire string.
func FormatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func parsePrice(s string, degraded *bool) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*degraded = true
		return 0
	}
	return v
}
