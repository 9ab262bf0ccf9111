package models

// FuelPrices holds the three advertised prices for a price sign.
// Values are dollars with at most two fractional digits.
type FuelPrices struct {
	Regular float64 `json:"regular"`
	Premium float64 `json:"premium"`
	Diesel  float64 `json:"diesel"`
}

// MaxPrice is the largest value a sign can display.
const MaxPrice = 999.99
