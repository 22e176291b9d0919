package model

import (
	"encoding/json"
	"time"
)

// PriceSnapshot is one point-in-time price observation for a metal,
// already converted into the configured currency and weight unit.
type PriceSnapshot struct {
	Metal         Metal      `json:"metal"`
	Price         float64    `json:"price"`
	Currency      string     `json:"currency"`
	WeightUnit    WeightUnit `json:"weight_unit"`
	ChangePercent float64    `json:"change_percentage"` // signed; 0 when the source has no delta
	FetchedAt     time.Time  `json:"fetched_at"`
}

// JSON returns the JSON-encoded snapshot (ignoring errors for hot-path usage).
func (s *PriceSnapshot) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}

// PricePoint is one entry of a metal's daily history series.
type PricePoint struct {
	Date  string  `json:"date"` // calendar date, "2006-01-02", no time-of-day
	Price float64 `json:"price"`
}
