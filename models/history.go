package models

import "time"

// OptionOHLCRow is a flattened bulk history row: the per-contract fields
// from the nested envelope joined onto each data row.
type OptionOHLCRow struct {
	Root       string  `json:"root"`
	Expiration string  `json:"expiration"` // YYYYMMDD
	Strike     float64 `json:"strike"`
	Right      string  `json:"right"`
	Timestamp  int64   `json:"timestamp"` // epoch milliseconds
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	Volume     int64   `json:"volume"`
	Count      int64   `json:"count"`
}

// GreeksRow is a flattened first-order greeks history row.
type GreeksRow struct {
	Root            string  `json:"root"`
	Expiration      string  `json:"expiration"`
	Strike          float64 `json:"strike"`
	Right           string  `json:"right"`
	Timestamp       int64   `json:"timestamp"` // epoch milliseconds
	Delta           float64 `json:"delta"`
	Gamma           float64 `json:"gamma"`
	Theta           float64 `json:"theta"`
	Vega            float64 `json:"vega"`
	Rho             float64 `json:"rho"`
	IV              float64 `json:"implied_vol"`
	UnderlyingPrice float64 `json:"underlying_price"`
}

// Time returns the row timestamp as UTC time.
func (r GreeksRow) Time() time.Time {
	return time.UnixMilli(r.Timestamp).UTC()
}

// Time returns the row timestamp as UTC time.
func (r OptionOHLCRow) Time() time.Time {
	return time.UnixMilli(r.Timestamp).UTC()
}
