package models

import (
	"time"
)

// Candle represents a single OHLC bar. For option series the Strike and
// Right fields identify the contract; for underlying series they are zero.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Strike    float64   `json:"strike,omitempty"`
	Right     string    `json:"right,omitempty"` // "C" or "P", empty for underlying
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// CandleKey identifies a candle inside a session table. Duplicate keys are
// resolved keep-last during realtime ingestion.
type CandleKey struct {
	Timestamp time.Time
	Strike    float64
	Right     string
}

// Key returns the dedup key of the candle.
func (c Candle) Key() CandleKey {
	return CandleKey{Timestamp: c.Timestamp, Strike: c.Strike, Right: c.Right}
}

// UnderlyingData is a derived underlying OHLC series (spot proxy).
type UnderlyingData struct {
	Symbol    string    `json:"symbol"`
	Date      string    `json:"date"` // YYYY-MM-DD
	Interval  string    `json:"interval"`
	Candles   []Candle  `json:"candles"`
	FetchedAt time.Time `json:"fetched_at"`
}

// OptionData is a historical series for a single option contract.
type OptionData struct {
	Symbol     string   `json:"symbol"`
	Expiration string   `json:"expiration"` // YYYYMMDD
	Strike     float64  `json:"strike"`
	Right      string   `json:"right"`
	Date       string   `json:"date"`
	Interval   string   `json:"interval"`
	DataType   string   `json:"data_type"` // "ohlc" or "greeks"
	Candles    []Candle `json:"candles"`
}
