package writer

import (
	"thetaflow/models"
)

// UnderlyingRecord is the parquet schema of derived underlying candles.
type UnderlyingRecord struct {
	Timestamp int64   `parquet:"name=timestamp, type=INT64"`
	Open      float64 `parquet:"name=open, type=DOUBLE"`
	High      float64 `parquet:"name=high, type=DOUBLE"`
	Low       float64 `parquet:"name=low, type=DOUBLE"`
	Close     float64 `parquet:"name=close, type=DOUBLE"`
	Volume    int64   `parquet:"name=volume, type=INT64"`
}

// OptionOHLCRecord is the parquet schema of bulk option OHLC rows.
type OptionOHLCRecord struct {
	Root       string  `parquet:"name=root, type=BYTE_ARRAY, convertedtype=UTF8"`
	Expiration string  `parquet:"name=expiration, type=BYTE_ARRAY, convertedtype=UTF8"`
	Strike     float64 `parquet:"name=strike, type=DOUBLE"`
	Right      string  `parquet:"name=right, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp  int64   `parquet:"name=timestamp, type=INT64"`
	Open       float64 `parquet:"name=open, type=DOUBLE"`
	High       float64 `parquet:"name=high, type=DOUBLE"`
	Low        float64 `parquet:"name=low, type=DOUBLE"`
	Close      float64 `parquet:"name=close, type=DOUBLE"`
	Volume     int64   `parquet:"name=volume, type=INT64"`
	Count      int64   `parquet:"name=count, type=INT64"`
}

// OptionGreeksRecord is the parquet schema of bulk first-order greeks rows.
type OptionGreeksRecord struct {
	Root            string  `parquet:"name=root, type=BYTE_ARRAY, convertedtype=UTF8"`
	Expiration      string  `parquet:"name=expiration, type=BYTE_ARRAY, convertedtype=UTF8"`
	Strike          float64 `parquet:"name=strike, type=DOUBLE"`
	Right           string  `parquet:"name=right, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp       int64   `parquet:"name=timestamp, type=INT64"`
	Delta           float64 `parquet:"name=delta, type=DOUBLE"`
	Gamma           float64 `parquet:"name=gamma, type=DOUBLE"`
	Theta           float64 `parquet:"name=theta, type=DOUBLE"`
	Vega            float64 `parquet:"name=vega, type=DOUBLE"`
	Rho             float64 `parquet:"name=rho, type=DOUBLE"`
	IV              float64 `parquet:"name=implied_vol, type=DOUBLE"`
	UnderlyingPrice float64 `parquet:"name=underlying_price, type=DOUBLE"`
}

// SessionRecord is the parquet schema of realtime session snapshots.
type SessionRecord struct {
	Symbol    string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp int64   `parquet:"name=timestamp, type=INT64"`
	Strike    float64 `parquet:"name=strike, type=DOUBLE"`
	Right     string  `parquet:"name=right, type=BYTE_ARRAY, convertedtype=UTF8"`
	Open      float64 `parquet:"name=open, type=DOUBLE"`
	High      float64 `parquet:"name=high, type=DOUBLE"`
	Low       float64 `parquet:"name=low, type=DOUBLE"`
	Close     float64 `parquet:"name=close, type=DOUBLE"`
	Volume    int64   `parquet:"name=volume, type=INT64"`
}

func underlyingRecords(candles []models.Candle) []interface{} {
	out := make([]interface{}, 0, len(candles))
	for _, c := range candles {
		out = append(out, UnderlyingRecord{
			Timestamp: c.Timestamp.UnixMilli(),
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		})
	}
	return out
}

func optionOHLCRecords(rows []models.OptionOHLCRow) []interface{} {
	out := make([]interface{}, 0, len(rows))
	for _, r := range rows {
		out = append(out, OptionOHLCRecord(r))
	}
	return out
}

func optionGreeksRecords(rows []models.GreeksRow) []interface{} {
	out := make([]interface{}, 0, len(rows))
	for _, r := range rows {
		out = append(out, OptionGreeksRecord(r))
	}
	return out
}

func sessionRecords(symbol string, candles []models.Candle) []interface{} {
	out := make([]interface{}, 0, len(candles))
	for _, c := range candles {
		out = append(out, SessionRecord{
			Symbol:    symbol,
			Timestamp: c.Timestamp.UnixMilli(),
			Strike:    c.Strike,
			Right:     c.Right,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		})
	}
	return out
}
