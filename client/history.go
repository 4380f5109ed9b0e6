package client

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"thetaflow/models"
)

const (
	optionOHLCPath   = "/option/history/ohlc"
	optionGreeksPath = "/option/history/greeks/first_order"
	indexOHLCPath    = "/index/history/ohlc"
	stockOHLCPath    = "/stock/history/ohlc"
)

// indexSymbols are served by the index history endpoint rather than the
// stock one.
var indexSymbols = map[string]bool{"SPX": true, "SPXW": true, "VIX": true}

// OptionOHLC fetches the full-chain OHLC history for one expiration on one
// day (every strike, both rights).
func (c *Client) OptionOHLC(ctx context.Context, symbol string, expiration, day time.Time) ([]models.OptionOHLCRow, error) {
	rows, err := c.bulkHistory(ctx, "bulk_ohlc", optionOHLCPath, symbol, expiration, day)
	if err != nil {
		return nil, err
	}

	out := make([]models.OptionOHLCRow, 0, len(rows))
	for _, r := range rows {
		rec := models.OptionOHLCRow{
			Root:       r.str("root", "symbol"),
			Expiration: compactStr(r.str("expiration")),
			Right:      r.str("right"),
			Timestamp:  r.int64("timestamp", "ms_of_day"),
			Volume:     r.int64("volume"),
			Count:      r.int64("count"),
		}
		rec.Strike, _ = r.float("strike")
		rec.Open, _ = r.float("open")
		rec.High, _ = r.float("high")
		rec.Low, _ = r.float("low")
		rec.Close, _ = r.float("close")
		out = append(out, rec)
	}
	return out, nil
}

// OptionGreeks fetches the full-chain first-order greeks history for one
// expiration on one day.
func (c *Client) OptionGreeks(ctx context.Context, symbol string, expiration, day time.Time) ([]models.GreeksRow, error) {
	rows, err := c.bulkHistory(ctx, "bulk_greeks", optionGreeksPath, symbol, expiration, day)
	if err != nil {
		return nil, err
	}
	return greeksFromRows(rows, false), nil
}

func (c *Client) bulkHistory(ctx context.Context, endpoint, path, symbol string, expiration, day time.Time) ([]row, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("expiration", Compact(expiration))
	params.Set("date", Compact(day))
	params.Set("strike", "*")
	params.Set("right", "both")
	params.Set("format", "json")

	items, err := c.get(ctx, endpoint, path, params)
	if err != nil {
		return nil, err
	}
	return flattenRows(items)
}

// ContractOHLC fetches minute OHLC history for a single option contract.
func (c *Client) ContractOHLC(ctx context.Context, symbol string, expiration time.Time, strike float64, right string, day time.Time) ([]models.OptionOHLCRow, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("expiration", Compact(expiration))
	params.Set("strike", strconv.FormatFloat(strike, 'f', -1, 64))
	params.Set("right", right)
	params.Set("date", Compact(day))
	params.Set("interval", "1m")
	params.Set("format", "json")

	items, err := c.get(ctx, "contract_ohlc", "/v3"+optionOHLCPath, params)
	if err != nil {
		return nil, err
	}
	rows, err := flattenRows(items)
	if err != nil {
		return nil, err
	}

	out := make([]models.OptionOHLCRow, 0, len(rows))
	for _, r := range rows {
		rec := models.OptionOHLCRow{
			Root:       symbol,
			Expiration: Compact(expiration),
			Strike:     strike,
			Right:      right,
			Timestamp:  r.int64("timestamp", "ms_of_day"),
			Volume:     r.int64("volume"),
			Count:      r.int64("count"),
		}
		rec.Open, _ = r.float("open")
		rec.High, _ = r.float("high")
		rec.Low, _ = r.float("low")
		rec.Close, _ = r.float("close")
		out = append(out, rec)
	}
	return out, nil
}

// greeksSeries fetches second-resolution greeks for a single contract,
// used by the spot proxy derivation.
func (c *Client) greeksSeries(ctx context.Context, symbol string, expiration time.Time, strike float64, right string, day time.Time) ([]row, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("expiration", Compact(expiration))
	params.Set("strike", strconv.FormatFloat(strike, 'f', -1, 64))
	params.Set("right", right)
	params.Set("date", Compact(day))
	params.Set("interval", "1s")
	params.Set("format", "json")

	items, err := c.get(ctx, "underlying_proxy", "/v3"+optionGreeksPath, params)
	if err != nil {
		return nil, err
	}
	return flattenRows(items)
}

// greeksFromRows converts flat rows into typed greeks rows. When
// requireUnderlying is set, rows without an underlying price field are
// dropped entirely.
func greeksFromRows(rows []row, requireUnderlying bool) []models.GreeksRow {
	out := make([]models.GreeksRow, 0, len(rows))
	for _, r := range rows {
		up, err := r.float("underlying_price")
		if requireUnderlying && err != nil {
			continue
		}
		rec := models.GreeksRow{
			Root:            r.str("root", "symbol"),
			Expiration:      compactStr(r.str("expiration")),
			Right:           r.str("right"),
			Timestamp:       r.int64("timestamp", "ms_of_day"),
			UnderlyingPrice: up,
		}
		rec.Strike, _ = r.float("strike")
		rec.Delta, _ = r.float("delta")
		rec.Gamma, _ = r.float("gamma")
		rec.Theta, _ = r.float("theta")
		rec.Vega, _ = r.float("vega")
		rec.Rho, _ = r.float("rho")
		rec.IV, _ = r.float("implied_vol", "iv")
		out = append(out, rec)
	}
	return out
}

// UnderlyingHistory fetches today's underlying candles for the realtime
// feed, bounded by start and end times of day (HH:MM:SS).
func (c *Client) UnderlyingHistory(ctx context.Context, symbol string, day time.Time, startTime, endTime string) ([]models.Candle, error) {
	path := stockOHLCPath
	if indexSymbols[symbol] {
		path = indexOHLCPath
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("start_date", Compact(day))
	params.Set("end_date", Compact(day))
	params.Set("start_time", startTime)
	params.Set("end_time", endTime)
	params.Set("format", "json")

	items, err := c.get(ctx, "rt_"+symbol, path, params)
	if err != nil {
		return nil, err
	}

	rows, err := flattenRows(items)
	if err != nil {
		return nil, err
	}

	out := make([]models.Candle, 0, len(rows))
	for _, r := range rows {
		ts, err := parseTimestamp(r)
		if err != nil {
			continue
		}
		candle := models.Candle{
			Timestamp: ts,
			Right:     r.str("right"),
			Volume:    r.int64("volume"),
		}
		candle.Strike, _ = r.float("strike")
		candle.Open, _ = r.float("open")
		candle.High, _ = r.float("high")
		candle.Low, _ = r.float("low")
		candle.Close, _ = r.float("close")
		out = append(out, candle)
	}
	return out, nil
}

// parseTimestamp handles the two timestamp shapes the terminal produces:
// epoch milliseconds and "YYYY-MM-DD HH:MM:SS" datetimes.
func parseTimestamp(r row) (time.Time, error) {
	if s := r.str("timestamp"); s != "" {
		if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
			return t.UTC(), nil
		}
	}
	ms, err := r.float("timestamp", "ms_of_day")
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(int64(ms)).UTC(), nil
}

func compactStr(s string) string {
	if t, err := parseDay(s); err == nil {
		return Compact(t)
	}
	return s
}
