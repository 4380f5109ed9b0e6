package client

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"thetaflow/internal/calendar"
)

const compactDate = "20060102"

// Compact formats a day as the terminal's YYYYMMDD parameter format.
func Compact(t time.Time) string { return t.Format(compactDate) }

// parseDay accepts both YYYYMMDD and YYYY-MM-DD date strings.
func parseDay(s string) (time.Time, error) {
	s = strings.ReplaceAll(s, "-", "")
	t, err := time.Parse(compactDate, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// Expirations lists the available expirations for a symbol on a date,
// filtered to those at or after the date, ascending.
func (c *Client) Expirations(ctx context.Context, symbol string, day time.Time) ([]time.Time, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("date", Compact(day))
	params.Set("format", "json")

	items, err := c.get(ctx, "expirations", "/v3/option/list/expirations", params)
	if err != nil {
		return nil, err
	}

	day = calendar.Midnight(day)
	var exps []time.Time
	for _, item := range items {
		val, ok := listValue(item, "expiration", "value", "date")
		if !ok {
			continue
		}
		exp, err := parseDay(val)
		if err != nil {
			continue
		}
		if !exp.Before(day) {
			exps = append(exps, exp)
		}
	}
	sort.Slice(exps, func(i, j int) bool { return exps[i].Before(exps[j]) })
	return exps, nil
}

// Strikes lists the strike prices for an expiration, sorted ascending.
// The terminal returns either bare numbers or {strike: ...} objects.
func (c *Client) Strikes(ctx context.Context, symbol string, expiration, day time.Time) ([]float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("expiration", Compact(expiration))
	params.Set("date", Compact(day))
	params.Set("format", "json")

	items, err := c.get(ctx, "strikes", "/v3/option/list/strikes", params)
	if err != nil {
		return nil, err
	}

	var strikes []float64
	for _, item := range items {
		val, ok := listValue(item, "strike", "value")
		if !ok {
			continue
		}
		var v float64
		if _, err := fmt.Sscanf(val, "%g", &v); err == nil {
			strikes = append(strikes, v)
		}
	}
	sort.Float64s(strikes)
	return strikes, nil
}

// Holidays lists the full-market-closure days of a year.
func (c *Client) Holidays(ctx context.Context, year int) ([]time.Time, error) {
	params := url.Values{}
	params.Set("year", fmt.Sprintf("%d", year))
	params.Set("format", "json")

	items, err := c.get(ctx, "calendar", "/v3/calendar/year_holidays", params)
	if err != nil {
		return nil, err
	}

	var days []time.Time
	for _, item := range items {
		r, err := decodeRow(item)
		if err != nil {
			continue
		}
		if r.str("type") != "full_close" {
			continue
		}
		d, err := parseDay(r.str("date"))
		if err != nil {
			continue
		}
		days = append(days, d)
	}
	return days, nil
}
