package client

import (
	"context"
	"fmt"
	"sort"
	"time"

	"thetaflow/internal/repair"
	"thetaflow/logger"
	"thetaflow/models"
)

// maxProxyExpirations bounds how many near expirations the spot proxy
// search tries before giving up.
const maxProxyExpirations = 2

// DeriveUnderlying reconstructs an underlying OHLC series from option
// greeks (spot proxy): at-the-money contract quotes carry the underlying
// price on every tick. The search tries the two nearest expirations, call
// before put, and stops at the first series with usable data. The result is
// aggregated into 1-minute buckets and repaired before returning.
func (c *Client) DeriveUnderlying(ctx context.Context, symbol string, day time.Time) (*models.UnderlyingData, error) {
	log := c.log.WithComponent("client").WithFields(logger.Fields{
		"symbol":    symbol,
		"date":      day.Format("2006-01-02"),
		"operation": "derive_underlying",
	})
	log.Info("deriving underlying from greeks")

	exps, err := c.Expirations(ctx, symbol, day)
	if err != nil {
		return nil, err
	}
	if len(exps) == 0 {
		return nil, fmt.Errorf("%s on %s: %w", symbol, day.Format("2006-01-02"), ErrNoExpirations)
	}
	if len(exps) > maxProxyExpirations {
		exps = exps[:maxProxyExpirations]
	}

	for _, exp := range exps {
		strikes, err := c.Strikes(ctx, symbol, exp, day)
		if err != nil {
			return nil, err
		}
		if len(strikes) == 0 {
			continue
		}
		atm := strikes[len(strikes)/2]

		for _, right := range []string{"C", "P"} {
			raw, err := c.greeksSeries(ctx, symbol, exp, atm, right, day)
			if err != nil {
				return nil, err
			}

			rows := greeksFromRows(raw, true)
			if len(rows) == 0 {
				continue
			}
			sort.Slice(rows, func(i, j int) bool { return rows[i].Timestamp < rows[j].Timestamp })

			candles := aggregateMinutes(rows)
			candles = repair.FixCandles(candles)

			log.WithFields(logger.Fields{
				"expiration": Compact(exp),
				"strike":     atm,
				"right":      right,
				"minutes":    len(candles),
			}).Info("derived underlying series")

			return &models.UnderlyingData{
				Symbol:    symbol,
				Date:      day.Format("2006-01-02"),
				Interval:  "1m",
				Candles:   candles,
				FetchedAt: time.Now().UTC(),
			}, nil
		}
	}

	return nil, fmt.Errorf("%s on %s: %w", symbol, day.Format("2006-01-02"), ErrUnderlyingDerivation)
}

// aggregateMinutes buckets underlying prices into 1-minute candles:
// open=first, high=max, low=min, close=last, volume=observation count.
// Rows must be sorted by timestamp ascending.
func aggregateMinutes(rows []models.GreeksRow) []models.Candle {
	var candles []models.Candle
	var cur *models.Candle
	var bucket time.Time

	for _, r := range rows {
		minute := r.Time().Truncate(time.Minute)
		price := r.UnderlyingPrice

		if cur == nil || !minute.Equal(bucket) {
			if cur != nil {
				candles = append(candles, *cur)
			}
			bucket = minute
			cur = &models.Candle{
				Timestamp: minute,
				Open:      price,
				High:      price,
				Low:       price,
				Close:     price,
				Volume:    1,
			}
			continue
		}

		if price > cur.High {
			cur.High = price
		}
		if price < cur.Low {
			cur.Low = price
		}
		cur.Close = price
		cur.Volume++
	}
	if cur != nil {
		candles = append(candles, *cur)
	}
	return candles
}
