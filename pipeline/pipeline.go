// Package pipeline runs the single-date download: derive the underlying
// series for each symbol, fetch the at-the-money option series for the
// nearest expiration, verify both are free of price artifacts and persist
// them.
package pipeline

import (
	"context"
	"errors"
	"math"
	"time"

	"thetaflow/client"
	appconfig "thetaflow/config"
	"thetaflow/internal/repair"
	"thetaflow/logger"
	"thetaflow/models"
	"thetaflow/writer"
)

// Pipeline owns one terminal client for the whole run; single-date work is
// sequential.
type Pipeline struct {
	config *appconfig.Config
	client *client.Client
	writer *writer.Writer
	log    *logger.Log
}

// New builds a Pipeline with its own terminal client.
func New(cfg *appconfig.Config, w *writer.Writer) (*Pipeline, error) {
	c, err := client.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Pipeline{config: cfg, client: c, writer: w, log: logger.GetLogger()}, nil
}

// Close releases the terminal client.
func (p *Pipeline) Close() { p.client.Close() }

// RunFull sequences the underlying derivation and the option download for
// one date. Symbols that fail are logged and skipped; the error count is
// returned so callers can pick an exit code.
func (p *Pipeline) RunFull(ctx context.Context, day time.Time, symbols []string) int {
	failures := p.RunUnderlying(ctx, day, symbols)
	failures += p.RunOptions(ctx, day, symbols)
	return failures
}

// RunUnderlying derives and persists the underlying series of each symbol
// for one date. Returns the number of symbols that failed.
func (p *Pipeline) RunUnderlying(ctx context.Context, day time.Time, symbols []string) int {
	failures := 0
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return failures
		}
		log := p.log.WithComponent("pipeline").WithFields(logger.Fields{
			"symbol": symbol,
			"date":   day.Format("2006-01-02"),
		})

		data, err := p.client.DeriveUnderlying(ctx, symbol, day)
		switch {
		case errors.Is(err, client.ErrNoData), errors.Is(err, client.ErrUnderlyingDerivation):
			log.WithError(err).Warn("underlying unavailable, skipping")
			continue
		case err != nil:
			log.WithError(err).Error("underlying derivation failed")
			failures++
			continue
		}

		if !candlesIntact(data.Candles) {
			log.Warn("derived series failed integrity check, re-repairing")
			data.Candles = repair.FixCandles(data.Candles)
		}

		if err := p.writer.WriteUnderlying(data); err != nil {
			log.WithError(err).Error("failed to persist underlying")
			failures++
			continue
		}
		log.WithFields(logger.Fields{"candles": len(data.Candles)}).Info("underlying persisted")
	}
	return failures
}

// RunOptions fetches the at-the-money call of the nearest expiration for
// each symbol and persists its minute series. Returns the number of symbols
// that failed.
func (p *Pipeline) RunOptions(ctx context.Context, day time.Time, symbols []string) int {
	failures := 0
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return failures
		}
		log := p.log.WithComponent("pipeline").WithFields(logger.Fields{
			"symbol": symbol,
			"date":   day.Format("2006-01-02"),
		})

		rows, exp, err := p.fetchATMCall(ctx, symbol, day)
		switch {
		case errors.Is(err, client.ErrNoData):
			log.WithError(err).Warn("option series unavailable, skipping")
			continue
		case err != nil:
			log.WithError(err).Error("option fetch failed")
			failures++
			continue
		}

		if !ohlcRowsIntact(rows) {
			log.Warn("option series failed integrity check, re-repairing")
			rows = repair.FixOHLCRows(rows)
		}

		if err := p.writer.WriteOptionOHLC(symbol, exp, day, rows); err != nil {
			log.WithError(err).Error("failed to persist option series")
			failures++
			continue
		}
		log.WithFields(logger.Fields{
			"expiration": exp.Format("20060102"),
			"rows":       len(rows),
		}).Info("option series persisted")
	}
	return failures
}

func (p *Pipeline) fetchATMCall(ctx context.Context, symbol string, day time.Time) ([]models.OptionOHLCRow, time.Time, error) {
	exps, err := p.client.Expirations(ctx, symbol, day)
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(exps) == 0 {
		return nil, time.Time{}, client.ErrNoExpirations
	}
	exp := exps[0]

	strikes, err := p.client.Strikes(ctx, symbol, exp, day)
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(strikes) == 0 {
		return nil, time.Time{}, client.ErrNoData
	}
	atm := strikes[len(strikes)/2]

	rows, err := p.client.ContractOHLC(ctx, symbol, exp, atm, "C", day)
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(rows) == 0 {
		return nil, time.Time{}, client.ErrNoData
	}
	return rows, exp, nil
}

// candlesIntact reports whether every price of the series is a usable
// non-zero number.
func candlesIntact(candles []models.Candle) bool {
	for _, c := range candles {
		if !priceOK(c.Open) || !priceOK(c.High) || !priceOK(c.Low) || !priceOK(c.Close) {
			return false
		}
	}
	return true
}

func ohlcRowsIntact(rows []models.OptionOHLCRow) bool {
	for _, r := range rows {
		if !priceOK(r.Open) || !priceOK(r.High) || !priceOK(r.Low) || !priceOK(r.Close) {
			return false
		}
	}
	return true
}

func priceOK(v float64) bool { return v != 0 && !math.IsNaN(v) }
