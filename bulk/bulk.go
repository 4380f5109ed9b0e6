// Package bulk drives the historical download engine: for every configured
// symbol and every trading day in the configured range, it selects the
// expirations worth fetching, pulls full-chain OHLC and greeks history,
// repairs price artifacts and persists one parquet file per batch.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"thetaflow/client"
	appconfig "thetaflow/config"
	"thetaflow/internal/calendar"
	"thetaflow/internal/repair"
	"thetaflow/logger"
	"thetaflow/writer"
)

const defaultMaxWorkers = 4

// Engine runs one historical collection pass.
type Engine struct {
	config *appconfig.Config
	writer *writer.Writer
	log    *logger.Log
}

// Summary reports what one run accomplished.
type Summary struct {
	RunID        string
	Symbols      int
	DaysFetched  int
	DaysSkipped  int
	FilesWritten int
	Errors       int
}

// New builds an Engine around an already constructed writer.
func New(cfg *appconfig.Config, w *writer.Writer) *Engine {
	return &Engine{config: cfg, writer: w, log: logger.GetLogger()}
}

// Run executes the full download: one goroutine per symbol, bounded by
// bulk.max_workers, each owning its own terminal client. Per-day failures
// are logged and counted but never abort the run; only a dead terminal or
// a cancelled context stops it.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	start, err := time.Parse("2006-01-02", e.config.Bulk.StartDate)
	if err != nil {
		return nil, fmt.Errorf("parse bulk.start_date: %w", err)
	}
	end, err := time.Parse("2006-01-02", e.config.Bulk.EndDate)
	if err != nil {
		return nil, fmt.Errorf("parse bulk.end_date: %w", err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("bulk date range is inverted: %s after %s", e.config.Bulk.StartDate, e.config.Bulk.EndDate)
	}

	runID := uuid.New().String()
	log := e.log.WithComponent("bulk").WithFields(logger.Fields{
		"run_id":  runID,
		"symbols": e.config.Bulk.Symbols,
		"start":   e.config.Bulk.StartDate,
		"end":     e.config.Bulk.EndDate,
	})
	log.Info("starting bulk run")

	cal, err := e.loadCalendar(ctx, start, end)
	if err != nil {
		return nil, err
	}
	days := cal.TradingDays(start, end)
	if len(days) == 0 {
		log.Warn("date range contains no trading days")
		return &Summary{RunID: runID}, nil
	}

	workers := e.config.Bulk.MaxWorkers
	if workers <= 0 {
		workers = defaultMaxWorkers
	}

	summary := &Summary{RunID: runID, Symbols: len(e.config.Bulk.Symbols)}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	for _, symbol := range e.config.Bulk.Symbols {
		symbol := symbol
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			s := e.runSymbol(ctx, runID, symbol, days, cal)
			mu.Lock()
			summary.DaysFetched += s.DaysFetched
			summary.DaysSkipped += s.DaysSkipped
			summary.FilesWritten += s.FilesWritten
			summary.Errors += s.Errors
			mu.Unlock()
		}()
	}
	wg.Wait()

	log.WithFields(logger.Fields{
		"days_fetched":  summary.DaysFetched,
		"days_skipped":  summary.DaysSkipped,
		"files_written": summary.FilesWritten,
		"errors":        summary.Errors,
	}).Info("bulk run complete")

	return summary, ctx.Err()
}

// loadCalendar fetches the full-closure days for every year the range
// touches, plus the following year so weekly-expiration lookups near
// year end stay correct.
func (e *Engine) loadCalendar(ctx context.Context, start, end time.Time) (*calendar.Calendar, error) {
	c, err := client.New(e.config)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	var closed []time.Time
	for year := start.Year(); year <= end.Year()+1; year++ {
		days, err := c.Holidays(ctx, year)
		if err != nil {
			return nil, fmt.Errorf("load holidays for %d: %w", year, err)
		}
		closed = append(closed, days...)
	}
	return calendar.New(closed), nil
}

func (e *Engine) runSymbol(ctx context.Context, runID, symbol string, days []time.Time, cal *calendar.Calendar) Summary {
	log := e.log.WithComponent("bulk").WithFields(logger.Fields{
		"run_id": runID,
		"symbol": symbol,
	})

	var s Summary

	c, err := client.New(e.config)
	if err != nil {
		log.WithError(err).Error("failed to build terminal client")
		s.Errors++
		return s
	}
	defer c.Close()

	for _, day := range days {
		if ctx.Err() != nil {
			return s
		}

		written, err := e.runDay(ctx, c, symbol, day, cal)
		switch {
		case errors.Is(err, client.ErrNoData):
			s.DaysSkipped++
			log.WithFields(logger.Fields{"date": day.Format("2006-01-02")}).Debug("no data for day, skipping")
		case err != nil:
			s.Errors++
			log.WithError(err).WithFields(logger.Fields{"date": day.Format("2006-01-02")}).Error("day failed")
		default:
			s.DaysFetched++
			s.FilesWritten += written
		}
	}

	log.WithFields(logger.Fields{
		"days_fetched": s.DaysFetched,
		"days_skipped": s.DaysSkipped,
		"errors":       s.Errors,
	}).Info("symbol complete")
	logger.LogDataFlowEntry(log, "terminal", "parquet", s.FilesWritten, "option_history")

	return s
}

// runDay fetches and persists every selected expiration for one symbol-day.
// It returns the number of files written.
func (e *Engine) runDay(ctx context.Context, c *client.Client, symbol string, day time.Time, cal *calendar.Calendar) (int, error) {
	exps, err := c.Expirations(ctx, symbol, day)
	if err != nil {
		return 0, err
	}
	if len(exps) == 0 {
		return 0, fmt.Errorf("%s on %s: %w", symbol, day.Format("2006-01-02"), client.ErrNoExpirations)
	}

	targets := calendar.SelectTargets(symbol, day, exps, cal.ClosedDates())
	if len(targets) == 0 {
		return 0, fmt.Errorf("%s on %s: no target expirations: %w", symbol, day.Format("2006-01-02"), client.ErrNoData)
	}

	written := 0
	for _, exp := range targets {
		ohlc, err := c.OptionOHLC(ctx, symbol, exp, day)
		if err != nil {
			return written, fmt.Errorf("ohlc %s exp %s: %w", symbol, exp.Format("20060102"), err)
		}
		if len(ohlc) > 0 {
			ohlc = repair.FixOHLCRows(ohlc)
			if err := e.writer.WriteOptionOHLC(symbol, exp, day, ohlc); err != nil {
				return written, err
			}
			written++
		}

		greeks, err := c.OptionGreeks(ctx, symbol, exp, day)
		if err != nil {
			return written, fmt.Errorf("greeks %s exp %s: %w", symbol, exp.Format("20060102"), err)
		}
		if len(greeks) > 0 {
			greeks = repair.FixGreeksRows(greeks)
			if err := e.writer.WriteOptionGreeks(symbol, exp, day, greeks); err != nil {
				return written, err
			}
			written++
		}
	}

	if written == 0 {
		return 0, fmt.Errorf("%s on %s: empty chain: %w", symbol, day.Format("2006-01-02"), client.ErrNoData)
	}
	return written, nil
}
