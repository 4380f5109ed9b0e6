// Package realtime maintains an in-memory session of today's candles by
// polling the terminal's history endpoints. Each symbol carries a cursor at
// the last candle seen; every poll fetches from that cursor forward and
// merges rows into the session keep-last, so amended bars replace earlier
// versions of themselves.
package realtime

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"thetaflow/client"
	appconfig "thetaflow/config"
	"thetaflow/logger"
	"thetaflow/models"
	"thetaflow/writer"
)

// endOfSessionTime bounds every poll window on the right.
const endOfSessionTime = "23:59:59"

// Feed polls the terminal and keeps one session table per symbol.
type Feed struct {
	config *appconfig.Config
	client *client.Client
	writer *writer.Writer
	log    *logger.Log

	mu       sync.RWMutex
	sessions map[string]map[models.CandleKey]models.Candle
	cursors  map[string]string // HH:MM:SS of the last candle per symbol
}

// New builds a Feed with its own terminal client. The writer may be nil
// when session snapshots are not wanted.
func New(cfg *appconfig.Config, w *writer.Writer) (*Feed, error) {
	c, err := client.New(cfg)
	if err != nil {
		return nil, err
	}

	f := &Feed{
		config:   cfg,
		client:   c,
		writer:   w,
		log:      logger.GetLogger(),
		sessions: make(map[string]map[models.CandleKey]models.Candle),
		cursors:  make(map[string]string),
	}
	for _, symbol := range cfg.Realtime.Symbols {
		f.sessions[symbol] = make(map[models.CandleKey]models.Candle)
		f.cursors[symbol] = cfg.Realtime.MarketOpen
	}
	return f, nil
}

// Run polls until the context is cancelled. One poll cycle covers every
// configured symbol; per-symbol failures are logged and retried on the next
// tick. Snapshots are written on their own interval when configured.
func (f *Feed) Run(ctx context.Context) error {
	log := f.log.WithComponent("realtime").WithFields(logger.Fields{
		"symbols":       f.config.Realtime.Symbols,
		"poll_interval": f.config.Realtime.PollInterval,
	})
	log.Info("realtime feed started")
	defer f.client.Close()

	ticker := time.NewTicker(f.config.Realtime.PollInterval)
	defer ticker.Stop()

	var snapshots <-chan time.Time
	if f.writer != nil && f.config.Realtime.SnapshotInterval > 0 {
		st := time.NewTicker(f.config.Realtime.SnapshotInterval)
		defer st.Stop()
		snapshots = st.C
	}

	// Prime the session before the first tick.
	f.Poll(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info("realtime feed stopped")
			return ctx.Err()
		case <-ticker.C:
			f.Poll(ctx)
		case <-snapshots:
			f.snapshot()
		}
	}
}

// Poll runs one fetch-and-merge cycle over every symbol.
func (f *Feed) Poll(ctx context.Context) {
	day := time.Now().UTC()
	for _, symbol := range f.config.Realtime.Symbols {
		if ctx.Err() != nil {
			return
		}
		if err := f.pollSymbol(ctx, symbol, day); err != nil {
			f.log.WithComponent("realtime").WithError(err).WithFields(logger.Fields{
				"symbol": symbol,
			}).Warn("poll failed")
		}
	}
}

func (f *Feed) pollSymbol(ctx context.Context, symbol string, day time.Time) error {
	f.mu.RLock()
	cursor := f.cursors[symbol]
	f.mu.RUnlock()

	candles, err := f.client.UnderlyingHistory(ctx, symbol, day, cursor, endOfSessionTime)
	if err != nil {
		if errors.Is(err, client.ErrNoData) {
			return nil
		}
		return err
	}
	if len(candles) == 0 {
		return nil
	}

	f.mu.Lock()
	session := f.sessions[symbol]
	if session == nil {
		session = make(map[models.CandleKey]models.Candle)
		f.sessions[symbol] = session
	}
	for _, c := range candles {
		session[c.Key()] = c
	}

	// The window is inclusive on the left, so polling resumes at the last
	// candle and its amended versions keep replacing it.
	last := candles[len(candles)-1].Timestamp
	f.cursors[symbol] = last.Format("15:04:05")
	size := len(session)
	f.mu.Unlock()

	f.log.WithComponent("realtime").WithFields(logger.Fields{
		"symbol":       symbol,
		"new_candles":  len(candles),
		"session_size": size,
		"cursor":       last.Format("15:04:05"),
	}).Debug("session merged")
	logger.RecordSinkMessage("realtime", len(candles))

	return nil
}

// Snapshot returns the current session of a symbol sorted by timestamp,
// then strike, then right. The result is a deep copy.
func (f *Feed) Snapshot(symbol string) []models.Candle {
	f.mu.RLock()
	defer f.mu.RUnlock()

	session := f.sessions[symbol]
	out := make([]models.Candle, 0, len(session))
	for _, c := range session {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.Strike != b.Strike {
			return a.Strike < b.Strike
		}
		return a.Right < b.Right
	})
	return out
}

// Cursor reports the time-of-day the next poll of a symbol starts from.
func (f *Feed) Cursor(symbol string) string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cursors[symbol]
}

// snapshot persists every non-empty session as a parquet file.
func (f *Feed) snapshot() {
	day := time.Now().UTC()
	for _, symbol := range f.config.Realtime.Symbols {
		candles := f.Snapshot(symbol)
		if len(candles) == 0 {
			continue
		}
		key := symbol + "_" + day.Format("150405")
		if err := f.writer.WriteSession(symbol, key, day, candles); err != nil {
			f.log.WithComponent("realtime").WithError(err).WithFields(logger.Fields{
				"symbol": symbol,
			}).Warn("session snapshot failed")
		}
	}
}
