package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	appconfig "thetaflow/config"
)

func testConfig(t *testing.T, baseURL string, symbols []string) *appconfig.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &appconfig.Config{
		Terminal: appconfig.TerminalConfig{
			BaseURL: baseURL,
			Timeout: 2 * time.Second,
			Retry: appconfig.RetryConfig{
				MaxAttempts:       2,
				BaseDelay:         time.Millisecond,
				MaxDelay:          2 * time.Millisecond,
				BackoffMultiplier: 2,
			},
		},
		Audit: appconfig.AuditConfig{
			RetryLog: filepath.Join(dir, "retries.csv"),
			StatsLog: filepath.Join(dir, "stats.csv"),
		},
		Realtime: appconfig.RealtimeConfig{
			Symbols:      symbols,
			PollInterval: time.Minute,
			MarketOpen:   "09:30:00",
		},
	}
	return cfg
}

func newFeed(t *testing.T, handler http.Handler, symbols []string) *Feed {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	f, err := New(testConfig(t, srv.URL, symbols), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

func TestPollMergesAndAdvancesCursor(t *testing.T) {
	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/index/history/ohlc" {
			t.Errorf("unexpected path %s for index symbol", r.URL.Path)
		}
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			if got := r.URL.Query().Get("start_time"); got != "09:30:00" {
				t.Errorf("first poll start_time = %q, want market open", got)
			}
			fmt.Fprint(w, `{"response": [
				{"timestamp":"2026-08-24 09:30:00","open":5300,"high":5301,"low":5299,"close":5300.5,"volume":10},
				{"timestamp":"2026-08-24 09:31:00","open":5300.5,"high":5302,"low":5300,"close":5301,"volume":8}
			]}`)
			return
		}
		if got := r.URL.Query().Get("start_time"); got != "09:31:00" {
			t.Errorf("second poll start_time = %q, want last candle time", got)
		}
		// The 09:31 bar arrives amended, plus one new bar.
		fmt.Fprint(w, `{"response": [
			{"timestamp":"2026-08-24 09:31:00","open":5300.5,"high":5303,"low":5300,"close":5302,"volume":15},
			{"timestamp":"2026-08-24 09:32:00","open":5302,"high":5302.5,"low":5301.5,"close":5302,"volume":4}
		]}`)
	})

	f := newFeed(t, handler, []string{"SPX"})
	ctx := context.Background()

	f.Poll(ctx)
	if got := f.Cursor("SPX"); got != "09:31:00" {
		t.Fatalf("cursor after first poll = %q", got)
	}
	if got := len(f.Snapshot("SPX")); got != 2 {
		t.Fatalf("session size after first poll = %d, want 2", got)
	}

	f.Poll(ctx)
	session := f.Snapshot("SPX")
	if len(session) != 3 {
		t.Fatalf("session size after second poll = %d, want 3", len(session))
	}
	// Keep-last: the amended 09:31 bar replaced the original.
	if session[1].High != 5303 || session[1].Volume != 15 {
		t.Errorf("amended bar not kept: %+v", session[1])
	}
	if got := f.Cursor("SPX"); got != "09:32:00" {
		t.Errorf("cursor after second poll = %q", got)
	}
}

func TestPollUsesStockEndpointForEquities(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stock/history/ohlc" {
			t.Errorf("unexpected path %s for stock symbol", r.URL.Path)
		}
		fmt.Fprint(w, `{"response": []}`)
	})

	f := newFeed(t, handler, []string{"QQQ"})
	f.Poll(context.Background())

	if got := f.Cursor("QQQ"); got != "09:30:00" {
		t.Errorf("empty poll moved cursor to %q", got)
	}
}

func TestPollSurvivesServerErrors(t *testing.T) {
	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 1 {
			http.Error(w, "terminal rebooting", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"response": [{"timestamp":"2026-08-24 09:30:00","open":19.5,"high":19.6,"low":19.4,"close":19.5,"volume":0}]}`)
	})

	f := newFeed(t, handler, []string{"VIX"})
	ctx := context.Background()

	f.Poll(ctx) // 502, logged and dropped
	if got := len(f.Snapshot("VIX")); got != 0 {
		t.Fatalf("session size after failed poll = %d", got)
	}

	f.Poll(ctx)
	if got := len(f.Snapshot("VIX")); got != 1 {
		t.Fatalf("session size after recovery = %d", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response": [{"timestamp":"2026-08-24 09:30:00","open":5300,"high":5301,"low":5299,"close":5300.5,"volume":10}]}`)
	})

	f := newFeed(t, handler, []string{"SPX"})
	f.Poll(context.Background())

	snap := f.Snapshot("SPX")
	snap[0].Close = -1

	if got := f.Snapshot("SPX")[0].Close; got != 5300.5 {
		t.Errorf("mutating a snapshot leaked into the session: close = %v", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response": []}`)
	})
	f := newFeed(t, handler, []string{"SPX"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
