package writer

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	appconfig "thetaflow/config"
	"thetaflow/models"
)

func testConfig(t *testing.T) *appconfig.Config {
	t.Helper()
	root := t.TempDir()

	cfg := &appconfig.Config{}
	cfg.Writer.OptionRoot = filepath.Join(root, "options")
	cfg.Writer.UnderlyingRoot = filepath.Join(root, "underlying")
	cfg.Writer.RealtimeRoot = filepath.Join(root, "realtime")
	cfg.Writer.Compression = "snappy"
	return cfg
}

func day(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("parse day %q: %v", value, err)
	}
	return d
}

func TestOptionPathLayout(t *testing.T) {
	cfg := testConfig(t)
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got := w.OptionPath("SPXW", "ohlc", day(t, "2024-06-07"), day(t, "2024-06-05"))
	want := filepath.Join(cfg.Writer.OptionRoot, "SPXW", "ohlc", "2024", "06", "SPXW_20240607_20240605_ohlc.parquet")
	if got != want {
		t.Errorf("OptionPath = %q, want %q", got, want)
	}
}

func TestUnderlyingPathLayout(t *testing.T) {
	cfg := testConfig(t)
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got := w.UnderlyingPath("VIX", day(t, "2024-12-03"))
	want := filepath.Join(cfg.Writer.UnderlyingRoot, "VIX", "2024", "12", "VIX_20241203.parquet")
	if got != want {
		t.Errorf("UnderlyingPath = %q, want %q", got, want)
	}
}

func TestWriteOptionOHLCRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	exp := day(t, "2024-06-07")
	d := day(t, "2024-06-05")
	rows := []models.OptionOHLCRow{
		{Root: "SPXW", Expiration: "20240607", Strike: 5300, Right: "C", Timestamp: 1717594200000, Open: 12.5, High: 13.0, Low: 12.1, Close: 12.8, Volume: 42, Count: 7},
		{Root: "SPXW", Expiration: "20240607", Strike: 5300, Right: "P", Timestamp: 1717594200000, Open: 11.0, High: 11.2, Low: 10.9, Close: 11.1, Volume: 17, Count: 3},
	}

	if err := w.WriteOptionOHLC("SPXW", exp, d, rows); err != nil {
		t.Fatalf("WriteOptionOHLC: %v", err)
	}

	path := w.OptionPath("SPXW", "ohlc", exp, d)
	var back []OptionOHLCRecord
	if err := readParquet(path, new(OptionOHLCRecord), &back); err != nil {
		t.Fatalf("readParquet: %v", err)
	}
	if len(back) != 2 {
		t.Fatalf("read %d records, want 2", len(back))
	}
	if back[0].Strike != 5300 || back[0].Right != "C" || back[0].Close != 12.8 {
		t.Errorf("first record = %+v", back[0])
	}
	if back[1].Right != "P" || back[1].Volume != 17 {
		t.Errorf("second record = %+v", back[1])
	}
}

func TestWriteUnderlyingRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	data := &models.UnderlyingData{
		Symbol:   "SPX",
		Date:     "2024-06-05",
		Interval: "1m",
		Candles: []models.Candle{
			{Timestamp: time.Date(2024, 6, 5, 13, 30, 0, 0, time.UTC), Open: 5300, High: 5301, Low: 5299, Close: 5300.5, Volume: 12},
		},
		FetchedAt: time.Now().UTC(),
	}

	if err := w.WriteUnderlying(data); err != nil {
		t.Fatalf("WriteUnderlying: %v", err)
	}

	var back []UnderlyingRecord
	if err := readParquet(w.UnderlyingPath("SPX", day(t, "2024-06-05")), new(UnderlyingRecord), &back); err != nil {
		t.Fatalf("readParquet: %v", err)
	}
	if len(back) != 1 {
		t.Fatalf("read %d records, want 1", len(back))
	}
	if back[0].Open != 5300 || back[0].Close != 5300.5 || back[0].Volume != 12 {
		t.Errorf("record = %+v", back[0])
	}
	if got := time.UnixMilli(back[0].Timestamp).UTC(); !got.Equal(data.Candles[0].Timestamp) {
		t.Errorf("timestamp = %v, want %v", got, data.Candles[0].Timestamp)
	}
}

func TestWriteEmptyBatchSkipsFile(t *testing.T) {
	cfg := testConfig(t)
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	exp := day(t, "2024-06-07")
	d := day(t, "2024-06-05")
	if err := w.WriteOptionOHLC("SPXW", exp, d, nil); err != nil {
		t.Fatalf("WriteOptionOHLC: %v", err)
	}
	if _, err := os.Stat(w.OptionPath("SPXW", "ohlc", exp, d)); !os.IsNotExist(err) {
		t.Errorf("expected no file for empty batch, stat err = %v", err)
	}
}

func TestRepairTreeFixesZeroPrices(t *testing.T) {
	cfg := testConfig(t)
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	data := &models.UnderlyingData{
		Symbol: "SPX",
		Date:   "2024-06-05",
		Candles: []models.Candle{
			{Timestamp: time.Date(2024, 6, 5, 13, 30, 0, 0, time.UTC), Open: 5300, High: 5301, Low: 5299, Close: 0, Volume: 3},
			{Timestamp: time.Date(2024, 6, 5, 13, 31, 0, 0, time.UTC), Open: 5302, High: 5303, Low: 5301, Close: 5302.5, Volume: 4},
		},
	}
	if err := w.WriteUnderlying(data); err != nil {
		t.Fatalf("WriteUnderlying: %v", err)
	}

	repaired, err := w.RepairTree(cfg.Writer.UnderlyingRoot)
	if err != nil {
		t.Fatalf("RepairTree: %v", err)
	}
	if repaired != 1 {
		t.Fatalf("repaired %d files, want 1", repaired)
	}

	var back []UnderlyingRecord
	if err := readParquet(w.UnderlyingPath("SPX", day(t, "2024-06-05")), new(UnderlyingRecord), &back); err != nil {
		t.Fatalf("readParquet: %v", err)
	}
	if back[0].Close == 0 || math.IsNaN(back[0].Close) {
		t.Errorf("close not repaired: %v", back[0].Close)
	}

	// Second pass must find nothing left to fix.
	repaired, err = w.RepairTree(cfg.Writer.UnderlyingRoot)
	if err != nil {
		t.Fatalf("RepairTree second pass: %v", err)
	}
	if repaired != 0 {
		t.Errorf("second pass repaired %d files, want 0", repaired)
	}
}
