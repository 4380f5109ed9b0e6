package config

import (
	"os"
	"testing"
	"time"
)

// writeTempConfig creates a minimal configuration file required for LoadConfig
// and returns its path.
func writeTempConfig(t *testing.T) string {
	t.Helper()
	content := `thetaflow:
  name: "TestApp"
  version: "1.0"
terminal:
  base_url: "http://127.0.0.1:25503"
bulk:
  symbols: ["SPX"]
  start_date: "2024-06-03"
  end_date: "2024-06-07"
  max_workers: 2
writer:
  option_root: "./data_options"
  underlying_root: "./data_underlying"
storage:
  s3:
    enabled: false
`
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	return f.Name()
}

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t)
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Thetaflow.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.Thetaflow.Name)
	}
	if cfg.Bulk.MaxWorkers != 2 {
		t.Errorf("unexpected max workers: %d", cfg.Bulk.MaxWorkers)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeTempConfig(t)
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Terminal.Retry.MaxAttempts != 3 {
		t.Errorf("unexpected retry attempts: %d", cfg.Terminal.Retry.MaxAttempts)
	}
	if cfg.Terminal.Retry.BaseDelay != 2*time.Second || cfg.Terminal.Retry.MaxDelay != 6*time.Second {
		t.Errorf("unexpected retry delays: %v/%v", cfg.Terminal.Retry.BaseDelay, cfg.Terminal.Retry.MaxDelay)
	}
	if cfg.Realtime.MarketOpen != "09:30:00" {
		t.Errorf("unexpected market open: %s", cfg.Realtime.MarketOpen)
	}
	if cfg.Writer.Compression != "snappy" {
		t.Errorf("unexpected compression: %s", cfg.Writer.Compression)
	}
}

func TestLoadConfigRejectsBadDates(t *testing.T) {
	content := `thetaflow:
  name: "TestApp"
  version: "1.0"
bulk:
  symbols: ["SPX"]
  start_date: "06/03/2024"
  end_date: "2024-06-07"
writer:
  option_root: "./a"
  underlying_root: "./b"
`
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	f.Close()
	defer os.Remove(f.Name())

	if _, err := LoadConfig(f.Name()); err == nil {
		t.Fatal("expected validation error for bad start_date")
	}
}

func TestAppEnvironmentNormalizesAliases(t *testing.T) {
	cases := map[string]string{
		"":     EnvironmentDevelopment,
		"prod": EnvironmentProduction,
		"stag": EnvironmentStaging,
		"PROD": EnvironmentProduction,
	}
	for value, want := range cases {
		t.Setenv("APP_ENV", value)
		if got := AppEnvironment(); got != want {
			t.Errorf("AppEnvironment with APP_ENV=%q = %q, want %q", value, got, want)
		}
	}
}

func TestIsProductionLike(t *testing.T) {
	if IsProductionLike(EnvironmentDevelopment) {
		t.Error("development should not be production-like")
	}
	if !IsProductionLike(EnvironmentProduction) || !IsProductionLike(EnvironmentStaging) {
		t.Error("production and staging should be production-like")
	}
}

func TestIsValidS3Bucket(t *testing.T) {
	cases := []struct {
		name  string
		valid bool
	}{
		{"valid-bucket", true},
		{"Invalid", false},
		{"ab", false},
		{"my..bucket", false},
	}
	for _, c := range cases {
		if got := isValidS3Bucket(c.name); got != c.valid {
			t.Errorf("isValidS3Bucket(%q) = %v, want %v", c.name, got, c.valid)
		}
	}
}
