package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Addr() != "127.0.0.1:8050" {
		t.Errorf("Addr = %q, want 127.0.0.1:8050", cfg.Addr())
	}
	if cfg.DataSource.Provider != "yahoo" {
		t.Errorf("Provider = %q, want yahoo", cfg.DataSource.Provider)
	}
	if len(cfg.Assets) != 10 || cfg.Assets[0] != "AAPL" {
		t.Errorf("Assets = %v, want 10 entries starting with AAPL", cfg.Assets)
	}
	if cfg.Model.TrainFraction != 0.8 {
		t.Errorf("TrainFraction = %v, want 0.8", cfg.Model.TrainFraction)
	}
	if cfg.Forecast.Days != 30 {
		t.Errorf("Forecast.Days = %d, want 30", cfg.Forecast.Days)
	}
	if cfg.Cache.TTL != 15*time.Minute {
		t.Errorf("Cache.TTL = %v, want 15m", cfg.Cache.TTL)
	}
	if cfg.Schedule.RefreshCron != "0 0 22 * * 1-5" {
		t.Errorf("RefreshCron = %q", cfg.Schedule.RefreshCron)
	}
	if cfg.TelegramEnabled() {
		t.Error("telegram should be disabled without a token")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
assets: [MSFT]
model:
  variant: random_forest
  random_forest:
    trees: 7
forecast:
  days: 14
dashboard:
  port: 9000
`)
	t.Setenv("DASHBOARD_PORT", "9100")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if len(cfg.Assets) != 1 || cfg.Assets[0] != "MSFT" {
		t.Errorf("Assets = %v", cfg.Assets)
	}
	if cfg.Model.Variant != "random_forest" || cfg.Model.Forest.Trees != 7 {
		t.Errorf("model = %s/%d", cfg.Model.Variant, cfg.Model.Forest.Trees)
	}
	if cfg.Model.Forest.MaxDepth != 8 {
		t.Errorf("unset nested field should default: MaxDepth = %d", cfg.Model.Forest.MaxDepth)
	}
	if cfg.Forecast.Days != 14 {
		t.Errorf("Days = %d, want 14", cfg.Forecast.Days)
	}
	if cfg.Dashboard.Port != 9100 {
		t.Errorf("Port = %d, want env override 9100", cfg.Dashboard.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.Redis.Addr != "redis:6379" {
		t.Errorf("cache = %s %s", cfg.Cache.Backend, cfg.Cache.Redis.Addr)
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := writeConfig(t, "model: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown variant", func(c *Config) { c.Model.Variant = "lstm" }, "Variant"},
		{"train fraction one", func(c *Config) { c.Model.TrainFraction = 1 }, "TrainFraction"},
		{"days too long", func(c *Config) { c.Forecast.Days = 365 }, "Days"},
		{"csv without path", func(c *Config) { c.DataSource.Provider = "csv" }, "CSVPath"},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }, "PostgresDSN"},
		{"token without chat", func(c *Config) { c.Telegram.BotToken = "x" }, "ChatID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not name %s", err, tt.field)
			}
		})
	}
}
