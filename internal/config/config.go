package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	DataSource struct {
		Provider      string        `yaml:"provider" default:"yahoo" validate:"oneof=yahoo rest csv store mock"`
		BaseURL       string        `yaml:"base_url"`
		APIKey        string        `yaml:"api_key"`
		CSVPath       string        `yaml:"csv_path" validate:"required_if=Provider csv"`
		LookbackYears int           `yaml:"lookback_years" default:"5" validate:"gte=1,lte=50"`
		Unadjusted    bool          `yaml:"unadjusted"`
		Timeout       time.Duration `yaml:"timeout" default:"30s"`
	} `yaml:"data_source"`

	Proxy string `yaml:"proxy"`

	Assets     []string `yaml:"assets" default:"[\"AAPL\",\"TSLA\",\"MSFT\",\"GOOG\",\"RELIANCE.NS\",\"TCS.NS\",\"GOLDBEES.NS\",\"NIPPGOLD.NS\",\"GLD\",\"TM\"]" validate:"min=1,dive,required"`
	Indicators []string `yaml:"indicators" default:"[\"SMA_20\",\"SMA_50\",\"EMA_12\",\"RSI_14\",\"MACD\",\"BB_20\",\"ATR_14\"]" validate:"dive,required"`

	Model struct {
		Variant       string   `yaml:"variant" default:"linear" validate:"oneof=linear arima random_forest gradient_boosting mlp"`
		Lags          int      `yaml:"lags" default:"5" validate:"gte=1,lte=60"`
		Features      []string `yaml:"features" default:"[\"SMA_20\",\"RSI_14\",\"MACD_HIST\"]"`
		TrainFraction float64  `yaml:"train_fraction" default:"0.8" validate:"gt=0,lt=1"`
		Ridge         float64  `yaml:"ridge" default:"0.001" validate:"gte=0"`
		ARIMA         struct {
			P int `yaml:"p" default:"5" validate:"gte=1"`
		} `yaml:"arima"`
		Forest struct {
			Trees           int     `yaml:"trees" default:"100" validate:"gte=1"`
			MaxDepth        int     `yaml:"max_depth" default:"8" validate:"gte=1"`
			MinLeaf         int     `yaml:"min_leaf" default:"5" validate:"gte=1"`
			FeatureFraction float64 `yaml:"feature_fraction" default:"0.5" validate:"gt=0,lte=1"`
			Seed            int64   `yaml:"seed" default:"42"`
		} `yaml:"random_forest"`
		Boosting struct {
			Rounds       int     `yaml:"rounds" default:"200" validate:"gte=1"`
			LearningRate float64 `yaml:"learning_rate" default:"0.1" validate:"gt=0,lte=1"`
			MaxDepth     int     `yaml:"max_depth" default:"3" validate:"gte=1"`
			MinLeaf      int     `yaml:"min_leaf" default:"5" validate:"gte=1"`
			Patience     int     `yaml:"patience" default:"10" validate:"gte=1"`
		} `yaml:"gradient_boosting"`
		MLP struct {
			Hidden       int     `yaml:"hidden" default:"16" validate:"gte=1"`
			LearningRate float64 `yaml:"learning_rate" default:"0.01" validate:"gt=0"`
			MaxEpochs    int     `yaml:"max_epochs" default:"1000" validate:"gte=1"`
			Tolerance    float64 `yaml:"tolerance" default:"0.001" validate:"gt=0"`
			Patience     int     `yaml:"patience" default:"20" validate:"gte=1"`
			Seed         int64   `yaml:"seed" default:"42"`
		} `yaml:"mlp"`
	} `yaml:"model"`

	Forecast struct {
		Days       int     `yaml:"days" default:"30" validate:"gte=7,lte=90"`
		Confidence float64 `yaml:"confidence" default:"0.95" validate:"gt=0,lt=1"`
	} `yaml:"forecast"`

	Dashboard struct {
		Host            string        `yaml:"host" default:"127.0.0.1" validate:"required"`
		Port            int           `yaml:"port" default:"8050" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"120s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"dashboard"`

	Cache struct {
		Backend string        `yaml:"backend" default:"memory" validate:"oneof=memory redis none"`
		TTL     time.Duration `yaml:"ttl" default:"15m"`
		Redis   struct {
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Database struct {
		Driver      string `yaml:"driver" default:"sqlite" validate:"oneof=sqlite postgres none"`
		SQLitePath  string `yaml:"sqlite_path" default:"data/stockcast.db"`
		PostgresDSN string `yaml:"postgres_dsn" validate:"required_if=Driver postgres"`
	} `yaml:"database"`

	Schedule struct {
		Enabled     bool   `yaml:"enabled"`
		RefreshCron string `yaml:"refresh_cron" default:"0 0 22 * * 1-5"`
	} `yaml:"schedule"`

	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id" validate:"required_with=BotToken"`
	} `yaml:"telegram"`

	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`

	OutputDir string `yaml:"output_dir" default:"output"`
}

var validate = validator.New()

// Load reads config from a YAML file, then applies environment variable overrides and defaults.
// A missing file is not an error: everything falls back to defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("DATA_BASE_URL"); v != "" {
		c.DataSource.BaseURL = v
	}
	if v := os.Getenv("DATA_API_KEY"); v != "" {
		c.DataSource.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Database.Driver = "postgres"
		c.Database.PostgresDSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Backend = "redis"
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("DASHBOARD_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Dashboard.Port = port
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("CRON_REFRESH"); v != "" {
		c.Schedule.Enabled = true
		c.Schedule.RefreshCron = v
	}
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// TelegramEnabled reports whether a bot token is configured.
func (c *Config) TelegramEnabled() bool { return c.Telegram.BotToken != "" }

// Addr is the dashboard listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Dashboard.Host, c.Dashboard.Port)
}

// DefaultRange returns the [from, to] window covering the configured lookback ending at now.
func (c *Config) DefaultRange(now time.Time) (time.Time, time.Time) {
	return now.AddDate(-c.DataSource.LookbackYears, 0, 0), now
}
