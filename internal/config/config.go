package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ZA27101977/stocktrader/internal/strategy"
	"github.com/ZA27101977/stocktrader/internal/timeframe"
)

// DefaultPath is used when CONFIG_PATH is unset.
const DefaultPath = "configs/config.yaml"

// Config holds all application configuration.
type Config struct {
	Upstream struct {
		Provider     string `yaml:"provider"` // alphavantage or yahoo
		BaseURL      string `yaml:"base_url"`
		APIKey       string `yaml:"api_key"`
		MaxAttempts  int    `yaml:"max_attempts"`
		BaseDelayRaw string `yaml:"base_delay"`

		BaseDelay time.Duration `yaml:"-"`
	} `yaml:"upstream"`
	Synthetic struct {
		SeedPrice float64 `yaml:"seed_price"`
		Length    int     `yaml:"length"`
	} `yaml:"synthetic"`
	Cache struct {
		TTLRaw string `yaml:"ttl"`

		TTL time.Duration `yaml:"-"`
	} `yaml:"cache"`
	Advisor struct {
		APIKey     string `yaml:"api_key"`
		BaseURL    string `yaml:"base_url"`
		Model      string `yaml:"model"`
		TimeoutRaw string `yaml:"timeout"`
		MaxRetries int    `yaml:"max_retries"`

		Timeout time.Duration `yaml:"-"`
	} `yaml:"advisor"`
	Strategy struct {
		MomentumReference string `yaml:"momentum_reference"` // close or average
	} `yaml:"strategy"`
	Watchlist struct {
		Backend    string `yaml:"backend"` // file, sqlite or memory
		File       string `yaml:"file"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"watchlist"`
	Schedule struct {
		RefreshCron      string `yaml:"refresh_cron"`
		ReportCron       string `yaml:"report_cron"`
		DefaultTimeframe string `yaml:"default_timeframe"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Proxy    string `yaml:"proxy"`
	LogLevel string `yaml:"log_level"`
}

// Path returns CONFIG_PATH or DefaultPath.
func Path() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads .env, then the YAML file, then applies environment overrides and defaults.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

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
	cfg.applyDefaults()
	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		env string
		dst *string
	}{
		{"ALPHAVANTAGE_API_KEY", &c.Upstream.APIKey},
		{"UPSTREAM_PROVIDER", &c.Upstream.Provider},
		{"UPSTREAM_BASE_URL", &c.Upstream.BaseURL},
		{"ADVISOR_API_KEY", &c.Advisor.APIKey},
		{"ADVISOR_BASE_URL", &c.Advisor.BaseURL},
		{"ADVISOR_MODEL", &c.Advisor.Model},
		{"TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken},
		{"TELEGRAM_CHAT_ID", &c.Telegram.ChatID},
		{"HTTPS_PROXY", &c.Proxy},
		{"WATCHLIST_BACKEND", &c.Watchlist.Backend},
		{"SQLITE_PATH", &c.Watchlist.SQLitePath},
		{"LOG_LEVEL", &c.LogLevel},
		{"CACHE_TTL", &c.Cache.TTLRaw},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.env)); v != "" {
			*o.dst = v
		}
	}
	if v := os.Getenv("SEED_PRICE"); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil {
			c.Synthetic.SeedPrice = p
		}
	}
}

func (c *Config) applyDefaults() {
	c.Upstream.Provider = strings.ToLower(strings.TrimSpace(c.Upstream.Provider))
	if c.Upstream.Provider == "" {
		c.Upstream.Provider = "alphavantage"
	}
	if c.Upstream.MaxAttempts == 0 {
		c.Upstream.MaxAttempts = 5
	}
	if strings.TrimSpace(c.Upstream.BaseDelayRaw) == "" {
		c.Upstream.BaseDelayRaw = "1s"
	}
	if c.Synthetic.SeedPrice == 0 {
		c.Synthetic.SeedPrice = 150
	}
	if c.Synthetic.Length == 0 {
		c.Synthetic.Length = 100
	}
	if strings.TrimSpace(c.Advisor.TimeoutRaw) == "" {
		c.Advisor.TimeoutRaw = "30s"
	}
	if c.Advisor.Model == "" {
		c.Advisor.Model = "gpt-4o-mini"
	}
	c.Watchlist.Backend = strings.ToLower(strings.TrimSpace(c.Watchlist.Backend))
	if c.Watchlist.Backend == "" {
		c.Watchlist.Backend = "file"
	}
	if c.Watchlist.File == "" {
		c.Watchlist.File = "data/watchlist.json"
	}
	if c.Watchlist.SQLitePath == "" {
		c.Watchlist.SQLitePath = "data/terminal.db"
	}
	if c.Schedule.RefreshCron == "" {
		c.Schedule.RefreshCron = "0 */15 * * * 1-5"
	}
	if c.Schedule.ReportCron == "" {
		c.Schedule.ReportCron = "0 30 16 * * 1-5"
	}
	if c.Schedule.DefaultTimeframe == "" {
		c.Schedule.DefaultTimeframe = string(timeframe.OneDay)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) parseDurations() error {
	delay, err := time.ParseDuration(c.Upstream.BaseDelayRaw)
	if err != nil {
		return fmt.Errorf("config: invalid upstream.base_delay %q: %w", c.Upstream.BaseDelayRaw, err)
	}
	c.Upstream.BaseDelay = delay

	if raw := strings.TrimSpace(c.Cache.TTLRaw); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("config: invalid cache.ttl %q: %w", raw, err)
		}
		c.Cache.TTL = ttl
	}

	timeout, err := time.ParseDuration(c.Advisor.TimeoutRaw)
	if err != nil {
		return fmt.Errorf("config: invalid advisor.timeout %q: %w", c.Advisor.TimeoutRaw, err)
	}
	c.Advisor.Timeout = timeout
	return nil
}

// TelegramEnabled reports whether both bot token and chat id are set.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	switch c.Upstream.Provider {
	case "alphavantage", "yahoo":
	default:
		return fmt.Errorf("upstream.provider must be alphavantage or yahoo, got %q", c.Upstream.Provider)
	}
	if c.Upstream.MaxAttempts < 1 {
		return fmt.Errorf("upstream.max_attempts must be at least 1")
	}
	if c.Upstream.BaseDelay < 0 {
		return fmt.Errorf("upstream.base_delay must not be negative")
	}
	if c.Synthetic.SeedPrice <= 0 {
		return fmt.Errorf("synthetic.seed_price must be positive")
	}
	if c.Synthetic.Length < 2 {
		return fmt.Errorf("synthetic.length must be at least 2")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	if _, err := strategy.ParseReference(c.Strategy.MomentumReference); err != nil {
		return fmt.Errorf("strategy.momentum_reference: %w", err)
	}
	switch c.Watchlist.Backend {
	case "file", "sqlite", "memory":
	default:
		return fmt.Errorf("watchlist.backend must be file, sqlite or memory, got %q", c.Watchlist.Backend)
	}
	if _, err := timeframe.Parse(c.Schedule.DefaultTimeframe); err != nil {
		return fmt.Errorf("schedule.default_timeframe: %w", err)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}
