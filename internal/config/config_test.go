package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZA27101977/stocktrader/internal/timeframe"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "alphavantage", cfg.Upstream.Provider)
	assert.Equal(t, 5, cfg.Upstream.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Upstream.BaseDelay)
	assert.Equal(t, 150.0, cfg.Synthetic.SeedPrice)
	assert.Equal(t, 100, cfg.Synthetic.Length)
	assert.Zero(t, cfg.Cache.TTL)
	assert.Equal(t, "file", cfg.Watchlist.Backend)
	assert.Equal(t, "1D", cfg.Schedule.DefaultTimeframe)
	assert.False(t, cfg.TelegramEnabled())
}

func TestLoad_YAMLAndEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, `
upstream:
  provider: Yahoo
  max_attempts: 3
  base_delay: 250ms
cache:
  ttl: 10m
watchlist:
  backend: sqlite
schedule:
  default_timeframe: 1w
telegram:
  bot_token: file-token
  chat_id: "100"
log_level: debug
`)
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("ALPHAVANTAGE_API_KEY", "AVKEY")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("SEED_PRICE", "42.5")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "yahoo", cfg.Upstream.Provider)
	assert.Equal(t, 3, cfg.Upstream.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Upstream.BaseDelay)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "sqlite", cfg.Watchlist.Backend)
	assert.Equal(t, "/tmp/x.db", cfg.Watchlist.SQLitePath)
	assert.Equal(t, "env-token", cfg.Telegram.BotToken)
	assert.Equal(t, "AVKEY", cfg.Upstream.APIKey)
	assert.Equal(t, 42.5, cfg.Synthetic.SeedPrice)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.TelegramEnabled())
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ADVISOR_API_KEY=from-dotenv\n"), 0o644))
	t.Setenv("ADVISOR_API_KEY", "")
	os.Unsetenv("ADVISOR_API_KEY")

	cfg, err := Load(filepath.Join(dir, "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Advisor.APIKey)
}

func TestLoad_Errors(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load(writeConfig(t, "upstream: [unclosed"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "cache:\n  ttl: soon\n"))
	assert.ErrorContains(t, err, "cache.ttl")
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	base := func() *Config {
		cfg, err := Load("missing.yaml")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Upstream.Provider = "bloomberg"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Watchlist.Backend = "redis"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Schedule.DefaultTimeframe = "5Y"
	assert.True(t, errors.Is(cfg.Validate(), timeframe.ErrUnknownTimeframe))

	cfg = base()
	cfg.Telegram.BotToken = "only-token"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Synthetic.Length = 1
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Strategy.MomentumReference = "median"
	assert.Error(t, cfg.Validate())
	cfg.Strategy.MomentumReference = "average"
	assert.NoError(t, cfg.Validate())
}
