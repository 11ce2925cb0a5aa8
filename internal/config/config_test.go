package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, []string{"binance", "coinbase", "kraken"}, cfg.Exchanges)
	assert.Len(t, cfg.Symbols, 8)
	assert.Contains(t, cfg.Symbols, "BTC/USDT")

	assert.Equal(t, 5*time.Second, cfg.Collector.PriceInterval.Duration)
	assert.Equal(t, 30*time.Second, cfg.Collector.MarketDataInterval.Duration)
	assert.Equal(t, 10*time.Second, cfg.Collector.RequestTimeout.Duration)

	assert.Equal(t, 10*time.Second, cfg.Cache.QuoteTTL.Duration)
	assert.Equal(t, 10*time.Second, cfg.Cache.ConsolidatedTTL.Duration)
	assert.Equal(t, 60*time.Second, cfg.Cache.SnapshotTTL.Duration)
	assert.Equal(t, time.Hour, cfg.Cache.DefaultTTL.Duration)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Empty(t, cfg.Redis.Addr, "Redis is opt-in")

	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults().Symbols, cfg.Symbols)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
exchanges = ["binance"]
symbols = ["BTC/USDT"]
log_level = "debug"

[collector]
price_interval = "2s"
order_book_depth = 20

[redis]
addr = "localhost:6379"

[server]
port = 9090
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"binance"}, cfg.Exchanges)
	assert.Equal(t, []string{"BTC/USDT"}, cfg.Symbols)
	assert.Equal(t, 2*time.Second, cfg.Collector.PriceInterval.Duration)
	assert.Equal(t, 20, cfg.Collector.OrderBookDepth)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.LogLevel)

	// Unset sections keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Collector.MarketDataInterval.Duration)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MARKETFEED_SYMBOLS", "BTC/USDT, ETH/USDT")
	t.Setenv("MARKETFEED_PRICE_INTERVAL", "1s")
	t.Setenv("MARKETFEED_REDIS_ADDR", "redis:6379")
	t.Setenv("MARKETFEED_SERVER_PORT", "7070")
	t.Setenv("MARKETFEED_LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, cfg.Symbols)
	assert.Equal(t, time.Second, cfg.Collector.PriceInterval.Duration)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no exchanges", func(c *Config) { c.Exchanges = nil }},
		{"no symbols", func(c *Config) { c.Symbols = nil }},
		{"bad symbol form", func(c *Config) { c.Symbols = []string{"BTCUSDT"} }},
		{"zero price interval", func(c *Config) { c.Collector.PriceInterval.Duration = 0 }},
		{"zero request timeout", func(c *Config) { c.Collector.RequestTimeout.Duration = 0 }},
		{"zero depth", func(c *Config) { c.Collector.OrderBookDepth = 0 }},
		{"zero quote ttl", func(c *Config) { c.Cache.QuoteTTL.Duration = 0 }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDurationRoundTrip(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("not-a-duration")))
}
