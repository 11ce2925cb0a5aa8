// Package config defines the top-level configuration for the marketfeed
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by MARKETFEED_* environment
// variables.
type Config struct {
	Exchanges []string        `toml:"exchanges"`
	Symbols   []string        `toml:"symbols"`
	Collector CollectorConfig `toml:"collector"`
	Cache     CacheConfig     `toml:"cache"`
	Redis     RedisConfig     `toml:"redis"`
	Server    ServerConfig    `toml:"server"`
	LogLevel  string          `toml:"log_level"`
}

// CollectorConfig holds polling intervals and per-request limits.
type CollectorConfig struct {
	// PriceInterval is the delay between price collection cycles.
	PriceInterval duration `toml:"price_interval"`
	// MarketDataInterval is the delay between detailed market-data cycles.
	MarketDataInterval duration `toml:"market_data_interval"`
	// RequestTimeout bounds every individual exchange request.
	RequestTimeout duration `toml:"request_timeout"`
	// OrderBookDepth is how many levels per side the market-data cycle pulls.
	OrderBookDepth int `toml:"order_book_depth"`
}

// CacheConfig holds the TTLs applied by the quote store.
type CacheConfig struct {
	QuoteTTL        duration `toml:"quote_ttl"`
	ConsolidatedTTL duration `toml:"consolidated_ttl"`
	SnapshotTTL     duration `toml:"snapshot_ttl"`
	DefaultTTL      duration `toml:"default_ttl"`
}

// RedisConfig holds Redis connection parameters. When Addr is empty the
// service falls back to the in-process quote store and signal bus.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ServerConfig holds HTTP and WebSocket server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "1m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5s" or "1m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the reference default values.
func Defaults() Config {
	return Config{
		Exchanges: []string{"binance", "coinbase", "kraken"},
		Symbols: []string{
			"BTC/USDT", "ETH/USDT", "ADA/USDT", "DOT/USDT",
			"LINK/USDT", "SOL/USDT", "AVAX/USDT", "MATIC/USDT",
		},
		Collector: CollectorConfig{
			PriceInterval:      duration{5 * time.Second},
			MarketDataInterval: duration{30 * time.Second},
			RequestTimeout:     duration{10 * time.Second},
			OrderBookDepth:     5,
		},
		Cache: CacheConfig{
			QuoteTTL:        duration{10 * time.Second},
			ConsolidatedTTL: duration{10 * time.Second},
			SnapshotTTL:     duration{60 * time.Second},
			DefaultTTL:      duration{time.Hour},
		},
		Redis: RedisConfig{
			Addr:       "",
			DB:         0,
			PoolSize:   10,
			MaxRetries: 3,
		},
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"*"},
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration for values the service cannot start
// with. It returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Exchanges) == 0 {
		return fmt.Errorf("config: at least one exchange is required")
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("config: at least one symbol is required")
	}
	for _, s := range c.Symbols {
		if !strings.Contains(s, "/") {
			return fmt.Errorf("config: symbol %q is not in BASE/QUOTE form", s)
		}
	}
	if c.Collector.PriceInterval.Duration <= 0 {
		return fmt.Errorf("config: collector.price_interval must be positive")
	}
	if c.Collector.MarketDataInterval.Duration <= 0 {
		return fmt.Errorf("config: collector.market_data_interval must be positive")
	}
	if c.Collector.RequestTimeout.Duration <= 0 {
		return fmt.Errorf("config: collector.request_timeout must be positive")
	}
	if c.Collector.OrderBookDepth <= 0 {
		return fmt.Errorf("config: collector.order_book_depth must be positive")
	}
	if c.Cache.QuoteTTL.Duration <= 0 || c.Cache.ConsolidatedTTL.Duration <= 0 ||
		c.Cache.SnapshotTTL.Duration <= 0 || c.Cache.DefaultTTL.Duration <= 0 {
		return fmt.Errorf("config: cache TTLs must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}
