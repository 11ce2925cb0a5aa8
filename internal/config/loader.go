package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MARKETFEED_* environment variable overrides,
// and returns the final Config. A missing file is not an error; the defaults
// plus environment overrides are used instead. The returned Config has NOT
// been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MARKETFEED_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators adjust a deployment without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setList(&cfg.Exchanges, "MARKETFEED_EXCHANGES")
	setList(&cfg.Symbols, "MARKETFEED_SYMBOLS")

	setDur(&cfg.Collector.PriceInterval, "MARKETFEED_PRICE_INTERVAL")
	setDur(&cfg.Collector.MarketDataInterval, "MARKETFEED_MARKET_DATA_INTERVAL")
	setDur(&cfg.Collector.RequestTimeout, "MARKETFEED_REQUEST_TIMEOUT")
	setInt(&cfg.Collector.OrderBookDepth, "MARKETFEED_ORDER_BOOK_DEPTH")

	setDur(&cfg.Cache.QuoteTTL, "MARKETFEED_QUOTE_TTL")
	setDur(&cfg.Cache.ConsolidatedTTL, "MARKETFEED_CONSOLIDATED_TTL")
	setDur(&cfg.Cache.SnapshotTTL, "MARKETFEED_SNAPSHOT_TTL")
	setDur(&cfg.Cache.DefaultTTL, "MARKETFEED_DEFAULT_TTL")

	setStr(&cfg.Redis.Addr, "MARKETFEED_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MARKETFEED_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MARKETFEED_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MARKETFEED_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MARKETFEED_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MARKETFEED_REDIS_TLS_ENABLED")

	setInt(&cfg.Server.Port, "MARKETFEED_SERVER_PORT")
	setList(&cfg.Server.CORSOrigins, "MARKETFEED_CORS_ORIGINS")

	setStr(&cfg.LogLevel, "MARKETFEED_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDur(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}
