package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies DIGITBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known DIGITBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Deriv ──
	setStr(&cfg.Deriv.WsURL, "DIGITBOT_DERIV_WS_URL")
	setStr(&cfg.Deriv.AppID, "DIGITBOT_DERIV_APP_ID")
	setStr(&cfg.Deriv.Token, "DIGITBOT_DERIV_TOKEN")
	setStr(&cfg.Deriv.Currency, "DIGITBOT_DERIV_CURRENCY")
	setDuration(&cfg.Deriv.CallTimeout, "DIGITBOT_DERIV_CALL_TIMEOUT")

	// ── Scanner ──
	setStringSlice(&cfg.Scanner.Symbols, "DIGITBOT_SCANNER_SYMBOLS")
	setInt(&cfg.Scanner.WindowSize, "DIGITBOT_SCANNER_WINDOW_SIZE")
	setInt(&cfg.Scanner.MinSamples, "DIGITBOT_SCANNER_MIN_SAMPLES")

	// ── Strategy ──
	setStr(&cfg.Strategy.Source, "DIGITBOT_STRATEGY_SOURCE")
	setStr(&cfg.Strategy.Preset, "DIGITBOT_STRATEGY_PRESET")
	setInt(&cfg.Strategy.WindowSize, "DIGITBOT_STRATEGY_WINDOW_SIZE")
	setInt(&cfg.Strategy.TickDuration, "DIGITBOT_STRATEGY_TICK_DURATION")

	// ── Trading ──
	setStr(&cfg.Trading.Symbol, "DIGITBOT_TRADING_SYMBOL")
	setFloat64(&cfg.Trading.BaseStake, "DIGITBOT_TRADING_BASE_STAKE")
	setFloat64(&cfg.Trading.TargetProfit, "DIGITBOT_TRADING_TARGET_PROFIT")
	setFloat64(&cfg.Trading.MaxLoss, "DIGITBOT_TRADING_MAX_LOSS")
	setFloat64(&cfg.Trading.Balance, "DIGITBOT_TRADING_BALANCE")
	setBool(&cfg.Trading.Martingale, "DIGITBOT_TRADING_MARTINGALE")
	setFloat64(&cfg.Trading.Multiplier, "DIGITBOT_TRADING_MULTIPLIER")
	setStr(&cfg.Trading.Policy, "DIGITBOT_TRADING_POLICY")
	setFloat64(&cfg.Trading.StakeCap, "DIGITBOT_TRADING_STAKE_CAP")
	setDuration(&cfg.Trading.Interval, "DIGITBOT_TRADING_INTERVAL")
	setDuration(&cfg.Trading.Cooldown, "DIGITBOT_TRADING_COOLDOWN")
	setInt(&cfg.Trading.MaxTradesPerMinute, "DIGITBOT_TRADING_MAX_TRADES_PER_MINUTE")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "DIGITBOT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "DIGITBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "DIGITBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "DIGITBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "DIGITBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "DIGITBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "DIGITBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "DIGITBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "DIGITBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "DIGITBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "DIGITBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "DIGITBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "DIGITBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DIGITBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DIGITBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "DIGITBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "DIGITBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "DIGITBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "DIGITBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "DIGITBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "DIGITBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "DIGITBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "DIGITBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "DIGITBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "DIGITBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "DIGITBOT_S3_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "DIGITBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "DIGITBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "DIGITBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "DIGITBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "DIGITBOT_MODE")
	setStr(&cfg.LogLevel, "DIGITBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
