// Package config defines the top-level configuration for digitbot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by DIGITBOT_* environment
// variables.
type Config struct {
	Deriv    DerivConfig    `toml:"deriv"`
	Scanner  ScannerConfig  `toml:"scanner"`
	Strategy StrategyConfig `toml:"strategy"`
	Trading  TradingConfig  `toml:"trading"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// DerivConfig holds broker API endpoint and credentials.
type DerivConfig struct {
	WsURL       string   `toml:"ws_url"`
	AppID       string   `toml:"app_id"`
	Token       string   `toml:"token"`
	Currency    string   `toml:"currency"`
	CallTimeout duration `toml:"call_timeout"`
}

// ScannerConfig holds market-intelligence scanner parameters.
type ScannerConfig struct {
	Symbols    []string `toml:"symbols"`
	WindowSize int      `toml:"window_size"`
	MinSamples int      `toml:"min_samples"`
}

// StrategyConfig selects and parameterizes the signal source.
type StrategyConfig struct {
	// Source is "adaptive" (pattern-derived signals) or "preset".
	Source string `toml:"source"`
	// Preset names the fixed strategy when source is "preset":
	// "even_odd", "over1_under8", "over2_under7", "differs", "super_differs".
	Preset string `toml:"preset"`
	// WindowSize is the pattern-engine window for the adaptive source.
	WindowSize int `toml:"window_size"`
	// TickDuration is the contract duration in ticks attached to signals.
	TickDuration int `toml:"tick_duration"`
}

// TradingConfig holds session risk limits and stake progression parameters.
type TradingConfig struct {
	Symbol       string  `toml:"symbol"`
	BaseStake    float64 `toml:"base_stake"`
	TargetProfit float64 `toml:"target_profit"`
	MaxLoss      float64 `toml:"max_loss"`
	Balance      float64 `toml:"balance"`

	Martingale bool    `toml:"martingale"`
	Multiplier float64 `toml:"multiplier"`
	// Policy selects the stake-escalation cap: "adaptive" caps at half the
	// current balance, "preset" at the absolute StakeCap below.
	Policy   string  `toml:"policy"`
	StakeCap float64 `toml:"stake_cap"`

	Interval           duration `toml:"interval"`
	Cooldown           duration `toml:"cooldown"`
	MaxTradesPerMinute int      `toml:"max_trades_per_minute"`
}

// PostgresConfig holds database connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for session
// archives.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "1m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultSymbols is the default set of synthetic indices scanned by the
// intelligence engine.
var DefaultSymbols = []string{"R_10", "R_25", "R_50", "R_75", "R_100"}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Deriv: DerivConfig{
			WsURL:       "wss://ws.derivws.com/websockets/v3",
			AppID:       "1089",
			Currency:    "USD",
			CallTimeout: duration{15 * time.Second},
		},
		Scanner: ScannerConfig{
			Symbols:    DefaultSymbols,
			WindowSize: 100,
			MinSamples: 20,
		},
		Strategy: StrategyConfig{
			Source:       "adaptive",
			Preset:       "even_odd",
			WindowSize:   100,
			TickDuration: 5,
		},
		Trading: TradingConfig{
			Symbol:             "R_100",
			BaseStake:          0.35,
			TargetProfit:       10.0,
			MaxLoss:            5.0,
			Balance:            100.0,
			Martingale:         false,
			Multiplier:         2.1,
			Policy:             "adaptive",
			StakeCap:           25.0,
			Interval:           duration{time.Second},
			Cooldown:           duration{5 * time.Second},
			MaxTradesPerMinute: 8,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "digitbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "digitbot-data",
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			Events: []string{"signal_confirmed", "trade_executed", "session_stopped", "error"},
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
	"scan":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validSources enumerates the accepted signal sources.
var validSources = map[string]bool{
	"adaptive": true,
	"preset":   true,
}

// validPresets enumerates the fixed strategy presets.
var validPresets = map[string]bool{
	"even_odd":      true,
	"over1_under8":  true,
	"over2_under7":  true,
	"differs":       true,
	"super_differs": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor, scan)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Deriv.WsURL == "" {
		errs = append(errs, "deriv: ws_url must not be empty")
	}
	if c.Deriv.AppID == "" {
		errs = append(errs, "deriv: app_id must not be empty")
	}
	if c.Mode == "trade" && c.Deriv.Token == "" {
		errs = append(errs, "deriv: token is required for trade mode")
	}
	if c.Deriv.CallTimeout.Duration < 10*time.Second || c.Deriv.CallTimeout.Duration > 30*time.Second {
		errs = append(errs, "deriv: call_timeout must be between 10s and 30s")
	}

	if len(c.Scanner.Symbols) == 0 {
		errs = append(errs, "scanner: symbols must not be empty")
	}
	if c.Scanner.WindowSize < c.Scanner.MinSamples {
		errs = append(errs, "scanner: window_size must be >= min_samples")
	}
	if c.Scanner.MinSamples < 1 {
		errs = append(errs, "scanner: min_samples must be >= 1")
	}

	if !validSources[c.Strategy.Source] {
		errs = append(errs, fmt.Sprintf("strategy: unknown source %q (valid: adaptive, preset)", c.Strategy.Source))
	}
	if c.Strategy.Source == "preset" && !validPresets[c.Strategy.Preset] {
		errs = append(errs, fmt.Sprintf("strategy: unknown preset %q", c.Strategy.Preset))
	}
	if c.Strategy.WindowSize < 10 {
		errs = append(errs, "strategy: window_size must be >= 10")
	}
	if c.Strategy.TickDuration < 1 {
		errs = append(errs, "strategy: tick_duration must be >= 1")
	}

	if c.Trading.Symbol == "" {
		errs = append(errs, "trading: symbol must not be empty")
	}
	if c.Trading.BaseStake <= 0 {
		errs = append(errs, "trading: base_stake must be > 0")
	}
	if c.Trading.TargetProfit <= 0 {
		errs = append(errs, "trading: target_profit must be > 0")
	}
	if c.Trading.MaxLoss <= 0 {
		errs = append(errs, "trading: max_loss must be > 0")
	}
	if c.Trading.Martingale && c.Trading.Multiplier <= 1 {
		errs = append(errs, "trading: multiplier must be > 1 when martingale is enabled")
	}
	if c.Trading.Policy != "adaptive" && c.Trading.Policy != "preset" {
		errs = append(errs, fmt.Sprintf("trading: unknown policy %q (valid: adaptive, preset)", c.Trading.Policy))
	}
	if c.Trading.Policy == "preset" && c.Trading.StakeCap <= 0 {
		errs = append(errs, "trading: stake_cap must be > 0 for preset policy")
	}
	if c.Trading.Interval.Duration <= 0 {
		errs = append(errs, "trading: interval must be > 0")
	}
	if c.Trading.MaxTradesPerMinute < 1 {
		errs = append(errs, "trading: max_trades_per_minute must be >= 1")
	}

	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if !c.Postgres.Enabled {
			errs = append(errs, "s3: session archiving requires postgres to be enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
