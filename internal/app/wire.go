package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/digitbot/internal/analysis/intelligence"
	s3blob "github.com/alanyoungcy/digitbot/internal/blob/s3"
	"github.com/alanyoungcy/digitbot/internal/cache/redis"
	"github.com/alanyoungcy/digitbot/internal/config"
	"github.com/alanyoungcy/digitbot/internal/domain"
	"github.com/alanyoungcy/digitbot/internal/executor"
	"github.com/alanyoungcy/digitbot/internal/feed"
	"github.com/alanyoungcy/digitbot/internal/notify"
	"github.com/alanyoungcy/digitbot/internal/platform/deriv"
	"github.com/alanyoungcy/digitbot/internal/store/postgres"
	"github.com/alanyoungcy/digitbot/internal/strategy"
	"github.com/alanyoungcy/digitbot/internal/trading"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Deriv    *deriv.Client
	Feed     *feed.TickFeed
	Scanner  *intelligence.Scanner
	Sources  *strategy.Registry
	Source   domain.SignalSource
	Executor *executor.Executor
	Manager  *trading.Manager

	// Optional persistence and messaging; nil when disabled in config.
	TradeStore   domain.TradeStore
	SessionStore domain.SessionStore
	ScoreCache   domain.ScoreCache
	SignalBus    domain.SignalBus
	Archiver     domain.Archiver

	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// releases resources in reverse construction order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Broker client and tick feed ---
	deps.Deriv = deriv.New(deriv.Config{
		WsURL:       cfg.Deriv.WsURL,
		AppID:       cfg.Deriv.AppID,
		Token:       cfg.Deriv.Token,
		CallTimeout: cfg.Deriv.CallTimeout.Duration,
	}, logger)
	closers = append(closers, func() { _ = deps.Deriv.Close() })

	deps.Feed = feed.New(deps.Deriv, logger)

	// --- Analysis ---
	deps.Scanner = intelligence.NewScanner(deps.Feed, intelligence.Config{
		WindowSize: cfg.Scanner.WindowSize,
		MinSamples: cfg.Scanner.MinSamples,
	}, logger)

	// --- Signal sources ---
	deps.Sources = strategy.NewRegistry()
	deps.Sources.Register(strategy.NewAdaptiveSource(
		deps.Feed, cfg.Strategy.WindowSize, cfg.Strategy.TickDuration, logger,
	))
	for _, preset := range strategy.Presets() {
		src, err := strategy.NewPresetSource(preset, deps.Feed, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: preset %s: %w", preset, err)
		}
		deps.Sources.Register(src)
	}

	active := "adaptive"
	if cfg.Strategy.Source == "preset" {
		active = cfg.Strategy.Preset
	}
	src, err := deps.Sources.Get(active)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: signal source: %w", err)
	}
	deps.Source = src

	// --- Execution and session management ---
	deps.Executor = executor.New(deps.Deriv, cfg.Deriv.Currency, cfg.Strategy.TickDuration, logger)
	deps.Manager = trading.NewManager(trading.Config{
		Symbol:             cfg.Trading.Symbol,
		BaseStake:          cfg.Trading.BaseStake,
		TargetProfit:       cfg.Trading.TargetProfit,
		MaxLoss:            cfg.Trading.MaxLoss,
		Balance:            cfg.Trading.Balance,
		Martingale:         cfg.Trading.Martingale,
		Multiplier:         cfg.Trading.Multiplier,
		Policy:             cfg.Trading.Policy,
		StakeCap:           cfg.Trading.StakeCap,
		Interval:           cfg.Trading.Interval.Duration,
		Cooldown:           cfg.Trading.Cooldown.Duration,
		MaxTradesPerMinute: cfg.Trading.MaxTradesPerMinute,
	}, deps.Executor, logger)

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.TradeStore = postgres.NewTradeStore(pool)
		deps.SessionStore = postgres.NewSessionStore(pool)
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.ScoreCache = redis.NewScoreCache(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	}

	// --- S3 session archiving (requires the postgres stores) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		if deps.SessionStore != nil && deps.TradeStore != nil {
			deps.Archiver = s3blob.NewSessionArchiver(
				s3blob.NewWriter(s3Client),
				deps.SessionStore,
				deps.TradeStore,
			)
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
