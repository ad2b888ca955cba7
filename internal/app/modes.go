package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/digitbot/internal/domain"
	"github.com/alanyoungcy/digitbot/internal/strategy"
)

// Redis Pub/Sub channels for external consumers.
const (
	signalChannel = "digitbot:signals"
	tradeChannel  = "digitbot:trades"
)

// shutdownTimeout bounds the persistence work done after the run context is
// already cancelled (session finish, archive upload).
const shutdownTimeout = 15 * time.Second

// ScanMode runs the market intelligence scanner across all configured
// symbols and publishes scores. No trading happens in this mode.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	if err := deps.Deriv.Connect(ctx); err != nil {
		return fmt.Errorf("app: scan mode: %w", err)
	}

	if deps.ScoreCache != nil {
		unsub := deps.Scanner.OnUpdate(func(score domain.MarketScore) {
			cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := deps.ScoreCache.Set(cctx, score); err != nil {
				a.logger.Warn("score cache write failed",
					slog.String("symbol", score.Symbol),
					slog.String("error", err.Error()),
				)
			}
		})
		defer unsub()
	}

	if err := deps.Scanner.Start(ctx, a.cfg.Scanner.Symbols); err != nil {
		return fmt.Errorf("app: scan mode: %w", err)
	}
	defer deps.Scanner.Stop()

	// Periodic ranking summary so the mode is useful without Redis.
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.logScores(deps)
		}
	}
}

// logScores logs the current ranking, best market first.
func (a *App) logScores(deps *Dependencies) {
	for _, score := range deps.Scanner.Scores() {
		a.logger.Info("market score",
			slog.String("symbol", score.Symbol),
			slog.Float64("score", score.Score),
			slog.String("state", string(score.State)),
		)
	}
}

// MonitorMode runs the scanner and the configured signal source for the
// trading symbol, announcing confirmed signals without placing orders.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	if err := deps.Deriv.Connect(ctx); err != nil {
		return fmt.Errorf("app: monitor mode: %w", err)
	}

	if err := deps.Scanner.Start(ctx, a.cfg.Scanner.Symbols); err != nil {
		return fmt.Errorf("app: monitor mode: %w", err)
	}
	defer deps.Scanner.Stop()

	symbol := a.cfg.Trading.Symbol
	if err := a.watchSource(ctx, deps.Source, symbol); err != nil {
		return fmt.Errorf("app: monitor mode: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.announceSignals(gctx, deps, symbol)
	})
	g.Go(func() error {
		return a.relayTrades(gctx, deps)
	})
	return g.Wait()
}

// relayTrades consumes trade events published on the bus, so a monitor
// instance also reports executions happening in a separate trading process.
func (a *App) relayTrades(ctx context.Context, deps *Dependencies) error {
	if deps.SignalBus == nil {
		return nil
	}

	events, err := deps.SignalBus.Subscribe(ctx, tradeChannel)
	if err != nil {
		return fmt.Errorf("app: subscribe %s: %w", tradeChannel, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-events:
			if !ok {
				return nil
			}
			var rec domain.TradeRecord
			if err := json.Unmarshal(payload, &rec); err != nil {
				a.logger.Warn("dropping malformed trade event",
					slog.String("error", err.Error()),
				)
				continue
			}
			a.logger.Info("trade settled elsewhere",
				slog.String("session", rec.SessionID),
				slog.String("contract_type", rec.ContractType),
				slog.Float64("stake", rec.Stake),
				slog.Float64("profit", rec.Profit),
				slog.Bool("win", rec.IsWin),
			)
		}
	}
}

// announceSignals polls the active source and logs, notifies, and publishes
// each newly confirmed signal. Consecutive identical signals are suppressed.
func (a *App) announceSignals(ctx context.Context, deps *Dependencies, symbol string) error {
	ticker := time.NewTicker(a.cfg.Trading.Interval.Duration)
	defer ticker.Stop()

	var lastKey string
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		sig, err := deps.Source.Current(ctx, symbol)
		if err != nil {
			if !domain.Recoverable(err) {
				return fmt.Errorf("app: signal source: %w", err)
			}
			a.logger.Warn("signal poll failed", slog.String("error", err.Error()))
			continue
		}
		if sig == nil || !sig.Confirmed() {
			lastKey = ""
			continue
		}

		key := sig.ContractType + "|" + sig.Barrier
		if key == lastKey {
			continue
		}
		lastKey = key

		a.logger.Info("signal confirmed",
			slog.String("symbol", sig.Symbol),
			slog.String("contract_type", sig.ContractType),
			slog.String("barrier", sig.Barrier),
			slog.Float64("confidence", sig.Confidence),
			slog.String("source", sig.Source),
		)
		if err := deps.Notifier.SignalConfirmed(ctx, *sig); err != nil {
			a.logger.Warn("signal notification failed", slog.String("error", err.Error()))
		}
		a.publish(ctx, deps, signalChannel, sig)
	}
}

// TradeMode runs the full pipeline: scanner, signal source, and the
// auto-trading manager. The session is persisted and archived when
// the corresponding backends are configured.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	if err := deps.Deriv.Connect(ctx); err != nil {
		return fmt.Errorf("app: trade mode: %w", err)
	}

	if err := deps.Scanner.Start(ctx, a.cfg.Scanner.Symbols); err != nil {
		return fmt.Errorf("app: trade mode: %w", err)
	}
	defer deps.Scanner.Stop()

	symbol := a.cfg.Trading.Symbol
	if err := a.watchSource(ctx, deps.Source, symbol); err != nil {
		return fmt.Errorf("app: trade mode: %w", err)
	}

	mgr := deps.Manager
	if deps.SessionStore != nil {
		report := domain.SessionReport{
			ID:        mgr.SessionID(),
			Symbol:    symbol,
			Source:    deps.Source.Name(),
			Policy:    a.cfg.Trading.Policy,
			StartedAt: mgr.StartedAt(),
		}
		if err := deps.SessionStore.Create(ctx, report); err != nil {
			return fmt.Errorf("app: trade mode: %w", err)
		}
	}

	mgr.SetRecorder(func(ctx context.Context, rec domain.TradeRecord) {
		if deps.TradeStore != nil {
			if err := deps.TradeStore.Create(ctx, rec); err != nil {
				a.logger.Error("trade persist failed",
					slog.String("trade", rec.ID),
					slog.String("error", err.Error()),
				)
			}
		}
		if err := deps.Notifier.TradeExecuted(ctx, rec, mgr.Stats().Profit); err != nil {
			a.logger.Warn("trade notification failed", slog.String("error", err.Error()))
		}
		a.publish(ctx, deps, tradeChannel, rec)
	})

	if err := mgr.StartAuto(ctx, deps.Source); err != nil {
		return fmt.Errorf("app: trade mode: %w", err)
	}

	<-ctx.Done()
	mgr.StopAuto()
	a.finishSession(deps)
	return ctx.Err()
}

// finishSession persists final session stats, archives the session, and
// notifies operators. Runs on its own timeout since the run context is
// already cancelled.
func (a *App) finishSession(deps *Dependencies) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	mgr := deps.Manager
	stats := mgr.Stats()

	if deps.SessionStore != nil {
		if err := deps.SessionStore.Finish(ctx, mgr.SessionID(), stats, time.Now().UTC()); err != nil {
			a.logger.Error("session finish failed", slog.String("error", err.Error()))
		} else if deps.Archiver != nil {
			path, err := deps.Archiver.ArchiveSession(ctx, mgr.SessionID())
			if err != nil {
				a.logger.Error("session archive failed", slog.String("error", err.Error()))
			} else {
				a.logger.Info("session archived", slog.String("path", path))
			}
		}
	}

	if err := deps.Notifier.SessionStopped(ctx, "shutdown", stats); err != nil {
		a.logger.Warn("session notification failed", slog.String("error", err.Error()))
	}

	a.logger.Info("session finished",
		slog.String("session", mgr.SessionID()),
		slog.Int("trades", stats.Trades),
		slog.Float64("profit", stats.Profit),
		slog.Float64("win_rate", stats.WinRate()),
	)
}

// watchSource attaches a stateful signal source to the tick stream.
func (a *App) watchSource(ctx context.Context, src domain.SignalSource, symbol string) error {
	w, ok := src.(strategy.Watcher)
	if !ok {
		return nil
	}
	return w.Watch(ctx, symbol)
}

// publish serializes v to JSON and publishes it on the signal bus. Errors
// are logged, never fatal: the bus is an optional side channel.
func (a *App) publish(ctx context.Context, deps *Dependencies, channel string, v any) {
	if deps.SignalBus == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		a.logger.Warn("bus payload marshal failed", slog.String("error", err.Error()))
		return
	}
	if err := deps.SignalBus.Publish(ctx, channel, payload); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn("bus publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
