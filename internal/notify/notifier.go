// Package notify provides a multi-channel notification system. Notifications
// are dispatched to all registered senders (Telegram, Discord) and filtered
// by event type so operators receive only the alerts they care about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/digitbot/internal/domain"
)

// Event types emitted by the bot.
const (
	EventSignalConfirmed = "signal_confirmed"
	EventTradeExecuted   = "trade_executed"
	EventSessionStopped  = "session_stopped"
	EventError           = "error"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches notifications to one or more Senders. It maintains a
// set of allowed event types; Notify only forwards messages whose event type
// is in the allowed set.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that will deliver to the given senders.
// If events is empty, all event types are allowed.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify sends a notification to all senders if the event type is allowed.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", event),
		)
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// SignalConfirmed reports a signal that crossed its confirmation threshold.
func (n *Notifier) SignalConfirmed(ctx context.Context, sig domain.StrategySignal) error {
	msg := fmt.Sprintf("%s %s (%s)\nconfidence %.0f%%\n%s",
		sig.Symbol, sig.ContractType, sig.Source, sig.Confidence, sig.Description)
	return n.Notify(ctx, EventSignalConfirmed, "Signal confirmed", msg)
}

// TradeExecuted reports a settled trade and the running session profit.
func (n *Notifier) TradeExecuted(ctx context.Context, rec domain.TradeRecord, sessionProfit float64) error {
	outcome := "LOSS"
	if rec.IsWin {
		outcome = "WIN"
	}
	msg := fmt.Sprintf("%s %s %s\nstake %.2f, profit %+.2f\nsession %+.2f",
		outcome, rec.Symbol, rec.ContractType, rec.Stake, rec.Profit, sessionProfit)
	return n.Notify(ctx, EventTradeExecuted, "Trade executed", msg)
}

// SessionStopped reports a finished session's final statistics.
func (n *Notifier) SessionStopped(ctx context.Context, reason string, stats domain.SessionStats) error {
	msg := fmt.Sprintf("%s\n%d trades, %d wins, %d losses (%.0f%%)\nprofit %+.2f",
		reason, stats.Trades, stats.Wins, stats.Losses, stats.WinRate(), stats.Profit)
	return n.Notify(ctx, EventSessionStopped, "Session stopped", msg)
}

// dispatch iterates over all senders. Errors from individual senders are
// collected; a single sender failure does not prevent delivery to the rest.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("title", title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
