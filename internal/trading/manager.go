// Package trading owns session-level risk state and drives trade execution
// against a signal source, either one-shot or via a ticker-driven auto
// loop. One Manager instance per session; it is the single writer of its
// SessionStats and stake progression.
package trading

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/digitbot/internal/domain"
)

// OrderExecutor places one contract and blocks until settlement.
type OrderExecutor interface {
	Execute(ctx context.Context, sig domain.StrategySignal, stake float64) (domain.TradeResult, error)
}

// Recorder receives every settled trade, e.g. for persistence or
// notifications. Called outside the manager's lock.
type Recorder func(ctx context.Context, rec domain.TradeRecord)

// Mode is the manager's lifecycle state.
type Mode int

const (
	ModeIdle Mode = iota
	ModeManual
	ModeAuto
)

// Stake-escalation policies. The adaptive policy caps the martingale stake
// at half the current balance; the preset policy at a fixed absolute cap.
const (
	PolicyAdaptive = "adaptive"
	PolicyPreset   = "preset"
)

// Config holds session risk limits and stake progression parameters.
type Config struct {
	Symbol       string
	BaseStake    float64
	TargetProfit float64
	MaxLoss      float64
	Balance      float64

	Martingale bool
	Multiplier float64
	Policy     string
	StakeCap   float64

	// Interval is the auto-loop cadence (~1s in production, shorter in
	// tests).
	Interval time.Duration
	// Cooldown is the minimum gap between trade executions, enforced even
	// when the loop cadence is faster.
	Cooldown           time.Duration
	MaxTradesPerMinute int
}

// Manager drives trading for one session.
type Manager struct {
	cfg      Config
	exec     OrderExecutor
	logger   *slog.Logger
	recorder Recorder

	mu         sync.Mutex
	mode       Mode
	stats      domain.SessionStats
	stake      float64
	balance    float64
	lossStreak int
	lastTrade  time.Time
	inFlight   bool
	cancel     context.CancelFunc

	windowStart  time.Time
	windowTrades int

	sessionID string
	startedAt time.Time
}

// NewManager creates a Manager in the Idle state with the stake at base.
func NewManager(cfg Config, exec OrderExecutor, logger *slog.Logger) *Manager {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Second
	}
	if cfg.MaxTradesPerMinute <= 0 {
		cfg.MaxTradesPerMinute = 8
	}
	return &Manager{
		cfg:       cfg,
		exec:      exec,
		logger:    logger.With(slog.String("component", "trading_manager")),
		stake:     cfg.BaseStake,
		balance:   cfg.Balance,
		sessionID: uuid.New().String(),
		startedAt: time.Now().UTC(),
	}
}

// SetRecorder installs the settled-trade callback. Must be called before
// trading starts.
func (m *Manager) SetRecorder(r Recorder) { m.recorder = r }

// SessionID returns the stable id for this manager's session.
func (m *Manager) SessionID() string { return m.sessionID }

// StartedAt returns when this session began.
func (m *Manager) StartedAt() time.Time { return m.startedAt }

// Stats returns a copy of the current session statistics.
func (m *Manager) Stats() domain.SessionStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Stake returns the next trade's stake.
func (m *Manager) Stake() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stake
}

// withinBand reports whether the session profit is still inside
// (-MaxLoss, +TargetProfit). Breaching either bound is a normal terminal
// condition, not an error.
func (m *Manager) withinBand() bool {
	return m.stats.Profit > -m.cfg.MaxLoss && m.stats.Profit < m.cfg.TargetProfit
}

// TradeOnce executes a single trade for a confirmed signal. It shares the
// in-flight gate with the auto loop so manual and automatic trades never
// overlap.
func (m *Manager) TradeOnce(ctx context.Context, sig domain.StrategySignal) (domain.TradeResult, error) {
	m.mu.Lock()
	if !m.withinBand() {
		m.mu.Unlock()
		return domain.TradeResult{}, domain.ErrRiskLimit
	}
	if !sig.Confirmed() {
		m.mu.Unlock()
		return domain.TradeResult{}, domain.ErrNotConfirmed
	}
	if m.inFlight {
		m.mu.Unlock()
		return domain.TradeResult{}, domain.ErrOrderInFlight
	}
	m.inFlight = true
	stake := m.stake
	m.mu.Unlock()

	res, err := m.exec.Execute(ctx, sig, stake)

	m.mu.Lock()
	m.inFlight = false
	m.mu.Unlock()

	if err != nil {
		return domain.TradeResult{}, err
	}
	m.applyResult(ctx, sig, stake, res)
	return res, nil
}

// StartAuto transitions to Auto mode and launches the polling loop. It
// returns an error when the manager is not Idle.
func (m *Manager) StartAuto(ctx context.Context, src domain.SignalSource) error {
	m.mu.Lock()
	if m.mode != ModeIdle {
		m.mu.Unlock()
		return fmt.Errorf("trading: manager not idle")
	}
	m.mode = ModeAuto
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	m.logger.Info("auto trading started",
		slog.String("symbol", m.cfg.Symbol),
		slog.String("source", src.Name()),
		slog.String("session", m.sessionID),
	)

	go m.runLoop(loopCtx, src)
	return nil
}

// StopAuto cancels the auto loop. Cancellation is cooperative: the loop
// observes it on its next iteration.
func (m *Manager) StopAuto() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mode = ModeIdle
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// runLoop is the auto-trade polling loop. Each tick it re-checks the risk
// band, skips while an order is in flight or rate/cooldown limited, polls
// the signal source, and executes qualifying signals asynchronously.
func (m *Manager) runLoop(ctx context.Context, src domain.SignalSource) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	defer m.logger.Info("auto trading stopped", slog.String("session", m.sessionID))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		m.mu.Lock()
		if !m.withinBand() {
			stats := m.stats
			m.mu.Unlock()
			m.logger.Info("profit band reached, stopping",
				slog.Float64("profit", stats.Profit),
				slog.Int("trades", stats.Trades),
			)
			m.StopAuto()
			return
		}
		if m.inFlight {
			m.mu.Unlock()
			continue
		}
		now := time.Now()
		if now.Sub(m.windowStart) >= time.Minute {
			m.windowStart = now
			m.windowTrades = 0
		}
		if m.windowTrades >= m.cfg.MaxTradesPerMinute {
			m.mu.Unlock()
			continue
		}
		if !m.lastTrade.IsZero() && now.Sub(m.lastTrade) < m.cfg.Cooldown {
			m.mu.Unlock()
			continue
		}
		m.mu.Unlock()

		sig, err := src.Current(ctx, m.cfg.Symbol)
		if err != nil {
			if !domain.Recoverable(err) {
				m.logger.Error("signal source failed, stopping",
					slog.String("error", err.Error()),
				)
				m.StopAuto()
				return
			}
			m.logger.Warn("signal source error, skipping cycle",
				slog.String("error", err.Error()),
			)
			continue
		}
		if sig == nil || !sig.Confirmed() {
			continue
		}

		m.mu.Lock()
		if m.inFlight {
			m.mu.Unlock()
			continue
		}
		m.inFlight = true
		m.lastTrade = now
		m.windowTrades++
		stake := m.stake
		m.mu.Unlock()

		// Execute asynchronously so the loop keeps observing cancellation
		// and skipping cycles while the contract settles.
		go m.executeAuto(ctx, *sig, stake)
	}
}

// executeAuto runs one auto-loop trade and records the outcome.
func (m *Manager) executeAuto(ctx context.Context, sig domain.StrategySignal, stake float64) {
	defer func() {
		m.mu.Lock()
		m.inFlight = false
		m.mu.Unlock()
	}()

	res, err := m.exec.Execute(ctx, sig, stake)
	if err != nil {
		// Timeouts and broker hiccups are retryable: skip the cycle.
		m.logger.Warn("trade execution failed",
			slog.String("signal", sig.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	m.applyResult(ctx, sig, stake, res)
}

// applyResult updates session stats, balance, and stake progression from a
// settled trade. Wins add realized profit and reset the stake; losses
// subtract the buy price and escalate the stake when martingale is on.
func (m *Manager) applyResult(ctx context.Context, sig domain.StrategySignal, stake float64, res domain.TradeResult) {
	m.mu.Lock()
	m.stats.Trades++
	if res.IsWin {
		m.stats.Wins++
		m.stats.Profit += res.Profit
		m.balance += res.Profit
		if res.Profit > m.stats.HighestWin {
			m.stats.HighestWin = res.Profit
		}
		m.lossStreak = 0
		m.stake = m.cfg.BaseStake
	} else {
		m.stats.Losses++
		m.stats.Profit -= res.BuyPrice
		m.balance -= res.BuyPrice
		if -res.BuyPrice < m.stats.WorstLoss {
			m.stats.WorstLoss = -res.BuyPrice
		}
		m.lossStreak++
		if m.cfg.Martingale {
			m.stake = m.nextStakeLocked()
		}
	}
	stats := m.stats
	m.mu.Unlock()

	m.logger.Info("trade recorded",
		slog.Bool("is_win", res.IsWin),
		slog.Float64("profit", stats.Profit),
		slog.Int("trades", stats.Trades),
		slog.Float64("next_stake", m.Stake()),
	)

	if m.recorder != nil {
		now := time.Now().UTC()
		m.recorder(ctx, domain.TradeRecord{
			ID:           uuid.New().String(),
			SessionID:    m.sessionID,
			Symbol:       sig.Symbol,
			Source:       sig.Source,
			Strategy:     sig.Strategy,
			ContractType: sig.ContractType,
			Barrier:      sig.Barrier,
			Confidence:   sig.Confidence,
			Stake:        stake,
			Profit:       res.Profit,
			IsWin:        res.IsWin,
			ContractID:   res.ContractID,
			PlacedAt:     now,
			SettledAt:    now,
		})
	}
}

// nextStakeLocked computes the escalated stake under the configured policy
// cap. Caller holds m.mu.
func (m *Manager) nextStakeLocked() float64 {
	next := m.stake * m.cfg.Multiplier
	limit := m.cfg.StakeCap
	if m.cfg.Policy == PolicyAdaptive {
		limit = m.balance * 0.5
	}
	return math.Min(next, limit)
}
