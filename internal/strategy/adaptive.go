// Package strategy turns market analysis into confidence-gated trade
// signals. Two families of signal source feed the trading manager: the
// adaptive source derives signals from detected digit patterns, and preset
// sources trade a fixed contract family off the power engine.
package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/digitbot/internal/analysis/pattern"
	"github.com/alanyoungcy/digitbot/internal/domain"
	"github.com/alanyoungcy/digitbot/internal/feed"
)

// Confirmation thresholds per strategy family.
const (
	thresholdOverUnder = 75
	thresholdEvenOdd   = 70
	thresholdMatches   = 75
	thresholdDiffers   = 65
)

// MapPatterns converts detected patterns into candidate signals using the
// fixed mapping table, applies per-strategy confirmation thresholds, and
// resolves Matches/Differs conflicts. AlternatingCycle is informational and
// produces no signal.
func MapPatterns(symbol string, patterns []domain.PatternMatch) []domain.StrategySignal {
	now := time.Now().UTC()
	var signals []domain.StrategySignal

	for _, p := range patterns {
		var sig *domain.StrategySignal
		switch p.Type {
		case domain.PatternExtremeCompression:
			sig = mapCompression(p)
		case domain.PatternEvenOddImbalance:
			sig = mapImbalance(p)
		case domain.PatternClustering:
			sig = mapClustering(p)
		case domain.PatternClusterRejection:
			sig = mapRejection(p)
		case domain.PatternMicroRepetition:
			sig = mapMicroRepetition(p)
		case domain.PatternAlternatingCycle:
			// informational only
		}
		if sig == nil {
			continue
		}
		sig.ID = uuid.New().String()
		sig.Source = "adaptive"
		sig.Symbol = symbol
		sig.CreatedAt = now
		signals = append(signals, *sig)
	}

	return resolveConflicts(signals)
}

// mapCompression maps an extreme-compression pattern to an over/under
// contract against the compressed zone: Over 2 when lows dominate, Under 7
// when highs dominate.
func mapCompression(p domain.PatternMatch) *domain.StrategySignal {
	contract := domain.ContractDigitUnder
	barrier := "7"
	if p.Metadata["zone"] == "low" {
		contract = domain.ContractDigitOver
		barrier = "2"
	}
	return &domain.StrategySignal{
		Strategy:     domain.StrategyOverUnder,
		ContractType: contract,
		Barrier:      barrier,
		Confidence:   p.Confidence,
		Description:  p.Description,
		EntryStatus:  statusFor(p.Confidence, thresholdOverUnder),
	}
}

// mapImbalance trades mean-reversion: contract on the opposite of the
// dominant side.
func mapImbalance(p domain.PatternMatch) *domain.StrategySignal {
	contract := domain.ContractDigitEven
	if p.Metadata["dominant"] == "even" {
		contract = domain.ContractDigitOdd
	}
	return &domain.StrategySignal{
		Strategy:     domain.StrategyEvenOdd,
		ContractType: contract,
		Confidence:   p.Confidence,
		Description:  p.Description,
		EntryStatus:  statusFor(p.Confidence, thresholdEvenOdd),
	}
}

// mapClustering rides the cluster with a Matches contract on the repeating
// digit.
func mapClustering(p domain.PatternMatch) *domain.StrategySignal {
	return &domain.StrategySignal{
		Strategy:     domain.StrategyMatches,
		ContractType: domain.ContractDigitMatch,
		Barrier:      p.Metadata["digit"],
		Confidence:   p.Confidence,
		Description:  p.Description,
		EntryStatus:  statusFor(p.Confidence, thresholdMatches),
	}
}

// mapRejection fades the broken cluster with a Differs contract on the
// rejected digit.
func mapRejection(p domain.PatternMatch) *domain.StrategySignal {
	return &domain.StrategySignal{
		Strategy:     domain.StrategyDiffers,
		ContractType: domain.ContractDigitDiff,
		Barrier:      p.Metadata["rejectedDigit"],
		Confidence:   p.Confidence,
		Description:  p.Description,
		EntryStatus:  statusFor(p.Confidence, thresholdDiffers),
	}
}

// mapMicroRepetition anchors a Matches contract on the last digit of the
// repeating series. Always confirmed.
func mapMicroRepetition(p domain.PatternMatch) *domain.StrategySignal {
	series := p.Metadata["series"]
	barrier := ""
	if len(series) > 0 {
		barrier = series[len(series)-1:]
	}
	return &domain.StrategySignal{
		Strategy:     domain.StrategyMatches,
		ContractType: domain.ContractDigitMatch,
		Barrier:      barrier,
		Confidence:   p.Confidence,
		Description:  p.Description,
		EntryStatus:  domain.EntryConfirmed,
	}
}

func statusFor(confidence, threshold float64) domain.EntryStatus {
	if confidence >= threshold {
		return domain.EntryConfirmed
	}
	return domain.EntryWaiting
}

// resolveConflicts drops the weaker of the Matches and Differs families
// when both fired in the same evaluation. A tie favors Matches. All signals
// of the losing family are removed.
func resolveConflicts(signals []domain.StrategySignal) []domain.StrategySignal {
	bestMatches, bestDiffers := -1.0, -1.0
	for _, s := range signals {
		switch s.Strategy {
		case domain.StrategyMatches:
			if s.Confidence > bestMatches {
				bestMatches = s.Confidence
			}
		case domain.StrategyDiffers:
			if s.Confidence > bestDiffers {
				bestDiffers = s.Confidence
			}
		}
	}
	if bestMatches < 0 || bestDiffers < 0 {
		return signals
	}

	loser := domain.StrategyDiffers
	if bestDiffers > bestMatches {
		loser = domain.StrategyMatches
	}

	kept := signals[:0]
	for _, s := range signals {
		if s.Strategy != loser {
			kept = append(kept, s)
		}
	}
	return kept
}

// AdaptiveSource is a live SignalSource over one instrument: it keeps a
// pattern engine fed from the tick stream and reports the strongest current
// signal on demand.
type AdaptiveSource struct {
	src    TickSource
	logger *slog.Logger

	mu      sync.Mutex
	engines map[string]*pattern.Engine
	digits  map[string][]int
	release map[string]func()

	windowSize   int
	tickDuration int
}

// TickSource is the slice of the tick feed signal sources consume.
type TickSource interface {
	Subscribe(ctx context.Context, symbol string, fn feed.Handler) (func(), error)
	WarmStart(ctx context.Context, symbol string, count int) ([]domain.TickEvent, error)
}

// NewAdaptiveSource creates an AdaptiveSource with the given pattern window
// size.
func NewAdaptiveSource(src TickSource, windowSize, tickDuration int, logger *slog.Logger) *AdaptiveSource {
	if windowSize <= 0 {
		windowSize = 100
	}
	return &AdaptiveSource{
		src:          src,
		logger:       logger.With(slog.String("component", "adaptive_source")),
		engines:      make(map[string]*pattern.Engine),
		digits:       make(map[string][]int),
		release:      make(map[string]func()),
		windowSize:   windowSize,
		tickDuration: tickDuration,
	}
}

// Name implements domain.SignalSource.
func (a *AdaptiveSource) Name() string { return "adaptive" }

// Watch warm-starts and subscribes the pattern engine for a symbol. Must be
// called before Current yields signals for it. Idempotent per symbol.
func (a *AdaptiveSource) Watch(ctx context.Context, symbol string) error {
	a.mu.Lock()
	if _, ok := a.engines[symbol]; ok {
		a.mu.Unlock()
		return nil
	}
	eng := pattern.NewEngine(a.windowSize)
	eng.SetTickDuration(a.tickDuration)
	a.engines[symbol] = eng
	a.mu.Unlock()

	if history, err := a.src.WarmStart(ctx, symbol, a.windowSize); err == nil {
		a.mu.Lock()
		for _, ev := range history {
			a.digits[symbol] = append(a.digits[symbol], ev.Digit)
		}
		eng.UpdateWindow(a.digits[symbol])
		a.mu.Unlock()
	} else {
		a.logger.Warn("warm start failed, starting cold",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
	}

	release, err := a.src.Subscribe(ctx, symbol, func(ev domain.TickEvent) {
		a.mu.Lock()
		defer a.mu.Unlock()
		w := append(a.digits[symbol], ev.Digit)
		if len(w) > a.windowSize {
			w = w[len(w)-a.windowSize:]
		}
		a.digits[symbol] = w
		a.engines[symbol].UpdateWindow(w)
	})
	if err != nil {
		a.mu.Lock()
		delete(a.engines, symbol)
		delete(a.digits, symbol)
		a.mu.Unlock()
		return fmt.Errorf("strategy: watch %s: %w", symbol, err)
	}

	a.mu.Lock()
	a.release[symbol] = release
	a.mu.Unlock()
	return nil
}

// Unwatch releases the symbol's subscription and drops its window.
func (a *AdaptiveSource) Unwatch(symbol string) {
	a.mu.Lock()
	release := a.release[symbol]
	delete(a.release, symbol)
	delete(a.engines, symbol)
	delete(a.digits, symbol)
	a.mu.Unlock()

	if release != nil {
		release()
	}
}

// Current implements domain.SignalSource: it analyzes the symbol's window
// and returns the highest-confidence signal, or nil when nothing fires.
func (a *AdaptiveSource) Current(_ context.Context, symbol string) (*domain.StrategySignal, error) {
	a.mu.Lock()
	eng, ok := a.engines[symbol]
	if !ok {
		a.mu.Unlock()
		return nil, fmt.Errorf("strategy: symbol %s not watched", symbol)
	}
	matches := eng.Analyze()
	a.mu.Unlock()

	signals := MapPatterns(symbol, matches)
	if len(signals) == 0 {
		return nil, nil
	}

	best := signals[0]
	for _, s := range signals[1:] {
		if s.Confidence > best.Confidence {
			best = s
		}
	}
	return &best, nil
}

var _ domain.SignalSource = (*AdaptiveSource)(nil)
