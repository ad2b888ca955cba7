package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/digitbot/internal/analysis/power"
	"github.com/alanyoungcy/digitbot/internal/domain"
)

// Preset names.
const (
	PresetEvenOdd      = "even_odd"
	PresetOver1Under8  = "over1_under8"
	PresetOver2Under7  = "over2_under7"
	PresetDiffers      = "differs"
	PresetSuperDiffers = "super_differs"
)

// Presets returns every preset name in declaration order.
func Presets() []string {
	return []string{
		PresetEvenOdd,
		PresetOver1Under8,
		PresetOver2Under7,
		PresetDiffers,
		PresetSuperDiffers,
	}
}

// presetThresholds gates entry per preset. super_differs demands the most
// evidence before confirming.
var presetThresholds = map[string]float64{
	PresetEvenOdd:      70,
	PresetOver1Under8:  72,
	PresetOver2Under7:  72,
	PresetDiffers:      65,
	PresetSuperDiffers: 80,
}

// PresetSource is a SignalSource for one fixed strategy preset. It keeps a
// power engine per watched symbol and derives the preset's contract from
// the current snapshot.
type PresetSource struct {
	preset string
	src    TickSource
	logger *slog.Logger

	mu      sync.Mutex
	engines map[string]*power.Engine
	release map[string]func()
}

// NewPresetSource creates a source for the named preset.
func NewPresetSource(preset string, src TickSource, logger *slog.Logger) (*PresetSource, error) {
	if _, ok := presetThresholds[preset]; !ok {
		return nil, fmt.Errorf("strategy: unknown preset %q", preset)
	}
	return &PresetSource{
		preset:  preset,
		src:     src,
		logger:  logger.With(slog.String("component", "preset_source"), slog.String("preset", preset)),
		engines: make(map[string]*power.Engine),
		release: make(map[string]func()),
	}, nil
}

// Name implements domain.SignalSource.
func (p *PresetSource) Name() string { return p.preset }

// Watch warm-starts and subscribes the power engine for a symbol.
// Idempotent per symbol.
func (p *PresetSource) Watch(ctx context.Context, symbol string) error {
	p.mu.Lock()
	if _, ok := p.engines[symbol]; ok {
		p.mu.Unlock()
		return nil
	}
	eng := power.NewEngine()
	p.engines[symbol] = eng
	p.mu.Unlock()

	if history, err := p.src.WarmStart(ctx, symbol, 100); err == nil {
		p.mu.Lock()
		for _, ev := range history {
			eng.AddDigit(ev.Digit)
		}
		p.mu.Unlock()
	} else {
		p.logger.Warn("warm start failed, starting cold",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
	}

	release, err := p.src.Subscribe(ctx, symbol, func(ev domain.TickEvent) {
		p.mu.Lock()
		eng.AddDigit(ev.Digit)
		p.mu.Unlock()
	})
	if err != nil {
		p.mu.Lock()
		delete(p.engines, symbol)
		p.mu.Unlock()
		return fmt.Errorf("strategy: watch %s: %w", symbol, err)
	}

	p.mu.Lock()
	p.release[symbol] = release
	p.mu.Unlock()
	return nil
}

// Unwatch releases the symbol's subscription and drops its engine.
func (p *PresetSource) Unwatch(symbol string) {
	p.mu.Lock()
	release := p.release[symbol]
	delete(p.release, symbol)
	delete(p.engines, symbol)
	p.mu.Unlock()

	if release != nil {
		release()
	}
}

// Current implements domain.SignalSource.
func (p *PresetSource) Current(_ context.Context, symbol string) (*domain.StrategySignal, error) {
	p.mu.Lock()
	eng, ok := p.engines[symbol]
	if !ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("strategy: symbol %s not watched", symbol)
	}
	snap := eng.Snapshot()
	p.mu.Unlock()

	if snap.Samples < 15 {
		return nil, nil
	}

	sig := p.fromSnapshot(snap)
	if sig == nil {
		return nil, nil
	}
	sig.ID = uuid.New().String()
	sig.Source = p.preset
	sig.Symbol = symbol
	sig.CreatedAt = time.Now().UTC()
	if sig.Confidence >= presetThresholds[p.preset] {
		sig.EntryStatus = domain.EntryConfirmed
	} else {
		sig.EntryStatus = domain.EntryWaiting
	}
	return sig, nil
}

// fromSnapshot derives the preset's candidate contract from the power
// snapshot. Confidence scales with how lopsided the relevant category is.
func (p *PresetSource) fromSnapshot(snap domain.PowerSnapshot) *domain.StrategySignal {
	switch p.preset {
	case PresetEvenOdd:
		// Trade the dominant side while its short-term rate is rising.
		if snap.EvenPower >= snap.OddPower && snap.EvenRising {
			return &domain.StrategySignal{
				Strategy:     domain.StrategyEvenOdd,
				ContractType: domain.ContractDigitEven,
				Confidence:   snap.EvenPower + 20,
				Description:  fmt.Sprintf("even power %.0f%% and rising", snap.EvenPower),
			}
		}
		if snap.OddPower > snap.EvenPower && snap.OddRising {
			return &domain.StrategySignal{
				Strategy:     domain.StrategyEvenOdd,
				ContractType: domain.ContractDigitOdd,
				Confidence:   snap.OddPower + 20,
				Description:  fmt.Sprintf("odd power %.0f%% and rising", snap.OddPower),
			}
		}
		return nil

	case PresetOver1Under8, PresetOver2Under7:
		overBarrier, underBarrier := "1", "8"
		if p.preset == PresetOver2Under7 {
			overBarrier, underBarrier = "2", "7"
		}
		if snap.OverPower >= snap.UnderPower && snap.OverRising {
			return &domain.StrategySignal{
				Strategy:     domain.StrategyOverUnder,
				ContractType: domain.ContractDigitOver,
				Barrier:      overBarrier,
				Confidence:   snap.OverPower + 20,
				Description:  fmt.Sprintf("over power %.0f%% and rising", snap.OverPower),
			}
		}
		if snap.UnderPower > snap.OverPower && snap.UnderRising {
			return &domain.StrategySignal{
				Strategy:     domain.StrategyOverUnder,
				ContractType: domain.ContractDigitUnder,
				Barrier:      underBarrier,
				Confidence:   snap.UnderPower + 20,
				Description:  fmt.Sprintf("under power %.0f%% and rising", snap.UnderPower),
			}
		}
		return nil

	case PresetDiffers, PresetSuperDiffers:
		// Differs against the weakest digit: the less often it appears, the
		// more likely the next tick differs from it.
		weakPower := snap.DigitPowers[snap.WeakestDigit]
		if p.preset == PresetSuperDiffers && weakPower >= 5 {
			return nil
		}
		return &domain.StrategySignal{
			Strategy:     domain.StrategyDiffers,
			ContractType: domain.ContractDigitDiff,
			Barrier:      fmt.Sprintf("%d", snap.WeakestDigit),
			Confidence:   100 - weakPower*4,
			Description:  fmt.Sprintf("digit %d at %.1f%% frequency", snap.WeakestDigit, weakPower),
		}
	}
	return nil
}

var _ domain.SignalSource = (*PresetSource)(nil)
