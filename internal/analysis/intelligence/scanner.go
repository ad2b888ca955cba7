// Package intelligence classifies per-instrument market regime from the
// recent last-digit stream. Each scanned instrument gets a 0-100 structure
// score built from distribution uniformity, repeat clustering, and entropy,
// and a Random / Transitional / Structured label.
package intelligence

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/digitbot/internal/domain"
	"github.com/alanyoungcy/digitbot/internal/feed"
)

// TickSource is the slice of the tick feed the scanner consumes.
type TickSource interface {
	Subscribe(ctx context.Context, symbol string, fn feed.Handler) (func(), error)
}

// Listener receives every updated score synchronously on the tick callback.
type Listener func(domain.MarketScore)

// Config holds scanner parameters.
type Config struct {
	// WindowSize is the per-instrument digit window (default 100).
	WindowSize int
	// MinSamples is the number of digits required before the first score
	// (default 20).
	MinSamples int
}

// Scanner watches a set of instruments concurrently and maintains a ranked
// map of MarketScores. Scores live for the duration of one scanning session
// and are discarded on Stop.
type Scanner struct {
	src    TickSource
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	running   bool
	windows   map[string][]int
	scores    map[string]domain.MarketScore
	releases  []func()
	listeners map[int]Listener
	nextLID   int
}

// NewScanner creates a Scanner over the given tick source.
func NewScanner(source TickSource, cfg Config, logger *slog.Logger) *Scanner {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 100
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 20
	}
	return &Scanner{
		src:       source,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "intelligence")),
		windows:   make(map[string][]int),
		scores:    make(map[string]domain.MarketScore),
		listeners: make(map[int]Listener),
	}
}

// Start subscribes to every symbol's tick stream. Calling Start while a scan
// is already running is a no-op.
func (s *Scanner) Start(ctx context.Context, symbols []string) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	for _, sym := range symbols {
		sym := sym
		release, err := s.src.Subscribe(ctx, sym, func(ev domain.TickEvent) {
			s.onTick(ev)
		})
		if err != nil {
			s.Stop()
			return err
		}
		s.mu.Lock()
		s.releases = append(s.releases, release)
		s.mu.Unlock()
	}

	s.logger.Info("scanning started", slog.Int("symbols", len(symbols)))
	return nil
}

// Stop unsubscribes every instrument and clears all windows and scores.
// Safe to call when not running.
func (s *Scanner) Stop() {
	s.mu.Lock()
	releases := s.releases
	s.releases = nil
	s.windows = make(map[string][]int)
	s.scores = make(map[string]domain.MarketScore)
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()

	for _, release := range releases {
		release()
	}
	if wasRunning {
		s.logger.Info("scanning stopped")
	}
}

// OnUpdate registers a listener for score updates and returns an
// unsubscribe function. Listeners are invoked synchronously, in tick arrival
// order for any given symbol.
func (s *Scanner) OnUpdate(l Listener) func() {
	s.mu.Lock()
	id := s.nextLID
	s.nextLID++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Scores returns the current scores ranked by descending structure score.
func (s *Scanner) Scores() []domain.MarketScore {
	s.mu.Lock()
	out := make([]domain.MarketScore, 0, len(s.scores))
	for _, sc := range s.scores {
		out = append(out, sc)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// onTick appends the digit to the symbol's window and recomputes its score
// once enough samples have accumulated.
func (s *Scanner) onTick(ev domain.TickEvent) {
	s.mu.Lock()
	w := append(s.windows[ev.Symbol], ev.Digit)
	if len(w) > s.cfg.WindowSize {
		w = w[len(w)-s.cfg.WindowSize:]
	}
	s.windows[ev.Symbol] = w

	if len(w) < s.cfg.MinSamples {
		s.mu.Unlock()
		return
	}

	score := scoreWindow(ev.Symbol, w, ev.Digit)
	s.scores[ev.Symbol] = score

	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(score)
	}
}

// scoreWindow computes the MarketScore for one instrument's digit window.
func scoreWindow(symbol string, window []int, lastDigit int) domain.MarketScore {
	stability := stabilityScore(window)
	patternStrength := repeatScore(window)
	noise := noiseScore(window)

	score := 0.4*stability + 0.4*patternStrength + 0.2*(100-noise)
	score = clamp(score, 0, 100)

	return domain.MarketScore{
		Symbol:          symbol,
		Score:           score,
		State:           domain.StateForScore(score),
		Stability:       stability,
		PatternStrength: patternStrength,
		NoiseRatio:      noise,
		LastDigit:       lastDigit,
		Timestamp:       time.Now().UTC(),
	}
}

// stabilityScore is 100 minus the normalized RMS deviation of per-digit
// counts from the ideal uniform count (window/10).
func stabilityScore(window []int) float64 {
	counts := [10]int{}
	for _, d := range window {
		counts[d]++
	}
	ideal := float64(len(window)) / 10

	var sumSq float64
	for d := 0; d < 10; d++ {
		dev := float64(counts[d]) - ideal
		sumSq += dev * dev
	}
	rms := math.Sqrt(sumSq / 10)

	// Normalize against the ideal count so the score is window-size
	// independent.
	return clamp(100-(rms/ideal)*100, 0, 100)
}

// repeatScore measures consecutive-repeat clustering: the number of digits
// equal to their immediate predecessor, scaled by window/5.
func repeatScore(window []int) float64 {
	repeats := 0
	for i := 1; i < len(window); i++ {
		if window[i] == window[i-1] {
			repeats++
		}
	}
	return math.Min(100, float64(repeats)/(float64(len(window))/5)*100)
}

// noiseScore is the Shannon entropy of the digit distribution normalized to
// the 10-symbol maximum, as a percentage.
func noiseScore(window []int) float64 {
	counts := [10]int{}
	for _, d := range window {
		counts[d]++
	}
	total := float64(len(window))

	var entropy float64
	for d := 0; d < 10; d++ {
		if counts[d] == 0 {
			continue
		}
		p := float64(counts[d]) / total
		entropy -= p * math.Log2(p)
	}
	return entropy / math.Log2(10) * 100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
