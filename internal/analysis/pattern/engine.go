// Package pattern detects named statistical formations in the last-digit
// window of a single instrument: trailing clusters, cluster breakouts,
// alternating cycles, even/odd imbalance, zone compression, and repeated
// micro-series.
package pattern

import (
	"fmt"
	"math"
	"sort"

	"github.com/alanyoungcy/digitbot/internal/domain"
)

const (
	// minDigits is the minimum window size before any detector fires.
	minDigits = 10

	defaultWindowSize = 100
)

// Engine analyzes a sliding window of digits. It is deterministic: two
// engines fed the same window produce identical matches. Not safe for
// concurrent use; callers serialize through the tick callback.
type Engine struct {
	window       []int
	size         int
	tickDuration int
}

// NewEngine returns an engine with the given window size (default 100).
func NewEngine(size int) *Engine {
	if size <= 0 {
		size = defaultWindowSize
	}
	return &Engine{size: size, tickDuration: 5}
}

// UpdateWindow replaces the internal window with the last N digits of the
// given sequence.
func (e *Engine) UpdateWindow(digits []int) {
	if len(digits) > e.size {
		digits = digits[len(digits)-e.size:]
	}
	e.window = append(e.window[:0], digits...)
}

// Push appends a single digit, evicting the oldest beyond the window size.
func (e *Engine) Push(digit int) {
	e.window = append(e.window, digit)
	if len(e.window) > e.size {
		e.window = e.window[1:]
	}
}

// SetTickDuration stores the contract duration (in ticks) that callers
// attach to suggestions built from this engine's matches. Detection logic
// does not consume it.
func (e *Engine) SetTickDuration(n int) {
	if n > 0 {
		e.tickDuration = n
	}
}

// TickDuration returns the configured contract duration in ticks.
func (e *Engine) TickDuration() int {
	return e.tickDuration
}

// Analyze runs every detector over the current window and returns all
// matches sorted by descending confidence. Windows shorter than 10 digits
// yield no matches.
func (e *Engine) Analyze() []domain.PatternMatch {
	if len(e.window) < minDigits {
		return nil
	}

	var matches []domain.PatternMatch
	detectors := []func() *domain.PatternMatch{
		e.detectClustering,
		e.detectClusterRejection,
		e.detectAlternatingCycle,
		e.detectEvenOddImbalance,
		e.detectExtremeCompression,
		e.detectMicroRepetition,
	}
	for _, detect := range detectors {
		if m := detect(); m != nil {
			matches = append(matches, *m)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})
	return matches
}

// detectClustering counts consecutive trailing repeats of the last digit,
// scanning backward at most 10 positions. Fires at 2 or more repeats with
// confidence 60 + 10 per repeat.
func (e *Engine) detectClustering() *domain.PatternMatch {
	n := len(e.window)
	last := e.window[n-1]

	repeats := 0
	for i := n - 2; i >= 0 && i >= n-1-10; i-- {
		if e.window[i] != last {
			break
		}
		repeats++
	}
	if repeats < 2 {
		return nil
	}

	confidence := math.Min(100, 60+10*float64(repeats))
	return &domain.PatternMatch{
		Type:        domain.PatternClustering,
		Strength:    math.Min(100, float64(repeats)/5*100),
		Confidence:  confidence,
		Description: fmt.Sprintf("digit %d repeated %d times in a row", last, repeats+1),
		Suggestion:  fmt.Sprintf("cluster on %d may continue", last),
		Metadata: map[string]string{
			"digit":   fmt.Sprintf("%d", last),
			"repeats": fmt.Sprintf("%d", repeats),
		},
	}
}

// detectClusterRejection fires when the second-to-last digit dominated the
// last 20 samples (4+ occurrences) and the newest digit broke away from it.
func (e *Engine) detectClusterRejection() *domain.PatternMatch {
	n := len(e.window)
	prev := e.window[n-2]
	last := e.window[n-1]
	if last == prev {
		return nil
	}

	start := n - 20
	if start < 0 {
		start = 0
	}
	count := 0
	for _, d := range e.window[start:] {
		if d == prev {
			count++
		}
	}
	if count < 4 {
		return nil
	}

	confidence := math.Min(100, 50+5*float64(count))
	return &domain.PatternMatch{
		Type:        domain.PatternClusterRejection,
		Strength:    math.Min(100, float64(count)/8*100),
		Confidence:  confidence,
		Description: fmt.Sprintf("breakout from dominant digit %d (%d of last 20)", prev, count),
		Suggestion:  fmt.Sprintf("stream rejecting %d", prev),
		Metadata: map[string]string{
			"rejectedDigit": fmt.Sprintf("%d", prev),
			"occurrences":   fmt.Sprintf("%d", count),
		},
	}
}

// detectAlternatingCycle fires on an exact A B A B in the last four digits
// with A different from B.
func (e *Engine) detectAlternatingCycle() *domain.PatternMatch {
	n := len(e.window)
	if n < 4 {
		return nil
	}
	a, b := e.window[n-4], e.window[n-3]
	if a == b || e.window[n-2] != a || e.window[n-1] != b {
		return nil
	}

	return &domain.PatternMatch{
		Type:        domain.PatternAlternatingCycle,
		Strength:    60,
		Confidence:  60,
		Description: fmt.Sprintf("alternating cycle %d/%d over last 4 digits", a, b),
		Suggestion:  "informational only, no directional edge",
		Metadata: map[string]string{
			"cycle": fmt.Sprintf("%d,%d", a, b),
		},
	}
}

// detectEvenOddImbalance fires when the even/odd split over the last 30
// digits deviates at least 40% from 50/50 (even share outside 30-70%).
func (e *Engine) detectEvenOddImbalance() *domain.PatternMatch {
	n := len(e.window)
	start := n - 30
	if start < 0 {
		start = 0
	}
	sample := e.window[start:]

	even := 0
	for _, d := range sample {
		if d%2 == 0 {
			even++
		}
	}
	evenPct := float64(even) / float64(len(sample)) * 100
	deviation := math.Abs(evenPct - 50)
	if deviation < 20 {
		return nil
	}

	dominant := "even"
	if evenPct < 50 {
		dominant = "odd"
	}
	confidence := math.Min(100, 40+1.2*deviation)
	return &domain.PatternMatch{
		Type:        domain.PatternEvenOddImbalance,
		Strength:    math.Min(100, deviation*2),
		Confidence:  confidence,
		Description: fmt.Sprintf("%s dominance at %.0f%% over last %d digits", dominant, math.Max(evenPct, 100-evenPct), len(sample)),
		Suggestion:  "imbalance tends to revert",
		Metadata: map[string]string{
			"dominant": dominant,
			"evenPct":  fmt.Sprintf("%.1f", evenPct),
		},
	}
}

// detectExtremeCompression fires when 3 or more of the last 10 digits fall
// in the low zone {0,1} or the high zone {8,9}.
func (e *Engine) detectExtremeCompression() *domain.PatternMatch {
	n := len(e.window)
	sample := e.window[n-10:]

	low, high := 0, 0
	for _, d := range sample {
		switch {
		case d <= 1:
			low++
		case d >= 8:
			high++
		}
	}

	zone := ""
	count := 0
	switch {
	case low >= 3 && low >= high:
		zone, count = "low", low
	case high >= 3:
		zone, count = "high", high
	default:
		return nil
	}

	confidence := math.Min(100, 50+8*float64(count))
	return &domain.PatternMatch{
		Type:        domain.PatternExtremeCompression,
		Strength:    math.Min(100, float64(count)*10),
		Confidence:  confidence,
		Description: fmt.Sprintf("%d of last 10 digits in %s zone", count, zone),
		Suggestion:  "compressed extremes favor over/under contracts",
		Metadata: map[string]string{
			"zone":  zone,
			"count": fmt.Sprintf("%d", count),
		},
	}
}

// detectMicroRepetition fires when the last six digits are an exact
// back-to-back repeat of a 3-digit series (ABC ABC).
func (e *Engine) detectMicroRepetition() *domain.PatternMatch {
	n := len(e.window)
	if n < 6 {
		return nil
	}
	s := e.window[n-6:]
	if s[0] != s[3] || s[1] != s[4] || s[2] != s[5] {
		return nil
	}

	return &domain.PatternMatch{
		Type:        domain.PatternMicroRepetition,
		Strength:    85,
		Confidence:  85,
		Description: fmt.Sprintf("series %d-%d-%d repeated back to back", s[0], s[1], s[2]),
		Suggestion:  fmt.Sprintf("series endpoint %d is the anchor digit", s[2]),
		Metadata: map[string]string{
			"series": fmt.Sprintf("%d,%d,%d", s[0], s[1], s[2]),
		},
	}
}
