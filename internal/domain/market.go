package domain

import "time"

// MarketState is the heuristic regime label for an instrument's recent digit
// output.
type MarketState string

const (
	MarketStateRandom       MarketState = "random"
	MarketStateTransitional MarketState = "transitional"
	MarketStateStructured   MarketState = "structured"
)

// StateForScore maps a structure score to its regime label: >70 structured,
// >40 transitional, else random.
func StateForScore(score float64) MarketState {
	switch {
	case score > 70:
		return MarketStateStructured
	case score > 40:
		return MarketStateTransitional
	default:
		return MarketStateRandom
	}
}

// MarketScore is the per-instrument output of the intelligence scanner.
type MarketScore struct {
	Symbol          string      `json:"symbol"`
	Score           float64     `json:"score"` // 0-100
	State           MarketState `json:"state"`
	Stability       float64     `json:"stability"`
	PatternStrength float64     `json:"pattern_strength"`
	NoiseRatio      float64     `json:"noise_ratio"`
	LastDigit       int         `json:"last_digit"`
	Timestamp       time.Time   `json:"timestamp"`
}
