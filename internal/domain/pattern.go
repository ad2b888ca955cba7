package domain

// PatternType enumerates the statistical digit patterns the pattern engine
// can detect.
type PatternType string

const (
	PatternClustering         PatternType = "clustering"
	PatternClusterRejection   PatternType = "cluster_rejection"
	PatternAlternatingCycle   PatternType = "alternating_cycle"
	PatternEvenOddImbalance   PatternType = "even_odd_imbalance"
	PatternExtremeCompression PatternType = "extreme_compression"
	PatternMicroRepetition    PatternType = "micro_repetition"
)

// PatternMatch is one detected pattern in the current window. Ephemeral:
// recomputed on every tick, never stored.
type PatternMatch struct {
	Type        PatternType
	Strength    float64 // 0-100
	Confidence  float64 // 0-100
	Description string
	Suggestion  string
	// Metadata carries kind-specific values such as the rejected digit, the
	// alternating cycle pair, or the compression zone.
	Metadata map[string]string
}
