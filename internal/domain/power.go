package domain

// PowerSnapshot is the windowed frequency view of the recent digit stream.
// It is recomputed wholesale on every new digit and immutable once returned;
// concurrent readers always see a single point-in-time copy.
type PowerSnapshot struct {
	// Category percentages over the primary window. Even+Odd and Under+Over
	// each sum to 100 (within float rounding) once any data is present.
	EvenPower  float64
	OddPower   float64
	UnderPower float64 // digits 0-4
	OverPower  float64 // digits 5-9

	// DigitPowers holds the frequency percentage of each digit 0-9 over the
	// primary window. Values sum to ~100.
	DigitPowers [10]float64

	// Extrema of DigitPowers. First index wins ties, so digit 0 is the
	// default until a strictly stronger/weaker digit appears.
	StrongestDigit int
	WeakestDigit   int

	// Trend flags: true when the category's rate over the short window
	// exceeds its rate over the long window.
	EvenRising  bool
	OddRising   bool
	UnderRising bool
	OverRising  bool

	// Samples is the number of digits currently in the primary window.
	Samples int
}
