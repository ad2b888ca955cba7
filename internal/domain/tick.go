package domain

import (
	"strconv"
	"time"
)

// TickEvent is a single quote for an instrument, as delivered by the tick
// feed. Immutable once produced; all analyzers consume copies.
type TickEvent struct {
	Symbol string
	Price  float64
	Digit  int
	Epoch  int64
}

// Time returns the tick's epoch as a time.Time.
func (t TickEvent) Time() time.Time {
	return time.Unix(t.Epoch, 0).UTC()
}

// LastDigit derives the settlement digit from a quote: the last fractional
// decimal digit of the price, or floor(price) mod 10 when the quote has no
// fractional part. Digit contracts settle on this value.
func LastDigit(price float64) int {
	s := strconv.FormatFloat(price, 'f', -1, 64)
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if c >= '0' && c <= '9' {
			return int(c - '0')
		}
	}
	return 0
}
