// Package power computes windowed percentage "power" scores over the
// last-digit stream of one instrument: even/odd and under/over category
// rates, per-digit frequencies, and short-vs-long trend direction.
package power

import (
	"github.com/alanyoungcy/digitbot/internal/domain"
)

// Window capacities. The 25-window is the primary window for percentages;
// trends compare the 15-window rate against the 50-window rate.
const (
	shortWindow   = 15
	primaryWindow = 25
	longWindow    = 50
	fullWindow    = 100
)

// ring is a fixed-capacity digit buffer that evicts the oldest element on
// overflow.
type ring struct {
	buf []int
	cap int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]int, 0, capacity), cap: capacity}
}

func (r *ring) push(d int) {
	if len(r.buf) == r.cap {
		copy(r.buf, r.buf[1:])
		r.buf = r.buf[:len(r.buf)-1]
	}
	r.buf = append(r.buf, d)
}

// rate returns the fraction of buffered digits matching pred, 0 when empty.
func (r *ring) rate(pred func(int) bool) float64 {
	if len(r.buf) == 0 {
		return 0
	}
	n := 0
	for _, d := range r.buf {
		if pred(d) {
			n++
		}
	}
	return float64(n) / float64(len(r.buf))
}

// Engine maintains the sliding digit windows for one instrument. One engine
// instance per live monitored symbol; not safe for concurrent use, callers
// serialize through the tick callback.
type Engine struct {
	short   *ring
	primary *ring
	long    *ring
	full    *ring

	last domain.PowerSnapshot
}

// NewEngine returns an empty engine.
func NewEngine() *Engine {
	return &Engine{
		short:   newRing(shortWindow),
		primary: newRing(primaryWindow),
		long:    newRing(longWindow),
		full:    newRing(fullWindow),
	}
}

func isEven(d int) bool  { return d%2 == 0 }
func isOdd(d int) bool   { return d%2 == 1 }
func isUnder(d int) bool { return d <= 4 }
func isOver(d int) bool  { return d >= 5 }

// AddDigit pushes a digit into every window and returns the recomputed
// snapshot. Digits outside [0,9] are rejected: the sample is ignored and the
// previous snapshot is returned unchanged.
func (e *Engine) AddDigit(digit int) domain.PowerSnapshot {
	if digit < 0 || digit > 9 {
		return e.last
	}

	e.short.push(digit)
	e.primary.push(digit)
	e.long.push(digit)
	e.full.push(digit)

	snap := domain.PowerSnapshot{
		EvenPower:  e.primary.rate(isEven) * 100,
		OddPower:   e.primary.rate(isOdd) * 100,
		UnderPower: e.primary.rate(isUnder) * 100,
		OverPower:  e.primary.rate(isOver) * 100,

		EvenRising:  e.short.rate(isEven) > e.long.rate(isEven),
		OddRising:   e.short.rate(isOdd) > e.long.rate(isOdd),
		UnderRising: e.short.rate(isUnder) > e.long.rate(isUnder),
		OverRising:  e.short.rate(isOver) > e.long.rate(isOver),

		Samples: len(e.primary.buf),
	}

	counts := [10]int{}
	for _, d := range e.primary.buf {
		counts[d]++
	}
	total := len(e.primary.buf)
	for d := 0; d < 10; d++ {
		snap.DigitPowers[d] = float64(counts[d]) / float64(total) * 100
	}

	// First index wins ties: only a strictly better value displaces the
	// current extremum.
	strongest, weakest := 0, 0
	for d := 1; d < 10; d++ {
		if snap.DigitPowers[d] > snap.DigitPowers[strongest] {
			strongest = d
		}
		if snap.DigitPowers[d] < snap.DigitPowers[weakest] {
			weakest = d
		}
	}
	snap.StrongestDigit = strongest
	snap.WeakestDigit = weakest

	e.last = snap
	return snap
}

// Snapshot returns the last computed snapshot. With no data yet, all
// percentages are zero and both extrema default to digit 0.
func (e *Engine) Snapshot() domain.PowerSnapshot {
	return e.last
}
