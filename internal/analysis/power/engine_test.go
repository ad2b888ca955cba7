package power

import (
	"math"
	"testing"
)

func TestCategoryPowersAreComplementary(t *testing.T) {
	e := NewEngine()
	digits := []int{3, 7, 0, 8, 4, 4, 9, 2, 5, 1, 6, 6, 3, 0, 7}

	var snapEvenOdd, snapUnderOver float64
	for _, d := range digits {
		snap := e.AddDigit(d)
		snapEvenOdd = snap.EvenPower + snap.OddPower
		snapUnderOver = snap.UnderPower + snap.OverPower
	}

	if math.Abs(snapEvenOdd-100) > 1e-9 {
		t.Errorf("EvenPower+OddPower = %v, want 100", snapEvenOdd)
	}
	if math.Abs(snapUnderOver-100) > 1e-9 {
		t.Errorf("UnderPower+OverPower = %v, want 100", snapUnderOver)
	}
}

func TestDigitPowersSumToHundred(t *testing.T) {
	e := NewEngine()
	for _, d := range []int{5, 5, 2, 9, 0, 1, 8, 8, 3, 6} {
		e.AddDigit(d)
	}

	sum := 0.0
	for _, p := range e.Snapshot().DigitPowers {
		sum += p
	}
	if math.Abs(sum-100) > 1e-9 {
		t.Errorf("sum of DigitPowers = %v, want 100", sum)
	}
}

func TestExtremaFirstIndexWinsTies(t *testing.T) {
	e := NewEngine()
	// 1 and 2 tie at 40%, 3 at 20%; every other digit ties at 0%.
	var snap = e.AddDigit(1)
	for _, d := range []int{1, 2, 2, 3} {
		snap = e.AddDigit(d)
	}

	if snap.StrongestDigit != 1 {
		t.Errorf("StrongestDigit = %d, want 1", snap.StrongestDigit)
	}
	if snap.WeakestDigit != 0 {
		t.Errorf("WeakestDigit = %d, want 0", snap.WeakestDigit)
	}
}

func TestOutOfRangeDigitIgnored(t *testing.T) {
	e := NewEngine()
	before := e.AddDigit(5)

	for _, bad := range []int{-1, 10, 42} {
		after := e.AddDigit(bad)
		if after != before {
			t.Errorf("AddDigit(%d) changed snapshot: got %+v, want %+v", bad, after, before)
		}
	}
	if got := e.Snapshot().Samples; got != 1 {
		t.Errorf("Samples = %d, want 1", got)
	}
}

func TestEmptyEngineSnapshot(t *testing.T) {
	e := NewEngine()
	snap := e.Snapshot()

	if snap.Samples != 0 {
		t.Errorf("Samples = %d, want 0", snap.Samples)
	}
	if snap.EvenPower != 0 || snap.OddPower != 0 {
		t.Errorf("empty engine has nonzero powers: even=%v odd=%v", snap.EvenPower, snap.OddPower)
	}
	if snap.StrongestDigit != 0 || snap.WeakestDigit != 0 {
		t.Errorf("empty engine extrema = %d/%d, want 0/0", snap.StrongestDigit, snap.WeakestDigit)
	}
}

func TestPrimaryWindowEvicts(t *testing.T) {
	e := NewEngine()
	// 30 odd digits, then 25 even: the primary window holds only the evens.
	for i := 0; i < 30; i++ {
		e.AddDigit(7)
	}
	for i := 0; i < 25; i++ {
		e.AddDigit(4)
	}

	snap := e.Snapshot()
	if snap.Samples != 25 {
		t.Errorf("Samples = %d, want 25", snap.Samples)
	}
	if snap.EvenPower != 100 {
		t.Errorf("EvenPower = %v, want 100", snap.EvenPower)
	}
}

func TestTrendComparesShortAgainstLongWindow(t *testing.T) {
	e := NewEngine()
	// 35 evens then 15 odds: the short window is pure odd while the long
	// window still remembers the evens.
	for i := 0; i < 35; i++ {
		e.AddDigit(2)
	}
	var snap = e.Snapshot()
	for i := 0; i < 15; i++ {
		snap = e.AddDigit(3)
	}

	if !snap.OddRising {
		t.Error("OddRising = false, want true after a pure-odd short window")
	}
	if snap.EvenRising {
		t.Error("EvenRising = true, want false after a pure-odd short window")
	}
}
