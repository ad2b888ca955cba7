package pattern

import (
	"reflect"
	"testing"

	"github.com/alanyoungcy/digitbot/internal/domain"
)

func findMatch(matches []domain.PatternMatch, typ domain.PatternType) *domain.PatternMatch {
	for i := range matches {
		if matches[i].Type == typ {
			return &matches[i]
		}
	}
	return nil
}

func TestAnalyzeRequiresTenDigits(t *testing.T) {
	e := NewEngine(100)
	for _, d := range []int{3, 3, 3, 3, 1, 1, 1, 1, 5} {
		e.Push(d)
	}

	if got := e.Analyze(); got != nil {
		t.Errorf("Analyze with 9 digits = %v, want nil", got)
	}
}

func TestDetectClustering(t *testing.T) {
	e := NewEngine(100)
	e.UpdateWindow([]int{1, 2, 3, 4, 5, 6, 7, 5, 5, 5})

	m := findMatch(e.Analyze(), domain.PatternClustering)
	if m == nil {
		t.Fatal("clustering not detected")
	}
	if m.Metadata["digit"] != "5" {
		t.Errorf("digit = %q, want %q", m.Metadata["digit"], "5")
	}
	if m.Metadata["repeats"] != "2" {
		t.Errorf("repeats = %q, want %q", m.Metadata["repeats"], "2")
	}
	if m.Confidence != 80 {
		t.Errorf("confidence = %v, want 80", m.Confidence)
	}
}

func TestDetectClusterRejection(t *testing.T) {
	e := NewEngine(100)
	// Digit 1 dominates the tail, then 5 breaks away.
	e.UpdateWindow([]int{7, 3, 3, 3, 3, 1, 1, 1, 1, 5})

	m := findMatch(e.Analyze(), domain.PatternClusterRejection)
	if m == nil {
		t.Fatal("cluster rejection not detected")
	}
	if m.Metadata["rejectedDigit"] != "1" {
		t.Errorf("rejectedDigit = %q, want %q", m.Metadata["rejectedDigit"], "1")
	}
	if m.Metadata["occurrences"] != "4" {
		t.Errorf("occurrences = %q, want %q", m.Metadata["occurrences"], "4")
	}
	if m.Confidence != 70 {
		t.Errorf("confidence = %v, want 70", m.Confidence)
	}
}

func TestDetectAlternatingCycle(t *testing.T) {
	e := NewEngine(100)
	e.UpdateWindow([]int{5, 0, 9, 4, 8, 6, 2, 7, 2, 7})

	m := findMatch(e.Analyze(), domain.PatternAlternatingCycle)
	if m == nil {
		t.Fatal("alternating cycle not detected")
	}
	if m.Metadata["cycle"] != "2,7" {
		t.Errorf("cycle = %q, want %q", m.Metadata["cycle"], "2,7")
	}
	if m.Confidence != 60 {
		t.Errorf("confidence = %v, want 60", m.Confidence)
	}
}

func TestDetectEvenOddImbalance(t *testing.T) {
	e := NewEngine(100)
	// 8 evens of 10 is an 80% even share, 30% above the midpoint.
	e.UpdateWindow([]int{2, 4, 6, 8, 0, 2, 4, 6, 1, 3})

	m := findMatch(e.Analyze(), domain.PatternEvenOddImbalance)
	if m == nil {
		t.Fatal("even/odd imbalance not detected")
	}
	if m.Metadata["dominant"] != "even" {
		t.Errorf("dominant = %q, want %q", m.Metadata["dominant"], "even")
	}
	if m.Confidence != 76 {
		t.Errorf("confidence = %v, want 76", m.Confidence)
	}
}

func TestImbalanceBelowThresholdIsSilent(t *testing.T) {
	e := NewEngine(100)
	// 6 evens of 10 deviates only 10% from the midpoint.
	e.UpdateWindow([]int{2, 4, 6, 8, 0, 2, 1, 3, 5, 7})

	if m := findMatch(e.Analyze(), domain.PatternEvenOddImbalance); m != nil {
		t.Errorf("imbalance detected at 60%% even share: %+v", m)
	}
}

func TestDetectExtremeCompression(t *testing.T) {
	e := NewEngine(100)
	e.UpdateWindow([]int{9, 8, 4, 9, 5, 6, 8, 3, 2, 9})

	m := findMatch(e.Analyze(), domain.PatternExtremeCompression)
	if m == nil {
		t.Fatal("extreme compression not detected")
	}
	if m.Metadata["zone"] != "high" {
		t.Errorf("zone = %q, want %q", m.Metadata["zone"], "high")
	}
	if m.Metadata["count"] != "5" {
		t.Errorf("count = %q, want %q", m.Metadata["count"], "5")
	}
	if m.Confidence != 90 {
		t.Errorf("confidence = %v, want 90", m.Confidence)
	}
}

func TestDetectMicroRepetition(t *testing.T) {
	e := NewEngine(100)
	e.UpdateWindow([]int{0, 5, 0, 5, 4, 8, 2, 4, 8, 2})

	m := findMatch(e.Analyze(), domain.PatternMicroRepetition)
	if m == nil {
		t.Fatal("micro repetition not detected")
	}
	if m.Metadata["series"] != "4,8,2" {
		t.Errorf("series = %q, want %q", m.Metadata["series"], "4,8,2")
	}
	if m.Confidence != 85 {
		t.Errorf("confidence = %v, want 85", m.Confidence)
	}
}

func TestMatchesSortedByConfidence(t *testing.T) {
	e := NewEngine(100)
	e.UpdateWindow([]int{7, 3, 3, 3, 3, 1, 1, 1, 1, 5})

	matches := e.Analyze()
	if len(matches) < 2 {
		t.Fatalf("want multiple matches, got %d", len(matches))
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Confidence > matches[i-1].Confidence {
			t.Errorf("matches not sorted: %v before %v",
				matches[i-1].Confidence, matches[i].Confidence)
		}
	}
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	window := []int{9, 8, 4, 9, 5, 6, 8, 3, 2, 9}

	a := NewEngine(100)
	b := NewEngine(100)
	a.UpdateWindow(window)
	b.UpdateWindow(window)

	if got, want := a.Analyze(), b.Analyze(); !reflect.DeepEqual(got, want) {
		t.Errorf("same window produced different matches:\n%v\n%v", got, want)
	}
}

func TestPushEvictsOldest(t *testing.T) {
	e := NewEngine(10)
	for d := 0; d < 12; d++ {
		e.Push(d % 10)
	}
	// Window is now [2..9,0,1]: no trailing cluster.
	if m := findMatch(e.Analyze(), domain.PatternClustering); m != nil {
		t.Errorf("unexpected clustering after eviction: %+v", m)
	}
}
