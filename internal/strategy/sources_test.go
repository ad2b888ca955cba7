package strategy

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alanyoungcy/digitbot/internal/domain"
	"github.com/alanyoungcy/digitbot/internal/feed"
)

// fakeTicks serves a canned warm-start history and fans live ticks out to
// every subscriber.
type fakeTicks struct {
	history  []domain.TickEvent
	handlers map[string][]feed.Handler
	released int
}

func newFakeTicks(digits ...int) *fakeTicks {
	f := &fakeTicks{handlers: make(map[string][]feed.Handler)}
	for i, d := range digits {
		f.history = append(f.history, domain.TickEvent{Digit: d, Epoch: int64(i + 1)})
	}
	return f
}

func (f *fakeTicks) Subscribe(_ context.Context, symbol string, fn feed.Handler) (func(), error) {
	f.handlers[symbol] = append(f.handlers[symbol], fn)
	return func() { f.released++ }, nil
}

func (f *fakeTicks) WarmStart(_ context.Context, _ string, _ int) ([]domain.TickEvent, error) {
	return f.history, nil
}

func (f *fakeTicks) tick(symbol string, digit int, epoch int64) {
	for _, fn := range f.handlers[symbol] {
		fn(domain.TickEvent{Symbol: symbol, Digit: digit, Epoch: epoch})
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewPresetSourceRejectsUnknownPreset(t *testing.T) {
	if _, err := NewPresetSource("martingale_madness", newFakeTicks(), testLogger()); err == nil {
		t.Error("unknown preset accepted, want error")
	}
}

func TestPresetCurrentRequiresWatch(t *testing.T) {
	p, err := NewPresetSource(PresetDiffers, newFakeTicks(), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Current(context.Background(), "R_100"); err == nil {
		t.Error("Current on unwatched symbol succeeded, want error")
	}
}

func TestPresetCurrentNilBelowMinSamples(t *testing.T) {
	src := newFakeTicks(1, 2, 3, 4, 5)
	p, err := NewPresetSource(PresetDiffers, src, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Watch(context.Background(), "R_100"); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	sig, err := p.Current(context.Background(), "R_100")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if sig != nil {
		t.Errorf("signal = %+v, want nil below minimum samples", sig)
	}
}

func TestDiffersTargetsAbsentDigit(t *testing.T) {
	// Digit 0 never appears: a Differs contract on it is maximally safe.
	digits := make([]int, 0, 20)
	for i := 0; i < 20; i++ {
		digits = append(digits, 1+i%9)
	}
	src := newFakeTicks(digits...)
	p, err := NewPresetSource(PresetDiffers, src, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Watch(context.Background(), "R_100"); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	sig, err := p.Current(context.Background(), "R_100")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if sig == nil {
		t.Fatal("no signal, want differs on digit 0")
	}
	if sig.ContractType != domain.ContractDigitDiff || sig.Barrier != "0" {
		t.Errorf("signal = %s/%s, want DIGITDIFF/0", sig.ContractType, sig.Barrier)
	}
	if sig.Confidence != 100 {
		t.Errorf("confidence = %v, want 100 for an absent digit", sig.Confidence)
	}
	if !sig.Confirmed() {
		t.Errorf("status = %s, want confirmed", sig.EntryStatus)
	}
}

func TestSuperDiffersDemandsRareDigit(t *testing.T) {
	// Every digit appears at 10%: no digit is rare enough to trade.
	digits := make([]int, 0, 30)
	for i := 0; i < 30; i++ {
		digits = append(digits, i%10)
	}
	src := newFakeTicks(digits...)
	p, err := NewPresetSource(PresetSuperDiffers, src, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Watch(context.Background(), "R_100"); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	sig, err := p.Current(context.Background(), "R_100")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if sig != nil {
		t.Errorf("signal = %+v, want nil when no digit is rare", sig)
	}
}

func TestEvenOddPresetTradesRisingDominantSide(t *testing.T) {
	// Old odds, recent evens: even is dominant in the primary window and
	// rising in the short one.
	digits := make([]int, 0, 50)
	for i := 0; i < 35; i++ {
		digits = append(digits, 7)
	}
	for i := 0; i < 15; i++ {
		digits = append(digits, 4)
	}
	src := newFakeTicks(digits...)
	p, err := NewPresetSource(PresetEvenOdd, src, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Watch(context.Background(), "R_50"); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	sig, err := p.Current(context.Background(), "R_50")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if sig == nil {
		t.Fatal("no signal, want even contract")
	}
	if sig.ContractType != domain.ContractDigitEven {
		t.Errorf("contract = %s, want %s", sig.ContractType, domain.ContractDigitEven)
	}
	if !sig.Confirmed() {
		t.Errorf("status = %s (confidence %v), want confirmed", sig.EntryStatus, sig.Confidence)
	}
}

func TestPresetUnwatchReleasesSubscription(t *testing.T) {
	src := newFakeTicks(1, 2, 3)
	p, err := NewPresetSource(PresetDiffers, src, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Watch(context.Background(), "R_10"); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	p.Unwatch("R_10")
	if src.released != 1 {
		t.Errorf("released = %d, want 1", src.released)
	}
	if _, err := p.Current(context.Background(), "R_10"); err == nil {
		t.Error("Current after Unwatch succeeded, want error")
	}
}

func TestAdaptiveSourceLiveSignal(t *testing.T) {
	// High-zone compression: five of the last ten digits at 8 or 9.
	src := newFakeTicks(9, 8, 4, 9, 5, 6, 8, 3, 2, 9)
	a := NewAdaptiveSource(src, 100, 5, testLogger())

	if err := a.Watch(context.Background(), "R_100"); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	sig, err := a.Current(context.Background(), "R_100")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if sig == nil {
		t.Fatal("no signal, want under contract from compression")
	}
	if sig.ContractType != domain.ContractDigitUnder || sig.Barrier != "7" {
		t.Errorf("signal = %s/%s, want DIGITUNDER/7", sig.ContractType, sig.Barrier)
	}
	if !sig.Confirmed() {
		t.Errorf("status = %s (confidence %v), want confirmed", sig.EntryStatus, sig.Confidence)
	}

	// Live ticks shift the window; a fresh evaluation sees the new tail.
	for i, d := range []int{0, 1, 0, 1} {
		src.tick("R_100", d, int64(100+i))
	}
	sig, err = a.Current(context.Background(), "R_100")
	if err != nil {
		t.Fatalf("Current after ticks: %v", err)
	}
	if sig == nil {
		t.Fatal("no signal after live ticks")
	}
	if sig.Symbol != "R_100" {
		t.Errorf("symbol = %s, want R_100", sig.Symbol)
	}
}
