package feed

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alanyoungcy/digitbot/internal/domain"
	"github.com/alanyoungcy/digitbot/internal/platform/deriv"
)

// fakeBroker fans each injected quote out to every registered handler, the
// way the websocket client does for refcounted symbol subscriptions.
type fakeBroker struct {
	handlers map[string][]deriv.TickHandler
	history  []float64
	epochs   []int64
	released int
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{handlers: make(map[string][]deriv.TickHandler)}
}

func (f *fakeBroker) SubscribeTicks(_ context.Context, symbol string, h deriv.TickHandler) (func(), error) {
	f.handlers[symbol] = append(f.handlers[symbol], h)
	return func() { f.released++ }, nil
}

func (f *fakeBroker) TickHistory(_ context.Context, _ string, _ int) ([]float64, []int64, error) {
	return f.history, f.epochs, nil
}

func (f *fakeBroker) tick(symbol string, quote float64, epoch int64) {
	for _, h := range f.handlers[symbol] {
		h(quote, epoch)
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSubscribeDerivesDigits(t *testing.T) {
	broker := newFakeBroker()
	f := New(broker, testLogger())

	var events []domain.TickEvent
	release, err := f.Subscribe(context.Background(), "R_100", func(ev domain.TickEvent) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer release()

	broker.tick("R_100", 8572.34, 100)
	broker.tick("R_100", 8572.39, 101)

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Digit != 4 || events[1].Digit != 9 {
		t.Errorf("digits = %d, %d, want 4, 9", events[0].Digit, events[1].Digit)
	}
	if events[0].Symbol != "R_100" {
		t.Errorf("symbol = %s, want R_100", events[0].Symbol)
	}
}

func TestSubscribeDropsDuplicateEpochs(t *testing.T) {
	broker := newFakeBroker()
	f := New(broker, testLogger())

	var events []domain.TickEvent
	release, err := f.Subscribe(context.Background(), "R_50", func(ev domain.TickEvent) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer release()

	broker.tick("R_50", 123.4, 10)
	broker.tick("R_50", 123.4, 10) // replayed around a reconnect
	broker.tick("R_50", 123.5, 9)  // stale
	broker.tick("R_50", 123.6, 11)

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Epoch != 10 || events[1].Epoch != 11 {
		t.Errorf("epochs = %d, %d, want 10, 11", events[0].Epoch, events[1].Epoch)
	}
}

func TestDedupIsPerSubscription(t *testing.T) {
	broker := newFakeBroker()
	f := New(broker, testLogger())

	countA, countB := 0, 0
	relA, err := f.Subscribe(context.Background(), "R_25", func(domain.TickEvent) { countA++ })
	if err != nil {
		t.Fatalf("Subscribe A: %v", err)
	}
	defer relA()
	relB, err := f.Subscribe(context.Background(), "R_25", func(domain.TickEvent) { countB++ })
	if err != nil {
		t.Fatalf("Subscribe B: %v", err)
	}
	defer relB()

	broker.tick("R_25", 1.2, 1)
	broker.tick("R_25", 1.3, 2)

	if countA != 2 || countB != 2 {
		t.Errorf("counts = %d/%d, want both consumers to see every tick", countA, countB)
	}
}

func TestWarmStartOldestFirst(t *testing.T) {
	broker := newFakeBroker()
	broker.history = []float64{100.1, 100.2, 100.3}
	broker.epochs = []int64{1, 2, 3}
	f := New(broker, testLogger())

	events, err := f.WarmStart(context.Background(), "R_10", 3)
	if err != nil {
		t.Fatalf("WarmStart: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for i, want := range []int{1, 2, 3} {
		if events[i].Digit != want {
			t.Errorf("event %d digit = %d, want %d", i, events[i].Digit, want)
		}
		if events[i].Epoch != int64(want) {
			t.Errorf("event %d epoch = %d, want %d", i, events[i].Epoch, want)
		}
	}
}
