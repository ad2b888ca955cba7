// Package feed adapts the raw broker tick stream into domain TickEvents:
// it derives the settlement digit from each quote, de-duplicates repeated
// deliveries per symbol, and supports warm-starting analyzers from tick
// history.
package feed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/digitbot/internal/domain"
	"github.com/alanyoungcy/digitbot/internal/platform/deriv"
)

// Subscriber is the slice of the broker client the feed needs.
type Subscriber interface {
	SubscribeTicks(ctx context.Context, symbol string, h deriv.TickHandler) (func(), error)
	TickHistory(ctx context.Context, symbol string, count int) ([]float64, []int64, error)
}

// Handler receives de-duplicated tick events in arrival order.
type Handler func(domain.TickEvent)

// TickFeed fans broker quotes out to analyzer callbacks as TickEvents.
type TickFeed struct {
	client Subscriber
	logger *slog.Logger
}

// New creates a TickFeed over the given broker client.
func New(client Subscriber, logger *slog.Logger) *TickFeed {
	return &TickFeed{
		client: client,
		logger: logger.With(slog.String("component", "tick_feed")),
	}
}

// Subscribe registers fn for the symbol's tick stream and returns a release
// function. Duplicate deliveries (same epoch, as happens around reconnects)
// are dropped before fn sees them. Dedup state is per subscription so
// multiple consumers of one symbol each see the full stream.
func (f *TickFeed) Subscribe(ctx context.Context, symbol string, fn Handler) (func(), error) {
	var mu sync.Mutex
	lastEpoch := int64(0)

	release, err := f.client.SubscribeTicks(ctx, symbol, func(quote float64, epoch int64) {
		mu.Lock()
		if epoch <= lastEpoch {
			mu.Unlock()
			return
		}
		lastEpoch = epoch
		mu.Unlock()

		fn(domain.TickEvent{
			Symbol: symbol,
			Price:  quote,
			Digit:  domain.LastDigit(quote),
			Epoch:  epoch,
		})
	})
	if err != nil {
		return nil, err
	}
	return release, nil
}

// WarmStart fetches the most recent count quotes for a symbol and returns
// them as TickEvents, oldest first. Used to seed analyzer windows before the
// live stream begins.
func (f *TickFeed) WarmStart(ctx context.Context, symbol string, count int) ([]domain.TickEvent, error) {
	prices, times, err := f.client.TickHistory(ctx, symbol, count)
	if err != nil {
		return nil, err
	}

	events := make([]domain.TickEvent, 0, len(prices))
	for i, p := range prices {
		var epoch int64
		if i < len(times) {
			epoch = times[i]
		}
		events = append(events, domain.TickEvent{
			Symbol: symbol,
			Price:  p,
			Digit:  domain.LastDigit(p),
			Epoch:  epoch,
		})
	}

	f.logger.Debug("warm start",
		slog.String("symbol", symbol),
		slog.Int("ticks", len(events)),
	)
	return events, nil
}
