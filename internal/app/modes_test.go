package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/alanyoungcy/digitbot/internal/config"
	"github.com/alanyoungcy/digitbot/internal/domain"
)

type fakeBus struct {
	events  chan []byte
	channel string
	subErr  error
}

func (b *fakeBus) Publish(context.Context, string, []byte) error { return nil }

func (b *fakeBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	b.channel = channel
	return b.events, b.subErr
}

func TestRelayTradesLogsBusEvents(t *testing.T) {
	var buf bytes.Buffer
	a := New(&config.Config{}, slog.New(slog.NewTextHandler(&buf, nil)))

	rec := domain.TradeRecord{
		SessionID:    "s-9",
		ContractType: domain.ContractDigitOver,
		Stake:        0.35,
		Profit:       0.3,
		IsWin:        true,
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}

	events := make(chan []byte, 2)
	events <- payload
	events <- []byte("{broken")
	close(events)

	bus := &fakeBus{events: events}
	if err := a.relayTrades(context.Background(), &Dependencies{SignalBus: bus}); err != nil {
		t.Fatalf("relayTrades: %v", err)
	}

	if bus.channel != tradeChannel {
		t.Errorf("subscribed channel = %q, want %q", bus.channel, tradeChannel)
	}
	out := buf.String()
	if !strings.Contains(out, "trade settled elsewhere") || !strings.Contains(out, "s-9") {
		t.Errorf("log output missing relayed trade: %s", out)
	}
	if !strings.Contains(out, "malformed") {
		t.Errorf("log output missing malformed-event warning: %s", out)
	}
}

func TestRelayTradesWithoutBus(t *testing.T) {
	a := New(&config.Config{}, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	if err := a.relayTrades(context.Background(), &Dependencies{}); err != nil {
		t.Errorf("relayTrades without bus = %v, want nil", err)
	}
}

func TestRelayTradesSubscribeError(t *testing.T) {
	a := New(&config.Config{}, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	wantErr := errors.New("redis down")
	bus := &fakeBus{subErr: wantErr}

	if err := a.relayTrades(context.Background(), &Dependencies{SignalBus: bus}); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want wrapped %v", err, wantErr)
	}
}
