package trading

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alanyoungcy/digitbot/internal/domain"
)

type execFunc func(ctx context.Context, sig domain.StrategySignal, stake float64) (domain.TradeResult, error)

func (f execFunc) Execute(ctx context.Context, sig domain.StrategySignal, stake float64) (domain.TradeResult, error) {
	return f(ctx, sig, stake)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func confirmedSignal() domain.StrategySignal {
	return domain.StrategySignal{
		ID:           "sig-1",
		Source:       "adaptive",
		Symbol:       "R_100",
		Strategy:     domain.StrategyOverUnder,
		ContractType: domain.ContractDigitOver,
		Barrier:      "2",
		Confidence:   90,
		EntryStatus:  domain.EntryConfirmed,
	}
}

func testConfig() Config {
	return Config{
		Symbol:       "R_100",
		BaseStake:    0.35,
		TargetProfit: 10,
		MaxLoss:      5,
		Balance:      100,
		Martingale:   true,
		Multiplier:   2.1,
		Policy:       PolicyPreset,
		StakeCap:     25,
	}
}

func TestTradeOnceWinUpdatesStats(t *testing.T) {
	exec := execFunc(func(_ context.Context, _ domain.StrategySignal, stake float64) (domain.TradeResult, error) {
		return domain.TradeResult{IsWin: true, Profit: 2.5, BuyPrice: stake}, nil
	})
	m := NewManager(testConfig(), exec, testLogger())

	if _, err := m.TradeOnce(context.Background(), confirmedSignal()); err != nil {
		t.Fatalf("TradeOnce: %v", err)
	}

	stats := m.Stats()
	if stats.Trades != 1 || stats.Wins != 1 || stats.Losses != 0 {
		t.Errorf("stats = %+v, want 1 trade, 1 win", stats)
	}
	if stats.Profit != 2.5 {
		t.Errorf("profit = %v, want 2.5", stats.Profit)
	}
	if stats.HighestWin != 2.5 {
		t.Errorf("highest win = %v, want 2.5", stats.HighestWin)
	}
	if m.Stake() != 0.35 {
		t.Errorf("stake = %v, want base stake after win", m.Stake())
	}
}

func TestLossSubtractsBuyPriceAndEscalatesStake(t *testing.T) {
	exec := execFunc(func(_ context.Context, _ domain.StrategySignal, stake float64) (domain.TradeResult, error) {
		return domain.TradeResult{IsWin: false, BuyPrice: stake}, nil
	})
	m := NewManager(testConfig(), exec, testLogger())

	if _, err := m.TradeOnce(context.Background(), confirmedSignal()); err != nil {
		t.Fatalf("TradeOnce: %v", err)
	}

	stats := m.Stats()
	if stats.Profit != -0.35 {
		t.Errorf("profit = %v, want -0.35", stats.Profit)
	}
	if stats.WorstLoss != -0.35 {
		t.Errorf("worst loss = %v, want -0.35", stats.WorstLoss)
	}
	want := 0.35 * 2.1
	if math.Abs(m.Stake()-want) > 1e-9 {
		t.Errorf("stake = %v, want %v after one loss", m.Stake(), want)
	}
}

func TestMartingaleRespectsPresetCap(t *testing.T) {
	cfg := testConfig()
	cfg.BaseStake = 20
	cfg.StakeCap = 25
	cfg.MaxLoss = 1000
	exec := execFunc(func(_ context.Context, _ domain.StrategySignal, stake float64) (domain.TradeResult, error) {
		return domain.TradeResult{IsWin: false, BuyPrice: stake}, nil
	})
	m := NewManager(cfg, exec, testLogger())

	if _, err := m.TradeOnce(context.Background(), confirmedSignal()); err != nil {
		t.Fatalf("TradeOnce: %v", err)
	}
	if m.Stake() != 25 {
		t.Errorf("stake = %v, want 25 (capped)", m.Stake())
	}
}

func TestMartingaleAdaptiveCapHalvesBalance(t *testing.T) {
	cfg := testConfig()
	cfg.Policy = PolicyAdaptive
	cfg.Balance = 10
	cfg.BaseStake = 4
	cfg.MaxLoss = 1000
	exec := execFunc(func(_ context.Context, _ domain.StrategySignal, stake float64) (domain.TradeResult, error) {
		return domain.TradeResult{IsWin: false, BuyPrice: stake}, nil
	})
	m := NewManager(cfg, exec, testLogger())

	if _, err := m.TradeOnce(context.Background(), confirmedSignal()); err != nil {
		t.Fatalf("TradeOnce: %v", err)
	}
	// Balance after the 4.00 loss is 6.00; the escalated 8.40 stake is
	// capped at half of that.
	if m.Stake() != 3 {
		t.Errorf("stake = %v, want 3 (half of post-loss balance)", m.Stake())
	}
}

func TestTradeOnceRejectsUnconfirmedSignal(t *testing.T) {
	exec := execFunc(func(_ context.Context, _ domain.StrategySignal, _ float64) (domain.TradeResult, error) {
		t.Fatal("executor called for unconfirmed signal")
		return domain.TradeResult{}, nil
	})
	m := NewManager(testConfig(), exec, testLogger())

	sig := confirmedSignal()
	sig.EntryStatus = domain.EntryWaiting
	if _, err := m.TradeOnce(context.Background(), sig); !errors.Is(err, domain.ErrNotConfirmed) {
		t.Errorf("err = %v, want ErrNotConfirmed", err)
	}
}

func TestTradeOnceStopsAtMaxLoss(t *testing.T) {
	cfg := testConfig()
	cfg.MaxLoss = 1
	cfg.Martingale = false
	exec := execFunc(func(_ context.Context, _ domain.StrategySignal, stake float64) (domain.TradeResult, error) {
		return domain.TradeResult{IsWin: false, BuyPrice: 2}, nil
	})
	m := NewManager(cfg, exec, testLogger())

	if _, err := m.TradeOnce(context.Background(), confirmedSignal()); err != nil {
		t.Fatalf("first TradeOnce: %v", err)
	}
	if _, err := m.TradeOnce(context.Background(), confirmedSignal()); !errors.Is(err, domain.ErrRiskLimit) {
		t.Errorf("err = %v, want ErrRiskLimit after breaching max loss", err)
	}
}

func TestSingleOrderInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	exec := execFunc(func(ctx context.Context, _ domain.StrategySignal, stake float64) (domain.TradeResult, error) {
		close(started)
		<-release
		return domain.TradeResult{IsWin: true, Profit: 1, BuyPrice: stake}, nil
	})
	m := NewManager(testConfig(), exec, testLogger())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := m.TradeOnce(context.Background(), confirmedSignal()); err != nil {
			t.Errorf("blocking TradeOnce: %v", err)
		}
	}()

	<-started
	if _, err := m.TradeOnce(context.Background(), confirmedSignal()); !errors.Is(err, domain.ErrOrderInFlight) {
		t.Errorf("err = %v, want ErrOrderInFlight", err)
	}

	close(release)
	wg.Wait()

	if got := m.Stats().Trades; got != 1 {
		t.Errorf("trades = %d, want 1", got)
	}
}

func TestStartAutoRequiresIdle(t *testing.T) {
	exec := execFunc(func(_ context.Context, _ domain.StrategySignal, _ float64) (domain.TradeResult, error) {
		return domain.TradeResult{}, nil
	})
	m := NewManager(testConfig(), exec, testLogger())

	src := sourceFunc(func(context.Context, string) (*domain.StrategySignal, error) { return nil, nil })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.StartAuto(ctx, src); err != nil {
		t.Fatalf("first StartAuto: %v", err)
	}
	if err := m.StartAuto(ctx, src); err == nil {
		t.Error("second StartAuto succeeded, want error")
	}
	m.StopAuto()
	if err := m.StartAuto(ctx, src); err != nil {
		t.Errorf("StartAuto after StopAuto: %v", err)
	}
	m.StopAuto()
}

type sourceFunc func(ctx context.Context, symbol string) (*domain.StrategySignal, error)

func (f sourceFunc) Name() string { return "test" }
func (f sourceFunc) Current(ctx context.Context, symbol string) (*domain.StrategySignal, error) {
	return f(ctx, symbol)
}

func TestAutoLoopExecutesConfirmedSignal(t *testing.T) {
	cfg := testConfig()
	cfg.Interval = 5 * time.Millisecond
	cfg.Cooldown = time.Millisecond

	executed := make(chan float64, 1)
	exec := execFunc(func(_ context.Context, _ domain.StrategySignal, stake float64) (domain.TradeResult, error) {
		select {
		case executed <- stake:
		default:
		}
		return domain.TradeResult{IsWin: true, Profit: 0.3, BuyPrice: stake}, nil
	})
	m := NewManager(cfg, exec, testLogger())

	sig := confirmedSignal()
	src := sourceFunc(func(context.Context, string) (*domain.StrategySignal, error) {
		s := sig
		return &s, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.StartAuto(ctx, src); err != nil {
		t.Fatalf("StartAuto: %v", err)
	}
	defer m.StopAuto()

	select {
	case stake := <-executed:
		if stake != cfg.BaseStake {
			t.Errorf("stake = %v, want %v", stake, cfg.BaseStake)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("auto loop never executed a trade")
	}
}

func TestAutoLoopSkipsWaitingSignal(t *testing.T) {
	cfg := testConfig()
	cfg.Interval = 5 * time.Millisecond

	exec := execFunc(func(_ context.Context, _ domain.StrategySignal, _ float64) (domain.TradeResult, error) {
		t.Error("executor called for waiting signal")
		return domain.TradeResult{}, nil
	})
	m := NewManager(cfg, exec, testLogger())

	src := sourceFunc(func(context.Context, string) (*domain.StrategySignal, error) {
		s := confirmedSignal()
		s.EntryStatus = domain.EntryWaiting
		return &s, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.StartAuto(ctx, src); err != nil {
		t.Fatalf("StartAuto: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	m.StopAuto()

	if got := m.Stats().Trades; got != 0 {
		t.Errorf("trades = %d, want 0", got)
	}
}

func TestAutoLoopSingleOrderInFlight(t *testing.T) {
	cfg := testConfig()
	cfg.Interval = 5 * time.Millisecond
	cfg.Cooldown = time.Millisecond

	var calls atomic.Int32
	release := make(chan struct{})
	exec := execFunc(func(_ context.Context, _ domain.StrategySignal, stake float64) (domain.TradeResult, error) {
		calls.Add(1)
		<-release
		return domain.TradeResult{IsWin: true, Profit: 0.3, BuyPrice: stake}, nil
	})
	m := NewManager(cfg, exec, testLogger())

	src := sourceFunc(func(context.Context, string) (*domain.StrategySignal, error) {
		s := confirmedSignal()
		return &s, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.StartAuto(ctx, src); err != nil {
		t.Fatalf("StartAuto: %v", err)
	}

	// The first order never settles while the ticker keeps firing; every
	// subsequent cycle must be skipped, not stacked.
	time.Sleep(250 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("executor calls while order outstanding = %d, want 1", got)
	}

	close(release)
	m.StopAuto()
}
