// Package executor places digit contracts through the broker client: it
// prices a proposal, buys it, and monitors the open contract until
// settlement.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/digitbot/internal/domain"
	"github.com/alanyoungcy/digitbot/internal/platform/deriv"
)

// monitorTimeout bounds how long a contract is watched for settlement.
// Expiry rejects with ErrMonitorTimeout, which callers treat as a retryable
// skipped cycle, not a fatal failure.
const monitorTimeout = 2 * time.Minute

// OrderClient is the slice of the broker client the executor needs.
type OrderClient interface {
	Proposal(ctx context.Context, p domain.ContractParams) (domain.Proposal, error)
	Buy(ctx context.Context, proposalID string, price float64) (int64, float64, error)
	MonitorContract(ctx context.Context, contractID int64, h deriv.ContractHandler) (func(), error)
}

// Executor turns a confirmed signal into one settled trade result.
type Executor struct {
	client   OrderClient
	currency string
	duration int
	logger   *slog.Logger

	// monitorTimeout is overridable for tests.
	monitorTimeout time.Duration
}

// New creates an Executor. duration is the contract length in ticks.
func New(client OrderClient, currency string, duration int, logger *slog.Logger) *Executor {
	if duration <= 0 {
		duration = 5
	}
	return &Executor{
		client:         client,
		currency:       currency,
		duration:       duration,
		logger:         logger.With(slog.String("component", "executor")),
		monitorTimeout: monitorTimeout,
	}
}

// Execute prices, buys, and settles one contract for the signal at the
// given stake. It blocks until the contract is sold or the monitor times
// out.
func (e *Executor) Execute(ctx context.Context, sig domain.StrategySignal, stake float64) (domain.TradeResult, error) {
	params := domain.ContractParams{
		Symbol:       sig.Symbol,
		ContractType: sig.ContractType,
		Amount:       stake,
		Currency:     e.currency,
		Duration:     e.duration,
		DurationUnit: "t",
		Barrier:      sig.Barrier,
	}

	prop, err := e.client.Proposal(ctx, params)
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("executor: proposal: %w", err)
	}

	contractID, buyPrice, err := e.client.Buy(ctx, prop.ID, prop.AskPrice)
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("executor: buy: %w", err)
	}

	e.logger.Info("contract bought",
		slog.Int64("contract_id", contractID),
		slog.String("contract_type", sig.ContractType),
		slog.String("barrier", sig.Barrier),
		slog.Float64("buy_price", buyPrice),
	)

	result, err := e.awaitSettlement(ctx, contractID, buyPrice)
	if err != nil {
		return domain.TradeResult{}, err
	}
	return result, nil
}

// awaitSettlement subscribes to the open contract and waits until isSold or
// the monitor timeout.
func (e *Executor) awaitSettlement(ctx context.Context, contractID int64, buyPrice float64) (domain.TradeResult, error) {
	settled := make(chan deriv.ContractUpdate, 1)

	release, err := e.client.MonitorContract(ctx, contractID, func(u deriv.ContractUpdate) {
		if !u.IsSold {
			return
		}
		select {
		case settled <- u:
		default:
		}
	})
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("executor: monitor: %w", err)
	}
	defer release()

	timer := time.NewTimer(e.monitorTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return domain.TradeResult{}, ctx.Err()
	case <-timer.C:
		return domain.TradeResult{}, fmt.Errorf("executor: contract %d: %w", contractID, domain.ErrMonitorTimeout)
	case u := <-settled:
		res := domain.TradeResult{
			ContractID: contractID,
			IsWin:      u.Profit > 0,
			Profit:     u.Profit,
			BuyPrice:   buyPrice,
			Payout:     u.Payout,
		}
		e.logger.Info("contract settled",
			slog.Int64("contract_id", contractID),
			slog.Bool("is_win", res.IsWin),
			slog.Float64("profit", u.Profit),
		)
		return res, nil
	}
}
