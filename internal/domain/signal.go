package domain

import (
	"context"
	"time"
)

// StrategyFamily identifies which family of digit contracts a signal belongs
// to. Matches and Differs are mutually exclusive within one evaluation.
type StrategyFamily string

const (
	StrategyEvenOdd   StrategyFamily = "even_odd"
	StrategyOverUnder StrategyFamily = "over_under"
	StrategyMatches   StrategyFamily = "matches"
	StrategyDiffers   StrategyFamily = "differs"
)

// EntryStatus gates whether a signal may be traded.
type EntryStatus string

const (
	EntryBlocked   EntryStatus = "blocked"
	EntryWaiting   EntryStatus = "waiting"
	EntryConfirmed EntryStatus = "confirmed"
)

// Broker contract-type codes for digit contracts.
const (
	ContractDigitEven  = "DIGITEVEN"
	ContractDigitOdd   = "DIGITODD"
	ContractDigitOver  = "DIGITOVER"
	ContractDigitUnder = "DIGITUNDER"
	ContractDigitMatch = "DIGITMATCH"
	ContractDigitDiff  = "DIGITDIFF"
)

// StrategySignal is a candidate trade derived from market analysis. One set
// is produced per tick; signals are never reused across ticks.
type StrategySignal struct {
	ID           string
	Source       string // signal source name, e.g. "adaptive" or a preset
	Symbol       string
	Strategy     StrategyFamily
	ContractType string
	Barrier      string // digit or threshold, empty for even/odd contracts
	Confidence   float64
	Description  string
	EntryStatus  EntryStatus
	CreatedAt    time.Time
}

// Confirmed reports whether the signal cleared its strategy's confidence
// threshold.
func (s StrategySignal) Confirmed() bool {
	return s.EntryStatus == EntryConfirmed
}

// SignalSource yields the current candidate signal for a symbol. The trading
// manager polls a source once per loop cycle; a nil signal with nil error
// means "nothing to trade right now".
type SignalSource interface {
	Name() string
	Current(ctx context.Context, symbol string) (*StrategySignal, error)
}
