package domain

import "time"

// ContractParams describes a digit contract to price and buy.
type ContractParams struct {
	Symbol       string
	ContractType string
	Amount       float64
	Currency     string
	Duration     int
	DurationUnit string // "t" for ticks
	Barrier      string // optional
}

// Proposal is the broker's priced quote for a contract.
type Proposal struct {
	ID       string
	AskPrice float64
	Payout   float64
	Spot     float64
	SpotTime int64
}

// TradeResult is the settled outcome of one contract, as reported by the
// contract monitor. Consumed exactly once to update session state.
type TradeResult struct {
	ContractID int64
	IsWin      bool
	Profit     float64 // realized profit when won
	BuyPrice   float64 // stake cost, charged on loss
	Payout     float64
}

// SessionStats accumulates results for the lifetime of one trading manager.
// Profit bookkeeping mirrors broker settlement: wins add realized profit,
// losses subtract the buy price.
type SessionStats struct {
	Trades     int     `json:"trades"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	Profit     float64 `json:"profit"`
	HighestWin float64 `json:"highest_win"`
	WorstLoss  float64 `json:"worst_loss"`
}

// WinRate returns wins/trades as a percentage, 0 when no trades yet.
func (s SessionStats) WinRate() float64 {
	if s.Trades == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Trades) * 100
}

// TradeRecord is the persisted form of one executed trade.
type TradeRecord struct {
	ID           string
	SessionID    string
	Symbol       string
	Source       string
	Strategy     StrategyFamily
	ContractType string
	Barrier      string
	Confidence   float64
	Stake        float64
	Profit       float64
	IsWin        bool
	ContractID   int64
	PlacedAt     time.Time
	SettledAt    time.Time
}

// SessionReport is the persisted summary of one trading session.
type SessionReport struct {
	ID        string
	Symbol    string
	Source    string
	Policy    string
	Stats     SessionStats
	StartedAt time.Time
	EndedAt   time.Time
}
