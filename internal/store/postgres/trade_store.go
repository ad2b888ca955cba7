package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/digitbot/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

var _ domain.TradeStore = (*TradeStore)(nil)

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, session_id, symbol, source, strategy,
	contract_type, barrier, confidence, stake, profit, is_win, contract_id,
	placed_at, settled_at`

func scanTradeRows(rows pgx.Rows) ([]domain.TradeRecord, error) {
	var trades []domain.TradeRecord
	for rows.Next() {
		var t domain.TradeRecord
		if err := rows.Scan(
			&t.ID, &t.SessionID, &t.Symbol, &t.Source, &t.Strategy,
			&t.ContractType, &t.Barrier, &t.Confidence, &t.Stake,
			&t.Profit, &t.IsWin, &t.ContractID,
			&t.PlacedAt, &t.SettledAt,
		); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Create inserts one settled trade.
func (s *TradeStore) Create(ctx context.Context, t domain.TradeRecord) error {
	const query = `
		INSERT INTO trades (
			id, session_id, symbol, source, strategy,
			contract_type, barrier, confidence, stake, profit,
			is_win, contract_id, placed_at, settled_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14
		)`
	_, err := s.pool.Exec(ctx, query,
		t.ID, t.SessionID, t.Symbol, t.Source, t.Strategy,
		t.ContractType, t.Barrier, t.Confidence, t.Stake, t.Profit,
		t.IsWin, t.ContractID, t.PlacedAt, t.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade: %w", err)
	}
	return nil
}

// ListBySession returns a session's trades in settlement order.
func (s *TradeStore) ListBySession(ctx context.Context, sessionID string) ([]domain.TradeRecord, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE session_id = $1 ORDER BY settled_at ASC`
	rows, err := s.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades by session: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades by session: %w", err)
	}
	return trades, nil
}
