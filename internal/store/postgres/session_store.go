package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/digitbot/internal/domain"
)

// SessionStore implements domain.SessionStore using PostgreSQL.
type SessionStore struct {
	pool *pgxpool.Pool
}

var _ domain.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a new SessionStore backed by the given connection pool.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// Create inserts a new session row with zeroed stats.
func (s *SessionStore) Create(ctx context.Context, r domain.SessionReport) error {
	const query = `
		INSERT INTO sessions (id, symbol, source, policy, started_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := s.pool.Exec(ctx, query, r.ID, r.Symbol, r.Source, r.Policy, r.StartedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert session: %w", err)
	}
	return nil
}

// Finish writes a session's final statistics and end time.
func (s *SessionStore) Finish(ctx context.Context, id string, stats domain.SessionStats, endedAt time.Time) error {
	const query = `
		UPDATE sessions
		SET trades = $2, wins = $3, losses = $4, profit = $5,
			highest_win = $6, worst_loss = $7, ended_at = $8
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query,
		id, stats.Trades, stats.Wins, stats.Losses, stats.Profit,
		stats.HighestWin, stats.WorstLoss, endedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: finish session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: finish session %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Get returns one session by id, domain.ErrNotFound when missing.
func (s *SessionStore) Get(ctx context.Context, id string) (domain.SessionReport, error) {
	const query = `
		SELECT id, symbol, source, policy, trades, wins, losses, profit,
			highest_win, worst_loss, started_at, ended_at
		FROM sessions WHERE id = $1`

	var (
		r       domain.SessionReport
		endedAt *time.Time
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&r.ID, &r.Symbol, &r.Source, &r.Policy,
		&r.Stats.Trades, &r.Stats.Wins, &r.Stats.Losses, &r.Stats.Profit,
		&r.Stats.HighestWin, &r.Stats.WorstLoss,
		&r.StartedAt, &endedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SessionReport{}, fmt.Errorf("postgres: get session %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.SessionReport{}, fmt.Errorf("postgres: get session: %w", err)
	}
	if endedAt != nil {
		r.EndedAt = *endedAt
	}
	return r, nil
}
