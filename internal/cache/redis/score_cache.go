package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/digitbot/internal/domain"
)

// scoresKey is the hash holding the most recent MarketScore per symbol,
// serialized as JSON. One field per symbol keeps All a single HGETALL.
const scoresKey = "digitbot:scores"

// ScoreCache implements domain.ScoreCache using a Redis hash so external
// readers (dashboards, other processes) see the scanner's latest scores.
type ScoreCache struct {
	rdb *redis.Client
}

// NewScoreCache creates a ScoreCache backed by the given Client.
func NewScoreCache(c *Client) *ScoreCache {
	return &ScoreCache{rdb: c.Underlying()}
}

// Set stores the latest score for the score's symbol.
func (sc *ScoreCache) Set(ctx context.Context, score domain.MarketScore) error {
	data, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("redis: marshal score %s: %w", score.Symbol, err)
	}
	if err := sc.rdb.HSet(ctx, scoresKey, score.Symbol, data).Err(); err != nil {
		return fmt.Errorf("redis: set score %s: %w", score.Symbol, err)
	}
	return nil
}

// Get retrieves the latest score for a symbol. It returns domain.ErrNotFound
// when the symbol has no cached score.
func (sc *ScoreCache) Get(ctx context.Context, symbol string) (domain.MarketScore, error) {
	data, err := sc.rdb.HGet(ctx, scoresKey, symbol).Bytes()
	if err == redis.Nil {
		return domain.MarketScore{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.MarketScore{}, fmt.Errorf("redis: get score %s: %w", symbol, err)
	}

	var score domain.MarketScore
	if err := json.Unmarshal(data, &score); err != nil {
		return domain.MarketScore{}, fmt.Errorf("redis: unmarshal score %s: %w", symbol, err)
	}
	return score, nil
}

// All retrieves every cached score, best composite score first.
func (sc *ScoreCache) All(ctx context.Context) ([]domain.MarketScore, error) {
	vals, err := sc.rdb.HGetAll(ctx, scoresKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get all scores: %w", err)
	}

	scores := make([]domain.MarketScore, 0, len(vals))
	for symbol, raw := range vals {
		var score domain.MarketScore
		if err := json.Unmarshal([]byte(raw), &score); err != nil {
			return nil, fmt.Errorf("redis: unmarshal score %s: %w", symbol, err)
		}
		scores = append(scores, score)
	}

	sort.Slice(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
	return scores, nil
}

// Compile-time interface check.
var _ domain.ScoreCache = (*ScoreCache)(nil)
