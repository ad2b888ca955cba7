package domain

import (
	"context"
	"io"
	"time"
)

// TradeStore persists executed trades.
type TradeStore interface {
	Create(ctx context.Context, trade TradeRecord) error
	ListBySession(ctx context.Context, sessionID string) ([]TradeRecord, error)
}

// SessionStore persists trading session reports.
type SessionStore interface {
	Create(ctx context.Context, report SessionReport) error
	Finish(ctx context.Context, id string, stats SessionStats, endedAt time.Time) error
	Get(ctx context.Context, id string) (SessionReport, error)
}

// ScoreCache exposes the latest MarketScore per symbol to external readers
// (dashboards, other processes).
type ScoreCache interface {
	Set(ctx context.Context, score MarketScore) error
	Get(ctx context.Context, symbol string) (MarketScore, error)
	All(ctx context.Context) ([]MarketScore, error)
}

// SignalBus carries confirmed signals and trade events between processes:
// trading publishes, monitor instances and external consumers subscribe.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver uploads a finished session's history to blob storage.
type Archiver interface {
	ArchiveSession(ctx context.Context, sessionID string) (string, error)
}
