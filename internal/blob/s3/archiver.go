package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/alanyoungcy/digitbot/internal/domain"
)

// Narrow store interfaces required by the archiver. The Postgres stores
// satisfy these implicitly; the archiver only needs the query methods it
// actually calls.

// SessionArchiveStore provides read access to session reports.
type SessionArchiveStore interface {
	Get(ctx context.Context, id string) (domain.SessionReport, error)
}

// TradeArchiveStore provides read access to a session's trades.
type TradeArchiveStore interface {
	ListBySession(ctx context.Context, sessionID string) ([]domain.TradeRecord, error)
}

// ArchiveWriter is the upload surface the archiver needs: single-shot puts
// for the common case and multipart for oversized histories.
type ArchiveWriter interface {
	domain.BlobWriter
	PutMultipart(ctx context.Context, path string, data io.Reader, contentType string, partSize int64) error
}

// SessionArchiver implements domain.Archiver by serializing a finished
// session's report and trade history to JSONL and uploading it to S3.
// The primary store keeps its rows: archives are an export, not a move.
type SessionArchiver struct {
	writer   ArchiveWriter
	sessions SessionArchiveStore
	trades   TradeArchiveStore

	// multipartThreshold is the payload size at which uploads switch to
	// the multipart path. Defaults to the S3 minimum part size.
	multipartThreshold int64
}

var _ domain.Archiver = (*SessionArchiver)(nil)

// NewSessionArchiver creates a new SessionArchiver.
func NewSessionArchiver(writer ArchiveWriter, sessions SessionArchiveStore, trades TradeArchiveStore) *SessionArchiver {
	return &SessionArchiver{
		writer:             writer,
		sessions:           sessions,
		trades:             trades,
		multipartThreshold: minPartSize,
	}
}

// ArchiveSession uploads one session as a JSONL object: the first line is
// the session report, each following line one trade in settlement order.
// It returns the uploaded object's key.
func (a *SessionArchiver) ArchiveSession(ctx context.Context, sessionID string) (string, error) {
	report, err := a.sessions.Get(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive session query: %w", err)
	}

	trades, err := a.trades.ListBySession(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive session trades query: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(report); err != nil {
		return "", fmt.Errorf("s3blob: archive session encode report: %w", err)
	}
	for i, t := range trades {
		if err := enc.Encode(t); err != nil {
			return "", fmt.Errorf("s3blob: archive session encode trade %d: %w", i, err)
		}
	}

	path := archivePath(report)
	if int64(buf.Len()) >= a.multipartThreshold {
		if err := a.writer.PutMultipart(ctx, path, &buf, "application/x-ndjson", minPartSize); err != nil {
			return "", fmt.Errorf("s3blob: archive session upload: %w", err)
		}
		return path, nil
	}
	if err := a.writer.Put(ctx, path, &buf, "application/x-ndjson"); err != nil {
		return "", fmt.Errorf("s3blob: archive session upload: %w", err)
	}
	return path, nil
}

// archivePath builds the S3 key for a session archive, partitioned by the
// year-month the session started.
//
//	archive/sessions/2026-08/<session-id>.jsonl
func archivePath(report domain.SessionReport) string {
	return fmt.Sprintf("archive/sessions/%s/%s.jsonl", report.StartedAt.Format("2006-01"), report.ID)
}
