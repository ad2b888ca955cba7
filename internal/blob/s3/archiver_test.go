package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/digitbot/internal/domain"
)

type fakeWriter struct {
	method      string
	path        string
	contentType string
	body        []byte
	err         error
}

func (w *fakeWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	w.method = "put"
	w.path = path
	w.contentType = contentType
	w.body, _ = io.ReadAll(data)
	return w.err
}

func (w *fakeWriter) PutMultipart(_ context.Context, path string, data io.Reader, contentType string, _ int64) error {
	w.method = "multipart"
	w.path = path
	w.contentType = contentType
	w.body, _ = io.ReadAll(data)
	return w.err
}

type fakeSessionStore struct {
	report domain.SessionReport
	err    error
}

func (s *fakeSessionStore) Get(context.Context, string) (domain.SessionReport, error) {
	return s.report, s.err
}

type fakeTradeStore struct {
	trades []domain.TradeRecord
	err    error
}

func (s *fakeTradeStore) ListBySession(context.Context, string) ([]domain.TradeRecord, error) {
	return s.trades, s.err
}

func testReport() domain.SessionReport {
	return domain.SessionReport{
		ID:        "s-1",
		Symbol:    "R_100",
		Source:    "adaptive",
		Policy:    "preset",
		Stats:     domain.SessionStats{Trades: 2, Wins: 1, Losses: 1, Profit: -0.05},
		StartedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func TestArchiveSessionWritesReportThenTrades(t *testing.T) {
	w := &fakeWriter{}
	a := NewSessionArchiver(w, &fakeSessionStore{report: testReport()}, &fakeTradeStore{
		trades: []domain.TradeRecord{
			{ID: "t-1", SessionID: "s-1", ContractType: domain.ContractDigitOver, Profit: 0.3, IsWin: true},
			{ID: "t-2", SessionID: "s-1", ContractType: domain.ContractDigitOver, Profit: 0, Stake: 0.35},
		},
	})

	key, err := a.ArchiveSession(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("ArchiveSession: %v", err)
	}

	if want := "archive/sessions/2026-08/s-1.jsonl"; key != want {
		t.Errorf("key = %q, want %q", key, want)
	}
	if w.method != "put" {
		t.Errorf("upload method = %q, want single-shot put", w.method)
	}
	if w.contentType != "application/x-ndjson" {
		t.Errorf("content type = %q, want application/x-ndjson", w.contentType)
	}

	lines := strings.Split(strings.TrimRight(string(w.body), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3 (report + 2 trades)", len(lines))
	}
	var report domain.SessionReport
	if err := json.Unmarshal([]byte(lines[0]), &report); err != nil {
		t.Fatalf("decode report line: %v", err)
	}
	if report.ID != "s-1" || report.Stats.Trades != 2 {
		t.Errorf("report line = %+v, want session s-1 with 2 trades", report)
	}
	var trade domain.TradeRecord
	if err := json.Unmarshal([]byte(lines[2]), &trade); err != nil {
		t.Fatalf("decode trade line: %v", err)
	}
	if trade.ID != "t-2" {
		t.Errorf("last trade line = %q, want t-2", trade.ID)
	}
}

func TestArchiveSessionUsesMultipartAboveThreshold(t *testing.T) {
	w := &fakeWriter{}
	a := NewSessionArchiver(w, &fakeSessionStore{report: testReport()}, &fakeTradeStore{
		trades: []domain.TradeRecord{{ID: "t-1", SessionID: "s-1"}},
	})
	a.multipartThreshold = 16

	if _, err := a.ArchiveSession(context.Background(), "s-1"); err != nil {
		t.Fatalf("ArchiveSession: %v", err)
	}
	if w.method != "multipart" {
		t.Errorf("upload method = %q, want multipart above threshold", w.method)
	}
	if !bytes.Contains(w.body, []byte(`"t-1"`)) {
		t.Error("multipart body missing trade line")
	}
}

func TestArchiveSessionPropagatesStoreError(t *testing.T) {
	w := &fakeWriter{}
	wantErr := errors.New("session gone")
	a := NewSessionArchiver(w, &fakeSessionStore{err: wantErr}, &fakeTradeStore{})

	if _, err := a.ArchiveSession(context.Background(), "s-1"); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want wrapped %v", err, wantErr)
	}
	if w.method != "" {
		t.Errorf("upload attempted after store failure (method %q)", w.method)
	}
}
