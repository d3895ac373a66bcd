package usage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "usage.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordTurnRequiresSessionID(t *testing.T) {
	s := openTestStore(t)
	err := s.RecordTurn(context.Background(), TurnUsage{Model: "gpt-5"})
	if err == nil {
		t.Fatal("expected error for missing session id")
	}
}

func TestSessionSummaryAggregatesAcrossTurns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	sessionID := "202601020304-abc"

	turns := []TurnUsage{
		{SessionID: sessionID, Model: "gpt-5", InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
		{SessionID: sessionID, Model: "gpt-5", InputTokens: 20, OutputTokens: 8, TotalTokens: 28},
		{SessionID: "other-session", Model: "gpt-5", InputTokens: 100, OutputTokens: 100, TotalTokens: 200},
	}
	for _, tu := range turns {
		if err := s.RecordTurn(ctx, tu); err != nil {
			t.Fatalf("RecordTurn: %v", err)
		}
	}

	summary, err := s.SessionSummary(ctx, sessionID)
	if err != nil {
		t.Fatalf("SessionSummary: %v", err)
	}
	if summary.TurnCount != 2 || summary.InputTokens != 30 || summary.OutputTokens != 13 || summary.TotalTokens != 43 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestSessionSummaryUnknownSessionIsZero(t *testing.T) {
	s := openTestStore(t)
	summary, err := s.SessionSummary(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("SessionSummary: %v", err)
	}
	if summary.TurnCount != 0 || summary.TotalTokens != 0 {
		t.Fatalf("expected zero summary, got %+v", summary)
	}
}

func TestAggregateByModelGroupsWithinWindow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	inWindow := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	outOfWindow := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	records := []TurnUsage{
		{SessionID: "s1", Model: "gpt-5", InputTokens: 10, OutputTokens: 1, TotalTokens: 11, RecordedAt: inWindow},
		{SessionID: "s2", Model: "gpt-5", InputTokens: 20, OutputTokens: 2, TotalTokens: 22, RecordedAt: inWindow},
		{SessionID: "s3", Model: "gpt-5-mini", InputTokens: 5, OutputTokens: 1, TotalTokens: 6, RecordedAt: inWindow},
		{SessionID: "s4", Model: "gpt-5", InputTokens: 999, OutputTokens: 999, TotalTokens: 1998, RecordedAt: outOfWindow},
	}
	for _, r := range records {
		if err := s.RecordTurn(ctx, r); err != nil {
			t.Fatalf("RecordTurn: %v", err)
		}
	}

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	aggs, err := s.AggregateByModel(ctx, from, to)
	if err != nil {
		t.Fatalf("AggregateByModel: %v", err)
	}
	if len(aggs) != 2 {
		t.Fatalf("expected 2 model groups, got %d: %+v", len(aggs), aggs)
	}
	for _, agg := range aggs {
		if agg.Model == "gpt-5" && (agg.TurnCount != 2 || agg.TotalTokens != 33) {
			t.Fatalf("unexpected gpt-5 aggregate: %+v", agg)
		}
		if agg.Model == "gpt-5-mini" && (agg.TurnCount != 1 || agg.TotalTokens != 6) {
			t.Fatalf("unexpected gpt-5-mini aggregate: %+v", agg)
		}
	}
}
