package transcript

import (
	"path/filepath"
	"testing"
	"time"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := OpenWriter(dir, "sess1")
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []Event{
		{Timestamp: base, Kind: KindUserMessage, Payload: map[string]any{"text": "hi"}},
		{Timestamp: base.Add(time.Second), Kind: KindToolCall, Payload: map[string]any{"name": "read_file"}},
		{Timestamp: base.Add(2 * time.Second), Kind: KindToolResult, ToolCallID: "abc", Payload: map[string]any{"ok": true}},
	}
	for _, e := range events {
		if err := w.Append(e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	path := filepath.Join(dir, "sessions", "sess1.jsonl")
	got, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("got %d events, want %d", len(got), len(events))
	}
	for i := range events {
		if got[i].Kind != events[i].Kind {
			t.Fatalf("event %d kind mismatch: got %s want %s", i, got[i].Kind, events[i].Kind)
		}
	}
}

func TestAppendRejectsUnknownKind(t *testing.T) {
	dir := t.TempDir()
	w, err := OpenWriter(dir, "sess2")
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}
	defer w.Close()

	err = w.Append(Event{Timestamp: time.Now(), Kind: "bogus"})
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestAppendRejectsToolResultWithoutCallID(t *testing.T) {
	dir := t.TempDir()
	w, err := OpenWriter(dir, "sess3")
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}
	defer w.Close()

	err = w.Append(Event{Timestamp: time.Now(), Kind: KindToolResult})
	if err == nil {
		t.Fatal("expected error for tool-result without tool_call_id")
	}
}

func TestAppendRejectsOutOfOrderTimestamp(t *testing.T) {
	dir := t.TempDir()
	w, err := OpenWriter(dir, "sess4")
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}
	defer w.Close()

	now := time.Now()
	if err := w.Append(Event{Timestamp: now, Kind: KindSystem}); err != nil {
		t.Fatalf("first append: %v", err)
	}
	err = w.Append(Event{Timestamp: now.Add(-time.Second), Kind: KindSystem})
	if err == nil {
		t.Fatal("expected error for out-of-order timestamp")
	}
}

func TestIterEventsReportsLineNumberOnBadJSON(t *testing.T) {
	dir := t.TempDir()
	sessionsDir := filepath.Join(dir, "sessions")
	path := filepath.Join(sessionsDir, "bad.jsonl")
	mustMkdirAll(t, sessionsDir)
	mustWriteFile(t, path, "{\"timestamp\":\"2026-01-01T00:00:00Z\",\"kind\":\"system\"}\nnot json\n")

	err := IterEvents(path, func(Event) error { return nil })
	if err == nil {
		t.Fatal("expected error")
	}
	lineErr, ok := err.(*LineError)
	if !ok {
		t.Fatalf("expected *LineError, got %T", err)
	}
	if lineErr.Line != 2 {
		t.Fatalf("expected error on line 2, got %d", lineErr.Line)
	}
}
