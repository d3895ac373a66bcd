package session

import (
	"testing"
	"time"

	"lincona/internal/config"
)

func TestNewIDMatchesPattern(t *testing.T) {
	id := NewID(time.Date(2026, 8, 2, 15, 4, 0, 0, time.UTC))
	if !IDPattern.MatchString(id) {
		t.Fatalf("id %q does not match pattern", id)
	}
	if id[:12] != "202608021504" {
		t.Fatalf("unexpected timestamp prefix: %s", id)
	}
}

func TestNewIDUnique(t *testing.T) {
	now := time.Now()
	a := NewID(now)
	b := NewID(now)
	if a == b {
		t.Fatal("expected distinct ids for successive calls")
	}
}

func TestStateOverlayDefaultsFromConfig(t *testing.T) {
	cfg := config.ResolvedConfig{
		DefaultModel:    "gpt-5",
		ReasoningEffort: config.ReasoningHigh,
		FsMode:          config.FsModeRestricted,
		ApprovalPolicy:  config.ApprovalAlways,
	}
	st := New(NewID(time.Now()), cfg)
	model, effort, fsMode, approval := st.Overlay()
	if model != "gpt-5" || effort != config.ReasoningHigh || fsMode != config.FsModeRestricted || approval != config.ApprovalAlways {
		t.Fatalf("overlay did not seed from config: %+v", st)
	}
}

func TestStateAppendIsIsolated(t *testing.T) {
	st := New("s1", config.ResolvedConfig{})
	st.Append(Message{Role: RoleUser, Content: "hi"})
	snap := st.Snapshot()
	snap[0].Content = "mutated"
	if st.History[0].Content != "hi" {
		t.Fatal("snapshot mutation leaked into history")
	}
}

func TestPTYRegistration(t *testing.T) {
	st := New("s1", config.ResolvedConfig{})
	st.RegisterPTY("p1")
	if _, ok := st.ActivePTYIDs["p1"]; !ok {
		t.Fatal("expected p1 registered")
	}
	st.ForgetPTY("p1")
	if _, ok := st.ActivePTYIDs["p1"]; ok {
		t.Fatal("expected p1 forgotten")
	}
}
