package tools

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"lincona/internal/boundary"
	"lincona/internal/config"
	"lincona/internal/pty"
)

func TestGrepFilesFindsMatches(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.go"), []byte("package a\nfunc Foo() {}\n"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "b.txt"), []byte("nothing interesting\n"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	b, err := boundary.New(config.FsModeRestricted, root)
	if err != nil {
		t.Fatalf("boundary.New: %v", err)
	}
	ctx := &Context{Boundary: b, PTY: pty.New(b)}

	result, err := grepFilesHandler(ctx, json.RawMessage(`{"pattern":"func Foo","path":".","limit":10}`))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	matches, ok := result.Payload.([]grepFileResult)
	if !ok {
		t.Fatalf("unexpected payload type: %T", result.Payload)
	}
	if len(matches) != 1 || matches[0].File != filepath.Join(root, "a.go") {
		t.Fatalf("unexpected matches: %+v", matches)
	}
}

func TestGrepFilesRejectsInvalidPattern(t *testing.T) {
	root := t.TempDir()
	b, err := boundary.New(config.FsModeRestricted, root)
	if err != nil {
		t.Fatalf("boundary.New: %v", err)
	}
	ctx := &Context{Boundary: b, PTY: pty.New(b)}

	result, err := grepFilesHandler(ctx, json.RawMessage(`{"pattern":"(unclosed","path":".","limit":10}`))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure for invalid regex")
	}
}
