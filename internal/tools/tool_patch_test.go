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

func TestApplyPatchJSONHandler(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("foo\n"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	b, err := boundary.New(config.FsModeRestricted, root)
	if err != nil {
		t.Fatalf("boundary.New: %v", err)
	}
	ctx := &Context{Boundary: b, PTY: pty.New(b)}

	diff := "--- a/a.txt\n+++ b/a.txt\n@@ -1,1 +1,1 @@\n-foo\n+bar\n"
	payload, _ := json.Marshal(applyPatchArgs{Patch: diff})

	handler := makeApplyPatchHandler(false)
	result, err := handler(ctx, payload)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}

	got, _ := os.ReadFile(filepath.Join(root, "a.txt"))
	if string(got) != "bar\n" {
		t.Fatalf("a.txt = %q", got)
	}
}

func TestApplyPatchFreeformHandler(t *testing.T) {
	root := t.TempDir()
	b, err := boundary.New(config.FsModeRestricted, root)
	if err != nil {
		t.Fatalf("boundary.New: %v", err)
	}
	ctx := &Context{Boundary: b, PTY: pty.New(b)}

	envelope := "*** Begin Patch\n*** Add File: new.txt\n+hello\n*** End Patch\n"
	payload, _ := json.Marshal(applyPatchArgs{Patch: envelope})

	handler := makeApplyPatchHandler(true)
	result, err := handler(ctx, payload)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}

	got, _ := os.ReadFile(filepath.Join(root, "new.txt"))
	if string(got) != "hello" {
		t.Fatalf("new.txt = %q", got)
	}
}
