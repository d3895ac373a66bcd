package boundary

import (
	"os"
	"path/filepath"
	"testing"

	"lincona/internal/config"
)

func TestUnrestrictedAllowsAnyPath(t *testing.T) {
	b, err := New(config.FsModeUnrestricted, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resolved, err := b.Resolve("/etc/hosts")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved != "/etc/hosts" {
		t.Fatalf("got %q", resolved)
	}
}

func TestRestrictedRejectsEscape(t *testing.T) {
	root := t.TempDir()
	b, err := New(config.FsModeRestricted, root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := b.Resolve("../../etc/passwd"); err == nil {
		t.Fatal("expected escape to be rejected")
	}
}

func TestRestrictedAllowsInsidePath(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "f.txt"), []byte("x"), 0o600); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	b, err := New(config.FsModeRestricted, root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resolved, err := b.Resolve("f.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want, _ := filepath.EvalSymlinks(filepath.Join(root, "f.txt"))
	if resolved != want {
		t.Fatalf("got %q want %q", resolved, want)
	}
}

func TestRestrictedRejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	outsideFile := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(outsideFile, []byte("x"), 0o600); err != nil {
		t.Fatalf("seed outside file: %v", err)
	}
	link := filepath.Join(root, "escape")
	if err := os.Symlink(outsideFile, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	b, err := New(config.FsModeRestricted, root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := b.Resolve("escape"); err == nil {
		t.Fatal("expected symlink escape to be rejected")
	}
}

func TestRestrictedAllowsNotYetCreatedFile(t *testing.T) {
	root := t.TempDir()
	b, err := New(config.FsModeRestricted, root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resolved, err := b.Resolve("new_dir/new_file.txt")
	if err != nil {
		t.Fatalf("Resolve should tolerate not-yet-created paths: %v", err)
	}
	want, _ := filepath.EvalSymlinks(root)
	want = filepath.Join(want, "new_dir", "new_file.txt")
	if resolved != want {
		t.Fatalf("got %q want %q", resolved, want)
	}
}

func TestWorkDirDefaultsToRoot(t *testing.T) {
	root := t.TempDir()
	b, err := New(config.FsModeRestricted, root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	wd, err := b.WorkDir("")
	if err != nil {
		t.Fatalf("WorkDir: %v", err)
	}
	want, _ := filepath.EvalSymlinks(root)
	if wd != want {
		t.Fatalf("got %q want %q", wd, want)
	}
}
