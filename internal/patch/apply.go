package patch

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lincona/internal/boundary"
)

// renameFile performs the final commit step of staging a change. It is a
// package variable so tests can inject a mid-apply failure without
// depending on filesystem permission quirks across platforms.
var renameFile = os.Rename

// Result reports the outcome of applying one PatchChange.
type Result struct {
	Path         string
	BytesWritten int
	Created      bool
	Deleted      bool
}

// preparedWrite is a temp file staged for an add/update change, ready to
// be renamed over its target once every change in the patch has staged
// successfully.
type preparedWrite struct {
	change   PatchChange
	target   string
	tmpPath  string
	content  string
	existed  bool
	original string // only read when existed, used for rollback
}

// Apply resolves every change's target path through boundary, verifies
// preconditions, and applies the patch atomically: either every change
// lands on disk, or — on any failure — every target file is left as it
// was found. Parent directories created while staging a new file are
// not removed on failure.
func Apply(b *boundary.Boundary, changes []PatchChange) ([]Result, error) {
	prepared := make([]preparedWrite, 0, len(changes))
	var deletions []preparedWrite

	cleanup := func() {
		for _, p := range prepared {
			os.Remove(p.tmpPath)
		}
	}

	for _, change := range changes {
		target, err := b.Resolve(change.Path)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("%w: %v", ErrVerify, err)
		}

		info, statErr := os.Stat(target)
		exists := statErr == nil
		if exists && info.IsDir() {
			cleanup()
			return nil, verifyErrorf("target %q is a directory", target)
		}

		switch change.Op {
		case OpAdd:
			if exists {
				cleanup()
				return nil, verifyErrorf("add target %q already exists", target)
			}
			prepared = append(prepared, preparedWrite{
				change: change, target: target, content: change.NewContent, existed: false,
			})

		case OpUpdate:
			if !exists {
				cleanup()
				return nil, verifyErrorf("update target %q does not exist", target)
			}
			raw, err := os.ReadFile(target)
			if err != nil {
				cleanup()
				return nil, verifyErrorf("read update target %q: %v", target, err)
			}
			original := string(raw)
			hadTrailingNL := strings.HasSuffix(original, "\n")
			originalLines := splitLinesNoTrailing(original)

			newLines, err := applyHunks(originalLines, change.Hunks)
			if err != nil {
				cleanup()
				return nil, fmt.Errorf("%w: %s: %v", ErrVerify, target, err)
			}
			content := joinPreserveTrailing(newLines, hadTrailingNL)

			prepared = append(prepared, preparedWrite{
				change: change, target: target, content: content, existed: true, original: original,
			})

		case OpDelete:
			if !exists {
				cleanup()
				return nil, verifyErrorf("delete target %q does not exist", target)
			}
			raw, err := os.ReadFile(target)
			if err != nil {
				cleanup()
				return nil, verifyErrorf("read delete target %q: %v", target, err)
			}
			deletions = append(deletions, preparedWrite{change: change, target: target, original: string(raw), existed: true})

		default:
			cleanup()
			return nil, parseErrorf("unknown patch operation %q", change.Op)
		}
	}

	// Stage every add/update to a temp sibling file before touching any
	// real path, so a write failure on file N leaves files 1..N-1 untouched.
	for i := range prepared {
		p := &prepared[i]
		tmp, err := writeTemp(p.target, p.content)
		if err != nil {
			cleanup()
			return nil, applyErrorf("stage %q: %v", p.target, err)
		}
		p.tmpPath = tmp
	}

	var completed []preparedWrite // renames/deletions already committed, for rollback
	rollback := func() {
		for _, c := range completed {
			if c.existed {
				_ = os.WriteFile(c.target, []byte(c.original), 0o644)
			} else {
				_ = os.Remove(c.target)
			}
		}
		for _, p := range prepared {
			if p.tmpPath != "" {
				os.Remove(p.tmpPath)
			}
		}
	}

	results := make([]Result, 0, len(changes))
	for i := range prepared {
		p := &prepared[i]
		if err := renameFile(p.tmpPath, p.target); err != nil {
			rollback()
			return nil, applyErrorf("commit %q: %v", p.target, err)
		}
		completed = append(completed, *p)
		results = append(results, Result{Path: p.target, BytesWritten: len(p.content), Created: !p.existed})
	}

	for _, d := range deletions {
		if err := os.Remove(d.target); err != nil {
			rollback()
			return nil, applyErrorf("delete %q: %v", d.target, err)
		}
		completed = append(completed, d)
		results = append(results, Result{Path: d.target, Deleted: true})
	}

	return results, nil
}

func writeTemp(target, content string) (string, error) {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}
	suffix, err := randomHex(8)
	if err != nil {
		return "", err
	}
	tmpPath := target + ".lincona-tmp-" + suffix
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	return tmpPath, nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// applyHunks applies an ordered list of hunks to original, enforcing
// byte-for-byte context matching with no fuzz.
func applyHunks(original []string, hunks []Hunk) ([]string, error) {
	current := append([]string(nil), original...)

	for _, hunk := range hunks {
		startIdx := hunk.StartOld - 1
		if startIdx < 0 {
			startIdx = 0
		}
		if startIdx > len(current) {
			return nil, fmt.Errorf("hunk start out of range")
		}

		pre := current[:startIdx]
		idx := startIdx
		var newChunk []string

		for _, line := range hunk.Lines {
			prefix, content := line[0], line[1:]
			switch prefix {
			case ' ':
				if idx >= len(current) || current[idx] != content {
					return nil, fmt.Errorf("context mismatch at line %d", idx+1)
				}
				newChunk = append(newChunk, content)
				idx++
			case '-':
				if idx >= len(current) || current[idx] != content {
					return nil, fmt.Errorf("delete mismatch at line %d", idx+1)
				}
				idx++
			case '+':
				newChunk = append(newChunk, content)
			default:
				return nil, fmt.Errorf("invalid hunk line: %q", line)
			}
		}

		post := current[idx:]
		merged := make([]string, 0, len(pre)+len(newChunk)+len(post))
		merged = append(merged, pre...)
		merged = append(merged, newChunk...)
		merged = append(merged, post...)
		current = merged
	}
	return current, nil
}

func splitLinesNoTrailing(text string) []string {
	if text == "" {
		return nil
	}
	trimmed := strings.TrimSuffix(text, "\n")
	return strings.Split(trimmed, "\n")
}

func joinPreserveTrailing(lines []string, hadTrailingNL bool) string {
	text := strings.Join(lines, "\n")
	if hadTrailingNL && len(lines) > 0 && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return text
}
