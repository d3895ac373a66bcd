// Package outlimit truncates tool output to byte and line caps, the
// way spec.md §4.E requires: prefer the line cap first, then cut any
// remaining byte overflow at a valid UTF-8 boundary, appending exactly
// one sentinel line when truncation occurs.
package outlimit

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultMaxBytes and DefaultMaxLines are the tool-call defaults named
// in spec.md §4.E.
const (
	DefaultMaxBytes = 8 * 1024
	DefaultMaxLines = 200
)

// Truncate applies the line cap, then the byte cap, to text. It reports
// whether truncation occurred. When it did, the returned text ends with
// a "[truncated N bytes / M lines]" sentinel line reporting how much of
// the original was dropped.
func Truncate(text string, maxBytes, maxLines int) (string, bool) {
	truncated := false
	working := text

	lines := splitLines(working)
	droppedLines := 0
	if maxLines > 0 && len(lines) > maxLines {
		droppedLines = len(lines) - maxLines
		lines = lines[:maxLines]
		working = strings.Join(lines, "\n")
		truncated = true
	}

	droppedBytes := 0
	if maxBytes > 0 && len(working) > maxBytes {
		cut := utf8ValidCutoff(working, maxBytes)
		droppedBytes = len(working) - cut
		working = working[:cut]
		truncated = true
	}

	if !truncated {
		return text, false
	}

	totalDroppedBytes := (len(text) - len(working))
	sentinel := fmt.Sprintf("[truncated %d bytes / %d lines]", totalDroppedBytes, droppedLines)
	if working == "" {
		return sentinel, true
	}
	_ = droppedBytes
	return working + "\n" + sentinel, true
}

// splitLines splits on "\n" without discarding empty trailing elements,
// matching how line counts are reported elsewhere in the system.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// utf8ValidCutoff returns the largest n <= limit such that s[:n] ends on
// a valid UTF-8 rune boundary.
func utf8ValidCutoff(s string, limit int) int {
	if limit >= len(s) {
		return len(s)
	}
	n := limit
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}
