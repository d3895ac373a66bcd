package outlimit

import (
	"strings"
	"testing"
)

func TestNoTruncationWhenWithinLimits(t *testing.T) {
	text := "line1\nline2"
	got, truncated := Truncate(text, DefaultMaxBytes, DefaultMaxLines)
	if truncated {
		t.Fatal("did not expect truncation")
	}
	if got != text {
		t.Fatalf("got %q want %q", got, text)
	}
}

func TestLineCapTruncatesAndAppendsSentinel(t *testing.T) {
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = "x"
	}
	text := strings.Join(lines, "\n")

	got, truncated := Truncate(text, DefaultMaxBytes, 5)
	if !truncated {
		t.Fatal("expected truncation")
	}
	if !strings.HasSuffix(got, "[truncated 10 bytes / 5 lines]") {
		t.Fatalf("unexpected sentinel: %q", got)
	}
	gotLines := strings.Split(got, "\n")
	if len(gotLines) > 5+1 {
		t.Fatalf("expected at most 6 lines, got %d: %q", len(gotLines), got)
	}
}

func TestByteCapCutsAtUTF8Boundary(t *testing.T) {
	text := strings.Repeat("é", 100) // each rune is 2 bytes in UTF-8
	got, truncated := Truncate(text, 11, 1000)
	if !truncated {
		t.Fatal("expected truncation")
	}
	body := strings.TrimSuffix(got, "\n"+sentinelSuffix(got))
	if !isValidUTF8Prefix(body) {
		t.Fatalf("result is not valid utf-8: %q", body)
	}
}

func sentinelSuffix(s string) string {
	idx := strings.LastIndex(s, "[truncated")
	if idx < 0 {
		return ""
	}
	return s[idx:]
}

func isValidUTF8Prefix(s string) bool {
	return len([]rune(s)) >= 0 && strings.ToValidUTF8(s, "�") == s
}

func TestEmptyResultAfterTruncationOmitsLeadingNewline(t *testing.T) {
	got, truncated := Truncate("é", 1, 1000) // no whole rune fits in 1 byte
	if !truncated {
		t.Fatal("expected truncation")
	}
	if strings.HasPrefix(got, "\n") {
		t.Fatalf("unexpected leading newline: %q", got)
	}
}
