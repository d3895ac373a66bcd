package patch

import (
	"path"
	"regexp"
	"strconv"
	"strings"
)

const (
	freeformBegin = "*** Begin Patch"
	freeformEnd   = "*** End Patch"
)

var hunkHeader = regexp.MustCompile(`^@@ -(\d+),?(\d+)? \+(\d+),?(\d+)? @@`)

// ParseUnifiedDiff parses a minimal unified diff (--- / +++ / @@ hunk
// headers) into an ordered list of PatchChange. Every file in the diff
// is treated as an update; use ParseFreeform for explicit add/delete.
func ParseUnifiedDiff(diffText string) ([]PatchChange, error) {
	lines := strings.Split(diffText, "\n")
	var changes []PatchChange
	idx := 0

	for idx < len(lines) {
		line := lines[idx]
		switch {
		case strings.HasPrefix(line, "--- "):
			if idx+1 >= len(lines) || !strings.HasPrefix(lines[idx+1], "+++ ") {
				return nil, parseErrorf("missing +++ header after %q", line)
			}
			newPath := normalizeDiffPath(firstField(lines[idx+1][4:]))
			idx += 2
			hunks, next, err := parseHunks(lines, idx)
			if err != nil {
				return nil, err
			}
			idx = next
			changes = append(changes, PatchChange{Op: OpUpdate, Path: newPath, Hunks: hunks})
		default:
			idx++
		}
	}

	if len(changes) == 0 {
		return nil, parseErrorf("no file patches found")
	}
	return changes, nil
}

// ParseFreeform extracts the unified-diff payload from a
// "*** Begin Patch" / "*** End Patch" envelope, recognizing explicit
// "*** Add File:", "*** Update File:", and "*** Delete File:"
// directives.
func ParseFreeform(text string) ([]PatchChange, error) {
	begin := strings.Index(text, freeformBegin)
	end := strings.Index(text, freeformEnd)
	if begin == -1 || end == -1 || end <= begin {
		return nil, parseErrorf("freeform patch markers not found")
	}
	body := strings.TrimSpace(text[begin+len(freeformBegin) : end])
	if body == "" {
		return nil, parseErrorf("empty freeform patch body")
	}

	lines := strings.Split(body, "\n")
	var changes []PatchChange
	idx := 0

	for idx < len(lines) {
		line := lines[idx]
		switch {
		case strings.HasPrefix(line, "*** Add File:"):
			p := normalizeDiffPath(strings.TrimSpace(strings.TrimPrefix(line, "*** Add File:")))
			idx++
			var content []string
			for idx < len(lines) && !isDirective(lines[idx]) {
				if !strings.HasPrefix(lines[idx], "+") {
					return nil, parseErrorf("add-file body line must start with '+': %q", lines[idx])
				}
				content = append(content, lines[idx][1:])
				idx++
			}
			changes = append(changes, PatchChange{Op: OpAdd, Path: p, NewContent: strings.Join(content, "\n")})

		case strings.HasPrefix(line, "*** Update File:"):
			p := normalizeDiffPath(strings.TrimSpace(strings.TrimPrefix(line, "*** Update File:")))
			idx++
			hunks, next, err := parseHunks(lines, idx)
			if err != nil {
				return nil, err
			}
			idx = next
			changes = append(changes, PatchChange{Op: OpUpdate, Path: p, Hunks: hunks})

		case strings.HasPrefix(line, "*** Delete File:"):
			p := normalizeDiffPath(strings.TrimSpace(strings.TrimPrefix(line, "*** Delete File:")))
			idx++
			changes = append(changes, PatchChange{Op: OpDelete, Path: p})

		default:
			idx++
		}
	}

	if len(changes) == 0 {
		return nil, parseErrorf("no file operations found in freeform patch")
	}
	return changes, nil
}

func isDirective(line string) bool {
	return strings.HasPrefix(line, "*** Add File:") ||
		strings.HasPrefix(line, "*** Update File:") ||
		strings.HasPrefix(line, "*** Delete File:") ||
		line == freeformEnd
}

func parseHunks(lines []string, idx int) ([]Hunk, int, error) {
	var hunks []Hunk
	for idx < len(lines) && strings.HasPrefix(lines[idx], "@@ ") {
		header := lines[idx]
		m := hunkHeader.FindStringSubmatch(header)
		if m == nil {
			return nil, 0, parseErrorf("invalid hunk header: %q", header)
		}
		startOld, _ := strconv.Atoi(m[1])
		lenOld := 1
		if m[2] != "" {
			lenOld, _ = strconv.Atoi(m[2])
		}
		startNew, _ := strconv.Atoi(m[3])
		lenNew := 1
		if m[4] != "" {
			lenNew, _ = strconv.Atoi(m[4])
		}
		idx++

		var hunkLines []string
		for idx < len(lines) && !isDirective(lines[idx]) && !strings.HasPrefix(lines[idx], "--- ") {
			if strings.HasPrefix(lines[idx], "@@ ") {
				break
			}
			if lines[idx] == "" {
				idx++
				continue
			}
			prefix := lines[idx][0]
			if prefix != ' ' && prefix != '+' && prefix != '-' {
				return nil, 0, parseErrorf("invalid hunk line: %q", lines[idx])
			}
			hunkLines = append(hunkLines, lines[idx])
			idx++
		}
		hunks = append(hunks, Hunk{
			StartOld: startOld,
			LenOld:   lenOld,
			StartNew: startNew,
			LenNew:   lenNew,
			Lines:    hunkLines,
		})
	}
	return hunks, idx, nil
}

func firstField(s string) string {
	s = strings.TrimSpace(s)
	if tab := strings.IndexByte(s, '\t'); tab >= 0 {
		s = s[:tab]
	}
	return s
}

// normalizeDiffPath strips the conventional a/ or b/ prefix used by
// unified diffs generated from a VCS.
func normalizeDiffPath(raw string) string {
	raw = path.Clean(raw)
	if raw == "/dev/null" {
		return raw
	}
	parts := strings.SplitN(raw, "/", 2)
	if len(parts) == 2 && (parts[0] == "a" || parts[0] == "b") {
		return parts[1]
	}
	return raw
}
