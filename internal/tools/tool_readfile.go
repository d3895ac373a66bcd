package tools

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"lincona/internal/session"
)

const maxReadFileLineChars = 500

type readFileArgs struct {
	Path   string `json:"path"`
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
	Mode   string `json:"mode"`
	Indent string `json:"indent"`
}

func readFileRegistration() Registration {
	return Registration{
		Name:        "read_file",
		Description: "Read a slice of lines from a file, or an indentation-delimited block.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":   map[string]any{"type": "string", "description": "File path."},
				"offset": map[string]any{"type": "integer", "minimum": 0, "description": "Starting line (0-indexed)."},
				"limit":  map[string]any{"type": "integer", "minimum": 1, "description": "Line count for slice mode."},
				"mode":   map[string]any{"type": "string", "enum": []string{"slice", "indentation"}, "description": "Read strategy."},
				"indent": map[string]any{"type": "string", "description": "Indent prefix used as the anchor in indentation mode."},
			},
			"required": []string{"path", "offset", "limit", "mode"},
		},
		Handler: readFileHandler,
	}
}

func readFileHandler(ctx *Context, rawArgs json.RawMessage) (session.ToolResult, error) {
	var args readFileArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return failResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.Offset < 0 {
		return failResult(invalidFieldError("offset", "must be >= 0").Error()), nil
	}
	if args.Limit < 1 {
		return failResult(invalidFieldError("limit", "must be >= 1").Error()), nil
	}
	if args.Mode != "slice" && args.Mode != "indentation" {
		return failResult(invalidFieldError("mode", `must be "slice" or "indentation"`).Error()), nil
	}

	target, err := ctx.Boundary.Resolve(args.Path)
	if err != nil {
		return failResult(err.Error()), nil
	}
	raw, err := os.ReadFile(target)
	if err != nil {
		return failResult(fmt.Sprintf("read %q: %v", args.Path, err)), nil
	}
	lines := strings.Split(string(raw), "\n")

	var selected []string
	switch args.Mode {
	case "slice":
		selected = sliceLines(lines, args.Offset, args.Limit)
	case "indentation":
		selected = indentationBlock(lines, args.Offset, args.Indent)
	}

	truncated := false
	for i, line := range selected {
		if utf8.RuneCountInString(line) > maxReadFileLineChars {
			selected[i] = truncateLineAtUTF8Boundary(line, maxReadFileLineChars) + "…"
			truncated = true
		}
	}

	return okResult(strings.Join(selected, "\n"), nil, truncated), nil
}

func sliceLines(lines []string, offset, limit int) []string {
	if offset >= len(lines) {
		return nil
	}
	end := offset + limit
	if end > len(lines) {
		end = len(lines)
	}
	return lines[offset:end]
}

// indentationBlock returns the run of lines starting at offset whose
// indentation is at least as deep as the anchor line's, stopping at the
// first shallower line.
func indentationBlock(lines []string, offset int, indentPrefix string) []string {
	if offset >= len(lines) {
		return nil
	}
	anchorDepth := indentDepth(lines[offset], indentPrefix)
	out := []string{lines[offset]}
	for i := offset + 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			out = append(out, lines[i])
			continue
		}
		if indentDepth(lines[i], indentPrefix) < anchorDepth {
			break
		}
		out = append(out, lines[i])
	}
	return out
}

func indentDepth(line, indentPrefix string) int {
	if indentPrefix == "" {
		indentPrefix = "\t"
	}
	depth := 0
	for {
		start := len(indentPrefix) * depth
		if start > len(line) || !strings.HasPrefix(line[start:], indentPrefix) {
			break
		}
		depth++
	}
	return depth
}

func truncateLineAtUTF8Boundary(line string, maxChars int) string {
	n := 0
	for i := range line {
		if n == maxChars {
			return line[:i]
		}
		n++
	}
	return line
}
