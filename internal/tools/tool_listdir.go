package tools

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"lincona/internal/session"
)

type listDirArgs struct {
	Path   string `json:"path"`
	Depth  int    `json:"depth"`
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
}

func listDirRegistration() Registration {
	return Registration{
		Name:        "list_dir",
		Description: "Breadth-first directory listing rooted at a path, with depth, offset, and limit.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":   map[string]any{"type": "string", "description": "Root path to list."},
				"depth":  map[string]any{"type": "integer", "minimum": 0, "description": "Maximum traversal depth."},
				"offset": map[string]any{"type": "integer", "minimum": 0, "description": "Entries to skip."},
				"limit":  map[string]any{"type": "integer", "minimum": 1, "description": "Maximum entries to return."},
			},
			"required": []string{"path", "depth", "offset", "limit"},
		},
		Handler: listDirHandler,
	}
}

func listDirHandler(ctx *Context, rawArgs json.RawMessage) (session.ToolResult, error) {
	var args listDirArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return failResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.Depth < 0 {
		return failResult(invalidFieldError("depth", "must be >= 0").Error()), nil
	}
	if args.Offset < 0 {
		return failResult(invalidFieldError("offset", "must be >= 0").Error()), nil
	}
	if args.Limit < 1 {
		return failResult(invalidFieldError("limit", "must be >= 1").Error()), nil
	}

	root, err := ctx.Boundary.Resolve(args.Path)
	if err != nil {
		return failResult(err.Error()), nil
	}

	entries, err := breadthFirstList(root, args.Depth)
	if err != nil {
		return failResult(err.Error()), nil
	}
	sort.Strings(entries)

	start := args.Offset
	if start > len(entries) {
		start = len(entries)
	}
	end := start + args.Limit
	if end > len(entries) {
		end = len(entries)
	}
	page := entries[start:end]

	return okResult("", page, false), nil
}

type dirLevelEntry struct {
	path  string
	depth int
}

func breadthFirstList(root string, maxDepth int) ([]string, error) {
	var out []string
	queue := []dirLevelEntry{{path: root, depth: 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		items, err := os.ReadDir(cur.path)
		if err != nil {
			return nil, fmt.Errorf("read directory %q: %w", cur.path, err)
		}
		for _, item := range items {
			full := filepath.Join(cur.path, item.Name())
			display := full
			if item.IsDir() {
				display += "/"
			}
			out = append(out, display)
			if item.IsDir() && cur.depth < maxDepth {
				queue = append(queue, dirLevelEntry{path: full, depth: cur.depth + 1})
			}
		}
	}
	return out, nil
}
