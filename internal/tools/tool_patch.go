package tools

import (
	"encoding/json"
	"fmt"

	"lincona/internal/patch"
	"lincona/internal/session"
)

type applyPatchArgs struct {
	Patch string `json:"patch"`
}

type patchResultEntry struct {
	Path         string `json:"path"`
	BytesWritten int    `json:"bytes_written"`
	Created      bool   `json:"created"`
	Deleted      bool   `json:"deleted"`
}

func applyPatchRegistration(name string, freeform bool) Registration {
	description := "Parse, verify, and atomically apply a unified diff."
	if freeform {
		description = "Parse, verify, and atomically apply a freeform Begin/End Patch envelope."
	}
	return Registration{
		Name:             name,
		Description:      description,
		RequiresApproval: false,
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"patch": map[string]any{"type": "string", "description": "Unified diff text, or a freeform patch envelope."},
			},
			"required": []string{"patch"},
		},
		Handler: makeApplyPatchHandler(freeform),
	}
}

func makeApplyPatchHandler(freeform bool) Handler {
	return func(ctx *Context, rawArgs json.RawMessage) (session.ToolResult, error) {
		var args applyPatchArgs
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return failResult(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		var changes []patch.PatchChange
		var err error
		if freeform {
			changes, err = patch.ParseFreeform(args.Patch)
		} else {
			changes, err = patch.ParseUnifiedDiff(args.Patch)
		}
		if err != nil {
			return failResult(err.Error()), nil
		}

		results, err := patch.Apply(ctx.Boundary, changes)
		if err != nil {
			return failResult(err.Error()), nil
		}

		entries := make([]patchResultEntry, 0, len(results))
		for _, r := range results {
			entries = append(entries, patchResultEntry{Path: r.Path, BytesWritten: r.BytesWritten, Created: r.Created, Deleted: r.Deleted})
		}
		return okResult(fmt.Sprintf("applied %d file change(s)", len(entries)), entries, false), nil
	}
}
