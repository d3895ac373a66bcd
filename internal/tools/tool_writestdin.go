package tools

import (
	"encoding/json"
	"fmt"

	"lincona/internal/pty"
	"lincona/internal/session"
)

type writeStdinArgs struct {
	SessionID string `json:"session_id"`
	Chars     string `json:"chars"`
}

func writeStdinRegistration() Registration {
	return Registration{
		Name:             "write_stdin",
		Description:      "Send input to an existing PTY session and capture the resulting output.",
		RequiresApproval: true,
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"session_id": map[string]any{"type": "string", "description": "Existing PTY session id."},
				"chars":      map[string]any{"type": "string", "description": "Characters to write to stdin."},
			},
			"required": []string{"session_id", "chars"},
		},
		Handler: writeStdinHandler,
	}
}

func writeStdinHandler(ctx *Context, rawArgs json.RawMessage) (session.ToolResult, error) {
	var args writeStdinArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return failResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.SessionID == "" {
		return failResult(invalidFieldError("session_id", "must not be empty").Error()), nil
	}

	output, truncated, err := ctx.PTY.Write(args.SessionID, args.Chars, pty.DefaultYield, 0)
	if err != nil {
		return failResult(err.Error()), nil
	}
	return okResult("", ptyOutput{Output: output, Truncated: truncated}, truncated), nil
}
