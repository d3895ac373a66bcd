package tools

import (
	"encoding/json"
	"fmt"

	"lincona/internal/pty"
	"lincona/internal/session"
)

type execCommandArgs struct {
	SessionID string `json:"session_id"`
	Cmd       string `json:"cmd"`
	Workdir   string `json:"workdir"`
}

type ptyOutput struct {
	Output    string `json:"output"`
	Truncated bool   `json:"truncated"`
}

func execCommandRegistration() Registration {
	return Registration{
		Name:             "exec_command",
		Description:      "Open a long-lived PTY-backed command session.",
		RequiresApproval: true,
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"session_id": map[string]any{"type": "string", "description": "Opaque PTY session identifier."},
				"cmd":        map[string]any{"type": "string", "description": "Command line to run."},
				"workdir":    map[string]any{"type": "string", "description": "Optional working directory."},
			},
			"required": []string{"session_id", "cmd"},
		},
		Handler: execCommandHandler,
	}
}

func execCommandHandler(ctx *Context, rawArgs json.RawMessage) (session.ToolResult, error) {
	var args execCommandArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return failResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.SessionID == "" {
		return failResult(invalidFieldError("session_id", "must not be empty").Error()), nil
	}
	if args.Cmd == "" {
		return failResult(invalidFieldError("cmd", "must not be empty").Error()), nil
	}

	output, truncated, err := ctx.PTY.Open(args.SessionID, args.Cmd, args.Workdir, pty.DefaultYield, 0)
	if err != nil {
		return failResult(err.Error()), nil
	}
	return okResult("", ptyOutput{Output: output, Truncated: truncated}, truncated), nil
}
