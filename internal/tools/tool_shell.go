package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"lincona/internal/outlimit"
	"lincona/internal/session"
)

const defaultShellTimeoutMs = 60000

type shellArgs struct {
	Command   string `json:"command"`
	Workdir   string `json:"workdir"`
	TimeoutMs int    `json:"timeout_ms"`
}

type shellResult struct {
	Stdout          string `json:"stdout"`
	Stderr          string `json:"stderr"`
	ReturnCode      int    `json:"returncode"`
	StdoutTruncated bool   `json:"stdout_truncated"`
	StderrTruncated bool   `json:"stderr_truncated"`
	TimedOut        bool   `json:"timed_out"`
}

func shellRegistration() Registration {
	return Registration{
		Name:             "shell",
		Description:      "Run a one-shot shell command via /bin/sh -c in the boundary-validated working directory.",
		RequiresApproval: true,
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command":    map[string]any{"type": "string", "description": "Shell command line."},
				"workdir":    map[string]any{"type": "string", "description": "Optional working directory."},
				"timeout_ms": map[string]any{"type": "integer", "minimum": 1, "description": "Timeout in milliseconds (default 60000)."},
			},
			"required": []string{"command"},
		},
		Handler: shellHandler,
	}
}

func shellHandler(ctx *Context, rawArgs json.RawMessage) (session.ToolResult, error) {
	var args shellArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return failResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.TimeoutMs == 0 {
		args.TimeoutMs = defaultShellTimeoutMs
	}
	if args.TimeoutMs < 1 {
		return failResult(invalidFieldError("timeout_ms", "must be >= 1").Error()), nil
	}

	workdir, err := ctx.Boundary.WorkDir(args.Workdir)
	if err != nil {
		return failResult(err.Error()), nil
	}

	runCtx, cancel := context.WithTimeout(context.Background(), time.Duration(args.TimeoutMs)*time.Millisecond)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", args.Command)
	cmd.Dir = workdir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	stdoutText, stdoutTruncated := outlimit.Truncate(stdout.String(), outlimit.DefaultMaxBytes, outlimit.DefaultMaxLines)
	stderrText, stderrTruncated := outlimit.Truncate(stderr.String(), outlimit.DefaultMaxBytes, outlimit.DefaultMaxLines)

	result := shellResult{
		Stdout:          stdoutText,
		Stderr:          stderrText,
		StdoutTruncated: stdoutTruncated,
		StderrTruncated: stderrTruncated,
		TimedOut:        runCtx.Err() == context.DeadlineExceeded,
	}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		result.ReturnCode = exitErr.ExitCode()
	} else if runErr == nil {
		result.ReturnCode = 0
	} else if !result.TimedOut {
		return failResult(runErr.Error()), nil
	}

	return okResult("", result, stdoutTruncated || stderrTruncated), nil
}
