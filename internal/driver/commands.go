package driver

import (
	"context"
	"fmt"
	"strings"

	"lincona/internal/boundary"
	"lincona/internal/config"
	"lincona/internal/seslog"
	"lincona/internal/session"
	"lincona/internal/transcript"
)

// commandFunc implements one slash command. args is everything after
// the command name, already trimmed.
type commandFunc func(d *Driver, ctx context.Context, args string) (string, error)

var commandTable = map[string]commandFunc{
	"/newsession": (*Driver).cmdNewSession,
	"/model":      (*Driver).cmdModel,
	"/reasoning":  (*Driver).cmdReasoning,
	"/approvals":  (*Driver).cmdApprovals,
	"/fsmode":     (*Driver).cmdFsMode,
	"/help":       (*Driver).cmdHelp,
	"/quit":       (*Driver).cmdQuit,
}

// handleSlash implements spec.md §4.K step 1: dispatch to the slash
// handler, persisting a slash-command event, or surface a user-visible
// error for an unrecognized command without ever reaching the model.
func (d *Driver) handleSlash(ctx context.Context, input string) error {
	name, args, _ := strings.Cut(input, " ")
	args = strings.TrimSpace(args)

	fn, ok := commandTable[name]
	if !ok {
		d.appendEvent(transcript.KindSlashCommand, "", map[string]any{
			"command": name,
			"args":    args,
			"success": false,
			"message": "unknown command",
		})
		fmt.Fprintf(d.out, "unknown command: %s\n", name)
		return nil
	}

	message, err := fn(d, ctx, args)
	success := err == nil || err == ErrQuit
	if err != nil && err != ErrQuit {
		message = err.Error()
	}
	d.appendEvent(transcript.KindSlashCommand, "", map[string]any{
		"command": name,
		"args":    args,
		"success": success,
		"message": message,
	})
	if message != "" {
		fmt.Fprintln(d.out, message)
	}
	if err != nil && err != ErrQuit {
		return nil
	}
	return err
}

func (d *Driver) cmdNewSession(ctx context.Context, args string) (string, error) {
	if err := d.transcript.Close(); err != nil {
		return "", fmt.Errorf("flush current session: %w", err)
	}
	if d.seslog != nil {
		_ = d.seslog.Close()
	}

	newID := session.NewID(d.now())
	tw, err := transcript.OpenWriter(d.cfg.DataRoot, newID)
	if err != nil {
		return "", fmt.Errorf("open transcript for new session: %w", err)
	}
	lg, err := seslog.Open(d.cfg.DataRoot, newID, seslog.DefaultMaxBytes)
	if err != nil {
		return "", fmt.Errorf("open session log for new session: %w", err)
	}

	d.state = session.New(newID, d.cfg)
	d.transcript = tw
	d.seslog = lg
	return fmt.Sprintf("started session %s", newID), nil
}

func (d *Driver) cmdModel(ctx context.Context, args string) (string, error) {
	if args == "" {
		return "", fmt.Errorf("usage: /model <id>")
	}
	if len(d.allowedModels) > 0 {
		if _, ok := d.allowedModels[args]; !ok {
			return "", fmt.Errorf("model %q is not in the allowed set", args)
		}
	}
	d.state.SetModel(args)
	return fmt.Sprintf("model set to %s", args), nil
}

func (d *Driver) cmdReasoning(ctx context.Context, args string) (string, error) {
	if !config.ValidReasoningEffort(args) {
		return "", fmt.Errorf("invalid reasoning effort %q", args)
	}
	d.state.SetReasoningEffort(config.ReasoningEffort(args))
	return fmt.Sprintf("reasoning effort set to %s", args), nil
}

func (d *Driver) cmdApprovals(ctx context.Context, args string) (string, error) {
	if !config.ValidApprovalPolicy(args) {
		return "", fmt.Errorf("invalid approval policy %q", args)
	}
	policy := config.ApprovalPolicy(args)
	d.state.SetApprovalPolicy(policy)
	d.router.SetPolicy(policy)
	return fmt.Sprintf("approval policy set to %s", args), nil
}

func (d *Driver) cmdFsMode(ctx context.Context, args string) (string, error) {
	if !config.ValidFsMode(args) {
		return "", fmt.Errorf("invalid fs mode %q", args)
	}
	mode := config.FsMode(args)
	b, err := boundary.New(mode, d.workspaceRoot)
	if err != nil {
		return "", fmt.Errorf("rebuild boundary: %w", err)
	}
	d.state.SetFsMode(mode)
	d.toolCtx.Boundary = b
	return fmt.Sprintf("fs mode set to %s", args), nil
}

func (d *Driver) cmdHelp(ctx context.Context, args string) (string, error) {
	return strings.Join([]string{
		"/newsession           flush the current session, start a fresh one",
		"/model <id>           switch the active model",
		"/reasoning <level>    set reasoning effort (none|minimal|low|medium|high)",
		"/approvals <policy>   set approval policy (never|on-request|always)",
		"/fsmode <mode>        set filesystem mode (restricted|unrestricted)",
		"/help                 show this message",
		"/quit                 end the session",
	}, "\n"), nil
}

func (d *Driver) cmdQuit(ctx context.Context, args string) (string, error) {
	return "goodbye", ErrQuit
}
