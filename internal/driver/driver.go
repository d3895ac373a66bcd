// Package driver implements the conversation driver from spec.md §4.K:
// the per-session turn loop, slash-command dispatch, and the glue that
// feeds tool results back into the model within a single turn.
package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"lincona/internal/config"
	"lincona/internal/livefeed"
	"lincona/internal/modelclient"
	"lincona/internal/seslog"
	"lincona/internal/session"
	"lincona/internal/tools"
	"lincona/internal/transcript"
	"lincona/internal/usage"
)

// MaxToolHops bounds the number of tool round-trips the driver will
// chain within a single turn (spec.md §4.K).
const MaxToolHops = 8

// ErrQuit is returned by HandleInput when the user issues /quit. It is
// not itself an error condition; callers should exit their read loop
// cleanly on seeing it.
var ErrQuit = errors.New("quit requested")

// Driver owns one session's mutable state and wires it to the model
// client, the tool router, and the transcript/log sinks. Only one
// HandleInput call is in flight at a time; the cooperative scheduling
// model in spec.md §5 means the driver never needs its own mutex.
type Driver struct {
	cfg           config.ResolvedConfig
	workspaceRoot string
	allowedModels map[string]struct{}

	state      *session.State
	client     *modelclient.Client
	registry   *tools.Registry
	router     *tools.Router
	toolCtx    *tools.Context
	transcript *transcript.Writer
	seslog     *seslog.Logger
	usage      *usage.Store    // optional; nil disables usage recording
	feed       *livefeed.Hub   // optional; nil disables the live tail
	out        io.Writer
	now        func() time.Time
}

// New builds a Driver around an already-open session. Callers (the
// cmd/lincona entrypoint) are responsible for constructing the
// transcript writer, session logger, and tool context that match
// state.ID.
func New(
	cfg config.ResolvedConfig,
	workspaceRoot string,
	allowedModels []string,
	state *session.State,
	client *modelclient.Client,
	registry *tools.Registry,
	router *tools.Router,
	toolCtx *tools.Context,
	tw *transcript.Writer,
	lg *seslog.Logger,
	us *usage.Store,
	feed *livefeed.Hub,
	out io.Writer,
) *Driver {
	allowed := make(map[string]struct{}, len(allowedModels))
	for _, m := range allowedModels {
		allowed[m] = struct{}{}
	}
	return &Driver{
		cfg:           cfg,
		workspaceRoot: workspaceRoot,
		allowedModels: allowed,
		state:         state,
		client:        client,
		registry:      registry,
		router:        router,
		toolCtx:       toolCtx,
		transcript:    tw,
		seslog:        lg,
		usage:         us,
		feed:          feed,
		out:           out,
		now:           time.Now,
	}
}

// SessionID returns the id of the session currently in effect.
func (d *Driver) SessionID() string {
	return d.state.ID
}

// HandleInput dispatches one line of user input: slash commands go to
// the command table, everything else starts a model turn.
func (d *Driver) HandleInput(ctx context.Context, input string) error {
	if len(input) > 0 && input[0] == '/' {
		return d.handleSlash(ctx, input)
	}
	return d.RunTurn(ctx, input)
}

// RunTurn implements spec.md §4.K step 2: append the user message,
// stream the model's response, dispatching any tool calls and feeding
// their results back in the same turn, up to MaxToolHops.
func (d *Driver) RunTurn(ctx context.Context, input string) error {
	d.appendEvent(transcript.KindUserMessage, "", map[string]any{"content": input})
	d.state.Append(session.Message{Role: session.RoleUser, Content: input})

	hops := 0
	for {
		leg, err := d.runLeg(ctx, &hops)
		if err != nil {
			return err
		}
		if !leg.dispatchedAnyTool {
			return nil
		}
	}
}

type legResult struct {
	dispatchedAnyTool bool
}

// runLeg sends one model request built from the current history and
// consumes its event stream. It returns once the model signals
// TurnDone (or the stream fails), after which the caller decides
// whether another leg is needed (tool calls were dispatched this leg).
func (d *Driver) runLeg(ctx context.Context, hops *int) (legResult, error) {
	model, effort, _, _ := d.state.Overlay()
	req := modelclient.Request{
		Model:           model,
		Input:           toWireMessages(d.state.Snapshot()),
		Tools:           specsAsAny(d.registry.Specs()),
		ReasoningEffort: string(effort),
		Verbosity:       d.cfg.Verbosity,
	}

	stream := d.client.Send(ctx, req)

	var assistantBuf []byte
	result := legResult{}

	for ev := range stream.Events {
		switch ev.Kind {
		case modelclient.KindTextDelta:
			assistantBuf = append(assistantBuf, ev.Text...)
			fmt.Fprint(d.out, ev.Text)
			d.appendEvent(transcript.KindAssistantDelta, "", map[string]any{"text": ev.Text})

		case modelclient.KindMessageDone:
			// content is finalized on TurnDone; nothing to do mid-leg.

		case modelclient.KindToolCallStart:
			// no transcript entry until arguments are complete.

		case modelclient.KindToolCallReady:
			result.dispatchedAnyTool = true
			*hops++
			if *hops > MaxToolHops {
				d.handleToolResult(ev.CallID, ev.Name, session.ToolResult{
					Success: false,
					Content: "tool-hop limit reached",
				})
				continue
			}
			d.appendEvent(transcript.KindToolCall, ev.CallID, map[string]any{
				"name": ev.Name,
				"args": rawJSONToAny(ev.ArgsRaw),
			})
			toolResult := d.router.Dispatch(ev.Name, json.RawMessage(ev.ArgsRaw))
			d.handleToolResult(ev.CallID, ev.Name, toolResult)

		case modelclient.KindError:
			d.appendEvent(transcript.KindError, "", map[string]any{
				"kind":        ev.ErrorKind,
				"message":     ev.Message,
				"retry_after": ev.RetryAfter,
			})
			fmt.Fprintf(d.out, "\nerror: %s (see session log for details)\n", ev.Message)
			return result, fatal(fmt.Errorf("model stream error: %s: %s", ev.ErrorKind, ev.Message))

		case modelclient.KindTurnDone:
			if len(assistantBuf) > 0 {
				content := string(assistantBuf)
				d.state.Append(session.Message{Role: session.RoleAssistant, Content: content})
				d.appendEvent(transcript.KindAssistantMessage, "", map[string]any{"content": content})
			}
			if ev.TotalTokens > 0 {
				d.recordUsage(req.Model, ev)
			}
		}
	}

	if doneErr := <-stream.Done; doneErr != nil {
		if errors.Is(doneErr, context.Canceled) {
			// A single SIGINT cancels the in-flight stream and aborts this
			// turn without touching the process; a second SIGINT is what
			// triggers shutdown (spec.md §5).
			d.appendEvent(transcript.KindError, "", map[string]any{
				"kind":    "TurnAborted",
				"message": doneErr.Error(),
			})
			fmt.Fprintf(d.out, "\ninterrupted\n")
			return result, nil
		}
		d.appendEvent(transcript.KindError, "", map[string]any{
			"kind":    "TransportFatal",
			"message": doneErr.Error(),
		})
		fmt.Fprintf(d.out, "\nerror: %s (see session log for details)\n", doneErr.Error())
		return result, fatal(doneErr)
	}

	return result, nil
}

// handleToolResult records the tool-result event and feeds the result
// back into history as a tool-role message for the next leg.
func (d *Driver) handleToolResult(callID, name string, result session.ToolResult) {
	d.appendEvent(transcript.KindToolResult, callID, map[string]any{
		"name":      name,
		"success":   result.Success,
		"content":   result.Content,
		"truncated": result.Truncated,
	})
	d.state.Append(session.Message{
		Role:       session.RoleTool,
		Content:    result.Content,
		ToolCallID: callID,
	})
}

// recordUsage persists one turn's token accounting to the usage
// ledger. Failures here are logged but never interrupt the turn: the
// ledger is additive telemetry, not the authoritative transcript.
func (d *Driver) recordUsage(model string, ev modelclient.Event) {
	if d.usage == nil {
		return
	}
	rec := usage.TurnUsage{
		SessionID:    d.state.ID,
		Model:        model,
		InputTokens:  ev.InputTokens,
		OutputTokens: ev.OutputTokens,
		TotalTokens:  ev.TotalTokens,
		RecordedAt:   d.now().UTC(),
	}
	if err := d.usage.RecordTurn(context.Background(), rec); err != nil && d.seslog != nil {
		d.seslog.Log("error", "usage record failed", zap.Error(err))
	}
}

func (d *Driver) appendEvent(kind transcript.Kind, toolCallID string, payload map[string]any) {
	ev := transcript.Event{Timestamp: d.now().UTC(), Kind: kind, ToolCallID: toolCallID, Payload: payload}
	if err := d.transcript.Append(ev); err != nil && d.seslog != nil {
		d.seslog.Log("error", "transcript append failed", zap.Error(err))
	}
	if d.feed != nil {
		d.feed.Publish(d.state.ID, ev)
	}
}

func toWireMessages(history []session.Message) []modelclient.Message {
	out := make([]modelclient.Message, 0, len(history))
	for _, m := range history {
		out = append(out, modelclient.Message{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		})
	}
	return out
}

func specsAsAny(specs []tools.Spec) []any {
	out := make([]any, len(specs))
	for i, s := range specs {
		out[i] = s
	}
	return out
}

func rawJSONToAny(raw string) any {
	if raw == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}
