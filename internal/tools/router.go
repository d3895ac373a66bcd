package tools

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"lincona/internal/boundary"
	"lincona/internal/config"
	"lincona/internal/pty"
	"lincona/internal/session"
)

// ApprovalCallback prompts a human for on-request approval of a
// mutating tool call, returning true if approved. The cmd/lincona
// entrypoint supplies the concrete implementation (reading a line from
// the terminal).
type ApprovalCallback func(toolName string, rawArgs json.RawMessage) bool

// Context is threaded into every tool handler.
type Context struct {
	Boundary *boundary.Boundary
	PTY      *pty.Manager
}

// Router dispatches validated tool calls with boundary and
// approval-policy enforcement, per spec.md §4.H.
type Router struct {
	registry   *Registry
	toolCtx    *Context
	policy     config.ApprovalPolicy
	onApproval ApprovalCallback
	logger     *zap.Logger
}

// NewRouter builds a Router. onApproval may be nil; a nil callback
// refuses every on-request approval (fail closed).
func NewRouter(registry *Registry, toolCtx *Context, policy config.ApprovalPolicy, onApproval ApprovalCallback, logger *zap.Logger) *Router {
	return &Router{registry: registry, toolCtx: toolCtx, policy: policy, onApproval: onApproval, logger: logger}
}

// SetPolicy updates the approval policy in effect for subsequent dispatches.
func (r *Router) SetPolicy(policy config.ApprovalPolicy) {
	r.policy = policy
}

// Dispatch runs the full pipeline from spec.md §4.H: lookup, approval
// gating, and handler invocation. Every failure mode short of a
// programmer error returns a ToolResult with Success=false rather than
// a Go error, since the result is model-visible.
func (r *Router) Dispatch(name string, rawArgs json.RawMessage) session.ToolResult {
	reg, ok := r.registry.Lookup(name)
	if !ok {
		r.log("request", name, rawArgs)
		return failResult(fmt.Sprintf("unknown tool %q", name))
	}

	r.log("request", name, rawArgs)

	if reg.RequiresApproval {
		if result, refused := r.checkApproval(reg, rawArgs); refused {
			r.logResponse(name, result)
			return result
		}
	}

	result, err := reg.Handler(r.toolCtx, rawArgs)
	if err != nil {
		result = failResult(err.Error())
	}
	r.logResponse(name, result)
	return result
}

func (r *Router) checkApproval(reg Registration, rawArgs json.RawMessage) (session.ToolResult, bool) {
	switch r.policy {
	case config.ApprovalNever:
		return failResult(fmt.Sprintf("approval policy forbids running %q", reg.Name)), true
	case config.ApprovalOnRequest:
		if r.onApproval == nil || !r.onApproval(reg.Name, rawArgs) {
			return failResult(fmt.Sprintf("approval denied for %q", reg.Name)), true
		}
		return session.ToolResult{}, false
	case config.ApprovalAlways:
		return session.ToolResult{}, false
	default:
		return failResult(fmt.Sprintf("unrecognized approval policy %q", r.policy)), true
	}
}

func (r *Router) log(phase, name string, rawArgs json.RawMessage) {
	if r.logger == nil {
		return
	}
	r.logger.Info("tool request", zap.String("tool", name), zap.ByteString("args", rawArgs))
}

func (r *Router) logResponse(name string, result session.ToolResult) {
	if r.logger == nil {
		return
	}
	r.logger.Debug("tool response", zap.String("tool", name), zap.Bool("success", result.Success), zap.Bool("truncated", result.Truncated))
}

func failResult(content string) session.ToolResult {
	return session.ToolResult{Success: false, Content: content}
}

func okResult(content string, payload any, truncated bool) session.ToolResult {
	return session.ToolResult{Success: true, Content: content, Payload: payload, Truncated: truncated}
}
