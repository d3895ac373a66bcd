// Package tools implements the registry/router layer from spec.md
// §4.H/§4.I: typed tool schemas advertised to the model, dispatch
// through the filesystem boundary and approval-policy gates, and the
// seven tool implementations themselves.
package tools

import (
	"encoding/json"
	"fmt"
	"sync"

	"lincona/internal/boundary"
	"lincona/internal/pty"
	"lincona/internal/session"
)

// Handler executes one validated tool invocation.
type Handler func(ctx *Context, rawArgs json.RawMessage) (session.ToolResult, error)

// Registration bundles everything the router and the model-facing spec
// list need to know about one tool.
type Registration struct {
	Name             string
	Description      string
	InputSchema      map[string]any
	RequiresApproval bool
	Handler          Handler
}

// Registry holds the fixed set of tools advertised to the model.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Registration
	order  []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Registration)}
}

// Register adds reg, overwriting any prior registration under the same name.
func (r *Registry) Register(reg Registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[reg.Name]; !exists {
		r.order = append(r.order, reg.Name)
	}
	r.byName[reg.Name] = reg
}

// Lookup returns the registration for name, if any.
func (r *Registry) Lookup(name string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byName[name]
	return reg, ok
}

// Spec is the model-facing tool-call schema entry.
type Spec struct {
	Type     string       `json:"type"`
	Function FunctionSpec `json:"function"`
}

// FunctionSpec is the OpenAI-style function-calling schema body.
type FunctionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Specs returns the tool_specs() array delivered to the model, in
// registration order.
func (r *Registry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Spec, 0, len(r.order))
	for _, name := range r.order {
		reg := r.byName[name]
		params := reg.InputSchema
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		if _, ok := params["additionalProperties"]; !ok {
			params["additionalProperties"] = false
		}
		out = append(out, Spec{
			Type: "function",
			Function: FunctionSpec{
				Name:        reg.Name,
				Description: reg.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

// NewDefaultRegistry wires up all seven tools from spec.md §4.I against
// a shared boundary and PTY manager.
func NewDefaultRegistry(b *boundary.Boundary, ptyMgr *pty.Manager) *Registry {
	r := NewRegistry()
	r.Register(listDirRegistration())
	r.Register(readFileRegistration())
	r.Register(grepFilesRegistration())
	r.Register(applyPatchRegistration("apply_patch_json", false))
	r.Register(applyPatchRegistration("apply_patch_freeform", true))
	r.Register(shellRegistration())
	r.Register(execCommandRegistration())
	r.Register(writeStdinRegistration())
	return r
}

func invalidFieldError(field string, reason string) error {
	return fmt.Errorf("invalid field %q: %s", field, reason)
}
