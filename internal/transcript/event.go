// Package transcript implements the append-only JSONL event log described
// in spec.md §4.A: a strict event schema, a durable writer, and a
// line-numbered validating reader.
package transcript

import (
	"fmt"
	"time"
)

// Kind enumerates the event kinds spec.md §3 allows. Unknown kinds fail
// serialization rather than being silently accepted.
type Kind string

const (
	KindSystem           Kind = "system"
	KindUserMessage      Kind = "user-message"
	KindAssistantDelta   Kind = "assistant-delta"
	KindAssistantMessage Kind = "assistant-message"
	KindToolCall         Kind = "tool-call"
	KindToolResult       Kind = "tool-result"
	KindSlashCommand     Kind = "slash-command"
	KindTruncationNotice Kind = "truncation-notice"
	KindError            Kind = "error"
)

var allowedKinds = map[Kind]struct{}{
	KindSystem:           {},
	KindUserMessage:      {},
	KindAssistantDelta:   {},
	KindAssistantMessage: {},
	KindToolCall:         {},
	KindToolResult:       {},
	KindSlashCommand:     {},
	KindTruncationNotice: {},
	KindError:            {},
}

// Event is one JSONL transcript entry.
type Event struct {
	Timestamp  time.Time      `json:"timestamp"`
	Kind       Kind           `json:"kind"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Validate enforces the required-field / known-kind strict-mode rule from
// spec.md §4.A: serialization must fail if an event lacks a required field
// or carries an unknown kind.
func (e Event) Validate() error {
	if e.Timestamp.IsZero() {
		return fmt.Errorf("event timestamp is required")
	}
	if e.Kind == "" {
		return fmt.Errorf("event kind is required")
	}
	if _, ok := allowedKinds[e.Kind]; !ok {
		return fmt.Errorf("unknown event kind: %s", e.Kind)
	}
	if e.Kind == KindToolResult && e.ToolCallID == "" {
		return fmt.Errorf("tool-result event requires tool_call_id")
	}
	return nil
}
