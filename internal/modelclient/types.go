// Package modelclient implements the streaming SSE client from spec.md
// §4.J: request assembly, line-by-line SSE parsing into typed output
// events, back-pressured delivery, and retry with exponential backoff.
package modelclient

// EventKind discriminates the union of streamed output events.
type EventKind string

const (
	KindTextDelta     EventKind = "text_delta"
	KindMessageDone   EventKind = "message_done"
	KindToolCallStart EventKind = "tool_call_start"
	KindToolCallReady EventKind = "tool_call_ready"
	KindError         EventKind = "error"
	KindTurnDone      EventKind = "turn_done"
)

// Event is the single type carried on the client's output channel; only
// the fields relevant to Kind are populated.
type Event struct {
	Kind EventKind

	// TextDelta
	Index int
	Text  string

	// ToolCallStart / ToolCallReady
	CallID  string
	Name    string
	ArgsRaw string // ToolCallReady only, raw JSON arguments

	// Error
	ErrorKind  string
	Message    string
	RetryAfter float64 // seconds, 0 if absent

	// TurnDone, when the payload carried a usage block
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// Message is one entry of the request's input array.
type Message struct {
	Role       string `json:"role"`
	Content    string `json:"content,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Request is serialized to JSON per spec.md §4.J's request-assembly rules.
type Request struct {
	Model           string    `json:"model"`
	Input           []Message `json:"input"`
	Tools           []any     `json:"tools,omitempty"`
	ReasoningEffort string    `json:"-"`
	Verbosity       string    `json:"verbosity,omitempty"`
	Stream          bool      `json:"stream"`
}

type reasoningField struct {
	Effort string `json:"effort"`
}

// toWire nests ReasoningEffort under "reasoning" as the wire format
// requires, without forcing every caller to build that nesting by hand.
func (r Request) toWire() wireRequest {
	return wireRequest{
		Model:     r.Model,
		Input:     r.Input,
		Tools:     r.Tools,
		Reasoning: &reasoningField{Effort: r.ReasoningEffort},
		Verbosity: r.Verbosity,
		Stream:    r.Stream,
	}
}

type wireRequest struct {
	Model     string          `json:"model"`
	Input     []Message       `json:"input"`
	Tools     []any           `json:"tools,omitempty"`
	Reasoning *reasoningField `json:"reasoning,omitempty"`
	Verbosity string          `json:"verbosity,omitempty"`
	Stream    bool            `json:"stream"`
}
