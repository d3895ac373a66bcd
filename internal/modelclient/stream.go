package modelclient

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// DefaultMaxToolArgBuffer is the per-call-id argument buffer cap from
// spec.md §4.J.
const DefaultMaxToolArgBuffer = 1024 * 1024

// DefaultMaxQueue is consume_stream's default bounded-queue size.
const DefaultMaxQueue = 16

type rawPayload struct {
	Type string `json:"type"`

	Index int    `json:"index"`
	Text  string `json:"text"`
	Delta string `json:"delta"`

	CallID string `json:"call_id"`
	Name   string `json:"name"`

	ErrorKind  string  `json:"kind"`
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`

	Usage *usagePayload `json:"usage,omitempty"`
}

type usagePayload struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// parser tracks per-call-id argument buffers across a single turn's
// stream, enforcing the 1 MiB cap named in spec.md §4.J.
type parser struct {
	maxToolArgBuffer int
	argBuffers       map[string]*[]byte
	names            map[string]string
}

func newParser(maxToolArgBuffer int) *parser {
	if maxToolArgBuffer <= 0 {
		maxToolArgBuffer = DefaultMaxToolArgBuffer
	}
	return &parser{
		maxToolArgBuffer: maxToolArgBuffer,
		argBuffers:       make(map[string]*[]byte),
		names:            make(map[string]string),
	}
}

// handle converts one decoded SSE payload into zero or more output
// events, per the payload-type table in spec.md §4.J.
func (p *parser) handle(payload rawPayload) ([]Event, error) {
	switch payload.Type {
	case "response.output_text.delta":
		return []Event{{Kind: KindTextDelta, Index: payload.Index, Text: payload.Text}}, nil

	case "response.output_text.done":
		return []Event{{Kind: KindMessageDone, Index: payload.Index}}, nil

	case "response.tool_call.created":
		buf := make([]byte, 0, 256)
		p.argBuffers[payload.CallID] = &buf
		p.names[payload.CallID] = payload.Name
		return []Event{{Kind: KindToolCallStart, CallID: payload.CallID, Name: payload.Name}}, nil

	case "response.tool_call.arguments.delta":
		buf, ok := p.argBuffers[payload.CallID]
		if !ok {
			empty := make([]byte, 0, 256)
			buf = &empty
			p.argBuffers[payload.CallID] = buf
		}
		*buf = append(*buf, payload.Delta...)
		if len(*buf) > p.maxToolArgBuffer {
			return nil, fmt.Errorf("tool call %s exceeded max argument buffer of %d bytes", payload.CallID, p.maxToolArgBuffer)
		}
		return nil, nil

	case "response.tool_call.done":
		name := payload.Name
		if name == "" {
			name = p.names[payload.CallID]
		}
		var argsRaw string
		if buf, ok := p.argBuffers[payload.CallID]; ok {
			argsRaw = string(*buf)
		}
		delete(p.argBuffers, payload.CallID)
		delete(p.names, payload.CallID)

		if argsRaw != "" && !json.Valid([]byte(argsRaw)) {
			return []Event{{Kind: KindError, ErrorKind: "InvalidToolArguments", Message: fmt.Sprintf("tool call %s produced invalid JSON arguments", payload.CallID)}}, nil
		}
		return []Event{{Kind: KindToolCallReady, CallID: payload.CallID, Name: name, ArgsRaw: argsRaw}}, nil

	case "response.error":
		return []Event{{Kind: KindError, ErrorKind: payload.ErrorKind, Message: payload.Message, RetryAfter: payload.RetryAfter}}, nil

	case "response.completed":
		ev := Event{Kind: KindTurnDone}
		if payload.Usage != nil {
			ev.InputTokens = payload.Usage.InputTokens
			ev.OutputTokens = payload.Usage.OutputTokens
			ev.TotalTokens = payload.Usage.TotalTokens
		}
		return []Event{ev}, nil

	default:
		return nil, fmt.Errorf("unsupported event type: %q", payload.Type)
	}
}

// ConsumeStream reads body line by line, parses SSE `data: ` payloads,
// and sends resulting Events on out. out's buffer size is the
// back-pressure queue depth: the reader blocks (and therefore stops
// pulling bytes) whenever the consumer falls behind. An ErrorEvent, if
// any, is always sent before the channel closes.
func ConsumeStream(body io.Reader, out chan<- Event, maxToolArgBuffer int) error {
	defer close(out)
	p := newParser(maxToolArgBuffer)
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		var content string
		switch {
		case line == "data: [DONE]" || line == "[DONE]":
			out <- Event{Kind: KindTurnDone}
			continue
		case len(line) >= 6 && line[:6] == "data: ":
			content = line[6:]
		default:
			continue
		}

		var payload rawPayload
		if err := json.Unmarshal([]byte(content), &payload); err != nil {
			out <- Event{Kind: KindError, ErrorKind: "StreamParseError", Message: fmt.Sprintf("invalid JSON chunk: %v", err)}
			return fmt.Errorf("invalid JSON chunk: %w", err)
		}

		events, err := p.handle(payload)
		if err != nil {
			out <- Event{Kind: KindError, ErrorKind: "StreamParseError", Message: err.Error()}
			return err
		}
		for _, ev := range events {
			out <- ev
		}
	}
	if err := scanner.Err(); err != nil {
		out <- Event{Kind: KindError, ErrorKind: "StreamReadError", Message: err.Error()}
		return err
	}
	return nil
}

// NewQueue allocates the bounded output channel consume_stream reads
// into, sized per spec.md §4.J's max_queue default.
func NewQueue(maxQueue int) chan Event {
	if maxQueue <= 0 {
		maxQueue = DefaultMaxQueue
	}
	return make(chan Event, maxQueue)
}
