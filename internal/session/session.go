// Package session holds the mutable per-session state the driver owns:
// message history, live tool calls, and the runtime overlay (model,
// reasoning effort, filesystem mode, approval policy) slash commands can
// change without touching the immutable ResolvedConfig.
package session

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"lincona/internal/config"
)

// IDPattern is the authoritative session id shape from spec.md §6.
var IDPattern = regexp.MustCompile(`^[0-9]{12}-[0-9a-f]{32}$`)

// NewID returns a session id in the form YYYYMMDDHHMM-<32 hex chars>,
// using a UUIDv4's 128 random bits as the collision-resistant suffix.
func NewID(now time.Time) string {
	ts := now.UTC().Format("200601021504")
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return ts + "-" + suffix
}

// Role identifies who authored a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a single model-initiated tool invocation.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolResult is what a dispatched tool call produced.
type ToolResult struct {
	Success    bool
	Content    string
	Payload    any
	Truncated  bool
}

// Message is one immutable entry in the conversation history.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall // only set for assistant messages
	ToolCallID string     // only set for tool-role messages
}

// State is the mutable per-session state the driver owns. All mutation
// goes through its methods, which hold the lock; SessionState is not safe
// to mutate by reaching into its fields from outside this package.
type State struct {
	mu sync.Mutex

	ID              string
	History         []Message
	Model           string
	ReasoningEffort config.ReasoningEffort
	FsMode          config.FsMode
	ApprovalPolicy  config.ApprovalPolicy
	ActivePTYIDs    map[string]struct{}
}

// New builds a fresh session overlay seeded from the immutable config.
func New(id string, cfg config.ResolvedConfig) *State {
	return &State{
		ID:              id,
		Model:           cfg.DefaultModel,
		ReasoningEffort: cfg.ReasoningEffort,
		FsMode:          cfg.FsMode,
		ApprovalPolicy:  cfg.ApprovalPolicy,
		ActivePTYIDs:    map[string]struct{}{},
	}
}

// Append adds an immutable message to history.
func (s *State) Append(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.History = append(s.History, m)
}

// Snapshot returns a copy of the current history for building a request.
func (s *State) Snapshot() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.History))
	copy(out, s.History)
	return out
}

func (s *State) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Model = model
}

func (s *State) SetReasoningEffort(e config.ReasoningEffort) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReasoningEffort = e
}

func (s *State) SetFsMode(m config.FsMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FsMode = m
}

func (s *State) SetApprovalPolicy(p config.ApprovalPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ApprovalPolicy = p
}

func (s *State) Overlay() (model string, effort config.ReasoningEffort, fsMode config.FsMode, approval config.ApprovalPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Model, s.ReasoningEffort, s.FsMode, s.ApprovalPolicy
}

func (s *State) RegisterPTY(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ActivePTYIDs[id] = struct{}{}
}

func (s *State) ForgetPTY(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ActivePTYIDs, id)
}
