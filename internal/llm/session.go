// Package llm defines the collaborators a tool-calling stage talks to: an
// isolated conversation (Session), the reasoning provider that answers it,
// and the prompt builder that seeds it.
package llm

import (
	"encoding/json"
	"slices"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
)

// Role represents a conversation participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation requested by the provider.
// Arguments preserve the raw JSON the provider produced.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Turn is one entry of a session transcript. Assistant turns may carry tool
// calls; tool turns answer exactly one call.
type Turn struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
	ToolCallID string     `json:"toolCallId,omitempty"`
	ToolName   string     `json:"toolName,omitempty"`
	IsError    bool       `json:"isError,omitempty"`
}

// ToolSpec advertises a tool to the provider.
type ToolSpec struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// Session is an isolated, stage-scoped conversation. A session is owned by a
// single stage invocation and discarded afterwards.
type Session interface {
	ID() string
	Instructions() string
	Tools() []ToolSpec
	Append(turn Turn)
	// Transcript returns a copy of every turn, starting with the system turn.
	Transcript() []Turn
}

// SessionCreator opens new sessions.
type SessionCreator interface {
	Create(instructions string, opts ...SessionOption) Session
}

// SessionOption configures a session during creation.
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	tools []ToolSpec
}

// WithTools advertises the given tools in the new session.
func WithTools(specs ...ToolSpec) SessionOption {
	return func(o *sessionOptions) {
		o.tools = append(o.tools, specs...)
	}
}

// MemorySessions creates in-process sessions. No cross-process persistence.
type MemorySessions struct{}

// Compile-time interface check.
var _ SessionCreator = MemorySessions{}

// NewMemorySessions returns a SessionCreator backed by memory.
func NewMemorySessions() MemorySessions {
	return MemorySessions{}
}

// Create opens a session whose first turn carries the instructions.
func (MemorySessions) Create(instructions string, opts ...SessionOption) Session {
	var o sessionOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &memorySession{
		id:           uuid.NewString(),
		instructions: instructions,
		tools:        o.tools,
		turns:        []Turn{{Role: RoleSystem, Content: instructions}},
	}
}

type memorySession struct {
	id           string
	instructions string
	tools        []ToolSpec

	mu    sync.Mutex
	turns []Turn
}

func (s *memorySession) ID() string           { return s.id }
func (s *memorySession) Instructions() string { return s.instructions }
func (s *memorySession) Tools() []ToolSpec    { return slices.Clone(s.tools) }

func (s *memorySession) Append(turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	turn.ToolCalls = slices.Clone(turn.ToolCalls)
	s.turns = append(s.turns, turn)
}

func (s *memorySession) Transcript() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	for i, t := range s.turns {
		t.ToolCalls = slices.Clone(t.ToolCalls)
		out[i] = t
	}
	return out
}
