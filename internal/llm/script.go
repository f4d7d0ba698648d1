package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrScriptExhausted is returned when a ScriptProvider has no replies left.
var ErrScriptExhausted = errors.New("llm: script exhausted")

// ScriptProvider replays a fixed sequence of replies, one per Send, across
// every session it is given. It backs offline runs and tests.
type ScriptProvider struct {
	mu      sync.Mutex
	replies []Reply
	next    int
	sent    []string // session IDs in call order
}

// Compile-time interface check.
var _ Provider = (*ScriptProvider)(nil)

// NewScriptProvider returns a provider that replays replies in order.
func NewScriptProvider(replies ...Reply) *ScriptProvider {
	return &ScriptProvider{replies: replies}
}

// Send returns the next scripted reply.
func (p *ScriptProvider) Send(ctx context.Context, session Session) (Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sent = append(p.sent, session.ID())
	if p.next >= len(p.replies) {
		return nil, fmt.Errorf("%w after %d replies", ErrScriptExhausted, len(p.replies))
	}
	r := p.replies[p.next]
	p.next++
	return r, nil
}

// Calls returns how many times Send has been called.
func (p *ScriptProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

// Remaining returns how many replies have not been replayed yet.
func (p *ScriptProvider) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.replies) - p.next
}

// scriptFile is the YAML form of a replay script.
type scriptFile struct {
	Replies []scriptReply `yaml:"replies"`
}

type scriptReply struct {
	Text      string       `yaml:"text,omitempty"`
	ToolCalls []scriptCall `yaml:"toolCalls,omitempty"`
	Prompt    int          `yaml:"promptTokens,omitempty"`
	Output    int          `yaml:"completionTokens,omitempty"`
}

type scriptCall struct {
	ID        string         `yaml:"id,omitempty"`
	Name      string         `yaml:"name"`
	Arguments map[string]any `yaml:"arguments,omitempty"`
}

// LoadScript reads a YAML replay script. Replies with toolCalls become
// ToolRequests; all others become FinalAnswers.
func LoadScript(path string) (*ScriptProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("llm: read script %s: %w", path, err)
	}
	var sf scriptFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("llm: parse script %s: %w", path, err)
	}

	replies := make([]Reply, 0, len(sf.Replies))
	for i, r := range sf.Replies {
		usage := Usage{PromptTokens: r.Prompt, CompletionTokens: r.Output}
		if len(r.ToolCalls) == 0 {
			replies = append(replies, FinalAnswer{Text: r.Text, Tokens: usage})
			continue
		}
		calls := make([]ToolCall, 0, len(r.ToolCalls))
		for j, c := range r.ToolCalls {
			if c.Name == "" {
				return nil, fmt.Errorf("llm: script %s: reply %d call %d has no name", path, i, j)
			}
			args := c.Arguments
			if args == nil {
				args = map[string]any{}
			}
			raw, err := json.Marshal(args)
			if err != nil {
				return nil, fmt.Errorf("llm: script %s: reply %d call %d: %w", path, i, j, err)
			}
			id := c.ID
			if id == "" {
				id = fmt.Sprintf("call-%d-%d", i, j)
			}
			calls = append(calls, ToolCall{ID: id, Name: c.Name, Arguments: raw})
		}
		replies = append(replies, ToolRequest{Text: r.Text, Calls: calls, Tokens: usage})
	}
	return NewScriptProvider(replies...), nil
}
