package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dusk-indust/pacer/internal/llm"
	"github.com/google/jsonschema-go/jsonschema"
)

// ErrUnknownTool is reported (inside a Failure) for unregistered tool names.
var ErrUnknownTool = errors.New("unknown tool")

// Handler runs a tool with arguments that already passed schema validation.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Typed adapts a function taking a decoded argument struct to a Handler.
func Typed[T any](fn func(ctx context.Context, args T) (any, error)) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args T
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("decode arguments: %w", err)
		}
		return fn(ctx, args)
	}
}

// Tool is a named operation with a declared parameter schema.
type Tool struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
	Handler     Handler
}

// Executor runs a tool by name. Implementations never return errors: every
// problem becomes a Failure outcome.
type Executor interface {
	Execute(ctx context.Context, name string, args json.RawMessage) Outcome
}

// Registry validates arguments against each tool's schema and runs tools one
// at a time, in the order they are requested.
type Registry struct {
	tools   map[string]*entry
	order   []string
	timeout time.Duration

	// running is held for as long as a handler runs, including a handler
	// abandoned after its timeout, so no two handlers ever overlap.
	running sync.Mutex
}

type entry struct {
	tool     Tool
	resolved *jsonschema.Resolved
}

// Compile-time interface check.
var _ Executor = (*Registry)(nil)

// RegistryOption configures a Registry during construction.
type RegistryOption func(*Registry)

// WithTimeout bounds each tool call. Zero means no deadline.
func WithTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.timeout = d
	}
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{tools: make(map[string]*entry)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool. Names must be unique and schemas must resolve.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return errors.New("tools: tool name is required")
	}
	if t.Handler == nil {
		return fmt.Errorf("tools: tool %q has no handler", t.Name)
	}
	if _, dup := r.tools[t.Name]; dup {
		return fmt.Errorf("tools: tool %q already registered", t.Name)
	}
	if t.Parameters == nil {
		t.Parameters = Object(nil)
	}
	resolved, err := t.Parameters.Resolve(nil)
	if err != nil {
		return fmt.Errorf("tools: resolve schema for %q: %w", t.Name, err)
	}
	r.tools[t.Name] = &entry{tool: t, resolved: resolved}
	r.order = append(r.order, t.Name)
	return nil
}

// MustRegister is Register for statically known tool sets; it panics on error.
func (r *Registry) MustRegister(ts ...Tool) *Registry {
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

// Specs returns the tool advertisements in registration order.
func (r *Registry) Specs() []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name].tool
		specs = append(specs, llm.ToolSpec{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return specs
}

// Validate checks raw arguments against the named tool's schema and returns
// the messages describing every problem found.
func (r *Registry) Validate(name string, raw json.RawMessage) []string {
	e, ok := r.tools[name]
	if !ok {
		return []string{fmt.Sprintf("%v %q", ErrUnknownTool, name)}
	}
	return validate(e.resolved, raw)
}

func validate(resolved *jsonschema.Resolved, raw json.RawMessage) []string {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return []string{fmt.Sprintf("arguments are not valid JSON: %v", err)}
	}
	if _, ok := instance.(map[string]any); !ok {
		return []string{"arguments must be a JSON object"}
	}
	if err := resolved.Validate(instance); err != nil {
		return []string{err.Error()}
	}
	return nil
}

// Execute validates and runs one tool call. Invalid arguments, unknown names,
// handler errors and timeouts all come back as a Failure.
func (r *Registry) Execute(ctx context.Context, name string, raw json.RawMessage) Outcome {
	e, ok := r.tools[name]
	if !ok {
		return Fail(name, "%v %q", ErrUnknownTool, name)
	}
	if problems := validate(e.resolved, raw); len(problems) > 0 {
		return Failure{Name: name, Errors: problems}
	}
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	data, err := r.call(ctx, e.tool, raw)
	if err != nil {
		return Fail(name, "%v", err)
	}
	return Success{Name: name, Data: data}
}

type callResult struct {
	data  any
	err   error
	panic any
}

// call runs the handler under the running lock. With a timeout the caller
// stops waiting at the deadline, but the lock is released only when the
// handler itself returns; handlers should honour ctx to hand it back early.
func (r *Registry) call(ctx context.Context, t Tool, raw json.RawMessage) (any, error) {
	r.running.Lock()
	if r.timeout <= 0 {
		defer r.running.Unlock()
		return t.Handler(ctx, raw)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		defer r.running.Unlock()
		var res callResult
		defer func() {
			if p := recover(); p != nil {
				res.panic = p
			}
			done <- res
		}()
		res.data, res.err = t.Handler(ctx, raw)
	}()

	select {
	case res := <-done:
		if res.panic != nil {
			panic(res.panic)
		}
		return res.data, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("tool %q exceeded %s: %w", t.Name, r.timeout, ctx.Err())
	}
}
