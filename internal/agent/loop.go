package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dusk-indust/pacer/internal/llm"
	"github.com/dusk-indust/pacer/internal/logging"
	"github.com/dusk-indust/pacer/internal/tools"
)

// ErrMaxIterations is returned when the loop hits its ceiling without the
// provider producing a final answer.
var ErrMaxIterations = errors.New("maximum iterations exceeded")

// Invocation records one executed tool call and its outcome.
type Invocation struct {
	Iteration int
	Call      llm.ToolCall
	Outcome   tools.Outcome
}

// Result is what a loop run produced. It is returned even when Run fails so
// callers can keep partial diagnostics.
type Result struct {
	Answer      string
	Iterations  int
	Usage       llm.Usage
	Invocations []Invocation
}

// Successful returns the successful invocations of the named tool, in order.
func (r *Result) Successful(name string) []tools.Success {
	var out []tools.Success
	for _, inv := range r.Invocations {
		if s, ok := inv.Outcome.(tools.Success); ok && s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

// Loop drives a session against a provider until the provider gives a final
// answer or the iteration ceiling is reached. Tool calls run serially in the
// order the provider requested them.
type Loop struct {
	provider      llm.Provider
	executor      tools.Executor
	maxIterations int
	logger        *slog.Logger
}

// LoopOption configures a Loop during construction.
type LoopOption func(*Loop)

// WithLogger sets the logger used for per-iteration debug output.
func WithLogger(l *slog.Logger) LoopOption {
	return func(lp *Loop) {
		if l != nil {
			lp.logger = l
		}
	}
}

// NewLoop creates a Loop. maxIterations below one is treated as one.
func NewLoop(provider llm.Provider, executor tools.Executor, maxIterations int, opts ...LoopOption) *Loop {
	if maxIterations < 1 {
		maxIterations = 1
	}
	l := &Loop{
		provider:      provider,
		executor:      executor,
		maxIterations: maxIterations,
		logger:        logging.New("agent"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run submits the session up to the ceiling. Each iteration is exactly one
// provider call. The returned Result is never nil.
func (l *Loop) Run(ctx context.Context, session llm.Session) (*Result, error) {
	res := &Result{}

	for i := 1; i <= l.maxIterations; i++ {
		reply, err := l.provider.Send(ctx, session)
		res.Iterations = i
		if err != nil {
			return res, fmt.Errorf("agent: provider call %d: %w", i, err)
		}
		if reply == nil {
			return res, fmt.Errorf("agent: provider call %d returned no reply", i)
		}
		res.Usage = res.Usage.Add(reply.Usage())

		switch r := reply.(type) {
		case llm.FinalAnswer:
			session.Append(llm.Turn{Role: llm.RoleAssistant, Content: r.Text})
			res.Answer = r.Text
			l.logger.Debug("final answer", "session", session.ID(), "iteration", i)
			return res, nil

		case llm.ToolRequest:
			if len(r.Calls) == 0 {
				session.Append(llm.Turn{Role: llm.RoleAssistant, Content: r.Text})
				res.Answer = r.Text
				return res, nil
			}
			session.Append(llm.Turn{Role: llm.RoleAssistant, Content: r.Text, ToolCalls: r.Calls})
			for _, call := range r.Calls {
				outcome := l.executor.Execute(ctx, call.Name, call.Arguments)
				session.Append(llm.Turn{
					Role:       llm.RoleTool,
					Content:    outcome.Content(),
					ToolCallID: call.ID,
					ToolName:   call.Name,
					IsError:    !outcome.OK(),
				})
				res.Invocations = append(res.Invocations, Invocation{Iteration: i, Call: call, Outcome: outcome})
				l.logger.Debug("tool executed", "session", session.ID(), "iteration", i, "tool", call.Name, "ok", outcome.OK())
			}

		default:
			return res, fmt.Errorf("agent: unsupported reply type %T", reply)
		}
	}

	return res, fmt.Errorf("agent: %w (%d)", ErrMaxIterations, l.maxIterations)
}
