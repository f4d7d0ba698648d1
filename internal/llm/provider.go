package llm

import (
	"context"
	"fmt"
	"time"
)

// Usage tracks token consumption for one or more provider calls.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// Total returns prompt plus completion tokens.
func (u Usage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// Add returns the sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
	}
}

// Reply is what a provider returns for a session: either a FinalAnswer or a
// ToolRequest, never both.
type Reply interface {
	Usage() Usage
	isReply()
}

// FinalAnswer ends a tool-calling loop.
type FinalAnswer struct {
	Text   string
	Tokens Usage
}

// ToolRequest asks the caller to run one or more tools and continue.
type ToolRequest struct {
	// Text is optional commentary the provider produced alongside the calls.
	Text   string
	Calls  []ToolCall
	Tokens Usage
}

func (r FinalAnswer) Usage() Usage { return r.Tokens }
func (r ToolRequest) Usage() Usage { return r.Tokens }

func (FinalAnswer) isReply() {}
func (ToolRequest) isReply() {}

// Provider submits a session to a reasoning engine.
type Provider interface {
	Send(ctx context.Context, session Session) (Reply, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, session Session) (Reply, error)

// Send calls f.
func (f ProviderFunc) Send(ctx context.Context, session Session) (Reply, error) {
	return f(ctx, session)
}

// WithTimeout bounds every Send with a hard deadline. A provider that ignores
// its context is abandoned when the deadline passes; the call then returns an
// error wrapping context.DeadlineExceeded. A zero timeout returns p unchanged.
func WithTimeout(p Provider, timeout time.Duration) Provider {
	if timeout <= 0 {
		return p
	}
	return &timeoutProvider{next: p, timeout: timeout}
}

type timeoutProvider struct {
	next    Provider
	timeout time.Duration
}

type sendResult struct {
	reply Reply
	err   error
}

func (t *timeoutProvider) Send(ctx context.Context, session Session) (Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan sendResult, 1)
	go func() {
		reply, err := t.next.Send(ctx, session)
		done <- sendResult{reply: reply, err: err}
	}()

	select {
	case r := <-done:
		return r.reply, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("llm: provider call exceeded %s: %w", t.timeout, ctx.Err())
	}
}
