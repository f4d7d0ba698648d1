// Package testutil provides scripted providers, recording wrappers and
// fixture helpers shared by the package tests.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/pacer/internal/config"
	"github.com/dusk-indust/pacer/internal/llm"
	"github.com/dusk-indust/pacer/internal/tools"
	"github.com/dusk-indust/pacer/internal/training"
)

var callSeq atomic.Int64

// Call builds a tool call with args marshalled to JSON.
func Call(name string, args any) llm.ToolCall {
	raw, err := json.Marshal(args)
	if err != nil {
		panic(fmt.Sprintf("testutil: marshal args for %s: %v", name, err))
	}
	return llm.ToolCall{ID: fmt.Sprintf("call-%d", callSeq.Add(1)), Name: name, Arguments: raw}
}

// Request builds a ToolRequest.
func Request(calls ...llm.ToolCall) llm.ToolRequest {
	return llm.ToolRequest{Calls: calls, Tokens: llm.Usage{PromptTokens: 10, CompletionTokens: 5}}
}

// Final builds a FinalAnswer.
func Final(text string) llm.FinalAnswer {
	return llm.FinalAnswer{Text: text, Tokens: llm.Usage{PromptTokens: 10, CompletionTokens: 20}}
}

// AlwaysRequest returns a provider that requests call on every send.
func AlwaysRequest(call llm.ToolCall) llm.Provider {
	return llm.ProviderFunc(func(context.Context, llm.Session) (llm.Reply, error) {
		return Request(call), nil
	})
}

// RecordingProvider wraps a provider and counts sends and requested calls.
type RecordingProvider struct {
	Inner llm.Provider

	mu        sync.Mutex
	sends     int
	requested map[string]int
	sessions  map[string]bool
}

// Record wraps p.
func Record(p llm.Provider) *RecordingProvider {
	return &RecordingProvider{Inner: p, requested: map[string]int{}, sessions: map[string]bool{}}
}

// Send forwards to the wrapped provider and records the reply.
func (r *RecordingProvider) Send(ctx context.Context, s llm.Session) (llm.Reply, error) {
	reply, err := r.Inner.Send(ctx, s)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends++
	r.sessions[s.ID()] = true
	if req, ok := reply.(llm.ToolRequest); ok {
		for _, c := range req.Calls {
			r.requested[c.Name]++
		}
	}
	return reply, err
}

// Sends returns how many times Send was called.
func (r *RecordingProvider) Sends() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sends
}

// Requested returns how many calls of the named tool were requested.
func (r *RecordingProvider) Requested(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requested[name]
}

// Sessions returns how many distinct sessions were sent.
func (r *RecordingProvider) Sessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// RecordingExecutor wraps an executor and records every call in order.
type RecordingExecutor struct {
	Inner tools.Executor

	mu    sync.Mutex
	calls []string
	fails int
}

// Execute forwards to the wrapped executor.
func (r *RecordingExecutor) Execute(ctx context.Context, name string, args json.RawMessage) tools.Outcome {
	out := r.Inner.Execute(ctx, name, args)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
	if !out.OK() {
		r.fails++
	}
	return out
}

// Calls returns the executed tool names in order.
func (r *RecordingExecutor) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Failures returns how many calls produced a Failure.
func (r *RecordingExecutor) Failures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fails
}

// Activities returns n daily runs ending on end.
func Activities(n int, end time.Time) []training.Activity {
	acts := make([]training.Activity, n)
	for i := range acts {
		acts[i] = training.Activity{
			ID:             fmt.Sprintf("a%d", i+1),
			Sport:          "run",
			Start:          end.AddDate(0, 0, i-n+1),
			DurationSec:    2400 + 300*(i%3),
			DistanceMeters: 8000,
			Effort:         4 + i%4,
		}
	}
	return acts
}

// WriteActivities writes acts as a JSON export into dir and returns its path.
func WriteActivities(t testing.TB, dir string, acts []training.Activity) string {
	t.Helper()
	data, err := json.Marshal(acts)
	require.NoError(t, err)
	path := filepath.Join(dir, "activities.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// Config returns a valid configuration over 21 fixture activities in a
// temporary directory.
func Config(t testing.TB) config.Config {
	t.Helper()
	dir := t.TempDir()
	path := WriteActivities(t, dir, Activities(21, time.Date(2026, 3, 14, 7, 0, 0, 0, time.UTC)))

	cfg := config.Default()
	cfg.ActivityFiles = []string{path}
	cfg.OutputDir = filepath.Join(dir, "out")
	return cfg
}
