package llm

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessions_Isolated(t *testing.T) {
	creator := NewMemorySessions()

	a := creator.Create("analyze", WithTools(ToolSpec{Name: "get_training_summary"}))
	b := creator.Create("plan")

	a.Append(Turn{Role: RoleUser, Content: "go"})

	assert.NotEqual(t, a.ID(), b.ID())
	require.Len(t, a.Transcript(), 2)
	require.Len(t, b.Transcript(), 1)
	assert.Equal(t, RoleSystem, b.Transcript()[0].Role)
	assert.Equal(t, "plan", b.Transcript()[0].Content)
	require.Len(t, a.Tools(), 1)
	assert.Empty(t, b.Tools())
}

func TestMemorySession_TranscriptIsCopy(t *testing.T) {
	s := NewMemorySessions().Create("x")
	s.Append(Turn{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "1", Name: "a"}}})

	tr := s.Transcript()
	tr[1].ToolCalls[0].Name = "mutated"
	tr[0].Content = "mutated"

	fresh := s.Transcript()
	assert.Equal(t, "a", fresh[1].ToolCalls[0].Name)
	assert.Equal(t, "x", fresh[0].Content)
}

func TestUsage(t *testing.T) {
	u := Usage{PromptTokens: 3, CompletionTokens: 4}.Add(Usage{PromptTokens: 1, CompletionTokens: 2})
	assert.Equal(t, Usage{PromptTokens: 4, CompletionTokens: 6}, u)
	assert.Equal(t, 10, u.Total())
}

func TestWithTimeout_AbandonsHungProvider(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	hung := ProviderFunc(func(ctx context.Context, _ Session) (Reply, error) {
		<-release
		return FinalAnswer{}, nil
	})

	p := WithTimeout(hung, 20*time.Millisecond)
	_, err := p.Send(context.Background(), NewMemorySessions().Create("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestWithTimeout_PassesThrough(t *testing.T) {
	ok := ProviderFunc(func(context.Context, Session) (Reply, error) {
		return FinalAnswer{Text: "done"}, nil
	})
	_, wrapped := WithTimeout(ok, 0).(*timeoutProvider)
	assert.False(t, wrapped, "zero timeout leaves the provider unwrapped")

	reply, err := WithTimeout(ok, time.Second).Send(context.Background(), NewMemorySessions().Create("x"))
	require.NoError(t, err)
	assert.Equal(t, FinalAnswer{Text: "done"}, reply)
}

func TestTemplateBuilder(t *testing.T) {
	b, err := NewTemplateBuilder(
		map[string]string{"analysis": "Default {{.name}}", "planning": "Plan {{.weeks}} weeks"},
		map[string]string{"analysis": "Custom {{.name}} {{json .extra}}"},
	)
	require.NoError(t, err)

	got, err := b.Build("analysis", map[string]any{"name": "ada", "extra": []int{1}})
	require.NoError(t, err)
	assert.Contains(t, got, "Custom ada")
	assert.Contains(t, got, "1")

	got, err = b.Build("planning", map[string]any{"weeks": 4})
	require.NoError(t, err)
	assert.Equal(t, "Plan 4 weeks", got)

	_, err = b.Build("unknown", nil)
	assert.Error(t, err)

	_, err = b.Build("planning", map[string]any{})
	assert.Error(t, err, "missing keys are an error")
}

func TestTemplateBuilder_ParseError(t *testing.T) {
	_, err := NewTemplateBuilder(map[string]string{"analysis": "{{.broken"})
	assert.Error(t, err)
}

func TestLoadTemplates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis: |\n  Look at {{.summary}}\n"), 0o644))

	got, err := LoadTemplates(path)
	require.NoError(t, err)
	assert.Contains(t, got["analysis"], "Look at")
}

func TestScriptProvider_ReplaysInOrder(t *testing.T) {
	p := NewScriptProvider(
		ToolRequest{Calls: []ToolCall{{ID: "1", Name: "a"}}},
		FinalAnswer{Text: "done"},
	)
	s := NewMemorySessions().Create("x")
	ctx := context.Background()

	r, err := p.Send(ctx, s)
	require.NoError(t, err)
	assert.IsType(t, ToolRequest{}, r)

	r, err = p.Send(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, FinalAnswer{Text: "done"}, r)

	_, err = p.Send(ctx, s)
	assert.ErrorIs(t, err, ErrScriptExhausted)
	assert.Equal(t, 3, p.Calls())
	assert.Equal(t, 0, p.Remaining())
}

func TestLoadScript(t *testing.T) {
	content := `
replies:
  - toolCalls:
      - name: record_finding
        arguments:
          category: volume
          severity: info
          summary: steady
    promptTokens: 10
    completionTokens: 5
  - text: All good.
`
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p, err := LoadScript(path)
	require.NoError(t, err)
	require.Equal(t, 2, p.Remaining())

	r, err := p.Send(context.Background(), NewMemorySessions().Create("x"))
	require.NoError(t, err)
	req, ok := r.(ToolRequest)
	require.True(t, ok)
	require.Len(t, req.Calls, 1)
	assert.Equal(t, "record_finding", req.Calls[0].Name)
	assert.Equal(t, 15, req.Usage().Total())

	var args map[string]any
	require.NoError(t, json.Unmarshal(req.Calls[0].Arguments, &args))
	assert.Equal(t, "volume", args["category"])
}

func TestLoadScript_MissingName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte("replies:\n  - toolCalls:\n      - arguments: {}\n"), 0o644))

	_, err := LoadScript(path)
	assert.Error(t, err)
}
