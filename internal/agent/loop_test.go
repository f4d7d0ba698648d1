package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/dusk-indust/pacer/internal/llm"
	"github.com/dusk-indust/pacer/internal/tools"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvider always asks for the same tool call.
type countingProvider struct {
	calls int
}

func (p *countingProvider) Send(context.Context, llm.Session) (llm.Reply, error) {
	p.calls++
	return llm.ToolRequest{
		Calls:  []llm.ToolCall{{ID: "c", Name: "echo", Arguments: json.RawMessage(`{"text":"again"}`)}},
		Tokens: llm.Usage{PromptTokens: 1},
	}, nil
}

func echoRegistry(order *[]string) *tools.Registry {
	return tools.NewRegistry().MustRegister(tools.Tool{
		Name:       "echo",
		Parameters: tools.Object(map[string]*jsonschema.Schema{"text": tools.String("text")}, "text"),
		Handler: tools.Typed(func(_ context.Context, a struct {
			Text string `json:"text"`
		}) (any, error) {
			*order = append(*order, a.Text)
			return a.Text, nil
		}),
	})
}

func TestLoop_StopsAtCeiling(t *testing.T) {
	var order []string
	p := &countingProvider{}
	loop := NewLoop(p, echoRegistry(&order), 5)

	res, err := loop.Run(context.Background(), llm.NewMemorySessions().Create("x"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMaxIterations))
	assert.Contains(t, err.Error(), "maximum iterations exceeded")
	assert.Equal(t, 5, p.calls)
	require.NotNil(t, res)
	assert.Equal(t, 5, res.Iterations)
	assert.Len(t, res.Invocations, 5)
	assert.Equal(t, 5, res.Usage.Total())
	assert.Empty(t, res.Answer)
}

func TestLoop_ImmediateFinalAnswer(t *testing.T) {
	var order []string
	p := llm.NewScriptProvider(llm.FinalAnswer{Text: "all done", Tokens: llm.Usage{CompletionTokens: 7}})
	session := llm.NewMemorySessions().Create("x")

	res, err := NewLoop(p, echoRegistry(&order), 10).Run(context.Background(), session)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, "all done", res.Answer)
	assert.Equal(t, 7, res.Usage.Total())
	assert.Empty(t, order)

	tr := session.Transcript()
	require.Len(t, tr, 2)
	assert.Equal(t, llm.RoleAssistant, tr[1].Role)
}

func TestLoop_MultipleCallsRunSeriallyInOrder(t *testing.T) {
	var order []string
	p := llm.NewScriptProvider(
		llm.ToolRequest{Calls: []llm.ToolCall{
			{ID: "1", Name: "echo", Arguments: json.RawMessage(`{"text":"first"}`)},
			{ID: "2", Name: "echo", Arguments: json.RawMessage(`{"text":"second"}`)},
			{ID: "3", Name: "echo", Arguments: json.RawMessage(`{"text":"third"}`)},
		}},
		llm.FinalAnswer{Text: "ok"},
	)
	session := llm.NewMemorySessions().Create("x")

	res, err := NewLoop(p, echoRegistry(&order), 3).Run(context.Background(), session)

	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, order)
	assert.Equal(t, 2, res.Iterations)
	assert.Len(t, res.Successful("echo"), 3)

	tr := session.Transcript()
	// system, assistant(calls), 3 tool turns, assistant(final)
	require.Len(t, tr, 6)
	for i, id := range []string{"1", "2", "3"} {
		assert.Equal(t, llm.RoleTool, tr[2+i].Role)
		assert.Equal(t, id, tr[2+i].ToolCallID)
	}
}

func TestLoop_InvalidArgumentsFedBackAsErrorTurn(t *testing.T) {
	var order []string
	p := llm.NewScriptProvider(
		llm.ToolRequest{Calls: []llm.ToolCall{{ID: "bad", Name: "echo", Arguments: json.RawMessage(`{}`)}}},
		llm.ToolRequest{Calls: []llm.ToolCall{{ID: "good", Name: "echo", Arguments: json.RawMessage(`{"text":"fixed"}`)}}},
		llm.FinalAnswer{Text: "recovered"},
	)
	session := llm.NewMemorySessions().Create("x")

	res, err := NewLoop(p, echoRegistry(&order), 5).Run(context.Background(), session)

	require.NoError(t, err)
	assert.Equal(t, "recovered", res.Answer)
	assert.Equal(t, []string{"fixed"}, order)
	require.Len(t, res.Invocations, 2)
	assert.False(t, res.Invocations[0].Outcome.OK())
	assert.True(t, res.Invocations[1].Outcome.OK())

	tr := session.Transcript()
	assert.True(t, tr[2].IsError)
	assert.Contains(t, tr[2].Content, `"ok":false`)
}

func TestLoop_EmptyToolRequestIsFinal(t *testing.T) {
	var order []string
	p := llm.NewScriptProvider(llm.ToolRequest{Text: "nothing to call"})

	res, err := NewLoop(p, echoRegistry(&order), 3).Run(context.Background(), llm.NewMemorySessions().Create("x"))

	require.NoError(t, err)
	assert.Equal(t, "nothing to call", res.Answer)
	assert.Equal(t, 1, res.Iterations)
}

func TestLoop_ProviderErrorStopsLoop(t *testing.T) {
	var order []string
	boom := llm.ProviderFunc(func(context.Context, llm.Session) (llm.Reply, error) {
		return nil, errors.New("rate limited")
	})

	res, err := NewLoop(boom, echoRegistry(&order), 3).Run(context.Background(), llm.NewMemorySessions().Create("x"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.False(t, errors.Is(err, ErrMaxIterations))
	assert.Equal(t, 1, res.Iterations)
}

func TestNewLoop_ClampsCeiling(t *testing.T) {
	var order []string
	p := &countingProvider{}

	_, err := NewLoop(p, echoRegistry(&order), 0).Run(context.Background(), llm.NewMemorySessions().Create("x"))

	assert.ErrorIs(t, err, ErrMaxIterations)
	assert.Equal(t, 1, p.calls)
}
