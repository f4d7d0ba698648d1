package orchestrator

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/pacer/internal/llm"
)

type weekStub struct {
	Week  int    `json:"week"`
	Focus string `json:"focus"`
}

func TestStageResult_ToMap(t *testing.T) {
	r := StageResult{
		Stage:       "planning",
		Status:      StatusCompleted,
		Answer:      "plan ready",
		Data:        map[string]any{"plan.weeks": []weekStub{{Week: 1, Focus: "base"}}},
		Elapsed:     1500 * time.Millisecond,
		Usage:       llm.Usage{PromptTokens: 100, CompletionTokens: 20},
		MissingKeys: []string{"plan.failed_weeks"},
	}

	m := r.ToMap()

	assert.Equal(t, "planning", m["stage"])
	assert.Equal(t, "completed", m["status"])
	assert.Equal(t, true, m["success"])
	assert.Equal(t, int64(1500), m["elapsedMs"])
	assert.Equal(t, 120, m["tokensUsed"])
	assert.Equal(t, []any{}, m["errors"])
	assert.Equal(t, []string{"plan.failed_weeks"}, m["missingKeys"])

	data := m["data"].(map[string]any)
	assert.Equal(t, []any{map[string]any{"week": float64(1), "focus": "base"}}, data["plan.weeks"])

	_, err := json.Marshal(m)
	require.NoError(t, err)
}

func TestStageResult_ToMapOmitsEmptyMissingKeys(t *testing.T) {
	m := StageResult{Stage: "x", Status: StatusFailed, Errors: []string{"e"}}.ToMap()
	_, ok := m["missingKeys"]
	assert.False(t, ok)
	assert.Equal(t, false, m["success"])
	assert.Equal(t, []any{"e"}, m["errors"])
}

func TestWorkflowResult_Success(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     bool
	}{
		{"empty", nil, true},
		{"all completed", []Status{StatusCompleted, StatusCompleted}, true},
		{"skipped ignored", []Status{StatusSkipped, StatusCompleted}, true},
		{"one failed", []Status{StatusCompleted, StatusFailed}, false},
		{"failed after skip", []Status{StatusSkipped, StatusFailed}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &WorkflowResult{}
			for _, s := range tt.statuses {
				w.Stages = append(w.Stages, StageResult{Status: s})
			}
			assert.Equal(t, tt.want, w.Success())
		})
	}
}

func TestWorkflowResult_ToMap(t *testing.T) {
	w := &WorkflowResult{
		Workflow: "training",
		Stages: []StageResult{
			{Stage: "preparation", Status: StatusSkipped},
			{Stage: "analysis", Status: StatusFailed, Errors: []string{"agent: maximum iterations exceeded (3)"}},
		},
		Elapsed:   2 * time.Second,
		Usage:     llm.Usage{PromptTokens: 7},
		Artifacts: []string{"out/workflow_result.json"},
	}

	m := w.ToMap()

	assert.Equal(t, "training", m["workflow"])
	assert.Equal(t, false, m["success"])
	assert.Equal(t, "analysis", m["failedStage"])
	assert.Equal(t, int64(2000), m["elapsedMs"])
	assert.Equal(t, 7, m["tokensUsed"])
	assert.Len(t, m["stages"], 2)

	got, ok := w.Stage("analysis")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, got.Status)
	_, ok = w.Stage("planning")
	assert.False(t, ok)
}

func TestStatus_Text(t *testing.T) {
	for s := StatusPending; s <= StatusSkipped; s++ {
		text, err := s.MarshalText()
		require.NoError(t, err)

		var back Status
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, s, back)
	}

	_, err := Status(42).MarshalText()
	assert.Error(t, err)

	var s Status
	assert.Error(t, s.UnmarshalText([]byte("done")))

	assert.True(t, StatusSkipped.IsTerminal())
	assert.False(t, StatusInProgress.IsTerminal())
	assert.Equal(t, "unknown", Status(-1).String())
}
