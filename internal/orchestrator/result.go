package orchestrator

import (
	"encoding/json"
	"maps"
	"slices"
	"time"

	"github.com/dusk-indust/pacer/internal/llm"
)

// StageResult is the standardized outcome of one stage invocation. It is
// built once by the stage envelope (or the workflow, for skipped stages) and
// never modified afterwards.
type StageResult struct {
	Stage  string         `json:"stage"`
	Status Status         `json:"status"`
	Answer string         `json:"answer,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
	Errors []string       `json:"errors,omitempty"`

	Elapsed time.Duration `json:"elapsed"`
	Usage   llm.Usage     `json:"usage"`

	// Artifacts are files the stage wrote.
	Artifacts []string `json:"artifacts,omitempty"`

	// MissingKeys lists expected output keys a completed stage did not
	// produce. The status stays Completed; consumers decide if it matters.
	MissingKeys []string `json:"missingKeys,omitempty"`
}

// Success reports whether the stage completed.
func (r StageResult) Success() bool {
	return r.Status == StatusCompleted
}

// ToMap returns a plain key-value form suitable for persistence or an HTTP
// response. Data values are normalized through JSON.
func (r StageResult) ToMap() map[string]any {
	m := map[string]any{
		"stage":      r.Stage,
		"status":     r.Status.String(),
		"success":    r.Success(),
		"answer":     r.Answer,
		"data":       plain(r.Data),
		"errors":     stringsOrEmpty(r.Errors),
		"elapsedMs":  r.Elapsed.Milliseconds(),
		"tokensUsed": r.Usage.Total(),
		"artifacts":  stringsOrEmpty(r.Artifacts),
	}
	if len(r.MissingKeys) > 0 {
		m["missingKeys"] = slices.Clone(r.MissingKeys)
	}
	return m
}

// WorkflowResult aggregates the stage results of one run.
type WorkflowResult struct {
	Workflow  string        `json:"workflow"`
	Stages    []StageResult `json:"stages"`
	Elapsed   time.Duration `json:"elapsed"`
	Usage     llm.Usage     `json:"usage"`
	Artifacts []string      `json:"artifacts,omitempty"`
}

// Success is true iff every non-skipped stage completed.
func (w *WorkflowResult) Success() bool {
	for _, r := range w.Stages {
		if r.Status == StatusSkipped {
			continue
		}
		if !r.Success() {
			return false
		}
	}
	return true
}

// Stage returns the result recorded for the named stage.
func (w *WorkflowResult) Stage(name string) (StageResult, bool) {
	for _, r := range w.Stages {
		if r.Stage == name {
			return r, true
		}
	}
	return StageResult{}, false
}

// FirstFailure returns the first failed stage result, if any.
func (w *WorkflowResult) FirstFailure() (StageResult, bool) {
	for _, r := range w.Stages {
		if r.Status == StatusFailed {
			return r, true
		}
	}
	return StageResult{}, false
}

// ToMap returns a plain key-value form of the whole run.
func (w *WorkflowResult) ToMap() map[string]any {
	stages := make([]any, len(w.Stages))
	for i, r := range w.Stages {
		stages[i] = r.ToMap()
	}
	m := map[string]any{
		"workflow":   w.Workflow,
		"success":    w.Success(),
		"stages":     stages,
		"elapsedMs":  w.Elapsed.Milliseconds(),
		"tokensUsed": w.Usage.Total(),
		"artifacts":  stringsOrEmpty(w.Artifacts),
	}
	if failed, ok := w.FirstFailure(); ok {
		m["failedStage"] = failed.Stage
	}
	return m
}

func stringsOrEmpty(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

// plain converts arbitrary values into maps, slices and scalars via JSON.
// Values that cannot be encoded are kept as their fmt representation.
func plain(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for _, k := range slices.Sorted(maps.Keys(data)) {
		raw, err := json.Marshal(data[k])
		if err != nil {
			out[k] = err.Error()
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			out[k] = string(raw)
			continue
		}
		out[k] = v
	}
	return out
}
