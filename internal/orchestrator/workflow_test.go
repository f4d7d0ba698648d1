package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/pacer/internal/config"
	"github.com/dusk-indust/pacer/internal/llm"
)

func failing(name string) *countingStage {
	return &countingStage{Stage: NewBaseStage(&fakeLogic{
		name: name,
		process: func(context.Context, StageContext) (Output, error) {
			return Output{}, errors.New(name + " broke")
		},
	})}
}

func TestWorkflow_StopsAtFirstFailure(t *testing.T) {
	s1 := produce("one", map[string]any{"one.x": 1})
	s2 := failing("two")
	s3 := produce("three", nil)

	wf := NewWorkflow(staticDefinition{name: "test", steps: []Step{{Stage: s1}, {Stage: s2}, {Stage: s3}}}, testCollaborators())
	res, err := wf.Execute(context.Background(), validConfig(t))
	require.NoError(t, err)

	require.Len(t, res.Stages, 2)
	assert.Equal(t, "one", res.Stages[0].Stage)
	assert.Equal(t, StatusCompleted, res.Stages[0].Status)
	assert.Equal(t, "two", res.Stages[1].Stage)
	assert.Equal(t, StatusFailed, res.Stages[1].Status)
	assert.Equal(t, 0, s3.Calls(), "stage after a failure must not run")
	assert.False(t, res.Success())

	failed, ok := res.FirstFailure()
	require.True(t, ok)
	assert.Equal(t, "two", failed.Stage)
}

func TestWorkflow_DataFlowsDownstream(t *testing.T) {
	s1 := produce("one", map[string]any{"one.x": 1})
	s2 := produce("two", map[string]any{"two.y": 2})
	s3 := produce("three", nil)

	wf := NewWorkflow(staticDefinition{name: "test", steps: []Step{{Stage: s1}, {Stage: s2}, {Stage: s3}}}, testCollaborators())
	res, err := wf.Execute(context.Background(), validConfig(t))
	require.NoError(t, err)
	require.True(t, res.Success())

	require.Len(t, s1.seen, 1)
	assert.Equal(t, 0, s1.seen[0].Len())
	assert.Equal(t, []string{"one.x"}, s2.seen[0].Keys())
	assert.Equal(t, []string{"one.x", "two.y"}, s3.seen[0].Keys())
}

func TestWorkflow_LaterStageCannotOverwrite(t *testing.T) {
	s1 := produce("one", map[string]any{"shared": "first"})
	s2 := produce("two", map[string]any{"shared": "second"})
	s3 := produce("three", nil)

	wf := NewWorkflow(staticDefinition{name: "test", steps: []Step{{Stage: s1}, {Stage: s2}, {Stage: s3}}}, testCollaborators())
	_, err := wf.Execute(context.Background(), validConfig(t))
	require.NoError(t, err)

	v, _ := s3.seen[0].Get("shared")
	assert.Equal(t, "first", v)
}

func TestWorkflow_ReusedKeyMayOverwrite(t *testing.T) {
	s1 := produce("one", map[string]any{"shared": "first"})
	s2 := NewBaseStage(&fakeLogic{
		name:   "two",
		reused: []string{"shared"},
		process: func(context.Context, StageContext) (Output, error) {
			return Output{Data: map[string]any{"shared": "second"}}, nil
		},
	})
	s3 := produce("three", nil)

	wf := NewWorkflow(staticDefinition{name: "test", steps: []Step{{Stage: s1}, {Stage: s2}, {Stage: s3}}}, testCollaborators())
	_, err := wf.Execute(context.Background(), validConfig(t))
	require.NoError(t, err)

	v, _ := s3.seen[0].Get("shared")
	assert.Equal(t, "second", v)
}

func TestWorkflow_SkippedStageDoesNotAffectSuccess(t *testing.T) {
	skipped := produce("prep", nil)
	s2 := produce("analysis", nil)

	skip := func(config.Config, Data) SkipDecision {
		return SkipDecision{Skip: true, Reason: "cached", Data: map[string]any{"prep.summary": "cached"}}
	}
	wf := NewWorkflow(staticDefinition{name: "test", steps: []Step{{Stage: skipped, Skip: skip}, {Stage: s2}}}, testCollaborators())
	res, err := wf.Execute(context.Background(), validConfig(t))
	require.NoError(t, err)

	require.Len(t, res.Stages, 2)
	assert.Equal(t, StatusSkipped, res.Stages[0].Status)
	assert.Zero(t, res.Stages[0].Elapsed)
	assert.Equal(t, 0, skipped.Calls())
	assert.True(t, res.Success())

	v, ok := s2.seen[0].Get("prep.summary")
	require.True(t, ok, "skipped stage data must reach downstream stages")
	assert.Equal(t, "cached", v)
}

func TestWorkflow_SkipDeclinedRunsStage(t *testing.T) {
	s1 := produce("prep", nil)
	noSkip := func(config.Config, Data) SkipDecision { return SkipDecision{} }

	wf := NewWorkflow(staticDefinition{name: "test", steps: []Step{{Stage: s1, Skip: noSkip}}}, testCollaborators())
	res, err := wf.Execute(context.Background(), validConfig(t))
	require.NoError(t, err)

	assert.Equal(t, 1, s1.Calls())
	assert.Equal(t, StatusCompleted, res.Stages[0].Status)
}

func TestWorkflow_PanickingStageIsContained(t *testing.T) {
	boom := NewBaseStage(&fakeLogic{
		name: "boom",
		process: func(context.Context, StageContext) (Output, error) {
			var m map[string]int
			m["x"] = 1 // nil map write
			return Output{}, nil
		},
	})
	wf := NewWorkflow(staticDefinition{name: "test", steps: []Step{{Stage: boom}}}, testCollaborators())

	var res *WorkflowResult
	require.NotPanics(t, func() {
		var err error
		res, err = wf.Execute(context.Background(), validConfig(t))
		require.NoError(t, err)
	})
	require.Len(t, res.Stages, 1)
	assert.Equal(t, StatusFailed, res.Stages[0].Status)
	assert.NotEmpty(t, res.Stages[0].Errors)
	assert.Positive(t, res.Stages[0].Elapsed)
	assert.False(t, res.Success())
}

func TestWorkflow_ConfigErrorBeforeAnyStage(t *testing.T) {
	s1 := produce("one", nil)
	wf := NewWorkflow(staticDefinition{name: "test", steps: []Step{{Stage: s1}}}, testCollaborators())

	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	res, err := wf.Execute(context.Background(), cfg)

	require.Error(t, err)
	assert.Nil(t, res)
	var cerr *config.Error
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Reason, "at least one input source")
	assert.Equal(t, 0, s1.Calls())
}

func TestWorkflow_MissingCollaborators(t *testing.T) {
	s1 := produce("one", nil)
	wf := NewWorkflow(staticDefinition{name: "test", steps: []Step{{Stage: s1}}}, Collaborators{})

	_, err := wf.Execute(context.Background(), validConfig(t))
	require.Error(t, err)
	assert.Equal(t, 0, s1.Calls())
}

func TestWorkflow_CanceledBetweenStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s1 := &countingStage{Stage: NewBaseStage(&fakeLogic{
		name: "one",
		process: func(context.Context, StageContext) (Output, error) {
			cancel()
			return Output{}, nil
		},
	})}
	s2 := produce("two", nil)

	wf := NewWorkflow(staticDefinition{name: "test", steps: []Step{{Stage: s1}, {Stage: s2}}}, testCollaborators())
	res, err := wf.Execute(ctx, validConfig(t))
	require.NoError(t, err)

	require.Len(t, res.Stages, 2)
	assert.Equal(t, StatusCompleted, res.Stages[0].Status)
	assert.Equal(t, StatusFailed, res.Stages[1].Status)
	assert.Equal(t, 0, s2.Calls())
	assert.False(t, res.Success())
}

func TestWorkflow_UsageAndArtifactsAggregated(t *testing.T) {
	mk := func(name string, tokens int, artifact string) Step {
		return Step{Stage: NewBaseStage(&fakeLogic{
			name: name,
			process: func(context.Context, StageContext) (Output, error) {
				return Output{Usage: llm.Usage{PromptTokens: tokens, CompletionTokens: 1}, Artifacts: []string{artifact}}, nil
			},
		})}
	}
	wf := NewWorkflow(staticDefinition{name: "test", steps: []Step{mk("a", 10, "a.md"), mk("b", 5, "b.md")}}, testCollaborators())
	res, err := wf.Execute(context.Background(), validConfig(t))
	require.NoError(t, err)

	assert.Equal(t, 17, res.Usage.Total())
	assert.Equal(t, []string{"a.md", "b.md"}, res.Artifacts)
	assert.Positive(t, res.Elapsed)
}

func TestWorkflow_ProgressEvents(t *testing.T) {
	var log eventLog
	collab := testCollaborators()
	collab.Progress = log.record

	sub := NewBaseStage(&fakeLogic{
		name: "two",
		process: func(_ context.Context, sc StageContext) (Output, error) {
			sc.Emit("two/sub", StatusCompleted)
			return Output{}, nil
		},
	})
	skip := func(config.Config, Data) SkipDecision { return SkipDecision{Skip: true} }
	wf := NewWorkflow(staticDefinition{name: "test", steps: []Step{
		{Stage: produce("one", nil), Skip: skip},
		{Stage: sub},
	}}, collab)

	_, err := wf.Execute(context.Background(), validConfig(t))
	require.NoError(t, err)

	// Execute closes the reporter, so every event has been delivered.
	assert.Equal(t, []ProgressEvent{
		{Stage: "one", Status: StatusPending},
		{Stage: "two", Status: StatusPending},
		{Stage: "one", Status: StatusSkipped},
		{Stage: "two", Status: StatusInProgress},
		{Stage: "two/sub", Status: StatusCompleted},
		{Stage: "two", Status: StatusCompleted},
	}, log.all())
}

type finalizingDefinition struct {
	staticDefinition
	seen *WorkflowResult
}

func (d *finalizingDefinition) Finalize(_ context.Context, _ config.Config, res *WorkflowResult) []string {
	d.seen = res
	return []string{"workflow_result.json"}
}

func TestWorkflow_Finalizer(t *testing.T) {
	def := &finalizingDefinition{staticDefinition: staticDefinition{name: "test", steps: []Step{{Stage: produce("one", nil)}}}}
	res, err := NewWorkflow(def, testCollaborators()).Execute(context.Background(), validConfig(t))
	require.NoError(t, err)

	assert.Same(t, res, def.seen)
	assert.Equal(t, []string{"workflow_result.json"}, res.Artifacts)
}

type preparingDefinition struct {
	staticDefinition
	err error
}

func (d preparingDefinition) Prepare(_ config.Config, collab *Collaborators) error {
	if d.err != nil {
		return d.err
	}
	collab.Prompts = stubPrompts{}
	return nil
}

func TestWorkflow_PreparerCompletesCollaborators(t *testing.T) {
	collab := testCollaborators()
	collab.Prompts = nil
	s1 := produce("one", nil)

	def := preparingDefinition{staticDefinition: staticDefinition{name: "test", steps: []Step{{Stage: s1}}}}
	res, err := NewWorkflow(def, collab).Execute(context.Background(), validConfig(t))
	require.NoError(t, err)
	assert.True(t, res.Success())

	def.err = errors.New("bad prompts")
	_, err = NewWorkflow(def, collab).Execute(context.Background(), validConfig(t))
	assert.EqualError(t, err, "bad prompts")
	assert.Equal(t, 1, s1.Calls())
}
