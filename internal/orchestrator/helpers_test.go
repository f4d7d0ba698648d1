package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/pacer/internal/config"
	"github.com/dusk-indust/pacer/internal/llm"
)

// validConfig returns a configuration that passes validation, rooted in a
// temporary directory.
func validConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	activities := filepath.Join(dir, "activities.json")
	require.NoError(t, os.WriteFile(activities, []byte("[]"), 0o644))

	cfg := config.Default()
	cfg.ActivityFiles = []string{activities}
	cfg.OutputDir = filepath.Join(dir, "out")
	return cfg
}

type stubPrompts struct{}

func (stubPrompts) Build(stage string, _ map[string]any) (string, error) {
	return "instructions for " + stage, nil
}

func testCollaborators() Collaborators {
	return Collaborators{
		Sessions: llm.NewMemorySessions(),
		Provider: llm.ProviderFunc(func(context.Context, llm.Session) (llm.Reply, error) {
			return llm.FinalAnswer{Text: "done"}, nil
		}),
		Prompts: stubPrompts{},
	}
}

// fakeLogic is a Logic whose behavior is supplied per test.
type fakeLogic struct {
	name     string
	validate func(sc StageContext) error
	process  func(ctx context.Context, sc StageContext) (Output, error)
	expected []string
	reused   []string
}

func (f *fakeLogic) Name() string { return f.name }

func (f *fakeLogic) Validate(sc StageContext) error {
	if f.validate == nil {
		return nil
	}
	return f.validate(sc)
}

func (f *fakeLogic) Process(ctx context.Context, sc StageContext) (Output, error) {
	if f.process == nil {
		return Output{}, nil
	}
	return f.process(ctx, sc)
}

func (f *fakeLogic) ExpectedKeys() []string { return f.expected }
func (f *fakeLogic) ReusedKeys() []string   { return f.reused }

// countingStage records how many times it was executed.
type countingStage struct {
	Stage
	mu    sync.Mutex
	calls int
	seen  []Data
}

func (c *countingStage) Execute(ctx context.Context, sc StageContext) StageResult {
	c.mu.Lock()
	c.calls++
	c.seen = append(c.seen, sc.Data)
	c.mu.Unlock()
	return c.Stage.Execute(ctx, sc)
}

func (c *countingStage) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// produce returns a stage that emits data.
func produce(name string, data map[string]any) *countingStage {
	return &countingStage{Stage: NewBaseStage(&fakeLogic{
		name: name,
		process: func(context.Context, StageContext) (Output, error) {
			return Output{Answer: name + " done", Data: data}, nil
		},
	})}
}

// staticDefinition is a Definition with a fixed step list.
type staticDefinition struct {
	name  string
	steps []Step
}

func (d staticDefinition) Name() string               { return d.name }
func (d staticDefinition) Steps(config.Config) []Step { return d.steps }
