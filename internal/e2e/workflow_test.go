//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/pacer/internal/coach"
	"github.com/dusk-indust/pacer/internal/config"
	"github.com/dusk-indust/pacer/internal/orchestrator"
)

func fixturesDir() string {
	return filepath.Join("..", "..", "testdata", "fixtures")
}

// fixtureConfig reads the activity fixture directory with the fixture
// profile and writes into a fresh output directory.
func fixtureConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.ActivityDir = filepath.Join(fixturesDir(), "activities")
	cfg.ProfilePath = filepath.Join(fixturesDir(), "profile.yaml")
	cfg.OutputDir = t.TempDir()
	cfg.PlanWeeks = 6
	return cfg
}

func runFixture(t *testing.T, cfg config.Config) *orchestrator.WorkflowResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := coach.ExecuteWorkflow(ctx, cfg, coach.Deps{Provider: coach.DemoProvider{WeeklyHours: 6}})
	require.NoError(t, err)
	require.True(t, res.Success(), "%+v", res.ToMap())
	return res
}

// TestWorkflow_E2E_Demo runs every stage over the fixture exports and checks
// the structure of each artifact.
func TestWorkflow_E2E_Demo(t *testing.T) {
	cfg := fixtureConfig(t)
	res := runFixture(t, cfg)

	require.Len(t, res.Stages, 4)
	for _, r := range res.Stages {
		assert.Equal(t, orchestrator.StatusCompleted, r.Status, r.Stage)
		assert.Empty(t, r.MissingKeys, r.Stage)
	}

	report, err := os.ReadFile(filepath.Join(cfg.OutputDir, "report.md"))
	require.NoError(t, err)
	for _, section := range []string{
		"# Training report: Fixture Athlete",
		"## Last 28 days",
		"### Weekly load",
		"## Analysis",
		"## Plan",
	} {
		assert.Contains(t, string(report), section)
	}
	assert.Equal(t, 6, strings.Count(string(report), "\n### Week "), "one section per planned week")

	data, err := os.ReadFile(filepath.Join(cfg.OutputDir, "training_plan.json"))
	require.NoError(t, err)
	var plan map[string]any
	require.NoError(t, json.Unmarshal(data, &plan))
	assert.NotEmpty(t, plan["id"])

	gantt, err := os.ReadFile(filepath.Join(cfg.OutputDir, "training_plan.mmd"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(gantt), "gantt"))
	assert.FileExists(t, filepath.Join(cfg.OutputDir, ".pacer", "preparation.json"))
}

// TestWorkflow_E2E_CachedRerun reruns against the cache written by the first
// run and expects the same plan shape.
func TestWorkflow_E2E_CachedRerun(t *testing.T) {
	cfg := fixtureConfig(t)
	runFixture(t, cfg)

	cfg.SkipPreparation = true
	res := runFixture(t, cfg)

	prep, ok := res.Stage("preparation")
	require.True(t, ok)
	assert.Equal(t, orchestrator.StatusSkipped, prep.Status)
	plan, ok := res.Stage("planning")
	require.True(t, ok)
	assert.Equal(t, orchestrator.StatusCompleted, plan.Status)
}
