// Package coach wires the training workflow: preparation, analysis,
// planning and aggregation, with the skip rules and artifacts around them.
package coach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/dusk-indust/pacer/internal/cache"
	"github.com/dusk-indust/pacer/internal/config"
	"github.com/dusk-indust/pacer/internal/export"
	"github.com/dusk-indust/pacer/internal/llm"
	"github.com/dusk-indust/pacer/internal/logging"
	"github.com/dusk-indust/pacer/internal/orchestrator"
	"github.com/dusk-indust/pacer/internal/stages"
	"github.com/dusk-indust/pacer/internal/training"
)

// WorkflowName identifies the training workflow in results.
const WorkflowName = "training"

// Deps are the collaborators of a workflow run. Only Provider is required;
// the rest default to in-memory sessions, the built-in prompts (plus the
// configured custom prompts) and no progress reporting.
type Deps struct {
	Provider llm.Provider
	Sessions llm.SessionCreator
	Prompts  llm.PromptBuilder
	Progress orchestrator.ProgressFunc
	Logger   *slog.Logger
}

// ExecuteWorkflow validates cfg once and runs the training workflow. It
// returns an error only for invalid configuration or missing dependencies;
// stage failures are reported in the result.
func ExecuteWorkflow(ctx context.Context, cfg config.Config, deps Deps) (*orchestrator.WorkflowResult, error) {
	if deps.Provider == nil {
		return nil, errors.New("coach: provider is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.New("coach")
	}

	wf := orchestrator.NewWorkflow(NewTrainingWorkflow(logger), orchestrator.Collaborators{
		Sessions: deps.Sessions,
		Provider: deps.Provider,
		Prompts:  deps.Prompts,
		Progress: deps.Progress,
	}, orchestrator.WithWorkflowLogger(logger))
	return wf.Execute(ctx, cfg)
}

// TrainingWorkflow is the concrete workflow definition.
type TrainingWorkflow struct {
	logger *slog.Logger
}

// Compile-time interface checks.
var (
	_ orchestrator.Definition = (*TrainingWorkflow)(nil)
	_ orchestrator.Preparer   = (*TrainingWorkflow)(nil)
	_ orchestrator.Finalizer  = (*TrainingWorkflow)(nil)
)

// NewTrainingWorkflow creates the definition.
func NewTrainingWorkflow(logger *slog.Logger) *TrainingWorkflow {
	if logger == nil {
		logger = logging.New("coach")
	}
	return &TrainingWorkflow{logger: logger}
}

// Name returns WorkflowName.
func (w *TrainingWorkflow) Name() string { return WorkflowName }

// Steps returns preparation and analysis, followed by planning and
// aggregation when a plan is requested.
func (w *TrainingWorkflow) Steps(cfg config.Config) []orchestrator.Step {
	steps := []orchestrator.Step{
		{Stage: stages.NewPreparation(), Skip: w.skipPreparation},
		{Stage: stages.NewAnalysis()},
	}
	if cfg.GeneratePlan {
		steps = append(steps,
			orchestrator.Step{Stage: stages.NewPlanning()},
			orchestrator.Step{Stage: stages.NewAggregation()},
		)
	}
	return steps
}

func (w *TrainingWorkflow) skipPreparation(cfg config.Config, _ orchestrator.Data) orchestrator.SkipDecision {
	if !cfg.SkipPreparation {
		return orchestrator.SkipDecision{}
	}
	snap, err := cache.Load(cfg.OutputDir)
	if err == nil {
		var paths []string
		if paths, err = training.ActivityPaths(cfg.ActivityFiles, cfg.ActivityDir); err == nil {
			err = snap.Check(paths, cfg.AnalysisDays, cfg.ProfilePath)
		}
	}
	if err != nil {
		w.logger.Warn("skip preparation requested but no usable cache; running it", "error", err, "path", cache.Path(cfg.OutputDir))
		return orchestrator.SkipDecision{}
	}
	return orchestrator.SkipDecision{
		Skip:   true,
		Reason: fmt.Sprintf("using cached preparation from %s", snap.CreatedAt.Format("2006-01-02 15:04")),
		Data:   stages.PreparationData(snap),
	}
}

// Prepare fills in default sessions and prompts and applies the provider
// deadline.
func (w *TrainingWorkflow) Prepare(cfg config.Config, collab *orchestrator.Collaborators) error {
	if collab.Sessions == nil {
		collab.Sessions = llm.NewMemorySessions()
	}
	if collab.Provider != nil {
		collab.Provider = llm.WithTimeout(collab.Provider, cfg.ProviderTimeout)
	}
	if collab.Prompts != nil {
		return nil
	}

	sources := []map[string]string{stages.DefaultPrompts()}
	if cfg.CustomPromptPath != "" {
		custom, err := llm.LoadTemplates(cfg.CustomPromptPath)
		if err != nil {
			return &config.Error{Field: "customPromptPath", Reason: err.Error()}
		}
		sources = append(sources, custom)
	}
	prompts, err := llm.NewTemplateBuilder(sources...)
	if err != nil {
		return &config.Error{Field: "customPromptPath", Reason: err.Error()}
	}
	collab.Prompts = prompts
	return nil
}

// Finalize writes workflow_result.json. A write failure is logged; the run
// result itself is unaffected.
func (w *TrainingWorkflow) Finalize(_ context.Context, cfg config.Config, res *orchestrator.WorkflowResult) []string {
	path := filepath.Join(cfg.OutputDir, export.WorkflowResultFile)
	doc := res.ToMap()
	doc["artifacts"] = append(doc["artifacts"].([]any), path)
	if err := export.WriteJSON(path, doc); err != nil {
		w.logger.Error("workflow result not written", "error", err)
		return nil
	}
	return []string{path}
}
