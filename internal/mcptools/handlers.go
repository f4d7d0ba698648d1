package mcptools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dusk-indust/pacer/internal/coach"
	"github.com/dusk-indust/pacer/internal/config"
	"github.com/dusk-indust/pacer/internal/llm"
	"github.com/dusk-indust/pacer/internal/logging"
	"github.com/dusk-indust/pacer/internal/runstore"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ProviderFactory returns the provider used for one run.
type ProviderFactory func(cfg config.Config) llm.Provider

// WorkflowService handles the MCP tool calls. Every run_workflow call is
// executed to completion and stored, successful or not.
type WorkflowService struct {
	store    *runstore.Store
	provider ProviderFactory
	base     config.Config
	logger   *slog.Logger
}

// NewWorkflowService creates a WorkflowService. base supplies the settings
// the tool input does not carry (iteration limits, timeouts, custom prompts).
func NewWorkflowService(store *runstore.Store, provider ProviderFactory, base config.Config) *WorkflowService {
	return &WorkflowService{
		store:    store,
		provider: provider,
		base:     base,
		logger:   logging.New("mcptools"),
	}
}

// RunWorkflow executes the training workflow and records the run.
func (s *WorkflowService) RunWorkflow(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RunWorkflowInput,
) (*mcp.CallToolResult, RunWorkflowOutput, error) {
	cfg := s.configFor(input)
	run := runstore.Run{
		ID:        runstore.NewRunID(),
		State:     runstore.StateRunning,
		StartedAt: time.Now().UTC(),
		OutputDir: cfg.OutputDir,
	}
	if err := s.store.Create(run); err != nil {
		return nil, RunWorkflowOutput{}, err
	}
	s.logger.Info("run started", "run", run.ID, "output", cfg.OutputDir)

	res, err := coach.ExecuteWorkflow(ctx, cfg, coach.Deps{
		Provider: s.provider(cfg),
		Logger:   s.logger.With("run", run.ID),
	})
	if err != nil {
		state := runstore.StateFailed
		var cfgErr *config.Error
		if errors.As(err, &cfgErr) {
			state = runstore.StateRejected
		}
		s.finish(run.ID, state, nil, err.Error())
		return nil, RunWorkflowOutput{
			RunID:     run.ID,
			State:     state,
			Artifacts: []string{},
			Message:   err.Error(),
		}, nil
	}

	out := RunWorkflowOutput{
		RunID:     run.ID,
		State:     runstore.StateSucceeded,
		Success:   res.Success(),
		Artifacts: slices.Clone(res.Artifacts),
	}
	if out.Artifacts == nil {
		out.Artifacts = []string{}
	}
	if failed, ok := res.FirstFailure(); ok {
		out.State = runstore.StateFailed
		out.Message = fmt.Sprintf("stage %s failed", failed.Stage)
		if len(failed.Errors) > 0 {
			out.Message += ": " + failed.Errors[0]
		}
	}
	s.finish(run.ID, out.State, res.ToMap(), out.Message)
	return nil, out, nil
}

// GetRun returns one stored run with its full result.
func (s *WorkflowService) GetRun(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input GetRunInput,
) (*mcp.CallToolResult, GetRunOutput, error) {
	if input.RunID == "" {
		return nil, GetRunOutput{}, errors.New("runId is required")
	}
	run, err := s.store.Get(input.RunID)
	if err != nil {
		return nil, GetRunOutput{}, err
	}
	out := GetRunOutput{
		RunID:     run.ID,
		State:     run.State,
		OutputDir: run.OutputDir,
		StartedAt: run.StartedAt.Format(time.RFC3339),
		Error:     run.Error,
		Result:    run.Result,
	}
	if !run.FinishedAt.IsZero() {
		out.FinishedAt = run.FinishedAt.Format(time.RFC3339)
	}
	return nil, out, nil
}

// ListRuns pages through stored runs, oldest first.
func (s *WorkflowService) ListRuns(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ListRunsInput,
) (*mcp.CallToolResult, ListRunsOutput, error) {
	state := runstore.State(input.State)
	switch state {
	case "", runstore.StateRunning, runstore.StateSucceeded, runstore.StateFailed, runstore.StateRejected:
	default:
		return nil, ListRunsOutput{}, fmt.Errorf("unknown state %q", input.State)
	}

	page, err := s.store.List(runstore.ListRequest{
		State:     state,
		PageToken: input.PageToken,
		PageSize:  input.PageSize,
	})
	if err != nil {
		return nil, ListRunsOutput{}, err
	}

	out := ListRunsOutput{
		Runs:          make([]RunSummary, 0, len(page.Runs)),
		TotalSize:     page.TotalSize,
		NextPageToken: page.NextPageToken,
	}
	for _, r := range page.Runs {
		out.Runs = append(out.Runs, RunSummary{
			RunID:     r.ID,
			State:     r.State,
			OutputDir: r.OutputDir,
			StartedAt: r.StartedAt.Format(time.RFC3339),
		})
	}
	return nil, out, nil
}

func (s *WorkflowService) configFor(input RunWorkflowInput) config.Config {
	cfg := s.base
	cfg.ActivityFiles = slices.Clone(input.ActivityFiles)
	cfg.ActivityDir = input.ActivityDir
	cfg.ProfilePath = input.ProfilePath
	cfg.OutputDir = input.OutputDir
	if input.AnalysisDays != 0 {
		cfg.AnalysisDays = input.AnalysisDays
	}
	if input.PlanWeeks != 0 {
		cfg.PlanWeeks = input.PlanWeeks
	}
	cfg.GeneratePlan = !input.SkipPlan
	cfg.SkipPreparation = input.SkipPreparation
	return cfg
}

func (s *WorkflowService) finish(id string, state runstore.State, result map[string]any, msg string) {
	err := s.store.Update(id, func(r *runstore.Run) {
		r.State = state
		r.FinishedAt = time.Now().UTC()
		r.Result = result
		r.Error = msg
	})
	if err != nil {
		s.logger.Error("run not recorded", "run", id, "error", err)
	}
}
