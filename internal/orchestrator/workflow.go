package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/dusk-indust/pacer/internal/config"
	"github.com/dusk-indust/pacer/internal/logging"
)

// SkipDecision replaces a stage invocation with a synthetic Skipped result.
// Data is merged into the accumulated map as if the stage had produced it.
type SkipDecision struct {
	Skip   bool
	Reason string
	Data   map[string]any
}

// SkipFunc decides, before a stage runs, whether it is skipped.
type SkipFunc func(cfg config.Config, data Data) SkipDecision

// Step is one entry of a workflow's fixed stage order.
type Step struct {
	Stage Stage
	Skip  SkipFunc // optional
}

// Definition describes a concrete workflow.
type Definition interface {
	Name() string
	// Steps returns the fixed stage order for a validated configuration.
	Steps(cfg config.Config) []Step
}

// Preparer is implemented by definitions that complete the collaborators
// from the validated configuration, e.g. loading custom prompts.
type Preparer interface {
	Prepare(cfg config.Config, collab *Collaborators) error
}

// Finalizer is implemented by definitions that post-process the finished
// result, e.g. to persist it. Returned paths are added to the artifacts.
type Finalizer interface {
	Finalize(ctx context.Context, cfg config.Config, res *WorkflowResult) []string
}

// Workflow sequences the stages of a Definition: it validates configuration
// once, builds every stage context, merges extracted data and stops at the
// first failed stage.
type Workflow struct {
	def    Definition
	collab Collaborators
	logger *slog.Logger
}

// WorkflowOption configures a Workflow during construction.
type WorkflowOption func(*Workflow)

// WithWorkflowLogger overrides the workflow logger.
func WithWorkflowLogger(l *slog.Logger) WorkflowOption {
	return func(w *Workflow) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWorkflow creates a Workflow for def.
func NewWorkflow(def Definition, collab Collaborators, opts ...WorkflowOption) *Workflow {
	w := &Workflow{
		def:    def,
		collab: collab,
		logger: logging.New("workflow"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Execute validates cfg and runs every step in order. The only errors it
// returns are configuration errors and missing collaborators, both before
// any stage runs; stage failures are reported in the result.
func (w *Workflow) Execute(ctx context.Context, cfg config.Config) (*WorkflowResult, error) {
	validated, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	collab := w.collab
	if p, ok := w.def.(Preparer); ok {
		if err := p.Prepare(validated, &collab); err != nil {
			return nil, err
		}
	}
	if err := collab.check(); err != nil {
		return nil, err
	}
	return w.run(ctx, validated, collab), nil
}

func (w *Workflow) run(ctx context.Context, cfg config.Config, collab Collaborators) *WorkflowResult {
	start := time.Now()
	logger := w.logger.With("workflow", w.def.Name())
	steps := w.def.Steps(cfg)

	reporter := NewProgressReporter(collab.Progress)
	defer reporter.Close()
	collab.Progress = reporter.Func()

	res := &WorkflowResult{Workflow: w.def.Name()}
	data := NewData(nil)

	for _, step := range steps {
		reporter.Emit(step.Stage.Name(), StatusPending)
	}

	for _, step := range steps {
		name := step.Stage.Name()

		if err := ctx.Err(); err != nil {
			logger.Warn("workflow canceled between stages", "next", name, "error", err)
			res.Stages = append(res.Stages, StageResult{
				Stage:   name,
				Status:  StatusFailed,
				Errors:  []string{fmt.Sprintf("canceled before start: %v", err)},
				Elapsed: 0,
			})
			reporter.Emit(name, StatusFailed)
			break
		}

		if step.Skip != nil {
			if d := step.Skip(cfg, data); d.Skip {
				logger.Info("stage skipped", "stage", name, "reason", d.Reason)
				sr := StageResult{
					Stage:  name,
					Status: StatusSkipped,
					Answer: d.Reason,
					Data:   maps.Clone(d.Data),
				}
				res.Stages = append(res.Stages, sr)
				data = w.merge(logger, data, sr, nil)
				reporter.Emit(name, StatusSkipped)
				continue
			}
		}

		reporter.Emit(name, StatusInProgress)
		logger.Info("stage started", "stage", name, "upstreamKeys", data.Len())

		sr := step.Stage.Execute(ctx, StageContext{
			Config:        cfg,
			Data:          data,
			Collaborators: collab,
			Logger:        logger,
		})
		res.Stages = append(res.Stages, sr)
		res.Usage = res.Usage.Add(sr.Usage)
		res.Artifacts = append(res.Artifacts, sr.Artifacts...)
		reporter.Emit(name, sr.Status)

		if !sr.Success() {
			logger.Error("stage failed", "stage", name, "errors", sr.Errors, "elapsed", sr.Elapsed)
			break
		}
		logger.Info("stage completed", "stage", name, "elapsed", sr.Elapsed, "keys", len(sr.Data))

		var reusable []string
		if r, ok := step.Stage.(KeyReuser); ok {
			reusable = r.ReusedKeys()
		}
		data = w.merge(logger, data, sr, reusable)
	}

	res.Elapsed = elapsedSince(start)
	if f, ok := w.def.(Finalizer); ok {
		res.Artifacts = append(res.Artifacts, f.Finalize(ctx, cfg, res)...)
		res.Elapsed = elapsedSince(start)
	}
	res.Artifacts = slices.Compact(res.Artifacts)
	logger.Info("workflow finished", "success", res.Success(), "stages", len(res.Stages), "elapsed", res.Elapsed, "tokens", res.Usage.Total())
	return res
}

func (w *Workflow) merge(logger *slog.Logger, data Data, sr StageResult, reusable []string) Data {
	merged, refused := data.With(sr.Data, reusable...)
	if len(refused) > 0 {
		logger.Warn("stage tried to overwrite upstream data; keeping original values", "stage", sr.Stage, "keys", refused)
	}
	return merged
}
