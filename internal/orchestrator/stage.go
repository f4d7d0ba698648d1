package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/dusk-indust/pacer/internal/config"
	"github.com/dusk-indust/pacer/internal/llm"
	"github.com/dusk-indust/pacer/internal/logging"
)

// ErrValidation marks a stage whose required upstream data is absent.
var ErrValidation = errors.New("stage validation failed")

// ValidationError names the stage and the upstream keys it could not use.
type ValidationError struct {
	Stage   string
	Missing []string
	Reason  string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %v", e.Stage, ErrValidation)
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, ": missing %s", strings.Join(e.Missing, ", "))
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// RequireKeys returns a *ValidationError listing every key absent from data.
func RequireKeys(stage string, data Data, keys ...string) error {
	var missing []string
	for _, k := range keys {
		if !data.Has(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Stage: stage, Missing: missing}
	}
	return nil
}

// ProgressFunc observes stage lifecycle changes. It is fire-and-forget: the
// workflow never waits on it and ignores its panics.
type ProgressFunc func(stage string, status Status)

// Collaborators are the handles a stage may use.
type Collaborators struct {
	Sessions llm.SessionCreator
	Provider llm.Provider
	Prompts  llm.PromptBuilder
	Progress ProgressFunc // optional
}

func (c Collaborators) check() error {
	var missing []string
	if c.Sessions == nil {
		missing = append(missing, "session creator")
	}
	if c.Provider == nil {
		missing = append(missing, "provider")
	}
	if c.Prompts == nil {
		missing = append(missing, "prompt builder")
	}
	if len(missing) > 0 {
		return fmt.Errorf("orchestrator: missing collaborators: %s", strings.Join(missing, ", "))
	}
	return nil
}

// StageContext is the per-invocation input of a stage: the validated
// configuration, a read-only view of upstream data and the collaborators.
// The workflow builds a fresh one for every stage.
type StageContext struct {
	Config config.Config
	Data   Data
	Collaborators
	Logger *slog.Logger
}

// Emit reports a sub-step status through the progress callback, if any.
func (sc StageContext) Emit(name string, status Status) {
	if sc.Progress != nil {
		sc.Progress(name, status)
	}
}

// Output is what stage logic hands back to the envelope.
type Output struct {
	Answer    string
	Data      map[string]any
	Usage     llm.Usage
	Artifacts []string
	// Errors are non-fatal problems worth reporting (e.g. a failed plan week).
	Errors []string
}

// Stage is anything the workflow can run. Execute never panics and never
// returns an error; failures are reported in the result.
type Stage interface {
	Name() string
	Execute(ctx context.Context, sc StageContext) StageResult
}

// Logic is the stage-specific part wrapped by BaseStage.
type Logic interface {
	Name() string
	// Validate checks that the upstream data this stage needs is present.
	Validate(sc StageContext) error
	// Process runs the stage. Output returned with an error is kept as
	// partial data on the failed result.
	Process(ctx context.Context, sc StageContext) (Output, error)
}

// KeyExpecter is implemented by logic that declares the keys a successful run
// should produce.
type KeyExpecter interface {
	ExpectedKeys() []string
}

// KeyReuser is implemented by logic allowed to overwrite upstream keys.
type KeyReuser interface {
	ReusedKeys() []string
}

// BaseStage gives every stage the same envelope: timing, validation and
// error capture, whether the logic is pure computation or an agent loop.
type BaseStage struct {
	logic Logic
}

// Compile-time interface check.
var _ Stage = (*BaseStage)(nil)

// NewBaseStage wraps logic in the execution envelope.
func NewBaseStage(logic Logic) *BaseStage {
	return &BaseStage{logic: logic}
}

// Name returns the wrapped logic's name.
func (b *BaseStage) Name() string {
	return b.logic.Name()
}

// ReusedKeys forwards the wrapped logic's reusable keys, if any.
func (b *BaseStage) ReusedKeys() []string {
	if r, ok := b.logic.(KeyReuser); ok {
		return r.ReusedKeys()
	}
	return nil
}

// Execute validates and runs the logic. Errors and panics become a Failed
// result whose elapsed time covers the whole call.
func (b *BaseStage) Execute(ctx context.Context, sc StageContext) (res StageResult) {
	name := b.logic.Name()
	logger := sc.Logger
	if logger == nil {
		logger = logging.New("stage")
	}
	logger = logger.With("stage", name)
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			logger.Error("stage panicked", "panic", p, "stack", string(debug.Stack()))
			res = StageResult{
				Stage:  name,
				Status: StatusFailed,
				Errors: []string{fmt.Sprintf("panic: %v", p)},
			}
		}
		res.Elapsed = elapsedSince(start)
	}()

	if err := b.logic.Validate(sc); err != nil {
		logger.Warn("stage validation failed", "error", err)
		return StageResult{
			Stage:  name,
			Status: StatusFailed,
			Errors: []string{err.Error()},
		}
	}

	out, err := b.logic.Process(ctx, sc)
	res = StageResult{
		Stage:     name,
		Answer:    out.Answer,
		Data:      maps.Clone(out.Data),
		Usage:     out.Usage,
		Artifacts: slices.Clone(out.Artifacts),
		Errors:    slices.Clone(out.Errors),
	}
	if err != nil {
		res.Status = StatusFailed
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	res.Status = StatusCompleted
	if exp, ok := b.logic.(KeyExpecter); ok {
		for _, k := range exp.ExpectedKeys() {
			if _, present := res.Data[k]; !present {
				res.MissingKeys = append(res.MissingKeys, k)
			}
		}
		if len(res.MissingKeys) > 0 {
			logger.Warn("stage completed without expected data", "missing", res.MissingKeys)
		}
	}
	return res
}

// elapsedSince never reports zero: a monotonic clock can return the same
// reading for very short spans.
func elapsedSince(start time.Time) time.Duration {
	if d := time.Since(start); d > 0 {
		return d
	}
	return time.Nanosecond
}
