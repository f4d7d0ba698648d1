// Package stages implements the four stages of the training workflow:
// preparation, analysis, planning and aggregation.
package stages

import (
	"fmt"
	"log/slog"

	"github.com/dusk-indust/pacer/internal/agent"
	"github.com/dusk-indust/pacer/internal/logging"
	"github.com/dusk-indust/pacer/internal/orchestrator"
	"github.com/dusk-indust/pacer/internal/tools"
)

// Stage names.
const (
	Preparation = "preparation"
	Analysis    = "analysis"
	Planning    = "planning"
	Aggregation = "aggregation"
)

// Keys of the accumulated data map.
const (
	KeyProfile    = "preparation.profile"
	KeySummary    = "preparation.summary"
	KeyWeeklyLoad = "preparation.weekly_load"

	KeyReport   = "analysis.report"
	KeyFindings = "analysis.findings"

	KeyPlanID       = "plan.id"
	KeyPlanOverview = "plan.overview"
	KeyPlanWeeks    = "plan.weeks"
	KeyTrainingPlan = "plan.training_plan"
	KeyFailedWeeks  = "plan.failed_weeks"

	KeyReportPath    = "report.path"
	KeyReportSummary = "report.summary"
)

func stageLogger(sc orchestrator.StageContext, stage string) *slog.Logger {
	if sc.Logger != nil {
		return sc.Logger.With("stage", stage)
	}
	return logging.New("stage").With("stage", stage)
}

func newLoop(sc orchestrator.StageContext, stage string, reg *tools.Registry) *agent.Loop {
	return agent.NewLoop(sc.Provider, reg, sc.Config.IterationsFor(stage),
		agent.WithLogger(stageLogger(sc, stage)))
}

// lookup fetches a typed upstream value for a stage that already validated
// its presence.
func lookup[T any](sc orchestrator.StageContext, stage, key string) (T, error) {
	v, ok := orchestrator.Lookup[T](sc.Data, key)
	if !ok {
		var zero T
		return zero, &orchestrator.ValidationError{
			Stage:   stage,
			Missing: []string{key},
			Reason:  fmt.Sprintf("%s is absent or not a %T", key, zero),
		}
	}
	return v, nil
}
