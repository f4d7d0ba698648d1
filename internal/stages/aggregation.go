package stages

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dusk-indust/pacer/internal/export"
	"github.com/dusk-indust/pacer/internal/orchestrator"
	"github.com/dusk-indust/pacer/internal/training"
)

type aggregation struct {
	now func() time.Time
}

// NewAggregation returns the pure-compute stage that writes the report, the
// plan document and the plan chart into the output directory.
func NewAggregation() *orchestrator.BaseStage {
	return orchestrator.NewBaseStage(aggregation{now: time.Now})
}

func (aggregation) Name() string { return Aggregation }

func (aggregation) ExpectedKeys() []string {
	return []string{KeyReportPath, KeyReportSummary}
}

func (aggregation) Validate(sc orchestrator.StageContext) error {
	if err := orchestrator.RequireKeys(Aggregation, sc.Data, KeyReport, KeyTrainingPlan); err != nil {
		return err
	}
	_, err := lookup[training.TrainingPlan](sc, Aggregation, KeyTrainingPlan)
	return err
}

func (a aggregation) Process(_ context.Context, sc orchestrator.StageContext) (orchestrator.Output, error) {
	plan, _ := orchestrator.Lookup[training.TrainingPlan](sc.Data, KeyTrainingPlan)
	report, _ := orchestrator.Lookup[string](sc.Data, KeyReport)
	findings, _ := orchestrator.Lookup[[]training.Finding](sc.Data, KeyFindings)
	summary, _ := orchestrator.Lookup[training.Summary](sc.Data, KeySummary)
	weeks, _ := orchestrator.Lookup[[]training.WeekLoad](sc.Data, KeyWeeklyLoad)
	profile, ok := orchestrator.Lookup[training.AthleteProfile](sc.Data, KeyProfile)
	if !ok {
		profile = training.DefaultProfile()
	}

	dir := sc.Config.OutputDir
	lastDay := summary.To
	if !lastDay.IsZero() {
		lastDay = lastDay.Add(-time.Nanosecond)
	}
	start := export.PlanStart(lastDay)

	reportPath := filepath.Join(dir, export.ReportFile)
	md := export.RenderReport(export.ReportInput{
		GeneratedAt: a.now(),
		Profile:     profile,
		Summary:     summary,
		WeeklyLoad:  weeks,
		Analysis:    report,
		Findings:    findings,
		Plan:        &plan,
		PlanStart:   start,
	})
	if err := export.WriteFile(reportPath, []byte(md)); err != nil {
		return orchestrator.Output{}, err
	}
	out := orchestrator.Output{Artifacts: []string{reportPath}}

	planPath := filepath.Join(dir, export.PlanFile)
	if err := export.WriteJSON(planPath, export.ExportPlan(profile, plan, start)); err != nil {
		return out, err
	}
	out.Artifacts = append(out.Artifacts, planPath)

	ganttPath := filepath.Join(dir, export.GanttFile)
	if err := export.WriteFile(ganttPath, []byte(export.GenerateGantt(plan, start))); err != nil {
		return out, err
	}
	out.Artifacts = append(out.Artifacts, ganttPath)

	headline := fmt.Sprintf("%d sessions analysed over %d days, %d findings; %d-week plan with %.1f h across %d sessions",
		summary.Sessions, summary.Days, len(findings), len(plan.Weeks), plan.TotalHours, plan.TotalSessions)
	out.Answer = headline
	out.Data = map[string]any{
		KeyReportPath:    reportPath,
		KeyReportSummary: headline,
	}
	return out, nil
}
