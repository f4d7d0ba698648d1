package stages

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"

	"github.com/dusk-indust/pacer/internal/agent"
	"github.com/dusk-indust/pacer/internal/llm"
	"github.com/dusk-indust/pacer/internal/orchestrator"
	"github.com/dusk-indust/pacer/internal/tools"
	"github.com/dusk-indust/pacer/internal/training"
)

// Planning tool names.
const (
	ToolCreateOverview = "create_plan_overview"
	ToolAddWeekDetail  = "add_week_detail"
)

// Sub-step names reported through the progress callback.
const (
	StepOverview = Planning + "/overview"
	StepFinalize = Planning + "/finalize"
)

// StepWeek names the detail sub-step of one week.
func StepWeek(week int) string {
	return fmt.Sprintf("%s/week-%d", Planning, week)
}

// ErrTooFewWeeks is returned when not enough weeks were detailed to finalize
// a coherent plan.
var ErrTooFewWeeks = errors.New("too few plan weeks detailed")

type planning struct{}

// NewPlanning returns the composite planning stage. It runs an overview
// sub-step, one detail sub-step per configured week and a pure-compute
// finalize sub-step, all on one session. The stage's iteration ceiling
// bounds each sub-step's loop, so the stage makes at most
// (PlanWeeks+1) x ceiling provider calls.
func NewPlanning() *orchestrator.BaseStage {
	return orchestrator.NewBaseStage(planning{})
}

func (planning) Name() string { return Planning }

func (planning) ExpectedKeys() []string {
	return []string{KeyPlanID, KeyPlanOverview, KeyPlanWeeks, KeyTrainingPlan}
}

func (planning) Validate(sc orchestrator.StageContext) error {
	if err := orchestrator.RequireKeys(Planning, sc.Data, KeyProfile, KeyReport); err != nil {
		return err
	}
	if _, err := lookup[training.AthleteProfile](sc, Planning, KeyProfile); err != nil {
		return err
	}
	report, err := lookup[string](sc, Planning, KeyReport)
	if err != nil {
		return err
	}
	if strings.TrimSpace(report) == "" {
		return &orchestrator.ValidationError{Stage: Planning, Reason: "analysis report is empty"}
	}
	return nil
}

// planRun is the state of one planning invocation: the shared session, the
// loop and the builder the tools write into.
type planRun struct {
	sc      orchestrator.StageContext
	session llm.Session
	loop    *agent.Loop
	builder *planBuilder
	values  map[string]any
	usage   llm.Usage
}

func (planning) Process(ctx context.Context, sc orchestrator.StageContext) (orchestrator.Output, error) {
	logger := stageLogger(sc, Planning)
	profile, _ := orchestrator.Lookup[training.AthleteProfile](sc.Data, KeyProfile)
	report, _ := orchestrator.Lookup[string](sc.Data, KeyReport)
	findings, _ := orchestrator.Lookup[[]training.Finding](sc.Data, KeyFindings)
	nWeeks := sc.Config.PlanWeeks

	values := map[string]any{
		"profile":  profile,
		"report":   report,
		"findings": findings,
		"weeks":    nWeeks,
	}
	instructions, err := sc.Prompts.Build(PromptPlanning, values)
	if err != nil {
		return orchestrator.Output{}, err
	}

	b := newPlanBuilder(nWeeks)
	reg := planningTools(b, tools.WithTimeout(sc.Config.ToolTimeout))
	run := &planRun{
		sc:      sc,
		session: sc.Sessions.Create(instructions, llm.WithTools(reg.Specs()...)),
		loop:    newLoop(sc, Planning, reg),
		builder: b,
		values:  values,
	}

	sc.Emit(StepOverview, orchestrator.StatusInProgress)
	overview, err := run.overview(ctx)
	if err != nil {
		sc.Emit(StepOverview, orchestrator.StatusFailed)
		return orchestrator.Output{Usage: run.usage}, fmt.Errorf("planning: overview: %w", err)
	}
	sc.Emit(StepOverview, orchestrator.StatusCompleted)
	logger.Info("plan overview created", "plan", overview.ID, "phases", overview.Phases)

	details, failed, problems := run.details(ctx, overview.ID, nWeeks)

	out := orchestrator.Output{
		Usage:  run.usage,
		Errors: problems,
		Data: map[string]any{
			KeyPlanID:       overview.ID,
			KeyPlanOverview: overview,
			KeyPlanWeeks:    details,
			KeyFailedWeeks:  failed,
		},
	}
	if need := sc.Config.RequiredWeeks(); len(details) < need {
		return out, fmt.Errorf("planning: %w: %d of %d, need %d", ErrTooFewWeeks, len(details), nWeeks, need)
	}

	sc.Emit(StepFinalize, orchestrator.StatusInProgress)
	plan, err := training.Finalize(overview, details, failed)
	if err != nil {
		sc.Emit(StepFinalize, orchestrator.StatusFailed)
		return out, err
	}
	sc.Emit(StepFinalize, orchestrator.StatusCompleted)

	out.Data[KeyTrainingPlan] = plan
	out.Answer = fmt.Sprintf("plan %s: %d of %d weeks detailed, %.1f h planned", plan.ID, len(details), nWeeks, plan.TotalHours)
	return out, nil
}

// overview asks for the plan overview and returns it with its generated id.
func (r *planRun) overview(ctx context.Context) (training.PlanOverview, error) {
	prompt, err := r.sc.Prompts.Build(PromptPlanningOverview, r.values)
	if err != nil {
		return training.PlanOverview{}, err
	}
	r.session.Append(llm.Turn{Role: llm.RoleUser, Content: prompt})

	res, err := r.loop.Run(ctx, r.session)
	r.usage = r.usage.Add(res.Usage)
	if ov, ok := r.builder.overview(); ok {
		if err != nil {
			stageLogger(r.sc, Planning).Warn("overview recorded but loop did not finish", "error", err)
		}
		return ov, nil
	}
	if err != nil {
		return training.PlanOverview{}, err
	}
	return training.PlanOverview{}, fmt.Errorf("%s was never called successfully", ToolCreateOverview)
}

// details runs one detail sub-step per week. Every week is attempted; the
// weeks that produced no detail are returned in failed.
func (r *planRun) details(ctx context.Context, planID string, nWeeks int) (details []training.WeekDetail, failed []int, problems []string) {
	logger := stageLogger(r.sc, Planning)
	for week := 1; week <= nWeeks; week++ {
		step := StepWeek(week)
		r.sc.Emit(step, orchestrator.StatusInProgress)

		d, err := r.week(ctx, planID, week)
		if err != nil {
			logger.Warn("plan week failed", "week", week, "error", err)
			failed = append(failed, week)
			problems = append(problems, fmt.Sprintf("week %d: %v", week, err))
			r.sc.Emit(step, orchestrator.StatusFailed)
			continue
		}
		details = append(details, d)
		r.sc.Emit(step, orchestrator.StatusCompleted)
	}
	return details, failed, problems
}

func (r *planRun) week(ctx context.Context, planID string, week int) (training.WeekDetail, error) {
	values := maps.Clone(r.values)
	values["plan_id"] = planID
	values["week"] = week

	prompt, err := r.sc.Prompts.Build(PromptPlanningWeek, values)
	if err != nil {
		return training.WeekDetail{}, err
	}
	r.builder.expect(week)
	r.session.Append(llm.Turn{Role: llm.RoleUser, Content: prompt})

	res, err := r.loop.Run(ctx, r.session)
	r.usage = r.usage.Add(res.Usage)
	if d, ok := r.builder.detail(week); ok {
		return d, nil
	}
	if err != nil {
		return training.WeekDetail{}, err
	}
	return training.WeekDetail{}, fmt.Errorf("%s was never called successfully", ToolAddWeekDetail)
}

// planBuilder collects what the planning tools record during one
// invocation. Handlers run one at a time; mu covers the stage reading the
// builder while a handler abandoned after its timeout is still finishing.
type planBuilder struct {
	weeks int

	mu      sync.Mutex
	ov      *training.PlanOverview
	current int
	byWeek  map[int]training.WeekDetail
}

func newPlanBuilder(weeks int) *planBuilder {
	return &planBuilder{weeks: weeks, byWeek: make(map[int]training.WeekDetail, weeks)}
}

func (b *planBuilder) overview() (training.PlanOverview, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ov == nil {
		return training.PlanOverview{}, false
	}
	return *b.ov, true
}

func (b *planBuilder) expect(week int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = week
}

func (b *planBuilder) detail(week int) (training.WeekDetail, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.byWeek[week]
	return d, ok
}

type overviewArgs struct {
	Goal        string   `json:"goal"`
	Phases      []string `json:"phases"`
	WeeklyHours float64  `json:"weekly_hours"`
}

func (b *planBuilder) createOverview(_ context.Context, args overviewArgs) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ov != nil {
		return nil, fmt.Errorf("overview already created; use plan_id %q", b.ov.ID)
	}
	b.ov = &training.PlanOverview{
		ID:          uuid.NewString(),
		Goal:        strings.TrimSpace(args.Goal),
		Phases:      args.Phases,
		WeeklyHours: args.WeeklyHours,
	}
	return map[string]any{"plan_id": b.ov.ID, "weeks": b.weeks}, nil
}

type weekArgs struct {
	PlanID   string             `json:"plan_id"`
	Week     int                `json:"week"`
	Focus    string             `json:"focus"`
	Sessions []training.Session `json:"sessions"`
}

func (b *planBuilder) addWeek(_ context.Context, args weekArgs) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.ov == nil:
		return nil, errors.New("no plan overview exists yet")
	case args.PlanID != b.ov.ID:
		return nil, fmt.Errorf("unknown plan_id %q", args.PlanID)
	case args.Week != b.current:
		return nil, fmt.Errorf("week %d is not being planned now; detail week %d", args.Week, b.current)
	}
	if _, done := b.byWeek[args.Week]; done {
		return nil, fmt.Errorf("week %d already has a detail", args.Week)
	}
	d := training.WeekDetail{Week: args.Week, Focus: args.Focus, Sessions: args.Sessions}
	if d.Sessions == nil {
		d.Sessions = []training.Session{}
	}
	b.byWeek[args.Week] = d
	return map[string]any{"week": d.Week, "sessions": len(d.Sessions), "hours": d.Hours()}, nil
}

func planningTools(b *planBuilder, opts ...tools.RegistryOption) *tools.Registry {
	session := tools.Object(map[string]*jsonschema.Schema{
		"day":         tools.Enum("Day of the week", training.Weekdays...),
		"sport":       tools.String("Sport of the session"),
		"minutes":     tools.Integer("Planned duration in minutes", 10, 480),
		"intensity":   tools.Enum("Session intensity", training.Intensities...),
		"description": tools.String("Short description of the workout"),
	}, "day", "minutes", "intensity")

	return tools.NewRegistry(opts...).MustRegister(
		tools.Tool{
			Name:        ToolCreateOverview,
			Description: "Create the plan overview. Call exactly once; returns the plan_id used by add_week_detail.",
			Parameters: tools.Object(map[string]*jsonschema.Schema{
				"goal":         tools.String("What the plan builds towards"),
				"phases":       tools.Array("Ordered training phases", tools.Enum("Phase", training.WeekFocuses...)),
				"weekly_hours": tools.Number("Target hours per week", 1, 40),
			}, "goal", "phases", "weekly_hours"),
			Handler: tools.Typed(b.createOverview),
		},
		tools.Tool{
			Name:        ToolAddWeekDetail,
			Description: "Add the detail of one plan week.",
			Parameters: tools.Object(map[string]*jsonschema.Schema{
				"plan_id":  tools.String("The plan_id returned by create_plan_overview"),
				"week":     tools.Integer("Week number, starting at 1", 1, 52),
				"focus":    tools.Enum("Focus of the week", training.WeekFocuses...),
				"sessions": tools.Array("Sessions of the week", session),
			}, "plan_id", "week", "focus", "sessions"),
			Handler: tools.Typed(b.addWeek),
		},
	)
}
