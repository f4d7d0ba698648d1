package stages

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/dusk-indust/pacer/internal/llm"
	"github.com/dusk-indust/pacer/internal/orchestrator"
	"github.com/dusk-indust/pacer/internal/tools"
	"github.com/dusk-indust/pacer/internal/training"
)

// Analysis tool names.
const (
	ToolGetSummary    = "get_training_summary"
	ToolGetWeeklyLoad = "get_weekly_load"
	ToolRecordFinding = "record_finding"
)

type analysis struct{}

// NewAnalysis returns the tool-calling stage that reviews the prepared
// training data and records findings.
func NewAnalysis() *orchestrator.BaseStage {
	return orchestrator.NewBaseStage(analysis{})
}

func (analysis) Name() string { return Analysis }

func (analysis) ExpectedKeys() []string {
	return []string{KeyReport, KeyFindings}
}

func (analysis) Validate(sc orchestrator.StageContext) error {
	if err := orchestrator.RequireKeys(Analysis, sc.Data, KeySummary, KeyWeeklyLoad); err != nil {
		return err
	}
	if _, err := lookup[training.Summary](sc, Analysis, KeySummary); err != nil {
		return err
	}
	_, err := lookup[[]training.WeekLoad](sc, Analysis, KeyWeeklyLoad)
	return err
}

func (analysis) Process(ctx context.Context, sc orchestrator.StageContext) (orchestrator.Output, error) {
	summary, _ := orchestrator.Lookup[training.Summary](sc.Data, KeySummary)
	weeks, _ := orchestrator.Lookup[[]training.WeekLoad](sc.Data, KeyWeeklyLoad)
	profile, ok := orchestrator.Lookup[training.AthleteProfile](sc.Data, KeyProfile)
	if !ok {
		profile = training.DefaultProfile()
	}

	instructions, err := sc.Prompts.Build(PromptAnalysis, map[string]any{
		"profile": profile,
		"summary": summary,
		"weeks":   weeks,
		"days":    sc.Config.AnalysisDays,
	})
	if err != nil {
		return orchestrator.Output{}, err
	}

	rec := &findingRecorder{}
	reg := analysisTools(summary, weeks, rec, tools.WithTimeout(sc.Config.ToolTimeout))
	session := sc.Sessions.Create(instructions, llm.WithTools(reg.Specs()...))

	res, err := newLoop(sc, Analysis, reg).Run(ctx, session)
	out := orchestrator.Output{Usage: res.Usage}
	if err != nil {
		return out, err
	}

	out.Data = map[string]any{}
	if report := strings.TrimSpace(res.Answer); report != "" {
		out.Answer = report
		out.Data[KeyReport] = report
	}
	if findings := rec.all(); len(findings) > 0 {
		out.Data[KeyFindings] = findings
	}
	return out, nil
}

// findingRecorder collects record_finding calls. The registry never runs two
// handlers at once; mu covers the stage reading findings while a handler
// abandoned after its timeout is still finishing.
type findingRecorder struct {
	mu       sync.Mutex
	findings []training.Finding
}

func (r *findingRecorder) add(f training.Finding) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findings = append(r.findings, f)
	return len(r.findings)
}

func (r *findingRecorder) all() []training.Finding {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.findings)
}

type weeklyLoadArgs struct {
	Weeks int `json:"weeks"`
}

type findingArgs struct {
	Category string `json:"category"`
	Severity string `json:"severity"`
	Summary  string `json:"summary"`
}

func analysisTools(summary training.Summary, weeks []training.WeekLoad, rec *findingRecorder, opts ...tools.RegistryOption) *tools.Registry {
	return tools.NewRegistry(opts...).MustRegister(
		tools.Tool{
			Name:        ToolGetSummary,
			Description: "Return the summary of the analysis window: totals, per-sport breakdown and acute:chronic load.",
			Handler: func(context.Context, json.RawMessage) (any, error) {
				return summary, nil
			},
		},
		tools.Tool{
			Name:        ToolGetWeeklyLoad,
			Description: "Return the most recent weekly load buckets, oldest first.",
			Parameters: tools.Object(map[string]*jsonschema.Schema{
				"weeks": tools.Integer("Number of most recent weeks to return", 1, 52),
			}, "weeks"),
			Handler: tools.Typed(func(_ context.Context, args weeklyLoadArgs) (any, error) {
				return training.LastWeeks(weeks, args.Weeks), nil
			}),
		},
		tools.Tool{
			Name:        ToolRecordFinding,
			Description: "Record one observation about the athlete's training.",
			Parameters: tools.Object(map[string]*jsonschema.Schema{
				"category": tools.Enum("What the finding is about", training.FindingCategories...),
				"severity": tools.Enum("How much it matters", training.Severities...),
				"summary":  tools.String("One or two sentences describing the finding"),
			}, "category", "severity", "summary"),
			Handler: tools.Typed(func(_ context.Context, args findingArgs) (any, error) {
				n := rec.add(training.Finding{Category: args.Category, Severity: args.Severity, Summary: strings.TrimSpace(args.Summary)})
				return map[string]any{"recorded": n}, nil
			}),
		},
	)
}
