package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/pacer/internal/coach"
	"github.com/dusk-indust/pacer/internal/config"
	"github.com/dusk-indust/pacer/internal/llm"
	"github.com/dusk-indust/pacer/internal/orchestrator"
	"github.com/dusk-indust/pacer/internal/training"
)

var runFlags struct {
	configPath      string
	activities      []string
	activityDir     string
	profile         string
	output          string
	days            int
	weeks           int
	noPlan          bool
	skipPreparation bool
	prompts         string
	script          string
	providerTimeout time.Duration
	jsonOut         bool
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Analyze activities and generate a training plan",
		Long: `Run the full workflow: preparation, analysis, planning and aggregation.

Usage:
  pacer run --activities runs.json --output out/
  pacer run --activity-dir exports/ --profile athlete.yaml --weeks 8
  pacer run --config pacer.yaml --no-plan

Flags override values from --config. Without --script the built-in offline
coach answers every model turn.`,
		Args: cobra.NoArgs,
		RunE: runWorkflow,
	}

	f := cmd.Flags()
	f.StringVarP(&runFlags.configPath, "config", "c", "", "YAML configuration file")
	f.StringSliceVarP(&runFlags.activities, "activities", "a", nil, "JSON activity export (repeatable)")
	f.StringVar(&runFlags.activityDir, "activity-dir", "", "Directory of JSON activity exports")
	f.StringVar(&runFlags.profile, "profile", "", "Athlete profile (YAML)")
	f.StringVarP(&runFlags.output, "output", "o", "pacer-out", "Output directory")
	f.IntVar(&runFlags.days, "days", config.DefaultAnalysisDays, "Analysis window in days")
	f.IntVar(&runFlags.weeks, "weeks", config.DefaultPlanWeeks, "Number of weeks to plan")
	f.BoolVar(&runFlags.noPlan, "no-plan", false, "Stop after analysis")
	f.BoolVar(&runFlags.skipPreparation, "skip-preparation", false, "Reuse the cached preparation when present")
	f.StringVar(&runFlags.prompts, "prompts", "", "YAML file of prompt template overrides")
	f.StringVar(&runFlags.script, "script", "", "Replay model replies from a YAML script")
	f.DurationVar(&runFlags.providerTimeout, "provider-timeout", 0, "Deadline for each model call (0 for none)")
	f.BoolVar(&runFlags.jsonOut, "json", false, "Print the workflow result as JSON")
	return cmd
}

func runWorkflow(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	provider, err := selectProvider(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	deps := coach.Deps{Provider: provider}
	if !runFlags.jsonOut {
		deps.Progress = func(stage string, status orchestrator.Status) {
			fmt.Fprintln(out, orchestrator.FormatProgress(orchestrator.ProgressEvent{Stage: stage, Status: status}))
		}
	}

	res, err := coach.ExecuteWorkflow(cmd.Context(), cfg, deps)
	if err != nil {
		return err
	}

	if runFlags.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res.ToMap()); err != nil {
			return err
		}
	} else {
		printSummary(out, res)
	}

	if failed, ok := res.FirstFailure(); ok {
		return fmt.Errorf("stage %s failed", failed.Stage)
	}
	return nil
}

// buildConfig starts from --config (or the defaults) and applies every flag
// the user set explicitly.
func buildConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if runFlags.configPath != "" {
		loaded, err := config.Load(runFlags.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	f := cmd.Flags()
	if f.Changed("activities") {
		cfg.ActivityFiles = runFlags.activities
	}
	if f.Changed("activity-dir") {
		cfg.ActivityDir = runFlags.activityDir
	}
	if f.Changed("profile") {
		cfg.ProfilePath = runFlags.profile
	}
	if f.Changed("output") || cfg.OutputDir == "" {
		cfg.OutputDir = runFlags.output
	}
	if f.Changed("days") {
		cfg.AnalysisDays = runFlags.days
	}
	if f.Changed("weeks") {
		cfg.PlanWeeks = runFlags.weeks
	}
	if f.Changed("no-plan") {
		cfg.GeneratePlan = !runFlags.noPlan
	}
	if f.Changed("skip-preparation") {
		cfg.SkipPreparation = runFlags.skipPreparation
	}
	if f.Changed("prompts") {
		cfg.CustomPromptPath = runFlags.prompts
	}
	if f.Changed("provider-timeout") {
		cfg.ProviderTimeout = runFlags.providerTimeout
	}
	return cfg, nil
}

// selectProvider returns the replay provider for --script, otherwise the
// offline coach sized to the athlete profile.
func selectProvider(cfg config.Config) (llm.Provider, error) {
	if runFlags.script != "" {
		return llm.LoadScript(runFlags.script)
	}
	demo := coach.DemoProvider{}
	if cfg.ProfilePath != "" {
		profile, err := training.LoadProfile(cfg.ProfilePath)
		if err != nil {
			return nil, &config.Error{Field: "profilePath", Reason: err.Error()}
		}
		demo.WeeklyHours = profile.WeeklyHours
	}
	return demo, nil
}

func printSummary(w io.Writer, res *orchestrator.WorkflowResult) {
	fmt.Fprintln(w)
	for _, r := range res.Stages {
		line := fmt.Sprintf("%-12s %-11s %8s", r.Stage, r.Status, r.Elapsed.Round(time.Millisecond))
		if n := r.Usage.Total(); n > 0 {
			line += fmt.Sprintf("  %d tokens", n)
		}
		fmt.Fprintln(w, line)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  error: %s\n", e)
		}
		if len(r.MissingKeys) > 0 {
			fmt.Fprintf(w, "  missing: %v\n", r.MissingKeys)
		}
	}
	if len(res.Artifacts) > 0 {
		fmt.Fprintln(w, "\nArtifacts:")
		for _, a := range res.Artifacts {
			fmt.Fprintf(w, "  %s\n", a)
		}
	}
}
