package stages

import (
	"context"
	"fmt"

	"github.com/dusk-indust/pacer/internal/cache"
	"github.com/dusk-indust/pacer/internal/orchestrator"
	"github.com/dusk-indust/pacer/internal/training"
)

type preparation struct{}

// NewPreparation returns the pure-compute stage that loads activities and
// the athlete profile, summarizes the analysis window and writes the
// preparation cache.
func NewPreparation() *orchestrator.BaseStage {
	return orchestrator.NewBaseStage(preparation{})
}

func (preparation) Name() string { return Preparation }

func (preparation) ExpectedKeys() []string {
	return []string{KeyProfile, KeySummary, KeyWeeklyLoad}
}

// Validate has nothing upstream to check; inputs were validated with the
// configuration.
func (preparation) Validate(orchestrator.StageContext) error { return nil }

func (preparation) Process(ctx context.Context, sc orchestrator.StageContext) (orchestrator.Output, error) {
	logger := stageLogger(sc, Preparation)
	cfg := sc.Config

	paths, err := training.ActivityPaths(cfg.ActivityFiles, cfg.ActivityDir)
	if err != nil {
		return orchestrator.Output{}, err
	}
	if len(paths) == 0 {
		return orchestrator.Output{}, fmt.Errorf("preparation: no activity files found")
	}
	acts, err := training.LoadActivities(ctx, paths)
	if err != nil {
		return orchestrator.Output{}, err
	}
	if len(acts) == 0 {
		return orchestrator.Output{}, fmt.Errorf("preparation: %d activity files contain no activities", len(paths))
	}

	profile, err := training.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return orchestrator.Output{}, err
	}
	summary, weeks := training.Summarize(acts, cfg.AnalysisDays)
	profile = profile.WithDefaults(summary)

	snap := cache.Snapshot{
		Inputs:       paths,
		AnalysisDays: cfg.AnalysisDays,
		ProfilePath:  cfg.ProfilePath,
		Profile:      profile,
		Summary:      summary,
		WeeklyLoad:   weeks,
	}
	if path, err := cache.Write(cfg.OutputDir, snap); err != nil {
		logger.Warn("preparation cache not written", "error", err)
	} else {
		logger.Debug("preparation cache written", "path", path)
	}

	return orchestrator.Output{
		Answer: fmt.Sprintf("loaded %d activities from %d files; %d sessions in the last %d days",
			len(acts), len(paths), summary.Sessions, cfg.AnalysisDays),
		Data: PreparationData(snap),
	}, nil
}

// PreparationData is the data a preparation run contributes, rebuilt from a
// snapshot so a cached run and a fresh one are indistinguishable downstream.
func PreparationData(snap cache.Snapshot) map[string]any {
	return map[string]any{
		KeyProfile:    snap.Profile,
		KeySummary:    snap.Summary,
		KeyWeeklyLoad: snap.WeeklyLoad,
	}
}
