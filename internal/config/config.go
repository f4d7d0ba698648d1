// Package config describes a single workflow run: where the training inputs
// live, where artifacts go, and the bounds every stage must respect.
package config

import (
	"fmt"
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Ranges and defaults for the numeric parameters.
const (
	DefaultAnalysisDays = 28
	MinAnalysisDays     = 7
	MaxAnalysisDays     = 365

	DefaultPlanWeeks = 4
	MinPlanWeeks     = 1
	MaxPlanWeeks     = 52

	DefaultMaxIterations = 10
	MinIterations        = 1
	MaxIterations        = 100

	DefaultMinWeekSuccessRatio = 0.5
)

// Config holds runtime configuration for one workflow run. A Config is
// validated once, at workflow entry; the validated copy is never mutated.
type Config struct {
	// ActivityFiles are JSON activity exports. Primary input source.
	ActivityFiles []string `yaml:"activityFiles,omitempty"`

	// ActivityDir is a directory scanned for *.json activity exports.
	// Primary input source (alternative or addition to ActivityFiles).
	ActivityDir string `yaml:"activityDir,omitempty"`

	// ProfilePath is an optional athlete profile (YAML).
	ProfilePath string `yaml:"profilePath,omitempty"`

	// OutputDir receives the cache and all produced artifacts.
	OutputDir string `yaml:"outputDir"`

	// AnalysisDays is the look-back window, counted from the latest activity.
	AnalysisDays int `yaml:"analysisDays,omitempty"`

	// PlanWeeks is the number of weeks the plan covers.
	PlanWeeks int `yaml:"planWeeks,omitempty"`

	GeneratePlan    bool `yaml:"generatePlan"`
	SkipPreparation bool `yaml:"skipPreparation,omitempty"`

	// MaxIterations bounds each tool-calling stage's loop, keyed by stage name.
	// Stages without an entry use DefaultMaxIterations.
	MaxIterations map[string]int `yaml:"maxIterations,omitempty"`

	// MinWeekSuccessRatio is the share of plan weeks that must be detailed
	// successfully for the plan to be finalized.
	MinWeekSuccessRatio float64 `yaml:"minWeekSuccessRatio,omitempty"`

	// CustomPromptPath points to a YAML file of per-stage prompt templates.
	CustomPromptPath string `yaml:"customPromptPath,omitempty"`

	// ProviderTimeout and ToolTimeout bound each individual call. Zero means
	// no deadline.
	ProviderTimeout time.Duration `yaml:"providerTimeout,omitempty"`
	ToolTimeout     time.Duration `yaml:"toolTimeout,omitempty"`
}

// Error reports an invalid configuration field.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Default returns a Config with every default applied and no inputs set.
func Default() Config {
	return Config{
		AnalysisDays:        DefaultAnalysisDays,
		PlanWeeks:           DefaultPlanWeeks,
		GeneratePlan:        true,
		MinWeekSuccessRatio: DefaultMinWeekSuccessRatio,
	}
}

// Load reads a YAML configuration file on top of Default(). Relative paths
// inside the file are resolved against the file's directory. The result is
// not validated.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i, p := range cfg.ActivityFiles {
		cfg.ActivityFiles[i] = resolve(base, p)
	}
	cfg.ActivityDir = resolve(base, cfg.ActivityDir)
	cfg.ProfilePath = resolve(base, cfg.ProfilePath)
	cfg.OutputDir = resolve(base, cfg.OutputDir)
	cfg.CustomPromptPath = resolve(base, cfg.CustomPromptPath)
	return cfg, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// Validate checks every invariant and returns a normalized copy. Zero numeric
// fields take their defaults; anything else out of range is an error. The
// returned error is always a *Error.
func (c Config) Validate() (Config, error) {
	out := c
	out.ActivityFiles = slices.Clone(c.ActivityFiles)
	out.MaxIterations = maps.Clone(c.MaxIterations)

	if len(out.ActivityFiles) == 0 && out.ActivityDir == "" {
		return Config{}, &Error{Field: "activityFiles", Reason: "at least one input source (activityFiles or activityDir) is required"}
	}
	for i, p := range out.ActivityFiles {
		if p == "" {
			return Config{}, &Error{Field: fmt.Sprintf("activityFiles[%d]", i), Reason: "empty path"}
		}
		if err := requireFile(p); err != nil {
			return Config{}, &Error{Field: fmt.Sprintf("activityFiles[%d]", i), Reason: err.Error()}
		}
		out.ActivityFiles[i] = filepath.Clean(p)
	}
	if out.ActivityDir != "" {
		info, err := os.Stat(out.ActivityDir)
		if err != nil {
			return Config{}, &Error{Field: "activityDir", Reason: fmt.Sprintf("cannot access %s", out.ActivityDir)}
		}
		if !info.IsDir() {
			return Config{}, &Error{Field: "activityDir", Reason: fmt.Sprintf("%s is not a directory", out.ActivityDir)}
		}
		out.ActivityDir = filepath.Clean(out.ActivityDir)
	}
	if out.ProfilePath != "" {
		if err := requireFile(out.ProfilePath); err != nil {
			return Config{}, &Error{Field: "profilePath", Reason: err.Error()}
		}
	}
	if out.CustomPromptPath != "" {
		if err := requireFile(out.CustomPromptPath); err != nil {
			return Config{}, &Error{Field: "customPromptPath", Reason: err.Error()}
		}
	}

	if out.OutputDir == "" {
		return Config{}, &Error{Field: "outputDir", Reason: "required"}
	}
	if info, err := os.Stat(out.OutputDir); err == nil && !info.IsDir() {
		return Config{}, &Error{Field: "outputDir", Reason: fmt.Sprintf("%s exists and is not a directory", out.OutputDir)}
	}
	out.OutputDir = filepath.Clean(out.OutputDir)

	if out.AnalysisDays == 0 {
		out.AnalysisDays = DefaultAnalysisDays
	}
	if out.AnalysisDays < MinAnalysisDays || out.AnalysisDays > MaxAnalysisDays {
		return Config{}, &Error{Field: "analysisDays", Reason: fmt.Sprintf("must be in [%d, %d], got %d", MinAnalysisDays, MaxAnalysisDays, out.AnalysisDays)}
	}
	if out.PlanWeeks == 0 {
		out.PlanWeeks = DefaultPlanWeeks
	}
	if out.PlanWeeks < MinPlanWeeks || out.PlanWeeks > MaxPlanWeeks {
		return Config{}, &Error{Field: "planWeeks", Reason: fmt.Sprintf("must be in [%d, %d], got %d", MinPlanWeeks, MaxPlanWeeks, out.PlanWeeks)}
	}
	for _, stage := range slices.Sorted(maps.Keys(out.MaxIterations)) {
		n := out.MaxIterations[stage]
		if n < MinIterations || n > MaxIterations {
			return Config{}, &Error{Field: "maxIterations." + stage, Reason: fmt.Sprintf("must be in [%d, %d], got %d", MinIterations, MaxIterations, n)}
		}
	}
	if out.MinWeekSuccessRatio == 0 {
		out.MinWeekSuccessRatio = DefaultMinWeekSuccessRatio
	}
	if out.MinWeekSuccessRatio < 0 || out.MinWeekSuccessRatio > 1 {
		return Config{}, &Error{Field: "minWeekSuccessRatio", Reason: fmt.Sprintf("must be in (0, 1], got %g", out.MinWeekSuccessRatio)}
	}
	if out.ProviderTimeout < 0 {
		return Config{}, &Error{Field: "providerTimeout", Reason: "must not be negative"}
	}
	if out.ToolTimeout < 0 {
		return Config{}, &Error{Field: "toolTimeout", Reason: "must not be negative"}
	}

	return out, nil
}

// IterationsFor returns the loop ceiling configured for a stage.
func (c Config) IterationsFor(stage string) int {
	if n, ok := c.MaxIterations[stage]; ok && n > 0 {
		return n
	}
	return DefaultMaxIterations
}

// RequiredWeeks returns how many plan weeks must succeed, never less than one.
func (c Config) RequiredWeeks() int {
	ratio := c.MinWeekSuccessRatio
	if ratio <= 0 {
		ratio = DefaultMinWeekSuccessRatio
	}
	n := int(math.Ceil(float64(c.PlanWeeks) * ratio))
	if n < 1 {
		n = 1
	}
	if n > c.PlanWeeks {
		n = c.PlanWeeks
	}
	return n
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access %s", path)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}
