package training

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Athlete levels.
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

// AthleteProfile describes who the plan is for.
type AthleteProfile struct {
	Name         string   `yaml:"name" json:"name"`
	PrimarySport string   `yaml:"primarySport" json:"primarySport"`
	Level        string   `yaml:"level" json:"level"`
	Goal         string   `yaml:"goal" json:"goal"`
	GoalDate     string   `yaml:"goalDate,omitempty" json:"goalDate,omitempty"`
	WeeklyHours  float64  `yaml:"weeklyHours,omitempty" json:"weeklyHours,omitempty"`
	MaxHeartRate int      `yaml:"maxHeartRate,omitempty" json:"maxHeartRate,omitempty"`
	RestDays     []string `yaml:"restDays,omitempty" json:"restDays,omitempty"`
}

// DefaultProfile is used when no profile file is configured.
func DefaultProfile() AthleteProfile {
	return AthleteProfile{
		Name:  "athlete",
		Level: LevelIntermediate,
		Goal:  "general fitness",
	}
}

// LoadProfile reads a YAML profile. Empty fields take DefaultProfile values.
// An empty path returns DefaultProfile.
func LoadProfile(path string) (AthleteProfile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("training: read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("training: parse profile %s: %w", path, err)
	}
	switch p.Level {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
	case "":
		p.Level = LevelIntermediate
	default:
		return p, fmt.Errorf("training: profile %s: unknown level %q", path, p.Level)
	}
	return p, nil
}

// WithDefaults fills sport and weekly hours from the observed summary when
// the profile leaves them empty.
func (p AthleteProfile) WithDefaults(s Summary) AthleteProfile {
	if p.PrimarySport == "" {
		p.PrimarySport = s.PrimarySport
	}
	if p.WeeklyHours == 0 {
		p.WeeklyHours = s.AvgWeeklyHours
	}
	return p
}
