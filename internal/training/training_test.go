package training

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadActivities_MergesAndSorts(t *testing.T) {
	paths, err := ActivityPaths([]string{"testdata/week2.json"}, "testdata")
	require.NoError(t, err)
	assert.Equal(t, []string{"testdata/week2.json", "testdata/week1.json"}, paths, "explicit files first, duplicates dropped")

	acts, err := LoadActivities(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, acts, 5)

	var ids []string
	for _, a := range acts {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"r1", "b1", "r2", "r3", "r4"}, ids)
}

func TestLoadActivities_MalformedFile(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))

	_, err := LoadActivities(context.Background(), []string{"testdata/week1.json", bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.json")
}

func TestParseActivities_Empty(t *testing.T) {
	acts, err := ParseActivities([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, acts)
}

func TestActivity_Load(t *testing.T) {
	assert.Equal(t, 240.0, Activity{DurationSec: 3600, Effort: 4}.Load())
	assert.Equal(t, 150.0, Activity{DurationSec: 1800}.Load(), "missing effort uses the default")
}

func TestSummarize(t *testing.T) {
	acts, err := LoadActivities(context.Background(), []string{"testdata/week1.json", "testdata/week2.json"})
	require.NoError(t, err)

	s, weeks := Summarize(acts, 14)

	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), s.To)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), s.From)
	assert.Equal(t, 5, s.Sessions)
	assert.Equal(t, 5.5, s.TotalHours)
	assert.Equal(t, 87.0, s.TotalDistanceKm)
	assert.Equal(t, 2.75, s.AvgWeeklyHours)
	assert.Equal(t, 105.0, s.LongestSessionMin)
	assert.Equal(t, "run", s.PrimarySport)
	assert.Equal(t, SportSummary{Sessions: 4, Hours: 4, DistanceKm: 42}, s.BySport["run"])

	// Loads: r1 240, b1 540, r2 150, r3 315, r4 525.
	assert.Equal(t, 840.0, s.AcuteLoad)
	assert.Equal(t, 885.0, s.ChronicLoad)
	assert.Equal(t, 0.95, s.LoadRatio)

	require.Len(t, weeks, 2)
	assert.Equal(t, WeekLoad{Week: 1, Start: s.From, Sessions: 3, Hours: 3, DistanceKm: 61, Load: 930}, weeks[0])
	assert.Equal(t, 2, weeks[1].Sessions)
	assert.Equal(t, 840.0, weeks[1].Load)

	assert.Equal(t, weeks[1:], LastWeeks(weeks, 1))
	assert.Equal(t, weeks, LastWeeks(weeks, 5))
}

func TestSummarize_WindowExcludesOldActivities(t *testing.T) {
	acts, err := LoadActivities(context.Background(), []string{"testdata/week1.json", "testdata/week2.json"})
	require.NoError(t, err)

	s, weeks := Summarize(acts, 7)
	assert.Equal(t, 2, s.Sessions)
	require.Len(t, weeks, 1)
}

func TestSummarize_NoActivities(t *testing.T) {
	s, weeks := Summarize(nil, 28)
	assert.Equal(t, 0, s.Sessions)
	assert.Equal(t, 28, s.Days)
	assert.Nil(t, weeks)
}

func TestLoadProfile(t *testing.T) {
	p, err := LoadProfile("testdata/profile.yaml")
	require.NoError(t, err)
	assert.Equal(t, "Sam", p.Name)
	assert.Equal(t, LevelAdvanced, p.Level)
	assert.Equal(t, []string{"mon"}, p.RestDays)

	p = p.WithDefaults(Summary{PrimarySport: "run", AvgWeeklyHours: 4.5})
	assert.Equal(t, "run", p.PrimarySport)
	assert.Equal(t, 4.5, p.WeeklyHours)

	def, err := LoadProfile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile(), def)
}

func TestLoadProfile_UnknownLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.yaml")
	require.NoError(t, os.WriteFile(path, []byte("level: elite\n"), 0o644))
	_, err := LoadProfile(path)
	assert.Error(t, err)
}

func TestFinalize(t *testing.T) {
	overview := PlanOverview{ID: "p-1", Goal: "10k", Phases: []string{"base", "build"}, WeeklyHours: 5}
	details := []WeekDetail{
		{Week: 3, Focus: "build", Sessions: []Session{{Day: "tue", Minutes: 60, Intensity: "hard"}, {Day: "sat", Minutes: 120, Intensity: "easy"}}},
		{Week: 1, Focus: "base", Sessions: []Session{{Day: "sat", Minutes: 90, Intensity: "easy"}}},
	}

	plan, err := Finalize(overview, details, []int{2})
	require.NoError(t, err)

	assert.Equal(t, "p-1", plan.ID)
	require.Len(t, plan.Weeks, 2)
	assert.Equal(t, 1, plan.Weeks[0].Week)
	assert.Equal(t, []int{2}, plan.FailedWeeks)
	assert.Equal(t, 4.5, plan.TotalHours)
	assert.Equal(t, 3, plan.TotalSessions)
	assert.Equal(t, 1, plan.HardSessions)
	assert.Equal(t, 3, plan.PeakWeek)
	assert.Equal(t, map[string]int{"base": 1, "build": 1}, plan.FocusBreakdown)
	assert.Equal(t, 2.25, plan.AvgPlannedHours)
}

func TestFinalize_RequiresID(t *testing.T) {
	_, err := Finalize(PlanOverview{}, nil, nil)
	assert.Error(t, err)
}
