package training

import (
	"fmt"
	"slices"
	"sort"
)

// Finding categories and severities recorded during analysis.
var (
	FindingCategories = []string{"volume", "intensity", "consistency", "recovery", "balance"}
	Severities        = []string{"info", "warning", "critical"}
)

// Week focuses and session intensities used by the plan.
var (
	WeekFocuses = []string{"base", "build", "peak", "taper", "recovery"}
	Intensities = []string{"easy", "moderate", "hard"}
	Weekdays    = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}
)

// Finding is one observation from the analysis stage.
type Finding struct {
	Category string `json:"category"`
	Severity string `json:"severity"`
	Summary  string `json:"summary"`
}

// PlanOverview is the skeleton of a plan before week details exist.
type PlanOverview struct {
	ID          string   `json:"id"`
	Goal        string   `json:"goal"`
	Phases      []string `json:"phases"`
	WeeklyHours float64  `json:"weeklyHours"`
}

// Session is one planned workout.
type Session struct {
	Day         string `json:"day"`
	Sport       string `json:"sport,omitempty"`
	Minutes     int    `json:"minutes"`
	Intensity   string `json:"intensity"`
	Description string `json:"description,omitempty"`
}

// WeekDetail is the content of one plan week.
type WeekDetail struct {
	Week     int       `json:"week"`
	Focus    string    `json:"focus"`
	Sessions []Session `json:"sessions"`
}

// Hours returns the planned duration of the week.
func (w WeekDetail) Hours() float64 {
	var minutes int
	for _, s := range w.Sessions {
		minutes += s.Minutes
	}
	return round2(float64(minutes) / 60)
}

// TrainingPlan is the finalized plan.
type TrainingPlan struct {
	ID          string       `json:"id"`
	Goal        string       `json:"goal"`
	Phases      []string     `json:"phases"`
	WeeklyHours float64      `json:"weeklyHours"`
	Weeks       []WeekDetail `json:"weeks"`
	FailedWeeks []int        `json:"failedWeeks,omitempty"`

	TotalHours      float64        `json:"totalHours"`
	TotalSessions   int            `json:"totalSessions"`
	HardSessions    int            `json:"hardSessions"`
	PeakWeek        int            `json:"peakWeek"`
	FocusBreakdown  map[string]int `json:"focusBreakdown"`
	AvgPlannedHours float64        `json:"avgPlannedHours"`
}

// Finalize merges the overview and week details into a plan and computes the
// derived totals. Details are ordered by week; a later detail for the same
// week replaces an earlier one.
func Finalize(overview PlanOverview, details []WeekDetail, failed []int) (TrainingPlan, error) {
	if overview.ID == "" {
		return TrainingPlan{}, fmt.Errorf("training: finalize: overview has no plan id")
	}

	byWeek := make(map[int]WeekDetail, len(details))
	for _, d := range details {
		byWeek[d.Week] = d
	}
	weeks := make([]WeekDetail, 0, len(byWeek))
	for _, d := range byWeek {
		weeks = append(weeks, d)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Week < weeks[j].Week })

	plan := TrainingPlan{
		ID:             overview.ID,
		Goal:           overview.Goal,
		Phases:         slices.Clone(overview.Phases),
		WeeklyHours:    overview.WeeklyHours,
		Weeks:          weeks,
		FailedWeeks:    slices.Sorted(slices.Values(failed)),
		FocusBreakdown: map[string]int{},
	}

	var peak float64
	for _, w := range weeks {
		h := w.Hours()
		plan.TotalHours += h
		plan.TotalSessions += len(w.Sessions)
		plan.FocusBreakdown[w.Focus]++
		for _, s := range w.Sessions {
			if s.Intensity == "hard" {
				plan.HardSessions++
			}
		}
		if h > peak {
			peak = h
			plan.PeakWeek = w.Week
		}
	}
	plan.TotalHours = round2(plan.TotalHours)
	if len(weeks) > 0 {
		plan.AvgPlannedHours = round2(plan.TotalHours / float64(len(weeks)))
	}
	return plan, nil
}
