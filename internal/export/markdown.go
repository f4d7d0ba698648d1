package export

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/dusk-indust/pacer/internal/training"
)

// ReportInput is everything the Markdown report renders.
type ReportInput struct {
	GeneratedAt time.Time
	Profile     training.AthleteProfile
	Summary     training.Summary
	WeeklyLoad  []training.WeekLoad
	Analysis    string
	Findings    []training.Finding
	Plan        *training.TrainingPlan
	PlanStart   time.Time
}

var severityOrder = map[string]int{"critical": 0, "warning": 1, "info": 2}

// RenderReport renders the full training report.
func RenderReport(in ReportInput) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Training report: %s\n\n", in.Profile.Name))
	if !in.GeneratedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("_Generated %s_\n\n", in.GeneratedAt.UTC().Format(time.RFC3339)))
	}
	sb.WriteString(fmt.Sprintf("- **Goal:** %s\n", in.Profile.Goal))
	if in.Profile.GoalDate != "" {
		sb.WriteString(fmt.Sprintf("- **Goal date:** %s\n", in.Profile.GoalDate))
	}
	sb.WriteString(fmt.Sprintf("- **Level:** %s\n", in.Profile.Level))
	if in.Profile.PrimarySport != "" {
		sb.WriteString(fmt.Sprintf("- **Primary sport:** %s\n", in.Profile.PrimarySport))
	}

	s := in.Summary
	sb.WriteString(fmt.Sprintf("\n## Last %d days\n\n", s.Days))
	sb.WriteString("| Metric | Value |\n|---|---|\n")
	sb.WriteString(fmt.Sprintf("| Sessions | %d |\n", s.Sessions))
	sb.WriteString(fmt.Sprintf("| Hours | %.2f |\n", s.TotalHours))
	sb.WriteString(fmt.Sprintf("| Distance (km) | %.2f |\n", s.TotalDistanceKm))
	sb.WriteString(fmt.Sprintf("| Avg weekly hours | %.2f |\n", s.AvgWeeklyHours))
	sb.WriteString(fmt.Sprintf("| Acute:chronic load | %.2f |\n", s.LoadRatio))

	if len(s.BySport) > 0 {
		sb.WriteString("\n| Sport | Sessions | Hours | Km |\n|---|---|---|---|\n")
		for _, sport := range slices.Sorted(maps.Keys(s.BySport)) {
			sp := s.BySport[sport]
			sb.WriteString(fmt.Sprintf("| %s | %d | %.2f | %.2f |\n", sport, sp.Sessions, sp.Hours, sp.DistanceKm))
		}
	}

	if len(in.WeeklyLoad) > 0 {
		sb.WriteString("\n### Weekly load\n\n| Week | Start | Sessions | Hours | Load |\n|---|---|---|---|---|\n")
		for _, w := range in.WeeklyLoad {
			sb.WriteString(fmt.Sprintf("| %d | %s | %d | %.2f | %.0f |\n", w.Week, w.Start.Format(time.DateOnly), w.Sessions, w.Hours, w.Load))
		}
	}

	sb.WriteString("\n## Analysis\n\n")
	if strings.TrimSpace(in.Analysis) == "" {
		sb.WriteString("_No analysis was produced._\n")
	} else {
		sb.WriteString(strings.TrimSpace(in.Analysis) + "\n")
	}

	if len(in.Findings) > 0 {
		sb.WriteString("\n### Findings\n\n")
		findings := slices.Clone(in.Findings)
		slices.SortStableFunc(findings, func(a, b training.Finding) int {
			return severityOrder[a.Severity] - severityOrder[b.Severity]
		})
		for _, f := range findings {
			sb.WriteString(fmt.Sprintf("- **%s** (%s): %s\n", strings.ToUpper(f.Severity), f.Category, f.Summary))
		}
	}

	if in.Plan != nil {
		writePlan(&sb, *in.Plan, in.PlanStart)
	}
	return sb.String()
}

func writePlan(sb *strings.Builder, p training.TrainingPlan, start time.Time) {
	sb.WriteString("\n## Plan\n\n")
	sb.WriteString(fmt.Sprintf("- **Plan ID:** %s\n", p.ID))
	if len(p.Phases) > 0 {
		sb.WriteString(fmt.Sprintf("- **Phases:** %s\n", strings.Join(p.Phases, " → ")))
	}
	sb.WriteString(fmt.Sprintf("- **Target weekly hours:** %.1f\n", p.WeeklyHours))
	sb.WriteString(fmt.Sprintf("- **Planned:** %.1f h over %d sessions (%d hard)\n", p.TotalHours, p.TotalSessions, p.HardSessions))
	if len(p.FailedWeeks) > 0 {
		weeks := make([]string, len(p.FailedWeeks))
		for i, w := range p.FailedWeeks {
			weeks[i] = fmt.Sprint(w)
		}
		sb.WriteString(fmt.Sprintf("- **Weeks without detail:** %s\n", strings.Join(weeks, ", ")))
	}

	for _, w := range p.Weeks {
		label := fmt.Sprintf("Week %d", w.Week)
		if !start.IsZero() {
			label += " (" + start.AddDate(0, 0, (w.Week-1)*7).Format("Jan 2") + ")"
		}
		sb.WriteString(fmt.Sprintf("\n### %s: %s, %.1f h\n\n", label, w.Focus, w.Hours()))
		if len(w.Sessions) == 0 {
			sb.WriteString("_Rest week._\n")
			continue
		}
		sb.WriteString("| Day | Sport | Minutes | Intensity | Notes |\n|---|---|---|---|---|\n")
		for _, s := range w.Sessions {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %s | %s |\n", s.Day, s.Sport, s.Minutes, s.Intensity, s.Description))
		}
	}
}
