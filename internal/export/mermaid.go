package export

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dusk-indust/pacer/internal/training"
)

// GenerateGantt produces a Mermaid gantt chart of the plan starting on
// start. Consecutive weeks with the same focus share a section; failed
// weeks are marked critical.
func GenerateGantt(plan training.TrainingPlan, start time.Time) string {
	var sb strings.Builder
	sb.WriteString("gantt\n")
	sb.WriteString(fmt.Sprintf("  title %s\n", sanitize(planTitle(plan))))
	sb.WriteString("  dateFormat YYYY-MM-DD\n")
	sb.WriteString("  axisFormat %b %d\n")

	weeks := make(map[int]training.WeekDetail, len(plan.Weeks))
	last := 0
	for _, w := range plan.Weeks {
		weeks[w.Week] = w
		last = max(last, w.Week)
	}
	for _, f := range plan.FailedWeeks {
		last = max(last, f)
	}

	section := ""
	for n := 1; n <= last; n++ {
		begin := start.AddDate(0, 0, (n-1)*7).Format(time.DateOnly)
		w, ok := weeks[n]
		focus := w.Focus
		if !ok {
			if !slices.Contains(plan.FailedWeeks, n) {
				continue
			}
			focus = "missing"
		}
		if focus != section {
			section = focus
			sb.WriteString(fmt.Sprintf("  section %s\n", sanitize(section)))
		}
		if !ok {
			sb.WriteString(fmt.Sprintf("    Week %d (no detail) :crit, w%d, %s, 7d\n", n, n, begin))
			continue
		}
		sb.WriteString(fmt.Sprintf("    Week %d (%.1fh, %d sessions) :w%d, %s, 7d\n", n, w.Hours(), len(w.Sessions), n, begin))
	}
	return sb.String()
}

func planTitle(plan training.TrainingPlan) string {
	if plan.Goal == "" {
		return "Training plan"
	}
	return "Training plan: " + plan.Goal
}

// sanitize strips characters that end a Mermaid statement.
func sanitize(s string) string {
	return strings.NewReplacer(":", " ", ";", " ", "#", "", "\n", " ").Replace(s)
}
