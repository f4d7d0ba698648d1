package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/dusk-indust/pacer/internal/llm"
	"github.com/dusk-indust/pacer/internal/stages"
	"github.com/dusk-indust/pacer/internal/training"
)

// DemoProvider is an offline provider that drives the workflow's tools with
// fixed coaching rules. It needs no model and always terminates: every tool
// round is followed by a final answer.
type DemoProvider struct {
	// WeeklyHours is the plan's target volume. Zero means 6.
	WeeklyHours float64
}

// Compile-time interface check.
var _ llm.Provider = DemoProvider{}

// Send answers one turn of an analysis or planning session.
func (p DemoProvider) Send(ctx context.Context, s llm.Session) (llm.Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	offered := make(map[string]bool)
	for _, spec := range s.Tools() {
		offered[spec.Name] = true
	}
	turns := s.Transcript()

	switch {
	case offered[stages.ToolRecordFinding]:
		return p.analysis(turns), nil
	case offered[stages.ToolAddWeekDetail]:
		return p.planning(turns), nil
	}
	return final("Nothing to do."), nil
}

func (p DemoProvider) analysis(turns []llm.Turn) llm.Reply {
	summary, haveSummary := toolData[training.Summary](turns, stages.ToolGetSummary)
	if !haveSummary {
		return request(
			call(stages.ToolGetSummary, map[string]any{}),
			call(stages.ToolGetWeeklyLoad, map[string]any{"weeks": 4}),
		)
	}
	weeks, _ := toolData[[]training.WeekLoad](turns, stages.ToolGetWeeklyLoad)

	recorded := 0
	for _, t := range turns {
		if t.Role == llm.RoleTool && t.ToolName == stages.ToolRecordFinding && !t.IsError {
			recorded++
		}
	}
	if recorded == 0 {
		findings := demoFindings(summary, weeks)
		calls := make([]llm.ToolCall, len(findings))
		for i, f := range findings {
			calls[i] = call(stages.ToolRecordFinding, f)
		}
		return request(calls...)
	}

	return final(fmt.Sprintf(
		"Over the last %d days you logged %d sessions and %.1f h (%.1f h per week), mostly %s. "+
			"Acute:chronic load ratio is %.2f. %d findings recorded.",
		summary.Days, summary.Sessions, summary.TotalHours, summary.AvgWeeklyHours,
		orDefault(summary.PrimarySport, "mixed training"), summary.LoadRatio, recorded))
}

func demoFindings(s training.Summary, weeks []training.WeekLoad) []training.Finding {
	var out []training.Finding
	switch {
	case s.LoadRatio > 1.3:
		out = append(out, training.Finding{Category: "recovery", Severity: "warning",
			Summary: fmt.Sprintf("Last week's load is %.2f times the window average; ease off before adding volume.", s.LoadRatio)})
	case s.LoadRatio > 0 && s.LoadRatio < 0.8:
		out = append(out, training.Finding{Category: "volume", Severity: "info",
			Summary: fmt.Sprintf("Last week's load is %.2f of the window average.", s.LoadRatio)})
	}

	perWeek := 0.0
	if s.Days > 0 {
		perWeek = float64(s.Sessions) * 7 / float64(s.Days)
	}
	if perWeek < 3 {
		out = append(out, training.Finding{Category: "consistency", Severity: "warning",
			Summary: fmt.Sprintf("Only %.1f sessions per week on average.", perWeek)})
	} else {
		out = append(out, training.Finding{Category: "consistency", Severity: "info",
			Summary: fmt.Sprintf("%.1f sessions per week on average.", perWeek)})
	}

	if len(s.BySport) == 1 {
		out = append(out, training.Finding{Category: "balance", Severity: "info",
			Summary: fmt.Sprintf("All sessions are %s; some cross-training would spread the load.", s.PrimarySport)})
	}

	lo, hi := -1.0, 0.0
	for _, w := range weeks {
		if w.Load <= 0 {
			continue
		}
		if lo < 0 || w.Load < lo {
			lo = w.Load
		}
		hi = max(hi, w.Load)
	}
	if lo > 0 && hi > 1.5*lo {
		out = append(out, training.Finding{Category: "volume", Severity: "warning",
			Summary: fmt.Sprintf("Weekly load swings from %.0f to %.0f.", lo, hi)})
	}
	return out
}

var demoPhases = []string{"base", "build", "peak", "taper"}

func (p DemoProvider) planning(turns []llm.Turn) llm.Reply {
	if last := turns[len(turns)-1]; last.Role == llm.RoleTool {
		if last.IsError {
			return final("That call failed; moving on.")
		}
		return final("Recorded.")
	}

	users := 0
	for _, t := range turns {
		if t.Role == llm.RoleUser {
			users++
		}
	}
	created, ok := toolData[struct {
		PlanID string `json:"plan_id"`
		Weeks  int    `json:"weeks"`
	}](turns, stages.ToolCreateOverview)
	hours := p.WeeklyHours
	if hours <= 0 {
		hours = 6
	}

	if !ok || users <= 1 {
		return request(call(stages.ToolCreateOverview, map[string]any{
			"goal":         "progressive block towards the athlete's goal",
			"phases":       demoPhases,
			"weekly_hours": hours,
		}))
	}

	week := users - 1
	focus := weekFocus(week, created.Weeks)
	return request(call(stages.ToolAddWeekDetail, map[string]any{
		"plan_id":  created.PlanID,
		"week":     week,
		"focus":    focus,
		"sessions": weekSessions(focus, hours),
	}))
}

// weekFocus spreads the phases over the plan with a recovery week every
// fourth week.
func weekFocus(week, total int) string {
	if total <= 1 {
		return "build"
	}
	if week%4 == 0 && week != total {
		return "recovery"
	}
	if week == total {
		return "taper"
	}
	frac := float64(week-1) / float64(total-1)
	switch {
	case frac < 0.4:
		return "base"
	case frac < 0.8:
		return "build"
	default:
		return "peak"
	}
}

var focusScale = map[string]float64{
	"base": 0.9, "build": 1.0, "peak": 1.1, "taper": 0.6, "recovery": 0.6,
}

func weekSessions(focus string, hours float64) []training.Session {
	total := hours * 60 * focusScale[focus]
	key := "moderate"
	if focus == "build" || focus == "peak" {
		key = "hard"
	}
	minutes := func(share float64) int {
		return max(10, int(total*share))
	}
	return []training.Session{
		{Day: "tue", Minutes: minutes(0.25), Intensity: key, Description: "quality session"},
		{Day: "thu", Minutes: minutes(0.20), Intensity: "easy", Description: "aerobic"},
		{Day: "sat", Minutes: minutes(0.40), Intensity: "easy", Description: "long session"},
		{Day: "sun", Minutes: minutes(0.15), Intensity: "easy", Description: "recovery"},
	}
}

// toolData decodes the data of the last successful outcome of the named
// tool.
func toolData[T any](turns []llm.Turn, tool string) (T, bool) {
	var zero T
	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		if t.Role != llm.RoleTool || t.ToolName != tool || t.IsError {
			continue
		}
		var env struct {
			Data T `json:"data"`
		}
		if err := json.Unmarshal([]byte(t.Content), &env); err != nil {
			return zero, false
		}
		return env.Data, true
	}
	return zero, false
}

var demoCalls atomic.Int64

func call(name string, args any) llm.ToolCall {
	raw, _ := json.Marshal(args)
	id := fmt.Sprintf("demo-%s-%d", strings.ReplaceAll(name, "_", "-"), demoCalls.Add(1))
	return llm.ToolCall{ID: id, Name: name, Arguments: raw}
}

func request(calls ...llm.ToolCall) llm.Reply {
	return llm.ToolRequest{Calls: calls}
}

func final(text string) llm.Reply {
	return llm.FinalAnswer{Text: text}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
