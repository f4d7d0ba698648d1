package stages

// Prompt template names. Analysis and planning seed their sessions with the
// template named after the stage; the planning sub-steps add user turns.
const (
	PromptAnalysis         = Analysis
	PromptPlanning         = Planning
	PromptPlanningOverview = "planning_overview"
	PromptPlanningWeek     = "planning_week"
)

// DefaultPrompts returns the built-in templates. Custom prompt files override
// them by name.
func DefaultPrompts() map[string]string {
	return map[string]string{
		PromptAnalysis: `You are an endurance coach reviewing the last {{.days}} days of training for {{.profile.Name}}.
Athlete level: {{.profile.Level}}. Goal: {{.profile.Goal}}.

Training summary:
{{json .summary}}

Inspect the data with get_training_summary and get_weekly_load. Record every notable
observation with record_finding (category: volume, intensity, consistency, recovery or
balance; severity: info, warning or critical). When you are done, reply with a concise
written analysis and no tool calls.`,

		PromptPlanning: `You are an endurance coach writing a {{.weeks}}-week training plan for {{.profile.Name}}.
Athlete level: {{.profile.Level}}. Primary sport: {{.profile.PrimarySport}}. Goal: {{.profile.Goal}}.
{{- if .profile.RestDays}}
Rest days: {{join .profile.RestDays ", "}}.
{{- end}}

Analysis of recent training:
{{.report}}
{{- if .findings}}

Findings:
{{json .findings}}
{{- end}}

You will be asked for the plan overview first and then for each week in turn.`,

		PromptPlanningOverview: `Call create_plan_overview exactly once with the plan goal, the ordered phases and the
target weekly hours for the {{.weeks}}-week plan. Reply briefly once it succeeds.`,

		PromptPlanningWeek: `Detail week {{.week}} of {{.weeks}} for plan {{.plan_id}}. Call add_week_detail once with
plan_id "{{.plan_id}}", week {{.week}}, the week's focus and its sessions. Reply briefly once it succeeds.`,
	}
}
