package mcptools

import "github.com/dusk-indust/pacer/internal/runstore"

// RunWorkflowInput is the input for the run_workflow MCP tool. Zero values
// take the configuration defaults.
type RunWorkflowInput struct {
	ActivityFiles   []string `json:"activityFiles,omitempty" jsonschema:"JSON activity exports to analyze"`
	ActivityDir     string   `json:"activityDir,omitempty" jsonschema:"directory scanned for *.json activity exports"`
	ProfilePath     string   `json:"profilePath,omitempty" jsonschema:"athlete profile (YAML)"`
	OutputDir       string   `json:"outputDir" jsonschema:"directory receiving the cache and artifacts"`
	AnalysisDays    int      `json:"analysisDays,omitempty" jsonschema:"look-back window in days (7-365)"`
	PlanWeeks       int      `json:"planWeeks,omitempty" jsonschema:"number of weeks to plan (1-52)"`
	SkipPlan        bool     `json:"skipPlan,omitempty" jsonschema:"run preparation and analysis only"`
	SkipPreparation bool     `json:"skipPreparation,omitempty" jsonschema:"reuse the cached preparation when present"`
}

// RunWorkflowOutput is the result of the run_workflow MCP tool.
type RunWorkflowOutput struct {
	RunID     string         `json:"runId"`
	State     runstore.State `json:"state"`
	Success   bool           `json:"success"`
	Artifacts []string       `json:"artifacts"`
	Message   string         `json:"message,omitempty"`
}

// GetRunInput is the input for the get_run MCP tool.
type GetRunInput struct {
	RunID string `json:"runId" jsonschema:"run identifier returned by run_workflow"`
}

// GetRunOutput is the result of the get_run MCP tool. Result is the
// serialized workflow result; it is absent for rejected runs.
type GetRunOutput struct {
	RunID      string         `json:"runId"`
	State      runstore.State `json:"state"`
	OutputDir  string         `json:"outputDir"`
	StartedAt  string         `json:"startedAt"`
	FinishedAt string         `json:"finishedAt,omitempty"`
	Error      string         `json:"error,omitempty"`
	Result     map[string]any `json:"result,omitempty"`
}

// ListRunsInput is the input for the list_runs MCP tool.
type ListRunsInput struct {
	State     string `json:"state,omitempty" jsonschema:"filter by state: running, succeeded, failed or rejected"`
	PageToken string `json:"pageToken,omitempty" jsonschema:"nextPageToken of the previous page"`
	PageSize  int    `json:"pageSize,omitempty" jsonschema:"maximum runs per page (0 for all)"`
}

// ListRunsOutput is the result of the list_runs MCP tool.
type ListRunsOutput struct {
	Runs          []RunSummary `json:"runs"`
	TotalSize     int          `json:"totalSize"`
	NextPageToken string       `json:"nextPageToken,omitempty"`
}

// RunSummary is a brief overview of one run.
type RunSummary struct {
	RunID     string         `json:"runId"`
	State     runstore.State `json:"state"`
	OutputDir string         `json:"outputDir"`
	StartedAt string         `json:"startedAt"`
}
