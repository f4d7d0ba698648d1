// Package export renders workflow output into files a person or another
// tool can read: JSON documents, a Markdown report and a Mermaid Gantt chart.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dusk-indust/pacer/internal/training"
)

// Artifact file names inside the output directory.
const (
	WorkflowResultFile = "workflow_result.json"
	PlanFile           = "training_plan.json"
	ReportFile         = "report.md"
	GanttFile          = "training_plan.mmd"
)

// PlanExport is the JSON document written for a finalized plan.
type PlanExport struct {
	ExportedAt string                `json:"exportedAt"`
	StartDate  string                `json:"startDate"`
	Athlete    string                `json:"athlete"`
	Sport      string                `json:"sport,omitempty"`
	Plan       training.TrainingPlan `json:"plan"`
}

// ExportPlan builds a PlanExport for the plan starting on start.
func ExportPlan(profile training.AthleteProfile, plan training.TrainingPlan, start time.Time) *PlanExport {
	return &PlanExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		StartDate:  start.Format(time.DateOnly),
		Athlete:    profile.Name,
		Sport:      profile.PrimarySport,
		Plan:       plan,
	}
}

// WriteJSON writes v as indented JSON, creating parent directories.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("export: encode %s: %w", filepath.Base(path), err)
	}
	return WriteFile(path, append(data, '\n'))
}

// WriteFile writes data, creating parent directories.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export: create dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	return nil
}

// PlanStart returns the Monday after the last analysed day. A zero time
// falls back to the Monday after today.
func PlanStart(lastDay time.Time) time.Time {
	if lastDay.IsZero() {
		lastDay = time.Now().UTC()
	}
	d := time.Date(lastDay.Year(), lastDay.Month(), lastDay.Day(), 0, 0, 0, 0, time.UTC)
	offset := (8 - int(d.Weekday())) % 7
	if offset == 0 {
		offset = 7
	}
	return d.AddDate(0, 0, offset)
}
