package mcp

import (
	"github.com/nvandessel/episim/internal/models"
	"github.com/nvandessel/episim/internal/report"
	"github.com/nvandessel/episim/internal/store"
)

// RunsInput defines the input for the episim_runs tool.
type RunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of runs to return, newest first (default: 20)"`
}

// RunsOutput defines the output for the episim_runs tool.
type RunsOutput struct {
	Runs  []store.Run `json:"runs" jsonschema:"Stored runs, newest first"`
	Count int         `json:"count" jsonschema:"Number of runs returned"`
}

// ReportsInput defines the input for the episim_reports tool.
type ReportsInput struct {
	RunID    string `json:"run_id,omitempty" jsonschema:"Run ID (default: latest run)"`
	District string `json:"district,omitempty" jsonschema:"District name (default: total)"`
	FromDay  int    `json:"from_day,omitempty" jsonschema:"First day to include"`
	ToDay    *int   `json:"to_day,omitempty" jsonschema:"Last day to include (default: last day)"`
}

// ReportsOutput defines the output for the episim_reports tool.
type ReportsOutput struct {
	RunID   string                   `json:"run_id" jsonschema:"Run the reports belong to"`
	Name    string                   `json:"name" jsonschema:"Report name (total or district)"`
	Reports []report.InfectionReport `json:"reports" jsonschema:"Daily reports in day order"`
	Summary *report.Summary          `json:"summary,omitempty" jsonschema:"Peak and final figures of the selected days"`
}

// InfectionsInput defines the input for the episim_infections tool.
type InfectionsInput struct {
	RunID  string `json:"run_id,omitempty" jsonschema:"Run ID (default: latest run)"`
	Day    *int   `json:"day,omitempty" jsonschema:"Only infections of this day"`
	Person string `json:"person,omitempty" jsonschema:"Only infections where this person infected or was infected"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of events (default: 500)"`
}

// InfectionsOutput defines the output for the episim_infections tool.
type InfectionsOutput struct {
	RunID      string                  `json:"run_id"`
	Infections []models.InfectionEvent `json:"infections" jsonschema:"Infection events in the order they happened"`
	Count      int                     `json:"count"`
	Truncated  bool                    `json:"truncated" jsonschema:"Whether the limit cut the result"`
}

// RestrictionsInput defines the input for the episim_restrictions tool.
type RestrictionsInput struct {
	RunID    string `json:"run_id,omitempty" jsonschema:"Run ID (default: latest run)"`
	Activity string `json:"activity,omitempty" jsonschema:"Only this activity (default: all)"`
	Changes  bool   `json:"changes,omitempty" jsonschema:"Only days on which the restriction changed"`
}

// RestrictionsOutput defines the output for the episim_restrictions tool.
type RestrictionsOutput struct {
	RunID        string                     `json:"run_id"`
	Restrictions []report.RestrictionRecord `json:"restrictions"`
	Count        int                        `json:"count"`
}
