package mcp

import (
	"context"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/episim/internal/models"
	"github.com/nvandessel/episim/internal/report"
	"github.com/nvandessel/episim/internal/store"
)

const (
	defaultRunLimit       = 20
	defaultInfectionLimit = 500
	maxInfectionLimit     = 10000
)

func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "episim_runs",
		Description: "List stored simulation runs with their seed, thread count, policy and status",
	}, s.handleRuns)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "episim_reports",
		Description: "Get the daily infection reports of a run (total or one district) with peak and final figures",
	}, s.handleReports)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "episim_infections",
		Description: "List infection events of a run, optionally for one day or one person",
	}, s.handleInfections)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "episim_restrictions",
		Description: "Get the restrictions in effect on each day of a run",
	}, s.handleRestrictions)
}

// resolveRun maps an empty id to the latest run.
func (s *Server) resolveRun(ctx context.Context, id string) (string, error) {
	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

func (s *Server) handleRuns(ctx context.Context, req *sdk.CallToolRequest, args RunsInput) (_ *sdk.CallToolResult, _ RunsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("episim_runs", start, retErr, map[string]any{"limit": args.Limit})
	}()
	if err := s.limiters.Check("episim_runs"); err != nil {
		return nil, RunsOutput{}, err
	}

	limit := args.Limit
	if limit <= 0 {
		limit = defaultRunLimit
	}
	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, RunsOutput{}, err
	}
	if runs == nil {
		runs = []store.Run{}
	}
	return nil, RunsOutput{Runs: runs, Count: len(runs)}, nil
}

func (s *Server) handleReports(ctx context.Context, req *sdk.CallToolRequest, args ReportsInput) (_ *sdk.CallToolResult, _ ReportsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("episim_reports", start, retErr, map[string]any{
			"run_id": args.RunID, "district": args.District, "from_day": args.FromDay, "to_day": args.ToDay,
		})
	}()
	if err := s.limiters.Check("episim_reports"); err != nil {
		return nil, ReportsOutput{}, err
	}

	runID, err := s.resolveRun(ctx, args.RunID)
	if err != nil {
		return nil, ReportsOutput{}, err
	}
	q := store.ReportQuery{RunID: runID, Name: args.District, FromDay: args.FromDay, ToDay: -1}
	if args.ToDay != nil {
		if *args.ToDay < args.FromDay {
			return nil, ReportsOutput{}, fmt.Errorf("to_day (%d) is before from_day (%d)", *args.ToDay, args.FromDay)
		}
		q.ToDay = *args.ToDay
	}
	reports, err := s.store.Reports(ctx, q)
	if err != nil {
		return nil, ReportsOutput{}, err
	}
	if len(reports) == 0 && args.District != "" {
		return nil, ReportsOutput{}, fmt.Errorf("run %s has no reports for district %q", runID, args.District)
	}
	if reports == nil {
		reports = []report.InfectionReport{}
	}

	name := args.District
	if name == "" {
		name = "total"
	}
	return nil, ReportsOutput{
		RunID:   runID,
		Name:    name,
		Reports: reports,
		Summary: report.Summarize(reports),
	}, nil
}

func (s *Server) handleInfections(ctx context.Context, req *sdk.CallToolRequest, args InfectionsInput) (_ *sdk.CallToolResult, _ InfectionsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("episim_infections", start, retErr, map[string]any{
			"run_id": args.RunID, "day": args.Day, "person": args.Person, "limit": args.Limit,
		})
	}()
	if err := s.limiters.Check("episim_infections"); err != nil {
		return nil, InfectionsOutput{}, err
	}

	runID, err := s.resolveRun(ctx, args.RunID)
	if err != nil {
		return nil, InfectionsOutput{}, err
	}
	limit := args.Limit
	if limit <= 0 {
		limit = defaultInfectionLimit
	}
	limit = min(limit, maxInfectionLimit)

	q := store.InfectionQuery{RunID: runID, Day: -1, Person: args.Person, Limit: limit + 1}
	if args.Day != nil {
		q.Day = *args.Day
	}
	events, err := s.store.Infections(ctx, q)
	if err != nil {
		return nil, InfectionsOutput{}, err
	}
	out := InfectionsOutput{RunID: runID, Infections: events}
	if len(events) > limit {
		out.Infections = events[:limit]
		out.Truncated = true
	}
	if out.Infections == nil {
		out.Infections = []models.InfectionEvent{}
	}
	out.Count = len(out.Infections)
	return nil, out, nil
}

func (s *Server) handleRestrictions(ctx context.Context, req *sdk.CallToolRequest, args RestrictionsInput) (_ *sdk.CallToolResult, _ RestrictionsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("episim_restrictions", start, retErr, map[string]any{
			"run_id": args.RunID, "activity": args.Activity, "changes": args.Changes,
		})
	}()
	if err := s.limiters.Check("episim_restrictions"); err != nil {
		return nil, RestrictionsOutput{}, err
	}

	runID, err := s.resolveRun(ctx, args.RunID)
	if err != nil {
		return nil, RestrictionsOutput{}, err
	}
	records, err := s.store.Restrictions(ctx, runID, args.Activity)
	if err != nil {
		return nil, RestrictionsOutput{}, err
	}
	if args.Changes {
		records = changesOnly(records)
	}
	if records == nil {
		records = []report.RestrictionRecord{}
	}
	return nil, RestrictionsOutput{RunID: runID, Restrictions: records, Count: len(records)}, nil
}

// changesOnly keeps the first record of each activity and every record
// that differs from the activity's previous one.
func changesOnly(records []report.RestrictionRecord) []report.RestrictionRecord {
	last := make(map[string]report.RestrictionRecord)
	var out []report.RestrictionRecord
	for _, r := range records {
		prev, seen := last[r.Activity]
		last[r.Activity] = r
		if seen && prev.RemainingFraction == r.RemainingFraction && prev.Exposure == r.Exposure &&
			prev.Mask == r.Mask && prev.MaskCompliance == r.MaskCompliance {
			continue
		}
		out = append(out, r)
	}
	return out
}
