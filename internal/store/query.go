package store

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/nvandessel/episim/internal/constants"
	"github.com/nvandessel/episim/internal/models"
	"github.com/nvandessel/episim/internal/report"
)

// ReportQuery selects daily reports of one run.
type ReportQuery struct {
	RunID string
	// Name is "total" when empty.
	Name string
	// FromDay and ToDay bound the day range; ToDay < 0 means no bound.
	FromDay, ToDay int
}

// InfectionQuery selects infection events of one run.
type InfectionQuery struct {
	RunID string
	// Day selects a single day when >= 0.
	Day int
	// Person matches events where the person infected or was infected.
	Person string
	// Limit caps the result when > 0.
	Limit int
}

// where collects conditions and arguments of a query.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// Reports returns the matching reports in day order.
func (s *SQLiteStore) Reports(ctx context.Context, q ReportQuery) ([]report.InfectionReport, error) {
	name := q.Name
	if name == "" {
		name = constants.TotalReportKey
	}
	var w where
	w.add("run_id = ?", q.RunID)
	w.add("name = ?", name)
	w.add("day >= ?", q.FromDay)
	if q.ToDay >= 0 {
		w.add("day <= ?", q.ToDay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT day, date, name, n_population, n_susceptible, n_infected_but_not_contagious,
			n_contagious, n_seriously_sick, n_critical, n_recovered, n_in_quarantine_full,
			n_in_quarantine_home, n_infected_cumulative, n_symptomatic_cumulative
		FROM reports`+w.String()+` ORDER BY day`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var out []report.InfectionReport
	for rows.Next() {
		var r report.InfectionReport
		if err := rows.Scan(&r.Day, &r.Date, &r.Name, &r.NPopulation, &r.NSusceptible,
			&r.NInfectedButNotContagious, &r.NContagious, &r.NSeriouslySick, &r.NCritical,
			&r.NRecovered, &r.NInQuarantineFull, &r.NInQuarantineHome, &r.NInfectedCumulative,
			&r.NSymptomaticCumulative); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Districts returns the report names of a run other than "total".
func (s *SQLiteStore) Districts(ctx context.Context, runID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT name FROM reports WHERE run_id = ? AND name != ? ORDER BY name`,
		runID, constants.TotalReportKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query districts: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Infections returns the matching infection events in recording order.
func (s *SQLiteStore) Infections(ctx context.Context, q InfectionQuery) ([]models.InfectionEvent, error) {
	var w where
	w.add("run_id = ?", q.RunID)
	if q.Day >= 0 {
		w.add("day = ?", q.Day)
	}
	if q.Person != "" {
		w.add("(infected = ? OR infector = ?)", q.Person, q.Person)
	}
	query := `SELECT day, time, infector, infected, container, activity, strain FROM infections` +
		w.String() + ` ORDER BY seq`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		w.args = append(w.args, q.Limit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query infections: %w", err)
	}
	defer rows.Close()

	var out []models.InfectionEvent
	for rows.Next() {
		var ev models.InfectionEvent
		var infector, container, activity, strain sql.NullString
		if err := rows.Scan(&ev.Day, &ev.Time, &infector, &ev.Infected, &container, &activity, &strain); err != nil {
			return nil, fmt.Errorf("failed to scan infection: %w", err)
		}
		ev.Infector, ev.Container, ev.Activity = infector.String, container.String, activity.String
		ev.Strain = models.Strain(strain.String)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Restrictions returns the restriction snapshots of a run in day order.
// An empty activity returns all activities.
func (s *SQLiteStore) Restrictions(ctx context.Context, runID, activity string) ([]report.RestrictionRecord, error) {
	var w where
	w.add("run_id = ?", runID)
	if activity != "" {
		w.add("activity = ?", activity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT day, date, activity, fraction, exposure, mask, compliance
		FROM restrictions`+w.String()+` ORDER BY day, activity`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query restrictions: %w", err)
	}
	defer rows.Close()

	var out []report.RestrictionRecord
	for rows.Next() {
		var r report.RestrictionRecord
		if err := rows.Scan(&r.Day, &r.Date, &r.Activity, &r.RemainingFraction,
			&r.Exposure, &r.Mask, &r.MaskCompliance); err != nil {
			return nil, fmt.Errorf("failed to scan restriction: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Export replays the stored output of a run into sink.
func (s *SQLiteStore) Export(ctx context.Context, runID string, sink report.Sink) error {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return err
	}
	infections, err := s.Infections(ctx, InfectionQuery{RunID: runID, Day: -1})
	if err != nil {
		return err
	}
	if err := sink.RecordInfections(ctx, infections); err != nil {
		return err
	}

	var reports []report.InfectionReport
	districts, err := s.Districts(ctx, runID)
	if err != nil {
		return err
	}
	for _, name := range append([]string{constants.TotalReportKey}, districts...) {
		rs, err := s.Reports(ctx, ReportQuery{RunID: runID, Name: name, ToDay: -1})
		if err != nil {
			return err
		}
		reports = append(reports, rs...)
	}
	slices.SortStableFunc(reports, func(a, b report.InfectionReport) int { return cmp.Compare(a.Day, b.Day) })
	if err := sink.RecordReports(ctx, reports); err != nil {
		return err
	}

	restrictions, err := s.Restrictions(ctx, runID, "")
	if err != nil {
		return err
	}
	return sink.RecordRestrictions(ctx, restrictions)
}
