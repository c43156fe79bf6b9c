package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nvandessel/episim/internal/models"
	"github.com/nvandessel/episim/internal/report"
)

// Recorder writes the output of one run. It implements report.Sink.
type Recorder struct {
	s     *SQLiteStore
	runID string
	seq   int64
}

var _ report.Sink = (*Recorder)(nil)

// Recorder returns a sink writing into the given run.
func (s *SQLiteStore) Recorder(runID string) *Recorder {
	return &Recorder{s: s, runID: runID}
}

// RunID returns the run written to.
func (r *Recorder) RunID() string {
	return r.runID
}

// insertAll runs one prepared statement per item inside a transaction.
func insertAll[T any](ctx context.Context, s *SQLiteStore, query string, items []T, args func(T) []any) error {
	if len(items) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		if _, err := stmt.ExecContext(ctx, args(item)...); err != nil {
			return fmt.Errorf("failed to insert row: %w", err)
		}
	}
	return tx.Commit()
}

// RecordInfections stores infection events in the order given.
func (r *Recorder) RecordInfections(ctx context.Context, events []models.InfectionEvent) error {
	seq := r.seq
	err := insertAll(ctx, r.s, `
		INSERT INTO infections (run_id, seq, day, time, infector, infected, container, activity, strain)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		events, func(ev models.InfectionEvent) []any {
			seq++
			return []any{r.runID, seq, ev.Day, ev.Time, nullString(ev.Infector), ev.Infected,
				nullString(ev.Container), nullString(ev.Activity), string(ev.Strain)}
		})
	if err != nil {
		return fmt.Errorf("recording infections of run %s: %w", r.runID, err)
	}
	r.seq = seq
	return nil
}

// RecordReports stores daily reports.
func (r *Recorder) RecordReports(ctx context.Context, reports []report.InfectionReport) error {
	err := insertAll(ctx, r.s, `
		INSERT INTO reports (run_id, day, date, name, n_population, n_susceptible,
			n_infected_but_not_contagious, n_contagious, n_seriously_sick, n_critical, n_recovered,
			n_in_quarantine_full, n_in_quarantine_home, n_infected_cumulative, n_symptomatic_cumulative)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reports, func(rep report.InfectionReport) []any {
			return []any{r.runID, rep.Day, rep.Date, rep.Name, rep.NPopulation, rep.NSusceptible,
				rep.NInfectedButNotContagious, rep.NContagious, rep.NSeriouslySick, rep.NCritical, rep.NRecovered,
				rep.NInQuarantineFull, rep.NInQuarantineHome, rep.NInfectedCumulative, rep.NSymptomaticCumulative}
		})
	if err != nil {
		return fmt.Errorf("recording reports of run %s: %w", r.runID, err)
	}
	return nil
}

// RecordRestrictions stores a restriction snapshot.
func (r *Recorder) RecordRestrictions(ctx context.Context, records []report.RestrictionRecord) error {
	err := insertAll(ctx, r.s, `
		INSERT INTO restrictions (run_id, day, date, activity, fraction, exposure, mask, compliance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		records, func(rec report.RestrictionRecord) []any {
			return []any{r.runID, rec.Day, rec.Date, rec.Activity, rec.RemainingFraction,
				rec.Exposure, rec.Mask, rec.MaskCompliance}
		})
	if err != nil {
		return fmt.Errorf("recording restrictions of run %s: %w", r.runID, err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
