package simulation

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvandessel/episim/internal/config"
	"github.com/nvandessel/episim/internal/models"
	"github.com/nvandessel/episim/internal/replay"
	"github.com/nvandessel/episim/internal/report"
	"github.com/nvandessel/episim/internal/store"
)

// Runner orchestrates simulation experiments against a real run store.
type Runner struct {
	t     *testing.T
	store *store.SQLiteStore
}

// NewRunner creates a simulation runner with an isolated SQLite store
// and sandboxed HOME directory.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	s, err := store.Open(filepath.Join(tmpDir, "runs.db"))
	if err != nil {
		t.Fatalf("NewRunner: failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return &Runner{t: t, store: s}
}

// DefaultConfig returns a small, fast configuration: home, work, leisure
// and bus contacts, 30 days, 3 initial infections.
func DefaultConfig(t *testing.T) *config.EpisimConfig {
	t.Helper()
	cfg, err := config.NewBuilder().
		Seed(4711).
		Threads(2).
		Iterations(30).
		StartDate(time.Date(2020, time.March, 2, 0, 0, 0, 0, time.UTC)).
		InitialInfections(3).
		Calibration(2e-5).
		Intensities(map[string]float64{"home": 1, "work": 1, "leisure": 2, "pt": 1}).
		Build()
	if err != nil {
		t.Fatalf("DefaultConfig: %v", err)
	}
	return cfg
}

// Run executes the scenario and returns the collected results.
func (r *Runner) Run(scenario Scenario) SimulationResult {
	r.t.Helper()
	res, err := r.RunE(context.Background(), scenario)
	if err != nil {
		r.t.Fatalf("Run(%s): %v", scenario.Name, err)
	}
	return res
}

// RunE is Run for scenarios that are expected to fail. The run is stored
// either way.
func (r *Runner) RunE(ctx context.Context, scenario Scenario) (SimulationResult, error) {
	r.t.Helper()
	cfg := scenario.Config
	if cfg == nil {
		cfg = DefaultConfig(r.t)
	}

	// Phase 1: Build the run.
	rcfg, err := cfg.ReplayConfig()
	if err != nil {
		return SimulationResult{}, err
	}
	pol, err := cfg.NewPolicy(nil)
	if err != nil {
		return SimulationResult{}, err
	}
	weekdays := make(map[time.Weekday][]models.Event, len(scenario.Weekdays))
	for d, town := range scenario.Weekdays {
		weekdays[d] = town.Events()
	}
	schedule := replay.NewSchedule(scenario.Town.Events(), weekdays)

	raw, err := cfg.Marshal()
	if err != nil {
		return SimulationResult{}, err
	}
	runID, err := r.store.CreateRun(ctx, store.Run{
		Name:       scenario.Name,
		Seed:       rcfg.Seed,
		Threads:    rcfg.Threads,
		Iterations: rcfg.Iterations,
		StartDate:  cfg.Simulation.StartDate,
		Policy:     string(cfg.Policy.Kind),
		Config:     string(raw),
	})
	if err != nil {
		return SimulationResult{}, err
	}

	// Phase 2: Replay.
	runner, err := replay.New(rcfg, schedule, pol,
		replay.WithSink(r.store.Recorder(runID)),
		replay.WithAttributes(scenario.Town.Attributes()))
	var out *replay.Result
	if err == nil {
		out, err = runner.Run(ctx)
	}
	if ferr := r.store.FinishRun(context.WithoutCancel(ctx), runID, err); ferr != nil {
		err = errors.Join(err, ferr)
	}
	if err != nil {
		return SimulationResult{RunID: runID, Store: r.store}, err
	}

	// Phase 3: Read every day back.
	res, err := r.collect(ctx, runID)
	if err != nil {
		return SimulationResult{}, err
	}
	res.Iterations = out.Iterations
	res.Finished = out.Finished
	res.Infections = out.Infections
	return res, nil
}

func (r *Runner) collect(ctx context.Context, runID string) (SimulationResult, error) {
	run, err := r.store.GetRun(ctx, runID)
	if err != nil {
		return SimulationResult{}, err
	}
	totals, err := r.store.Reports(ctx, store.ReportQuery{RunID: runID, ToDay: -1})
	if err != nil {
		return SimulationResult{}, err
	}
	days := make([]DayResult, len(totals))
	for i, t := range totals {
		days[i] = DayResult{
			Day:          t.Day,
			Total:        t,
			Districts:    map[string]report.InfectionReport{},
			Restrictions: map[string]report.RestrictionRecord{},
		}
	}
	byDay := func(day int) *DayResult {
		if day < 0 || day >= len(days) {
			return nil
		}
		return &days[day]
	}

	districts, err := r.store.Districts(ctx, runID)
	if err != nil {
		return SimulationResult{}, err
	}
	for _, name := range districts {
		reports, err := r.store.Reports(ctx, store.ReportQuery{RunID: runID, Name: name, ToDay: -1})
		if err != nil {
			return SimulationResult{}, err
		}
		for _, rep := range reports {
			if d := byDay(rep.Day); d != nil {
				d.Districts[name] = rep
			}
		}
	}

	events, err := r.store.Infections(ctx, store.InfectionQuery{RunID: runID, Day: -1})
	if err != nil {
		return SimulationResult{}, err
	}
	for _, ev := range events {
		if d := byDay(ev.Day); d != nil {
			d.Infections = append(d.Infections, ev)
		}
	}

	records, err := r.store.Restrictions(ctx, runID, "")
	if err != nil {
		return SimulationResult{}, err
	}
	for _, rec := range records {
		if d := byDay(rec.Day); d != nil {
			d.Restrictions[rec.Activity] = rec
		}
	}

	return SimulationResult{RunID: runID, Run: run, Days: days, Store: r.store}, nil
}
