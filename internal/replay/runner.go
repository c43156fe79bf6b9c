// Package replay runs the day-by-day simulation: it replays the weekly
// movement plan, lets the contact model transmit infections on every
// departure, advances disease progression and emits daily reports.
//
// Within a day, containers are sharded across workers by a hash of their
// id. Each worker replays the full day's stream, skipping events of
// containers it does not own, and stages every change to persons. A
// barrier merges the staged changes before the sequential end-of-day
// phase, so runs with the same seed and worker count are reproducible.
package replay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/nvandessel/episim/internal/constants"
	"github.com/nvandessel/episim/internal/contact"
	"github.com/nvandessel/episim/internal/container"
	"github.com/nvandessel/episim/internal/logging"
	"github.com/nvandessel/episim/internal/models"
	"github.com/nvandessel/episim/internal/policy"
	"github.com/nvandessel/episim/internal/progression"
	"github.com/nvandessel/episim/internal/report"
)

// Config holds the run parameters.
type Config struct {
	Seed              uint64
	Threads           int
	Iterations        int
	StartDate         time.Time
	InitialInfections int
	StopWhenFinished  bool
	Contact           contact.Params
	Progression       progression.Config
}

// Validate checks the run parameters.
func (c Config) Validate() error {
	if c.Threads < 1 {
		return fmt.Errorf("threads must be at least 1, got %d", c.Threads)
	}
	if c.Iterations < 0 {
		return fmt.Errorf("iterations must be non-negative, got %d", c.Iterations)
	}
	if c.InitialInfections < 0 {
		return fmt.Errorf("initial infections must be non-negative, got %d", c.InitialInfections)
	}
	if c.StartDate.IsZero() {
		return fmt.Errorf("start date is required")
	}
	if err := c.Contact.Validate(); err != nil {
		return err
	}
	return c.Progression.Validate()
}

// Result summarizes a completed run.
type Result struct {
	// Iterations is the last completed iteration.
	Iterations int
	// Finished is set when the run stopped early because nothing could
	// change anymore.
	Finished bool
	// Final is the "total" report of the last completed iteration.
	Final report.InfectionReport
	// Infections counts transmissions, seeds excluded.
	Infections int
}

// Runner owns one simulation run.
type Runner struct {
	cfg    Config
	policy policy.Policy
	sink   report.Sink
	logger *slog.Logger

	world        *world
	schedule     *Schedule
	restrictions policy.Restrictions
	contact      *contact.Model
	progression  *progression.Engine

	infections int
}

// Option customizes a Runner.
type Option func(*runnerOptions)

type runnerOptions struct {
	sink       report.Sink
	logger     *slog.Logger
	attributes map[string]models.Attributes
	immunity   contact.ImmunityModel
}

// WithSink sets where output is written. The default discards it.
func WithSink(s report.Sink) Option {
	return func(o *runnerOptions) { o.sink = s }
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *runnerOptions) { o.logger = l }
}

// WithAttributes provides person attributes keyed by person id.
func WithAttributes(a map[string]models.Attributes) Option {
	return func(o *runnerOptions) { o.attributes = a }
}

// WithImmunity replaces the default immunity model.
func WithImmunity(im contact.ImmunityModel) Option {
	return func(o *runnerOptions) { o.immunity = im }
}

// New validates the configuration, interns the schedule and resolves every
// activity. All configuration errors surface here, before the first day.
func New(cfg Config, schedule *Schedule, pol policy.Policy, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConfig, err)
	}
	if err := schedule.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConfig, err)
	}
	o := runnerOptions{
		sink:     report.NewMemory(),
		logger:   logging.NewLogger("info", io.Discard),
		immunity: contact.NoImmunity{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if pol == nil {
		pol = policy.NewFixed(nil, nil)
	}

	w := newWorld()
	first := schedule.StreamIndex(dayDate(cfg.StartDate, 0).Weekday())
	if err := w.intern(schedule, first, cfg.Threads, o.attributes); err != nil {
		return nil, err
	}
	if len(w.persons) < cfg.InitialInfections {
		return nil, fmt.Errorf("%w: %d initial infections requested but only %d persons",
			models.ErrConfig, cfg.InitialInfections, len(w.persons))
	}

	restrictions := policy.NewRestrictions(sortedNames(cfg.Contact.Intensities)...)
	model, err := contact.NewModel(cfg.Contact, w.activityIDs.Names(), restrictions, contact.WithImmunity(o.immunity))
	if err != nil {
		return nil, err
	}
	if w.vehicles {
		if err := model.RequireVehicles(); err != nil {
			return nil, err
		}
	}

	return &Runner{
		cfg:          cfg,
		policy:       pol,
		sink:         o.sink,
		logger:       o.logger,
		world:        w,
		schedule:     schedule,
		restrictions: restrictions,
		contact:      model,
		progression:  progression.NewEngine(cfg.Progression),
	}, nil
}

// Persons returns the population in arena order.
func (r *Runner) Persons() []*models.Person {
	return r.world.persons
}

// Containers returns all facilities and vehicles.
func (r *Runner) Containers() []*container.Container {
	return r.world.containers
}

// Restrictions returns the live restriction table.
func (r *Runner) Restrictions() policy.Restrictions {
	return r.restrictions
}

// Occupancy returns container additions, removals and current occupants.
func (r *Runner) Occupancy() (adds, removes, occupants int64) {
	return r.world.occupancy()
}

// Run executes the bootstrap iteration and then iterations 1..Iterations.
// Cancellation is honored between iterations only.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	r.logger.Info("simulation starting",
		"persons", len(r.world.persons),
		"containers", len(r.world.containers),
		"threads", r.cfg.Threads,
		"iterations", r.cfg.Iterations,
		"seed", r.cfg.Seed)

	prev, err := r.bootstrap(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	res := &Result{Final: prev}

	for it := 1; it <= r.cfg.Iterations; it++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		total, err := r.iterate(ctx, it, prev)
		if err != nil {
			return res, fmt.Errorf("iteration %d: %w", it, err)
		}
		prev = total
		res.Iterations = it
		res.Final = total
		res.Infections = r.infections

		if r.cfg.StopWhenFinished && total.Finished() {
			res.Finished = true
			r.logger.Info("epidemic finished", "day", it)
			break
		}
	}

	r.logger.Info("simulation complete",
		"iterations", res.Iterations,
		"infections", res.Infections,
		"recovered", res.Final.NRecovered)
	return res, nil
}

// bootstrap runs iteration 0: it records trajectories, replays the first
// day without transmission, seeds infections and initializes the policy.
func (r *Runner) bootstrap(ctx context.Context) (report.InfectionReport, error) {
	w := r.world
	w.recordTrajectories()

	stream := r.streamOf(0)
	for _, p := range w.persons {
		step, ok := p.Trajectory.Start(stream)
		if !ok {
			continue
		}
		if err := w.containers[step.Container].AddPerson(p, container.UnknownEntry, step.Activity); err != nil {
			return report.InfectionReport{}, err
		}
	}

	s := r.contact.NewSession(0, 0, newStream(r.cfg.Seed, 0, 0))
	if err := r.replayShard(s, 0, stream, -1); err != nil {
		return report.InfectionReport{}, err
	}
	contact.Commit(0, s)
	if err := w.audit(); err != nil {
		return report.InfectionReport{}, err
	}

	var seeds []models.InfectionEvent
	for _, p := range w.persons[:r.cfg.InitialInfections] {
		p.Infect(0, models.StrainWildType)
		seeds = append(seeds, models.InfectionEvent{Day: 0, Infected: p.Name, Strain: models.StrainWildType})
	}
	for _, p := range w.persons {
		p.ResetTimeSpent()
	}

	if aware, ok := r.policy.(policy.BaselineAware); ok {
		aware.SetBaseline(r.baseline())
	}
	if init, ok := r.policy.(policy.Initializer); ok {
		if err := init.Init(r.cfg.StartDate, r.restrictions); err != nil {
			return report.InfectionReport{}, err
		}
	}

	return r.finishDay(ctx, 0, seeds)
}

// iterate runs one simulated day.
func (r *Runner) iterate(ctx context.Context, it int, prev report.InfectionReport) (report.InfectionReport, error) {
	stream := r.streamOf(it)

	events, err := r.crossBoundary(it, stream)
	if err != nil {
		return report.InfectionReport{}, err
	}

	if err := r.policy.UpdateRestrictions(prev, r.restrictions); err != nil {
		return report.InfectionReport{}, fmt.Errorf("policy: %w", err)
	}

	dayEvents, err := r.replayDay(it, stream)
	if err != nil {
		return report.InfectionReport{}, err
	}
	events = append(events, dayEvents...)
	r.infections += len(events)

	return r.finishDay(ctx, it, events)
}

// finishDay runs progression, builds the reports and writes the day's
// output.
func (r *Runner) finishDay(ctx context.Context, it int, events []models.InfectionEvent) (report.InfectionReport, error) {
	rng := newStream(r.cfg.Seed, it, streamProgression)
	r.progression.PrepareDay(dayDate(r.cfg.StartDate, it+1).Weekday())
	if err := r.progression.Step(rng, r.world.persons, it); err != nil {
		return report.InfectionReport{}, err
	}

	date := dayDate(r.cfg.StartDate, it)
	reports := report.Build(r.world.persons, it, date)
	total := reports[0]

	for _, ev := range events {
		r.logger.Log(ctx, logging.LevelTrace, "infection",
			"day", ev.Day, "infector", ev.Infector, "infected", ev.Infected,
			"container", ev.Container, "activity", ev.Activity)
	}
	r.logger.Debug("day complete",
		"day", it,
		"date", total.Date,
		"new_infections", len(events),
		"active", total.NActive(),
		"quarantined", total.NQuarantined())

	if err := r.sink.RecordInfections(ctx, events); err != nil {
		return report.InfectionReport{}, fmt.Errorf("recording infections: %w", err)
	}
	if err := r.sink.RecordReports(ctx, reports); err != nil {
		return report.InfectionReport{}, fmt.Errorf("recording reports: %w", err)
	}
	if err := r.sink.RecordRestrictions(ctx, r.restrictions.Records(it, date)); err != nil {
		return report.InfectionReport{}, fmt.Errorf("recording restrictions: %w", err)
	}
	return total, nil
}

// streamOf returns the stream replayed in an iteration.
func (r *Runner) streamOf(it int) int {
	return r.schedule.StreamIndex(dayDate(r.cfg.StartDate, it).Weekday())
}

// baseline sums unrestricted activity durations per weekday.
func (r *Runner) baseline() policy.Baseline {
	resolve := func(act string) string {
		param, _ := contact.Resolve(act, r.cfg.Contact.Intensities)
		return param
	}
	b := make(policy.Baseline, constants.DaysPerWeek)
	for d := time.Sunday; d <= time.Saturday; d++ {
		b[d] = policy.DayDurations(r.schedule.Stream(d), resolve)
	}
	return b
}

// dayDate returns the calendar date of an iteration. Iteration 1 is the
// start date; the bootstrap iteration is the day before.
func dayDate(start time.Time, it int) time.Time {
	return start.AddDate(0, 0, it-1)
}

func sortedNames(m map[string]float64) []string {
	return slices.Sorted(maps.Keys(m))
}
