// Package progression advances each person's disease and quarantine state
// once per simulated day.
package progression

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/nvandessel/episim/internal/constants"
	"github.com/nvandessel/episim/internal/models"
)

// Config is the transition table, in days since infection.
type Config struct {
	// IncubationDays until an infected person becomes contagious.
	IncubationDays int `json:"incubation_days" yaml:"incubation_days"`

	// DetectionDay and DetectionProbability govern self-detection of
	// contagious persons, which puts them into full quarantine.
	DetectionDay         int     `json:"detection_day" yaml:"detection_day"`
	DetectionProbability float64 `json:"detection_probability" yaml:"detection_probability"`

	SeriouslySickDay         int     `json:"seriously_sick_day" yaml:"seriously_sick_day"`
	SeriouslySickProbability float64 `json:"seriously_sick_probability" yaml:"seriously_sick_probability"`

	// RecoveryDay ends a mild course.
	RecoveryDay int `json:"recovery_day" yaml:"recovery_day"`

	CriticalDay         int     `json:"critical_day" yaml:"critical_day"`
	CriticalProbability float64 `json:"critical_probability" yaml:"critical_probability"`

	SeriouslySickRecoveryDay int `json:"seriously_sick_recovery_day" yaml:"seriously_sick_recovery_day"`

	// CriticalRecoveryDay moves critical persons back to seriously sick.
	CriticalRecoveryDay int `json:"critical_recovery_day" yaml:"critical_recovery_day"`

	// QuarantineDays until any quarantine is lifted.
	QuarantineDays int `json:"quarantine_days" yaml:"quarantine_days"`

	Tracing TracingConfig `json:"tracing" yaml:"tracing"`

	Testing TestingConfig `json:"testing,omitempty" yaml:"testing,omitempty"`
}

// TracingConfig controls quarantine of traceable contacts when a person
// self-detects.
type TracingConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// StartDay is the first iteration on which contacts are traced.
	StartDay int `json:"start_day" yaml:"start_day"`
}

// DefaultConfig returns the reference transition table.
func DefaultConfig() Config {
	return Config{
		IncubationDays:           constants.IncubationDays,
		DetectionDay:             constants.DetectionDay,
		DetectionProbability:     constants.DetectionProbability,
		SeriouslySickDay:         constants.SeriouslySickDay,
		SeriouslySickProbability: constants.SeriouslySickProbability,
		RecoveryDay:              constants.RecoveryDay,
		CriticalDay:              constants.CriticalDay,
		CriticalProbability:      constants.CriticalProbability,
		SeriouslySickRecoveryDay: constants.SeriouslySickRecoveryDay,
		CriticalRecoveryDay:      constants.CriticalRecoveryDay,
		QuarantineDays:           constants.QuarantineDays,
		Tracing:                  TracingConfig{Enabled: true},
	}
}

// Validate checks that probabilities are probabilities and that the
// course of a disease moves forward in time.
func (c Config) Validate() error {
	for name, p := range map[string]float64{
		"detection_probability":      c.DetectionProbability,
		"seriously_sick_probability": c.SeriouslySickProbability,
		"critical_probability":       c.CriticalProbability,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("%s must be in [0, 1], got %v", name, p)
		}
	}
	if c.IncubationDays < 0 {
		return fmt.Errorf("incubation_days must be non-negative, got %d", c.IncubationDays)
	}
	if c.DetectionDay < c.IncubationDays || c.SeriouslySickDay < c.IncubationDays {
		return fmt.Errorf("detection_day and seriously_sick_day must not precede incubation_days")
	}
	if c.RecoveryDay <= c.SeriouslySickDay {
		return fmt.Errorf("recovery_day (%d) must follow seriously_sick_day (%d)", c.RecoveryDay, c.SeriouslySickDay)
	}
	if c.CriticalDay <= c.SeriouslySickDay || c.CriticalRecoveryDay <= c.CriticalDay {
		return fmt.Errorf("critical_day must follow seriously_sick_day and precede critical_recovery_day")
	}
	if c.SeriouslySickRecoveryDay <= c.CriticalDay {
		return fmt.Errorf("seriously_sick_recovery_day (%d) must follow critical_day (%d)", c.SeriouslySickRecoveryDay, c.CriticalDay)
	}
	if c.QuarantineDays <= 0 {
		return fmt.Errorf("quarantine_days must be positive, got %d", c.QuarantineDays)
	}
	if err := c.Testing.Validate(); err != nil {
		return fmt.Errorf("testing: %w", err)
	}
	return nil
}

// Engine applies the transition table and the testing step.
type Engine struct {
	cfg    Config
	tester *tester
}

// NewEngine creates a progression engine.
func NewEngine(cfg Config) *Engine {
	e := &Engine{cfg: cfg}
	if cfg.Testing.Enabled() {
		e.tester = newTester(cfg.Testing, cfg.IncubationDays)
	}
	return e
}

// PrepareDay resets the daily test capacities. Tests taken at the end of
// a day count for the next one, so tomorrow selects fixed-day tests.
func (e *Engine) PrepareDay(tomorrow time.Weekday) {
	if e.tester != nil {
		e.tester.prepare(tomorrow)
	}
}

// Step updates every person once, in arena order, then tests them.
// persons must be indexed by PersonID.
func (e *Engine) Step(rng *rand.Rand, persons []*models.Person, iteration int) error {
	for _, p := range persons {
		if err := e.Update(rng, p, iteration, persons); err != nil {
			return err
		}
		if e.tester != nil {
			e.tester.perform(rng, p, iteration)
		}
	}
	return nil
}

// Update advances one person. Traced contacts are looked up in persons.
func (e *Engine) Update(rng *rand.Rand, p *models.Person, iteration int, persons []*models.Person) error {
	days := p.DaysSinceInfection(iteration)

	switch p.Status() {
	case models.Susceptible, models.Recovered:

	case models.InfectedButNotContagious:
		if days >= e.cfg.IncubationDays {
			p.SetStatus(models.Contagious)
		}

	case models.Contagious:
		if days == e.cfg.DetectionDay && rng.Float64() < e.cfg.DetectionProbability {
			p.SetQuarantine(models.QuarantineFull, iteration)
			if err := e.trace(p, iteration, persons); err != nil {
				return err
			}
		}
		if days == e.cfg.SeriouslySickDay && rng.Float64() < e.cfg.SeriouslySickProbability {
			p.SetStatus(models.SeriouslySick)
		} else if days >= e.cfg.RecoveryDay {
			p.SetStatus(models.Recovered)
		}

	case models.Critical:
		if days < e.cfg.CriticalRecoveryDay {
			break
		}
		p.SetStatus(models.SeriouslySick)
		fallthrough

	case models.SeriouslySick:
		if !p.WasCritical() && days == e.cfg.CriticalDay && rng.Float64() < e.cfg.CriticalProbability {
			p.SetStatus(models.Critical)
		} else if days >= e.cfg.SeriouslySickRecoveryDay {
			p.SetStatus(models.Recovered)
		}

	default:
		return fmt.Errorf("%w: person %s has unknown disease status %s", models.ErrInvariant, p.Name, p.Status())
	}

	if p.Quarantine() != models.QuarantineNone && iteration-p.QuarantineDay() >= e.cfg.QuarantineDays {
		p.SetQuarantine(models.QuarantineNone, iteration)
		if p.TestStatus() != models.TestUntested {
			p.SetTestStatus(models.TestUntested, iteration)
		}
	}
	if falsePositive(p, iteration) {
		p.SetTestStatus(models.TestUntested, iteration)
		p.SetQuarantine(models.QuarantineNone, iteration)
	}
	p.ClearTraceableContacts()
	return nil
}

// falsePositive reports whether a healthy person has been quarantined on
// a positive test for more than two days.
func falsePositive(p *models.Person, iteration int) bool {
	s := p.Status()
	return p.Quarantine() != models.QuarantineNone &&
		p.TestStatus() == models.TestPositive &&
		(s == models.Susceptible || s == models.Recovered) &&
		iteration-p.TestDay() > 2
}

// trace quarantines the traceable contacts of a self-detected person at
// home, unless they already are in quarantine.
func (e *Engine) trace(p *models.Person, iteration int, persons []*models.Person) error {
	if !e.cfg.Tracing.Enabled || iteration < e.cfg.Tracing.StartDay {
		return nil
	}
	for _, id := range p.TraceableContacts() {
		if id < 0 || int(id) >= len(persons) {
			return fmt.Errorf("%w: traceable contact %d of %s is unknown", models.ErrInvariant, id, p.Name)
		}
		c := persons[id]
		if c.Quarantine() == models.QuarantineNone {
			c.SetQuarantine(models.QuarantineAtHome, iteration)
		}
	}
	return nil
}
