package policy

import (
	"fmt"
	"time"

	"github.com/nvandessel/episim/internal/constants"
	"github.com/nvandessel/episim/internal/logging"
	"github.com/nvandessel/episim/internal/report"
)

// AdaptiveConfig parameterizes an incidence-triggered lockdown.
type AdaptiveConfig struct {
	// OpenTrigger: restrictions lift once every weekly incidence in the
	// trailing window is at or below this value (cases per 100k).
	OpenTrigger float64 `json:"open_trigger" yaml:"open_trigger"`

	// RestrictTrigger: restrictions apply once the latest weekly incidence
	// reaches this value.
	RestrictTrigger float64 `json:"restrict_trigger" yaml:"restrict_trigger"`

	// Restricted and Open are applied on each switch.
	Restricted map[string]Patch `json:"restricted" yaml:"restricted"`
	Open       map[string]Patch `json:"open" yaml:"open"`

	// Initial is applied once before the first day.
	Initial map[string]Patch `json:"initial,omitempty" yaml:"initial,omitempty"`
}

// Validate checks triggers and patches.
func (c AdaptiveConfig) Validate() error {
	if c.OpenTrigger < 0 || c.RestrictTrigger < 0 {
		return fmt.Errorf("adaptive triggers must be non-negative")
	}
	if c.OpenTrigger > c.RestrictTrigger {
		return fmt.Errorf("adaptive open_trigger (%v) must not exceed restrict_trigger (%v)", c.OpenTrigger, c.RestrictTrigger)
	}
	for name, set := range map[string]map[string]Patch{"restricted": c.Restricted, "open": c.Open, "initial": c.Initial} {
		for act, p := range set {
			if err := p.Validate(); err != nil {
				return fmt.Errorf("adaptive %s %q: %w", name, act, err)
			}
		}
	}
	return nil
}

// Adaptive switches between an open and a restricted restriction set based
// on the weekly incidence of symptomatic cases.
type Adaptive struct {
	cfg        AdaptiveConfig
	cumulative []float64
	restricted bool
	decisions  *logging.DecisionLogger
}

// NewAdaptive creates an adaptive policy in the open state.
func NewAdaptive(cfg AdaptiveConfig, dl *logging.DecisionLogger) *Adaptive {
	return &Adaptive{cfg: cfg, decisions: dl}
}

// Restricted reports whether the restricted set is in force.
func (a *Adaptive) Restricted() bool {
	return a.restricted
}

// Init applies the initial restriction set.
func (a *Adaptive) Init(_ time.Time, restrictions Restrictions) error {
	return applySet(a.cfg.Initial, restrictions)
}

// UpdateRestrictions records the cumulative incidence of r and switches
// state once enough history is available.
func (a *Adaptive) UpdateRestrictions(r report.InfectionReport, restrictions Restrictions) error {
	if r.NPopulation == 0 {
		return nil
	}
	a.cumulative = append(a.cumulative, float64(r.NSymptomaticCumulative)*constants.Per100k/float64(r.NPopulation))

	n := len(a.cumulative)
	if n < constants.AdaptiveHistoryDays {
		return nil
	}

	incidences := make([]float64, 0, constants.AdaptiveHistoryDays)
	for k := max(constants.IncidenceWindowDays, n-constants.AdaptiveHistoryDays); k < n; k++ {
		incidences = append(incidences, a.cumulative[k]-a.cumulative[k-constants.IncidenceWindowDays])
	}
	latest := incidences[len(incidences)-1]

	if a.restricted && allAtMost(incidences, a.cfg.OpenTrigger) {
		if err := a.open(restrictions); err != nil {
			return err
		}
		a.restricted = false
		a.log(r.Day+1, "open", latest)
		return nil
	}
	if latest >= a.cfg.RestrictTrigger {
		if err := applySet(a.cfg.Restricted, restrictions); err != nil {
			return err
		}
		if !a.restricted {
			a.log(r.Day+1, "restrict", latest)
		}
		a.restricted = true
	}
	return nil
}

// open applies the open set and lifts restricted activities it omits.
func (a *Adaptive) open(restrictions Restrictions) error {
	for act := range a.cfg.Restricted {
		if _, ok := a.cfg.Open[act]; ok {
			continue
		}
		r, err := lookup(restrictions, act)
		if err != nil {
			return err
		}
		r.Open()
	}
	return applySet(a.cfg.Open, restrictions)
}

func (a *Adaptive) log(day int, state string, incidence float64) {
	a.decisions.Log(map[string]any{
		"event":     "policy_switch",
		"policy":    string(KindAdaptive),
		"day":       day,
		"state":     state,
		"incidence": incidence,
	})
}

func applySet(set map[string]Patch, restrictions Restrictions) error {
	for _, act := range sortedKeys(set) {
		r, err := lookup(restrictions, act)
		if err != nil {
			return err
		}
		r.Apply(set[act])
	}
	return nil
}

func allAtMost(values []float64, limit float64) bool {
	for _, v := range values {
		if v > limit {
			return false
		}
	}
	return true
}
