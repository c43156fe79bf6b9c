package policy

import (
	"fmt"

	"github.com/nvandessel/episim/internal/constants"
	"github.com/nvandessel/episim/internal/logging"
	"github.com/nvandessel/episim/internal/report"
)

// ICUConfig parameterizes a policy driven by intensive-care occupancy.
type ICUConfig struct {
	// Beds is the number of available intensive-care beds.
	Beds float64 `json:"beds" yaml:"beds"`

	// ShutdownTrigger is the share of beds whose occupancy by critical
	// cases enforces Restrictions.
	ShutdownTrigger float64 `json:"shutdown_trigger" yaml:"shutdown_trigger"`

	// OpenAllTrigger lifts every restriction once occupancy falls to this
	// share of the shutdown threshold.
	OpenAllTrigger float64 `json:"open_all_trigger" yaml:"open_all_trigger"`

	// Restrictions maps activities to the remaining fraction enforced
	// during shutdown.
	Restrictions map[string]float64 `json:"restrictions" yaml:"restrictions"`

	// Reopen maps activities to the share of the shutdown threshold at or
	// below which they reopen individually.
	Reopen map[string]float64 `json:"reopen,omitempty" yaml:"reopen,omitempty"`

	// ShutdownDays is a half-open [from, to) range of report days whose
	// decision enforces the shutdown regardless of occupancy. Zero
	// disables it.
	ShutdownDays [2]int `json:"shutdown_days,omitempty" yaml:"shutdown_days,omitempty"`
}

// Validate checks value ranges.
func (c ICUConfig) Validate() error {
	if c.Beds <= 0 {
		return fmt.Errorf("icu beds must be positive, got %v", c.Beds)
	}
	if c.ShutdownTrigger <= 0 {
		return fmt.Errorf("icu shutdown_trigger must be positive, got %v", c.ShutdownTrigger)
	}
	if c.OpenAllTrigger < 0 || c.OpenAllTrigger > 1 {
		return fmt.Errorf("icu open_all_trigger must be in [0, 1], got %v", c.OpenAllTrigger)
	}
	for act, f := range c.Restrictions {
		if f < 0 || f > 1 {
			return fmt.Errorf("icu restriction %q must be in [0, 1], got %v", act, f)
		}
	}
	for act, f := range c.Reopen {
		if f < 0 || f > 1 {
			return fmt.Errorf("icu reopen %q must be in [0, 1], got %v", act, f)
		}
	}
	if c.ShutdownDays[1] < c.ShutdownDays[0] {
		return fmt.Errorf("icu shutdown_days %v is not a range", c.ShutdownDays)
	}
	return nil
}

// ICUDependent enforces a shutdown while critical cases exceed a share of
// intensive-care capacity and reopens as occupancy falls. Freight is
// always closed.
type ICUDependent struct {
	cfg       ICUConfig
	shutdown  bool
	decisions *logging.DecisionLogger
}

// NewICUDependent creates an ICU-dependent policy.
func NewICUDependent(cfg ICUConfig, dl *logging.DecisionLogger) *ICUDependent {
	return &ICUDependent{cfg: cfg, decisions: dl}
}

// UpdateRestrictions compares the critical cases of r against capacity.
func (p *ICUDependent) UpdateRestrictions(r report.InfectionReport, restrictions Restrictions) error {
	day := r.Day + 1
	threshold := p.cfg.Beds * p.cfg.ShutdownTrigger
	critical := float64(r.NCritical)
	forced := r.Day >= p.cfg.ShutdownDays[0] && r.Day < p.cfg.ShutdownDays[1]

	switch {
	case critical >= threshold || forced:
		for _, act := range sortedKeys(p.cfg.Restrictions) {
			res, err := lookup(restrictions, act)
			if err != nil {
				return err
			}
			res.RemainingFraction = p.cfg.Restrictions[act]
		}
		p.transition(day, true, critical)

	case critical <= threshold*p.cfg.OpenAllTrigger:
		for _, res := range restrictions {
			res.Open()
		}
		p.transition(day, false, critical)

	default:
		for _, act := range sortedKeys(p.cfg.Reopen) {
			if critical > threshold*p.cfg.Reopen[act] {
				continue
			}
			res, err := lookup(restrictions, act)
			if err != nil {
				return err
			}
			res.Open()
		}
	}

	if res, ok := restrictions[constants.FreightActivity]; ok {
		res.Shutdown()
	}
	return nil
}

func (p *ICUDependent) transition(day int, shutdown bool, critical float64) {
	if p.shutdown == shutdown {
		return
	}
	p.shutdown = shutdown
	state := "open"
	if shutdown {
		state = "shutdown"
	}
	p.decisions.Log(map[string]any{
		"event":    "policy_switch",
		"policy":   string(KindICU),
		"day":      day,
		"state":    state,
		"critical": critical,
		"beds":     p.cfg.Beds,
	})
}
