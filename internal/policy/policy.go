// Package policy decides which restrictions are in effect each day.
//
// A Policy receives the report of the previous day and mutates the shared
// Restrictions in place. The result governs the next replayed day, so
// every decision lags the epidemic by one day.
package policy

import (
	"fmt"
	"time"

	"github.com/nvandessel/episim/internal/constants"
	"github.com/nvandessel/episim/internal/logging"
	"github.com/nvandessel/episim/internal/models"
	"github.com/nvandessel/episim/internal/report"
)

// Policy updates restrictions from the previous day's "total" report.
type Policy interface {
	UpdateRestrictions(r report.InfectionReport, restrictions Restrictions) error
}

// Initializer is implemented by policies that need to prepare the
// restrictions before the first simulated day.
type Initializer interface {
	Init(start time.Time, restrictions Restrictions) error
}

// BaselineAware is implemented by policies that need the activity
// durations of the unrestricted weekly plan.
type BaselineAware interface {
	SetBaseline(b Baseline)
}

// Baseline holds the total seconds spent per activity on each weekday of
// the unrestricted plan.
type Baseline map[time.Weekday]map[string]float64

// Kind names a policy variant in configuration.
type Kind string

const (
	KindFixed    Kind = "fixed"
	KindAdaptive Kind = "adaptive"
	KindICU      Kind = "icu"
	KindAdjusted Kind = "adjusted"
)

// Config selects and parameterizes a policy.
type Config struct {
	// Kind is one of "fixed" (default), "adaptive", "icu" or "adjusted".
	Kind Kind `json:"kind" yaml:"kind"`

	Fixed    Calendar       `json:"fixed,omitempty" yaml:"fixed,omitempty"`
	Adaptive AdaptiveConfig `json:"adaptive,omitempty" yaml:"adaptive,omitempty"`
	ICU      ICUConfig      `json:"icu,omitempty" yaml:"icu,omitempty"`
	Adjusted AdjustedConfig `json:"adjusted,omitempty" yaml:"adjusted,omitempty"`
}

// Validate checks the section of the selected kind.
func (c Config) Validate() error {
	switch c.Kind {
	case "", KindFixed:
		return c.Fixed.Validate()
	case KindAdaptive:
		return c.Adaptive.Validate()
	case KindICU:
		return c.ICU.Validate()
	case KindAdjusted:
		return c.Adjusted.Validate()
	default:
		return fmt.Errorf("unknown policy kind %q", c.Kind)
	}
}

// New builds the configured policy. Decisions are traced to dl, which
// may be nil.
func New(cfg Config, dl *logging.DecisionLogger) (Policy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: policy: %v", models.ErrConfig, err)
	}
	switch cfg.Kind {
	case KindAdaptive:
		return NewAdaptive(cfg.Adaptive, dl), nil
	case KindICU:
		return NewICUDependent(cfg.ICU, dl), nil
	case KindAdjusted:
		return NewAdjusted(cfg.Adjusted, dl), nil
	default:
		return NewFixed(cfg.Fixed, dl), nil
	}
}

// effectiveDay returns the day and date on which a decision taken from r
// comes into force.
func effectiveDay(r report.InfectionReport) (int, time.Time, error) {
	date, err := time.Parse(constants.DateLayout, r.Date)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("report for day %d has invalid date %q: %w", r.Day, r.Date, err)
	}
	return r.Day + 1, date.AddDate(0, 0, 1), nil
}

func lookup(restrictions Restrictions, activity string) (*Restriction, error) {
	r, ok := restrictions[activity]
	if !ok {
		return nil, fmt.Errorf("%w: policy references unknown activity %q", models.ErrConfig, activity)
	}
	return r, nil
}
