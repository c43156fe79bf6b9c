package policy

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nvandessel/episim/internal/constants"
	"github.com/nvandessel/episim/internal/logging"
	"github.com/nvandessel/episim/internal/models"
	"github.com/nvandessel/episim/internal/report"
)

// AdjustedConfig parameterizes a policy that scales out-of-home activities
// to match observed mobility.
type AdjustedConfig struct {
	// OutOfHome maps ISO dates to the observed share of baseline
	// out-of-home time. Days without an entry use the latest earlier one.
	OutOfHome map[string]float64 `json:"out_of_home" yaml:"out_of_home"`

	// Administrative is a calendar of decreed restrictions.
	Administrative Calendar `json:"administrative,omitempty" yaml:"administrative,omitempty"`

	// Periods maps activities to sorted ISO dates that alternately open and
	// close periods of administrative control.
	Periods map[string][]string `json:"periods,omitempty" yaml:"periods,omitempty"`

	// Excluded activities are administratively controlled but do not count
	// towards the mobility reduction.
	Excluded []string `json:"excluded,omitempty" yaml:"excluded,omitempty"`
}

// Validate checks dates and ranges.
func (c AdjustedConfig) Validate() error {
	if len(c.OutOfHome) == 0 {
		return fmt.Errorf("adjusted out_of_home needs at least one date")
	}
	for d, f := range c.OutOfHome {
		if _, err := time.Parse(constants.DateLayout, d); err != nil {
			return fmt.Errorf("adjusted out_of_home: invalid date %q", d)
		}
		if f < 0 {
			return fmt.Errorf("adjusted out_of_home %s must be non-negative, got %v", d, f)
		}
	}
	for act, dates := range c.Periods {
		for _, d := range dates {
			if _, err := time.Parse(constants.DateLayout, d); err != nil {
				return fmt.Errorf("adjusted period %q: invalid date %q", act, d)
			}
		}
	}
	return c.Administrative.Validate()
}

// Adjusted combines administrative restrictions with a mobility target:
// the remaining out-of-home reduction is spread evenly over every activity
// that is neither administrative, home nor public transport.
type Adjusted struct {
	administrative Calendar
	outOfHome      []datedFraction
	periods        map[string][]time.Time
	excluded       map[string]bool
	baseline       Baseline
	decisions      *logging.DecisionLogger
}

type datedFraction struct {
	date time.Time
	frac float64
}

// NewAdjusted creates a mobility-adjusted policy. The configuration must
// have been validated.
func NewAdjusted(cfg AdjustedConfig, dl *logging.DecisionLogger) *Adjusted {
	a := &Adjusted{
		administrative: cfg.Administrative,
		periods:        make(map[string][]time.Time),
		excluded:       make(map[string]bool),
		decisions:      dl,
	}
	for d, f := range cfg.OutOfHome {
		date, _ := time.Parse(constants.DateLayout, d)
		a.outOfHome = append(a.outOfHome, datedFraction{date, f})
	}
	sort.Slice(a.outOfHome, func(i, j int) bool { return a.outOfHome[i].date.Before(a.outOfHome[j].date) })

	for act, dates := range cfg.Periods {
		for _, d := range dates {
			t, _ := time.Parse(constants.DateLayout, d)
			a.periods[act] = append(a.periods[act], t)
		}
		sort.Slice(a.periods[act], func(i, j int) bool { return a.periods[act][i].Before(a.periods[act][j]) })
	}
	for _, act := range cfg.Excluded {
		a.excluded[act] = true
	}
	return a
}

// SetBaseline provides the unrestricted activity durations.
func (a *Adjusted) SetBaseline(b Baseline) {
	a.baseline = b
}

// Init applies administrative entries dated before start.
func (a *Adjusted) Init(start time.Time, restrictions Restrictions) error {
	if a.baseline == nil {
		return fmt.Errorf("%w: adjusted policy needs baseline activity durations", models.ErrConfig)
	}
	return NewFixed(a.administrative, a.decisions).Init(start, restrictions)
}

// UpdateRestrictions applies the administrative calendar inside control
// periods and rescales all other out-of-home activities.
func (a *Adjusted) UpdateRestrictions(r report.InfectionReport, restrictions Restrictions) error {
	day, today, err := effectiveDay(r)
	if err != nil {
		return err
	}
	durations := a.baseline[today.Weekday()]

	var base float64
	for _, act := range sortedKeys(durations) {
		if !isHome(act) {
			base += durations[act]
		}
	}
	outOfHome := base

	admin := make(map[string]bool)
	for _, act := range restrictions.Activities() {
		res := restrictions[act]
		old := *res
		if entries, ok := a.administrative[act]; ok {
			if p, ok := entries[DayKey(day)]; ok {
				res.Apply(p)
			}
			if p, ok := entries[today.Format(constants.DateLayout)]; ok {
				res.Apply(p)
			}
		}
		if !a.inPeriod(act, today) {
			*res = old
			continue
		}
		admin[act] = true
		if !a.excluded[act] {
			outOfHome -= (1 - res.RemainingFraction) * durations[act]
		}
	}

	remaining := outOfHome - base*a.fractionOn(today)

	var available float64
	for _, act := range sortedKeys(durations) {
		if !isHome(act) && !admin[act] {
			available += durations[act]
		}
	}

	var reduced float64
	switch {
	case remaining < 0, remaining > available:
		a.decisions.Log(map[string]any{
			"event":     "mobility_out_of_range",
			"policy":    string(KindAdjusted),
			"day":       day,
			"remaining": remaining,
			"available": available,
		})
	case available > 0:
		reduced = remaining / available
	}

	for act, res := range restrictions {
		if admin[act] || isHome(act) || act == constants.PublicTransportActivity {
			continue
		}
		res.RemainingFraction = 1 - reduced
	}
	return nil
}

// inPeriod reports whether an odd number of period boundaries lie on or
// before day.
func (a *Adjusted) inPeriod(act string, day time.Time) bool {
	n := 0
	for _, d := range a.periods[act] {
		if d.After(day) {
			break
		}
		n++
	}
	return n%2 == 1
}

// fractionOn returns the out-of-home share for day, carrying the latest
// earlier value forward and the first value backward.
func (a *Adjusted) fractionOn(day time.Time) float64 {
	frac := a.outOfHome[0].frac
	for _, df := range a.outOfHome {
		if df.date.After(day) {
			break
		}
		frac = df.frac
	}
	return frac
}

func isHome(act string) bool {
	return strings.HasPrefix(act, constants.HomeActivity)
}

// DayDurations sums the seconds spent per activity in one day's events.
// Activities still open at the end of the day count until midnight;
// activities ended without a start count from midnight. resolve maps raw
// activity types to restriction keys.
func DayDurations(events []models.Event, resolve func(string) string) map[string]float64 {
	durations := make(map[string]float64)
	started := make(map[string]models.Event)

	for _, ev := range events {
		switch ev.Type {
		case models.ActivityStart:
			started[ev.Person] = ev
		case models.ActivityEnd:
			from := 0.0
			if s, ok := started[ev.Person]; ok {
				from = s.Time
			}
			durations[resolve(ev.Activity)] += ev.Time - from
			delete(started, ev.Person)
		}
	}
	for _, person := range sortedKeys(started) {
		s := started[person]
		durations[resolve(s.Activity)] += max(0, constants.SecondsPerDay-s.Time)
	}
	return durations
}
