package contact

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/nvandessel/episim/internal/constants"
	"github.com/nvandessel/episim/internal/container"
	"github.com/nvandessel/episim/internal/models"
	"github.com/nvandessel/episim/internal/policy"
)

// Model holds the resolved per-activity configuration. It is read-only
// once built and shared by all replay workers.
type Model struct {
	params     Params
	activities []activityInfo
	vehicle    activityInfo
	immunity   ImmunityModel

	quarantineHome    float64
	hasQuarantineHome bool
}

// Option customizes a Model.
type Option func(*Model)

// WithImmunity replaces the default immunity model.
func WithImmunity(im ImmunityModel) Option {
	return func(m *Model) { m.immunity = im }
}

// NewModel resolves every activity name (in ActivityID order) to its
// contact intensity and restriction. An activity without a configured
// parameter is a configuration error.
func NewModel(params Params, activities []string, restrictions policy.Restrictions, opts ...Option) (*Model, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConfig, err)
	}
	m := &Model{params: params, immunity: NoImmunity{}}
	for _, opt := range opts {
		opt(m)
	}

	resolve := func(activity string) (activityInfo, error) {
		param, ok := Resolve(activity, params.Intensities)
		if !ok {
			return activityInfo{}, fmt.Errorf("%w: no infection parameters for activity %q", models.ErrConfig, activity)
		}
		r, ok := restrictions[param]
		if !ok {
			return activityInfo{}, fmt.Errorf("%w: no restriction for activity %q", models.ErrConfig, param)
		}
		return activityInfo{param: param, intensity: params.Intensities[param], restriction: r}, nil
	}

	for _, a := range activities {
		info, err := resolve(a)
		if err != nil {
			return nil, err
		}
		m.activities = append(m.activities, info)
	}
	if _, ok := params.Intensities[constants.PublicTransportActivity]; ok {
		info, err := resolve(constants.PublicTransportActivity)
		if err != nil {
			return nil, err
		}
		m.vehicle = info
	} else {
		m.vehicle = activityInfo{param: constants.PublicTransportActivity, restriction: policy.None()}
	}
	m.quarantineHome, m.hasQuarantineHome = params.Intensities[constants.QuarantineHomeActivity]
	return m, nil
}

// RequireVehicles fails when vehicles are replayed without "pt" parameters.
func (m *Model) RequireVehicles() error {
	if _, ok := m.params.Intensities[constants.PublicTransportActivity]; !ok {
		return fmt.Errorf("%w: vehicles need infection parameters for %q", models.ErrConfig, constants.PublicTransportActivity)
	}
	return nil
}

// Param returns the restriction key of an interned activity.
func (m *Model) Param(act models.ActivityID) string {
	return m.info(act).param
}

func (m *Model) info(act models.ActivityID) activityInfo {
	if act < 0 || int(act) >= len(m.activities) {
		return activityInfo{param: "", restriction: policy.None()}
	}
	return m.activities[act]
}

// occupantInfo returns the activity configuration of a present occupant.
// Persons quarantined at home use the quarantine_home intensity there.
func (m *Model) occupantInfo(c *container.Container, p *models.Person) (activityInfo, models.ActivityID) {
	if c.Kind == container.Vehicle {
		return m.vehicle, -1
	}
	act, _ := c.ActivityOf(p.ID)
	info := m.info(act)
	if m.hasQuarantineHome && p.Quarantine() == models.QuarantineAtHome && info.is(constants.HomeActivity) {
		info.intensity = m.quarantineHome
	}
	return info, act
}

// relevant reports whether a person can take part in a transmission.
func relevant(p *models.Person) bool {
	s := p.Status()
	return s == models.Susceptible || s == models.Contagious
}

// present decides whether p takes part in the activity today: persons in
// full quarantine never do, persons quarantined at home only at home, and
// everyone else with the activity's remaining fraction.
func present(rng *rand.Rand, p *models.Person, a activityInfo) bool {
	switch p.Quarantine() {
	case models.QuarantineFull:
		return false
	case models.QuarantineAtHome:
		if !a.is(constants.HomeActivity) {
			return false
		}
	}
	rf := a.restriction.RemainingFraction
	if rf <= 0 {
		return false
	}
	if rf >= 1 {
		return true
	}
	return rng.Float64() < rf
}

// compatible filters facility contacts between activities that do not
// share a space: home with home, work or leisure; education with
// education or work.
func compatible(a, b activityInfo) bool {
	if a.is("home") || b.is("home") {
		other := b
		if b.is("home") {
			other = a
		}
		return other.is("home") || other.is("work") || other.is("leisure")
	}
	if a.is("edu") || b.is("edu") {
		other := b
		if b.is("edu") {
			other = a
		}
		return other.is("edu") || other.is("work")
	}
	return true
}

// traceable decides whether a contact during activity a can be traced.
func (m *Model) traceable(rng *rand.Rand, a activityInfo) bool {
	switch {
	case a.is("home"), a.is("work"):
		return true
	case a.is("leisure"):
		return rng.Float64() < m.params.LeisureTraceProbability
	}
	return false
}

// wearsMask draws whether a person complies with the activity's mask rule.
func wearsMask(rng *rand.Rand, r *policy.Restriction) bool {
	if r.Mask == policy.MaskNone || r.MaskCompliance <= 0 {
		return false
	}
	return r.MaskCompliance >= 1 || rng.Float64() < r.MaskCompliance
}

// jointTime returns the time two occupants spent together until now. An
// unobserved entry counts as -Inf, so the later entry decides.
func jointTime(c *container.Container, a, b models.PersonID, now float64) (float64, error) {
	ea, _ := c.EnteredAt(a)
	eb, _ := c.EnteredAt(b)
	t := now - math.Max(ea, eb)
	if !(t >= 0 && t <= constants.SecondsPerDay) {
		return 0, fmt.Errorf("%w: joint time %v of persons %d and %d in %s outside [0, %v]",
			models.ErrInvariant, t, a, b, c.Name, constants.SecondsPerDay)
	}
	return t, nil
}
