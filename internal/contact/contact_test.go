package contact

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/episim/internal/container"
	"github.com/nvandessel/episim/internal/models"
	"github.com/nvandessel/episim/internal/policy"
)

const day1 = 86400.0

func contagious(id int, name string) *models.Person {
	p := models.NewPerson(models.PersonID(id), name)
	p.Infect(0, models.StrainWildType)
	p.SetStatus(models.Contagious)
	return p
}

// newTestModel builds a model for activities home (0), work (1), leisure (2).
func newTestModel(t *testing.T, calibration float64) (*Model, policy.Restrictions) {
	t.Helper()
	params := DefaultParams()
	params.Calibration = calibration
	params.Intensities = map[string]float64{"home": 1, "work": 1, "leisure": 1, "edu": 1, "pt": 1}
	res := policy.NewRestrictions("home", "work", "leisure", "edu", "pt")
	m, err := NewModel(params, []string{"home", "work_8h", "leisure", "edu"}, res)
	require.NoError(t, err)
	return m, res
}

func rng() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestProbability(t *testing.T) {
	p := Probability(1e-5, 1, 100, 1)
	assert.InDelta(t, 0.0009995, p, 1e-7)
	assert.Zero(t, Probability(1e-5, 1, 0, 1))
	assert.Zero(t, Probability(1e-5, 0, 100, 1))
}

func TestProbabilityMonotone(t *testing.T) {
	const calibration = 1e-5
	times := []float64{0, 1, 60, 600, 3600, 14400, 86400}
	intensities := []float64{0, 0.1, 1, 2.5, 10}

	for _, i := range intensities {
		prev := -1.0
		for _, jt := range times {
			p := Probability(calibration, i, jt, 1)
			assert.GreaterOrEqual(t, p, 0.0)
			assert.Less(t, p, 1.0)
			if i > 0 {
				assert.Greater(t, p, prev, "intensity %v, joint time %v", i, jt)
			}
			prev = p
		}
	}
	for _, jt := range times[1:] {
		prev := -1.0
		for _, i := range intensities {
			p := Probability(calibration, i, jt, 1)
			assert.Greater(t, p, prev, "joint time %v, intensity %v", jt, i)
			prev = p
		}
	}
}

func TestResolve(t *testing.T) {
	params := map[string]float64{"work": 1, "work_8h": 2, "home": 1}
	tests := []struct {
		activity string
		want     string
		ok       bool
	}{
		{"home", "home", true},
		{"work_4h", "work", true},
		{"work_8h", "work_8h", true},
		{"work_8h_late", "work_8h", true},
		{"shopping", "", false},
	}
	for _, tt := range tests {
		got, ok := Resolve(tt.activity, params)
		assert.Equal(t, tt.want, got, tt.activity)
		assert.Equal(t, tt.ok, ok, tt.activity)
	}
}

func TestNewModelMissingParameters(t *testing.T) {
	params := DefaultParams()
	params.Intensities = map[string]float64{"home": 1}
	_, err := NewModel(params, []string{"home", "shopping"}, policy.NewRestrictions("home"))
	assert.True(t, errors.Is(err, models.ErrConfig), "got %v", err)
}

func TestOnLeaveTransmits(t *testing.T) {
	m, _ := newTestModel(t, 1)
	c := container.New(0, "home_1", container.Facility)
	source := contagious(0, "a")
	target := models.NewPerson(1, "b")
	require.NoError(t, c.AddPerson(source, day1, 0))
	require.NoError(t, c.AddPerson(target, day1+100, 0))

	s := m.NewSession(0, 1, rng())
	require.NoError(t, s.OnLeave(target, c, day1+1000))
	require.Equal(t, 1, s.Staged())
	assert.Equal(t, models.Susceptible, target.Status(), "infections are staged until commit")

	events := Commit(1, s)
	require.Len(t, events, 1)
	assert.Equal(t, models.InfectedButNotContagious, target.Status())
	assert.Equal(t, 1, target.InfectionDay())
	assert.Equal(t, "a", events[0].Infector)
	assert.Equal(t, "b", events[0].Infected)
	assert.Equal(t, "home_home", events[0].Activity)
	assert.Equal(t, models.StrainWildType, events[0].Strain)

	assert.Contains(t, source.TraceableContacts(), target.ID)
	assert.Contains(t, target.TraceableContacts(), source.ID)
}

func TestOnLeaveFirstSuccessReturns(t *testing.T) {
	tests := []struct {
		name          string
		leaverInfects bool
	}{
		{"susceptible leaves contagious crowd", false},
		{"contagious leaves susceptible crowd", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestModel(t, 1e6)
			c := container.New(0, "home_1", container.Facility)
			var leaver *models.Person
			if tt.leaverInfects {
				leaver = contagious(0, "leaver")
			} else {
				leaver = models.NewPerson(0, "leaver")
			}
			require.NoError(t, c.AddPerson(leaver, day1, 0))
			for i := 1; i <= 5; i++ {
				var other *models.Person
				if tt.leaverInfects {
					other = models.NewPerson(models.PersonID(i), "other")
				} else {
					other = contagious(i, "other")
				}
				require.NoError(t, c.AddPerson(other, day1, 0))
			}

			s := m.NewSession(0, 1, rng())
			require.NoError(t, s.OnLeave(leaver, c, day1+1000))
			assert.Equal(t, 1, s.Staged())
		})
	}
}

func TestOnLeaveDrawsWithReplacement(t *testing.T) {
	const trials = 10_000
	// One draw against the single co-occupant transmits with p = 0.2.
	calibration := -math.Log(0.8) / 1000

	tests := []struct {
		maxContacts int
		want        float64
	}{
		{0, 0},
		{1, 0.2},
		{3, 1 - math.Pow(0.8, 3)},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d draws", tt.maxContacts), func(t *testing.T) {
			params := DefaultParams()
			params.Calibration = calibration
			params.MaxContacts = tt.maxContacts
			params.Intensities = map[string]float64{"home": 1}
			m, err := NewModel(params, []string{"home"}, policy.NewRestrictions("home"))
			require.NoError(t, err)

			r := rng()
			var infected int
			for i := range trials {
				c := container.New(models.ContainerID(i), "home_1", container.Facility)
				source := contagious(0, "a")
				target := models.NewPerson(1, "b")
				require.NoError(t, c.AddPerson(source, day1, 0))
				require.NoError(t, c.AddPerson(target, day1, 0))

				s := m.NewSession(0, 1, r)
				require.NoError(t, s.OnLeave(target, c, day1+1000))
				infected += s.Staged()
			}
			assert.InDelta(t, tt.want, float64(infected)/trials, 0.02)
		})
	}
}

func TestOnLeaveQuarantineHomeIntensity(t *testing.T) {
	tests := []struct {
		name       string
		intensity  map[string]float64
		quarantine models.QuarantineStatus
		want       int
	}{
		{"not quarantined", map[string]float64{"home": 1, "quarantine_home": 0}, models.QuarantineNone, 1},
		{"quarantined at home", map[string]float64{"home": 1, "quarantine_home": 0}, models.QuarantineAtHome, 0},
		{"no quarantine_home entry", map[string]float64{"home": 1}, models.QuarantineAtHome, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := DefaultParams()
			params.Calibration = 1
			params.Intensities = tt.intensity
			m, err := NewModel(params, []string{"home"}, policy.NewRestrictions("home"))
			require.NoError(t, err)

			c := container.New(0, "home_1", container.Facility)
			source := contagious(0, "a")
			target := models.NewPerson(1, "b")
			target.SetQuarantine(tt.quarantine, 0)
			require.NoError(t, c.AddPerson(source, day1, 0))
			require.NoError(t, c.AddPerson(target, day1, 0))

			s := m.NewSession(0, 1, rng())
			require.NoError(t, s.OnLeave(target, c, day1+1000))
			assert.Equal(t, tt.want, s.Staged())
		})
	}
}

func TestOnLeaveSkips(t *testing.T) {
	tests := []struct {
		name      string
		iteration int
		setup     func(source, target *models.Person, res policy.Restrictions)
	}{
		{"bootstrap iteration", 0, func(_, _ *models.Person, _ policy.Restrictions) {}},
		{"both susceptible", 1, func(source, _ *models.Person, _ policy.Restrictions) {
			source.SetStatus(models.Susceptible)
		}},
		{"source recovered", 1, func(source, _ *models.Person, _ policy.Restrictions) {
			source.SetStatus(models.Recovered)
		}},
		{"source seriously sick", 1, func(source, _ *models.Person, _ policy.Restrictions) {
			source.SetStatus(models.SeriouslySick)
		}},
		{"source in full quarantine", 1, func(source, _ *models.Person, _ policy.Restrictions) {
			source.SetQuarantine(models.QuarantineFull, 0)
		}},
		{"activity closed", 1, func(_, _ *models.Person, res policy.Restrictions) {
			res["work"].Shutdown()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, res := newTestModel(t, 1)
			c := container.New(0, "office", container.Facility)
			source := contagious(0, "a")
			target := models.NewPerson(1, "b")
			require.NoError(t, c.AddPerson(source, day1, 1))
			require.NoError(t, c.AddPerson(target, day1, 1))
			tt.setup(source, target, res)

			s := m.NewSession(0, tt.iteration, rng())
			require.NoError(t, s.OnLeave(target, c, day1+500))
			assert.Zero(t, s.Staged())
		})
	}
}

func TestOnLeaveAlone(t *testing.T) {
	m, _ := newTestModel(t, 1)
	c := container.New(0, "home_1", container.Facility)
	p := contagious(0, "a")
	require.NoError(t, c.AddPerson(p, day1, 0))
	s := m.NewSession(0, 1, rng())
	require.NoError(t, s.OnLeave(p, c, day1+10))
	assert.Zero(t, s.Staged())
}

func TestOnLeaveIncompatibleActivities(t *testing.T) {
	m, _ := newTestModel(t, 1)
	c := container.New(0, "campus", container.Facility)
	source := contagious(0, "a")
	target := models.NewPerson(1, "b")
	require.NoError(t, c.AddPerson(source, day1, 2)) // leisure
	require.NoError(t, c.AddPerson(target, day1, 3)) // edu
	s := m.NewSession(0, 1, rng())
	require.NoError(t, s.OnLeave(target, c, day1+500))
	assert.Zero(t, s.Staged())
}

func TestOnLeaveVehicle(t *testing.T) {
	m, _ := newTestModel(t, 1)
	c := container.New(0, "bus_1", container.Vehicle)
	source := contagious(0, "a")
	target := models.NewPerson(1, "b")
	require.NoError(t, c.AddPerson(source, day1, -1))
	require.NoError(t, c.AddPerson(target, day1, -1))

	s := m.NewSession(0, 1, rng())
	require.NoError(t, s.OnLeave(source, c, day1+600))
	events := Commit(1, s)
	require.Len(t, events, 1)
	assert.Equal(t, "pt", events[0].Activity)
	assert.Empty(t, source.TraceableContacts(), "vehicle contacts are not traceable")
}

func TestOnLeaveJointTimeOutOfRange(t *testing.T) {
	m, _ := newTestModel(t, 1)
	c := container.New(0, "home_1", container.Facility)
	source := contagious(0, "a")
	target := models.NewPerson(1, "b")
	require.NoError(t, c.AddPerson(source, container.UnknownEntry, 0))
	require.NoError(t, c.AddPerson(target, container.UnknownEntry, 0))

	s := m.NewSession(0, 1, rng())
	err := s.OnLeave(target, c, day1+10)
	assert.True(t, errors.Is(err, models.ErrInvariant), "got %v", err)
}

func TestOnLeaveUnknownEntryUsesOtherPerson(t *testing.T) {
	m, _ := newTestModel(t, 1)
	c := container.New(0, "home_1", container.Facility)
	source := contagious(0, "a")
	target := models.NewPerson(1, "b")
	require.NoError(t, c.AddPerson(source, container.UnknownEntry, 0))
	require.NoError(t, c.AddPerson(target, day1+5, 0))

	s := m.NewSession(0, 1, rng())
	require.NoError(t, s.OnLeave(target, c, day1+1000))
	assert.Equal(t, 1, s.Staged())
}

func TestCommitKeepsEarliestInfection(t *testing.T) {
	m, _ := newTestModel(t, 1)
	target := models.NewPerson(0, "t")
	early := contagious(1, "early")
	late := contagious(2, "late")
	c := container.New(0, "x", container.Facility)
	for _, p := range []*models.Person{target, early, late} {
		require.NoError(t, c.AddPerson(p, 0, 1))
	}

	w0 := m.NewSession(0, 3, rng())
	w1 := m.NewSession(1, 3, rng())
	require.NoError(t, w0.infect(target, late, 300, c, "work_work"))
	require.NoError(t, w1.infect(target, early, 200, c, "work_work"))

	events := Commit(3, w0, w1)
	require.Len(t, events, 1)
	assert.Equal(t, "early", events[0].Infector)
	assert.Zero(t, w0.Staged())
	assert.Zero(t, w1.Staged())
}

func TestInfectPreconditions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(target, source *models.Person, c, elsewhere *container.Container) error
	}{
		{"target not susceptible", func(target, _ *models.Person, _, _ *container.Container) error {
			target.SetStatus(models.Recovered)
			return nil
		}},
		{"source not contagious", func(_, source *models.Person, _, _ *container.Container) error {
			source.SetStatus(models.InfectedButNotContagious)
			return nil
		}},
		{"target in full quarantine", func(target, _ *models.Person, _, _ *container.Container) error {
			target.SetQuarantine(models.QuarantineFull, 0)
			return nil
		}},
		{"source in full quarantine", func(_, source *models.Person, _, _ *container.Container) error {
			source.SetQuarantine(models.QuarantineFull, 0)
			return nil
		}},
		{"source in another container", func(_, source *models.Person, c, elsewhere *container.Container) error {
			if _, err := c.RemovePerson(source.ID); err != nil {
				return err
			}
			return elsewhere.AddPerson(source, day1, 1)
		}},
		{"target in another container", func(target, _ *models.Person, c, elsewhere *container.Container) error {
			if _, err := c.RemovePerson(target.ID); err != nil {
				return err
			}
			return elsewhere.AddPerson(target, day1, 1)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestModel(t, 1)
			c := container.New(0, "office", container.Facility)
			elsewhere := container.New(1, "shop", container.Facility)
			target := models.NewPerson(0, "t")
			source := contagious(1, "s")
			require.NoError(t, c.AddPerson(target, day1, 1))
			require.NoError(t, c.AddPerson(source, day1, 1))
			require.NoError(t, tt.setup(target, source, c, elsewhere))

			s := m.NewSession(0, 1, rng())
			err := s.infect(target, source, day1+10, c, "work_work")
			assert.True(t, errors.Is(err, models.ErrInvariant), "got %v", err)
			assert.Zero(t, s.Staged())
		})
	}

	t.Run("at-home quarantine at home", func(t *testing.T) {
		m, _ := newTestModel(t, 1)
		c := container.New(0, "home_1", container.Facility)
		target := models.NewPerson(0, "t")
		source := contagious(1, "s")
		target.SetQuarantine(models.QuarantineAtHome, 0)
		require.NoError(t, c.AddPerson(target, day1, 0))
		require.NoError(t, c.AddPerson(source, day1, 0))

		s := m.NewSession(0, 1, rng())
		require.NoError(t, s.infect(target, source, day1+10, c, "home_home"))
		assert.Equal(t, 1, s.Staged())
	})
}

func TestCompatible(t *testing.T) {
	info := func(param string) activityInfo { return activityInfo{param: param} }
	tests := []struct {
		a, b string
		want bool
	}{
		{"home", "home", true},
		{"home", "work", true},
		{"leisure", "home", true},
		{"home", "edu", false},
		{"edu", "work", true},
		{"edu", "leisure", false},
		{"shopping", "leisure", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, compatible(info(tt.a), info(tt.b)), "%s/%s", tt.a, tt.b)
	}
}

func TestTraceable(t *testing.T) {
	m, _ := newTestModel(t, 1)
	r := rng()
	info := func(param string) activityInfo { return activityInfo{param: param} }

	for _, param := range []string{"home", "work", "work_8h"} {
		assert.True(t, m.traceable(r, info(param)), param)
	}
	for _, param := range []string{"edu", "shopping", "pt"} {
		assert.False(t, m.traceable(r, info(param)), param)
	}

	const trials = 10_000
	var traced int
	for range trials {
		if m.traceable(r, info("leisure")) {
			traced++
		}
	}
	assert.InDelta(t, 0.8, float64(traced)/trials, 0.02)
}

func TestWearsMask(t *testing.T) {
	r := rng()
	assert.False(t, wearsMask(r, policy.None()))
	full := policy.None()
	full.Mask = policy.MaskN95
	full.MaskCompliance = 1
	assert.True(t, wearsMask(r, full))
}

func TestTimeSpentCommittedAtBarrier(t *testing.T) {
	m, _ := newTestModel(t, 1)
	p := models.NewPerson(0, "p")
	s := m.NewSession(0, 1, rng())
	s.RecordTimeSpent(p, 1, 3600)
	s.RecordTimeSpent(p, 1, 0)
	assert.Zero(t, p.TimeSpent(1))
	Commit(1, s)
	assert.Equal(t, 3600.0, p.TimeSpent(1))
}
