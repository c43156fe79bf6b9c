package progression

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/nvandessel/episim/internal/models"
)

// TestingStrategy selects when persons are tested.
type TestingStrategy string

const (
	// TestingNone disables testing.
	TestingNone TestingStrategy = "none"
	// TestingDaily tests every day with each test's rate.
	TestingDaily TestingStrategy = "daily"
	// TestingFixedDays tests only on each test's weekdays.
	TestingFixedDays TestingStrategy = "fixed_days"
)

// TestType is the kind of test, which decides what it can detect.
type TestType string

const (
	RapidTest TestType = "rapid"
	PCRTest   TestType = "pcr"
)

// TestingConfig configures the daily testing step. Positive results put
// the person into quarantine at home.
type TestingConfig struct {
	Strategy TestingStrategy `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Tests    []TestParams    `json:"tests,omitempty" yaml:"tests,omitempty"`
}

// TestParams configures one test type.
type TestParams struct {
	Type TestType `json:"type" yaml:"type"`

	// Rate is the daily probability that a person is tested.
	Rate float64 `json:"rate" yaml:"rate"`

	// Capacity is the number of tests per day; 0 means unlimited.
	Capacity int `json:"capacity,omitempty" yaml:"capacity,omitempty"`

	// Days are the weekdays tested under the fixed_days strategy.
	Days []string `json:"days,omitempty" yaml:"days,omitempty"`

	FalsePositiveRate float64 `json:"false_positive_rate" yaml:"false_positive_rate"`
	FalseNegativeRate float64 `json:"false_negative_rate" yaml:"false_negative_rate"`
}

// Enabled reports whether any test is performed.
func (c TestingConfig) Enabled() bool {
	return c.Strategy != "" && c.Strategy != TestingNone && len(c.Tests) > 0
}

// Validate checks the strategy, test types, rates and weekdays.
func (c TestingConfig) Validate() error {
	switch c.Strategy {
	case "", TestingNone, TestingDaily, TestingFixedDays:
	default:
		return fmt.Errorf("unknown testing strategy %q (valid: none, daily, fixed_days)", c.Strategy)
	}
	for _, tp := range c.Tests {
		switch tp.Type {
		case RapidTest, PCRTest:
		default:
			return fmt.Errorf("unknown test type %q (valid: rapid, pcr)", tp.Type)
		}
		for name, v := range map[string]float64{
			"rate":                tp.Rate,
			"false_positive_rate": tp.FalsePositiveRate,
			"false_negative_rate": tp.FalseNegativeRate,
		} {
			if v < 0 || v > 1 {
				return fmt.Errorf("%s test %s must be in [0, 1], got %v", tp.Type, name, v)
			}
		}
		if tp.Capacity < 0 {
			return fmt.Errorf("%s test capacity must be non-negative, got %d", tp.Type, tp.Capacity)
		}
		if c.Strategy == TestingFixedDays && len(tp.Days) == 0 {
			return fmt.Errorf("%s test needs days under the fixed_days strategy", tp.Type)
		}
		for _, d := range tp.Days {
			if _, err := parseWeekday(d); err != nil {
				return err
			}
		}
	}
	return nil
}

func parseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := d.String()
		if strings.EqualFold(s, name) || strings.EqualFold(s, name[:3]) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// tester is the per-run state of the testing step.
type tester struct {
	cfg        TestingConfig
	incubation int
	capacity   []int // remaining tests per type today, -1 unlimited
	scheduled  []bool
}

func newTester(cfg TestingConfig, incubation int) *tester {
	t := &tester{
		cfg:        cfg,
		incubation: incubation,
		capacity:   make([]int, len(cfg.Tests)),
		scheduled:  make([]bool, len(cfg.Tests)),
	}
	t.prepare(time.Monday)
	return t
}

// prepare resets capacities and selects the tests that run tomorrow.
func (t *tester) prepare(tomorrow time.Weekday) {
	for i, tp := range t.cfg.Tests {
		t.capacity[i] = tp.Capacity
		if tp.Capacity == 0 {
			t.capacity[i] = -1
		}
		t.scheduled[i] = t.cfg.Strategy == TestingDaily || slices.ContainsFunc(tp.Days, func(d string) bool {
			wd, err := parseWeekday(d)
			return err == nil && wd == tomorrow
		})
	}
}

// perform tests p with every applicable test. Persons with a positive
// result and recovered persons are not tested.
func (t *tester) perform(rng *rand.Rand, p *models.Person, iteration int) {
	if p.TestStatus() == models.TestPositive || p.Status() == models.Recovered {
		return
	}
	for i := range t.cfg.Tests {
		if t.capacity[i] == 0 || !t.scheduled[i] {
			continue
		}
		if t.testAndQuarantine(rng, p, iteration, t.cfg.Tests[i]) && t.capacity[i] > 0 {
			t.capacity[i]--
		}
	}
}

// testAndQuarantine draws whether p is tested and its result. It reports
// whether a test was used.
func (t *tester) testAndQuarantine(rng *rand.Rand, p *models.Person, iteration int, tp TestParams) bool {
	if tp.Rate <= 0 || (tp.Rate < 1 && rng.Float64() >= tp.Rate) {
		return false
	}

	days := p.DaysSinceInfection(iteration)
	switch {
	case t.detectsNegative(tp.Type, p.Status(), days):
		result := models.TestNegative
		if rng.Float64() < tp.FalsePositiveRate {
			result = models.TestPositive
		}
		p.SetTestStatus(result, iteration)
	case t.detectsPositive(tp.Type, p.Status(), days):
		result := models.TestPositive
		if rng.Float64() < tp.FalseNegativeRate {
			result = models.TestNegative
		}
		p.SetTestStatus(result, iteration)
	}

	if p.TestStatus() == models.TestPositive && p.Quarantine() == models.QuarantineNone {
		p.SetQuarantine(models.QuarantineAtHome, iteration)
	}
	return true
}

// detectsPositive reports whether a test finds an infection in this state.
func (t *tester) detectsPositive(tt TestType, s models.DiseaseStatus, daysInfected int) bool {
	switch tt {
	case RapidTest:
		return s == models.Contagious && daysInfected-t.incubation >= 2
	case PCRTest:
		return s == models.Contagious || (s == models.InfectedButNotContagious && daysInfected >= 2)
	}
	return false
}

// detectsNegative reports whether a correct test is negative in this state.
func (t *tester) detectsNegative(tt TestType, s models.DiseaseStatus, daysInfected int) bool {
	switch tt {
	case RapidTest:
		return s == models.Susceptible || s == models.Recovered || s == models.InfectedButNotContagious ||
			(s == models.Contagious && daysInfected-t.incubation < 1)
	case PCRTest:
		return s == models.Susceptible || s == models.Recovered ||
			(s == models.InfectedButNotContagious && daysInfected < 2)
	}
	return false
}
