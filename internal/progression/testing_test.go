package progression

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/nvandessel/episim/internal/models"
)

func withTests(strategy TestingStrategy, tests ...TestParams) Config {
	cfg := never()
	cfg.Testing = TestingConfig{Strategy: strategy, Tests: tests}
	return cfg
}

func pcr(rate float64) TestParams {
	return TestParams{Type: PCRTest, Rate: rate}
}

func TestTestingConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  TestingConfig
		ok   bool
	}{
		{"zero value", TestingConfig{}, true},
		{"daily pcr", TestingConfig{Strategy: TestingDaily, Tests: []TestParams{pcr(0.5)}}, true},
		{"fixed days", TestingConfig{Strategy: TestingFixedDays, Tests: []TestParams{{Type: RapidTest, Rate: 1, Days: []string{"Mon", "thursday"}}}}, true},
		{"unknown strategy", TestingConfig{Strategy: "random"}, false},
		{"unknown type", TestingConfig{Strategy: TestingDaily, Tests: []TestParams{{Type: "antibody", Rate: 1}}}, false},
		{"rate above one", TestingConfig{Strategy: TestingDaily, Tests: []TestParams{pcr(1.5)}}, false},
		{"negative capacity", TestingConfig{Strategy: TestingDaily, Tests: []TestParams{{Type: PCRTest, Capacity: -1}}}, false},
		{"fixed days without days", TestingConfig{Strategy: TestingFixedDays, Tests: []TestParams{pcr(1)}}, false},
		{"bad weekday", TestingConfig{Strategy: TestingFixedDays, Tests: []TestParams{{Type: PCRTest, Days: []string{"someday"}}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestPCRTestQuarantinesInfected(t *testing.T) {
	e := NewEngine(withTests(TestingDaily, pcr(1)))
	p := infected(0, 0)
	healthy := models.NewPerson(1, "healthy")
	persons := []*models.Person{p, healthy}

	run(t, e, persons, 1, 1)
	if p.TestStatus() != models.TestNegative || p.Quarantine() != models.QuarantineNone {
		t.Fatalf("day 1: %v / %v, want negative and free", p.TestStatus(), p.Quarantine())
	}
	run(t, e, persons, 2, 2)
	if p.TestStatus() != models.TestPositive || p.TestDay() != 2 {
		t.Errorf("day 2: test = %v on %d, want positive on 2", p.TestStatus(), p.TestDay())
	}
	if p.Quarantine() != models.QuarantineAtHome || p.QuarantineDay() != 2 {
		t.Errorf("day 2: quarantine = %v since %d, want atHome since 2", p.Quarantine(), p.QuarantineDay())
	}
	if healthy.TestStatus() != models.TestNegative || healthy.Quarantine() != models.QuarantineNone {
		t.Errorf("healthy person: %v / %v", healthy.TestStatus(), healthy.Quarantine())
	}
}

func TestRapidTestNeedsTwoContagiousDays(t *testing.T) {
	e := NewEngine(withTests(TestingDaily, TestParams{Type: RapidTest, Rate: 1}))
	p := infected(0, 0)
	persons := []*models.Person{p}

	run(t, e, persons, 1, 5)
	if p.Status() != models.Contagious || p.Quarantine() != models.QuarantineNone {
		t.Fatalf("day 5: %v / %v, want contagious and free", p.Status(), p.Quarantine())
	}
	run(t, e, persons, 6, 6)
	if p.Quarantine() != models.QuarantineAtHome {
		t.Errorf("day 6: quarantine = %v, want atHome", p.Quarantine())
	}
}

func TestTestingCapacity(t *testing.T) {
	e := NewEngine(withTests(TestingDaily, TestParams{Type: PCRTest, Rate: 1, Capacity: 2}))
	persons := make([]*models.Person, 5)
	for i := range persons {
		persons[i] = infected(i, 0)
	}
	rng := rand.New(rand.NewPCG(3, 3))

	e.PrepareDay(time.Monday)
	if err := e.Step(rng, persons, 2); err != nil {
		t.Fatal(err)
	}
	if got := countQuarantined(persons); got != 2 {
		t.Fatalf("day 2: %d quarantined, want capacity 2", got)
	}

	if err := e.Step(rng, persons, 3); err != nil {
		t.Fatal(err)
	}
	if got := countQuarantined(persons); got != 2 {
		t.Errorf("day 3 without a new day: %d quarantined, want 2", got)
	}

	e.PrepareDay(time.Tuesday)
	if err := e.Step(rng, persons, 3); err != nil {
		t.Fatal(err)
	}
	if got := countQuarantined(persons); got != 4 {
		t.Errorf("day 3: %d quarantined, want 4", got)
	}
}

func TestTestingFixedDays(t *testing.T) {
	e := NewEngine(withTests(TestingFixedDays, TestParams{Type: PCRTest, Rate: 1, Days: []string{"monday"}}))
	p := infected(0, 0)
	persons := []*models.Person{p}
	rng := rand.New(rand.NewPCG(3, 3))

	e.PrepareDay(time.Tuesday)
	if err := e.Step(rng, persons, 2); err != nil {
		t.Fatal(err)
	}
	if p.TestStatus() != models.TestUntested {
		t.Fatalf("tested on a day without tests: %v", p.TestStatus())
	}

	e.PrepareDay(time.Monday)
	if err := e.Step(rng, persons, 3); err != nil {
		t.Fatal(err)
	}
	if p.TestStatus() != models.TestPositive {
		t.Errorf("test = %v, want positive", p.TestStatus())
	}
}

func TestFalsePositiveReleased(t *testing.T) {
	e := NewEngine(withTests(TestingDaily, TestParams{Type: PCRTest, Rate: 1, FalsePositiveRate: 1}))
	p := models.NewPerson(0, "healthy")
	persons := []*models.Person{p}

	run(t, e, persons, 1, 1)
	if p.TestStatus() != models.TestPositive || p.Quarantine() != models.QuarantineAtHome {
		t.Fatalf("day 1: %v / %v, want false positive at home", p.TestStatus(), p.Quarantine())
	}
	run(t, e, persons, 2, 3)
	if p.Quarantine() != models.QuarantineAtHome || p.TestDay() != 1 {
		t.Fatalf("day 3: %v, tested %d, want still at home from the day 1 test", p.Quarantine(), p.TestDay())
	}

	if err := e.Update(rand.New(rand.NewPCG(1, 1)), p, 4, persons); err != nil {
		t.Fatal(err)
	}
	if p.Quarantine() != models.QuarantineNone || p.TestStatus() != models.TestUntested {
		t.Errorf("day 4: %v / %v, want released and untested", p.Quarantine(), p.TestStatus())
	}
}

func TestTestingRate(t *testing.T) {
	const n = 10_000
	e := NewEngine(withTests(TestingDaily, pcr(0.3)))
	persons := make([]*models.Person, n)
	for i := range persons {
		persons[i] = models.NewPerson(models.PersonID(i), "p")
	}
	run(t, e, persons, 1, 1)

	var tested int
	for _, p := range persons {
		if p.TestStatus() == models.TestNegative {
			tested++
		}
	}
	frac := float64(tested) / n
	if math.Abs(frac-0.3) > 0.02 {
		t.Errorf("tested fraction = %.4f, want 0.30 +- 0.02", frac)
	}
}

func countQuarantined(persons []*models.Person) int {
	var n int
	for _, p := range persons {
		if p.Quarantine() != models.QuarantineNone {
			n++
		}
	}
	return n
}
