package simulation

import (
	"testing"

	"github.com/nvandessel/episim/internal/models"
)

// AssertPopulationConserved asserts that every day's status counts add up
// to the population, for the total and every district.
func AssertPopulationConserved(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, d := range result.Days {
		sum := d.Total.NSusceptible + d.Total.NActive() + d.Total.NRecovered
		if sum != d.Total.NPopulation {
			t.Errorf("AssertPopulationConserved: day %d: statuses sum to %d, population %d", d.Day, sum, d.Total.NPopulation)
		}
		var districts int64
		for name, r := range d.Districts {
			if s := r.NSusceptible + r.NActive() + r.NRecovered; s != r.NPopulation {
				t.Errorf("AssertPopulationConserved: day %d: district %s statuses sum to %d, population %d", d.Day, name, s, r.NPopulation)
			}
			districts += r.NPopulation
		}
		if len(d.Districts) > 0 && districts > d.Total.NPopulation {
			t.Errorf("AssertPopulationConserved: day %d: districts hold %d persons, total %d", d.Day, districts, d.Total.NPopulation)
		}
	}
}

// AssertCumulativeMonotone asserts that the cumulative counters never
// decrease and that each day's new infections match the growth of the
// cumulative count.
func AssertCumulativeMonotone(t *testing.T, result SimulationResult) {
	t.Helper()
	for i := 1; i < len(result.Days); i++ {
		prev, cur := result.Days[i-1].Total, result.Days[i].Total
		if cur.NInfectedCumulative < prev.NInfectedCumulative {
			t.Errorf("AssertCumulativeMonotone: day %d: cumulative infected fell from %d to %d", cur.Day, prev.NInfectedCumulative, cur.NInfectedCumulative)
		}
		if cur.NSymptomaticCumulative < prev.NSymptomaticCumulative {
			t.Errorf("AssertCumulativeMonotone: day %d: cumulative symptomatic fell from %d to %d", cur.Day, prev.NSymptomaticCumulative, cur.NSymptomaticCumulative)
		}
		if cur.NRecovered < prev.NRecovered {
			t.Errorf("AssertCumulativeMonotone: day %d: recovered fell from %d to %d", cur.Day, prev.NRecovered, cur.NRecovered)
		}
		if got, want := int64(len(result.Days[i].Infections)), cur.NInfectedCumulative-prev.NInfectedCumulative; got != want {
			t.Errorf("AssertCumulativeMonotone: day %d: %d infection events, cumulative grew by %d", cur.Day, got, want)
		}
	}
}

// AssertSeeded asserts that day 0 holds exactly n seeded infections and
// no transmissions.
func AssertSeeded(t *testing.T, result SimulationResult, n int) {
	t.Helper()
	if len(result.Days) == 0 {
		t.Fatal("AssertSeeded: no days")
	}
	day0 := result.Days[0]
	if len(day0.Infections) != n {
		t.Errorf("AssertSeeded: day 0 has %d infections, want %d", len(day0.Infections), n)
	}
	for _, ev := range day0.Infections {
		if !ev.Seeded() {
			t.Errorf("AssertSeeded: day 0 transmission %s -> %s", ev.Infector, ev.Infected)
		}
	}
	if day0.Total.NInfectedCumulative != int64(n) {
		t.Errorf("AssertSeeded: day 0 cumulative %d, want %d", day0.Total.NInfectedCumulative, n)
	}
}

// AssertInfectionsValid asserts that nobody is infected twice and that
// every infector had been infected on an earlier day.
func AssertInfectionsValid(t *testing.T, result SimulationResult) {
	t.Helper()
	infectedOn := make(map[string]int)
	for _, d := range result.Days {
		for _, ev := range d.Infections {
			if day, seen := infectedOn[ev.Infected]; seen {
				t.Errorf("AssertInfectionsValid: %s infected on day %d and again on day %d", ev.Infected, day, ev.Day)
			}
			if !ev.Seeded() {
				day, ok := infectedOn[ev.Infector]
				if !ok || day >= ev.Day {
					t.Errorf("AssertInfectionsValid: day %d: infector %s was not infected before", ev.Day, ev.Infector)
				}
			}
			if ev.Strain == "" {
				t.Errorf("AssertInfectionsValid: day %d: infection of %s has no strain", ev.Day, ev.Infected)
			}
		}
		for _, ev := range d.Infections {
			infectedOn[ev.Infected] = ev.Day
		}
	}
}

// AssertNoTransmissionIn asserts that no infection happened in the given
// activity between fromDay and toDay inclusive.
func AssertNoTransmissionIn(t *testing.T, result SimulationResult, activity string, fromDay, toDay int) {
	t.Helper()
	for _, d := range result.Days {
		if d.Day < fromDay || d.Day > toDay {
			continue
		}
		for _, ev := range d.Infections {
			if ev.Activity == activity || hasActivity(ev, activity) {
				t.Errorf("AssertNoTransmissionIn: day %d: %s infected %s in %s (%s)", d.Day, ev.Infector, ev.Infected, ev.Container, ev.Activity)
			}
		}
	}
}

// hasActivity matches the "<leaving>_<other>" labels of facility
// infections.
func hasActivity(ev models.InfectionEvent, activity string) bool {
	n := len(activity)
	a := ev.Activity
	return len(a) > n && (a[:n+1] == activity+"_" || a[len(a)-n-1:] == "_"+activity)
}

// AssertRestriction asserts the remaining fraction of an activity on a
// day.
func AssertRestriction(t *testing.T, result SimulationResult, day int, activity string, fraction float64) {
	t.Helper()
	if day < 0 || day >= len(result.Days) {
		t.Fatalf("AssertRestriction: day %d out of range", day)
	}
	rec, ok := result.Days[day].Restrictions[activity]
	if !ok {
		t.Errorf("AssertRestriction: day %d: no restriction for %s", day, activity)
		return
	}
	if rec.RemainingFraction != fraction {
		t.Errorf("AssertRestriction: day %d: %s remaining fraction %v, want %v", day, activity, rec.RemainingFraction, fraction)
	}
}

// AssertFinished asserts that the epidemic ended: nobody active, nobody
// in quarantine.
func AssertFinished(t *testing.T, result SimulationResult) {
	t.Helper()
	if len(result.Days) == 0 {
		t.Fatal("AssertFinished: no days")
	}
	final := result.Final().Total
	if !final.Finished() {
		t.Errorf("AssertFinished: day %d still has %d active and %d quarantined", final.Day, final.NActive(), final.NQuarantined())
	}
}
