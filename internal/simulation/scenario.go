package simulation

import (
	"fmt"
	"slices"
	"time"

	"github.com/nvandessel/episim/internal/config"
	"github.com/nvandessel/episim/internal/models"
	"github.com/nvandessel/episim/internal/report"
	"github.com/nvandessel/episim/internal/store"
)

// Scenario defines a complete simulation experiment.
type Scenario struct {
	Name string

	// Town generates the default day and the population attributes.
	Town TownSpec

	// Weekdays overrides the default day for single weekdays, e.g. a
	// Sunday without work.
	Weekdays map[time.Weekday]TownSpec

	// Config is the validated run configuration. Nil uses
	// DefaultConfig.
	Config *config.EpisimConfig
}

// TownSpec is a flat builder for a synthetic town. Every person starts at
// home, rides a bus to one of the workplaces and returns home in the
// evening. Every LeisureEvery-th person spends the evening at a shared
// venue first.
type TownSpec struct {
	Households    int
	HouseholdSize int
	Workplaces    int
	Buses         int      // 0 = walk to work
	Districts     []string // assigned round-robin per household
	LeisureEvery  int      // 0 = nobody goes out
	StayHome      bool     // nobody leaves home
}

// Times of the synthetic day, seconds after midnight.
const (
	leaveHome  = 7*3600 + 30*60
	startWork  = 8 * 3600
	endWork    = 17 * 3600
	leaveVenue = 19 * 3600
)

const defaultSize = 2

// Person returns the name of person i of household h.
func Person(h, i int) string {
	return fmt.Sprintf("p%04d-%d", h, i)
}

func (s TownSpec) size() int {
	if s.HouseholdSize <= 0 {
		return defaultSize
	}
	return s.HouseholdSize
}

// Persons returns the number of persons of the town.
func (s TownSpec) Persons() int {
	return s.Households * s.size()
}

// Events returns the time ordered events of one day.
func (s TownSpec) Events() []models.Event {
	var events []models.Event
	n := 0
	for h := range s.Households {
		home := fmt.Sprintf("h%04d", h)
		for i := range s.size() {
			p := Person(h, i)
			events = append(events, s.personDay(p, home, n)...)
			n++
		}
	}
	slices.SortStableFunc(events, func(a, b models.Event) int {
		switch {
		case a.Time < b.Time:
			return -1
		case a.Time > b.Time:
			return 1
		}
		return 0
	})
	return events
}

func (s TownSpec) personDay(p, home string, n int) []models.Event {
	if s.StayHome || s.Workplaces <= 0 {
		// a home activity that spans the whole day still needs an event
		// to make the person known
		return []models.Event{
			{Type: models.ActivityEnd, Time: 12 * 3600, Person: p, Container: home, Activity: "home"},
			{Type: models.ActivityStart, Time: 12 * 3600, Person: p, Container: home, Activity: "home"},
		}
	}
	work := fmt.Sprintf("w%02d", n%s.Workplaces)
	events := []models.Event{
		{Type: models.ActivityEnd, Time: leaveHome, Person: p, Container: home, Activity: "home"},
	}
	if s.Buses > 0 {
		bus := fmt.Sprintf("bus%02d", n%s.Buses)
		events = append(events,
			models.Event{Type: models.VehicleEnter, Time: leaveHome, Person: p, Container: bus},
			models.Event{Type: models.VehicleLeave, Time: startWork, Person: p, Container: bus})
	}
	events = append(events,
		models.Event{Type: models.ActivityStart, Time: startWork, Person: p, Container: work, Activity: "work"},
		models.Event{Type: models.ActivityEnd, Time: endWork, Person: p, Container: work, Activity: "work"})

	back := float64(endWork)
	if s.LeisureEvery > 0 && n%s.LeisureEvery == 0 {
		events = append(events,
			models.Event{Type: models.ActivityStart, Time: endWork, Person: p, Container: "venue", Activity: "leisure"},
			models.Event{Type: models.ActivityEnd, Time: leaveVenue, Person: p, Container: "venue", Activity: "leisure"})
		back = leaveVenue
	}
	return append(events, models.Event{Type: models.ActivityStart, Time: back, Person: p, Container: home, Activity: "home"})
}

// Attributes returns the district and home of every person.
func (s TownSpec) Attributes() map[string]models.Attributes {
	attrs := make(map[string]models.Attributes, s.Persons())
	for h := range s.Households {
		var district string
		if len(s.Districts) > 0 {
			district = s.Districts[h%len(s.Districts)]
		}
		for i := range s.size() {
			attrs[Person(h, i)] = models.Attributes{
				District: district,
				Age:      20 + (h*7+i*13)%60,
				HomeID:   fmt.Sprintf("h%04d", h),
			}
		}
	}
	return attrs
}

// DayResult captures the stored output of a single day.
type DayResult struct {
	Day          int
	Total        report.InfectionReport
	Districts    map[string]report.InfectionReport
	Infections   []models.InfectionEvent
	Restrictions map[string]report.RestrictionRecord // by activity
}

// SimulationResult captures all days and the final store state.
type SimulationResult struct {
	RunID      string
	Run        *store.Run
	Days       []DayResult
	Iterations int
	Finished   bool
	Infections int // transmissions, seeds excluded
	Store      *store.SQLiteStore
}

// Final returns the last day.
func (r SimulationResult) Final() DayResult {
	return r.Days[len(r.Days)-1]
}

// Totals returns the total reports in day order.
func (r SimulationResult) Totals() []report.InfectionReport {
	out := make([]report.InfectionReport, len(r.Days))
	for i, d := range r.Days {
		out[i] = d.Total
	}
	return out
}
