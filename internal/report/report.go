// Package report aggregates the population state into daily infection
// reports and defines the sinks that simulation output is written to.
package report

import (
	"sort"
	"time"

	"github.com/nvandessel/episim/internal/constants"
	"github.com/nvandessel/episim/internal/models"
)

// InfectionReport counts persons per disease and quarantine status at the
// end of one simulated day, for the whole population or one district.
type InfectionReport struct {
	Name string `json:"name"`
	Day  int    `json:"day"`
	Date string `json:"date"`

	NPopulation int64 `json:"n_population"`

	NSusceptible              int64 `json:"n_susceptible"`
	NInfectedButNotContagious int64 `json:"n_infected_but_not_contagious"`
	NContagious               int64 `json:"n_contagious"`
	NSeriouslySick            int64 `json:"n_seriously_sick"`
	NCritical                 int64 `json:"n_critical"`
	NRecovered                int64 `json:"n_recovered"`

	NInQuarantineFull int64 `json:"n_in_quarantine_full"`
	NInQuarantineHome int64 `json:"n_in_quarantine_home"`

	// NInfectedCumulative counts everyone ever infected, seeds included.
	NInfectedCumulative int64 `json:"n_infected_cumulative"`

	// NSymptomaticCumulative counts everyone who ever became contagious.
	NSymptomaticCumulative int64 `json:"n_symptomatic_cumulative"`
}

// NActive returns the number of ongoing infections.
func (r InfectionReport) NActive() int64 {
	return r.NInfectedButNotContagious + r.NContagious + r.NSeriouslySick + r.NCritical
}

// NQuarantined returns the number of persons in any quarantine.
func (r InfectionReport) NQuarantined() int64 {
	return r.NInQuarantineFull + r.NInQuarantineHome
}

// Finished reports whether nothing can change anymore: no active
// infection and nobody in quarantine.
func (r InfectionReport) Finished() bool {
	return r.NActive() == 0 && r.NQuarantined() == 0
}

// Count returns the number of persons with the given status.
func (r InfectionReport) Count(s models.DiseaseStatus) int64 {
	switch s {
	case models.Susceptible:
		return r.NSusceptible
	case models.InfectedButNotContagious:
		return r.NInfectedButNotContagious
	case models.Contagious:
		return r.NContagious
	case models.SeriouslySick:
		return r.NSeriouslySick
	case models.Critical:
		return r.NCritical
	case models.Recovered:
		return r.NRecovered
	}
	return 0
}

func (r *InfectionReport) add(p *models.Person) {
	r.NPopulation++
	switch p.Status() {
	case models.Susceptible:
		r.NSusceptible++
	case models.InfectedButNotContagious:
		r.NInfectedButNotContagious++
	case models.Contagious:
		r.NContagious++
	case models.SeriouslySick:
		r.NSeriouslySick++
	case models.Critical:
		r.NCritical++
	case models.Recovered:
		r.NRecovered++
	}
	switch p.Quarantine() {
	case models.QuarantineFull:
		r.NInQuarantineFull++
	case models.QuarantineAtHome:
		r.NInQuarantineHome++
	}
	if p.InfectionDay() >= 0 {
		r.NInfectedCumulative++
	}
	if p.EverContagious() {
		r.NSymptomaticCumulative++
	}
}

// Build aggregates persons into the "total" report followed by one report
// per district in name order. Persons without a district only count
// towards the total.
func Build(persons []*models.Person, day int, date time.Time) []InfectionReport {
	ds := date.Format(constants.DateLayout)
	total := InfectionReport{Name: constants.TotalReportKey, Day: day, Date: ds}
	districts := make(map[string]*InfectionReport)

	for _, p := range persons {
		total.add(p)
		d := p.Attributes.District
		if d == "" {
			continue
		}
		r, ok := districts[d]
		if !ok {
			r = &InfectionReport{Name: d, Day: day, Date: ds}
			districts[d] = r
		}
		r.add(p)
	}

	names := make([]string, 0, len(districts))
	for name := range districts {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]InfectionReport, 0, len(names)+1)
	out = append(out, total)
	for _, name := range names {
		out = append(out, *districts[name])
	}
	return out
}

// RestrictionRecord is a flattened snapshot of one activity's restriction
// in effect on a day.
type RestrictionRecord struct {
	Day               int     `json:"day"`
	Date              string  `json:"date"`
	Activity          string  `json:"activity"`
	RemainingFraction float64 `json:"remaining_fraction"`
	Exposure          float64 `json:"exposure"`
	Mask              string  `json:"mask"`
	MaskCompliance    float64 `json:"mask_compliance"`
}
