package models

import "sync/atomic"

// Strain labels the pathogen variant carried by an infection. It is
// inherited from the infector and otherwise opaque to the simulation.
type Strain string

// StrainWildType is the strain of seeded infections.
const StrainWildType Strain = "wildtype"

// Attributes are static, optional person attributes read from the
// population file. Unknown values stay zero.
type Attributes struct {
	District string
	Age      int
	HomeID   string
}

// Person is a single simulated individual. Disease and quarantine state is
// mutated only in sequential phases; the container back-reference is the
// only field touched concurrently during replay.
type Person struct {
	ID         PersonID
	Name       string
	Attributes Attributes
	Trajectory Trajectory

	status         DiseaseStatus
	quarantine     QuarantineStatus
	infectionDay   int
	quarantineDay  int
	testStatus     TestStatus
	testDay        int
	wasCritical    bool
	everContagious bool
	strain         Strain

	traceable []PersonID
	spent     map[ActivityID]float64

	// location holds ContainerID+1 so that the zero value means "nowhere".
	location atomic.Int32
}

// NewPerson creates a susceptible person outside every container.
func NewPerson(id PersonID, name string) *Person {
	return &Person{
		ID:            id,
		Name:          name,
		infectionDay:  -1,
		quarantineDay: -1,
		testDay:       -1,
	}
}

func (p *Person) Status() DiseaseStatus { return p.status }
func (p *Person) Quarantine() QuarantineStatus { return p.quarantine }
func (p *Person) Strain() Strain { return p.strain }
func (p *Person) WasCritical() bool { return p.wasCritical }
func (p *Person) EverContagious() bool { return p.everContagious }
func (p *Person) TraceableContacts() []PersonID { return p.traceable }
func (p *Person) TestStatus() TestStatus { return p.testStatus }

// TestDay returns the iteration of the latest test result, or -1.
func (p *Person) TestDay() int { return p.testDay }

// InfectionDay returns the iteration of infection, or -1 if never infected.
func (p *Person) InfectionDay() int { return p.infectionDay }

// QuarantineDay returns the iteration quarantine started, or -1.
func (p *Person) QuarantineDay() int { return p.quarantineDay }

// DaysSinceInfection returns iteration - infection day, or -1 if never infected.
func (p *Person) DaysSinceInfection(iteration int) int {
	if p.infectionDay < 0 {
		return -1
	}
	return iteration - p.infectionDay
}

// SetStatus changes the disease status and keeps the derived flags current.
func (p *Person) SetStatus(s DiseaseStatus) {
	p.status = s
	switch s {
	case Contagious:
		p.everContagious = true
	case Critical:
		p.wasCritical = true
	}
}

// Infect moves a susceptible person into the first infected state.
// Callers check preconditions; Infect only records.
func (p *Person) Infect(iteration int, strain Strain) {
	p.status = InfectedButNotContagious
	p.infectionDay = iteration
	p.strain = strain
}

// SetQuarantine sets the quarantine status starting at iteration. Lifting
// quarantine keeps the last start day for reporting.
func (p *Person) SetQuarantine(q QuarantineStatus, iteration int) {
	p.quarantine = q
	if q != QuarantineNone {
		p.quarantineDay = iteration
	}
}

// SetTestStatus records a test result obtained on iteration.
func (p *Person) SetTestStatus(s TestStatus, iteration int) {
	p.testStatus = s
	p.testDay = iteration
}

// AddTraceableContact records other as traceable. Duplicates are ignored.
func (p *Person) AddTraceableContact(other PersonID) {
	for _, id := range p.traceable {
		if id == other {
			return
		}
	}
	p.traceable = append(p.traceable, other)
}

// ClearTraceableContacts forgets all traceable contacts.
func (p *Person) ClearTraceableContacts() {
	p.traceable = p.traceable[:0]
}

// AddTimeSpent accumulates seconds spent in an activity.
func (p *Person) AddTimeSpent(act ActivityID, seconds float64) {
	if p.spent == nil {
		p.spent = make(map[ActivityID]float64)
	}
	p.spent[act] += seconds
}

// TimeSpent returns the accumulated seconds spent in an activity.
func (p *Person) TimeSpent(act ActivityID) float64 {
	return p.spent[act]
}

// ResetTimeSpent clears the time-use accumulators.
func (p *Person) ResetTimeSpent() {
	clear(p.spent)
}

// Location returns the container the person is in, or NoContainer.
func (p *Person) Location() ContainerID {
	return ContainerID(p.location.Load() - 1)
}

// SetLocation records the container the person entered.
func (p *Person) SetLocation(c ContainerID) {
	p.location.Store(int32(c) + 1)
}

// ClearLocation forgets the back-reference if it still points at c.
// It reports whether the reference was cleared.
func (p *Person) ClearLocation(c ContainerID) bool {
	return p.location.CompareAndSwap(int32(c)+1, 0)
}
