package contact

import (
	"cmp"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/nvandessel/episim/internal/constants"
	"github.com/nvandessel/episim/internal/container"
	"github.com/nvandessel/episim/internal/models"
)

// Infection is a staged transmission, applied at the next barrier.
type Infection struct {
	Time      float64
	Worker    int
	Seq       int
	Target    *models.Person
	Source    *models.Person
	Container string
	Kind      string
}

type trace struct{ a, b *models.Person }

type spent struct {
	p       *models.Person
	act     models.ActivityID
	seconds float64
}

// Session is the per-worker state of one replayed day. Everything a
// worker would change on persons is staged here, so workers only share
// read-only state. A Session is not safe for concurrent use.
type Session struct {
	model     *Model
	rng       *rand.Rand
	worker    int
	iteration int

	scratch    []*models.Person
	infections []Infection
	traces     []trace
	spent      []spent
	seq        int
}

// NewSession creates the session of one worker for one iteration.
func (m *Model) NewSession(worker, iteration int, rng *rand.Rand) *Session {
	return &Session{model: m, rng: rng, worker: worker, iteration: iteration}
}

// Staged returns the number of staged infections.
func (s *Session) Staged() int {
	return len(s.infections)
}

// RecordTimeSpent stages the time a person spent in an activity.
func (s *Session) RecordTimeSpent(p *models.Person, act models.ActivityID, seconds float64) {
	if seconds > 0 {
		s.spent = append(s.spent, spent{p, act, seconds})
	}
}

// OnLeave runs the transmission step for a person about to leave c at
// now. It must be called before the person is removed.
func (s *Session) OnLeave(leaver *models.Person, c *container.Container, now float64) error {
	if s.iteration == 0 || !relevant(leaver) {
		return nil
	}
	m := s.model
	leaverInfo, leaverAct := m.occupantInfo(c, leaver)
	if !present(s.rng, leaver, leaverInfo) {
		return nil
	}

	s.scratch = c.AppendOccupants(s.scratch[:0])
	s.scratch = slices.DeleteFunc(s.scratch, func(p *models.Person) bool { return p.ID == leaver.ID })
	if len(s.scratch) == 0 {
		return nil
	}

	for range m.params.MaxContacts {
		other := s.scratch[s.rng.IntN(len(s.scratch))]
		if other.Status() == leaver.Status() || !relevant(other) {
			continue
		}
		otherInfo, otherAct := m.occupantInfo(c, other)
		if c.Kind == container.Facility && !compatible(leaverInfo, otherInfo) {
			continue
		}
		if !present(s.rng, other, otherInfo) {
			continue
		}

		if c.Kind == container.Facility && m.traceable(s.rng, leaverInfo) {
			s.traces = append(s.traces, trace{leaver, other})
		}

		joint, err := jointTime(c, leaver.ID, other.ID, now)
		if err != nil {
			return err
		}

		target, source := leaver, other
		targetInfo, sourceInfo := leaverInfo, otherInfo
		if leaver.Status() == models.Contagious {
			target, source = other, leaver
			targetInfo, sourceInfo = otherInfo, leaverInfo
		}

		modifier := min(targetInfo.restriction.Exposure, sourceInfo.restriction.Exposure)
		if wearsMask(s.rng, sourceInfo.restriction) {
			modifier *= sourceInfo.restriction.Mask.Shedding()
		}
		if wearsMask(s.rng, targetInfo.restriction) {
			modifier *= targetInfo.restriction.Mask.Intake()
		}
		modifier *= m.immunity.Modifier(target, source)

		intensity := min(leaverInfo.intensity, otherInfo.intensity)
		p := Probability(m.params.Calibration, intensity, joint, modifier)
		if s.rng.Float64() < p {
			return s.infect(target, source, now, c, s.kind(c, leaverAct, otherAct))
		}
	}
	return nil
}

func (s *Session) kind(c *container.Container, leaverAct, otherAct models.ActivityID) string {
	if c.Kind == container.Vehicle {
		return constants.PublicTransportActivity
	}
	return s.model.Param(leaverAct) + "_" + s.model.Param(otherAct)
}

// infect stages a transmission after checking its preconditions.
func (s *Session) infect(target, source *models.Person, now float64, c *container.Container, kind string) error {
	if target.Status() != models.Susceptible {
		return fmt.Errorf("%w: cannot infect %s with status %s", models.ErrInvariant, target.Name, target.Status())
	}
	if source.Status() != models.Contagious {
		return fmt.Errorf("%w: %s with status %s cannot infect", models.ErrInvariant, source.Name, source.Status())
	}
	if target.Quarantine() == models.QuarantineFull {
		return fmt.Errorf("%w: cannot infect %s in full quarantine", models.ErrInvariant, target.Name)
	}
	if source.Quarantine() == models.QuarantineFull {
		return fmt.Errorf("%w: %s in full quarantine cannot infect", models.ErrInvariant, source.Name)
	}
	if !c.Contains(target.ID) || !c.Contains(source.ID) {
		return fmt.Errorf("%w: %s and %s are not both in %s", models.ErrInvariant, target.Name, source.Name, c.Name)
	}
	s.infections = append(s.infections, Infection{
		Time:      now,
		Worker:    s.worker,
		Seq:       s.seq,
		Target:    target,
		Source:    source,
		Container: c.Name,
		Kind:      kind,
	})
	s.seq++
	return nil
}

// Commit applies the staged work of all sessions in a deterministic
// order: infections by (time, worker, sequence) with later infections of
// an already infected target dropped, then traceable contacts and time
// use in worker order. It returns the applied infection events.
func Commit(iteration int, sessions ...*Session) []models.InfectionEvent {
	var staged []Infection
	for _, s := range sessions {
		staged = append(staged, s.infections...)
	}
	slices.SortFunc(staged, func(a, b Infection) int {
		return cmp.Or(
			cmp.Compare(a.Time, b.Time),
			cmp.Compare(a.Worker, b.Worker),
			cmp.Compare(a.Seq, b.Seq),
		)
	})

	events := make([]models.InfectionEvent, 0, len(staged))
	for _, inf := range staged {
		if inf.Target.Status() != models.Susceptible {
			continue
		}
		inf.Target.Infect(iteration, inf.Source.Strain())
		events = append(events, models.InfectionEvent{
			Day:       iteration,
			Time:      inf.Time,
			Infector:  inf.Source.Name,
			Infected:  inf.Target.Name,
			Container: inf.Container,
			Activity:  inf.Kind,
			Strain:    inf.Target.Strain(),
		})
	}

	for _, s := range sessions {
		for _, tr := range s.traces {
			tr.a.AddTraceableContact(tr.b.ID)
			tr.b.AddTraceableContact(tr.a.ID)
		}
		for _, sp := range s.spent {
			sp.p.AddTimeSpent(sp.act, sp.seconds)
		}
		s.infections = s.infections[:0]
		s.traces = s.traces[:0]
		s.spent = s.spent[:0]
	}
	return events
}
