// Package container models the places where persons meet: facilities for
// activities and vehicles for trips. A container tracks its occupants,
// their entry times and the activity they are pursuing.
package container

import (
	"fmt"
	"math"

	"github.com/nvandessel/episim/internal/models"
)

// Kind distinguishes facilities from vehicles.
type Kind uint8

const (
	Facility Kind = iota
	Vehicle
)

func (k Kind) String() string {
	if k == Vehicle {
		return "vehicle"
	}
	return "facility"
}

// UnknownEntry is the entry time of a person whose arrival was never
// observed, e.g. someone already at home when the replay began.
var UnknownEntry = math.Inf(-1)

type occupant struct {
	person   *models.Person
	entered  float64
	activity models.ActivityID
}

// Container is a facility or vehicle. It is not safe for concurrent use:
// during parallel replay each container is owned by exactly one worker.
type Container struct {
	ID    models.ContainerID
	Name  string
	Kind  Kind
	Shard int

	occupants []occupant
	index     map[models.PersonID]int

	adds    int64
	removes int64
}

// New creates an empty container.
func New(id models.ContainerID, name string, kind Kind) *Container {
	return &Container{
		ID:    id,
		Name:  name,
		Kind:  kind,
		index: make(map[models.PersonID]int),
	}
}

// AddPerson records p entering at now for activity act and points p's
// back-reference here. Adding a person twice is an invariant violation.
func (c *Container) AddPerson(p *models.Person, now float64, act models.ActivityID) error {
	if _, ok := c.index[p.ID]; ok {
		return fmt.Errorf("%w: person %s already in %s %s", models.ErrInvariant, p.Name, c.Kind, c.Name)
	}
	c.index[p.ID] = len(c.occupants)
	c.occupants = append(c.occupants, occupant{person: p, entered: now, activity: act})
	c.adds++
	p.SetLocation(c.ID)
	return nil
}

// RemovePerson removes the person and clears the back-reference if it
// still points here. Removing an absent person is an invariant violation.
func (c *Container) RemovePerson(id models.PersonID) (*models.Person, error) {
	i, ok := c.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: person %d not in %s %s", models.ErrInvariant, id, c.Kind, c.Name)
	}
	p := c.occupants[i].person

	last := len(c.occupants) - 1
	if i != last {
		c.occupants[i] = c.occupants[last]
		c.index[c.occupants[i].person.ID] = i
	}
	c.occupants[last] = occupant{}
	c.occupants = c.occupants[:last]
	delete(c.index, id)
	c.removes++

	p.ClearLocation(c.ID)
	return p, nil
}

// Contains reports whether the person is inside.
func (c *Container) Contains(id models.PersonID) bool {
	_, ok := c.index[id]
	return ok
}

// Len returns the number of occupants.
func (c *Container) Len() int {
	return len(c.occupants)
}

// AppendOccupants appends the current occupants to dst and returns it.
// The result is a snapshot; use it for sampling only.
func (c *Container) AppendOccupants(dst []*models.Person) []*models.Person {
	for _, o := range c.occupants {
		dst = append(dst, o.person)
	}
	return dst
}

// Occupants returns a fresh snapshot of the occupants.
func (c *Container) Occupants() []*models.Person {
	return c.AppendOccupants(make([]*models.Person, 0, len(c.occupants)))
}

// EnteredAt returns the entry time of a person. known is false when the
// person is absent or their arrival was never observed.
func (c *Container) EnteredAt(id models.PersonID) (t float64, known bool) {
	i, ok := c.index[id]
	if !ok {
		return UnknownEntry, false
	}
	t = c.occupants[i].entered
	return t, !math.IsInf(t, -1)
}

// ActivityOf returns the activity a present person is pursuing.
func (c *Container) ActivityOf(id models.PersonID) (models.ActivityID, bool) {
	i, ok := c.index[id]
	if !ok {
		return 0, false
	}
	return c.occupants[i].activity, true
}

// Restamp sets every occupant's entry time to now. It is used at the day
// boundary for persons who stay overnight.
func (c *Container) Restamp(now float64) {
	for i := range c.occupants {
		c.occupants[i].entered = now
	}
}

// Counts returns the number of additions and removals so far.
func (c *Container) Counts() (adds, removes int64) {
	return c.adds, c.removes
}
