package replay

import (
	"fmt"
	"hash/fnv"

	"github.com/nvandessel/episim/internal/container"
	"github.com/nvandessel/episim/internal/models"
)

// event is an interned replay event.
type event struct {
	kind      models.EventType
	time      float64
	person    models.PersonID
	container models.ContainerID
	activity  models.ActivityID
}

// world owns every person and container. Arenas are filled once during
// bootstrap; afterwards only person state and container occupancy change.
type world struct {
	persons    []*models.Person
	containers []*container.Container

	personIDs    *models.Registry[models.PersonID]
	containerIDs *models.Registry[models.ContainerID]
	activityIDs  *models.Registry[models.ActivityID]

	streams  [][]event
	vehicles bool
}

func newWorld() *world {
	return &world{
		personIDs:    models.NewRegistry[models.PersonID](),
		containerIDs: models.NewRegistry[models.ContainerID](),
		activityIDs:  models.NewRegistry[models.ActivityID](),
	}
}

// intern converts the schedule into interned streams, visiting first the
// stream at index first so that its persons come first in the arena.
// Persons are created on first reference.
func (w *world) intern(s *Schedule, first, shards int, attrs map[string]models.Attributes) error {
	w.streams = make([][]event, len(s.Streams))
	order := []int{first}
	for i := range s.Streams {
		if i != first {
			order = append(order, i)
		}
	}

	for _, i := range order {
		stream := make([]event, 0, len(s.Streams[i]))
		for _, ev := range s.Streams[i] {
			pid, isNew := w.personIDs.Intern(ev.Person)
			if isNew {
				p := models.NewPerson(pid, ev.Person)
				p.Attributes = attrs[ev.Person]
				w.persons = append(w.persons, p)
			}

			kind := container.Facility
			if ev.Type.Vehicle() {
				kind = container.Vehicle
				w.vehicles = true
			}
			cid, isNew := w.containerIDs.Intern(kind.String() + ":" + ev.Container)
			if isNew {
				c := container.New(cid, ev.Container, kind)
				c.Shard = shardOf(kind.String()+":"+ev.Container, shards)
				w.containers = append(w.containers, c)
			}
			if w.containers[cid].Kind != kind {
				return fmt.Errorf("%w: container %s used as %s and %s", models.ErrConfig, ev.Container, w.containers[cid].Kind, kind)
			}

			act := models.ActivityID(-1)
			if kind == container.Facility {
				act, _ = w.activityIDs.Intern(ev.Activity)
			}
			stream = append(stream, event{
				kind:      ev.Type,
				time:      ev.Time,
				person:    pid,
				container: cid,
				activity:  act,
			})
		}
		w.streams[i] = stream
	}
	return nil
}

// recordTrajectories derives every person's per-stream visits.
func (w *world) recordTrajectories() {
	type dayState struct {
		seen, startsInside, inside bool
	}
	for si, stream := range w.streams {
		states := make(map[models.PersonID]*dayState)
		for _, ev := range stream {
			p := w.persons[ev.person]
			st, ok := states[ev.person]
			if !ok {
				st = &dayState{}
				states[ev.person] = st
			}
			step := models.TrajectoryStep{Container: ev.container, Activity: ev.activity}
			if ev.kind.Arrival() {
				p.Trajectory.Record(si, step)
				st.inside = true
			} else {
				if !st.seen {
					p.Trajectory.Record(si, step)
					st.startsInside = true
				}
				st.inside = false
			}
			st.seen = true
		}
		for pid, st := range states {
			w.persons[pid].Trajectory.Mark(si, st.startsInside, st.inside)
		}
	}
}

// audit rebuilds every person's back-reference from container occupancy.
// A person found in two containers is an invariant violation.
func (w *world) audit() error {
	loc := make([]models.ContainerID, len(w.persons))
	for i := range loc {
		loc[i] = models.NoContainer
	}
	for _, c := range w.containers {
		for _, p := range c.AppendOccupants(nil) {
			if prev := loc[p.ID]; prev != models.NoContainer {
				return fmt.Errorf("%w: person %s is in %s and %s",
					models.ErrInvariant, p.Name, w.containers[prev].Name, c.Name)
			}
			loc[p.ID] = c.ID
		}
	}
	for i, p := range w.persons {
		p.SetLocation(loc[i])
	}
	return nil
}

// Occupancy returns additions, removals and current occupants summed
// over all containers.
func (w *world) occupancy() (adds, removes, occupants int64) {
	for _, c := range w.containers {
		a, r := c.Counts()
		adds += a
		removes += r
		occupants += int64(c.Len())
	}
	return adds, removes, occupants
}

func shardOf(key string, shards int) int {
	if shards <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(shards))
}
