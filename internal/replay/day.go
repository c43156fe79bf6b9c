package replay

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/episim/internal/constants"
	"github.com/nvandessel/episim/internal/contact"
	"github.com/nvandessel/episim/internal/container"
	"github.com/nvandessel/episim/internal/models"
)

// crossBoundary moves every person to where the day's stream expects
// them at midnight. Persons who must start elsewhere leave their current
// container through the regular transmission step, all entry times are
// reset to midnight and persons who start the day inside a container are
// placed there.
func (r *Runner) crossBoundary(it, stream int) ([]models.InfectionEvent, error) {
	w := r.world
	midnight := float64(it) * constants.SecondsPerDay
	s := r.contact.NewSession(int(streamBoundary), it, newStream(r.cfg.Seed, it, streamBoundary))

	for _, p := range w.persons {
		if !p.Trajectory.Span(stream).Present() {
			continue
		}
		loc := p.Location()
		if loc == models.NoContainer {
			continue
		}
		if start, ok := p.Trajectory.Start(stream); ok && start.Container == loc {
			continue
		}
		if err := r.leave(s, p, w.containers[loc], midnight); err != nil {
			return nil, fmt.Errorf("boundary: %w", err)
		}
	}

	for _, c := range w.containers {
		c.Restamp(midnight)
	}

	for _, p := range w.persons {
		start, ok := p.Trajectory.Start(stream)
		if !ok || p.Location() == start.Container {
			continue
		}
		if err := w.containers[start.Container].AddPerson(p, midnight, start.Activity); err != nil {
			return nil, fmt.Errorf("boundary: %w", err)
		}
	}

	return contact.Commit(it, s), nil
}

// replayDay replays the stream on all workers and merges their work.
func (r *Runner) replayDay(it, stream int) ([]models.InfectionEvent, error) {
	sessions := make([]*contact.Session, r.cfg.Threads)
	for i := range sessions {
		sessions[i] = r.contact.NewSession(i, it, newStream(r.cfg.Seed, it, uint64(i)))
	}

	var g errgroup.Group
	for i, s := range sessions {
		g.Go(func() error {
			return r.replayShard(s, it, stream, i)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	events := contact.Commit(it, sessions...)
	if err := r.world.audit(); err != nil {
		return nil, err
	}
	return events, nil
}

// replayShard replays the events of the containers owned by shard. A
// negative shard replays everything.
func (r *Runner) replayShard(s *contact.Session, it, stream, shard int) error {
	w := r.world
	offset := float64(it) * constants.SecondsPerDay
	for _, ev := range w.streams[stream] {
		c := w.containers[ev.container]
		if shard >= 0 && c.Shard != shard {
			continue
		}
		now := min(ev.time, constants.SecondsPerDay) + offset
		p := w.persons[ev.person]

		if ev.kind.Arrival() {
			if err := c.AddPerson(p, now, ev.activity); err != nil {
				return err
			}
			continue
		}
		if !c.Contains(p.ID) {
			return fmt.Errorf("%w: %s leaves %s %s without being inside",
				models.ErrInvariant, p.Name, c.Kind, c.Name)
		}
		if err := r.leave(s, p, c, now); err != nil {
			return err
		}
	}
	return nil
}

// leave records the time spent, runs the transmission step and removes p
// from c.
func (r *Runner) leave(s *contact.Session, p *models.Person, c *container.Container, now float64) error {
	if c.Kind == container.Facility {
		entered, known := c.EnteredAt(p.ID)
		act, _ := c.ActivityOf(p.ID)
		if known && act >= 0 {
			s.RecordTimeSpent(p, act, now-entered)
		}
	}
	if err := s.OnLeave(p, c, now); err != nil {
		return err
	}
	_, err := c.RemovePerson(p.ID)
	return err
}
