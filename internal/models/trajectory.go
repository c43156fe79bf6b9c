package models

// TrajectoryStep is one visit in a person's weekly plan.
type TrajectoryStep struct {
	Container ContainerID
	Activity  ActivityID
}

// DaySpan locates one weekday stream inside Trajectory.Steps.
type DaySpan struct {
	// First and Last index Steps; both are -1 when the person has no
	// events in the stream.
	First, Last int

	// StartsInside is set when the day opens with the person leaving
	// Steps[First], i.e. they must already be there at midnight.
	StartsInside bool

	// EndsInside is set when the day closes with the person still in
	// Steps[Last].
	EndsInside bool
}

// Present reports whether the person has events in the stream.
func (d DaySpan) Present() bool { return d.First >= 0 }

// Trajectory is the ordered list of visits recorded at bootstrap, indexed
// per weekday stream.
type Trajectory struct {
	Steps []TrajectoryStep
	Days  []DaySpan
}

// Span returns the span of a stream, or an absent span.
func (t *Trajectory) Span(stream int) DaySpan {
	if stream < 0 || stream >= len(t.Days) {
		return DaySpan{First: -1, Last: -1}
	}
	return t.Days[stream]
}

// Start returns where the person has to be when the stream begins.
// ok is false when the person starts the day outside every container
// or has no events in the stream.
func (t *Trajectory) Start(stream int) (step TrajectoryStep, ok bool) {
	d := t.Span(stream)
	if !d.Present() || !d.StartsInside {
		return TrajectoryStep{Container: NoContainer}, false
	}
	return t.Steps[d.First], true
}

// End returns where the person is when the stream ends.
func (t *Trajectory) End(stream int) (step TrajectoryStep, ok bool) {
	d := t.Span(stream)
	if !d.Present() || !d.EndsInside {
		return TrajectoryStep{Container: NoContainer}, false
	}
	return t.Steps[d.Last], true
}

// Record appends a step to the given stream and returns its index.
func (t *Trajectory) Record(stream int, step TrajectoryStep) int {
	for len(t.Days) <= stream {
		t.Days = append(t.Days, DaySpan{First: -1, Last: -1})
	}
	t.Steps = append(t.Steps, step)
	idx := len(t.Steps) - 1
	d := &t.Days[stream]
	if d.First < 0 {
		d.First = idx
	}
	d.Last = idx
	return idx
}

// Mark updates the open/close flags of a stream.
func (t *Trajectory) Mark(stream int, startsInside, endsInside bool) {
	if stream < 0 || stream >= len(t.Days) {
		return
	}
	t.Days[stream].StartsInside = startsInside
	t.Days[stream].EndsInside = endsInside
}
