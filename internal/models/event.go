package models

import "fmt"

// EventType is the kind of a replayed movement event.
type EventType uint8

const (
	ActivityStart EventType = iota
	ActivityEnd
	VehicleEnter
	VehicleLeave
)

var eventTypeNames = [...]string{
	ActivityStart: "actstart",
	ActivityEnd:   "actend",
	VehicleEnter:  "enter",
	VehicleLeave:  "leave",
}

func (t EventType) String() string {
	if int(t) < len(eventTypeNames) {
		return eventTypeNames[t]
	}
	return fmt.Sprintf("EventType(%d)", t)
}

// Arrival reports whether the event adds the person to a container.
func (t EventType) Arrival() bool {
	return t == ActivityStart || t == VehicleEnter
}

// Vehicle reports whether the event refers to a vehicle.
func (t EventType) Vehicle() bool {
	return t == VehicleEnter || t == VehicleLeave
}

// ParseEventType is the inverse of EventType.String.
func ParseEventType(s string) (EventType, error) {
	for i, name := range eventTypeNames {
		if name == s {
			return EventType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown event type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *EventType) UnmarshalText(b []byte) error {
	v, err := ParseEventType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Event is one movement record of the input stream. Time is seconds since
// midnight of the replayed day.
type Event struct {
	Type      EventType `json:"type"`
	Time      float64   `json:"time"`
	Person    string    `json:"person"`
	Container string    `json:"container"`
	Activity  string    `json:"activity,omitempty"`
}

// InfectionEvent records one transmission, or a seeded infection when
// Infector is empty.
type InfectionEvent struct {
	Day       int     `json:"day"`
	Time      float64 `json:"time"`
	Infector  string  `json:"infector,omitempty"`
	Infected  string  `json:"infected"`
	Container string  `json:"container,omitempty"`
	Activity  string  `json:"activity,omitempty"`
	Strain    Strain  `json:"strain"`
}

// Seeded reports whether the infection was seeded at bootstrap.
func (e InfectionEvent) Seeded() bool {
	return e.Infector == ""
}
