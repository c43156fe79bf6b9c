package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/nvandessel/episim/internal/constants"
	"github.com/nvandessel/episim/internal/models"
)

// Schedule is the weekly movement plan: one event stream per weekday,
// with identical streams stored once.
type Schedule struct {
	Streams  [][]models.Event
	Weekdays [constants.DaysPerWeek]int
}

// NewSchedule builds a schedule from a default stream and per-weekday
// overrides. Weekdays without an override use the default stream.
func NewSchedule(def []models.Event, days map[time.Weekday][]models.Event) *Schedule {
	s := &Schedule{}
	for d := time.Sunday; d <= time.Saturday; d++ {
		events, ok := days[d]
		if !ok {
			events = def
		}
		idx := slices.IndexFunc(s.Streams, func(existing []models.Event) bool {
			return slices.Equal(existing, events)
		})
		if idx < 0 {
			s.Streams = append(s.Streams, events)
			idx = len(s.Streams) - 1
		}
		s.Weekdays[d] = idx
	}
	return s
}

// StreamIndex returns the stream replayed on a weekday.
func (s *Schedule) StreamIndex(d time.Weekday) int {
	return s.Weekdays[d]
}

// Stream returns the events replayed on a weekday.
func (s *Schedule) Stream(d time.Weekday) []models.Event {
	return s.Streams[s.Weekdays[d]]
}

// Validate checks every event and the time order of each stream.
func (s *Schedule) Validate() error {
	var total int
	for i, stream := range s.Streams {
		last := 0.0
		for j, ev := range stream {
			if err := validateEvent(ev); err != nil {
				return fmt.Errorf("stream %d, event %d: %w", i, j, err)
			}
			if ev.Time < last {
				return fmt.Errorf("stream %d, event %d: time %v before previous %v", i, j, ev.Time, last)
			}
			last = ev.Time
		}
		total += len(stream)
	}
	if total == 0 {
		return fmt.Errorf("schedule has no events")
	}
	return nil
}

func validateEvent(ev models.Event) error {
	if ev.Person == "" || ev.Container == "" {
		return fmt.Errorf("%s event needs person and container", ev.Type)
	}
	if !ev.Type.Vehicle() && ev.Activity == "" {
		return fmt.Errorf("%s event of %s needs an activity", ev.Type, ev.Person)
	}
	if math.IsNaN(ev.Time) || math.IsInf(ev.Time, 0) || ev.Time < 0 {
		return fmt.Errorf("invalid time %v", ev.Time)
	}
	return nil
}

type scheduleLine struct {
	models.Event
	Day string `json:"day,omitempty"`
}

// ReadSchedule parses a JSONL event file. Each line is an event with an
// optional "day" field naming a weekday; events without one form the
// default stream.
func ReadSchedule(r io.Reader) (*Schedule, error) {
	var def []models.Event
	days := make(map[time.Weekday][]models.Event)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var sl scheduleLine
		if err := json.Unmarshal([]byte(line), &sl); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if sl.Day == "" {
			def = append(def, sl.Event)
			continue
		}
		d, err := ParseWeekday(sl.Day)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		days[d] = append(days[d], sl.Event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	s := NewSchedule(def, days)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadSchedule reads a JSONL event file from disk.
func LoadSchedule(path string) (*Schedule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open events: %w", err)
	}
	defer f.Close()

	s, err := ReadSchedule(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseWeekday accepts full or three-letter English weekday names.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(s)
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
