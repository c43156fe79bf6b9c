package policy

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nvandessel/episim/internal/constants"
	"github.com/nvandessel/episim/internal/logging"
	"github.com/nvandessel/episim/internal/report"
)

// Calendar maps activity -> key -> patch. A key is either "day-N" for
// simulation day N or an ISO date. Entries are keyed by the day on which
// they take effect.
type Calendar map[string]map[string]Patch

// DayKey formats the calendar key of a simulation day.
func DayKey(day int) string {
	return "day-" + strconv.Itoa(day)
}

// Validate checks every key and patch.
func (c Calendar) Validate() error {
	for act, entries := range c {
		for key, p := range entries {
			if _, _, err := parseCalendarKey(key); err != nil {
				return fmt.Errorf("activity %q: %w", act, err)
			}
			if err := p.Validate(); err != nil {
				return fmt.Errorf("activity %q, %s: %w", act, key, err)
			}
		}
	}
	return nil
}

// parseCalendarKey returns the day of a "day-N" key, or -1 and the date.
func parseCalendarKey(key string) (day int, date time.Time, err error) {
	if rest, ok := strings.CutPrefix(key, "day-"); ok {
		day, err = strconv.Atoi(rest)
		if err != nil || day < 0 {
			return 0, time.Time{}, fmt.Errorf("invalid calendar day %q", key)
		}
		return day, time.Time{}, nil
	}
	date, err = time.Parse(constants.DateLayout, key)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("invalid calendar key %q: want day-N or YYYY-MM-DD", key)
	}
	return -1, date, nil
}

// apply applies the entries for the given day and date. It returns the
// activities that changed.
func (c Calendar) apply(day int, date time.Time, restrictions Restrictions) ([]string, error) {
	dayKey := DayKey(day)
	dateKey := date.Format(constants.DateLayout)

	var changed []string
	for _, act := range sortedKeys(c) {
		entries := c[act]
		for _, key := range []string{dayKey, dateKey} {
			p, ok := entries[key]
			if !ok {
				continue
			}
			r, err := lookup(restrictions, act)
			if err != nil {
				return nil, err
			}
			r.Apply(p)
			changed = append(changed, act)
		}
	}
	return changed, nil
}

// Fixed applies a predetermined calendar of restriction changes.
type Fixed struct {
	calendar  Calendar
	decisions *logging.DecisionLogger
}

// NewFixed creates a calendar-driven policy.
func NewFixed(c Calendar, dl *logging.DecisionLogger) *Fixed {
	return &Fixed{calendar: c, decisions: dl}
}

// Init applies every dated entry before start, oldest first, so that a
// run starting mid-calendar sees the accumulated state.
func (f *Fixed) Init(start time.Time, restrictions Restrictions) error {
	for _, act := range sortedKeys(f.calendar) {
		type dated struct {
			date time.Time
			p    Patch
		}
		var past []dated
		for key, p := range f.calendar[act] {
			day, date, err := parseCalendarKey(key)
			if err != nil {
				return err
			}
			if day < 0 && date.Before(start) {
				past = append(past, dated{date, p})
			}
		}
		if len(past) == 0 {
			continue
		}
		sort.Slice(past, func(i, j int) bool { return past[i].date.Before(past[j].date) })

		r, err := lookup(restrictions, act)
		if err != nil {
			return err
		}
		for _, d := range past {
			r.Apply(d.p)
		}
		f.decisions.Log(map[string]any{
			"event":    "policy_init",
			"policy":   string(KindFixed),
			"activity": act,
			"entries":  len(past),
			"fraction": r.RemainingFraction,
		})
	}
	return nil
}

// UpdateRestrictions applies the entries of the day after r.
func (f *Fixed) UpdateRestrictions(r report.InfectionReport, restrictions Restrictions) error {
	day, date, err := effectiveDay(r)
	if err != nil {
		return err
	}
	changed, err := f.calendar.apply(day, date, restrictions)
	if err != nil {
		return err
	}
	for _, act := range changed {
		f.decisions.Log(map[string]any{
			"event":    "restriction_changed",
			"policy":   string(KindFixed),
			"day":      day,
			"activity": act,
			"fraction": restrictions[act].RemainingFraction,
		})
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
