package policy

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nvandessel/episim/internal/constants"
	"github.com/nvandessel/episim/internal/report"
)

// FaceMask is the kind of mask an activity requires.
type FaceMask uint8

const (
	MaskNone FaceMask = iota
	MaskCloth
	MaskSurgical
	MaskN95
)

var faceMasks = [...]struct {
	name     string
	shedding float64
	intake   float64
}{
	MaskNone:     {"none", 1, 1},
	MaskCloth:    {"cloth", 0.6, 0.5},
	MaskSurgical: {"surgical", 0.3, 0.2},
	MaskN95:      {"n95", 0.15, 0.025},
}

func (m FaceMask) String() string {
	if int(m) < len(faceMasks) {
		return faceMasks[m].name
	}
	return fmt.Sprintf("FaceMask(%d)", m)
}

// Shedding is the factor applied to an infector wearing the mask.
func (m FaceMask) Shedding() float64 {
	if int(m) < len(faceMasks) {
		return faceMasks[m].shedding
	}
	return 1
}

// Intake is the factor applied to a target wearing the mask.
func (m FaceMask) Intake() float64 {
	if int(m) < len(faceMasks) {
		return faceMasks[m].intake
	}
	return 1
}

// ParseFaceMask is the case-insensitive inverse of FaceMask.String.
func ParseFaceMask(s string) (FaceMask, error) {
	for i, fm := range faceMasks {
		if strings.EqualFold(fm.name, s) {
			return FaceMask(i), nil
		}
	}
	return 0, fmt.Errorf("unknown face mask %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m FaceMask) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *FaceMask) UnmarshalText(b []byte) error {
	v, err := ParseFaceMask(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Restriction is the per-activity rule in effect on a day.
type Restriction struct {
	// RemainingFraction is the probability that a person attends the
	// activity at all. 1 means unrestricted, 0 means closed.
	RemainingFraction float64 `json:"fraction" yaml:"fraction"`

	// Exposure scales the infection probability of contacts in the activity.
	Exposure float64 `json:"exposure" yaml:"exposure"`

	// Mask is the mask persons are asked to wear.
	Mask FaceMask `json:"mask" yaml:"mask"`

	// MaskCompliance is the share of persons actually wearing Mask.
	MaskCompliance float64 `json:"compliance" yaml:"compliance"`
}

// None returns an unrestricted activity.
func None() *Restriction {
	return &Restriction{RemainingFraction: 1, Exposure: 1}
}

// Open lifts the attendance restriction.
func (r *Restriction) Open() {
	r.RemainingFraction = 1
}

// Shutdown closes the activity completely.
func (r *Restriction) Shutdown() {
	r.RemainingFraction = 0
}

// Apply overwrites the fields present in p.
func (r *Restriction) Apply(p Patch) {
	if p.RemainingFraction != nil {
		r.RemainingFraction = *p.RemainingFraction
	}
	if p.Exposure != nil {
		r.Exposure = *p.Exposure
	}
	if p.Mask != nil {
		r.Mask = *p.Mask
	}
	if p.MaskCompliance != nil {
		r.MaskCompliance = *p.MaskCompliance
	}
}

// Patch is a partial restriction update. Nil fields are left untouched.
type Patch struct {
	RemainingFraction *float64  `json:"fraction,omitempty" yaml:"fraction,omitempty"`
	Exposure          *float64  `json:"exposure,omitempty" yaml:"exposure,omitempty"`
	Mask              *FaceMask `json:"mask,omitempty" yaml:"mask,omitempty"`
	MaskCompliance    *float64  `json:"compliance,omitempty" yaml:"compliance,omitempty"`
}

// Fraction returns a patch that only sets the remaining fraction.
func Fraction(f float64) Patch {
	return Patch{RemainingFraction: &f}
}

// WithMask returns a copy of p that also requires a mask.
func (p Patch) WithMask(m FaceMask, compliance float64) Patch {
	p.Mask = &m
	p.MaskCompliance = &compliance
	return p
}

// Validate checks value ranges.
func (p Patch) Validate() error {
	if f := p.RemainingFraction; f != nil && (*f < 0 || *f > 1) {
		return fmt.Errorf("fraction must be in [0, 1], got %v", *f)
	}
	if e := p.Exposure; e != nil && *e < 0 {
		return fmt.Errorf("exposure must be non-negative, got %v", *e)
	}
	if c := p.MaskCompliance; c != nil && (*c < 0 || *c > 1) {
		return fmt.Errorf("compliance must be in [0, 1], got %v", *c)
	}
	return nil
}

// Restrictions maps activity parameter names to their current rule.
// Policies mutate the pointed-to values in place.
type Restrictions map[string]*Restriction

// NewRestrictions creates unrestricted entries for the given activities.
func NewRestrictions(activities ...string) Restrictions {
	r := make(Restrictions, len(activities))
	for _, a := range activities {
		r[a] = None()
	}
	return r
}

// Activities returns the activity names in sorted order.
func (r Restrictions) Activities() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Records flattens the restrictions for reporting.
func (r Restrictions) Records(day int, date time.Time) []report.RestrictionRecord {
	ds := date.Format(constants.DateLayout)
	out := make([]report.RestrictionRecord, 0, len(r))
	for _, name := range r.Activities() {
		res := r[name]
		out = append(out, report.RestrictionRecord{
			Day:               day,
			Date:              ds,
			Activity:          name,
			RemainingFraction: res.RemainingFraction,
			Exposure:          res.Exposure,
			Mask:              res.Mask.String(),
			MaskCompliance:    res.MaskCompliance,
		})
	}
	return out
}
