// Package contact implements the transmission step: when a person leaves a
// container, a few co-occupants are sampled and each relevant pair may
// transmit the infection.
package contact

import (
	"fmt"
	"math"
	"strings"

	"github.com/nvandessel/episim/internal/constants"
	"github.com/nvandessel/episim/internal/models"
	"github.com/nvandessel/episim/internal/policy"
)

// Params configures the transmission model.
type Params struct {
	// Calibration scales every infection probability.
	Calibration float64

	// MaxContacts is the number of draws per departure.
	MaxContacts int

	// Intensities maps activity parameter names to contact intensity.
	// Vehicles use the "pt" entry.
	Intensities map[string]float64

	// LeisureTraceProbability is the chance a leisure contact is traceable.
	LeisureTraceProbability float64
}

// DefaultParams returns the reference calibration without intensities.
func DefaultParams() Params {
	return Params{
		Calibration:             constants.DefaultCalibrationParameter,
		MaxContacts:             constants.MaxContacts,
		Intensities:             map[string]float64{},
		LeisureTraceProbability: constants.LeisureTraceProbability,
	}
}

// Validate checks value ranges.
func (p Params) Validate() error {
	if p.Calibration < 0 {
		return fmt.Errorf("calibration parameter must be non-negative, got %v", p.Calibration)
	}
	if p.MaxContacts < 0 {
		return fmt.Errorf("max contacts must be non-negative, got %d", p.MaxContacts)
	}
	if p.LeisureTraceProbability < 0 || p.LeisureTraceProbability > 1 {
		return fmt.Errorf("leisure trace probability must be in [0, 1], got %v", p.LeisureTraceProbability)
	}
	for name, v := range p.Intensities {
		if v < 0 {
			return fmt.Errorf("contact intensity of %q must be non-negative, got %v", name, v)
		}
	}
	return nil
}

// Resolve maps a raw activity type to a configured parameter name: the
// exact name if configured, otherwise the longest configured prefix
// ("work_8h" resolves to "work").
func Resolve(activity string, params map[string]float64) (string, bool) {
	if _, ok := params[activity]; ok {
		return activity, true
	}
	best := ""
	for name := range params {
		if strings.HasPrefix(activity, name) && len(name) > len(best) {
			best = name
		}
	}
	return best, best != ""
}

// Probability returns 1 - exp(-calibration * intensity * jointTime * modifier).
func Probability(calibration, intensity, jointTime, modifier float64) float64 {
	return 1 - math.Exp(-calibration*intensity*jointTime*modifier)
}

// ImmunityModel adjusts the infection probability for a pair. It is the
// extension point for strain- and immunity-dependent susceptibility.
type ImmunityModel interface {
	Modifier(target, source *models.Person) float64
}

// NoImmunity leaves probabilities unchanged.
type NoImmunity struct{}

func (NoImmunity) Modifier(_, _ *models.Person) float64 { return 1 }

// activityInfo is the resolved configuration of one interned activity.
type activityInfo struct {
	param       string
	intensity   float64
	restriction *policy.Restriction
}

func (a activityInfo) is(prefix string) bool {
	return strings.HasPrefix(a.param, prefix)
}
