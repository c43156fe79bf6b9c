// Package constants provides named constants used throughout the episim codebase.
// This centralizes magic numbers of the disease model and the replay clock.
package constants

// Replay clock constants
const (
	// SecondsPerDay is the length of one simulated day. Event timestamps are
	// clamped to this value before being shifted by the iteration offset.
	SecondsPerDay = 86400.0

	// DaysPerWeek is the number of distinct weekday event streams.
	DaysPerWeek = 7
)

// Contact model constants
const (
	// MaxContacts is the number of with-replacement draws from a container's
	// occupants when a person leaves it.
	MaxContacts = 3

	// DefaultCalibrationParameter scales every infection probability.
	DefaultCalibrationParameter = 1e-5

	// LeisureTraceProbability is the chance that a leisure contact can later be
	// traced. Home and work contacts are always traceable.
	LeisureTraceProbability = 0.8

	// PublicTransportActivity is the activity parameter used for vehicles.
	PublicTransportActivity = "pt"

	// QuarantineHomeActivity, when configured, replaces the home contact
	// intensity of persons quarantined at home.
	QuarantineHomeActivity = "quarantine_home"
)

// Disease progression defaults (days since infection)
const (
	IncubationDays           = 4
	DetectionDay             = 6
	DetectionProbability     = 0.2
	SeriouslySickDay         = 10
	SeriouslySickProbability = 0.045
	RecoveryDay              = 16
	CriticalDay              = 11
	CriticalProbability      = 0.25
	SeriouslySickRecoveryDay = 23
	CriticalRecoveryDay      = 20

	// QuarantineDays is how long a quarantine lasts before it is lifted.
	QuarantineDays = 14
)

// Policy constants
const (
	// Per100k normalizes cumulative counts to incidence per 100,000 persons.
	Per100k = 100_000.0

	// IncidenceWindowDays is the look-back used to turn cumulative counts into
	// a weekly incidence.
	IncidenceWindowDays = 7

	// AdaptiveHistoryDays is the minimum history before an adaptive policy
	// acts, and the length of its trailing evaluation window.
	AdaptiveHistoryDays = 14

	// FreightActivity is kept fully closed by the ICU-dependent policy.
	FreightActivity = "freight"

	// HomeActivity is the activity that out-of-home restrictions never touch.
	HomeActivity = "home"
)

// Report constants
const (
	// TotalReportKey names the unstratified daily report.
	TotalReportKey = "total"

	// DateLayout is the calendar format used in reports, calendars and the store.
	DateLayout = "2006-01-02"
)
