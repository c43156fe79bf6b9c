package models

import "fmt"

// DiseaseStatus is the disease state of a person.
type DiseaseStatus uint8

const (
	Susceptible DiseaseStatus = iota
	InfectedButNotContagious
	Contagious
	SeriouslySick
	Critical
	Recovered
)

var diseaseStatusNames = [...]string{
	Susceptible:              "susceptible",
	InfectedButNotContagious: "infectedButNotContagious",
	Contagious:               "contagious",
	SeriouslySick:            "seriouslySick",
	Critical:                 "critical",
	Recovered:                "recovered",
}

// AllDiseaseStatuses lists every disease status in progression order.
var AllDiseaseStatuses = []DiseaseStatus{
	Susceptible, InfectedButNotContagious, Contagious, SeriouslySick, Critical, Recovered,
}

func (s DiseaseStatus) String() string {
	if int(s) < len(diseaseStatusNames) {
		return diseaseStatusNames[s]
	}
	return fmt.Sprintf("DiseaseStatus(%d)", s)
}

// Active reports whether the status belongs to an ongoing infection.
func (s DiseaseStatus) Active() bool {
	return s != Susceptible && s != Recovered
}

// ParseDiseaseStatus is the inverse of DiseaseStatus.String.
func ParseDiseaseStatus(s string) (DiseaseStatus, error) {
	for i, name := range diseaseStatusNames {
		if name == s {
			return DiseaseStatus(i), nil
		}
	}
	return 0, fmt.Errorf("unknown disease status %q", s)
}

// QuarantineStatus is the quarantine state of a person.
type QuarantineStatus uint8

const (
	QuarantineNone QuarantineStatus = iota
	// QuarantineFull removes the person from every container's dynamics.
	QuarantineFull
	// QuarantineAtHome restricts the person to home activities.
	QuarantineAtHome
)

var quarantineStatusNames = [...]string{
	QuarantineNone:   "no",
	QuarantineFull:   "full",
	QuarantineAtHome: "atHome",
}

func (q QuarantineStatus) String() string {
	if int(q) < len(quarantineStatusNames) {
		return quarantineStatusNames[q]
	}
	return fmt.Sprintf("QuarantineStatus(%d)", q)
}

// ParseQuarantineStatus is the inverse of QuarantineStatus.String.
func ParseQuarantineStatus(s string) (QuarantineStatus, error) {
	for i, name := range quarantineStatusNames {
		if name == s {
			return QuarantineStatus(i), nil
		}
	}
	return 0, fmt.Errorf("unknown quarantine status %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (q QuarantineStatus) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (q *QuarantineStatus) UnmarshalText(b []byte) error {
	v, err := ParseQuarantineStatus(string(b))
	if err != nil {
		return err
	}
	*q = v
	return nil
}

// TestStatus is the result of a person's latest test.
type TestStatus uint8

const (
	TestUntested TestStatus = iota
	TestPositive
	TestNegative
)

var testStatusNames = [...]string{
	TestUntested: "untested",
	TestPositive: "positive",
	TestNegative: "negative",
}

func (s TestStatus) String() string {
	if int(s) < len(testStatusNames) {
		return testStatusNames[s]
	}
	return fmt.Sprintf("TestStatus(%d)", s)
}
