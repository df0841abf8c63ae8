package cohort

import (
	"time"

	"cohortstat/domain/core"
)

// StatusCode is the per-visit ordinal clinical status for pain or function.
// Severity increases as the numeric code decreases: improved is the best
// outcome, worsened the worst.
type StatusCode int

const (
	StatusMissing   StatusCode = -1 // field absent on this visit
	StatusWorsened  StatusCode = 0
	StatusUnchanged StatusCode = 1
	StatusImproved  StatusCode = 2
)

// IsMissing reports whether the status field was absent on the visit.
func (s StatusCode) IsMissing() bool {
	return s == StatusMissing
}

// Valid reports whether s is one of the recognized observed codes.
func (s StatusCode) Valid() bool {
	return s == StatusWorsened || s == StatusUnchanged || s == StatusImproved
}

func (s StatusCode) String() string {
	switch s {
	case StatusWorsened:
		return "worsened"
	case StatusUnchanged:
		return "unchanged"
	case StatusImproved:
		return "improved"
	default:
		return "missing"
	}
}

// RiskState is the tri-state risk factor recorded on a visit.
type RiskState int

const (
	RiskUnknown RiskState = iota
	RiskAbsent
	RiskPresent
)

func (r RiskState) String() string {
	switch r {
	case RiskAbsent:
		return "absent"
	case RiskPresent:
		return "present"
	default:
		return "unknown"
	}
}

// Gender is the recorded patient gender category.
type Gender string

const (
	GenderUnknown Gender = ""
	GenderMale    Gender = "m"
	GenderFemale  Gender = "w"
)

// IsMissing reports whether no gender was recorded.
func (g Gender) IsMissing() bool {
	return g == GenderUnknown
}

// Binary is a nullable binary value used for the NBE outcome.
type Binary int

const (
	BinaryMissing Binary = -1
	BinaryNo      Binary = 0
	BinaryYes     Binary = 1
)

// IsMissing reports whether the value was absent.
func (b Binary) IsMissing() bool {
	return b == BinaryMissing
}

// VisitRecord is a single clinical contact for a patient. Records are
// immutable once ingested; missing fields carry their sentinel values
// rather than zero values.
type VisitRecord struct {
	PatientID     core.PatientID `json:"patient_id"`
	VisitDate     time.Time      `json:"visit_date"`
	PainScore     float64        `json:"pain_score"`      // P, 0-4; NaN when absent
	FunctionScore float64        `json:"function_score"`  // FLScore, 0-4; NaN when absent
	StatusP       StatusCode     `json:"status_p"`        // pain status
	StatusFL      StatusCode     `json:"status_fl"`       // function limitation status
	RiskFactor    RiskState      `json:"risk_factor"`     // tri-state
	Gender        Gender         `json:"gender"`          // empty when absent
	AgeAtIncident float64        `json:"age_at_incident"` // NaN when absent
	NBEOutcome    Binary         `json:"nbe_outcome"`     // treatment-recommendation outcome
}

// HealingGroup is the trajectory classification of a patient's whole
// visit sequence. Classifiable groups carry an explicit ordinal code
// used by the correlation engine: 1 < 2 < 3 by increasing severity.
type HealingGroup int

const (
	GroupUnclassifiable    HealingGroup = 0
	GroupWithoutStagnation HealingGroup = 1
	GroupWithStagnation    HealingGroup = 2
	GroupWithDeterioration HealingGroup = 3
)

// Classifiable reports whether the patient belongs to one of the three
// usable healing groups.
func (g HealingGroup) Classifiable() bool {
	return g >= GroupWithoutStagnation && g <= GroupWithDeterioration
}

// OrdinalCode returns the monotone severity encoding used for rank
// correlation, or 0 for unclassifiable patients.
func (g HealingGroup) OrdinalCode() int {
	if !g.Classifiable() {
		return 0
	}
	return int(g)
}

func (g HealingGroup) String() string {
	switch g {
	case GroupWithoutStagnation:
		return "WithoutStagnation"
	case GroupWithStagnation:
		return "WithStagnation"
	case GroupWithDeterioration:
		return "WithDeterioration"
	default:
		return "Unclassifiable"
	}
}

// HealingGroups lists the classifiable groups in ordinal order.
func HealingGroups() []HealingGroup {
	return []HealingGroup{GroupWithoutStagnation, GroupWithStagnation, GroupWithDeterioration}
}

// PatientAggregate is the derived per-patient view over all of the
// patient's visits. It is rebuilt on every run and never mutated after
// construction.
type PatientAggregate struct {
	PatientID    core.PatientID `json:"patient_id"`
	Visits       []VisitRecord  `json:"visits"` // ascending by visit date
	CallCount    int            `json:"call_count"`
	DurationDays int            `json:"duration_days"` // last minus first visit date; 0 for a single visit
	HealingGroup HealingGroup   `json:"healing_group"`

	// First non-missing value across the visit sequence.
	Age        float64   `json:"age"` // NaN when never recorded
	Gender     Gender    `json:"gender"`
	RiskFactor RiskState `json:"risk_factor"`
	NBEOutcome Binary    `json:"nbe_outcome"`
}

// FirstVisit returns the chronologically first visit. Callers must not
// invoke it on an aggregate with zero visits; the aggregator never
// produces one.
func (p *PatientAggregate) FirstVisit() VisitRecord {
	return p.Visits[0]
}

// LastVisit returns the chronologically last visit.
func (p *PatientAggregate) LastVisit() VisitRecord {
	return p.Visits[len(p.Visits)-1]
}
