// Package testkit generates synthetic visit cohorts for tests. All
// generation is seeded so fixtures are reproducible across runs.
package testkit

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"cohortstat/domain/cohort"
	"cohortstat/domain/core"
)

// Kit builds deterministic synthetic cohorts.
type Kit struct {
	rng *rand.Rand
}

// New creates a kit seeded for reproducible fixtures.
func New(seed int64) *Kit {
	return &Kit{rng: rand.New(rand.NewSource(seed))}
}

// PatientSpec controls one synthetic patient's trajectory.
type PatientSpec struct {
	ID         string
	Visits     int
	Statuses   []cohort.StatusCode // StatusP per visit, cycled
	StatusesFL []cohort.StatusCode // StatusFL per visit; mirrors Statuses when empty
	Gender     cohort.Gender
	Age        float64
	Risk       cohort.RiskState
	NBE        cohort.Binary
	SpanDays   int // date distance between first and last visit
}

// Build expands the specs into visit records with evenly spaced dates.
func (k *Kit) Build(specs []PatientSpec) []cohort.VisitRecord {
	var records []cohort.VisitRecord
	base := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)

	for _, spec := range specs {
		visits := spec.Visits
		if visits < 1 {
			visits = 1
		}
		step := 0
		if visits > 1 {
			step = spec.SpanDays / (visits - 1)
		}
		for i := 0; i < visits; i++ {
			status := cohort.StatusMissing
			if len(spec.Statuses) > 0 {
				status = spec.Statuses[i%len(spec.Statuses)]
			}
			statusFL := status
			if len(spec.StatusesFL) > 0 {
				statusFL = spec.StatusesFL[i%len(spec.StatusesFL)]
			}
			records = append(records, cohort.VisitRecord{
				PatientID:     core.PatientID(spec.ID),
				VisitDate:     base.AddDate(0, 0, i*step),
				PainScore:     k.score(),
				FunctionScore: k.score(),
				StatusP:       status,
				StatusFL:      statusFL,
				RiskFactor:    spec.Risk,
				Gender:        spec.Gender,
				AgeAtIncident: spec.Age,
				NBEOutcome:    spec.NBE,
			})
		}
	}
	return records
}

// Cohort generates n fully observed patients with randomized but
// seeded attributes, suitable for regression and comparison tests.
func (k *Kit) Cohort(n int) []cohort.VisitRecord {
	specs := make([]PatientSpec, 0, n)
	statusPool := [][]cohort.StatusCode{
		{cohort.StatusImproved},
		{cohort.StatusImproved, cohort.StatusUnchanged},
		{cohort.StatusUnchanged, cohort.StatusWorsened},
	}

	for i := 0; i < n; i++ {
		gender := cohort.GenderFemale
		if k.rng.Float64() < 0.5 {
			gender = cohort.GenderMale
		}
		risk := cohort.RiskAbsent
		if k.rng.Float64() < 0.3 {
			risk = cohort.RiskPresent
		}
		nbe := cohort.BinaryNo
		if k.rng.Float64() < 0.5 {
			nbe = cohort.BinaryYes
		}
		specs = append(specs, PatientSpec{
			ID:         fmt.Sprintf("pat-%03d", i),
			Visits:     2 + k.rng.Intn(4),
			Statuses:   statusPool[k.rng.Intn(len(statusPool))],
			StatusesFL: statusPool[k.rng.Intn(len(statusPool))],
			Gender:     gender,
			Age:        k.age(),
			Risk:       risk,
			NBE:        nbe,
			SpanDays:   14 + k.rng.Intn(120),
		})
	}
	return k.Build(specs)
}

func (k *Kit) score() float64 {
	return float64(k.rng.Intn(5))
}

func (k *Kit) age() float64 {
	age := 45 + 15*k.normFloat()
	return math.Max(18, math.Min(90, math.Round(age)))
}

func (k *Kit) normFloat() float64 {
	return k.rng.NormFloat64()
}
