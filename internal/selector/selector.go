// Package selector implements complete-case selection with an auditable
// exclusion cascade. Downstream tests never check missingness themselves;
// they receive a subset that is already complete for the variables they
// need, plus the ledger describing what was dropped and why.
package selector

import (
	"fmt"
	"math"

	"cohortstat/domain/cohort"
	"cohortstat/domain/core"
	"cohortstat/domain/stats"
	"cohortstat/internal/errors"
)

// MissingFunc reports whether a patient is missing the variable it
// guards.
type MissingFunc func(*cohort.PatientAggregate) bool

// Selector applies variable filters sequentially, attributing each
// patient's loss to exactly one stage.
type Selector struct {
	missing map[string]MissingFunc
}

// New returns a selector with the standard cohort variables registered.
func New() *Selector {
	s := &Selector{missing: make(map[string]MissingFunc)}

	s.Register(VarHealingGroup, func(p *cohort.PatientAggregate) bool {
		return !p.HealingGroup.Classifiable()
	})
	s.Register(VarAge, func(p *cohort.PatientAggregate) bool {
		return math.IsNaN(p.Age)
	})
	s.Register(VarGender, func(p *cohort.PatientAggregate) bool {
		return p.Gender.IsMissing()
	})
	s.Register(VarRiskFactor, func(p *cohort.PatientAggregate) bool {
		return p.RiskFactor == cohort.RiskUnknown
	})
	s.Register(VarNBEOutcome, func(p *cohort.PatientAggregate) bool {
		return p.NBEOutcome.IsMissing()
	})
	s.Register(VarFirstPainScore, func(p *cohort.PatientAggregate) bool {
		return math.IsNaN(p.FirstVisit().PainScore)
	})
	s.Register(VarFirstFunctionScore, func(p *cohort.PatientAggregate) bool {
		return math.IsNaN(p.FirstVisit().FunctionScore)
	})
	s.Register(VarFirstStatusP, func(p *cohort.PatientAggregate) bool {
		return p.FirstVisit().StatusP.IsMissing()
	})
	s.Register(VarFirstStatusFL, func(p *cohort.PatientAggregate) bool {
		return p.FirstVisit().StatusFL.IsMissing()
	})
	s.Register(VarPositiveDuration, func(p *cohort.PatientAggregate) bool {
		return p.DurationDays <= 0
	})

	return s
}

// Standard variable names.
const (
	VarHealingGroup       = "healing_group"
	VarAge                = "age_at_incident"
	VarGender             = "gender"
	VarRiskFactor         = "risk_factor"
	VarNBEOutcome         = "nbe_outcome"
	VarFirstPainScore     = "first_pain_score"
	VarFirstFunctionScore = "first_function_score"
	VarFirstStatusP       = "first_status_p"
	VarFirstStatusFL      = "first_status_fl"
	VarPositiveDuration   = "positive_duration"
)

// Register adds or replaces a variable's missingness predicate.
func (s *Selector) Register(variable string, fn MissingFunc) {
	s.missing[variable] = fn
}

// CompleteCases filters the population to patients with complete data
// for every variable, applying variables in the given order and
// recording per-stage loss. Returns the retained subset in sorted
// patient-ID order alongside the ledger.
//
// Returns core.ErrEmptyCohort when no patient survives the cascade.
func (s *Selector) CompleteCases(stageName string, population map[core.PatientID]*cohort.PatientAggregate, variables []string) ([]*cohort.PatientAggregate, *stats.ExclusionLedger, error) {
	remaining := make([]*cohort.PatientAggregate, 0, len(population))
	for _, id := range cohort.SortedIDs(population) {
		remaining = append(remaining, population[id])
	}

	ledger := &stats.ExclusionLedger{InitialCount: len(remaining)}

	for _, variable := range variables {
		isMissing, ok := s.missing[variable]
		if !ok {
			return nil, nil, errors.New(errors.CodeSelection, fmt.Sprintf("unknown variable %q", variable))
		}

		kept := remaining[:0:0]
		for _, p := range remaining {
			if !isMissing(p) {
				kept = append(kept, p)
			}
		}

		ledger.Stages = append(ledger.Stages, stats.ExclusionStage{
			StageName:         stageName,
			Variable:          variable,
			PatientsRemaining: len(kept),
			PatientsExcluded:  len(remaining) - len(kept),
		})
		remaining = kept
	}

	if len(remaining) == 0 {
		return nil, ledger, core.NewEmptyCohortError(variables)
	}
	return remaining, ledger, nil
}
