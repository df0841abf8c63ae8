package cohort

import (
	"math"
	"sort"

	"cohortstat/domain/core"
)

// BuildAggregates groups visit records by patient, orders each patient's
// visits chronologically, and derives the per-patient scalars. It is a
// pure function of its input: the same records always produce the same
// aggregates, and the input slice is never modified.
//
// Returns core.ErrMalformedRecord if any record lacks a patient ID or a
// visit date; such records cannot be grouped or ordered and abort the run.
func BuildAggregates(records []VisitRecord) (map[core.PatientID]*PatientAggregate, error) {
	for i, rec := range records {
		if rec.PatientID == "" {
			return nil, core.NewMalformedRecordError(i, "missing patient_id")
		}
		if rec.VisitDate.IsZero() {
			return nil, core.NewMalformedRecordError(i, "missing visit_date")
		}
	}

	grouped := make(map[core.PatientID][]VisitRecord)
	for _, rec := range records {
		grouped[rec.PatientID] = append(grouped[rec.PatientID], rec)
	}

	aggregates := make(map[core.PatientID]*PatientAggregate, len(grouped))
	for pid, visits := range grouped {
		sorted := make([]VisitRecord, len(visits))
		copy(sorted, visits)
		// Stable sort keeps ingestion order for same-day visits, which makes
		// rebuilding the aggregate idempotent for tied dates.
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].VisitDate.Before(sorted[j].VisitDate)
		})

		agg := &PatientAggregate{
			PatientID:    pid,
			Visits:       sorted,
			CallCount:    len(sorted),
			DurationDays: durationDays(sorted),
			Age:          firstAge(sorted),
			Gender:       firstGender(sorted),
			RiskFactor:   firstRisk(sorted),
			NBEOutcome:   firstOutcome(sorted),
		}
		agg.HealingGroup = Classify(sorted)
		aggregates[pid] = agg
	}

	return aggregates, nil
}

// SortedIDs returns the aggregate keys in deterministic order. Every
// iteration over the cohort goes through this so that map ordering never
// leaks into results.
func SortedIDs(aggregates map[core.PatientID]*PatientAggregate) []core.PatientID {
	ids := make([]core.PatientID, 0, len(aggregates))
	for id := range aggregates {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func durationDays(visits []VisitRecord) int {
	if len(visits) < 2 {
		return 0
	}
	span := visits[len(visits)-1].VisitDate.Sub(visits[0].VisitDate)
	return int(span.Hours() / 24)
}

func firstAge(visits []VisitRecord) float64 {
	for _, v := range visits {
		if !math.IsNaN(v.AgeAtIncident) {
			return v.AgeAtIncident
		}
	}
	return math.NaN()
}

func firstGender(visits []VisitRecord) Gender {
	for _, v := range visits {
		if !v.Gender.IsMissing() {
			return v.Gender
		}
	}
	return GenderUnknown
}

func firstRisk(visits []VisitRecord) RiskState {
	for _, v := range visits {
		if v.RiskFactor != RiskUnknown {
			return v.RiskFactor
		}
	}
	return RiskUnknown
}

func firstOutcome(visits []VisitRecord) Binary {
	for _, v := range visits {
		if !v.NBEOutcome.IsMissing() {
			return v.NBEOutcome
		}
	}
	return BinaryMissing
}
