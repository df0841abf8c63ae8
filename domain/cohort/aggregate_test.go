package cohort

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"cohortstat/domain/core"
)

func day(d int) time.Time {
	return time.Date(2020, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildAggregatesGroupsAndSorts(t *testing.T) {
	records := []VisitRecord{
		{PatientID: "a", VisitDate: day(10), PainScore: 2, AgeAtIncident: math.NaN()},
		{PatientID: "b", VisitDate: day(3), PainScore: 1, AgeAtIncident: 44},
		{PatientID: "a", VisitDate: day(1), PainScore: 3, AgeAtIncident: 31},
		{PatientID: "a", VisitDate: day(5), PainScore: 2, AgeAtIncident: math.NaN()},
	}

	aggs, err := BuildAggregates(records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(aggs) != 2 {
		t.Fatalf("expected 2 patients, got %d", len(aggs))
	}

	a := aggs["a"]
	if a.CallCount != 3 {
		t.Errorf("call count = %d, want 3", a.CallCount)
	}
	if a.DurationDays != 9 {
		t.Errorf("duration = %d days, want 9", a.DurationDays)
	}
	for i := 1; i < len(a.Visits); i++ {
		if a.Visits[i].VisitDate.Before(a.Visits[i-1].VisitDate) {
			t.Fatal("visits not in chronological order")
		}
	}
	if a.Age != 31 {
		t.Errorf("first recorded age = %v, want 31 (from earliest visit carrying one)", a.Age)
	}

	b := aggs["b"]
	if b.DurationDays != 0 {
		t.Errorf("single-visit duration = %d, want 0", b.DurationDays)
	}
}

func TestBuildAggregatesFirstNonMissing(t *testing.T) {
	records := []VisitRecord{
		{PatientID: "p", VisitDate: day(1), AgeAtIncident: math.NaN(), Gender: GenderUnknown, RiskFactor: RiskUnknown, NBEOutcome: BinaryMissing},
		{PatientID: "p", VisitDate: day(2), AgeAtIncident: 52, Gender: GenderFemale, RiskFactor: RiskPresent, NBEOutcome: BinaryYes},
		{PatientID: "p", VisitDate: day(3), AgeAtIncident: 53, Gender: GenderMale, RiskFactor: RiskAbsent, NBEOutcome: BinaryNo},
	}

	aggs, err := BuildAggregates(records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := aggs["p"]
	if p.Age != 52 {
		t.Errorf("age = %v, want first non-missing 52", p.Age)
	}
	if p.Gender != GenderFemale {
		t.Errorf("gender = %q, want first non-missing %q", p.Gender, GenderFemale)
	}
	if p.RiskFactor != RiskPresent {
		t.Errorf("risk = %v, want first non-missing present", p.RiskFactor)
	}
	if p.NBEOutcome != BinaryYes {
		t.Errorf("outcome = %v, want first non-missing yes", p.NBEOutcome)
	}
}

func TestBuildAggregatesMalformed(t *testing.T) {
	_, err := BuildAggregates([]VisitRecord{{VisitDate: day(1)}})
	if !errors.Is(err, core.ErrMalformedRecord) {
		t.Errorf("missing patient_id: got %v, want ErrMalformedRecord", err)
	}

	_, err = BuildAggregates([]VisitRecord{{PatientID: "x"}})
	if !errors.Is(err, core.ErrMalformedRecord) {
		t.Errorf("missing visit_date: got %v, want ErrMalformedRecord", err)
	}
}

func TestBuildAggregatesIdempotent(t *testing.T) {
	records := []VisitRecord{
		{PatientID: "a", VisitDate: day(2), StatusP: StatusImproved, StatusFL: StatusMissing, AgeAtIncident: 40},
		{PatientID: "a", VisitDate: day(2), StatusP: StatusUnchanged, StatusFL: StatusMissing, AgeAtIncident: math.NaN()},
		{PatientID: "a", VisitDate: day(1), StatusP: StatusImproved, StatusFL: StatusImproved, AgeAtIncident: math.NaN()},
	}

	first, err := BuildAggregates(records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := BuildAggregates(records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first["a"].Visits, second["a"].Visits) {
		t.Error("rebuilding the aggregate changed the visit ordering")
	}
	if first["a"].HealingGroup != second["a"].HealingGroup {
		t.Error("rebuilding the aggregate changed the healing group")
	}
}

func TestSortedIDsDeterministic(t *testing.T) {
	records := []VisitRecord{
		{PatientID: "c", VisitDate: day(1)},
		{PatientID: "a", VisitDate: day(1)},
		{PatientID: "b", VisitDate: day(1)},
	}
	aggs, err := BuildAggregates(records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []core.PatientID{"a", "b", "c"}
	for i := 0; i < 10; i++ {
		if got := SortedIDs(aggs); !reflect.DeepEqual(got, want) {
			t.Fatalf("sorted ids = %v, want %v", got, want)
		}
	}
}
