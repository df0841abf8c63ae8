package stats

import (
	"time"

	"cohortstat/domain/core"
)

// GroupCount pairs a healing-group label with its patient count.
type GroupCount struct {
	Group string `json:"group"`
	Count int    `json:"count"`
}

// RiskAuditResult summarizes the per-patient consistency of recorded
// risk factors across repeated visits.
type RiskAuditResult struct {
	PatientsWithRisk     int      `json:"patients_with_risk"`
	PatientsWithoutRisk  int      `json:"patients_without_risk"`
	PatientsUnknown      int      `json:"patients_unknown"`
	InconsistentCount    int      `json:"inconsistent_count"` // both present and absent recorded
	InconsistentPatients []string `json:"inconsistent_patients,omitempty"`
}

// AnalysisReport is the full structured output of one pipeline run. It
// carries every test result, the exclusion cascades behind them, and a
// fingerprint tying the numbers to the exact cohort and parameters.
type AnalysisReport struct {
	RunID       core.RunID   `json:"run_id"`
	Fingerprint core.RunHash `json:"fingerprint"`
	GeneratedAt time.Time    `json:"generated_at"`

	TotalPatients  int          `json:"total_patients"`
	GroupCounts    []GroupCount `json:"group_counts"`
	Unclassifiable int          `json:"unclassifiable"`

	Summaries     []SummaryStats        `json:"summaries"`
	GenderBalance *ProportionTestResult `json:"gender_balance,omitempty"`
	AgeNormality  *NormalityTestResult  `json:"age_normality,omitempty"`

	GroupComparisons []AnovaResult       `json:"group_comparisons,omitempty"`
	GenderByGroup    *IndependenceResult `json:"gender_by_group,omitempty"`

	Correlations []SpearmanResult `json:"correlations,omitempty"`

	Models []LogisticFitResult `json:"models,omitempty"`

	RiskAudit *RiskAuditResult `json:"risk_audit,omitempty"`

	Ledgers map[string]*ExclusionLedger `json:"ledgers"`
	Skipped []SkipReason                `json:"skipped,omitempty"`
}
