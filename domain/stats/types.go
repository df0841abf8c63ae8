package stats

import (
	"fmt"
)

// ============================================================================
// RESULT PRIMITIVES
// ============================================================================

// ConfidenceInterval is a two-sided interval reported as (low, high).
type ConfidenceInterval struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contains reports whether v lies inside the interval.
func (ci ConfidenceInterval) Contains(v float64) bool {
	return v >= ci.Low && v <= ci.High
}

// SummaryStats holds the descriptive summary of one numeric column.
// Missing entries are excluded from every statistic; ValidCount and
// MissingCount record the split so consumers can audit coverage.
type SummaryStats struct {
	Variable     string  `json:"variable"`
	ValidCount   int     `json:"valid_count"`
	MissingCount int     `json:"missing_count"`
	MissingRate  float64 `json:"missing_rate"`
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"std_dev"`
	Median       float64 `json:"median"`
	Q1           float64 `json:"q1"`
	Q3           float64 `json:"q3"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
}

// ProportionTestResult is a chi-square goodness-of-fit result.
type ProportionTestResult struct {
	Statistic        float64 `json:"statistic"`
	DegreesOfFreedom int     `json:"degrees_of_freedom"`
	PValue           float64 `json:"p_value"`
	SampleSize       int     `json:"sample_size"`
}

// NormalityTestResult is a Shapiro-Wilk result.
type NormalityTestResult struct {
	WStatistic float64 `json:"w_statistic"`
	PValue     float64 `json:"p_value"`
	SampleSize int     `json:"sample_size"`
	Normal     bool    `json:"normal"` // p >= 0.05
}

// GroupSummary carries the per-group descriptives reported alongside a
// comparison.
type GroupSummary struct {
	Group  string  `json:"group"`
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Median float64 `json:"median"`
}

// AnovaResult is the omnibus one-way F-test across healing groups.
// Pairwise comparisons are populated only when the omnibus p-value falls
// below the gate threshold.
type AnovaResult struct {
	Variable    string               `json:"variable"`
	FStatistic  float64              `json:"f_statistic"`
	DFBetween   int                  `json:"df_between"`
	DFWithin    int                  `json:"df_within"`
	PValue      float64              `json:"p_value"`
	Significant bool                 `json:"significant"`
	Groups      []GroupSummary       `json:"groups"`
	Pairwise    []PairwiseComparison `json:"pairwise,omitempty"`
	Alpha       float64              `json:"alpha"`
}

// PairwiseComparison is one post-hoc two-sample test under a
// Bonferroni-corrected threshold.
type PairwiseComparison struct {
	GroupA           string  `json:"group_a"`
	GroupB           string  `json:"group_b"`
	TStatistic       float64 `json:"t_statistic"`
	DegreesOfFreedom float64 `json:"degrees_of_freedom"`
	PValue           float64 `json:"p_value"`
	CorrectedAlpha   float64 `json:"corrected_alpha"`
	Significant      bool    `json:"significant"` // against the corrected threshold
}

// IndependenceResult is a chi-square test of independence over a
// contingency table, with the table retained for auditability.
type IndependenceResult struct {
	Statistic        float64     `json:"statistic"`
	DegreesOfFreedom int         `json:"degrees_of_freedom"`
	PValue           float64     `json:"p_value"`
	SampleSize       int         `json:"sample_size"`
	RowLabels        []string    `json:"row_labels"`
	ColLabels        []string    `json:"col_labels"`
	Observed         [][]float64 `json:"observed"`
}

// SpearmanResult is a rank correlation over paired non-missing
// observations.
type SpearmanResult struct {
	VariableX string  `json:"variable_x"`
	VariableY string  `json:"variable_y"`
	Rho       float64 `json:"rho"`
	PValue    float64 `json:"p_value"`
	NUsed     int     `json:"n_used"`
}

// ============================================================================
// LOGISTIC REGRESSION
// ============================================================================

// PredictorType declares how a predictor column is interpreted by the
// regression engine.
type PredictorType string

const (
	PredictorContinuous PredictorType = "continuous"
	PredictorOrdinal    PredictorType = "ordinal"
	PredictorBinary     PredictorType = "binary"
)

// Predictor names one model term and its type.
type Predictor struct {
	Name string        `json:"name"`
	Type PredictorType `json:"type"`
}

// PredictorEstimate is the per-term output of a logistic fit.
type PredictorEstimate struct {
	Name        string             `json:"name"`
	Coefficient float64            `json:"coefficient"`
	StdErr      float64            `json:"std_err"`
	ZStatistic  float64            `json:"z_statistic"`
	PValue      float64            `json:"p_value"`
	OddsRatio   float64            `json:"odds_ratio"`
	OddsRatioCI ConfidenceInterval `json:"odds_ratio_ci"`
	VIF         float64            `json:"vif"`
	HighVIF     bool               `json:"high_vif"` // VIF >= 5
}

// LogisticFitResult is one fitted model with its diagnostics.
type LogisticFitResult struct {
	ModelName      string              `json:"model_name"`
	Outcome        string              `json:"outcome"`
	SampleSize     int                 `json:"sample_size"`
	EventCount     int                 `json:"event_count"` // outcome = 1
	Intercept      PredictorEstimate   `json:"intercept"`
	Predictors     []PredictorEstimate `json:"predictors"`
	LogLikelihood  float64             `json:"log_likelihood"`
	NullLogLik     float64             `json:"null_log_likelihood"`
	PseudoR2       float64             `json:"pseudo_r2"` // McFadden
	AIC            float64             `json:"aic"`
	Iterations     int                 `json:"iterations"`
	Converged      bool                `json:"converged"`
	OutlierCount   int                 `json:"outlier_count"` // |standardized residual| > 2.5
	OutlierWarning bool                `json:"outlier_warning"`
}

// ============================================================================
// EXCLUSION LEDGER
// ============================================================================

// ExclusionStage records one filter step of complete-case selection.
// Each stage attributes loss to exactly the variable just applied.
type ExclusionStage struct {
	StageName         string `json:"stage_name"`
	Variable          string `json:"variable"`
	PatientsRemaining int    `json:"patients_remaining"`
	PatientsExcluded  int    `json:"patients_excluded"`
}

// ExclusionLedger is the append-only cascade of selection stages for one
// analysis invocation.
type ExclusionLedger struct {
	InitialCount int              `json:"initial_count"`
	Stages       []ExclusionStage `json:"stages"`
}

// FinalCount returns the patients remaining after the last stage.
func (l *ExclusionLedger) FinalCount() int {
	if len(l.Stages) == 0 {
		return l.InitialCount
	}
	return l.Stages[len(l.Stages)-1].PatientsRemaining
}

// TotalExcluded returns the overall loss across all stages without
// double counting; every patient disappears at exactly one stage.
func (l *ExclusionLedger) TotalExcluded() int {
	return l.InitialCount - l.FinalCount()
}

// String renders the cascade for logs.
func (l *ExclusionLedger) String() string {
	out := fmt.Sprintf("n=%d", l.InitialCount)
	for _, s := range l.Stages {
		out += fmt.Sprintf(" -> [%s: -%d] %d", s.Variable, s.PatientsExcluded, s.PatientsRemaining)
	}
	return out
}

// SkipReason explains a test that was not computable on the available
// data. Skips are reported, never silently dropped.
type SkipReason struct {
	TestName string `json:"test_name"`
	Reason   string `json:"reason"`
}
