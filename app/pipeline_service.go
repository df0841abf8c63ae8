package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"cohortstat/domain/cohort"
	"cohortstat/domain/core"
	"cohortstat/domain/stats"
	"cohortstat/internal"
	"cohortstat/internal/analysis"
	"cohortstat/internal/config"
	"cohortstat/internal/errors"
	"cohortstat/internal/selector"
)

// Variable names as they appear in reports and ledgers.
const (
	varAge          = "age_at_incident"
	varCallCount    = "call_count"
	varDurationDays = "duration_days"
	varPainScore    = "first_pain_score"
	varFuncScore    = "first_function_score"
	varGroupCode    = "healing_group_code"
	outcomeNBE      = "nbe_outcome"
)

// PipelineService orchestrates the full analysis run: aggregation,
// classification, complete-case selection, and the three independent
// test engines.
type PipelineService struct {
	cfg         config.AnalysisConfig
	log         *internal.Logger
	selector    *selector.Selector
	descriptive *analysis.Descriptive
	comparison  *analysis.Comparison
	correlation *analysis.Correlation
	logistic    *analysis.Logistic
}

// RunRequest carries the cleaned records for one invocation.
type RunRequest struct {
	Records []cohort.VisitRecord
	RunID   core.RunID // generated when empty
}

// NewPipelineService creates the orchestrator with all engines wired.
func NewPipelineService(cfg config.AnalysisConfig, logger *internal.Logger) *PipelineService {
	return &PipelineService{
		cfg:         cfg,
		log:         logger.Named("pipeline"),
		selector:    selector.New(),
		descriptive: analysis.NewDescriptive(),
		comparison:  analysis.NewComparison(cfg.Alpha),
		correlation: analysis.NewCorrelation(),
		logistic:    analysis.NewLogistic(cfg.MaxIterations, cfg.OutlierThreshold),
	}
}

// Run executes the whole pipeline over one immutable record set. The
// computation is deterministic: identical input produces an identical
// report apart from RunID and timestamp. Structural errors abort the
// run; data-sufficiency and fitting errors skip the affected test and
// are reported in Skipped.
func (s *PipelineService) Run(ctx context.Context, req RunRequest) (*stats.AnalysisReport, error) {
	aggregates, err := cohort.BuildAggregates(req.Records)
	if err != nil {
		return nil, errors.WithCode(errors.CodeAnalysis, err, "cohort aggregation failed")
	}

	runID := req.RunID
	if core.ID(runID).IsEmpty() {
		runID = core.RunID(core.NewID())
	}

	report := &stats.AnalysisReport{
		RunID:         runID,
		GeneratedAt:   time.Now().UTC(),
		TotalPatients: len(aggregates),
		Ledgers:       make(map[string]*stats.ExclusionLedger),
	}
	report.Fingerprint = s.fingerprint(aggregates)

	ids := cohort.SortedIDs(aggregates)
	s.log.Info("run %s: %d patients from %d records", runID, len(ids), len(req.Records))

	s.countGroups(report, aggregates, ids)
	s.describeCohort(report, aggregates, ids)
	report.RiskAudit = auditRiskFactors(aggregates, ids)

	// The three engines are independent once their subsets exist. Each
	// branch writes only its own report fields and collects ledgers and
	// skips locally; merging happens after the barrier in fixed order so
	// the report is reproducible.
	grp, gctx := errgroup.WithContext(ctx)
	var comparisonOut, correlationOut, regressionOut branchOutput

	grp.Go(func() error {
		comparisonOut = s.runComparisons(gctx, report, aggregates)
		return nil
	})
	grp.Go(func() error {
		correlationOut = s.runCorrelations(gctx, report, aggregates)
		return nil
	})
	grp.Go(func() error {
		regressionOut = s.runRegressions(gctx, report, aggregates)
		return nil
	})
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	for _, out := range []branchOutput{comparisonOut, correlationOut, regressionOut} {
		for name, ledger := range out.ledgers {
			report.Ledgers[name] = ledger
		}
		report.Skipped = append(report.Skipped, out.skips...)
	}

	s.log.Info("run %s complete: %d comparisons, %d correlations, %d models, %d skipped",
		runID, len(report.GroupComparisons), len(report.Correlations), len(report.Models), len(report.Skipped))
	return report, nil
}

func (s *PipelineService) fingerprint(aggregates map[core.PatientID]*cohort.PatientAggregate) core.RunHash {
	ids := make([]string, 0, len(aggregates))
	for id := range aggregates {
		ids = append(ids, id.String())
	}
	cohortHash := core.ComputeCohortHash(ids)
	return core.ComputeRunHash(cohortHash, map[string]interface{}{
		"alpha":             s.cfg.Alpha,
		"min_correlation_n": s.cfg.MinCorrelationN,
		"max_iterations":    s.cfg.MaxIterations,
		"outlier_threshold": s.cfg.OutlierThreshold,
	})
}

func (s *PipelineService) countGroups(report *stats.AnalysisReport, aggregates map[core.PatientID]*cohort.PatientAggregate, ids []core.PatientID) {
	counts := make(map[cohort.HealingGroup]int)
	for _, id := range ids {
		counts[aggregates[id].HealingGroup]++
	}
	for _, g := range cohort.HealingGroups() {
		report.GroupCounts = append(report.GroupCounts, stats.GroupCount{
			Group: g.String(),
			Count: counts[g],
		})
	}
	report.Unclassifiable = counts[cohort.GroupUnclassifiable]
}

// describeCohort produces the column summaries plus the two single
// sample tests: gender balance against a 50:50 split and age normality.
func (s *PipelineService) describeCohort(report *stats.AnalysisReport, aggregates map[core.PatientID]*cohort.PatientAggregate, ids []core.PatientID) {
	ages := make([]float64, 0, len(ids))
	calls := make([]float64, 0, len(ids))
	durations := make([]float64, 0, len(ids))
	pains := make([]float64, 0, len(ids))
	funcs := make([]float64, 0, len(ids))
	males, females := 0.0, 0.0

	for _, id := range ids {
		p := aggregates[id]
		ages = append(ages, p.Age)
		calls = append(calls, float64(p.CallCount))
		durations = append(durations, float64(p.DurationDays))
		pains = append(pains, p.FirstVisit().PainScore)
		funcs = append(funcs, p.FirstVisit().FunctionScore)
		switch p.Gender {
		case cohort.GenderMale:
			males++
		case cohort.GenderFemale:
			females++
		}
	}

	columns := []struct {
		name   string
		values []float64
	}{
		{varAge, ages},
		{varCallCount, calls},
		{varDurationDays, durations},
		{varPainScore, pains},
		{varFuncScore, funcs},
	}
	for _, col := range columns {
		summary, err := s.descriptive.Summarize(col.name, col.values)
		if err != nil {
			report.Skipped = append(report.Skipped, stats.SkipReason{
				TestName: "summary_" + col.name,
				Reason:   err.Error(),
			})
			continue
		}
		report.Summaries = append(report.Summaries, summary)
	}

	if balance, err := s.descriptive.ProportionTest([]float64{males, females}, []float64{0.5, 0.5}); err == nil {
		report.GenderBalance = &balance
	} else {
		report.Skipped = append(report.Skipped, stats.SkipReason{
			TestName: "gender_balance",
			Reason:   err.Error(),
		})
	}

	if normality, err := s.descriptive.NormalityTest(ages); err == nil {
		report.AgeNormality = &normality
	} else {
		report.Skipped = append(report.Skipped, stats.SkipReason{
			TestName: "age_normality",
			Reason:   err.Error(),
		})
	}
}

// branchOutput is the side channel each parallel branch fills in
// isolation.
type branchOutput struct {
	ledgers map[string]*stats.ExclusionLedger
	skips   []stats.SkipReason
}

func newBranchOutput() branchOutput {
	return branchOutput{ledgers: make(map[string]*stats.ExclusionLedger)}
}

// runComparisons covers the continuous variables across healing groups
// plus the gender-by-group independence test.
func (s *PipelineService) runComparisons(ctx context.Context, report *stats.AnalysisReport, aggregates map[core.PatientID]*cohort.PatientAggregate) branchOutput {
	out := newBranchOutput()

	continuous := []struct {
		variable  string
		selection []string
		value     func(*cohort.PatientAggregate) float64
	}{
		{varAge, []string{selector.VarHealingGroup, selector.VarAge}, func(p *cohort.PatientAggregate) float64 { return p.Age }},
		{varCallCount, []string{selector.VarHealingGroup}, func(p *cohort.PatientAggregate) float64 { return float64(p.CallCount) }},
		{varDurationDays, []string{selector.VarHealingGroup}, func(p *cohort.PatientAggregate) float64 { return float64(p.DurationDays) }},
	}

	var results []stats.AnovaResult
	for _, spec := range continuous {
		subset, ledger, err := s.selector.CompleteCases("comparison_"+spec.variable, aggregates, spec.selection)
		out.ledgers["comparison_"+spec.variable] = ledger
		if err != nil {
			out.skips = append(out.skips, stats.SkipReason{TestName: "anova_" + spec.variable, Reason: err.Error()})
			continue
		}

		result, err := s.comparison.CompareContinuous(spec.variable, groupValues(subset, spec.value))
		if err != nil {
			if !core.IsDataSufficiencyError(err) {
				s.log.Warn("anova %s: %v", spec.variable, err)
			}
			out.skips = append(out.skips, stats.SkipReason{TestName: "anova_" + spec.variable, Reason: err.Error()})
			continue
		}
		results = append(results, result)
	}
	report.GroupComparisons = results

	subset, ledger, err := s.selector.CompleteCases("gender_by_group", aggregates,
		[]string{selector.VarHealingGroup, selector.VarGender})
	out.ledgers["gender_by_group"] = ledger
	if err != nil {
		out.skips = append(out.skips, stats.SkipReason{TestName: "gender_by_group", Reason: err.Error()})
		return out
	}

	table := [][]float64{make([]float64, 3), make([]float64, 3)}
	for _, p := range subset {
		col := p.HealingGroup.OrdinalCode() - 1
		if p.Gender == cohort.GenderMale {
			table[0][col]++
		} else {
			table[1][col]++
		}
	}
	groupLabels := make([]string, 0, 3)
	for _, g := range cohort.HealingGroups() {
		groupLabels = append(groupLabels, g.String())
	}
	independence, err := s.comparison.CompareCategorical([]string{"m", "w"}, groupLabels, table)
	if err != nil {
		out.skips = append(out.skips, stats.SkipReason{TestName: "gender_by_group", Reason: err.Error()})
		return out
	}
	report.GenderByGroup = &independence
	return out
}

// runCorrelations covers the two rank correlations: group versus call
// count over all classified patients, and group versus care duration
// restricted to patients with an actual care span.
func (s *PipelineService) runCorrelations(ctx context.Context, report *stats.AnalysisReport, aggregates map[core.PatientID]*cohort.PatientAggregate) branchOutput {
	out := newBranchOutput()
	var results []stats.SpearmanResult

	subset, ledger, err := s.selector.CompleteCases("correlation_calls", aggregates,
		[]string{selector.VarHealingGroup})
	out.ledgers["correlation_calls"] = ledger
	if err != nil {
		out.skips = append(out.skips, stats.SkipReason{TestName: "spearman_group_calls", Reason: err.Error()})
	} else {
		codes, calls := pairedValues(subset, func(p *cohort.PatientAggregate) float64 { return float64(p.CallCount) })
		if result, sErr := s.correlation.Spearman(varGroupCode, varCallCount, codes, calls); sErr != nil {
			out.skips = append(out.skips, stats.SkipReason{TestName: "spearman_group_calls", Reason: sErr.Error()})
		} else {
			results = append(results, result)
		}
	}

	durSubset, durLedger, err := s.selector.CompleteCases("correlation_duration", aggregates,
		[]string{selector.VarHealingGroup, selector.VarPositiveDuration})
	out.ledgers["correlation_duration"] = durLedger
	switch {
	case err != nil:
		out.skips = append(out.skips, stats.SkipReason{TestName: "spearman_group_duration", Reason: err.Error()})
	case len(durSubset) <= s.cfg.MinCorrelationN:
		out.skips = append(out.skips, stats.SkipReason{
			TestName: "spearman_group_duration",
			Reason:   fmt.Sprintf("only %d patients with positive care duration, need more than %d", len(durSubset), s.cfg.MinCorrelationN),
		})
	default:
		codes, durations := pairedValues(durSubset, func(p *cohort.PatientAggregate) float64 { return float64(p.DurationDays) })
		if result, sErr := s.correlation.Spearman(varGroupCode, varDurationDays, codes, durations); sErr != nil {
			out.skips = append(out.skips, stats.SkipReason{TestName: "spearman_group_duration", Reason: sErr.Error()})
		} else {
			results = append(results, result)
		}
	}

	report.Correlations = results
	return out
}

// runRegressions fits the treatment-recommendation model twice: the
// full predictor set and a sensitivity variant without the risk factor.
func (s *PipelineService) runRegressions(ctx context.Context, report *stats.AnalysisReport, aggregates map[core.PatientID]*cohort.PatientAggregate) branchOutput {
	out := newBranchOutput()

	fullPredictors := []stats.Predictor{
		{Name: varPainScore, Type: stats.PredictorContinuous},
		{Name: varFuncScore, Type: stats.PredictorContinuous},
		{Name: "first_status_p", Type: stats.PredictorOrdinal},
		{Name: "first_status_fl", Type: stats.PredictorOrdinal},
		{Name: "gender_male", Type: stats.PredictorBinary},
		{Name: varAge, Type: stats.PredictorOrdinal},
		{Name: "risk_factor", Type: stats.PredictorBinary},
	}

	variants := []struct {
		name       string
		selection  []string
		predictors []stats.Predictor
	}{
		{
			name: "full_model",
			selection: []string{
				selector.VarNBEOutcome, selector.VarFirstPainScore, selector.VarFirstFunctionScore,
				selector.VarFirstStatusP, selector.VarFirstStatusFL, selector.VarGender,
				selector.VarAge, selector.VarRiskFactor,
			},
			predictors: fullPredictors,
		},
		{
			name: "without_risk_factor",
			selection: []string{
				selector.VarNBEOutcome, selector.VarFirstPainScore, selector.VarFirstFunctionScore,
				selector.VarFirstStatusP, selector.VarFirstStatusFL, selector.VarGender,
				selector.VarAge,
			},
			predictors: fullPredictors[:6],
		},
	}

	var models []stats.LogisticFitResult
	for _, variant := range variants {
		subset, ledger, err := s.selector.CompleteCases(variant.name, aggregates, variant.selection)
		out.ledgers[variant.name] = ledger
		if err != nil {
			out.skips = append(out.skips, stats.SkipReason{TestName: variant.name, Reason: err.Error()})
			continue
		}

		design := make([][]float64, len(subset))
		outcome := make([]float64, len(subset))
		for i, p := range subset {
			design[i] = predictorRow(p, variant.predictors)
			outcome[i] = float64(p.NBEOutcome)
		}

		fit, err := s.logistic.Fit(variant.name, outcomeNBE, variant.predictors, design, outcome)
		if err != nil {
			// Fitting failures carry their diagnostic cause; never
			// substituted with a default result.
			s.log.Warn("model %s failed: %v", variant.name, err)
			out.skips = append(out.skips, stats.SkipReason{TestName: variant.name, Reason: err.Error()})
			continue
		}
		models = append(models, fit)
	}
	report.Models = models
	return out
}

// predictorRow encodes one patient's first-visit predictor values.
func predictorRow(p *cohort.PatientAggregate, predictors []stats.Predictor) []float64 {
	first := p.FirstVisit()
	row := make([]float64, 0, len(predictors))
	for _, pred := range predictors {
		switch pred.Name {
		case varPainScore:
			row = append(row, first.PainScore)
		case varFuncScore:
			row = append(row, first.FunctionScore)
		case "first_status_p":
			row = append(row, float64(first.StatusP))
		case "first_status_fl":
			row = append(row, float64(first.StatusFL))
		case "gender_male":
			if p.Gender == cohort.GenderMale {
				row = append(row, 1)
			} else {
				row = append(row, 0)
			}
		case varAge:
			row = append(row, p.Age)
		case "risk_factor":
			if p.RiskFactor == cohort.RiskPresent {
				row = append(row, 1)
			} else {
				row = append(row, 0)
			}
		default:
			row = append(row, math.NaN())
		}
	}
	return row
}

// groupValues splits a classified subset into per-group observation
// slices in ordinal group order.
func groupValues(subset []*cohort.PatientAggregate, value func(*cohort.PatientAggregate) float64) []analysis.Group {
	byGroup := make(map[cohort.HealingGroup][]float64)
	for _, p := range subset {
		byGroup[p.HealingGroup] = append(byGroup[p.HealingGroup], value(p))
	}
	groups := make([]analysis.Group, 0, 3)
	for _, g := range cohort.HealingGroups() {
		groups = append(groups, analysis.Group{Label: g.String(), Values: byGroup[g]})
	}
	return groups
}

// pairedValues extracts the ordinal group codes alongside one
// continuous column.
func pairedValues(subset []*cohort.PatientAggregate, value func(*cohort.PatientAggregate) float64) (codes, values []float64) {
	codes = make([]float64, len(subset))
	values = make([]float64, len(subset))
	for i, p := range subset {
		codes[i] = float64(p.HealingGroup.OrdinalCode())
		values[i] = value(p)
	}
	return codes, values
}

// auditRiskFactors checks the internal consistency of the risk factor
// across each patient's repeated visits. A patient with both present
// and absent recorded is flagged inconsistent; any recorded presence
// counts the patient as at risk.
func auditRiskFactors(aggregates map[core.PatientID]*cohort.PatientAggregate, ids []core.PatientID) *stats.RiskAuditResult {
	audit := &stats.RiskAuditResult{}
	for _, id := range ids {
		var present, absent bool
		for _, v := range aggregates[id].Visits {
			switch v.RiskFactor {
			case cohort.RiskPresent:
				present = true
			case cohort.RiskAbsent:
				absent = true
			}
		}
		if present && absent {
			audit.InconsistentCount++
			audit.InconsistentPatients = append(audit.InconsistentPatients, id.String())
		}
		switch {
		case present:
			audit.PatientsWithRisk++
		case absent:
			audit.PatientsWithoutRisk++
		default:
			audit.PatientsUnknown++
		}
	}
	return audit
}
