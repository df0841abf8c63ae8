package analysis

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"cohortstat/domain/core"
	domstats "cohortstat/domain/stats"
)

// Descriptive computes per-column summaries and the single-sample
// distribution tests.
type Descriptive struct {
	dist *Distributions
}

// NewDescriptive creates a descriptive statistics module.
func NewDescriptive() *Descriptive {
	return &Descriptive{dist: NewDistributions()}
}

// Summarize computes the standard summary over a numeric column. NaN
// entries are treated as missing, excluded from every statistic, and
// reported in MissingCount.
//
// Returns core.ErrSampleSize when no observed value remains; the
// returned summary still carries the missingness counts.
func (d *Descriptive) Summarize(variable string, values []float64) (domstats.SummaryStats, error) {
	valid := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}

	summary := domstats.SummaryStats{
		Variable:     variable,
		ValidCount:   len(valid),
		MissingCount: len(values) - len(valid),
	}
	if len(values) > 0 {
		summary.MissingRate = float64(summary.MissingCount) / float64(len(values))
	}
	if len(valid) == 0 {
		return summary, fmt.Errorf("%w: no observed values for %s", core.ErrSampleSize, variable)
	}

	data := stats.Float64Data(valid)
	summary.Mean, _ = data.Mean()
	summary.StdDev, _ = data.StandardDeviationSample()
	summary.Median, _ = data.Median()
	summary.Min, _ = data.Min()
	summary.Max, _ = data.Max()
	if quartiles, err := stats.Quartile(data); err == nil {
		summary.Q1 = quartiles.Q1
		summary.Q3 = quartiles.Q3
	} else {
		summary.Q1 = summary.Median
		summary.Q3 = summary.Median
	}
	if len(valid) == 1 {
		summary.StdDev = 0
	}

	return summary, nil
}

// ProportionTest runs a chi-square goodness-of-fit test of observed
// category counts against expected proportions.
//
// Returns core.ErrDegenerateDistribution when fewer than two categories
// are present, the proportions do not match the counts, or any expected
// count is not positive.
func (d *Descriptive) ProportionTest(observedCounts []float64, expectedProportions []float64) (domstats.ProportionTestResult, error) {
	if len(observedCounts) < 2 {
		return domstats.ProportionTestResult{}, core.ErrDegenerateDistribution
	}
	if len(observedCounts) != len(expectedProportions) {
		return domstats.ProportionTestResult{}, core.ErrDegenerateDistribution
	}

	total := 0.0
	for _, c := range observedCounts {
		if c < 0 || math.IsNaN(c) {
			return domstats.ProportionTestResult{}, core.ErrDegenerateDistribution
		}
		total += c
	}

	statistic := 0.0
	for i, observed := range observedCounts {
		expected := total * expectedProportions[i]
		if expected <= 0 {
			return domstats.ProportionTestResult{}, core.ErrDegenerateDistribution
		}
		diff := observed - expected
		statistic += diff * diff / expected
	}

	df := len(observedCounts) - 1
	return domstats.ProportionTestResult{
		Statistic:        statistic,
		DegreesOfFreedom: df,
		PValue:           d.dist.ChiSquarePValue(statistic, df),
		SampleSize:       int(total),
	}, nil
}

// NormalityTest runs the Shapiro-Wilk test. Sample size must be within
// [3, 5000]; outside that range the approximation is invalid and the
// call fails with core.ErrSampleSize.
func (d *Descriptive) NormalityTest(values []float64) (domstats.NormalityTestResult, error) {
	valid := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}

	w, p, err := ShapiroWilk(valid)
	if err != nil {
		return domstats.NormalityTestResult{}, err
	}

	return domstats.NormalityTestResult{
		WStatistic: w,
		PValue:     p,
		SampleSize: len(valid),
		Normal:     p >= 0.05,
	}, nil
}
