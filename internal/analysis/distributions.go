// Package analysis implements the statistical engines: descriptive
// summaries, goodness-of-fit and normality tests, group comparison,
// rank correlation, and logistic regression with diagnostics. Every
// test is a pure function over its inputs; missing-data policy lives
// in the selector, not here.
package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Distributions provides unified access to the reference distributions
// used for exact p-values.
type Distributions struct{}

// NewDistributions creates a new distributions utility
func NewDistributions() *Distributions {
	return &Distributions{}
}

// TTestPValue computes the two-tailed p-value from Student's t-distribution.
func (d *Distributions) TTestPValue(tStatistic, degreesOfFreedom float64) float64 {
	if degreesOfFreedom <= 0 {
		return 1.0
	}

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: degreesOfFreedom}
	return 2 * (1 - tDist.CDF(math.Abs(tStatistic)))
}

// CorrelationPValue computes the two-tailed p-value for a correlation
// coefficient via the t transform.
func (d *Distributions) CorrelationPValue(correlation float64, sampleSize int) float64 {
	if sampleSize < 3 {
		return 1.0
	}
	if math.Abs(correlation) >= 1 {
		return 0.0
	}

	df := float64(sampleSize - 2)
	tStatistic := correlation * math.Sqrt(df/(1-correlation*correlation))
	return d.TTestPValue(tStatistic, df)
}

// FTestPValue computes the upper-tail p-value from the F-distribution.
func (d *Distributions) FTestPValue(fStatistic float64, df1, df2 int) float64 {
	if df1 <= 0 || df2 <= 0 {
		return 1.0
	}

	fDist := distuv.F{D1: float64(df1), D2: float64(df2)}
	return 1 - fDist.CDF(fStatistic)
}

// ChiSquarePValue computes the upper-tail p-value from the chi-square
// distribution.
func (d *Distributions) ChiSquarePValue(chiSquare float64, degreesOfFreedom int) float64 {
	if degreesOfFreedom <= 0 {
		return 1.0
	}

	chiDist := distuv.ChiSquared{K: float64(degreesOfFreedom)}
	return 1 - chiDist.CDF(chiSquare)
}

// NormalCDF computes the standard normal cumulative distribution.
func (d *Distributions) NormalCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// NormalQuantile computes the standard normal inverse CDF.
func (d *Distributions) NormalQuantile(p float64) float64 {
	return distuv.UnitNormal.Quantile(p)
}

// WaldPValue computes the two-tailed p-value for a Wald z-statistic.
func (d *Distributions) WaldPValue(z float64) float64 {
	return 2 * (1 - distuv.UnitNormal.CDF(math.Abs(z)))
}
