package analysis

import (
	"math"

	"github.com/montanaflynn/stats"

	"cohortstat/domain/core"
	domstats "cohortstat/domain/stats"
)

// DefaultAlpha is the family-wise significance level for the comparison
// engine.
const DefaultAlpha = 0.05

// Group pairs a label with its observations for a comparison run.
type Group struct {
	Label  string
	Values []float64
}

// Comparison runs omnibus and post-hoc tests across healing groups.
type Comparison struct {
	dist  *Distributions
	alpha float64
}

// NewComparison creates a comparison engine gating at the given
// family-wise alpha. Values outside (0, 1) fall back to DefaultAlpha.
func NewComparison(alpha float64) *Comparison {
	if alpha <= 0 || alpha >= 1 {
		alpha = DefaultAlpha
	}
	return &Comparison{dist: NewDistributions(), alpha: alpha}
}

// CompareContinuous runs a one-way ANOVA across the groups. When the
// omnibus p-value falls below alpha, pairwise Welch t-tests follow for
// every group pair under a Bonferroni-corrected threshold; otherwise no
// pairwise test is executed.
//
// Returns core.ErrInsufficientGroupSize if any group has fewer than 2
// observations.
func (c *Comparison) CompareContinuous(variable string, groups []Group) (domstats.AnovaResult, error) {
	if len(groups) < 2 {
		return domstats.AnovaResult{}, core.NewGroupSizeError("comparison", len(groups), 2)
	}
	for _, g := range groups {
		if len(g.Values) < 2 {
			return domstats.AnovaResult{}, core.NewGroupSizeError(g.Label, len(g.Values), 2)
		}
	}

	result := domstats.AnovaResult{
		Variable: variable,
		Alpha:    c.alpha,
		Groups:   make([]domstats.GroupSummary, 0, len(groups)),
	}

	totalN := 0
	grandSum := 0.0
	for _, g := range groups {
		data := stats.Float64Data(g.Values)
		mean, _ := data.Mean()
		sd, _ := data.StandardDeviationSample()
		median, _ := data.Median()
		result.Groups = append(result.Groups, domstats.GroupSummary{
			Group:  g.Label,
			N:      len(g.Values),
			Mean:   mean,
			StdDev: sd,
			Median: median,
		})
		totalN += len(g.Values)
		for _, v := range g.Values {
			grandSum += v
		}
	}
	grandMean := grandSum / float64(totalN)

	ssBetween, ssWithin := 0.0, 0.0
	for i, g := range groups {
		mean := result.Groups[i].Mean
		nf := float64(len(g.Values))
		ssBetween += nf * (mean - grandMean) * (mean - grandMean)
		for _, v := range g.Values {
			ssWithin += (v - mean) * (v - mean)
		}
	}

	result.DFBetween = len(groups) - 1
	result.DFWithin = totalN - len(groups)
	msBetween := ssBetween / float64(result.DFBetween)
	msWithin := ssWithin / float64(result.DFWithin)
	if msWithin == 0 {
		// Zero within-group variance leaves the F ratio undefined.
		return domstats.AnovaResult{}, core.ErrDegenerateDistribution
	}
	result.FStatistic = msBetween / msWithin
	result.PValue = c.dist.FTestPValue(result.FStatistic, result.DFBetween, result.DFWithin)

	result.Significant = result.PValue < c.alpha
	if !result.Significant {
		// Omnibus gate: no post-hoc decomposition without an overall effect.
		return result, nil
	}

	pairs := groupPairs(len(groups))
	corrected := c.alpha / float64(len(pairs))
	for _, pair := range pairs {
		a, b := groups[pair[0]], groups[pair[1]]
		tStat, df := welchTTest(a.Values, b.Values)
		p := c.dist.TTestPValue(tStat, df)
		result.Pairwise = append(result.Pairwise, domstats.PairwiseComparison{
			GroupA:           a.Label,
			GroupB:           b.Label,
			TStatistic:       tStat,
			DegreesOfFreedom: df,
			PValue:           p,
			CorrectedAlpha:   corrected,
			Significant:      p < corrected,
		})
	}

	return result, nil
}

// CompareCategorical runs a chi-square test of independence on the
// observed contingency table (rows = category levels, columns = groups).
//
// Returns core.ErrInsufficientGroupSize if any column sums to fewer
// than 2 observations and core.ErrDegenerateDistribution when a row or
// column is entirely zero.
func (c *Comparison) CompareCategorical(rowLabels, colLabels []string, observed [][]float64) (domstats.IndependenceResult, error) {
	rows := len(observed)
	if rows < 2 || len(observed[0]) < 2 {
		return domstats.IndependenceResult{}, core.ErrDegenerateDistribution
	}
	cols := len(observed[0])

	rowTotals := make([]float64, rows)
	colTotals := make([]float64, cols)
	total := 0.0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			rowTotals[i] += observed[i][j]
			colTotals[j] += observed[i][j]
			total += observed[i][j]
		}
	}
	for j, ct := range colTotals {
		if ct < 2 {
			return domstats.IndependenceResult{}, core.NewGroupSizeError(colLabels[j], int(ct), 2)
		}
	}
	for _, rt := range rowTotals {
		if rt == 0 {
			return domstats.IndependenceResult{}, core.ErrDegenerateDistribution
		}
	}

	statistic := 0.0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			expected := rowTotals[i] * colTotals[j] / total
			diff := observed[i][j] - expected
			statistic += diff * diff / expected
		}
	}

	df := (rows - 1) * (cols - 1)
	return domstats.IndependenceResult{
		Statistic:        statistic,
		DegreesOfFreedom: df,
		PValue:           c.dist.ChiSquarePValue(statistic, df),
		SampleSize:       int(total),
		RowLabels:        rowLabels,
		ColLabels:        colLabels,
		Observed:         observed,
	}, nil
}

// welchTTest returns the t-statistic and Welch-Satterthwaite degrees of
// freedom for two samples with unequal variances.
func welchTTest(a, b []float64) (tStat, df float64) {
	meanA, _ := stats.Mean(a)
	meanB, _ := stats.Mean(b)
	varA, _ := stats.SampleVariance(a)
	varB, _ := stats.SampleVariance(b)

	nA, nB := float64(len(a)), float64(len(b))
	seA, seB := varA/nA, varB/nB
	se := math.Sqrt(seA + seB)
	if se == 0 {
		if meanA == meanB {
			return 0, nA + nB - 2
		}
		// Collapsed variance with distinct means; the statistic must
		// stay finite for serialization.
		return math.Copysign(math.MaxFloat64, meanA-meanB), nA + nB - 2
	}

	tStat = (meanA - meanB) / se
	df = (seA + seB) * (seA + seB) / (seA*seA/(nA-1) + seB*seB/(nB-1))
	return tStat, df
}

// groupPairs enumerates index pairs (i, j) with i < j.
func groupPairs(n int) [][2]int {
	var pairs [][2]int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, [2]int{i, j})
		}
	}
	return pairs
}
