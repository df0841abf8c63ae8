package analysis

import (
	"fmt"
	"math"
	"sort"

	"cohortstat/domain/core"
	domstats "cohortstat/domain/stats"
)

// Correlation computes rank correlations over paired observations.
type Correlation struct {
	dist *Distributions
}

// NewCorrelation creates a correlation engine.
func NewCorrelation() *Correlation {
	return &Correlation{dist: NewDistributions()}
}

// Spearman computes the rank correlation between two columns over the
// paired observations where both values are present. The result carries
// the number of pairs actually used so consumers can audit coverage.
//
// Returns core.ErrSampleSize with fewer than 3 complete pairs and
// core.ErrDegenerateDistribution when either column is constant; the
// coefficient has no defined value in those cases.
func (c *Correlation) Spearman(varX, varY string, x, y []float64) (domstats.SpearmanResult, error) {
	pairedX := make([]float64, 0, len(x))
	pairedY := make([]float64, 0, len(y))
	for i := range x {
		if i >= len(y) {
			break
		}
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		pairedX = append(pairedX, x[i])
		pairedY = append(pairedY, y[i])
	}

	result := domstats.SpearmanResult{
		VariableX: varX,
		VariableY: varY,
		NUsed:     len(pairedX),
	}
	if len(pairedX) < 3 {
		return result, core.NewSampleSizeError(len(pairedX), 3, math.MaxInt32)
	}

	rankX := rankWithTies(pairedX)
	rankY := rankWithTies(pairedY)
	if constant(rankX) {
		return result, fmt.Errorf("%w: %s is constant over %d pairs", core.ErrDegenerateDistribution, varX, result.NUsed)
	}
	if constant(rankY) {
		return result, fmt.Errorf("%w: %s is constant over %d pairs", core.ErrDegenerateDistribution, varY, result.NUsed)
	}

	result.Rho = pearson(rankX, rankY)
	result.PValue = c.dist.CorrelationPValue(result.Rho, len(pairedX))
	return result, nil
}

func constant(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

// rankWithTies assigns 1-based ranks, averaging ranks across ties.
func rankWithTies(values []float64) []float64 {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		// Average rank across the tie run.
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

func pearson(x, y []float64) float64 {
	n := float64(len(x))
	meanX, meanY := 0.0, 0.0
	for i := range x {
		meanX += x[i]
		meanY += y[i]
	}
	meanX /= n
	meanY /= n

	cov, varX, varY := 0.0, 0.0, 0.0
	for i := range x {
		dx, dy := x[i]-meanX, y[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(varX*varY)
}
