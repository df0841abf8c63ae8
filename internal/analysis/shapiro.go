package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"cohortstat/domain/core"
)

// Validity range for Royston's approximation of the Shapiro-Wilk null
// distribution.
const (
	shapiroMinN = 3
	shapiroMaxN = 5000
)

// ShapiroWilk computes the Shapiro-Wilk W statistic and p-value using
// Royston's 1995 approximation (AS R94). Valid for sample sizes in
// [3, 5000]; fails with core.ErrSampleSize outside that range and with
// core.ErrDegenerateDistribution when all values are identical.
func ShapiroWilk(values []float64) (w, pValue float64, err error) {
	n := len(values)
	if n < shapiroMinN || n > shapiroMaxN {
		return 0, 0, core.NewSampleSizeError(n, shapiroMinN, shapiroMaxN)
	}

	x := make([]float64, n)
	copy(x, values)
	sort.Float64s(x)

	if x[n-1] == x[0] {
		return 0, 0, core.ErrDegenerateDistribution
	}

	// Expected values of normal order statistics via Blom scores.
	m := make([]float64, n)
	ssq := 0.0
	for i := 0; i < n; i++ {
		m[i] = distuv.UnitNormal.Quantile((float64(i+1) - 0.375) / (float64(n) + 0.25))
		ssq += m[i] * m[i]
	}

	a := shapiroWeights(m, ssq, n)

	mean := 0.0
	for _, v := range x {
		mean += v
	}
	mean /= float64(n)

	num, den := 0.0, 0.0
	for i, v := range x {
		num += a[i] * v
		den += (v - mean) * (v - mean)
	}
	w = num * num / den
	if w > 1 {
		w = 1
	}

	return w, shapiroPValue(w, n), nil
}

// shapiroWeights builds the coefficient vector. The two extreme weights
// on each side use Royston's polynomial corrections; the interior
// weights are rescaled Blom scores.
func shapiroWeights(m []float64, ssq float64, n int) []float64 {
	a := make([]float64, n)

	if n == 3 {
		a[0] = math.Sqrt(0.5)
		a[2] = -a[0]
		return a
	}

	rsn := 1.0 / math.Sqrt(float64(n))
	sqrtSSQ := math.Sqrt(ssq)

	// Polynomial corrections for the largest and second-largest weights.
	an := polyval([]float64{-2.706056, 4.434685, -2.071190, -0.147981, 0.221157, 0}, rsn) + m[n-1]/sqrtSSQ
	a[n-1] = an
	a[0] = -an

	i1 := 1 // first interior index from below
	var phi float64
	if n > 5 {
		an1 := polyval([]float64{-3.582633, 5.682633, -1.752461, -0.293762, 0.042981, 0}, rsn) + m[n-2]/sqrtSSQ
		a[n-2] = an1
		a[1] = -an1
		i1 = 2
		phi = (ssq - 2*m[n-1]*m[n-1] - 2*m[n-2]*m[n-2]) / (1 - 2*an*an - 2*an1*an1)
	} else {
		phi = (ssq - 2*m[n-1]*m[n-1]) / (1 - 2*an*an)
	}

	scale := math.Sqrt(phi)
	for i := i1; i < n-i1; i++ {
		a[i] = m[i] / scale
	}
	return a
}

// shapiroPValue maps W to a p-value under the null of normality. The
// n=3 case is exact; small and large samples use Royston's normalizing
// transforms.
func shapiroPValue(w float64, n int) float64 {
	switch {
	case n == 3:
		p := (6.0 / math.Pi) * (math.Asin(math.Sqrt(w)) - math.Asin(math.Sqrt(0.75)))
		return clamp01(p)

	case n <= 11:
		fn := float64(n)
		gamma := 0.459*fn - 2.273
		wPrime := -math.Log(gamma - math.Log(1-w))
		mu := polyval([]float64{-0.0006714, 0.025054, -0.39978, 0.5440}, fn)
		sigma := math.Exp(polyval([]float64{-0.0020322, 0.062767, -0.77857, 1.3822}, fn))
		z := (wPrime - mu) / sigma
		return clamp01(1 - distuv.UnitNormal.CDF(z))

	default:
		logN := math.Log(float64(n))
		wPrime := math.Log(1 - w)
		mu := polyval([]float64{0.0038915, -0.083751, -0.31082, -1.5861}, logN)
		sigma := math.Exp(polyval([]float64{0.0030302, -0.082676, -0.4803}, logN))
		z := (wPrime - mu) / sigma
		return clamp01(1 - distuv.UnitNormal.CDF(z))
	}
}

// polyval evaluates a polynomial with coefficients ordered from the
// highest power down to the constant term.
func polyval(coeffs []float64, x float64) float64 {
	result := 0.0
	for _, c := range coeffs {
		result = result*x + c
	}
	return result
}

func clamp01(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
