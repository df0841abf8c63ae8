package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"cohortstat/domain/core"
	domstats "cohortstat/domain/stats"
)

const (
	logisticMaxIter   = 100
	logisticTolerance = 1e-8

	// Coefficients beyond this magnitude on standardized-scale clinical
	// data indicate the likelihood is drifting to infinity.
	separationCoefBound = 30.0

	vifFlagThreshold       = 5.0
	outlierResidualBound   = 2.5
	outlierWarningFraction = 0.10
)

// Logistic fits binary-outcome models by iteratively reweighted least
// squares and reports Wald inference plus collinearity and outlier
// diagnostics.
type Logistic struct {
	dist         *Distributions
	maxIter      int
	tol          float64
	outlierBound float64
}

// NewLogistic creates a regression engine with the given iteration cap
// and standardized-residual outlier bound. Non-positive values fall
// back to the standard settings.
func NewLogistic(maxIter int, outlierBound float64) *Logistic {
	if maxIter < 1 {
		maxIter = logisticMaxIter
	}
	if outlierBound <= 0 {
		outlierBound = outlierResidualBound
	}
	return &Logistic{
		dist:         NewDistributions(),
		maxIter:      maxIter,
		tol:          logisticTolerance,
		outlierBound: outlierBound,
	}
}

// Fit estimates an intercept plus one coefficient per predictor by
// maximizing the binomial likelihood. design holds one row per
// observation and one column per predictor (no intercept column);
// outcome values must be 0 or 1.
//
// Returns core.ErrNonConvergence when the iteration cap is reached and
// core.ErrPerfectSeparation when a coefficient diverges, naming the
// offending predictor.
func (l *Logistic) Fit(modelName, outcomeName string, predictors []domstats.Predictor, design [][]float64, outcome []float64) (domstats.LogisticFitResult, error) {
	n := len(outcome)
	p := len(predictors)
	if n == 0 || len(design) != n {
		return domstats.LogisticFitResult{}, fmt.Errorf("logistic: design has %d rows for %d outcomes", len(design), n)
	}
	if n <= p+1 {
		return domstats.LogisticFitResult{}, core.NewSampleSizeError(n, p+2, math.MaxInt32)
	}

	events := 0
	for _, v := range outcome {
		if v != 0 && v != 1 {
			return domstats.LogisticFitResult{}, fmt.Errorf("logistic: outcome %q must be binary, got %v", outcomeName, v)
		}
		if v == 1 {
			events++
		}
	}
	if events == 0 || events == n {
		// A constant outcome has no fittable model.
		return domstats.LogisticFitResult{}, core.ErrDegenerateDistribution
	}

	// Design matrix with leading intercept column.
	cols := p + 1
	X := mat.NewDense(n, cols, nil)
	for i := 0; i < n; i++ {
		if len(design[i]) != p {
			return domstats.LogisticFitResult{}, fmt.Errorf("logistic: row %d has %d predictors, want %d", i, len(design[i]), p)
		}
		X.Set(i, 0, 1)
		for j := 0; j < p; j++ {
			X.Set(i, j+1, design[i][j])
		}
	}
	y := mat.NewVecDense(n, outcome)

	beta, fisher, iterations, err := l.irls(X, y, predictors)
	if err != nil {
		return domstats.LogisticFitResult{}, err
	}

	// Observed-information covariance for Wald standard errors.
	var cov mat.Dense
	if invErr := cov.Inverse(fisher); invErr != nil {
		return domstats.LogisticFitResult{}, core.NewNonConvergenceError(iterations)
	}

	mu := fittedProbabilities(X, beta)
	logLik := binomialLogLikelihood(outcome, mu)
	nullLogLik := nullLogLikelihood(n, events)

	result := domstats.LogisticFitResult{
		ModelName:     modelName,
		Outcome:       outcomeName,
		SampleSize:    n,
		EventCount:    events,
		LogLikelihood: logLik,
		NullLogLik:    nullLogLik,
		PseudoR2:      1 - logLik/nullLogLik,
		AIC:           -2*logLik + 2*float64(cols),
		Iterations:    iterations,
		Converged:     true,
	}

	vifs := varianceInflationFactors(design, p, n)

	for j := 0; j < cols; j++ {
		se := math.Sqrt(cov.At(j, j))
		coef := beta.AtVec(j)
		z := coef / se
		est := domstats.PredictorEstimate{
			Coefficient: coef,
			StdErr:      se,
			ZStatistic:  z,
			PValue:      l.dist.WaldPValue(z),
			OddsRatio:   math.Exp(coef),
			OddsRatioCI: domstats.ConfidenceInterval{
				Low:  math.Exp(coef - 1.96*se),
				High: math.Exp(coef + 1.96*se),
			},
		}
		if j == 0 {
			est.Name = "intercept"
			result.Intercept = est
			continue
		}
		est.Name = predictors[j-1].Name
		est.VIF = vifs[j-1]
		est.HighVIF = est.VIF >= vifFlagThreshold
		result.Predictors = append(result.Predictors, est)
	}

	result.OutlierCount = countResidualOutliers(outcome, mu, l.outlierBound)
	result.OutlierWarning = float64(result.OutlierCount) > outlierWarningFraction*float64(n)

	return result, nil
}

// irls runs iteratively reweighted least squares, returning the
// coefficient vector and the final Fisher information matrix.
func (l *Logistic) irls(X *mat.Dense, y *mat.VecDense, predictors []domstats.Predictor) (*mat.VecDense, *mat.Dense, int, error) {
	n, cols := X.Dims()
	beta := mat.NewVecDense(cols, nil)
	fisher := mat.NewDense(cols, cols, nil)

	for iter := 1; iter <= l.maxIter; iter++ {
		eta := mat.NewVecDense(n, nil)
		eta.MulVec(X, beta)

		// Working weights and response for the current linearization.
		w := mat.NewVecDense(n, nil)
		z := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			mu := sigmoid(eta.AtVec(i))
			wi := mu * (1 - mu)
			if wi < 1e-10 {
				wi = 1e-10
			}
			w.SetVec(i, wi)
			z.SetVec(i, eta.AtVec(i)+(y.AtVec(i)-mu)/wi)
		}

		// Fisher information XtWX and score side XtWz.
		xtw := mat.NewDense(cols, n, nil)
		for i := 0; i < n; i++ {
			for j := 0; j < cols; j++ {
				xtw.Set(j, i, X.At(i, j)*w.AtVec(i))
			}
		}
		fisher.Mul(xtw, X)

		xtwz := mat.NewVecDense(cols, nil)
		xtwz.MulVec(xtw, z)

		next := mat.NewVecDense(cols, nil)
		if err := next.SolveVec(fisher, xtwz); err != nil {
			return nil, nil, iter, core.NewPerfectSeparationError(l.largestPredictor(beta, predictors))
		}

		maxDelta := 0.0
		for j := 0; j < cols; j++ {
			delta := math.Abs(next.AtVec(j) - beta.AtVec(j))
			if delta > maxDelta {
				maxDelta = delta
			}
		}
		beta = next

		for j := 0; j < cols; j++ {
			if math.Abs(beta.AtVec(j)) > separationCoefBound {
				return nil, nil, iter, core.NewPerfectSeparationError(l.largestPredictor(beta, predictors))
			}
		}

		if maxDelta < l.tol {
			return beta, fisher, iter, nil
		}
	}

	return nil, nil, l.maxIter, core.NewNonConvergenceError(l.maxIter)
}

// largestPredictor names the term with the largest coefficient
// magnitude, skipping the intercept.
func (l *Logistic) largestPredictor(beta *mat.VecDense, predictors []domstats.Predictor) string {
	best := "intercept"
	bestAbs := 0.0
	for j := 1; j < beta.Len(); j++ {
		if abs := math.Abs(beta.AtVec(j)); abs > bestAbs {
			bestAbs = abs
			best = predictors[j-1].Name
		}
	}
	return best
}

// varianceInflationFactors regresses each predictor on the others by
// ordinary least squares. A single-predictor model has no collinearity
// and reports 1 for its term.
func varianceInflationFactors(design [][]float64, p, n int) []float64 {
	vifs := make([]float64, p)
	if p < 2 {
		for j := range vifs {
			vifs[j] = 1
		}
		return vifs
	}

	for j := 0; j < p; j++ {
		X := mat.NewDense(n, p, nil) // intercept plus the other p-1 predictors
		target := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			X.Set(i, 0, 1)
			col := 1
			for k := 0; k < p; k++ {
				if k == j {
					continue
				}
				X.Set(i, col, design[i][k])
				col++
			}
			target.SetVec(i, design[i][j])
		}

		r2, ok := olsRSquared(X, target)
		if !ok || r2 >= 1 {
			vifs[j] = math.Inf(1)
			continue
		}
		vifs[j] = 1 / (1 - r2)
	}
	return vifs
}

func olsRSquared(X *mat.Dense, y *mat.VecDense) (float64, bool) {
	n, cols := X.Dims()

	var qr mat.QR
	qr.Factorize(X)
	coef := mat.NewVecDense(cols, nil)
	if err := qr.SolveVecTo(coef, false, y); err != nil {
		return 0, false
	}

	fitted := mat.NewVecDense(n, nil)
	fitted.MulVec(X, coef)

	meanY := mat.Sum(y) / float64(n)
	ssTot, ssRes := 0.0, 0.0
	for i := 0; i < n; i++ {
		dy := y.AtVec(i) - meanY
		ssTot += dy * dy
		res := y.AtVec(i) - fitted.AtVec(i)
		ssRes += res * res
	}
	if ssTot == 0 {
		return 0, false
	}
	return 1 - ssRes/ssTot, true
}

func fittedProbabilities(X *mat.Dense, beta *mat.VecDense) []float64 {
	n, _ := X.Dims()
	eta := mat.NewVecDense(n, nil)
	eta.MulVec(X, beta)
	mu := make([]float64, n)
	for i := 0; i < n; i++ {
		mu[i] = sigmoid(eta.AtVec(i))
	}
	return mu
}

func binomialLogLikelihood(y, mu []float64) float64 {
	ll := 0.0
	for i := range y {
		p := clampProbability(mu[i])
		if y[i] == 1 {
			ll += math.Log(p)
		} else {
			ll += math.Log(1 - p)
		}
	}
	return ll
}

func nullLogLikelihood(n, events int) float64 {
	p := float64(events) / float64(n)
	return float64(events)*math.Log(p) + float64(n-events)*math.Log(1-p)
}

// countResidualOutliers counts observations whose Pearson residual
// exceeds the bound in magnitude.
func countResidualOutliers(y, mu []float64, bound float64) int {
	count := 0
	for i := range y {
		p := clampProbability(mu[i])
		residual := (y[i] - p) / math.Sqrt(p*(1-p))
		if math.Abs(residual) > bound {
			count++
		}
	}
	return count
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func clampProbability(p float64) float64 {
	const eps = 1e-12
	if p < eps {
		return eps
	}
	if p > 1-eps {
		return 1 - eps
	}
	return p
}
