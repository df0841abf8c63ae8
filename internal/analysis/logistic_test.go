package analysis

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"cohortstat/domain/core"
	domstats "cohortstat/domain/stats"
)

// twoByTwo builds a single-binary-predictor dataset from cell counts.
func twoByTwo(events0, total0, events1, total1 int) ([][]float64, []float64) {
	var design [][]float64
	var outcome []float64
	for i := 0; i < total0; i++ {
		design = append(design, []float64{0})
		if i < events0 {
			outcome = append(outcome, 1)
		} else {
			outcome = append(outcome, 0)
		}
	}
	for i := 0; i < total1; i++ {
		design = append(design, []float64{1})
		if i < events1 {
			outcome = append(outcome, 1)
		} else {
			outcome = append(outcome, 0)
		}
	}
	return design, outcome
}

func TestLogisticKnownTwoByTwo(t *testing.T) {
	l := NewLogistic(100, 2.5)

	// x=0: 10/30 events, x=1: 20/30 events.
	// Intercept = log(10/20), slope = log((20/10)/(10/20)) = log 4.
	design, outcome := twoByTwo(10, 30, 20, 30)
	predictors := []domstats.Predictor{{Name: "exposure", Type: domstats.PredictorBinary}}

	fit, err := l.Fit("test", "nbe", predictors, design, outcome)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fit.Converged {
		t.Fatal("fit did not converge")
	}

	wantIntercept := math.Log(10.0 / 20.0)
	wantSlope := math.Log(4.0)
	if math.Abs(fit.Intercept.Coefficient-wantIntercept) > 1e-6 {
		t.Errorf("intercept = %f, want %f", fit.Intercept.Coefficient, wantIntercept)
	}
	if math.Abs(fit.Predictors[0].Coefficient-wantSlope) > 1e-6 {
		t.Errorf("slope = %f, want %f", fit.Predictors[0].Coefficient, wantSlope)
	}
	if math.Abs(fit.Predictors[0].OddsRatio-4.0) > 1e-5 {
		t.Errorf("odds ratio = %f, want 4", fit.Predictors[0].OddsRatio)
	}
	if fit.EventCount != 30 || fit.SampleSize != 60 {
		t.Errorf("counts = (%d events, n=%d), want (30, 60)", fit.EventCount, fit.SampleSize)
	}
}

func TestLogisticOddsRatioEqualsExpCoefficient(t *testing.T) {
	l := NewLogistic(100, 2.5)
	rng := rand.New(rand.NewSource(101))

	n := 200
	design := make([][]float64, n)
	outcome := make([]float64, n)
	for i := 0; i < n; i++ {
		x1 := rng.NormFloat64()
		x2 := rng.NormFloat64()
		x3 := float64(rng.Intn(2))
		design[i] = []float64{x1, x2, x3}
		logit := -0.3 + 0.8*x1 - 0.5*x2 + 0.4*x3
		if rng.Float64() < 1/(1+math.Exp(-logit)) {
			outcome[i] = 1
		}
	}

	predictors := []domstats.Predictor{
		{Name: "pain", Type: domstats.PredictorContinuous},
		{Name: "function", Type: domstats.PredictorContinuous},
		{Name: "risk", Type: domstats.PredictorBinary},
	}
	fit, err := l.Fit("full", "nbe", predictors, design, outcome)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, est := range fit.Predictors {
		if math.Abs(est.OddsRatio-math.Exp(est.Coefficient)) > 1e-12 {
			t.Errorf("%s: OR %f != exp(coef) %f", est.Name, est.OddsRatio, math.Exp(est.Coefficient))
		}
		wantLow := math.Exp(est.Coefficient - 1.96*est.StdErr)
		wantHigh := math.Exp(est.Coefficient + 1.96*est.StdErr)
		if math.Abs(est.OddsRatioCI.Low-wantLow) > 1e-12 || math.Abs(est.OddsRatioCI.High-wantHigh) > 1e-12 {
			t.Errorf("%s: CI (%f, %f), want (%f, %f)", est.Name, est.OddsRatioCI.Low, est.OddsRatioCI.High, wantLow, wantHigh)
		}
		if !est.OddsRatioCI.Contains(est.OddsRatio) {
			t.Errorf("%s: OR outside its own CI", est.Name)
		}
	}

	if fit.PseudoR2 <= 0 || fit.PseudoR2 >= 1 {
		t.Errorf("pseudo-R2 = %f, want in (0, 1)", fit.PseudoR2)
	}
	if fit.LogLikelihood <= fit.NullLogLik {
		t.Errorf("model log-likelihood %f not above null %f", fit.LogLikelihood, fit.NullLogLik)
	}
	wantAIC := -2*fit.LogLikelihood + 2*4
	if math.Abs(fit.AIC-wantAIC) > 1e-9 {
		t.Errorf("AIC = %f, want %f", fit.AIC, wantAIC)
	}
}

func TestLogisticIterationCapRespected(t *testing.T) {
	l := NewLogistic(1, 2.5)

	design, outcome := twoByTwo(10, 30, 20, 30)
	predictors := []domstats.Predictor{{Name: "exposure", Type: domstats.PredictorBinary}}

	_, err := l.Fit("capped", "nbe", predictors, design, outcome)
	if !errors.Is(err, core.ErrNonConvergence) {
		t.Fatalf("got %v, want ErrNonConvergence with a one-iteration cap", err)
	}
}

func TestLogisticOutlierBoundConfigured(t *testing.T) {
	l := NewLogistic(100, 1e-6)

	design, outcome := twoByTwo(10, 30, 20, 30)
	predictors := []domstats.Predictor{{Name: "exposure", Type: domstats.PredictorBinary}}

	fit, err := l.Fit("tight", "nbe", predictors, design, outcome)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Every Pearson residual is nonzero, so a near-zero bound flags all
	// observations.
	if fit.OutlierCount != fit.SampleSize {
		t.Errorf("outlier count = %d, want all %d observations", fit.OutlierCount, fit.SampleSize)
	}
	if !fit.OutlierWarning {
		t.Error("outlier warning not raised with every observation flagged")
	}
}

func TestLogisticPerfectSeparation(t *testing.T) {
	l := NewLogistic(100, 2.5)

	// Predictor fully determines outcome.
	n := 40
	design := make([][]float64, n)
	outcome := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i) - float64(n)/2
		design[i] = []float64{x}
		if x > 0 {
			outcome[i] = 1
		}
	}

	predictors := []domstats.Predictor{{Name: "score", Type: domstats.PredictorContinuous}}
	_, err := l.Fit("sep", "nbe", predictors, design, outcome)
	if !errors.Is(err, core.ErrPerfectSeparation) && !errors.Is(err, core.ErrNonConvergence) {
		t.Fatalf("got %v, want separation or non-convergence", err)
	}
	if errors.Is(err, core.ErrPerfectSeparation) && !core.IsFittingError(err) {
		t.Error("separation must classify as a fitting error")
	}
}

func TestLogisticConstantOutcome(t *testing.T) {
	l := NewLogistic(100, 2.5)
	design := [][]float64{{1}, {2}, {3}, {4}, {5}}
	outcome := []float64{1, 1, 1, 1, 1}
	predictors := []domstats.Predictor{{Name: "x", Type: domstats.PredictorContinuous}}

	if _, err := l.Fit("const", "nbe", predictors, design, outcome); !errors.Is(err, core.ErrDegenerateDistribution) {
		t.Errorf("got %v, want ErrDegenerateDistribution", err)
	}
}

func TestLogisticCollinearityFlag(t *testing.T) {
	l := NewLogistic(100, 2.5)
	rng := rand.New(rand.NewSource(55))

	n := 150
	design := make([][]float64, n)
	outcome := make([]float64, n)
	for i := 0; i < n; i++ {
		x1 := rng.NormFloat64()
		x2 := 2*x1 + 0.05*rng.NormFloat64() // near-duplicate of x1
		design[i] = []float64{x1, x2}
		if rng.Float64() < 1/(1+math.Exp(-0.3*x1)) {
			outcome[i] = 1
		}
	}

	predictors := []domstats.Predictor{
		{Name: "a", Type: domstats.PredictorContinuous},
		{Name: "b", Type: domstats.PredictorContinuous},
	}
	fit, err := l.Fit("collinear", "nbe", predictors, design, outcome)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, est := range fit.Predictors {
		if !est.HighVIF {
			t.Errorf("%s: VIF = %f not flagged despite near-duplicate predictors", est.Name, est.VIF)
		}
	}
}

func TestVIFSinglePredictor(t *testing.T) {
	vifs := varianceInflationFactors([][]float64{{1}, {2}, {3}}, 1, 3)
	if vifs[0] != 1 {
		t.Errorf("single-predictor VIF = %f, want 1", vifs[0])
	}
}
