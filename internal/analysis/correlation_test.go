package analysis

import (
	"errors"
	"math"
	"testing"

	"cohortstat/domain/core"
)

func TestSpearmanPerfectMonotone(t *testing.T) {
	c := NewCorrelation()

	x := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	y := []float64{2, 9, 11, 40, 41, 50, 90, 100} // monotone but nonlinear

	result, err := c.Spearman("group", "calls", x, y)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(result.Rho-1.0) > 1e-12 {
		t.Errorf("rho = %f for monotone data, want 1", result.Rho)
	}
	if result.NUsed != 8 {
		t.Errorf("n_used = %d, want 8", result.NUsed)
	}
}

func TestSpearmanPerfectInverse(t *testing.T) {
	c := NewCorrelation()
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{50, 40, 30, 20, 10}

	result, err := c.Spearman("group", "duration", x, y)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(result.Rho+1.0) > 1e-12 {
		t.Errorf("rho = %f for inverse monotone data, want -1", result.Rho)
	}
	if result.PValue > 1e-6 {
		t.Errorf("p = %f for perfect correlation, want ~0", result.PValue)
	}
}

func TestSpearmanSkipsMissingPairs(t *testing.T) {
	c := NewCorrelation()
	x := []float64{1, 2, math.NaN(), 3, 4, 5}
	y := []float64{10, 20, 30, math.NaN(), 40, 50}

	result, err := c.Spearman("group", "calls", x, y)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.NUsed != 4 {
		t.Errorf("n_used = %d, want 4 complete pairs", result.NUsed)
	}
	if math.Abs(result.Rho-1.0) > 1e-12 {
		t.Errorf("rho = %f over the complete pairs, want 1", result.Rho)
	}
}

func TestSpearmanTiedGroupCodes(t *testing.T) {
	c := NewCorrelation()

	// Ordinal group codes carry heavy ties, as in real cohorts.
	x := []float64{1, 1, 1, 2, 2, 2, 3, 3, 3}
	y := []float64{2, 3, 4, 5, 6, 7, 8, 9, 10}

	result, err := c.Spearman("group", "calls", x, y)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Rho <= 0.8 {
		t.Errorf("rho = %f, expected strong positive correlation with ties", result.Rho)
	}
	if result.PValue >= 0.05 {
		t.Errorf("p = %f, expected significant", result.PValue)
	}
}

func TestSpearmanTooFewPairs(t *testing.T) {
	c := NewCorrelation()
	result, err := c.Spearman("a", "b", []float64{1, 2}, []float64{3, 4})
	if !errors.Is(err, core.ErrSampleSize) {
		t.Fatalf("got %v, want ErrSampleSize with n<3", err)
	}
	if result.NUsed != 2 {
		t.Errorf("n_used = %d, want 2", result.NUsed)
	}
}

func TestSpearmanConstantColumn(t *testing.T) {
	c := NewCorrelation()

	// A constant column has no rank variance, so the coefficient has no
	// defined value.
	x := []float64{1, 1, 2, 2, 3, 3}
	y := []float64{4, 4, 4, 4, 4, 4}

	_, err := c.Spearman("group", "calls", x, y)
	if !errors.Is(err, core.ErrDegenerateDistribution) {
		t.Fatalf("got %v, want ErrDegenerateDistribution", err)
	}
	if !core.IsDataSufficiencyError(err) {
		t.Error("constant column must classify as a data-sufficiency condition")
	}
}

func TestRankWithTiesAveraging(t *testing.T) {
	ranks := rankWithTies([]float64{10, 20, 20, 30})
	want := []float64{1, 2.5, 2.5, 4}
	for i := range want {
		if math.Abs(ranks[i]-want[i]) > 1e-12 {
			t.Fatalf("ranks = %v, want %v", ranks, want)
		}
	}
}

func TestSpearmanNoAssociation(t *testing.T) {
	c := NewCorrelation()
	x := randNorm(200, 21)
	y := randNorm(200, 22)

	result, err := c.Spearman("a", "b", x, y)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(result.Rho) > 0.2 {
		t.Errorf("rho = %f for independent samples, expected near 0", result.Rho)
	}
	if result.PValue < 0.01 {
		t.Errorf("p = %f for independent samples", result.PValue)
	}
}
