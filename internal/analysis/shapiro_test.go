package analysis

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"cohortstat/domain/core"
)

// randNorm generates standard normal values via Box-Muller with a fixed
// seed so test outcomes are reproducible.
func randNorm(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		u1, u2 := rng.Float64(), rng.Float64()
		out[i] = math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	}
	return out
}

func TestShapiroWilkNormalSample(t *testing.T) {
	values := randNorm(100, 42)
	w, p, err := ShapiroWilk(values)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w < 0.95 || w > 1.0 {
		t.Errorf("W = %f for a normal sample, expected near 1", w)
	}
	if p < 0.05 {
		t.Errorf("p = %f for a normal sample, expected > 0.05", p)
	}
	t.Logf("normal n=100: W=%.4f p=%.4f", w, p)
}

func TestShapiroWilkSkewedSample(t *testing.T) {
	// Squared normals are heavily right-skewed.
	base := randNorm(200, 7)
	values := make([]float64, len(base))
	for i, v := range base {
		values[i] = v * v
	}

	w, p, err := ShapiroWilk(values)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p >= 0.05 {
		t.Errorf("p = %f for a chi-square-shaped sample, expected < 0.05", p)
	}
	t.Logf("skewed n=200: W=%.4f p=%.6f", w, p)
}

func TestShapiroWilkSampleSizeBounds(t *testing.T) {
	if _, _, err := ShapiroWilk([]float64{1, 2}); !errors.Is(err, core.ErrSampleSize) {
		t.Errorf("n=2: got %v, want ErrSampleSize", err)
	}

	big := randNorm(5001, 3)
	if _, _, err := ShapiroWilk(big); !errors.Is(err, core.ErrSampleSize) {
		t.Errorf("n=5001: got %v, want ErrSampleSize", err)
	}

	// Boundary sizes are valid.
	if _, _, err := ShapiroWilk([]float64{1.2, 3.4, 2.1}); err != nil {
		t.Errorf("n=3: unexpected error %v", err)
	}
}

func TestShapiroWilkDegenerateSample(t *testing.T) {
	values := []float64{5, 5, 5, 5, 5}
	if _, _, err := ShapiroWilk(values); !errors.Is(err, core.ErrDegenerateDistribution) {
		t.Errorf("constant sample: got %v, want ErrDegenerateDistribution", err)
	}
}

func TestShapiroWilkSmallSampleRange(t *testing.T) {
	// Royston's small-sample transform applies for n in [4, 11].
	values := []float64{2.1, 3.4, 1.9, 2.8, 3.1, 2.5, 2.9}
	w, p, err := ShapiroWilk(values)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w <= 0 || w > 1 {
		t.Errorf("W = %f out of range (0, 1]", w)
	}
	if p < 0 || p > 1 {
		t.Errorf("p = %f out of range [0, 1]", p)
	}
}
