package analysis

import (
	"errors"
	"math"
	"testing"

	"cohortstat/domain/core"
)

func TestSummarizeExcludesMissing(t *testing.T) {
	d := NewDescriptive()
	values := []float64{1, 2, 3, 4, 5, math.NaN(), math.NaN()}

	summary, err := d.Summarize("score", values)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.ValidCount != 5 {
		t.Errorf("valid count = %d, want 5", summary.ValidCount)
	}
	if summary.MissingCount != 2 {
		t.Errorf("missing count = %d, want 2", summary.MissingCount)
	}
	if got, want := summary.MissingRate, 2.0/7.0; math.Abs(got-want) > 1e-12 {
		t.Errorf("missing rate = %f, want %f", got, want)
	}
	if summary.Mean != 3 {
		t.Errorf("mean = %f, want 3", summary.Mean)
	}
	if summary.Median != 3 {
		t.Errorf("median = %f, want 3", summary.Median)
	}
	if summary.Min != 1 || summary.Max != 5 {
		t.Errorf("range = [%f, %f], want [1, 5]", summary.Min, summary.Max)
	}
}

func TestSummarizeAllMissing(t *testing.T) {
	d := NewDescriptive()
	summary, err := d.Summarize("empty", []float64{math.NaN(), math.NaN()})
	if !errors.Is(err, core.ErrSampleSize) {
		t.Fatalf("got %v, want ErrSampleSize over zero observed values", err)
	}
	// Missingness accounting survives even when no statistic is
	// computable.
	if summary.ValidCount != 0 || summary.MissingCount != 2 {
		t.Errorf("counts = (%d, %d), want (0, 2)", summary.ValidCount, summary.MissingCount)
	}
}

func TestProportionTestKnownValue(t *testing.T) {
	d := NewDescriptive()

	// 30 vs 70 against a 50:50 split: chi-square = 2*(20^2/50) = 16.
	result, err := d.ProportionTest([]float64{30, 70}, []float64{0.5, 0.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(result.Statistic-16.0) > 1e-9 {
		t.Errorf("statistic = %f, want 16", result.Statistic)
	}
	if result.DegreesOfFreedom != 1 {
		t.Errorf("df = %d, want 1", result.DegreesOfFreedom)
	}
	if result.PValue >= 0.001 {
		t.Errorf("p = %f, want well below 0.001", result.PValue)
	}
	if result.SampleSize != 100 {
		t.Errorf("n = %d, want 100", result.SampleSize)
	}
}

func TestProportionTestBalancedSplit(t *testing.T) {
	d := NewDescriptive()
	result, err := d.ProportionTest([]float64{50, 50}, []float64{0.5, 0.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Statistic != 0 {
		t.Errorf("statistic = %f, want 0 for a perfect fit", result.Statistic)
	}
	if result.PValue < 0.999 {
		t.Errorf("p = %f, want 1 for a perfect fit", result.PValue)
	}
}

func TestProportionTestDegenerate(t *testing.T) {
	d := NewDescriptive()

	cases := []struct {
		name     string
		observed []float64
		expected []float64
	}{
		{"single category", []float64{10}, []float64{1.0}},
		{"zero expected", []float64{10, 20}, []float64{0.0, 1.0}},
		{"length mismatch", []float64{10, 20}, []float64{0.5, 0.25, 0.25}},
	}
	for _, c := range cases {
		if _, err := d.ProportionTest(c.observed, c.expected); !errors.Is(err, core.ErrDegenerateDistribution) {
			t.Errorf("%s: got %v, want ErrDegenerateDistribution", c.name, err)
		}
	}
}

func TestNormalityTestSkipsMissing(t *testing.T) {
	d := NewDescriptive()
	values := append(randNorm(40, 11), math.NaN(), math.NaN())

	result, err := d.NormalityTest(values)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SampleSize != 40 {
		t.Errorf("sample size = %d, want 40 after dropping missing", result.SampleSize)
	}
	if !result.Normal {
		t.Errorf("normal sample flagged non-normal (p=%f)", result.PValue)
	}
}
