package photocal

import (
	"math"
	"testing"
)

func TestSigmaClip_RejectsOutliers(t *testing.T) {
	values := make([]float64, 0, 100)
	for i := 0; i < 96; i++ {
		values = append(values, float64(9+i%3))
	}
	for i := 0; i < 4; i++ {
		values = append(values, 1000)
	}

	s := SigmaClip(values, 3.0, 5)
	if s.Count != 96 {
		t.Errorf("Count: got %d, want 96", s.Count)
	}
	if s.Median != 10 || math.Abs(s.Mean-10) > 1e-12 {
		t.Errorf("center: got median %g mean %g, want 10", s.Median, s.Mean)
	}
	if want := math.Sqrt(2.0 / 3.0); math.Abs(s.StdDev-want) > 1e-12 {
		t.Errorf("StdDev: got %g, want %g", s.StdDev, want)
	}
	if s.NumIterations != 2 {
		t.Errorf("NumIterations: got %d, want 2", s.NumIterations)
	}
}

func TestSigmaClip_MaxIters(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 1e6}
	s := SigmaClip(values, 1.0, 1)
	if s.NumIterations != 1 {
		t.Errorf("NumIterations: got %d, want 1", s.NumIterations)
	}
	if s.Count == len(values) {
		t.Error("nothing was clipped in the single pass")
	}
}

func TestSigmaClip_Empty(t *testing.T) {
	s := SigmaClip(nil, 3, 5)
	if s.Count != 0 || !math.IsNaN(s.Median) {
		t.Errorf("got %+v, want empty NaN stats", s)
	}
}

func TestSExtractorEstimate(t *testing.T) {
	cases := []struct {
		name string
		in   ClippedStats
		want float64
	}{
		{"flat", ClippedStats{Mean: 42, Median: 42, StdDev: 0}, 42},
		{"mild skew", ClippedStats{Mean: 11, Median: 10, StdDev: 10}, 8.5},
		{"strong skew", ClippedStats{Mean: 20, Median: 10, StdDev: 10}, 10},
	}
	for _, tc := range cases {
		if got := SExtractorEstimate(tc.in); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("%s: got %g, want %g", tc.name, got, tc.want)
		}
	}
}

func TestMedianMAD(t *testing.T) {
	median, sigma := MedianMAD([]float64{4, 100, 1, 3, 2})
	if median != 3 {
		t.Errorf("median: got %g, want 3", median)
	}
	if math.Abs(sigma-1.4826) > 1e-12 {
		t.Errorf("sigma: got %g, want 1.4826", sigma)
	}

	if m, s := MedianMAD(nil); !math.IsNaN(m) || !math.IsNaN(s) {
		t.Errorf("empty input: got %g, %g", m, s)
	}
}
