package photocal

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ClippedStats holds the result of iterative sigma clipping.
type ClippedStats struct {
	Mean          float64
	Median        float64
	StdDev        float64
	Count         int
	NumIterations int
}

// SigmaClip repeatedly rejects samples further than sigma standard
// deviations from the median until nothing changes or maxIters passes have
// run. values is reordered in place.
func SigmaClip(values []float64, sigma float64, maxIters int) ClippedStats {
	kept := values
	sort.Float64s(kept)
	iterations := 0
	for len(kept) > 0 && (maxIters <= 0 || iterations < maxIters) {
		median := sortedMedian(kept)
		_, std := stat.PopMeanStdDev(kept, nil)
		iterations++

		lo, hi := median-sigma*std, median+sigma*std
		start := sort.SearchFloat64s(kept, lo)
		end := start
		for end < len(kept) && kept[end] <= hi {
			end++
		}
		if start == 0 && end == len(kept) {
			break
		}
		kept = kept[start:end]
	}

	result := ClippedStats{Count: len(kept), NumIterations: iterations}
	if len(kept) == 0 {
		result.Mean, result.Median, result.StdDev = math.NaN(), math.NaN(), math.NaN()
		return result
	}
	result.Median = sortedMedian(kept)
	result.Mean, result.StdDev = stat.PopMeanStdDev(kept, nil)
	return result
}

// SExtractorEstimate is the mode estimator of Bertin & Arnouts (1996):
// 2.5*median - 1.5*mean, falling back to the median when the clipped
// distribution is strongly skewed and to the mean when it has no spread.
func SExtractorEstimate(s ClippedStats) float64 {
	if s.StdDev == 0 {
		return s.Mean
	}
	if math.Abs(s.Mean-s.Median)/s.StdDev < 0.3 {
		return 2.5*s.Median - 1.5*s.Mean
	}
	return s.Median
}

func sortedMedian(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2.0
	}
	return sorted[n/2]
}

func medianFloat64(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sortedMedian(sorted)
}

// MedianMAD returns the median and the normal-consistent median absolute
// deviation (1.4826 * MAD).
func MedianMAD(values []float64) (float64, float64) {
	if len(values) == 0 {
		return math.NaN(), math.NaN()
	}
	median := medianFloat64(values)
	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - median)
	}
	return median, 1.4826 * medianFloat64(deviations)
}
