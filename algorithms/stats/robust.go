package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Robust statistics for adaptive thresholding. Median and MAD are
// preferred over mean and standard deviation here because novelty and
// flux series are spiky by nature.

// Median calculates the median of a slice
func Median(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

// MAD calculates the median absolute deviation of a slice
func MAD(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	median := Median(data)

	deviations := make([]float64, len(data))
	for i, val := range data {
		deviations[i] = math.Abs(val - median)
	}

	return Median(deviations)
}

// AdaptiveThreshold computes median + multiplier * MAD
func AdaptiveThreshold(data []float64, multiplier float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	return Median(data) + multiplier*MAD(data)
}

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}
