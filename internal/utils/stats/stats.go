package stats

import (
	"math"
	"sort"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Median calculates the median of a slice of float64 values
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// Variance calculates the sample variance of a slice of float64 values
func Variance(values []float64) float64 {
	if len(values) <= 1 {
		return 0
	}

	mean := Mean(values)
	sumSquaredDiff := 0.0

	for _, v := range values {
		diff := v - mean
		sumSquaredDiff += diff * diff
	}

	return sumSquaredDiff / float64(len(values)-1)
}

// StandardDeviation calculates the sample standard deviation of a slice of
// float64 values
func StandardDeviation(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// Skewness calculates the adjusted Fisher-Pearson skewness of a distribution
func Skewness(values []float64) float64 {
	if len(values) < 3 {
		return 0
	}

	mean := Mean(values)
	std := StandardDeviation(values)

	if std == 0 {
		return 0
	}

	sum := 0.0
	n := float64(len(values))

	for _, v := range values {
		standardized := (v - mean) / std
		sum += standardized * standardized * standardized
	}

	return (n / ((n - 1) * (n - 2))) * sum
}

// Quantile calculates the q-th quantile (0 <= q <= 1) using linear
// interpolation between the two nearest ranks.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}

	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	frac := pos - float64(lower)

	if lower+1 >= len(sorted) {
		return sorted[lower]
	}
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}

// Round2 rounds to two decimal places, matching how percentages and scores
// are reported throughout the quality engine.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Min returns the smallest value in the slice
func Min(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

// Max returns the largest value in the slice
func Max(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}
