package usecase

import "math"

// mean returns 0 for an empty slice rather than NaN; every ratio in the
// detectors goes through these guards.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev is the population standard deviation.
func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sumSq float64
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// zScore returns 0 when the deviation is zero instead of dividing by it.
func zScore(value, m, sd float64) float64 {
	if sd == 0 {
		return 0
	}
	return (value - m) / sd
}

// safeRatio divides a by b, returning 0 for a zero denominator.
func safeRatio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
