package simulation

import (
	"math"
	"sort"
)

// summary computes the distribution statistics for one entity's draws.
// Standard deviation divides by n: the draws are the realized empirical
// distribution, not a sample from a larger one.
func summary(values []float64) (mean, std, median, min, max, p5, p95 float64) {
	n := len(values)
	if n == 0 {
		return
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(n)

	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	std = math.Sqrt(sumSquares / float64(n))

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	min = sorted[0]
	max = sorted[n-1]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	} else {
		median = sorted[n/2]
	}
	p5 = percentileLinear(sorted, 5)
	p95 = percentileLinear(sorted, 95)
	return
}

// percentileLinear computes a percentile of pre-sorted values with
// linear interpolation between the two nearest order statistics.
func percentileLinear(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := p / 100 * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// thresholdProbability is the fraction of draws at or below the threshold.
func thresholdProbability(values []float64, threshold float64) float64 {
	if len(values) == 0 {
		return 0
	}
	count := 0
	for _, v := range values {
		if v <= threshold {
			count++
		}
	}
	return float64(count) / float64(len(values))
}

// drawRanks converts one draw's raw predicted values into within-draw
// ranks 1..n via a stable ascending sort; ties keep entity order.
func drawRanks(values []float64) []float64 {
	n := len(values)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return values[order[i]] < values[order[j]]
	})
	ranks := make([]float64, n)
	for rank, idx := range order {
		ranks[idx] = float64(rank + 1)
	}
	return ranks
}
