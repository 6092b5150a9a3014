package model

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// spearman computes the Spearman rank-correlation coefficient: the
// Pearson correlation of the two rank vectors. Ties receive their
// average rank.
func spearman(a, b []float64) float64 {
	if len(a) < 2 || len(a) != len(b) {
		return 0
	}
	return stat.Correlation(averageRanks(a), averageRanks(b), nil)
}

func averageRanks(values []float64) []float64 {
	n := len(values)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return values[order[i]] < values[order[j]]
	})

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && values[order[j+1]] == values[order[i]] {
			j++
		}
		// average rank across the tie group, 1-based
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = avg
		}
		i = j + 1
	}
	return ranks
}
