package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummary_PopulationStd(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	mean, std, median, min, max, _, _ := summary(values)

	assert.Equal(t, 5.0, mean)
	assert.Equal(t, 2.0, std) // divides by n, not n-1
	assert.Equal(t, 4.5, median)
	assert.Equal(t, 2.0, min)
	assert.Equal(t, 9.0, max)
}

func TestPercentileLinear_Interpolates(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}

	assert.InDelta(t, 1.2, percentileLinear(sorted, 5), 1e-9)
	assert.InDelta(t, 3.0, percentileLinear(sorted, 50), 1e-9)
	assert.InDelta(t, 4.8, percentileLinear(sorted, 95), 1e-9)

	even := []float64{1, 2, 3, 4}
	assert.InDelta(t, 2.5, percentileLinear(even, 50), 1e-9)
}

func TestPercentileLinear_Degenerate(t *testing.T) {
	assert.Equal(t, 0.0, percentileLinear(nil, 50))
	assert.Equal(t, 7.0, percentileLinear([]float64{7}, 95))
}

func TestThresholdProbability(t *testing.T) {
	values := []float64{1, 2, 3, 4}

	assert.Equal(t, 0.75, thresholdProbability(values, 3))
	assert.Equal(t, 1.0, thresholdProbability(values, 4))
	assert.Equal(t, 0.0, thresholdProbability(values, 0.5))
}

func TestDrawRanks(t *testing.T) {
	assert.Equal(t, []float64{3, 1, 2}, drawRanks([]float64{3.2, 1.1, 2.5}))
}

func TestDrawRanks_TiesKeepEntityOrder(t *testing.T) {
	// both 1.0 values tie; the earlier entity keeps the lower rank
	assert.Equal(t, []float64{3, 1, 2}, drawRanks([]float64{2.0, 1.0, 1.0}))
}
