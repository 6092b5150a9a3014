package model

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raceforge/regsim/internal/dataset"
)

// newLinearTable builds a table where position = 0.5*pace + 2 exactly,
// with enough rows that the ridge penalty barely biases the fit.
func newLinearTable(t *testing.T, rows int) *dataset.Table {
	t.Helper()
	table := dataset.NewTable([]string{"pace", "grid", "position"})
	for i := 0; i < rows; i++ {
		pace := float64(i%20 + 1)
		grid := float64((i*7)%20 + 1)
		require.NoError(t, table.Append(dataset.Row{
			Driver: fmt.Sprintf("DRV%d", i%10), Season: 2024, Round: i/10 + 1,
			Values: []float64{pace, grid, 0.5*pace + 2},
		}))
	}
	return table
}

func TestFit_RecoversLinearRelation(t *testing.T) {
	table := newLinearTable(t, 200)

	m, err := Fit(table, "position", []string{"pace", "grid"}, 42)
	require.NoError(t, err)

	assert.Equal(t, 160, m.Metrics.TrainRows)
	assert.Equal(t, 40, m.Metrics.HoldoutRows)
	assert.Less(t, m.Metrics.MAE, 0.25)
	assert.Less(t, m.Metrics.RMSE, 0.5)
	assert.Greater(t, m.Metrics.SpearmanRho, 0.95)

	batch := dataset.NewTable([]string{"pace", "grid"})
	require.NoError(t, batch.Append(dataset.Row{Driver: "DRV0", Values: []float64{10, 5}}))
	preds, err := m.Predict(batch)
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.InDelta(t, 7.0, preds[0], 0.5)
}

func TestFit_DeterministicForSeed(t *testing.T) {
	table := newLinearTable(t, 100)

	a, err := Fit(table, "position", []string{"pace", "grid"}, 42)
	require.NoError(t, err)
	b, err := Fit(table, "position", []string{"pace", "grid"}, 42)
	require.NoError(t, err)

	assert.Equal(t, a.Metrics, b.Metrics)
	assert.Equal(t, a.weights, b.weights)
	assert.Equal(t, a.intercept, b.intercept)
}

func TestFit_EmptyTable(t *testing.T) {
	_, err := Fit(dataset.NewTable([]string{"pace"}), "position", []string{"pace"}, 1)
	assert.True(t, errors.Is(err, dataset.ErrEmptyTable))
}

func TestFit_MissingFeatureColumn(t *testing.T) {
	table := newLinearTable(t, 20)
	_, err := Fit(table, "position", []string{"pace", "downforce"}, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dataset.ErrMissingColumn))
	assert.Contains(t, err.Error(), "downforce")
}

func TestFit_NaNTarget(t *testing.T) {
	table := newLinearTable(t, 20)
	table.Rows[3].Values[2] = math.NaN()
	_, err := Fit(table, "position", []string{"pace", "grid"}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NaN target")
}

func TestFit_ImputesMissingFeatures(t *testing.T) {
	table := newLinearTable(t, 100)
	table.Rows[5].Values[1] = math.NaN()
	table.Rows[17].Values[1] = math.NaN()

	m, err := Fit(table, "position", []string{"pace", "grid"}, 42)
	require.NoError(t, err)

	batch := dataset.NewTable([]string{"pace", "grid"})
	require.NoError(t, batch.Append(dataset.Row{Driver: "DRV0", Values: []float64{10, math.NaN()}}))
	preds, err := m.Predict(batch)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(preds[0]))
}

func TestPredict_ColumnMismatch(t *testing.T) {
	table := newLinearTable(t, 50)
	m, err := Fit(table, "position", []string{"pace", "grid"}, 1)
	require.NoError(t, err)

	batch := dataset.NewTable([]string{"pace", "tire_age"})
	require.NoError(t, batch.Append(dataset.Row{Values: []float64{10, 3}}))
	_, err = m.Predict(batch)
	assert.True(t, errors.Is(err, ErrColumnMismatch))
}

func TestPredict_DuplicateColumnRejected(t *testing.T) {
	table := newLinearTable(t, 50)
	m, err := Fit(table, "position", []string{"pace", "grid"}, 1)
	require.NoError(t, err)

	// same width as the fit schema, but one column twice and one absent
	batch := dataset.NewTable([]string{"pace", "pace"})
	require.NoError(t, batch.Append(dataset.Row{Values: []float64{8, 8}}))
	_, err = m.Predict(batch)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrColumnMismatch))
	assert.Contains(t, err.Error(), "grid")
}

func TestPredict_ColumnOrderIrrelevant(t *testing.T) {
	table := newLinearTable(t, 50)
	m, err := Fit(table, "position", []string{"pace", "grid"}, 1)
	require.NoError(t, err)

	forward := dataset.NewTable([]string{"pace", "grid"})
	require.NoError(t, forward.Append(dataset.Row{Values: []float64{8, 4}}))
	reversed := dataset.NewTable([]string{"grid", "pace"})
	require.NoError(t, reversed.Append(dataset.Row{Values: []float64{4, 8}}))

	a, err := m.Predict(forward)
	require.NoError(t, err)
	b, err := m.Predict(reversed)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPredict_NotFitted(t *testing.T) {
	var m Ridge
	batch := dataset.NewTable([]string{"pace"})
	_, err := m.Predict(batch)
	assert.True(t, errors.Is(err, ErrNotFitted))
}

func TestSpearman(t *testing.T) {
	assert.InDelta(t, 1.0, spearman([]float64{1, 2, 3, 4}, []float64{10, 20, 30, 40}), 1e-9)
	assert.InDelta(t, -1.0, spearman([]float64{1, 2, 3, 4}, []float64{40, 30, 20, 10}), 1e-9)
	// monotone transform leaves rank correlation at 1
	assert.InDelta(t, 1.0, spearman([]float64{1, 2, 3, 4}, []float64{1, 4, 9, 16}), 1e-9)
}

func TestAverageRanks_Ties(t *testing.T) {
	assert.Equal(t, []float64{1.5, 1.5, 3}, averageRanks([]float64{2, 2, 5}))
}
