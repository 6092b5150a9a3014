package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raceforge/regsim/internal/model"
	"github.com/raceforge/regsim/internal/simulation"
)

// styleArtifact spans three events so both drivers clear the minimum
// race count for the adaptation digest.
func styleArtifact() Artifact {
	outcome := func(mean float64) simulation.Outcome {
		return simulation.Outcome{Mean: mean, Std: 0.5, Median: mean, Min: mean - 1, Max: mean + 1, Top3Probability: 0.4}
	}
	artifact := Artifact{}
	for round := 1; round <= 3; round++ {
		artifact[fmt.Sprintf("2024_R%02d", round)] = EventResult{
			EventName: "Monza Grand Prix",
			Current: map[string]simulation.Outcome{
				"VER": outcome(3.0),
				"NOR": outcome(4.0),
			},
			Future: map[string]simulation.Outcome{
				"VER": outcome(2.0), // gains a full position
				"NOR": outcome(5.0), // loses one
			},
		}
	}
	return artifact
}

func TestDrivingStyles(t *testing.T) {
	styles := DrivingStyles(styleArtifact())
	require.Len(t, styles, 2)

	top := styles[0]
	assert.Equal(t, "VER", top.DriverName)
	assert.InDelta(t, 1.0, top.AvgPositionImprovement, 1e-9)
	assert.Equal(t, "excellent", top.AdaptationLevel)
	assert.True(t, top.Beneficiary)
	assert.Equal(t, 3, top.RacesAnalyzed)
	assert.InDelta(t, 3.0, top.AvgCurrentPosition, 1e-9)
	assert.InDelta(t, 2.0, top.AvgFuturePosition, 1e-9)

	bottom := styles[1]
	assert.Equal(t, "NOR", bottom.DriverName)
	assert.Equal(t, "challenged", bottom.AdaptationLevel)
	assert.False(t, bottom.Beneficiary)
}

func TestDrivingStyles_SkipsShortHistories(t *testing.T) {
	artifact := styleArtifact()
	delete(artifact, "2024_R03")
	assert.Empty(t, DrivingStyles(artifact))
}

func TestClassifyAdaptation(t *testing.T) {
	cases := []struct {
		change      float64
		level       string
		beneficiary bool
	}{
		{0.5, "excellent", true},
		{0.1, "good", true},
		{0.0, "neutral", false},
		{-0.2, "neutral", false},
		{-1.0, "challenged", false},
	}
	for _, tc := range cases {
		level, beneficiary := classifyAdaptation(tc.change)
		assert.Equal(t, tc.level, level, "change %v", tc.change)
		assert.Equal(t, tc.beneficiary, beneficiary, "change %v", tc.change)
	}
}

func TestWriteExports(t *testing.T) {
	dir := t.TempDir()
	metrics := model.Metrics{MAE: 1.2, RMSE: 1.8, SpearmanRho: 0.7}

	written, err := WriteExports(dir, styleArtifact(), metrics, 2000)
	require.NoError(t, err)
	require.Len(t, written, 4)

	names := map[string]bool{}
	for _, path := range written {
		names[filepath.Base(path)] = true
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, json.Valid(data), path)
	}
	assert.True(t, names["driving_styles_impact.json"])
	assert.True(t, names["regulation_factors_breakdown.json"])
	assert.True(t, names["overtaking_analysis.json"])
	assert.True(t, names["uncertainty_analysis.json"])

	var uncertainty struct {
		ModelMetrics struct {
			MAE            float64 `json:"mean_absolute_error"`
			SimulationRuns int     `json:"simulation_runs"`
		} `json:"model_metrics"`
		Drivers []struct {
			Driver string `json:"driver"`
			Level  string `json:"uncertainty_level"`
		} `json:"driver_uncertainty"`
	}
	data, err := os.ReadFile(filepath.Join(dir, "uncertainty_analysis.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &uncertainty))
	assert.Equal(t, 1.2, uncertainty.ModelMetrics.MAE)
	assert.Equal(t, 2000, uncertainty.ModelMetrics.SimulationRuns)
	require.Len(t, uncertainty.Drivers, 2)
	assert.Equal(t, "low", uncertainty.Drivers[0].Level) // std 0.5
}
