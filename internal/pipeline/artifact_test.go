package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raceforge/regsim/internal/simulation"
)

func sampleArtifact() Artifact {
	outcome := func(mean, std float64) simulation.Outcome {
		return simulation.Outcome{
			Mean: mean, Std: std, Median: mean, Min: mean - 1, Max: mean + 1,
			Percentile5: mean - 0.5, Percentile95: mean + 0.5,
			Top3Probability: 0.5, Top5Probability: 0.9,
		}
	}
	return Artifact{
		"2024_R01": EventResult{
			EventName: "Bahrain Grand Prix",
			Current:   map[string]simulation.Outcome{"VER": outcome(2, 0.4), "NOR": outcome(3, 0.6)},
			Future:    map[string]simulation.Outcome{"VER": outcome(2.5, 0.5), "NOR": outcome(2.8, 0.7)},
		},
	}
}

func TestWriteArtifact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "outputs", "monte_carlo_results.json")

	require.NoError(t, WriteArtifact(path, sampleArtifact()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]struct {
		EventName string                        `json:"event_name"`
		Current   map[string]simulation.Outcome `json:"current"`
		Future    map[string]simulation.Outcome `json:"future"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Contains(t, decoded, "2024_R01")
	assert.Equal(t, "Bahrain Grand Prix", decoded["2024_R01"].EventName)
	assert.Equal(t, 2.0, decoded["2024_R01"].Current["VER"].Mean)

	// the downstream key contract
	assert.Contains(t, string(data), `"percentile_5"`)
	assert.Contains(t, string(data), `"top3_probability"`)
}

func TestWriteArtifact_ByteIdenticalReruns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.json")
	artifact := sampleArtifact()

	require.NoError(t, WriteArtifact(path, artifact))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, WriteArtifact(path, artifact))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestWriteArtifact_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteArtifact(filepath.Join(dir, "results.json"), sampleArtifact()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.Contains(entry.Name(), ".tmp"), entry.Name())
	}
	assert.Len(t, entries, 1)
}
