package features

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitKey(t *testing.T) {
	assert.Equal(t, "spa-francorchamps", Circuit{Name: "Spa-Francorchamps"}.Key())
	assert.Equal(t, "mexico-city", Circuit{Name: "Mexico City"}.Key())
	assert.Equal(t, "monza", Circuit{Name: "Monza Grand Prix"}.Key())
}

func TestCircuitIndex_ResolvesAliases(t *testing.T) {
	index := CircuitIndex(DefaultCircuits())

	for _, key := range []string{"hungary", "spa", "cota", "sao_paulo", "mexico", "las_vegas", "monza"} {
		_, ok := index[key]
		assert.True(t, ok, key)
	}
	assert.Equal(t, "Budapest", index["hungary"].Name)
}

func TestEventTrackKey(t *testing.T) {
	assert.Equal(t, "monza", EventTrackKey("Italian Grand Prix"))
	assert.Equal(t, "sao_paulo", EventTrackKey("São Paulo Grand Prix"))
	assert.Equal(t, "heritage_grand_prix", EventTrackKey("Heritage Grand Prix"))
}

func TestTrackMetadataDefaults(t *testing.T) {
	assert.Equal(t, 0.95, BoostEffectiveness("monza"))
	assert.Equal(t, 0.5, BoostEffectiveness("unknown_track"))
	assert.Equal(t, "high-speed", TrackType("spa"))
	assert.Equal(t, "mixed", TrackType("unknown_track"))
	assert.Equal(t, "Monaco Grand Prix", TrackName("monaco"))
}

func TestLoadCircuitsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "circuits.csv")
	content := "circuit_name,country,track_type,corners,straight_fraction,overtaking_difficulty\n" +
		"Monza,Italy,high-speed,11,0.74,1\n" +
		"Budapest,Hungary,high-downforce,14,bad,4\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	circuits, err := LoadCircuitsCSV(path)
	require.NoError(t, err)
	require.Len(t, circuits, 2)
	assert.Equal(t, 11.0, circuits[0].Corners)
	// unparseable cells fall back to engineering defaults
	assert.Equal(t, 0.45, circuits[1].StraightFraction)
}

func TestLoadCircuitsCSV_MissingFileUsesDefaults(t *testing.T) {
	circuits, err := LoadCircuitsCSV(filepath.Join(t.TempDir(), "absent.csv"))
	require.NoError(t, err)
	assert.Equal(t, DefaultCircuits(), circuits)
}

func TestLoadResultsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	content := "season,round,driver_name,team_name,event_name,position,grid,points,dnf_flag,pit_stop_count\n" +
		"2024,1,VER,Red Bull,Bahrain Grand Prix,1,1,26,0,2\n" +
		"2024,1,NOR,McLaren,Bahrain Grand Prix,,4,0,1,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	results, err := LoadResultsCSV(path)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "VER", results[0].DriverName)
	assert.Equal(t, 1.0, results[0].Position)
	assert.Equal(t, 2.0, results[0].PitStopCount)
	// absent optional telemetry loads as NaN
	assert.True(t, math.IsNaN(results[0].RainfallMM))
	// empty position stays NaN for the engineering fallback
	assert.True(t, math.IsNaN(results[1].Position))
	assert.Equal(t, 1.0, results[1].DNFFlag)
}

func TestLoadResultsCSV_MissingRequiredColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	content := "season,round,driver_name,team_name,position,grid,points\n2024,1,VER,RB,1,1,26\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadResultsCSV(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dnf_flag")
}
