package features

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/raceforge/regsim/internal/dataset"
	"github.com/raceforge/regsim/pkg/logger"
)

const (
	driverFormWindow = 5
	teamFormWindow   = 5

	// TargetColumn is the supervised outcome label: final classification
	// position.
	TargetColumn = "position"
)

// Columns returns the 25 curated feature columns in canonical order.
func Columns() []string {
	return []string{
		"avg_pos_last5",
		"points_last5",
		"dnf_count_last5",
		"grid_position",
		"grid_vs_race_delta",
		"track_type_index",
		"corners",
		"straight_fraction",
		"overtaking_difficulty",
		"rain_probability",
		"track_temperature",
		"wind_speed",
		"pit_stops_count",
		"tire_compound_change_count",
		"fuel_efficiency_rating",
		"power_ratio",
		"aero_coeff",
		"weight_ratio",
		"tire_grip_ratio",
		"fuel_flow_ratio",
		"team_consistency_score",
		"driver_aggressiveness_index",
		"season_year",
		"round_number",
		"season_phase",
	}
}

// RaceResult is one raw (driver, race) record before feature engineering.
// Numeric fields use NaN for missing values.
type RaceResult struct {
	Season       int
	Round        int
	DriverNumber int
	DriverName   string
	TeamName     string
	EventName    string

	Position float64
	Grid     float64
	Points   float64
	DNFFlag  float64

	RainfallMM        float64
	TrackTempC        float64
	WindSpeedKPH      float64
	PitStopCount      float64
	CompoundChanges   float64
	AvgLapTimeSeconds float64
}

var trackTypeOrder = map[string]int{
	"high-speed":     4,
	"high downforce": 3,
	"high-downforce": 3,
	// thin air forces maximum wing, so altitude circuits behave like
	// high-downforce ones
	"high-altitude":  3,
	"street":         2,
	"semi-street":    2,
	"night-street":   2,
	"mixed":          1,
	"balanced":       1,
	"low-grip":       0,
	"":               0,
}

// Engineer builds the feature table (25 feature columns plus the
// position target) from raw race results enriched with circuit metadata.
// Rows come out sorted by (season, round, driver number), the order the
// rolling form windows assume.
func Engineer(results []RaceResult, circuits map[string]Circuit) (*dataset.Table, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("features: no race results: %w", dataset.ErrEmptyTable)
	}

	rows := append([]RaceResult(nil), results...)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Season != rows[j].Season {
			return rows[i].Season < rows[j].Season
		}
		if rows[i].Round != rows[j].Round {
			return rows[i].Round < rows[j].Round
		}
		return rows[i].DriverNumber < rows[j].DriverNumber
	})

	n := len(rows)
	position := make([]float64, n)
	grid := make([]float64, n)
	points := make([]float64, n)
	dnf := make([]float64, n)
	for i, r := range rows {
		position[i] = fillNaN(r.Position, 20)
		grid[i] = fillNaN(r.Grid, 20)
		points[i] = fillNaN(r.Points, 0)
		dnf[i] = fillNaN(r.DNFFlag, 0)
	}

	// expanding means over the whole sorted frame back-fill a driver's
	// first appearance, matching the historical pipeline
	expandingPos := expandingMean(position)
	expandingPoints := expandingMean(points)

	avgPosLast5 := make([]float64, n)
	pointsLast5 := make([]float64, n)
	dnfLast5 := make([]float64, n)
	driverHistory := make(map[string][]int)
	for i, r := range rows {
		prior := driverHistory[r.DriverName]
		window := tail(prior, driverFormWindow)
		if len(window) > 0 {
			avgPosLast5[i] = meanAt(position, window)
			pointsLast5[i] = sumAt(points, window)
			dnfLast5[i] = sumAt(dnf, window)
		} else {
			avgPosLast5[i] = expandingPos[i]
			pointsLast5[i] = expandingPoints[i]
			dnfLast5[i] = 0
		}
		driverHistory[r.DriverName] = append(prior, i)
	}

	teamStd := make([]float64, n)
	teamHistory := make(map[string][]int)
	for i, r := range rows {
		prior := teamHistory[r.TeamName]
		window := tail(prior, teamFormWindow)
		if len(window) >= 2 {
			teamStd[i] = sampleStdAt(position, window)
		} else {
			teamStd[i] = math.NaN()
		}
		teamHistory[r.TeamName] = append(prior, i)
	}
	stdFill := medianIgnoringNaN(teamStd)
	if math.IsNaN(stdFill) || stdFill == 0 {
		stdFill = 1.0
	}

	lapFill := medianOfValid(rows)

	table := dataset.NewTable(append(Columns(), TargetColumn))
	for i, r := range rows {
		circuit, hasCircuit := circuits[EventTrackKey(r.EventName)]
		trackType := ""
		corners := 14.0
		straight := 0.45
		overtaking := 3.0
		if hasCircuit {
			trackType = circuit.TrackType
			corners = circuit.Corners
			straight = circuit.StraightFraction
			overtaking = circuit.OvertakingDifficulty
		}

		rain := fillNaN(r.RainfallMM, 0)
		pit := fillNaN(r.PitStopCount, 1)
		avgLap := fillNaN(r.AvgLapTimeSeconds, lapFill)

		std := teamStd[i]
		if math.IsNaN(std) {
			std = stdFill
		}

		aggressivenessPit := pit
		if aggressivenessPit == 0 {
			aggressivenessPit = 1
		}

		values := map[string]float64{
			"avg_pos_last5":      avgPosLast5[i],
			"points_last5":       pointsLast5[i],
			"dnf_count_last5":    dnfLast5[i],
			"grid_position":      grid[i],
			"grid_vs_race_delta": position[i] - grid[i],

			"track_type_index":      float64(trackTypeOrder[trackType]),
			"corners":               corners,
			"straight_fraction":     straight,
			"overtaking_difficulty": clamp(overtaking, 1, 5),

			"rain_probability":  clamp(rain/5.0, 0, 1),
			"track_temperature": fillNaN(r.TrackTempC, 30),
			"wind_speed":        fillNaN(r.WindSpeedKPH, 10),

			"pit_stops_count":            pit,
			"tire_compound_change_count": fillNaN(r.CompoundChanges, 1),
			"fuel_efficiency_rating":     1.0 / (1.0 + pit) * clamp(100.0/avgLap, 0.5, 1.5),

			"power_ratio":     0.15,
			"aero_coeff":      1.00,
			"weight_ratio":    1.00,
			"tire_grip_ratio": 1.00,
			"fuel_flow_ratio": 1.00,

			"team_consistency_score":      clamp(1.0/(1.0+std), 0.1, 1.0),
			"driver_aggressiveness_index": (grid[i] - position[i]) / aggressivenessPit,

			"season_year":  float64(r.Season),
			"round_number": float64(r.Round),
			"season_phase": float64(seasonPhase(r.Round)),

			TargetColumn: position[i],
		}

		row := dataset.Row{
			Driver:    r.DriverName,
			Team:      r.TeamName,
			Season:    r.Season,
			Round:     r.Round,
			EventName: r.EventName,
			Values:    make([]float64, len(table.Columns)),
		}
		for j, column := range table.Columns {
			row.Values[j] = values[column]
		}
		if err := table.Append(row); err != nil {
			return nil, err
		}
	}

	logger.WithStage("feature-engineering").WithFields(logrus.Fields{
		"rows":    table.NumRows(),
		"columns": len(Columns()),
	}).Info("Engineered feature table")

	return table, nil
}

func seasonPhase(round int) int {
	switch {
	case round <= 7:
		return 1
	case round <= 15:
		return 2
	default:
		return 3
	}
}

func fillNaN(v, fallback float64) float64 {
	if math.IsNaN(v) {
		return fallback
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func expandingMean(values []float64) []float64 {
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		out[i] = sum / float64(i+1)
	}
	return out
}

func tail(idx []int, window int) []int {
	if len(idx) <= window {
		return idx
	}
	return idx[len(idx)-window:]
}

func meanAt(values []float64, idx []int) float64 {
	sum := 0.0
	for _, i := range idx {
		sum += values[i]
	}
	return sum / float64(len(idx))
}

func sumAt(values []float64, idx []int) float64 {
	sum := 0.0
	for _, i := range idx {
		sum += values[i]
	}
	return sum
}

func sampleStdAt(values []float64, idx []int) float64 {
	mean := meanAt(values, idx)
	sumSquares := 0.0
	for _, i := range idx {
		diff := values[i] - mean
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(idx)-1))
}

func medianIgnoringNaN(values []float64) float64 {
	var valid []float64
	for _, v := range values {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return math.NaN()
	}
	sort.Float64s(valid)
	n := len(valid)
	if n%2 == 0 {
		return (valid[n/2-1] + valid[n/2]) / 2
	}
	return valid[n/2]
}

func medianOfValid(rows []RaceResult) float64 {
	var laps []float64
	for _, r := range rows {
		if !math.IsNaN(r.AvgLapTimeSeconds) {
			laps = append(laps, r.AvgLapTimeSeconds)
		}
	}
	m := medianIgnoringNaN(laps)
	if math.IsNaN(m) {
		return 100.0
	}
	return m
}
