package features

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/raceforge/regsim/internal/dataset"
)

// LoadResultsCSV reads raw race results. Required columns: season,
// round, driver_name, team_name, position, grid, points, dnf_flag.
// Optional columns (driver_number, event_name, weather and strategy
// telemetry) load as NaN when absent so engineering defaults apply.
func LoadResultsCSV(path string) ([]RaceResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("features: open results %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("features: read results %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("features: results %s: %w", path, dataset.ErrEmptyTable)
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[name] = i
	}
	required := []string{"season", "round", "driver_name", "team_name", "position", "grid", "points", "dnf_flag"}
	for _, name := range required {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("%w: %q in %s", dataset.ErrMissingColumn, name, path)
		}
	}

	results := make([]RaceResult, 0, len(records)-1)
	for lineNum, record := range records[1:] {
		season, err := strconv.Atoi(record[col["season"]])
		if err != nil {
			return nil, fmt.Errorf("features: %s line %d: season: %w", path, lineNum+2, err)
		}
		round, err := strconv.Atoi(record[col["round"]])
		if err != nil {
			return nil, fmt.Errorf("features: %s line %d: round: %w", path, lineNum+2, err)
		}

		r := RaceResult{
			Season:     season,
			Round:      round,
			DriverName: record[col["driver_name"]],
			TeamName:   record[col["team_name"]],

			Position: floatCell(record, col, "position"),
			Grid:     floatCell(record, col, "grid"),
			Points:   floatCell(record, col, "points"),
			DNFFlag:  floatCell(record, col, "dnf_flag"),

			RainfallMM:        floatCell(record, col, "rainfall_mm"),
			TrackTempC:        floatCell(record, col, "track_temp_c"),
			WindSpeedKPH:      floatCell(record, col, "wind_speed_kph"),
			PitStopCount:      floatCell(record, col, "pit_stop_count"),
			CompoundChanges:   floatCell(record, col, "compound_changes"),
			AvgLapTimeSeconds: floatCell(record, col, "avg_lap_time_seconds"),
		}
		if i, ok := col["driver_number"]; ok {
			if number, err := strconv.Atoi(record[i]); err == nil {
				r.DriverNumber = number
			}
		}
		if i, ok := col["event_name"]; ok {
			r.EventName = record[i]
		}
		results = append(results, r)
	}
	return results, nil
}

func floatCell(record []string, col map[string]int, name string) float64 {
	i, ok := col[name]
	if !ok || record[i] == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(record[i], 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
