package dataset

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
)

// Metadata columns recognized in a feature table CSV. Everything else is
// treated as a numeric feature column.
const (
	colSeason    = "season"
	colRound     = "round"
	colDriver    = "driver_name"
	colTeam      = "team_name"
	colEventName = "event_name"
)

var metaColumns = map[string]bool{
	colSeason:    true,
	colRound:     true,
	colDriver:    true,
	colTeam:      true,
	colEventName: true,
}

// LoadCSV reads a feature table from a flat CSV file. The header must
// contain season, round and driver_name metadata columns; remaining
// columns become numeric table columns. Empty or unparseable cells load
// as NaN so imputation can handle them downstream.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset: %s: %w", path, ErrEmptyTable)
	}

	header := records[0]
	for _, required := range []string{colSeason, colRound, colDriver} {
		if !contains(header, required) {
			return nil, fmt.Errorf("%w: %q in %s", ErrMissingColumn, required, path)
		}
	}

	var columns []string
	for _, name := range header {
		if !metaColumns[name] {
			columns = append(columns, name)
		}
	}

	table := NewTable(columns)
	for lineNum, record := range records[1:] {
		if len(record) != len(header) {
			return nil, fmt.Errorf("dataset: %s line %d: %d fields, header has %d", path, lineNum+2, len(record), len(header))
		}
		row := Row{Values: make([]float64, 0, len(columns))}
		for i, cell := range record {
			name := header[i]
			switch name {
			case colSeason:
				row.Season, err = strconv.Atoi(cell)
			case colRound:
				row.Round, err = strconv.Atoi(cell)
			case colDriver:
				row.Driver = cell
			case colTeam:
				row.Team = cell
			case colEventName:
				row.EventName = cell
			default:
				row.Values = append(row.Values, parseCell(cell))
			}
			if err != nil {
				return nil, fmt.Errorf("dataset: %s line %d column %q: %w", path, lineNum+2, name, err)
			}
		}
		if err := table.Append(row); err != nil {
			return nil, err
		}
	}
	return table, nil
}

func parseCell(cell string) float64 {
	if cell == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
