package simulation

import (
	"errors"
	"fmt"
)

// Group tags a feature column with the perturbation policy it receives.
type Group int

const (
	// GroupNone columns (venue, ruleset, derived, context) are never perturbed.
	GroupNone Group = iota
	// GroupForm columns get one shared multiplicative normal noise per row.
	GroupForm
	// GroupWeather columns get independent multiplicative normal noise per cell.
	GroupWeather
	// GroupStrategy columns get an additive integer step in {-1,0,+1} * delta.
	GroupStrategy
)

// ErrUnmappedColumn indicates a feature column without a declared
// perturbation group. A renamed column must fail loudly here instead of
// silently losing its noise.
var ErrUnmappedColumn = errors.New("simulation: feature column has no perturbation group")

// GroupMap declares the perturbation group of every feature column.
type GroupMap map[string]Group

// DefaultGroups maps the 25 curated feature columns. fuel_flow_ratio and
// the other ruleset-parameter columns are deliberately untouched even
// though their names resemble strategy columns.
func DefaultGroups() GroupMap {
	return GroupMap{
		// recent form + qualifying
		"avg_pos_last5":      GroupForm,
		"points_last5":       GroupNone,
		"dnf_count_last5":    GroupNone,
		"grid_position":      GroupForm,
		"grid_vs_race_delta": GroupForm,
		// venue
		"track_type_index":      GroupNone,
		"corners":               GroupNone,
		"straight_fraction":     GroupNone,
		"overtaking_difficulty": GroupNone,
		// environment
		"rain_probability":  GroupWeather,
		"track_temperature": GroupWeather,
		"wind_speed":        GroupWeather,
		// strategy
		"pit_stops_count":            GroupStrategy,
		"tire_compound_change_count": GroupStrategy,
		"fuel_efficiency_rating":     GroupStrategy,
		// ruleset parameters
		"power_ratio":     GroupNone,
		"aero_coeff":      GroupNone,
		"weight_ratio":    GroupNone,
		"tire_grip_ratio": GroupNone,
		"fuel_flow_ratio": GroupNone,
		// derived + context
		"team_consistency_score":      GroupNone,
		"driver_aggressiveness_index": GroupNone,
		"season_year":                 GroupNone,
		"round_number":                GroupNone,
		"season_phase":                GroupNone,
	}
}

// Validate checks the mapping against the actual feature-column list:
// every feature column must be declared, and every declared column must
// exist, so renames fail at startup rather than changing behavior.
func (g GroupMap) Validate(columns []string) error {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		if _, ok := g[c]; !ok {
			return fmt.Errorf("%w: %q", ErrUnmappedColumn, c)
		}
		present[c] = true
	}
	for c := range g {
		if !present[c] {
			return fmt.Errorf("simulation: perturbation group declared for unknown column %q", c)
		}
	}
	return nil
}

func (g GroupMap) indices(columns []string, group Group) []int {
	var out []int
	for i, c := range columns {
		if g[c] == group {
			out = append(out, i)
		}
	}
	return out
}
