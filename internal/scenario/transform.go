package scenario

import (
	"errors"
	"fmt"
	"sort"

	"github.com/raceforge/regsim/internal/dataset"
)

// ErrMissingColumn indicates a multiplier references a column absent from
// the feature table. Transforms never silently skip listed columns.
var ErrMissingColumn = errors.New("scenario: missing feature column")

// The 2026 technical regulation multipliers applied to the baseline
// ruleset-parameter columns. Domain constants, not learned; a sensitivity
// run overrides a single entry via configuration.
const (
	PowerRatioMultiplier    = 3.33
	AeroCoeffMultiplier     = 0.70
	WeightRatioMultiplier   = 0.962
	FuelFlowRatioMultiplier = 0.75
	TireGripRatioMultiplier = 0.94
)

// Scenario is a named multiplier set over ruleset-parameter columns.
type Scenario struct {
	Name        string
	Multipliers map[string]float64
}

// New builds a scenario from a name and multiplier table. A nil table is
// treated as the identity transform.
func New(name string, multipliers map[string]float64) Scenario {
	copied := make(map[string]float64, len(multipliers))
	for column, m := range multipliers {
		copied[column] = m
	}
	return Scenario{Name: name, Multipliers: copied}
}

// Baseline returns the identity scenario: no column is modified.
func Baseline() Scenario {
	return Scenario{Name: "current", Multipliers: map[string]float64{}}
}

// Future2026 returns the hypothesized 2026 regulation scenario.
func Future2026() Scenario {
	return New("future", map[string]float64{
		"power_ratio":     PowerRatioMultiplier,
		"aero_coeff":      AeroCoeffMultiplier,
		"weight_ratio":    WeightRatioMultiplier,
		"fuel_flow_ratio": FuelFlowRatioMultiplier,
		"tire_grip_ratio": TireGripRatioMultiplier,
	})
}

// RegulationFactors groups the 2026 multipliers by the technical
// regulation that introduces them, for reporting.
func RegulationFactors() map[string]map[string]float64 {
	return map[string]map[string]float64{
		"hybrid_power": {"power_ratio": PowerRatioMultiplier},
		"active_aero":  {"aero_coeff": AeroCoeffMultiplier},
		"chassis":      {"weight_ratio": WeightRatioMultiplier},
		"tyres":        {"tire_grip_ratio": TireGripRatioMultiplier},
		"fuel":         {"fuel_flow_ratio": FuelFlowRatioMultiplier},
	}
}

// RequiredColumns returns the columns this scenario multiplies, sorted.
func (s Scenario) RequiredColumns() []string {
	columns := make([]string, 0, len(s.Multipliers))
	for column := range s.Multipliers {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns
}

// Validate checks every multiplied column exists in the given schema.
func (s Scenario) Validate(columns []string) error {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}
	for _, c := range s.RequiredColumns() {
		if !present[c] {
			return fmt.Errorf("%w: scenario %q requires %q", ErrMissingColumn, s.Name, c)
		}
	}
	return nil
}

// Apply returns a copy of the table with each listed column multiplied by
// its factor. All other columns pass through unchanged. The transform is
// pure and order-independent across columns.
func (s Scenario) Apply(t *dataset.Table) (*dataset.Table, error) {
	if err := s.Validate(t.Columns); err != nil {
		return nil, err
	}
	out := t.Clone()
	for column, multiplier := range s.Multipliers {
		i, _ := out.ColumnIndex(column)
		for r := range out.Rows {
			out.Rows[r].Values[i] *= multiplier
		}
	}
	return out, nil
}
