package features

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/raceforge/regsim/pkg/logger"
)

// Circuit holds the venue characteristics used for feature enrichment.
type Circuit struct {
	Name                 string
	Country              string
	TrackType            string
	Corners              float64
	StraightFraction     float64
	OvertakingDifficulty float64
}

// Key normalizes the circuit name into a lookup key.
func (c Circuit) Key() string {
	key := strings.ToLower(c.Name)
	key = strings.ReplaceAll(key, " grand prix", "")
	key = strings.ReplaceAll(key, " ", "-")
	return key
}

// circuitAliases maps normalized circuit keys to calendar track keys
// where the naming diverges.
var circuitAliases = map[string]string{
	"budapest":          "hungary",
	"spa-francorchamps": "spa",
	"austin":            "cota",
	"interlagos":        "sao_paulo",
	"mexico-city":       "mexico",
	"las-vegas":         "las_vegas",
}

// DefaultCircuits returns the bundled circuit metadata used when no
// circuits CSV is supplied.
func DefaultCircuits() []Circuit {
	return []Circuit{
		{"Bahrain", "Bahrain", "night-street", 15, 0.58, 3},
		{"Jeddah", "Saudi Arabia", "street", 27, 0.63, 4},
		{"Melbourne", "Australia", "street", 14, 0.42, 3},
		{"Imola", "Italy", "high-downforce", 19, 0.41, 4},
		{"Monaco", "Monaco", "street", 19, 0.25, 5},
		{"Barcelona", "Spain", "balanced", 16, 0.47, 3},
		{"Montreal", "Canada", "semi-street", 14, 0.54, 2},
		{"Silverstone", "United Kingdom", "high-speed", 18, 0.52, 2},
		{"Spielberg", "Austria", "high-speed", 10, 0.64, 2},
		{"Budapest", "Hungary", "high-downforce", 14, 0.34, 4},
		{"Spa-Francorchamps", "Belgium", "high-speed", 19, 0.57, 2},
		{"Zandvoort", "Netherlands", "high-downforce", 14, 0.36, 4},
		{"Monza", "Italy", "high-speed", 11, 0.74, 1},
		{"Singapore", "Singapore", "street", 19, 0.33, 4},
		{"Suzuka", "Japan", "mixed", 18, 0.44, 3},
		{"Austin", "USA", "mixed", 20, 0.45, 2},
		{"Mexico City", "Mexico", "high-downforce", 17, 0.42, 2},
		{"Interlagos", "Brazil", "mixed", 15, 0.43, 2},
		{"Las Vegas", "USA", "street", 17, 0.61, 3},
	}
}

// CircuitIndex keys circuits by calendar track key for event lookup.
func CircuitIndex(circuits []Circuit) map[string]Circuit {
	out := make(map[string]Circuit, len(circuits))
	for _, c := range circuits {
		key := c.Key()
		if alias, ok := circuitAliases[key]; ok {
			key = alias
		}
		out[key] = c
	}
	return out
}

// LoadCircuitsCSV reads circuit metadata from a CSV with columns
// circuit_name, country, track_type, corners, straight_fraction,
// overtaking_difficulty. A missing file falls back to bundled defaults.
func LoadCircuitsCSV(path string) ([]Circuit, error) {
	if path == "" {
		return DefaultCircuits(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.WithStage("feature-load").WithField("path", path).Warn("Circuit metadata CSV not found, using bundled defaults")
			return DefaultCircuits(), nil
		}
		return nil, fmt.Errorf("features: open circuits %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("features: read circuits %s: %w", path, err)
	}
	if len(records) < 2 {
		return DefaultCircuits(), nil
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[name] = i
	}
	required := []string{"circuit_name", "track_type", "corners", "straight_fraction", "overtaking_difficulty"}
	for _, name := range required {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("features: circuits %s: missing column %q", path, name)
		}
	}

	circuits := make([]Circuit, 0, len(records)-1)
	for _, record := range records[1:] {
		c := Circuit{
			Name:      record[col["circuit_name"]],
			TrackType: record[col["track_type"]],
		}
		if i, ok := col["country"]; ok {
			c.Country = record[i]
		}
		c.Corners = parseFloatDefault(record[col["corners"]], 14)
		c.StraightFraction = parseFloatDefault(record[col["straight_fraction"]], 0.45)
		c.OvertakingDifficulty = parseFloatDefault(record[col["overtaking_difficulty"]], 3)
		circuits = append(circuits, c)
	}
	return circuits, nil
}

func parseFloatDefault(cell string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return fallback
	}
	return v
}
