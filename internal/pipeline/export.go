package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/raceforge/regsim/internal/features"
	"github.com/raceforge/regsim/internal/model"
	"github.com/raceforge/regsim/internal/scenario"
	"github.com/raceforge/regsim/internal/simulation"
)

// Supplemental analysis exports written next to the main artifact. Each
// digest is a separate JSON document consumed by the reporting layer.

const minRacesForStyle = 3

// DriverStyle summarizes how one driver's outcomes shift under the
// future regulations across all simulated events.
type DriverStyle struct {
	DriverName             string  `json:"driver_name"`
	AvgPositionImprovement float64 `json:"avg_position_improvement"`
	Consistency            float64 `json:"consistency"`
	AdaptationLevel        string  `json:"adaptation_level"`
	Beneficiary            bool    `json:"beneficiary"`
	RacesAnalyzed          int     `json:"races_analyzed"`
	AvgCurrentPosition     float64 `json:"avg_current_position"`
	AvgFuturePosition      float64 `json:"avg_future_position"`
	PodiumProbabilityGain  float64 `json:"podium_probability_gain"`
}

type drivingStylesReport struct {
	TotalDrivers  int           `json:"total_drivers"`
	Drivers       []DriverStyle `json:"drivers"`
	OverallTrends struct {
		AvgImprovement   float64 `json:"avg_improvement"`
		BeneficiaryCount int     `json:"beneficiaries_count"`
		TopBeneficiary   string  `json:"top_beneficiary"`
	} `json:"overall_trends"`
}

// DrivingStyles aggregates per-driver adaptation metrics from the
// artifact. Drivers with fewer than three simulated races are skipped.
func DrivingStyles(artifact Artifact) []DriverStyle {
	type tally struct {
		changes   []float64
		current   []float64
		future    []float64
		top3Delta float64
	}
	byDriver := make(map[string]*tally)

	for _, eventKey := range sortedKeys(artifact) {
		event := artifact[eventKey]
		for driver, current := range event.Current {
			future, ok := event.Future[driver]
			if !ok {
				continue
			}
			t := byDriver[driver]
			if t == nil {
				t = &tally{}
				byDriver[driver] = t
			}
			t.changes = append(t.changes, current.Mean-future.Mean)
			t.current = append(t.current, current.Mean)
			t.future = append(t.future, future.Mean)
			t.top3Delta += future.Top3Probability - current.Top3Probability
		}
	}

	styles := make([]DriverStyle, 0, len(byDriver))
	for driver, t := range byDriver {
		races := len(t.changes)
		if races < minRacesForStyle {
			continue
		}
		avgChange := mean(t.changes)
		consistency := 1.0 - stddev(t.changes)/5.0
		level, beneficiary := classifyAdaptation(avgChange)
		styles = append(styles, DriverStyle{
			DriverName:             driver,
			AvgPositionImprovement: avgChange,
			Consistency:            math.Max(0, math.Min(1, consistency)),
			AdaptationLevel:        level,
			Beneficiary:            beneficiary,
			RacesAnalyzed:          races,
			AvgCurrentPosition:     mean(t.current),
			AvgFuturePosition:      mean(t.future),
			PodiumProbabilityGain:  t.top3Delta / float64(races),
		})
	}
	sort.Slice(styles, func(i, j int) bool {
		if styles[i].AvgPositionImprovement != styles[j].AvgPositionImprovement {
			return styles[i].AvgPositionImprovement > styles[j].AvgPositionImprovement
		}
		return styles[i].DriverName < styles[j].DriverName
	})
	return styles
}

func classifyAdaptation(avgChange float64) (string, bool) {
	switch {
	case avgChange > 0.3:
		return "excellent", true
	case avgChange > 0:
		return "good", true
	case avgChange > -0.3:
		return "neutral", false
	default:
		return "challenged", false
	}
}

type regulationFactor struct {
	FactorID    string             `json:"factor_id"`
	Multipliers map[string]float64 `json:"multipliers"`
}

type overtakingCircuit struct {
	Circuit            string  `json:"circuit"`
	CircuitKey         string  `json:"circuit_key"`
	TrackType          string  `json:"track_type"`
	BoostEffectiveness float64 `json:"boost_effectiveness"`
	OvertakeModeGain   float64 `json:"overtake_mode_gain"`
}

type uncertaintyDriver struct {
	Driver           string     `json:"driver"`
	CurrentMean      float64    `json:"predicted_position_current"`
	FutureMean       float64    `json:"predicted_position_future"`
	CurrentStd       float64    `json:"std_dev_current"`
	FutureStd        float64    `json:"std_dev_future"`
	Confidence90Cur  [2]float64 `json:"confidence_90_current"`
	Confidence90Fut  [2]float64 `json:"confidence_90_future"`
	UncertaintyLevel string     `json:"uncertainty_level"`
}

// WriteExports writes the supplemental analysis documents to dir and
// returns the paths written.
func WriteExports(dir string, artifact Artifact, metrics model.Metrics, drawCount int) ([]string, error) {
	runID := uuid.New().String()
	var written []string

	styles := DrivingStyles(artifact)
	stylesReport := drivingStylesReport{TotalDrivers: len(styles), Drivers: truncateStyles(styles, 20)}
	if len(styles) > 0 {
		var total float64
		beneficiaries := 0
		for _, s := range styles {
			total += s.AvgPositionImprovement
			if s.Beneficiary {
				beneficiaries++
			}
		}
		stylesReport.OverallTrends.AvgImprovement = total / float64(len(styles))
		stylesReport.OverallTrends.BeneficiaryCount = beneficiaries
		stylesReport.OverallTrends.TopBeneficiary = styles[0].DriverName
	}
	path := filepath.Join(dir, "driving_styles_impact.json")
	if err := writeJSON(path, stylesReport); err != nil {
		return written, err
	}
	written = append(written, path)

	var factors []regulationFactor
	grouped := scenario.RegulationFactors()
	for _, id := range sortedFactorIDs(grouped) {
		factors = append(factors, regulationFactor{FactorID: id, Multipliers: grouped[id]})
	}
	path = filepath.Join(dir, "regulation_factors_breakdown.json")
	if err := writeJSON(path, map[string]interface{}{
		"regulation_year": 2026,
		"factors":         factors,
	}); err != nil {
		return written, err
	}
	written = append(written, path)

	var circuits []overtakingCircuit
	for _, eventKey := range sortedKeys(artifact) {
		trackKey := features.EventTrackKey(artifact[eventKey].EventName)
		boost := features.BoostEffectiveness(trackKey)
		circuits = append(circuits, overtakingCircuit{
			Circuit:            artifact[eventKey].EventName,
			CircuitKey:         trackKey,
			TrackType:          features.TrackType(trackKey),
			BoostEffectiveness: boost,
			OvertakeModeGain:   boost * 0.4,
		})
	}
	sort.Slice(circuits, func(i, j int) bool {
		if circuits[i].BoostEffectiveness != circuits[j].BoostEffectiveness {
			return circuits[i].BoostEffectiveness > circuits[j].BoostEffectiveness
		}
		return circuits[i].CircuitKey < circuits[j].CircuitKey
	})
	path = filepath.Join(dir, "overtaking_analysis.json")
	if err := writeJSON(path, map[string]interface{}{
		"analysis_type": "overtaking_opportunities",
		"circuits":      circuits,
	}); err != nil {
		return written, err
	}
	written = append(written, path)

	path = filepath.Join(dir, "uncertainty_analysis.json")
	if err := writeJSON(path, map[string]interface{}{
		"run_id": runID,
		"model_metrics": map[string]interface{}{
			"mean_absolute_error": metrics.MAE,
			"rmse":                metrics.RMSE,
			"spearman_rho":        metrics.SpearmanRho,
			"simulation_runs":     drawCount,
			"confidence_level":    "90%",
		},
		"driver_uncertainty": driverUncertainty(artifact),
	}); err != nil {
		return written, err
	}
	written = append(written, path)

	return written, nil
}

// driverUncertainty samples the first event for per-driver confidence
// bands, mirroring the historical risk digest.
func driverUncertainty(artifact Artifact) []uncertaintyDriver {
	keys := sortedKeys(artifact)
	if len(keys) == 0 {
		return nil
	}
	event := artifact[keys[0]]
	var out []uncertaintyDriver
	for _, driver := range sortedOutcomeKeys(event.Current) {
		current := event.Current[driver]
		future, ok := event.Future[driver]
		if !ok {
			continue
		}
		level := "high"
		if current.Std < 1.0 {
			level = "low"
		} else if current.Std < 2.0 {
			level = "medium"
		}
		out = append(out, uncertaintyDriver{
			Driver:           driver,
			CurrentMean:      current.Mean,
			FutureMean:       future.Mean,
			CurrentStd:       current.Std,
			FutureStd:        future.Std,
			Confidence90Cur:  [2]float64{current.Percentile5, current.Percentile95},
			Confidence90Fut:  [2]float64{future.Percentile5, future.Percentile95},
			UncertaintyLevel: level,
		})
	}
	return out
}

func writeJSON(path string, payload interface{}) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("export: marshal %s: %w", filepath.Base(path), err)
	}
	return writeAtomic(path, data)
}

func truncateStyles(styles []DriverStyle, limit int) []DriverStyle {
	if len(styles) <= limit {
		return styles
	}
	return styles[:limit]
}

func sortedKeys(artifact Artifact) []string {
	keys := make([]string, 0, len(artifact))
	for k := range artifact {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedOutcomeKeys(outcomes map[string]simulation.Outcome) []string {
	keys := make([]string, 0, len(outcomes))
	for k := range outcomes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sumSquares := 0.0
	for _, v := range values {
		diff := v - m
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)-1))
}

func sortedFactorIDs(grouped map[string]map[string]float64) []string {
	ids := make([]string, 0, len(grouped))
	for id := range grouped {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
