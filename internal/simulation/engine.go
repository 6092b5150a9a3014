package simulation

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/raceforge/regsim/internal/dataset"
)

// AggregationMode selects how threshold-crossing probabilities are
// computed from the draw accumulator.
type AggregationMode string

const (
	// ModeRaw thresholds each entity's raw clipped predicted value
	// independently, with no cross-entity comparison within a draw. This
	// reproduces the historical artifacts: probabilities can collapse to
	// 0 or 1 and need not be mutually consistent across entities.
	ModeRaw AggregationMode = "raw"
	// ModeRanked converts each draw's raw values to within-draw ranks
	// (stable ascending sort) before thresholding, so every draw awards
	// exactly one of each finishing position.
	ModeRanked AggregationMode = "ranked"
)

// Threshold positions reported in every outcome distribution.
const (
	Top3Threshold = 3.0
	Top5Threshold = 5.0
)

// ErrBadDrawCount indicates a non-positive number of draws.
var ErrBadDrawCount = errors.New("simulation: number of draws must be positive")

// Config carries the perturbation magnitudes and draw count.
type Config struct {
	NumDraws      int
	FormSigma     float64
	WeatherSigma  float64
	StrategyDelta float64
	Mode          AggregationMode
}

// DefaultConfig mirrors the production run parameters.
func DefaultConfig() Config {
	return Config{
		NumDraws:      2000,
		FormSigma:     0.05,
		WeatherSigma:  0.10,
		StrategyDelta: 0.10,
		Mode:          ModeRaw,
	}
}

// Predictor yields one continuous finishing-position estimate per row.
type Predictor interface {
	Predict(batch *dataset.Table) ([]float64, error)
}

// Outcome is the aggregated distribution for one entity in one event
// under one scenario. Field names are the downstream JSON contract.
type Outcome struct {
	Mean            float64 `json:"mean"`
	Std             float64 `json:"std"`
	Median          float64 `json:"median"`
	Min             float64 `json:"min"`
	Max             float64 `json:"max"`
	Percentile5     float64 `json:"percentile_5"`
	Percentile95    float64 `json:"percentile_95"`
	Top3Probability float64 `json:"top3_probability"`
	Top5Probability float64 `json:"top5_probability"`
}

// Engine runs seeded Monte Carlo draws over an event's feature subset.
// Immutable after construction; safe for concurrent Run calls as long as
// each call gets its own rand source.
type Engine struct {
	predictor Predictor
	columns   []string
	cfg       Config

	formIdx     []int
	weatherIdx  []int
	strategyIdx []int
}

// NewEngine validates the perturbation-group declaration against the
// feature columns and builds an engine.
func NewEngine(predictor Predictor, featureColumns []string, groups GroupMap, cfg Config) (*Engine, error) {
	if predictor == nil {
		return nil, fmt.Errorf("simulation: nil predictor")
	}
	if groups == nil {
		groups = DefaultGroups()
	}
	if err := groups.Validate(featureColumns); err != nil {
		return nil, err
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeRaw
	}
	if cfg.Mode != ModeRaw && cfg.Mode != ModeRanked {
		return nil, fmt.Errorf("simulation: unknown aggregation mode %q", cfg.Mode)
	}
	return &Engine{
		predictor:   predictor,
		columns:     append([]string(nil), featureColumns...),
		cfg:         cfg,
		formIdx:     groups.indices(featureColumns, GroupForm),
		weatherIdx:  groups.indices(featureColumns, GroupWeather),
		strategyIdx: groups.indices(featureColumns, GroupStrategy),
	}, nil
}

// Run draws cfg.NumDraws independent perturbed copies of the event's
// feature subset, predicts each, clips predictions to [1, n_entities],
// and folds the accumulator into per-entity outcome distributions.
// A predictor failure on any draw aborts the whole event.
func (e *Engine) Run(features *dataset.Table, rng *rand.Rand) (map[string]Outcome, error) {
	if e.cfg.NumDraws <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrBadDrawCount, e.cfg.NumDraws)
	}
	subset, err := features.Select(e.columns)
	if err != nil {
		return nil, err
	}
	n := subset.NumRows()
	if n == 0 {
		return nil, dataset.ErrEmptyTable
	}
	entities := subset.Drivers()
	upper := float64(n)

	base := make([][]float64, n)
	for i, row := range subset.Rows {
		base[i] = append([]float64(nil), row.Values...)
	}

	// scratch table reused across draws; the predictor reads it only
	scratch := dataset.NewTable(e.columns)
	scratch.Rows = make([]dataset.Row, n)
	for i, row := range subset.Rows {
		scratch.Rows[i] = dataset.Row{
			Driver:    row.Driver,
			Team:      row.Team,
			Season:    row.Season,
			Round:     row.Round,
			EventName: row.EventName,
			Values:    make([]float64, len(e.columns)),
		}
	}

	accumulator := make([][]float64, e.cfg.NumDraws)
	for draw := 0; draw < e.cfg.NumDraws; draw++ {
		for i := range scratch.Rows {
			copy(scratch.Rows[i].Values, base[i])
		}
		e.perturb(scratch, rng)

		preds, err := e.predictor.Predict(scratch)
		if err != nil {
			return nil, fmt.Errorf("simulation: draw %d predict: %w", draw, err)
		}
		if len(preds) != n {
			return nil, fmt.Errorf("simulation: draw %d: predictor returned %d values for %d entities", draw, len(preds), n)
		}
		clipped := make([]float64, n)
		for i, v := range preds {
			clipped[i] = clip(v, 1.0, upper)
		}
		accumulator[draw] = clipped
	}

	return e.aggregate(accumulator, entities), nil
}

// perturb applies the per-draw noise policy in place. Form columns share
// one noise value per row; weather noise is independent per cell;
// strategy columns get an additive integer step scaled by delta. The
// strategy adjustment stays fractional on integer-semantics columns for
// compatibility with historical runs.
func (e *Engine) perturb(t *dataset.Table, rng *rand.Rand) {
	for r := range t.Rows {
		values := t.Rows[r].Values
		if len(e.formIdx) > 0 {
			factor := 1 + rng.NormFloat64()*e.cfg.FormSigma
			for _, j := range e.formIdx {
				values[j] *= factor
			}
		}
		for _, j := range e.weatherIdx {
			values[j] *= 1 + rng.NormFloat64()*e.cfg.WeatherSigma
		}
		for _, j := range e.strategyIdx {
			step := float64(rng.Intn(3) - 1)
			values[j] += step * e.cfg.StrategyDelta
		}
	}
}

func (e *Engine) aggregate(accumulator [][]float64, entities []string) map[string]Outcome {
	numDraws := len(accumulator)
	n := len(entities)

	var rankAccumulator [][]float64
	if e.cfg.Mode == ModeRanked {
		rankAccumulator = make([][]float64, numDraws)
		for draw, raw := range accumulator {
			rankAccumulator[draw] = drawRanks(raw)
		}
	}

	out := make(map[string]Outcome, n)
	column := make([]float64, numDraws)
	thresholdColumn := make([]float64, numDraws)
	for i, entity := range entities {
		for draw := 0; draw < numDraws; draw++ {
			column[draw] = accumulator[draw][i]
		}
		thresholdValues := column
		if rankAccumulator != nil {
			for draw := 0; draw < numDraws; draw++ {
				thresholdColumn[draw] = rankAccumulator[draw][i]
			}
			thresholdValues = thresholdColumn
		}

		mean, std, median, min, max, p5, p95 := summary(column)
		out[entity] = Outcome{
			Mean:            mean,
			Std:             std,
			Median:          median,
			Min:             min,
			Max:             max,
			Percentile5:     p5,
			Percentile95:    p95,
			Top3Probability: thresholdProbability(thresholdValues, Top3Threshold),
			Top5Probability: thresholdProbability(thresholdValues, Top5Threshold),
		}
	}
	return out
}

func clip(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(hi, math.Max(lo, v))
}
