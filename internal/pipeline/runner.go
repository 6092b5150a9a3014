package pipeline

import (
	"fmt"
	"hash/crc32"
	"math/rand"
	"runtime"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/raceforge/regsim/internal/dataset"
	"github.com/raceforge/regsim/internal/scenario"
	"github.com/raceforge/regsim/internal/simulation"
	"github.com/raceforge/regsim/pkg/logger"
)

// EventResult is one event's entry in the output artifact. The key names
// are the downstream compatibility contract.
type EventResult struct {
	EventName string                        `json:"event_name"`
	Current   map[string]simulation.Outcome `json:"current"`
	Future    map[string]simulation.Outcome `json:"future"`
}

// Artifact maps event key to per-scenario outcome distributions.
type Artifact map[string]EventResult

// Runner executes the full per-event, per-scenario simulation sweep.
// The fitted predictor and feature table are read-only; each simulation
// unit owns its output slot, so units run on a worker pool.
type Runner struct {
	Predictor      simulation.Predictor
	Table          *dataset.Table
	FeatureColumns []string
	Future         scenario.Scenario
	Groups         simulation.GroupMap
	SimConfig      simulation.Config
	TargetColumn   string
	Seed           int64
	Workers        int
}

type unit struct {
	order        int
	eventKey     string
	eventName    string
	scenarioName string
	features     *dataset.Table
}

type unitResult struct {
	order        int
	eventKey     string
	scenarioName string
	outcomes     map[string]simulation.Outcome
	err          error
}

// Run simulates every event under the baseline and future scenarios and
// assembles the artifact. Any unit failure aborts the whole run: skipping
// an event would make the artifact's event set non-deterministic for
// downstream consumers.
func (r *Runner) Run() (Artifact, error) {
	if err := r.Table.Validate(r.TargetColumn); err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}
	if err := r.Future.Validate(r.Table.Columns); err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}
	engine, err := simulation.NewEngine(r.Predictor, r.FeatureColumns, r.Groups, r.SimConfig)
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}

	units, err := r.buildUnits()
	if err != nil {
		return nil, err
	}

	workers := r.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(units) {
		workers = len(units)
	}

	jobs := make(chan unit, len(units))
	results := make(chan unitResult, len(units))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range jobs {
				rng := rand.New(rand.NewSource(r.unitSeed(u.eventKey, u.scenarioName)))
				outcomes, err := engine.Run(u.features, rng)
				if err != nil {
					err = fmt.Errorf("simulate: event %s scenario %s: %w", u.eventKey, u.scenarioName, err)
				}
				results <- unitResult{
					order:        u.order,
					eventKey:     u.eventKey,
					scenarioName: u.scenarioName,
					outcomes:     outcomes,
					err:          err,
				}
			}
		}()
	}

	for _, u := range units {
		jobs <- u
	}
	close(jobs)
	wg.Wait()
	close(results)

	collected := make([]unitResult, 0, len(units))
	for res := range results {
		collected = append(collected, res)
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].order < collected[j].order })
	for _, res := range collected {
		if res.err != nil {
			return nil, res.err
		}
	}

	artifact := make(Artifact, len(units)/2)
	for _, u := range units {
		entry, ok := artifact[u.eventKey]
		if !ok {
			entry = EventResult{EventName: u.eventName}
		}
		artifact[u.eventKey] = entry
	}
	for _, res := range collected {
		entry := artifact[res.eventKey]
		if res.scenarioName == scenario.Baseline().Name {
			entry.Current = res.outcomes
		} else {
			entry.Future = res.outcomes
		}
		artifact[res.eventKey] = entry
	}

	logger.WithStage("simulate").WithFields(logrus.Fields{
		"events":  len(artifact),
		"units":   len(units),
		"draws":   r.SimConfig.NumDraws,
		"workers": workers,
	}).Info("Monte Carlo sweep complete")

	return artifact, nil
}

func (r *Runner) buildUnits() ([]unit, error) {
	baseline := scenario.Baseline()
	groups := r.Table.GroupByEvent()
	units := make([]unit, 0, len(groups)*2)
	for _, group := range groups {
		if group.Table.NumRows() < 2 {
			return nil, fmt.Errorf("simulate: event %s has %d entities, need at least 2", group.Key, group.Table.NumRows())
		}
		transformed, err := r.Future.Apply(group.Table)
		if err != nil {
			return nil, fmt.Errorf("simulate: event %s: %w", group.Key, err)
		}
		units = append(units,
			unit{order: len(units), eventKey: group.Key, eventName: group.Name, scenarioName: baseline.Name, features: group.Table},
			unit{order: len(units) + 1, eventKey: group.Key, eventName: group.Name, scenarioName: r.Future.Name, features: transformed},
		)
	}
	return units, nil
}

// unitSeed derives a deterministic per-(event, scenario) seed from the
// top-level seed, independent of worker count or execution order.
func (r *Runner) unitSeed(eventKey, scenarioName string) int64 {
	h := crc32.ChecksumIEEE([]byte(eventKey + "|" + scenarioName))
	return r.Seed + int64(h)
}
