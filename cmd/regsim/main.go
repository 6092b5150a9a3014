package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/raceforge/regsim/internal/config"
	"github.com/raceforge/regsim/internal/dataset"
	"github.com/raceforge/regsim/internal/features"
	"github.com/raceforge/regsim/internal/model"
	"github.com/raceforge/regsim/internal/pipeline"
	"github.com/raceforge/regsim/internal/scenario"
	"github.com/raceforge/regsim/internal/simulation"
	"github.com/raceforge/regsim/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "regsim:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath   string
		featureTable string
	)
	root := &cobra.Command{
		Use:           "regsim",
		Short:         "2026 regulation impact simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full prediction pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, featureTable)
		},
	}
	runCmd.Flags().StringVar(&featureTable, "feature-table", "", "load a pre-engineered feature table CSV instead of raw results")
	root.AddCommand(runCmd)
	return root
}

func run(configPath, featureTable string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	log.WithFields(logrus.Fields{
		"seasons":       cfg.Seasons,
		"n_simulations": cfg.MonteCarlo.NSimulations,
		"aggregation":   cfg.MonteCarlo.Aggregation,
		"random_seed":   cfg.MonteCarlo.RandomSeed,
	}).Info("Starting regulation impact run")

	table, err := loadFeatures(cfg, featureTable)
	if err != nil {
		return fmt.Errorf("feature load: %w", err)
	}
	if err := table.Validate(features.TargetColumn); err != nil {
		return fmt.Errorf("feature load: %w", err)
	}

	fitted, err := model.Fit(table, features.TargetColumn, features.Columns(), cfg.MonteCarlo.RandomSeed)
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}

	future := scenario.Future2026()
	if len(cfg.Scenario) > 0 {
		merged := future.Multipliers
		for column, multiplier := range cfg.Scenario {
			merged[column] = multiplier
		}
		future = scenario.New(future.Name, merged)
	}

	runner := &pipeline.Runner{
		Predictor:      fitted,
		Table:          table,
		FeatureColumns: features.Columns(),
		Future:         future,
		Groups:         simulation.DefaultGroups(),
		SimConfig:      cfg.SimulationConfig(),
		TargetColumn:   features.TargetColumn,
		Seed:           cfg.MonteCarlo.RandomSeed,
		Workers:        cfg.SimulationWorkers,
	}
	artifact, err := runner.Run()
	if err != nil {
		return err
	}

	artifactPath := filepath.Join(cfg.OutputDir, "monte_carlo_results.json")
	if err := pipeline.WriteArtifact(artifactPath, artifact); err != nil {
		return err
	}
	log.WithField("path", artifactPath).Info("Wrote Monte Carlo artifact")

	exportDir := filepath.Join(cfg.OutputDir, "json")
	written, err := pipeline.WriteExports(exportDir, artifact, fitted.Metrics, cfg.MonteCarlo.NSimulations)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	log.WithField("files", len(written)).Info("Wrote analysis exports")

	return nil
}

func loadFeatures(cfg *config.Config, featureTable string) (*dataset.Table, error) {
	if featureTable != "" {
		return dataset.LoadCSV(featureTable)
	}

	results, err := features.LoadResultsCSV(cfg.Data.ResultsCSV)
	if err != nil {
		return nil, err
	}
	results = filterSeasons(results, cfg.Seasons)

	circuits, err := features.LoadCircuitsCSV(cfg.Data.CircuitsCSV)
	if err != nil {
		return nil, err
	}
	return features.Engineer(results, features.CircuitIndex(circuits))
}

func filterSeasons(results []features.RaceResult, seasons []int) []features.RaceResult {
	wanted := make(map[int]bool, len(seasons))
	for _, s := range seasons {
		wanted[s] = true
	}
	var out []features.RaceResult
	for _, r := range results {
		if wanted[r.Season] {
			out = append(out, r)
		}
	}
	return out
}
