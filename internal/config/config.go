package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/raceforge/regsim/internal/simulation"
)

// MonteCarlo holds the simulation knobs recognized in configuration.
type MonteCarlo struct {
	NSimulations    int     `mapstructure:"n_simulations"`
	DriverFormSigma float64 `mapstructure:"driver_form_sigma"`
	WeatherSigma    float64 `mapstructure:"weather_sigma"`
	StrategyDelta   float64 `mapstructure:"strategy_delta"`
	RandomSeed      int64   `mapstructure:"random_seed"`
	Aggregation     string  `mapstructure:"aggregation"`
}

// Data points at the flat input files.
type Data struct {
	ResultsCSV  string `mapstructure:"results_csv"`
	CircuitsCSV string `mapstructure:"circuits_csv"`
}

// Config is the full batch-run configuration surface.
type Config struct {
	Seasons           []int              `mapstructure:"seasons"`
	MonteCarlo        MonteCarlo         `mapstructure:"monte_carlo"`
	Scenario          map[string]float64 `mapstructure:"scenario"`
	SimulationWorkers int                `mapstructure:"simulation_workers"`
	OutputDir         string             `mapstructure:"output_dir"`
	Data              Data               `mapstructure:"data"`
	LogLevel          string             `mapstructure:"log_level"`
	Env               string             `mapstructure:"env"`
}

// Load reads configuration from an optional YAML file with environment
// overrides, falling back to production defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("seasons", []int{2022, 2023, 2024, 2025})
	v.SetDefault("monte_carlo.n_simulations", 2000)
	v.SetDefault("monte_carlo.driver_form_sigma", 0.05)
	v.SetDefault("monte_carlo.weather_sigma", 0.10)
	v.SetDefault("monte_carlo.strategy_delta", 0.10)
	v.SetDefault("monte_carlo.random_seed", 42)
	v.SetDefault("monte_carlo.aggregation", string(simulation.ModeRaw))
	v.SetDefault("simulation_workers", 0) // 0 = one per CPU
	v.SetDefault("output_dir", "outputs")
	v.SetDefault("data.results_csv", "data/processed/results.csv")
	v.SetDefault("data.circuits_csv", "data/raw/circuits.csv")
	v.SetDefault("log_level", "info")
	v.SetDefault("env", "production")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("REGSIM")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// only the absence of an implicit config file is tolerable; a
		// file that exists but fails to parse must never fall back to
		// defaults silently
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			name := path
			if name == "" {
				name = v.ConfigFileUsed()
			}
			return nil, fmt.Errorf("config: read %s: %w", name, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations before any computation starts.
func (c *Config) Validate() error {
	if c.MonteCarlo.NSimulations <= 0 {
		return fmt.Errorf("config: n_simulations must be positive, got %d", c.MonteCarlo.NSimulations)
	}
	if c.MonteCarlo.DriverFormSigma < 0 || c.MonteCarlo.WeatherSigma < 0 || c.MonteCarlo.StrategyDelta < 0 {
		return fmt.Errorf("config: perturbation sigmas must be non-negative")
	}
	mode := simulation.AggregationMode(c.MonteCarlo.Aggregation)
	if mode != simulation.ModeRaw && mode != simulation.ModeRanked {
		return fmt.Errorf("config: aggregation must be %q or %q, got %q", simulation.ModeRaw, simulation.ModeRanked, c.MonteCarlo.Aggregation)
	}
	if len(c.Seasons) == 0 {
		return fmt.Errorf("config: seasons must not be empty")
	}
	if c.SimulationWorkers < 0 {
		return fmt.Errorf("config: simulation_workers must be non-negative")
	}
	return nil
}

// SimulationConfig converts the Monte Carlo section into the engine's
// configuration struct.
func (c *Config) SimulationConfig() simulation.Config {
	return simulation.Config{
		NumDraws:      c.MonteCarlo.NSimulations,
		FormSigma:     c.MonteCarlo.DriverFormSigma,
		WeatherSigma:  c.MonteCarlo.WeatherSigma,
		StrategyDelta: c.MonteCarlo.StrategyDelta,
		Mode:          simulation.AggregationMode(c.MonteCarlo.Aggregation),
	}
}

// IsDevelopment reports whether the run uses development logging.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
