package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/copyleftdev/darwin/internal/optimization"
)

const defaultSQLitePath = "data/darwin.db"

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Database struct {
		Type string `env:"DB_TYPE" envDefault:"memory"`
		DSN  string `env:"DB_DSN"`
	}
	Evolution struct {
		PopulationSize    int     `env:"GA_POPULATION_SIZE" envDefault:"1000"`
		Iterations        int     `env:"GA_ITERATIONS" envDefault:"1000"`
		MutationAmount    float64 `env:"GA_MUTATION_AMOUNT" envDefault:"0.1"`
		BreedingPool      int     `env:"GA_BREEDING_POOL" envDefault:"0"`
		KillingPool       int     `env:"GA_KILLING_POOL" envDefault:"0"`
		Goal              string  `env:"GA_GOAL"`
		WithReplacement   bool    `env:"GA_WITH_REPLACEMENT" envDefault:"true"`
		Seed              int64   `env:"GA_SEED" envDefault:"0"`
		MaxConcurrentRuns int     `env:"GA_MAX_CONCURRENT_RUNS" envDefault:"10"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
		if cfg.Environment == "development" {
			cfg.Logging.Level = "debug"
		}
	}

	switch cfg.Database.Type {
	case "memory":
	case "sqlite":
		if cfg.Database.DSN == "" {
			// Ensure the data directory exists
			if err := os.MkdirAll(filepath.Dir(defaultSQLitePath), 0o755); err != nil {
				return nil, err
			}
			cfg.Database.DSN = defaultSQLitePath
		}
	default:
		return nil, fmt.Errorf("unsupported DB_TYPE %q (want memory or sqlite)", cfg.Database.Type)
	}

	if cfg.Evolution.Goal != "" {
		if _, err := optimization.ParseGoal(cfg.Evolution.Goal); err != nil {
			return nil, fmt.Errorf("GA_GOAL: %w", err)
		}
	}

	if cfg.Evolution.MaxConcurrentRuns < 1 {
		return nil, fmt.Errorf("GA_MAX_CONCURRENT_RUNS must be at least 1, got %d", cfg.Evolution.MaxConcurrentRuns)
	}

	return cfg, nil
}

// Goal returns the goal set by GA_GOAL, if any. Without one, runs use the
// natural goal of their problem.
func (c *Config) Goal() (optimization.Goal, bool) {
	if c.Evolution.Goal == "" {
		return optimization.Maximize, false
	}
	goal, err := optimization.ParseGoal(c.Evolution.Goal)
	return goal, err == nil
}

// Arguments returns the default run arguments from the GA_* variables.
// Pool sizes of zero are resolved later by Arguments.Normalize.
func (c *Config) Arguments() optimization.Arguments {
	goal, _ := c.Goal()
	return optimization.Arguments{
		PopulationSize:        c.Evolution.PopulationSize,
		NumIterations:         c.Evolution.Iterations,
		MaximumMutationAmount: c.Evolution.MutationAmount,
		BreedingPoolSize:      c.Evolution.BreedingPool,
		KillingPoolSize:       c.Evolution.KillingPool,
		Goal:                  goal,
		WithReplacement:       c.Evolution.WithReplacement,
	}
}
