package optimization

import "math"

const (
	DefaultPopulationSize        = 1000
	DefaultNumIterations         = 1000
	DefaultMaximumMutationAmount = 0.1
)

// Arguments configures a genetic algorithm run.
type Arguments struct {
	// PopulationSize is the number of organisms the creator produces.
	PopulationSize int `json:"population_size"`
	// NumIterations is the exact number of generations to run. Zero is valid.
	NumIterations int `json:"num_iterations"`
	// MaximumMutationAmount is passed through to the mutator unchanged.
	MaximumMutationAmount float64 `json:"maximum_mutation_amount"`
	// BreedingPoolSize is the number of parents selected per generation.
	// Zero means PopulationSize/10.
	BreedingPoolSize int `json:"breeding_pool_size"`
	// KillingPoolSize is the number of organisms removed per generation.
	// Zero means BreedingPoolSize.
	KillingPoolSize int `json:"killing_pool_size"`
	// Goal is the optimization direction.
	Goal Goal `json:"goal"`
	// WithReplacement lets a selector pick the same organism more than once
	// within one call.
	WithReplacement bool `json:"with_replacement"`
}

// DefaultArguments returns the defaults: 1000 organisms, 1000 iterations,
// 0.1 mutation, pools of 100, maximization with replacement.
func DefaultArguments() Arguments {
	args := Arguments{
		PopulationSize:        DefaultPopulationSize,
		NumIterations:         DefaultNumIterations,
		MaximumMutationAmount: DefaultMaximumMutationAmount,
		Goal:                  Maximize,
		WithReplacement:       true,
	}
	return args.Normalize()
}

// Normalize returns a copy with the derived pool sizes filled in.
func (a Arguments) Normalize() Arguments {
	if a.BreedingPoolSize == 0 {
		a.BreedingPoolSize = a.PopulationSize / 10
	}
	if a.KillingPoolSize == 0 {
		a.KillingPoolSize = a.BreedingPoolSize
	}
	return a
}

// Validate reports configuration errors. It expects normalized arguments.
func (a Arguments) Validate() error {
	const op = "Arguments.Validate"

	switch {
	case a.PopulationSize <= 0:
		return configError(op, "population size must be positive, got %d", a.PopulationSize)
	case a.NumIterations < 0:
		return configError(op, "iterations must not be negative, got %d", a.NumIterations)
	case math.IsNaN(a.MaximumMutationAmount) || a.MaximumMutationAmount < 0:
		return configError(op, "mutation amount must be a non-negative number, got %v", a.MaximumMutationAmount)
	case a.BreedingPoolSize < 0:
		return configError(op, "breeding pool size must not be negative, got %d", a.BreedingPoolSize)
	case a.BreedingPoolSize%2 != 0:
		return configError(op, "breeding pool size must be even, got %d", a.BreedingPoolSize)
	case a.BreedingPoolSize > a.PopulationSize:
		return configError(op, "breeding pool size %d exceeds population size %d", a.BreedingPoolSize, a.PopulationSize)
	case a.KillingPoolSize < 0:
		return configError(op, "killing pool size must not be negative, got %d", a.KillingPoolSize)
	case a.KillingPoolSize > a.PopulationSize:
		return configError(op, "killing pool size %d exceeds population size %d", a.KillingPoolSize, a.PopulationSize)
	case !a.Goal.Valid():
		return configError(op, "unknown goal %d", uint8(a.Goal))
	}
	return nil
}
