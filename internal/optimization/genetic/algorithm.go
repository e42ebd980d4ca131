package genetic

import (
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/copyleftdev/darwin/internal/optimization"
	"github.com/copyleftdev/darwin/internal/optimization/selection"
	"github.com/copyleftdev/darwin/internal/optimization/stats"
)

// Creator builds the initial population.
type Creator[O any] interface {
	Create(rng *rand.Rand, args optimization.Arguments) ([]O, error)
}

// CreatorFunc adapts a plain function to Creator.
type CreatorFunc[O any] func(rng *rand.Rand, args optimization.Arguments) ([]O, error)

// Create calls f(rng, args).
func (f CreatorFunc[O]) Create(rng *rand.Rand, args optimization.Arguments) ([]O, error) {
	return f(rng, args)
}

// Observer is called after the initial population is created and after every
// generation. Returning an error stops the run with that error; this is how
// callers bound a run externally.
type Observer func(stats optimization.GenerationStats) error

// Config wires the collaborators of a run.
type Config[O any] struct {
	Arguments optimization.Arguments

	Creator   Creator[O]
	Crosser   Crosser[O]
	Mutator   Mutator[O]
	Evaluator optimization.Evaluator[O]

	// BreedingSelector defaults to fitness-proportionate selection honouring
	// Arguments.WithReplacement.
	BreedingSelector selection.Selector[O]
	// KillingSelector defaults to fitness-proportionate selection without
	// replacement so that exactly KillingPoolSize organisms die.
	KillingSelector selection.Selector[O]

	// Rand takes precedence over Seed. A zero Seed seeds from the clock.
	Rand *rand.Rand
	Seed int64

	Logger   *zap.Logger
	Observer Observer
}

// Algorithm is a generational genetic algorithm:
// breed, mutate, insert, kill, for a fixed number of iterations.
type Algorithm[O any] struct {
	args      optimization.Arguments
	creator   Creator[O]
	breeder   *Breeder[O]
	mutator   Mutator[O]
	killer    *Killer[O]
	optimizer *optimization.Optimizer[O]
	observer  Observer

	rng    *rand.Rand
	logger *zap.Logger

	history []optimization.GenerationStats
}

var _ optimization.Engine[string] = (*Algorithm[string])(nil)

// New validates cfg and creates an Algorithm. All configuration errors are
// reported here, before anything runs.
func New[O any](cfg Config[O]) (*Algorithm[O], error) {
	const op = "New"

	args := cfg.Arguments.Normalize()
	if err := args.Validate(); err != nil {
		return nil, err
	}

	missing := func(what string) error {
		return optimization.NewErrorf(optimization.KindConfiguration, optimization.ErrInvalidArguments,
			"%s is required", what).WithComponent(component).WithOperation(op)
	}
	switch {
	case cfg.Creator == nil:
		return nil, missing("creator")
	case cfg.Crosser == nil:
		return nil, missing("crosser")
	case cfg.Mutator == nil:
		return nil, missing("mutator")
	case cfg.Evaluator == nil:
		return nil, missing("evaluator")
	}

	rng := cfg.Rand
	if rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	breedingSelector := cfg.BreedingSelector
	if breedingSelector == nil {
		breedingSelector = selection.NewProportionate(cfg.Evaluator, selection.WithReplacement(args.WithReplacement))
	}
	killingSelector := cfg.KillingSelector
	if killingSelector == nil {
		killingSelector = selection.NewProportionate(cfg.Evaluator, selection.WithReplacement(false))
	}
	for _, sel := range []selection.Selector[O]{breedingSelector, killingSelector} {
		if sized, ok := sel.(interface{ Size() int }); ok && sized.Size() > args.PopulationSize {
			return nil, optimization.NewErrorf(optimization.KindConfiguration, optimization.ErrInvalidArguments,
				"tournament size %d exceeds population size %d", sized.Size(), args.PopulationSize).
				WithComponent(component).WithOperation(op)
		}
	}

	return &Algorithm[O]{
		args:      args,
		creator:   cfg.Creator,
		breeder:   NewBreeder(breedingSelector, cfg.Crosser, cfg.Evaluator),
		mutator:   cfg.Mutator,
		killer:    NewKiller(killingSelector, cfg.Evaluator),
		optimizer: optimization.NewOptimizer(cfg.Evaluator, args.Goal),
		observer:  cfg.Observer,
		rng:       rng,
		logger:    logger.Named("genetic_algorithm"),
		history:   make([]optimization.GenerationStats, 0, args.NumIterations+1),
	}, nil
}

// Run creates the initial population, runs exactly NumIterations
// generations and returns the best organism of the final population.
// Any failure aborts the run. Calling Run again continues the same random
// stream, so only a fresh Algorithm with the same seed reproduces a run.
func (a *Algorithm[O]) Run() (*optimization.Result[O], error) {
	start := time.Now()
	a.history = a.history[:0]

	a.logger.Info("Starting run",
		zap.Int("population_size", a.args.PopulationSize),
		zap.Int("iterations", a.args.NumIterations),
		zap.Int("breeding_pool", a.args.BreedingPoolSize),
		zap.Int("killing_pool", a.args.KillingPoolSize),
		zap.Stringer("goal", a.args.Goal),
	)

	members, err := a.creator.Create(a.rng, a.args)
	if err != nil {
		return nil, optimization.WrapError(optimization.KindCollaborator, err, "creating initial population")
	}
	pop := optimization.NewPopulation(members...)

	if err := a.record(0, pop); err != nil {
		return nil, err
	}

	for i := 1; i <= a.args.NumIterations; i++ {
		pop, err = a.generation(pop)
		if err != nil {
			a.logger.Error("Generation failed", zap.Int("generation", i), zap.Error(err))
			return nil, fmt.Errorf("generation %d: %w", i, err)
		}
		if err := a.record(i, pop); err != nil {
			return nil, err
		}
	}

	best, bestFitness, err := a.optimizer.Best(pop.All())
	if err != nil {
		return nil, err
	}

	a.logger.Info("Run completed",
		zap.Float64("best_fitness", bestFitness),
		zap.Int("final_population", pop.Len()),
		zap.Duration("duration", time.Since(start)),
	)

	return &optimization.Result[O]{
		Solution: &optimization.Solution[O]{
			BestFitness:     bestFitness,
			BestOrganism:    best,
			FinalPopulation: pop,
		},
		History:    a.History(),
		Iterations: a.args.NumIterations,
	}, nil
}

// History returns a copy of the statistics recorded by the last run.
func (a *Algorithm[O]) History() []optimization.GenerationStats {
	return append([]optimization.GenerationStats(nil), a.history...)
}

// Arguments returns the normalized arguments the algorithm runs with.
func (a *Algorithm[O]) Arguments() optimization.Arguments {
	return a.args
}

// generation performs one breed, mutate, insert, kill cycle. pop itself is
// never modified; the next generation is returned.
func (a *Algorithm[O]) generation(pop *optimization.Population[O]) (*optimization.Population[O], error) {
	if pop.Len() == 0 {
		return nil, optimization.NewError(optimization.KindEmptyPopulation, optimization.ErrEmptyPopulation,
			"population died out").WithComponent(component).WithOperation("generation")
	}

	parents, err := a.breeder.Select(a.rng, a.args, pop)
	if err != nil {
		return nil, err
	}
	children, err := a.breeder.Breed(a.rng, parents)
	if err != nil {
		return nil, err
	}
	children = MutateAll(a.rng, a.mutator, a.args.MaximumMutationAmount, children)

	next := pop.Clone()
	next.AddAll(children...)

	doomed, err := a.killer.Select(a.rng, a.args, next)
	if err != nil {
		return nil, err
	}
	return a.killer.Kill(next, doomed)
}

// record summarizes pop, logs it and notifies the observer.
func (a *Algorithm[O]) record(generation int, pop *optimization.Population[O]) error {
	fitnesses, err := a.optimizer.Fitnesses(pop.All())
	if err != nil {
		return fmt.Errorf("generation %d: %w", generation, err)
	}

	s := stats.Summarize(generation, fitnesses, a.args.Goal)
	if n := len(a.history); n > 0 {
		a.logger.Debug("Generation complete",
			zap.Int("generation", generation),
			zap.Int("size", s.Size),
			zap.Float64("best", s.Best),
			zap.Float64("mean", s.Mean),
			zap.Float64("improvement", stats.Improvement(a.history[n-1], s, a.args.Goal)),
		)
	}
	a.history = append(a.history, s)

	if a.observer != nil {
		if err := a.observer(s); err != nil {
			a.logger.Info("Run stopped by observer", zap.Int("generation", generation), zap.Error(err))
			return fmt.Errorf("stopped at generation %d: %w", generation, err)
		}
	}
	return nil
}
