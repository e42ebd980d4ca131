package problems

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/copyleftdev/darwin/internal/optimization"
	"github.com/copyleftdev/darwin/internal/optimization/genetic"
	"github.com/copyleftdev/darwin/internal/optimization/selection"
)

// ErrUnknownProblem is returned when a problem name is not registered.
var ErrUnknownProblem = errors.New("unknown problem")

const (
	defaultGenomeLength = 32
	defaultDimensions   = 5
	defaultBound        = 5.12
	rosenbrockBound     = 2.048
)

// Params tune a problem instance. Zero values select the problem's defaults.
type Params struct {
	// Length of bit-string genomes.
	Length int `json:"length,omitempty"`
	// Target genome for the "target" problem.
	Target string `json:"target,omitempty"`
	// Dimensions and coordinate bounds for real-vector problems.
	Dimensions int     `json:"dimensions,omitempty"`
	Min        float64 `json:"min,omitempty"`
	Max        float64 `json:"max,omitempty"`
	// Selector names the selection scheme for breeding and killing.
	Selector       string `json:"selector,omitempty"`
	TournamentSize int    `json:"tournament_size,omitempty"`
}

// Options are everything needed to build a runnable problem instance.
type Options struct {
	Arguments optimization.Arguments
	Params    Params
	Seed      int64
	Logger    *zap.Logger
	Observer  genetic.Observer
}

// Outcome is the type-erased result of a run.
type Outcome struct {
	BestFitness    float64                        `json:"best_fitness"`
	BestOrganism   any                            `json:"best_organism"`
	PopulationSize int                            `json:"population_size"`
	Iterations     int                            `json:"iterations"`
	History        []optimization.GenerationStats `json:"history,omitempty"`
}

// Runner runs a configured problem once.
type Runner interface {
	Run() (*Outcome, error)
	Arguments() optimization.Arguments
}

// Factory builds a Runner from options.
type Factory func(opts Options) (Runner, error)

// Problem is a named, registered factory.
type Problem struct {
	Name        string
	Description string
	// Goal is the natural goal of the problem, used when a caller does not
	// choose one.
	Goal    optimization.Goal
	Factory Factory
}

// Registry holds problems by name.
type Registry struct {
	problems map[string]Problem
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{problems: make(map[string]Problem)}
}

// Default returns a registry with the built-in problems registered.
func Default() *Registry {
	r := NewRegistry()
	for _, p := range builtin() {
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds p. Names must be unique.
func (r *Registry) Register(p Problem) error {
	if p.Name == "" {
		return fmt.Errorf("problem name is required")
	}
	if p.Factory == nil {
		return fmt.Errorf("problem %q has no factory", p.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.problems[p.Name]; exists {
		return fmt.Errorf("problem %q already registered", p.Name)
	}
	r.problems[p.Name] = p
	return nil
}

// Get looks a problem up by name.
func (r *Registry) Get(name string) (Problem, error) {
	r.mu.RLock()
	p, ok := r.problems[name]
	r.mu.RUnlock()

	if !ok {
		return Problem{}, optimization.NewErrorf(optimization.KindConfiguration, ErrUnknownProblem,
			"unknown problem %q", name).WithComponent("problems")
	}
	return p, nil
}

// Names lists the registered problems in alphabetical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.problems))
	for name := range r.problems {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Build looks up name and builds a runner for it.
func (r *Registry) Build(name string, opts Options) (Runner, error) {
	p, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return p.Factory(opts)
}

func builtin() []Problem {
	return []Problem{
		{
			Name:        "onemax",
			Description: "maximize the number of 1 bits in a bit string",
			Goal:        optimization.Maximize,
			Factory: func(opts Options) (Runner, error) {
				length := opts.Params.Length
				if length == 0 {
					length = defaultGenomeLength
				}
				return build(opts, genetic.Config[Genome]{
					Creator:   RandomCreator{Length: length},
					Crosser:   SinglePointCrosser{},
					Mutator:   FlipMutator{},
					Evaluator: OneMax(),
				}, func(g Genome) any { return string(g) })
			},
		},
		{
			Name:        "target",
			Description: "evolve a bit string matching a target",
			Goal:        optimization.Maximize,
			Factory: func(opts Options) (Runner, error) {
				target := Genome(opts.Params.Target)
				if target == "" || strings.Trim(opts.Params.Target, "01") != "" {
					return nil, optimization.NewErrorf(optimization.KindConfiguration, optimization.ErrInvalidArguments,
						"target must be a non-empty string of 0 and 1, got %q", opts.Params.Target).WithComponent("problems")
				}
				return build(opts, genetic.Config[Genome]{
					Creator:   RandomCreator{Length: len(target)},
					Crosser:   SinglePointCrosser{},
					Mutator:   FlipMutator{},
					Evaluator: TargetMatch(target),
				}, func(g Genome) any { return string(g) })
			},
		},
		{
			Name:        "sphere",
			Description: "minimize the sum of squares of a real vector",
			Goal:        optimization.Minimize,
			Factory:     realVectorFactory("sphere", Sphere(), defaultBound),
		},
		{
			Name:        "rosenbrock",
			Description: "minimize the Rosenbrock valley over a real vector",
			Goal:        optimization.Minimize,
			Factory:     realVectorFactory("rosenbrock", Rosenbrock(), rosenbrockBound),
		},
	}
}

// realVectorFactory builds a bounded real-vector problem. Without explicit
// bounds every coordinate lives in [-bound, bound].
func realVectorFactory(name string, eval optimization.Evaluator[Vector], bound float64) Factory {
	return func(opts Options) (Runner, error) {
		dims := opts.Params.Dimensions
		if dims == 0 {
			dims = defaultDimensions
		}
		lo, hi := opts.Params.Min, opts.Params.Max
		if lo == 0 && hi == 0 {
			lo, hi = -bound, bound
		}
		if dims < 0 || lo >= hi {
			return nil, optimization.NewErrorf(optimization.KindConfiguration, optimization.ErrInvalidArguments,
				"invalid %s domain: %d dimensions in [%g, %g]", name, dims, lo, hi).WithComponent("problems")
		}
		bounds := UniformBounds(dims, lo, hi)
		return build(opts, genetic.Config[Vector]{
			Creator:   UniformCreator{Bounds: bounds},
			Crosser:   ArithmeticCrosser{},
			Mutator:   GaussianMutator{Bounds: bounds},
			Evaluator: eval,
		}, func(v Vector) any { return []float64(v) })
	}
}

// build finishes cfg from opts and wraps the resulting algorithm.
func build[O any](opts Options, cfg genetic.Config[O], render func(O) any) (Runner, error) {
	cfg.Arguments = opts.Arguments
	cfg.Seed = opts.Seed
	cfg.Logger = opts.Logger
	cfg.Observer = opts.Observer

	if name := opts.Params.Selector; name != "" {
		size := opts.Params.TournamentSize
		if size == 0 {
			size = selection.DefaultTournamentSize
		}
		breeding, err := selection.New(name, cfg.Evaluator, size,
			selection.WithReplacement(opts.Arguments.WithReplacement))
		if err != nil {
			return nil, err
		}
		killing, err := selection.New(name, cfg.Evaluator, size, selection.WithReplacement(false))
		if err != nil {
			return nil, err
		}
		cfg.BreedingSelector, cfg.KillingSelector = breeding, killing
	}

	alg, err := genetic.New(cfg)
	if err != nil {
		return nil, err
	}
	return &runner[O]{alg: alg, render: render}, nil
}

type runner[O any] struct {
	alg    *genetic.Algorithm[O]
	render func(O) any
}

func (r *runner[O]) Run() (*Outcome, error) {
	result, err := r.alg.Run()
	if err != nil {
		return nil, err
	}
	return &Outcome{
		BestFitness:    result.Solution.BestFitness,
		BestOrganism:   r.render(result.Solution.BestOrganism),
		PopulationSize: result.Solution.FinalPopulation.Len(),
		Iterations:     result.Iterations,
		History:        result.History,
	}, nil
}

func (r *runner[O]) Arguments() optimization.Arguments {
	return r.alg.Arguments()
}
