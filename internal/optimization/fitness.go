package optimization

import "math"

// Evaluator computes the fitness of an organism.
// Implementations should return a sentinel worst-possible value for
// structurally invalid organisms rather than panic.
type Evaluator[O any] interface {
	Fitness(o O) float64
}

// EvaluatorFunc adapts a plain function to Evaluator.
type EvaluatorFunc[O any] func(o O) float64

// Fitness calls f(o).
func (f EvaluatorFunc[O]) Fitness(o O) float64 {
	return f(o)
}

// Optimizer combines an Evaluator with a Goal. It is the single place where
// "better" is decided for organisms.
type Optimizer[O any] struct {
	Evaluator Evaluator[O]
	Goal      Goal
}

// NewOptimizer creates an Optimizer.
func NewOptimizer[O any](evaluator Evaluator[O], goal Goal) *Optimizer[O] {
	return &Optimizer[O]{Evaluator: evaluator, Goal: goal}
}

// Evaluate returns the fitness of o. NaN is reported as a numeric error.
func (opt *Optimizer[O]) Evaluate(o O) (float64, error) {
	return Evaluate(opt.Evaluator, o)
}

// Compare orders a and b by fitness under the optimizer's goal.
func (opt *Optimizer[O]) Compare(a, b O) (int, error) {
	fa, err := opt.Evaluate(a)
	if err != nil {
		return 0, err
	}
	fb, err := opt.Evaluate(b)
	if err != nil {
		return 0, err
	}
	return opt.Goal.Compare(fa, fb), nil
}

// Fitnesses evaluates every member in order.
func (opt *Optimizer[O]) Fitnesses(members []O) ([]float64, error) {
	return Fitnesses(opt.Evaluator, members)
}

// Best scans members once and returns the best organism and its fitness.
// Ties keep the first organism encountered.
func (opt *Optimizer[O]) Best(members []O) (O, float64, error) {
	var best O
	if len(members) == 0 {
		return best, 0, NewError(KindEmptyPopulation, ErrEmptyPopulation, "no organism to choose from").
			WithOperation("Optimizer.Best")
	}

	bestFitness := math.NaN()
	for i, o := range members {
		f, err := opt.Evaluate(o)
		if err != nil {
			return best, 0, err
		}
		if i == 0 || opt.Goal.Better(f, bestFitness) {
			best, bestFitness = o, f
		}
	}
	return best, bestFitness, nil
}

// Evaluate calls e.Fitness and rejects NaN.
func Evaluate[O any](e Evaluator[O], o O) (float64, error) {
	f := e.Fitness(o)
	if math.IsNaN(f) {
		return 0, NewError(KindNumeric, ErrInvalidFitness, "evaluator returned NaN").
			WithOperation("Evaluate")
	}
	return f, nil
}

// Fitnesses evaluates every member of members in order.
func Fitnesses[O any](e Evaluator[O], members []O) ([]float64, error) {
	out := make([]float64, len(members))
	for i, o := range members {
		f, err := Evaluate(e, o)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
