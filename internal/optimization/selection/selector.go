// Package selection chooses organisms from a population for breeding or
// killing. Selectors never modify the population; they return slot indices
// so that callers can act on the exact organisms that were chosen.
package selection

import (
	"fmt"
	"math/rand"

	"github.com/copyleftdev/darwin/internal/optimization"
)

const component = "selection"

// Selector chooses n organisms from pop, favouring the ones that are better
// under goal. Killing call sites pass goal.Opposite() so that worse
// organisms are favoured instead.
type Selector[O any] interface {
	Select(rng *rand.Rand, pop *optimization.Population[O], goal optimization.Goal, n int) ([]int, error)
}

// Option configures a selector.
type Option func(*options)

type options struct {
	withReplacement bool
}

// WithReplacement controls whether one call may return the same slot more
// than once.
func WithReplacement(enabled bool) Option {
	return func(o *options) {
		o.withReplacement = enabled
	}
}

func buildOptions(defaults options, opts []Option) options {
	for _, opt := range opts {
		opt(&defaults)
	}
	return defaults
}

// Pick maps slot indices to the organisms they refer to, in order.
func Pick[O any](pop *optimization.Population[O], indices []int) ([]O, error) {
	picked := make([]O, 0, len(indices))
	for _, i := range indices {
		o, err := pop.Get(i)
		if err != nil {
			return nil, err
		}
		picked = append(picked, o)
	}
	return picked, nil
}

// New builds a selector by name. Known names are "proportionate" (also
// "roulette") and "tournament".
func New[O any](name string, evaluator optimization.Evaluator[O], tournamentSize int, opts ...Option) (Selector[O], error) {
	switch name {
	case "", "proportionate", "roulette":
		return NewProportionate(evaluator, opts...), nil
	case "tournament":
		t, err := NewTournament(evaluator, tournamentSize, opts...)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, optimization.NewErrorf(optimization.KindConfiguration, optimization.ErrInvalidArguments,
			"unknown selector %q", name).WithComponent(component).WithOperation("New")
	}
}

func checkSelect[O any](op string, rng *rand.Rand, pop *optimization.Population[O], n int) error {
	switch {
	case rng == nil:
		return optimization.NewError(optimization.KindConfiguration, optimization.ErrNilRandom, "no random source").
			WithComponent(component).WithOperation(op)
	case pop.Len() == 0:
		return optimization.NewError(optimization.KindEmptyPopulation, optimization.ErrEmptyPopulation, "nothing to select from").
			WithComponent(component).WithOperation(op)
	case n < 0:
		return invalid(op, "cannot select %d organisms", n)
	}
	return nil
}

func invalid(op, format string, args ...interface{}) error {
	return optimization.NewError(optimization.KindConfiguration, optimization.ErrInvalidArguments, fmt.Sprintf(format, args...)).
		WithComponent(component).WithOperation(op)
}
