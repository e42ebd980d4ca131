package genetic

import "math/rand"

// Mutator perturbs a single organism. amount is the run's
// MaximumMutationAmount; its meaning is up to the implementation.
// Implementations return a new organism rather than editing o in place.
type Mutator[O any] interface {
	Mutate(rng *rand.Rand, amount float64, o O) O
}

// MutatorFunc adapts a plain function to Mutator.
type MutatorFunc[O any] func(rng *rand.Rand, amount float64, o O) O

// Mutate calls f(rng, amount, o).
func (f MutatorFunc[O]) Mutate(rng *rand.Rand, amount float64, o O) O {
	return f(rng, amount, o)
}

// MutateAll applies m to every organism and returns the results in the same
// order. The input slice is left untouched.
func MutateAll[O any](rng *rand.Rand, m Mutator[O], amount float64, os []O) []O {
	mutated := make([]O, len(os))
	for i, o := range os {
		mutated[i] = m.Mutate(rng, amount, o)
	}
	return mutated
}
