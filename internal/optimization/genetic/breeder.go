// Package genetic implements the generational evolutionary loop and the
// breeding, mutation and killing steps it is made of.
package genetic

import (
	"fmt"
	"math/rand"

	"github.com/copyleftdev/darwin/internal/optimization"
	"github.com/copyleftdev/darwin/internal/optimization/selection"
)

const component = "genetic"

// Crosser produces children from a group of parents. The number of children
// is up to the implementation; zero is allowed.
type Crosser[O any] interface {
	Cross(rng *rand.Rand, parents []O) ([]O, error)
}

// CrosserFunc adapts a plain function to Crosser.
type CrosserFunc[O any] func(rng *rand.Rand, parents []O) ([]O, error)

// Cross calls f(rng, parents).
func (f CrosserFunc[O]) Cross(rng *rand.Rand, parents []O) ([]O, error) {
	return f(rng, parents)
}

// Breeder selects parents and recombines them pairwise.
type Breeder[O any] struct {
	Selector selection.Selector[O]
	Crosser  Crosser[O]
}

// NewBreeder creates a Breeder. A nil selector falls back to
// fitness-proportionate sampling over evaluator.
func NewBreeder[O any](selector selection.Selector[O], crosser Crosser[O], evaluator optimization.Evaluator[O]) *Breeder[O] {
	if selector == nil {
		selector = selection.NewProportionate(evaluator)
	}
	return &Breeder[O]{Selector: selector, Crosser: crosser}
}

// Select picks args.BreedingPoolSize parents, favouring better organisms
// under args.Goal.
func (b *Breeder[O]) Select(rng *rand.Rand, args optimization.Arguments, pop *optimization.Population[O]) ([]O, error) {
	indices, err := b.Selector.Select(rng, pop, args.Goal, args.BreedingPoolSize)
	if err != nil {
		return nil, err
	}
	return selection.Pick(pop, indices)
}

// Breed crosses parents[0] with parents[1], parents[2] with parents[3] and
// so on, concatenating all children in pair order. With an odd number of
// parents the last one is dropped without being bred.
func (b *Breeder[O]) Breed(rng *rand.Rand, parents []O) ([]O, error) {
	var bred []O
	for i := 0; i+1 < len(parents); i += 2 {
		children, err := b.Crosser.Cross(rng, []O{parents[i], parents[i+1]})
		if err != nil {
			return nil, optimization.WrapError(optimization.KindCollaborator, err,
				fmt.Sprintf("crossing parents %d and %d", i, i+1))
		}
		bred = append(bred, children...)
	}
	return bred, nil
}
