package genetic

import (
	"math/rand"

	"github.com/copyleftdev/darwin/internal/optimization"
	"github.com/copyleftdev/darwin/internal/optimization/selection"
)

// Killer keeps the population bounded by removing selected organisms.
type Killer[O any] struct {
	Selector selection.Selector[O]
}

// NewKiller creates a Killer. A nil selector falls back to
// fitness-proportionate sampling over evaluator.
func NewKiller[O any](selector selection.Selector[O], evaluator optimization.Evaluator[O]) *Killer[O] {
	if selector == nil {
		selector = selection.NewProportionate(evaluator)
	}
	return &Killer[O]{Selector: selector}
}

// Select returns the slots of args.KillingPoolSize organisms to remove. The
// selector runs under the opposite goal so that worse organisms are more
// likely to be doomed.
func (k *Killer[O]) Select(rng *rand.Rand, args optimization.Arguments, pop *optimization.Population[O]) ([]int, error) {
	return k.Selector.Select(rng, pop, args.Goal.Opposite(), args.KillingPoolSize)
}

// Kill returns a new population without the doomed slots. Removal is by
// slot: an equal-valued organism that was not selected survives.
func (k *Killer[O]) Kill(pop *optimization.Population[O], doomed []int) (*optimization.Population[O], error) {
	return pop.Without(doomed)
}
