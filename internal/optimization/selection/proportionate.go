package selection

import (
	"math"
	"math/rand"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/darwin/internal/optimization"
)

// Item is one slot of the roulette wheel. It only lives for the duration of
// a single Select call.
type Item struct {
	Index      int
	Weight     float64
	Share      float64
	Cumulative float64
}

// Proportionate implements fitness-proportionate ("roulette wheel")
// selection. It is with replacement unless configured otherwise.
type Proportionate[O any] struct {
	evaluator       optimization.Evaluator[O]
	withReplacement bool
}

// NewProportionate creates a roulette wheel selector.
func NewProportionate[O any](evaluator optimization.Evaluator[O], opts ...Option) *Proportionate[O] {
	o := buildOptions(options{withReplacement: true}, opts)
	return &Proportionate[O]{
		evaluator:       evaluator,
		withReplacement: o.withReplacement,
	}
}

// Select spins the wheel n times.
func (s *Proportionate[O]) Select(rng *rand.Rand, pop *optimization.Population[O], goal optimization.Goal, n int) ([]int, error) {
	const op = "Proportionate.Select"

	if err := checkSelect(op, rng, pop, n); err != nil {
		return nil, err
	}
	if !s.withReplacement && n > pop.Len() {
		return nil, invalid(op, "cannot select %d distinct organisms from %d", n, pop.Len())
	}
	if n == 0 {
		return []int{}, nil
	}

	fitnesses, err := optimization.Fitnesses(s.evaluator, pop.All())
	if err != nil {
		return nil, err
	}
	weights, err := Weights(fitnesses, goal)
	if err != nil {
		return nil, err
	}

	items := make([]Item, len(weights))
	for i, w := range weights {
		items[i] = Item{Index: i, Weight: w}
	}
	if err := Accumulate(items); err != nil {
		return nil, err
	}

	selected := make([]int, 0, n)
	for len(selected) < n {
		slot := Spin(rng, items)
		selected = append(selected, items[slot].Index)

		if s.withReplacement || len(selected) == n {
			continue
		}
		items = slices.Delete(items, slot, slot+1)
		if allZero(items) {
			// Only zero-weight organisms are left; draw among them uniformly.
			for i := range items {
				items[i].Weight = 1
			}
		}
		if err := Accumulate(items); err != nil {
			return nil, err
		}
	}
	return selected, nil
}

// Weights turns fitness values into non-negative roulette weights that
// favour the better organisms under goal. Under Maximize the weight is the
// fitness itself. Under Minimize every value is mirrored inside the observed
// range (max+min-f), so the lowest fitness gets the largest slice.
func Weights(fitnesses []float64, goal optimization.Goal) ([]float64, error) {
	const op = "Weights"

	for i, f := range fitnesses {
		switch {
		case math.IsNaN(f) || math.IsInf(f, 0):
			return nil, optimization.NewErrorf(optimization.KindNumeric, optimization.ErrInvalidFitness,
				"fitness of organism %d is %v", i, f).WithComponent(component).WithOperation(op)
		case f < 0:
			return nil, optimization.NewErrorf(optimization.KindNumeric, optimization.ErrNegativeFitness,
				"fitness of organism %d is %v, shift the objective to be non-negative", i, f).
				WithComponent(component).WithOperation(op)
		}
	}

	weights := slices.Clone(fitnesses)
	if goal == optimization.Minimize && len(weights) > 0 {
		mirror := floats.Max(fitnesses) + floats.Min(fitnesses)
		for i, f := range fitnesses {
			weights[i] = mirror - f
		}
	}
	return weights, nil
}

// Accumulate fills in Share and Cumulative for the items, in their current
// order, from their weights.
func Accumulate(items []Item) error {
	weights := make([]float64, len(items))
	for i, it := range items {
		weights[i] = it.Weight
	}

	total := floats.Sum(weights)
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return optimization.NewErrorf(optimization.KindNumeric, optimization.ErrInvalidFitness,
			"total weight of %d organisms is %v", len(items), total).
			WithComponent(component).WithOperation("Accumulate")
	}
	if total == 0 {
		return optimization.NewErrorf(optimization.KindNumeric, optimization.ErrZeroTotalFitness,
			"cannot build a distribution over %d organisms", len(items)).
			WithComponent(component).WithOperation("Accumulate")
	}

	floats.Scale(1/total, weights)
	cumulative := floats.CumSum(make([]float64, len(weights)), weights)
	for i := range items {
		items[i].Share = weights[i]
		items[i].Cumulative = cumulative[i]
	}
	return nil
}

func allZero(items []Item) bool {
	for _, it := range items {
		if it.Weight != 0 {
			return false
		}
	}
	return true
}

// Spin draws r uniformly from [0, last cumulative) and returns the position
// of the first item whose cumulative share exceeds r.
func Spin(rng *rand.Rand, items []Item) int {
	last := items[len(items)-1].Cumulative
	r := rng.Float64() * last
	for i, it := range items {
		if it.Cumulative > r {
			return i
		}
	}

	// Rounding can leave r equal to the final cumulative value.
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Share > 0 {
			return i
		}
	}
	return len(items) - 1
}
