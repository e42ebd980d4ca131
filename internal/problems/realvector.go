package problems

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/darwin/internal/optimization"
	"github.com/copyleftdev/darwin/internal/optimization/genetic"
)

// Vector is a point in a bounded real search space.
type Vector []float64

// Bounds is the closed interval a single coordinate lives in.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Clamp limits v to the interval.
func (b Bounds) Clamp(v float64) float64 {
	switch {
	case v < b.Min:
		return b.Min
	case v > b.Max:
		return b.Max
	}
	return v
}

// UniformBounds repeats the same interval for n coordinates.
func UniformBounds(n int, lo, hi float64) []Bounds {
	bounds := make([]Bounds, n)
	for i := range bounds {
		bounds[i] = Bounds{Min: lo, Max: hi}
	}
	return bounds
}

// Sphere scores a vector by the sum of its squared coordinates. Its optimum
// is 0 at the origin, so it is run under Minimize.
func Sphere() optimization.Evaluator[Vector] {
	return optimization.EvaluatorFunc[Vector](func(v Vector) float64 {
		return floats.Dot(v, v)
	})
}

// Rosenbrock scores a vector by the generalized Rosenbrock valley:
// sum of 100*(x[i+1]-x[i]^2)^2 + (1-x[i])^2. Its optimum is 0 at (1, ..., 1).
func Rosenbrock() optimization.Evaluator[Vector] {
	return optimization.EvaluatorFunc[Vector](func(v Vector) float64 {
		var sum float64
		for i := 0; i+1 < len(v); i++ {
			a := v[i+1] - v[i]*v[i]
			b := 1 - v[i]
			sum += 100*a*a + b*b
		}
		return sum
	})
}

// UniformCreator samples every coordinate uniformly from its bounds.
type UniformCreator struct {
	Bounds []Bounds
}

func (c UniformCreator) Create(rng *rand.Rand, args optimization.Arguments) ([]Vector, error) {
	if len(c.Bounds) == 0 {
		return nil, fmt.Errorf("at least one dimension is required")
	}
	for i, b := range c.Bounds {
		if b.Min > b.Max {
			return nil, fmt.Errorf("dimension %d: min %g above max %g", i, b.Min, b.Max)
		}
	}
	vectors := make([]Vector, args.PopulationSize)
	for i := range vectors {
		v := make(Vector, len(c.Bounds))
		for j, b := range c.Bounds {
			v[j] = b.Min + rng.Float64()*(b.Max-b.Min)
		}
		vectors[i] = v
	}
	return vectors, nil
}

// ArithmeticCrosser blends two parents with a random weight alpha:
// a*alpha + b*(1-alpha) and a*(1-alpha) + b*alpha.
type ArithmeticCrosser struct{}

func (ArithmeticCrosser) Cross(rng *rand.Rand, parents []Vector) ([]Vector, error) {
	if len(parents) != 2 {
		return nil, fmt.Errorf("expected 2 parents, got %d", len(parents))
	}
	a, b := parents[0], parents[1]
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: %d and %d", ErrLengthMismatch, len(a), len(b))
	}

	alpha := rng.Float64()
	diff := floats.SubTo(make([]float64, len(a)), a, b)
	first := floats.AddScaledTo(make([]float64, len(a)), b, alpha, diff)
	second := floats.AddScaledTo(make([]float64, len(a)), a, -alpha, diff)
	return []Vector{first, second}, nil
}

// GaussianMutator adds normal noise to every coordinate. The standard
// deviation is amount times the width of the coordinate's bounds, and the
// result is clamped back into them. Coordinates without bounds are copied.
type GaussianMutator struct {
	Bounds []Bounds
}

func (m GaussianMutator) Mutate(rng *rand.Rand, amount float64, v Vector) Vector {
	out := make(Vector, len(v))
	copy(out, v)
	if amount <= 0 {
		return out
	}
	for i := range out {
		if i >= len(m.Bounds) {
			break
		}
		b := m.Bounds[i]
		out[i] = b.Clamp(out[i] + rng.NormFloat64()*amount*(b.Max-b.Min))
	}
	return out
}

var (
	_ genetic.Creator[Vector] = UniformCreator{}
	_ genetic.Crosser[Vector] = ArithmeticCrosser{}
	_ genetic.Mutator[Vector] = GaussianMutator{}
)
