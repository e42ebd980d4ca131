// Package problems provides ready-made organisms, operators and a registry of
// named problems that the service and the CLI can run.
package problems

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/copyleftdev/darwin/internal/optimization"
	"github.com/copyleftdev/darwin/internal/optimization/genetic"
)

// ErrLengthMismatch is returned by crossers when parents differ in length.
var ErrLengthMismatch = errors.New("parents differ in length")

// Genome is a string of '0' and '1' characters.
type Genome string

// OneMax scores a genome by its number of '1' characters.
func OneMax() optimization.Evaluator[Genome] {
	return optimization.EvaluatorFunc[Genome](func(g Genome) float64 {
		return float64(strings.Count(string(g), "1"))
	})
}

// TargetMatch scores a genome by the number of positions where it agrees
// with target. A genome whose length differs from target scores 0.
func TargetMatch(target Genome) optimization.Evaluator[Genome] {
	return optimization.EvaluatorFunc[Genome](func(g Genome) float64 {
		if len(g) != len(target) {
			return 0
		}
		matches := 0
		for i := 0; i < len(g); i++ {
			if g[i] == target[i] {
				matches++
			}
		}
		return float64(matches)
	})
}

// RandomCreator creates PopulationSize genomes of Length uniformly random bits.
type RandomCreator struct {
	Length int
}

func (c RandomCreator) Create(rng *rand.Rand, args optimization.Arguments) ([]Genome, error) {
	if c.Length <= 0 {
		return nil, fmt.Errorf("genome length must be positive, got %d", c.Length)
	}
	genomes := make([]Genome, args.PopulationSize)
	buf := make([]byte, c.Length)
	for i := range genomes {
		for j := range buf {
			buf[j] = '0' + byte(rng.Intn(2))
		}
		genomes[i] = Genome(buf)
	}
	return genomes, nil
}

// SinglePointCrosser cuts both parents at one random point and swaps their
// tails, producing two children.
type SinglePointCrosser struct{}

func (SinglePointCrosser) Cross(rng *rand.Rand, parents []Genome) ([]Genome, error) {
	a, b, err := pair(parents)
	if err != nil {
		return nil, err
	}
	if len(a) < 2 {
		return []Genome{a, b}, nil
	}
	return swapTails(a, b, 1+rng.Intn(len(a)-1)), nil
}

// FixedPointCrosser swaps tails at Cut. A Cut of zero or less cuts at the
// midpoint; a Cut past the end is clamped.
type FixedPointCrosser struct {
	Cut int
}

func (c FixedPointCrosser) Cross(_ *rand.Rand, parents []Genome) ([]Genome, error) {
	a, b, err := pair(parents)
	if err != nil {
		return nil, err
	}
	cut := c.Cut
	if cut <= 0 {
		cut = len(a) / 2
	}
	return swapTails(a, b, min(cut, len(a))), nil
}

func pair(parents []Genome) (Genome, Genome, error) {
	if len(parents) != 2 {
		return "", "", fmt.Errorf("expected 2 parents, got %d", len(parents))
	}
	if len(parents[0]) != len(parents[1]) {
		return "", "", fmt.Errorf("%w: %d and %d", ErrLengthMismatch, len(parents[0]), len(parents[1]))
	}
	return parents[0], parents[1], nil
}

func swapTails(a, b Genome, cut int) []Genome {
	return []Genome{a[:cut] + b[cut:], b[:cut] + a[cut:]}
}

// FlipMutator flips every bit independently with probability amount.
type FlipMutator struct{}

func (FlipMutator) Mutate(rng *rand.Rand, amount float64, g Genome) Genome {
	if amount <= 0 {
		return g
	}
	out := []byte(g)
	for i, c := range out {
		if rng.Float64() >= amount {
			continue
		}
		switch c {
		case '0':
			out[i] = '1'
		case '1':
			out[i] = '0'
		}
	}
	return Genome(out)
}

var (
	_ genetic.Creator[Genome] = RandomCreator{}
	_ genetic.Crosser[Genome] = SinglePointCrosser{}
	_ genetic.Crosser[Genome] = FixedPointCrosser{}
	_ genetic.Mutator[Genome] = FlipMutator{}
)
