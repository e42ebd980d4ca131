package selection

import (
	"math/rand"
	"slices"

	"github.com/copyleftdev/darwin/internal/optimization"
)

// DefaultTournamentSize is used by callers that do not configure one.
const DefaultTournamentSize = 5

// Tournament implements tournament selection: each draw samples Size
// distinct candidates and keeps the best. Winners leave the candidate pool
// unless the selector was built WithReplacement(true).
type Tournament[O any] struct {
	evaluator       optimization.Evaluator[O]
	size            int
	withReplacement bool
}

// NewTournament creates a tournament selector. size must be at least 1.
func NewTournament[O any](evaluator optimization.Evaluator[O], size int, opts ...Option) (*Tournament[O], error) {
	if size < 1 {
		return nil, invalid("NewTournament", "tournament size must be at least 1, got %d", size)
	}
	o := buildOptions(options{withReplacement: false}, opts)
	return &Tournament[O]{
		evaluator:       evaluator,
		size:            size,
		withReplacement: o.withReplacement,
	}, nil
}

// Size returns the number of participants per tournament.
func (s *Tournament[O]) Size() int {
	return s.size
}

// Select runs n tournaments. Among equally fit participants the one with
// the lowest population index wins.
func (s *Tournament[O]) Select(rng *rand.Rand, pop *optimization.Population[O], goal optimization.Goal, n int) ([]int, error) {
	const op = "Tournament.Select"

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

	// candidates stays sorted by population index.
	candidates := make([]int, pop.Len())
	for i := range candidates {
		candidates[i] = i
	}

	selected := make([]int, 0, n)
	for len(selected) < n {
		if s.size > len(candidates) {
			return nil, invalid(op, "tournament size %d exceeds the %d remaining candidates", s.size, len(candidates))
		}

		participants := rng.Perm(len(candidates))[:s.size]
		slices.Sort(participants)

		winner := participants[0]
		for _, p := range participants[1:] {
			if goal.Better(fitnesses[candidates[p]], fitnesses[candidates[winner]]) {
				winner = p
			}
		}

		selected = append(selected, candidates[winner])
		if !s.withReplacement {
			candidates = slices.Delete(candidates, winner, winner+1)
		}
	}
	return selected, nil
}
