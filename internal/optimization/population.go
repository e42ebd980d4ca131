package optimization

import (
	"iter"
	"slices"
)

// Population is an insertion-ordered multiset of organisms.
// Duplicates are allowed; organisms have no identity beyond their slot.
type Population[O any] struct {
	members []O
}

// NewPopulation creates a population holding a copy of members.
func NewPopulation[O any](members ...O) *Population[O] {
	return &Population[O]{members: slices.Clone(members)}
}

// Add appends an organism.
func (p *Population[O]) Add(o O) {
	p.members = append(p.members, o)
}

// AddAll appends organisms in order.
func (p *Population[O]) AddAll(os ...O) {
	p.members = append(p.members, os...)
}

// Len returns the current size of the population.
func (p *Population[O]) Len() int {
	if p == nil {
		return 0
	}
	return len(p.members)
}

// Get returns the organism at index i.
func (p *Population[O]) Get(i int) (O, error) {
	if i < 0 || i >= p.Len() {
		var zero O
		return zero, NewErrorf(KindConfiguration, ErrIndexOutOfRange, "index %d, size %d", i, p.Len()).
			WithOperation("Population.Get")
	}
	return p.members[i], nil
}

// All returns a copy of the members. Mutating it does not affect p.
func (p *Population[O]) All() []O {
	if p == nil {
		return nil
	}
	return slices.Clone(p.members)
}

// Members iterates over a snapshot of the population.
func (p *Population[O]) Members() iter.Seq2[int, O] {
	snapshot := p.All()
	return func(yield func(int, O) bool) {
		for i, o := range snapshot {
			if !yield(i, o) {
				return
			}
		}
	}
}

// Clone returns an independent copy of p.
func (p *Population[O]) Clone() *Population[O] {
	return &Population[O]{members: p.All()}
}

// RemoveAt removes and returns the organism at index i.
func (p *Population[O]) RemoveAt(i int) (O, error) {
	o, err := p.Get(i)
	if err != nil {
		return o, err
	}
	p.members = slices.Delete(p.members, i, i+1)
	return o, nil
}

// Without returns a new population lacking the slots listed in indices.
// Removal is by slot, never by value, so equal-valued organisms that were
// not listed survive. A slot listed twice is removed once. p is unchanged.
func (p *Population[O]) Without(indices []int) (*Population[O], error) {
	doomed := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		if i < 0 || i >= p.Len() {
			return nil, NewErrorf(KindConfiguration, ErrIndexOutOfRange, "index %d, size %d", i, p.Len()).
				WithOperation("Population.Without")
		}
		doomed[i] = struct{}{}
	}

	kept := make([]O, 0, p.Len()-len(doomed))
	for i, o := range p.members {
		if _, ok := doomed[i]; !ok {
			kept = append(kept, o)
		}
	}
	return &Population[O]{members: kept}, nil
}

// Remove deletes the first member equal to o and reports whether one was found.
func Remove[O comparable](p *Population[O], o O) bool {
	i := slices.Index(p.members, o)
	if i < 0 {
		return false
	}
	p.members = slices.Delete(p.members, i, i+1)
	return true
}

// RemoveAll performs multiset subtraction: each listed value removes at most
// one equal member, so listing a value k times removes exactly k instances
// when that many exist. It returns the number of members removed.
func RemoveAll[O comparable](p *Population[O], os []O) int {
	pending := make(map[O]int, len(os))
	for _, o := range os {
		pending[o]++
	}

	removed := 0
	kept := p.members[:0:0]
	for _, o := range p.members {
		if pending[o] > 0 {
			pending[o]--
			removed++
			continue
		}
		kept = append(kept, o)
	}
	p.members = kept
	return removed
}
