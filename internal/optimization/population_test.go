package optimization

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPopulationBasics(t *testing.T) {
	src := []string{"a", "b"}
	pop := NewPopulation(src...)
	src[0] = "changed"

	pop.Add("c")
	pop.AddAll("d", "a")

	assert.Equal(t, 5, pop.Len())
	assert.Equal(t, []string{"a", "b", "c", "d", "a"}, pop.All())

	got, err := pop.Get(3)
	require.NoError(t, err)
	assert.Equal(t, "d", got)

	_, err = pop.Get(5)
	assert.True(t, errors.Is(err, ErrIndexOutOfRange))
	_, err = pop.Get(-1)
	assert.True(t, errors.Is(err, ErrIndexOutOfRange))
}

func TestPopulationAllIsACopy(t *testing.T) {
	pop := NewPopulation(1, 2, 3)

	snapshot := pop.All()
	snapshot[0] = 99
	snapshot = append(snapshot, 4)

	assert.Equal(t, []int{1, 2, 3}, pop.All())
	assert.Len(t, snapshot, 4)
}

func TestPopulationMembersIteratesSnapshot(t *testing.T) {
	pop := NewPopulation("x", "y", "z")

	var seen []string
	for i, o := range pop.Members() {
		if i == 0 {
			pop.Add("late")
		}
		seen = append(seen, o)
	}
	assert.Equal(t, []string{"x", "y", "z"}, seen)

	var first []string
	for _, o := range pop.Members() {
		first = append(first, o)
		break
	}
	assert.Equal(t, []string{"x"}, first)
}

func TestPopulationRemoveAt(t *testing.T) {
	pop := NewPopulation("a", "b", "c")

	removed, err := pop.RemoveAt(1)
	require.NoError(t, err)
	assert.Equal(t, "b", removed)
	assert.Equal(t, []string{"a", "c"}, pop.All())

	_, err = pop.RemoveAt(2)
	assert.Error(t, err)
}

func TestPopulationWithoutRemovesSlotsNotValues(t *testing.T) {
	pop := NewPopulation("dup", "keep", "dup", "dup")

	next, err := pop.Without([]int{0, 3})
	require.NoError(t, err)

	assert.Equal(t, []string{"keep", "dup"}, next.All())
	assert.Equal(t, 4, pop.Len(), "source population must not change")
	assert.Equal(t, pop.Len()-2, next.Len())
}

func TestPopulationWithoutDuplicateIndices(t *testing.T) {
	pop := NewPopulation(1, 2, 3)

	next, err := pop.Without([]int{1, 1})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, next.All())

	_, err = pop.Without([]int{3})
	assert.True(t, errors.Is(err, ErrIndexOutOfRange))
}

func TestRemoveAllIsMultisetSubtraction(t *testing.T) {
	pop := NewPopulation("0101", "1111", "0101", "0101", "0000")

	removed := RemoveAll(pop, []string{"0101", "0101"})
	assert.Equal(t, 2, removed)
	assert.Equal(t, []string{"1111", "0101", "0000"}, pop.All())

	removed = RemoveAll(pop, []string{"absent"})
	assert.Equal(t, 0, removed)
	assert.Equal(t, 3, pop.Len())
}

func TestRemove(t *testing.T) {
	pop := NewPopulation(5, 6, 5)

	assert.True(t, Remove(pop, 5))
	assert.Equal(t, []int{6, 5}, pop.All())
	assert.False(t, Remove(pop, 7))
}

func TestPopulationClone(t *testing.T) {
	pop := NewPopulation(1, 2)
	clone := pop.Clone()
	clone.Add(3)

	assert.Equal(t, 2, pop.Len())
	assert.Equal(t, 3, clone.Len())
}

func TestNilPopulation(t *testing.T) {
	var pop *Population[int]
	assert.Equal(t, 0, pop.Len())
	assert.Nil(t, pop.All())
}
