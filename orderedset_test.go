// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package transpose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intLess(a, b int) bool { return a < b }

func TestOrderedSet_InsertKeepsOrder(t *testing.T) {
	s := newOrderedSet(intLess)
	for _, v := range []int{5, 1, 4, 2, 3} {
		s.Insert(v)
	}
	require.Equal(t, 5, s.Len())
	assert.Equal(t, []int{1, 2, 3, 4, 5}, s.Slice())
}

func TestOrderedSet_InsertStableOnTies(t *testing.T) {
	type tagged struct {
		key, tag int
	}
	less := func(a, b tagged) bool { return a.key < b.key }
	s := newOrderedSet(less)
	s.Insert(tagged{1, 1})
	s.Insert(tagged{1, 2})
	s.Insert(tagged{1, 3})
	// ties are appended after existing equal elements, preserving insertion
	// order.
	assert.Equal(t, []tagged{{1, 1}, {1, 2}, {1, 3}}, s.Slice())
}

func TestOrderedSet_Min(t *testing.T) {
	s := newOrderedSet(intLess)
	_, ok := s.Min()
	assert.False(t, ok)
	s.Insert(3)
	s.Insert(1)
	v, ok := s.Min()
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestOrderedSet_RemoveBefore(t *testing.T) {
	s := newOrderedSet(intLess)
	for _, v := range []int{1, 2, 3, 4, 5} {
		s.Insert(v)
	}
	removed := s.RemoveBefore(3)
	assert.Equal(t, []int{1, 2}, removed)
	assert.Equal(t, []int{3, 4, 5}, s.Slice())
}

func TestOrderedSet_Contains(t *testing.T) {
	s := newOrderedSet(intLess)
	s.Insert(1)
	s.Insert(3)
	assert.True(t, s.Contains(3))
	assert.False(t, s.Contains(2))
	assert.False(t, s.Contains(4))
}

func TestOrderedSet_RemoveAtOrAfter(t *testing.T) {
	s := newOrderedSet(intLess)
	for _, v := range []int{1, 2, 3, 4, 5} {
		s.Insert(v)
	}
	removed := s.RemoveAtOrAfter(3)
	assert.Equal(t, []int{3, 4, 5}, removed)
	assert.Equal(t, []int{1, 2}, s.Slice())
	assert.Empty(t, s.RemoveAtOrAfter(3))
}

func TestOrderedSet_DrainEqual(t *testing.T) {
	type tagged struct{ key, tag int }
	less := func(a, b tagged) bool { return a.key < b.key }
	s := newOrderedSet(less)
	s.Insert(tagged{1, 1})
	s.Insert(tagged{2, 1})
	s.Insert(tagged{2, 2})
	s.Insert(tagged{3, 1})

	got := s.DrainEqual(tagged{key: 2})
	assert.Equal(t, []tagged{{2, 1}, {2, 2}}, got)
	assert.Equal(t, []tagged{{1, 1}, {3, 1}}, s.Slice())

	assert.Nil(t, s.DrainEqual(tagged{key: 99}))
}

func TestOrderedSet_DrainBetween(t *testing.T) {
	s := newOrderedSet(intLess)
	for _, v := range []int{1, 2, 3, 4, 5} {
		s.Insert(v)
	}
	got := s.DrainBetween(2, 4)
	assert.Equal(t, []int{2, 3}, got)
	assert.Equal(t, []int{1, 4, 5}, s.Slice())
}

func TestOrderedSet_Remove(t *testing.T) {
	s := newOrderedSet(intLess)
	for _, v := range []int{1, 2, 3} {
		s.Insert(v)
	}
	eq := func(a, b int) bool { return a == b }
	assert.True(t, s.Remove(2, eq))
	assert.Equal(t, []int{1, 3}, s.Slice())
	assert.False(t, s.Remove(99, eq))
}

func TestOrderedSet_Clone_Independent(t *testing.T) {
	s := newOrderedSet(intLess)
	s.Insert(1)
	s.Insert(2)
	clone := s.Clone()
	clone.Insert(3)
	assert.Equal(t, []int{1, 2}, s.Slice())
	assert.Equal(t, []int{1, 2, 3}, clone.Slice())
}
