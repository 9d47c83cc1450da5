// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package transpose

import "sort"

// orderedSet is a growable, ordered sequence supporting O(log n) search and
// O(n) insert, used everywhere the engine needs a sorted-by-time index: the
// step chain's input buffer, each input's observed_times, and the
// schedule's ScheduledTime ordering.
//
// The search/insert algorithm is adapted from go-catrate's ringBuffer
// (catrate/ring.go): a backing slice searched via sort.Search and mutated
// with a single shifting insert. go-catrate's ringBuffer is unexported and
// generic only over golang.org/x/exp/constraints.Ordered (operator-ordered
// builtins); this engine's element types are either composite
// (ScheduledTime) or bounded only by the transposer-supplied Ordered[T]
// method-based constraint, so the ring's wraparound-index arithmetic is
// dropped in favor of a plain slice plus an explicit less func, keeping the
// same binary-search-then-shift shape.
type orderedSet[T any] struct {
	s    []T
	less func(a, b T) bool
}

// newOrderedSet creates an empty orderedSet using less for ordering.
func newOrderedSet[T any](less func(a, b T) bool) *orderedSet[T] {
	return &orderedSet[T]{less: less}
}

// Len returns the number of elements.
func (o *orderedSet[T]) Len() int { return len(o.s) }

// At returns the element at position i (0 is the minimum).
func (o *orderedSet[T]) At(i int) T { return o.s[i] }

// Min returns the smallest element and true, or the zero value and false if
// empty.
func (o *orderedSet[T]) Min() (t T, ok bool) {
	if len(o.s) == 0 {
		return t, false
	}
	return o.s[0], true
}

// search returns the index of the first element not less than v (the
// lower-bound insertion point for v).
func (o *orderedSet[T]) search(v T) int {
	return sort.Search(len(o.s), func(i int) bool { return !o.less(o.s[i], v) })
}

// Insert inserts v in order, preserving any existing elements that compare
// equal to v (stable insert at the end of the equal-run, matching "ties
// break by insertion order" callers like the schedule and input buffer).
func (o *orderedSet[T]) Insert(v T) {
	i := len(o.s)
	for i > 0 && o.less(v, o.s[i-1]) {
		i--
	}
	o.s = append(o.s, v)
	copy(o.s[i+1:], o.s[i:])
	o.s[i] = v
}

// Contains reports whether some element compares equal to v (neither less
// than nor greater than it).
func (o *orderedSet[T]) Contains(v T) bool {
	i := o.search(v)
	return i < len(o.s) && !o.less(v, o.s[i])
}

// RemoveBefore removes and returns every element e for which less(e, bound)
// is true -- i.e. every element strictly before bound in this set's order.
func (o *orderedSet[T]) RemoveBefore(bound T) []T {
	i := o.search(bound)
	removed := append([]T(nil), o.s[:i]...)
	o.s = append(o.s[:0], o.s[i:]...)
	return removed
}

// RemoveAtOrAfter removes and returns, in order, every element e for which
// less(e, bound) is false -- i.e. every element at or after bound.
func (o *orderedSet[T]) RemoveAtOrAfter(bound T) []T {
	i := o.search(bound)
	removed := append([]T(nil), o.s[i:]...)
	o.s = o.s[:i]
	return removed
}

// DrainEqual removes and returns every element e for which neither
// less(e, v) nor less(v, e) holds -- i.e. every element tied with v -- or
// nil when there are none. Elements are returned in their existing
// (insertion) order.
func (o *orderedSet[T]) DrainEqual(v T) []T {
	lo := o.search(v)
	hi := lo
	for hi < len(o.s) && !o.less(v, o.s[hi]) {
		hi++
	}
	if lo == hi {
		return nil
	}
	out := append([]T(nil), o.s[lo:hi]...)
	o.s = append(o.s[:lo], o.s[hi:]...)
	return out
}

// DrainBetween removes and returns every element e with
// !less(e, lowProbe) && less(e, highProbe) -- the half-open range
// [lowProbe, highProbe) under this set's order. Used to drain every entry
// sharing a partial key (e.g. every scheduled entry at a given time,
// regardless of emission index) by choosing probes that bracket exactly
// that run: DrainEqual cannot do this when less breaks ties on a field the
// caller wants to ignore, since its symmetric not-less-either-way test
// would only match a single exact value.
func (o *orderedSet[T]) DrainBetween(lowProbe, highProbe T) []T {
	lo := o.search(lowProbe)
	hi := o.search(highProbe)
	if lo >= hi {
		return nil
	}
	out := append([]T(nil), o.s[lo:hi]...)
	o.s = append(o.s[:lo], o.s[hi:]...)
	return out
}

// Remove deletes the first element equal to v under eq, reporting whether
// one was found.
func (o *orderedSet[T]) Remove(v T, eq func(a, b T) bool) bool {
	lo := o.search(v)
	for i := lo; i < len(o.s) && !o.less(v, o.s[i]); i++ {
		if eq(o.s[i], v) {
			o.s = append(o.s[:i], o.s[i+1:]...)
			return true
		}
	}
	return false
}

// Slice returns the set's elements in order. The returned slice aliases the
// set's backing array and must not be mutated.
func (o *orderedSet[T]) Slice() []T { return o.s }

// Clone returns a shallow, independent copy.
func (o *orderedSet[T]) Clone() *orderedSet[T] {
	out := &orderedSet[T]{less: o.less}
	if len(o.s) > 0 {
		out.s = append([]T(nil), o.s...)
	}
	return out
}
