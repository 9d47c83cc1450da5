// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package transpose

// boundKind tags the four-way sum making up a Bound: Min, Inclusive(t),
// Exclusive(t), Max.
type boundKind uint8

const (
	boundMin boundKind = iota
	boundInclusive
	boundExclusive
	boundMax
)

// LowerBound is a lower edge of a half-line of time: everything the bound
// admits is "at or after" (loosely speaking) some point. Two LowerBound
// values of equal kind and, where applicable, equal time, compare equal;
// Min sorts below everything and Max sorts above everything. At equal time,
// LowerBound.Exclusive(t) sorts above LowerBound.Inclusive(t) -- an
// exclusive lower bound excludes more.
type LowerBound[T Ordered[T]] struct {
	kind boundKind
	t    T
}

// UpperBound is the upper-edge counterpart of LowerBound. At equal time,
// UpperBound.Exclusive(t) sorts below UpperBound.Inclusive(t) -- an
// exclusive upper bound excludes more.
type UpperBound[T Ordered[T]] struct {
	kind boundKind
	t    T
}

// Ordered is the comparison contract a transposer's Time type must satisfy.
// Compare must return a negative number if a < b, zero if a == b, and a
// positive number if a > b.
type Ordered[T any] interface {
	Compare(other T) int
}

// MinLowerBound returns the LowerBound sorting below every other LowerBound.
func MinLowerBound[T Ordered[T]]() LowerBound[T] { return LowerBound[T]{kind: boundMin} }

// MaxLowerBound returns the LowerBound sorting above every other LowerBound.
// A Transpose whose caller has advanced its lower bound to Max will never be
// polled for state again.
func MaxLowerBound[T Ordered[T]]() LowerBound[T] { return LowerBound[T]{kind: boundMax} }

// InclusiveLowerBound returns the LowerBound admitting t itself.
func InclusiveLowerBound[T Ordered[T]](t T) LowerBound[T] {
	return LowerBound[T]{kind: boundInclusive, t: t}
}

// ExclusiveLowerBound returns the LowerBound excluding t itself.
func ExclusiveLowerBound[T Ordered[T]](t T) LowerBound[T] {
	return LowerBound[T]{kind: boundExclusive, t: t}
}

// MinUpperBound returns the UpperBound sorting below every other UpperBound;
// it admits nothing.
func MinUpperBound[T Ordered[T]]() UpperBound[T] { return UpperBound[T]{kind: boundMin} }

// MaxUpperBound returns the UpperBound sorting above every other UpperBound.
// Setting a Source's advance upper bound to Max signals finality.
func MaxUpperBound[T Ordered[T]]() UpperBound[T] { return UpperBound[T]{kind: boundMax} }

// InclusiveUpperBound returns the UpperBound admitting t itself.
func InclusiveUpperBound[T Ordered[T]](t T) UpperBound[T] {
	return UpperBound[T]{kind: boundInclusive, t: t}
}

// ExclusiveUpperBound returns the UpperBound excluding t itself.
func ExclusiveUpperBound[T Ordered[T]](t T) UpperBound[T] {
	return UpperBound[T]{kind: boundExclusive, t: t}
}

// Test reports whether t is in the half-line defined by this lower bound.
func (b LowerBound[T]) Test(t T) bool {
	switch b.kind {
	case boundMin:
		return true
	case boundMax:
		return false
	case boundInclusive:
		return t.Compare(b.t) >= 0
	case boundExclusive:
		return t.Compare(b.t) > 0
	default:
		return false
	}
}

// Test reports whether t is in the half-line defined by this upper bound.
func (b UpperBound[T]) Test(t T) bool {
	switch b.kind {
	case boundMin:
		return false
	case boundMax:
		return true
	case boundInclusive:
		return t.Compare(b.t) <= 0
	case boundExclusive:
		return t.Compare(b.t) < 0
	default:
		return false
	}
}

// IsMax reports whether this is the Max sentinel.
func (b LowerBound[T]) IsMax() bool { return b.kind == boundMax }

// IsMax reports whether this is the Max sentinel, i.e. signals finality.
func (b UpperBound[T]) IsMax() bool { return b.kind == boundMax }

// Time returns the bound's time value and whether it has one (false for Min
// and Max).
func (b LowerBound[T]) Time() (t T, ok bool) {
	if b.kind == boundInclusive || b.kind == boundExclusive {
		return b.t, true
	}
	return t, false
}

// Time returns the bound's time value and whether it has one (false for Min
// and Max).
func (b UpperBound[T]) Time() (t T, ok bool) {
	if b.kind == boundInclusive || b.kind == boundExclusive {
		return b.t, true
	}
	return t, false
}

// lowerRank orders the four bound kinds for the purposes of tie-breaking
// at equal time: Min < Inclusive < Exclusive < Max for a LowerBound (an
// exclusive lower bound sorts above an inclusive one at the same time,
// since it excludes strictly more); the symmetric Upper ordering is
// produced by flipping Inclusive/Exclusive.
func (k boundKind) lowerRank() int {
	switch k {
	case boundMin:
		return 0
	case boundInclusive:
		return 1
	case boundExclusive:
		return 2
	default: // boundMax
		return 3
	}
}

func (k boundKind) upperRank() int {
	switch k {
	case boundMin:
		return 0
	case boundExclusive:
		return 1
	case boundInclusive:
		return 2
	default: // boundMax
		return 3
	}
}

// Compare orders two LowerBound values. Min sorts lowest, Max sorts
// highest; among bounds with a time, ties break Inclusive < Exclusive.
func (b LowerBound[T]) Compare(other LowerBound[T]) int {
	at, aHas := b.Time()
	bt, bHas := other.Time()
	switch {
	case aHas && bHas:
		if c := at.Compare(bt); c != 0 {
			return c
		}
	case aHas != bHas:
		// one of the two is Min/Max; fall through to rank comparison below,
		// which already accounts for Min/Max extremes.
	}
	ar, br := b.kind.lowerRank(), other.kind.lowerRank()
	switch {
	case ar < br:
		return -1
	case ar > br:
		return 1
	default:
		return 0
	}
}

// Compare orders two UpperBound values. Min sorts lowest, Max sorts
// highest; among bounds with a time, ties break Exclusive < Inclusive.
func (b UpperBound[T]) Compare(other UpperBound[T]) int {
	at, aHas := b.Time()
	bt, bHas := other.Time()
	if aHas && bHas {
		if c := at.Compare(bt); c != 0 {
			return c
		}
	}
	ar, br := b.kind.upperRank(), other.kind.upperRank()
	switch {
	case ar < br:
		return -1
	case ar > br:
		return 1
	default:
		return 0
	}
}

// MaxLower returns the greater (more restrictive toward excluding the past)
// of two LowerBound values.
func MaxLower[T Ordered[T]](a, b LowerBound[T]) LowerBound[T] {
	if a.Compare(b) >= 0 {
		return a
	}
	return b
}

// MinLower returns the lesser of two LowerBound values: the more
// conservative of two independent finalize guarantees, since a composite
// promise ("nothing below this time will ever change") can never be
// stronger than the weakest of the promises it is built from.
func MinLower[T Ordered[T]](a, b LowerBound[T]) LowerBound[T] {
	if a.Compare(b) <= 0 {
		return a
	}
	return b
}

// MinUpper returns the lesser of two UpperBound values.
func MinUpper[T Ordered[T]](a, b UpperBound[T]) UpperBound[T] {
	if a.Compare(b) <= 0 {
		return a
	}
	return b
}
