// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package transpose

import "golang.org/x/exp/constraints"

// maxOrdered backs the small numeric clamps scattered through option
// resolution (channel count floors): a plain operator-ordered builtin,
// unlike the transposer's own Time type, which is why this uses
// golang.org/x/exp/constraints.Ordered directly rather than this package's
// method-based Ordered[T] (see bound.go) -- the same split go-catrate's
// ringBuffer[E constraints.Ordered] (catrate/ring.go) draws between
// "operator-comparable" and "method-comparable" element types.
func maxOrdered[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}
