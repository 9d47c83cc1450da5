// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package transpose

// InputID identifies a registered input. Distinguishing many instances of
// the same logical input kind calls for a (static sort key, hashed value)
// pair in languages with cheap type-indexed trait objects; Go has no
// zero-cost equivalent, so this engine collapses that pair into a single
// opaque handle minted at registration time (see DESIGN.md). Two InputIDs
// compare equal iff they name the same registered input. Input events and
// states themselves are carried as `any`, the same dynamic-typing idiom
// go-eventloop's promise.go uses for Promise results (`type Result = any`):
// user code knows, from the InputID it registered, what concrete type to
// type-assert back out.
type InputID struct {
	sort uint64
	seq  uint64
}

// Sort returns the input's static sort key, the primary key of the
// canonical input-event tie-break order.
func (id InputID) Sort() uint64 { return id.sort }

// inputIdentityLess orders two InputIDs by (sort, seq), standing in for the
// original's (sort-key, type-identity, value) triple: seq is assigned in
// registration order and is therefore stable and total across the engine's
// lifetime, which is all the tie-break order actually requires.
func inputIdentityLess(a, b InputID) bool {
	if a.sort != b.sort {
		return a.sort < b.sort
	}
	return a.seq < b.seq
}

// erasedInputEvent pairs a type-erased input event with the identity of the
// input it came from, for storage in the step chain's input buffer and
// inside an Input step.
type erasedInputEvent[T Ordered[T]] struct {
	Input InputID
	Time  T
	Event any // the concrete InputEvent value for this Input
}

// inputEventLess implements the canonical order: (time, InputID), since
// InputID already totally orders (sort, registration-identity).
func inputEventLess[T Ordered[T]](a, b erasedInputEvent[T]) bool {
	if c := a.Time.Compare(b.Time); c != 0 {
		return c < 0
	}
	return inputIdentityLess(a.Input, b.Input)
}
