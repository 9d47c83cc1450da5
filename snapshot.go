// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package transpose

// snapshot is the immutable-once-captured state a saturated Step produces:
// the user transposer value plus the schedule (and its RNG) at that step's
// time. Snapshots are shared by reference between a Step and any
// Interpolation anchored to it; cloning happens only when a new Step needs
// an independently-mutable starting point (start-saturate-clone), the same
// "persistent, shareable, cheaply-forked" data structure go-eventloop's
// registry slots approximate with generation counters, done here with an
// explicit deep copy since Go has no borrowed persistent map/tree in the
// examples to reach for (see DESIGN.md).
type snapshot[T Ordered[T], OE any, OS any] struct {
	transposer Transposer[T, OE, OS]
	sched      *schedule[T]
	time       T
}

// clone returns an independent copy: mutating it, or running a step against
// it, never affects the receiver.
func (s *snapshot[T, OE, OS]) clone() *snapshot[T, OE, OS] {
	return &snapshot[T, OE, OS]{
		transposer: s.transposer.Clone(),
		sched:      s.sched.clone(),
		time:       s.time,
	}
}
