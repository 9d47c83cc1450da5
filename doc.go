// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package transpose provides a deterministic, rollback-capable discrete-event
// transposition engine.
//
// # Architecture
//
// The engine is built around a [Transpose] core that composes a
// user-supplied [Transposer] state machine with zero or more time-ordered
// [Source] input streams, producing a new time-ordered stream of output
// events plus an on-demand interpolated state function. Upstream sources may
// retroactively revise their history (emit events in the past, or roll back
// previously emitted events); the engine invalidates exactly the derived
// work that depended on those facts and recomputes the minimal suffix.
//
// [Transpose] is itself a [Source]: it can be composed into further engines,
// or driven directly by a caller via [Transpose.Poll] / [Transpose.Advance].
//
// # Execution model
//
// The engine is single-threaded and cooperative with respect to any one
// [Transpose] instance: all mutation happens inside calls to Poll, Advance,
// or ReleaseChannel made by a single caller at a time. Concurrency with the
// outside world (sub-source progress, a saturating [Step]'s handler
// suspending on input state) is expressed through goroutines synchronized by
// single-slot channels and [Waker] callbacks, never through shared mutable
// state touched outside the router's short-held lock (see waker.go).
//
// # Determinism
//
// Given the same RNG seed, the same registered inputs, and a byte-identical
// sequence of upstream interrupts and poll calls, two engines produce
// identical output interrupt sequences. This rests on the transposer being
// deterministic given its inputs and RNG, and on the engine's own tie-break
// and drain orders being fixed (see step.go and timeline.go).
package transpose
