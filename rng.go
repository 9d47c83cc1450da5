// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package transpose

import "math/rand"

// xorshiftSource is a minimal, explicitly-copyable math/rand.Source64. The
// standard library's *rand.Rand hides its generator state behind an
// unexported, unclonable type, which can't satisfy a snapshot's RNG state
// being part of what gets forked when a step is cloned for branching: a
// clone must continue the exact same deterministic stream the original
// would have produced, without mutating the original (unlike re-seeding
// from a draw on the original, which both perturbs the source and gives the
// clone an unrelated stream). A fixed-state xorshift64 generator makes
// that fork a trivial struct copy.
type xorshiftSource struct {
	state uint64
}

func newXorshiftSource(seed uint64) *xorshiftSource {
	if seed == 0 {
		seed = 0x9e3779b97f4a7c15 // avoid the fixed point at zero
	}
	return &xorshiftSource{state: seed}
}

// Uint64 implements rand.Source64.
func (s *xorshiftSource) Uint64() uint64 {
	x := s.state
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	s.state = x
	return x
}

// Int63 implements rand.Source.
func (s *xorshiftSource) Int63() int64 { return int64(s.Uint64() >> 1) }

// Seed implements rand.Source.
func (s *xorshiftSource) Seed(seed int64) { s.state = uint64(seed) }

// clone returns an independent copy continuing the same future stream the
// receiver would have produced from this point forward.
func (s *xorshiftSource) clone() *xorshiftSource {
	c := *s
	return &c
}

// engineRand wraps a xorshiftSource in a *rand.Rand for the convenience
// methods (Intn, Float64, Shuffle, ...) user transposer code expects.
type engineRand struct {
	src *xorshiftSource
	r   *rand.Rand
}

func newEngineRand(seed uint64) *engineRand {
	src := newXorshiftSource(seed)
	return &engineRand{src: src, r: rand.New(src)}
}

func (e *engineRand) clone() *engineRand {
	src := e.src.clone()
	return &engineRand{src: src, r: rand.New(src)}
}

// Rand returns the *rand.Rand view of this snapshot's deterministic
// generator.
func (e *engineRand) Rand() *rand.Rand { return e.r }
