// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package transpose

// timeline is the step chain: an ordered sequence of Steps from Init
// onward, plus the input buffer of not-yet-applied input events. At most
// one step is ever Saturating; every step before it is Saturated, every
// step after it is Unsaturated, mirroring the "exactly one saturating
// step" invariant of a Rust working-timeline-slice without the borrow
// checker to enforce it for us.
type timeline[T Ordered[T], OE any, OS any] struct {
	steps   []*Step[T, OE, OS]
	nextSeq uint64

	// numDeleted counts steps pruned off the front of the chain, so a
	// step's absolute position stays addressable after pruning (sparse
	// indexing; see stepAt).
	numDeleted int

	// inputBuffer holds input events that have arrived (via an interrupt)
	// but have not yet been folded into a step, ordered by (time, InputID).
	inputBuffer *orderedSet[erasedInputEvent[T]]
}

func newTimeline[T Ordered[T], OE any, OS any](initTime T) *timeline[T, OE, OS] {
	tl := &timeline[T, OE, OS]{
		inputBuffer: newOrderedSet(inputEventLess[T]),
	}
	tl.steps = append(tl.steps, newInitStep[T, OE, OS](0, initTime))
	tl.nextSeq = 1
	return tl
}

// saturatingIndex returns the index of the currently-Saturating step, if
// any.
func (tl *timeline[T, OE, OS]) saturatingIndex() (int, bool) {
	for i, s := range tl.steps {
		if s.Saturation() == Saturating {
			return i, true
		}
	}
	return 0, false
}

// lastSaturated returns the index of the last contiguous Saturated step
// from the front of the chain.
func (tl *timeline[T, OE, OS]) lastSaturated() int {
	last := -1
	for i, s := range tl.steps {
		if s.Saturation() == Saturated {
			last = i
		} else {
			break
		}
	}
	return last
}

// bufferInputEvent records an input event in the input buffer, to be
// drained into the chain as (part of) a new step by appendNextStep.
func (tl *timeline[T, OE, OS]) bufferInputEvent(ev erasedInputEvent[T]) {
	tl.inputBuffer.Insert(ev)
}

// rollbackTo discards every step at or after t. Any discarded Input-kind
// step's events are returned to the input buffer so they get re-derived
// (possibly re-coalesced with a just-arrived retroactive event at the same
// time); discarded Scheduled-kind steps need no such restoration, since
// their entries are re-drained fresh from the retained predecessor's own
// (never-mutated, see step.go's prevClone) schedule as the chain is rebuilt
// forward. Steps pinned by a live interpolation are orphaned rather than
// desaturated; see fold.
func (tl *timeline[T, OE, OS]) rollbackTo(t T) error {
	return tl.fold(t, InputID{}, false)
}

// rollbackInput is as rollbackTo, but events belonging to excludeInput are
// dropped rather than restored to the buffer: the upstream Rollback that
// triggered this fold means that input's own source no longer vouches for
// them.
func (tl *timeline[T, OE, OS]) rollbackInput(t T, excludeInput InputID) error {
	return tl.fold(t, excludeInput, true)
}

func (tl *timeline[T, OE, OS]) fold(t T, excludeInput InputID, exclude bool) error {
	cut := len(tl.steps)
	for i, s := range tl.steps {
		if s.Time().Compare(t) >= 0 && i > 0 {
			cut = i
			break
		}
	}
	for i := len(tl.steps) - 1; i >= cut; i-- {
		s := tl.steps[i]
		if s.kind == stepInput {
			for _, ev := range s.inputEvents {
				if exclude && ev.Input == excludeInput {
					continue
				}
				tl.bufferInputEvent(ev)
			}
		}
		// A live Interpolation may refuse the desaturation; the step leaves
		// the chain either way, staying saturated as an orphan until the
		// interpolation closes (its own clone keeps working meanwhile).
		_ = s.Desaturate()
	}
	tl.steps = tl.steps[:cut]
	return nil
}

// stepFor returns the greatest Saturated step whose time is at or before t,
// falling back to the earliest retained saturated step when every saturated
// time is after t (the init-step fallback, generalized past pruning).
func (tl *timeline[T, OE, OS]) stepFor(t T) (*Step[T, OE, OS], bool) {
	var best *Step[T, OE, OS]
	for _, s := range tl.steps {
		if s.Saturation() != Saturated {
			break
		}
		if s.Time().Compare(t) > 0 {
			break
		}
		best = s
	}
	if best == nil {
		if len(tl.steps) > 0 && tl.steps[0].Saturation() == Saturated {
			return tl.steps[0], true
		}
		return nil, false
	}
	return best, true
}

// appendNextStep builds the next Unsaturated step after the chain's
// current tail, consuming either the earliest buffered input event(s) at
// a single time, or the earliest scheduled entries at a single time from
// prevSnap's schedule, whichever is earlier; ties prefer the input event,
// per §4.2 step 4: input events at the same time are handled before
// scheduled events. The schedule is drained from a clone of prevSnap,
// stashed on the new step as prevClone for StartSaturateTake to consume,
// so prevSnap itself -- the chain's last Saturated step -- is never
// mutated; that leaves it safe to re-derive from again after a later
// rollback discards this new step.
func (tl *timeline[T, OE, OS]) appendNextStep(prevSnap *snapshot[T, OE, OS]) *Step[T, OE, OS] {
	nextSchedTime, haveSched := prevSnap.sched.nextTime()
	nextInputTime, haveInput := tl.nextBufferedTime()

	switch {
	case !haveSched && !haveInput:
		return nil
	case haveInput && (!haveSched || nextInputTime.Compare(nextSchedTime) <= 0):
		events := tl.drainBufferedAt(nextInputTime)
		clone := prevSnap.clone()
		step := newInputStep[T, OE, OS](tl.nextSeq, nextInputTime, events)
		step.prevClone = clone
		tl.nextSeq++
		tl.steps = append(tl.steps, step)
		return step
	default:
		clone := prevSnap.clone()
		entries := clone.sched.drainAt(nextSchedTime)
		step := newScheduledStep[T, OE, OS](tl.nextSeq, nextSchedTime, entries)
		step.prevClone = clone
		tl.nextSeq++
		tl.steps = append(tl.steps, step)
		return step
	}
}

func (tl *timeline[T, OE, OS]) nextBufferedTime() (T, bool) {
	e, ok := tl.inputBuffer.Min()
	if !ok {
		var zero T
		return zero, false
	}
	return e.Time, true
}

func (tl *timeline[T, OE, OS]) drainBufferedAt(t T) []erasedInputEvent[T] {
	lowProbe := erasedInputEvent[T]{Time: t, Input: InputID{sort: 0, seq: 0}}
	highProbe := erasedInputEvent[T]{Time: t, Input: InputID{sort: ^uint64(0), seq: ^uint64(0)}}
	return tl.inputBuffer.DrainBetween(lowProbe, highProbe)
}

// pruneBefore discards Saturated steps strictly before t that have no
// active interpolations, keeping the chain from growing without bound once
// callers stop needing to interpolate or rewind that far back.
func (tl *timeline[T, OE, OS]) pruneBefore(t T) {
	cut := 0
	for cut < len(tl.steps)-1 {
		s := tl.steps[cut]
		if s.Saturation() != Saturated || s.Time().Compare(t) >= 0 || s.interpolations > 0 {
			break
		}
		cut++
	}
	if cut > 0 {
		tl.steps = tl.steps[cut:]
		tl.numDeleted += cut
	}
}

// stepAt returns the step at absolute position i, counting from the chain's
// original first step: positions below numDeleted were pruned and report
// false, as do positions past the live tail. Tail positions discarded by a
// fold are reused by the re-derived steps that replace them.
func (tl *timeline[T, OE, OS]) stepAt(i int) (*Step[T, OE, OS], bool) {
	i -= tl.numDeleted
	if i < 0 || i >= len(tl.steps) {
		return nil, false
	}
	return tl.steps[i], true
}

// assertInvariants panics if the chain's structural invariants are broken:
// step times strictly increase, at most one step is Saturating, saturations
// form a contiguous prefix, and the input buffer's minimum is strictly
// after the last step's time. These are engine bugs, never user errors;
// gated behind WithDebugAssertions.
func (tl *timeline[T, OE, OS]) assertInvariants() {
	sawSaturating := false
	sawNotSaturated := false
	for i, s := range tl.steps {
		if i > 0 && tl.steps[i-1].Time().Compare(s.Time()) >= 0 {
			panic("transpose: step chain times not strictly increasing")
		}
		switch s.Saturation() {
		case Saturated:
			if sawNotSaturated {
				panic("transpose: saturated step after an unsaturated one")
			}
		case Saturating:
			if sawSaturating {
				panic("transpose: more than one saturating step")
			}
			sawSaturating = true
			sawNotSaturated = true
		case Unsaturated:
			sawNotSaturated = true
		}
	}
	if t, ok := tl.nextBufferedTime(); ok && len(tl.steps) > 0 {
		if tl.steps[len(tl.steps)-1].Time().Compare(t) >= 0 {
			panic("transpose: input buffer overlaps the step chain")
		}
	}
}
