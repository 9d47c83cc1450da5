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

// saturateStep drives step to Saturated against prevSnap, failing the test
// on any error or GetInputState suspension (none of these fixtures need
// it).
func saturateStep[T Ordered[T], OE any, OS any](t *testing.T, step *Step[T, OE, OS], prevSnap *snapshot[T, OE, OS]) {
	t.Helper()
	require.NoError(t, step.StartSaturateTake(prevSnap))
	for {
		p, err := step.Poll()
		require.NoError(t, err)
		if p.Kind == StepSaturated {
			return
		}
		t.Fatalf("unexpected step poll kind %v", p.Kind)
	}
}

func newTestTimeline(t *testing.T, limit int) (*timeline[intTime, string, int], *snapshot[intTime, string, int]) {
	t.Helper()
	tl := newTimeline[intTime, string, int](0)
	tr := &counterTransposer{limit: limit}
	snap := &snapshot[intTime, string, int]{transposer: tr, sched: newSchedule[intTime](1), time: 0}
	saturateStep(t, tl.steps[0], snap)
	// counterTransposer's Init schedules its first event at t=1; drop it so
	// each test starts from an empty schedule and controls it itself.
	snap.sched.drainAt(1)
	return tl, snap
}

// TestTimeline_AppendNextStep_TieBreaksToInput exercises §4.2 step 4: when
// the earliest buffered input time equals the earliest scheduled time, the
// input event wins.
func TestTimeline_AppendNextStep_TieBreaksToInput(t *testing.T) {
	tl, _ := newTestTimeline(t, 0)
	prevSnap, ok := tl.steps[0].Snapshot()
	require.True(t, ok)
	prevSnap.sched.insert(5, struct{}{})

	in := InputID{sort: 1, seq: 0}
	tl.bufferInputEvent(erasedInputEvent[intTime]{Time: 5, Input: in, Event: 42})

	step := tl.appendNextStep(prevSnap)
	require.NotNil(t, step)
	assert.Equal(t, stepInput, step.kind)
	assert.Equal(t, intTime(5), step.Time())
}

// TestTimeline_AppendNextStep_PrefersEarlier checks the non-tied cases in
// both directions.
func TestTimeline_AppendNextStep_PrefersEarlier(t *testing.T) {
	tl, _ := newTestTimeline(t, 0)
	prevSnap, ok := tl.steps[0].Snapshot()
	require.True(t, ok)
	prevSnap.sched.insert(10, struct{}{})
	tl.bufferInputEvent(erasedInputEvent[intTime]{Time: 3, Input: InputID{sort: 1}, Event: 1})

	step := tl.appendNextStep(prevSnap)
	require.NotNil(t, step)
	assert.Equal(t, stepInput, step.kind)
	assert.Equal(t, intTime(3), step.Time())

	tl2, _ := newTestTimeline(t, 0)
	prevSnap2, _ := tl2.steps[0].Snapshot()
	prevSnap2.sched.insert(2, struct{}{})
	tl2.bufferInputEvent(erasedInputEvent[intTime]{Time: 9, Input: InputID{sort: 1}, Event: 1})

	step2 := tl2.appendNextStep(prevSnap2)
	require.NotNil(t, step2)
	assert.Equal(t, stepScheduled, step2.kind)
	assert.Equal(t, intTime(2), step2.Time())
}

// TestTimeline_AppendNextStep_NeverMutatesPredecessor checks the
// prevClone discipline backing the schedule-corruption fix: appending a
// Scheduled step must leave prevSnap's own schedule untouched, since it
// may be re-derived from again after a later rollback.
func TestTimeline_AppendNextStep_NeverMutatesPredecessor(t *testing.T) {
	tl, _ := newTestTimeline(t, 0)
	prevSnap, _ := tl.steps[0].Snapshot()
	prevSnap.sched.insert(4, struct{}{})

	before, ok := prevSnap.sched.nextTime()
	require.True(t, ok)
	assert.Equal(t, intTime(4), before)

	tl.appendNextStep(prevSnap)

	after, ok := prevSnap.sched.nextTime()
	require.True(t, ok, "predecessor schedule must still have its entry after appendNextStep")
	assert.Equal(t, intTime(4), after)
}

// TestTimeline_RollbackTo_RestoresInputEvents checks that discarding an
// Input-kind step returns its events to the input buffer rather than
// dropping them.
func TestTimeline_RollbackTo_RestoresInputEvents(t *testing.T) {
	tl, _ := newTestTimeline(t, 0)
	prevSnap, _ := tl.steps[0].Snapshot()
	in := InputID{sort: 1, seq: 0}
	tl.bufferInputEvent(erasedInputEvent[intTime]{Time: 5, Input: in, Event: 7})
	step := tl.appendNextStep(prevSnap)
	saturateStep(t, step, prevSnap)

	require.NoError(t, tl.rollbackTo(5))
	assert.Len(t, tl.steps, 1)

	ev, ok := tl.inputBuffer.Min()
	require.True(t, ok)
	assert.Equal(t, 7, ev.Event)
}

// TestTimeline_RollbackInput_DropsExcludedInput checks that a fold
// triggered by an upstream Rollback drops that input's own events instead
// of re-buffering them, per §8 property 5 (rollback minimality: the
// source itself no longer vouches for them).
func TestTimeline_RollbackInput_DropsExcludedInput(t *testing.T) {
	tl, _ := newTestTimeline(t, 0)
	prevSnap, _ := tl.steps[0].Snapshot()
	in := InputID{sort: 1, seq: 0}
	tl.bufferInputEvent(erasedInputEvent[intTime]{Time: 5, Input: in, Event: 7})
	step := tl.appendNextStep(prevSnap)
	saturateStep(t, step, prevSnap)

	require.NoError(t, tl.rollbackInput(5, in))
	assert.Len(t, tl.steps, 1)
	_, ok := tl.inputBuffer.Min()
	assert.False(t, ok, "the excluded input's event must not be restored to the buffer")
}

// TestTimeline_PruneBefore_RespectsActiveInterpolations checks that a
// Saturated step pinned by a live interpolation survives pruning even
// though it is strictly before the prune cutoff.
func TestTimeline_PruneBefore_RespectsActiveInterpolations(t *testing.T) {
	tl, _ := newTestTimeline(t, 0)
	tl.steps[0].addInterpolation()

	tl.pruneBefore(100)
	assert.Len(t, tl.steps, 1, "pinned step must not be pruned")

	tl.steps[0].releaseInterpolation()
	tl.pruneBefore(100)
	assert.Len(t, tl.steps, 1, "the only remaining step is never pruned, even once unpinned")
}

// TestTimeline_StepFor checks §4.3's interpolation vending: the greatest
// saturated step at or before t, falling back to the earliest retained
// saturated step when everything saturated is after t.
func TestTimeline_StepFor(t *testing.T) {
	tl, _ := newTestTimeline(t, 0)
	prevSnap, _ := tl.steps[0].Snapshot()
	tl.bufferInputEvent(erasedInputEvent[intTime]{Time: 5, Input: InputID{sort: 1}, Event: 1})
	step := tl.appendNextStep(prevSnap)
	saturateStep(t, step, step.prevClone)
	step.prevClone = nil

	got, ok := tl.stepFor(7)
	require.True(t, ok)
	assert.Equal(t, intTime(5), got.Time())

	got, ok = tl.stepFor(5)
	require.True(t, ok)
	assert.Equal(t, intTime(5), got.Time())

	got, ok = tl.stepFor(3)
	require.True(t, ok)
	assert.Equal(t, intTime(0), got.Time(), "a target below the second step must anchor to the first")
}

// TestTimeline_StepAt_SparseIndexSurvivesPruning checks absolute-position
// addressing across a prune: positions below the deleted count report
// false, retained steps stay reachable at their original positions.
func TestTimeline_StepAt_SparseIndexSurvivesPruning(t *testing.T) {
	tl, _ := newTestTimeline(t, 0)
	for i := 1; i <= 3; i++ {
		prevSnap, _ := tl.steps[len(tl.steps)-1].Snapshot()
		tl.bufferInputEvent(erasedInputEvent[intTime]{Time: intTime(i), Input: InputID{sort: 1}, Event: i})
		step := tl.appendNextStep(prevSnap)
		saturateStep(t, step, step.prevClone)
		step.prevClone = nil
	}

	tl.pruneBefore(2)
	require.Equal(t, 2, tl.numDeleted)

	_, ok := tl.stepAt(1)
	assert.False(t, ok, "a pruned position must report false")

	got, ok := tl.stepAt(2)
	require.True(t, ok)
	assert.Equal(t, intTime(2), got.Time())

	_, ok = tl.stepAt(99)
	assert.False(t, ok)
}

// TestTimeline_AssertInvariants_PanicsOnOverlapBuffer checks the
// WithDebugAssertions machinery actually fires on a broken chain state.
func TestTimeline_AssertInvariants_PanicsOnOverlapBuffer(t *testing.T) {
	tl, _ := newTestTimeline(t, 0)
	assert.NotPanics(t, tl.assertInvariants)

	tl.inputBuffer.Insert(erasedInputEvent[intTime]{Time: 0, Input: InputID{sort: 1}, Event: 1})
	assert.Panics(t, tl.assertInvariants, "a buffered event at or before the last step's time must trip the assertion")
}

// TestTimeline_LastSaturated_StopsAtFirstGap checks that lastSaturated
// only counts the contiguous Saturated prefix.
func TestTimeline_LastSaturated_StopsAtFirstGap(t *testing.T) {
	tl, _ := newTestTimeline(t, 0)
	assert.Equal(t, 0, tl.lastSaturated())

	prevSnap, _ := tl.steps[0].Snapshot()
	prevSnap.sched.insert(1, struct{}{})
	step := tl.appendNextStep(prevSnap)
	require.NoError(t, step.StartSaturateTake(prevSnap))
	// leave it Saturating, not driven to completion.
	assert.Equal(t, 0, tl.lastSaturated())
	idx, ok := tl.saturatingIndex()
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}
