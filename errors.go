// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package transpose

import (
	"errors"
	"fmt"
)

// Protocol errors: fatal to the Source that returns them. A Source may
// not be polled again after returning one of these from poll/poll_forget or
// poll_events.
var (
	// ErrOutOfBoundsChannel is returned when a channel id exceeds the
	// source's declared max_channel().
	ErrOutOfBoundsChannel = errors.New("transpose: channel out of bounds")

	// ErrPollAfterAdvance is returned when a poll time falls below the
	// source's most recently advanced lower bound.
	ErrPollAfterAdvance = errors.New("transpose: poll time before advanced lower bound")

	// ErrPollBeforeDefault is returned when there is no default state to
	// answer a poll from. Transpose returns it when its step chain holds no
	// saturated step (its Init step never saturated); a poll time before
	// the init time is answered from the Init step instead.
	ErrPollBeforeDefault = errors.New("transpose: poll time before default time")
)

// SpecificError wraps an opaque error surfaced verbatim by a sub-source. A
// SpecificError poisons the Transpose that observed it: every subsequent
// poll on that Transpose returns the same SpecificError.
type SpecificError struct {
	Err error
}

func (e *SpecificError) Error() string {
	return fmt.Sprintf("transpose: source error: %v", e.Err)
}

func (e *SpecificError) Unwrap() error { return e.Err }

// SaturationError reports a violation of the step saturation state
// machine's invariants. These are programmer errors: the step chain is
// structurally guaranteed never to trigger them, so callers of Step
// directly should treat them as bugs.
type SaturationError struct {
	// Reason is one of the taxonomy strings documented on the Err*
	// SaturationError sentinels below.
	Reason string
}

func (e *SaturationError) Error() string { return "transpose: saturation: " + e.Reason }

func (e *SaturationError) Is(target error) bool {
	var other *SaturationError
	if errors.As(target, &other) {
		return other.Reason == e.Reason || other.Reason == ""
	}
	return false
}

var (
	// ErrPreviousNotSaturated names saturating from a previous step that
	// has not reached the Saturated state. Start-saturate takes the previous
	// snapshot rather than the previous step, so no function in this
	// package returns it.
	ErrPreviousNotSaturated = &SaturationError{Reason: "previous step not saturated"}

	// ErrSelfNotUnsaturated is returned by start-saturate when the step
	// invoked is not itself Unsaturated.
	ErrSelfNotUnsaturated = &SaturationError{Reason: "step not unsaturated"}

	// ErrIncorrectPrevious is returned by start-saturate when the previous
	// snapshot passed to it is later than this step's time. Whether that
	// snapshot is the one this step was derived from is not checked.
	ErrIncorrectPrevious = &SaturationError{Reason: "incorrect previous step"}

	// ErrPreviousHasActiveInterpolations is returned by Desaturate when
	// live Interpolations are still anchored to the step's snapshot.
	ErrPreviousHasActiveInterpolations = &SaturationError{Reason: "previous step has active interpolations"}
)

// ContextError reports a misuse of the Transposer's Context,
// surfaced to user code rather than treated as an engine bug.
type ContextError struct {
	Reason string
}

func (e *ContextError) Error() string { return "transpose: context: " + e.Reason }

func (e *ContextError) Is(target error) bool {
	var other *ContextError
	if errors.As(target, &other) {
		return other.Reason == e.Reason || other.Reason == ""
	}
	return false
}

var (
	// ErrNewEventBeforeCurrent is returned by Context.ScheduleEvent when
	// asked to schedule at a time before the step's current time.
	ErrNewEventBeforeCurrent = &ContextError{Reason: "new event before current time"}

	// ErrInvalidOrUsedHandle is returned by Context.ExpireEvent for a
	// handle that is unknown or was already expired.
	ErrInvalidOrUsedHandle = &ContextError{Reason: "invalid or used expire handle"}
)

// ErrMismatchedInputState is returned by a Step's ProvideInputState when the
// provided state does not match the input the step is currently awaiting.
var ErrMismatchedInputState = errors.New("transpose: provided state does not match requested input")

// ErrInitRejected is returned by New when the transposer's PrepareToInit
// returns false, aborting construction.
var ErrInitRejected = errors.New("transpose: transposer rejected initialization")

// ErrLoopTerminated is returned by Transpose.PollEvents once the engine has
// observed Complete, announced it, and may no longer make progress.
var ErrLoopTerminated = errors.New("transpose: engine has completed")
