// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package transpose

import "math/rand"

// Transposer is the user-supplied state machine the engine drives.
// T is the transposer's time type, OE its output event type, OS its output
// state type. Implementations should embed UnimplementedTransposer to get a
// permissive CanHandle for free, the same embed-a-default-struct idiom
// logiface's Event interface uses for its optional Add* methods
// (logiface.UnimplementedEvent).
type Transposer[T Ordered[T], OE any, OS any] interface {
	// PrepareToInit is called once after input registration, before Init.
	// Returning false aborts construction.
	PrepareToInit() bool

	// Init populates the initial scheduled events.
	Init(ctx *InitContext[T, OE]) error

	// HandleScheduledEvent handles one drained scheduled event.
	HandleScheduledEvent(ctx *UpdateContext[T, OE], payload any) error

	// HandleInputEvent handles one input event. input identifies which
	// registered Input produced event; event is that Input's InputEvent
	// type. Transposers that never register inputs with events may leave
	// this unreachable.
	HandleInputEvent(ctx *UpdateContext[T, OE], input InputID, event any) error

	// Interpolate computes OutputState read-only at the context's time; it
	// may request input state but must never schedule, expire, or emit.
	Interpolate(ctx *InterpolateContext[T]) (OS, error)

	// CanHandle pre-filters input events before they reach
	// HandleInputEvent. Default true.
	CanHandle(input InputID, t T, event any) bool

	// Clone returns a deep, independent copy of the transposer's own
	// mutable state. The engine calls this whenever a snapshot must be
	// forked rather than consumed in place -- start-saturate-clone, and any
	// branch created by folding a retroactive interrupt into an
	// already-saturated prefix. The schedule, expire handles, and RNG are
	// cloned by the engine itself (schedule.go, rng.go); Clone need only
	// copy whatever additional fields the transposer declares.
	Clone() Transposer[T, OE, OS]
}

// UnimplementedTransposer embeds into a Transposer implementation to
// provide the default (permissive) CanHandle. It is generic over the same
// time type as the embedding Transposer, the same embed-a-default-struct
// idiom logiface's Event interface uses for its optional Add* methods
// (logiface.UnimplementedEvent), adapted here for a method-parameterized
// interface.
type UnimplementedTransposer[T Ordered[T]] struct{}

// CanHandle always returns true.
func (UnimplementedTransposer[T]) CanHandle(InputID, T, any) bool { return true }

// baseContext carries the fields common to Init/Update/Interpolate
// contexts: the step's current time and the channel used to suspend on a
// GetInputState call.
type baseContext[T Ordered[T]] struct {
	currentTime T
	stateReq    chan InputID
	stateResp   chan any
	done        <-chan struct{} // closed if the step is cancelled/desaturated mid-flight
}

// CurrentTime returns the step's time.
func (c *baseContext[T]) CurrentTime() T { return c.currentTime }

// GetInputState suspends the calling goroutine until the engine provides
// the requested input's state, or the step is cancelled.
func (c *baseContext[T]) GetInputState(input InputID) (any, bool) {
	select {
	case c.stateReq <- input:
	case <-c.done:
		return nil, false
	}
	select {
	case state := <-c.stateResp:
		return state, true
	case <-c.done:
		return nil, false
	}
}

// InitContext is passed to Transposer.Init.
type InitContext[T Ordered[T], OE any] struct {
	baseContext[T]
	sched *schedule[T]
	emit  chan OE
	ack   chan struct{}
}

// ScheduleEvent schedules payload at t. Returns ErrNewEventBeforeCurrent if
// t is before the context's current time.
func (c *InitContext[T, OE]) ScheduleEvent(t T, payload any) error {
	if t.Compare(c.currentTime) < 0 {
		return ErrNewEventBeforeCurrent
	}
	c.sched.insert(t, payload)
	return nil
}

// ScheduleEventExpireable is as ScheduleEvent, additionally returning a
// handle usable to cancel the scheduled event via ExpireEvent.
func (c *InitContext[T, OE]) ScheduleEventExpireable(t T, payload any) (ExpireHandle, error) {
	if t.Compare(c.currentTime) < 0 {
		return 0, ErrNewEventBeforeCurrent
	}
	_, h := c.sched.insertExpireable(t, payload)
	return h, nil
}

// ExpireEvent cancels a previously scheduled expireable event.
func (c *InitContext[T, OE]) ExpireEvent(h ExpireHandle) error { return c.sched.expire(h) }

// Rand returns the snapshot's deterministic RNG.
func (c *InitContext[T, OE]) Rand() *rand.Rand { return c.sched.rng.Rand() }

// EmitEvent emits payload, suspending until the downstream consumer has
// observed it.
func (c *InitContext[T, OE]) EmitEvent(payload OE) bool {
	select {
	case c.emit <- payload:
	case <-c.done:
		return false
	}
	select {
	case <-c.ack:
		return true
	case <-c.done:
		return false
	}
}

// UpdateContext is passed to HandleScheduledEvent and HandleInputEvent; it
// has the same surface as InitContext.
type UpdateContext[T Ordered[T], OE any] struct {
	InitContext[T, OE]
}

// InterpolateContext is passed to Transposer.Interpolate: read-only, no
// scheduling or emission surface.
type InterpolateContext[T Ordered[T]] struct {
	baseContext[T]
}
