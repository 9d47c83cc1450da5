// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package transpose

// Waker is signaled when a suspended poll may be able to make progress.
// Implementations must be safe to call from any goroutine; Wake may be
// called more than once and must not block.
type Waker interface {
	Wake()
}

// WakerFunc adapts a plain func() to a Waker.
type WakerFunc func()

// Wake implements Waker.
func (f WakerFunc) Wake() {
	if f != nil {
		f()
	}
}

// SourceContext is passed to Source.Poll / Source.PollForget.
// channel identifies an independent, concurrent poll conversation with the
// source; channelWaker is signaled when poll on that channel may progress;
// interruptWaker is signaled when a new interrupt may be available.
type SourceContext struct {
	Channel        int
	ChannelWaker   Waker
	InterruptWaker Waker
}

// WithInterruptOnly returns a SourceContext suitable for interrupt-only
// polls (PollEvents): channel 0, with both wakers set to the interrupt
// waker.
func (c SourceContext) WithInterruptOnly() SourceContext {
	return SourceContext{Channel: 0, ChannelWaker: c.InterruptWaker, InterruptWaker: c.InterruptWaker}
}

// InterruptKind distinguishes the two flavors of Interrupt.
type InterruptKind uint8

const (
	// InterruptEvent carries a new upstream event.
	InterruptEvent InterruptKind = iota
	// InterruptRollback instructs the consumer to discard everything at or
	// after the interrupt's time.
	InterruptRollback
)

// Interrupt is either a new event at a time, or an instruction to discard
// everything at or after that time.
type Interrupt[E any] struct {
	Kind  InterruptKind
	Event E // valid only when Kind == InterruptEvent
}

// SourcePollKind tags the three-variant SourcePoll sum.
type SourcePollKind uint8

const (
	// PollStateProgress reports state (or nothing further than progress
	// toward it) plus the finalize watermark and next known event time.
	PollStateProgress SourcePollKind = iota
	// PollInterrupt carries a new Interrupt.
	PollInterrupt
	// PollInterruptPending reports no information is yet available; the
	// interrupt waker supplied to Poll/Advance will fire on progress.
	PollInterruptPending
)

// SourcePoll is the uniform return value of Source.Poll, Source.PollForget,
// and Source.PollEvents.
type SourcePoll[T Ordered[T], E any, S any] struct {
	Kind SourcePollKind

	// Valid when Kind == PollStateProgress.
	State               S
	NextEventAt         Option[T]
	InterruptLowerBound LowerBound[T]

	// Valid when Kind == PollInterrupt.
	Time      T
	Interrupt Interrupt[E]
}

// StateProgress constructs a PollStateProgress SourcePoll.
func StateProgress[T Ordered[T], E any, S any](state S, nextEventAt Option[T], interruptLowerBound LowerBound[T]) SourcePoll[T, E, S] {
	return SourcePoll[T, E, S]{
		Kind:                PollStateProgress,
		State:               state,
		NextEventAt:         nextEventAt,
		InterruptLowerBound: interruptLowerBound,
	}
}

// NewEvent constructs a PollInterrupt SourcePoll carrying a new event.
func NewEvent[T Ordered[T], E any, S any](time T, event E, interruptLowerBound LowerBound[T]) SourcePoll[T, E, S] {
	return SourcePoll[T, E, S]{
		Kind:                PollInterrupt,
		Time:                time,
		Interrupt:           Interrupt[E]{Kind: InterruptEvent, Event: event},
		InterruptLowerBound: interruptLowerBound,
	}
}

// NewRollback constructs a PollInterrupt SourcePoll carrying a rollback.
func NewRollback[T Ordered[T], E any, S any](time T, interruptLowerBound LowerBound[T]) SourcePoll[T, E, S] {
	return SourcePoll[T, E, S]{
		Kind:                PollInterrupt,
		Time:                time,
		Interrupt:           Interrupt[E]{Kind: InterruptRollback},
		InterruptLowerBound: interruptLowerBound,
	}
}

// InterruptPending constructs a PollInterruptPending SourcePoll.
func InterruptPending[T Ordered[T], E any, S any]() SourcePoll[T, E, S] {
	return SourcePoll[T, E, S]{Kind: PollInterruptPending}
}

// Option is a minimal Option type for values that are sometimes absent,
// used in place of a pointer or a second bool return to keep SourcePoll's
// fields self-describing.
type Option[T any] struct {
	Value T
	Valid bool
}

// Some returns a present Option.
func Some[T any](v T) Option[T] { return Option[T]{Value: v, Valid: true} }

// None returns an absent Option.
func None[T any]() Option[T] { return Option[T]{} }

// Get returns the value and whether it is present.
func (o Option[T]) Get() (T, bool) { return o.Value, o.Valid }

// Source is the poll-driven contract every leaf and composite stream in the
// engine implements.
type Source[T Ordered[T], E any, S any] interface {
	// Poll requests the state at time, possibly suspending. All state
	// returned must be covered by future rollback interrupts.
	Poll(time T, cx SourceContext) (SourcePoll[T, E, Option[S]], error)

	// PollForget is as Poll, but the result need not be covered by future
	// rollback interrupts; the source may discard bookkeeping for this
	// call.
	PollForget(time T, cx SourceContext) (SourcePoll[T, E, Option[S]], error)

	// PollEvents requests only that pending interrupts be drained up to
	// time.
	PollEvents(time T, interruptWaker Waker) (SourcePoll[T, E, struct{}], error)

	// Advance narrows the window: the caller will never poll below lower,
	// and wants interrupts only up to upper. Both bounds are monotonic
	// non-decreasing over the source's lifetime. upper == Max signals
	// finality.
	Advance(lower LowerBound[T], upper UpperBound[T], interruptWaker Waker)

	// ReleaseChannel informs the source the caller has abandoned work on
	// channel; the source may free associated resources.
	ReleaseChannel(channel int)

	// MaxChannel is the number of concurrent poll conversations this source
	// supports; valid channel ids are [0, MaxChannel()).
	MaxChannel() int
}
