// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package transpose

import "fmt"

// intTime is the Ordered[T] time type used throughout this package's own
// tests: a plain integer tick count, compared the obvious way.
type intTime int

func (t intTime) Compare(o intTime) int {
	switch {
	case t < o:
		return -1
	case t > o:
		return 1
	default:
		return 0
	}
}

func (t intTime) String() string { return fmt.Sprintf("%d", int(t)) }

func addTime(t intTime, n int) intTime { return t + intTime(n) }

// counterTransposer schedules `()` one tick after its predecessor,
// incrementing a counter each time, and emits the counter's value as an
// output event; it never registers or handles any input. Grounded on §8
// scenario S1. limit caps how many times it will re-schedule itself (0
// means unbounded); current is the output value interpolate reports.
type counterTransposer struct {
	UnimplementedTransposer[intTime]
	limit   int
	current int
}

func (c *counterTransposer) PrepareToInit() bool { return true }

func (c *counterTransposer) Init(ctx *InitContext[intTime, string]) error {
	return ctx.ScheduleEvent(addTime(ctx.CurrentTime(), 1), struct{}{})
}

func (c *counterTransposer) HandleScheduledEvent(ctx *UpdateContext[intTime, string], _ any) error {
	c.current++
	ctx.EmitEvent(fmt.Sprint(c.current))
	if c.limit == 0 || c.current < c.limit {
		if err := ctx.ScheduleEvent(addTime(ctx.CurrentTime(), 1), struct{}{}); err != nil {
			return err
		}
	}
	return nil
}

func (c *counterTransposer) HandleInputEvent(*UpdateContext[intTime, string], InputID, any) error {
	return nil
}

func (c *counterTransposer) Interpolate(*InterpolateContext[intTime]) (int, error) {
	return c.current, nil
}

func (c *counterTransposer) Clone() Transposer[intTime, string, int] {
	cp := *c
	return &cp
}

// collatzTransposer emits its current value at each scheduled step, then
// recurses by the Collatz rule, stopping once it reaches 1. Grounded on §8
// scenario S2.
type collatzTransposer struct {
	UnimplementedTransposer[intTime]
	current int
}

func (c *collatzTransposer) PrepareToInit() bool { return true }

func (c *collatzTransposer) Init(ctx *InitContext[intTime, int]) error {
	return ctx.ScheduleEvent(addTime(ctx.CurrentTime(), 1), struct{}{})
}

func (c *collatzTransposer) HandleScheduledEvent(ctx *UpdateContext[intTime, int], _ any) error {
	ctx.EmitEvent(c.current)
	if c.current == 1 {
		return nil
	}
	if c.current%2 == 0 {
		c.current /= 2
	} else {
		c.current = 3*c.current + 1
	}
	return ctx.ScheduleEvent(addTime(ctx.CurrentTime(), 1), struct{}{})
}

func (c *collatzTransposer) HandleInputEvent(*UpdateContext[intTime, int], InputID, any) error {
	return nil
}

func (c *collatzTransposer) Interpolate(*InterpolateContext[intTime]) (int, error) {
	return c.current, nil
}

func (c *collatzTransposer) Clone() Transposer[intTime, int, int] {
	cp := *c
	return &cp
}

// stateQueryTransposer requests a single input's state during Interpolate
// and formats it alongside current, never suspending more than once.
// Grounded on §8 scenario S3.
type stateQueryTransposer struct {
	UnimplementedTransposer[intTime]
	input   InputID
	current int
}

func (s *stateQueryTransposer) PrepareToInit() bool { return true }

func (s *stateQueryTransposer) Init(*InitContext[intTime, string]) error { return nil }

func (s *stateQueryTransposer) HandleScheduledEvent(*UpdateContext[intTime, string], any) error {
	return nil
}

func (s *stateQueryTransposer) HandleInputEvent(ctx *UpdateContext[intTime, string], input InputID, event any) error {
	if input == s.input {
		s.current = event.(int)
	}
	return nil
}

func (s *stateQueryTransposer) Interpolate(ctx *InterpolateContext[intTime]) (string, error) {
	v, _ := ctx.GetInputState(s.input)
	return fmt.Sprintf("Collatz(%s): %v, %d", ctx.CurrentTime(), v, s.current), nil
}

func (s *stateQueryTransposer) Clone() Transposer[intTime, string, string] {
	cp := *s
	return &cp
}

// accumulatorTransposer handles input events from one or more registered
// inputs by appending their (time, value) to a log and emitting an output
// event per input event; used by the retroactive-event and rollback-filter
// scenarios (S4, S5) where what matters is which inputs a step touched.
type accumulatorTransposer struct {
	UnimplementedTransposer[intTime]
	log []accumulated
}

type accumulated struct {
	Time  intTime
	Input InputID
	Value int
}

func (a *accumulatorTransposer) PrepareToInit() bool { return true }

func (a *accumulatorTransposer) Init(*InitContext[intTime, accumulated]) error { return nil }

func (a *accumulatorTransposer) HandleScheduledEvent(*UpdateContext[intTime, accumulated], any) error {
	return nil
}

func (a *accumulatorTransposer) HandleInputEvent(ctx *UpdateContext[intTime, accumulated], input InputID, event any) error {
	entry := accumulated{Time: ctx.CurrentTime(), Input: input, Value: event.(int)}
	a.log = append(a.log, entry)
	ctx.EmitEvent(entry)
	return nil
}

func (a *accumulatorTransposer) Interpolate(*InterpolateContext[intTime]) (int, error) {
	return len(a.log), nil
}

func (a *accumulatorTransposer) Clone() Transposer[intTime, accumulated, int] {
	cp := &accumulatorTransposer{log: append([]accumulated(nil), a.log...)}
	return cp
}

// constantSource is a leaf Source whose state at any time is a pure
// function of that time, never emits interrupts, and is immediately
// finalized up to Max: the simplest possible leaf, used to exercise a
// transposer's GetInputState path without any retroactive behavior.
type constantSource[T Ordered[T], S any] struct {
	f func(T) S
}

func newConstantSource[T Ordered[T], S any](f func(T) S) *constantSource[T, S] { return &constantSource[T, S]{f: f} }

func (c *constantSource[T, S]) Poll(t T, _ SourceContext) (SourcePoll[T, struct{}, Option[S]], error) {
	return StateProgress[T, struct{}, Option[S]](Some(c.f(t)), None[T](), MaxLowerBound[T]()), nil
}

func (c *constantSource[T, S]) PollForget(t T, cx SourceContext) (SourcePoll[T, struct{}, Option[S]], error) {
	return c.Poll(t, cx)
}

func (c *constantSource[T, S]) PollEvents(T, Waker) (SourcePoll[T, struct{}, struct{}], error) {
	return StateProgress[T, struct{}, struct{}](struct{}{}, None[T](), MaxLowerBound[T]()), nil
}

func (c *constantSource[T, S]) Advance(LowerBound[T], UpperBound[T], Waker) {}

func (c *constantSource[T, S]) ReleaseChannel(int) {}

func (c *constantSource[T, S]) MaxChannel() int { return 1 }

// memorySource is a leaf input Source backed by an in-memory, caller-driven
// sequence of events: Feed enqueues a (possibly retroactive) event as a
// pending interrupt; Rollback enqueues a pending Rollback interrupt. Each
// Poll/PollEvents call drains at most one pending interrupt per call,
// matching the Source protocol's "poll again after an interrupt" rule.
// Grounded on §8 scenarios S4-S6 needing a source an engine-level test can
// retroactively drive.
type memorySource[T Ordered[T]] struct {
	pending []pendingInterrupt[T]
	lower   LowerBound[T]
	upper   UpperBound[T]
	final   LowerBound[T]
}

type pendingInterrupt[T Ordered[T]] struct {
	time     T
	rollback bool
	value    int
}

func newMemorySource[T Ordered[T]]() *memorySource[T] {
	return &memorySource[T]{lower: MinLowerBound[T](), upper: MaxUpperBound[T](), final: MinLowerBound[T]()}
}

// Feed enqueues a new event of value at t as a pending interrupt.
func (m *memorySource[T]) Feed(t T, value int) {
	m.pending = append(m.pending, pendingInterrupt[T]{time: t, value: value})
}

// Rollback enqueues a pending Rollback at t.
func (m *memorySource[T]) Rollback(t T) {
	m.pending = append(m.pending, pendingInterrupt[T]{time: t, rollback: true})
}

func (m *memorySource[T]) drainOne() (pendingInterrupt[T], bool) {
	if len(m.pending) == 0 {
		return pendingInterrupt[T]{}, false
	}
	p := m.pending[0]
	m.pending = m.pending[1:]
	return p, true
}

func (m *memorySource[T]) Poll(t T, _ SourceContext) (SourcePoll[T, int, Option[int]], error) {
	if !m.lower.Test(t) {
		return SourcePoll[T, int, Option[int]]{}, ErrPollAfterAdvance
	}
	if p, ok := m.drainOne(); ok {
		if p.rollback {
			return NewRollback[T, int, Option[int]](p.time, m.final), nil
		}
		return NewEvent[T, int, Option[int]](p.time, p.value, m.final), nil
	}
	return StateProgress[T, int, Option[int]](None[int](), None[T](), m.final), nil
}

func (m *memorySource[T]) PollForget(t T, cx SourceContext) (SourcePoll[T, int, Option[int]], error) {
	return m.Poll(t, cx)
}

func (m *memorySource[T]) PollEvents(t T, _ Waker) (SourcePoll[T, int, struct{}], error) {
	if p, ok := m.drainOne(); ok {
		if p.rollback {
			return NewRollback[T, int, struct{}](p.time, m.final), nil
		}
		return NewEvent[T, int, struct{}](p.time, p.value, m.final), nil
	}
	return StateProgress[T, int, struct{}](struct{}{}, None[T](), m.final), nil
}

func (m *memorySource[T]) Advance(lower LowerBound[T], upper UpperBound[T], _ Waker) {
	m.lower = MaxLower(m.lower, lower)
	m.upper = MinUpper(m.upper, upper)
}

func (m *memorySource[T]) ReleaseChannel(int) {}

func (m *memorySource[T]) MaxChannel() int { return 4 }

// drivePollEvents calls Transpose.PollEvents once at t with a no-op waker
// and returns its result, pending or not.
func drivePollEvents[T Ordered[T], OE any, OS any](tp *Transpose[T, OE, OS], t T) (SourcePoll[T, OE, struct{}], error) {
	return tp.PollEvents(t, WakerFunc(func() {}))
}

// failingSource errors on every state poll, for exercising the engine's
// poisoning behavior.
type failingSource[T Ordered[T]] struct {
	err error
}

func (f *failingSource[T]) Poll(T, SourceContext) (SourcePoll[T, int, Option[int]], error) {
	return SourcePoll[T, int, Option[int]]{}, f.err
}

func (f *failingSource[T]) PollForget(t T, cx SourceContext) (SourcePoll[T, int, Option[int]], error) {
	return f.Poll(t, cx)
}

func (f *failingSource[T]) PollEvents(T, Waker) (SourcePoll[T, int, struct{}], error) {
	return StateProgress[T, int, struct{}](struct{}{}, None[T](), MinLowerBound[T]()), nil
}

func (f *failingSource[T]) Advance(LowerBound[T], UpperBound[T], Waker) {}

func (f *failingSource[T]) ReleaseChannel(int) {}

func (f *failingSource[T]) MaxChannel() int { return 1 }

// onceInterruptSource serves a pure time-to-state function, but smuggles a
// single retroactive event into the first state poll it receives, the one
// shape memorySource cannot produce (its interrupts always drain through
// PollEvents before any step runs). Used to exercise an interrupt landing
// mid-saturation.
type onceInterruptSource struct {
	eventTime intTime
	eventVal  int
	delivered bool
	forgets   int
}

func (o *onceInterruptSource) Poll(t intTime, _ SourceContext) (SourcePoll[intTime, int, Option[int]], error) {
	if !o.delivered {
		o.delivered = true
		return NewEvent[intTime, int, Option[int]](o.eventTime, o.eventVal, MinLowerBound[intTime]()), nil
	}
	return StateProgress[intTime, int, Option[int]](Some(int(t)), None[intTime](), MinLowerBound[intTime]()), nil
}

func (o *onceInterruptSource) PollForget(t intTime, cx SourceContext) (SourcePoll[intTime, int, Option[int]], error) {
	o.forgets++
	return o.Poll(t, cx)
}

func (o *onceInterruptSource) PollEvents(intTime, Waker) (SourcePoll[intTime, int, struct{}], error) {
	return StateProgress[intTime, int, struct{}](struct{}{}, None[intTime](), MinLowerBound[intTime]()), nil
}

func (o *onceInterruptSource) Advance(LowerBound[intTime], UpperBound[intTime], Waker) {}

func (o *onceInterruptSource) ReleaseChannel(int) {}

func (o *onceInterruptSource) MaxChannel() int { return 2 }

// pendingSource serves a pure time-to-state function, but reports
// InterruptPending from its first `remaining` state polls, the way a
// cooperative source that is itself waiting on something upstream would:
// it never spawns a goroutine, so any caller that blocks on it instead of
// propagating Pending deadlocks. Wakers are recorded so a test can assert
// they were registered for the eventual resumption.
type pendingSource struct {
	remaining int
	polls     int
	wakers    []Waker
}

func (p *pendingSource) Poll(t intTime, cx SourceContext) (SourcePoll[intTime, int, Option[int]], error) {
	p.polls++
	if p.remaining > 0 {
		p.remaining--
		p.wakers = append(p.wakers, cx.ChannelWaker)
		return InterruptPending[intTime, int, Option[int]](), nil
	}
	return StateProgress[intTime, int, Option[int]](Some(int(t)), None[intTime](), MinLowerBound[intTime]()), nil
}

func (p *pendingSource) PollForget(t intTime, cx SourceContext) (SourcePoll[intTime, int, Option[int]], error) {
	return p.Poll(t, cx)
}

func (p *pendingSource) PollEvents(intTime, Waker) (SourcePoll[intTime, int, struct{}], error) {
	return StateProgress[intTime, int, struct{}](struct{}{}, None[intTime](), MinLowerBound[intTime]()), nil
}

func (p *pendingSource) Advance(LowerBound[intTime], UpperBound[intTime], Waker) {}

func (p *pendingSource) ReleaseChannel(int) {}

func (p *pendingSource) MaxChannel() int { return 2 }

// stateAtStepTransposer requests its input's state inside every scheduled
// handler and emits what it saw; input events are echoed directly. Used by
// the mid-saturation interrupt scenario.
type stateAtStepTransposer struct {
	UnimplementedTransposer[intTime]
	input InputID
	at    intTime
}

func (s *stateAtStepTransposer) PrepareToInit() bool { return true }

func (s *stateAtStepTransposer) Init(ctx *InitContext[intTime, string]) error {
	return ctx.ScheduleEvent(s.at, struct{}{})
}

func (s *stateAtStepTransposer) HandleScheduledEvent(ctx *UpdateContext[intTime, string], _ any) error {
	v, _ := ctx.GetInputState(s.input)
	ctx.EmitEvent(fmt.Sprintf("sched@%s=%v", ctx.CurrentTime(), v))
	return nil
}

func (s *stateAtStepTransposer) HandleInputEvent(ctx *UpdateContext[intTime, string], _ InputID, event any) error {
	ctx.EmitEvent(fmt.Sprintf("input@%s=%v", ctx.CurrentTime(), event))
	return nil
}

func (s *stateAtStepTransposer) Interpolate(*InterpolateContext[intTime]) (int, error) {
	return 0, nil
}

func (s *stateAtStepTransposer) Clone() Transposer[intTime, string, int] {
	cp := *s
	return &cp
}
