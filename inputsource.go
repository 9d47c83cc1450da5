// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package transpose

// erasedSource is the type-erased view of a registered Source[T,E,S]: E and
// S are boxed into `any` so a single collection can hold inputs of
// different concrete event/state types, the same dynamic-typing idiom
// input.go uses for InputID-tagged events.
type erasedSource[T Ordered[T]] interface {
	Poll(t T, cx SourceContext) (SourcePoll[T, any, Option[any]], error)
	PollForget(t T, cx SourceContext) (SourcePoll[T, any, Option[any]], error)
	PollEvents(t T, w Waker) (SourcePoll[T, any, struct{}], error)
	Advance(lower LowerBound[T], upper UpperBound[T], w Waker)
	ReleaseChannel(channel int)
	MaxChannel() int
}

// sourceAdapter boxes a concrete Source[T,E,S] into erasedSource[T].
type sourceAdapter[T Ordered[T], E any, S any] struct{ src Source[T, E, S] }

func (a sourceAdapter[T, E, S]) Poll(t T, cx SourceContext) (SourcePoll[T, any, Option[any]], error) {
	p, err := a.src.Poll(t, cx)
	return eraseStatePoll[T, E, S](p), err
}

func (a sourceAdapter[T, E, S]) PollForget(t T, cx SourceContext) (SourcePoll[T, any, Option[any]], error) {
	p, err := a.src.PollForget(t, cx)
	return eraseStatePoll[T, E, S](p), err
}

func (a sourceAdapter[T, E, S]) PollEvents(t T, w Waker) (SourcePoll[T, any, struct{}], error) {
	p, err := a.src.PollEvents(t, w)
	return eraseEventsPoll[T, E](p), err
}

func (a sourceAdapter[T, E, S]) Advance(lower LowerBound[T], upper UpperBound[T], w Waker) {
	a.src.Advance(lower, upper, w)
}

func (a sourceAdapter[T, E, S]) ReleaseChannel(channel int) { a.src.ReleaseChannel(channel) }

func (a sourceAdapter[T, E, S]) MaxChannel() int { return a.src.MaxChannel() }

func eraseStatePoll[T Ordered[T], E any, S any](p SourcePoll[T, E, Option[S]]) SourcePoll[T, any, Option[any]] {
	out := SourcePoll[T, any, Option[any]]{
		Kind:                p.Kind,
		NextEventAt:         p.NextEventAt,
		InterruptLowerBound: p.InterruptLowerBound,
		Time:                p.Time,
	}
	switch p.Kind {
	case PollStateProgress:
		if v, ok := p.State.Get(); ok {
			out.State = Some[any](v)
		} else {
			out.State = None[any]()
		}
	case PollInterrupt:
		out.Interrupt = Interrupt[any]{Kind: p.Interrupt.Kind, Event: p.Interrupt.Event}
	}
	return out
}

func eraseEventsPoll[T Ordered[T], E any](p SourcePoll[T, E, struct{}]) SourcePoll[T, any, struct{}] {
	out := SourcePoll[T, any, struct{}]{
		Kind:                p.Kind,
		NextEventAt:         p.NextEventAt,
		InterruptLowerBound: p.InterruptLowerBound,
		Time:                p.Time,
	}
	if p.Kind == PollInterrupt {
		out.Interrupt = Interrupt[any]{Kind: p.Interrupt.Kind, Event: p.Interrupt.Event}
	}
	return out
}

// registeredInput is one entry of an InputSourceCollection.
type registeredInput[T Ordered[T]] struct {
	id                  InputID
	source              erasedSource[T]
	interruptLowerBound LowerBound[T]
	nextEventAt         Option[T]

	// observed holds every time this input has been interrogated for state
	// or has produced an event since its last finalization. An upstream
	// Rollback is translated against it: nothing downstream can depend on a
	// time this input was never consulted about, so the rollback's effective
	// time is the earliest observation at or after it, and a rollback
	// touching no observation at all is dropped outright.
	observed *orderedSet[T]
}

// observe records t, once.
func (e *registeredInput[T]) observe(t T) {
	if !e.observed.Contains(t) {
		e.observed.Insert(t)
	}
}

// noteBounds tracks the most recently reported finalize watermark and next
// event time, clearing observations the watermark has made irrevocable.
func (e *registeredInput[T]) noteBounds(interruptLowerBound LowerBound[T], nextEventAt Option[T]) {
	e.interruptLowerBound = interruptLowerBound
	e.nextEventAt = nextEventAt
	if t, ok := interruptLowerBound.Time(); ok {
		e.observed.RemoveBefore(t)
	}
}

// translateRollback maps an upstream rollback at t onto the earliest
// observation at or after t, dropping those observations. Reports false if
// no observation is at or after t, in which case the rollback carries no
// information this input's consumer ever depended on.
func (e *registeredInput[T]) translateRollback(t T) (T, bool) {
	dropped := e.observed.RemoveAtOrAfter(t)
	if len(dropped) == 0 {
		return t, false
	}
	return dropped[0], true
}

// InputSourceCollection owns every registered input's Source, assigning
// each a stable InputID and translating polls against the erased view. It
// is the engine-side counterpart of the original's erased input source
// collection, simplified from a hashed-type-identity keyspace down to a
// monotonic handle per the rationale in input.go.
type InputSourceCollection[T Ordered[T]] struct {
	entries map[InputID]*registeredInput[T]
	order   []InputID
	nextSeq uint64
}

// NewInputSourceCollection returns an empty collection.
func NewInputSourceCollection[T Ordered[T]]() *InputSourceCollection[T] {
	return &InputSourceCollection[T]{entries: make(map[InputID]*registeredInput[T])}
}

// RegisterInput adds src under sortKey, returning its fresh InputID.
// sortKey stands in for the original's static-type-identity component of
// the input sort key: callers should use a stable value per logical input
// kind (e.g. a small per-kind constant) so the ordering of same-time input
// events, which compares sort keys first, holds across runs.
func RegisterInput[T Ordered[T], E any, S any](c *InputSourceCollection[T], sortKey uint64, src Source[T, E, S]) InputID {
	id := InputID{sort: sortKey, seq: c.nextSeq}
	c.nextSeq++
	c.entries[id] = &registeredInput[T]{
		id:                  id,
		source:              sourceAdapter[T, E, S]{src: src},
		interruptLowerBound: MinLowerBound[T](),
		observed:            newOrderedSet(func(a, b T) bool { return a.Compare(b) < 0 }),
	}
	c.order = append(c.order, id)
	return id
}

// Inputs returns every registered InputID in registration order.
func (c *InputSourceCollection[T]) Inputs() []InputID {
	out := make([]InputID, len(c.order))
	copy(out, c.order)
	return out
}

func (c *InputSourceCollection[T]) get(id InputID) (*registeredInput[T], bool) {
	e, ok := c.entries[id]
	return e, ok
}

// Poll polls one input's source on channel, returning the erased state. The
// poll time is recorded as an observation, so a later upstream rollback
// crossing it folds the engine's derived work back to it; an upstream
// rollback crossing no observation at all is dropped here (the source is
// re-polled) rather than surfaced.
func (c *InputSourceCollection[T]) Poll(id InputID, t T, cx SourceContext) (SourcePoll[T, any, Option[any]], error) {
	e, ok := c.get(id)
	if !ok {
		return SourcePoll[T, any, Option[any]]{}, ErrOutOfBoundsChannel
	}
	e.observe(t)
	for {
		p, err := e.source.Poll(t, cx)
		if err != nil {
			return p, err
		}
		if p, ok := c.noteResult(e, p); ok {
			return p, nil
		}
	}
}

// PollForget is as Poll, for a result the caller does not need covered by
// future rollbacks: the poll time is not recorded as an observation.
func (c *InputSourceCollection[T]) PollForget(id InputID, t T, cx SourceContext) (SourcePoll[T, any, Option[any]], error) {
	e, ok := c.get(id)
	if !ok {
		return SourcePoll[T, any, Option[any]]{}, ErrOutOfBoundsChannel
	}
	for {
		p, err := e.source.PollForget(t, cx)
		if err != nil {
			return p, err
		}
		if p, ok := c.noteResult(e, p); ok {
			return p, nil
		}
	}
}

// PollEvents drains pending interrupts for one input without requesting
// state.
func (c *InputSourceCollection[T]) PollEvents(id InputID, t T, w Waker) (SourcePoll[T, any, struct{}], error) {
	e, ok := c.get(id)
	if !ok {
		return SourcePoll[T, any, struct{}]{}, ErrOutOfBoundsChannel
	}
	for {
		p, err := e.source.PollEvents(t, w)
		if err != nil {
			return p, err
		}
		switch p.Kind {
		case PollStateProgress:
			e.noteBounds(p.InterruptLowerBound, p.NextEventAt)
			return p, nil
		case PollInterrupt:
			switch p.Interrupt.Kind {
			case InterruptEvent:
				e.observe(p.Time)
				e.noteBounds(p.InterruptLowerBound, p.NextEventAt)
				return p, nil
			case InterruptRollback:
				adj, ok := e.translateRollback(p.Time)
				if !ok {
					continue
				}
				p.Time = adj
				return p, nil
			}
		}
		return p, nil
	}
}

// noteResult applies the shared observation/bound bookkeeping for a state
// poll's result, reporting false when the result was a suppressed rollback
// and the source must be polled again.
func (c *InputSourceCollection[T]) noteResult(e *registeredInput[T], p SourcePoll[T, any, Option[any]]) (SourcePoll[T, any, Option[any]], bool) {
	switch p.Kind {
	case PollStateProgress:
		e.noteBounds(p.InterruptLowerBound, p.NextEventAt)
	case PollInterrupt:
		switch p.Interrupt.Kind {
		case InterruptEvent:
			e.observe(p.Time)
			e.noteBounds(p.InterruptLowerBound, p.NextEventAt)
		case InterruptRollback:
			adj, ok := e.translateRollback(p.Time)
			if !ok {
				return p, false
			}
			p.Time = adj
		}
	}
	return p, true
}

// Advance narrows one input's window.
func (c *InputSourceCollection[T]) Advance(id InputID, lower LowerBound[T], upper UpperBound[T], w Waker) {
	if e, ok := c.get(id); ok {
		e.source.Advance(lower, upper, w)
	}
}

// ReleaseChannel informs one input's source a channel was abandoned.
func (c *InputSourceCollection[T]) ReleaseChannel(id InputID, channel int) {
	if e, ok := c.get(id); ok {
		e.source.ReleaseChannel(channel)
	}
}

// AggregateInterruptLowerBound returns the minimum InterruptLowerBound
// across every registered input: the time before which every input's
// output is guaranteed finalized (no further rollback possible).
func (c *InputSourceCollection[T]) AggregateInterruptLowerBound() LowerBound[T] {
	agg := MaxLowerBound[T]()
	for _, id := range c.order {
		e := c.entries[id]
		if e.interruptLowerBound.Compare(agg) < 0 {
			agg = e.interruptLowerBound
		}
	}
	return agg
}

// AggregateNextEventAt returns the earliest NextEventAt reported by any
// registered input's most recent Poll, or None if no input has reported one.
func (c *InputSourceCollection[T]) AggregateNextEventAt() Option[T] {
	best := None[T]()
	for _, id := range c.order {
		e := c.entries[id]
		v, ok := e.nextEventAt.Get()
		if !ok {
			continue
		}
		cur, haveBest := best.Get()
		if !haveBest || v.Compare(cur) < 0 {
			best = Some(v)
		}
	}
	return best
}
