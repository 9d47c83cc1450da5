// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package transpose

// ExpireHandle is an opaque token returned by Context.ScheduleEventExpireable,
// usable later to cancel the scheduled event.
type ExpireHandle uint64

// ScheduledTime pairs a time with a per-handler emission index, making
// simultaneous schedule_event calls within one handler invocation totally
// ordered in the order they were made.
type ScheduledTime[T Ordered[T]] struct {
	Time  T
	Index uint64
}

// Compare orders ScheduledTime first by Time, then by Index.
func (s ScheduledTime[T]) Compare(other ScheduledTime[T]) int {
	if c := s.Time.Compare(other.Time); c != 0 {
		return c
	}
	switch {
	case s.Index < other.Index:
		return -1
	case s.Index > other.Index:
		return 1
	default:
		return 0
	}
}

func scheduledTimeLess[T Ordered[T]](a, b ScheduledTime[T]) bool { return a.Compare(b) < 0 }

// scheduleEntry is one row of the schedule map: a scheduled payload plus,
// for expireable entries, the handle that can cancel it.
type scheduleEntry[T Ordered[T]] struct {
	when    ScheduledTime[T]
	payload any
	handle  ExpireHandle // zero value means "not expireable"
}

// schedule is the bidirectional, ordered structure backing a snapshot's
// scheduled events: an ordered map from ScheduledTime to payload, plus
// forward/backward maps between ExpireHandle and ScheduledTime, plus a
// fresh-handle counter and a deterministically-seeded RNG.
//
// It is logically immutable once captured in a Snapshot: Clone deep-copies
// the ordered set and both handle maps (a plain Go map/slice copy, not a
// persistent/path-copied tree -- see DESIGN.md for why no third-party
// persistent-collection library was available to ground an O(log n) clone
// on), so that branching (re-saturating from an older snapshot after a
// rollback) never mutates a snapshot another branch still holds.
type schedule[T Ordered[T]] struct {
	byTime         *orderedSet[scheduleEntry[T]]
	expireForward  map[ExpireHandle]ScheduledTime[T]
	expireBackward map[ScheduledTime[T]]ExpireHandle
	nextHandle     uint64
	nextIndex      uint64
	rng            *engineRand
}

func newSchedule[T Ordered[T]](seed uint64) *schedule[T] {
	return &schedule[T]{
		byTime: newOrderedSet(func(a, b scheduleEntry[T]) bool {
			return scheduledTimeLess(a.when, b.when)
		}),
		expireForward:  make(map[ExpireHandle]ScheduledTime[T]),
		expireBackward: make(map[ScheduledTime[T]]ExpireHandle),
		rng:            newEngineRand(seed),
	}
}

// clone returns a deep, independent copy: mutating the clone never affects
// the original, and vice versa.
func (s *schedule[T]) clone() *schedule[T] {
	out := &schedule[T]{
		byTime:         s.byTime.Clone(),
		expireForward:  make(map[ExpireHandle]ScheduledTime[T], len(s.expireForward)),
		expireBackward: make(map[ScheduledTime[T]]ExpireHandle, len(s.expireBackward)),
		nextHandle:     s.nextHandle,
		nextIndex:      s.nextIndex,
		rng:            s.rng.clone(),
	}
	for h, st := range s.expireForward {
		out.expireForward[h] = st
	}
	for st, h := range s.expireBackward {
		out.expireBackward[st] = h
	}
	return out
}

// nextEmissionIndex returns a fresh, monotonically increasing index for
// building a ScheduledTime, then advances the counter.
func (s *schedule[T]) nextEmissionIndex() uint64 {
	i := s.nextIndex
	s.nextIndex++
	return i
}

// insert adds payload at t, returning the ScheduledTime it was filed
// under.
func (s *schedule[T]) insert(t T, payload any) ScheduledTime[T] {
	when := ScheduledTime[T]{Time: t, Index: s.nextEmissionIndex()}
	s.byTime.Insert(scheduleEntry[T]{when: when, payload: payload})
	return when
}

// insertExpireable adds payload at t and mints a fresh ExpireHandle for
// it, maintaining the expire_forward/expire_backward invariant.
func (s *schedule[T]) insertExpireable(t T, payload any) (ScheduledTime[T], ExpireHandle) {
	when := ScheduledTime[T]{Time: t, Index: s.nextEmissionIndex()}
	s.nextHandle++
	h := ExpireHandle(s.nextHandle)
	s.byTime.Insert(scheduleEntry[T]{when: when, payload: payload, handle: h})
	s.expireForward[h] = when
	s.expireBackward[when] = h
	return when, h
}

// expire atomically removes handle's schedule entry and both maps' rows. It
// reports ErrInvalidOrUsedHandle if handle is unknown.
func (s *schedule[T]) expire(h ExpireHandle) error {
	when, ok := s.expireForward[h]
	if !ok {
		return ErrInvalidOrUsedHandle
	}
	delete(s.expireForward, h)
	delete(s.expireBackward, when)
	s.byTime.Remove(scheduleEntry[T]{when: when}, func(a, b scheduleEntry[T]) bool {
		return a.when.Compare(b.when) == 0 && a.handle == h
	})
	return nil
}

// drainAt removes and returns, in emission order, every entry whose time
// equals t.
func (s *schedule[T]) drainAt(t T) []scheduleEntry[T] {
	lowProbe := scheduleEntry[T]{when: ScheduledTime[T]{Time: t, Index: 0}}
	highProbe := scheduleEntry[T]{when: ScheduledTime[T]{Time: t, Index: ^uint64(0)}}
	out := s.byTime.DrainBetween(lowProbe, highProbe)
	for _, e := range out {
		if e.handle != 0 {
			delete(s.expireForward, e.handle)
			delete(s.expireBackward, e.when)
		}
	}
	return out
}

// nextTime returns the earliest scheduled time, if any.
func (s *schedule[T]) nextTime() (T, bool) {
	e, ok := s.byTime.Min()
	if !ok {
		var zero T
		return zero, false
	}
	return e.when.Time, true
}
