// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package transpose

// channelStatus is the tri-state of one input source's poll channel: Free
// to claim, Reserved by an in-flight step's poll, or PendingRelease once
// that step has moved on but the source has not yet been told via
// ReleaseChannel (deferred so a fast-following step can reuse the same
// channel without forcing the source to tear down and rebuild per-channel
// state).
type channelStatus uint8

const (
	channelFree channelStatus = iota
	channelReserved
	channelPendingRelease
)

// channelReservations tracks, per registered input, which of its poll
// channels are in use. Each registered input gets its own independent set
// of channel slots, grown on demand up to the WithChannelCount ceiling.
type channelReservations struct {
	perInput map[InputID][]channelStatus
	limit    int
}

func newChannelReservations(limit int) *channelReservations {
	return &channelReservations{perInput: make(map[InputID][]channelStatus), limit: maxOrdered(limit, 1)}
}

// getFirstAvailable reserves and returns the lowest-numbered channel for
// input that is not Reserved (Free or PendingRelease), growing its slot
// slice (up to limit) if every existing slot is Reserved.
func (c *channelReservations) getFirstAvailable(input InputID) (int, bool) {
	slots := c.perInput[input]
	for i, st := range slots {
		if st != channelReserved {
			slots[i] = channelReserved
			return i, true
		}
	}
	if len(slots) >= c.limit {
		return 0, false
	}
	slots = append(slots, channelReserved)
	c.perInput[input] = slots
	return len(slots) - 1, true
}

// release marks channel as Free immediately (no PollForget bookkeeping to
// preserve).
func (c *channelReservations) release(input InputID, channel int) {
	c.setStatus(input, channel, channelFree)
}

// markPendingRelease marks channel as PendingRelease: reusable by this
// engine, but owed a ReleaseChannel call to the source before the source
// may reclaim whatever resources it held for it.
func (c *channelReservations) markPendingRelease(input InputID, channel int) {
	c.setStatus(input, channel, channelPendingRelease)
}

func (c *channelReservations) setStatus(input InputID, channel int, st channelStatus) {
	slots := c.perInput[input]
	if channel < 0 || channel >= len(slots) {
		return
	}
	slots[channel] = st
}

// drainPendingReleases returns every channel index for input currently
// PendingRelease and resets them to Free, so the caller can issue the
// deferred Source.ReleaseChannel calls.
func (c *channelReservations) drainPendingReleases(input InputID) []int {
	slots := c.perInput[input]
	var out []int
	for i, st := range slots {
		if st == channelPendingRelease {
			out = append(out, i)
			slots[i] = channelFree
		}
	}
	return out
}

// clear drops all reservations for input, e.g. when the input is removed
// or the engine is torn down.
func (c *channelReservations) clear(input InputID) {
	delete(c.perInput, input)
}
