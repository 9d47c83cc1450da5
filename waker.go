// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package transpose

import "sync"

// wakerRouter fans the many wakers the engine hands out to sources (one
// per open channel, one per input's interrupt stream) into the engine
// caller's own interrupt waker, with dedup. Grounded on go-eventloop's
// FastState: a lock-guarded flag rather than a condition variable, so Wake
// is cheap and safe to call from any goroutine including from inside a
// source's own background machinery. The engine itself never blocks on the
// router: a sub-source's Pending propagates up through the engine's own
// poll results, and this router exists so the wake that eventually resolves
// it reaches the engine's caller too.
type wakerRouter struct {
	mu     sync.Mutex
	woken  bool
	logger Logger

	// forward is the engine caller's own interrupt waker, refreshed on every
	// poll/advance; a sub-source wake is propagated to it so the caller
	// learns this Transpose may be able to make progress again.
	forward Waker
}

func newWakerRouter(logger Logger) *wakerRouter {
	return &wakerRouter{logger: logger}
}

// setInterruptWaker replaces (not accumulates) the caller's interrupt waker.
func (w *wakerRouter) setInterruptWaker(waker Waker) {
	w.mu.Lock()
	w.forward = waker
	w.mu.Unlock()
}

// wake records that something changed and, if this is the first wake since
// the last consume, notifies the caller's interrupt waker. The lock is
// released before the notification.
func (w *wakerRouter) wake() {
	w.mu.Lock()
	already := w.woken
	w.woken = true
	forward := w.forward
	w.mu.Unlock()
	if already {
		w.logger.Debug().Log(`waker dedup hit`)
		return
	}
	if forward != nil {
		forward.Wake()
	}
}

// consume clears the woken flag and reports whether it had been set. The
// engine calls this at the top of every poll, re-arming the dedup so the
// next sub-source wake forwards to the caller again.
func (w *wakerRouter) consume() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	woken := w.woken
	w.woken = false
	return woken
}

// channelWaker returns a Waker that signals this router, tagged with the
// input/channel it was minted for. The tag is informational only (useful
// for logging); dedup is purely at the router level, since a single
// caller-side re-poll revisits everything that might have progressed.
func (w *wakerRouter) channelWaker(input InputID, channel int) Waker {
	return WakerFunc(func() { w.wake() })
}

// interruptWaker returns a Waker that signals this router on a new
// interrupt becoming available for input.
func (w *wakerRouter) interruptWaker(input InputID) Waker {
	return WakerFunc(func() { w.wake() })
}
