// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package transpose

// InterpolationPollKind tags the result of Interpolation.Poll, mirroring
// StepPollKind: the interpolation goroutine suspends on input state the
// same way a saturating step's handler does, and its caller is likewise
// responsible for surfacing Pending upward instead of waiting.
type InterpolationPollKind uint8

const (
	// InterpolationReady carries the completed OutputState; the
	// interpolation has released its snapshot pin and may not be polled
	// again.
	InterpolationReady InterpolationPollKind = iota
	// InterpolationNeedsInputState means Interpolate has just suspended
	// waiting on the state of NeedsInput at the target time; call
	// ProvideInputState then Poll again.
	InterpolationNeedsInputState
	// InterpolationPending means Interpolate is still suspended on the
	// request previously reported via InterpolationNeedsInputState
	// (repeated in NeedsInput).
	InterpolationPending
)

// InterpolationPoll is the result of one Interpolation.Poll call.
type InterpolationPoll[OS any] struct {
	Kind       InterpolationPollKind
	State      OS
	NeedsInput InputID
}

// interpolationRun holds the suspension channels for an in-flight
// Interpolate goroutine, the same single-slot shape saturatingRun uses.
type interpolationRun[OS any] struct {
	stateReq  chan InputID
	stateResp chan any
	res       chan interpolationResult[OS] // buffered 1
	cancel    chan struct{}
	pending   InputID
	waiting   bool
}

type interpolationResult[OS any] struct {
	state OS
	err   error
}

// Interpolation is a single-consumer handle to an on-demand read of
// OutputState at some time within an already-saturated step's span. It
// pins that step's snapshot against desaturation until Close is called (or
// Poll runs to completion), mirroring the original's working-timeline-
// slice rule that a step may not desaturate out from under a live
// interpolation. The Interpolate goroutine starts lazily on the first Poll
// and runs against an independent clone, so a misbehaving Interpolate
// cannot corrupt the shared snapshot.
type Interpolation[T Ordered[T], OE any, OS any] struct {
	anchor *Step[T, OE, OS]
	snap   *snapshot[T, OE, OS] // independent clone: Interpolate must never mutate a shared snapshot
	target T
	done   bool
	run    *interpolationRun[OS]
}

func newInterpolation[T Ordered[T], OE any, OS any](anchor *Step[T, OE, OS], target T) *Interpolation[T, OE, OS] {
	snap, _ := anchor.Snapshot()
	anchor.addInterpolation()
	return &Interpolation[T, OE, OS]{anchor: anchor, snap: snap.clone(), target: target}
}

// Poll drives the Interpolate goroutine to its next suspension point or to
// completion. On InterpolationReady the handle is consumed (its snapshot
// pin released); further Polls report ErrInvalidOrUsedHandle.
func (ip *Interpolation[T, OE, OS]) Poll() (InterpolationPoll[OS], error) {
	if ip.done {
		return InterpolationPoll[OS]{}, ErrInvalidOrUsedHandle
	}
	if ip.run == nil {
		ip.run = &interpolationRun[OS]{
			stateReq:  make(chan InputID),
			stateResp: make(chan any),
			res:       make(chan interpolationResult[OS], 1),
			cancel:    make(chan struct{}),
		}
		ctx := &InterpolateContext[T]{baseContext[T]{currentTime: ip.target, stateReq: ip.run.stateReq, stateResp: ip.run.stateResp, done: ip.run.cancel}}
		transposer := ip.snap.transposer
		run := ip.run
		go func() {
			s, err := transposer.Interpolate(ctx)
			run.res <- interpolationResult[OS]{state: s, err: err}
		}()
	}
	if ip.run.waiting {
		return InterpolationPoll[OS]{Kind: InterpolationPending, NeedsInput: ip.run.pending}, nil
	}
	select {
	case r := <-ip.run.res:
		ip.Close()
		if r.err != nil {
			return InterpolationPoll[OS]{}, r.err
		}
		return InterpolationPoll[OS]{Kind: InterpolationReady, State: r.state}, nil
	case id := <-ip.run.stateReq:
		ip.run.pending = id
		ip.run.waiting = true
		return InterpolationPoll[OS]{Kind: InterpolationNeedsInputState, NeedsInput: id}, nil
	}
}

// ProvideInputState answers the outstanding input-state request for input.
// Returns ErrMismatchedInputState if there is no outstanding request, or if
// input does not match the one last reported.
func (ip *Interpolation[T, OE, OS]) ProvideInputState(input InputID, state any) error {
	if ip.done || ip.run == nil || !ip.run.waiting || ip.run.pending != input {
		return ErrMismatchedInputState
	}
	ip.run.waiting = false
	ip.run.stateResp <- state
	return nil
}

// Close releases the snapshot pin this interpolation holds, cancelling the
// Interpolate goroutine if it is still suspended. Safe to call more than
// once.
func (ip *Interpolation[T, OE, OS]) Close() {
	if ip.done {
		return
	}
	ip.done = true
	if ip.run != nil {
		close(ip.run.cancel)
	}
	ip.anchor.releaseInterpolation()
}
