// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package transpose

import (
	"fmt"

	"github.com/google/uuid"
)

func (tp *Transpose[T, OE, OS]) logStep(step *Step[T, OE, OS]) {
	tp.opts.logger.Debug().
		Uint64(`seq`, step.seq).
		Str(`kind`, step.kind.String()).
		Log(`step saturated`)
}

// Transpose composes a user Transposer with its registered input Sources
// into a single Source of its own: poll it for OutputState progress and
// output events the same way you would poll any leaf source, and it drives
// the underlying step chain, folding in upstream interrupts (new input
// events, or rollbacks) as they arrive.
type Transpose[T Ordered[T], OE any, OS any] struct {
	opts transposeOptions

	inputs   *InputSourceCollection[T]
	channels *channelReservations
	wakers   *wakerRouter

	tl *timeline[T, OE, OS]

	// interpolations holds the uuid-keyed Interpolations opened via
	// Interpolate, each with its in-flight input-state conversation.
	interpolations map[uuid.UUID]*inflightInterpolation[T, OE, OS]

	// channelIPs holds the per-caller-channel interpolation a state poll
	// left suspended on a pending input (§4.5.1 step 8): kept across polls
	// keyed by (channel, time, forget) so the retry resumes rather than
	// restarts.
	channelIPs map[int]*channelInterpolation[T, OE, OS]

	// stepReq is the saturating step's in-flight input-state conversation,
	// if any; at most one step saturates at a time, so one slot suffices.
	stepReq stateRequest

	// saturatingEvents accumulates the saturating step's emissions until
	// the step completes and its final touched-input set is known; held on
	// the engine rather than the poll stack so a Pending suspension does
	// not lose them.
	saturatingEvents []OE

	// outputQueue holds saturated-but-not-yet-dequeued output events, each
	// tagged with its producing step's time and touched-input set so a
	// later retroactive interrupt can be folded with minimal rollback.
	outputQueue []queuedEvent[T, OE]

	// reported remembers, for every event already handed to PollEvents'
	// caller, the same (time, touched) tag: the dependency ledger a
	// retroactive interrupt is checked against to decide whether this
	// engine owes its own consumer a Rollback.
	reported []reportedMark[T]

	// pendingRollback holds a Rollback this engine owes its consumer,
	// queued ahead of outputQueue so it is always delivered before any
	// event at or after its time.
	pendingRollback Option[T]

	lower        LowerBound[T]
	upper        UpperBound[T]
	finalizeTime LowerBound[T]

	// wavefront is the highest time ever requested by a Poll/PollForget/
	// PollEvents call: the step chain is allowed to advance up to it even
	// when the call that triggers the advance asked for an earlier time
	// (§4.5.1 step 5), so a later PollEvents at a lower time still lets
	// already-demanded progress continue.
	wavefront Option[T]

	// advanceFinal is set once Advance has been called with an upper bound
	// of Max: the caller has promised it will never ask this engine about a
	// later time again, the precondition for ever declaring complete.
	advanceFinal bool

	// complete holds the time at which no further output or interrupt will
	// ever be possible, once established (§4.5.3); absent until then.
	complete Option[T]

	// needsSignal is true when finalizeTime or complete has advanced since
	// the last time PollEvents reported it to its caller.
	needsSignal bool

	// poisoned latches the SpecificError wrapping the first sub-source
	// failure; every subsequent poll returns it (§7: any sub-source error is
	// fatal to the engine as a whole).
	poisoned error
}

// queuedEvent is one not-yet-delivered entry of outputQueue.
type queuedEvent[T Ordered[T], OE any] struct {
	Time    T
	Event   OE
	Touched map[InputID]struct{}
}

// reportedMark is the dependency ledger entry kept per already-delivered
// output event.
type reportedMark[T Ordered[T]] struct {
	time    T
	touched map[InputID]struct{}
}

// stateRequest is one in-flight input-state conversation. While a
// sub-source reports InterruptPending the channel reservation is held open,
// so the retry on a later poll of this engine resumes the same
// conversation instead of opening (and owing a release for) a fresh one.
type stateRequest struct {
	input   InputID
	channel int
	active  bool
}

// channelInterpolation is the suspended state poll for one caller channel.
type channelInterpolation[T Ordered[T], OE any, OS any] struct {
	time   T
	forget bool
	ip     *Interpolation[T, OE, OS]
	req    stateRequest
}

// inflightInterpolation pairs a uuid-keyed Interpolation with its
// input-state conversation.
type inflightInterpolation[T Ordered[T], OE any, OS any] struct {
	ip  *Interpolation[T, OE, OS]
	req stateRequest
}

// New constructs a Transpose rooted at initTime, calling PrepareToInit and
// Init on the given transposer before returning.
func New[T Ordered[T], OE any, OS any](transposer Transposer[T, OE, OS], initTime T, opts ...TransposeOption) (*Transpose[T, OE, OS], error) {
	o, err := resolveTransposeOptions(opts)
	if err != nil {
		return nil, err
	}

	tp := &Transpose[T, OE, OS]{
		opts:            *o,
		inputs:          NewInputSourceCollection[T](),
		channels:        newChannelReservations(o.channelCount),
		wakers:          newWakerRouter(o.logger),
		tl:              newTimeline[T, OE, OS](initTime),
		interpolations:  make(map[uuid.UUID]*inflightInterpolation[T, OE, OS]),
		channelIPs:      make(map[int]*channelInterpolation[T, OE, OS]),
		pendingRollback: None[T](),
		lower:           MinLowerBound[T](),
		upper:           MaxUpperBound[T](),
		finalizeTime:    MinLowerBound[T](),
		wavefront:       None[T](),
		complete:        None[T](),
	}

	if !transposer.PrepareToInit() {
		return nil, ErrInitRejected
	}

	initSnap := &snapshot[T, OE, OS]{transposer: transposer, sched: newSchedule[T](o.seed), time: initTime}
	initStep := tp.tl.steps[0]
	if err := initStep.StartSaturateTake(initSnap); err != nil {
		return nil, err
	}
	// No inputs can be registered yet, so Init cannot suspend on a pending
	// input state: the step either saturates here or errors. (If it somehow
	// were left suspended, the first poll's driveTo resumes it.)
	if _, err := tp.driveStep(initStep); err != nil {
		return nil, err
	}
	return tp, nil
}

// AddInput registers src as one of the sources this Transpose composes,
// returning the InputID used to tag its events in HandleInputEvent. A
// package-level function since Go methods cannot introduce additional type
// parameters beyond the receiver's.
func AddInput[T Ordered[T], OE any, OS any, E any, S any](tp *Transpose[T, OE, OS], sortKey uint64, src Source[T, E, S]) InputID {
	return RegisterInput(tp.inputs, sortKey, src)
}

// driveStep pumps one step's saturation as far as it can go without
// waiting, servicing its GetInputState and EmitEvent suspension points.
// Reports done=false when a requested input state is itself pending
// upstream; the step stays Saturating (its emissions so far parked in
// saturatingEvents) and a later poll resumes it. Emitted events are only
// pushed to outputQueue once the step's final touched-input set is known,
// since a step may request more input state after already emitting.
func (tp *Transpose[T, OE, OS]) driveStep(step *Step[T, OE, OS]) (done bool, _ error) {
	for {
		p, err := step.Poll()
		if err != nil {
			return false, err
		}
		switch p.Kind {
		case StepSaturated:
			tp.releaseStateRequest(&tp.stepReq)
			touched := step.Touched()
			// A conservative fold (e.g. an unrelated input's Rollback, which
			// discards every step at or after its time regardless of what
			// each one actually touched) can cause a step whose output was
			// already reported to the downstream consumer to be re-derived.
			// By determinism its output is byte-identical to what was
			// already delivered; since nothing triggered queueRollback for
			// this time, the consumer was never told to discard it, so it
			// must not be re-queued for a second delivery.
			if !tp.wasReported(step.Time()) {
				for _, ev := range tp.saturatingEvents {
					tp.outputQueue = append(tp.outputQueue, queuedEvent[T, OE]{Time: step.Time(), Event: ev, Touched: touched})
				}
			}
			tp.saturatingEvents = nil
			tp.logStep(step)
			return true, nil
		case StepOutputEvent:
			tp.saturatingEvents = append(tp.saturatingEvents, p.Event)
		case StepNeedsInputState, StepPending:
			step.touch(p.NeedsInput)
			state, pending, err := tp.fetchInputState(&tp.stepReq, p.NeedsInput, step.Time(), false)
			if err != nil {
				return false, err
			}
			if step.Saturation() != Saturating {
				// An interrupt serviced inside the fetch folded the chain at
				// or before this step's time, cancelling it; whatever it
				// emitted so far is moot, and the fold has already queued the
				// rebuild.
				tp.releaseStateRequest(&tp.stepReq)
				tp.saturatingEvents = nil
				return true, nil
			}
			if pending {
				return false, nil
			}
			if err := step.ProvideInputState(p.NeedsInput, state); err != nil {
				return false, err
			}
		}
	}
}

// poisonSource latches err as this engine's permanent SpecificError and
// returns it.
func (tp *Transpose[T, OE, OS]) poisonSource(err error) error {
	if tp.poisoned == nil {
		tp.poisoned = &SpecificError{Err: err}
	}
	return tp.poisoned
}

// releaseStateRequest returns a completed or abandoned state conversation's
// channel to the pending-release pool. No-op on an inactive request.
func (tp *Transpose[T, OE, OS]) releaseStateRequest(req *stateRequest) {
	if req.active {
		tp.channels.markPendingRelease(req.input, req.channel)
		req.active = false
	}
}

// fetchInputState polls one input for its state at t, resolving interrupts
// synchronously (folding them into the step chain) but never waiting: a
// sub-source reporting InterruptPending surfaces as pending=true, with
// req's channel reservation held open so the retry -- on a later poll of
// this engine, after the source's waker fires -- resumes the same
// conversation.
func (tp *Transpose[T, OE, OS]) fetchInputState(req *stateRequest, id InputID, t T, forget bool) (state any, pending bool, _ error) {
	if req.active && req.input != id {
		tp.releaseStateRequest(req)
	}
	if !req.active {
		channel, ok := tp.channels.getFirstAvailable(id)
		if !ok {
			return nil, false, ErrOutOfBoundsChannel
		}
		*req = stateRequest{input: id, channel: channel, active: true}
	}
	cx := SourceContext{Channel: req.channel, ChannelWaker: tp.wakers.channelWaker(id, req.channel), InterruptWaker: tp.wakers.interruptWaker(id)}
	for {
		var poll SourcePoll[T, any, Option[any]]
		var err error
		if forget {
			poll, err = tp.inputs.PollForget(id, t, cx)
		} else {
			poll, err = tp.inputs.Poll(id, t, cx)
		}
		if err != nil {
			tp.releaseStateRequest(req)
			return nil, false, tp.poisonSource(err)
		}
		switch poll.Kind {
		case PollStateProgress:
			tp.releaseStateRequest(req)
			if v, ok := poll.State.Get(); ok {
				return v, false, nil
			}
			return nil, false, nil
		case PollInterrupt:
			tp.handleInterrupt(id, poll.Time, poll.Interrupt)
		case PollInterruptPending:
			return nil, true, nil
		}
	}
}

// handleInterrupt folds one upstream interrupt into the engine: a new
// event discards and re-derives every step at or after its time (so it can
// be coalesced with whatever already landed at the same instant), then is
// buffered; a rollback discards every step at or after its time, dropping
// (rather than re-buffering) whichever of their events came from id. In
// both cases, if any already-reported output depended on id at or after
// t, this engine owes its own consumer exactly one Rollback, at the
// earliest such dependency (rollback minimality).
func (tp *Transpose[T, OE, OS]) handleInterrupt(id InputID, t T, in Interrupt[any]) {
	tOut, affected := tp.minReportedAffected(t, id)
	switch in.Kind {
	case InterruptEvent:
		_ = tp.tl.rollbackTo(t)
		tp.tl.bufferInputEvent(erasedInputEvent[T]{Input: id, Time: t, Event: in.Event})
		tp.opts.logger.Debug().Uint64(`inputSort`, id.sort).Uint64(`inputSeq`, id.seq).Log(`folded retroactive input event`)
	case InterruptRollback:
		_ = tp.tl.rollbackInput(t, id)
		tp.opts.logger.Debug().Uint64(`inputSort`, id.sort).Uint64(`inputSeq`, id.seq).Log(`folded upstream rollback`)
	}
	// Every step at or after t was just discarded and will be re-derived, so
	// any not-yet-delivered queued event at or after t is stale regardless
	// of whether it was ever reported; purge it unconditionally. A Rollback
	// to the downstream consumer is owed only when some already-*reported*
	// event is affected (rollback minimality, §8 property 5).
	tp.purgeQueueFrom(t)
	if affected {
		tp.opts.logger.Info().Uint64(`inputSort`, id.sort).Uint64(`inputSeq`, id.seq).Log(`owed downstream rollback`)
		tp.queueRollback(tOut)
	}
	if _, ok := tp.tl.saturatingIndex(); !ok {
		// the fold cancelled a suspended step: its parked emissions and
		// in-flight state conversation die with it.
		tp.releaseStateRequest(&tp.stepReq)
		tp.saturatingEvents = nil
	}
	if tp.opts.debugAssertions {
		tp.tl.assertInvariants()
	}
}

// purgeQueueFrom drops every not-yet-delivered outputQueue entry at or
// after t: its producing step was just discarded by a fold and will be
// re-derived, so the entry no longer corresponds to any step in the chain.
func (tp *Transpose[T, OE, OS]) purgeQueueFrom(t T) {
	kept := tp.outputQueue[:0]
	for _, e := range tp.outputQueue {
		if e.Time.Compare(t) < 0 {
			kept = append(kept, e)
		}
	}
	tp.outputQueue = kept
}

// wasReported reports whether some output at exactly time t has already
// been delivered to PollEvents' caller and not since invalidated.
func (tp *Transpose[T, OE, OS]) wasReported(t T) bool {
	for _, m := range tp.reported {
		if m.time.Compare(t) == 0 {
			return true
		}
	}
	return false
}

// minReportedAffected scans the dependency ledger for the earliest
// already-reported output at or after t whose step touched id, if any.
func (tp *Transpose[T, OE, OS]) minReportedAffected(t T, id InputID) (T, bool) {
	var best T
	found := false
	for _, m := range tp.reported {
		if m.time.Compare(t) < 0 {
			continue
		}
		if _, ok := m.touched[id]; !ok {
			continue
		}
		if !found || m.time.Compare(best) < 0 {
			best, found = m.time, true
		}
	}
	return best, found
}

// queueRollback records that this engine owes its consumer a Rollback at
// tOut (or earlier, if one is already pending), and discards the
// now-invalid tail of the reported ledger and outputQueue.
func (tp *Transpose[T, OE, OS]) queueRollback(tOut T) {
	if cur, ok := tp.pendingRollback.Get(); ok && cur.Compare(tOut) <= 0 {
		tOut = cur
	}
	tp.pendingRollback = Some(tOut)

	kept := tp.reported[:0]
	for _, m := range tp.reported {
		if m.time.Compare(tOut) < 0 {
			kept = append(kept, m)
		}
	}
	tp.reported = kept

	var q []queuedEvent[T, OE]
	for _, e := range tp.outputQueue {
		if e.Time.Compare(tOut) < 0 {
			q = append(q, e)
		}
	}
	tp.outputQueue = q
}

// pollSourceInterrupts drains pending interrupts from every registered
// input, so the step chain sees retroactive input events and rollbacks
// before it tries to extend itself.
func (tp *Transpose[T, OE, OS]) pollSourceInterrupts(t T) error {
	for _, id := range tp.inputs.Inputs() {
		for {
			poll, err := tp.inputs.PollEvents(id, t, tp.wakers.interruptWaker(id))
			if err != nil {
				return tp.poisonSource(err)
			}
			if poll.Kind != PollInterrupt {
				break
			}
			tp.handleInterrupt(id, poll.Time, poll.Interrupt)
		}
	}
	return nil
}

// flushPendingReleases issues the deferred Source.ReleaseChannel calls for
// every channel markPendingRelease left reusable-but-not-yet-told-to-the-
// source, for every registered input.
func (tp *Transpose[T, OE, OS]) flushPendingReleases() {
	for _, id := range tp.inputs.Inputs() {
		for _, ch := range tp.channels.drainPendingReleases(id) {
			tp.inputs.ReleaseChannel(id, ch)
		}
	}
}

// driveTo extends the step chain, saturating steps in order, until the
// chain's last saturated step is at or after t, there is nothing left to
// saturate, or a step suspends on a pending input state (pending=true: the
// step stays Saturating and a later poll resumes it).
func (tp *Transpose[T, OE, OS]) driveTo(t T) (pending bool, _ error) {
	if tp.poisoned != nil {
		return false, tp.poisoned
	}
	if !tp.lower.Test(t) {
		return false, ErrPollAfterAdvance
	}
	tp.wakers.consume()
	if v, ok := tp.wavefront.Get(); !ok || t.Compare(v) > 0 {
		tp.wavefront = Some(t)
	}
	target := t
	if v, ok := tp.wavefront.Get(); ok && v.Compare(target) > 0 {
		target = v
	}
	tp.flushPendingReleases()
	if err := tp.pollSourceInterrupts(target); err != nil {
		return false, err
	}
	for {
		last := tp.tl.lastSaturated()
		var step *Step[T, OE, OS]
		switch {
		case last < 0:
			// only the init step, still saturating: either New was resumed
			// after a suspension, or construction failed outright.
			if tp.tl.steps[0].Saturation() != Saturating {
				return false, ErrPollBeforeDefault
			}
			step = tp.tl.steps[0]
		case tp.tl.steps[last].Time().Compare(target) >= 0:
			tp.updateFinalizeTime()
			if tp.opts.debugAssertions {
				tp.tl.assertInvariants()
			}
			return false, nil
		case last+1 < len(tp.tl.steps):
			// a step already in the chain: Saturating if a prior poll left
			// it suspended, Unsaturated if a fold rebuilt the tail.
			step = tp.tl.steps[last+1]
		default:
			prevSnap, _ := tp.tl.steps[last].Snapshot()
			step = tp.tl.appendNextStep(prevSnap)
			if step == nil {
				tp.updateFinalizeTime()
				if tp.opts.debugAssertions {
					tp.tl.assertInvariants()
				}
				return false, nil
			}
		}
		if step.Saturation() == Unsaturated {
			clone := step.prevClone
			step.prevClone = nil
			if clone == nil {
				// Re-derive the starting point a fold discarded: the
				// predecessor's own schedule was never mutated, so a
				// Scheduled step's entries must be drained out of the fresh
				// clone again to avoid applying them twice.
				prevSnap, _ := tp.tl.steps[last].Snapshot()
				clone = prevSnap.clone()
				if step.kind == stepScheduled {
					clone.sched.drainAt(step.Time())
				}
			}
			tp.releaseStateRequest(&tp.stepReq)
			tp.saturatingEvents = nil
			if err := step.StartSaturateTake(clone); err != nil {
				return false, err
			}
		}
		done, err := tp.driveStep(step)
		if err != nil {
			return false, err
		}
		tp.updateFinalizeTime()
		if !done {
			if tp.opts.debugAssertions {
				tp.tl.assertInvariants()
			}
			return true, nil
		}
	}
}

// updateFinalizeTime recomputes the finalize watermark and, once no further
// input or step-chain progress is structurally possible and every input has
// been advanced to Max, latches complete (§4.5.3).
func (tp *Transpose[T, OE, OS]) updateFinalizeTime() {
	// The engine only guarantees finality up to whatever it already knows
	// must still happen: the inputs' own finalize promises, the last
	// saturated snapshot's next scheduled time, any step appended but not
	// yet saturated, and any buffered input event not yet applied. Combined
	// via the weaker (lesser) bound each time: a composite promise can
	// never be stronger than the narrowest promise it rests on.
	agg := tp.inputs.AggregateInterruptLowerBound()
	last := tp.tl.lastSaturated()
	moreWork := last+1 < len(tp.tl.steps)
	if moreWork {
		agg = MinLower(agg, InclusiveLowerBound(tp.tl.steps[last+1].Time()))
	}
	if last >= 0 {
		if snap, ok := tp.tl.steps[last].Snapshot(); ok {
			if next, ok := snap.sched.nextTime(); ok {
				agg = MinLower(agg, InclusiveLowerBound(next))
				moreWork = true
			}
		}
	}
	if t, ok := tp.tl.nextBufferedTime(); ok {
		agg = MinLower(agg, InclusiveLowerBound(t))
		moreWork = true
	}
	if agg.Compare(tp.finalizeTime) > 0 {
		if t, ok := agg.Time(); ok {
			tp.opts.logger.Debug().Str(`finalize`, fmt.Sprint(t)).Log(`finalize watermark advanced`)
		}
		tp.finalizeTime = agg
		tp.needsSignal = true
		// Marks strictly below the watermark are dead weight: no interrupt
		// can ever arrive below it, so nothing can invalidate (or re-derive)
		// those outputs again.
		if ft, ok := tp.finalizeTime.Time(); ok {
			kept := tp.reported[:0]
			for _, m := range tp.reported {
				if m.time.Compare(ft) >= 0 {
					kept = append(kept, m)
				}
			}
			tp.reported = kept
		}
	}
	// Prune below min(advance lower bound, finalize): the caller may still
	// poll state anywhere at or above its advanced lower bound, even in the
	// finalized region, so finalize alone never licenses discarding a step
	// the caller could yet interpolate from.
	if t, ok := MinLower(tp.finalizeTime, tp.lower).Time(); ok {
		tp.tl.pruneBefore(t)
	}

	if !tp.complete.Valid && !moreWork && agg.IsMax() && tp.advanceFinal {
		tp.complete = Some(mustTime(tp.finalizeTime))
		tp.needsSignal = true
		tp.opts.logger.Info().Log(`engine complete`)
	}
}

func mustTime[T Ordered[T]](b LowerBound[T]) T {
	t, ok := b.Time()
	if !ok {
		var zero T
		return zero
	}
	return t
}

// nextEventAt aggregates the earliest possible next output event: the
// earliest next event any input has promised, the last saturated snapshot's
// next scheduled time, and the earliest not-yet-applied buffered input.
func (tp *Transpose[T, OE, OS]) nextEventAt() Option[T] {
	next := tp.inputs.AggregateNextEventAt()
	min := func(t T) {
		if cur, ok := next.Get(); !ok || t.Compare(cur) < 0 {
			next = Some(t)
		}
	}
	if last := tp.tl.lastSaturated(); last >= 0 {
		if snap, ok := tp.tl.steps[last].Snapshot(); ok {
			if t, ok := snap.sched.nextTime(); ok {
				min(t)
			}
		}
	}
	if t, ok := tp.tl.nextBufferedTime(); ok {
		min(t)
	}
	return next
}

// Poll implements Source: it drives the step chain to time, then computes
// the OutputState at time by interpolating from the greatest saturated step
// at or before it. Output events accumulated along the way are delivered
// separately, via PollEvents.
func (tp *Transpose[T, OE, OS]) Poll(time T, cx SourceContext) (SourcePoll[T, OE, Option[OS]], error) {
	return tp.pollState(time, cx, false)
}

// PollForget is as Poll, but the result need not be covered by future
// rollbacks: input state is fetched through the inputs' own PollForget, so
// no observation bookkeeping accrues on their behalf.
func (tp *Transpose[T, OE, OS]) PollForget(time T, cx SourceContext) (SourcePoll[T, OE, Option[OS]], error) {
	return tp.pollState(time, cx, true)
}

func (tp *Transpose[T, OE, OS]) pollState(time T, cx SourceContext, forget bool) (SourcePoll[T, OE, Option[OS]], error) {
	if cx.Channel < 0 || cx.Channel >= tp.opts.channelCount {
		return SourcePoll[T, OE, Option[OS]]{}, ErrOutOfBoundsChannel
	}
	tp.wakers.setInterruptWaker(cx.InterruptWaker)
	pending, err := tp.driveTo(time)
	if err != nil {
		return SourcePoll[T, OE, Option[OS]]{}, err
	}
	if pending {
		return InterruptPending[T, OE, Option[OS]](), nil
	}
	entry := tp.channelIPs[cx.Channel]
	if entry != nil && (entry.time.Compare(time) != 0 || entry.forget != forget) {
		// a different (time, forget) on the same channel supersedes the
		// suspended conversation (§4.5.1 step 8).
		tp.dropChannelInterpolation(cx.Channel)
		entry = nil
	}
	if entry == nil {
		anchor, ok := tp.tl.stepFor(time)
		if !ok {
			return StateProgress[T, OE, Option[OS]](None[OS](), tp.nextEventAt(), tp.finalizeTime), nil
		}
		entry = &channelInterpolation[T, OE, OS]{time: time, forget: forget, ip: newInterpolation[T, OE, OS](anchor, time)}
		tp.channelIPs[cx.Channel] = entry
	}
	for {
		p, err := entry.ip.Poll()
		if err != nil {
			tp.dropChannelInterpolation(cx.Channel)
			return SourcePoll[T, OE, Option[OS]]{}, err
		}
		switch p.Kind {
		case InterpolationReady:
			tp.releaseStateRequest(&entry.req)
			delete(tp.channelIPs, cx.Channel)
			return StateProgress[T, OE, Option[OS]](Some(p.State), tp.nextEventAt(), tp.finalizeTime), nil
		case InterpolationNeedsInputState, InterpolationPending:
			state, statePending, err := tp.fetchInputState(&entry.req, p.NeedsInput, time, forget)
			if err != nil {
				tp.dropChannelInterpolation(cx.Channel)
				return SourcePoll[T, OE, Option[OS]]{}, err
			}
			if statePending {
				return InterruptPending[T, OE, Option[OS]](), nil
			}
			if err := entry.ip.ProvideInputState(p.NeedsInput, state); err != nil {
				tp.dropChannelInterpolation(cx.Channel)
				return SourcePoll[T, OE, Option[OS]]{}, err
			}
		}
	}
}

// dropChannelInterpolation abandons the suspended interpolation on a caller
// channel, if any, releasing its snapshot pin and channel reservation.
func (tp *Transpose[T, OE, OS]) dropChannelInterpolation(channel int) {
	entry, ok := tp.channelIPs[channel]
	if !ok {
		return
	}
	entry.ip.Close()
	tp.releaseStateRequest(&entry.req)
	delete(tp.channelIPs, channel)
}

// PollEvents drains and returns buffered output events and any owed
// Rollback as a sequence of interrupts, one per call; returns
// PollInterruptPending once both queues are empty and nothing has changed.
// A pending Rollback is always delivered before any queued event at or
// after its time. Once the finalize watermark or complete has advanced
// since this was last reported, the next call with nothing else to deliver
// reports it via a PollStateProgress carrying the new InterruptLowerBound
// (§4.5.3); once complete has been reported and nothing remains, every
// further call returns ErrLoopTerminated, since no further interrupt can
// ever legitimately arrive.
func (tp *Transpose[T, OE, OS]) PollEvents(time T, interruptWaker Waker) (SourcePoll[T, OE, struct{}], error) {
	tp.wakers.setInterruptWaker(interruptWaker)
	// a pending step chain is indistinguishable here from an idle one:
	// already-queued interrupts are still delivered, and the empty-queue
	// fallthrough is InterruptPending either way.
	if _, err := tp.driveTo(time); err != nil {
		return SourcePoll[T, OE, struct{}]{}, err
	}
	if t, ok := tp.pendingRollback.Get(); ok {
		tp.pendingRollback = None[T]()
		tp.needsSignal = false
		return NewRollback[T, OE, struct{}](t, tp.reportBound(t)), nil
	}
	if len(tp.outputQueue) == 0 {
		if tp.needsSignal {
			tp.needsSignal = false
			return StateProgress[T, OE, struct{}](struct{}{}, tp.nextEventAt(), tp.finalizeTime), nil
		}
		if tp.complete.Valid {
			return SourcePoll[T, OE, struct{}]{}, ErrLoopTerminated
		}
		return InterruptPending[T, OE, struct{}](), nil
	}
	ev := tp.outputQueue[0]
	tp.outputQueue = tp.outputQueue[1:]
	tp.reported = append(tp.reported, reportedMark[T]{time: ev.Time, touched: ev.Touched})
	tp.needsSignal = false
	return NewEvent[T, OE, struct{}](ev.Time, ev.Event, tp.reportBound(ev.Time)), nil
}

// reportBound caps the finalize watermark attached to an interrupt at that
// interrupt's own time: the watermark claims everything strictly below it
// has already been emitted, which is only true up to the time now being
// delivered while the rest of the queue is still in flight.
func (tp *Transpose[T, OE, OS]) reportBound(t T) LowerBound[T] {
	return MinLower(tp.finalizeTime, InclusiveLowerBound(t))
}

// Advance narrows the window this Transpose (and transitively its
// registered inputs) will ever be asked about again.
func (tp *Transpose[T, OE, OS]) Advance(lower LowerBound[T], upper UpperBound[T], interruptWaker Waker) {
	tp.wakers.setInterruptWaker(interruptWaker)
	tp.lower = MaxLower(tp.lower, lower)
	tp.upper = MinUpper(tp.upper, upper)
	if tp.upper.IsMax() {
		tp.advanceFinal = true
	}
	for _, id := range tp.inputs.Inputs() {
		tp.inputs.Advance(id, lower, upper, tp.wakers.interruptWaker(id))
	}
	for id, entry := range tp.interpolations {
		if !tp.lower.Test(entry.ip.target) {
			entry.ip.Close()
			tp.releaseStateRequest(&entry.req)
			delete(tp.interpolations, id)
		}
	}
	for ch, entry := range tp.channelIPs {
		if !tp.lower.Test(entry.time) {
			tp.dropChannelInterpolation(ch)
		}
	}
	if t, ok := MinLower(tp.finalizeTime, tp.lower).Time(); ok {
		tp.tl.pruneBefore(t)
	}
	tp.updateFinalizeTime()
}

// ReleaseChannel abandons the caller's conversation on channel, dropping
// any interpolation suspended on it, and forwards the release to every
// registered input.
func (tp *Transpose[T, OE, OS]) ReleaseChannel(channel int) {
	tp.dropChannelInterpolation(channel)
	for _, id := range tp.inputs.Inputs() {
		tp.inputs.ReleaseChannel(id, channel)
	}
}

// MaxChannel reports the configured channel ceiling (WithChannelCount).
func (tp *Transpose[T, OE, OS]) MaxChannel() int { return tp.opts.channelCount }

// Interpolate opens a new Interpolation anchored to the latest step
// saturated at or before t, returning an id the caller uses with
// PollInterpolation and CloseInterpolation. Fresh per the uuid-keyed
// handle scheme: callers may have many concurrent interpolations open.
func (tp *Transpose[T, OE, OS]) Interpolate(t T) (uuid.UUID, error) {
	anchor, ok := tp.tl.stepFor(t)
	if !ok {
		return uuid.UUID{}, ErrPollBeforeDefault
	}
	id := uuid.New()
	tp.interpolations[id] = &inflightInterpolation[T, OE, OS]{ip: newInterpolation[T, OE, OS](anchor, t)}
	return id, nil
}

// PollInterpolation drives a previously-opened Interpolation as far as it
// can go without waiting. A None result with a nil error means an input
// state it depends on is still pending upstream: poll again once the
// interrupt waker fires. On Some (or on error) the handle is consumed.
func (tp *Transpose[T, OE, OS]) PollInterpolation(id uuid.UUID) (Option[OS], error) {
	entry, ok := tp.interpolations[id]
	if !ok {
		return None[OS](), ErrInvalidOrUsedHandle
	}
	for {
		p, err := entry.ip.Poll()
		if err != nil {
			tp.releaseStateRequest(&entry.req)
			delete(tp.interpolations, id)
			return None[OS](), err
		}
		switch p.Kind {
		case InterpolationReady:
			tp.releaseStateRequest(&entry.req)
			delete(tp.interpolations, id)
			return Some(p.State), nil
		case InterpolationNeedsInputState, InterpolationPending:
			state, pending, err := tp.fetchInputState(&entry.req, p.NeedsInput, entry.ip.target, false)
			if err != nil {
				entry.ip.Close()
				tp.releaseStateRequest(&entry.req)
				delete(tp.interpolations, id)
				return None[OS](), err
			}
			if pending {
				return None[OS](), nil
			}
			if err := entry.ip.ProvideInputState(p.NeedsInput, state); err != nil {
				entry.ip.Close()
				tp.releaseStateRequest(&entry.req)
				delete(tp.interpolations, id)
				return None[OS](), err
			}
		}
	}
}

// CloseInterpolation releases a previously-opened Interpolation without
// polling it to completion.
func (tp *Transpose[T, OE, OS]) CloseInterpolation(id uuid.UUID) {
	if entry, ok := tp.interpolations[id]; ok {
		entry.ip.Close()
		tp.releaseStateRequest(&entry.req)
		delete(tp.interpolations, id)
	}
}
