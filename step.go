// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package transpose

// saturation is a Step's tri-state lifecycle: Unsaturated (nothing run yet),
// Saturating (a handler goroutine is in flight, suspended on input state or
// event delivery), Saturated (a snapshot has been produced). Exactly one
// step in a chain may be Saturating at a time; see timeline.go.
type saturation uint8

const (
	Unsaturated saturation = iota
	Saturating
	Saturated
)

func (s saturation) String() string {
	switch s {
	case Unsaturated:
		return "unsaturated"
	case Saturating:
		return "saturating"
	case Saturated:
		return "saturated"
	default:
		return "invalid"
	}
}

// stepKind tags what kind of transition a Step performs.
type stepKind uint8

const (
	stepInit stepKind = iota
	stepInput
	stepScheduled
)

func (k stepKind) String() string {
	switch k {
	case stepInit:
		return "init"
	case stepInput:
		return "input"
	case stepScheduled:
		return "scheduled"
	default:
		return "invalid"
	}
}

// StepPollKind tags the result of Step.Poll.
type StepPollKind uint8

const (
	// StepSaturated means the step is not (or is no longer) running: either
	// it was already saturated, or this call just finished saturating it.
	StepSaturated StepPollKind = iota
	// StepOutputEvent carries one emitted output event; the handler
	// goroutine has already been unblocked, call Poll again to continue.
	StepOutputEvent
	// StepNeedsInputState means the handler has just suspended waiting on
	// the state of NeedsInput at the step's time; call ProvideInputState
	// then Poll again.
	StepNeedsInputState
	// StepPending means the handler is still suspended on the input-state
	// request previously reported via StepNeedsInputState (repeated in
	// NeedsInput): no progress is possible until ProvideInputState is
	// called, so the caller should surface its own Pending upward rather
	// than wait here.
	StepPending
)

// StepPoll is the result of one Step.Poll call.
type StepPoll[OE any] struct {
	Kind       StepPollKind
	Event      OE
	NeedsInput InputID
}

// saturatingRun holds the small set of single-slot channels that let a
// handler goroutine suspend mid-transition and hand control back to the
// poller, the concrete realization of coroutine-style suspension over
// plain goroutines plus channels.
type saturatingRun[T Ordered[T], OE any, OS any] struct {
	stateReq  chan InputID
	stateResp chan any
	emit      chan OE
	ack       chan struct{}
	done      chan error // buffered 1; receives the handler's final error
	cancel    chan struct{}
	pending   InputID // last InputID returned via StepNeedsInputState
	waiting   bool    // true between a StepNeedsInputState result and the matching ProvideInputState

	// swallowed counts StepOutputEvent deliveries from the handler goroutine
	// during this run, including ones suppressed against eventCount; see
	// Step.Poll.
	swallowed int
}

// Step is one transition from a previous snapshot to a new one: Init, one
// coalesced batch of same-time input events, or one coalesced batch of
// same-time scheduled events.
type Step[T Ordered[T], OE any, OS any] struct {
	seq  uint64
	kind stepKind
	time T

	inputEvents []erasedInputEvent[T]
	scheduled   []scheduleEntry[T]

	state saturation
	prev  *snapshot[T, OE, OS]
	snap  *snapshot[T, OE, OS]
	run   *saturatingRun[T, OE, OS]

	// prevClone holds a schedule-drained clone of the predecessor's snapshot
	// built eagerly by timeline.appendNextStep, so that the predecessor's
	// own Saturated snapshot is never mutated by deciding what comes next.
	// Consumed (and nilled) by StartSaturateTake once saturation begins.
	// Without this, rolling back to an earlier step and re-deriving forward
	// would find its schedule already drained by the steps being discarded.
	prevClone *snapshot[T, OE, OS]

	// touched records which registered inputs this step's transition
	// consumed, either as a direct Input-kind event or via a GetInputState
	// suspension serviced during saturation. Used to compute the minimal
	// rollback time when a retroactive interrupt arrives for one of them.
	touched map[InputID]struct{}

	// interpolations anchored to this step's snapshot; the step's snapshot
	// may not be discarded (desaturated or pruned) while this is non-empty.
	interpolations int

	// eventCount is the number of StepOutputEvent results this step has ever
	// reported to its Poll caller, across every Desaturate/re-saturate cycle.
	// Preserved by Desaturate (never reset) and consulted by Poll to swallow
	// replayed output on re-saturation; see §4.2 Desaturation.
	eventCount int
}

// touch records that this step's transition consumed input.
func (s *Step[T, OE, OS]) touch(input InputID) {
	if s.touched == nil {
		s.touched = make(map[InputID]struct{}, 1)
	}
	s.touched[input] = struct{}{}
}

// Touched reports every input this step's transition consumed.
func (s *Step[T, OE, OS]) Touched() map[InputID]struct{} { return s.touched }

// newInitStep constructs the always-first Init step, initially Unsaturated.
func newInitStep[T Ordered[T], OE any, OS any](seq uint64, t T) *Step[T, OE, OS] {
	return &Step[T, OE, OS]{seq: seq, kind: stepInit, time: t, state: Unsaturated}
}

// newScheduledStep constructs an unsaturated step for one or more scheduled
// entries that share an emission time.
func newScheduledStep[T Ordered[T], OE any, OS any](seq uint64, t T, entries []scheduleEntry[T]) *Step[T, OE, OS] {
	return &Step[T, OE, OS]{seq: seq, kind: stepScheduled, time: t, scheduled: entries, state: Unsaturated}
}

// newInputStep constructs an unsaturated step for one or more input events
// that share a time, already ordered per inputEventLess.
func newInputStep[T Ordered[T], OE any, OS any](seq uint64, t T, events []erasedInputEvent[T]) *Step[T, OE, OS] {
	s := &Step[T, OE, OS]{seq: seq, kind: stepInput, time: t, inputEvents: events, state: Unsaturated}
	for _, ev := range events {
		s.touch(ev.Input)
	}
	return s
}

// Time returns the step's time.
func (s *Step[T, OE, OS]) Time() T { return s.time }

// Saturation reports the step's current lifecycle state.
func (s *Step[T, OE, OS]) Saturation() saturation { return s.state }

// Snapshot returns the step's produced snapshot, if Saturated.
func (s *Step[T, OE, OS]) Snapshot() (*snapshot[T, OE, OS], bool) {
	if s.state != Saturated {
		return nil, false
	}
	return s.snap, true
}

// StartSaturateTake begins saturating by consuming prev directly: prev must
// not be used by any other step afterward. Used when prev's Step is about
// to be discarded (the common, no-branch-needed path).
func (s *Step[T, OE, OS]) StartSaturateTake(prev *snapshot[T, OE, OS]) error {
	return s.startSaturate(prev)
}

// StartSaturateClone begins saturating from an independent clone of prev,
// leaving prev itself untouched for some other branch (e.g. an
// interpolation still reading it, or another step that will itself clone
// it). Grounded on the branching requirement: a retroactive interrupt
// folded into an already-saturated prefix must not corrupt the snapshot an
// in-flight Interpolation still holds.
func (s *Step[T, OE, OS]) StartSaturateClone(prev *snapshot[T, OE, OS]) error {
	return s.startSaturate(prev.clone())
}

func (s *Step[T, OE, OS]) startSaturate(prev *snapshot[T, OE, OS]) error {
	if s.state != Unsaturated {
		return ErrSelfNotUnsaturated
	}
	if prev.time.Compare(s.time) > 0 {
		return ErrIncorrectPrevious
	}
	s.prev = prev
	s.state = Saturating
	s.run = &saturatingRun[T, OE, OS]{
		stateReq:  make(chan InputID),
		stateResp: make(chan any),
		emit:      make(chan OE),
		ack:       make(chan struct{}, 1),
		done:      make(chan error, 1),
		cancel:    make(chan struct{}),
	}
	base := baseContext[T]{currentTime: s.time, stateReq: s.run.stateReq, stateResp: s.run.stateResp, done: s.run.cancel}
	switch s.kind {
	case stepInit:
		ctx := &InitContext[T, OE]{baseContext: base, sched: prev.sched, emit: s.run.emit, ack: s.run.ack}
		go func() { s.run.done <- prev.transposer.Init(ctx) }()
	case stepScheduled:
		ctx := &UpdateContext[T, OE]{InitContext[T, OE]{baseContext: base, sched: prev.sched, emit: s.run.emit, ack: s.run.ack}}
		entries := s.scheduled
		go func() {
			var err error
			for _, e := range entries {
				if err = prev.transposer.HandleScheduledEvent(ctx, e.payload); err != nil {
					break
				}
			}
			s.run.done <- err
		}()
	case stepInput:
		ctx := &UpdateContext[T, OE]{InitContext[T, OE]{baseContext: base, sched: prev.sched, emit: s.run.emit, ack: s.run.ack}}
		events := s.inputEvents
		transposer := prev.transposer
		go func() {
			var err error
			for _, ev := range events {
				if !transposer.CanHandle(ev.Input, s.time, ev.Event) {
					continue
				}
				if err = transposer.HandleInputEvent(ctx, ev.Input, ev.Event); err != nil {
					break
				}
			}
			s.run.done <- err
		}()
	}
	return nil
}

// Poll drives the in-flight handler goroutine one step forward and reports
// what it needs, if anything, to continue. Calling Poll on an Unsaturated
// or Saturated step is a no-op that reports StepSaturated.
func (s *Step[T, OE, OS]) Poll() (StepPoll[OE], error) {
	if s.state != Saturating {
		return StepPoll[OE]{Kind: StepSaturated}, nil
	}
	if s.run.waiting {
		return StepPoll[OE]{Kind: StepPending, NeedsInput: s.run.pending}, nil
	}
	for {
		select {
		case err := <-s.run.done:
			if err != nil {
				s.state = Unsaturated
				s.run = nil
				return StepPoll[OE]{}, err
			}
			s.snap = s.prev
			s.prev = nil
			s.snap.time = s.time
			s.state = Saturated
			s.run = nil
			return StepPoll[OE]{Kind: StepSaturated}, nil
		case ev := <-s.run.emit:
			s.run.swallowed++
			if s.run.swallowed <= s.eventCount {
				// Re-saturating after a Desaturate: this event was already
				// delivered to the caller on a prior run, so acknowledge the
				// handler and keep going without reporting it again (§4.2
				// Desaturation, §8 property 6).
				s.run.ack <- struct{}{}
				continue
			}
			s.eventCount++
			s.run.ack <- struct{}{}
			return StepPoll[OE]{Kind: StepOutputEvent, Event: ev}, nil
		case id := <-s.run.stateReq:
			s.run.pending = id
			s.run.waiting = true
			return StepPoll[OE]{Kind: StepNeedsInputState, NeedsInput: id}, nil
		}
	}
}

// ProvideInputState answers the outstanding StepNeedsInputState request for
// input. Returns ErrMismatchedInputState if there is no outstanding request,
// or if input does not match the one last reported via StepNeedsInputState.
func (s *Step[T, OE, OS]) ProvideInputState(input InputID, state any) error {
	if s.state != Saturating || !s.run.waiting || s.run.pending != input {
		return ErrMismatchedInputState
	}
	s.run.waiting = false
	s.run.stateResp <- state
	return nil
}

// Desaturate cancels an in-flight or completed saturation, discarding its
// snapshot and returning the step to Unsaturated. Errors if interpolations
// are still anchored to this step's snapshot. eventCount is left untouched,
// so a subsequent re-saturation's Poll knows how many leading output events
// it must swallow rather than redeliver.
func (s *Step[T, OE, OS]) Desaturate() error {
	if s.interpolations > 0 {
		return ErrPreviousHasActiveInterpolations
	}
	switch s.state {
	case Unsaturated:
		return nil
	case Saturating:
		close(s.run.cancel)
		<-s.run.done
		s.run = nil
		s.prev = nil
	case Saturated:
		s.snap = nil
	}
	s.state = Unsaturated
	return nil
}

// addInterpolation registers an Interpolation anchored to this (Saturated)
// step's snapshot, pinning it against desaturation.
func (s *Step[T, OE, OS]) addInterpolation() { s.interpolations++ }

// releaseInterpolation unregisters a previously-anchored Interpolation.
func (s *Step[T, OE, OS]) releaseInterpolation() {
	if s.interpolations > 0 {
		s.interpolations--
	}
}
