package ribose

import (
	"log"

	"github.com/google/uuid"
)

// Status is the Transductor state machine of spec §4.1.
type Status int

const (
	StatusRunnable Status = iota
	StatusPaused
	StatusWaiting
	StatusStopped
	StatusProxy
)

func (s Status) String() string {
	switch s {
	case StatusRunnable:
		return "RUNNABLE"
	case StatusPaused:
		return "PAUSED"
	case StatusWaiting:
		return "WAITING"
	case StatusStopped:
		return "STOPPED"
	case StatusProxy:
		return "PROXY"
	default:
		return "UNKNOWN"
	}
}

// OutputSink is the (buf, off, len) write contract spec §4.1's `out`
// effector targets — deliberately narrower than io.Writer so a host
// can back it with a ring buffer or a fixed scratch region without an
// adapter.
type OutputSink interface {
	Write(buf []byte, off, length int) error
}

// WriterSink adapts an io.Writer to OutputSink for the common case.
type WriterSink struct{ W interface{ Write([]byte) (int, error) } }

func (s WriterSink) Write(buf []byte, off, length int) error {
	_, err := s.W.Write(buf[off : off+length])
	return err
}

// Warner receives the one-time mark-set-runaway diagnostic (spec
// §4.2). The default implementation writes to the stdlib log package,
// the way the teacher's cmd/ entrypoints do; a host can install its
// own to route the warning elsewhere.
type Warner interface {
	Warn(runID uuid.UUID, msg string)
}

type stdlibWarner struct{}

func (stdlibWarner) Warn(runID uuid.UUID, msg string) {
	log.Printf("ribose: run %s: %s", runID, msg)
}

// Transductor is one bound instance of a Model driving bytes against
// a Target (spec §1, §4). Nothing about it is safe for concurrent
// use from more than one goroutine; the Model it points at is shared
// read-only across many Transductors (spec §5).
type Transductor struct {
	model    *Model
	target   Target
	registry map[int]Effector
	cfg      *Config

	status Status

	inputs      inputStack
	transducers transducerStack

	pendingSignal    int
	hasPendingSignal bool
	eosRaised        bool
	markWarned       bool

	out    OutputSink
	warner Warner

	metrics Metrics
}

// NewTransductor binds a Model to an optional Target and returns a
// Transductor ready to receive input via Push/Signal/Start.
func NewTransductor(model *Model, target Target, cfg *Config) (*Transductor, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	registry, err := buildRegistry(model, target)
	if err != nil {
		return nil, err
	}
	return &Transductor{
		model:    model,
		target:   target,
		registry: registry,
		cfg:      cfg,
		status:   StatusStopped,
		warner:   stdlibWarner{},
		metrics:  Metrics{RunID: uuid.New()},
	}, nil
}

// SetWarner installs the diagnostic sink for mark-set-runaway
// warnings (spec §4.2), replacing the default stdlib log writer.
func (t *Transductor) SetWarner(w Warner) { t.warner = w }

// NewProxyTransductor returns a Transductor in PROXY status: it
// exists only so parameter-compilation code paths shared with live
// Invoke have something to reason about during Model load, and every
// operation that would touch live state refuses (spec §4.1 "PROXY").
func NewProxyTransductor(model *Model) *Transductor {
	return &Transductor{model: model, status: StatusProxy}
}

func buildRegistry(model *Model, target Target) (map[int]Effector, error) {
	registry := make(map[int]Effector, len(model.effectorNames))
	builtins := make(map[string]Effector)
	for _, e := range builtinEffectors() {
		builtins[e.Name()] = e
	}
	for ord, name := range model.effectorNames {
		if e, ok := builtins[name]; ok {
			registry[ord] = e
			continue
		}
		if target == nil {
			return nil, ModelLoadError{Path: model.TargetClass, Reason: "effector " + name + " is not a built-in and no target was supplied"}
		}
		e, ok := target.Effector(name)
		if !ok {
			return nil, ModelLoadError{Path: model.TargetClass, Reason: "target does not supply effector " + name}
		}
		registry[ord] = e
	}
	return registry, nil
}

func (t *Transductor) warn(msg string) {
	if t.warner != nil {
		t.warner.Warn(t.metrics.RunID, msg)
	}
}

// Status reports the Transductor's current state.
func (t *Transductor) Status() Status { return t.status }

// Metrics returns a snapshot of the run accumulators.
func (t *Transductor) Metrics() Metrics {
	m := t.metrics
	m.BytesRetained = t.inputs.retainedBytes
	return m
}

// SetOutput installs the sink the `out` effector writes to.
func (t *Transductor) SetOutput(sink OutputSink) { t.out = sink }

// Push hands a primary-stream byte buffer to the input stack (spec
// §4.2 "Push").
func (t *Transductor) Push(buf []byte) error {
	if t.status == StatusProxy {
		return ProxyMisuseError{"Push"}
	}
	t.inputs.push(buf, len(buf), originPrimary)
	t.eosRaised = false
	if t.status == StatusWaiting {
		t.status = StatusRunnable
	}
	return nil
}

// Signal queues an out-of-band signal ordinal ahead of the next byte
// read from the input stack (spec §4.2 "Signal").
func (t *Transductor) Signal(ordinal int) error {
	if t.status == StatusProxy {
		return ProxyMisuseError{"Signal"}
	}
	t.pendingSignal = ordinal
	t.hasPendingSignal = true
	return nil
}

// Start pushes a fresh transducer frame (spec §4.2 "Start").
func (t *Transductor) Start(name string) error {
	if t.status == StatusProxy {
		return ProxyMisuseError{"Start"}
	}
	ord, err := t.model.TransducerOrdinal(name)
	if err != nil {
		return err
	}
	tr := t.model.Transducer(ord)
	t.transducers.push(newTransducerFrame(ord, tr.Initial, tr.NumFields()))
	if t.status == StatusStopped || t.status == StatusPaused {
		t.status = StatusRunnable
	}
	return nil
}

// Stop empties both stacks and clears the mark set: a full reset to
// the Transductor's initial idle state (spec §4.2 "Stop"), distinct
// from the `stop` built-in effector, which only pops one frame.
func (t *Transductor) Stop() error {
	if t.status == StatusProxy {
		return ProxyMisuseError{"Stop"}
	}
	t.transducers = nil
	t.inputs.clear()
	t.hasPendingSignal = false
	t.eosRaised = false
	t.status = StatusStopped
	return nil
}

// Recycle reports whether buf may be reused by the caller: false if
// it still backs a frame reachable through an armed mark set (spec
// §4.2 "Recycle").
func (t *Transductor) Recycle(buf []byte) bool {
	return !t.inputs.retains(buf)
}

// Run drives the per-byte dispatch loop until the Transductor halts
// for one of the reasons spec §4.1 enumerates: the transducer stack
// empties (WAITING/STOPPED), an effect vector pauses it (PAUSED), or
// an unrecoverable domain error occurs (error return).
func (t *Transductor) Run() (Status, error) {
	if t.status == StatusProxy {
		return t.status, ProxyMisuseError{"Run"}
	}
	for {
		t.compactInput()

		if t.transducers.empty() {
			if t.inputs.empty() && !t.hasPendingSignal {
				t.status = StatusStopped
			} else {
				t.status = StatusWaiting
			}
			return t.status, nil
		}

		input, halted := t.nextInput()
		if halted {
			return t.status, nil
		}

		frame := t.transducers.top()
		trans := t.model.Transducer(frame.transducer)

		cell, vec, err := t.stepWithRecovery(trans, frame, input)
		if err != nil {
			return t.status, err
		}
		frame.state = cell.Next

		result, err := t.dispatch(input, vec)
		if err != nil {
			return t.status, err
		}

		if result.Flags&FlagSignal != 0 {
			t.pendingSignal = result.Signal
			t.hasPendingSignal = true
		}
		if result.Flags&FlagStopped != 0 {
			t.transducers = nil
			t.inputs.clear()
			t.status = StatusStopped
			return t.status, nil
		}
		if result.Flags&FlagPause != 0 {
			t.status = StatusPaused
			return t.status, nil
		}
	}
}

// stepWithRecovery looks up (state, input) in the kernel and, on a
// domain error, substitutes nul and retries once in the same state
// (spec §4.1 step 4). A domain error on nul itself is unrecoverable.
func (t *Transductor) stepWithRecovery(trans *Transducer, frame *transducerFrame, input int) (kernelCell, effectVector, error) {
	t.metrics.ClassProbes++
	cls := int(trans.InputEquivalents[input])
	cell, vec := trans.step(frame.state, cls)
	if vec != nil {
		return cell, vec, nil
	}
	t.metrics.DomainErrors++
	if input == SigNul {
		return cell, nil, DomainError{Transducer: trans.Name, State: frame.state, Input: input}
	}
	return t.stepWithRecovery(trans, frame, SigNul)
}

// dispatch runs every step of an effect vector against the live
// Context and OR-combines the flags (spec §4.1 step 5).
func (t *Transductor) dispatch(input int, vec effectVector) (Result, error) {
	ctx := &Context{t: t, current: input}
	var acc Result
	sawSignal := false
	for _, step := range vec {
		e, ok := t.registry[step.Effector]
		if !ok {
			return Result{}, EffectorError{Effector: t.model.EffectorName(step.Effector), Reason: "not in the bound registry"}
		}
		var param P
		if step.Param != paramNone {
			param = t.model.Param(step.Param)
		}
		r, err := e.Invoke(ctx, param)
		if err != nil {
			return Result{}, err
		}
		if r.Flags&FlagSignal != 0 {
			if sawSignal && t.cfg.GetBool("engine.validate_vectors") {
				return Result{}, EffectorError{Effector: e.Name(), Reason: "more than one effector in the vector raised a signal"}
			}
			if !sawSignal {
				acc.Signal = r.Signal
			}
			sawSignal = true
		}
		acc.Flags |= r.Flags
	}
	return acc, nil
}

// compactInput pops every fully-consumed frame off the top of the
// input stack. It warns once the first time a primary frame is
// exhausted while the mark set is armed, and releases the mark set
// when popping a primary frame leaves the stack empty (spec §4.2
// "Mark"/"Reset"). Called before every dispatch decision so emptiness
// checks never see a frame that has nothing left to give.
func (t *Transductor) compactInput() {
	for {
		top := t.inputs.top()
		if top == nil || !top.exhausted() {
			return
		}
		if top.origin == originPrimary && t.inputs.armed && !t.markWarned {
			t.markWarned = true
			if t.cfg.GetBool("engine.mark_runaway_warn") {
				t.warn("a primary input buffer was fully consumed while the mark set is still armed; reset may replay more than expected")
			}
		}
		_, primaryEnded := t.inputs.pop()
		if primaryEnded && t.inputs.armed {
			t.inputs.release()
		}
	}
}

// nextInput returns the next input value (a byte 0-255 or a signal
// ordinal >= 256) for stepWithRecovery, handling the pending-signal
// queue and end-of-stream (spec §4.1 step 1, §4.2 "Signal"). halted
// is true when Run should return without a value: the whole input
// stack and the synthesized eos signal have both been consumed.
// Assumes compactInput has already run, so any frame on top has at
// least one byte left to give.
func (t *Transductor) nextInput() (value int, halted bool) {
	if t.hasPendingSignal {
		v := t.pendingSignal
		t.hasPendingSignal = false
		return v, false
	}

	if top := t.inputs.top(); top != nil {
		b := top.buf[top.pos]
		top.pos++
		t.metrics.BytesConsumed++
		return int(b), false
	}

	if !t.eosRaised {
		t.eosRaised = true
		return SigEos, false
	}
	t.status = StatusWaiting
	return 0, true
}
