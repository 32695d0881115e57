package ribose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHelloWorld builds the transducer spec §8's "HelloWorld" scenario
// describes by hand (ModelBuilder stands in for the external automata
// compiler, spec §1) and checks the exact emitted bytes.
func TestHelloWorld(t *testing.T) {
	b := NewModelBuilder("test.target")

	clearOrd := b.Effector("clear")
	pasteOrd := b.Effector("paste")
	outOrd := b.Effector("out")
	stopOrd := b.Effector("stop")

	prologueParam := b.Param(mustCompile(pasteEffector{}, []Token{literalToken("(-: ")}))
	epilogueParam := b.Param(mustCompile(outEffector{}, []Token{fieldToken(""), literalToken(" :-)\n")}))

	equiv := testEquiv(map[int]int{
		'h': 1, 'e': 2, 'l': 3, 'o': 4, ' ': 5, 'w': 6, 'r': 7, 'd': 8,
		SigNil: 10, SigEos: 12,
	})

	tb := b.Transducer("greet")
	tb.On(0, 10, 1, effectVector{{Effector: clearOrd, Param: paramNone}, {Effector: pasteOrd, Param: prologueParam}})
	word := "hello world"
	classOf := func(c byte) int {
		return map[byte]int{'h': 1, 'e': 2, 'l': 3, 'o': 4, ' ': 5, 'w': 6, 'r': 7, 'd': 8}[c]
	}
	for i := 0; i < len(word); i++ {
		tb.On(i+1, classOf(word[i]), i+2, effectVector{{Effector: pasteOrd, Param: paramNone}})
	}
	tb.On(len(word)+1, 12, len(word)+2, effectVector{
		{Effector: outOrd, Param: epilogueParam},
		{Effector: clearOrd, Param: paramNone},
		{Effector: stopOrd, Param: paramNone},
	})
	tb.Build(equiv, 13)

	model := b.Build()
	tr, err := NewTransductor(model, nil, nil)
	require.NoError(t, err)

	sink := &captureSink{}
	tr.SetOutput(sink)

	require.NoError(t, tr.Start("greet"))
	require.NoError(t, tr.Signal(SigNil))
	require.NoError(t, tr.Push([]byte("hello world")))

	status, err := tr.Run()
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, status)
	assert.Equal(t, "(-: hello world :-)\n", string(sink.buf))
}

// TestDomainErrorRecovery is spec §8's "Domain recovery" scenario:
// bytes with no transition are recovered via an injected nul signal,
// twice, and the run ends STOPPED with two domain errors recorded.
func TestDomainErrorRecovery(t *testing.T) {
	b := NewModelBuilder("test.target")
	stopOrd := b.Effector("stop")

	equiv := testEquiv(map[int]int{
		'\n':   1,
		SigNul: 2,
		SigEos: 3,
	})

	tb := b.Transducer("loop")
	tb.On(0, 1, 0, effectVector{})
	tb.On(0, 2, 0, effectVector{}) // nul recovery: stay put, no-op
	tb.On(0, 3, 1, effectVector{{Effector: stopOrd, Param: paramNone}})
	tb.Build(equiv, 4)

	model := b.Build()
	tr, err := NewTransductor(model, nil, nil)
	require.NoError(t, err)
	require.NoError(t, tr.Start("loop"))
	require.NoError(t, tr.Push([]byte("\x01\x02\n")))

	status, err := tr.Run()
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, status)
	assert.Equal(t, int64(2), tr.Metrics().DomainErrors)
}

// TestDomainErrorUnrecoverable checks that a model with no recovery
// transition for nul surfaces a fatal DomainError from Run, per spec
// §4.1 step 4 / §7 "Domain error, fatal".
func TestDomainErrorUnrecoverable(t *testing.T) {
	b := NewModelBuilder("test.target")
	equiv := testEquiv(nil) // every byte maps to class 0, which has no transition anywhere
	tb := b.Transducer("stuck")
	tb.Build(equiv, 1)

	model := b.Build()
	tr, err := NewTransductor(model, nil, nil)
	require.NoError(t, err)
	require.NoError(t, tr.Start("stuck"))
	require.NoError(t, tr.Push([]byte("x")))

	_, err = tr.Run()
	require.Error(t, err)
	var domainErr DomainError
	assert.ErrorAs(t, err, &domainErr)
}

// TestMarkResetRoundTrip builds a tiny echo transducer driven by two
// in-band control bytes (mark/reset triggers) and checks spec §8
// invariant 2: transducing B with mark armed at m and consumed at r
// emits B[0..m) + B[m..r) + B[m..].
func TestMarkResetRoundTrip(t *testing.T) {
	const (
		ctrlMark  = 0x01
		ctrlReset = 0x02
	)

	b := NewModelBuilder("test.target")
	pasteOrd := b.Effector("paste")
	outOrd := b.Effector("out")
	clearOrd := b.Effector("clear")
	markOrd := b.Effector("mark")
	resetOrd := b.Effector("reset")

	outParam := b.Param(mustCompile(outEffector{}, []Token{fieldToken("")}))

	equiv := testEquiv(map[int]int{
		'a': 1, 'b': 1, 'c': 1, 'd': 1, 'e': 1, 'f': 1,
		ctrlMark:  2,
		ctrlReset: 3,
		SigEos:    4,
	})

	echo := effectVector{{Effector: pasteOrd, Param: paramNone}, {Effector: outOrd, Param: outParam}, {Effector: clearOrd, Param: paramNone}}

	tb := b.Transducer("echo")
	tb.On(0, 1, 0, echo)
	tb.On(0, 2, 0, effectVector{{Effector: markOrd, Param: paramNone}})
	tb.On(0, 3, 1, effectVector{{Effector: resetOrd, Param: paramNone}})
	tb.On(0, 4, 0, effectVector{})
	tb.On(1, 1, 1, echo)
	tb.On(1, 3, 1, effectVector{}) // second encounter of the reset byte: no-op, breaks the loop
	tb.On(1, 4, 1, effectVector{})
	tb.Build(equiv, 5)

	model := b.Build()
	tr, err := NewTransductor(model, nil, nil)
	require.NoError(t, err)

	sink := &captureSink{}
	tr.SetOutput(sink)
	require.NoError(t, tr.Start("echo"))

	buf := []byte{'a', 'b', ctrlMark, 'c', 'd', ctrlReset, 'e', 'f'}
	require.NoError(t, tr.Push(buf))
	status, err := tr.Run()
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, status)
	assert.Equal(t, "abcdcdef", string(sink.buf))
}

// TestSignalPriorityOverPendingBytes arms a counter, decrements it to
// zero with a run of `count` invocations that also echo a marker byte,
// and checks that the signal `count` queues on hitting zero is
// consumed as the *next* transition even though an unread byte is
// still sitting on the input stack (spec §8's "Signal round-trip via
// effector return" scenario, and testable property 5).
func TestSignalPriorityOverPendingBytes(t *testing.T) {
	const (
		armByte  = 0x01
		tickByte = 0x02
	)

	b := NewModelBuilder("test.target")
	countOrd := b.Effector("count")
	outOrd := b.Effector("out")

	doneSig := b.Signal("done")

	armParam := b.Param(mustCompile(countEffector{}, []Token{literalToken("3"), signalToken("done")}))
	dotParam := b.Param(mustCompile(outEffector{}, []Token{literalToken(".")}))
	doneParam := b.Param(mustCompile(outEffector{}, []Token{literalToken("done\n")}))

	equiv := testEquiv(map[int]int{
		armByte:  1,
		tickByte: 2,
		doneSig:  3,
		SigEos:   4,
	})

	tb := b.Transducer("counter")
	tb.On(0, 1, 0, effectVector{{Effector: countOrd, Param: armParam}})
	tb.On(0, 2, 0, effectVector{{Effector: countOrd, Param: paramNone}, {Effector: outOrd, Param: dotParam}})
	tb.On(0, 3, 0, effectVector{{Effector: outOrd, Param: doneParam}})
	tb.On(0, 4, 0, effectVector{})
	tb.Build(equiv, 5)

	model := b.Build()
	tr, err := NewTransductor(model, nil, nil)
	require.NoError(t, err)

	sink := &captureSink{}
	tr.SetOutput(sink)
	require.NoError(t, tr.Start("counter"))

	// arm, 3 ticks (the third hits zero and queues !done), plus one
	// more buffered tick that must NOT run before the queued signal.
	require.NoError(t, tr.Push([]byte{armByte, tickByte, tickByte, tickByte, tickByte}))
	status, err := tr.Run()
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, status)
	assert.Equal(t, "...done\n.", string(sink.buf))
}

// TestMetricsClassProbesAndRetainedBytes checks the two counters
// metrics.go added alongside BytesConsumed/DomainErrors (SPEC_FULL.md
// §C): every kernel lookup — including nul-recovery retries — counts
// as a class probe, and BytesRetained tracks the live mark set's
// backing bytes, dropping to zero once the marked primary frame is
// fully consumed and the mark set releases.
func TestMetricsClassProbesAndRetainedBytes(t *testing.T) {
	b := NewModelBuilder("test.target")
	markOrd := b.Effector("mark")
	pauseOrd := b.Effector("pause")
	equiv := testEquiv(map[int]int{
		'p':    1,
		'\n':   1,
		0x01:   2, // mark-and-pause trigger
		SigNul: 3,
		SigEos: 4,
	})
	tb := b.Transducer("t")
	tb.On(0, 1, 0, effectVector{})
	tb.On(0, 2, 0, effectVector{{Effector: markOrd, Param: paramNone}, {Effector: pauseOrd, Param: paramNone}})
	tb.On(0, 3, 0, effectVector{}) // nul recovery: no-op
	tb.On(0, 4, 0, effectVector{})
	tb.Build(equiv, 5)
	model := b.Build()

	tr, err := NewTransductor(model, nil, nil)
	require.NoError(t, err)
	require.NoError(t, tr.Start("t"))

	buf := []byte{0x01, 'p', '\n', 0xFF}
	require.NoError(t, tr.Push(buf))

	status, err := tr.Run()
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, status)

	m := tr.Metrics()
	assert.Equal(t, int64(0), m.DomainErrors)
	assert.Equal(t, int64(1), m.ClassProbes)
	assert.Equal(t, int64(len(buf)), m.BytesRetained, "the whole frame is retained once mark() arms on it, not just the unread suffix")

	status, err = tr.Run()
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, status)

	m = tr.Metrics()
	assert.Equal(t, int64(1), m.DomainErrors)
	assert.Equal(t, int64(6), m.ClassProbes, "1 before the pause, plus 3 clean inputs ('p', '\\n', eos), plus 2 for the 0xFF nul-recovery retry")
	assert.Equal(t, int64(0), m.BytesRetained, "the marked frame was fully consumed, releasing the mark set")
}

func TestStopIdempotent(t *testing.T) {
	b := NewModelBuilder("test.target")
	equiv := testEquiv(nil)
	b.Transducer("t").Build(equiv, 1)
	model := b.Build()

	tr, err := NewTransductor(model, nil, nil)
	require.NoError(t, err)
	require.NoError(t, tr.Start("t"))
	require.NoError(t, tr.Push([]byte("x")))

	require.NoError(t, tr.Stop())
	first := tr.Status()
	require.NoError(t, tr.Stop())
	second := tr.Status()
	assert.Equal(t, StatusStopped, first)
	assert.Equal(t, first, second)
}

func TestProxyMisuse(t *testing.T) {
	b := NewModelBuilder("test.target")
	equiv := testEquiv(nil)
	b.Transducer("t").Build(equiv, 1)
	model := b.Build()

	tr := NewProxyTransductor(model)
	assert.Equal(t, StatusProxy, tr.Status())

	_, err := tr.Run()
	assert.Error(t, err)
	assert.Error(t, tr.Push([]byte("x")))
	assert.Error(t, tr.Signal(SigNil))
	assert.Error(t, tr.Start("t"))
	assert.Error(t, tr.Stop())
}

// TestStartUnknownTransducer checks spec §4.2 "Start" fails with
// transducer-not-found for an unregistered name.
func TestStartUnknownTransducer(t *testing.T) {
	b := NewModelBuilder("test.target")
	equiv := testEquiv(nil)
	b.Transducer("known").Build(equiv, 1)
	model := b.Build()

	tr, err := NewTransductor(model, nil, nil)
	require.NoError(t, err)
	err = tr.Start("unknown")
	var notFound TransducerNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

// TestOutWithNoSinkErrors pins spec §9's open question: `out` with no
// sink installed must fail, never fall back to stdout or silently
// no-op (SPEC_FULL.md §D.1).
func TestOutWithNoSinkErrors(t *testing.T) {
	b := NewModelBuilder("test.target")
	outOrd := b.Effector("out")
	outParam := b.Param(mustCompile(outEffector{}, []Token{literalToken("x")}))
	equiv := testEquiv(map[int]int{'x': 1})
	tb := b.Transducer("t")
	tb.On(0, 1, 0, effectVector{{Effector: outOrd, Param: outParam}})
	tb.Build(equiv, 2)
	model := b.Build()

	tr, err := NewTransductor(model, nil, nil)
	require.NoError(t, err)
	require.NoError(t, tr.Start("t"))
	require.NoError(t, tr.Push([]byte("x")))

	_, err = tr.Run()
	require.Error(t, err)
	var effErr EffectorError
	assert.ErrorAs(t, err, &effErr)
}

// TestFieldsFreshOnPush pins SPEC_FULL.md §D.2: a transducer's fields
// never survive a pop-and-later-repush of the same transducer.
func TestFieldsFreshOnPush(t *testing.T) {
	b := NewModelBuilder("test.target")
	pasteOrd := b.Effector("paste")
	stopOrd := b.Effector("stop")
	equiv := testEquiv(map[int]int{'x': 1, 'y': 2, SigEos: 3})
	tb := b.Transducer("t")
	tb.On(0, 1, 0, effectVector{{Effector: pasteOrd, Param: paramNone}})
	tb.On(0, 2, 0, effectVector{{Effector: stopOrd, Param: paramNone}})
	tb.On(0, 3, 0, effectVector{})
	tb.Build(equiv, 4)
	model := b.Build()

	tr, err := NewTransductor(model, nil, nil)
	require.NoError(t, err)

	require.NoError(t, tr.Start("t"))
	require.NoError(t, tr.Push([]byte("xy")))
	_, err = tr.Run()
	require.NoError(t, err)
	firstFrame := tr.transducers // empty now, already popped by stop

	assert.Empty(t, firstFrame)

	require.NoError(t, tr.Start("t"))
	frame := tr.transducers.top()
	assert.Equal(t, 0, frame.field(0).Len(), "fields must be empty on a fresh push, not inherit the prior activation")
}
