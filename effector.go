package ribose

import "strconv"

// Flags is the bitset an effector's Invoke returns (spec §4.1 step 5).
type Flags uint16

const FlagNone Flags = 0

const (
	FlagTransducerPushed Flags = 1 << iota
	FlagTransducerPopped
	FlagInputPushed
	FlagCounterHitZero
	FlagPause
	FlagStopped
	FlagSignal
)

// Result is what Invoke returns: the OR-able flags plus the signal
// ordinal when FlagSignal is set. Spec §9 packs this into one machine
// word for languages without sum types; Go doesn't need the packing
// trick, so it's a plain struct.
type Result struct {
	Flags  Flags
	Signal int
}

// Effector is the uniform trait every built-in and target-supplied
// effector implements (spec §9 design note: "a uniform callable
// trait ... plus a ... registry mapping effector ordinals to
// implementations"). The same instance serves both roles spec §4.4
// describes: CompileParameter is only ever called while a Model's
// parameter table is being assembled (no live Context exists yet),
// Invoke only during Run. LoadModelFile/DecodeModel do not call
// CompileParameter: they decode parameters stored already compiled
// in the model file. Built-ins
// hold no per-instance state, so unlike target-supplied effectors
// they need no separate proxy/live split — the "passivation" spec
// §4.4 describes for long-lived proxies is moot when an instance
// never held a live reference to begin with.
type Effector interface {
	Name() string
	CompileParameter(tokens []Token) (P, error)
	Invoke(ctx *Context, param P) (Result, error)
}

// Target is the host-supplied collection of effectors a model can
// reference beyond the built-in set (spec §1, §4.4).
type Target interface {
	Class() string
	Effector(name string) (Effector, bool)
}

// Context is the live-role handle Invoke receives: access to the
// running Transductor's current byte, selected/named fields, and the
// operations (push/pop/signal/counter/mark/output) an effector may
// trigger as a side effect (spec §4.4 "(b) an IOutput-style handle").
type Context struct {
	t       *Transductor
	current int // the byte or signal value driving this transition
}

func (c *Context) CurrentInput() int { return c.current }

func (c *Context) frame() *transducerFrame { return c.t.transducers.top() }

func (c *Context) transducer() *Transducer {
	return c.t.model.Transducer(c.frame().transducer)
}

func (c *Context) fieldByName(name string) (*Field, bool) {
	ord, ok := c.transducer().FieldOrdinal(name)
	if !ok {
		return nil, false
	}
	return c.frame().field(ord), true
}

func (c *Context) Selected() *Field { return c.frame().field(c.frame().selected) }

func (c *Context) SelectAnonymous() { c.frame().selected = 0 }

func (c *Context) SelectField(name string) error {
	ord, ok := c.transducer().FieldOrdinal(name)
	if !ok {
		return EffectorError{Effector: "select", Reason: "unknown field ~" + name}
	}
	c.frame().selected = ord
	return nil
}

func (c *Context) Field(name string) (*Field, bool) { return c.fieldByName(name) }

func (c *Context) AllFields() []*Field {
	f := c.frame()
	for i := range f.fields {
		f.field(i)
	}
	return f.fields
}

func (c *Context) ArmCounter(val, signal int) { c.frame().counter.arm(val, signal) }

func (c *Context) DecrementCounter() (int, bool) { return c.frame().counter.decrement() }

func (c *Context) PushTransducer(ordinal int) {
	tr := c.t.model.Transducer(ordinal)
	c.t.transducers.push(newTransducerFrame(ordinal, tr.Initial, tr.NumFields()))
}

func (c *Context) PopTransducer() { c.t.transducers.pop() }

func (c *Context) PushInput(buf []byte) {
	c.t.inputs.push(buf, len(buf), originPushed)
}

func (c *Context) Mark() { c.t.inputs.mark() }

func (c *Context) Reset() { c.t.inputs.reset() }

func (c *Context) Write(buf []byte) error {
	if c.t.out == nil {
		return EffectorError{Effector: "out", Reason: "no output sink installed"}
	}
	return c.t.out.Write(buf, 0, len(buf))
}

func (c *Context) ResolveSignal(name string) (int, bool) { return c.t.model.SignalOrdinal(name) }

func (c *Context) ResolveTransducer(name string) (int, error) { return c.t.model.TransducerOrdinal(name) }

// --- built-in effectors (spec §4.1) ---

type nopEffector struct{ name string }

func (e nopEffector) Name() string { return e.name }
func (e nopEffector) CompileParameter(tokens []Token) (P, error) {
	if len(tokens) != 0 {
		return nil, ParameterCompileError{Effector: e.name, Reason: "takes no parameters"}
	}
	return nil, nil
}
func (e nopEffector) Invoke(ctx *Context, param P) (Result, error) { return Result{}, nil }

type pasteEffector struct{}

func (pasteEffector) Name() string { return "paste" }
func (pasteEffector) CompileParameter(tokens []Token) (P, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	return compileConcatTokens("paste", tokens)
}
func (pasteEffector) Invoke(ctx *Context, param P) (Result, error) {
	if param == nil {
		ctx.Selected().AppendByte(byte(ctx.current))
		return Result{}, nil
	}
	b, err := resolveConcat(ctx, param.([]concatToken))
	if err != nil {
		return Result{}, err
	}
	ctx.Selected().Append(b)
	return Result{}, nil
}

type selectEffector struct{}

func (selectEffector) Name() string { return "select" }
func (selectEffector) CompileParameter(tokens []Token) (P, error) {
	if len(tokens) == 0 {
		return "", nil
	}
	if len(tokens) != 1 || tokens[0].Kind != TokenField {
		return nil, ParameterCompileError{Effector: "select", Reason: "expects zero or one field token"}
	}
	return tokens[0].Name, nil
}
func (selectEffector) Invoke(ctx *Context, param P) (Result, error) {
	name, _ := param.(string)
	if name == "" {
		ctx.SelectAnonymous()
		return Result{}, nil
	}
	return Result{}, ctx.SelectField(name)
}

type copyEffector struct{ cut bool }

func (e copyEffector) Name() string {
	if e.cut {
		return "cut"
	}
	return "copy"
}
func (e copyEffector) CompileParameter(tokens []Token) (P, error) {
	if len(tokens) != 1 || tokens[0].Kind != TokenField {
		return nil, ParameterCompileError{Effector: e.Name(), Reason: "expects exactly one field token"}
	}
	return tokens[0].Name, nil
}
func (e copyEffector) Invoke(ctx *Context, param P) (Result, error) {
	src, ok := ctx.fieldByName(param.(string))
	if !ok {
		return Result{}, EffectorError{Effector: e.Name(), Reason: "unknown field ~" + param.(string)}
	}
	ctx.Selected().Set(src.Bytes())
	if e.cut {
		src.Clear()
	}
	return Result{}, nil
}

type clearEffector struct{}

func (clearEffector) Name() string { return "clear" }
func (clearEffector) CompileParameter(tokens []Token) (P, error) {
	if len(tokens) == 0 {
		return clearSelected, nil
	}
	if len(tokens) == 1 && tokens[0].Kind == TokenField && tokens[0].Name == "*" {
		return clearAll, nil
	}
	if len(tokens) == 1 && tokens[0].Kind == TokenField {
		return tokens[0].Name, nil
	}
	return nil, ParameterCompileError{Effector: "clear", Reason: "expects nothing, ~*, or a field token"}
}

type clearMode int

const clearSelected clearMode = 0
const clearAll clearMode = 1

func (clearEffector) Invoke(ctx *Context, param P) (Result, error) {
	switch v := param.(type) {
	case nil:
		ctx.Selected().Clear()
	case clearMode:
		if v == clearSelected {
			ctx.Selected().Clear()
		} else {
			for _, f := range ctx.AllFields() {
				f.Clear()
			}
		}
	case string:
		f, ok := ctx.fieldByName(v)
		if !ok {
			return Result{}, EffectorError{Effector: "clear", Reason: "unknown field ~" + v}
		}
		f.Clear()
	}
	return Result{}, nil
}

// countParam is the compiled form of count[n|~f, !sig]. Exactly one
// of literal/fieldName is set for the initial value. The signal name
// survives compilation unresolved: CompileParameter has no Model to
// resolve it against, so — like a field reference — it's looked up
// against the live Model at Invoke time instead.
type countParam struct {
	literal    int
	hasLit     bool
	fieldName  string
	signalName string
}

type countEffector struct{}

func (countEffector) Name() string { return "count" }
func (countEffector) CompileParameter(tokens []Token) (P, error) {
	if len(tokens) == 0 {
		return nil, nil // bare `count`: decrement
	}
	if len(tokens) != 2 || tokens[1].Kind != TokenSignal {
		return nil, ParameterCompileError{Effector: "count", Reason: "expects (n|~field, !signal)"}
	}
	cp := countParam{signalName: tokens[1].Name}
	switch tokens[0].Kind {
	case TokenLiteral:
		n, err := strconv.Atoi(string(tokens[0].Literal))
		if err != nil {
			return nil, ParameterCompileError{Effector: "count", Reason: "initial value must be decimal: " + err.Error()}
		}
		cp.literal, cp.hasLit = n, true
	case TokenField:
		cp.fieldName = tokens[0].Name
	default:
		return nil, ParameterCompileError{Effector: "count", Reason: "initial value must be a literal or a field"}
	}
	return cp, nil
}
func (countEffector) Invoke(ctx *Context, param P) (Result, error) {
	if param == nil {
		sig, hit := ctx.DecrementCounter()
		if !hit {
			return Result{}, nil
		}
		return Result{Flags: FlagCounterHitZero | FlagSignal, Signal: sig}, nil
	}
	cp := param.(countParam)
	val := cp.literal
	if !cp.hasLit {
		f, ok := ctx.fieldByName(cp.fieldName)
		if !ok {
			return Result{}, EffectorError{Effector: "count", Reason: "unknown field ~" + cp.fieldName}
		}
		n, err := strconv.Atoi(string(f.Bytes()))
		if err != nil {
			return Result{}, EffectorError{Effector: "count", Reason: "field is not a decimal value: " + err.Error()}
		}
		val = n
	}
	sig, ok := ctx.ResolveSignal(cp.signalName)
	if !ok {
		return Result{}, EffectorError{Effector: "count", Reason: "unknown signal !" + cp.signalName}
	}
	ctx.ArmCounter(val, sig)
	return Result{}, nil
}

type signalEffector struct{}

func (signalEffector) Name() string { return "signal" }
func (signalEffector) CompileParameter(tokens []Token) (P, error) {
	if len(tokens) != 1 || tokens[0].Kind != TokenSignal {
		return nil, ParameterCompileError{Effector: "signal", Reason: "expects exactly one signal token"}
	}
	return tokens[0].Name, nil
}
func (signalEffector) Invoke(ctx *Context, param P) (Result, error) {
	ord, ok := ctx.ResolveSignal(param.(string))
	if !ok {
		return Result{}, EffectorError{Effector: "signal", Reason: "unknown signal !" + param.(string)}
	}
	return Result{Flags: FlagSignal, Signal: ord}, nil
}

type inEffector struct{}

func (inEffector) Name() string { return "in" }
func (inEffector) CompileParameter(tokens []Token) (P, error) { return compileConcatTokens("in", tokens) }
func (inEffector) Invoke(ctx *Context, param P) (Result, error) {
	b, err := resolveConcat(ctx, param.([]concatToken))
	if err != nil {
		return Result{}, err
	}
	ctx.PushInput(b)
	return Result{Flags: FlagInputPushed}, nil
}

type outEffector struct{}

func (outEffector) Name() string { return "out" }
func (outEffector) CompileParameter(tokens []Token) (P, error) { return compileConcatTokens("out", tokens) }
func (outEffector) Invoke(ctx *Context, param P) (Result, error) {
	b, err := resolveConcat(ctx, param.([]concatToken))
	if err != nil {
		return Result{}, err
	}
	return Result{}, ctx.Write(b)
}

type markEffector struct{}

func (markEffector) Name() string { return "mark" }
func (markEffector) CompileParameter(tokens []Token) (P, error) { return nopCompile("mark", tokens) }
func (markEffector) Invoke(ctx *Context, param P) (Result, error) { ctx.Mark(); return Result{}, nil }

type resetEffector struct{}

func (resetEffector) Name() string { return "reset" }
func (resetEffector) CompileParameter(tokens []Token) (P, error) { return nopCompile("reset", tokens) }
func (resetEffector) Invoke(ctx *Context, param P) (Result, error) { ctx.Reset(); return Result{}, nil }

type startEffector struct{}

func (startEffector) Name() string { return "start" }
func (startEffector) CompileParameter(tokens []Token) (P, error) {
	if len(tokens) != 1 || tokens[0].Kind != TokenTransducer {
		return nil, ParameterCompileError{Effector: "start", Reason: "expects exactly one transducer token"}
	}
	return tokens[0].Name, nil
}
func (startEffector) Invoke(ctx *Context, param P) (Result, error) {
	ord, err := ctx.ResolveTransducer(param.(string))
	if err != nil {
		return Result{}, EffectorError{Effector: "start", Reason: err.Error()}
	}
	ctx.PushTransducer(ord)
	return Result{Flags: FlagTransducerPushed}, nil
}

type pauseEffector struct{}

func (pauseEffector) Name() string { return "pause" }
func (pauseEffector) CompileParameter(tokens []Token) (P, error) { return nopCompile("pause", tokens) }
func (pauseEffector) Invoke(ctx *Context, param P) (Result, error) { return Result{Flags: FlagPause}, nil }

type stopEffector struct{}

func (stopEffector) Name() string { return "stop" }
func (stopEffector) CompileParameter(tokens []Token) (P, error) { return nopCompile("stop", tokens) }
func (stopEffector) Invoke(ctx *Context, param P) (Result, error) {
	ctx.PopTransducer()
	return Result{Flags: FlagTransducerPopped}, nil
}

func nopCompile(name string, tokens []Token) (P, error) {
	if len(tokens) != 0 {
		return nil, ParameterCompileError{Effector: name, Reason: "takes no parameters"}
	}
	return nil, nil
}

// builtinEffectors is the fixed, versioned set spec §6 calls out
// ("the current built-in set's ordinals are fixed as part of the
// versioned ABI"). Order matters: it determines ordinal assignment
// for any Model that doesn't carry its own effector table entries
// for these names.
func builtinEffectors() []Effector {
	return []Effector{
		nopEffector{"nul"},
		nopEffector{"nil"},
		pasteEffector{},
		selectEffector{},
		copyEffector{cut: false},
		copyEffector{cut: true},
		clearEffector{},
		countEffector{},
		signalEffector{},
		inEffector{},
		outEffector{},
		markEffector{},
		resetEffector{},
		startEffector{},
		pauseEffector{},
		stopEffector{},
	}
}
