package ribose

// ModelBuilder assembles a Model programmatically — the in-process
// stand-in for the external automata compiler spec §1 keeps out of
// scope. Tests use it to build small, hand-specified transducers the
// same way the teacher's vm_test.go hand-assembles a *Program instead
// of running the real grammar parser.
type ModelBuilder struct {
	targetClass string
	signals     []string
	effectors   []string
	params      []P
	transducers []*Transducer
}

// NewModelBuilder starts a builder whose signal table begins with the
// four reserved names, as spec §3 requires.
func NewModelBuilder(targetClass string) *ModelBuilder {
	return &ModelBuilder{
		targetClass: targetClass,
		signals:     []string{"nul", "nil", "eol", "eos"},
		effectors:   append([]string(nil), builtinEffectorNames()...),
	}
}

func builtinEffectorNames() []string {
	names := make([]string, 0, 16)
	for _, e := range builtinEffectors() {
		names = append(names, e.Name())
	}
	return names
}

// Signal registers an additional signal name and returns its ordinal.
func (b *ModelBuilder) Signal(name string) int {
	for i, n := range b.signals {
		if n == name {
			return i + signalBase
		}
	}
	b.signals = append(b.signals, name)
	return len(b.signals) - 1 + signalBase
}

// Effector registers a non-built-in effector name (one a Target will
// supply) and returns its ordinal.
func (b *ModelBuilder) Effector(name string) int {
	for i, n := range b.effectors {
		if n == name {
			return i
		}
	}
	b.effectors = append(b.effectors, name)
	return len(b.effectors) - 1
}

// Param registers a compiled parameter value and returns its index.
func (b *ModelBuilder) Param(p P) int {
	b.params = append(b.params, p)
	return len(b.params) - 1
}

// TransducerBuilder assembles one Transducer's kernel state by state.
type TransducerBuilder struct {
	model   *ModelBuilder
	name    string
	initial int
	fields  []string
	rows    map[int][]kernelCellAt
}

type kernelCellAt struct {
	cls    int
	cell   kernelCell
	vector effectVector
}

// Transducer starts a new TransducerBuilder bound back to b.
func (b *ModelBuilder) Transducer(name string) *TransducerBuilder {
	return &TransducerBuilder{model: b, name: name, fields: []string{""}, rows: map[int][]kernelCellAt{}}
}

// Field registers a named field (besides the always-present anonymous
// field 0) and returns its ordinal.
func (tb *TransducerBuilder) Field(name string) int {
	for i, n := range tb.fields {
		if n == name {
			return i
		}
	}
	tb.fields = append(tb.fields, name)
	return len(tb.fields) - 1
}

// Initial sets the transducer's start state.
func (tb *TransducerBuilder) Initial(state int) *TransducerBuilder {
	tb.initial = state
	return tb
}

// On records a transition: in state `from`, input equivalence class
// `cls` moves to `to` and runs `vec` (nil or empty for a no-op
// transition still worth distinguishing from "no transition at all").
func (tb *TransducerBuilder) On(from, cls, to int, vec effectVector) *TransducerBuilder {
	tb.rows[from] = append(tb.rows[from], kernelCellAt{cls: cls, cell: kernelCell{Next: to}, vector: vec})
	return tb
}

// Build finalizes the transducer against the equivalence-class map
// equiv (indexed by raw byte/signal value, sized 256+len(signals)) and
// registers it with the parent ModelBuilder, returning its ordinal.
func (tb *TransducerBuilder) Build(equiv []uint8, numClasses int) int {
	var maxState int
	for from, cells := range tb.rows {
		if from > maxState {
			maxState = from
		}
		for _, c := range cells {
			if c.cell.Next > maxState {
				maxState = c.cell.Next
			}
		}
	}

	vectors := []effectVector{{}}
	vectorIndex := map[string]int{"": 0}
	resolveVector := func(vec effectVector) int {
		key := vectorKey(vec)
		if idx, ok := vectorIndex[key]; ok {
			return idx
		}
		idx := len(vectors)
		vectors = append(vectors, vec)
		vectorIndex[key] = idx
		return idx
	}

	kernel := make([]kernelRow, maxState+1)
	for state := 0; state <= maxState; state++ {
		cells := make([]kernelCell, numClasses)
		for i := range cells {
			cells[i] = kernelCell{Effect: kernelNoTransition}
		}
		for _, c := range tb.rows[state] {
			cells[c.cls] = kernelCell{Next: c.cell.Next, Effect: resolveVector(c.vector)}
		}
		kernel[state] = encodeKernelRow(cells)
	}

	fieldIndex := map[string]int{}
	for i, n := range tb.fields {
		if n != "" {
			fieldIndex[n] = i
		}
	}

	tr := &Transducer{
		Name:             tb.name,
		Ordinal:          len(tb.model.transducers),
		InputEquivalents: equiv,
		Classes:          numClasses,
		Initial:          tb.initial,
		kernel:           kernel,
		effectVectors:    vectors,
		fieldNames:       tb.fields,
		fieldIndex:       fieldIndex,
	}
	tb.model.transducers = append(tb.model.transducers, tr)
	return tr.Ordinal
}

// vectorKey gives effect vectors a comparable identity for dedup
// during Build; equal (effector, param) sequences collapse to the
// same compiled vector.
func vectorKey(vec effectVector) string {
	if len(vec) == 0 {
		return ""
	}
	b := make([]byte, 0, len(vec)*8)
	for _, s := range vec {
		b = encodeU32(b, uint32(s.Effector))
		b = encodeU32(b, uint32(int32(s.Param)))
	}
	return string(b)
}

// Build finalizes the Model.
func (b *ModelBuilder) Build() *Model {
	signalIndex := make(map[string]int, len(b.signals))
	for i, n := range b.signals {
		signalIndex[n] = i
	}
	effectorIndex := make(map[string]int, len(b.effectors))
	for i, n := range b.effectors {
		effectorIndex[n] = i
	}
	transducerIndex := make(map[string]int, len(b.transducers))
	for _, tr := range b.transducers {
		transducerIndex[tr.Name] = tr.Ordinal
	}
	return &Model{
		TargetClass:     b.targetClass,
		transducers:     b.transducers,
		transducerIndex: transducerIndex,
		effectorNames:   b.effectors,
		effectorIndex:   effectorIndex,
		signalNames:     b.signals,
		signalIndex:     signalIndex,
		params:          b.params,
	}
}
