package ribose

import "fmt"

// Reserved signal ordinals (spec §3): the first four signal names in
// any model must be, in order, nul/nil/eol/eos, starting at 256.
const (
	SigNul = 256 + iota
	SigNil
	SigEol
	SigEos
)

const signalBase = 256

// Transducer is one named transducer: the packed kernel matrix, the
// input-equivalence map, and the initial state (spec §3).
type Transducer struct {
	Name             string
	Ordinal          int
	InputEquivalents []uint8 // 256+len(signals) entries -> equivalence class
	Classes          int
	Initial          int

	kernel        []kernelRow
	effectVectors []effectVector

	fieldNames []string
	fieldIndex map[string]int
}

// NumStates returns the number of states in the kernel matrix.
func (t *Transducer) NumStates() int { return len(t.kernel) }

// FieldOrdinal resolves a field name to its per-transducer ordinal.
// Field 0 is always the anonymous field.
func (t *Transducer) FieldOrdinal(name string) (int, bool) {
	if name == "" {
		return 0, true
	}
	ord, ok := t.fieldIndex[name]
	return ord, ok
}

func (t *Transducer) NumFields() int { return len(t.fieldNames) }

// step looks up the transition for (state, input) and returns the
// resolved effect vector, or (cell, nil) with cell.Effect ==
// kernelNoTransition when the kernel carries no transition — the
// domain-error case the dispatch loop handles (spec §4.1 step 4).
func (t *Transducer) step(state, cls int) (kernelCell, effectVector) {
	cell := t.kernel[state].lookup(cls)
	if cell.Effect == kernelNoTransition {
		return cell, nil
	}
	return cell, t.effectVectors[cell.Effect]
}

// Model is the immutable container loaded from a model file (spec
// §3). It is read-mostly and shared without locking across every
// Transductor bound to it (spec §5).
type Model struct {
	TargetClass string

	transducers      []*Transducer
	transducerIndex  map[string]int
	effectorNames    []string
	effectorIndex    map[string]int
	signalNames      []string // ordinal - signalBase -> name
	signalIndex      map[string]int
	params           []P
}

// TransducerOrdinal resolves a transducer name to its ordinal, or
// returns TransducerNotFoundError.
func (m *Model) TransducerOrdinal(name string) (int, error) {
	ord, ok := m.transducerIndex[name]
	if !ok {
		return 0, TransducerNotFoundError{Name: name}
	}
	return ord, nil
}

func (m *Model) Transducer(ordinal int) *Transducer { return m.transducers[ordinal] }

func (m *Model) NumTransducers() int { return len(m.transducers) }

func (m *Model) EffectorOrdinal(name string) (int, bool) {
	ord, ok := m.effectorIndex[name]
	return ord, ok
}

func (m *Model) EffectorName(ordinal int) string {
	if ordinal < 0 || ordinal >= len(m.effectorNames) {
		return ""
	}
	return m.effectorNames[ordinal]
}

// SignalOrdinal resolves a signal name (without reserved-name
// validation beyond lookup) to its ordinal >= 256.
func (m *Model) SignalOrdinal(name string) (int, bool) {
	ord, ok := m.signalIndex[name]
	if !ok {
		return 0, false
	}
	return ord + signalBase, true
}

func (m *Model) SignalName(ordinal int) string {
	i := ordinal - signalBase
	if i < 0 || i >= len(m.signalNames) {
		return ""
	}
	return m.signalNames[i]
}

func (m *Model) NumSignals() int { return len(m.signalNames) }

func (m *Model) Param(index int) P {
	if index < 0 || index >= len(m.params) {
		return nil
	}
	return m.params[index]
}

// validateReservedSignals enforces spec §3's "first four are
// reserved" rule at load time.
func validateReservedSignals(names []string) error {
	want := []string{"nul", "nil", "eol", "eos"}
	if len(names) < len(want) {
		return fmt.Errorf("signal table must carry at least the %d reserved names", len(want))
	}
	for i, name := range want {
		if names[i] != name {
			return fmt.Errorf("signal %d must be %q, got %q", signalBase+i, name, names[i])
		}
	}
	return nil
}
