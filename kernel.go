package ribose

import (
	"fmt"
	"strings"

	"github.com/ribose-io/ribose/ascii"
)

// kernelNoTransition marks a kernel cell that has no transition at
// all — the engine-synthesized "domain error" case of spec §4.1 step
// 4, distinct from effect id 0 (an explicit no-op vector).
const kernelNoTransition = -1

// kernelCell is one (next_state, effect_id) entry of the kernel
// matrix described in spec §3.
type kernelCell struct {
	Next   int
	Effect int
}

// kernelRun is one run-length-encoded triple of a kernel row, as laid
// out on disk by spec §6 ("a count of runs followed by that many
// (run_length, next_state, effect_id) tuples").
type kernelRun struct {
	RunLength int
	Next      int
	Effect    int
}

// kernelRow is one state's run-length-encoded transition row.
type kernelRow []kernelRun

// lookup scans the RLE row to find the cell for equivalence class
// cls. Spec §3 explicitly allows a tight scan-decoder over RLE rows
// instead of expanding to flat [N][E] storage — rows for common
// "catch-all" transitions (a handful of runs covering hundreds of
// classes) make the scan cheap and keep the table resident in cache.
func (r kernelRow) lookup(cls int) kernelCell {
	base := 0
	for _, run := range r {
		if cls < base+run.RunLength {
			return kernelCell{Next: run.Next, Effect: run.Effect}
		}
		base += run.RunLength
	}
	return kernelCell{Next: 0, Effect: kernelNoTransition}
}

// expand materializes the row into a flat [E]kernelCell slice, for
// callers that will probe the same row enough times that random
// access beats the scan (spec §3's "only when random access beats
// cache locality").
func (r kernelRow) expand(classes int) []kernelCell {
	out := make([]kernelCell, classes)
	base := 0
	for _, run := range r {
		for i := 0; i < run.RunLength && base+i < classes; i++ {
			out[base+i] = kernelCell{Next: run.Next, Effect: run.Effect}
		}
		base += run.RunLength
	}
	for i := base; i < classes; i++ {
		out[i] = kernelCell{Next: 0, Effect: kernelNoTransition}
	}
	return out
}

// encodeKernelRow collapses a flat row of cells into RLE runs, the
// inverse of expand — used by the model builder to produce the RLE
// rows that the binary writer (modelfile.go) then copies out run by
// run.
func encodeKernelRow(cells []kernelCell) kernelRow {
	if len(cells) == 0 {
		return nil
	}
	var row kernelRow
	cur := kernelRun{RunLength: 1, Next: cells[0].Next, Effect: cells[0].Effect}
	for _, c := range cells[1:] {
		if c.Next == cur.Next && c.Effect == cur.Effect {
			cur.RunLength++
			continue
		}
		row = append(row, cur)
		cur = kernelRun{RunLength: 1, Next: c.Next, Effect: c.Effect}
	}
	row = append(row, cur)
	return row
}

// effectStep is one (effector_ordinal, parameter_index) pair of an
// effect vector (spec §3/§6). paramNone marks "unparameterized".
const paramNone = -1

type effectStep struct {
	Effector int
	Param    int
}

// effectVector is the sequence of steps attached to one transition.
// Vector 0 is always the trivial no-op vector (spec §3).
type effectVector []effectStep

// DumpKernel renders the equivalence map and RLE rows of a
// transducer in the plain-text form `decompile` (spec §6) builds on;
// cmd/ribose layers tablewriter/fatih/color on top of this for the
// terminal. Grounded on the teacher's vm_program.go prettyString /
// AsmFormatToken theming, generalized from PEG instructions to
// kernel rows.
func (t *Transducer) DumpKernel() string {
	var s strings.Builder
	colorize := func(v string, role string) string { return role + v + ascii.Reset }

	s.WriteString(colorize(fmt.Sprintf(";; transducer %q, %d states, %d classes, initial=%d\n",
		t.Name, len(t.kernel), t.Classes, t.Initial), ascii.DefaultTheme.Comment))

	s.WriteString(colorize(";; input equivalence map\n", ascii.DefaultTheme.Comment))
	for i, cls := range t.InputEquivalents {
		if i > 0 && i%16 == 0 {
			s.WriteString("\n")
		}
		s.WriteString(fmt.Sprintf(" %s:%s", colorize(fmt.Sprintf("%d", i), ascii.DefaultTheme.Operand), colorize(fmt.Sprintf("%d", cls), ascii.DefaultTheme.Literal)))
	}
	s.WriteString("\n\n")

	for state, row := range t.kernel {
		s.WriteString(colorize(fmt.Sprintf("state %d:\n", state), ascii.DefaultTheme.Label))
		for _, run := range row {
			s.WriteString(fmt.Sprintf("  run=%s next=%s effect=%s\n",
				colorize(fmt.Sprintf("%d", run.RunLength), ascii.DefaultTheme.Literal),
				colorize(fmt.Sprintf("%d", run.Next), ascii.DefaultTheme.Operand),
				colorize(fmt.Sprintf("%d", run.Effect), ascii.DefaultTheme.Operator)))
		}
	}
	return s.String()
}
