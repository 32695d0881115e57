package ribose

// counter implements the `count[n, !sig]` / `count` built-in pair
// (spec §4.1 "Counter"). It is inactive until armed.
type counter struct {
	active       bool
	remaining    int
	signalOnZero int
}

func (c *counter) arm(val, signal int) {
	c.active = true
	c.remaining = val
	c.signalOnZero = signal
}

// decrement returns (signal, hit) where hit is true exactly once,
// when remaining reaches zero, and disarms the counter at that point
// (spec invariant 5).
func (c *counter) decrement() (signal int, hit bool) {
	if !c.active {
		return 0, false
	}
	c.remaining--
	if c.remaining <= 0 {
		c.active = false
		return c.signalOnZero, true
	}
	return 0, false
}

// transducerFrame is one entry of the transducer stack (spec §3
// "Transducer frame"). Fields are fresh on every push — spec §9's
// open question about field lifetime across pop/push is resolved
// here as "fresh on push" (SPEC_FULL.md §D.2): a frame never inherits
// another activation's field contents.
type transducerFrame struct {
	transducer int
	state      int
	counter    counter
	selected   int
	fields     []*Field
}

func newTransducerFrame(transducer, initialState, numFields int) *transducerFrame {
	return &transducerFrame{
		transducer: transducer,
		state:      initialState,
		selected:   0,
		fields:     make([]*Field, numFields),
	}
}

func (f *transducerFrame) field(ord int) *Field {
	if f.fields[ord] == nil {
		f.fields[ord] = &Field{}
	}
	return f.fields[ord]
}

// transducerStack is the LIFO described in spec §4.3.
type transducerStack []*transducerFrame

func (s *transducerStack) push(f *transducerFrame) { *s = append(*s, f) }

func (s *transducerStack) pop() *transducerFrame {
	n := len(*s)
	f := (*s)[n-1]
	*s = (*s)[:n-1]
	return f
}

func (s *transducerStack) top() *transducerFrame {
	if len(*s) == 0 {
		return nil
	}
	return (*s)[len(*s)-1]
}

func (s *transducerStack) empty() bool { return len(*s) == 0 }
