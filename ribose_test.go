package ribose

// Shared test scaffolding: small helpers for assembling a Model by hand
// in tests, the way vm_test.go hand-assembles a *Program instead of
// running the real grammar compiler.

// testEquiv builds an input_equivalents table (spec §3) sized for 256
// bytes plus at least the reserved four signals (wider if classOf
// names a higher signal ordinal), defaulting every entry to class 0
// and overriding the entries named in classOf.
func testEquiv(classOf map[int]int) []uint8 {
	size := 256 + 4
	for k := range classOf {
		if k+1 > size {
			size = k + 1
		}
	}
	equiv := make([]uint8, size)
	for k, v := range classOf {
		equiv[k] = uint8(v)
	}
	return equiv
}

func mustCompile(t interface {
	CompileParameter(tokens []Token) (P, error)
}, tokens []Token) P {
	p, err := t.CompileParameter(tokens)
	if err != nil {
		panic(err)
	}
	return p
}

func literalToken(s string) Token { return Token{Kind: TokenLiteral, Literal: []byte(s)} }
func fieldToken(name string) Token { return Token{Kind: TokenField, Name: name} }
func signalToken(name string) Token { return Token{Kind: TokenSignal, Name: name} }
func transducerToken(name string) Token { return Token{Kind: TokenTransducer, Name: name} }

// captureSink collects every Write call's payload, for assembling the
// output a transducer run produced.
type captureSink struct{ buf []byte }

func (s *captureSink) Write(buf []byte, off, length int) error {
	s.buf = append(s.buf, buf[off:off+length]...)
	return nil
}
