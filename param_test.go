package ribose

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestTokenEscapeRoundTrip checks spec §4.4: a literal that begins
// with one of the sentinel bytes ~ ! @ is escaped with a leading 0xF8
// on encode and the escape is stripped deterministically on decode.
func TestTokenEscapeRoundTrip(t *testing.T) {
	cases := [][]byte{
		[]byte("~name"),
		[]byte("!signal"),
		[]byte("@transducer"),
		[]byte("plain literal"),
		[]byte(""),
	}
	for _, lit := range cases {
		encoded := encodeLiteralToken(lit)
		if len(lit) > 0 && (lit[0] == '~' || lit[0] == '!' || lit[0] == '@') {
			assert.Equal(t, byte(escapeByte), encoded[0])
			assert.Equal(t, lit, encoded[1:])
		} else {
			assert.Equal(t, lit, encoded)
		}

		toks := decodeTokens([][]byte{encoded}, []TokenKind{TokenLiteral})
		assert.Equal(t, lit, toks[0].Literal)
	}
}

func TestDecodeTokensFieldSignalTransducer(t *testing.T) {
	raw := [][]byte{[]byte("foo"), []byte("bar"), []byte("baz")}
	tags := []TokenKind{TokenField, TokenSignal, TokenTransducer}
	toks := decodeTokens(raw, tags)
	assert.Equal(t, "foo", toks[0].Name)
	assert.Equal(t, TokenField, toks[0].Kind)
	assert.Equal(t, "bar", toks[1].Name)
	assert.Equal(t, TokenSignal, toks[1].Kind)
	assert.Equal(t, "baz", toks[2].Name)
	assert.Equal(t, TokenTransducer, toks[2].Kind)
}

func TestCompileConcatTokensRejectsSignalAndTransducer(t *testing.T) {
	_, err := compileConcatTokens("paste", []Token{signalToken("go")})
	assert.Error(t, err)
	_, err = compileConcatTokens("paste", []Token{transducerToken("other")})
	assert.Error(t, err)
}
