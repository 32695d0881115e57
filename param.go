package ribose

import "bytes"

// P is the opaque compiled form a proxy's CompileParameter produces
// at model-load time and a live Invoke receives back unchanged (spec
// §4.4). Each effector defines its own concrete type behind it —
// concatToken slices here, a countParam struct in effector.go, and so
// on — so P only needs to be wide enough to hold any of them.
type P any

// TokenKind tags one element of a parameterized effector's token
// list (spec §4.4: "Literal byte sequence, field reference ~name,
// signal reference !name, transducer reference @name").
type TokenKind int

const (
	TokenLiteral TokenKind = iota
	TokenField
	TokenSignal
	TokenTransducer
)

// Token is one tagged element of a parameter's token list, already
// decoded (literal escapes stripped) by decodeTokens before it reaches
// CompileParameter. The model loader does not call decodeTokens: the
// model file stores compiled parameters, not token lists.
type Token struct {
	Kind    TokenKind
	Literal []byte // valid when Kind == TokenLiteral
	Name    string // valid otherwise
}

const escapeByte = 0xF8

var sentinelBytes = []byte{'~', '!', '@'}

// decodeTokens turns raw token bodies into a Token slice, pairing
// raw[i] with the kind tags[i]. Literal tokens that would otherwise
// start with one of '~', '!', '@' carry a leading 0xF8 escape byte
// that is stripped here.
func decodeTokens(raw [][]byte, tags []TokenKind) []Token {
	out := make([]Token, len(raw))
	for i, b := range raw {
		t := Token{Kind: tags[i]}
		if t.Kind == TokenLiteral {
			if len(b) > 0 && b[0] == escapeByte {
				b = b[1:]
			}
			t.Literal = b
		} else {
			t.Name = string(b)
		}
		out[i] = t
	}
	return out
}

// encodeLiteralToken adds the 0xF8 escape when lit would otherwise be
// mistaken for a tagged sentinel on decode.
func encodeLiteralToken(lit []byte) []byte {
	if len(lit) > 0 && bytes.IndexByte(sentinelBytes, lit[0]) >= 0 {
		out := make([]byte, 0, len(lit)+1)
		out = append(out, escapeByte)
		return append(out, lit...)
	}
	return lit
}

// concatToken is one element of a compiled paste[...]/in[...]/out[...]
// parameter: either a literal run of bytes or a reference to a field
// that must be resolved against the *currently active* transducer
// frame at invoke time (field ordinals are per-transducer, spec §3,
// so only the name survives compilation).
type concatToken struct {
	isField   bool
	literal   []byte
	fieldName string
}

// compileConcatTokens is shared by the paste[...]/in[...]/out[...]
// proxies: it only validates the token kinds it accepts (literal and
// field) and defers field-name resolution to Invoke, since the field
// table is per-transducer and unknown at model-load time.
func compileConcatTokens(effector string, tokens []Token) (P, error) {
	out := make([]concatToken, len(tokens))
	for i, tok := range tokens {
		switch tok.Kind {
		case TokenLiteral:
			out[i] = concatToken{literal: tok.Literal}
		case TokenField:
			out[i] = concatToken{isField: true, fieldName: tok.Name}
		default:
			return nil, ParameterCompileError{Effector: effector, Reason: "only literal and field tokens are allowed here"}
		}
	}
	return out, nil
}

func resolveConcat(ctx *Context, toks []concatToken) ([]byte, error) {
	var buf []byte
	for _, tok := range toks {
		if !tok.isField {
			buf = append(buf, tok.literal...)
			continue
		}
		f, ok := ctx.fieldByName(tok.fieldName)
		if !ok {
			return nil, EffectorError{Effector: "paste", Reason: "unknown field ~" + tok.fieldName}
		}
		buf = append(buf, f.Bytes()...)
	}
	return buf, nil
}
