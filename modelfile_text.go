package ribose

import "encoding/json"

// modelDescription is the JSON shape `cmd/ribose compile` reads: a
// packed-but-not-yet-binary description of a Model, as spec §6 frames
// `compile`'s input ("accepts automata-dir output from elsewhere").
// This engine doesn't include the automata minimizer that would
// normally produce it — model_builder.go exists for Go callers, this
// file is the textual counterpart a non-Go toolchain step could emit.
type modelDescription struct {
	TargetClass string                `json:"target_class"`
	Signals     []string              `json:"signals"`
	Effectors   []string              `json:"effectors"`
	Params      []json.RawMessage     `json:"params"`
	Transducers []transducerDescription `json:"transducers"`
}

type transducerDescription struct {
	Name             string             `json:"name"`
	Initial          int                `json:"initial"`
	Classes          int                `json:"classes"`
	InputEquivalents []uint8            `json:"input_equivalents"`
	Fields           []string           `json:"fields"`
	Kernel           [][]kernelRunJSON  `json:"kernel"`
	EffectVectors    [][]effectStepJSON `json:"effect_vectors"`
}

type kernelRunJSON struct {
	RunLength int `json:"run_length"`
	Next      int `json:"next"`
	Effect    int `json:"effect"`
}

type effectStepJSON struct {
	Effector int `json:"effector"`
	Param    int `json:"param"`
}

// ParamDecoder turns one param's raw JSON payload into a compiled P,
// dispatched by the effector name it's attached to — a target with
// its own parameter shapes supplies its own decoder for the indices
// that belong to its effectors; built-in shapes are handled here.
type ParamDecoder func(effectorName string, raw json.RawMessage) (P, error)

// DecodeModelText parses a textual model description into a Model,
// the input format `cmd/ribose compile` accepts before writing the
// binary form with EncodeModel.
func DecodeModelText(raw []byte, decode ParamDecoder) (*Model, error) {
	var desc modelDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		return nil, ModelLoadError{Reason: "invalid model description: " + err.Error()}
	}

	b := NewModelBuilder(desc.TargetClass)
	b.signals = append([]string(nil), desc.Signals...)
	b.effectors = append([]string(nil), desc.Effectors...)
	if err := validateReservedSignals(b.signals); err != nil {
		return nil, ModelLoadError{Reason: err.Error()}
	}

	for _, raw := range desc.Params {
		var tagged struct {
			Effector string          `json:"effector"`
			Value    json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(raw, &tagged); err != nil {
			return nil, ModelLoadError{Reason: "invalid parameter record: " + err.Error()}
		}
		p, err := decode(tagged.Effector, tagged.Value)
		if err != nil {
			return nil, ModelLoadError{Reason: err.Error()}
		}
		b.params = append(b.params, p)
	}

	for _, td := range desc.Transducers {
		fields := append([]string{""}, td.Fields...)

		vectors := make([]effectVector, len(td.EffectVectors))
		for i, steps := range td.EffectVectors {
			vec := make(effectVector, len(steps))
			for j, s := range steps {
				vec[j] = effectStep{Effector: s.Effector, Param: s.Param}
			}
			vectors[i] = vec
		}

		kernel := make([]kernelRow, len(td.Kernel))
		for i, rows := range td.Kernel {
			row := make(kernelRow, len(rows))
			for j, r := range rows {
				row[j] = kernelRun{RunLength: r.RunLength, Next: r.Next, Effect: r.Effect}
			}
			kernel[i] = row
		}

		fieldIndex := map[string]int{}
		for i, n := range fields {
			if n != "" {
				fieldIndex[n] = i
			}
		}

		tr := &Transducer{
			Name:             td.Name,
			Ordinal:          len(b.transducers),
			InputEquivalents: td.InputEquivalents,
			Classes:          td.Classes,
			Initial:          td.Initial,
			kernel:           kernel,
			effectVectors:    vectors,
			fieldNames:       fields,
			fieldIndex:       fieldIndex,
		}
		b.transducers = append(b.transducers, tr)
	}

	return b.Build(), nil
}

// builtinParamJSON is the textual shape accepted for every built-in
// effector's parameter: a token list for the concat-style effectors,
// or the field/signal/count/all keys for the simpler ones.
type builtinParamJSON struct {
	Tokens []struct {
		Kind  string `json:"kind"` // literal | field | signal | transducer
		Value string `json:"value"`
	} `json:"tokens"`
	Field  string `json:"field"`
	Signal string `json:"signal"`
	Count  *int   `json:"count"`
	All    bool   `json:"all"`
}

// BuiltinParamDecoder decodes the textual parameter shapes this
// engine's own built-in effectors accept. A target with its own
// effectors and parameter shapes should fall back to this for any
// effector name it doesn't recognize.
func BuiltinParamDecoder(effectorName string, raw json.RawMessage) (P, error) {
	var in builtinParamJSON
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, err
		}
	}
	switch effectorName {
	case "paste", "in", "out":
		if len(in.Tokens) == 0 {
			return nil, nil
		}
		toks := make([]Token, len(in.Tokens))
		for i, t := range in.Tokens {
			toks[i] = Token{Name: t.Value, Literal: []byte(t.Value)}
			switch t.Kind {
			case "field":
				toks[i].Kind = TokenField
			case "signal":
				toks[i].Kind = TokenSignal
			case "transducer":
				toks[i].Kind = TokenTransducer
			default:
				toks[i].Kind = TokenLiteral
			}
		}
		return compileConcatTokens(effectorName, toks)
	case "select", "copy", "cut", "start":
		return in.Field, nil
	case "clear":
		if in.All {
			return clearAll, nil
		}
		if in.Field == "" {
			return clearSelected, nil
		}
		return in.Field, nil
	case "signal":
		return in.Signal, nil
	case "count":
		if in.Count == nil && in.Field == "" {
			return nil, nil
		}
		cp := countParam{signalName: in.Signal}
		if in.Count != nil {
			cp.literal, cp.hasLit = *in.Count, true
		} else {
			cp.fieldName = in.Field
		}
		return cp, nil
	default:
		return nil, nil
	}
}
