package ribose

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/edsrzf/mmap-go"
)

// Model file layout (spec §6): a magic/version header, the target
// class name, the signal and effector name tables, the shared
// parameter blob, then one block per transducer (name, ordinal,
// initial state, class count, input-equivalence map, field names, RLE
// kernel rows, effect vectors), and a CRC32 trailer over everything
// that precedes it. The parameter blob comes before the transducer
// blocks, not after them. Integers are little-endian, the way
// the teacher's vm_encoder.go packs VM bytecode.
var modelMagic = [4]byte{'R', 'I', 'B', 'O'}

const modelVersion = uint16(1)

var encodeU16 = binary.LittleEndian.AppendUint16
var encodeU32 = binary.LittleEndian.AppendUint32

func encodeString(buf []byte, s string) []byte {
	buf = encodeU32(buf, uint32(len(s)))
	return append(buf, s...)
}

func encodeBytes(buf []byte, b []byte) []byte {
	buf = encodeU32(buf, uint32(len(b)))
	return append(buf, b...)
}

// EncodeModel serializes a Model to spec §6's on-disk format.
func EncodeModel(m *Model) []byte {
	var buf []byte
	buf = append(buf, modelMagic[:]...)
	buf = encodeU16(buf, modelVersion)
	buf = encodeString(buf, m.TargetClass)

	buf = encodeU32(buf, uint32(len(m.signalNames)))
	for _, n := range m.signalNames {
		buf = encodeString(buf, n)
	}
	buf = encodeU32(buf, uint32(len(m.effectorNames)))
	for _, n := range m.effectorNames {
		buf = encodeString(buf, n)
	}

	buf = encodeU32(buf, uint32(len(m.params)))
	for _, p := range m.params {
		buf = encodeBytes(buf, encodeParam(p))
	}

	buf = encodeU32(buf, uint32(len(m.transducers)))
	for _, tr := range m.transducers {
		buf = encodeTransducer(buf, tr)
	}

	sum := crc32.ChecksumIEEE(buf)
	buf = encodeU32(buf, sum)
	return buf
}

func encodeTransducer(buf []byte, tr *Transducer) []byte {
	buf = encodeString(buf, tr.Name)
	buf = encodeU32(buf, uint32(tr.Ordinal))
	buf = encodeU32(buf, uint32(tr.Initial))
	buf = encodeU32(buf, uint32(tr.Classes))

	buf = encodeU32(buf, uint32(len(tr.InputEquivalents)))
	buf = append(buf, tr.InputEquivalents...)

	buf = encodeU32(buf, uint32(len(tr.fieldNames)))
	for _, n := range tr.fieldNames {
		buf = encodeString(buf, n)
	}

	buf = encodeU32(buf, uint32(len(tr.kernel)))
	for _, row := range tr.kernel {
		buf = encodeU32(buf, uint32(len(row)))
		for _, run := range row {
			buf = encodeU32(buf, uint32(run.RunLength))
			buf = encodeU32(buf, uint32(run.Next))
			buf = encodeU32(buf, uint32(int32(run.Effect)))
		}
	}

	buf = encodeU32(buf, uint32(len(tr.effectVectors)))
	for _, vec := range tr.effectVectors {
		buf = encodeU32(buf, uint32(len(vec)))
		for _, step := range vec {
			buf = encodeU32(buf, uint32(step.Effector))
			buf = encodeU32(buf, uint32(int32(step.Param)))
		}
	}
	return buf
}

// encodeParam serializes a compiled parameter's concrete type tag
// plus payload. Only the shapes this engine's own proxies produce
// round-trip; any other P value is written as a bare 255 tag, which
// decodeParam reads back as nil. Loading invokes no proxy, so such a
// value is not rebuilt from tokens on load.
func encodeParam(p P) []byte {
	var buf []byte
	switch v := p.(type) {
	case nil:
		buf = append(buf, 0)
	case []concatToken:
		buf = append(buf, 1)
		buf = encodeU32(buf, uint32(len(v)))
		for _, tok := range v {
			if tok.isField {
				buf = append(buf, 1)
				buf = encodeString(buf, tok.fieldName)
			} else {
				buf = append(buf, 0)
				buf = encodeBytes(buf, tok.literal)
			}
		}
	case string:
		buf = append(buf, 2)
		buf = encodeString(buf, v)
	case clearMode:
		buf = append(buf, 3)
		buf = append(buf, byte(v))
	case countParam:
		buf = append(buf, 4)
		buf = encodeString(buf, v.fieldName)
		buf = encodeString(buf, v.signalName)
		if v.hasLit {
			buf = append(buf, 1)
			buf = encodeU32(buf, uint32(v.literal))
		} else {
			buf = append(buf, 0)
		}
	default:
		buf = append(buf, 255)
	}
	return buf
}

type byteReader struct {
	buf []byte
	off int
}

func (r *byteReader) u16() (uint16, error) {
	if r.off+2 > len(r.buf) {
		return 0, fmt.Errorf("truncated model file")
	}
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, nil
}

func (r *byteReader) u32() (uint32, error) {
	if r.off+4 > len(r.buf) {
		return 0, fmt.Errorf("truncated model file")
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *byteReader) bytes(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.buf) {
		return nil, fmt.Errorf("truncated model file")
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *byteReader) string() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *byteReader) lenPrefixedBytes() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	return r.bytes(int(n))
}

// DecodeModel parses a byte slice written by EncodeModel.
func DecodeModel(raw []byte) (*Model, error) {
	if len(raw) < 4+2+4 {
		return nil, ModelLoadError{Reason: "file too short to contain a header"}
	}
	if !bytes.Equal(raw[:4], modelMagic[:]) {
		return nil, ModelLoadError{Reason: "bad magic"}
	}
	trailer := raw[len(raw)-4:]
	body := raw[:len(raw)-4]
	want := binary.LittleEndian.Uint32(trailer)
	if got := crc32.ChecksumIEEE(body); got != want {
		return nil, ModelLoadError{Reason: fmt.Sprintf("checksum mismatch: file=%x computed=%x", want, got)}
	}

	r := &byteReader{buf: body, off: 4}
	version, err := r.u16()
	if err != nil {
		return nil, ModelLoadError{Reason: err.Error()}
	}
	if version != modelVersion {
		return nil, ModelLoadError{Reason: fmt.Sprintf("unsupported model version %d", version)}
	}

	m := &Model{
		transducerIndex: map[string]int{},
		effectorIndex:   map[string]int{},
		signalIndex:     map[string]int{},
	}
	if m.TargetClass, err = r.string(); err != nil {
		return nil, ModelLoadError{Reason: err.Error()}
	}

	numSignals, err := r.u32()
	if err != nil {
		return nil, ModelLoadError{Reason: err.Error()}
	}
	for i := 0; i < int(numSignals); i++ {
		name, err := r.string()
		if err != nil {
			return nil, ModelLoadError{Reason: err.Error()}
		}
		m.signalNames = append(m.signalNames, name)
		m.signalIndex[name] = i
	}
	if err := validateReservedSignals(m.signalNames); err != nil {
		return nil, ModelLoadError{Reason: err.Error()}
	}

	numEffectors, err := r.u32()
	if err != nil {
		return nil, ModelLoadError{Reason: err.Error()}
	}
	for i := 0; i < int(numEffectors); i++ {
		name, err := r.string()
		if err != nil {
			return nil, ModelLoadError{Reason: err.Error()}
		}
		m.effectorNames = append(m.effectorNames, name)
		m.effectorIndex[name] = i
	}

	numParams, err := r.u32()
	if err != nil {
		return nil, ModelLoadError{Reason: err.Error()}
	}
	for i := 0; i < int(numParams); i++ {
		raw, err := r.lenPrefixedBytes()
		if err != nil {
			return nil, ModelLoadError{Reason: err.Error()}
		}
		p, err := decodeParam(raw)
		if err != nil {
			return nil, ModelLoadError{Reason: err.Error()}
		}
		m.params = append(m.params, p)
	}

	numTransducers, err := r.u32()
	if err != nil {
		return nil, ModelLoadError{Reason: err.Error()}
	}
	for i := 0; i < int(numTransducers); i++ {
		tr, err := decodeTransducer(r)
		if err != nil {
			return nil, ModelLoadError{Reason: err.Error()}
		}
		m.transducerIndex[tr.Name] = len(m.transducers)
		m.transducers = append(m.transducers, tr)
	}

	return m, nil
}

func decodeTransducer(r *byteReader) (*Transducer, error) {
	tr := &Transducer{fieldIndex: map[string]int{}}
	var err error
	if tr.Name, err = r.string(); err != nil {
		return nil, err
	}
	ord, err := r.u32()
	if err != nil {
		return nil, err
	}
	tr.Ordinal = int(ord)
	initial, err := r.u32()
	if err != nil {
		return nil, err
	}
	tr.Initial = int(initial)
	classes, err := r.u32()
	if err != nil {
		return nil, err
	}
	tr.Classes = int(classes)

	nEquiv, err := r.u32()
	if err != nil {
		return nil, err
	}
	equiv, err := r.bytes(int(nEquiv))
	if err != nil {
		return nil, err
	}
	tr.InputEquivalents = append([]uint8(nil), equiv...)

	nFields, err := r.u32()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(nFields); i++ {
		name, err := r.string()
		if err != nil {
			return nil, err
		}
		tr.fieldNames = append(tr.fieldNames, name)
		if name != "" {
			tr.fieldIndex[name] = i
		}
	}

	nStates, err := r.u32()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(nStates); i++ {
		nRuns, err := r.u32()
		if err != nil {
			return nil, err
		}
		row := make(kernelRow, nRuns)
		for j := 0; j < int(nRuns); j++ {
			rl, err := r.u32()
			if err != nil {
				return nil, err
			}
			next, err := r.u32()
			if err != nil {
				return nil, err
			}
			effect, err := r.u32()
			if err != nil {
				return nil, err
			}
			row[j] = kernelRun{RunLength: int(rl), Next: int(next), Effect: int(int32(effect))}
		}
		tr.kernel = append(tr.kernel, row)
	}

	nVecs, err := r.u32()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(nVecs); i++ {
		nSteps, err := r.u32()
		if err != nil {
			return nil, err
		}
		vec := make(effectVector, nSteps)
		for j := 0; j < int(nSteps); j++ {
			eff, err := r.u32()
			if err != nil {
				return nil, err
			}
			param, err := r.u32()
			if err != nil {
				return nil, err
			}
			vec[j] = effectStep{Effector: int(eff), Param: int(int32(param))}
		}
		tr.effectVectors = append(tr.effectVectors, vec)
	}

	return tr, nil
}

func decodeParam(raw []byte) (P, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty parameter record")
	}
	r := &byteReader{buf: raw, off: 1}
	switch raw[0] {
	case 0:
		return nil, nil
	case 1:
		n, err := r.u32()
		if err != nil {
			return nil, err
		}
		toks := make([]concatToken, n)
		for i := range toks {
			tag, err := r.bytes(1)
			if err != nil {
				return nil, err
			}
			if tag[0] == 1 {
				name, err := r.string()
				if err != nil {
					return nil, err
				}
				toks[i] = concatToken{isField: true, fieldName: name}
			} else {
				lit, err := r.lenPrefixedBytes()
				if err != nil {
					return nil, err
				}
				toks[i] = concatToken{literal: append([]byte(nil), lit...)}
			}
		}
		return toks, nil
	case 2:
		return r.string()
	case 3:
		b, err := r.bytes(1)
		if err != nil {
			return nil, err
		}
		return clearMode(b[0]), nil
	case 4:
		fieldName, err := r.string()
		if err != nil {
			return nil, err
		}
		signalName, err := r.string()
		if err != nil {
			return nil, err
		}
		hasLit, err := r.bytes(1)
		if err != nil {
			return nil, err
		}
		cp := countParam{fieldName: fieldName, signalName: signalName}
		if hasLit[0] == 1 {
			lit, err := r.u32()
			if err != nil {
				return nil, err
			}
			cp.literal, cp.hasLit = int(lit), true
		}
		return cp, nil
	default:
		return nil, nil
	}
}

// LoadModelFile reads and decodes a model file from disk. When
// cfg.GetBool("loader.mmap") is true the file is memory-mapped
// read-only instead of copied into a fresh buffer — the same
// trade-off ProbeChain's trie package makes for its large persisted
// tries.
func LoadModelFile(path string, cfg *Config) (*Model, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if !cfg.GetBool("loader.mmap") {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, ModelLoadError{Path: path, Reason: err.Error()}
		}
		m, err := DecodeModel(raw)
		if err != nil {
			return nil, err
		}
		return m, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, ModelLoadError{Path: path, Reason: err.Error()}
	}
	defer f.Close()
	region, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, ModelLoadError{Path: path, Reason: err.Error()}
	}
	defer region.Unmap()
	m, err := DecodeModel(region)
	if err != nil {
		return nil, ModelLoadError{Path: path, Reason: err.Error()}
	}
	return m, nil
}
