package ribose

import "fmt"

// DomainError is returned from Run when the kernel carries no
// transition for the injected `nul` signal either (spec §7: "Domain
// error, fatal"). A recoverable domain error never reaches the
// caller — the dispatch loop injects `nul` and retries in-loop.
type DomainError struct {
	Transducer string
	State      int
	Input      int
}

func (e DomainError) Error() string {
	return fmt.Sprintf("unrecoverable domain error in %q at state %d for input %d", e.Transducer, e.State, e.Input)
}

// TransducerNotFoundError is returned by Start when the model has no
// transducer with the given name.
type TransducerNotFoundError struct {
	Name string
}

func (e TransducerNotFoundError) Error() string {
	return fmt.Sprintf("transducer not found: %q", e.Name)
}

// EffectorError wraps a failure surfaced by a live effector's Invoke,
// or a contract violation detected by the engine (double signal in
// one vector, effector ordinal missing from the bound registry, no
// output sink installed).
type EffectorError struct {
	Effector string
	Reason   string
}

func (e EffectorError) Error() string {
	return fmt.Sprintf("effector %q failed: %s", e.Effector, e.Reason)
}

// ParameterCompileError is returned by an effector's CompileParameter
// when it rejects a parameter token list. Model loading does not
// compile parameters, so LoadModelFile/DecodeModel never return it.
type ParameterCompileError struct {
	Effector string
	Reason   string
}

func (e ParameterCompileError) Error() string {
	return fmt.Sprintf("can't compile parameter for effector %q: %s", e.Effector, e.Reason)
}

// ProxyMisuseError is returned when Run/Push/Start/Stop is called on
// a Transductor built solely to host parameter compilation (spec
// §4.1, status PROXY).
type ProxyMisuseError struct {
	Operation string
}

func (e ProxyMisuseError) Error() string {
	return fmt.Sprintf("%s: transductor is in PROXY state and cannot run", e.Operation)
}

// ModelLoadError wraps a failure to parse or validate a model file
// (bad magic/version, truncated table, checksum mismatch).
type ModelLoadError struct {
	Path   string
	Reason string
}

func (e ModelLoadError) Error() string {
	return fmt.Sprintf("can't load model %q: %s", e.Path, e.Reason)
}
