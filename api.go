// Package ribose implements a byte-oriented recursive transduction
// engine: a runtime that drives input bytes through a precompiled
// set of finite-state transducers, bound at run time to a
// host-supplied target that provides any effector the transducers
// reference beyond the built-in set.
package ribose

var defaultCache *ModelCache

func init() {
	c, err := NewModelCache(NewConfig())
	if err != nil {
		panic(err)
	}
	defaultCache = c
}

// LoadModel loads and caches the model file at path using the
// package-level default cache, then binds it to target and returns a
// ready Transductor. It is the one-call entry point most callers
// want; NewModelCache/NewTransductor exist for callers that need
// their own cache sizing or config.
func LoadModel(path string, target Target) (*Transductor, error) {
	m, err := defaultCache.Load(path)
	if err != nil {
		return nil, err
	}
	return NewTransductor(m, target, NewConfig())
}
