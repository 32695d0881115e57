package ribose

import "github.com/google/uuid"

// Metrics accumulates the four per-run counters spec §4.1's
// `metrics(acc)` names: bytes read from the input stack (primary and
// pushed frames alike, replayed bytes included), how many times the
// domain-error/nul recovery path fired, how many equivalence-class
// table probes the kernel lookup made (the "accelerated trap" scan
// spec §3 describes, one probe per input — byte or signal — plus one
// more per nul-recovery retry), and how many bytes are
// currently held alive by an armed mark set. RunID tags a run for
// correlation with host-side logs and is assigned once, at
// construction, with google/uuid the way ProbeChain tags peer and
// transaction ids.
type Metrics struct {
	RunID         uuid.UUID
	BytesConsumed int64
	DomainErrors  int64
	ClassProbes   int64
	BytesRetained int64
}
