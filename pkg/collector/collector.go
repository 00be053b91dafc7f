// Package collector defines the four-operation contract every collector --
// built-in or plugin-provided -- implements (spec §4.1), and the stable
// registration record the Service Manager holds for each one.
//
// Grounded on original_source/src/services/service.h's
// qmem_service_ops_t{init, collect, snapshot, destroy} function-pointer
// table, reformulated per spec §9's Design Notes as a polymorphic
// interface rather than a v-table over opaque void* private data -- the
// same "replace function-pointer table with interface" move the teacher
// makes in pkg/collector/factory.go for its own Collector abstraction.
package collector

import "github.com/qscuio/qmemd/pkg/document"

// Config is the per-collector configuration handed to Init: the
// collector's name, its ranking parameters (top-N size and minimum delta,
// which pkg/config fills from the optional YAML config file, SPEC_FULL.md
// §10), and a free-form Extra map.
type Config struct {
	Name      string
	TopN      int
	MinDelta  int64
	Extra     map[string]string
}

// HintProvider is the narrow, read-only cross-collector channel of
// SPEC_FULL.md §13, replacing direct reach-in between collectors (spec §9
// Design Notes). It exposes the previous tick's already-published result
// for a named collector -- never the live one being built this tick.
type HintProvider interface {
	Hint(name string) (any, bool)
}

// HintPublisher is implemented by collectors whose result cache other
// collectors may want to read through a HintProvider (procmem, slabinfo,
// heapmon). Collectors that no other collector depends on need not
// implement it.
type HintPublisher interface {
	PublishHint() any
}

// Collector is the contract every sampling unit implements, whether
// built directly into the daemon or loaded from a plugin shared object.
type Collector interface {
	// Init allocates and associates private state. Called once, before the
	// first Collect. A returned error aborts registration.
	Init(cfg Config) error

	// Collect reads the external surface, updates private state, computes
	// deltas against the prior Collect, and ranks/filters into per-collector
	// result caches. Must be idempotent with respect to external
	// observables: a second call with nothing changed underneath produces
	// a delta of zero against the immediately prior sample. A returned
	// error is treated as a recoverable per-collector failure (logged at
	// warn; the collect counter is not incremented); it must never block
	// longer than the tick interval.
	Collect(hints HintProvider) error

	// Snapshot serializes the collector's latest result cache into w.
	// Exactly one opening nested mapping paired with one closing marker;
	// the caller (Manager.SnapshotAll) has already emitted the collector's
	// key. Must have no I/O side effects and must tolerate an already-
	// overflowed writer by becoming a no-op (the Writer type guarantees
	// this for every method it exposes).
	Snapshot(w *document.Writer) error

	// Destroy releases private state. May be called even if Init never
	// succeeded or was never called; must be idempotent and safe either
	// way.
	Destroy() error
}

// Record is the Service Manager's stable registration for one collector:
// a symbolic name (unique, never renamed for the life of the
// registration), a human description, the Collector implementation, an
// enabled flag, and a monotonic collect counter (spec §3).
type Record struct {
	Name         string
	Description  string
	Collector    Collector
	Enabled      bool
	CollectCount uint64
}
