// Package manager implements the Service Manager (spec §4.3): the ordered
// collector registry and the per-tick collect/snapshot drive. Grounded on
// original_source/src/daemon/service_manager.c (register/unregister by
// identity, collect_all never aborting on a single collector's failure,
// snapshot_all opening the document root and a services mapping) and
// restructured as an explicit Go type per spec §9's Design Notes ("keep
// [the service list] as an explicit owned value held by the scheduler").
package manager

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/qscuio/qmemd/pkg/collector"
	"github.com/qscuio/qmemd/pkg/document"
	"github.com/qscuio/qmemd/pkg/metrics"
)

// Manager is the Service Manager: an ordered, name-unique collector
// registry plus the per-collector hint cache that backs HintProvider.
//
// hints and pending implement the one-tick lag SPEC_FULL.md §13 requires:
// hints is what HintProvider.Hint reads during this tick's CollectAll --
// the previous tick's already-published results -- while pending
// accumulates this tick's freshly published hints. CollectAll promotes
// pending into hints at the top of the next tick, before any collector
// runs, so a consumer can never observe a hint from the tick currently in
// progress.
type Manager struct {
	mu      sync.Mutex
	records []*collector.Record
	index   map[string]int
	hints   map[string]any
	pending map[string]any
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{
		index:   make(map[string]int),
		hints:   make(map[string]any),
		pending: make(map[string]any),
	}
}

// Register calls cfg-bound Init and, on success, appends rec to the
// registry. Name collisions are rejected. Registration must happen between
// ticks -- callers (the Scheduler, the Plugin Loader) are responsible for
// serializing this against CollectAll/SnapshotAll, matching spec §4.3's
// "Enforces that registration happens between ticks".
func (m *Manager) Register(rec *collector.Record, cfg collector.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.index[rec.Name]; exists {
		return fmt.Errorf("collector %q already registered", rec.Name)
	}
	if err := rec.Collector.Init(cfg); err != nil {
		return fmt.Errorf("init collector %q: %w", rec.Name, err)
	}

	m.index[rec.Name] = len(m.records)
	m.records = append(m.records, rec)
	return nil
}

// Unregister locates rec by name, removes it while preserving the order of
// the remaining records, and calls Destroy. A no-op if the name is not
// present.
func (m *Manager) Unregister(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.index[name]
	if !ok {
		return nil
	}
	rec := m.records[i]
	m.records = append(m.records[:i], m.records[i+1:]...)
	delete(m.index, name)
	for n, idx := range m.index {
		if idx > i {
			m.index[n] = idx - 1
		}
	}
	delete(m.hints, name)
	delete(m.pending, name)
	return rec.Collector.Destroy()
}

// Count returns the number of registered collectors.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Records returns a snapshot copy of the registered records in registration
// order, for SERVICES responses and admin tooling.
func (m *Manager) Records() []*collector.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*collector.Record, len(m.records))
	copy(out, m.records)
	return out
}

// Hint implements collector.HintProvider: it exposes the previous tick's
// already-published result for a named collector.
func (m *Manager) Hint(name string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.hints[name]
	return v, ok
}

// CollectAll iterates the registry in order, skipping disabled collectors,
// and calls Collect on each. A single collector's failure is logged and
// counted but never aborts the tick (spec §4.3). Returns the number of
// collectors that failed this tick.
//
// Before any collector runs, last tick's pending hints are promoted to
// hints, the map HintProvider.Hint reads -- so every Collect call this
// tick observes only results published by the tick before it, never a
// sibling's result from the tick in progress (SPEC_FULL.md §13). Hints
// this tick's collectors publish land in pending and become visible only
// starting next tick.
func (m *Manager) CollectAll() int {
	m.mu.Lock()
	m.hints = m.pending
	m.pending = make(map[string]any, len(m.hints))
	records := make([]*collector.Record, len(m.records))
	copy(records, m.records)
	m.mu.Unlock()

	failures := 0
	for _, rec := range records {
		if !rec.Enabled {
			continue
		}
		start := time.Now()
		err := rec.Collector.Collect(m)
		metrics.CollectDuration.WithLabelValues(rec.Name).Observe(time.Since(start).Seconds())
		if err != nil {
			slog.Warn("collector failed", slog.String("collector", rec.Name), slog.String("error", err.Error()))
			metrics.TickFailures.WithLabelValues(rec.Name).Inc()
			failures++
			continue
		}
		rec.CollectCount++
		if hp, ok := rec.Collector.(collector.HintPublisher); ok {
			m.mu.Lock()
			m.pending[rec.Name] = hp.PublishHint()
			m.mu.Unlock()
		}
	}
	return failures
}

// SnapshotAll opens the document root, writes tick metadata, opens the
// "services" mapping, and emits {name: collector.Snapshot(w)} for each
// enabled collector in registration order, closing both mappings (spec
// §4.3). Collectors whose Snapshot returns an error emit null instead of
// their document and are logged at warn, rather than aborting the whole
// snapshot -- the same failure-isolation policy as CollectAll.
func (m *Manager) SnapshotAll(w *document.Writer, tick uint64, timestampUnix int64) {
	m.mu.Lock()
	records := make([]*collector.Record, len(m.records))
	copy(records, m.records)
	m.mu.Unlock()

	w.BeginObject()
	w.Key("tick")
	w.Int64(int64(tick))
	w.Key("timestamp")
	w.Int64(timestampUnix)
	w.Key("services")
	w.BeginObject()
	for _, rec := range records {
		w.Key(rec.Name)
		if !rec.Enabled {
			w.Null()
			continue
		}
		if err := rec.Collector.Snapshot(w); err != nil {
			slog.Warn("collector snapshot failed", slog.String("collector", rec.Name), slog.String("error", err.Error()))
			w.Null()
		}
	}
	w.EndObject()
	w.EndObject()
}

// WriteServices implements ipc.ServicesLister: it emits {"services": [...]}
// holding one {name, description, enabled, collect_count} object for each
// registered collector in registration order, answering
// the IPC SERVICES request and the admin CLI's services subcommand.
func (m *Manager) WriteServices(w *document.Writer) {
	m.mu.Lock()
	records := make([]*collector.Record, len(m.records))
	copy(records, m.records)
	m.mu.Unlock()

	w.BeginObject()
	w.Key("services")
	w.BeginArray()
	for _, rec := range records {
		w.BeginObject()
		w.Key("name")
		w.String(rec.Name)
		w.Key("description")
		w.String(rec.Description)
		w.Key("enabled")
		w.Bool(rec.Enabled)
		w.Key("collect_count")
		w.Int64(int64(rec.CollectCount))
		w.EndObject()
	}
	w.EndArray()
	w.EndObject()
}

// Shutdown destroys all registered collectors in reverse-registration
// order (spec §4.3).
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.records) - 1; i >= 0; i-- {
		if err := m.records[i].Collector.Destroy(); err != nil {
			slog.Warn("collector destroy failed", slog.String("collector", m.records[i].Name), slog.String("error", err.Error()))
		}
	}
	m.records = nil
	m.index = make(map[string]int)
	m.hints = make(map[string]any)
}
