package collectors

import (
	"github.com/qscuio/qmemd/pkg/collector"
	"github.com/qscuio/qmemd/pkg/document"
)

const memleakMaxEntries = 10 // original_source/src/services/memleak.c's fixed-size entries[10] arrays

// Memleak unifies kernel-side (slabinfo) and user-side (heapmon) growth
// signals into one leak-triage view. Grounded on
// original_source/src/services/memleak.c. It is a pure aggregator: per
// SPEC_FULL.md §13's resolution of spec §9's open question, it never
// calls Init/Collect on slabinfo, procmem, or heapmon itself -- doing so
// would double-collect and desynchronize their delta state from the
// scheduler's own tick. It only reads slabinfo's and heapmon's
// already-collected result caches through HintProvider, the tick after
// they ran; it reads nothing from procmem.
type Memleak struct {
	slab SlabHint
	heap []HeapEntry
}

// NewMemleak returns an unregistered Memleak collector.
func NewMemleak() *Memleak { return &Memleak{} }

func (c *Memleak) Init(cfg collector.Config) error { return nil }

func (c *Memleak) Collect(hints collector.HintProvider) error {
	c.slab = SlabHint{}
	c.heap = nil
	if hints == nil {
		return nil
	}
	if raw, ok := hints.Hint("slabinfo"); ok {
		if h, ok := raw.(SlabHint); ok {
			c.slab = h
		}
	}
	if raw, ok := hints.Hint("heapmon"); ok {
		if h, ok := raw.([]HeapEntry); ok {
			c.heap = h
		}
	}
	return nil
}

func (c *Memleak) Snapshot(w *document.Writer) error {
	w.BeginObject()

	w.Key("kernel_leaks")
	w.BeginArray()
	for _, e := range capSlab(c.slab.TopGrowers) {
		w.BeginObject()
		w.Key("cache")
		w.String(e.Name)
		w.Key("delta_bytes")
		w.Int64(e.DeltaBytes)
		w.Key("total_bytes")
		w.Int64(e.SizeBytes)
		w.EndObject()
	}
	w.EndArray()

	userLeaks := topHeapByRSSDelta(c.heap, memleakMaxEntries)
	w.Key("user_leaks")
	w.BeginArray()
	writeHeapLeakEntries(w, userLeaks)
	w.EndArray()

	processUsage := topHeapByRSS(c.heap, memleakMaxEntries)
	w.Key("process_usage")
	w.BeginArray()
	writeHeapLeakEntries(w, processUsage)
	w.EndArray()

	w.Key("kernel_usage")
	w.BeginArray()
	for _, e := range capSlab(c.slab.TopAbs) {
		w.BeginObject()
		w.Key("cache")
		w.String(e.Name)
		w.Key("total_bytes")
		w.Int64(e.SizeBytes)
		w.Key("delta_bytes")
		w.Int64(e.DeltaBytes)
		w.Key("active_objs")
		w.Int64(e.NumObjs)
		w.EndObject()
	}
	w.EndArray()

	w.EndObject()
	return nil
}

func (c *Memleak) Destroy() error { return nil }

func capSlab(entries []SlabEntry) []SlabEntry {
	if len(entries) > memleakMaxEntries {
		return entries[:memleakMaxEntries]
	}
	return entries
}

// topHeapByRSSDelta returns up to n entries ranked by RSS growth,
// mirroring memleak.c's reuse of heapmon's top-growers ordering for
// "user_leaks".
func topHeapByRSSDelta(entries []HeapEntry, n int) []HeapEntry {
	out := append([]HeapEntry(nil), entries...)
	insertionSortDesc(out, func(e HeapEntry) int64 { return e.HeapRSSDeltaKB })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// topHeapByRSS returns up to n entries ranked by absolute heap RSS,
// mirroring memleak.c's "process_usage" (heapmon_get_top_consumers).
func topHeapByRSS(entries []HeapEntry, n int) []HeapEntry {
	out := append([]HeapEntry(nil), entries...)
	insertionSortDesc(out, func(e HeapEntry) int64 { return e.HeapRSSKB })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func insertionSortDesc(entries []HeapEntry, key func(HeapEntry) int64) {
	for i := 1; i < len(entries); i++ {
		v := entries[i]
		j := i - 1
		for j >= 0 && key(entries[j]) < key(v) {
			entries[j+1] = entries[j]
			j--
		}
		entries[j+1] = v
	}
}

func writeHeapLeakEntries(w *document.Writer, entries []HeapEntry) {
	for _, e := range entries {
		w.BeginObject()
		w.Key("pid")
		w.Int64(int64(e.PID))
		w.Key("cmd")
		w.String(e.Cmd)
		w.Key("heap_rss_kb")
		w.Int64(e.HeapRSSKB)
		w.Key("heap_rss_delta_kb")
		w.Int64(e.HeapRSSDeltaKB)
		w.Key("heap_private_dirty_kb")
		w.Int64(e.HeapPrivateDirtyKB)
		w.Key("heap_size_kb")
		w.Int64(e.HeapSizeKB)
		w.EndObject()
	}
}
