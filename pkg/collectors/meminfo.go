package collectors

import (
	"github.com/qscuio/qmemd/pkg/collector"
	"github.com/qscuio/qmemd/pkg/document"
)

// memFields is the subset of /proc/meminfo keys meminfo.c tracks.
var memFields = []string{
	"MemTotal", "MemAvailable", "MemFree", "Buffers", "Cached",
	"Slab", "SReclaimable", "SUnreclaim",
	"Active", "Inactive", "AnonPages", "VmallocUsed", "PageTables",
	"KernelStack", "Dirty", "Mapped",
}

// Meminfo samples /proc/meminfo once per tick and reports each tracked
// field's value and delta against the prior sample, plus a derived
// used-memory percentage. Grounded on
// original_source/src/services/meminfo.c.
type Meminfo struct {
	current     map[string]int64
	previous    map[string]int64
	hasPrevious bool
	usagePct    float64
}

// NewMeminfo returns an unregistered Meminfo collector.
func NewMeminfo() *Meminfo { return &Meminfo{} }

func (c *Meminfo) Init(cfg collector.Config) error {
	// current starts nil so the first Collect's previous = current swap
	// yields previous == nil and hasPrevious false, not a spurious
	// same-tick delta against an empty map (spec §4.2).
	c.current = nil
	return nil
}

func (c *Meminfo) Collect(hints collector.HintProvider) error {
	buf, err := readProcFile("/proc/meminfo")
	if err != nil {
		return err
	}
	parsed := parseKVKBLines(buf)

	c.previous = c.current
	c.hasPrevious = c.previous != nil
	c.current = make(map[string]int64, len(memFields))
	for _, f := range memFields {
		c.current[f] = parsed[f]
	}

	if total := c.current["MemTotal"]; total > 0 {
		used := total - c.current["MemAvailable"]
		c.usagePct = float64(used) * 100.0 / float64(total)
	} else {
		c.usagePct = 0
	}
	return nil
}

func (c *Meminfo) writeGroup(w *document.Writer, fields ...string) {
	w.BeginObject()
	for _, f := range fields {
		w.Key(fieldJSONName(f))
		cur := c.current[f]
		prev := c.previous[f]
		w.ValueDelta(cur, cur-prev, c.hasPrevious)
	}
	w.EndObject()
}

func (c *Meminfo) Snapshot(w *document.Writer) error {
	w.BeginObject()
	w.Key("usage_percent")
	w.Float64(c.usagePct)

	w.Key("memory")
	c.writeGroup(w, "MemTotal", "MemAvailable", "MemFree", "Buffers", "Cached")

	w.Key("kernel")
	c.writeGroup(w, "Slab", "SReclaimable", "SUnreclaim", "VmallocUsed", "PageTables", "KernelStack")

	w.Key("activity")
	c.writeGroup(w, "Active", "Inactive", "AnonPages", "Dirty", "Mapped")

	w.EndObject()
	return nil
}

func (c *Meminfo) Destroy() error { return nil }

// fieldJSONName lower-snake-cases a /proc/meminfo key and appends the
// "_kb" suffix every field here is denominated in, e.g. "MemTotal" ->
// "total_kb" (spec §1's baseline-boot scenario expects
// "memory.total_kb.value").
func fieldJSONName(f string) string {
	switch f {
	case "MemTotal":
		return "total_kb"
	case "MemAvailable":
		return "available_kb"
	case "MemFree":
		return "free_kb"
	case "Buffers":
		return "buffers_kb"
	case "Cached":
		return "cached_kb"
	case "Slab":
		return "slab_kb"
	case "SReclaimable":
		return "sreclaimable_kb"
	case "SUnreclaim":
		return "sunreclaim_kb"
	case "VmallocUsed":
		return "vmalloc_used_kb"
	case "PageTables":
		return "page_tables_kb"
	case "KernelStack":
		return "kernel_stack_kb"
	case "Active":
		return "active_kb"
	case "Inactive":
		return "inactive_kb"
	case "AnonPages":
		return "anon_pages_kb"
	case "Dirty":
		return "dirty_kb"
	case "Mapped":
		return "mapped_kb"
	default:
		return f
	}
}
