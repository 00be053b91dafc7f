package collectors

import (
	"github.com/qscuio/qmemd/pkg/collector"
	"github.com/qscuio/qmemd/pkg/document"
	"github.com/qscuio/qmemd/pkg/entity"
)

// vmstatFields are the monotonic counters this collector tracks from
// /proc/vmstat, grounded on original_source/src/services/vmstat.c.
var vmstatFields = []string{
	"nr_slab_unreclaimable", "nr_slab_reclaimable", "nr_kernel_stack",
	"nr_page_table_pages", "nr_dirty", "nr_writeback",
	"pgfault", "pgmajfault", "pgpgin", "pgpgout",
}

// Vmstat samples /proc/vmstat's monotonic kernel counters and reports
// deltas using the wraparound-safe counter policy of spec §4.2 (a
// decrease reports zero, never a wrap computation).
type Vmstat struct {
	current     map[string]uint64
	previous    map[string]uint64
	hasPrevious bool
}

// NewVmstat returns an unregistered Vmstat collector.
func NewVmstat() *Vmstat { return &Vmstat{} }

func (c *Vmstat) Init(cfg collector.Config) error {
	// current starts nil, not an empty map: the first Collect's swap must
	// produce previous == nil so hasPrevious is false on tick 1, matching
	// entity.Population's per-key Previous lookup for every other
	// collector (spec §4.2: a key with no prior sample has delta zero,
	// not today's full counter value).
	c.current = nil
	return nil
}

func (c *Vmstat) Collect(hints collector.HintProvider) error {
	buf, err := readProcFile("/proc/vmstat")
	if err != nil {
		return err
	}
	parsed := parseVMStat(buf)

	c.previous = c.current
	c.hasPrevious = c.previous != nil
	c.current = make(map[string]uint64, len(vmstatFields))
	for _, f := range vmstatFields {
		if v, ok := parsed[f]; ok && v >= 0 {
			c.current[f] = uint64(v)
		}
	}
	return nil
}

func (c *Vmstat) Snapshot(w *document.Writer) error {
	w.BeginObject()
	for _, f := range vmstatFields {
		w.Key(f)
		cur := int64(c.current[f])
		var delta int64
		if c.hasPrevious {
			delta = entity.CounterDelta(c.current[f], c.previous[f])
		}
		w.ValueDelta(cur, delta, c.hasPrevious)
	}
	w.EndObject()
	return nil
}

func (c *Vmstat) Destroy() error { return nil }
