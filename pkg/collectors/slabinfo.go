package collectors

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"github.com/qscuio/qmemd/pkg/collector"
	"github.com/qscuio/qmemd/pkg/document"
	"github.com/qscuio/qmemd/pkg/entity"
)

const (
	slabinfoDefaultTopN     = 20 // spec §4.2: "default 12, 20 for slab"
	slabinfoDefaultMinDelta = 512 * 1024 // 512 KiB, in bytes
)

type slabTuple struct {
	SizeBytes int64
	NumObjs   int64
	ObjSize   int64
}

// SlabEntry is one ranked slab-cache result, exported for memleak's hint
// read.
type SlabEntry struct {
	Name       string
	SizeBytes  int64
	DeltaBytes int64
	NumObjs    int64
}

// SlabHint is the result cache Slabinfo publishes (SPEC_FULL.md §13).
type SlabHint struct {
	TopGrowers []SlabEntry
	TopAbs     []SlabEntry
}

// Slabinfo samples /proc/slabinfo, keyed by cache name, and ranks kernel
// slab-cache growth. Grounded on
// original_source/src/services/slabinfo.c.
type Slabinfo struct {
	pop      *entity.Population[string, slabTuple]
	topN     int
	minDelta int64

	hint SlabHint
}

// NewSlabinfo returns an unregistered Slabinfo collector.
func NewSlabinfo() *Slabinfo { return &Slabinfo{} }

func (c *Slabinfo) Init(cfg collector.Config) error {
	c.pop = entity.NewPopulation[string, slabTuple]()
	c.topN = cfg.TopN
	if c.topN <= 0 {
		c.topN = slabinfoDefaultTopN
	}
	c.minDelta = cfg.MinDelta
	if c.minDelta <= 0 {
		c.minDelta = slabinfoDefaultMinDelta
	}
	return nil
}

func (c *Slabinfo) Collect(hints collector.HintProvider) error {
	c.pop.Swap()

	buf, err := readProcFile("/proc/slabinfo")
	if err != nil {
		return err
	}
	for name, t := range parseSlabinfo(buf) {
		c.pop.Put(name, t)
	}

	deltas := entity.Diff(c.pop, func(t slabTuple) int64 { return t.SizeBytes }, entity.SignedDelta)
	deltas = entity.Filter(deltas, c.minDelta)

	c.hint = SlabHint{
		TopGrowers: toSlabEntries(c.pop, entity.TopGrowers(deltas, c.topN)),
		TopAbs:     toSlabEntries(c.pop, entity.TopAbsolute(deltas, c.topN)),
	}
	return nil
}

// parseSlabinfo walks a /proc/slabinfo buffer and returns a map of cache
// name to its (num_objs, obj_size) tuple, skipping the "slabinfo -
// version" and column-header lines. Field layout: name <active_objs>
// <num_objs> <objsize> <objperslab> <pagesperslab> ...
func parseSlabinfo(buf []byte) map[string]slabTuple {
	out := make(map[string]slabTuple, 256)
	sc := bufio.NewScanner(bytes.NewReader(buf))
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "slabinfo") || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		numObjs, err1 := strconv.ParseInt(fields[2], 10, 64)
		objSize, err2 := strconv.ParseInt(fields[3], 10, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		out[fields[0]] = slabTuple{SizeBytes: numObjs * objSize, NumObjs: numObjs, ObjSize: objSize}
	}
	return out
}

func toSlabEntries(pop *entity.Population[string, slabTuple], deltas []entity.Delta[string]) []SlabEntry {
	out := make([]SlabEntry, 0, len(deltas))
	for _, d := range deltas {
		t := pop.Current()[d.Key]
		out = append(out, SlabEntry{Name: d.Key, SizeBytes: t.SizeBytes, DeltaBytes: d.Delta, NumObjs: t.NumObjs})
	}
	return out
}

func (c *Slabinfo) Snapshot(w *document.Writer) error {
	w.BeginObject()
	writeSlabEntries(w, "top_growers", c.hint.TopGrowers)
	writeSlabEntries(w, "top_absolute", c.hint.TopAbs)
	w.EndObject()
	return nil
}

func writeSlabEntries(w *document.Writer, key string, entries []SlabEntry) {
	w.Key(key)
	w.BeginArray()
	for _, e := range entries {
		w.BeginObject()
		w.Key("cache")
		w.String(e.Name)
		w.Key("size_bytes")
		w.Int64(e.SizeBytes)
		w.Key("delta_bytes")
		w.Int64(e.DeltaBytes)
		w.Key("num_objs")
		w.Int64(e.NumObjs)
		w.EndObject()
	}
	w.EndArray()
}

func (c *Slabinfo) Destroy() error { return nil }

// PublishHint implements collector.HintPublisher.
func (c *Slabinfo) PublishHint() any { return c.hint }
