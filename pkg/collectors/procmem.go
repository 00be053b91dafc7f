package collectors

import (
	"github.com/qscuio/qmemd/pkg/collector"
	"github.com/qscuio/qmemd/pkg/document"
	"github.com/qscuio/qmemd/pkg/entity"
)

const (
	procmemDefaultTopN     = 12
	procmemDefaultMinDelta = 1024 // 1 MiB, in kB
)

type procMemTuple struct {
	RSSKB  int64
	DataKB int64
	Cmd    string
}

// ProcMemEntry is one ranked process-memory result, exported for the
// hint channel heapmon and memleak read through.
type ProcMemEntry struct {
	PID         int32
	Cmd         string
	RSSKB       int64
	DataKB      int64
	RSSDeltaKB  int64
	DataDeltaKB int64
}

// ProcMemHint is the result cache procmem publishes for other collectors
// (SPEC_FULL.md §13): heapmon uses TopGrowers to pick smaps targets.
type ProcMemHint struct {
	TopGrowers   []ProcMemEntry
	TopShrinkers []ProcMemEntry
	TopRSS       []ProcMemEntry
}

// Procmem ranks per-process RSS growth across ticks. Grounded on
// original_source/src/services/procmem.c's pid-hash-table diff (here
// pkg/entity.Population[int32, procMemTuple]).
type Procmem struct {
	pop      *entity.Population[int32, procMemTuple]
	topN     int
	minDelta int64

	hint ProcMemHint
}

// NewProcmem returns an unregistered Procmem collector.
func NewProcmem() *Procmem { return &Procmem{} }

func (c *Procmem) Init(cfg collector.Config) error {
	c.pop = entity.NewPopulation[int32, procMemTuple]()
	c.topN = cfg.TopN
	if c.topN <= 0 {
		c.topN = procmemDefaultTopN
	}
	c.minDelta = cfg.MinDelta
	if c.minDelta <= 0 {
		c.minDelta = procmemDefaultMinDelta
	}
	return nil
}

func (c *Procmem) Collect(hints collector.HintProvider) error {
	c.pop.Swap()

	pids, err := listPIDs()
	if err != nil {
		return err
	}
	for _, pid := range pids {
		rss, ok1 := readStatusKB(pid, "VmRSS")
		data, ok2 := readStatusKB(pid, "VmData")
		if !ok1 || !ok2 {
			continue // process vanished mid-scan; spec §4.1 tolerates this
		}
		cmd, _ := readCmdline(pid)
		c.pop.Put(pid, procMemTuple{RSSKB: rss, DataKB: data, Cmd: cmd})
	}

	deltas := entity.Diff(c.pop, func(t procMemTuple) int64 { return t.RSSKB }, entity.SignedDelta)
	deltas = entity.Filter(deltas, c.minDelta)

	c.hint = ProcMemHint{
		TopGrowers:   toProcMemEntries(c.pop, entity.TopGrowers(deltas, c.topN)),
		TopShrinkers: toProcMemEntries(c.pop, entity.TopShrinkers(deltas, c.topN)),
		TopRSS:       toProcMemEntries(c.pop, entity.TopAbsolute(deltas, c.topN)),
	}
	return nil
}

func toProcMemEntries(pop *entity.Population[int32, procMemTuple], deltas []entity.Delta[int32]) []ProcMemEntry {
	out := make([]ProcMemEntry, 0, len(deltas))
	for _, d := range deltas {
		t := pop.Current()[d.Key]
		var dataDelta int64
		if prev, ok := pop.Previous(d.Key); ok {
			dataDelta = t.DataKB - prev.DataKB
		}
		out = append(out, ProcMemEntry{
			PID:         d.Key,
			Cmd:         t.Cmd,
			RSSKB:       t.RSSKB,
			DataKB:      t.DataKB,
			RSSDeltaKB:  d.Delta,
			DataDeltaKB: dataDelta,
		})
	}
	return out
}

func (c *Procmem) Snapshot(w *document.Writer) error {
	w.BeginObject()
	writeProcMemEntries(w, "top_growers", c.hint.TopGrowers)
	writeProcMemEntries(w, "top_shrinkers", c.hint.TopShrinkers)
	writeProcMemEntries(w, "top_rss", c.hint.TopRSS)
	w.EndObject()
	return nil
}

func writeProcMemEntries(w *document.Writer, key string, entries []ProcMemEntry) {
	w.Key(key)
	w.BeginArray()
	for _, e := range entries {
		w.BeginObject()
		w.Key("pid")
		w.Int64(int64(e.PID))
		w.Key("cmd")
		w.String(e.Cmd)
		w.Key("rss_kb")
		w.Int64(e.RSSKB)
		w.Key("data_kb")
		w.Int64(e.DataKB)
		w.Key("rss_delta_kb")
		w.Int64(e.RSSDeltaKB)
		w.Key("data_delta_kb")
		w.Int64(e.DataDeltaKB)
		w.EndObject()
	}
	w.EndArray()
}

func (c *Procmem) Destroy() error { return nil }

// PublishHint implements collector.HintPublisher.
func (c *Procmem) PublishHint() any { return c.hint }
