package collectors

import (
	"github.com/qscuio/qmemd/pkg/collector"
	"github.com/qscuio/qmemd/pkg/document"
	"github.com/qscuio/qmemd/pkg/entity"
)

const (
	fdmonDefaultTopN     = 25 // original_source/src/services/fdmon.c TOP_COUNT
	fdmonDefaultMinDelta = 10
)

type fdTuple struct {
	Count int64
	Cmd   string
}

// Fdmon tracks per-process open-file-descriptor counts, keyed by pid, to
// surface processes leaking descriptors over time. Grounded on
// original_source/src/services/fdmon.c; the baseline ("initial") table
// the C original keeps to distinguish a steady high count from an
// actively growing one is reproduced here as baseline, seeded on first
// sight of each pid and never overwritten thereafter.
type Fdmon struct {
	pop      *entity.Population[int32, fdTuple]
	baseline map[int32]int64
	topN     int
	minDelta int64

	consumers, leakers []entity.Delta[int32]
}

// NewFdmon returns an unregistered Fdmon collector.
func NewFdmon() *Fdmon { return &Fdmon{} }

func (c *Fdmon) Init(cfg collector.Config) error {
	c.pop = entity.NewPopulation[int32, fdTuple]()
	c.baseline = make(map[int32]int64)
	c.topN = cfg.TopN
	if c.topN <= 0 {
		c.topN = fdmonDefaultTopN
	}
	c.minDelta = cfg.MinDelta
	if c.minDelta <= 0 {
		c.minDelta = fdmonDefaultMinDelta
	}
	return nil
}

func (c *Fdmon) Collect(hints collector.HintProvider) error {
	c.pop.Swap()

	pids, err := listPIDs()
	if err != nil {
		return err
	}
	for _, pid := range pids {
		n, ok := countOpenFDs(pid)
		if !ok {
			continue
		}
		cmd, _ := readCmdline(pid)
		c.pop.Put(pid, fdTuple{Count: n, Cmd: cmd})
		if _, seen := c.baseline[pid]; !seen {
			c.baseline[pid] = n
		}
	}
	// Drop baseline entries for pids that vanished, mirroring the
	// spec's "entity that disappears ... contributes to no delta".
	for pid := range c.baseline {
		if _, ok := c.pop.Current()[pid]; !ok {
			delete(c.baseline, pid)
		}
	}

	deltas := entity.Diff(c.pop, func(t fdTuple) int64 { return t.Count }, entity.SignedDelta)
	filtered := entity.Filter(deltas, c.minDelta)

	c.consumers = entity.TopAbsolute(deltas, c.topN)
	c.leakers = entity.TopGrowers(filtered, c.topN)
	return nil
}

func (c *Fdmon) writeEntries(w *document.Writer, key string, deltas []entity.Delta[int32]) {
	w.Key(key)
	w.BeginArray()
	for _, d := range deltas {
		t := c.pop.Current()[d.Key]
		w.BeginObject()
		w.Key("pid")
		w.Int64(int64(d.Key))
		w.Key("cmd")
		w.String(t.Cmd)
		w.Key("fd_count")
		w.Int64(t.Count)
		w.Key("fd_delta")
		w.Int64(d.Delta)
		w.Key("baseline_fd_count")
		w.Int64(c.baseline[d.Key])
		w.EndObject()
	}
	w.EndArray()
}

func (c *Fdmon) Snapshot(w *document.Writer) error {
	w.BeginObject()
	c.writeEntries(w, "top_consumers", c.consumers)
	c.writeEntries(w, "leakers", c.leakers)
	w.EndObject()
	return nil
}

func (c *Fdmon) Destroy() error { return nil }
