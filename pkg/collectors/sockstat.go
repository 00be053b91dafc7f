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
	sockstatDefaultTopN     = 12
	sockstatDefaultMinDelta = 1
)

// Sockstat samples /proc/net/sockstat, keyed by "<protocol>_<metric>"
// (e.g. "TCP_inuse", "sockets_used"), and lists the counters whose value
// changed by at least the minimum delta since the prior tick, ordered by
// their absolute current value, largest first. Grounded on
// original_source/src/services/sockstat.c.
type Sockstat struct {
	pop      *entity.Population[string, int64]
	topN     int
	minDelta int64

	changed []entity.Delta[string]
}

// NewSockstat returns an unregistered Sockstat collector.
func NewSockstat() *Sockstat { return &Sockstat{} }

func (c *Sockstat) Init(cfg collector.Config) error {
	c.pop = entity.NewPopulation[string, int64]()
	c.topN = cfg.TopN
	if c.topN <= 0 {
		c.topN = sockstatDefaultTopN
	}
	c.minDelta = cfg.MinDelta
	if c.minDelta <= 0 {
		c.minDelta = sockstatDefaultMinDelta
	}
	return nil
}

func (c *Sockstat) Collect(hints collector.HintProvider) error {
	c.pop.Swap()

	buf, err := readProcFile("/proc/net/sockstat")
	if err != nil {
		return err
	}
	for k, v := range parseSockstat(buf) {
		c.pop.Put(k, v)
	}

	deltas := entity.Diff(c.pop, func(v int64) int64 { return v }, entity.SignedDelta)
	c.changed = entity.Filter(deltas, c.minDelta)
	return nil
}

// parseSockstat parses lines of the form "Protocol: metric value metric
// value ..." (the first line, "sockets: used N", has only one pair) into
// a flat map keyed "Protocol_metric".
func parseSockstat(buf []byte) map[string]int64 {
	out := make(map[string]int64, 32)
	sc := bufio.NewScanner(bytes.NewReader(buf))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 {
			continue
		}
		proto := strings.TrimSuffix(fields[0], ":")
		for i := 1; i+1 < len(fields); i += 2 {
			v, err := strconv.ParseInt(fields[i+1], 10, 64)
			if err != nil {
				continue
			}
			out[proto+"_"+fields[i]] = v
		}
	}
	return out
}

func (c *Sockstat) Snapshot(w *document.Writer) error {
	w.BeginObject()
	w.Key("counters")
	w.BeginObject()
	for k, v := range c.pop.Current() {
		w.Key(k)
		w.Int64(v)
	}
	w.EndObject()
	w.Key("changed")
	w.BeginArray()
	for _, d := range entity.TopAbsolute(c.changed, c.topN) {
		w.BeginObject()
		w.Key("metric")
		w.String(d.Key)
		w.Key("value")
		w.Int64(d.Value)
		w.Key("delta")
		w.Int64(d.Delta)
		w.EndObject()
	}
	w.EndArray()
	w.EndObject()
	return nil
}

func (c *Sockstat) Destroy() error { return nil }
