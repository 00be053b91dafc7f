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
	netstatDefaultTopN     = 12
	netstatDefaultMinDelta = 1024 // 1 KiB of combined traffic
)

type ifaceTuple struct {
	RxBytes, RxPackets, RxErrs, RxDrop uint64
	TxBytes, TxPackets, TxErrs, TxDrop uint64
}

func (t ifaceTuple) total() int64 { return int64(t.RxBytes + t.TxBytes) }

// Netstat samples /proc/net/dev, keyed by interface name, and ranks
// interfaces by combined rx+tx byte growth. Grounded on
// original_source/src/services/netstat.c.
type Netstat struct {
	pop      *entity.Population[string, ifaceTuple]
	topN     int
	minDelta int64

	growers, shrinkers, top []entity.Delta[string]
}

// NewNetstat returns an unregistered Netstat collector.
func NewNetstat() *Netstat { return &Netstat{} }

func (c *Netstat) Init(cfg collector.Config) error {
	c.pop = entity.NewPopulation[string, ifaceTuple]()
	c.topN = cfg.TopN
	if c.topN <= 0 {
		c.topN = netstatDefaultTopN
	}
	c.minDelta = cfg.MinDelta
	if c.minDelta <= 0 {
		c.minDelta = netstatDefaultMinDelta
	}
	return nil
}

func (c *Netstat) Collect(hints collector.HintProvider) error {
	c.pop.Swap()

	buf, err := readProcFile("/proc/net/dev")
	if err != nil {
		return err
	}
	for name, t := range parseNetDev(buf) {
		c.pop.Put(name, t)
	}

	deltas := entity.Diff(c.pop, func(t ifaceTuple) int64 { return t.total() }, func(curr, prev int64) int64 {
		return entity.CounterDelta(uint64(curr), uint64(prev))
	})
	deltas = entity.Filter(deltas, c.minDelta)

	c.growers = entity.TopGrowers(deltas, c.topN)
	c.shrinkers = entity.TopShrinkers(deltas, c.topN)
	c.top = entity.TopAbsolute(deltas, c.topN)
	return nil
}

// parseNetDev parses the two-line-header table of /proc/net/dev into a
// map of interface name to its counter tuple.
func parseNetDev(buf []byte) map[string]ifaceTuple {
	out := make(map[string]ifaceTuple, 16)
	sc := bufio.NewScanner(bytes.NewReader(buf))
	line := 0
	for sc.Scan() {
		line++
		if line <= 2 {
			continue // header lines
		}
		text := sc.Text()
		idx := strings.IndexByte(text, ':')
		if idx < 0 {
			continue
		}
		name := strings.TrimSpace(text[:idx])
		fields := strings.Fields(text[idx+1:])
		if len(fields) < 16 {
			continue
		}
		u := func(i int) uint64 {
			v, _ := strconv.ParseUint(fields[i], 10, 64)
			return v
		}
		out[name] = ifaceTuple{
			RxBytes: u(0), RxPackets: u(1), RxErrs: u(2), RxDrop: u(3),
			TxBytes: u(8), TxPackets: u(9), TxErrs: u(10), TxDrop: u(11),
		}
	}
	return out
}

func (c *Netstat) writeEntries(w *document.Writer, key string, deltas []entity.Delta[string]) {
	w.Key(key)
	w.BeginArray()
	for _, d := range deltas {
		t := c.pop.Current()[d.Key]
		w.BeginObject()
		w.Key("interface")
		w.String(d.Key)
		w.Key("rx_bytes")
		w.Int64(int64(t.RxBytes))
		w.Key("tx_bytes")
		w.Int64(int64(t.TxBytes))
		w.Key("total_delta")
		w.Int64(d.Delta)
		w.EndObject()
	}
	w.EndArray()
}

func (c *Netstat) Snapshot(w *document.Writer) error {
	w.BeginObject()
	c.writeEntries(w, "top_growers", c.growers)
	c.writeEntries(w, "top_shrinkers", c.shrinkers)
	c.writeEntries(w, "top_absolute", c.top)
	w.EndObject()
	return nil
}

func (c *Netstat) Destroy() error { return nil }
