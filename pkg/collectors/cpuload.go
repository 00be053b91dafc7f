package collectors

import (
	"bufio"
	"bytes"
	"errors"
	"strconv"
	"strings"

	"github.com/qscuio/qmemd/pkg/collector"
	"github.com/qscuio/qmemd/pkg/document"
	"github.com/qscuio/qmemd/pkg/entity"
)

const cpuloadDefaultTopN = 20 // original_source/src/services/cpuload.c TOP_N

var errCPULineMissing = errors.New("cpuload: no aggregate cpu line in /proc/stat")

type cpuCounters struct {
	User, Nice, System, Idle, IOWait, IRQ, SoftIRQ uint64
}

func (c cpuCounters) total() uint64 {
	return c.User + c.Nice + c.System + c.Idle + c.IOWait + c.IRQ + c.SoftIRQ
}

type procCPUTuple struct {
	Ticks uint64
	Cmd   string
}

// Cpuload reports system-wide CPU utilization from /proc/stat's
// aggregate line and, keyed by pid, ranks per-process CPU-tick
// consumption since the prior tick. Grounded on
// original_source/src/services/cpuload.c.
type Cpuload struct {
	curSys, prevSys cpuCounters
	hasPrevSys      bool

	pop  *entity.Population[int32, procCPUTuple]
	topN int

	topConsumers []entity.Delta[int32]
}

// NewCpuload returns an unregistered Cpuload collector.
func NewCpuload() *Cpuload { return &Cpuload{} }

func (c *Cpuload) Init(cfg collector.Config) error {
	c.pop = entity.NewPopulation[int32, procCPUTuple]()
	c.topN = cfg.TopN
	if c.topN <= 0 {
		c.topN = cpuloadDefaultTopN
	}
	return nil
}

func (c *Cpuload) Collect(hints collector.HintProvider) error {
	sysBuf, err := readProcFile("/proc/stat")
	if err != nil {
		return err
	}
	cur, ok := parseSystemCPU(sysBuf)
	if !ok {
		return errCPULineMissing
	}
	c.prevSys = c.curSys
	c.hasPrevSys = c.curSys.total() > 0
	c.curSys = cur

	c.pop.Swap()
	pids, err := listPIDs()
	if err != nil {
		return err
	}
	for _, pid := range pids {
		st, ok := readStat(pid)
		if !ok {
			continue
		}
		cmd, _ := readCmdline(pid)
		c.pop.Put(pid, procCPUTuple{Ticks: st.UTime + st.STime, Cmd: cmd})
	}

	deltas := entity.Diff(c.pop, func(t procCPUTuple) int64 { return int64(t.Ticks) }, func(curr, prev int64) int64 {
		return entity.CounterDelta(uint64(curr), uint64(prev))
	})
	c.topConsumers = entity.TopGrowers(deltas, c.topN)
	return nil
}

// parseSystemCPU reads the aggregate "cpu  ..." line of /proc/stat.
func parseSystemCPU(buf []byte) (cpuCounters, bool) {
	sc := bufio.NewScanner(bytes.NewReader(buf))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 8 || fields[0] != "cpu" {
			continue
		}
		u := func(i int) uint64 {
			v, _ := strconv.ParseUint(fields[i], 10, 64)
			return v
		}
		return cpuCounters{User: u(1), Nice: u(2), System: u(3), Idle: u(4), IOWait: u(5), IRQ: u(6), SoftIRQ: u(7)}, true
	}
	return cpuCounters{}, false
}

func (c *Cpuload) Snapshot(w *document.Writer) error {
	w.BeginObject()

	w.Key("system")
	w.BeginObject()
	if c.hasPrevSys {
		idleDelta := entity.CounterDelta(c.curSys.Idle, c.prevSys.Idle)
		totalDelta := entity.CounterDelta(c.curSys.total(), c.prevSys.total())
		var busyPct float64
		if totalDelta > 0 {
			busyPct = float64(totalDelta-idleDelta) * 100.0 / float64(totalDelta)
		}
		w.Key("busy_percent")
		w.Float64(busyPct)
	} else {
		w.Key("busy_percent")
		w.Float64(0)
	}
	w.EndObject()

	w.Key("top_consumers")
	w.BeginArray()
	for _, d := range c.topConsumers {
		t := c.pop.Current()[d.Key]
		w.BeginObject()
		w.Key("pid")
		w.Int64(int64(d.Key))
		w.Key("cmd")
		w.String(t.Cmd)
		w.Key("cpu_ticks")
		w.Int64(int64(t.Ticks))
		w.Key("cpu_ticks_delta")
		w.Int64(d.Delta)
		w.EndObject()
	}
	w.EndArray()

	w.EndObject()
	return nil
}

func (c *Cpuload) Destroy() error { return nil }
