package collectors

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"github.com/qscuio/qmemd/pkg/collector"
	"github.com/qscuio/qmemd/pkg/document"
)

const heapmonMaxTargets = 12 // original_source/src/services/heapmon.c MAX_TARGETS

type heapTuple struct {
	SizeKB, RSSKB, PrivateDirtyKB int64
	Cmd                           string
}

// HeapEntry is one ranked heap-growth result, read by memleak through the
// hint channel.
type HeapEntry struct {
	PID                               int32
	Cmd                                string
	RSSKB, RSSDeltaKB                 int64
	HeapRSSKB, HeapRSSDeltaKB         int64
	HeapPrivateDirtyKB, HeapPDDeltaKB int64
	HeapSizeKB                        int64
}

// Heapmon parses /proc/<pid>/smaps for the [heap] mapping of each
// target process, tracking heap growth across ticks. Grounded on
// original_source/src/services/heapmon.c. It does not scan every PID
// itself (smaps is comparatively expensive to parse): its targets come
// from procmem's top-RSS-growers hint (SPEC_FULL.md §13), read through
// HintProvider rather than by reaching into procmem's private state.
type Heapmon struct {
	current, previous map[int32]heapTuple
	entries           []HeapEntry
}

// NewHeapmon returns an unregistered Heapmon collector.
func NewHeapmon() *Heapmon { return &Heapmon{} }

func (c *Heapmon) Init(cfg collector.Config) error {
	c.current = nil
	return nil
}

func (c *Heapmon) Collect(hints collector.HintProvider) error {
	targets := c.targetsFromHint(hints)

	c.previous = c.current
	c.current = make(map[int32]heapTuple, len(targets))

	for _, pid := range targets {
		buf, err := readProcFile(procPath(pid, "smaps"))
		if err != nil {
			continue // process vanished or smaps unreadable; skip, not fatal
		}
		size, rss, pd := parseHeapSmaps(buf)
		cmd, _ := readCmdline(pid)
		c.current[pid] = heapTuple{SizeKB: size, RSSKB: rss, PrivateDirtyKB: pd, Cmd: cmd}
	}

	entries := make([]HeapEntry, 0, len(c.current))
	for pid, cur := range c.current {
		e := HeapEntry{
			PID: pid, Cmd: cur.Cmd,
			HeapRSSKB: cur.RSSKB, HeapPrivateDirtyKB: cur.PrivateDirtyKB, HeapSizeKB: cur.SizeKB,
		}
		if prev, ok := c.previous[pid]; ok {
			e.HeapRSSDeltaKB = cur.RSSKB - prev.RSSKB
			e.HeapPDDeltaKB = cur.PrivateDirtyKB - prev.PrivateDirtyKB
		}
		entries = append(entries, e)
	}
	c.entries = entries
	return nil
}

// targetsFromHint reads procmem's most recently published hint and
// returns the PIDs of its top RSS growers, capped at heapmonMaxTargets.
func (c *Heapmon) targetsFromHint(hints collector.HintProvider) []int32 {
	if hints == nil {
		return nil
	}
	raw, ok := hints.Hint("procmem")
	if !ok {
		return nil
	}
	hint, ok := raw.(ProcMemHint)
	if !ok {
		return nil
	}
	n := len(hint.TopGrowers)
	if n > heapmonMaxTargets {
		n = heapmonMaxTargets
	}
	pids := make([]int32, 0, n)
	for _, e := range hint.TopGrowers[:n] {
		pids = append(pids, e.PID)
	}
	return pids
}

// parseHeapSmaps scans an smaps buffer for the [heap] VMA and sums its
// Size/Rss/Private_Dirty fields (all in kB), exactly as heapmon.c's
// parse_heap_smaps does.
func parseHeapSmaps(buf []byte) (size, rss, pd int64) {
	inHeap := false
	sc := bufio.NewScanner(bytes.NewReader(buf))
	for sc.Scan() {
		line := sc.Text()
		if len(line) > 0 && isHexDigit(line[0]) {
			inHeap = strings.Contains(line, "[heap]")
			continue
		}
		if !inHeap {
			continue
		}
		switch {
		case strings.HasPrefix(line, "Size:"):
			size += parseSmapsKB(line[len("Size:"):])
		case strings.HasPrefix(line, "Rss:"):
			rss += parseSmapsKB(line[len("Rss:"):])
		case strings.HasPrefix(line, "Private_Dirty:"):
			pd += parseSmapsKB(line[len("Private_Dirty:"):])
		}
	}
	return size, rss, pd
}

func parseSmapsKB(s string) int64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	v, _ := strconv.ParseInt(fields[0], 10, 64)
	return v
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f')
}

func (c *Heapmon) Snapshot(w *document.Writer) error {
	w.BeginObject()
	w.Key("entries")
	w.BeginArray()
	for _, e := range c.entries {
		w.BeginObject()
		w.Key("pid")
		w.Int64(int64(e.PID))
		w.Key("cmd")
		w.String(e.Cmd)
		w.Key("heap_size_kb")
		w.Int64(e.HeapSizeKB)
		w.Key("heap_rss_kb")
		w.Int64(e.HeapRSSKB)
		w.Key("heap_rss_delta_kb")
		w.Int64(e.HeapRSSDeltaKB)
		w.Key("heap_private_dirty_kb")
		w.Int64(e.HeapPrivateDirtyKB)
		w.EndObject()
	}
	w.EndArray()
	w.EndObject()
	return nil
}

func (c *Heapmon) Destroy() error { return nil }

// PublishHint implements collector.HintPublisher for memleak.
func (c *Heapmon) PublishHint() any { return c.entries }
