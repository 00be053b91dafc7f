package collectors

import (
	"time"

	"github.com/qscuio/qmemd/pkg/collector"
	"github.com/qscuio/qmemd/pkg/document"
)

const procEventMaxRecent = 20 // original_source/src/services/procevent.c MAX_EVENTS, trimmed for snapshot size

// procEvent is one observed fork or exit, timestamped at detection.
type procEvent struct {
	Kind string // "fork" or "exit"
	PID  int32
	Cmd  string
	At   time.Time
}

// Procevent detects process fork/exit activity by diffing the set of
// live PIDs between ticks -- the /proc-scanning fallback path of
// original_source/src/services/procevent.c (the netlink proc-connector
// path it also supports needs root and CAP_NET_ADMIN beyond what this
// engine assumes; spec §4.1 requires every collector to tolerate a
// bounded, non-blocking read, which a plain /proc scan satisfies without
// a netlink socket's additional failure modes).
type Procevent struct {
	prevPIDs map[int32]string
	recent   []procEvent
	forked   uint64
	exited   uint64
}

// NewProcevent returns an unregistered Procevent collector.
func NewProcevent() *Procevent { return &Procevent{} }

func (c *Procevent) Init(cfg collector.Config) error {
	c.prevPIDs = nil
	return nil
}

func (c *Procevent) Collect(hints collector.HintProvider) error {
	pids, err := listPIDs()
	if err != nil {
		return err
	}

	curPIDs := make(map[int32]string, len(pids))
	for _, pid := range pids {
		cmd, _ := readCmdline(pid)
		curPIDs[pid] = cmd
	}

	if c.prevPIDs != nil {
		now := time.Now()
		for pid, cmd := range curPIDs {
			if _, existed := c.prevPIDs[pid]; !existed {
				c.forked++
				c.record(procEvent{Kind: "fork", PID: pid, Cmd: cmd, At: now})
			}
		}
		for pid, cmd := range c.prevPIDs {
			if _, stillHere := curPIDs[pid]; !stillHere {
				c.exited++
				c.record(procEvent{Kind: "exit", PID: pid, Cmd: cmd, At: now})
			}
		}
	}

	c.prevPIDs = curPIDs
	return nil
}

// record appends ev, keeping only the most recent procEventMaxRecent
// entries (a ring in spirit, grounded on procevent.c's fixed-size
// event_head/event_count circular array).
func (c *Procevent) record(ev procEvent) {
	c.recent = append(c.recent, ev)
	if len(c.recent) > procEventMaxRecent {
		c.recent = c.recent[len(c.recent)-procEventMaxRecent:]
	}
}

func (c *Procevent) Snapshot(w *document.Writer) error {
	w.BeginObject()
	w.Key("counters")
	w.BeginObject()
	w.Key("forked")
	w.Int64(int64(c.forked))
	w.Key("exited")
	w.Int64(int64(c.exited))
	w.EndObject()

	w.Key("recent")
	w.BeginArray()
	for i := len(c.recent) - 1; i >= 0; i-- { // most recent first
		ev := c.recent[i]
		w.BeginObject()
		w.Key("kind")
		w.String(ev.Kind)
		w.Key("pid")
		w.Int64(int64(ev.PID))
		w.Key("cmd")
		w.String(ev.Cmd)
		w.Key("timestamp")
		w.Int64(ev.At.Unix())
		w.EndObject()
	}
	w.EndArray()
	w.EndObject()
	return nil
}

func (c *Procevent) Destroy() error { return nil }
