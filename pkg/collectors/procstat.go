package collectors

import (
	"github.com/qscuio/qmemd/pkg/collector"
	"github.com/qscuio/qmemd/pkg/document"
)

const procstatMaxBlocked = 100 // original_source/src/services/procstat.c MAX_BLOCKED

type blockedProc struct {
	PID int32
	Cmd string
}

// Procstat samples every process's run state (/proc/<pid>/stat's state
// character) each tick, summarizing counts per state and listing
// processes currently blocked in uninterruptible disk sleep ('D') --
// often the first visible symptom of an I/O stall. Grounded on
// original_source/src/services/procstat.c. Unlike the keyed collectors,
// procstat reports a point-in-time summary rather than a delta: the
// C original keeps no previous-tick state for it either.
type Procstat struct {
	counts  map[string]int64
	blocked []blockedProc
}

// NewProcstat returns an unregistered Procstat collector.
func NewProcstat() *Procstat { return &Procstat{} }

func (c *Procstat) Init(cfg collector.Config) error {
	c.counts = make(map[string]int64, 8)
	return nil
}

func (c *Procstat) Collect(hints collector.HintProvider) error {
	pids, err := listPIDs()
	if err != nil {
		return err
	}

	counts := make(map[string]int64, 8)
	blocked := make([]blockedProc, 0, procstatMaxBlocked)
	for _, pid := range pids {
		st, ok := readStat(pid)
		if !ok {
			continue
		}
		desc := stateDescription(st.State)
		counts[desc]++
		if st.State == 'D' && len(blocked) < procstatMaxBlocked {
			cmd, _ := readCmdline(pid)
			blocked = append(blocked, blockedProc{PID: pid, Cmd: cmd})
		}
	}
	c.counts = counts
	c.blocked = blocked
	return nil
}

func (c *Procstat) Snapshot(w *document.Writer) error {
	w.BeginObject()
	w.Key("counts")
	w.BeginObject()
	for state, n := range c.counts {
		w.Key(state)
		w.Int64(n)
	}
	w.EndObject()

	w.Key("blocked")
	w.BeginArray()
	for _, b := range c.blocked {
		w.BeginObject()
		w.Key("pid")
		w.Int64(int64(b.PID))
		w.Key("cmd")
		w.String(b.Cmd)
		w.EndObject()
	}
	w.EndArray()
	w.EndObject()
	return nil
}

func (c *Procstat) Destroy() error { return nil }
