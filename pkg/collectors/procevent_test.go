package collectors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qscuio/qmemd/pkg/collector"
	"github.com/qscuio/qmemd/pkg/document"
)

func TestProceventRecordTrimsToMaxRecent(t *testing.T) {
	c := NewProcevent()
	require.NoError(t, c.Init(collector.Config{}))
	for i := 0; i < procEventMaxRecent+5; i++ {
		c.record(procEvent{Kind: "fork", PID: int32(i)})
	}
	assert.Len(t, c.recent, procEventMaxRecent)
	assert.Equal(t, int32(procEventMaxRecent+4), c.recent[len(c.recent)-1].PID)
}

func TestProceventSnapshotOrdersRecentFirst(t *testing.T) {
	c := NewProcevent()
	require.NoError(t, c.Init(collector.Config{}))
	c.record(procEvent{Kind: "fork", PID: 1, Cmd: "old"})
	c.record(procEvent{Kind: "exit", PID: 2, Cmd: "new"})

	w := document.NewWriter(0)
	require.NoError(t, c.Snapshot(w))
	out := string(w.Bytes())
	assert.Less(t, indexOf(out, `"pid":2`), indexOf(out, `"pid":1`))
}
