package collectors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qscuio/qmemd/pkg/collector"
	"github.com/qscuio/qmemd/pkg/document"
)

func TestMemleakDoesNotReinitializeConstituents(t *testing.T) {
	// Memleak.Collect must read hints only, never drive procmem/slabinfo/
	// heapmon itself -- a nil or empty HintProvider must not panic or error.
	c := NewMemleak()
	require.NoError(t, c.Init(collector.Config{}))
	require.NoError(t, c.Collect(nil))

	w := document.NewWriter(0)
	require.NoError(t, c.Snapshot(w))
	out := string(w.Bytes())
	assert.Contains(t, out, `"kernel_leaks":[]`)
	assert.Contains(t, out, `"user_leaks":[]`)
}

func TestMemleakAggregatesHints(t *testing.T) {
	c := NewMemleak()
	require.NoError(t, c.Init(collector.Config{}))

	hints := fakeHints{values: map[string]any{
		"slabinfo": SlabHint{
			TopGrowers: []SlabEntry{{Name: "dentry", SizeBytes: 4096, DeltaBytes: 2048, NumObjs: 16}},
			TopAbs:     []SlabEntry{{Name: "dentry", SizeBytes: 4096, DeltaBytes: 2048, NumObjs: 16}},
		},
		"heapmon": []HeapEntry{
			{PID: 10, Cmd: "leaker", HeapRSSKB: 2000, HeapRSSDeltaKB: 500},
			{PID: 20, Cmd: "steady", HeapRSSKB: 9000, HeapRSSDeltaKB: 0},
		},
	}}
	require.NoError(t, c.Collect(hints))

	w := document.NewWriter(0)
	require.NoError(t, c.Snapshot(w))
	out := string(w.Bytes())
	assert.Contains(t, out, `"cache":"dentry"`)
	assert.Contains(t, out, `"pid":10`)

	// process_usage ranks by absolute RSS: pid 20 (9000) must precede pid 10 (2000).
	idx20 := indexOf(out, `"pid":20`)
	idx10InUsage := indexOf(out[indexOf(out, `"process_usage"`):], `"pid":10`)
	idx20InUsage := indexOf(out[indexOf(out, `"process_usage"`):], `"pid":20`)
	require.GreaterOrEqual(t, idx20, 0)
	assert.Less(t, idx20InUsage, idx10InUsage)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
