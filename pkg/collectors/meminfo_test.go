package collectors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qscuio/qmemd/pkg/collector"
	"github.com/qscuio/qmemd/pkg/document"
)

func TestMeminfoFirstTickHasNoDelta(t *testing.T) {
	c := NewMeminfo()
	require.NoError(t, c.Init(collector.Config{}))
	c.current = map[string]int64{"MemTotal": 1000, "MemAvailable": 400}
	c.hasPrevious = false
	c.previous = map[string]int64{}

	w := document.NewWriter(0)
	require.NoError(t, c.Snapshot(w))
	assert.NotContains(t, string(w.Bytes()), `"delta"`)
}

func TestMeminfoSecondTickReportsDelta(t *testing.T) {
	c := NewMeminfo()
	require.NoError(t, c.Init(collector.Config{}))
	c.previous = map[string]int64{"MemAvailable": 400}
	c.current = map[string]int64{"MemAvailable": 250}
	c.hasPrevious = true

	w := document.NewWriter(0)
	require.NoError(t, c.Snapshot(w))
	assert.Contains(t, string(w.Bytes()), `"delta":-150`)
}

func TestMeminfoUsagePercent(t *testing.T) {
	c := NewMeminfo()
	require.NoError(t, c.Init(collector.Config{}))
	c.current = map[string]int64{"MemTotal": 1000, "MemAvailable": 400}
	c.previous = map[string]int64{}
	c.usagePct = 60.0
	w := document.NewWriter(0)
	require.NoError(t, c.Snapshot(w))
	assert.Contains(t, string(w.Bytes()), `"usage_percent":60`)
}
