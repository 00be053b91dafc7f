package collectors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qscuio/qmemd/pkg/collector"
	"github.com/qscuio/qmemd/pkg/document"
)

func TestVmstatInitStartsWithNoCurrentGeneration(t *testing.T) {
	c := NewVmstat()
	require.NoError(t, c.Init(collector.Config{}))
	assert.Nil(t, c.current, "Init must not seed an empty map: Collect's previous = current swap would then see a non-nil previous and report a spurious first-tick delta")
}

func TestVmstatFirstTickOmitsDelta(t *testing.T) {
	c := &Vmstat{current: map[string]uint64{"pgfault": 12345}, hasPrevious: false}
	w := document.NewWriter(0)
	require.NoError(t, c.Snapshot(w))
	assert.NotContains(t, string(w.Bytes()), `"delta"`)
}

func TestVmstatSecondTickReportsDelta(t *testing.T) {
	c := &Vmstat{
		previous:    map[string]uint64{"pgfault": 100},
		current:     map[string]uint64{"pgfault": 150},
		hasPrevious: true,
	}
	w := document.NewWriter(0)
	require.NoError(t, c.Snapshot(w))
	assert.Contains(t, string(w.Bytes()), `"delta":50`)
}

func TestVmstatCounterDecreaseReportsZeroNotWraparound(t *testing.T) {
	c := &Vmstat{
		previous:    map[string]uint64{"pgfault": 500},
		current:     map[string]uint64{"pgfault": 10},
		hasPrevious: true,
	}
	w := document.NewWriter(0)
	require.NoError(t, c.Snapshot(w))
	assert.Contains(t, string(w.Bytes()), `"delta":0`)
}
