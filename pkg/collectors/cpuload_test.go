package collectors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qscuio/qmemd/pkg/document"
)

func TestParseSystemCPU(t *testing.T) {
	buf := []byte(`cpu  100 5 50 800 10 0 2 0 0 0
cpu0 50 2 25 400 5 0 1 0 0 0
intr 12345
`)
	c, ok := parseSystemCPU(buf)
	require.True(t, ok)
	assert.Equal(t, uint64(100), c.User)
	assert.Equal(t, uint64(800), c.Idle)
}

func TestCpuloadBusyPercent(t *testing.T) {
	c := &Cpuload{
		prevSys:    cpuCounters{User: 0, Idle: 0},
		curSys:     cpuCounters{User: 50, Idle: 50},
		hasPrevSys: true,
	}
	w := document.NewWriter(0)
	require.NoError(t, c.Snapshot(w))
	assert.Contains(t, string(w.Bytes()), `"busy_percent":50`)
}
