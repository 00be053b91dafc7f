package collectors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSockstat(t *testing.T) {
	buf := []byte(`sockets: used 256
TCP: inuse 10 orphan 0 tw 5 alloc 8 mem 2
UDP: inuse 3 mem 1
`)
	counters := parseSockstat(buf)
	require.NotEmpty(t, counters)
	assert.Equal(t, int64(256), counters["sockets_used"])
	assert.Equal(t, int64(10), counters["TCP_inuse"])
	assert.Equal(t, int64(3), counters["UDP_inuse"])
}
