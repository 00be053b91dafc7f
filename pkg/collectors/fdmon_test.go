package collectors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qscuio/qmemd/pkg/collector"
	"github.com/qscuio/qmemd/pkg/entity"
)

func TestFdmonBaselineSeededOnce(t *testing.T) {
	c := NewFdmon()
	require.NoError(t, c.Init(collector.Config{}))

	c.pop.Swap()
	c.pop.Put(1, fdTuple{Count: 5, Cmd: "svc"})
	c.baseline[1] = 5

	c.pop.Swap()
	c.pop.Put(1, fdTuple{Count: 50, Cmd: "svc"})
	if _, seen := c.baseline[1]; !seen {
		c.baseline[1] = 50
	}

	assert.Equal(t, int64(5), c.baseline[1])
}

func TestFdmonLeakersRankedByGrowth(t *testing.T) {
	c := NewFdmon()
	require.NoError(t, c.Init(collector.Config{TopN: 5, MinDelta: 1}))

	c.pop.Swap()
	c.pop.Put(1, fdTuple{Count: 10, Cmd: "a"})
	c.pop.Put(2, fdTuple{Count: 10, Cmd: "b"})

	c.pop.Swap()
	c.pop.Put(1, fdTuple{Count: 12, Cmd: "a"})
	c.pop.Put(2, fdTuple{Count: 40, Cmd: "b"})

	deltas := entity.Diff(c.pop, func(t fdTuple) int64 { return t.Count }, entity.SignedDelta)
	filtered := entity.Filter(deltas, c.minDelta)
	c.leakers = entity.TopGrowers(filtered, c.topN)

	require.Len(t, c.leakers, 2)
	assert.Equal(t, int32(2), c.leakers[0].Key)
}
