package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rss struct {
	rssKB int64
}

func TestPopulationSwapAndDiff(t *testing.T) {
	pop := NewPopulation[int32, rss]()
	require.False(t, pop.HasPrevious())

	pop.Put(100, rss{rssKB: 10 * 1024})
	pop.Put(200, rss{rssKB: 5 * 1024})

	// First tick: no previous generation exists yet.
	d := Diff(pop, func(r rss) int64 { return r.rssKB }, SignedDelta)
	assert.Len(t, d, 2, "Diff before any Swap reports every key, each with no previous generation")

	pop.Swap()
	pop.Put(100, rss{rssKB: 60 * 1024})
	pop.Put(200, rss{rssKB: 5 * 1024})
	pop.Put(300, rss{rssKB: 30 * 1024})

	d = Diff(pop, func(r rss) int64 { return r.rssKB }, SignedDelta)
	byKey := map[int32]Delta[int32]{}
	for _, e := range d {
		byKey[e.Key] = e
	}

	require.Contains(t, byKey, int32(100))
	assert.Equal(t, int64(50*1024), byKey[100].Delta)
	assert.True(t, byKey[100].HasPrevious)

	require.Contains(t, byKey, int32(300))
	assert.Equal(t, int64(0), byKey[300].Delta, "new key has no prior, delta defined as zero")
	assert.False(t, byKey[300].HasPrevious)

	assert.NotContains(t, byKey, int32(400), "vanished keys leave no trace")
}

func TestTopGrowersScenario(t *testing.T) {
	// Seed scenario 2 from spec.md §8.
	pop := NewPopulation[int32, rss]()
	pop.Put(100, rss{rssKB: 10 * 1024})
	pop.Put(200, rss{rssKB: 5 * 1024})
	pop.Swap()
	pop.Put(100, rss{rssKB: 60 * 1024})
	pop.Put(200, rss{rssKB: 5 * 1024})
	pop.Put(300, rss{rssKB: 30 * 1024})

	d := Diff(pop, func(r rss) int64 { return r.rssKB }, SignedDelta)
	d = Filter(d, 1024) // 1 MiB threshold

	growers := TopGrowers(d, 12)
	require.Len(t, growers, 1)
	assert.Equal(t, int32(100), growers[0].Key)
	assert.Equal(t, int64(50*1024), growers[0].Delta)
}

func TestCounterDeltaWraparoundPolicy(t *testing.T) {
	assert.Equal(t, int64(5), CounterDelta(15, 10))
	assert.Equal(t, int64(0), CounterDelta(2, 10), "decrease in monotonic counter reports zero, not a wraparound computation")
}

func TestTopShrinkersTieBreakByKey(t *testing.T) {
	d := []Delta[string]{
		{Key: "eth1", Value: 0, Delta: -100},
		{Key: "eth0", Value: 0, Delta: -100},
		{Key: "eth2", Value: 0, Delta: -50},
	}
	out := TopShrinkers(d, 10)
	require.Len(t, out, 3)
	assert.Equal(t, "eth0", out[0].Key)
	assert.Equal(t, "eth1", out[1].Key)
	assert.Equal(t, "eth2", out[2].Key)
}

func TestTopAbsoluteRespectsN(t *testing.T) {
	d := []Delta[int32]{
		{Key: 1, Value: 10}, {Key: 2, Value: -50}, {Key: 3, Value: 20},
	}
	out := TopAbsolute(d, 2)
	require.Len(t, out, 2)
	assert.Equal(t, int32(2), out[0].Key)
	assert.Equal(t, int32(3), out[1].Key)
}
