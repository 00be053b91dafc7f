package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingEvictionScenario(t *testing.T) {
	// Seed scenario 3 from spec.md §8: capacity=3, run 5 ticks, recent
	// order is [5,4,3].
	r := NewRing(3)
	base := time.Unix(1000, 0)
	for i := 1; i <= 5; i++ {
		r.Push([]byte{byte(i)}, base.Add(time.Duration(i)*time.Second))
	}

	require.Equal(t, 3, r.Count())

	for i, want := range []byte{5, 4, 3} {
		e, ok := r.Recent(i)
		require.True(t, ok)
		assert.Equal(t, want, e.Document[0])
	}

	for i, want := range []byte{3, 4, 5} {
		e, ok := r.Oldest(i)
		require.True(t, ok)
		assert.Equal(t, want, e.Document[0])
	}
}

func TestRingCapacityOneKeepsLatestOnly(t *testing.T) {
	r := NewRing(1)
	for i := 1; i <= 4; i++ {
		r.Push([]byte{byte(i)}, time.Now())
	}
	require.Equal(t, 1, r.Count())
	e, ok := r.Recent(0)
	require.True(t, ok)
	assert.Equal(t, byte(4), e.Document[0])
}

func TestRingPartiallyFilled(t *testing.T) {
	r := NewRing(5)
	r.Push([]byte("a"), time.Now())
	r.Push([]byte("b"), time.Now())
	assert.Equal(t, 2, r.Count())
	_, ok := r.Oldest(2)
	assert.False(t, ok)
}

func TestRingEntriesAreOwnedCopies(t *testing.T) {
	r := NewRing(2)
	doc := []byte("original")
	r.Push(doc, time.Now())
	doc[0] = 'X'

	e, ok := r.Recent(0)
	require.True(t, ok)
	assert.Equal(t, "original", string(e.Document))
}
