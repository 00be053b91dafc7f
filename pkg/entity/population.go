// Package entity implements the delta/top-N engine: keyed-entity diffing,
// threshold filtering, and partial sort into ranked result caches. This is
// the core algorithmic content shared by every keyed collector (processes,
// slab caches, interfaces, socket states) -- grounded on the prior/current
// map-swap pattern in original_source/src/daemon/ringbuffer.c's siblings and
// on the Go idiom in _examples/other_examples' galpt-cake-stats history.go
// and googlesky-sstop's safeDelta wraparound policy.
package entity

import "cmp"

// Population holds the current and previous keyed samples for one
// delta-capable collector. K is the entity key (PID, slab-cache name,
// interface name, socket state, ...); T is the collector's measurement
// tuple type. Both generations are fully owned here; nothing is shared
// across collectors (spec §3).
type Population[K cmp.Ordered, T any] struct {
	previous map[K]T
	current  map[K]T
}

// NewPopulation returns an empty Population ready for its first Swap/Put
// cycle.
func NewPopulation[K cmp.Ordered, T any]() *Population[K, T] {
	return &Population[K, T]{current: make(map[K]T)}
}

// Swap moves the current generation into previous and reuses the map that
// held the old previous generation, emptied, as the new current one. Only
// the first Swap allocates a map; after that the two maps are recycled, so
// a population of steady size allocates no new map storage per tick
// (spec §4.2 step 1).
func (p *Population[K, T]) Swap() {
	recycled := p.previous
	p.previous = p.current
	if recycled == nil {
		p.current = make(map[K]T, len(p.previous))
		return
	}
	clear(recycled)
	p.current = recycled
}

// Put records the current sample for key k.
func (p *Population[K, T]) Put(k K, v T) {
	p.current[k] = v
}

// HasPrevious reports whether a prior tick's sample exists at all (false
// only before the first Swap -- i.e. during the very first collect).
func (p *Population[K, T]) HasPrevious() bool {
	return p.previous != nil
}

// Previous returns the prior tick's tuple for k, if present.
func (p *Population[K, T]) Previous(k K) (T, bool) {
	v, ok := p.previous[k]
	return v, ok
}

// Current returns the read-only current generation map, for callers (e.g.
// the snapshot step, or a HintProvider publisher) that need to iterate the
// latest sample directly.
func (p *Population[K, T]) Current() map[K]T {
	return p.current
}

// Len reports the size of the current generation.
func (p *Population[K, T]) Len() int {
	return len(p.current)
}
