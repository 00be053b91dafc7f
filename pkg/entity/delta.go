package entity

import (
	"cmp"
	"slices"
)

// Delta is one entity's ranking-field measurement for the current tick,
// paired with its signed delta against the previous tick.
type Delta[K cmp.Ordered] struct {
	Key   K
	Value int64
	Delta int64
	// HasPrevious distinguishes a genuine zero delta (key present in both
	// ticks, unchanged) from a key with no prior sample (spec §4.2: "When a
	// key is in current but not previous, the entity's delta is defined as
	// zero").
	HasPrevious bool
}

// SignedDelta computes curr - prev for an ordinary signed field.
func SignedDelta(curr, prev int64) int64 {
	return curr - prev
}

// CounterDelta computes the delta for a monotonic unsigned counter field.
// A decrease is reported as zero, never as a wraparound computation (spec
// §4.2 edge case; grounded on _examples/other_examples' googlesky-sstop
// safeDelta).
func CounterDelta(curr, prev uint64) int64 {
	if curr >= prev {
		return int64(curr - prev)
	}
	return 0
}

// Diff walks the current generation of pop and, for every key also present
// in the previous generation, computes a Delta using field to extract the
// ranking value and deltaFn to compute the signed difference (SignedDelta
// for ordinary fields, CounterDelta for monotonic unsigned counters). Keys
// with no prior sample get a zero delta and HasPrevious=false, per spec
// §4.2; keys present only in the previous generation vanish silently and
// contribute nothing (never appear in the output).
func Diff[K cmp.Ordered, T any](pop *Population[K, T], field func(T) int64, deltaFn func(curr, prev int64) int64) []Delta[K] {
	out := make([]Delta[K], 0, pop.Len())
	for k, cur := range pop.current {
		cv := field(cur)
		prev, ok := pop.Previous(k)
		if !ok {
			out = append(out, Delta[K]{Key: k, Value: cv, Delta: 0, HasPrevious: false})
			continue
		}
		pv := field(prev)
		out = append(out, Delta[K]{Key: k, Value: cv, Delta: deltaFn(cv, pv), HasPrevious: true})
	}
	return out
}

// Filter drops entities whose absolute delta is below threshold (spec §4.2
// step 4). A threshold of 0 keeps everything, including first-tick zero
// deltas.
func Filter[K cmp.Ordered](entries []Delta[K], threshold int64) []Delta[K] {
	if threshold <= 0 {
		return entries
	}
	out := entries[:0:0]
	for _, e := range entries {
		if abs64(e.Delta) >= threshold {
			out = append(out, e)
		}
	}
	return out
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func byKeyAsc[K cmp.Ordered](a, b Delta[K]) int {
	return cmp.Compare(a.Key, b.Key)
}

// TopGrowers returns up to n entries with the largest positive delta,
// descending, ties broken by ascending key order (spec §4.2 step 5).
func TopGrowers[K cmp.Ordered](entries []Delta[K], n int) []Delta[K] {
	growers := make([]Delta[K], 0, len(entries))
	for _, e := range entries {
		if e.Delta > 0 {
			growers = append(growers, e)
		}
	}
	slices.SortStableFunc(growers, byKeyAsc[K])
	slices.SortStableFunc(growers, func(a, b Delta[K]) int {
		return cmp.Compare(b.Delta, a.Delta)
	})
	return truncate(growers, n)
}

// TopShrinkers returns up to n entries with the most negative delta,
// ascending (most negative first), ties broken by ascending key order.
func TopShrinkers[K cmp.Ordered](entries []Delta[K], n int) []Delta[K] {
	shrinkers := make([]Delta[K], 0, len(entries))
	for _, e := range entries {
		if e.Delta < 0 {
			shrinkers = append(shrinkers, e)
		}
	}
	slices.SortStableFunc(shrinkers, byKeyAsc[K])
	slices.SortStableFunc(shrinkers, func(a, b Delta[K]) int {
		return cmp.Compare(a.Delta, b.Delta)
	})
	return truncate(shrinkers, n)
}

// TopAbsolute returns up to n entries with the largest absolute current
// value, descending, ties broken by ascending key order.
func TopAbsolute[K cmp.Ordered](entries []Delta[K], n int) []Delta[K] {
	out := make([]Delta[K], len(entries))
	copy(out, entries)
	slices.SortStableFunc(out, byKeyAsc[K])
	slices.SortStableFunc(out, func(a, b Delta[K]) int {
		return cmp.Compare(abs64(b.Value), abs64(a.Value))
	})
	return truncate(out, n)
}

func truncate[K cmp.Ordered](entries []Delta[K], n int) []Delta[K] {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[:n]
}
