// Package interval implements the half-open time-interval algebra used to
// track which portions of a model's declared range already have valid
// data. Sets are kept sorted, non-overlapping, and non-adjacent so every
// operation is a single linear pass.
package interval

import "sort"

// Interval is a half-open range [Start, End) in epoch milliseconds.
type Interval struct {
	Start int64
	End   int64
}

// Set is a sorted, non-overlapping, non-adjacent list of Intervals.
type Set []Interval

// Add merges [s, e) into the set, coalescing with any overlapping or
// adjacent interval. Returns a new Set; the receiver is not mutated.
func (set Set) Add(s, e int64) Set {
	if e <= s {
		return set.clone()
	}
	out := make(Set, 0, len(set)+1)
	inserted := false
	for _, iv := range set {
		switch {
		case iv.End < s:
			out = append(out, iv)
		case iv.Start > e:
			if !inserted {
				out = append(out, Interval{s, e})
				inserted = true
			}
			out = append(out, iv)
		default:
			// Overlaps or touches [s, e): fold into the pending insert.
			if iv.Start < s {
				s = iv.Start
			}
			if iv.End > e {
				e = iv.End
			}
		}
	}
	if !inserted {
		out = append(out, Interval{s, e})
	}
	return out
}

// Remove punches a hole [s, e) out of the set, splitting any interval that
// spans it. Returns a new Set; the receiver is not mutated.
func (set Set) Remove(s, e int64) Set {
	if e <= s {
		return set.clone()
	}
	out := make(Set, 0, len(set)+1)
	for _, iv := range set {
		switch {
		case iv.End <= s || iv.Start >= e:
			out = append(out, iv)
		default:
			if iv.Start < s {
				out = append(out, Interval{iv.Start, s})
			}
			if iv.End > e {
				out = append(out, Interval{e, iv.End})
			}
		}
	}
	return out
}

// Missing enumerates the grain-aligned sub-ranges of [lo, hi) not covered
// by the set. grain is the step size in milliseconds; lo and hi are
// expected to already be grain-aligned (callers should call AlignOutward
// first).
func (set Set) Missing(lo, hi, grain int64) Set {
	if hi <= lo {
		return nil
	}
	var gaps Set
	cursor := lo
	for _, iv := range set {
		if iv.End <= lo {
			continue
		}
		if iv.Start >= hi {
			break
		}
		start := iv.Start
		if start < lo {
			start = lo
		}
		if start > cursor {
			gaps = append(gaps, Interval{cursor, start})
		}
		end := iv.End
		if end > hi {
			end = hi
		}
		if end > cursor {
			cursor = end
		}
	}
	if cursor < hi {
		gaps = append(gaps, Interval{cursor, hi})
	}
	if grain > 0 {
		gaps = gaps.splitByGrain(grain)
	}
	return gaps
}

// splitByGrain breaks each gap into contiguous grain-sized sub-intervals
// so callers can batch work in fixed-size units.
func (set Set) splitByGrain(grain int64) Set {
	var out Set
	for _, iv := range set {
		for s := iv.Start; s < iv.End; s += grain {
			e := s + grain
			if e > iv.End {
				e = iv.End
			}
			out = append(out, Interval{s, e})
		}
	}
	return out
}

// Covers reports whether the set fully covers [s, e) with no gaps.
func (set Set) Covers(s, e int64) bool {
	return len(set.Missing(s, e, 0)) == 0
}

// AlignOutward rounds s down and e up to the nearest grain boundary, per
// the grain-alignment rule: misaligned inputs are rounded outward before
// storage.
func AlignOutward(s, e, grain int64) (int64, int64) {
	if grain <= 0 {
		return s, e
	}
	return floorTo(s, grain), ceilTo(e, grain)
}

func floorTo(x, grain int64) int64 {
	if x >= 0 {
		return x - x%grain
	}
	m := (-x) % grain
	if m == 0 {
		return x
	}
	return x - (grain - m)
}

func ceilTo(x, grain int64) int64 {
	if x <= 0 {
		m := (-x) % grain
		if m == 0 {
			return x
		}
		return x + m
	}
	m := x % grain
	if m == 0 {
		return x
	}
	return x + (grain - m)
}

func (set Set) clone() Set {
	if set == nil {
		return nil
	}
	out := make(Set, len(set))
	copy(out, set)
	return out
}

// Batches splits the set into chunks of at most batchSize contiguous
// grain units per chunk, preserving ascending order. batchSize <= 0 means
// unbounded (one batch per interval).
func (set Set) Batches(grain int64, batchSize int) Set {
	if batchSize <= 0 || grain <= 0 {
		return set.clone()
	}
	maxSpan := grain * int64(batchSize)
	var out Set
	for _, iv := range set {
		for s := iv.Start; s < iv.End; s += maxSpan {
			e := s + maxSpan
			if e > iv.End {
				e = iv.End
			}
			out = append(out, Interval{s, e})
		}
	}
	return out
}

// Sorted returns a copy of the set sorted by Start; used defensively by
// callers that may have built the slice out of order (e.g. merging
// dev_intervals read from storage).
func (set Set) Sorted() Set {
	out := set.clone()
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
