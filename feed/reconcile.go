package feed

import "sort"

// reconcile fuses freshly fetched history bars with the bars the caller
// already holds and with the in-progress live bar, producing one
// chronologically sorted series bounded to capacity.
//
// The input slices are not modified; the returned slice is newly allocated
// unless nothing changed.
func reconcile(existing, fetched []Bar, live *Bar, capacity int) []Bar {
	fetched = dropCorruptTail(fetched)
	fetched = dedupe(fetched)
	merged := merge(existing, fetched)
	merged = spliceLive(merged, live)

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.Time != b.Time {
			return a.Time.Before(b.Time)
		}
		// a daily bar and a midnight minute bar share a timestamp in
		// mixed series; the daily aggregate sorts first
		return a.Granularity == Daily && b.Granularity == Minute
	})

	if capacity >= 0 && len(merged) > capacity {
		merged = merged[len(merged)-capacity:]
	}
	return merged
}

// dropCorruptTail removes a trailing fetched bar whose clock fields are out
// of range. A known upstream defect appends one garbage record with an
// impossible hour to history responses. The end-of-day marker is not
// corruption.
//
// Epoch-sourced records (historyToBars) always carry a valid clock; the
// filter matters for record sources that supply decomposed time fields,
// such as host-persisted series.
func dropCorruptTail(fetched []Bar) []Bar {
	n := len(fetched)
	if n == 0 {
		return fetched
	}
	t := fetched[n-1].Time
	if !t.ValidClock() && !t.IsEOD() {
		return fetched[:n-1]
	}
	return fetched
}

// dedupe resolves duplicate keys within one fetched batch. Scanning
// backward, the later-occurring record wins: later server records reflect
// more complete intraday aggregation. Relative order of survivors is kept.
func dedupe(fetched []Bar) []Bar {
	if len(fetched) < 2 {
		return fetched
	}
	seen := make(map[barKey]struct{}, len(fetched))
	out := make([]Bar, 0, len(fetched))
	for i := len(fetched) - 1; i >= 0; i-- {
		k := fetched[i].key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, fetched[i])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// merge appends fetched bars to the existing series. A fetched bar whose
// key matches an existing bar of the same granularity updates that bar in
// place instead of inserting a duplicate: the close is replaced, high/low
// are extended and volume/open interest are replaced wholesale since the
// server value is cumulative, not incremental.
func merge(existing, fetched []Bar) []Bar {
	out := make([]Bar, len(existing), len(existing)+len(fetched)+1)
	copy(out, existing)

	index := make(map[barKey]int, len(out))
	for i := range out {
		index[out[i].key()] = i
	}

	for _, f := range fetched {
		k := f.key()
		if i, ok := index[k]; ok {
			b := &out[i]
			b.Close = f.Close
			if f.High > b.High {
				b.High = f.High
			}
			if f.Low > 0 && (b.Low == 0 || f.Low < b.Low) {
				b.Low = f.Low
			}
			b.Volume = f.Volume
			b.OpenInterest = f.OpenInterest
			continue
		}
		index[k] = len(out)
		out = append(out, f)
	}
	return out
}

// spliceLive folds the bar builder's in-progress bar into the merged set.
// If its key matches the last merged bar the live bar replaces it — the
// live view of the current minute is fresher than any fetched copy —
// otherwise it is appended.
func spliceLive(merged []Bar, live *Bar) []Bar {
	if live == nil {
		return merged
	}
	if n := len(merged); n > 0 && merged[n-1].key() == live.key() {
		merged[n-1] = *live
		return merged
	}
	return append(merged, *live)
}
