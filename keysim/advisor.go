// Package keysim provides a best-effort, non-blocking warning for
// textually similar (but not identical) string keys seen during
// ingestion into a Shuffler.
//
// This never affects correctness and is never consulted by the
// shuffle package itself (which must stay a pure, synchronous
// coordinator per spec.md §5) — it exists purely to help an operator
// catch likely data-entry typos (e.g. "user-1042" vs "uesr-1042")
// before they silently become two distinct, unrelated records in the
// shuffled output.
//
// Grounded on util/distance.go's use of github.com/antzucaro/matchr's
// Levenshtein distance for near-match barcode comparison; this
// package applies the same distance function to a rolling window of
// recently seen keys.
package keysim

import (
	"github.com/antzucaro/matchr"
	"v.io/x/lib/vlog"
)

// DefaultWindow bounds how many recently seen keys Advisor compares a
// new key against. A window keeps the check O(1) amortized instead of
// O(n) over the whole key set.
const DefaultWindow = 64

// DefaultMaxDistance is the largest Levenshtein distance Advisor still
// treats as "suspiciously similar" for keys of typical length.
const DefaultMaxDistance = 2

// Advisor tracks a rolling window of recently seen string keys and
// logs a warning when a newly seen key is a close-but-not-exact match
// for one already in the window.
type Advisor struct {
	window      []string
	next        int
	maxDistance int
}

// New returns an Advisor with the given window size and maximum
// Levenshtein distance considered suspicious. A windowSize or
// maxDistance of 0 selects the package defaults.
func New(windowSize, maxDistance int) *Advisor {
	if windowSize <= 0 {
		windowSize = DefaultWindow
	}
	if maxDistance <= 0 {
		maxDistance = DefaultMaxDistance
	}
	return &Advisor{window: make([]string, 0, windowSize), maxDistance: maxDistance}
}

// Observe records key and logs a warning if it is a near-miss for any
// key currently held in the window. It never returns an error: this
// is strictly advisory.
func (a *Advisor) Observe(key string) {
	for _, seen := range a.window {
		if seen == key {
			continue
		}
		if d := matchr.Levenshtein(seen, key); d > 0 && d <= a.maxDistance {
			vlog.Errorf("keysim: %q and %q differ by only %d edit(s); check for a typo", seen, key, d)
		}
	}
	if len(a.window) < cap(a.window) {
		a.window = append(a.window, key)
		return
	}
	a.window[a.next%len(a.window)] = key
	a.next++
}
