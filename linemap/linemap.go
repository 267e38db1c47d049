// Package linemap splits a diff hunk into the smallest micro-deltas
// whose provenance can be considered homogeneous, following the exact
// pairing policy required for reproducible attribution.
package linemap

import "github.com/AlayaCare/git-black/delta"

// Split turns a single Hunk into a list of micro-deltas that together
// cover every removed and every added line exactly once.
//
// The policy (spec.md §4.1) is deliberately naive but deterministic:
//
//  1. A pure insertion (old length 0) becomes one micro-delta with no
//     source lines.
//  2. A pure deletion (new length 0) becomes one micro-delta with no
//     destination lines.
//  3. Otherwise, one-to-one pairs are emitted for every line but the
//     last of the shorter side, and a single "tail" micro-delta
//     absorbs whatever the longer side has left over.
func Split(filename string, h delta.Hunk) []delta.Delta {
	oldLines := h.OldLines()
	newLines := h.NewLines()
	o := len(oldLines)
	n := len(newLines)

	if o == 0 {
		return []delta.Delta{
			delta.New(filename, h.OldStart, 0, nil, h.NewStart, n, newLines),
		}
	}
	if n == 0 {
		return []delta.Delta{
			delta.New(filename, h.OldStart, o, oldLines, h.NewStart, 0, nil),
		}
	}

	m := min(o, n)
	out := make([]delta.Delta, 0, m)

	for i := 0; i < m-1; i++ {
		out = append(out, delta.New(
			filename,
			h.OldStart+i, 1, oldLines[i:i+1],
			h.NewStart+i, 1, newLines[i:i+1],
		))
	}

	// Tail micro-delta absorbs the remainder of the longer side.
	if o >= n {
		tailOld := oldLines[n-1:]
		out = append(out, delta.New(
			filename,
			h.OldStart+n-1, len(tailOld), tailOld,
			h.NewStart+n-1, 1, newLines[n-1:n],
		))
	} else {
		tailNew := newLines[o-1:]
		out = append(out, delta.New(
			filename,
			h.OldStart+o-1, 1, oldLines[o-1:o],
			h.NewStart+o-1, len(tailNew), tailNew,
		))
	}

	return out
}

// SplitAll concatenates Split's output across every hunk of a file's
// patch, in hunk order.
func SplitAll(filename string, hunks []delta.Hunk) []delta.Delta {
	var out []delta.Delta
	for _, h := range hunks {
		out = append(out, Split(filename, h)...)
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
