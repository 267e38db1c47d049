// Package hunkblame composes the line mapper and the blame index to
// attach origin-commit sets to every micro-delta of a file's diff.
package hunkblame

import (
	"sort"

	"github.com/AlayaCare/git-black/blameindex"
	"github.com/AlayaCare/git-black/delta"
	"github.com/AlayaCare/git-black/linemap"
)

// DeltaBlame pairs a micro-delta with the set of commit IDs attributed
// to it.
type DeltaBlame struct {
	Delta   delta.Delta
	Origins []string // de-duplicated, sorted ascending
}

// Blame turns a file's full set of hunks into one DeltaBlame per
// micro-delta.
//
// Each micro-delta's origin set is the union of blame-index lookups
// over range(old_start, old_start+max(1, old_length)) — the
// max(1, old_length) clause is what gives a pure insertion an origin at
// all, by probing its anchor line, old_start itself.
func Blame(filename string, hunks []delta.Hunk, idx *blameindex.Index) []DeltaBlame {
	deltas := linemap.SplitAll(filename, hunks)
	out := make([]DeltaBlame, 0, len(deltas))

	for _, d := range deltas {
		span := d.OldLength
		if span < 1 {
			span = 1
		}

		seen := make(map[string]struct{})
		for line := d.OldStart; line < d.OldStart+span; line++ {
			if c, ok := idx.Lookup(line); ok {
				seen[c] = struct{}{}
			}
		}

		origins := make([]string, 0, len(seen))
		for c := range seen {
			origins = append(origins, c)
		}
		sort.Strings(origins)

		out = append(out, DeltaBlame{Delta: d, Origins: origins})
	}

	return out
}
