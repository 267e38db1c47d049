// Package patcher applies micro-deltas to a file's HEAD content
// in-memory, correcting for the line-count drift earlier deltas
// introduce, so deltas from the same origin group can be applied in
// any order and still reconstruct identical content.
package patcher

import (
	"bytes"

	"github.com/AlayaCare/git-black/delta"
)

// Patcher is the per-file, in-memory apparatus that applies
// micro-deltas at offset-corrected positions. A Patcher lives for the
// whole run: deltas from later origin groups are applied on top of
// deltas from earlier groups, in memory, across the whole commit
// sequence the orchestrator builds.
type Patcher struct {
	lines   [][]byte
	offsets map[int]int // old_start -> delta.Offset() for every applied delta
	applied map[int]bool
	order   []int // old_start values in application order, for the offset sum
}

// New splits headBytes into byte-lines, preserving line terminators, and
// returns a Patcher ready to have deltas applied.
func New(headBytes []byte) *Patcher {
	return &Patcher{
		lines:   splitLines(headBytes),
		offsets: make(map[int]int),
		applied: make(map[int]bool),
	}
}

// splitLines breaks b into lines, keeping the trailing '\n' on every
// line but the last if the content doesn't end in one.
func splitLines(b []byte) [][]byte {
	if len(b) == 0 {
		return nil
	}
	var out [][]byte
	for len(b) > 0 {
		i := bytes.IndexByte(b, '\n')
		if i < 0 {
			out = append(out, b)
			break
		}
		out = append(out, b[:i+1])
		b = b[i+1:]
	}
	return out
}

// Apply applies d to the patcher's current content. A delta whose
// OldStart has already been applied is a no-op (duplicate suppression,
// spec.md §3).
func (p *Patcher) Apply(d delta.Delta) {
	if p.applied[d.OldStart] {
		return
	}

	effectiveStart := d.OldStart
	for _, startedAt := range p.order {
		if startedAt < d.OldStart {
			effectiveStart += p.offsets[startedAt]
		}
	}

	if d.OldLength == 0 {
		// The zero-context diff convention locates a pure insertion
		// after the numbered line; compensate by shifting forward one.
		effectiveStart++
	}

	i := effectiveStart - 1
	j := i + d.OldLength

	replacement := make([][]byte, len(d.NewLines))
	copy(replacement, d.NewLines)

	rebuilt := make([][]byte, 0, len(p.lines)-d.OldLength+len(replacement))
	rebuilt = append(rebuilt, p.lines[:i]...)
	rebuilt = append(rebuilt, replacement...)
	rebuilt = append(rebuilt, p.lines[j:]...)
	p.lines = rebuilt

	p.offsets[d.OldStart] = d.Offset()
	p.applied[d.OldStart] = true
	p.order = append(p.order, d.OldStart)
}

// Content returns the current, fully patched byte content of the file.
func (p *Patcher) Content() []byte {
	var buf bytes.Buffer
	for _, l := range p.lines {
		buf.Write(l)
	}
	return buf.Bytes()
}
