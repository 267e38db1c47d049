// Package delta defines the immutable line-level edit record that flows
// through the rest of the attribution pipeline.
package delta

import "fmt"

// Delta is an immutable record of a line-level edit to a single file,
// expressed relative to the file's content at HEAD.
//
// OldLines and NewLines always include their line terminators (or none,
// for a final line lacking one), since the patcher reassembles file
// content by concatenation alone.
type Delta struct {
	Filename string

	OldStart  int // 1-based line number in HEAD content where the span begins
	OldLength int // number of HEAD lines replaced, may be 0
	OldLines  [][]byte

	NewStart  int
	NewLength int
	NewLines  [][]byte
}

// New builds a Delta, panicking if the invariants from spec.md §3 are
// violated. Construction is the only place these invariants are checked;
// once built a Delta is never mutated.
func New(filename string, oldStart, oldLength int, oldLines [][]byte, newStart, newLength int, newLines [][]byte) Delta {
	if len(oldLines) != oldLength {
		panic(fmt.Sprintf("delta: len(oldLines)=%d != oldLength=%d", len(oldLines), oldLength))
	}
	if len(newLines) != newLength {
		panic(fmt.Sprintf("delta: len(newLines)=%d != newLength=%d", len(newLines), newLength))
	}
	if oldLength == 0 && newLength == 0 {
		panic("delta: both oldLength and newLength are 0")
	}
	if oldStart < 1 {
		panic(fmt.Sprintf("delta: oldStart=%d must be >= 1", oldStart))
	}

	return Delta{
		Filename:  filename,
		OldStart:  oldStart,
		OldLength: oldLength,
		OldLines:  oldLines,
		NewStart:  newStart,
		NewLength: newLength,
		NewLines:  newLines,
	}
}

// Offset is the net change in line count this delta introduces.
func (d Delta) Offset() int {
	return d.NewLength - d.OldLength
}

// IsInsertion reports whether the delta replaces no HEAD lines.
func (d Delta) IsInsertion() bool {
	return d.OldLength == 0
}

// IsDeletion reports whether the delta introduces no new lines.
func (d Delta) IsDeletion() bool {
	return d.NewLength == 0
}

func (d Delta) String() string {
	return fmt.Sprintf("%s@%d,-%d/+%d", d.Filename, d.OldStart, d.OldLength, d.NewLength)
}

// LineOrigin marks which side of a diff a Hunk line belongs to.
type LineOrigin byte

const (
	// LineContext marks a line present on both sides (never emitted by
	// the zero-context diff service git-black uses, but accepted by
	// the line mapper for robustness against other diff sources).
	LineContext LineOrigin = ' '
	// LineAdded marks a line only present in the new content.
	LineAdded LineOrigin = '+'
	// LineRemoved marks a line only present in the old content.
	LineRemoved LineOrigin = '-'
)

// HunkLine is one line inside a Hunk, tagged with its origin.
type HunkLine struct {
	Origin  LineOrigin
	Content []byte
}

// Hunk is the unified-diff unit produced by the diff service at zero
// context lines: a contiguous change region with old-side and new-side
// line ranges. OldLines and NewLines are the removed / added lines in
// document order, extracted from Lines for convenience.
type Hunk struct {
	OldStart  int
	OldLength int
	NewStart  int
	NewLength int
	Lines     []HunkLine
}

// OldLines returns the removed lines, in order, without terminators
// stripped.
func (h Hunk) OldLines() [][]byte {
	out := make([][]byte, 0, h.OldLength)
	for _, l := range h.Lines {
		if l.Origin == LineRemoved {
			out = append(out, l.Content)
		}
	}
	return out
}

// NewLines returns the added lines, in order.
func (h Hunk) NewLines() [][]byte {
	out := make([][]byte, 0, h.NewLength)
	for _, l := range h.Lines {
		if l.Origin == LineAdded {
			out = append(out, l.Content)
		}
	}
	return out
}
