package gitrepo

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/AlayaCare/git-black/delta"
)

// FileDiff is one tracked file's unstaged diff against HEAD: its HEAD
// content (reused by the Patcher) and its hunks at zero context lines.
type FileDiff struct {
	Filename  string
	HeadBytes []byte
	Mode      filemode.FileMode // the old (HEAD) side's mode, reused by the orchestrator's index entry
	Hunks     []delta.Hunk
}

// ModifiedFiles walks every file tracked at HEAD, skips anything whose
// working-tree status is not "modified" (new, deleted, renamed, and
// mode-changed files are left untouched, spec.md §9 note 4), and
// returns a zero-context unified diff for each file that actually
// changed.
func (r *Repo) ModifiedFiles() ([]FileDiff, error) {
	iter := r.headTree.Files()
	defer iter.Close()

	var out []FileDiff
	for {
		f, err := iter.Next()
		if err != nil {
			break
		}

		info, statErr := r.fs.Stat(f.Name)
		if statErr != nil {
			// deleted in the working tree: out of scope, skip.
			continue
		}
		if !info.Mode().IsRegular() {
			// mode change (e.g. symlink) or submodule: out of scope, skip.
			continue
		}

		working, err := readFile(r.fs, f.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrRepositoryAccess, f.Name, err)
		}

		headContent, err := f.Contents()
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s at HEAD: %v", ErrRepositoryAccess, f.Name, err)
		}
		headBytes := []byte(headContent)

		if bytes.Equal(headBytes, working) {
			continue
		}

		hunks, err := diffHunks(headBytes, working)
		if err != nil {
			return nil, fmt.Errorf("%w: diffing %s: %v", ErrDiffInconsistency, f.Name, err)
		}
		if len(hunks) == 0 {
			continue
		}

		out = append(out, FileDiff{Filename: f.Name, HeadBytes: headBytes, Mode: f.Mode, Hunks: hunks})
	}

	return out, nil
}

// readFile reads the whole of name from fs, the same small helper
// go-git's own filesystem-backed callers use around billy.Filesystem's
// streaming Open.
func readFile(fs billy.Filesystem, name string) ([]byte, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// diffHunks computes a zero-context unified diff between oldContent and
// newContent using diffmatchpatch's line-mode diff (DiffLinesToChars
// folds each distinct line to a single rune so the generic Myers diff
// operates at line granularity, then DiffCharsToLines expands the
// result back out) and groups the resulting line-level edit script
// into contiguous hunks exactly like `git diff --unified=0`.
func diffHunks(oldContent, newContent []byte) ([]delta.Hunk, error) {
	dmp := diffmatchpatch.New()

	oldText, newText, lineArray := dmp.DiffLinesToChars(string(oldContent), string(newContent))
	diffs := dmp.DiffMain(oldText, newText, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var hunks []delta.Hunk
	var cur *delta.Hunk
	oldLine, newLine := 1, 1

	flush := func() {
		if cur != nil {
			// Like git, an empty side is numbered by the line the change
			// follows: a pure insertion's old start is the line above it,
			// a pure deletion's new start the line above it.
			if cur.OldLength == 0 && cur.OldStart > 1 {
				cur.OldStart--
			}
			if cur.NewLength == 0 {
				cur.NewStart--
			}
			hunks = append(hunks, *cur)
			cur = nil
		}
	}

	for _, d := range diffs {
		n := countLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			oldLine += n
			newLine += n
		case diffmatchpatch.DiffDelete:
			if cur == nil {
				cur = &delta.Hunk{OldStart: oldLine, NewStart: newLine}
			}
			for _, ln := range splitKeepingTerminator(d.Text) {
				cur.Lines = append(cur.Lines, delta.HunkLine{Origin: delta.LineRemoved, Content: []byte(ln)})
				cur.OldLength++
			}
			oldLine += n
		case diffmatchpatch.DiffInsert:
			if cur == nil {
				cur = &delta.Hunk{OldStart: oldLine, NewStart: newLine}
			}
			for _, ln := range splitKeepingTerminator(d.Text) {
				cur.Lines = append(cur.Lines, delta.HunkLine{Origin: delta.LineAdded, Content: []byte(ln)})
				cur.NewLength++
			}
			newLine += n
		}
	}
	flush()

	return hunks, nil
}

func countLines(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			n++
		}
	}
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// splitKeepingTerminator splits s into lines, keeping the trailing '\n'
// on every line but a possible final partial line.
func splitKeepingTerminator(s string) []string {
	var out []string
	for len(s) > 0 {
		i := indexByte(s, '\n')
		if i < 0 {
			out = append(out, s)
			break
		}
		out = append(out, s[:i+1])
		s = s[i+1:]
	}
	return out
}
