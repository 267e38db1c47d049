// Package orchestrator implements the commit orchestrator (spec.md
// C6): it collects delta-blame pairs across every modified file,
// groups them by their shared origin-commit set, and materializes each
// group as one commit on top of HEAD.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/AlayaCare/git-black/blameindex"
	"github.com/AlayaCare/git-black/delta"
	"github.com/AlayaCare/git-black/gitrepo"
	"github.com/AlayaCare/git-black/hunkblame"
	"github.com/AlayaCare/git-black/patcher"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Repository is the narrow capability set the orchestrator needs from
// the repository adapter (spec.md §9: "the only abstraction boundary
// worth making virtual"). *gitrepo.Repo satisfies it.
type Repository interface {
	CheckIndexEmpty() error
	ModifiedFiles() ([]gitrepo.FileDiff, error)
	BuildBlameIndex(ctx context.Context, filename string) (*blameindex.Index, error)
	WriteBlob(content []byte) (plumbing.Hash, error)
	WriteTree(entries map[string]gitrepo.IndexEntry) (plumbing.Hash, error)
	CreateCommit(treeHash plumbing.Hash, author, committer object.Signature, message string) (plumbing.Hash, error)
	SyncIndex(entries map[string]gitrepo.IndexEntry) error
	ResolveCommit(id string) (*object.Commit, error)
	Identity() (object.Signature, error)
}

// Options configures a Run.
type Options struct {
	// Workers bounds phase-1 concurrency. Zero means the default of 8
	// (spec.md §5: "observed optimum around 8 workers").
	Workers int
	// DryRun runs phase 1 (collect) only; no commits are created. Not a
	// spec.md requirement — an additive inspection mode.
	DryRun bool
	// Committer overrides the repository's configured user.name/email
	// for the committer identity stamped on every created commit
	// (spec.md §4.5 step 3). An empty Name or Email is filled in from
	// repo.Identity().
	Committer object.Signature
	// OnGroupCommitted, if set, is called after each group's commit is
	// created, for progress reporting.
	OnGroupCommitted func(index, total int, commit plumbing.Hash, files int, origins []string)
}

const defaultWorkers = 8

// Result summarizes a completed run.
type Result struct {
	CommitsCreated int
	FilesTouched   int
}

// group is the set of deltas sharing one origin-commit tuple.
type group struct {
	key     string
	origins []string
	deltas  []delta.Delta
}

// Run executes the full two-phase pipeline against repo.
func Run(ctx context.Context, repo Repository, opts Options) (Result, error) {
	if err := repo.CheckIndexEmpty(); err != nil {
		return Result{}, err
	}

	files, err := repo.ModifiedFiles()
	if err != nil {
		return Result{}, err
	}
	if len(files) == 0 {
		return Result{}, nil
	}

	groups, patchers, modes, err := collect(ctx, repo, files, opts.Workers)
	if err != nil {
		return Result{}, err
	}

	if opts.DryRun {
		return Result{CommitsCreated: len(groups), FilesTouched: len(modes)}, nil
	}

	committer := opts.Committer
	if committer.Name == "" || committer.Email == "" {
		id, err := repo.Identity()
		if err != nil {
			return Result{}, err
		}
		if committer.Name == "" {
			committer.Name = id.Name
		}
		if committer.Email == "" {
			committer.Email = id.Email
		}
	}

	return commitGroups(repo, groups, patchers, modes, committer, opts)
}

// collect is phase 1: build a Patcher and a blame-annotated delta list
// for every modified file, in parallel across a bounded worker pool,
// then group the deltas across the whole tree by origin-commit set.
//
// Ordering of the per-file work is irrelevant because Patchers are
// commutative over a single group (patcher.Apply's contract); only the
// order groups are first *discovered* in matters, and that order is
// made deterministic by processing files in the order ModifiedFiles
// returned them and, within a file, in hunk order.
func collect(ctx context.Context, repo Repository, files []gitrepo.FileDiff, workers int) (
	[]*group, map[string]*patcher.Patcher, map[string]gitrepo.IndexEntry, error,
) {
	if workers <= 0 {
		workers = defaultWorkers
	}

	type fileResult struct {
		filename string
		mode     gitrepo.IndexEntry
		blames   []hunkblame.DeltaBlame
		err      error
	}

	jobs := make(chan gitrepo.FileDiff)
	results := make(chan fileResult, len(files))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				idx, err := repo.BuildBlameIndex(ctx, f.Filename)
				if err != nil {
					results <- fileResult{filename: f.Filename, err: err}
					continue
				}
				results <- fileResult{
					filename: f.Filename,
					mode:     gitrepo.IndexEntry{Name: f.Filename, Mode: f.Mode},
					blames:   hunkblame.Blame(f.Filename, f.Hunks, idx),
				}
			}
		}()
	}

	go func() {
		for _, f := range files {
			jobs <- f
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	byFile := make(map[string]fileResult, len(files))
	for res := range results {
		if res.err != nil {
			return nil, nil, nil, res.err
		}
		byFile[res.filename] = res
	}

	patchers := make(map[string]*patcher.Patcher, len(files))
	modes := make(map[string]gitrepo.IndexEntry, len(files))
	for _, f := range files {
		patchers[f.Filename] = patcher.New(f.HeadBytes)
		modes[f.Filename] = byFile[f.Filename].mode
	}

	var order []string
	byKey := make(map[string]*group)
	for _, f := range files {
		for _, db := range byFile[f.Filename].blames {
			key := strings.Join(db.Origins, "\x00")
			g, ok := byKey[key]
			if !ok {
				g = &group{key: key, origins: db.Origins}
				byKey[key] = g
				order = append(order, key)
			}
			g.deltas = append(g.deltas, db.Delta)
		}
	}

	groups := make([]*group, 0, len(order))
	for _, k := range order {
		groups = append(groups, byKey[k])
	}

	return groups, patchers, modes, nil
}

// commitGroups is phase 2: sequentially materialize each group as one
// commit, applying its deltas to the relevant file Patchers and
// writing new blobs only for the files the group actually touches.
func commitGroups(
	repo Repository,
	groups []*group,
	patchers map[string]*patcher.Patcher,
	modes map[string]gitrepo.IndexEntry,
	committer object.Signature,
	opts Options,
) (Result, error) {
	touched := make(map[string]bool)

	for i, g := range groups {
		filesInGroup := make(map[string]bool)
		for _, d := range g.deltas {
			patchers[d.Filename].Apply(d)
			filesInGroup[d.Filename] = true
		}

		entries := make(map[string]gitrepo.IndexEntry, len(filesInGroup))
		for filename := range filesInGroup {
			blob, err := repo.WriteBlob(patchers[filename].Content())
			if err != nil {
				return Result{}, err
			}
			mode := modes[filename]
			entries[filename] = gitrepo.IndexEntry{Name: filename, Hash: blob, Mode: mode.Mode}
			touched[filename] = true
		}

		main, err := resolveMainOrigin(repo, g.origins)
		if err != nil {
			return Result{}, err
		}

		message := composeMessage(main, g.origins)

		tree, err := repo.WriteTree(entries)
		if err != nil {
			return Result{}, err
		}

		commitHash, err := repo.CreateCommit(tree, main.Author, committer, message)
		if err != nil {
			return Result{}, err
		}

		if err := repo.SyncIndex(entries); err != nil {
			return Result{}, err
		}

		if opts.OnGroupCommitted != nil {
			opts.OnGroupCommitted(i+1, len(groups), commitHash, len(filesInGroup), g.origins)
		}
	}

	return Result{CommitsCreated: len(groups), FilesTouched: len(touched)}, nil
}

// resolveMainOrigin picks the origin commit with the latest committer
// timestamp, breaking ties by commit-ID lexicographic order (greatest
// wins) for a deterministic, reproducible choice (spec.md §9, open
// question 2).
func resolveMainOrigin(repo Repository, origins []string) (*object.Commit, error) {
	if len(origins) == 0 {
		return nil, fmt.Errorf("orchestrator: group has no origin commits")
	}

	commits := make([]*object.Commit, len(origins))
	for i, id := range origins {
		c, err := repo.ResolveCommit(id)
		if err != nil {
			return nil, err
		}
		commits[i] = c
	}

	main := commits[0]
	for _, c := range commits[1:] {
		switch {
		case c.Committer.When.After(main.Committer.When):
			main = c
		case c.Committer.When.Equal(main.Committer.When) && c.Hash.String() > main.Hash.String():
			main = c
		}
	}
	return main, nil
}

// composeMessage builds the new commit's message exactly per spec.md
// §4.5: the main origin's message, followed by the attribution
// footer listing every origin commit in the group, in canonical
// (ascending) order.
func composeMessage(main *object.Commit, origins []string) string {
	sorted := make([]string, len(origins))
	copy(sorted, origins)
	sort.Strings(sorted)

	var b strings.Builder
	b.WriteString(main.Message)
	b.WriteString("\n\nautomatic commit by git-black, original commits:\n")
	for _, id := range sorted {
		b.WriteString("  ")
		b.WriteString(id)
		b.WriteString("\n")
	}
	return b.String()
}
