package orchestrator_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/AlayaCare/git-black/blameindex"
	"github.com/AlayaCare/git-black/delta"
	"github.com/AlayaCare/git-black/gitrepo"
	"github.com/AlayaCare/git-black/orchestrator"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo is a minimal, in-memory stand-in for *gitrepo.Repo,
// exercising orchestrator.Repository in isolation from the real
// object database.
type fakeRepo struct {
	files       []gitrepo.FileDiff
	blameByFile map[string]*blameindex.Index
	commits     map[string]*object.Commit

	blobCounter int
	blobs       map[plumbing.Hash][]byte

	created []createdCommit
}

type createdCommit struct {
	tree      plumbing.Hash
	author    object.Signature
	committer object.Signature
	message   string
}

func (f *fakeRepo) CheckIndexEmpty() error { return nil }

func (f *fakeRepo) ModifiedFiles() ([]gitrepo.FileDiff, error) { return f.files, nil }

func (f *fakeRepo) BuildBlameIndex(_ context.Context, filename string) (*blameindex.Index, error) {
	idx, ok := f.blameByFile[filename]
	if !ok {
		return blameindex.Build(nil), nil
	}
	return idx, nil
}

func (f *fakeRepo) WriteBlob(content []byte) (plumbing.Hash, error) {
	f.blobCounter++
	h := plumbing.NewHash(fmt.Sprintf("%040d", f.blobCounter))
	if f.blobs == nil {
		f.blobs = make(map[plumbing.Hash][]byte)
	}
	f.blobs[h] = append([]byte(nil), content...)
	return h, nil
}

func (f *fakeRepo) WriteTree(entries map[string]gitrepo.IndexEntry) (plumbing.Hash, error) {
	f.blobCounter++
	return plumbing.NewHash(fmt.Sprintf("%040d", f.blobCounter)), nil
}

func (f *fakeRepo) CreateCommit(tree plumbing.Hash, author, committer object.Signature, message string) (plumbing.Hash, error) {
	f.created = append(f.created, createdCommit{tree: tree, author: author, committer: committer, message: message})
	f.blobCounter++
	return plumbing.NewHash(fmt.Sprintf("%040d", f.blobCounter)), nil
}

func (f *fakeRepo) SyncIndex(entries map[string]gitrepo.IndexEntry) error { return nil }

func (f *fakeRepo) ResolveCommit(id string) (*object.Commit, error) {
	c, ok := f.commits[id]
	if !ok {
		return nil, fmt.Errorf("unknown commit %s", id)
	}
	return c, nil
}

func (f *fakeRepo) Identity() (object.Signature, error) {
	return object.Signature{Name: "git-black", Email: "git-black@example.com"}, nil
}

func commitID(n byte) string {
	return fmt.Sprintf("%040x", n)
}

func mkCommit(id string, when time.Time, message string) *object.Commit {
	return &object.Commit{
		Hash:    plumbing.NewHash(id),
		Author:  object.Signature{Name: "Author " + id[:4], Email: id[:4] + "@example.com", When: when},
		Message: message,
		Committer: object.Signature{
			When: when,
		},
	}
}

func TestRunSingleOriginSingleFile(t *testing.T) {
	c1 := commitID(1)
	head := []byte("a\nb\nc\n")

	h := delta.Hunk{
		OldStart: 2, OldLength: 1, NewStart: 2, NewLength: 1,
		Lines: []delta.HunkLine{
			{Origin: delta.LineRemoved, Content: []byte("b\n")},
			{Origin: delta.LineAdded, Content: []byte("B\n")},
		},
	}

	repo := &fakeRepo{
		files: []gitrepo.FileDiff{
			{Filename: "f.go", HeadBytes: head, Mode: filemode.Regular, Hunks: []delta.Hunk{h}},
		},
		blameByFile: map[string]*blameindex.Index{
			"f.go": blameindex.Build([]blameindex.Line{{CommitID: c1, FinalLine: 2}}),
		},
		commits: map[string]*object.Commit{
			c1: mkCommit(c1, time.Unix(1000, 0), "original change"),
		},
	}

	res, err := orchestrator.Run(context.Background(), repo, orchestrator.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.CommitsCreated)
	assert.Equal(t, 1, res.FilesTouched)
	require.Len(t, repo.created, 1)
	assert.Contains(t, repo.created[0].message, "original change")
	assert.Contains(t, repo.created[0].message, "automatic commit by git-black, original commits:")
	assert.Contains(t, repo.created[0].message, c1)
}

func TestRunMultiOriginCollapseOneCommit(t *testing.T) {
	c1, c2 := commitID(1), commitID(2)
	head := []byte("a\nb\n")

	// collapse two lines into one: origins {c1, c2}
	h := delta.Hunk{
		OldStart: 1, OldLength: 2, NewStart: 1, NewLength: 1,
		Lines: []delta.HunkLine{
			{Origin: delta.LineRemoved, Content: []byte("a\n")},
			{Origin: delta.LineRemoved, Content: []byte("b\n")},
			{Origin: delta.LineAdded, Content: []byte("ab\n")},
		},
	}

	repo := &fakeRepo{
		files: []gitrepo.FileDiff{
			{Filename: "f.go", HeadBytes: head, Mode: filemode.Regular, Hunks: []delta.Hunk{h}},
		},
		blameByFile: map[string]*blameindex.Index{
			"f.go": blameindex.Build([]blameindex.Line{
				{CommitID: c1, FinalLine: 1},
				{CommitID: c2, FinalLine: 2},
			}),
		},
		commits: map[string]*object.Commit{
			c1: mkCommit(c1, time.Unix(1000, 0), "first"),
			c2: mkCommit(c2, time.Unix(2000, 0), "second"), // more recent -> main origin
		},
	}

	res, err := orchestrator.Run(context.Background(), repo, orchestrator.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.CommitsCreated)
	require.Len(t, repo.created, 1)
	assert.Contains(t, repo.created[0].message, "second")
	assert.Contains(t, repo.created[0].message, c1)
	assert.Contains(t, repo.created[0].message, c2)
	assert.Equal(t, "Author "+c2[:4], repo.created[0].author.Name)
}

func TestRunMultiFileSameOriginOneCommit(t *testing.T) {
	c1 := commitID(1)

	h1 := delta.Hunk{OldStart: 1, OldLength: 1, NewStart: 1, NewLength: 1, Lines: []delta.HunkLine{
		{Origin: delta.LineRemoved, Content: []byte("a\n")},
		{Origin: delta.LineAdded, Content: []byte("A\n")},
	}}
	h2 := delta.Hunk{OldStart: 1, OldLength: 1, NewStart: 1, NewLength: 1, Lines: []delta.HunkLine{
		{Origin: delta.LineRemoved, Content: []byte("x\n")},
		{Origin: delta.LineAdded, Content: []byte("X\n")},
	}}

	repo := &fakeRepo{
		files: []gitrepo.FileDiff{
			{Filename: "one.go", HeadBytes: []byte("a\n"), Mode: filemode.Regular, Hunks: []delta.Hunk{h1}},
			{Filename: "two.go", HeadBytes: []byte("x\n"), Mode: filemode.Regular, Hunks: []delta.Hunk{h2}},
		},
		blameByFile: map[string]*blameindex.Index{
			"one.go": blameindex.Build([]blameindex.Line{{CommitID: c1, FinalLine: 1}}),
			"two.go": blameindex.Build([]blameindex.Line{{CommitID: c1, FinalLine: 1}}),
		},
		commits: map[string]*object.Commit{
			c1: mkCommit(c1, time.Unix(500, 0), "shared origin"),
		},
	}

	res, err := orchestrator.Run(context.Background(), repo, orchestrator.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.CommitsCreated)
	assert.Equal(t, 2, res.FilesTouched)
}

func TestRunNoOpOnCleanTree(t *testing.T) {
	repo := &fakeRepo{}
	res, err := orchestrator.Run(context.Background(), repo, orchestrator.Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.CommitsCreated)
	assert.Empty(t, repo.created)
}

func TestRunDryRunCreatesNoCommits(t *testing.T) {
	c1 := commitID(1)
	h := delta.Hunk{OldStart: 1, OldLength: 1, NewStart: 1, NewLength: 1, Lines: []delta.HunkLine{
		{Origin: delta.LineRemoved, Content: []byte("a\n")},
		{Origin: delta.LineAdded, Content: []byte("A\n")},
	}}
	repo := &fakeRepo{
		files: []gitrepo.FileDiff{
			{Filename: "f.go", HeadBytes: []byte("a\n"), Mode: filemode.Regular, Hunks: []delta.Hunk{h}},
		},
		blameByFile: map[string]*blameindex.Index{
			"f.go": blameindex.Build([]blameindex.Line{{CommitID: c1, FinalLine: 1}}),
		},
		commits: map[string]*object.Commit{c1: mkCommit(c1, time.Unix(1, 0), "msg")},
	}

	res, err := orchestrator.Run(context.Background(), repo, orchestrator.Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.CommitsCreated)
	assert.Empty(t, repo.created)
}
