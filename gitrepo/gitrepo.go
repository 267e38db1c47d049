// Package gitrepo is the repository adapter (spec.md C7): the single
// abstraction boundary over the external git library and the external
// git binary. It resolves HEAD, reads HEAD blob content, computes the
// unstaged diff of every modified tracked file, builds per-file blame
// indices, and writes new blobs/trees/commits without ever touching
// the working tree.
package gitrepo

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Sentinel errors, one per error kind in spec.md §7. Callers use
// errors.Is to classify a failure for exit-code purposes.
var (
	ErrIndexNotEmpty         = errors.New("gitrepo: staging area is not empty")
	ErrRepositoryAccess      = errors.New("gitrepo: repository access failed")
	ErrBlameFailure          = errors.New("gitrepo: blame failed")
	ErrDiffInconsistency     = errors.New("gitrepo: diff is inconsistent with HEAD content")
	ErrCommitCreationFailure = errors.New("gitrepo: commit creation failed")
)

// Repo is an open repository rooted at HEAD.
type Repo struct {
	repo     *git.Repository
	root     string
	fs       billy.Filesystem
	head     plumbing.Hash
	headTree *object.Tree
}

// Open opens the git repository at root (a working copy, not a bare
// repository) and resolves its current HEAD.
func Open(root string) (*Repo, error) {
	r, err := git.PlainOpen(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRepositoryAccess, err)
	}

	headRef, err := r.Head()
	if err != nil {
		return nil, fmt.Errorf("%w: resolving HEAD: %v", ErrRepositoryAccess, err)
	}

	headCommit, err := r.CommitObject(headRef.Hash())
	if err != nil {
		return nil, fmt.Errorf("%w: loading HEAD commit: %v", ErrRepositoryAccess, err)
	}

	headTree, err := headCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("%w: loading HEAD tree: %v", ErrRepositoryAccess, err)
	}

	return &Repo{repo: r, root: root, fs: osfs.New(root), head: headRef.Hash(), headTree: headTree}, nil
}

// Head returns the commit hash HEAD currently points to.
func (r *Repo) Head() plumbing.Hash {
	return r.head
}

// CheckIndexEmpty is the pre-flight check from spec.md §4.5: it fails
// if any tracked path has an index-side status (staged add, modify,
// delete, rename, or typechange) relative to HEAD.
func (r *Repo) CheckIndexEmpty() error {
	idx, err := r.repo.Storer.Index()
	if err != nil {
		return fmt.Errorf("%w: reading index: %v", ErrRepositoryAccess, err)
	}

	for _, e := range idx.Entries {
		f, err := r.headTree.File(e.Name)
		if err != nil {
			// present in the index but absent from HEAD: a staged add.
			return fmt.Errorf("%w: %s is staged", ErrIndexNotEmpty, e.Name)
		}
		if f.Hash != e.Hash || f.Mode != e.Mode {
			return fmt.Errorf("%w: %s has staged changes", ErrIndexNotEmpty, e.Name)
		}
	}

	iter := r.headTree.Files()
	defer iter.Close()
	indexed := make(map[string]bool, len(idx.Entries))
	for _, e := range idx.Entries {
		indexed[e.Name] = true
	}
	for {
		f, err := iter.Next()
		if err != nil {
			break
		}
		if !indexed[f.Name] {
			return fmt.Errorf("%w: %s is staged for deletion", ErrIndexNotEmpty, f.Name)
		}
	}

	return nil
}

// HeadBlob returns the raw bytes of path as recorded in the HEAD tree,
// along with its file mode (reused verbatim when the orchestrator
// writes the rewritten blob back into the index).
func (r *Repo) HeadBlob(filename string) ([]byte, filemode.FileMode, error) {
	f, err := r.headTree.File(filename)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s not found at HEAD: %v", ErrDiffInconsistency, filename, err)
	}

	content, err := f.Contents()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: reading %s at HEAD: %v", ErrRepositoryAccess, filename, err)
	}

	return []byte(content), f.Mode, nil
}

// Identity resolves the committer identity: the repository's
// user.name / user.email, per spec.md §6. The returned signature's
// When is left zero; CreateCommit stamps a fresh timestamp.
func (r *Repo) Identity() (object.Signature, error) {
	cfg, err := r.repo.ConfigScoped(config.SystemScope)
	if err != nil {
		return object.Signature{}, fmt.Errorf("%w: reading config: %v", ErrRepositoryAccess, err)
	}
	return object.Signature{Name: cfg.User.Name, Email: cfg.User.Email}, nil
}

// WriteBlob writes content as a new blob object and returns its hash.
func (r *Repo) WriteBlob(content []byte) (plumbing.Hash, error) {
	obj := r.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)

	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: %v", ErrCommitCreationFailure, err)
	}
	if _, err := w.Write(content); err != nil {
		w.Close()
		return plumbing.ZeroHash, fmt.Errorf("%w: %v", ErrCommitCreationFailure, err)
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: %v", ErrCommitCreationFailure, err)
	}

	hash, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: %v", ErrCommitCreationFailure, err)
	}
	return hash, nil
}

// IndexEntry is one (path, blob, mode) triple the orchestrator wants
// reflected in the commit it is about to build.
type IndexEntry struct {
	Name string
	Hash plumbing.Hash
	Mode filemode.FileMode
}

// WriteTree writes a git tree object from the accumulator index —
// every file tracked at HEAD, overridden by any path present in
// entries — and returns the new tree's hash. This realizes "write
// index to tree" from spec.md §6; unlike a full working-copy add, the
// accumulator never needs new paths or deletions since only
// "modified" files are ever rewritten (spec.md §4.5 phase 1).
func (r *Repo) WriteTree(entries map[string]IndexEntry) (plumbing.Hash, error) {
	base := make(map[string]IndexEntry)
	iter := r.headTree.Files()
	defer iter.Close()
	for {
		f, err := iter.Next()
		if err != nil {
			break
		}
		base[f.Name] = IndexEntry{Name: f.Name, Hash: f.Hash, Mode: f.Mode}
	}
	for name, e := range entries {
		base[name] = e
	}

	return r.writeTreeNode(base, "")
}

// writeTreeNode recursively builds one tree level for every entry whose
// Name has dir as its path prefix, writing the blobs' directory
// structure bottom-up.
func (r *Repo) writeTreeNode(entries map[string]IndexEntry, dir string) (plumbing.Hash, error) {
	type child struct {
		name  string // single path component
		entry *IndexEntry
		isDir bool
	}

	children := make(map[string]*child)
	order := make([]string, 0)

	for name, e := range entries {
		rel := name
		if dir != "" {
			if !hasDirPrefix(name, dir) {
				continue
			}
			rel = name[len(dir)+1:]
		}

		comp := rel
		isDir := false
		if i := indexByte(rel, '/'); i >= 0 {
			comp = rel[:i]
			isDir = true
		}

		if c, ok := children[comp]; ok {
			c.isDir = c.isDir || isDir
			continue
		}
		ev := e
		children[comp] = &child{name: comp, entry: &ev, isDir: isDir}
		order = append(order, comp)
	}

	sort.Strings(order)

	tree := &object.Tree{}
	for _, name := range order {
		c := children[name]
		var childDir string
		if dir == "" {
			childDir = name
		} else {
			childDir = dir + "/" + name
		}

		if c.isDir {
			hash, err := r.writeTreeNode(entries, childDir)
			if err != nil {
				return plumbing.ZeroHash, err
			}
			tree.Entries = append(tree.Entries, object.TreeEntry{
				Name: name,
				Mode: filemode.Dir,
				Hash: hash,
			})
			continue
		}

		tree.Entries = append(tree.Entries, object.TreeEntry{
			Name: name,
			Mode: c.entry.Mode,
			Hash: c.entry.Hash,
		})
	}

	obj := r.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: encoding tree: %v", ErrCommitCreationFailure, err)
	}
	hash, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: writing tree: %v", ErrCommitCreationFailure, err)
	}
	return hash, nil
}

func hasDirPrefix(name, dir string) bool {
	return len(name) > len(dir) && name[:len(dir)] == dir && name[len(dir)] == '/'
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// CreateCommit writes a one-parent commit whose tree is treeHash, whose
// parent is the repository's current HEAD, whose author is author
// (name, email, and timestamp preserved verbatim from the origin
// commit), and whose committer is committer with a freshly stamped
// timestamp (spec.md §4.5 step 3: "committer = repo's configured
// identity with a fresh timestamp"). It advances HEAD to the new
// commit and returns its hash.
func (r *Repo) CreateCommit(treeHash plumbing.Hash, author, committer object.Signature, message string) (plumbing.Hash, error) {
	committer.When = time.Now()
	commit := &object.Commit{
		Author:       author,
		Committer:    committer,
		Message:      message,
		TreeHash:     treeHash,
		ParentHashes: []plumbing.Hash{r.head},
	}

	obj := r.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: encoding commit: %v", ErrCommitCreationFailure, err)
	}
	hash, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: writing commit: %v", ErrCommitCreationFailure, err)
	}

	headRef := plumbing.NewHashReference(plumbing.HEAD, hash)
	symRef, err := r.repo.Reference(plumbing.HEAD, false)
	if err == nil && symRef.Type() == plumbing.SymbolicReference {
		headRef = plumbing.NewHashReference(symRef.Target(), hash)
	}
	if err := r.repo.Storer.SetReference(headRef); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: updating HEAD: %v", ErrCommitCreationFailure, err)
	}

	newCommit, err := r.repo.CommitObject(hash)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: reloading new HEAD commit: %v", ErrCommitCreationFailure, err)
	}
	newTree, err := newCommit.Tree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: reloading new HEAD tree: %v", ErrCommitCreationFailure, err)
	}

	r.head = hash
	r.headTree = newTree
	return hash, nil
}

// SyncIndex rewrites the on-disk index so it matches the new HEAD tree
// for the given entries, keeping `git status` clean for files
// git-black rewrote. The working tree itself is never touched.
func (r *Repo) SyncIndex(entries map[string]IndexEntry) error {
	idx, err := r.repo.Storer.Index()
	if err != nil {
		return fmt.Errorf("%w: reading index: %v", ErrRepositoryAccess, err)
	}

	byName := make(map[string]*index.Entry, len(idx.Entries))
	for _, e := range idx.Entries {
		byName[e.Name] = e
	}

	for name, v := range entries {
		if e, ok := byName[name]; ok {
			e.Hash = v.Hash
			e.Mode = v.Mode
			continue
		}
		idx.Entries = append(idx.Entries, &index.Entry{
			Name: name,
			Hash: v.Hash,
			Mode: v.Mode,
		})
	}

	return r.repo.Storer.SetIndex(idx)
}

// Root returns the repository's working-tree root path.
func (r *Repo) Root() string {
	return path.Clean(r.root)
}

// ResolveCommit loads the commit object for a 40-hex commit id, as
// produced by BuildBlameIndex. Used by the orchestrator to read an
// origin commit's author, committer timestamp, and message.
func (r *Repo) ResolveCommit(id string) (*object.Commit, error) {
	hash := plumbing.NewHash(id)
	if hash.IsZero() {
		return nil, fmt.Errorf("%w: %q is not a valid commit id", ErrDiffInconsistency, id)
	}

	c, err := r.repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving commit %s: %v", ErrRepositoryAccess, id, err)
	}
	return c, nil
}
