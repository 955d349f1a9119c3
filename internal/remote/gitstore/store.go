// Package gitstore implements remote.Repository on top of a go-git object
// store, either in memory or an on-disk repository.
package gitstore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"treecommit/internal/content"
	"treecommit/internal/errors"
	"treecommit/internal/remote"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/storage"
	"github.com/go-git/go-git/v5/storage/memory"
)

type Store struct {
	// go-git storers are not safe for concurrent writers.
	mu     sync.RWMutex
	storer storage.Storer
	ref    plumbing.ReferenceName

	name  string
	email string
	now   func() time.Time
}

type Option func(*Store)

// WithSignature sets the author and committer of created commits.
func WithSignature(name, email string) Option {
	return func(s *Store) {
		s.name = name
		s.email = email
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(st storage.Storer, ref string, opts ...Option) *Store {
	s := &Store{
		storer: st,
		ref:    ReferenceName(ref),
		name:   "treecommit",
		email:  "treecommit@users.noreply.github.com",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewMemory returns a Store over an empty in-memory repository.
func NewMemory(ref string, opts ...Option) *Store {
	return New(memory.NewStorage(), ref, opts...)
}

// Open opens the repository at path. An empty ref means HEAD.
func Open(path, ref string, opts ...Option) (*Store, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("opening repository %s: %w", path, err)
	}
	return New(repo.Storer, ref, opts...), nil
}

// ReferenceName expands short forms: "main" and "heads/main" both become
// "refs/heads/main". HEAD is kept as is.
func ReferenceName(ref string) plumbing.ReferenceName {
	switch {
	case ref == "" || ref == "HEAD":
		return plumbing.HEAD
	case strings.HasPrefix(ref, "refs/"):
		return plumbing.ReferenceName(ref)
	case strings.HasPrefix(ref, "heads/"), strings.HasPrefix(ref, "tags/"):
		return plumbing.ReferenceName("refs/" + ref)
	default:
		return plumbing.NewBranchReferenceName(ref)
	}
}

// Storer exposes the underlying object store.
func (s *Store) Storer() storage.Storer {
	return s.storer
}

func (s *Store) Ref() string {
	return s.ref.String()
}

// target follows a symbolic reference such as HEAD to the branch it names.
func (s *Store) target() (plumbing.ReferenceName, error) {
	name := s.ref
	for i := 0; i < 8; i++ {
		ref, err := s.storer.Reference(name)
		if err == plumbing.ErrReferenceNotFound {
			return name, nil
		}
		if err != nil {
			return "", err
		}
		if ref.Type() != plumbing.SymbolicReference {
			return name, nil
		}
		name = ref.Target()
	}
	return "", fmt.Errorf("reference %s: too many symbolic hops", s.ref)
}

func (s *Store) Head(ctx context.Context) (*remote.Commit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ref, err := storer.ResolveReference(s.storer, s.ref)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", s.ref, err)
	}

	c, err := object.GetCommit(s.storer, ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("reading commit %s: %w", ref.Hash(), err)
	}
	return toCommit(c), nil
}

func toCommit(c *object.Commit) *remote.Commit {
	parents := make([]content.ContentID, 0, len(c.ParentHashes))
	for _, p := range c.ParentHashes {
		parents = append(parents, content.FromHash(p))
	}
	return &remote.Commit{
		ID:      content.FromHash(c.Hash),
		Tree:    content.FromHash(c.TreeHash),
		Parents: parents,
		Message: c.Message,
	}
}

func (s *Store) Tree(ctx context.Context, id content.ContentID, recursive bool) ([]remote.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []remote.Entry
	if err := s.list(ctx, id.Hash(), "", recursive, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// list appends the entries of tree h. Unlike object.TreeWalker a missing
// subtree is an error, not a silent skip.
func (s *Store) list(ctx context.Context, h plumbing.Hash, prefix string, recursive bool, out *[]remote.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tree, err := object.GetTree(s.storer, h)
	if err != nil {
		return fmt.Errorf("reading tree %s: %w", h, err)
	}

	for _, e := range tree.Entries {
		entry := remote.Entry{
			Path: e.Name,
			ID:   content.FromHash(e.Hash),
			Mode: e.Mode,
			Type: plumbing.BlobObject,
		}
		entry = entry.Under(prefix)

		switch e.Mode {
		case filemode.Submodule:
			continue
		case filemode.Dir:
			if recursive {
				if err := s.list(ctx, e.Hash, entry.Path, true, out); err != nil {
					return err
				}
				continue
			}
			entry.Type = plumbing.TreeObject
		}
		*out = append(*out, entry)
	}
	return nil
}

func (s *Store) CreateBlob(ctx context.Context, data []byte) (content.ContentID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj := s.storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))

	w, err := obj.Writer()
	if err != nil {
		return "", err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	h, err := s.storer.SetEncodedObject(obj)
	if err != nil {
		return "", fmt.Errorf("storing blob: %w", err)
	}
	return content.FromHash(h), nil
}

func (s *Store) CreateCommit(ctx context.Context, message string, tree content.ContentID, parents []content.ContentID) (*remote.Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storer.HasEncodedObject(tree.Hash()); err != nil {
		return nil, fmt.Errorf("tree %s: %w", tree, err)
	}

	sig := object.Signature{Name: s.name, Email: s.email, When: s.now()}
	c := &object.Commit{
		Author:    sig,
		Committer: sig,
		Message:   message,
		TreeHash:  tree.Hash(),
	}
	for _, p := range parents {
		c.ParentHashes = append(c.ParentHashes, p.Hash())
	}

	obj := s.storer.NewEncodedObject()
	if err := c.Encode(obj); err != nil {
		return nil, fmt.Errorf("encoding commit: %w", err)
	}
	h, err := s.storer.SetEncodedObject(obj)
	if err != nil {
		return nil, fmt.Errorf("storing commit: %w", err)
	}
	c.Hash = h

	return toCommit(c), nil
}

// UpdateRef moves the reference. A missing reference is created; an
// existing one only moves forward unless force is set.
func (s *Store) UpdateRef(ctx context.Context, commit content.ContentID, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, err := s.target()
	if err != nil {
		return err
	}

	next, err := object.GetCommit(s.storer, commit.Hash())
	if err != nil {
		return fmt.Errorf("reading commit %s: %w", commit, err)
	}

	current, err := s.storer.Reference(name)
	if err == plumbing.ErrReferenceNotFound {
		current = nil
	} else if err != nil {
		return err
	}

	if current != nil && !force && current.Hash() != next.Hash {
		ok, err := s.fastForward(current.Hash(), next)
		if err != nil {
			return err
		}
		if !ok {
			return errors.RefUpdateRejected(name.String(), current.Hash().String(), next.Hash.String())
		}
	}

	return s.storer.CheckAndSetReference(plumbing.NewHashReference(name, next.Hash), current)
}

func (s *Store) fastForward(from plumbing.Hash, to *object.Commit) (bool, error) {
	old, err := object.GetCommit(s.storer, from)
	if err == plumbing.ErrObjectNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return old.IsAncestor(to)
}

// Blob returns the raw bytes of a stored blob.
func (s *Store) Blob(id content.ContentID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, err := object.GetBlob(s.storer, id.Hash())
	if err != nil {
		return nil, err
	}
	r, err := b.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Objects counts stored objects of type t.
func (s *Store) Objects(t plumbing.ObjectType) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	iter, err := s.storer.IterEncodedObjects(t)
	if err != nil {
		return 0, err
	}
	n := 0
	err = iter.ForEach(func(plumbing.EncodedObject) error {
		n++
		return nil
	})
	return n, err
}
