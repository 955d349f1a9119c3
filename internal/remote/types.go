// Package remote describes the repository service a commit is assembled
// against, plus the helpers that sit on top of it.
package remote

import (
	"context"
	"path"

	"treecommit/internal/content"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
)

// Entry is one item of a remote tree. Type is plumbing.BlobObject or
// plumbing.TreeObject; Path is relative to the tree that was fetched.
type Entry struct {
	Path string              `json:"path"`
	ID   content.ContentID   `json:"id"`
	Mode filemode.FileMode   `json:"mode"`
	Type plumbing.ObjectType `json:"type"`
}

func BlobEntry(p string, id content.ContentID, mode filemode.FileMode) Entry {
	return Entry{Path: p, ID: id, Mode: mode, Type: plumbing.BlobObject}
}

func (e Entry) IsTree() bool {
	return e.Type == plumbing.TreeObject
}

// Under returns a copy of e with its path placed below parent.
func (e Entry) Under(parent string) Entry {
	if parent != "" {
		e.Path = path.Join(parent, e.Path)
	}
	return e
}

type Commit struct {
	ID      content.ContentID   `json:"id"`
	Tree    content.ContentID   `json:"tree"`
	Parents []content.ContentID `json:"parents,omitempty"`
	Message string              `json:"message"`
}

// Repository is the remote object store a single reference lives in.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Ref names the reference Head and UpdateRef operate on.
	Ref() string
	// Head returns the commit the reference currently points at.
	Head(ctx context.Context) (*Commit, error)
	// Tree lists a tree. With recursive set, every blob below it is
	// returned with its full path and subtree entries are omitted.
	Tree(ctx context.Context, id content.ContentID, recursive bool) ([]Entry, error)
	CreateBlob(ctx context.Context, data []byte) (content.ContentID, error)
	// CreateTree layers blob entries onto base. Entries of base not named
	// in entries are kept as they are.
	CreateTree(ctx context.Context, base content.ContentID, entries []Entry) (content.ContentID, error)
	CreateCommit(ctx context.Context, message string, tree content.ContentID, parents []content.ContentID) (*Commit, error)
	// UpdateRef moves the reference to commit. Without force only a
	// fast-forward is accepted.
	UpdateRef(ctx context.Context, commit content.ContentID, force bool) error
}
