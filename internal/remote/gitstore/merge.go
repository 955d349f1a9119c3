package gitstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"treecommit/internal/content"
	"treecommit/internal/remote"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// node is a tree being rewritten. Directories that receive new entries are
// opened into children; everything else stays a reference to the old object.
type node struct {
	entries  map[string]object.TreeEntry
	children map[string]*node
}

// CreateTree writes base with entries layered on top and returns the new
// root. Only the trees on the path to a new entry are rewritten.
func (s *Store) CreateTree(ctx context.Context, base content.ContentID, entries []remote.Entry) (content.ContentID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var baseHash plumbing.Hash
	if base != "" {
		baseHash = base.Hash()
	}
	root, err := s.load(baseHash)
	if err != nil {
		return "", err
	}

	for _, e := range entries {
		if e.IsTree() {
			return "", fmt.Errorf("entry %s: only blob entries can be layered", e.Path)
		}
		parts, err := splitPath(e.Path)
		if err != nil {
			return "", err
		}
		if err := s.insert(root, parts, e); err != nil {
			return "", err
		}
	}

	h, err := s.write(ctx, root)
	if err != nil {
		return "", err
	}
	return content.FromHash(h), nil
}

func splitPath(p string) ([]string, error) {
	if p == "" || strings.HasPrefix(p, "/") {
		return nil, fmt.Errorf("invalid entry path %q", p)
	}
	parts := strings.Split(p, "/")
	for _, part := range parts {
		if part == "" || part == "." || part == ".." {
			return nil, fmt.Errorf("invalid entry path %q", p)
		}
	}
	return parts, nil
}

func (s *Store) load(h plumbing.Hash) (*node, error) {
	n := &node{
		entries:  make(map[string]object.TreeEntry),
		children: make(map[string]*node),
	}
	if h.IsZero() {
		return n, nil
	}

	tree, err := object.GetTree(s.storer, h)
	if err != nil {
		return nil, fmt.Errorf("reading tree %s: %w", h, err)
	}
	for _, e := range tree.Entries {
		n.entries[e.Name] = e
	}
	return n, nil
}

func (s *Store) insert(n *node, parts []string, e remote.Entry) error {
	name := parts[0]

	if len(parts) == 1 {
		// A blob replaces whatever sat at its path, directory included.
		delete(n.children, name)
		n.entries[name] = object.TreeEntry{Name: name, Mode: e.Mode, Hash: e.ID.Hash()}
		return nil
	}

	child, ok := n.children[name]
	if !ok {
		var h plumbing.Hash
		if existing, ok := n.entries[name]; ok && existing.Mode == filemode.Dir {
			h = existing.Hash
		}
		var err error
		if child, err = s.load(h); err != nil {
			return err
		}
		n.children[name] = child
	}
	return s.insert(child, parts[1:], e)
}

func (s *Store) write(ctx context.Context, n *node) (plumbing.Hash, error) {
	if err := ctx.Err(); err != nil {
		return plumbing.ZeroHash, err
	}

	for name, child := range n.children {
		h, err := s.write(ctx, child)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		n.entries[name] = object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: h}
	}

	tree := &object.Tree{Entries: make([]object.TreeEntry, 0, len(n.entries))}
	for _, e := range n.entries {
		tree.Entries = append(tree.Entries, e)
	}
	sort.Sort(object.TreeEntrySorter(tree.Entries))

	obj := s.storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("encoding tree: %w", err)
	}
	h, err := s.storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("storing tree: %w", err)
	}
	return h, nil
}
