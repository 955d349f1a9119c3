package remote

import (
	"context"

	"treecommit/internal/content"
	"treecommit/internal/errors"
	"treecommit/internal/pool"
)

// FailedSubtree is a subtree whose listing could not be fetched.
type FailedSubtree struct {
	Path string
	ID   content.ContentID
	Err  error
}

// ScanResult is the blob listing of a tree. A failed subtree contributes no
// entries and is reported in Failed instead of failing the scan.
type ScanResult struct {
	Entries  []Entry
	Subtrees int
	Failed   []FailedSubtree
}

// Degraded reports whether part of the tree could not be listed.
func (r *ScanResult) Degraded() bool {
	return len(r.Failed) > 0
}

// Index maps each blob path to its entry.
func (r *ScanResult) Index() map[string]Entry {
	index := make(map[string]Entry, len(r.Entries))
	for _, e := range r.Entries {
		index[e.Path] = e
	}
	return index
}

// Scan lists every blob under tree. Direct subtrees are fetched recursively,
// one task per subtree, at most limit at a time.
func Scan(ctx context.Context, repo Repository, tree content.ContentID, limit int) (*ScanResult, error) {
	top, err := repo.Tree(ctx, tree, false)
	if err != nil {
		return nil, errors.RemoteOperation("fetch tree "+tree.String(), err)
	}

	result := &ScanResult{}
	var subtrees []Entry
	for _, e := range top {
		if e.IsTree() {
			subtrees = append(subtrees, e)
			continue
		}
		result.Entries = append(result.Entries, e)
	}
	result.Subtrees = len(subtrees)

	listings := pool.Map(ctx, limit, subtrees, func(ctx context.Context, sub Entry) ([]Entry, error) {
		return repo.Tree(ctx, sub.ID, true)
	})

	for i, listing := range listings {
		sub := subtrees[i]
		if listing.Err != nil {
			result.Failed = append(result.Failed, FailedSubtree{Path: sub.Path, ID: sub.ID, Err: listing.Err})
			continue
		}
		for _, e := range listing.Value {
			if e.IsTree() {
				continue
			}
			result.Entries = append(result.Entries, e.Under(sub.Path))
		}
	}

	return result, nil
}
