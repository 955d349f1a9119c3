package commit

import (
	"context"
	"sort"

	"treecommit/internal/content"
	"treecommit/internal/pool"
	"treecommit/internal/remote"
	"treecommit/internal/workspace"
)

// Candidate is a selected file and the place it will take in the tree.
type Candidate struct {
	Path        string // relative to the scope, used for reading
	Source      string // relative to the workspace
	Destination string
}

// Change is a blob entry of the new tree and the file it came from.
type Change struct {
	Source string
	Entry  remote.Entry
}

type built struct {
	change  *Change
	created content.ContentID
}

// BlobBuilder reads candidates and creates their blobs remotely, one task
// per file.
type BlobBuilder struct {
	Repo  remote.Repository
	Scope *workspace.Scope
	// Index is the base tree by path. A candidate whose destination already
	// holds the same blob and mode is dropped.
	Index   map[string]remote.Entry
	Workers int
	// DryRun computes ids locally instead of creating blobs.
	DryRun bool
}

// Build returns the changes sorted by destination, and the ids of every blob
// created remotely, including those created by tasks whose stage failed.
func (b *BlobBuilder) Build(ctx context.Context, candidates []Candidate) ([]Change, []content.ContentID, error) {
	results := pool.Map(ctx, b.Workers, candidates, b.build)

	var created []content.ContentID
	for _, r := range results {
		if r.Value.created != "" {
			created = append(created, r.Value.created)
		}
	}
	if err := pool.FirstError(results); err != nil {
		return nil, created, err
	}

	var changes []Change
	for _, r := range results {
		if r.Value.change != nil {
			changes = append(changes, *r.Value.change)
		}
	}
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Entry.Path < changes[j].Entry.Path
	})
	return changes, created, nil
}

func (b *BlobBuilder) build(ctx context.Context, c Candidate) (built, error) {
	blob, err := b.Scope.ReadBlob(c.Path)
	if err != nil {
		return built{}, err
	}
	if sameBlob(b.Index, c.Destination, blob) {
		return built{}, nil
	}

	id := blob.ID
	var created content.ContentID
	if !b.DryRun {
		if id, err = b.Repo.CreateBlob(ctx, blob.Data); err != nil {
			return built{}, remoteError("create blob for "+c.Source, err)
		}
		created = id
	}

	return built{
		change: &Change{
			Source: c.Source,
			Entry:  remote.BlobEntry(c.Destination, id, blob.Mode),
		},
		created: created,
	}, nil
}
