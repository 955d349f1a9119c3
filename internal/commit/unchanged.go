package commit

import (
	"context"

	"treecommit/internal/content"
	"treecommit/internal/pool"
	"treecommit/internal/remote"
	"treecommit/internal/workspace"
)

// ResolveUnchanged returns the scope-relative paths whose local content is
// identical to the blob the remote tree holds at the same path. Local files
// that cannot be hashed are treated as changed.
func ResolveUnchanged(ctx context.Context, scope *workspace.Scope, scan *remote.ScanResult, limit int) workspace.PathSet {
	results := pool.Map(ctx, limit, scan.Entries, func(_ context.Context, e remote.Entry) (bool, error) {
		id, err := scope.Hash(e.Path)
		if err != nil {
			return false, nil
		}
		return id == e.ID, nil
	})

	unchanged := workspace.PathSet{}
	for i, r := range results {
		if r.Value {
			unchanged.Add(scan.Entries[i].Path)
		}
	}
	return unchanged
}

// sameBlob reports whether the base tree already holds id with mode at dest.
func sameBlob(index map[string]remote.Entry, dest string, blob *content.Blob) bool {
	existing, ok := index[dest]
	return ok && !existing.IsTree() && existing.ID == blob.ID && existing.Mode == blob.Mode
}
