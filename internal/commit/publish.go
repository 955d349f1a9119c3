package commit

import (
	"context"

	"treecommit/internal/content"
	"treecommit/internal/errors"
	"treecommit/internal/remote"
)

func remoteError(op string, err error) error {
	if errors.Is(err, errors.ErrRefUpdateRejected) || errors.Is(err, errors.ErrRemoteOperation) {
		return err
	}
	return errors.RemoteOperation(op, err)
}

// Publish layers changes onto the base tree, commits the result with base as
// its only parent and moves the reference to it. With no changes the base
// tree is reused as is.
func Publish(ctx context.Context, repo remote.Repository, base *remote.Commit, changes []Change, message string, force bool) (*remote.Commit, error) {
	tree := base.Tree
	if len(changes) > 0 {
		entries := make([]remote.Entry, len(changes))
		for i, c := range changes {
			entries[i] = c.Entry
		}

		var err error
		if tree, err = repo.CreateTree(ctx, base.Tree, entries); err != nil {
			return nil, remoteError("create tree", err)
		}
	}

	c, err := repo.CreateCommit(ctx, message, tree, []content.ContentID{base.ID})
	if err != nil {
		return nil, remoteError("create commit", err)
	}

	if err := repo.UpdateRef(ctx, c.ID, force); err != nil {
		return c, remoteError("update "+repo.Ref(), err)
	}
	return c, nil
}
