package remote

import (
	"context"
	"fmt"
	"time"

	"treecommit/internal/content"
	"treecommit/internal/errors"
	"treecommit/internal/logging"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Decorator wraps a Repository with extra behavior.
type Decorator func(Repository) Repository

// Chain applies decorators in order; the last one is outermost.
func Chain(repo Repository, decorators ...Decorator) Repository {
	for _, d := range decorators {
		repo = d(repo)
	}
	return repo
}

type loggingRepository struct {
	Repository
	logger *logging.Logger
}

// WithLogging logs every remote call with its duration.
func WithLogging(logger *logging.Logger) Decorator {
	return func(next Repository) Repository {
		return &loggingRepository{Repository: next, logger: logger.Named("remote")}
	}
}

func (r *loggingRepository) observe(op string, start time.Time, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.String("op", op),
		zap.Duration("duration", time.Since(start)),
	)
	if err != nil {
		r.logger.Warn("remote call failed", append(fields, zap.Error(err))...)
		return
	}
	r.logger.Debug("remote call completed", fields...)
}

func (r *loggingRepository) Head(ctx context.Context) (c *Commit, err error) {
	defer func(start time.Time) { r.observe("head", start, err, zap.String("ref", r.Ref())) }(time.Now())
	return r.Repository.Head(ctx)
}

func (r *loggingRepository) Tree(ctx context.Context, id content.ContentID, recursive bool) (entries []Entry, err error) {
	defer func(start time.Time) {
		r.observe("tree", start, err,
			zap.String("tree", id.Short()),
			zap.Bool("recursive", recursive),
			zap.Int("entries", len(entries)))
	}(time.Now())
	return r.Repository.Tree(ctx, id, recursive)
}

func (r *loggingRepository) CreateBlob(ctx context.Context, data []byte) (id content.ContentID, err error) {
	defer func(start time.Time) {
		r.observe("create_blob", start, err, zap.String("blob", id.Short()), zap.Int("size", len(data)))
	}(time.Now())
	return r.Repository.CreateBlob(ctx, data)
}

func (r *loggingRepository) CreateTree(ctx context.Context, base content.ContentID, entries []Entry) (id content.ContentID, err error) {
	defer func(start time.Time) {
		r.observe("create_tree", start, err,
			zap.String("base", base.Short()),
			zap.String("tree", id.Short()),
			zap.Int("entries", len(entries)))
	}(time.Now())
	return r.Repository.CreateTree(ctx, base, entries)
}

func (r *loggingRepository) CreateCommit(ctx context.Context, message string, tree content.ContentID, parents []content.ContentID) (c *Commit, err error) {
	defer func(start time.Time) {
		fields := []zap.Field{zap.String("tree", tree.Short()), zap.Int("parents", len(parents))}
		if c != nil {
			fields = append(fields, zap.String("commit", c.ID.Short()))
		}
		r.observe("create_commit", start, err, fields...)
	}(time.Now())
	return r.Repository.CreateCommit(ctx, message, tree, parents)
}

func (r *loggingRepository) UpdateRef(ctx context.Context, commit content.ContentID, force bool) (err error) {
	defer func(start time.Time) {
		r.observe("update_ref", start, err,
			zap.String("ref", r.Ref()),
			zap.String("commit", commit.Short()),
			zap.Bool("force", force))
	}(time.Now())
	return r.Repository.UpdateRef(ctx, commit, force)
}

type treeKey struct {
	id        content.ContentID
	recursive bool
}

type cachedRepository struct {
	Repository
	trees *lru.Cache[treeKey, []Entry]
}

// WithTreeCache keeps up to size tree listings in memory. Trees are
// addressed by content so entries never go stale.
func WithTreeCache(size int) Decorator {
	return func(next Repository) Repository {
		trees, err := lru.New[treeKey, []Entry](size)
		if err != nil {
			// Only a non-positive size fails; run uncached.
			return next
		}
		return &cachedRepository{Repository: next, trees: trees}
	}
}

func (r *cachedRepository) Tree(ctx context.Context, id content.ContentID, recursive bool) ([]Entry, error) {
	key := treeKey{id: id, recursive: recursive}
	if entries, ok := r.trees.Get(key); ok {
		return append([]Entry(nil), entries...), nil
	}

	entries, err := r.Repository.Tree(ctx, id, recursive)
	if err != nil {
		return nil, err
	}
	r.trees.Add(key, append([]Entry(nil), entries...))
	return entries, nil
}

type recoverRepository struct {
	Repository
	logger *logging.Logger
}

// WithRecover turns a panic inside a remote call into a
// RemoteOperationFailed error.
func WithRecover(logger *logging.Logger) Decorator {
	return func(next Repository) Repository {
		return &recoverRepository{Repository: next, logger: logger}
	}
}

func (r *recoverRepository) rescue(op string, err *error) {
	if p := recover(); p != nil {
		r.logger.Error("panic recovered", zap.String("op", op), zap.Any("error", p))
		*err = errors.RemoteOperation(op, fmt.Errorf("panic: %v", p))
	}
}

func (r *recoverRepository) Head(ctx context.Context) (c *Commit, err error) {
	defer r.rescue("head", &err)
	return r.Repository.Head(ctx)
}

func (r *recoverRepository) Tree(ctx context.Context, id content.ContentID, recursive bool) (entries []Entry, err error) {
	defer r.rescue("tree", &err)
	return r.Repository.Tree(ctx, id, recursive)
}

func (r *recoverRepository) CreateBlob(ctx context.Context, data []byte) (id content.ContentID, err error) {
	defer r.rescue("create blob", &err)
	return r.Repository.CreateBlob(ctx, data)
}

func (r *recoverRepository) CreateTree(ctx context.Context, base content.ContentID, entries []Entry) (id content.ContentID, err error) {
	defer r.rescue("create tree", &err)
	return r.Repository.CreateTree(ctx, base, entries)
}

func (r *recoverRepository) CreateCommit(ctx context.Context, message string, tree content.ContentID, parents []content.ContentID) (c *Commit, err error) {
	defer r.rescue("create commit", &err)
	return r.Repository.CreateCommit(ctx, message, tree, parents)
}

func (r *recoverRepository) UpdateRef(ctx context.Context, commit content.ContentID, force bool) (err error) {
	defer r.rescue("update ref", &err)
	return r.Repository.UpdateRef(ctx, commit, force)
}
