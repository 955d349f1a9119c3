package remote_test

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"testing"

	"treecommit/internal/content"
	"treecommit/internal/errors"
	"treecommit/internal/logging"
	"treecommit/internal/remote"
	"treecommit/internal/remote/gitstore"

	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// faultyRepository fails tree fetches for the listed ids and counts calls.
type faultyRepository struct {
	remote.Repository
	failing map[content.ContentID]bool
	trees   atomic.Int32
	panics  bool
}

func (r *faultyRepository) Tree(ctx context.Context, id content.ContentID, recursive bool) ([]remote.Entry, error) {
	r.trees.Add(1)
	if r.panics {
		panic("transport exploded")
	}
	if r.failing[id] {
		return nil, fmt.Errorf("tree %s unavailable", id.Short())
	}
	return r.Repository.Tree(ctx, id, recursive)
}

func seedStore(t *testing.T, files map[string]string) (*gitstore.Store, *remote.Commit) {
	t.Helper()
	ctx := context.Background()
	s := gitstore.NewMemory("main")

	var entries []remote.Entry
	for p, body := range files {
		id, err := s.CreateBlob(ctx, []byte(body))
		require.NoError(t, err)
		entries = append(entries, remote.BlobEntry(p, id, filemode.Regular))
	}
	tree, err := s.CreateTree(ctx, "", entries)
	require.NoError(t, err)
	c, err := s.CreateCommit(ctx, "seed", tree, nil)
	require.NoError(t, err)
	require.NoError(t, s.UpdateRef(ctx, c.ID, false))
	return s, c
}

func scannedPaths(r *remote.ScanResult) []string {
	var out []string
	for _, e := range r.Entries {
		out = append(out, e.Path)
	}
	sort.Strings(out)
	return out
}

var fixture = map[string]string{
	"top.txt":        "top",
	"a/one.txt":      "one",
	"a/deep/two.txt": "two",
	"b/three.txt":    "three",
	"c/d/e/four.txt": "four",
}

func TestScan(t *testing.T) {
	s, c := seedStore(t, fixture)

	result, err := remote.Scan(context.Background(), s, c.Tree, 2)
	require.NoError(t, err)

	assert.False(t, result.Degraded())
	assert.Equal(t, 3, result.Subtrees)
	assert.Equal(t, []string{"a/deep/two.txt", "a/one.txt", "b/three.txt", "c/d/e/four.txt", "top.txt"}, scannedPaths(result))
	assert.Equal(t, content.HashBytes([]byte("two")), result.Index()["a/deep/two.txt"].ID)
}

func TestScanDegradesOnFailedSubtree(t *testing.T) {
	s, c := seedStore(t, fixture)
	top, err := s.Tree(context.Background(), c.Tree, false)
	require.NoError(t, err)

	failing := map[content.ContentID]bool{}
	for _, e := range top {
		if e.Path == "b" {
			failing[e.ID] = true
		}
	}
	repo := &faultyRepository{Repository: s, failing: failing}

	result, err := remote.Scan(context.Background(), repo, c.Tree, 4)
	require.NoError(t, err)

	assert.True(t, result.Degraded())
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "b", result.Failed[0].Path)
	assert.Error(t, result.Failed[0].Err)
	assert.Equal(t, []string{"a/deep/two.txt", "a/one.txt", "c/d/e/four.txt", "top.txt"}, scannedPaths(result))
}

func TestScanFailsOnRootTree(t *testing.T) {
	s, c := seedStore(t, fixture)
	repo := &faultyRepository{Repository: s, failing: map[content.ContentID]bool{c.Tree: true}}

	_, err := remote.Scan(context.Background(), repo, c.Tree, 4)
	assert.True(t, errors.Is(err, errors.ErrRemoteOperation))
}

func TestTreeCache(t *testing.T) {
	s, c := seedStore(t, fixture)
	counting := &faultyRepository{Repository: s}
	repo := remote.Chain(counting, remote.WithTreeCache(16), remote.WithLogging(logging.NewNop()))

	first, err := remote.Scan(context.Background(), repo, c.Tree, 4)
	require.NoError(t, err)
	calls := counting.trees.Load()

	second, err := remote.Scan(context.Background(), repo, c.Tree, 4)
	require.NoError(t, err)

	assert.Equal(t, calls, counting.trees.Load(), "second scan served from cache")
	assert.ElementsMatch(t, first.Entries, second.Entries)
}

func TestRecover(t *testing.T) {
	s, c := seedStore(t, fixture)
	repo := remote.Chain(&faultyRepository{Repository: s, panics: true}, remote.WithRecover(logging.NewNop()))

	_, err := repo.Tree(context.Background(), c.Tree, false)
	assert.True(t, errors.Is(err, errors.ErrRemoteOperation))

	head, err := repo.Head(context.Background())
	require.NoError(t, err)
	assert.Equal(t, c.ID, head.ID)
}

func TestLoggingPassesThrough(t *testing.T) {
	s, c := seedStore(t, fixture)
	repo := remote.Chain(s, remote.WithLogging(logging.NewNop()))
	ctx := context.Background()

	assert.Equal(t, "refs/heads/main", repo.Ref())

	id, err := repo.CreateBlob(ctx, []byte("x"))
	require.NoError(t, err)
	tree, err := repo.CreateTree(ctx, c.Tree, []remote.Entry{remote.BlobEntry("x.txt", id, filemode.Regular)})
	require.NoError(t, err)
	next, err := repo.CreateCommit(ctx, "next", tree, []content.ContentID{c.ID})
	require.NoError(t, err)
	require.NoError(t, repo.UpdateRef(ctx, next.ID, false))

	head, err := repo.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, next.ID, head.ID)
}
