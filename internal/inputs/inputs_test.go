package inputs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"treecommit/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reader(env map[string]string) *Reader {
	return New(func(k string) string { return env[k] })
}

func TestAction(t *testing.T) {
	r := reader(map[string]string{
		"INPUT_GITHUB-REPOSITORY": "octo/site",
		"INPUT_GITHUB-REFERENCE":  "heads/main",
		"INPUT_MESSAGE":           "  deploy  ",
		"INPUT_INCLUDE":           "*.txt\n\n  docs/**  \n",
		"INPUT_EXCLUDE":           "secret.txt",
		"INPUT_SOURCE":            "build",
		"INPUT_FLATTEN":           "true",
		"INPUT_FORCE":             "False",
		"INPUT_DRY-RUN":           "TRUE",
	})

	a, err := r.Action()
	require.NoError(t, err)
	assert.Empty(t, a.Repository)
	assert.Equal(t, "octo/site", a.Slug)
	assert.Equal(t, "heads/main", a.Reference)
	assert.Equal(t, "deploy", a.Options.Message)
	assert.Equal(t, []string{"*.txt", "docs/**"}, a.Options.Include)
	assert.Equal(t, []string{"secret.txt"}, a.Options.Exclude)
	assert.Equal(t, "build", a.Options.Source)
	assert.Empty(t, a.Options.Target)
	assert.True(t, a.Options.Flatten)
	assert.False(t, a.Options.Force)
	assert.False(t, a.Options.Always)
	assert.True(t, a.Options.DryRun)
}

func TestActionDefaults(t *testing.T) {
	a, err := reader(map[string]string{"INPUT_MESSAGE": "m"}).Action()
	require.NoError(t, err)
	assert.Empty(t, a.Repository)
	assert.Equal(t, "HEAD", a.Reference)
	assert.Nil(t, a.Options.Include)

	a, err = reader(map[string]string{
		"INPUT_MESSAGE":           "m",
		"INPUT_REPOSITORY":        "checkout",
		"INPUT_GITHUB-REPOSITORY": "octo/site",
		"INPUT_REF":               "gh-pages",
	}).Action()
	require.NoError(t, err)
	assert.Equal(t, "checkout", a.Repository)
	assert.Equal(t, "octo/site", a.Slug)
	assert.Equal(t, "gh-pages", a.Reference)
}

func TestActionSlugIsNotAPath(t *testing.T) {
	a, err := reader(map[string]string{
		"INPUT_MESSAGE":           "m",
		"INPUT_GITHUB-REPOSITORY": "octo/site",
		"INPUT_GITHUB-REFERENCE":  "heads/main",
	}).Action()
	require.NoError(t, err)
	assert.Empty(t, a.Repository, "the workspace checkout is the repository")
	assert.Equal(t, "octo/site", a.Slug)
	assert.Equal(t, "heads/main", a.Reference)
}

func TestActionMissingMessage(t *testing.T) {
	_, err := reader(map[string]string{"INPUT_MESSAGE": "   "}).Action()
	assert.True(t, errors.Is(err, errors.ErrMissingConfiguration))
	assert.Contains(t, err.Error(), InputMessage)
}

func TestActionInvalidBool(t *testing.T) {
	_, err := reader(map[string]string{"INPUT_MESSAGE": "m", "INPUT_FORCE": "1"}).Action()
	assert.Error(t, err)
}

func TestBool(t *testing.T) {
	r := reader(map[string]string{"INPUT_A": "yes"})
	_, err := r.Bool("a")
	assert.Error(t, err)

	v, err := r.Bool("unset")
	require.NoError(t, err)
	assert.False(t, v)
}

func TestSetOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output")
	r := reader(map[string]string{"GITHUB_OUTPUT": path})

	require.NoError(t, r.SetOutput("commit", "abc123"))
	require.NoError(t, r.SetOutput("skipped", "false"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "commit<<ghadelimiter_"))
	assert.Equal(t, "abc123", lines[1])
	assert.Equal(t, strings.TrimPrefix(lines[0], "commit<<"), lines[2])
	assert.Equal(t, "false", lines[4])
}

func TestWorkspace(t *testing.T) {
	ws, err := reader(map[string]string{"GITHUB_WORKSPACE": "/github/workspace"}).Workspace()
	require.NoError(t, err)
	assert.Equal(t, "/github/workspace", ws)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	ws, err = reader(nil).Workspace()
	require.NoError(t, err)
	assert.Equal(t, cwd, ws)
}
