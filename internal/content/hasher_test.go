package content

import (
	"os"
	"testing"

	"treecommit/internal/errors"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashBytes(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want ContentID
	}{
		{"empty", []byte{}, EmptyBlobID},
		{"nil", nil, EmptyBlobID},
		// printf 'hello\n' | git hash-object --stdin
		{"hello", []byte("hello\n"), "ce013625030ba8dba906f756967f9e9ca394464a"},
		// printf 'what is up, doc?' | git hash-object --stdin
		{"doc", []byte("what is up, doc?"), "bd9dbf5aae1a3862dd1526723246b20206e5fc37"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HashBytes(tt.data))
			assert.Equal(t, HashBytes(tt.data), HashBytes(tt.data))
		})
	}

	assert.NotEqual(t, HashBytes([]byte("a")), HashBytes([]byte("b")))
}

func TestHashFile(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "a.txt", []byte("hello\n"), 0o644))
	require.NoError(t, util.WriteFile(fs, "empty", nil, 0o644))

	t.Run("Matches bytes", func(t *testing.T) {
		id, err := HashFile(fs, "a.txt")
		require.NoError(t, err)
		assert.Equal(t, HashBytes([]byte("hello\n")), id)
	})

	t.Run("Empty file", func(t *testing.T) {
		id, err := HashFile(fs, "empty")
		require.NoError(t, err)
		assert.Equal(t, EmptyBlobID, id)
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := HashFile(fs, "gone.txt")
		assert.True(t, errors.Is(err, errors.ErrIO))
	})

	t.Run("Handle without Stat", func(t *testing.T) {
		id, err := HashFile(&resizingFS{Filesystem: fs, hideStat: true}, "a.txt")
		require.NoError(t, err)
		assert.Equal(t, HashBytes([]byte("hello\n")), id)
	})
}

func TestHashFileOnDisk(t *testing.T) {
	fs := osfs.New(t.TempDir(), osfs.WithBoundOS())
	require.NoError(t, util.WriteFile(fs, "dir/a.txt", []byte("hello\n"), 0o644))

	id, err := HashFile(fs, "dir/a.txt")
	require.NoError(t, err)
	assert.Equal(t, ContentID("ce013625030ba8dba906f756967f9e9ca394464a"), id)
}

func TestHashFileSizeChanged(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "a.txt", []byte("hello\n"), 0o644))

	tests := []struct {
		name  string
		delta int64
	}{
		{"Shrank", 4},
		{"Grew", -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := HashFile(&resizingFS{Filesystem: fs, delta: tt.delta}, "a.txt")
			assert.True(t, errors.Is(err, errors.ErrIO))
		})
	}
}

// resizingFS hands out files whose Stat size is off by delta from what a
// read returns, as if the file changed between the two calls.
type resizingFS struct {
	billy.Filesystem
	delta    int64
	hideStat bool
}

func (r *resizingFS) Open(path string) (billy.File, error) {
	f, err := r.Filesystem.Open(path)
	if err != nil {
		return nil, err
	}
	if r.hideStat {
		return struct{ billy.File }{f}, nil
	}
	return &resizedFile{File: f, delta: r.delta}, nil
}

type resizedFile struct {
	billy.File
	delta int64
}

func (f *resizedFile) Stat() (os.FileInfo, error) {
	info, err := f.File.(interface{ Stat() (os.FileInfo, error) }).Stat()
	if err != nil {
		return nil, err
	}
	return resizedInfo{FileInfo: info, size: info.Size() + f.delta}, nil
}

type resizedInfo struct {
	os.FileInfo
	size int64
}

func (i resizedInfo) Size() int64 { return i.size }

func TestClassifyMode(t *testing.T) {
	tests := []struct {
		name    string
		mode    os.FileMode
		want    filemode.FileMode
		wantErr bool
	}{
		{"owner exec", 0o744, filemode.Executable, false},
		{"other exec only", 0o001, filemode.Executable, false},
		{"regular", 0o644, filemode.Regular, false},
		{"read only", 0o400, filemode.Regular, false},
		{"group read", 0o040, filemode.Regular, false},
		{"write only", 0o200, filemode.Empty, true},
		{"none", 0, filemode.Empty, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ClassifyMode("f", tt.mode)
			if tt.wantErr {
				assert.True(t, errors.Is(err, errors.ErrUnsupportedMode))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadBlob(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "bin/run.sh", []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, util.WriteFile(fs, "doc.md", []byte("# doc\n"), 0o644))
	require.NoError(t, util.WriteFile(fs, "locked", []byte("x"), 0o200))

	blob, err := ReadBlob(fs, "bin/run.sh")
	require.NoError(t, err)
	assert.Equal(t, filemode.Executable, blob.Mode)
	assert.Equal(t, HashBytes([]byte("#!/bin/sh\n")), blob.ID)

	blob, err = ReadBlob(fs, "doc.md")
	require.NoError(t, err)
	assert.Equal(t, filemode.Regular, blob.Mode)
	assert.Equal(t, []byte("# doc\n"), blob.Data)

	_, err = ReadBlob(fs, "locked")
	assert.True(t, errors.Is(err, errors.ErrUnsupportedMode))

	_, err = ReadBlob(fs, "missing")
	assert.True(t, errors.Is(err, errors.ErrIO))
}

func TestContentID(t *testing.T) {
	id := HashBytes([]byte("hello\n"))
	assert.Equal(t, id, FromHash(id.Hash()))
	assert.Equal(t, "ce01362", id.Short())
	assert.False(t, id.IsZero())
	assert.True(t, ContentID("").IsZero())
}
