package content

import (
	"fmt"
	"io"
	"os"

	"treecommit/internal/errors"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
)

// HashBytes computes the blob id of data: "blob <len>\x00" followed by the
// bytes, through SHA-1.
func HashBytes(data []byte) ContentID {
	return FromHash(plumbing.ComputeHash(plumbing.BlobObject, data))
}

// HashFile computes the blob id of the file at path. Length and bytes come
// from the same open handle; a file that grows or shrinks while being read
// fails with an IO error instead of producing a hash for neither state.
func HashFile(fs billy.Filesystem, path string) (ContentID, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", errors.IO(path, err)
	}
	defer f.Close()

	info, err := stat(fs, f, path)
	if err != nil {
		return "", errors.IO(path, err)
	}
	size := info.Size()

	h := plumbing.NewHasher(plumbing.BlobObject, size)
	if _, err := io.CopyN(h, f, size); err != nil {
		return "", errors.IO(path, fmt.Errorf("file changed while hashing: %w", err))
	}

	var extra [1]byte
	if n, _ := f.Read(extra[:]); n > 0 {
		return "", errors.IO(path, fmt.Errorf("file grew while hashing"))
	}

	return FromHash(h.Sum()), nil
}

// stat prefers the open handle; osfs and memfs files both expose Stat even
// though billy.File does not declare it.
func stat(fs billy.Filesystem, f billy.File, path string) (os.FileInfo, error) {
	if sf, ok := f.(interface{ Stat() (os.FileInfo, error) }); ok {
		return sf.Stat()
	}
	return fs.Stat(path)
}

// Blob is a file read for upload together with its id and classified mode.
type Blob struct {
	Path string
	Data []byte
	ID   ContentID
	Mode filemode.FileMode
}

// ReadBlob reads path and classifies its permission bits. The mode comes
// from Lstat on the filesystem since open handles do not always carry it.
func ReadBlob(fs billy.Filesystem, path string) (*Blob, error) {
	info, err := fs.Lstat(path)
	if err != nil {
		return nil, errors.IO(path, err)
	}

	mode, err := ClassifyMode(path, info.Mode())
	if err != nil {
		return nil, err
	}

	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.IO(path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.IO(path, err)
	}

	return &Blob{
		Path: path,
		Data: data,
		ID:   HashBytes(data),
		Mode: mode,
	}, nil
}

// ClassifyMode maps POSIX permission bits to a tree entry mode. Any execute
// bit makes the file executable, otherwise any read bit makes it regular.
func ClassifyMode(path string, mode os.FileMode) (filemode.FileMode, error) {
	perm := mode.Perm()
	switch {
	case perm&0o111 != 0:
		return filemode.Executable, nil
	case perm&0o444 != 0:
		return filemode.Regular, nil
	default:
		return filemode.Empty, errors.UnsupportedMode(path, mode)
	}
}
