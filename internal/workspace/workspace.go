// internal/workspace/workspace.go
package workspace

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	"treecommit/internal/content"
	"treecommit/internal/errors"
	"treecommit/internal/logging"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"go.uber.org/zap"
)

const maxSymlinkHops = 40

var ErrScopeReleased = fmt.Errorf("workspace scope already released")

// Workspace is the directory tree a commit is built from. All paths handed
// to it are relative to its root; nothing outside the root is reachable.
type Workspace struct {
	fs      billy.Filesystem
	root    string
	virtual bool
	logger  *logging.Logger
}

// Open binds a workspace to an on-disk directory.
func Open(root string, logger *logging.Logger) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, errors.IO(root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.IO(root, err)
	}
	if !info.IsDir() {
		return nil, errors.IO(root, fmt.Errorf("not a directory"))
	}

	return &Workspace{
		fs:     osfs.New(abs, osfs.WithBoundOS()),
		root:   abs,
		logger: logger,
	}, nil
}

// New wraps an existing filesystem, typically memfs in tests. Absolute
// symlink targets are read relative to the filesystem root.
func New(fs billy.Filesystem, logger *logging.Logger) *Workspace {
	return &Workspace{
		fs:      fs,
		root:    "/",
		virtual: true,
		logger:  logger,
	}
}

func (w *Workspace) Root() string {
	return w.root
}

// FindRoot searches upwards from startDir for the directory holding ".git".
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("no repository found above %s", startDir)
}

// relative maps p to a clean slash path below the root, "" for the root
// itself.
func (w *Workspace) relative(p string) (string, error) {
	original := p
	if filepath.IsAbs(p) {
		if w.virtual {
			p = strings.TrimPrefix(filepath.ToSlash(p), "/")
		} else {
			rel, err := filepath.Rel(w.root, p)
			if err != nil {
				return "", errors.WorkspaceBoundary(original, w.root)
			}
			p = rel
		}
	}

	p = path.Clean(filepath.ToSlash(p))
	if p == ".." || strings.HasPrefix(p, "../") {
		return "", errors.WorkspaceBoundary(original, w.root)
	}
	if p == "." {
		return "", nil
	}
	return p, nil
}

// resolve follows symlinks along source and fails when the real location
// leaves the workspace.
func (w *Workspace) resolve(source string) (string, error) {
	rel, err := w.relative(source)
	if err != nil {
		return "", err
	}

	var resolved []string
	pending := split(rel)
	hops := 0

	for len(pending) > 0 {
		part := pending[0]
		pending = pending[1:]

		switch part {
		case "", ".":
			continue
		case "..":
			if len(resolved) == 0 {
				return "", errors.WorkspaceBoundary(source, w.root)
			}
			resolved = resolved[:len(resolved)-1]
			continue
		}

		candidate := path.Join(append(resolved, part)...)
		info, err := w.fs.Lstat(candidate)
		if err != nil {
			return "", errors.IO(source, err)
		}
		if info.Mode()&os.ModeSymlink == 0 {
			resolved = append(resolved, part)
			continue
		}

		if hops++; hops > maxSymlinkHops {
			return "", errors.IO(source, fmt.Errorf("too many levels of symbolic links"))
		}
		target, err := w.fs.Readlink(candidate)
		if err != nil {
			return "", errors.IO(source, err)
		}
		if filepath.IsAbs(target) || strings.HasPrefix(target, "/") {
			t, err := w.relative(target)
			if err != nil {
				return "", errors.WorkspaceBoundary(source, w.root)
			}
			resolved = nil
			pending = append(split(t), pending...)
			continue
		}
		pending = append(split(filepath.ToSlash(target)), pending...)
	}

	return path.Join(resolved...), nil
}

func split(p string) []string {
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// Scope is a view of the workspace rooted at the source directory. It
// stands in for changing the process working directory: nothing global is
// touched, and the scope stops serving requests once released.
type Scope struct {
	fs       billy.Filesystem
	source   string
	logger   *logging.Logger
	released atomic.Bool
}

// Enter opens a scope at source, or at the workspace root when source is
// empty. The returned release func is idempotent and must be called on every
// path out of the caller.
func (w *Workspace) Enter(source string) (*Scope, func(), error) {
	rel, err := w.resolve(source)
	if err != nil {
		w.logger.Error("failed to resolve source path", zap.String("source", source), zap.Error(err))
		return nil, nil, err
	}

	fs := w.fs
	if rel != "" {
		info, err := w.fs.Lstat(rel)
		if err != nil {
			return nil, nil, errors.IO(source, err)
		}
		if !info.IsDir() {
			return nil, nil, errors.IO(source, fmt.Errorf("source is not a directory"))
		}
		if fs, err = w.fs.Chroot(rel); err != nil {
			return nil, nil, errors.IO(source, err)
		}
	}

	scope := &Scope{fs: fs, source: rel, logger: w.logger}
	w.logger.Debug("entered workspace scope", zap.String("source", rel))

	release := func() {
		if scope.released.CompareAndSwap(false, true) {
			w.logger.Debug("left workspace scope", zap.String("source", rel))
		}
	}
	return scope, release, nil
}

// Source is the scope directory relative to the workspace root.
func (s *Scope) Source() string {
	return s.source
}

func (s *Scope) Released() bool {
	return s.released.Load()
}

// WorkspacePath turns a scope-relative path into a workspace-relative one.
func (s *Scope) WorkspacePath(p string) string {
	if s.source == "" {
		return p
	}
	return path.Join(s.source, p)
}

func (s *Scope) check() error {
	if s.released.Load() {
		return ErrScopeReleased
	}
	return nil
}

func (s *Scope) Lstat(p string) (os.FileInfo, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	info, err := s.fs.Lstat(p)
	if err != nil {
		return nil, errors.IO(p, err)
	}
	return info, nil
}

func (s *Scope) Hash(p string) (content.ContentID, error) {
	if err := s.check(); err != nil {
		return "", err
	}
	return content.HashFile(s.fs, p)
}

func (s *Scope) ReadBlob(p string) (*content.Blob, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return content.ReadBlob(s.fs, p)
}

// Entry is a path found by Walk with its Lstat mode.
type Entry struct {
	Path string
	Mode os.FileMode
}

// Walk lists every path under the scope, directories and symlinks included,
// without following links. Repository metadata is skipped. Entries that
// cannot be read are logged and left out.
func (s *Scope) Walk() ([]Entry, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	var entries []Entry
	err := util.Walk(s.fs, "", func(p string, info os.FileInfo, err error) error {
		if p == "" {
			return err
		}
		if err != nil {
			s.logger.Warn("skipping unreadable path", zap.String("path", p), zap.Error(err))
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if shouldIgnore(info) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		entries = append(entries, Entry{Path: filepath.ToSlash(p), Mode: info.Mode()})
		return nil
	})
	if err != nil {
		return nil, errors.IO(s.source, err)
	}
	return entries, nil
}

// shouldIgnore reports repository metadata, which never belongs in a tree.
func shouldIgnore(info os.FileInfo) bool {
	return info.Name() == ".git"
}
