package workspace

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"treecommit/internal/logging"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// PathSet is a set of scope-relative paths.
type PathSet map[string]struct{}

func (s PathSet) Add(p string) {
	s[p] = struct{}{}
}

func (s PathSet) Has(p string) bool {
	_, ok := s[p]
	return ok
}

func (s PathSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// CandidateSet holds the paths selected for a commit, keyed by their
// scope-relative path, together with the Lstat mode seen while walking.
type CandidateSet struct {
	entries map[string]os.FileMode
}

func NewCandidateSet() *CandidateSet {
	return &CandidateSet{entries: make(map[string]os.FileMode)}
}

func (c *CandidateSet) Add(p string, mode os.FileMode) {
	c.entries[p] = mode
}

func (c *CandidateSet) Remove(p string) {
	delete(c.entries, p)
}

func (c *CandidateSet) Has(p string) bool {
	_, ok := c.entries[p]
	return ok
}

func (c *CandidateSet) Len() int {
	return len(c.entries)
}

// Paths returns every candidate in lexical order.
func (c *CandidateSet) Paths() []string {
	out := make([]string, 0, len(c.entries))
	for p := range c.entries {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Files splits the candidates into regular files and the directories and
// symlinks that cannot become blobs. Both are in lexical order.
func (c *CandidateSet) Files() (files []Entry, skipped []Entry) {
	for _, p := range c.Paths() {
		e := Entry{Path: p, Mode: c.entries[p]}
		if e.Mode.IsDir() || e.Mode&os.ModeSymlink != 0 || !e.Mode.IsRegular() {
			skipped = append(skipped, e)
			continue
		}
		files = append(files, e)
	}
	return files, skipped
}

// CompilePatterns trims and validates glob patterns. Blank, absolute and
// malformed patterns are dropped with a warning.
func CompilePatterns(raw []string, logger *logging.Logger) []string {
	var patterns []string
	for _, r := range raw {
		p := strings.TrimSpace(r)
		if p == "" {
			continue
		}
		p = strings.TrimPrefix(filepath.ToSlash(p), "./")

		switch {
		case strings.HasPrefix(p, "/"):
			logger.Warn("dropping absolute pattern", zap.String("pattern", r))
			continue
		case !doublestar.ValidatePattern(p):
			logger.Warn("dropping invalid pattern", zap.String("pattern", r))
			continue
		}
		patterns = append(patterns, p)
	}
	return patterns
}

// Select expands include patterns over the scope, skipping paths already
// known unchanged, then removes everything an exclude pattern matches.
// Without include patterns nothing is selected.
func Select(scope *Scope, include, exclude []string, unchanged PathSet) (*CandidateSet, error) {
	set := NewCandidateSet()
	if len(include) == 0 {
		return set, nil
	}

	entries, err := scope.Walk()
	if err != nil {
		return nil, err
	}

	for _, pattern := range include {
		for _, e := range entries {
			if !match(scope.logger, pattern, e.Path) || unchanged.Has(e.Path) {
				continue
			}
			set.Add(e.Path, e.Mode)
		}
	}

	for _, pattern := range exclude {
		for _, e := range entries {
			if match(scope.logger, pattern, e.Path) {
				set.Remove(e.Path)
			}
		}
	}

	scope.logger.Debug("selected candidates",
		zap.Int("walked", len(entries)),
		zap.Int("candidates", set.Len()),
		zap.Int("unchanged", len(unchanged)))
	return set, nil
}

func match(logger *logging.Logger, pattern, p string) bool {
	ok, err := doublestar.Match(pattern, p)
	if err != nil {
		logger.Debug("pattern failed to match", zap.String("pattern", pattern), zap.String("path", p), zap.Error(err))
		return false
	}
	return ok
}
