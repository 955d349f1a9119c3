// Package pathmap rewrites selected workspace paths into their place in the
// committed tree and rejects rewrites that collide.
package pathmap

import (
	"path"
	"strings"

	"treecommit/internal/errors"
)

// Transformer applies, in order: strip Source, drop the directories above
// the file name when Flatten is set, prefix Target.
type Transformer struct {
	Source  string
	Target  string
	Flatten bool
}

func New(source, target string, flatten bool) Transformer {
	return Transformer{
		Source:  clean(source),
		Target:  clean(target),
		Flatten: flatten,
	}
}

func clean(p string) string {
	p = path.Clean(strings.Trim(p, "/"))
	if p == "." {
		return ""
	}
	return p
}

// Transform maps a workspace-relative path to its destination path.
func (t Transformer) Transform(p string) (string, error) {
	dest := path.Clean(p)

	if t.Source != "" {
		rel, ok := strings.CutPrefix(dest, t.Source+"/")
		if !ok {
			return "", errors.PathTransform(p, t.Source)
		}
		dest = rel
	}

	// A file with no parent directory is left alone.
	if t.Flatten {
		dest = path.Base(dest)
	}

	if t.Target != "" {
		dest = path.Join(t.Target, dest)
	}
	return dest, nil
}

// Detector remembers which source produced each destination.
type Detector struct {
	seen map[string]string
}

func NewDetector() *Detector {
	return &Detector{seen: make(map[string]string)}
}

// Add records that source maps to dest and fails with PathConflict when a
// different source already claimed dest.
func (d *Detector) Add(dest, source string) error {
	if other, ok := d.seen[dest]; ok && other != source {
		return errors.PathConflict(dest, source, other)
	}
	d.seen[dest] = source
	return nil
}

func (d *Detector) Len() int {
	return len(d.seen)
}

// Mapping is one source path and its destination.
type Mapping struct {
	Source      string
	Destination string
}

// Plan transforms every path and checks the whole set for collisions
// before returning. Paths are processed in the order given, so the same
// input always reports the same conflict.
func Plan(t Transformer, paths []string) ([]Mapping, error) {
	d := NewDetector()
	mappings := make([]Mapping, 0, len(paths))

	for _, p := range paths {
		dest, err := t.Transform(p)
		if err != nil {
			return nil, err
		}
		if err := d.Add(dest, p); err != nil {
			return nil, err
		}
		mappings = append(mappings, Mapping{Source: p, Destination: dest})
	}
	return mappings, nil
}
