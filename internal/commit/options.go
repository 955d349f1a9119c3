package commit

import (
	"strings"

	"treecommit/internal/errors"
)

// Options describe one commit. Message is required; every other field is
// optional.
type Options struct {
	Message string
	// Source is the directory, relative to the workspace, that patterns are
	// matched in and that is stripped from destination paths.
	Source string
	// Target is prefixed to every destination path.
	Target  string
	Include []string
	Exclude []string
	// Flatten keeps only the file name of each path.
	Flatten bool
	// Force allows a non fast-forward reference update.
	Force bool
	// Always creates a commit even when no file changed.
	Always bool
	// DryRun stops before the first remote write.
	DryRun bool
}

func (o *Options) Validate() error {
	if strings.TrimSpace(o.Message) == "" {
		return errors.MissingConfiguration("message")
	}
	return nil
}
