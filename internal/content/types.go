package content

import (
	"github.com/go-git/go-git/v5/plumbing"
)

// ContentID is the lower-case hex digest of a git object. Only equality is
// meaningful.
type ContentID string

// EmptyBlobID is the id of a zero-length blob.
const EmptyBlobID ContentID = "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391"

func FromHash(h plumbing.Hash) ContentID {
	return ContentID(h.String())
}

func (id ContentID) Hash() plumbing.Hash {
	return plumbing.NewHash(string(id))
}

func (id ContentID) IsZero() bool {
	return id == "" || id.Hash().IsZero()
}

func (id ContentID) String() string {
	return string(id)
}

// Short returns the abbreviated form used in log lines and CLI output.
func (id ContentID) Short() string {
	if len(id) > 7 {
		return string(id[:7])
	}
	return string(id)
}
