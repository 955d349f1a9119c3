package commit

type Decision int

const (
	// Skip returns the base commit and creates nothing.
	Skip Decision = iota
	Proceed
)

func (d Decision) String() string {
	if d == Skip {
		return "skip"
	}
	return "proceed"
}

// Gate decides whether a commit is created for the final number of changed
// entries.
func Gate(always bool, entries int) Decision {
	if !always && entries == 0 {
		return Skip
	}
	return Proceed
}
