package classify

import "time"

// Tolerance is the largest total difference still treated as in sync (exclusive).
const Tolerance = 10 * time.Second

type Decision int

const (
	// InSync needs no remote change.
	InSync Decision = iota
	// Replace deletes the remote worklogs and writes one with the local total.
	Replace
	// DeleteOnly removes remote worklogs that have no local counterpart.
	DeleteOnly
)

func (d Decision) String() string {
	switch d {
	case InSync:
		return "in-sync"
	case Replace:
		return "replace"
	case DeleteOnly:
		return "delete-only"
	default:
		return "unknown"
	}
}

// Decide compares the local and remote totals of one day/issue pair.
func Decide(local, remote time.Duration, hasLocal bool) Decision {
	diff := local - remote
	if diff < 0 {
		diff = -diff
	}
	if diff < Tolerance {
		return InSync
	}
	if !hasLocal {
		return DeleteOnly
	}
	return Replace
}
