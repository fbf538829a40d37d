package patent

import (
	"fmt"
	"slices"
)

// SortMode selects the display ordering of the result set.
type SortMode string

const (
	SortReplicability SortMode = "replicability"
	SortInvalidation  SortMode = "invalidation"
)

// ParseSortMode validates a sort mode supplied by a client.
func ParseSortMode(s string) (SortMode, error) {
	switch m := SortMode(s); m {
	case SortReplicability, SortInvalidation:
		return m, nil
	default:
		return "", fmt.Errorf("unknown sort mode %q", s)
	}
}

// Project returns a newly allocated, stably sorted copy of records. It never
// mutates its input. Unknown modes sort by replicability.
func Project(records []Record, mode SortMode) []Record {
	out := CloneAll(records)
	if out == nil {
		out = []Record{}
	}
	key := func(r Record) int { return r.UKReplicabilityScore }
	if mode == SortInvalidation {
		key = func(r Record) int { return r.RiskScore }
	}
	slices.SortStableFunc(out, func(a, b Record) int {
		return key(b) - key(a)
	})
	return out
}
