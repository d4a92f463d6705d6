package coerce

import "github.com/zeebo/xxh3"

// IDSet remembers identifiers by their 64-bit xxh3 hash, so memory stays at
// roughly eight bytes per identifier. A hash collision reports a false
// duplicate; at a million identifiers the odds are about 1 in 3.7e7.
type IDSet struct {
	seen map[uint64]struct{}
}

// NewIDSet returns an empty set sized for hint identifiers.
func NewIDSet(hint int) *IDSet {
	return &IDSet{seen: make(map[uint64]struct{}, hint)}
}

// Add inserts id and reports whether it was new.
func (s *IDSet) Add(id string) bool {
	h := xxh3.HashString(id)
	if _, dup := s.seen[h]; dup {
		return false
	}
	s.seen[h] = struct{}{}
	return true
}

// Len returns the number of distinct identifiers added.
func (s *IDSet) Len() int { return len(s.seen) }
