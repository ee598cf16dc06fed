package resolve

import "slices"

// FeatureSet is an ordered set of feature names. Insertion order is preserved
// and duplicates are rejected, which is exactly what feature expansion needs:
// the set doubles as the visited-set that guarantees termination on cyclic
// feature definitions.
//
// The zero value is not usable - use NewFeatureSet.
type FeatureSet struct {
	names []string
	index map[string]struct{}
}

// NewFeatureSet creates an empty feature set.
func NewFeatureSet() *FeatureSet {
	return &FeatureSet{index: make(map[string]struct{})}
}

// Add inserts name and reports whether it was newly added.
func (s *FeatureSet) Add(name string) bool {
	if _, ok := s.index[name]; ok {
		return false
	}
	s.index[name] = struct{}{}
	s.names = append(s.names, name)
	return true
}

// Contains reports whether name is in the set.
func (s *FeatureSet) Contains(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Names returns the members in first-insertion order.
// The returned slice is a copy and safe to retain.
func (s *FeatureSet) Names() []string {
	return slices.Clone(s.names)
}

// Len returns the number of members.
func (s *FeatureSet) Len() int { return len(s.names) }
