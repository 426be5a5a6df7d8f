package rollup

import (
	"sort"
	"strings"
)

// ExpandedSet is the set of folders whose contents are shown one level
// deeper. Folders are kept without trailing slashes, longest first.
type ExpandedSet struct {
	folders []string
}

// NewExpandedSet creates a set holding folders.
func NewExpandedSet(folders ...string) *ExpandedSet {
	s := &ExpandedSet{}
	s.Add(folders...)
	return s
}

func normalize(folder string) string {
	return strings.TrimSuffix(strings.TrimSpace(folder), "/")
}

// Add inserts folders, ignoring duplicates and empty names.
func (s *ExpandedSet) Add(folders ...string) {
	for _, f := range folders {
		f = normalize(f)
		if f == "" || s.Contains(f) {
			continue
		}
		s.folders = append(s.folders, f)
	}
	sort.SliceStable(s.folders, func(i, j int) bool {
		if len(s.folders[i]) != len(s.folders[j]) {
			return len(s.folders[i]) > len(s.folders[j])
		}
		return s.folders[i] < s.folders[j]
	})
}

// Remove drops each folder along with every expanded folder below it, so
// collapsing a folder also collapses its expanded descendants.
func (s *ExpandedSet) Remove(folders ...string) {
	kept := s.folders[:0]
	for _, f := range s.folders {
		drop := false
		for _, removed := range folders {
			removed = normalize(removed)
			if removed != "" && under(f, removed) {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, f)
		}
	}
	s.folders = kept
}

// Contains reports whether folder is expanded.
func (s *ExpandedSet) Contains(folder string) bool {
	folder = normalize(folder)
	for _, f := range s.folders {
		if f == folder {
			return true
		}
	}
	return false
}

// Folders returns a copy of the expanded folders, longest first.
func (s *ExpandedSet) Folders() []string {
	return append([]string{}, s.folders...)
}

// Len returns the number of expanded folders.
func (s *ExpandedSet) Len() int {
	return len(s.folders)
}
