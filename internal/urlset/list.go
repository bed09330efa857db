package urlset

import (
	"iter"
	"slices"
	"sync"
)

// ListSet is an insertion-ordered slice guarded by one mutex. Lookups are
// linear; it exists as the baseline the hash tables are measured against.
type ListSet struct {
	mu   sync.Mutex
	urls []string
}

// NewListSet returns an empty ListSet.
func NewListSet() *ListSet {
	return &ListSet{}
}

// Add inserts url unless present.
func (s *ListSet) Add(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.urls, url) {
		return false
	}
	s.urls = append(s.urls, url)
	return true
}

// Contains reports whether url is present.
func (s *ListSet) Contains(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.urls, url)
}

// Size returns the number of URLs.
func (s *ListSet) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.urls)
}

// Clear removes every URL.
func (s *ListSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urls = nil
}

// All yields the URLs in insertion order.
func (s *ListSet) All() iter.Seq[string] {
	s.mu.Lock()
	snapshot := slices.Clone(s.urls)
	s.mu.Unlock()
	return seq(snapshot)
}
