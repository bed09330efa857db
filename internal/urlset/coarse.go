package urlset

import (
	"iter"
	"sync"
)

// CoarseSet is a chained hash table guarded by a single mutex.
type CoarseSet struct {
	mu         sync.Mutex
	table      buckets
	size       int
	loadFactor int
	onResize   func(from, to int)
}

// NewCoarseSet returns an empty CoarseSet.
func NewCoarseSet(opts ...Option) *CoarseSet {
	o := buildOptions(opts)
	return &CoarseSet{
		table:      newBuckets(o.capacity),
		loadFactor: o.loadFactor,
		onResize:   o.onResize,
	}
}

// Add inserts url unless present and grows the table when the load factor
// is exceeded.
func (s *CoarseSet) Add(url string) bool {
	h := hash(url)

	s.mu.Lock()
	added := s.table.insert(h, url)
	if added {
		s.size++
	}
	capacity := len(s.table)
	grow := added && s.size > s.loadFactor*capacity
	s.mu.Unlock()

	if grow {
		s.resize(capacity)
	}
	return added
}

// resize doubles the table if it still has oldCapacity buckets.
func (s *CoarseSet) resize(oldCapacity int) {
	s.mu.Lock()
	if len(s.table) != oldCapacity {
		s.mu.Unlock()
		return
	}
	s.table = s.table.grow()
	newCapacity := len(s.table)
	s.mu.Unlock()

	if s.onResize != nil {
		s.onResize(oldCapacity, newCapacity)
	}
}

// Contains reports whether url is present.
func (s *CoarseSet) Contains(url string) bool {
	h := hash(url)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.contains(h, url)
}

// Size returns the number of URLs.
func (s *CoarseSet) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Capacity returns the current bucket count.
func (s *CoarseSet) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.table)
}

// Clear removes every URL. Capacity is kept.
func (s *CoarseSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = newBuckets(len(s.table))
	s.size = 0
}

// All yields a snapshot in bucket order.
func (s *CoarseSet) All() iter.Seq[string] {
	s.mu.Lock()
	snapshot := s.table.snapshot(s.size)
	s.mu.Unlock()
	return seq(snapshot)
}
