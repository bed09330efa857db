package urlset

import (
	"iter"
	"sync"
	"sync/atomic"
)

// StripedSet is a chained hash table whose keyspace is partitioned across a
// fixed array of mutexes. A URL's stripe is hash mod len(locks) and never
// changes; its bucket is hash mod capacity and changes on every resize.
//
// Capacity is kept a multiple of the stripe count, so every bucket holds
// URLs of exactly one stripe and is only ever mutated under that stripe's
// lock. Doubling preserves the property.
type StripedSet struct {
	locks      []sync.Mutex
	table      buckets // read under any stripe, replaced under all stripes
	size       atomic.Int64
	loadFactor int
	onResize   func(from, to int)
}

// NewStripedSet returns an empty StripedSet. The initial capacity is rounded
// up to a multiple of the stripe count.
func NewStripedSet(opts ...Option) *StripedSet {
	o := buildOptions(opts)
	capacity := o.capacity
	if rem := capacity % o.stripes; rem != 0 {
		capacity += o.stripes - rem
	}
	return &StripedSet{
		locks:      make([]sync.Mutex, o.stripes),
		table:      newBuckets(capacity),
		loadFactor: o.loadFactor,
		onResize:   o.onResize,
	}
}

func (s *StripedSet) stripe(h uint64) *sync.Mutex {
	return &s.locks[h%uint64(len(s.locks))]
}

// Add inserts url unless present. Only the URL's stripe is held during the
// insert; the growth check that follows is best effort because resize
// re-verifies capacity under global exclusion.
func (s *StripedSet) Add(url string) bool {
	h := hash(url)
	lock := s.stripe(h)

	lock.Lock()
	added := s.table.insert(h, url)
	var n int64
	if added {
		n = s.size.Add(1)
	}
	capacity := len(s.table)
	lock.Unlock()

	if !added {
		return false
	}
	if n > int64(s.loadFactor*capacity) {
		s.resize(capacity)
	}
	return true
}

// Contains reports whether url is present.
func (s *StripedSet) Contains(url string) bool {
	h := hash(url)
	lock := s.stripe(h)
	lock.Lock()
	defer lock.Unlock()
	return s.table.contains(h, url)
}

func (s *StripedSet) lockAll() {
	for i := range s.locks {
		s.locks[i].Lock()
	}
}

func (s *StripedSet) unlockAll() {
	for i := len(s.locks) - 1; i >= 0; i-- {
		s.locks[i].Unlock()
	}
}

// resize doubles the table if no other caller has already done so.
func (s *StripedSet) resize(oldCapacity int) {
	s.lockAll()
	if len(s.table) != oldCapacity {
		s.unlockAll()
		return
	}
	s.table = s.table.grow()
	newCapacity := len(s.table)
	s.unlockAll()

	if s.onResize != nil {
		s.onResize(oldCapacity, newCapacity)
	}
}

// Size returns the exact number of URLs, pausing all stripes to read it.
func (s *StripedSet) Size() int {
	s.lockAll()
	defer s.unlockAll()
	return int(s.size.Load())
}

// Capacity returns the current bucket count.
func (s *StripedSet) Capacity() int {
	s.lockAll()
	defer s.unlockAll()
	return len(s.table)
}

// Stripes returns the number of stripe locks.
func (s *StripedSet) Stripes() int {
	return len(s.locks)
}

// Clear removes every URL. Capacity is kept.
func (s *StripedSet) Clear() {
	s.lockAll()
	defer s.unlockAll()
	s.table = newBuckets(len(s.table))
	s.size.Store(0)
}

// All yields a snapshot taken under all stripes.
func (s *StripedSet) All() iter.Seq[string] {
	s.lockAll()
	snapshot := s.table.snapshot(int(s.size.Load()))
	s.unlockAll()
	return seq(snapshot)
}
