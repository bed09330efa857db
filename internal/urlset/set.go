// Package urlset provides thread-safe sets of canonical URLs with
// at-most-once admission.
//
// Three variants share the Set interface. ListSet keeps an insertion-ordered
// slice behind one lock. CoarseSet is a resizable hash table behind one lock.
// StripedSet partitions the keyspace across a fixed number of locks so that
// operations on different stripes proceed in parallel; only a resize takes
// every stripe.
//
// Add is the only admission authority. Contains is a snapshot and must not be
// paired with Add as a check-then-act gate.
package urlset

import (
	"fmt"
	"iter"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Set is the contract implemented by every variant.
type Set interface {
	// Add reports whether this call inserted url.
	Add(url string) bool
	// Contains reports whether url has been admitted.
	Contains(url string) bool
	// Size returns the number of admitted URLs.
	Size() int
	// Clear removes every URL.
	Clear()
	// All yields a snapshot of the admitted URLs.
	All() iter.Seq[string]
}

// Kind selects a Set implementation.
type Kind int

// Set variants, numbered as on the command line.
const (
	KindList    Kind = 0
	KindCoarse  Kind = 1
	KindStriped Kind = 2
)

// String returns the metric label for the variant.
func (k Kind) String() string {
	switch k {
	case KindList:
		return "list"
	case KindCoarse:
		return "coarse"
	case KindStriped:
		return "striped"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ParseKind converts the numeric command-line form into a Kind.
func ParseKind(raw string) (Kind, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse set variant %q: %w", raw, err)
	}
	k := Kind(n)
	if !k.Valid() {
		return 0, fmt.Errorf("set variant %d out of range [0,2]", n)
	}
	return k, nil
}

// Valid reports whether k names a known variant.
func (k Kind) Valid() bool {
	return k >= KindList && k <= KindStriped
}

// Defaults for the hash table variants.
const (
	DefaultCapacity   = 16
	DefaultStripes    = 16
	DefaultLoadFactor = 4
)

type options struct {
	capacity   int
	stripes    int
	loadFactor int
	onResize   func(from, to int)
}

// Option customizes a hash table variant. ListSet ignores options except
// WithResizeHook, which it never fires.
type Option func(*options)

// WithCapacity sets the initial bucket count.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// WithStripes sets the number of stripe locks for StripedSet.
func WithStripes(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.stripes = n
		}
	}
}

// WithLoadFactor sets the size/capacity ratio above which the table doubles.
func WithLoadFactor(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.loadFactor = n
		}
	}
}

// WithResizeHook registers fn to run after every completed resize, outside
// any lock.
func WithResizeHook(fn func(from, to int)) Option {
	return func(o *options) {
		o.onResize = fn
	}
}

func buildOptions(opts []Option) options {
	o := options{
		capacity:   DefaultCapacity,
		stripes:    DefaultStripes,
		loadFactor: DefaultLoadFactor,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New constructs the variant named by kind.
func New(kind Kind, opts ...Option) (Set, error) {
	switch kind {
	case KindList:
		return NewListSet(), nil
	case KindCoarse:
		return NewCoarseSet(opts...), nil
	case KindStriped:
		return NewStripedSet(opts...), nil
	default:
		return nil, fmt.Errorf("unknown set variant %d", int(kind))
	}
}

func hash(url string) uint64 {
	return xxhash.Sum64String(url)
}

// buckets is a hash table without locking; callers provide exclusion.
type buckets [][]string

func newBuckets(capacity int) buckets {
	return make(buckets, capacity)
}

func (b buckets) index(h uint64) int {
	return int(h % uint64(len(b)))
}

// insert appends url to its bucket unless present.
func (b buckets) insert(h uint64, url string) bool {
	i := b.index(h)
	for _, existing := range b[i] {
		if existing == url {
			return false
		}
	}
	b[i] = append(b[i], url)
	return true
}

func (b buckets) contains(h uint64, url string) bool {
	for _, existing := range b[b.index(h)] {
		if existing == url {
			return true
		}
	}
	return false
}

// grow returns a table of twice the capacity holding every element of b.
func (b buckets) grow() buckets {
	next := newBuckets(2 * len(b))
	for _, bucket := range b {
		for _, url := range bucket {
			i := next.index(hash(url))
			next[i] = append(next[i], url)
		}
	}
	return next
}

func (b buckets) snapshot(size int) []string {
	out := make([]string, 0, size)
	for _, bucket := range b {
		out = append(out, bucket...)
	}
	return out
}

func seq(urls []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, u := range urls {
			if !yield(u) {
				return
			}
		}
	}
}
