// Package hits implements the growable, dense result set a search or
// filter pass accumulates: one Hit per address whose memory satisfied
// the pass's expression.
package hits

import "memprobe/internal/types"

const initialCapacity = 256

// Hit is one matched address, its value type, and the value read there
// at match time (kept so a later filter pass can bind it as prev).
type Hit struct {
	Addr  uint64
	Value types.Value
}

// Store is a dense, append-only array of hits that doubles its backing
// array when full rather than reallocating on every append.
type Store struct {
	items []Hit
}

func New() *Store {
	return &Store{items: make([]Hit, 0, initialCapacity)}
}

// NewFromHits wraps an existing hit slice, as when reloading a session.
func NewFromHits(items []Hit) *Store {
	return &Store{items: items}
}

// Add appends a hit. Hits are added in strictly increasing address
// order within one search pass, and in original-hit order during a
// filter pass, so Store never needs to sort.
func (s *Store) Add(h Hit) {
	if len(s.items) == cap(s.items) {
		newCap := 2 * cap(s.items)
		if newCap == 0 {
			newCap = initialCapacity
		}
		grown := make([]Hit, len(s.items), newCap)
		copy(grown, s.items)
		s.items = grown
	}
	s.items = append(s.items, h)
}

func (s *Store) Len() int { return len(s.items) }

func (s *Store) At(i int) Hit { return s.items[i] }

// All returns the underlying slice. Callers must not mutate it.
func (s *Store) All() []Hit { return s.items }

// Cap reports the current backing array capacity, mostly useful for
// tests asserting the amortized-doubling growth policy.
func (s *Store) Cap() int { return cap(s.items) }
