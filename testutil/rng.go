package testutil

import (
	"math/rand"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand = rand.New(rand.NewSource(r.seed))
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// IDs returns n ids drawn uniformly from [0, limit). The result is unsorted
// and may contain duplicates.
func (r *RNG) IDs(n int, limit uint64) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uint64, n)
	for i := range ids {
		ids[i] = uint64(r.rand.Int63n(int64(limit)))
	}
	return ids
}

// Ranges returns n half-open ranges inside [0, limit), each at most maxLen
// long. Ranges may overlap or be empty.
func (r *RNG) Ranges(n int, limit, maxLen uint64) [][2]uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][2]uint64, n)
	for i := range out {
		b := uint64(r.rand.Int63n(int64(limit)))
		e := min(limit, b+uint64(r.rand.Int63n(int64(maxLen)+1)))
		out[i] = [2]uint64{b, e}
	}
	return out
}

// Shuffle returns a shuffled copy of ids.
func (r *RNG) Shuffle(ids []uint64) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]uint64(nil), ids...)
	r.rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
