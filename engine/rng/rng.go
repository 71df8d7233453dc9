// Package rng provides the deterministic randomness source threaded
// through a game instance. The stream is a pure function of the seed
// string and the call count, enabling save/restore and replay.
package rng

import (
	"hash/fnv"
	"math/rand"
)

// RNG wraps math/rand.Rand with deterministic position tracking.
// Every draw consumes exactly one value from the underlying source,
// so advancing a fresh source by Position() reproduces the stream.
type RNG struct {
	seed string
	src  *rand.Rand
	pos  int64
}

// New creates a deterministic RNG from an opaque seed string.
func New(seed string) *RNG {
	return &RNG{
		seed: seed,
		src:  rand.New(rand.NewSource(seedValue(seed))),
	}
}

// seedValue maps a seed string to the int64 the source is built from.
func seedValue(seed string) int64 {
	h := fnv.New64a()
	h.Write([]byte(seed))
	return int64(h.Sum64())
}

// Intn returns a deterministic integer in [0, n). It uses a plain
// modulo mapping instead of rand.Intn so every call consumes exactly
// one source value regardless of n; the slight bias is irrelevant for
// game shuffles and the exactness is what replay depends on.
func (r *RNG) Intn(n int) int {
	if n <= 0 {
		panic("rng: Intn called with non-positive n")
	}
	r.pos++
	return int(r.src.Int63() % int64(n))
}

// Roll returns a deterministic integer in [1, sides].
func (r *RNG) Roll(sides int) int {
	return r.Intn(sides) + 1
}

// Seed returns the seed string the RNG was created from.
func (r *RNG) Seed() string {
	return r.seed
}

// Position returns the number of draws made since creation.
func (r *RNG) Position() int64 {
	return r.pos
}

// Restore creates an RNG from seed and advances it to the given
// position, reproducing the exact stream state for save/load.
func Restore(seed string, position int64) *RNG {
	r := New(seed)
	for i := int64(0); i < position; i++ {
		r.src.Int63()
	}
	r.pos = position
	return r
}
