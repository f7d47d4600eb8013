// Package lxrhash adapts github.com/pegnet/LXRHash to the grading package's
// LXRHasher interface, the way Emyrk-pegnet/opr/opr.go wraps the same
// library behind its own package-level LX instance. Kept out of
// internal/grading so that package never imports the hashing library
// directly — a concrete hasher is always supplied by the caller.
package lxrhash

import (
	"sync"

	lxr "github.com/pegnet/LXRHash"
)

// Seed/MapSizeBits/HashSize/Passes mirror the parameters Emyrk-pegnet's
// InitLX uses to build its global table; pegfollow uses the same constants
// so graded results are comparable across implementations.
const (
	seed        = 0xfafaececfafaecec
	mapSizeBits = 25
	hashSize    = 256
	passes      = 5
)

// Hasher wraps a lazily-initialized LXRHash table. Table construction
// allocates a large lookup table, so it happens once, on first use.
type Hasher struct {
	once sync.Once
	lx   lxr.LXRHash
}

// New returns a Hasher whose table is built on first call to Hash.
func New() *Hasher {
	return &Hasher{}
}

// Hash implements grading.LXRHasher.
func (h *Hasher) Hash(data []byte) []byte {
	h.once.Do(func() {
		h.lx.Init(seed, mapSizeBits, hashSize, passes)
	})
	return h.lx.Hash(data)
}
