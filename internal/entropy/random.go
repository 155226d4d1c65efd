// Package entropy seeds the pseudo-random sources that drive world creation
// and event generation. A configured seed makes a run reproducible; without
// one the seed comes from crypto/rand.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	mrand "math/rand"
	"time"
)

// New returns a math/rand source. A zero seed draws a fresh one.
func New(seed int64) *mrand.Rand {
	if seed == 0 {
		seed = Seed()
	} else {
		slog.Debug("using fixed random seed", "seed", seed)
	}
	return mrand.New(mrand.NewSource(seed))
}

// Seed returns a non-zero seed from crypto/rand, falling back to the clock
// if the system source is unavailable.
func Seed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		slog.Warn("crypto seed unavailable, using clock", "error", err)
		return time.Now().UnixNano() | 1
	}
	// Clear the sign bit so the seed is always positive.
	n := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if n == 0 {
		return 1
	}
	return n
}
