package engine

import "math/rand/v2"

// newRand seeds the Global context's PRNG (used by RandomSeed, backing
// the `random` unary operator's array-element selection and any
// host-exposed random builtins) from a caller-supplied 32-byte seed, so
// a given seed always reproduces the same draw sequence within one Go
// toolchain version. No cross-version stability is promised, matching
// math/rand/v2's own contract.
func newRand(seed [32]byte) *rand.Rand {
	return rand.New(rand.NewChaCha8(seed))
}
