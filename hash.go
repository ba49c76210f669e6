package chring

import (
	"crypto/md5"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Hasher maps an arbitrary byte key to a position on the 64-bit ring
// keyspace. Implementations must be deterministic across calls and across
// process restarts: independent balancer instances only converge on the same
// placement if they hash identically. No cryptographic strength is required.
type Hasher interface {
	Sum64(key []byte) uint64
}

// DigestHasher is the default Hasher. It folds an MD5 digest down to its
// big-endian top 8 bytes, which keeps the avalanche behavior of the full
// digest: successive replica suffixes of the same identifier land at
// well-spread, effectively independent positions.
type DigestHasher struct{}

func (DigestHasher) Sum64(key []byte) uint64 {
	var digest = md5.Sum(key)
	return binary.BigEndian.Uint64(digest[:8])
}

// XXHasher hashes with xxHash64, for hosts that prefer throughput over
// digest width. Tables built with different hashers place backends at
// different positions, so every instance of a balancing tier must agree on
// the hasher.
type XXHasher struct{}

func (XXHasher) Sum64(key []byte) uint64 {
	return xxhash.Sum64(key)
}
