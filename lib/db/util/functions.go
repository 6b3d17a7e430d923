package util

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// --------------------------------------------------------------------------
// General Utility Functions
// --------------------------------------------------------------------------

// GenerateSeed creates a random seed for internal hash distribution
func GenerateSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// fall back to the clock, only if the system rng is unavailable
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// --------------------------------------------------------------------------
// Hash Functions
// --------------------------------------------------------------------------

// HashString generates a FNV-1a hash value for a string combined with a seed
func HashString(s string, seed uint64) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)

	hash := uint64(offset64) ^ seed
	for i := 0; i < len(s); i++ {
		hash ^= uint64(s[i])
		hash *= prime64
	}

	return hash
}

// ShardIndex maps a hash to one of n shards.
// The lower bits are dropped since they carry the least entropy for short keys.
func ShardIndex(hash uint64, n int) int {
	return int((hash >> 7) % uint64(n))
}

// Expired reports whether an entry leased until deleteAt is gone at now (both unix nanoseconds).
// A deleteAt of 0 never expires.
func Expired(deleteAt, now int64) bool {
	return deleteAt != 0 && deleteAt <= now
}

// CopyBytes returns a copy of b that never aliases the caller's slice
func CopyBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
