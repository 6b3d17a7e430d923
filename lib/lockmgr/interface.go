package lockmgr

import "time"

// ILockManager defines the interface for a lock provider.
type ILockManager interface {
	// AcquireLock tries once to acquire the lock for the given key, held for at most lease (0 = until released).
	// Returns whether the lock was acquired and the owner ID needed to release it.
	// A lock whose lease ran out is free, even if its holder never released it.
	AcquireLock(key string, lease time.Duration) (ok bool, ownerID []byte, err error)
	// ReleaseLock releases the lock for the given key if ownerID holds it.
	// The method also returns true if the lock did not exist.
	ReleaseLock(key string, ownerID []byte) (ok bool, err error)
}
