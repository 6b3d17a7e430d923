// Package lockmgr implements named locks on top of any store.IStore.
//
// The lock manager keeps no state of its own, every lock is a key in the store, so any number
// of managers (in any number of processes) sharing one store see the same locks. lsdb uses it to
// serialize writers of a document database: a handle opened with docdb.WithLocker takes the lock
// "lsdb/lock/<database>" around each mutation.
//
// Acquisition writes a random owner ID (a UUID) with SetEIfUnset and reads the key back: the caller
// holds the lock only if the stored value is its own owner ID. Release deletes the key only if it
// still holds the caller's owner ID.
//
// Every lock has a lease. Once it runs out the next AcquireLock takes the lock over, so a holder
// that dies without releasing blocks others for at most its lease. A lease of 0 never runs out.
//
// Usage Example:
//
//	lm := lockmgr.NewLockManager(kv)
//	ownerID, err := lockmgr.Acquire(ctx, lm, "resource:123", 30*time.Second, 10*time.Millisecond)
//	if err != nil { ... }
//	defer lm.ReleaseLock("resource:123", ownerID)
package lockmgr
