package lockmgr

import (
	"bytes"
	"time"

	"github.com/roberthgnz/lsdb/lib/store"
)

type lockMgrImpl struct {
	store store.IStore
}

// NewLockManager creates a lock manager that keeps its locks in s
func NewLockManager(s store.IStore) ILockManager {
	return &lockMgrImpl{
		store: s,
	}
}

func (lm *lockMgrImpl) AcquireLock(key string, lease time.Duration) (bool, []byte, error) {
	ownerID, err := generateOwnerID()
	if err != nil {
		return false, nil, err
	}

	// only one caller can create the key, or take it over once the lease is over
	if err := lm.store.SetEIfUnset(key, ownerID, lease); err != nil {
		return false, nil, err
	}

	value, found, err := lm.store.Get(key)
	if err != nil {
		return false, nil, err
	}

	if found && bytes.Equal(value, ownerID) {
		return true, ownerID, nil
	}
	return false, nil, nil
}

func (lm *lockMgrImpl) ReleaseLock(key string, ownerID []byte) (bool, error) {
	value, ok, err := lm.store.Get(key)
	if err != nil || !ok {
		return err == nil, err
	}

	if !bytes.Equal(ownerID, value) {
		return false, nil
	}

	err = lm.store.Delete(key)
	return err == nil, err
}
