package lstore

import (
	"sync/atomic"
	"time"

	"github.com/roberthgnz/lsdb/lib/db"
	"github.com/roberthgnz/lsdb/lib/store"
)

type storeImpl struct {
	db    db.KVDB
	index atomic.Uint64
}

// NewLocalStore creates a new single node store on top of the engine created by factory.
func NewLocalStore(factory store.DBFactory) store.IStore {
	s := &storeImpl{db: factory()}
	// durable engines may already carry an index from a previous run
	s.index.Store(s.db.WriteIdx())
	return s
}

// incAndGetIndex increments the index and returns the new value.
//
// Thread-safety: This method is thread-safe since it uses atomic operations.
func (s *storeImpl) incAndGetIndex() uint64 {
	return s.index.Add(1)
}

func unsupported(op string) error {
	return store.NewError(store.RetCUnsupportedOperation, op+" operation is not supported")
}

func internal(err error) error {
	if err == nil {
		return nil
	}
	return store.NewError(store.RetCInternalError, err.Error())
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(key string, value []byte) error {
	if !s.db.SupportsFeature(db.FeatureSet) {
		return unsupported("Set")
	}
	return internal(s.db.Set(key, value, s.incAndGetIndex()))
}

func (s *storeImpl) SetIfUnset(key string, value []byte) error {
	if !s.db.SupportsFeature(db.FeatureSetIfUnset) {
		return unsupported("SetIfUnset")
	}
	_, err := s.db.SetIfUnset(key, value, s.incAndGetIndex())
	return internal(err)
}

func (s *storeImpl) SetEIfUnset(key string, value []byte, lease time.Duration) error {
	if !s.db.SupportsFeature(db.FeatureSetEIfUnset) {
		return unsupported("SetEIfUnset")
	}
	now, deleteAt := store.LeaseWindow(lease)
	_, err := s.db.SetEIfUnset(key, value, s.incAndGetIndex(), now, deleteAt)
	return internal(err)
}

func (s *storeImpl) Delete(key string) error {
	if !s.db.SupportsFeature(db.FeatureDelete) {
		return unsupported("Delete")
	}
	return internal(s.db.Delete(key, s.incAndGetIndex()))
}

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	if !s.db.SupportsFeature(db.FeatureGet) {
		return nil, false, unsupported("Get")
	}
	val, ok, err := s.db.Get(key)
	return val, ok, internal(err)
}

func (s *storeImpl) Has(key string) (bool, error) {
	if !s.db.SupportsFeature(db.FeatureHas) {
		return false, unsupported("Has")
	}
	ok, err := s.db.Has(key)
	return ok, internal(err)
}

func (s *storeImpl) Keys() ([]string, error) {
	if !s.db.SupportsFeature(db.FeatureKeys) {
		return nil, unsupported("Keys")
	}
	keys, err := s.db.Keys()
	return keys, internal(err)
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}
