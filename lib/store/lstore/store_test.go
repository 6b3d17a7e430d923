package lstore

import (
	"errors"
	"testing"

	"github.com/roberthgnz/lsdb/lib/db"
	"github.com/roberthgnz/lsdb/lib/db/engines/memdb"
	"github.com/roberthgnz/lsdb/lib/store"
	storetesting "github.com/roberthgnz/lsdb/lib/store/testing"
)

func TestLocalStore(t *testing.T) {
	storetesting.RunIStoreTests(t, "LocalStore(memdb)", func() store.IStore {
		return NewLocalStore(func() db.KVDB { return memdb.NewMemDB(nil) })
	})
}

// readOnlyDB hides every write feature of the wrapped engine
type readOnlyDB struct {
	db.KVDB
}

func (r readOnlyDB) SupportsFeature(f db.Feature) bool {
	if f&(db.FeatureSet|db.FeatureSetIfUnset|db.FeatureDelete) != 0 {
		return false
	}
	return r.KVDB.SupportsFeature(f)
}

func TestUnsupportedOperation(t *testing.T) {
	s := NewLocalStore(func() db.KVDB { return readOnlyDB{memdb.NewMemDB(nil)} })

	err := s.Set("key", []byte("value"))
	var storeErr *store.Error
	if !errors.As(err, &storeErr) {
		t.Fatalf("Expected *store.Error, got %v", err)
	}
	if storeErr.Code != store.RetCUnsupportedOperation {
		t.Errorf("Expected RetCUnsupportedOperation, got %s", storeErr.Code)
	}

	if _, ok, err := s.Get("key"); err != nil || ok {
		t.Errorf("Expected Get to work on read only engine, got ok=%v err=%v", ok, err)
	}
}
