package memdb

import (
	"testing"

	"github.com/roberthgnz/lsdb/lib/db"
	dbtesting "github.com/roberthgnz/lsdb/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "MemDB", func() db.KVDB {
		return NewMemDB(nil)
	})
}

func TestStaleWritesAreIgnored(t *testing.T) {
	engine := NewMemDB(&DBOptions{NumShards: 2})
	defer engine.Close()

	_ = engine.Set("key", []byte("new"), 10)
	_ = engine.Set("key", []byte("old"), 5)

	value, ok, _ := engine.Get("key")
	if !ok || string(value) != "new" {
		t.Errorf("Expected stale write to be ignored, got %q (ok=%v)", value, ok)
	}

	_ = engine.Delete("key", 3)
	if ok, _ := engine.Has("key"); !ok {
		t.Error("Expected stale delete to be ignored")
	}

	if engine.WriteIdx() != 10 {
		t.Errorf("Expected write index 10, got %d", engine.WriteIdx())
	}
}
