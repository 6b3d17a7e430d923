package sqlitedb

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/roberthgnz/lsdb/lib/db"
	dbtesting "github.com/roberthgnz/lsdb/lib/db/testing"
)

func Test(t *testing.T) {
	dir := t.TempDir()
	n := 0
	dbtesting.RunKVDBTests(t, "SQLiteDB", func() db.KVDB {
		n++
		engine, err := NewSQLiteDB(filepath.Join(dir, fmt.Sprintf("engine-%d.db", n)))
		if err != nil {
			t.Fatalf("Failed to open sqlite engine: %v", err)
		}
		return engine
	})
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	engine, err := NewSQLiteDB(path)
	if err != nil {
		t.Fatalf("Failed to open sqlite engine: %v", err)
	}
	if err := engine.Set("app", []byte(`{"users":[]}`), 7); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := engine.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	engine, err = NewSQLiteDB(path)
	if err != nil {
		t.Fatalf("Failed to reopen sqlite engine: %v", err)
	}
	defer engine.Close()

	value, ok, err := engine.Get("app")
	if err != nil || !ok || string(value) != `{"users":[]}` {
		t.Errorf("Expected value to survive reopen, got %q (ok=%v, err=%v)", value, ok, err)
	}
	if engine.WriteIdx() != 7 {
		t.Errorf("Expected write index 7 after reopen, got %d", engine.WriteIdx())
	}
}
